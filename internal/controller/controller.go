package controller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MS-092/DS-RM-FP/internal/analysis"
	"github.com/MS-092/DS-RM-FP/internal/experiment"
	"github.com/MS-092/DS-RM-FP/internal/models"
	"github.com/MS-092/DS-RM-FP/internal/poller"
	"github.com/MS-092/DS-RM-FP/internal/presets"
	"github.com/MS-092/DS-RM-FP/internal/store"
	"github.com/MS-092/DS-RM-FP/internal/utils"
)

// StatusPoller is the subset of the poller the controller drives.
type StatusPoller interface {
	Register(observer poller.Observer)
	Start(interval time.Duration) error
	Stop()
	RefreshNow(ctx context.Context) poller.Result
}

// ExperimentRunner is the subset of the runner the controller drives.
type ExperimentRunner interface {
	Listen(listener experiment.Listener)
	Detach()
	Submit(cfg models.ExperimentConfiguration) (string, error)
	Current() (models.ExperimentRun, bool)
}

// FaultInjector dispatches fault commands.
type FaultInjector interface {
	Inject(ctx context.Context, cmd models.FaultInjectionCommand) (models.FaultAck, error)
}

// StrategyBackend covers the backend calls made directly by the controller.
type StrategyBackend interface {
	Configure(ctx context.Context, cfg models.ExperimentConfiguration) (models.ConfigureAck, error)
	FetchPresets(ctx context.Context) ([]models.Preset, error)
}

// Deps wires the controller's collaborators.
type Deps struct {
	Poller   StatusPoller
	Runner   ExperimentRunner
	Injector FaultInjector
	Backend  StrategyBackend
	History  store.HistoryStore
	Presets  *presets.Catalog
}

// Options configures a Controller.
type Options struct {
	PollInterval     time.Duration
	InitialDraft     models.ConfigurationDraft
	MaxRuns          int
	OutlierThreshold float64
	Logger           *slog.Logger
}

// View is the read model handed to the presentation layer. A View is never
// modified after it is published; every change publishes a new one.
type View struct {
	Snapshot  models.SystemSnapshot
	Draft     models.ConfigurationDraft
	Current   *models.ExperimentRun
	History   []models.ExperimentRun
	Recovery  []analysis.StrategySummary
	LastFault *models.FaultAck
}

// Controller owns the status snapshot, the configuration draft, the in-flight
// run and the run history, and mediates the poller, runner and injector.
type Controller struct {
	deps      Deps
	interval  time.Duration
	maxRuns   int
	threshold float64
	logger    *slog.Logger

	// mu serializes writers; readers load view without locking.
	mu   sync.Mutex
	view atomic.Pointer[View]

	// opMu keeps strategy reconfiguration and experiment submission mutually
	// exclusive: submissions share the read side, ConfigureStrategy takes the
	// write side. Neither side ever blocks on it.
	opMu        sync.RWMutex
	configuring atomic.Bool
}

// New creates a stopped controller. Call Start to begin polling.
func New(deps Deps, opts Options) *Controller {
	if deps.History == nil {
		deps.History = store.NewMemoryStore(opts.MaxRuns)
	}
	if deps.Presets == nil {
		deps.Presets = presets.Builtin(opts.Logger)
	}
	c := &Controller{
		deps:      deps,
		interval:  opts.PollInterval,
		maxRuns:   opts.MaxRuns,
		threshold: opts.OutlierThreshold,
		logger:    utils.Component(opts.Logger, "controller"),
	}
	c.view.Store(&View{
		Snapshot: models.SystemSnapshot{Health: models.UnknownHealth()},
		Draft:    opts.InitialDraft,
	})
	return c
}

// Start loads persisted history, attaches to the poller and runner, and starts polling.
func (c *Controller) Start(ctx context.Context) error {
	history, err := c.deps.History.List(ctx, c.maxRuns)
	if err != nil {
		return fmt.Errorf("load experiment history: %w", err)
	}
	c.update(func(v *View) {
		v.History = history
		v.Recovery = analysis.Summarize(history, c.threshold)
	})
	c.logger.Info("controller starting", slog.Int("history_runs", len(history)), slog.Duration("poll_interval", c.interval))

	c.deps.Runner.Listen(c.applyRun)
	c.deps.Poller.Register(c.applyResult)
	return c.deps.Poller.Start(c.interval)
}

// Stop halts polling and detaches from the runner. An in-flight run keeps going on the backend.
func (c *Controller) Stop() {
	c.deps.Poller.Stop()
	c.deps.Runner.Detach()
	c.logger.Info("controller stopped")
}

// CurrentSnapshot returns the latest view. Callers must treat it as read-only.
func (c *Controller) CurrentSnapshot() View {
	return *c.view.Load()
}

// UpdateConfigurationDraft applies a partial edit. The draft is validated only when a run starts.
func (c *Controller) UpdateConfigurationDraft(update models.DraftUpdate) View {
	return c.update(func(v *View) {
		v.Draft = v.Draft.Apply(update)
	})
}

// RunExperiment validates the current draft and submits it. It returns the run ID.
// While ConfigureStrategy is talking to the backend the request is rejected with
// a conflict wrapping utils.ErrConfigureInProgress.
func (c *Controller) RunExperiment() (string, error) {
	// Concurrent submissions are serialized by the runner's single-flight guard.
	if !c.opMu.TryRLock() {
		return "", utils.NewConfigureConflictError("run experiment")
	}
	defer c.opMu.RUnlock()

	cfg, err := experiment.Validate(c.view.Load().Draft)
	if err != nil {
		return "", err
	}
	return c.deps.Runner.Submit(cfg)
}

// InjectFault forwards cmd to the injector. Confirmation happens before this call.
func (c *Controller) InjectFault(ctx context.Context, cmd models.FaultInjectionCommand) (models.FaultAck, error) {
	ack, err := c.deps.Injector.Inject(ctx, cmd)
	if err != nil {
		return models.FaultAck{}, err
	}
	c.update(func(v *View) {
		recorded := ack
		v.LastFault = &recorded
	})
	return ack, nil
}

// ConfigureStrategy switches the backend to the validated draft's strategy.
// It is rejected while an experiment is pending or running, or while another
// reconfiguration is in progress.
func (c *Controller) ConfigureStrategy(ctx context.Context) (models.ConfigureAck, error) {
	if !c.opMu.TryLock() {
		if c.configuring.Load() {
			return models.ConfigureAck{}, utils.NewConfigureConflictError("configure strategy")
		}
		return models.ConfigureAck{}, utils.NewConflictError("configure strategy")
	}
	c.configuring.Store(true)
	defer func() {
		c.configuring.Store(false)
		c.opMu.Unlock()
	}()

	if _, inFlight := c.deps.Runner.Current(); inFlight {
		return models.ConfigureAck{}, utils.NewConflictError("configure strategy")
	}
	cfg, err := experiment.Validate(c.view.Load().Draft)
	if err != nil {
		return models.ConfigureAck{}, err
	}
	ack, err := c.deps.Backend.Configure(ctx, cfg)
	if err != nil {
		return models.ConfigureAck{}, err
	}
	c.logger.Info("strategy configured", slog.String("strategy", string(cfg.Strategy)), slog.String("current", ack.CurrentStrategy))
	c.deps.Poller.RefreshNow(context.WithoutCancel(ctx))
	return ack, nil
}

// Presets returns the backend's presets, or the local catalog when the backend
// is unreachable or has none.
func (c *Controller) Presets(ctx context.Context) []models.Preset {
	list, err := c.deps.Backend.FetchPresets(ctx)
	if err != nil {
		c.logger.Warn("backend presets unavailable, using local catalog", slog.Any("error", err))
		return c.deps.Presets.All()
	}
	if len(list) == 0 {
		return c.deps.Presets.All()
	}
	return list
}

// ApplyPreset copies the named preset into the draft.
func (c *Controller) ApplyPreset(ctx context.Context, name string) (View, error) {
	preset, ok := presets.Lookup(c.Presets(ctx), name)
	if !ok {
		return View{}, utils.NewValidationError("preset", fmt.Sprintf("unknown preset %q", name))
	}
	return c.update(func(v *View) {
		v.Draft = presets.ApplyTo(v.Draft, preset)
	}), nil
}

// applyResult publishes a poll result unless a newer tick is already published.
func (c *Controller) applyResult(res poller.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.view.Load()
	if res.Tick <= cur.Snapshot.Tick {
		c.logger.Debug("dropping stale poll result", slog.Uint64("tick", res.Tick), slog.Uint64("published", cur.Snapshot.Tick))
		return
	}
	next := *cur
	next.Snapshot = poller.Merge(cur.Snapshot, res)
	c.view.Store(&next)
}

// applyRun folds a run transition into the view. Terminal runs move to history.
func (c *Controller) applyRun(run models.ExperimentRun) {
	var persist bool
	c.mu.Lock()
	cur := c.view.Load()
	if !c.advances(cur, run) {
		c.mu.Unlock()
		return
	}
	next := *cur
	if run.State.Terminal() {
		// The next run may already be pending when this result lands.
		if cur.Current != nil && cur.Current.ID == run.ID {
			next.Current = nil
		}
		next.History = appendCapped(cur.History, run, c.maxRuns)
		next.Recovery = analysis.Summarize(next.History, c.threshold)
		persist = true
	} else {
		inFlight := run
		next.Current = &inFlight
	}
	c.view.Store(&next)
	c.mu.Unlock()

	if persist {
		if err := c.deps.History.Append(context.Background(), run); err != nil {
			c.logger.Error("persist experiment run", slog.String("run_id", run.ID), slog.Any("error", err))
		}
	}
}

// advances reports whether run moves the view forward along the run lifecycle.
func (c *Controller) advances(cur *View, run models.ExperimentRun) bool {
	if cur.Current != nil && cur.Current.ID == run.ID {
		return run.State.Rank() > cur.Current.State.Rank()
	}
	if n := len(cur.History); n > 0 && cur.History[n-1].ID == run.ID {
		return false
	}
	return true
}

func (c *Controller) update(mutate func(*View)) View {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := *c.view.Load()
	mutate(&next)
	c.view.Store(&next)
	return next
}

func appendCapped(history []models.ExperimentRun, run models.ExperimentRun, maxRuns int) []models.ExperimentRun {
	start := 0
	if maxRuns > 0 && len(history)+1 > maxRuns {
		start = len(history) + 1 - maxRuns
	}
	out := make([]models.ExperimentRun, 0, len(history)-start+1)
	out = append(out, history[start:]...)
	return append(out, run)
}
