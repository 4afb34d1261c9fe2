package experiment

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MS-092/DS-RM-FP/internal/metrics"
	"github.com/MS-092/DS-RM-FP/internal/models"
	"github.com/MS-092/DS-RM-FP/internal/poller"
	"github.com/MS-092/DS-RM-FP/internal/utils"
)

const defaultTimeout = 60 * time.Second

// Backend executes one experiment end to end. accepted must be called once the
// backend has the request.
type Backend interface {
	RunExperiment(ctx context.Context, cfg models.ExperimentConfiguration, accepted func()) (models.ExperimentOutcome, error)
}

// Refresher triggers an out-of-cycle status fetch.
type Refresher interface {
	RefreshNow(ctx context.Context) poller.Result
}

// Listener receives every state transition of a run, in order. It is called
// without the runner's lock held, so it may call back into the runner.
type Listener func(models.ExperimentRun)

// Options configures a Runner.
type Options struct {
	Timeout time.Duration
	Logger  *slog.Logger
}

// Runner owns the lifecycle of at most one experiment at a time.
type Runner struct {
	backend   Backend
	refresher Refresher
	timeout   time.Duration
	logger    *slog.Logger
	newID     func() string
	now       func() time.Time

	mu       sync.Mutex
	inflight *models.ExperimentRun

	// deliverMu guards listener. Deliveries hold the read side so Detach waits them out.
	deliverMu sync.RWMutex
	listener  Listener
}

// NewRunner creates an idle runner.
func NewRunner(backend Backend, refresher Refresher, opts Options) *Runner {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Runner{
		backend:   backend,
		refresher: refresher,
		timeout:   timeout,
		logger:    utils.Component(opts.Logger, "runner"),
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

// Listen installs the single listener.
func (r *Runner) Listen(listener Listener) {
	r.deliverMu.Lock()
	r.listener = listener
	r.deliverMu.Unlock()
}

// Detach stops delivering transitions and waits for a delivery in progress.
// A run in flight keeps going.
func (r *Runner) Detach() {
	r.deliverMu.Lock()
	r.listener = nil
	r.deliverMu.Unlock()
}

// Current returns the in-flight run, if any.
func (r *Runner) Current() (models.ExperimentRun, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inflight == nil {
		return models.ExperimentRun{}, false
	}
	return *r.inflight, true
}

// Submit starts cfg in the background and returns its run ID. It fails fast with a
// conflict error, without contacting the backend, while another run is pending or running.
func (r *Runner) Submit(cfg models.ExperimentConfiguration) (string, error) {
	r.mu.Lock()
	if r.inflight != nil {
		id := r.inflight.ID
		r.mu.Unlock()
		r.logger.Info("experiment rejected, another run in flight", slog.String("run_id", id))
		return "", utils.NewConflictError("submit experiment")
	}
	run := models.ExperimentRun{
		ID:            r.newID(),
		Configuration: cfg,
		State:         models.RunPending,
		StartedAt:     r.now(),
	}
	r.inflight = &run
	metrics.SetExperimentInFlight(true)
	r.mu.Unlock()

	r.deliver(run)
	r.logger.Info("experiment submitted",
		slog.String("run_id", run.ID),
		slog.String("strategy", string(cfg.Strategy)),
		slog.Int("workload_size", cfg.WorkloadSize),
	)
	go r.execute(run)
	return run.ID, nil
}

func (r *Runner) execute(run models.ExperimentRun) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	outcome, err := r.backend.RunExperiment(ctx, run.Configuration, func() { r.markRunning(run.ID) })
	final := r.finish(outcome, err)

	outcomeLabel := metrics.OutcomeSuccess
	if err != nil {
		outcomeLabel = metrics.OutcomeError
		r.logger.Warn("experiment failed",
			slog.String("run_id", final.ID),
			slog.String("error_kind", final.ErrorKind),
			slog.Bool("retryable", final.Retryable),
			slog.Any("error", err),
		)
	} else {
		r.logger.Info("experiment succeeded",
			slog.String("run_id", final.ID),
			slog.Float64("recovery_time_seconds", outcome.RecoveryTimeSeconds),
		)
	}
	metrics.ObserveExperiment(string(run.Configuration.Strategy), final.Duration(), outcomeLabel, final.RecoveryTimeSeconds)

	if r.refresher != nil {
		r.refresher.RefreshNow(context.Background())
	}
}

func (r *Runner) markRunning(id string) {
	r.mu.Lock()
	if r.inflight == nil || r.inflight.ID != id || r.inflight.State != models.RunPending {
		r.mu.Unlock()
		return
	}
	r.inflight.State = models.RunRunning
	running := *r.inflight
	r.mu.Unlock()

	r.deliver(running)
}

// finish moves the run to its terminal state, clears the in-flight slot and notifies.
func (r *Runner) finish(outcome models.ExperimentOutcome, err error) models.ExperimentRun {
	r.mu.Lock()
	final := *r.inflight
	final.FinishedAt = r.now()
	if err != nil {
		kind := utils.KindOf(err)
		if kind == "" {
			kind = utils.KindBackend
		}
		final.State = models.RunFailed
		final.Error = err.Error()
		final.ErrorKind = string(kind)
		final.Retryable = utils.IsRetryable(err)
	} else {
		recovery := outcome.RecoveryTimeSeconds
		final.State = models.RunSucceeded
		final.RecoveryTimeSeconds = &recovery
		final.DataRecoveryRatePercent = outcome.DataRecoveryRatePercent
		final.ItemsRecovered = outcome.ItemsRecovered
		final.StoreTimeSeconds = outcome.StoreTimeSeconds
	}
	r.inflight = nil
	metrics.SetExperimentInFlight(false)
	r.mu.Unlock()

	r.deliver(final)
	return final
}

func (r *Runner) deliver(run models.ExperimentRun) {
	r.deliverMu.RLock()
	defer r.deliverMu.RUnlock()
	if r.listener != nil {
		r.listener(run)
	}
}
