package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/MS-092/DS-RM-FP/internal/experiment"
	"github.com/MS-092/DS-RM-FP/internal/faults"
	"github.com/MS-092/DS-RM-FP/internal/models"
	"github.com/MS-092/DS-RM-FP/internal/poller"
	"github.com/MS-092/DS-RM-FP/internal/store"
	"github.com/MS-092/DS-RM-FP/internal/utils"
)

// manualPoller publishes whatever the test hands it.
type manualPoller struct {
	mu       sync.Mutex
	observer poller.Observer
	tick     uint64
	started  bool
	refresh  atomic.Int32
}

func (p *manualPoller) Register(observer poller.Observer) {
	p.mu.Lock()
	p.observer = observer
	p.mu.Unlock()
}

func (p *manualPoller) Start(time.Duration) error {
	p.mu.Lock()
	p.started = true
	p.mu.Unlock()
	return nil
}

func (p *manualPoller) Stop() {
	p.mu.Lock()
	p.observer = nil
	p.mu.Unlock()
}

func (p *manualPoller) RefreshNow(context.Context) poller.Result {
	p.refresh.Add(1)
	p.mu.Lock()
	p.tick++
	res := poller.Result{Tick: p.tick, Health: models.HealthSnapshot{OverallStatus: models.OverallHealthy}}
	observer := p.observer
	p.mu.Unlock()
	if observer != nil {
		observer(res)
	}
	return res
}

func (p *manualPoller) publish(res poller.Result) {
	p.mu.Lock()
	observer := p.observer
	p.mu.Unlock()
	if observer != nil {
		observer(res)
	}
}

// stubBackend serves experiments, configure and presets.
type stubBackend struct {
	mu         sync.Mutex
	recovery   float64
	release    chan struct{}
	configures int
	presets    []models.Preset
	presetsErr error

	// configureEntered is signalled, and configureGate awaited, inside Configure when set.
	configureEntered chan struct{}
	configureGate    chan struct{}
}

func (b *stubBackend) RunExperiment(ctx context.Context, _ models.ExperimentConfiguration, accepted func()) (models.ExperimentOutcome, error) {
	accepted()
	if b.release != nil {
		select {
		case <-b.release:
		case <-ctx.Done():
			return models.ExperimentOutcome{}, utils.NewTransportError("run experiment", ctx.Err())
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return models.ExperimentOutcome{RecoveryTimeSeconds: b.recovery}, nil
}

func (b *stubBackend) Configure(_ context.Context, cfg models.ExperimentConfiguration) (models.ConfigureAck, error) {
	if b.configureEntered != nil {
		b.configureEntered <- struct{}{}
	}
	if b.configureGate != nil {
		<-b.configureGate
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.configures++
	return models.ConfigureAck{Message: "switched", CurrentStrategy: string(cfg.Strategy)}, nil
}

func (b *stubBackend) FetchPresets(context.Context) ([]models.Preset, error) {
	return b.presets, b.presetsErr
}

type stubFaults struct{}

func (stubFaults) SimulateFailure(_ context.Context, kind models.FaultKind, _ int) (models.FaultAck, error) {
	return models.FaultAck{Kind: kind, Message: "ok"}, nil
}

func (stubFaults) Recover(context.Context) (models.FaultAck, error) {
	return models.FaultAck{Kind: models.FaultRecover}, nil
}

func hybridDraft() models.ConfigurationDraft {
	return models.ConfigurationDraft{Strategy: models.StrategyHybrid, CheckpointIntervalSeconds: 30, ReplicationFactor: 3, WorkloadSize: 100}
}

type harness struct {
	ctrl    *Controller
	poller  *manualPoller
	backend *stubBackend
	runner  *experiment.Runner
	history *store.MemoryStore
}

func newHarness(t *testing.T, backend *stubBackend, maxRuns int) *harness {
	t.Helper()
	p := &manualPoller{}
	runner := experiment.NewRunner(backend, p, experiment.Options{Timeout: 2 * time.Second})
	history := store.NewMemoryStore(maxRuns)
	ctrl := New(Deps{
		Poller:   p,
		Runner:   runner,
		Injector: faults.NewInjector(stubFaults{}, p, nil),
		Backend:  backend,
		History:  history,
	}, Options{PollInterval: time.Hour, InitialDraft: hybridDraft(), MaxRuns: maxRuns})
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(ctrl.Stop)
	return &harness{ctrl: ctrl, poller: p, backend: backend, runner: runner, history: history}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}

func TestInitialViewIsUnknown(t *testing.T) {
	h := newHarness(t, &stubBackend{}, 0)
	view := h.ctrl.CurrentSnapshot()
	if view.Snapshot.Health.OverallStatus != models.OverallUnknown || view.Current != nil {
		t.Fatalf("unexpected initial view: %+v", view)
	}
	if !h.poller.started {
		t.Fatalf("Start should start the poller")
	}
}

func TestHybridExperimentScenario(t *testing.T) {
	backend := &stubBackend{recovery: 1.8, release: make(chan struct{})}
	h := newHarness(t, backend, 0)

	id, err := h.ctrl.RunExperiment()
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	waitFor(t, func() bool {
		cur := h.ctrl.CurrentSnapshot().Current
		return cur != nil && cur.State == models.RunRunning
	})
	running := h.ctrl.CurrentSnapshot().Current
	if running.ID != id || running.Configuration.Strategy != models.StrategyHybrid || running.RecoveryTimeSeconds != nil {
		t.Fatalf("unexpected running run: %+v", running)
	}

	// Draft edits never reach the in-flight run.
	factor := 5
	h.ctrl.UpdateConfigurationDraft(models.DraftUpdate{ReplicationFactor: &factor})

	close(backend.release)
	waitFor(t, func() bool { return len(h.ctrl.CurrentSnapshot().History) == 1 })
	waitFor(t, func() bool { return h.poller.refresh.Load() == 1 })

	view := h.ctrl.CurrentSnapshot()
	if view.Current != nil {
		t.Fatalf("expected no run in flight, got %+v", view.Current)
	}
	done := view.History[0]
	if done.State != models.RunSucceeded || done.RecoveryTimeSeconds == nil || *done.RecoveryTimeSeconds != 1.8 {
		t.Fatalf("unexpected history entry: %+v", done)
	}
	if done.Configuration.ReplicationFactor != 3 {
		t.Fatalf("run configuration changed after submit: %+v", done.Configuration)
	}
	if view.Snapshot.Tick != 1 {
		t.Fatalf("expected post-run refresh to publish tick 1, got %d", view.Snapshot.Tick)
	}
	if len(view.Recovery) != 1 || view.Recovery[0].Strategy != models.StrategyHybrid {
		t.Fatalf("unexpected recovery summary: %+v", view.Recovery)
	}
	waitFor(t, func() bool {
		runs, _ := h.history.List(context.Background(), 0)
		return len(runs) == 1
	})
}

func TestRunExperimentRejectsWhileInFlight(t *testing.T) {
	backend := &stubBackend{recovery: 1, release: make(chan struct{})}
	h := newHarness(t, backend, 0)

	if _, err := h.ctrl.RunExperiment(); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := h.ctrl.RunExperiment(); !errors.Is(err, utils.ErrExperimentRunning) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := h.ctrl.ConfigureStrategy(context.Background()); !errors.Is(err, utils.ErrExperimentRunning) {
		t.Fatalf("expected configure conflict while running, got %v", err)
	}
	if backend.configures != 0 {
		t.Fatalf("configure reached backend during a run")
	}
	close(backend.release)
	waitFor(t, func() bool { return len(h.ctrl.CurrentSnapshot().History) == 1 })
}

func TestRunExperimentValidatesDraft(t *testing.T) {
	h := newHarness(t, &stubBackend{}, 0)
	interval := 10
	h.ctrl.UpdateConfigurationDraft(models.DraftUpdate{CheckpointIntervalSeconds: &interval})
	_, err := h.ctrl.RunExperiment()
	var appErr *utils.AppError
	if !errors.As(err, &appErr) || appErr.Field != "checkpointIntervalSeconds" {
		t.Fatalf("expected checkpoint interval validation error, got %v", err)
	}
	if h.ctrl.CurrentSnapshot().Current != nil {
		t.Fatalf("invalid draft must not start a run")
	}
}

func TestConfigureStrategyRefreshes(t *testing.T) {
	backend := &stubBackend{}
	h := newHarness(t, backend, 0)
	ack, err := h.ctrl.ConfigureStrategy(context.Background())
	if err != nil {
		t.Fatalf("configure: %v", err)
	}
	if ack.CurrentStrategy != "hybrid" || backend.configures != 1 || h.poller.refresh.Load() != 1 {
		t.Fatalf("unexpected configure result: %+v configures=%d refresh=%d", ack, backend.configures, h.poller.refresh.Load())
	}
}

func TestApplyPresetFallsBackToCatalog(t *testing.T) {
	h := newHarness(t, &stubBackend{presetsErr: errors.New("unreachable")}, 0)
	view, err := h.ctrl.ApplyPreset(context.Background(), "Checkpointing 60s")
	if err != nil {
		t.Fatalf("apply preset: %v", err)
	}
	if view.Draft.Strategy != models.StrategyCheckpointing || view.Draft.CheckpointIntervalSeconds != 60 {
		t.Fatalf("unexpected draft: %+v", view.Draft)
	}
	if _, err := h.ctrl.ApplyPreset(context.Background(), "nope"); utils.KindOf(err) != utils.KindValidation {
		t.Fatalf("expected validation error for unknown preset, got %v", err)
	}
}

func TestApplyPresetPrefersBackend(t *testing.T) {
	backend := &stubBackend{presets: []models.Preset{{Name: "Lab Special", Strategy: models.StrategyReplication, ReplicationFactor: 5, WorkloadSize: 250}}}
	h := newHarness(t, backend, 0)
	view, err := h.ctrl.ApplyPreset(context.Background(), "lab special")
	if err != nil {
		t.Fatalf("apply preset: %v", err)
	}
	if view.Draft.WorkloadSize != 250 || view.Draft.ReplicationFactor != 5 {
		t.Fatalf("unexpected draft: %+v", view.Draft)
	}
}

func TestInjectFaultRecordsAckAndRefreshes(t *testing.T) {
	h := newHarness(t, &stubBackend{}, 0)
	if _, err := h.ctrl.InjectFault(context.Background(), models.FaultInjectionCommand{Kind: models.FaultPartition, TargetCount: 2}); err != nil {
		t.Fatalf("inject: %v", err)
	}
	view := h.ctrl.CurrentSnapshot()
	if view.LastFault == nil || view.LastFault.Kind != models.FaultPartition {
		t.Fatalf("unexpected last fault: %+v", view.LastFault)
	}
	if view.Snapshot.Tick != 1 {
		t.Fatalf("expected refresh after inject, got tick %d", view.Snapshot.Tick)
	}
}

func TestHistoryCapAndReload(t *testing.T) {
	backend := &stubBackend{recovery: 1}
	h := newHarness(t, backend, 2)
	for i := 0; i < 3; i++ {
		if _, err := h.ctrl.RunExperiment(); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		want := i + 1
		if want > 2 {
			want = 2
		}
		waitFor(t, func() bool {
			v := h.ctrl.CurrentSnapshot()
			return v.Current == nil && len(v.History) == want && h.poller.refresh.Load() == int32(i+1)
		})
	}

	reloaded := New(Deps{
		Poller:   &manualPoller{},
		Runner:   experiment.NewRunner(backend, nil, experiment.Options{}),
		Injector: faults.NewInjector(stubFaults{}, nil, nil),
		Backend:  backend,
		History:  h.history,
	}, Options{PollInterval: time.Hour, MaxRuns: 2})
	if err := reloaded.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	defer reloaded.Stop()
	if got := len(reloaded.CurrentSnapshot().History); got != 2 {
		t.Fatalf("expected persisted history of 2, got %d", got)
	}
}

func TestStaleTickNeverOverwritesNewer(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("published tick is the running maximum", prop.ForAll(
		func(ticks []uint64) bool {
			p := &manualPoller{}
			ctrl := New(Deps{Poller: p, Runner: experiment.NewRunner(&stubBackend{}, nil, experiment.Options{})}, Options{PollInterval: time.Hour})
			if err := ctrl.Start(context.Background()); err != nil {
				return false
			}
			defer ctrl.Stop()

			var max uint64
			for _, tick := range ticks {
				p.publish(poller.Result{
					Tick:   tick,
					Health: models.HealthSnapshot{OverallStatus: models.OverallHealthy, Components: map[string]models.ComponentStatus{"tick": models.ComponentStatus(fmt.Sprint(tick))}},
				})
				if tick > max {
					max = tick
				}
				snap := ctrl.CurrentSnapshot().Snapshot
				if snap.Tick != max {
					return false
				}
				if max > 0 && snap.Health.Component("tick") != models.ComponentStatus(fmt.Sprint(max)) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.UInt64Range(0, 50)),
	))

	properties.TestingRun(t)
}

// gatedSource blocks the first health fetch until released.
type gatedSource struct {
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (s *gatedSource) FetchHealth(context.Context) (models.HealthSnapshot, error) {
	if s.calls.Add(1) == 1 {
		close(s.entered)
		<-s.release
		return models.HealthSnapshot{OverallStatus: models.OverallHealthy, Components: map[string]models.ComponentStatus{"database": models.ComponentConnected}}, nil
	}
	return models.HealthSnapshot{OverallStatus: models.OverallDegraded, Components: map[string]models.ComponentStatus{"database": models.ComponentDisconnected}}, nil
}

func (s *gatedSource) FetchFaultToleranceStatus(context.Context) (models.FaultToleranceStatus, error) {
	return models.FaultToleranceStatus{Strategy: models.StrategyReplication, IsHealthy: true}, nil
}

func TestInjectDuringInFlightPollKeepsNewerSnapshot(t *testing.T) {
	src := &gatedSource{entered: make(chan struct{}), release: make(chan struct{})}
	p := poller.New(src, poller.Options{})
	ctrl := New(Deps{
		Poller:   p,
		Runner:   experiment.NewRunner(&stubBackend{}, p, experiment.Options{}),
		Injector: faults.NewInjector(stubFaults{}, p, nil),
		Backend:  &stubBackend{},
	}, Options{PollInterval: time.Hour})
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	<-src.entered
	if _, err := ctrl.InjectFault(context.Background(), models.FaultInjectionCommand{Kind: models.FaultPodKill, TargetCount: 1}); err != nil {
		t.Fatalf("inject: %v", err)
	}
	if tick := ctrl.CurrentSnapshot().Snapshot.Tick; tick != 2 {
		t.Fatalf("expected injection refresh to publish tick 2, got %d", tick)
	}

	close(src.release)
	// Stop waits for the blocked first cycle to finish delivering.
	ctrl.Stop()

	snap := ctrl.CurrentSnapshot().Snapshot
	if snap.Tick != 2 || snap.Health.Component("database") != models.ComponentDisconnected {
		t.Fatalf("older tick overwrote the newer snapshot: %+v", snap)
	}
}

func TestReadersNeverSeeTornState(t *testing.T) {
	backend := &stubBackend{recovery: 0.5}
	h := newHarness(t, backend, 0)

	stop := make(chan struct{})
	var torn atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				view := h.ctrl.CurrentSnapshot()
				if cur := view.Current; cur != nil && (!cur.InFlight() || cur.RecoveryTimeSeconds != nil) {
					torn.Add(1)
				}
				for _, run := range view.History {
					if !run.State.Terminal() {
						torn.Add(1)
					}
				}
			}
		}()
	}

	for i := 0; i < 20; i++ {
		if _, err := h.ctrl.RunExperiment(); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		want := i + 1
		waitFor(t, func() bool {
			v := h.ctrl.CurrentSnapshot()
			return v.Current == nil && len(v.History) == want && h.poller.refresh.Load() == int32(want)
		})
	}
	close(stop)
	wg.Wait()
	if torn.Load() != 0 {
		t.Fatalf("observed %d torn views", torn.Load())
	}
}

func TestRunExperimentDuringConfigureReportsReconfiguration(t *testing.T) {
	backend := &stubBackend{configureEntered: make(chan struct{}), configureGate: make(chan struct{})}
	h := newHarness(t, backend, 0)

	done := make(chan error, 1)
	go func() {
		_, err := h.ctrl.ConfigureStrategy(context.Background())
		done <- err
	}()
	<-backend.configureEntered

	if _, inFlight := h.runner.Current(); inFlight {
		t.Fatalf("no experiment should be in flight")
	}
	_, err := h.ctrl.RunExperiment()
	if utils.KindOf(err) != utils.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if !errors.Is(err, utils.ErrConfigureInProgress) || errors.Is(err, utils.ErrExperimentRunning) {
		t.Fatalf("conflict should name the reconfiguration, got %v", err)
	}

	_, err = h.ctrl.ConfigureStrategy(context.Background())
	if !errors.Is(err, utils.ErrConfigureInProgress) {
		t.Fatalf("second configure should report reconfiguration, got %v", err)
	}

	close(backend.configureGate)
	if err := <-done; err != nil {
		t.Fatalf("configure: %v", err)
	}

	if _, err := h.ctrl.RunExperiment(); err != nil {
		t.Fatalf("run after configure: %v", err)
	}
	waitFor(t, func() bool { return len(h.ctrl.CurrentSnapshot().History) == 1 })
}

func TestLateTerminalResultKeepsNextPendingRun(t *testing.T) {
	h := newHarness(t, &stubBackend{}, 0)
	recovery := 0.7
	h.ctrl.applyRun(models.ExperimentRun{ID: "a", State: models.RunRunning})
	h.ctrl.applyRun(models.ExperimentRun{ID: "b", State: models.RunPending})
	h.ctrl.applyRun(models.ExperimentRun{ID: "a", State: models.RunSucceeded, RecoveryTimeSeconds: &recovery})

	view := h.ctrl.CurrentSnapshot()
	if view.Current == nil || view.Current.ID != "b" {
		t.Fatalf("pending run b was dropped: %+v", view.Current)
	}
	if len(view.History) != 1 || view.History[0].ID != "a" {
		t.Fatalf("expected run a in history, got %+v", view.History)
	}
}
