package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MS-092/DS-RM-FP/internal/metrics"
	"github.com/MS-092/DS-RM-FP/internal/models"
	"github.com/MS-092/DS-RM-FP/internal/utils"
)

// Source fetches the two independent status documents.
type Source interface {
	FetchHealth(ctx context.Context) (models.HealthSnapshot, error)
	FetchFaultToleranceStatus(ctx context.Context) (models.FaultToleranceStatus, error)
}

// Result is the outcome of one poll cycle. Both halves are always present;
// a failed half carries its error instead of a value.
type Result struct {
	Tick      uint64
	StartedAt time.Time
	Health    models.HealthSnapshot
	Status    models.FaultToleranceStatus
	HealthErr error
	StatusErr error
}

// Observer receives every published result.
type Observer func(Result)

// Options configures a Poller.
type Options struct {
	// Timeout bounds each fetch. Zero leaves bounding to the source.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Poller periodically fetches health and fault-tolerance status concurrently
// and publishes each pair as a single Result.
type Poller struct {
	source  Source
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time

	tick atomic.Uint64

	deliverMu sync.RWMutex
	observer  Observer

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a stopped poller.
func New(source Source, opts Options) *Poller {
	return &Poller{
		source:  source,
		timeout: opts.Timeout,
		logger:  utils.Component(opts.Logger, "poller"),
		now:     time.Now,
	}
}

// Register installs the single observer, replacing any previous one.
func (p *Poller) Register(observer Observer) {
	p.deliverMu.Lock()
	p.observer = observer
	p.deliverMu.Unlock()
}

// Start runs one cycle immediately and then one per interval until Stop.
// Calling Start on a running poller is a no-op.
func (p *Poller) Start(interval time.Duration) error {
	if interval <= 0 {
		return errors.New("poll interval must be > 0")
	}
	p.runMu.Lock()
	defer p.runMu.Unlock()
	if p.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(ctx, interval, p.done)
	return nil
}

func (p *Poller) run(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.cycle(ctx)
		}
	}
}

// Stop halts the timer and detaches the observer. No result is delivered after Stop returns.
func (p *Poller) Stop() {
	p.runMu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.runMu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	p.deliverMu.Lock()
	p.observer = nil
	p.deliverMu.Unlock()
}

// RefreshNow performs one out-of-cycle fetch and publishes it. The periodic timer is untouched.
func (p *Poller) RefreshNow(ctx context.Context) Result {
	return p.cycle(ctx)
}

func (p *Poller) cycle(ctx context.Context) Result {
	res := p.fetch(ctx)
	if errors.Is(ctx.Err(), context.Canceled) {
		// Stopped or abandoned mid-cycle; the fetch errors say nothing about the backend.
		return res
	}
	p.deliver(res)
	return res
}

// fetch issues both requests concurrently and waits for both.
func (p *Poller) fetch(ctx context.Context) Result {
	res := Result{Tick: p.tick.Add(1), StartedAt: p.now()}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		fctx, cancel := p.bound(ctx)
		defer cancel()
		res.Health, res.HealthErr = p.source.FetchHealth(fctx)
	}()
	go func() {
		defer wg.Done()
		fctx, cancel := p.bound(ctx)
		defer cancel()
		res.Status, res.StatusErr = p.source.FetchFaultToleranceStatus(fctx)
	}()
	wg.Wait()

	metrics.ObservePoll(res.HealthErr == nil, res.StatusErr == nil)
	if res.HealthErr != nil {
		p.logger.Warn("health fetch failed", slog.Uint64("tick", res.Tick), slog.Any("error", res.HealthErr))
	}
	if res.StatusErr != nil {
		p.logger.Warn("fault-tolerance status fetch failed", slog.Uint64("tick", res.Tick), slog.Any("error", res.StatusErr))
	}
	return res
}

func (p *Poller) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.timeout)
}

func (p *Poller) deliver(res Result) {
	p.deliverMu.RLock()
	defer p.deliverMu.RUnlock()
	if p.observer != nil {
		p.observer(res)
	}
}
