package faults

import (
	"context"
	"log/slog"

	"github.com/MS-092/DS-RM-FP/internal/metrics"
	"github.com/MS-092/DS-RM-FP/internal/models"
	"github.com/MS-092/DS-RM-FP/internal/poller"
	"github.com/MS-092/DS-RM-FP/internal/utils"
)

// Backend dispatches disruptive commands.
type Backend interface {
	SimulateFailure(ctx context.Context, kind models.FaultKind, targetCount int) (models.FaultAck, error)
	Recover(ctx context.Context) (models.FaultAck, error)
}

// Refresher triggers an out-of-cycle status fetch.
type Refresher interface {
	RefreshNow(ctx context.Context) poller.Result
}

// Injector sends one-shot fault commands. Operator confirmation is the caller's job.
type Injector struct {
	backend   Backend
	refresher Refresher
	logger    *slog.Logger
}

// NewInjector creates an Injector.
func NewInjector(backend Backend, refresher Refresher, logger *slog.Logger) *Injector {
	return &Injector{backend: backend, refresher: refresher, logger: utils.Component(logger, "faults")}
}

// Inject validates and dispatches cmd exactly once. Errors are returned as the
// backend client produced them; nothing is retried.
func (i *Injector) Inject(ctx context.Context, cmd models.FaultInjectionCommand) (models.FaultAck, error) {
	kind, err := models.ParseFaultKind(string(cmd.Kind))
	if err != nil {
		return models.FaultAck{}, utils.NewValidationError("kind", err.Error())
	}
	if cmd.TargetCount < 1 {
		return models.FaultAck{}, utils.NewValidationError("targetCount", "must be >= 1")
	}

	var ack models.FaultAck
	if kind == models.FaultRecover {
		ack, err = i.backend.Recover(ctx)
	} else {
		ack, err = i.backend.SimulateFailure(ctx, kind, cmd.TargetCount)
	}
	metrics.ObserveFault(string(kind), err)
	if err != nil {
		i.logger.Warn("fault injection failed", slog.String("kind", string(kind)), slog.Int("target_count", cmd.TargetCount), slog.Any("error", err))
		return models.FaultAck{}, err
	}
	i.logger.Info("fault injected", slog.String("kind", string(kind)), slog.Int("target_count", cmd.TargetCount))

	if i.refresher != nil {
		i.refresher.RefreshNow(context.WithoutCancel(ctx))
	}
	return ack, nil
}
