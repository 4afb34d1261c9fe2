package services

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/MS-092/DS-RM-FP/internal/api"
	"github.com/MS-092/DS-RM-FP/internal/controller"
	"github.com/MS-092/DS-RM-FP/internal/models"
	"github.com/MS-092/DS-RM-FP/internal/tracing"
	"github.com/MS-092/DS-RM-FP/internal/utils"
)

// Controller is the controller surface the service exposes.
type Controller interface {
	CurrentSnapshot() controller.View
	UpdateConfigurationDraft(update models.DraftUpdate) controller.View
	RunExperiment() (string, error)
	InjectFault(ctx context.Context, cmd models.FaultInjectionCommand) (models.FaultAck, error)
	ConfigureStrategy(ctx context.Context) (models.ConfigureAck, error)
	Presets(ctx context.Context) []models.Preset
	ApplyPreset(ctx context.Context, name string) (controller.View, error)
}

// ControllerService implements api.ControllerServer on top of the controller.
type ControllerService struct {
	logger *slog.Logger
	ctrl   Controller
}

var _ api.ControllerServer = (*ControllerService)(nil)

// NewControllerService constructs the service facade.
func NewControllerService(logger *slog.Logger, ctrl Controller) *ControllerService {
	return &ControllerService{logger: utils.Component(logger, "service"), ctrl: ctrl}
}

// GetView returns the latest read model.
func (s *ControllerService) GetView(_ context.Context, _ *api.Empty) (*api.View, error) {
	view := toWireView(s.ctrl.CurrentSnapshot())
	return &view, nil
}

// UpdateDraft applies a partial draft edit. Values are validated when a run starts.
func (s *ControllerService) UpdateDraft(_ context.Context, req *api.UpdateDraftRequest) (*api.View, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request cannot be nil")
	}
	update, err := api.FromWireDraftUpdate(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	view := toWireView(s.ctrl.UpdateConfigurationDraft(update))
	return &view, nil
}

// RunExperiment validates the draft and submits it.
func (s *ControllerService) RunExperiment(ctx context.Context, _ *api.Empty) (*api.RunExperimentResponse, error) {
	_, span := tracing.StartSpan(ctx, "controller.run_experiment")
	id, err := s.ctrl.RunExperiment()
	span.End(err)
	if err != nil {
		return nil, s.toStatus("run experiment", err)
	}
	return &api.RunExperimentResponse{RunID: id}, nil
}

// InjectFault dispatches a confirmed fault command.
func (s *ControllerService) InjectFault(ctx context.Context, req *api.InjectFaultRequest) (*api.FaultAck, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request cannot be nil")
	}
	if !req.Confirmed {
		return nil, status.Error(codes.InvalidArgument, "fault injection requires confirmation")
	}
	cmd, err := api.FromWireFaultRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	ctx, span := tracing.StartSpan(ctx, "controller.inject_fault", attribute.String("kind", string(cmd.Kind)), attribute.Int("target_count", cmd.TargetCount))
	ack, err := s.ctrl.InjectFault(ctx, cmd)
	span.End(err)
	if err != nil {
		return nil, s.toStatus("inject fault", err)
	}
	out := api.ToWireFaultAck(ack)
	return &out, nil
}

// ConfigureStrategy switches the backend to the draft's strategy.
func (s *ControllerService) ConfigureStrategy(ctx context.Context, _ *api.Empty) (*api.ConfigureResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "controller.configure_strategy")
	ack, err := s.ctrl.ConfigureStrategy(ctx)
	span.End(err)
	if err != nil {
		return nil, s.toStatus("configure strategy", err)
	}
	return &api.ConfigureResponse{Message: ack.Message, CurrentStrategy: ack.CurrentStrategy}, nil
}

// ListPresets returns backend presets or the local catalog.
func (s *ControllerService) ListPresets(ctx context.Context, _ *api.Empty) (*api.PresetsResponse, error) {
	return &api.PresetsResponse{Presets: api.ToWirePresets(s.ctrl.Presets(ctx))}, nil
}

// ApplyPreset copies a named preset into the draft.
func (s *ControllerService) ApplyPreset(ctx context.Context, req *api.ApplyPresetRequest) (*api.View, error) {
	if req == nil || req.Name == "" {
		return nil, status.Error(codes.InvalidArgument, "preset name is required")
	}
	view, err := s.ctrl.ApplyPreset(ctx, req.Name)
	if err != nil {
		return nil, s.toStatus("apply preset", err)
	}
	out := toWireView(view)
	return &out, nil
}

// ListHistory returns the most recent completed runs, oldest first.
func (s *ControllerService) ListHistory(_ context.Context, req *api.HistoryRequest) (*api.HistoryResponse, error) {
	if req == nil {
		req = &api.HistoryRequest{}
	}
	if req.Limit < 0 {
		return nil, status.Error(codes.InvalidArgument, "limit must be >= 0")
	}
	view := s.ctrl.CurrentSnapshot()
	runs := view.History
	if req.Limit > 0 && len(runs) > req.Limit {
		runs = runs[len(runs)-req.Limit:]
	}
	return &api.HistoryResponse{Runs: api.ToWireRuns(runs), Recovery: api.ToWireRecovery(view.Recovery)}, nil
}

// toStatus maps the controller's error taxonomy onto gRPC codes and attaches
// the kind as error details.
func (s *ControllerService) toStatus(op string, err error) error {
	code := StatusCode(err)
	if code == codes.Internal {
		s.logger.Error(op+" failed", slog.Any("error", err))
	} else {
		s.logger.Debug(op+" rejected", slog.String("code", code.String()), slog.Any("error", err))
	}
	return api.StatusWithKind(code, err.Error(), utils.KindOf(err), utils.IsRetryable(err))
}

// StatusCode returns the gRPC code for a controller error.
func StatusCode(err error) codes.Code {
	switch utils.KindOf(err) {
	case utils.KindValidation:
		return codes.InvalidArgument
	case utils.KindConflict:
		return codes.Aborted
	case utils.KindTransport:
		return codes.Unavailable
	case utils.KindBackend:
		return codes.FailedPrecondition
	}
	if errors.Is(err, context.Canceled) {
		return codes.Canceled
	}
	return codes.Internal
}

func toWireView(v controller.View) api.View {
	out := api.View{
		Snapshot: api.ToWireSnapshot(v.Snapshot),
		Draft:    api.ToWireDraft(v.Draft),
		History:  api.ToWireRuns(v.History),
		Recovery: api.ToWireRecovery(v.Recovery),
	}
	if v.Current != nil {
		run := api.ToWireRun(*v.Current)
		out.Current = &run
	}
	if v.LastFault != nil {
		ack := api.ToWireFaultAck(*v.LastFault)
		out.LastFault = &ack
	}
	return out
}
