package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/MS-092/DS-RM-FP/internal/api"
	"github.com/MS-092/DS-RM-FP/internal/controller"
	"github.com/MS-092/DS-RM-FP/internal/models"
	"github.com/MS-092/DS-RM-FP/internal/utils"
)

type controllerStub struct {
	view      controller.View
	runErr    error
	faultErr  error
	injected  []models.FaultInjectionCommand
	lastDraft models.DraftUpdate
}

func (c *controllerStub) CurrentSnapshot() controller.View { return c.view }

func (c *controllerStub) UpdateConfigurationDraft(update models.DraftUpdate) controller.View {
	c.lastDraft = update
	c.view.Draft = c.view.Draft.Apply(update)
	return c.view
}

func (c *controllerStub) RunExperiment() (string, error) {
	if c.runErr != nil {
		return "", c.runErr
	}
	return "run-1", nil
}

func (c *controllerStub) InjectFault(_ context.Context, cmd models.FaultInjectionCommand) (models.FaultAck, error) {
	c.injected = append(c.injected, cmd)
	if c.faultErr != nil {
		return models.FaultAck{}, c.faultErr
	}
	return models.FaultAck{Kind: cmd.Kind, Message: "done"}, nil
}

func (c *controllerStub) ConfigureStrategy(context.Context) (models.ConfigureAck, error) {
	return models.ConfigureAck{Message: "ok", CurrentStrategy: string(c.view.Draft.Strategy)}, nil
}

func (c *controllerStub) Presets(context.Context) []models.Preset {
	return []models.Preset{{Name: "Hybrid Standard", Strategy: models.StrategyHybrid}}
}

func (c *controllerStub) ApplyPreset(_ context.Context, name string) (controller.View, error) {
	if name != "Hybrid Standard" {
		return controller.View{}, utils.NewValidationError("preset", "unknown")
	}
	c.view.Draft.Strategy = models.StrategyHybrid
	return c.view, nil
}

func TestStatusCodeMapping(t *testing.T) {
	cases := []struct {
		err  error
		want codes.Code
	}{
		{utils.NewValidationError("replicationFactor", "must be one of 2, 3, 5"), codes.InvalidArgument},
		{utils.NewConflictError("run experiment"), codes.Aborted},
		{utils.NewTransportError("fetch health", errors.New("dial tcp: refused")), codes.Unavailable},
		{utils.NewBackendError("run experiment", "Strategy not configured"), codes.FailedPrecondition},
		{fmt.Errorf("wrapped: %w", utils.NewConflictError("x")), codes.Aborted},
		{context.Canceled, codes.Canceled},
		{errors.New("mystery"), codes.Internal},
	}
	for _, tc := range cases {
		if got := StatusCode(tc.err); got != tc.want {
			t.Errorf("StatusCode(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestRunExperimentConflict(t *testing.T) {
	stub := &controllerStub{runErr: utils.NewConflictError("submit experiment")}
	service := NewControllerService(nil, stub)

	_, err := service.RunExperiment(context.Background(), &api.Empty{})
	if status.Code(err) != codes.Aborted {
		t.Fatalf("expected aborted, got %v", err)
	}
	if kind, retryable := api.ErrorKind(status.Convert(err)); kind != utils.KindConflict || retryable {
		t.Fatalf("expected non-retryable conflict details, got %q %v", kind, retryable)
	}
}

func TestInjectFaultRequiresConfirmation(t *testing.T) {
	stub := &controllerStub{}
	service := NewControllerService(nil, stub)

	_, err := service.InjectFault(context.Background(), &api.InjectFaultRequest{Kind: "pod_kill", TargetCount: 1})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	if len(stub.injected) != 0 {
		t.Fatalf("unconfirmed fault reached the controller")
	}

	ack, err := service.InjectFault(context.Background(), &api.InjectFaultRequest{Kind: "pod_kill", Confirmed: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ack.Kind != "pod_kill" || stub.injected[0].TargetCount != 1 {
		t.Fatalf("unexpected ack %+v / command %+v", ack, stub.injected[0])
	}
}

func TestInjectFaultUnknownKind(t *testing.T) {
	service := NewControllerService(nil, &controllerStub{})
	_, err := service.InjectFault(context.Background(), &api.InjectFaultRequest{Kind: "meteor", Confirmed: true})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestInjectFaultTransportError(t *testing.T) {
	stub := &controllerStub{faultErr: utils.NewTransportError("simulate failure", context.DeadlineExceeded)}
	service := NewControllerService(nil, stub)
	_, err := service.InjectFault(context.Background(), &api.InjectFaultRequest{Kind: "partition", TargetCount: 2, Confirmed: true})
	if status.Code(err) != codes.Unavailable {
		t.Fatalf("expected unavailable, got %v", err)
	}
	kind, retryable := api.ErrorKind(status.Convert(err))
	if kind != utils.KindTransport || !retryable {
		t.Fatalf("expected retryable transport details, got %q %v", kind, retryable)
	}
}

func TestUpdateDraftRejectsUnknownStrategy(t *testing.T) {
	stub := &controllerStub{}
	service := NewControllerService(nil, stub)
	bad := "sharding"
	if _, err := service.UpdateDraft(context.Background(), &api.UpdateDraftRequest{Strategy: &bad}); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}

	good, factor := "replication", 5
	view, err := service.UpdateDraft(context.Background(), &api.UpdateDraftRequest{Strategy: &good, ReplicationFactor: &factor})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Draft.Strategy != "replication" || view.Draft.ReplicationFactor != 5 || !view.Draft.CheckpointInert || view.Draft.ReplicationInert {
		t.Fatalf("unexpected draft: %+v", view.Draft)
	}
}

func TestListHistoryLimit(t *testing.T) {
	stub := &controllerStub{}
	for i := 0; i < 5; i++ {
		recovery := float64(i)
		stub.view.History = append(stub.view.History, models.ExperimentRun{
			ID:                  fmt.Sprintf("r%d", i),
			State:               models.RunSucceeded,
			RecoveryTimeSeconds: &recovery,
		})
	}
	service := NewControllerService(nil, stub)

	resp, err := service.ListHistory(context.Background(), &api.HistoryRequest{Limit: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Runs) != 2 || resp.Runs[0].ID != "r3" || resp.Runs[1].ID != "r4" {
		t.Fatalf("expected the two newest runs oldest first, got %+v", resp.Runs)
	}
	if _, err := service.ListHistory(context.Background(), &api.HistoryRequest{Limit: -1}); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected invalid argument for negative limit, got %v", err)
	}
}

func TestGetViewConvertsCurrentRun(t *testing.T) {
	stub := &controllerStub{view: controller.View{
		Current: &models.ExperimentRun{ID: "r1", State: models.RunRunning, Configuration: models.ExperimentConfiguration{Strategy: models.StrategyHybrid}},
	}}
	view, err := NewControllerService(nil, stub).GetView(context.Background(), &api.Empty{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Current == nil || view.Current.State != "running" || view.Current.RecoveryTimeSeconds != nil || view.Current.FinishedAt != nil {
		t.Fatalf("unexpected current run: %+v", view.Current)
	}
}

func TestApplyPreset(t *testing.T) {
	service := NewControllerService(nil, &controllerStub{})
	if _, err := service.ApplyPreset(context.Background(), &api.ApplyPresetRequest{}); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected invalid argument for empty name, got %v", err)
	}
	if _, err := service.ApplyPreset(context.Background(), &api.ApplyPresetRequest{Name: "nope"}); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected invalid argument for unknown preset, got %v", err)
	}
	view, err := service.ApplyPreset(context.Background(), &api.ApplyPresetRequest{Name: "Hybrid Standard"})
	if err != nil || view.Draft.Strategy != "hybrid" {
		t.Fatalf("unexpected result: %+v, %v", view, err)
	}
}
