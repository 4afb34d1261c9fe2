package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/MS-092/DS-RM-FP/internal/cache"
	"github.com/MS-092/DS-RM-FP/internal/models"
	"github.com/MS-092/DS-RM-FP/internal/tracing"
	"github.com/MS-092/DS-RM-FP/internal/utils"
)

const presetsCacheKey = "ftctl:presets:v1"

// Paths lists the backend endpoints relative to the base URL.
type Paths struct {
	Health          string
	Status          string
	RunExperiment   string
	SimulateFailure string
	Recover         string
	Configure       string
	Presets         string
}

// Options configures a BackendClient.
type Options struct {
	BaseURL           string
	Paths             Paths
	PollTimeout       time.Duration
	ExperimentTimeout time.Duration
	FaultTimeout      time.Duration
	Cache             cache.Provider
	PresetsTTL        time.Duration
	Logger            *slog.Logger
}

// BackendClient wraps the fault-tolerance backend's REST API.
type BackendClient struct {
	baseURL           string
	paths             Paths
	pollTimeout       time.Duration
	experimentTimeout time.Duration
	faultTimeout      time.Duration
	cache             cache.Provider
	presetsTTL        time.Duration
	logger            *slog.Logger
	httpClient        *http.Client
	now               func() time.Time
}

// NewBackendClient constructs a client targeting the configured backend.
func NewBackendClient(opts Options) *BackendClient {
	provider := opts.Cache
	if provider == nil {
		provider = cache.NoopProvider{}
	}
	return &BackendClient{
		baseURL:           strings.TrimRight(opts.BaseURL, "/"),
		paths:             opts.Paths,
		pollTimeout:       opts.PollTimeout,
		experimentTimeout: opts.ExperimentTimeout,
		faultTimeout:      opts.FaultTimeout,
		cache:             provider,
		presetsTTL:        opts.PresetsTTL,
		logger:            utils.Component(opts.Logger, "backend"),
		// Per-call deadlines come from the context; the client itself has no timeout.
		httpClient: &http.Client{},
		now:        time.Now,
	}
}

// FetchHealth issues GET health bounded by the poll timeout.
func (c *BackendClient) FetchHealth(ctx context.Context) (models.HealthSnapshot, error) {
	const op = "fetch health"
	ctx, cancel := withTimeout(ctx, c.pollTimeout)
	defer cancel()

	var payload healthPayload
	if err := c.getJSON(ctx, op, c.resolvePath(c.paths.Health), &payload); err != nil {
		return models.HealthSnapshot{}, err
	}
	return payload.snapshot(c.now()), nil
}

// FetchFaultToleranceStatus issues GET status bounded by the poll timeout.
func (c *BackendClient) FetchFaultToleranceStatus(ctx context.Context) (models.FaultToleranceStatus, error) {
	const op = "fetch fault-tolerance status"
	ctx, cancel := withTimeout(ctx, c.pollTimeout)
	defer cancel()

	var payload statusPayload
	if err := c.getJSON(ctx, op, c.resolvePath(c.paths.Status), &payload); err != nil {
		return models.FaultToleranceStatus{}, err
	}
	strategy, err := models.ParseStrategy(payload.Strategy)
	if err != nil {
		return models.FaultToleranceStatus{}, utils.NewBackendError(op, err.Error())
	}
	status := models.FaultToleranceStatus{
		Strategy:                strategy,
		StrategyDetails:         payload.StrategyDetails,
		LastRecoveryTimeSeconds: lastRecoveryTime(payload.Stats),
	}
	if payload.IsHealthy != nil {
		status.IsHealthy = *payload.IsHealthy
	}
	return status, nil
}

// RunExperiment submits cfg and blocks until the backend reports the outcome or the
// experiment timeout elapses. accepted is invoked once the request has been written.
func (c *BackendClient) RunExperiment(ctx context.Context, cfg models.ExperimentConfiguration, accepted func()) (models.ExperimentOutcome, error) {
	const op = "run experiment"
	ctx, cancel := withTimeout(ctx, c.experimentTimeout)
	defer cancel()

	if accepted != nil {
		var once sync.Once
		ctx = httptrace.WithClientTrace(ctx, &httptrace.ClientTrace{
			WroteRequest: func(info httptrace.WroteRequestInfo) {
				if info.Err == nil {
					once.Do(accepted)
				}
			},
		})
	}

	request := experimentRequest{
		Strategy:           string(cfg.Strategy),
		DataItems:          cfg.WorkloadSize,
		CheckpointInterval: cfg.CheckpointIntervalSeconds,
		ReplicationFactor:  cfg.ReplicationFactor,
		TriggerCheckpoint:  cfg.TriggerCheckpoint,
	}
	var payload experimentPayload
	if err := c.postJSON(ctx, op, c.resolvePath(c.paths.RunExperiment), request, &payload); err != nil {
		return models.ExperimentOutcome{}, err
	}

	recovery := firstNonNil(payload.RecoveryTimeSeconds, payload.RecoveryTime)
	if recovery == nil || *recovery < 0 {
		return models.ExperimentOutcome{}, utils.NewBackendError(op, "completed without a recovery time")
	}
	return models.ExperimentOutcome{
		RecoveryTimeSeconds:     *recovery,
		DataRecoveryRatePercent: payload.DataRecoveryRatePercent,
		ItemsRecovered:          payload.ItemsRecovered,
		StoreTimeSeconds:        payload.StoreTimeSeconds,
	}, nil
}

// SimulateFailure sends a disruptive command. It is never retried.
func (c *BackendClient) SimulateFailure(ctx context.Context, kind models.FaultKind, targetCount int) (models.FaultAck, error) {
	const op = "simulate failure"
	ctx, cancel := withTimeout(ctx, c.faultTimeout)
	defer cancel()

	request := failureRequest{FailureType: string(kind), NodeCount: targetCount}
	var payload failurePayload
	if err := c.postJSON(ctx, op, c.resolvePath(c.paths.SimulateFailure), request, &payload); err != nil {
		return models.FaultAck{}, err
	}
	if payload.Success != nil && !*payload.Success {
		return models.FaultAck{}, utils.NewBackendError(op, firstNonEmpty(payload.Message, "backend reported failure"))
	}
	return models.FaultAck{
		Kind:           kind,
		Message:        payload.Message,
		IsHealthy:      payload.IsHealthy,
		AcknowledgedAt: c.now(),
	}, nil
}

// Recover asks the backend to recover from the last simulated failure.
func (c *BackendClient) Recover(ctx context.Context) (models.FaultAck, error) {
	const op = "recover"
	ctx, cancel := withTimeout(ctx, c.faultTimeout)
	defer cancel()

	var payload recoverPayload
	if err := c.postJSON(ctx, op, c.resolvePath(c.paths.Recover), nil, &payload); err != nil {
		return models.FaultAck{}, err
	}
	if payload.Success != nil && !*payload.Success {
		return models.FaultAck{}, utils.NewBackendError(op, "backend reported failure")
	}
	message := "recovered"
	if payload.Strategy != "" {
		message = fmt.Sprintf("recovered %s strategy", payload.Strategy)
	}
	return models.FaultAck{
		Kind:                models.FaultRecover,
		Message:             message,
		IsHealthy:           payload.IsHealthy,
		RecoveryTimeSeconds: firstNonNil(payload.RecoveryTimeSeconds, payload.RecoveryTime),
		AcknowledgedAt:      c.now(),
	}, nil
}

// Configure switches the backend's active strategy.
func (c *BackendClient) Configure(ctx context.Context, cfg models.ExperimentConfiguration) (models.ConfigureAck, error) {
	const op = "configure strategy"
	ctx, cancel := withTimeout(ctx, c.faultTimeout)
	defer cancel()

	request := configureRequest{
		Strategy:           string(cfg.Strategy),
		CheckpointInterval: cfg.CheckpointIntervalSeconds,
		ReplicationFactor:  cfg.ReplicationFactor,
	}
	var payload configurePayload
	if err := c.postJSON(ctx, op, c.resolvePath(c.paths.Configure), request, &payload); err != nil {
		return models.ConfigureAck{}, err
	}
	if payload.Success != nil && !*payload.Success {
		return models.ConfigureAck{}, utils.NewBackendError(op, firstNonEmpty(payload.Message, "backend reported failure"))
	}
	return models.ConfigureAck{Message: payload.Message, CurrentStrategy: payload.CurrentStrategy}, nil
}

// FetchPresets returns the backend's experiment presets, served from cache when fresh.
func (c *BackendClient) FetchPresets(ctx context.Context) ([]models.Preset, error) {
	const op = "fetch presets"
	if cached, err := c.cache.Get(ctx, presetsCacheKey); err == nil {
		var presets []models.Preset
		if err := json.Unmarshal(cached, &presets); err == nil {
			return presets, nil
		}
		_ = c.cache.Del(ctx, presetsCacheKey)
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		c.logger.Warn("preset cache read failed", slog.Any("error", err))
	}

	ctx, cancel := withTimeout(ctx, c.pollTimeout)
	defer cancel()

	var payload presetsPayload
	if err := c.getJSON(ctx, op, c.resolvePath(c.paths.Presets), &payload); err != nil {
		return nil, err
	}

	presets := make([]models.Preset, 0, len(payload.Presets))
	for _, p := range payload.Presets {
		strategy, err := models.ParseStrategy(p.Strategy)
		if err != nil {
			c.logger.Warn("skipping preset with unknown strategy", slog.String("preset", p.Name), slog.String("strategy", p.Strategy))
			continue
		}
		presets = append(presets, models.Preset{
			Name:                      p.Name,
			Description:               p.Description,
			Strategy:                  strategy,
			CheckpointIntervalSeconds: p.CheckpointInterval,
			ReplicationFactor:         p.ReplicationFactor,
			WorkloadSize:              p.DataItems,
		})
	}

	if data, err := json.Marshal(presets); err == nil {
		if err := c.cache.Set(ctx, presetsCacheKey, data, c.presetsTTL); err != nil {
			c.logger.Warn("preset cache write failed", slog.Any("error", err))
		}
	}
	return presets, nil
}

func (c *BackendClient) resolvePath(p string) string {
	if c.baseURL == "" {
		return ""
	}
	cleaned := "/" + strings.TrimLeft(p, "/")
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL + cleaned
	}
	u.Path = path.Join(u.Path, cleaned)
	return u.String()
}

func (c *BackendClient) getJSON(ctx context.Context, op, endpoint string, out any) error {
	return c.do(ctx, op, http.MethodGet, endpoint, nil, out)
}

func (c *BackendClient) postJSON(ctx context.Context, op, endpoint string, payload any, out any) error {
	return c.do(ctx, op, http.MethodPost, endpoint, payload, out)
}

// do performs one request and classifies the failure: anything that prevented a
// response, plus gateway statuses, is a transport error; other non-2xx responses
// are backend errors carrying the backend's detail verbatim.
func (c *BackendClient) do(ctx context.Context, op, method, endpoint string, payload any, out any) (err error) {
	if endpoint == "" {
		return utils.NewAppError(op, "backend base URL not configured", nil)
	}
	ctx, span := tracing.StartSpan(ctx, "backend."+strings.ReplaceAll(op, " ", "_"),
		attribute.String("http.method", method),
		attribute.String("http.url", endpoint),
	)
	defer func() { span.End(err) }()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return utils.NewAppError(op, "marshal payload", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return utils.NewAppError(op, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return utils.NewTransportError(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return utils.NewTransportError(op, err)
	}

	switch {
	case resp.StatusCode == http.StatusBadGateway,
		resp.StatusCode == http.StatusServiceUnavailable,
		resp.StatusCode == http.StatusGatewayTimeout:
		return utils.NewTransportError(op, fmt.Errorf("backend returned %s", resp.Status))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return utils.NewBackendError(op, errorDetail(resp.Status, raw))
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &utils.AppError{Op: op, Msg: "decode response", Kind: utils.KindBackend, Err: err}
	}
	return nil
}

// errorDetail extracts the FastAPI-style {"detail": ...} message, falling back to the raw body.
func errorDetail(status string, raw []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Detail) > 0 {
		var text string
		if err := json.Unmarshal(envelope.Detail, &text); err == nil {
			return text
		}
		return string(envelope.Detail)
	}
	if trimmed := strings.TrimSpace(string(raw)); trimmed != "" {
		return trimmed
	}
	return fmt.Sprintf("backend returned %s", status)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstNonNil(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
