package api

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client calls a remote controller over gRPC with the JSON codec.
type Client struct {
	conn    *grpc.ClientConn
	timeout time.Duration
}

// Dial creates a client for the controller at target. Extra options are appended
// after the defaults, which is how tests inject a bufconn dialer.
func Dial(target string, timeout time.Duration, opts ...grpc.DialOption) (*Client, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	}
	dialOpts = append(dialOpts, opts...)
	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, timeout: timeout}, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.conn.Invoke(ctx, fullMethod(method), in, out)
}

// GetView fetches the controller's read model.
func (c *Client) GetView(ctx context.Context) (*View, error) {
	out := new(View)
	return out, c.invoke(ctx, "GetView", &Empty{}, out)
}

// UpdateDraft edits the configuration draft.
func (c *Client) UpdateDraft(ctx context.Context, req UpdateDraftRequest) (*View, error) {
	out := new(View)
	return out, c.invoke(ctx, "UpdateDraft", &req, out)
}

// RunExperiment submits the current draft.
func (c *Client) RunExperiment(ctx context.Context) (*RunExperimentResponse, error) {
	out := new(RunExperimentResponse)
	return out, c.invoke(ctx, "RunExperiment", &Empty{}, out)
}

// InjectFault sends a confirmed fault command.
func (c *Client) InjectFault(ctx context.Context, req InjectFaultRequest) (*FaultAck, error) {
	out := new(FaultAck)
	return out, c.invoke(ctx, "InjectFault", &req, out)
}

// ConfigureStrategy switches the backend to the draft's strategy.
func (c *Client) ConfigureStrategy(ctx context.Context) (*ConfigureResponse, error) {
	out := new(ConfigureResponse)
	return out, c.invoke(ctx, "ConfigureStrategy", &Empty{}, out)
}

// ListPresets lists the available presets.
func (c *Client) ListPresets(ctx context.Context) (*PresetsResponse, error) {
	out := new(PresetsResponse)
	return out, c.invoke(ctx, "ListPresets", &Empty{}, out)
}

// ApplyPreset copies a preset into the draft.
func (c *Client) ApplyPreset(ctx context.Context, name string) (*View, error) {
	out := new(View)
	return out, c.invoke(ctx, "ApplyPreset", &ApplyPresetRequest{Name: name}, out)
}

// ListHistory returns up to limit completed runs.
func (c *Client) ListHistory(ctx context.Context, limit int) (*HistoryResponse, error) {
	out := new(HistoryResponse)
	return out, c.invoke(ctx, "ListHistory", &HistoryRequest{Limit: limit}, out)
}
