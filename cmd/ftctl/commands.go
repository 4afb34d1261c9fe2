package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/MS-092/DS-RM-FP/internal/api"
)

type controllerClient interface {
	GetView(ctx context.Context) (*api.View, error)
	UpdateDraft(ctx context.Context, req api.UpdateDraftRequest) (*api.View, error)
	RunExperiment(ctx context.Context) (*api.RunExperimentResponse, error)
	InjectFault(ctx context.Context, req api.InjectFaultRequest) (*api.FaultAck, error)
	ConfigureStrategy(ctx context.Context) (*api.ConfigureResponse, error)
	ListPresets(ctx context.Context) (*api.PresetsResponse, error)
	ApplyPreset(ctx context.Context, name string) (*api.View, error)
	ListHistory(ctx context.Context, limit int) (*api.HistoryResponse, error)
	Close() error
}

type cli struct {
	in      *bufio.Reader
	out     io.Writer
	addr    string
	timeout time.Duration
	asJSON  bool
	dial    func(addr string, timeout time.Duration) (controllerClient, error)
}

func newRoot(in io.Reader, out io.Writer) *cobra.Command {
	c := &cli{
		in:  bufio.NewReader(in),
		out: out,
		dial: func(addr string, timeout time.Duration) (controllerClient, error) {
			return api.Dial(addr, timeout)
		},
	}
	return c.root()
}

func (c *cli) root() *cobra.Command {
	root := &cobra.Command{
		Use:           "ftctl",
		Short:         "Operate the fault-tolerance experiment controller",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	defaultAddr := "localhost:50051"
	if v := os.Getenv("FTCTL_ADDR"); v != "" {
		defaultAddr = v
	}
	root.PersistentFlags().StringVar(&c.addr, "addr", defaultAddr, "controller gRPC address")
	root.PersistentFlags().DurationVar(&c.timeout, "timeout", 70*time.Second, "per-call timeout")
	root.PersistentFlags().BoolVar(&c.asJSON, "json", false, "print raw JSON responses")

	root.AddCommand(
		c.statusCmd(),
		c.draftCmd(),
		c.runCmd(),
		c.injectCmd(),
		c.recoverCmd(),
		c.configureCmd(),
		c.presetsCmd(),
		c.applyPresetCmd(),
		c.historyCmd(),
	)
	return root
}

// withClient dials, runs fn and closes the connection.
func (c *cli) withClient(cmd *cobra.Command, fn func(ctx context.Context, client controllerClient) error) error {
	client, err := c.dial(c.addr, c.timeout)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", c.addr, err)
	}
	defer client.Close()
	return fn(cmd.Context(), client)
}

func (c *cli) print(v any, human func(io.Writer)) error {
	if c.asJSON {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	human(c.out)
	return nil
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show backend health, active strategy, draft and in-flight run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withClient(cmd, func(ctx context.Context, client controllerClient) error {
				view, err := client.GetView(ctx)
				if err != nil {
					return err
				}
				return c.print(view, func(w io.Writer) { renderView(w, view) })
			})
		},
	}
}

func (c *cli) draftCmd() *cobra.Command {
	var (
		strategy                string
		interval, factor, items int
	)
	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Edit the configuration draft; unset flags keep their values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var req api.UpdateDraftRequest
			flags := cmd.Flags()
			if flags.Changed("strategy") {
				req.Strategy = &strategy
			}
			if flags.Changed("checkpoint-interval") {
				req.CheckpointIntervalSeconds = &interval
			}
			if flags.Changed("replication-factor") {
				req.ReplicationFactor = &factor
			}
			if flags.Changed("workload-size") {
				req.WorkloadSize = &items
			}
			return c.withClient(cmd, func(ctx context.Context, client controllerClient) error {
				view, err := client.UpdateDraft(ctx, req)
				if err != nil {
					return err
				}
				return c.print(view.Draft, func(w io.Writer) { renderDraft(w, view.Draft) })
			})
		},
	}
	cmd.Flags().StringVar(&strategy, "strategy", "", "baseline|checkpointing|replication|hybrid")
	cmd.Flags().IntVar(&interval, "checkpoint-interval", 0, "checkpoint interval in seconds (15-120, step 15)")
	cmd.Flags().IntVar(&factor, "replication-factor", 0, "replication factor (2, 3 or 5)")
	cmd.Flags().IntVar(&items, "workload-size", 0, "number of data items (> 0)")
	return cmd
}

func (c *cli) runCmd() *cobra.Command {
	var (
		wait     bool
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an experiment with the current draft",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withClient(cmd, func(ctx context.Context, client controllerClient) error {
				resp, err := client.RunExperiment(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.out, "submitted run %s\n", resp.RunID)
				if !wait {
					return nil
				}
				run, err := waitForRun(ctx, client, resp.RunID, interval)
				if err != nil {
					return err
				}
				return c.print(run, func(w io.Writer) { renderRun(w, *run) })
			})
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "wait for the run to finish")
	cmd.Flags().DurationVar(&interval, "poll", time.Second, "view polling interval while waiting")
	return cmd
}

// waitForRun polls the view until runID shows up in history.
func waitForRun(ctx context.Context, client controllerClient, runID string, interval time.Duration) (*api.Run, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		view, err := client.GetView(ctx)
		if err != nil {
			return nil, err
		}
		for i := len(view.History) - 1; i >= 0; i-- {
			if view.History[i].ID == runID {
				return &view.History[i], nil
			}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *cli) injectCmd() *cobra.Command {
	var (
		targets int
		yes     bool
	)
	cmd := &cobra.Command{
		Use:       "inject KIND",
		Short:     "Inject a fault (pod_kill, partition, latency)",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"pod_kill", "partition", "latency"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.sendFault(cmd, api.InjectFaultRequest{Kind: args[0], TargetCount: targets}, yes)
		},
	}
	cmd.Flags().IntVar(&targets, "targets", 1, "number of nodes to affect")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func (c *cli) recoverCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Ask the backend to recover from injected faults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.sendFault(cmd, api.InjectFaultRequest{Kind: "recover", TargetCount: 1}, yes)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func (c *cli) sendFault(cmd *cobra.Command, req api.InjectFaultRequest, yes bool) error {
	if !yes {
		ok, err := c.confirm(fmt.Sprintf("Send %s to %d node(s)? [y/N] ", req.Kind, req.TargetCount))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(c.out, "aborted")
			return nil
		}
	}
	req.Confirmed = true
	return c.withClient(cmd, func(ctx context.Context, client controllerClient) error {
		ack, err := client.InjectFault(ctx, req)
		if err != nil {
			return err
		}
		return c.print(ack, func(w io.Writer) { renderFaultAck(w, *ack) })
	})
}

func (c *cli) confirm(prompt string) (bool, error) {
	fmt.Fprint(c.out, prompt)
	line, err := c.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func (c *cli) configureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "configure",
		Short: "Switch the backend to the draft's strategy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withClient(cmd, func(ctx context.Context, client controllerClient) error {
				resp, err := client.ConfigureStrategy(ctx)
				if err != nil {
					return err
				}
				return c.print(resp, func(w io.Writer) {
					fmt.Fprintf(w, "%s (current strategy: %s)\n", resp.Message, resp.CurrentStrategy)
				})
			})
		},
	}
}

func (c *cli) presetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List experiment presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withClient(cmd, func(ctx context.Context, client controllerClient) error {
				resp, err := client.ListPresets(ctx)
				if err != nil {
					return err
				}
				return c.print(resp, func(w io.Writer) { renderPresets(w, resp.Presets) })
			})
		},
	}
}

func (c *cli) applyPresetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply-preset NAME",
		Short: "Copy a preset into the draft",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.Join(args, " ")
			return c.withClient(cmd, func(ctx context.Context, client controllerClient) error {
				view, err := client.ApplyPreset(ctx, name)
				if err != nil {
					return err
				}
				return c.print(view.Draft, func(w io.Writer) { renderDraft(w, view.Draft) })
			})
		},
	}
}

func (c *cli) historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List completed runs and recovery statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withClient(cmd, func(ctx context.Context, client controllerClient) error {
				resp, err := client.ListHistory(ctx, limit)
				if err != nil {
					return err
				}
				return c.print(resp, func(w io.Writer) { renderHistory(w, resp) })
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of runs to show (0 for all)")
	return cmd
}
