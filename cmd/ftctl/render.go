package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/MS-092/DS-RM-FP/internal/api"
)

func renderView(w io.Writer, v *api.View) {
	s := v.Snapshot
	fmt.Fprintf(w, "Backend health: %s", s.OverallStatus)
	if s.HealthError != "" {
		fmt.Fprintf(w, " (unreachable: %s)", s.HealthError)
	}
	fmt.Fprintln(w)

	names := make([]string, 0, len(s.Components))
	for name := range s.Components {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-16s %s\n", name, s.Components[name])
	}

	strategy := s.Strategy
	if strategy == "" {
		strategy = "unknown"
	}
	fmt.Fprintf(w, "Active strategy: %s", strategy)
	if s.StatusStale {
		fmt.Fprint(w, " (stale)")
	}
	fmt.Fprintln(w)
	if s.StatusError != "" {
		fmt.Fprintf(w, "  status error: %s\n", s.StatusError)
	}
	if s.LastRecoveryTimeSeconds != nil {
		fmt.Fprintf(w, "Last recovery: %.2fs\n", *s.LastRecoveryTimeSeconds)
	}

	fmt.Fprintln(w)
	renderDraft(w, v.Draft)

	if v.Current != nil {
		fmt.Fprintf(w, "\nIn flight: %s (%s, %s)\n", v.Current.ID, v.Current.Strategy, v.Current.State)
	}
	if v.LastFault != nil {
		fmt.Fprintf(w, "Last fault: %s %s\n", v.LastFault.Kind, v.LastFault.Message)
	}
}

func renderDraft(w io.Writer, d api.Draft) {
	fmt.Fprintf(w, "Draft: strategy=%s workload=%d\n", d.Strategy, d.WorkloadSize)
	fmt.Fprintf(w, "  checkpoint interval: %ds%s\n", d.CheckpointIntervalSeconds, inertSuffix(d.CheckpointInert))
	fmt.Fprintf(w, "  replication factor:  %d%s\n", d.ReplicationFactor, inertSuffix(d.ReplicationInert))
}

func inertSuffix(inert bool) string {
	if inert {
		return " (not used by this strategy)"
	}
	return ""
}

func renderRun(w io.Writer, r api.Run) {
	fmt.Fprintf(w, "Run %s: %s (%s)\n", r.ID, r.State, r.Strategy)
	if r.RecoveryTimeSeconds != nil {
		fmt.Fprintf(w, "  recovery time: %.3fs\n", *r.RecoveryTimeSeconds)
	}
	if r.DataRecoveryRatePercent != nil {
		fmt.Fprintf(w, "  data recovered: %.1f%%\n", *r.DataRecoveryRatePercent)
	}
	if r.Error != "" {
		retry := ""
		if r.Retryable {
			retry = ", retryable"
		}
		fmt.Fprintf(w, "  error (%s%s): %s\n", r.ErrorKind, retry, r.Error)
	}
}

func renderFaultAck(w io.Writer, ack api.FaultAck) {
	fmt.Fprintf(w, "%s acknowledged", ack.Kind)
	if ack.Message != "" {
		fmt.Fprintf(w, ": %s", ack.Message)
	}
	fmt.Fprintln(w)
	if ack.RecoveryTimeSeconds != nil {
		fmt.Fprintf(w, "  recovery time: %.3fs\n", *ack.RecoveryTimeSeconds)
	}
}

func renderPresets(w io.Writer, presets []api.Preset) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTRATEGY\tINTERVAL\tFACTOR\tITEMS\tDESCRIPTION")
	for _, p := range presets {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", p.Name, p.Strategy, dashIfZero(p.CheckpointIntervalSeconds), dashIfZero(p.ReplicationFactor), p.WorkloadSize, p.Description)
	}
	_ = tw.Flush()
}

func renderHistory(w io.Writer, resp *api.HistoryResponse) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTRATEGY\tSTATE\tRECOVERY\tERROR")
	for _, r := range resp.Runs {
		recovery := "-"
		if r.RecoveryTimeSeconds != nil {
			recovery = fmt.Sprintf("%.3fs", *r.RecoveryTimeSeconds)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Strategy, r.State, recovery, r.Error)
	}
	_ = tw.Flush()

	if len(resp.Recovery) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STRATEGY\tOK\tFAILED\tMEAN\tSTDDEV\tP95\tLAST5\tOUTLIERS")
	for _, s := range resp.Recovery {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.3f\t%.3f\t%.3f\t%.3f\t%d\n", s.Strategy, s.Succeeded, s.Failed, s.MeanSeconds, s.StdDevSeconds, s.P95Seconds, s.RecentMeanSeconds, len(s.Outliers))
	}
	_ = tw.Flush()
}

func dashIfZero(v int) string {
	if v == 0 {
		return "-"
	}
	return fmt.Sprint(v)
}
