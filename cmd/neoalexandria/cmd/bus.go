package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ram-tewari/neo-alexandria-sub002/internal/eventbus"
	"github.com/ram-tewari/neo-alexandria-sub002/internal/output"
)

func newBusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bus",
		Short: "Inspect the event bus: recent history and delivery metrics",
	}
	cmd.AddCommand(newBusHistoryCmd())
	cmd.AddCommand(newBusMetricsCmd())
	return cmd
}

func newBusHistoryCmd() *cobra.Command {
	var limit int
	var dumpPath string
	var readDumpPath string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print recent bus events, or dump/read a durable bbolt snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.New(cmd.OutOrStdout())

			if readDumpPath != "" {
				entries, err := eventbus.LoadHistoryDump(readDumpPath)
				if err != nil {
					return fmt.Errorf("reading history dump: %w", err)
				}
				printHistory(out, entries)
				return nil
			}

			if dumpPath != "" {
				if err := current.bus.DumpHistory(dumpPath); err != nil {
					return fmt.Errorf("dumping history: %w", err)
				}
				out.Successf("dumped history to %s", dumpPath)
				return nil
			}

			printHistory(out, current.bus.History(limit))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum number of recent events to print")
	cmd.Flags().StringVar(&dumpPath, "dump", "", "write the full history ring to a bbolt file at this path")
	cmd.Flags().StringVar(&readDumpPath, "read-dump", "", "print a previously written bbolt history dump instead of live history")
	return cmd
}

func printHistory(out *output.Writer, entries []eventbus.HistoryEntry) {
	if len(entries) == 0 {
		out.Status("", "no events recorded")
		return
	}
	for _, e := range entries {
		out.Statusf("", "[%s] %s priority=%s correlation_id=%s",
			e.Timestamp.Format("2006-01-02T15:04:05"), e.Name, e.Priority, e.CorrelationID)
	}
}

func newBusMetricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Print event bus delivery counters and latency percentiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.New(cmd.OutOrStdout())
			m := current.bus.Metrics()
			out.Statusf("", "events_emitted:   %d", m.EventsEmitted)
			out.Statusf("", "events_delivered: %d", m.EventsDelivered)
			out.Statusf("", "handler_errors:   %d", m.HandlerErrors)
			out.Statusf("", "handler_latency:  p50=%.2fms p95=%.2fms p99=%.2fms",
				m.HandlerLatencyP50, m.HandlerLatencyP95, m.HandlerLatencyP99)
			out.Statusf("", "emission_latency: p50=%.2fms p95=%.2fms p99=%.2fms",
				m.EmissionLatencyP50, m.EmissionLatencyP95, m.EmissionLatencyP99)
			for name, count := range m.EventTypeCounts {
				out.Statusf("", "  %s: %d", name, count)
			}
			return nil
		},
	}
}
