package cmd

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/kilianp07/planner/app"
	"github.com/kilianp07/planner/core/audit"
	"github.com/kilianp07/planner/core/model"
	"github.com/kilianp07/planner/core/scheduler"
	"github.com/kilianp07/planner/pkg/export"
)

var (
	runID          string
	timeoutSeconds int
	applyAfter     bool
	exportFormat   string
)

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Solve an organization and wait for the outcome",
	RunE:  runSolve,
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Write a successful run back to the tasks",
	RunE:  runApply,
}

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel an open run",
	RunE:  runCancel,
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List the runs of an organization",
	RunE:  runList,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the category balancing of a run",
	RunE:  runStats,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the assignment of a run",
	RunE:  runExport,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the audit trail of runs",
	RunE:  runHistory,
}

func init() {
	solveCmd.Flags().Int64Var(&orgID, "org", 0, "organization id")
	solveCmd.Flags().IntVar(&timeoutSeconds, "timeout", 0, "solver time budget in seconds, 0 for the configured default")
	solveCmd.Flags().StringVar(&snapshotPath, "snapshot", "", "import this snapshot before solving")
	solveCmd.Flags().BoolVar(&applyAfter, "apply", false, "apply the run when it succeeds")
	_ = solveCmd.MarkFlagRequired("org")

	for _, c := range []*cobra.Command{applyCmd, statsCmd} {
		c.Flags().Int64Var(&orgID, "org", 0, "organization id")
		c.Flags().StringVar(&runID, "run", "", "run id")
		_ = c.MarkFlagRequired("org")
		_ = c.MarkFlagRequired("run")
	}
	cancelCmd.Flags().StringVar(&runID, "run", "", "run id")
	_ = cancelCmd.MarkFlagRequired("run")
	runsCmd.Flags().Int64Var(&orgID, "org", 0, "organization id")
	_ = runsCmd.MarkFlagRequired("org")
	exportCmd.Flags().StringVar(&runID, "run", "", "run id")
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "output format: csv or json")
	_ = exportCmd.MarkFlagRequired("run")
	historyCmd.Flags().Int64Var(&orgID, "org", 0, "organization id, 0 for all")
	historyCmd.Flags().StringVar(&runID, "run", "", "run id")

	rootCmd.AddCommand(solveCmd, applyCmd, cancelCmd, runsCmd, statsCmd, exportCmd, historyCmd)
}

func newTable(cmd *cobra.Command, header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(cmd.OutOrStdout())
	tw.AppendHeader(header)
	return tw
}

func runDuration(r model.ScheduleRun) string {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return ""
	}
	return r.FinishedAt.Sub(*r.StartedAt).Round(time.Millisecond).String()
}

func runSolve(cmd *cobra.Command, _ []string) error {
	return withService(cmd, func(ctx context.Context, svc *app.Service) error {
		if snapshotPath != "" {
			snap, err := scheduler.LoadSnapshotFile(snapshotPath)
			if err != nil {
				return fmt.Errorf("load snapshot: %w", err)
			}
			if err := svc.Store.Import(ctx, snap); err != nil {
				return err
			}
		}
		run, err := svc.Manager.Solve(ctx, orgID, time.Duration(timeoutSeconds)*time.Second)
		if run.ID != "" {
			tw := newTable(cmd, table.Row{"Run", "Status", "Assigned", "Duration", "Message"})
			tw.AppendRow(table.Row{run.ID, run.Status, run.Result.Tasks(), runDuration(run), run.Message})
			tw.Render()
		}
		if err != nil {
			return err
		}
		if applyAfter && run.Status == model.RunSuccess {
			n, err := svc.Manager.Apply(ctx, orgID, run.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied run %s: %d tasks updated\n", run.ID, n)
		}
		return nil
	})
}

func runApply(cmd *cobra.Command, _ []string) error {
	return withService(cmd, func(ctx context.Context, svc *app.Service) error {
		n, err := svc.Manager.Apply(ctx, orgID, runID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "applied run %s: %d tasks updated\n", runID, n)
		return nil
	})
}

func runCancel(cmd *cobra.Command, _ []string) error {
	return withService(cmd, func(ctx context.Context, svc *app.Service) error {
		if err := svc.Manager.Cancel(ctx, runID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "cancel requested for run %s\n", runID)
		return nil
	})
}

func runList(cmd *cobra.Command, _ []string) error {
	return withService(cmd, func(ctx context.Context, svc *app.Service) error {
		runs, err := svc.Manager.Runs(ctx, orgID)
		if err != nil {
			return err
		}
		tw := newTable(cmd, table.Row{"Run", "Status", "Created", "Duration", "Assigned", "Selected", "Message"})
		for _, r := range runs {
			selected := ""
			if r.Selected {
				selected = "*"
			}
			tw.AppendRow(table.Row{r.ID, r.Status, r.CreatedAt.Format(time.RFC3339), runDuration(r), r.Result.Tasks(), selected, r.Message})
		}
		tw.Render()
		return nil
	})
}

func runStats(cmd *cobra.Command, _ []string) error {
	return withService(cmd, func(ctx context.Context, svc *app.Service) error {
		stats, err := svc.Manager.Balancing(ctx, orgID, runID)
		if err != nil {
			return err
		}
		tw := newTable(cmd, table.Row{"Category", "Mode", "Agent", "Load"})
		for _, id := range slices.Sorted(maps.Keys(stats)) {
			s := stats[id]
			for _, agent := range slices.Sorted(maps.Keys(s.Loads)) {
				tw.AppendRow(table.Row{s.Name, s.Mode, agent, fmt.Sprintf("%.2f", s.Loads[agent])})
			}
			tw.AppendSeparator()
			tw.AppendRow(table.Row{s.Name, s.Mode, "spread", fmt.Sprintf("%.2f", s.Spread)})
			tw.AppendSeparator()
		}
		tw.Render()
		return nil
	})
}

func runExport(cmd *cobra.Command, _ []string) error {
	if exportFormat != "csv" && exportFormat != "json" {
		return fmt.Errorf("unsupported format %q", exportFormat)
	}
	return withService(cmd, func(ctx context.Context, svc *app.Service) error {
		run, err := svc.Manager.Run(ctx, runID)
		if err != nil {
			return err
		}
		snap, err := scheduler.LoadSnapshot(ctx, svc.Store, run.OrganizationID)
		if err != nil {
			return err
		}
		entries := export.Entries(snap, run)
		if exportFormat == "json" {
			return export.WriteJSON(cmd.OutOrStdout(), entries)
		}
		return export.WriteCSV(cmd.OutOrStdout(), entries)
	})
}

func runHistory(cmd *cobra.Command, _ []string) error {
	return withService(cmd, func(ctx context.Context, svc *app.Service) error {
		recs, err := svc.Manager.History(ctx, audit.Query{OrganizationID: orgID, RunID: runID})
		if err != nil {
			return err
		}
		slices.SortStableFunc(recs, func(a, b audit.Record) int { return cmp.Compare(a.Timestamp.UnixNano(), b.Timestamp.UnixNano()) })
		tw := newTable(cmd, table.Row{"Time", "Org", "Run", "Status", "Applied", "Message"})
		for _, r := range recs {
			tw.AppendRow(table.Row{r.Timestamp.Format(time.RFC3339), r.OrganizationID, r.RunID, r.Status, r.Applied, r.Message})
		}
		tw.Render()
		return nil
	})
}
