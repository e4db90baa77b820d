package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/planner/app"
	"github.com/kilianp07/planner/core/model"
	"github.com/kilianp07/planner/core/scheduler"
)

var (
	snapshotPath string
	orgID        int64
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Replace an organization's data with a snapshot file",
	RunE:  runImport,
}

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Print the LP problem of a snapshot file or a stored organization",
	RunE:  runCompile,
}

func init() {
	importCmd.Flags().StringVar(&snapshotPath, "snapshot", "", "snapshot file (yaml or json)")
	_ = importCmd.MarkFlagRequired("snapshot")
	compileCmd.Flags().StringVar(&snapshotPath, "snapshot", "", "snapshot file (yaml or json)")
	compileCmd.Flags().Int64Var(&orgID, "org", 0, "organization id")
	compileCmd.MarkFlagsOneRequired("snapshot", "org")
	compileCmd.MarkFlagsMutuallyExclusive("snapshot", "org")
	rootCmd.AddCommand(importCmd, compileCmd)
}

func runImport(cmd *cobra.Command, _ []string) error {
	snap, err := scheduler.LoadSnapshotFile(snapshotPath)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	return withService(cmd, func(ctx context.Context, svc *app.Service) error {
		if err := svc.Store.Import(ctx, snap); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported organization %d: %d agents, %d categories, %d tasks\n",
			snap.Organization.ID, len(snap.Agents), len(snap.Categories), len(snap.Tasks))
		return nil
	})
}

func runCompile(cmd *cobra.Command, _ []string) error {
	if snapshotPath != "" {
		snap, err := scheduler.LoadSnapshotFile(snapshotPath)
		if err != nil {
			return fmt.Errorf("load snapshot: %w", err)
		}
		return writeProblem(cmd, snap)
	}
	return withService(cmd, func(ctx context.Context, svc *app.Service) error {
		snap, err := scheduler.LoadSnapshot(ctx, svc.Store, orgID)
		if err != nil {
			return err
		}
		return writeProblem(cmd, snap)
	})
}

func writeProblem(cmd *cobra.Command, snap model.Snapshot) error {
	p, err := scheduler.Compile(snap)
	if err != nil {
		return err
	}
	if _, err := p.WriteTo(cmd.OutOrStdout()); err != nil {
		return err
	}
	if c := p.Conflicts(); len(c) > 0 {
		return errors.New("problem has conflicting constraints and is infeasible")
	}
	return nil
}
