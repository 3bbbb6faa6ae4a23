package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"filerecon/internal/config"
	"filerecon/internal/metrics"
	"filerecon/internal/reconcile"
	"filerecon/internal/store"
)

type cleanupPlan struct {
	DryRun bool    `json:"dry_run" yaml:"dry_run"`
	IDs    []int64 `json:"ids" yaml:"ids"`
}

func newCleanupCmd(cfg *config.Config, out *outputFlags) *cobra.Command {
	var (
		flags      reconcileFlags
		ids        []int64
		fromReport string
		dryRun     bool
		yes        bool
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete orphaned file records",
		Long: `Delete orphaned file records.

Without --ids or --from-report a fresh scan selects the orphans. Given ids are
checked against a fresh scan and refused unless they are still orphaned; use
--force to skip that check. Deletes are irreversible.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(ids) > 0 && fromReport != "" {
				return fmt.Errorf("--ids and --from-report are mutually exclusive")
			}

			m := metrics.New()
			err := withStore(cmd.Context(), cfg, func(st *store.Store) error {
				r, err := newReconciler(cmd.Context(), cfg, st, flags)
				if err != nil {
					return err
				}

				targets, err := cleanupTargets(cmd.Context(), r, m, ids, fromReport, force)
				if err != nil {
					return err
				}
				if len(targets) == 0 {
					if out.structured() {
						return writeStructured(cleanupPlan{DryRun: true, IDs: []int64{}})
					}
					return writePlain("no orphaned records\n")
				}

				apply := !dryRun
				if apply {
					apply, err = approveDestructive(yes, fmt.Sprintf("Delete %d orphaned file records", len(targets)))
					if err != nil {
						return err
					}
				}
				if !apply {
					if out.structured() {
						return writeStructured(cleanupPlan{DryRun: true, IDs: targets})
					}
					return writePlain("would delete %d records: %s\n", len(targets), joinIDs(targets))
				}

				result := r.Cleanup(cmd.Context(), targets)
				m.ObserveCleanup(result)
				if err := writeCleanupResult(out, result); err != nil {
					return err
				}
				return cleanupError(cmd.Context(), result)
			})
			flushMetrics(cfg, m, err)
			return err
		},
	}

	cmd.Flags().Int64SliceVar(&ids, "ids", nil, "record ids to delete (comma separated)")
	cmd.Flags().StringVar(&fromReport, "from-report", "", "delete the orphans listed in a saved scan report")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be deleted")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "delete without asking")
	cmd.Flags().BoolVar(&force, "force", false, "skip the fresh-scan check of given ids")
	cmd.Flags().BoolVar(&flags.strict, "strict", false, "relocate only by UUID stem equality when scanning")
	return cmd
}

// cleanupTargets resolves the ids to delete. Explicit ids and report ids must
// still be orphaned in a fresh scan unless force is set.
func cleanupTargets(ctx context.Context, r *reconcile.Reconciler, m *metrics.RunMetrics, ids []int64, fromReport string, force bool) ([]int64, error) {
	requested := ids
	if fromReport != "" {
		saved, err := loadReport(fromReport)
		if err != nil {
			return nil, err
		}
		requested = saved.OrphanIDs()
		if len(requested) == 0 {
			return nil, nil
		}
	}
	if len(requested) > 0 && force {
		return requested, nil
	}

	report, err := r.Run(ctx)
	if err != nil {
		return nil, err
	}
	m.ObserveReport(report)
	if len(requested) == 0 {
		return report.OrphanIDs(), nil
	}
	if stale := missingIDs(requested, report.OrphanIDs()); len(stale) > 0 {
		return nil, fmt.Errorf("records %s are not orphaned in a fresh scan; use --force to delete them anyway", joinIDs(stale))
	}
	return requested, nil
}

func writeCleanupResult(out *outputFlags, result reconcile.CleanupResult) error {
	if out.structured() {
		return writeStructured(result)
	}
	if len(result.Failed) > 0 {
		rows := make([][]string, 0, len(result.Failed))
		for _, failure := range result.Failed {
			rows = append(rows, []string{strconv.FormatInt(failure.ID, 10), failure.Error})
		}
		writeTable([]string{"id", "error"}, rows)
	}
	return writePlain("deleted %d of %d records, %d failed, %d skipped\n",
		len(result.Deleted), result.Requested, len(result.Failed), result.Skipped)
}

func cleanupError(ctx context.Context, result reconcile.CleanupResult) error {
	if result.Skipped > 0 {
		return fmt.Errorf("cleanup interrupted with %d records left: %w", result.Skipped, context.Cause(ctx))
	}
	if len(result.Failed) > 0 {
		return fmt.Errorf("%d of %d deletes failed", len(result.Failed), result.Requested)
	}
	return nil
}
