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

type relinkPlan struct {
	DryRun bool                   `json:"dry_run" yaml:"dry_run"`
	Moves  []reconcile.Relocation `json:"moves" yaml:"moves"`
}

func newRelinkCmd(cfg *config.Config, out *outputFlags) *cobra.Command {
	var (
		flags  reconcileFlags
		ids    []int64
		dryRun bool
		yes    bool
	)

	cmd := &cobra.Command{
		Use:   "relink",
		Short: "Point relocatable records at their suggested blobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m := metrics.New()
			err := withStore(cmd.Context(), cfg, func(st *store.Store) error {
				r, err := newReconciler(cmd.Context(), cfg, st, flags)
				if err != nil {
					return err
				}
				report, err := r.Run(cmd.Context())
				if err != nil {
					return err
				}
				m.ObserveReport(report)

				moves, err := selectMoves(report.Relocations(), ids)
				if err != nil {
					return err
				}
				if len(moves) == 0 {
					if out.structured() {
						return writeStructured(relinkPlan{DryRun: true, Moves: []reconcile.Relocation{}})
					}
					return writePlain("no relocatable records\n")
				}

				apply := !dryRun
				if apply {
					apply, err = approveDestructive(yes, fmt.Sprintf("Rewrite file_path of %d records", len(moves)))
					if err != nil {
						return err
					}
				}
				if !apply {
					if out.structured() {
						return writeStructured(relinkPlan{DryRun: true, Moves: moves})
					}
					writeMoves(moves)
					return nil
				}

				result := r.Relink(cmd.Context(), st, moves)
				m.ObserveRelink(result)
				if err := writeRelinkResult(out, result); err != nil {
					return err
				}
				return relinkError(cmd.Context(), result)
			})
			flushMetrics(cfg, m, err)
			return err
		},
	}

	cmd.Flags().Int64SliceVar(&ids, "ids", nil, "only relink these record ids (comma separated)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show the suggested moves")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "apply without asking")
	cmd.Flags().BoolVar(&flags.strict, "strict", false, "relocate only by UUID stem equality")
	return cmd
}

// selectMoves keeps the moves for ids, or all moves when ids is empty. An id
// without a suggestion is an error.
func selectMoves(moves []reconcile.Relocation, ids []int64) ([]reconcile.Relocation, error) {
	if len(ids) == 0 {
		return moves, nil
	}
	byID := make(map[int64]reconcile.Relocation, len(moves))
	have := make([]int64, 0, len(moves))
	for _, move := range moves {
		byID[move.ID] = move
		have = append(have, move.ID)
	}
	if missing := missingIDs(ids, have); len(missing) > 0 {
		return nil, fmt.Errorf("records %s have no relocation suggestion", joinIDs(missing))
	}
	selected := make([]reconcile.Relocation, 0, len(ids))
	seen := map[int64]struct{}{}
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		selected = append(selected, byID[id])
	}
	return selected, nil
}

func writeMoves(moves []reconcile.Relocation) {
	rows := make([][]string, 0, len(moves))
	for _, move := range moves {
		rows = append(rows, []string{strconv.FormatInt(move.ID, 10), orDash(move.From), move.To})
	}
	writeTable([]string{"id", "from", "to"}, rows)
}

func writeRelinkResult(out *outputFlags, result reconcile.RelinkResult) error {
	if out.structured() {
		return writeStructured(result)
	}
	if len(result.Applied) > 0 {
		writeMoves(result.Applied)
	}
	if len(result.Failed) > 0 {
		rows := make([][]string, 0, len(result.Failed))
		for _, failure := range result.Failed {
			rows = append(rows, []string{strconv.FormatInt(failure.ID, 10), failure.Error})
		}
		writeTable([]string{"id", "error"}, rows)
	}
	return writePlain("relinked %d of %d records, %d failed, %d skipped\n",
		len(result.Applied), result.Requested, len(result.Failed), result.Skipped)
}

func relinkError(ctx context.Context, result reconcile.RelinkResult) error {
	if result.Skipped > 0 {
		return fmt.Errorf("relink interrupted with %d records left: %w", result.Skipped, context.Cause(ctx))
	}
	if len(result.Failed) > 0 {
		return fmt.Errorf("%d of %d relinks failed", len(result.Failed), result.Requested)
	}
	return nil
}
