package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"filerecon/internal/config"
	"filerecon/internal/format"
	"filerecon/internal/metrics"
	"filerecon/internal/reconcile"
	"filerecon/internal/store"
)

func newScanCmd(cfg *config.Config, out *outputFlags) *cobra.Command {
	var flags reconcileFlags
	var outputPath string
	var showAll bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Classify file records against the upload store without changing anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputPath != "" {
				if _, err := format.ForPath(outputPath); err != nil {
					return err
				}
			}

			m := metrics.New()
			var report *reconcile.Report
			err := withStore(cmd.Context(), cfg, func(st *store.Store) error {
				r, err := newReconciler(cmd.Context(), cfg, st, flags)
				if err != nil {
					return err
				}
				report, err = r.Run(cmd.Context())
				return err
			})
			m.ObserveReport(report)
			flushMetrics(cfg, m, err)
			if err != nil {
				return err
			}

			if outputPath != "" {
				if err := saveReport(outputPath, report); err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "report written to %s\n", outputPath)
			}

			if out.structured() {
				return writeStructured(report)
			}

			entries := append([]reconcile.Entry{}, report.Relocatable...)
			entries = append(entries, report.Orphaned...)
			if showAll {
				entries = append(append([]reconcile.Entry{}, report.Consistent...), entries...)
			}
			if len(entries) > 0 {
				writeEntries(entries, hasBlobStats(report))
			}
			return writeSummary(report.Summary, true)
		},
	}

	cmd.Flags().BoolVar(&flags.strict, "strict", false, "relocate only by UUID stem equality")
	cmd.Flags().BoolVar(&flags.stat, "stat", false, "stat matched blobs and flag size mismatches")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "save the report to FILE (.json, .yaml or .yml)")
	cmd.Flags().BoolVar(&showAll, "all", false, "list consistent records too")
	return cmd
}

func hasBlobStats(report *reconcile.Report) bool {
	for _, entries := range [][]reconcile.Entry{report.Consistent, report.Relocatable} {
		for _, entry := range entries {
			if entry.Blob != nil {
				return true
			}
		}
	}
	return false
}

func saveReport(path string, report *reconcile.Report) error {
	formatter, err := format.ForPath(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer f.Close()
	if err := formatter.Write(f, report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return f.Close()
}

func loadReport(path string) (*reconcile.Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open report: %w", err)
	}
	defer f.Close()

	report := &reconcile.Report{}
	if err := format.Decode(path, f, report); err != nil {
		return nil, fmt.Errorf("read report %s: %w", path, err)
	}
	return report, nil
}
