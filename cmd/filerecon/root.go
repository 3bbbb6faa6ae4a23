package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"filerecon/internal/config"
)

// outputFlags carries the global output selection.
type outputFlags struct {
	json bool
	yaml bool
}

func (o *outputFlags) structured() bool {
	return o.json || o.yaml
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	out := &outputFlags{}
	var logLevel string

	cmd := &cobra.Command{
		Use:           "filerecon",
		Short:         "Reconcile clinic file records against the upload store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if out.json && out.yaml {
				return fmt.Errorf("--json and --yaml are mutually exclusive")
			}
			setOutputFormat(out)

			warning, err := configureLoggerForCLI(logLevel, cfg.LogLevel)
			if err != nil {
				return err
			}
			if warning != "" {
				fmt.Fprintln(os.Stderr, warning)
			}
			return nil
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().BoolVar(&out.json, "json", false, "output JSON")
	cmd.PersistentFlags().BoolVar(&out.yaml, "yaml", false, "output YAML")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newScanCmd(cfg, out),
		newCleanupCmd(cfg, out),
		newRelinkCmd(cfg, out),
		newFilesCmd(cfg, out),
		newPatientsCmd(cfg, out),
		newInfoCmd(cfg, out),
		newMigrateCmd(cfg, out),
		newConfigCmd(cfg, out),
	)

	return cmd
}
