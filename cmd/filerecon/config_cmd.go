package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"filerecon/internal/config"
)

func newConfigCmd(cfg *config.Config, out *outputFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Get or set configuration",
	}

	cmd.AddCommand(newConfigGetCmd(cfg))
	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigListCmd(cfg, out))
	return cmd
}

// newConfigListCmd prints every effective value along with the files and
// environment that produced them. DSN passwords are redacted.
func newConfigListCmd(cfg *config.Config, out *outputFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List effective config values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			values := make(map[string]string, len(config.AllowedKeys()))
			pairs := make([][2]string, 0, len(config.AllowedKeys())+2)
			for _, key := range config.AllowedKeys() {
				value, err := cfg.Get(key)
				if err != nil {
					return err
				}
				values[key] = value
				pairs = append(pairs, [2]string{key, orDash(value)})
			}
			if out.structured() {
				return writeStructured(values)
			}

			if cfg.EnvFilePath != "" {
				pairs = append(pairs, [2]string{"(env file)", cfg.EnvFilePath})
			}
			if cfg.TrustedProjectConfigPath != "" {
				pairs = append(pairs, [2]string{"(project config)", cfg.TrustedProjectConfigPath})
			}
			writeKeyValues(pairs)
			return nil
		},
	}
}

func newConfigGetCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a config value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if !config.IsAllowedKey(key) {
				return fmt.Errorf("unknown key: %s (allowed: %v)", key, config.AllowedKeys())
			}
			value, err := cfg.Get(key)
			if err != nil {
				return err
			}
			return writePlain("%s\n", value)
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	var global bool

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a config value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]

			var path string
			var err error
			if global {
				path, err = config.GlobalPath()
			} else {
				path, err = config.ProjectPath()
			}
			if err != nil {
				return err
			}

			return config.SetKey(path, key, value)
		},
	}

	cmd.Flags().BoolVar(&global, "global", false, "write to global config (~/.filerecon.toml)")
	return cmd
}
