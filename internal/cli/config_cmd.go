// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jeranaias/chatdesk/internal/config"
)

func newConfigCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and edit the configuration file",
	}
	cmd.AddCommand(
		newConfigShowCommand(rt),
		newConfigPathCommand(rt),
		newConfigInitCommand(rt),
		newConfigGetCommand(rt),
		newConfigSetCommand(rt),
	)
	return cmd
}

func newConfigShowCommand(rt *runtime) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if asJSON {
				return NewJSONResponse("config show", rt.cfg).Write(cmd.OutOrStdout())
			}
			return toml.NewEncoder(cmd.OutOrStdout()).Encode(rt.cfg)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newConfigPathCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), rt.configPath)
			return nil
		},
	}
}

func newConfigInitCommand(rt *runtime) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with the defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(rt.configPath); err == nil && !force {
				return errors.Errorf("%s already exists (use --force to overwrite)", rt.configPath)
			}
			if err := os.MkdirAll(filepath.Dir(rt.configPath), 0o700); err != nil {
				return errors.Wrap(err, "create config directory")
			}
			if err := config.SaveTOML(config.Default(), rt.configPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", rt.configPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newConfigGetCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:       "get <key>",
		Short:     "Print one effective setting",
		Args:      cobra.ExactArgs(1),
		ValidArgs: config.Keys(),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := rt.cfg.Get(args[0])
			if err != nil {
				return &UsageError{Msg: err.Error()}
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}
}

func newConfigSetCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting in the configuration file",
		Long: `Change one setting in the configuration file.

Only the file is edited; environment variables and flags still take
precedence when chatdesk runs. Keys: ` + strings.Join(config.Keys(), ", "),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := readConfigFile(rt.configPath)
			if err != nil {
				return err
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return &UsageError{Msg: err.Error()}
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(rt.configPath), 0o700); err != nil {
				return errors.Wrap(err, "create config directory")
			}
			if err := config.SaveTOML(cfg, rt.configPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], args[1])
			return nil
		},
	}
}

// readConfigFile decodes path over the defaults without applying
// environment overrides, so they are not written back.
func readConfigFile(path string) (*config.Config, error) {
	cfg := config.Default()
	if strings.HasSuffix(path, ".json") {
		return nil, errors.Errorf("%s: editing JSON configuration is not supported", path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return cfg, nil
}
