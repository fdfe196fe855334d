// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeranaias/chatdesk/internal/prefs"
)

func newThemeCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:       "theme [system|dark|light]",
		Short:     "Show or set the color theme",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{string(prefs.ThemeSystem), string(prefs.ThemeDark), string(prefs.ThemeLight)},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.open()
			if err != nil {
				return err
			}
			defer rt.close()

			if len(args) == 1 {
				t, err := prefs.ParseTheme(args[0])
				if err != nil {
					return &UsageError{Msg: err.Error()}
				}
				if err := a.SetTheme(t); err != nil {
					return err
				}
			}

			snap := a.Snapshot()
			mode := "light"
			if snap.Dark {
				mode = "dark"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", snap.Theme, mode)
			return nil
		},
	}
}
