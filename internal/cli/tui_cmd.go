// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jeranaias/chatdesk/internal/app"
	"github.com/jeranaias/chatdesk/internal/ui/chat"
)

func newTUICommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:         "tui",
		Short:       "Open the full-screen interface",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationTUI: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd, rt)
		},
	}
}

// runTUI opens the full-screen interface. A rejected stored credential is
// not fatal here: the interface shows the login form instead.
func runTUI(cmd *cobra.Command, rt *runtime) error {
	a, err := rt.start(cmd)
	if a == nil {
		return err
	}
	defer rt.close()
	if err != nil && !errors.Is(err, app.ErrStaleCredential) {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	m := chat.New(a, chat.Options{
		Context:        ctx,
		SidebarOpen:    rt.cfg.UI.SidebarOpen,
		RenderMarkdown: rt.cfg.UI.RenderMarkdown,
	})
	defer m.Close()

	rt.watch(ctx)

	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
		tea.WithInput(cmd.InOrStdin()),
		tea.WithOutput(cmd.OutOrStdout()),
	)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return errors.Wrap(err, "run interface")
	}
	return nil
}
