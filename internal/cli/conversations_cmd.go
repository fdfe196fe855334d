// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jeranaias/chatdesk/internal/app"
	"github.com/jeranaias/chatdesk/internal/export"
	"github.com/jeranaias/chatdesk/internal/model"
	"github.com/jeranaias/chatdesk/internal/util"
)

func newConversationsCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv", "c"},
		Short:   "List and manage conversations",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listConversations(cmd, rt, false)
		},
	}
	cmd.AddCommand(
		newConversationsListCommand(rt),
		newConversationsNewCommand(rt),
		newConversationsShowCommand(rt),
		newConversationsDeleteCommand(rt),
		newConversationsExportCommand(rt),
	)
	return cmd
}

func newConversationsListCommand(rt *runtime) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List conversations, newest last",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listConversations(cmd, rt, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

// openAuthenticated opens the application and fails early without a login.
func openAuthenticated(rt *runtime) (*app.App, error) {
	a, err := rt.open()
	if err != nil {
		return nil, err
	}
	if !a.Snapshot().Authenticated() {
		rt.close()
		return nil, app.ErrNotAuthenticated
	}
	return a, nil
}

func listConversations(cmd *cobra.Command, rt *runtime, asJSON bool) error {
	a, err := openAuthenticated(rt)
	if err != nil {
		return err
	}
	defer rt.close()

	if err := a.Refresh(cmd.Context()); err != nil {
		return err
	}
	list := a.Snapshot().Conversations

	if asJSON {
		return NewJSONResponse("conversations list", list).Write(cmd.OutOrStdout())
	}

	w := cmd.OutOrStdout()
	p := rt.palette(cmd)
	if len(list) == 0 {
		fmt.Fprintln(w, p.Dim.Render("No conversations yet. Start one with 'chatdesk ask'."))
		return nil
	}

	idWidth := 0
	for _, c := range list {
		if n := len(c.ID); n > idWidth {
			idWidth = n
		}
	}
	titleWidth := terminalWidth(w) - idWidth - 2
	for _, c := range list {
		fmt.Fprintf(w, "%s  %s\n",
			p.Dim.Render(util.PadWidth(c.ID, idWidth)),
			util.TruncateWidth(c.DisplayTitle(), titleWidth))
	}
	return nil
}

func newConversationsNewCommand(rt *runtime) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create an empty conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openAuthenticated(rt)
			if err != nil {
				return err
			}
			defer rt.close()

			summary, err := a.NewConversation(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return NewJSONResponse("conversations new", summary).Write(cmd.OutOrStdout())
			}
			fmt.Fprintln(cmd.OutOrStdout(), summary.ID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

// conversationDump is the --json shape of show.
type conversationDump struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Messages []model.Message `json:"messages"`
}

func newConversationsShowCommand(rt *runtime) *cobra.Command {
	var asJSON, raw bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a conversation's history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openAuthenticated(rt)
			if err != nil {
				return err
			}
			defer rt.close()

			snap, err := loadForDisplay(cmd, a, args[0])
			if err != nil {
				return err
			}

			if asJSON {
				return NewJSONResponse("conversations show", conversationDump{
					ID:       snap.ActiveID,
					Title:    snap.ActiveTitle,
					Messages: snap.Messages,
				}).Write(cmd.OutOrStdout())
			}

			p := rt.palette(cmd)
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, p.Title.Render(snap.ActiveTitle))
			if len(snap.Messages) == 0 {
				fmt.Fprintln(w, p.Dim.Render("(empty)"))
				return nil
			}
			printMessages(w, p, rt.markdown(cmd, raw), snap.Messages)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.Flags().BoolVar(&raw, "raw", false, "print replies without markdown rendering")
	return cmd
}

func newConversationsDeleteCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>...",
		Aliases: []string{"rm"},
		Short:   "Delete conversations",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openAuthenticated(rt)
			if err != nil {
				return err
			}
			defer rt.close()

			for _, id := range args {
				if err := a.DeleteConversation(cmd.Context(), id); err != nil {
					return errors.Wrapf(err, "delete %s", id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
			}
			return nil
		},
	}
}

// loadForDisplay opens id and returns the resulting snapshot.
func loadForDisplay(cmd *cobra.Command, a *app.App, id string) (app.Snapshot, error) {
	if err := a.Refresh(cmd.Context()); err != nil {
		return app.Snapshot{}, err
	}
	if err := a.LoadConversation(cmd.Context(), id); err != nil {
		return app.Snapshot{}, err
	}
	snap := a.Snapshot()
	if snap.ActiveID != id {
		if snap.LastError != nil {
			return app.Snapshot{}, snap.LastError
		}
		return app.Snapshot{}, errors.Errorf("conversation %s could not be loaded", id)
	}
	return snap, nil
}

func newConversationsExportCommand(rt *runtime) *cobra.Command {
	var format, outDir string
	var noMeta bool
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Save a conversation as Markdown or JSON",
		Example: `  chatdesk conversations export 3
  chatdesk conversations export 3 --format json -o -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exporter, err := export.ForFormat(format, &export.Options{IncludeMetadata: !noMeta})
			if err != nil {
				return &UsageError{Msg: err.Error()}
			}

			a, err := openAuthenticated(rt)
			if err != nil {
				return err
			}
			defer rt.close()

			snap, err := loadForDisplay(cmd, a, args[0])
			if err != nil {
				return err
			}
			t := export.NewTranscript(snap.ActiveID, snap.ActiveTitle, snap.Messages)

			if outDir == "-" {
				return export.Write(cmd.OutOrStdout(), t, exporter)
			}
			path, err := export.ToFile(t, exporter, outDir)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "markdown or json")
	cmd.Flags().StringVarP(&outDir, "output", "o", ".", "directory to write to, or - for standard output")
	cmd.Flags().BoolVar(&noMeta, "no-metadata", false, "omit the Markdown front matter")
	return cmd
}
