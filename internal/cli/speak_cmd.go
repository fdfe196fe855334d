// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/chatdesk/internal/app"
)

func newSpeakCommand(rt *runtime) *cobra.Command {
	var conversationID string
	cmd := &cobra.Command{
		Use:   "speak [text...]",
		Short: "Read text, or the last reply, aloud",
		Long: `Synthesize speech on the backend, download the clip and play it with
the configured audio.player command. Without text, the last assistant reply of
the most recent (or given) conversation is read.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := rt.open()
			if err != nil {
				return err
			}
			defer rt.close()

			var file string
			if len(args) > 0 {
				file, err = a.Speak(ctx, strings.Join(args, " "))
			} else {
				if err := openForSpeech(cmd, a, conversationID); err != nil {
					return err
				}
				file, err = a.SpeakLast(ctx)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), file)
			return nil
		},
	}
	cmd.Flags().StringVarP(&conversationID, "conversation", "c", "", "conversation whose last reply is read")
	return cmd
}

// openForSpeech loads id, or the newest conversation when id is empty.
func openForSpeech(cmd *cobra.Command, a *app.App, id string) error {
	if !a.Snapshot().Authenticated() {
		return app.ErrNotAuthenticated
	}
	if err := a.Refresh(cmd.Context()); err != nil {
		return err
	}
	if id == "" {
		list := a.Snapshot().Conversations
		if len(list) == 0 {
			return app.ErrNothingToSpeak
		}
		id = list[len(list)-1].ID
	}
	return a.LoadConversation(cmd.Context(), id)
}
