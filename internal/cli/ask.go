// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jeranaias/chatdesk/internal/app"
	"github.com/jeranaias/chatdesk/internal/model"
)

// askOptions holds the ask command flags.
type askOptions struct {
	conversation string
	newChat      bool
	raw          bool
	asJSON       bool
}

// askResult is the --json shape of ask.
type askResult struct {
	ConversationID string `json:"conversation_id"`
	Title          string `json:"title"`
	Reply          string `json:"reply"`
}

func newAskCommand(rt *runtime) *cobra.Command {
	var opts askOptions
	cmd := &cobra.Command{
		Use:   "ask [question...]",
		Short: "Send one message and print the reply",
		Long: `Send one message and print the assistant's reply.

The question is taken from the arguments, or from standard input when there
are none. By default it continues the most recent conversation.`,
		Example: `  chatdesk ask "¿Qué tiempo hace?"
  echo "hola" | chatdesk ask --new
  chatdesk ask -c 3 "y mañana?"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			question, err := readQuestion(cmd, args)
			if err != nil {
				return err
			}
			return runAsk(cmd, rt, question, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.conversation, "conversation", "c", "", "conversation id to continue")
	cmd.Flags().BoolVarP(&opts.newChat, "new", "n", false, "start a new conversation")
	cmd.Flags().BoolVar(&opts.raw, "raw", false, "print the reply without markdown rendering")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print JSON")
	cmd.MarkFlagsMutuallyExclusive("conversation", "new")
	return cmd
}

func readQuestion(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if isTerminal(cmd.InOrStdin()) {
		return "", usageErrorf("no question given")
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", err
	}
	q := strings.TrimSpace(string(data))
	if q == "" {
		return "", usageErrorf("no question given")
	}
	return q, nil
}

func runAsk(cmd *cobra.Command, rt *runtime, question string, opts askOptions) error {
	ctx := cmd.Context()
	a, err := openAuthenticated(rt)
	if err != nil {
		return err
	}
	defer rt.close()

	if err := a.Refresh(ctx); err != nil {
		return err
	}

	switch {
	case opts.newChat:
		if _, err := a.NewConversation(ctx); err != nil {
			return err
		}
	case opts.conversation != "":
		if err := a.LoadConversation(ctx, opts.conversation); err != nil {
			return err
		}
	default:
		snap := a.Snapshot()
		if n := len(snap.Conversations); n > 0 {
			if err := a.LoadConversation(ctx, snap.Conversations[n-1].ID); err != nil {
				return err
			}
		}
	}

	if err := a.SendText(ctx, question); err != nil {
		return err
	}

	snap := a.Snapshot()
	reply, ok := lastReply(snap)
	if !ok {
		return errors.New("the assistant did not reply")
	}

	if opts.asJSON {
		return NewJSONResponse("ask", askResult{
			ConversationID: snap.ActiveID,
			Title:          snap.ActiveTitle,
			Reply:          reply.Content,
		}).Write(cmd.OutOrStdout())
	}
	fmt.Fprint(cmd.OutOrStdout(), rt.markdown(cmd, opts.raw).Render(reply.Content))
	return nil
}

// lastReply returns the most recent confirmed assistant message.
func lastReply(snap app.Snapshot) (model.Message, bool) {
	for i := len(snap.Messages) - 1; i >= 0; i-- {
		m := snap.Messages[i]
		if m.Role == model.RoleAssistant && !m.IsPlaceholder() && !m.IsFailed() {
			return m, true
		}
	}
	return model.Message{}, false
}
