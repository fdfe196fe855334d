// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jeranaias/chatdesk/internal/app"
	"github.com/jeranaias/chatdesk/internal/config"
	"github.com/jeranaias/chatdesk/internal/conversation"
	"github.com/jeranaias/chatdesk/internal/export"
	"github.com/jeranaias/chatdesk/internal/prefs"
	"github.com/jeranaias/chatdesk/internal/util"
)

// =============================================================================
// LINE INPUT
// =============================================================================

// lineReader reads one line of user input at a time.
type lineReader interface {
	ReadLine(prompt string) (string, error)
	Close() error
}

// historyReader provides line editing and persistent history on a terminal.
type historyReader struct {
	line        *liner.State
	historyFile string
}

func newHistoryReader() *historyReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	r := &historyReader{line: line}
	if dir, err := config.ConfigDir(); err == nil {
		r.historyFile = filepath.Join(dir, "chat_history")
		if f, err := os.Open(r.historyFile); err == nil {
			_, _ = line.ReadHistory(f)
			f.Close()
		}
	}
	return r
}

func (r *historyReader) ReadLine(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history with owner-only permissions and restores the terminal.
func (r *historyReader) Close() error {
	if r.historyFile != "" {
		if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
			_, _ = r.line.WriteHistory(f)
			f.Close()
		}
	}
	return r.line.Close()
}

// plainReader reads lines from a pipe. The prompt is not echoed.
type plainReader struct {
	scanner *bufio.Scanner
}

func newPlainReader(in io.Reader) *plainReader {
	s := bufio.NewScanner(in)
	s.Buffer(make([]byte, 64*1024), 1024*1024)
	return &plainReader{scanner: s}
}

func (r *plainReader) ReadLine(string) (string, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}

func (r *plainReader) Close() error { return nil }

// =============================================================================
// COMMAND
// =============================================================================

func newChatCommand(rt *runtime) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Line-based interactive chat",
		Long: `Line-based interactive chat with input history.

Type a message and press Enter to send it. Lines starting with / are
commands; /help lists them. Ctrl+C cancels a pending reply, Ctrl+D exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.start(cmd)
			if err != nil {
				return err
			}
			defer rt.close()
			if !a.Snapshot().Authenticated() {
				return app.ErrNotAuthenticated
			}

			// The root context dies on the first Ctrl+C; here that only
			// cancels the line being handled.
			ctx, cancel := context.WithCancel(context.WithoutCancel(cmd.Context()))
			defer cancel()
			rt.watch(ctx)

			var in lineReader
			if isTerminal(cmd.InOrStdin()) {
				in = newHistoryReader()
			} else {
				in = newPlainReader(cmd.InOrStdin())
			}
			defer in.Close()

			s := &chatSession{
				app: a,
				in:  in,
				out: cmd.OutOrStdout(),
				p:   rt.palette(cmd),
				md:  rt.markdown(cmd, raw),
			}
			return s.run(ctx)
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print replies without markdown rendering")
	return cmd
}

// chatSession is one run of the chat loop.
type chatSession struct {
	app *app.App
	in  lineReader
	out io.Writer
	p   palette
	md  *markdown
}

// run reads and handles lines until EOF or /quit. Each line gets its own
// context, cancelled by the first Ctrl+C while it runs.
func (s *chatSession) run(ctx context.Context) error {
	s.printWelcome()

	for {
		if !s.app.Snapshot().Authenticated() {
			return app.ErrStaleCredential
		}

		input, err := s.in.ReadLine("chatdesk> ")
		if err != nil {
			fmt.Fprintln(s.out)
			if err == liner.ErrPromptAborted || err == io.EOF {
				return nil
			}
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			return nil
		}

		lineCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		more := true
		if strings.HasPrefix(input, "/") {
			if more, err = s.command(lineCtx, input); err != nil {
				s.printError(err)
			}
		} else {
			s.send(lineCtx, func(c context.Context) error { return s.app.SendText(c, input) })
		}
		stop()
		if !more {
			return nil
		}
	}
}

// send runs fn and prints the reply or what went wrong.
func (s *chatSession) send(ctx context.Context, fn func(context.Context) error) {
	err := fn(ctx)
	switch {
	case err == nil:
		s.printReply()
	case errors.Is(err, context.Canceled) || errors.Is(err, app.ErrSendCancelled):
		fmt.Fprintln(s.out, s.p.Warning.Render("[Cancelled]"))
	default:
		s.printError(err)
		if s.app.Snapshot().CanRetry {
			fmt.Fprintln(s.out, s.p.Dim.Render("Type /retry to send it again."))
		}
	}
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// command runs a slash command. It returns false to leave the loop.
func (s *chatSession) command(ctx context.Context, line string) (bool, error) {
	parts := strings.Fields(line)
	name := strings.ToLower(parts[0])
	args := parts[1:]

	switch name {
	case "/help", "/h", "/?", "/":
		s.printHelp()

	case "/quit", "/q", "/exit":
		return false, nil

	case "/new", "/n":
		summary, err := s.app.NewConversation(ctx)
		if err != nil {
			return true, err
		}
		fmt.Fprintln(s.out, s.p.Success.Render("Started conversation "+summary.ID))

	case "/list", "/ls":
		if err := s.app.Refresh(ctx); err != nil {
			return true, err
		}
		s.printList()

	case "/load", "/open":
		if len(args) != 1 {
			return true, errors.New("usage: /load <id>")
		}
		if err := s.app.LoadConversation(ctx, args[0]); err != nil {
			return true, err
		}
		s.printTranscript()

	case "/delete", "/rm":
		id := s.app.Snapshot().ActiveID
		if len(args) == 1 {
			id = args[0]
		}
		if id == "" {
			return true, errors.New("usage: /delete <id>")
		}
		if err := s.app.DeleteConversation(ctx, id); err != nil {
			return true, err
		}
		fmt.Fprintln(s.out, s.p.Dim.Render("Deleted "+id))

	case "/history":
		s.printTranscript()

	case "/export":
		format := "markdown"
		if len(args) == 1 {
			format = args[0]
		}
		exporter, err := export.ForFormat(format, nil)
		if err != nil {
			return true, err
		}
		snap := s.app.Snapshot()
		if snap.ActiveID == "" {
			return true, errors.New("no conversation open")
		}
		path, err := export.ToFile(export.NewTranscript(snap.ActiveID, snap.ActiveTitle, snap.Messages), exporter, ".")
		if err != nil {
			return true, err
		}
		fmt.Fprintln(s.out, s.p.Dim.Render("Saved "+path))

	case "/retry", "/r":
		s.send(ctx, s.app.Retry)

	case "/speak":
		file, err := s.app.SpeakLast(ctx)
		if err != nil {
			return true, err
		}
		fmt.Fprintln(s.out, s.p.Dim.Render("Audio: "+file))

	case "/theme":
		if len(args) == 0 {
			fmt.Fprintf(s.out, "Theme: %s\n", s.app.Snapshot().Theme)
			return true, nil
		}
		t, err := prefs.ParseTheme(args[0])
		if err != nil {
			return true, err
		}
		if err := s.app.SetTheme(t); err != nil {
			return true, err
		}
		dark := s.app.Snapshot().Dark
		s.p = newPalette(s.out, dark)
		s.md = newMarkdown(s.out, s.md.renderer != nil, dark)
		fmt.Fprintf(s.out, "Theme set to %s\n", t)

	default:
		return true, errors.Errorf("unknown command: %s (type /help for commands)", name)
	}
	return true, nil
}

// =============================================================================
// OUTPUT
// =============================================================================

func (s *chatSession) printWelcome() {
	snap := s.app.Snapshot()
	fmt.Fprintln(s.out, s.p.Title.Render("chatdesk chat"))
	if snap.ActiveID != "" {
		fmt.Fprintf(s.out, "%s %s\n", s.p.Dim.Render("Continuing:"), snap.ActiveTitle)
	}
	fmt.Fprintln(s.out, s.p.Dim.Render("Type /help for commands, Ctrl+D to exit."))
	fmt.Fprintln(s.out)
}

func (s *chatSession) printHelp() {
	commands := []struct {
		cmd  string
		desc string
	}{
		{"/new, /n", "Start a new conversation"},
		{"/list, /ls", "List conversations"},
		{"/load <id>", "Open a conversation"},
		{"/delete [id]", "Delete a conversation (default: the open one)"},
		{"/history", "Print the open conversation"},
		{"/export [fmt]", "Save the open conversation (markdown, json)"},
		{"/retry, /r", "Resend the last failed message"},
		{"/speak", "Read the last reply aloud"},
		{"/theme [name]", "Show or set the theme (system, dark, light)"},
		{"/quit, /q", "Exit"},
	}
	fmt.Fprintln(s.out)
	for _, c := range commands {
		fmt.Fprintf(s.out, "  %s  %s\n", s.p.Prompt.Render(fmt.Sprintf("%-15s", c.cmd)), s.p.Dim.Render(c.desc))
	}
	fmt.Fprintln(s.out)
}

func (s *chatSession) printList() {
	snap := s.app.Snapshot()
	if len(snap.Conversations) == 0 {
		fmt.Fprintln(s.out, s.p.Dim.Render("No conversations."))
		return
	}
	width := terminalWidth(s.out) - 4
	for _, c := range snap.Conversations {
		marker := "  "
		if c.ID == snap.ActiveID {
			marker = s.p.Prompt.Render("> ")
		}
		fmt.Fprintf(s.out, "%s%s\n", marker, util.TruncateWidth(c.ID+"  "+c.DisplayTitle(), width))
	}
}

func (s *chatSession) printTranscript() {
	snap := s.app.Snapshot()
	if snap.State == conversation.StateEmpty {
		fmt.Fprintln(s.out, s.p.Dim.Render("No conversation open."))
		return
	}
	fmt.Fprintln(s.out, s.p.Title.Render(snap.ActiveTitle))
	printMessages(s.out, s.p, s.md, snap.Messages)
}

func (s *chatSession) printReply() {
	if reply, ok := lastReply(s.app.Snapshot()); ok {
		fmt.Fprint(s.out, s.md.Render(reply.Content))
	}
}

func (s *chatSession) printError(err error) {
	fmt.Fprintf(s.out, "%s %v\n", s.p.Error.Render("[Error]"), err)
}
