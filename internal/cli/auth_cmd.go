// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/chatdesk/internal/app"
	"github.com/jeranaias/chatdesk/internal/session"
)

// credentialFlags are shared by login and register.
type credentialFlags struct {
	username string
	password string
}

func (f *credentialFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.username, "username", "u", "", "account name (prompted when omitted)")
	cmd.Flags().StringVar(&f.password, "password", "", "password (prompted when omitted; visible in shell history)")
}

// resolve prompts for whatever was not given on the command line.
func (f *credentialFlags) resolve(cmd *cobra.Command) (string, string, error) {
	p := newPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
	username, password := f.username, f.password

	var err error
	if strings.TrimSpace(username) == "" {
		if username, err = p.Line("Username: "); err != nil {
			return "", "", err
		}
	}
	if password == "" {
		if password, err = p.Password("Password: "); err != nil {
			return "", "", err
		}
	}
	return strings.TrimSpace(username), password, nil
}

func newLoginCommand(rt *runtime) *cobra.Command {
	var creds credentialFlags
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and remember the session",
		Example: `  chatdesk login
  chatdesk login -u ana`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			username, password, err := creds.resolve(cmd)
			if err != nil {
				return err
			}

			a, err := rt.open()
			if err != nil {
				return err
			}
			defer rt.close()

			if err := a.Login(cmd.Context(), username, password); err != nil {
				return err
			}

			p := rt.palette(cmd)
			snap := a.Snapshot()
			fmt.Fprintf(cmd.OutOrStdout(), "%s Logged in as %s\n", p.Success.Render("✓"), username)
			fmt.Fprintf(cmd.OutOrStdout(), "%d conversation(s)\n", len(snap.Conversations))
			if snap.LastError != nil {
				fmt.Fprintln(cmd.OutOrStdout(), p.Warning.Render("Could not load conversations: "+snap.LastError.Error()))
			}
			return nil
		},
	}
	creds.bind(cmd)
	return cmd
}

func newRegisterCommand(rt *runtime) *cobra.Command {
	var creds credentialFlags
	var thenLogin bool
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			username, password, err := creds.resolve(cmd)
			if err != nil {
				return err
			}

			a, err := rt.open()
			if err != nil {
				return err
			}
			defer rt.close()

			if err := a.Register(cmd.Context(), username, password); err != nil {
				return err
			}
			p := rt.palette(cmd)
			fmt.Fprintf(cmd.OutOrStdout(), "%s Account %s created\n", p.Success.Render("✓"), username)

			if !thenLogin {
				fmt.Fprintln(cmd.OutOrStdout(), p.Dim.Render("Run 'chatdesk login' to start."))
				return nil
			}
			if err := a.Login(cmd.Context(), username, password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Logged in as %s\n", p.Success.Render("✓"), username)
			return nil
		},
	}
	creds.bind(cmd)
	cmd.Flags().BoolVar(&thenLogin, "login", false, "log in after registering")
	return cmd
}

func newLogoutCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.open()
			if err != nil {
				return err
			}
			defer rt.close()

			if err := a.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

// statusReport is the --json shape of status.
type statusReport struct {
	APIURL        string     `json:"api_url"`
	Storage       string     `json:"storage"`
	StoragePath   string     `json:"storage_path"`
	Credential    string     `json:"credential"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	Conversations *int       `json:"conversations,omitempty"`
	Theme         string     `json:"theme"`
	Reachable     *bool      `json:"reachable,omitempty"`
	Error         string     `json:"error,omitempty"`
}

func newStatusCommand(rt *runtime) *cobra.Command {
	var asJSON, offline bool
	cmd := &cobra.Command{
		Use:     "status",
		Aliases: []string{"s"},
		Short:   "Show the session and backend state",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.open()
			if err != nil {
				return err
			}
			defer rt.close()

			path, _ := rt.cfg.StoragePath()
			report := statusReport{
				APIURL:      rt.cfg.API.BaseURL,
				Storage:     rt.cfg.Storage.Backend,
				StoragePath: path,
			}

			if !offline && a.Snapshot().Authenticated() {
				refreshErr := a.Refresh(cmd.Context())
				reachable := refreshErr == nil
				report.Reachable = &reachable
				if refreshErr != nil {
					report.Error = refreshErr.Error()
				} else {
					n := len(a.Snapshot().Conversations)
					report.Conversations = &n
				}
			}

			snap := a.Snapshot()
			report.Credential = snap.Credential.String()
			report.Theme = string(snap.Theme)
			if !snap.ExpiresAt.IsZero() {
				exp := snap.ExpiresAt
				report.ExpiresAt = &exp
			}

			if asJSON {
				return NewJSONResponse("status", report).Write(cmd.OutOrStdout())
			}
			printStatus(cmd, rt.palette(cmd), report, snap)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.Flags().BoolVar(&offline, "offline", false, "do not contact the backend")
	return cmd
}

func printStatus(cmd *cobra.Command, p palette, r statusReport, snap app.Snapshot) {
	w := cmd.OutOrStdout()
	fmt.Fprintln(w, p.Title.Render("chatdesk status"))
	p.field(w, "Backend", r.APIURL)
	p.field(w, "Storage", fmt.Sprintf("%s (%s)", r.Storage, r.StoragePath))
	p.field(w, "Theme", r.Theme)

	switch snap.Credential {
	case session.CredentialNone:
		p.field(w, "Session", "logged out")
		return
	default:
		p.field(w, "Session", r.Credential)
	}
	if r.ExpiresAt != nil {
		remaining := time.Until(*r.ExpiresAt).Round(time.Minute)
		if remaining <= 0 {
			p.field(w, "Token", p.Warning.Render("expired "+r.ExpiresAt.Local().Format(time.RFC822)))
		} else {
			p.field(w, "Token", fmt.Sprintf("expires in %s", remaining))
		}
	}
	if r.Conversations != nil {
		p.field(w, "Conversations", *r.Conversations)
	}
	if r.Error != "" {
		p.field(w, "Backend error", p.Error.Render(r.Error))
	}
}
