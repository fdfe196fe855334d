// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatdesk/internal/api"
	"github.com/jeranaias/chatdesk/internal/app"
	"github.com/jeranaias/chatdesk/internal/config"
	"github.com/jeranaias/chatdesk/internal/model"
	"github.com/jeranaias/chatdesk/internal/server"
	"github.com/jeranaias/chatdesk/internal/session"
)

// =============================================================================
// HARNESS
// =============================================================================

type cliEnv struct {
	t    *testing.T
	srv  *server.Server
	url  string
	home string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	srv := server.New(server.Options{})
	srv.AddUser("ana", "pw")
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	home := t.TempDir()
	t.Setenv("CHATDESK_HOME", home)
	t.Setenv("NO_COLOR", "1")
	return &cliEnv{t: t, srv: srv, url: ts.URL, home: home}
}

// run executes one chatdesk invocation and returns stdout and stderr.
func (e *cliEnv) run(stdin string, args ...string) (string, string, error) {
	e.t.Helper()
	root := NewRootCommand()
	var out, errOut bytes.Buffer
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--api-url", e.url}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func (e *cliEnv) mustRun(args ...string) string {
	e.t.Helper()
	out, stderr, err := e.run("", args...)
	require.NoError(e.t, err, "chatdesk %s\nstderr: %s", strings.Join(args, " "), stderr)
	return out
}

func (e *cliEnv) login() {
	e.t.Helper()
	e.mustRun("login", "-u", "ana", "--password", "pw")
}

// decodeData unpacks the data field of a --json envelope.
func decodeData(t *testing.T, out string, v interface{}) {
	t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &env), out)
	require.True(t, env.Success)
	require.NoError(t, json.Unmarshal(env.Data, v))
}

// =============================================================================
// AUTH
// =============================================================================

func TestLoginAndStatus(t *testing.T) {
	e := newCLIEnv(t)

	out := e.mustRun("login", "-u", "ana", "--password", "pw")
	assert.Contains(t, out, "Logged in as ana")
	assert.Contains(t, out, "0 conversation(s)")

	var offline statusReport
	decodeData(t, e.mustRun("status", "--offline", "--json"), &offline)
	assert.Equal(t, "unverified", offline.Credential)
	assert.Equal(t, e.url, offline.APIURL)
	assert.Nil(t, offline.Reachable)

	var online statusReport
	decodeData(t, e.mustRun("status", "--json"), &online)
	assert.Equal(t, "verified", online.Credential)
	require.NotNil(t, online.Reachable)
	assert.True(t, *online.Reachable)
	require.NotNil(t, online.Conversations)
	assert.Equal(t, 0, *online.Conversations)

	text := e.mustRun("status", "--offline")
	assert.Contains(t, text, "chatdesk status")
	assert.Contains(t, text, e.url)
}

func TestLoginPromptsForMissingFields(t *testing.T) {
	e := newCLIEnv(t)
	out, stderr, err := e.run("ana\npw\n", "login")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Username: ")
	assert.Contains(t, stderr, "Password: ")
	assert.Contains(t, out, "Logged in as ana")
}

func TestLoginWrongPassword(t *testing.T) {
	e := newCLIEnv(t)
	_, _, err := e.run("", "login", "-u", "ana", "--password", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitAuthError, ExitCode(err))
}

func TestRegisterThenLogin(t *testing.T) {
	e := newCLIEnv(t)
	out := e.mustRun("register", "-u", "luis", "--password", "secret", "--login")
	assert.Contains(t, out, "Account luis created")
	assert.Contains(t, out, "Logged in as luis")

	var st statusReport
	decodeData(t, e.mustRun("status", "--offline", "--json"), &st)
	assert.NotEqual(t, "none", st.Credential)
}

func TestLogout(t *testing.T) {
	e := newCLIEnv(t)
	e.login()

	assert.Contains(t, e.mustRun("logout"), "Logged out.")
	assert.Contains(t, e.mustRun("status", "--offline"), "logged out")

	_, _, err := e.run("", "conversations", "list")
	assert.ErrorIs(t, err, app.ErrNotAuthenticated)
	assert.Equal(t, ExitAuthError, ExitCode(err))
}

func TestRevokedTokenIsForgotten(t *testing.T) {
	e := newCLIEnv(t)
	e.login()
	e.srv.Revoke()

	_, _, err := e.run("", "conversations", "list")
	require.Error(t, err)
	assert.Equal(t, ExitAuthError, ExitCode(err))

	var st statusReport
	decodeData(t, e.mustRun("status", "--offline", "--json"), &st)
	assert.Equal(t, "none", st.Credential)
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

func TestConversationLifecycle(t *testing.T) {
	e := newCLIEnv(t)
	e.login()

	assert.Contains(t, e.mustRun("conversations"), "No conversations yet")

	id := strings.TrimSpace(e.mustRun("conversations", "new"))
	require.NotEmpty(t, id)

	list := e.mustRun("conversations", "list")
	assert.Contains(t, list, id)
	assert.Contains(t, list, model.DefaultTitle)

	out := e.mustRun("ask", "-c", id, "--raw", "hola")
	assert.Equal(t, "Recibido: hola\n", out)

	var dump conversationDump
	decodeData(t, e.mustRun("conversations", "show", id, "--json"), &dump)
	assert.Equal(t, id, dump.ID)
	require.Len(t, dump.Messages, 2)
	assert.Equal(t, model.RoleUser, dump.Messages[0].Role)
	assert.Equal(t, "hola", dump.Messages[0].Content)

	show := e.mustRun("conversations", "show", id)
	assert.Contains(t, show, "hola")
	assert.Contains(t, show, "Recibido: hola")

	assert.Contains(t, e.mustRun("conversations", "rm", id), "Deleted "+id)
	assert.Contains(t, e.mustRun("conversations", "ls"), "No conversations yet")
}

func TestConversationsListJSON(t *testing.T) {
	e := newCLIEnv(t)
	e.srv.Seed("ana", "Viaje a Lima", model.NewUserMessage("hola"))
	e.login()

	var list []model.ConversationSummary
	decodeData(t, e.mustRun("conversations", "list", "--json"), &list)
	require.Len(t, list, 1)
	assert.Equal(t, "Viaje a Lima", list[0].Title)
}

func TestExportConversation(t *testing.T) {
	e := newCLIEnv(t)
	id := e.srv.Seed("ana", "Recetas", model.NewUserMessage("pan"), model.NewAssistantMessage("harina y agua"))
	e.login()

	md := e.mustRun("conversations", "export", id, "-o", "-", "--no-metadata")
	assert.Equal(t, "# Recetas\n\n### You\n\npan\n\n---\n\n### Assistant\n\nharina y agua\n", md)

	dir := t.TempDir()
	path := strings.TrimSpace(e.mustRun("conversations", "export", id, "--format", "json", "-o", dir))
	assert.Equal(t, dir, filepath.Dir(path))
	assert.Equal(t, ".json", filepath.Ext(path))

	_, _, err := e.run("", "conversations", "export", id, "--format", "pdf")
	assert.Equal(t, ExitUsageError, ExitCode(err))
}

func TestShowUnknownConversation(t *testing.T) {
	e := newCLIEnv(t)
	e.login()
	_, _, err := e.run("", "conversations", "show", "9999")
	require.Error(t, err)
	assert.Equal(t, ExitNotFound, ExitCode(err))
}

// =============================================================================
// ASK AND CHAT
// =============================================================================

func TestAskFromStdinStartsConversation(t *testing.T) {
	e := newCLIEnv(t)
	e.login()

	out, _, err := e.run("  hola desde stdin \n", "ask", "--json")
	require.NoError(t, err)

	var res askResult
	decodeData(t, out, &res)
	assert.Equal(t, "Recibido: hola desde stdin", res.Reply)
	assert.NotEmpty(t, res.ConversationID)
	assert.Len(t, e.srv.History("ana", res.ConversationID), 2)
}

func TestAskContinuesLatest(t *testing.T) {
	e := newCLIEnv(t)
	older := e.srv.Seed("ana", "Vieja", model.NewUserMessage("uno"), model.NewAssistantMessage("dos"))
	latest := e.srv.Seed("ana", "Nueva", model.NewUserMessage("tres"), model.NewAssistantMessage("cuatro"))
	e.login()

	e.mustRun("ask", "--raw", "cinco")
	assert.Len(t, e.srv.History("ana", latest), 4)
	assert.Len(t, e.srv.History("ana", older), 2)
}

func TestAskFlags(t *testing.T) {
	e := newCLIEnv(t)
	e.login()

	_, _, err := e.run("", "ask")
	assert.Equal(t, ExitUsageError, ExitCode(err))

	_, _, err = e.run("", "ask", "-n", "-c", "1", "hola")
	require.Error(t, err)
}

func TestChatSession(t *testing.T) {
	e := newCLIEnv(t)
	e.login()

	script := strings.Join([]string{
		"hola",
		"/history",
		"/list",
		"/theme dark",
		"/bogus",
		"/quit",
		"never sent",
	}, "\n") + "\n"
	out, stderr, err := e.run(script, "chat", "--raw")
	require.NoError(t, err, stderr)

	assert.Contains(t, out, "chatdesk chat")
	assert.GreaterOrEqual(t, strings.Count(out, "Recibido: hola"), 2, "reply and /history")
	assert.Contains(t, out, "> ", "/list marks the open conversation")
	assert.Contains(t, out, "Theme set to dark")
	assert.Contains(t, out, "unknown command: /bogus")
	assert.NotContains(t, out, "never sent")
	assert.Contains(t, e.mustRun("theme"), "dark (dark)")
}

func TestChatEndsAtEOF(t *testing.T) {
	e := newCLIEnv(t)
	e.login()

	out, _, err := e.run("/new\n/new\n", "chat")
	require.NoError(t, err)
	assert.Contains(t, out, "Started conversation")
	assert.Contains(t, out, app.ErrNewChatBlocked.Error())
}

func TestChatRequiresLogin(t *testing.T) {
	e := newCLIEnv(t)
	_, _, err := e.run("hola\n", "chat")
	assert.ErrorIs(t, err, app.ErrNotAuthenticated)
}

// =============================================================================
// SPEECH, THEME AND CONFIG
// =============================================================================

func TestSpeakText(t *testing.T) {
	e := newCLIEnv(t)
	out := strings.TrimSpace(e.mustRun("speak", "buenos", "días"))
	require.True(t, strings.HasSuffix(out, ".mp3"), out)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "ID3buenos días", string(data))
}

func TestSpeakLastWithoutConversations(t *testing.T) {
	e := newCLIEnv(t)
	e.login()
	_, _, err := e.run("", "speak")
	assert.ErrorIs(t, err, app.ErrNothingToSpeak)
}

func TestThemeCommand(t *testing.T) {
	e := newCLIEnv(t)

	assert.Equal(t, "light (light)\n", e.mustRun("theme", "light"))
	assert.Equal(t, "light (light)\n", e.mustRun("theme"))

	_, _, err := e.run("", "theme", "sepia")
	assert.Equal(t, ExitUsageError, ExitCode(err))
}

func TestConfigCommands(t *testing.T) {
	e := newCLIEnv(t)
	path := filepath.Join(e.home, "config.toml")

	assert.Equal(t, path+"\n", e.mustRun("config", "path"))
	assert.Contains(t, e.mustRun("config", "init"), "Wrote "+path)

	_, _, err := e.run("", "config", "init")
	require.Error(t, err)
	e.mustRun("config", "init", "--force")

	assert.Equal(t, "api.timeout_secs = 30\n", e.mustRun("config", "set", "api.timeout_secs", "30"))
	assert.Equal(t, "30\n", e.mustRun("config", "get", "api.timeout_secs"))

	cfg, err := config.LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.API.TimeoutSecs)
	assert.Equal(t, config.DefaultBaseURL, cfg.API.BaseURL, "flags are not written back")

	_, _, err = e.run("", "config", "set", "api.nope", "1")
	assert.Equal(t, ExitUsageError, ExitCode(err))

	_, _, err = e.run("", "config", "set", "storage.backend", "redis")
	assert.Equal(t, ExitConfigError, ExitCode(err))

	var shown config.Config
	decodeData(t, e.mustRun("config", "show", "--json"), &shown)
	assert.Equal(t, e.url, shown.API.BaseURL)
}

// =============================================================================
// EXIT CODES
// =============================================================================

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitSuccess},
		{errors.New("boom"), ExitGeneralError},
		{usageErrorf("bad %s", "flag"), ExitUsageError},
		{session.ErrInvalidCredentials, ExitAuthError},
		{errors.Wrap(app.ErrStaleCredential, "list"), ExitAuthError},
		{api.ErrUnauthorized, ExitAuthError},
		{fmt.Errorf("load: %w", api.ErrNotFound), ExitNotFound},
		{context.DeadlineExceeded, ExitTimeout},
	}
	for _, tt := range tests {
		name := "nil"
		if tt.err != nil {
			name = tt.err.Error()
		}
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}
