// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jeranaias/chatdesk/internal/app"
	"github.com/jeranaias/chatdesk/internal/audio"
	"github.com/jeranaias/chatdesk/internal/config"
	"github.com/jeranaias/chatdesk/internal/logging"
	"github.com/jeranaias/chatdesk/internal/prefs"
	"github.com/jeranaias/chatdesk/internal/storage"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// annotationTUI marks commands that take over the screen. They log to a
// file only.
const annotationTUI = "chatdesk/tui"

// runtime is the per-invocation state shared by every command.
type runtime struct {
	v          *viper.Viper
	cfg        *config.Config
	configPath string
	logger     zerolog.Logger

	kv     storage.KV
	player *audio.CommandPlayer
	app    *app.App
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand()
	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		if h := hint(err); h != "" {
			fmt.Fprintln(root.ErrOrStderr(), h)
		}
	}
	return ExitCode(err)
}

// NewRootCommand builds the command tree. Running it with no subcommand
// starts the full-screen interface.
func NewRootCommand() *cobra.Command {
	rt := &runtime{v: viper.New()}

	root := &cobra.Command{
		Use:   "chatdesk",
		Short: "Terminal client for the chat assistant",
		Long: `chatdesk talks to the chat assistant backend from the terminal.

With no arguments it opens the full-screen interface. The subcommands cover
the same ground for scripts: log in, list and manage conversations, ask a
one-off question or open a line-based chat.`,
		Version:           fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
		SilenceUsage:      true,
		SilenceErrors:     true,
		Annotations:       map[string]string{annotationTUI: "true"},
		PersistentPreRunE: rt.init,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, rt)
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &UsageError{Msg: err.Error()}
	})

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (default ~/.chatdesk/config.toml)")
	flags.String("api-url", "", "backend base URL")
	flags.String("log-level", "", "log level: trace, debug, info, warn, error")
	flags.String("log-format", "", "log format: text or json")
	flags.String("log-file", "", "also write logs to this file")
	flags.BoolP("verbose", "v", false, "debug logging")

	rt.v.SetEnvPrefix("CHATDESK")
	rt.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	rt.v.AutomaticEnv()
	cobra.CheckErr(rt.v.BindPFlags(flags))

	root.AddCommand(
		newLoginCommand(rt),
		newRegisterCommand(rt),
		newLogoutCommand(rt),
		newStatusCommand(rt),
		newConversationsCommand(rt),
		newAskCommand(rt),
		newChatCommand(rt),
		newSpeakCommand(rt),
		newThemeCommand(rt),
		newConfigCommand(rt),
		newTUICommand(rt),
	)
	return root
}

// =============================================================================
// SETUP
// =============================================================================

// init loads .env, the config file and flags, then installs the logger.
func (rt *runtime) init(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: .env: %v\n", err)
	}

	var err error
	if path := rt.v.GetString("config"); path != "" {
		rt.configPath = path
		rt.cfg, err = config.LoadFromPath(path)
	} else {
		rt.configPath, _ = config.ConfigPathTOML()
		rt.cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	if u := rt.v.GetString("api-url"); u != "" {
		rt.cfg.API.BaseURL = strings.TrimSuffix(u, "/")
	}
	if s := rt.v.GetString("log-level"); s != "" {
		rt.cfg.Logging.Level = s
	}
	if s := rt.v.GetString("log-format"); s != "" {
		rt.cfg.Logging.Format = s
	}
	if s := rt.v.GetString("log-file"); s != "" {
		rt.cfg.Logging.File = s
	}
	if rt.v.GetBool("verbose") && rt.cfg.Logging.Level != "trace" {
		rt.cfg.Logging.Level = "debug"
	}
	if err := rt.cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid settings")
	}

	opts := logging.Options{
		Level:  rt.cfg.Logging.Level,
		Format: rt.cfg.Logging.Format,
		File:   rt.cfg.Logging.File,
		Stderr: cmd.ErrOrStderr(),
	}
	if cmd.Annotations[annotationTUI] == "true" {
		opts.Quiet = true
		if opts.File == "" {
			if dir, err := config.ConfigDir(); err == nil {
				opts.File = filepath.Join(dir, "chatdesk.log")
			}
		}
	}
	rt.logger, err = logging.Init(opts)
	if err != nil {
		return err
	}
	rt.logger.Debug().Str("config", rt.configPath).Str("api", rt.cfg.API.BaseURL).Msg("configuration loaded")
	return nil
}

// open builds the application on top of the configured store. Callers must
// defer close.
func (rt *runtime) open() (*app.App, error) {
	path, err := rt.cfg.StoragePath()
	if err != nil {
		return nil, err
	}
	rt.kv, err = storage.Open(rt.cfg.Storage.Backend, path)
	if err != nil {
		return nil, errors.Wrap(err, "open local storage")
	}

	audioDir, err := rt.cfg.AudioDir()
	if err != nil {
		return nil, err
	}
	rt.player = audio.NewCommandPlayer(audioDir, rt.cfg.Audio.Player, nil, rt.logger)

	rt.app = app.New(app.Options{
		BaseURL:           rt.cfg.API.BaseURL,
		Timeout:           time.Duration(rt.cfg.API.TimeoutSecs) * time.Second,
		RequestsPerSecond: rt.cfg.API.RequestsPerSecond,
		Burst:             rt.cfg.API.Burst,
		UserAgent:         "chatdesk/" + Version,
		Placeholder:       rt.cfg.UI.TypingPlaceholder,
		KV:                rt.kv,
		Player:            rt.player,
		DetectDark:        prefs.DetectTerminal,
		Logger:            rt.logger,
	})
	if err := rt.app.Restore(); err != nil {
		rt.close()
		return nil, err
	}
	return rt.app, nil
}

// start opens the application and syncs with the backend. A failed sync is
// reported but not fatal.
func (rt *runtime) start(cmd *cobra.Command) (*app.App, error) {
	a, err := rt.open()
	if err != nil {
		return nil, err
	}
	if err := a.Start(cmd.Context()); err != nil {
		if errors.Is(err, app.ErrStaleCredential) {
			return a, err
		}
		rt.logger.Warn().Err(err).Msg("initial sync failed")
	}
	return a, nil
}

// watch follows external changes to the credential when the store is a
// file, so a login or logout in another terminal is picked up.
func (rt *runtime) watch(ctx context.Context) {
	f, ok := rt.kv.(*storage.File)
	if !ok {
		return
	}
	err := f.Watch(ctx, func() {
		if err := rt.app.Reconcile(ctx); err != nil {
			rt.logger.Warn().Err(err).Msg("reconcile after store change")
		}
	})
	if err != nil {
		rt.logger.Warn().Err(err).Msg("cannot watch local storage")
	}
}

func (rt *runtime) close() {
	if rt.kv != nil {
		if err := rt.kv.Close(); err != nil {
			rt.logger.Warn().Err(err).Msg("close storage")
		}
		rt.kv = nil
	}
}

// palette returns styles for cmd's output stream.
func (rt *runtime) palette(cmd *cobra.Command) palette {
	dark := true
	if rt.app != nil {
		dark = rt.app.Snapshot().Dark
	}
	return newPalette(cmd.OutOrStdout(), dark)
}

// markdown returns a reply renderer for cmd's output stream.
func (rt *runtime) markdown(cmd *cobra.Command, raw bool) *markdown {
	dark := true
	if rt.app != nil {
		dark = rt.app.Snapshot().Dark
	}
	return newMarkdown(cmd.OutOrStdout(), rt.cfg.UI.RenderMarkdown && !raw, dark)
}
