package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"

	"log/slog"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/lintbridge/internal/flagstore"
	"github.com/dshills/lintbridge/internal/migrate"
	"github.com/dshills/lintbridge/internal/session"
)

var (
	warnColor = color.New(color.FgYellow, color.Bold)
	infoColor = color.New(color.FgCyan)
)

// Host wires the whole client side together: workspace, flag store,
// migration coordinator, prompter, lint server process, and the session
// that coordinates them. One Host runs one server process to completion.
type Host struct {
	cfg      Config
	logger   *slog.Logger
	ws       *FSWorkspace
	flags    flagstore.Store
	flagsC   io.Closer
	prompter *TerminalPrompter
	migrator *migrate.Coordinator
	process  *Process
	session  *session.Session
}

// New assembles a host from configuration, workspace folder paths, and an
// explicit list of documents to open.
func New(cfg Config, folderPaths, openFiles []string) (*Host, error) {
	logger := NewLogger(cfg.Log)

	globalPath, err := GlobalSettingsPath()
	if err != nil {
		logger.Warn("no global settings document", "error", err)
		globalPath = ""
	}

	ws, err := NewFSWorkspace(folderPaths, cfg.Workspace, globalPath, logger)
	if err != nil {
		return nil, err
	}
	if err := ws.OpenByGlobs(cfg.Workspace.Include, cfg.Workspace.MaxFiles); err != nil {
		return nil, err
	}
	for _, path := range openFiles {
		if _, err := ws.AddDocument(path); err != nil {
			return nil, err
		}
	}

	h := &Host{
		cfg:      cfg,
		logger:   logger,
		ws:       ws,
		prompter: NewTerminalPrompter(),
	}

	if cfg.Store.InMemory {
		h.flags = flagstore.NewMemory()
	} else {
		path, err := cfg.Store.StorePath()
		if err != nil {
			return nil, err
		}
		store, err := flagstore.OpenBadger(flagstore.Config{Path: path, Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("opening flag store: %w", err)
		}
		h.flags = store
		h.flagsC = store
	}

	h.migrator = migrate.NewCoordinator(ws, h.prompter, h.flags,
		migrate.WithLogger(logger),
		migrate.WithWarnFunc(h.warn),
		migrate.WithOpenDocs(h.openURL),
	)
	h.process = NewProcess(cfg.Server, ws.Folders(), logger)
	return h, nil
}

// Run starts the lint server and blocks until it exits or the context is
// canceled. The return value is nil for a clean stop: context cancel or a
// server-requested exit.
func (h *Host) Run(ctx context.Context) error {
	defer h.close()

	if err := h.process.Start(ctx); err != nil {
		return err
	}

	h.session = session.NewSession(h.process.Transport(), h.ws, h.migrator, h.flags,
		session.WithLogger(h.logger),
		session.WithWarnFunc(h.warn),
		session.WithInfoFunc(h.info),
		session.WithOpenURL(h.openURL),
		session.WithPrompter(h.prompter),
	)

	if err := h.process.Initialize(ctx); err != nil {
		_ = h.process.Shutdown(context.Background())
		return err
	}
	h.session.SetState(ctx, session.StateRunning)

	watcher, err := NewSettingsWatcher(h.ws.SettingsPaths(), func(string) {
		h.session.HandleConfigurationChange(ctx)
	}, h.logger)
	if err != nil {
		h.logger.Warn("settings watching disabled", "error", err)
	} else {
		defer watcher.Close()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return gctx.Err()
		case <-h.process.Exited():
			return h.handleExit(h.process.ExitError())
		}
	})

	err = g.Wait()
	h.session.SetState(context.Background(), session.StateStopped)
	_ = h.process.Shutdown(context.Background())

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// handleExit classifies a server exit: requested exits are clean, anything
// else is reported as a failure. Restarts are the embedding editor's
// responsibility.
func (h *Host) handleExit(exitErr error) error {
	if h.session.ServerCalledExit() {
		h.info("The lint server stopped at its own request.")
		return nil
	}
	if exitErr != nil {
		h.warn(fmt.Sprintf("The lint server exited unexpectedly: %v", exitErr))
		return fmt.Errorf("lint server exited: %w", exitErr)
	}
	h.warn("The lint server exited unexpectedly.")
	return errors.New("lint server exited unexpectedly")
}

// Session exposes the running session, nil before Run.
func (h *Host) Session() *session.Session {
	return h.session
}

func (h *Host) close() {
	if h.flagsC != nil {
		if err := h.flagsC.Close(); err != nil {
			h.logger.Warn("closing flag store failed", "error", err)
		}
	}
}

func (h *Host) warn(text string) {
	_, _ = warnColor.Fprintf(os.Stderr, "⚠ %s\n", text)
}

func (h *Host) info(text string) {
	_, _ = infoColor.Fprintf(os.Stderr, "%s\n", text)
}

// openURL launches the platform opener, best effort.
func (h *Host) openURL(ctx context.Context, url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", url)
	case "windows":
		cmd = exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.CommandContext(ctx, "xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		h.warn(fmt.Sprintf("Could not open %s: %v", url, err))
		return
	}
	go func() { _ = cmd.Wait() }()
}

// NewLogger builds the host logger per the log configuration. Output goes
// to stderr so the terminal prompts stay usable.
func NewLogger(cfg LogConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
