package host

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"log/slog"

	"github.com/dshills/lintbridge/internal/protocol"
)

// Process runs the lint server as a child process and owns its transport.
// The host starts it once; when it exits, the session is told and the host
// winds down. Restarting is the embedding editor's call, not ours.
type Process struct {
	mu sync.Mutex

	config  ServerConfig
	folders []protocol.WorkspaceFolder
	logger  *slog.Logger

	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    io.ReadCloser
	stderr    io.ReadCloser
	transport *protocol.Transport

	serverInfo *protocol.ServerInfo
	started    bool
	exitErr    error
	exited     chan struct{}
}

// NewProcess prepares a process runner. Nothing is spawned until Start.
func NewProcess(config ServerConfig, folders []protocol.WorkspaceFolder, logger *slog.Logger) *Process {
	if logger == nil {
		logger = slog.Default()
	}
	return &Process{
		config:  config,
		folders: folders,
		logger:  logger,
		exited:  make(chan struct{}),
	}
}

// Start spawns the lint server and brings up the transport read loop. The
// handshake is a separate step so the caller can register its handlers
// before the server can talk.
func (p *Process) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrAlreadyStarted
	}
	if p.config.Command == "" {
		return ErrNoServerCommand
	}

	cmd := exec.CommandContext(ctx, p.config.Command, p.config.Args...)
	cmd.Env = os.Environ()
	for k, v := range p.config.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	if len(p.folders) > 0 {
		cmd.Dir = p.folders[0].URI.Path()
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		stdout.Close()
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		stderr.Close()
		return fmt.Errorf("start %s: %w", p.config.Command, err)
	}

	p.cmd = cmd
	p.stdin = stdin
	p.stdout = stdout
	p.stderr = stderr
	p.started = true

	p.transport = protocol.NewTransport(stdout, stdin, stdin)
	p.transport.Start(ctx)

	go p.drainStderr()
	go p.monitor()

	p.logger.Info("lint server started", "command", p.config.Command, "pid", cmd.Process.Pid)
	return nil
}

// Transport returns the server connection. Nil before Start.
func (p *Process) Transport() *protocol.Transport {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.transport
}

// Initialize performs the initialize/initialized handshake. Handlers must
// already be registered on the transport.
func (p *Process) Initialize(ctx context.Context) error {
	p.mu.Lock()
	transport := p.transport
	p.mu.Unlock()
	if transport == nil {
		return ErrNotStarted
	}

	params := protocol.InitializeParams{
		ProcessID: os.Getpid(),
		Capabilities: protocol.ClientCapabilities{
			Workspace: &protocol.WorkspaceClientCapabilities{
				Configuration:          true,
				DidChangeConfiguration: true,
				WorkspaceFolders:       true,
			},
		},
		WorkspaceFolders: p.folders,
	}
	if len(p.folders) > 0 {
		params.RootURI = p.folders[0].URI
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout())
	defer cancel()

	var result protocol.InitializeResult
	if err := transport.Call(ctx, protocol.MethodInitialize, params, &result); err != nil {
		return fmt.Errorf("initialize request: %w", err)
	}

	p.mu.Lock()
	p.serverInfo = result.ServerInfo
	p.mu.Unlock()

	if err := transport.Notify(ctx, protocol.MethodInitialized, protocol.InitializedParams{}); err != nil {
		return fmt.Errorf("initialized notification: %w", err)
	}

	if result.ServerInfo != nil {
		p.logger.Info("lint server initialized",
			"name", result.ServerInfo.Name, "version", result.ServerInfo.Version)
	}
	return nil
}

// ServerInfo returns the identity the server reported during initialize.
func (p *Process) ServerInfo() *protocol.ServerInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.serverInfo
}

// Exited returns a channel closed when the process is gone. Any number of
// callers may wait on it.
func (p *Process) Exited() <-chan struct{} {
	return p.exited
}

// ExitError returns the process exit error, valid after Exited is closed.
func (p *Process) ExitError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitErr
}

// Shutdown asks the server to stop, then makes sure it does.
func (p *Process) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	transport := p.transport
	cmd := p.cmd
	p.mu.Unlock()

	if transport != nil && !transport.IsClosed() {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_ = transport.Call(shutdownCtx, protocol.MethodShutdown, nil, nil)
		_ = transport.Notify(shutdownCtx, protocol.MethodExit, nil)
		cancel()
		transport.Close()
	}

	if cmd != nil && cmd.Process != nil {
		select {
		case <-p.exited:
		case <-time.After(3 * time.Second):
			p.logger.Warn("lint server did not exit, killing", "pid", cmd.Process.Pid)
			_ = cmd.Process.Kill()
		case <-ctx.Done():
			_ = cmd.Process.Kill()
		}
	}
	return nil
}

// monitor waits for the process and publishes its exit.
func (p *Process) monitor() {
	err := p.cmd.Wait()
	if err != nil {
		p.logger.Warn("lint server exited", "error", err)
	} else {
		p.logger.Info("lint server exited")
	}
	p.mu.Lock()
	p.exitErr = err
	p.mu.Unlock()
	close(p.exited)
}

// drainStderr forwards the server's stderr into the host log so crashes
// leave a trail.
func (p *Process) drainStderr() {
	scanner := bufio.NewScanner(p.stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		p.logger.Debug("lint server stderr", "line", scanner.Text())
	}
}
