package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dshills/lintbridge/internal/flagstore"
	"github.com/dshills/lintbridge/internal/migrate"
	"github.com/dshills/lintbridge/internal/policy"
	"github.com/dshills/lintbridge/internal/protocol"
	"github.com/dshills/lintbridge/internal/settings"
)

// State is the lifecycle state of the analysis session.
type State int32

const (
	// StateStarting means the analysis process is launching.
	StateStarting State = iota
	// StateRunning means the handshake completed and sync is live.
	StateRunning
	// StateStopped means the analysis process is gone.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Conn is the protocol connection to the analysis process.
type Conn interface {
	Call(ctx context.Context, method string, params any, result any) error
	Notify(ctx context.Context, method string, params any) error
	OnRequest(method string, handler protocol.RequestHandler)
	OnNotification(method string, handler protocol.NotificationHandler)
}

// Workspace is the session's window into the editor side: open documents,
// workspace folders, settings documents, and document content for sync.
type Workspace interface {
	// OpenDocuments enumerates the currently open documents.
	OpenDocuments() []Document
	// Folders lists the workspace folders in declaration order.
	Folders() []protocol.WorkspaceFolder
	// FolderFor returns the folder owning the URI, or nil.
	FolderFor(uri protocol.DocumentURI) *protocol.WorkspaceFolder
	// SettingsView returns the merged settings for a folder scope; the
	// empty scope is global-only.
	SettingsView(folder protocol.DocumentURI) *settings.View
	// DocumentItem loads the full document for a didOpen.
	DocumentItem(uri protocol.DocumentURI) (protocol.TextDocumentItem, error)
}

// Prompter shows non-modal information prompts. The returned action is the
// one the user picked, or empty when dismissed.
type Prompter interface {
	ShowInformation(ctx context.Context, message string, actions ...string) (string, error)
}

type noopPrompter struct{}

func (noopPrompter) ShowInformation(context.Context, string, ...string) (string, error) {
	return "", nil
}

const actionDontShowAgain = "Don't Show Again"

// Session coordinates the editor with the analysis process: it owns the
// sync reconciler, answers the process's requests, and carries the
// session-lifetime flags. Flags reset when the process restarts.
type Session struct {
	id         string
	conn       Conn
	ws         Workspace
	flags      flagstore.Store
	classifier *policy.Classifier
	reconciler *Reconciler
	notebooks  *NotebookTracker
	resolver   *Resolver
	migrator   *migrate.Coordinator
	status     *statusMap
	logger     *slog.Logger
	prompter   Prompter

	warn    func(text string)
	info    func(text string)
	openURL func(ctx context.Context, url string)

	state            atomic.Int32
	serverCalledExit atomic.Bool
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithWarnFunc routes user-facing warnings.
func WithWarnFunc(warn func(text string)) Option {
	return func(s *Session) {
		if warn != nil {
			s.warn = warn
		}
	}
}

// WithInfoFunc routes user-facing informational messages.
func WithInfoFunc(info func(text string)) Option {
	return func(s *Session) {
		if info != nil {
			s.info = info
		}
	}
}

// WithOpenURL sets the callback for lint/openDoc requests.
func WithOpenURL(open func(ctx context.Context, url string)) Option {
	return func(s *Session) {
		if open != nil {
			s.openURL = open
		}
	}
}

// WithPrompter sets the information-prompt collaborator.
func WithPrompter(p Prompter) Option {
	return func(s *Session) {
		if p != nil {
			s.prompter = p
		}
	}
}

// NewSession wires a session to the connection and registers its inbound
// handlers. The session starts in the starting state.
func NewSession(conn Conn, ws Workspace, migrator *migrate.Coordinator, flags flagstore.Store, opts ...Option) *Session {
	s := &Session{
		id:       uuid.NewString(),
		conn:     conn,
		ws:       ws,
		flags:    flags,
		migrator: migrator,
		status:   newStatusMap(),
		logger:   slog.Default(),
		prompter: noopPrompter{},
		warn:     func(string) {},
		info:     func(string) {},
		openURL:  func(context.Context, string) {},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.classifier = policy.NewClassifier()
	s.reconciler = NewReconciler(s.classifier, s.configFor, s, s.logger)
	s.notebooks = NewNotebookTracker(s.reconciler)
	s.resolver = NewResolver(ws, s.classifier, s.reconciler, migrator, s.logger)

	s.register()
	return s
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// SetState records a lifecycle transition. Entering running resets the
// session-lifetime flags and runs the initial sync; entering stopped drops
// the synced set, since the analysis process took its open state with it.
func (s *Session) SetState(ctx context.Context, state State) {
	old := State(s.state.Swap(int32(state)))
	if old == state {
		return
	}
	s.logger.Info("analysis session state changed", "session", s.id, "from", old.String(), "to", state.String())

	switch state {
	case StateRunning:
		s.serverCalledExit.Store(false)
		s.migrator.ResetSession()
		s.info("Lint analysis session is running.")
		s.Reconcile(ctx)
	case StateStopped:
		s.reconciler.Clear()
		s.status.reset()
	}
}

// MarkServerExit records that the analysis process asked to exit on its
// own. The host uses it to suppress the crash-restart path. Reset when a
// new process reaches running.
func (s *Session) MarkServerExit() {
	s.serverCalledExit.Store(true)
}

// ServerCalledExit reports whether the analysis process exited on request.
func (s *Session) ServerCalledExit() bool {
	return s.serverCalledExit.Load()
}

// Reconcile recomputes the synced set from the editor's open documents.
func (s *Session) Reconcile(ctx context.Context) {
	s.reconciler.Reconcile(ctx, s.ws.OpenDocuments())
}

// HandleConfigurationChange reacts to a settings change: prior probe
// failures are cleared, the whole open-document population is reconciled,
// and the analysis process is told to re-pull configuration.
func (s *Session) HandleConfigurationChange(ctx context.Context) {
	s.Reconcile(ctx)
	err := s.conn.Notify(ctx, protocol.MethodDidChangeConfiguration, protocol.DidChangeConfigurationParams{
		Settings: struct{}{},
	})
	if err != nil {
		s.logger.Warn("configuration change push failed", "error", err)
	}
}

// HandleDocumentOpen processes an editor open event.
func (s *Session) HandleDocumentOpen(ctx context.Context, doc Document) {
	s.reconciler.HandleOpen(ctx, doc)
}

// HandleDocumentClose processes an editor close event.
func (s *Session) HandleDocumentClose(ctx context.Context, uri protocol.DocumentURI) {
	s.reconciler.HandleClose(ctx, uri)
	s.status.clear(uri)
}

// HandleNotebookOpen materializes a notebook's candidate cells.
func (s *Session) HandleNotebookOpen(ctx context.Context, notebook protocol.DocumentURI, cells []Document) {
	s.notebooks.Open(ctx, notebook, cells)
}

// HandleNotebookChange applies a notebook structural change.
func (s *Session) HandleNotebookChange(ctx context.Context, notebook protocol.DocumentURI, added []Document, removed []protocol.DocumentURI) {
	s.notebooks.Change(ctx, notebook, added, removed)
}

// HandleNotebookClose closes a notebook's cells.
func (s *Session) HandleNotebookClose(ctx context.Context, notebook protocol.DocumentURI) {
	s.notebooks.Close(ctx, notebook)
}

// IsSynced reports whether a document is currently synced.
func (s *Session) IsSynced(uri protocol.DocumentURI) bool {
	return s.reconciler.IsSynced(uri)
}

// DocumentStatus returns the last health state the analysis process
// reported for the document.
func (s *Session) DocumentStatus(uri protocol.DocumentURI) (protocol.DocumentStatus, bool) {
	return s.status.get(uri)
}

// SendOpen implements SyncTarget.
func (s *Session) SendOpen(ctx context.Context, doc Document) error {
	item, err := s.ws.DocumentItem(doc.URI)
	if err != nil {
		return fmt.Errorf("load document %s: %w", doc.URI, err)
	}
	return s.conn.Notify(ctx, protocol.MethodDidOpen, protocol.DidOpenTextDocumentParams{
		TextDocument: item,
	})
}

// SendClose implements SyncTarget.
func (s *Session) SendClose(ctx context.Context, uri protocol.DocumentURI) error {
	return s.conn.Notify(ctx, protocol.MethodDidClose, protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
	})
}

// configFor builds the validation config governing a document's scope.
func (s *Session) configFor(doc Document) policy.Config {
	scope := protocol.DocumentURI("")
	if folder := s.ws.FolderFor(doc.URI); folder != nil {
		scope = folder.URI
	}
	view := s.ws.SettingsView(scope)
	return policy.Config{
		Enabled:  view.Enabled(),
		Validate: view.ValidateLanguages(),
		Probe:    view.ProbeLanguages(),
	}
}

func (s *Session) register() {
	s.conn.OnRequest(protocol.MethodConfiguration, s.handleConfiguration)
	s.conn.OnRequest(protocol.MethodNoConfig, s.handleNoConfig)
	s.conn.OnRequest(protocol.MethodNoLibrary, s.handleNoLibrary)
	s.conn.OnRequest(protocol.MethodOpenDoc, s.handleOpenDoc)
	s.conn.OnRequest(protocol.MethodProbeFailed, s.handleProbeFailed)
	s.conn.OnNotification(protocol.MethodStatus, s.handleStatus)
	s.conn.OnNotification(protocol.MethodExit, func(string, json.RawMessage) {
		s.MarkServerExit()
	})
}

func (s *Session) handleConfiguration(ctx context.Context, params json.RawMessage) (any, error) {
	var p protocol.ConfigurationParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &protocol.ResponseError{Code: protocol.CodeInvalidParams, Message: err.Error()}
	}
	return s.resolver.Resolve(ctx, p), nil
}

func (s *Session) handleNoConfig(ctx context.Context, params json.RawMessage) (any, error) {
	var p protocol.NoConfigParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &protocol.ResponseError{Code: protocol.CodeInvalidParams, Message: err.Error()}
	}

	uri := p.Document.URI
	s.status.set(uri, protocol.StatusError)
	msg := p.Message
	if msg == "" {
		msg = fmt.Sprintf("No lint configuration found for %s. The document is not validated.", uri)
	}
	s.logger.Warn("no lint configuration", "uri", string(uri))
	s.warn(msg)
	return nil, nil
}

func (s *Session) handleNoLibrary(ctx context.Context, params json.RawMessage) (any, error) {
	var p protocol.NoLibraryParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &protocol.ResponseError{Code: protocol.CodeInvalidParams, Message: err.Error()}
	}

	uri := p.Source.URI
	scope := protocol.DocumentURI("")
	if folder := s.resolver.folderFor(uri); folder != nil {
		scope = folder.URI
	}
	key := noLibraryKey(scope)
	if s.flags.Get(key, false) {
		return nil, nil
	}

	view := s.ws.SettingsView(scope)
	msg := fmt.Sprintf("The lint library was not found for %s. Install it with %q and reload.",
		uri, installCommand(view.PackageManager()))
	s.logger.Warn("lint library missing", "uri", string(uri), "scope", string(scope))

	action, err := s.prompter.ShowInformation(ctx, msg, actionDontShowAgain)
	if err != nil {
		s.logger.Warn("install hint prompt failed", "error", err)
		return nil, nil
	}
	if action == actionDontShowAgain {
		if err := s.flags.Set(key, true); err != nil {
			s.logger.Warn("persisting install-hint flag failed", "error", err)
		}
	}
	return nil, nil
}

func (s *Session) handleOpenDoc(ctx context.Context, params json.RawMessage) (any, error) {
	var p protocol.OpenDocParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &protocol.ResponseError{Code: protocol.CodeInvalidParams, Message: err.Error()}
	}
	s.openURL(ctx, p.URL)
	return nil, nil
}

func (s *Session) handleProbeFailed(ctx context.Context, params json.RawMessage) (any, error) {
	var p protocol.ProbeFailedParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &protocol.ResponseError{Code: protocol.CodeInvalidParams, Message: err.Error()}
	}
	s.logger.Debug("probe rejected", "uri", string(p.TextDocument.URI))
	s.reconciler.HandleProbeFailure(ctx, p.TextDocument.URI)
	return nil, nil
}

func (s *Session) handleStatus(method string, params json.RawMessage) {
	var p protocol.StatusParams
	if err := json.Unmarshal(params, &p); err != nil {
		s.logger.Debug("malformed status notification", "error", err)
		return
	}
	s.status.set(p.URI, p.State)
}

func noLibraryKey(scope protocol.DocumentURI) string {
	if scope == "" {
		return "noLibrary.suppress.global"
	}
	return "noLibrary.suppress:" + string(scope)
}

func installCommand(packageManager string) string {
	switch packageManager {
	case "yarn":
		return "yarn add lint"
	case "pnpm":
		return "pnpm add lint"
	default:
		return "npm install lint"
	}
}
