package session

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/dshills/lintbridge/internal/flagstore"
	"github.com/dshills/lintbridge/internal/migrate"
	"github.com/dshills/lintbridge/internal/protocol"
	"github.com/dshills/lintbridge/internal/settings"
)

type notifyCall struct {
	method string
	params any
}

// fakeConn records outbound traffic and lets tests invoke the session's
// registered inbound handlers directly.
type fakeConn struct {
	mu        sync.Mutex
	notifies  []notifyCall
	requests  map[string]protocol.RequestHandler
	notes     map[string]protocol.NotificationHandler
	notifyErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		requests: make(map[string]protocol.RequestHandler),
		notes:    make(map[string]protocol.NotificationHandler),
	}
}

func (c *fakeConn) Call(ctx context.Context, method string, params any, result any) error {
	return nil
}

func (c *fakeConn) Notify(ctx context.Context, method string, params any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.notifyErr != nil {
		return c.notifyErr
	}
	c.notifies = append(c.notifies, notifyCall{method: method, params: params})
	return nil
}

func (c *fakeConn) OnRequest(method string, handler protocol.RequestHandler) {
	c.requests[method] = handler
}

func (c *fakeConn) OnNotification(method string, handler protocol.NotificationHandler) {
	c.notes[method] = handler
}

func (c *fakeConn) sent(method string) []notifyCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []notifyCall
	for _, n := range c.notifies {
		if n.method == method {
			out = append(out, n)
		}
	}
	return out
}

func (c *fakeConn) opened() []protocol.DocumentURI {
	var uris []protocol.DocumentURI
	for _, n := range c.sent(protocol.MethodDidOpen) {
		p := n.params.(protocol.DidOpenTextDocumentParams)
		uris = append(uris, p.TextDocument.URI)
	}
	return uris
}

func (c *fakeConn) closed() []protocol.DocumentURI {
	var uris []protocol.DocumentURI
	for _, n := range c.sent(protocol.MethodDidClose) {
		p := n.params.(protocol.DidCloseTextDocumentParams)
		uris = append(uris, p.TextDocument.URI)
	}
	return uris
}

// fakeWorkspace serves documents, folders, and settings from maps.
type fakeWorkspace struct {
	mu         sync.Mutex
	docs       []Document
	folders    []protocol.WorkspaceFolder
	folderDocs map[protocol.DocumentURI][]byte
	global     []byte
}

func newFakeWorkspace() *fakeWorkspace {
	return &fakeWorkspace{folderDocs: make(map[protocol.DocumentURI][]byte)}
}

func (w *fakeWorkspace) OpenDocuments() []Document {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Document(nil), w.docs...)
}

func (w *fakeWorkspace) setOpen(docs ...Document) {
	w.mu.Lock()
	w.docs = docs
	w.mu.Unlock()
}

func (w *fakeWorkspace) Folders() []protocol.WorkspaceFolder {
	return w.folders
}

func (w *fakeWorkspace) FolderFor(uri protocol.DocumentURI) *protocol.WorkspaceFolder {
	for i := range w.folders {
		if strings.HasPrefix(string(uri), string(w.folders[i].URI)) {
			return &w.folders[i]
		}
	}
	return nil
}

func (w *fakeWorkspace) SettingsView(folder protocol.DocumentURI) *settings.View {
	w.mu.Lock()
	defer w.mu.Unlock()
	return settings.NewView(w.folderDocs[folder], w.global)
}

func (w *fakeWorkspace) DocumentItem(uri protocol.DocumentURI) (protocol.TextDocumentItem, error) {
	return protocol.TextDocumentItem{URI: uri, LanguageID: "javascript", Version: 1, Text: "// stub"}, nil
}

// stubSettingsEditor backs the migration coordinator in tests that do not
// exercise migration.
type stubSettingsEditor struct{}

func (stubSettingsEditor) ReadSettings(context.Context, protocol.DocumentURI) ([]byte, error) {
	return nil, nil
}

func (stubSettingsEditor) WriteSettings(context.Context, protocol.DocumentURI, []byte) error {
	return nil
}

type stubMigratePrompter struct{ decision migrate.Decision }

func (p stubMigratePrompter) PromptMigration(context.Context, protocol.DocumentURI) (migrate.Decision, error) {
	return p.decision, nil
}

func newTestMigrator() *migrate.Coordinator {
	return migrate.NewCoordinator(stubSettingsEditor{}, stubMigratePrompter{}, flagstore.NewMemory())
}

type fakeInfoPrompter struct {
	action string
	calls  int
}

func (p *fakeInfoPrompter) ShowInformation(ctx context.Context, message string, actions ...string) (string, error) {
	p.calls++
	return p.action, nil
}

func newTestSession(t *testing.T, conn *fakeConn, ws *fakeWorkspace, opts ...Option) *Session {
	t.Helper()
	return NewSession(conn, ws, newTestMigrator(), flagstore.NewMemory(), opts...)
}

func TestSessionRegistersHandlers(t *testing.T) {
	conn := newFakeConn()
	newTestSession(t, conn, newFakeWorkspace())

	for _, method := range []string{
		protocol.MethodConfiguration,
		protocol.MethodNoConfig,
		protocol.MethodNoLibrary,
		protocol.MethodOpenDoc,
		protocol.MethodProbeFailed,
	} {
		if conn.requests[method] == nil {
			t.Errorf("no request handler registered for %s", method)
		}
	}
	if conn.notes[protocol.MethodStatus] == nil {
		t.Errorf("no notification handler registered for %s", protocol.MethodStatus)
	}
}

func TestSessionIDUnique(t *testing.T) {
	conn := newFakeConn()
	ws := newFakeWorkspace()
	a := newTestSession(t, conn, ws)
	b := newTestSession(t, newFakeConn(), ws)
	if a.ID() == "" || a.ID() == b.ID() {
		t.Errorf("session ids %q and %q, want distinct non-empty", a.ID(), b.ID())
	}
}

func TestConfigurationRequestRoundTrip(t *testing.T) {
	conn := newFakeConn()
	ws := newFakeWorkspace()
	ws.folders = []protocol.WorkspaceFolder{{URI: "file:///ws", Name: "ws"}}
	ws.global = []byte(`{"lint": {"validate": ["javascript"]}}`)
	s := newTestSession(t, conn, ws)

	doc := Document{URI: "file:///ws/a.js", Language: "javascript"}
	s.HandleDocumentOpen(context.Background(), doc)

	raw, _ := json.Marshal(protocol.ConfigurationParams{Items: []protocol.ConfigurationItem{
		{ScopeURI: "file:///ws/a.js"},
		{Section: "editor"},
	}})
	result, err := conn.requests[protocol.MethodConfiguration](context.Background(), raw)
	if err != nil {
		t.Fatalf("configuration handler error = %v", err)
	}

	resolved, ok := result.([]*protocol.ResolvedSettings)
	if !ok {
		t.Fatalf("result type = %T, want []*protocol.ResolvedSettings", result)
	}
	if len(resolved) != 2 {
		t.Fatalf("len(result) = %d, want 2 (cardinality preserved)", len(resolved))
	}
	if resolved[0] == nil || resolved[0].Validate != "on" {
		t.Errorf("item 0 = %+v, want validate on", resolved[0])
	}
	if resolved[1] != nil {
		t.Errorf("item 1 = %+v, want nil for explicit section", resolved[1])
	}
}

func TestProbeFailedRequestClosesDocument(t *testing.T) {
	conn := newFakeConn()
	ws := newFakeWorkspace()
	ws.global = []byte(`{"lint": {"probe": ["javascript"]}}`)
	s := newTestSession(t, conn, ws)

	doc := Document{URI: "file:///a.js", Language: "javascript"}
	s.HandleDocumentOpen(context.Background(), doc)
	if !s.IsSynced(doc.URI) {
		t.Fatal("probe document not synced after open")
	}

	raw, _ := json.Marshal(protocol.ProbeFailedParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: doc.URI},
	})
	if _, err := conn.requests[protocol.MethodProbeFailed](context.Background(), raw); err != nil {
		t.Fatalf("probeFailed handler error = %v", err)
	}

	if s.IsSynced(doc.URI) {
		t.Error("document still synced after probe failure")
	}
	if got := conn.closed(); len(got) != 1 || got[0] != doc.URI {
		t.Errorf("closed = %v, want exactly the failed document", got)
	}

	// Reopening must stay off until a configuration change clears failures.
	s.HandleDocumentOpen(context.Background(), doc)
	if s.IsSynced(doc.URI) {
		t.Error("document re-synced while probe failure is in force")
	}

	s.HandleConfigurationChange(context.Background())
	if !s.IsSynced(doc.URI) {
		t.Error("document not re-synced after configuration change cleared failures")
	}
}

func TestStatusNotificationBookkeeping(t *testing.T) {
	conn := newFakeConn()
	ws := newFakeWorkspace()
	ws.global = []byte(`{"lint": {"validate": ["javascript"]}}`)
	s := newTestSession(t, conn, ws)

	doc := Document{URI: "file:///a.js", Language: "javascript"}
	s.HandleDocumentOpen(context.Background(), doc)

	raw, _ := json.Marshal(protocol.StatusParams{URI: doc.URI, State: protocol.StatusWarn})
	conn.notes[protocol.MethodStatus]("lint/status", raw)

	if state, ok := s.DocumentStatus(doc.URI); !ok || state != protocol.StatusWarn {
		t.Errorf("DocumentStatus() = %v/%v, want warn/true", state, ok)
	}

	s.HandleDocumentClose(context.Background(), doc.URI)
	if _, ok := s.DocumentStatus(doc.URI); ok {
		t.Error("status survived document close")
	}
}

func TestNoLibraryHintSuppression(t *testing.T) {
	conn := newFakeConn()
	ws := newFakeWorkspace()
	ws.folders = []protocol.WorkspaceFolder{{URI: "file:///ws", Name: "ws"}}
	prompter := &fakeInfoPrompter{action: actionDontShowAgain}
	newTestSession(t, conn, ws, WithPrompter(prompter))

	raw, _ := json.Marshal(protocol.NoLibraryParams{
		Source: protocol.TextDocumentIdentifier{URI: "file:///ws/a.js"},
	})
	for i := 0; i < 3; i++ {
		if _, err := conn.requests[protocol.MethodNoLibrary](context.Background(), raw); err != nil {
			t.Fatalf("noLibrary handler #%d error = %v", i, err)
		}
	}

	if prompter.calls != 1 {
		t.Errorf("prompt calls = %d, want 1 after Don't Show Again", prompter.calls)
	}
}

func TestNoConfigSetsErrorStatusAndWarns(t *testing.T) {
	conn := newFakeConn()
	ws := newFakeWorkspace()
	var warnings []string
	s := newTestSession(t, conn, ws, WithWarnFunc(func(text string) { warnings = append(warnings, text) }))

	raw, _ := json.Marshal(protocol.NoConfigParams{
		Message:  "No configuration found in /ws",
		Document: protocol.TextDocumentIdentifier{URI: "file:///ws/a.js"},
	})
	if _, err := conn.requests[protocol.MethodNoConfig](context.Background(), raw); err != nil {
		t.Fatalf("noConfig handler error = %v", err)
	}

	if state, ok := s.DocumentStatus("file:///ws/a.js"); !ok || state != protocol.StatusError {
		t.Errorf("DocumentStatus() = %v/%v, want error/true", state, ok)
	}
	if len(warnings) != 1 || warnings[0] != "No configuration found in /ws" {
		t.Errorf("warnings = %v, want the server-provided message", warnings)
	}
}

func TestOpenDocRequest(t *testing.T) {
	conn := newFakeConn()
	var openedURL string
	newTestSession(t, conn, newFakeWorkspace(),
		WithOpenURL(func(ctx context.Context, url string) { openedURL = url }))

	raw, _ := json.Marshal(protocol.OpenDocParams{URL: "https://example.com/rule"})
	if _, err := conn.requests[protocol.MethodOpenDoc](context.Background(), raw); err != nil {
		t.Fatalf("openDoc handler error = %v", err)
	}
	if openedURL != "https://example.com/rule" {
		t.Errorf("opened URL = %q", openedURL)
	}
}

func TestConfigurationChangePushesNotification(t *testing.T) {
	conn := newFakeConn()
	ws := newFakeWorkspace()
	s := newTestSession(t, conn, ws)

	s.HandleConfigurationChange(context.Background())

	if got := conn.sent(protocol.MethodDidChangeConfiguration); len(got) != 1 {
		t.Errorf("didChangeConfiguration notifications = %d, want 1", len(got))
	}
}

func TestStateTransitions(t *testing.T) {
	conn := newFakeConn()
	ws := newFakeWorkspace()
	ws.global = []byte(`{"lint": {"validate": ["javascript"]}}`)
	ws.setOpen(Document{URI: "file:///a.js", Language: "javascript"})
	s := newTestSession(t, conn, ws)

	if s.State() != StateStarting {
		t.Fatalf("initial state = %v, want starting", s.State())
	}

	s.MarkServerExit()
	s.SetState(context.Background(), StateRunning)

	if s.State() != StateRunning {
		t.Errorf("state = %v, want running", s.State())
	}
	if s.ServerCalledExit() {
		t.Error("serverCalledExit not reset on reaching running")
	}
	if !s.IsSynced("file:///a.js") {
		t.Error("initial sync did not open the validated document")
	}

	s.SetState(context.Background(), StateStopped)
	if s.IsSynced("file:///a.js") {
		t.Error("synced set not dropped on stop")
	}
	if got := conn.closed(); len(got) != 0 {
		t.Errorf("closes sent to a dead process: %v", got)
	}
}

func TestExitNotificationMarksServerExit(t *testing.T) {
	conn := newFakeConn()
	s := newTestSession(t, conn, newFakeWorkspace())

	if s.ServerCalledExit() {
		t.Fatal("exit flag set before any notification")
	}
	conn.notes[protocol.MethodExit]("exit", nil)
	if !s.ServerCalledExit() {
		t.Error("exit notification did not mark the server exit")
	}
}

func TestSendOpenCarriesDocumentContent(t *testing.T) {
	conn := newFakeConn()
	ws := newFakeWorkspace()
	ws.global = []byte(`{"lint": {"validate": ["javascript"]}}`)
	s := newTestSession(t, conn, ws)

	s.HandleDocumentOpen(context.Background(), Document{URI: "file:///a.js", Language: "javascript"})

	sent := conn.sent(protocol.MethodDidOpen)
	if len(sent) != 1 {
		t.Fatalf("didOpen notifications = %d, want 1", len(sent))
	}
	item := sent[0].params.(protocol.DidOpenTextDocumentParams).TextDocument
	if item.Text == "" || item.LanguageID == "" || item.Version == 0 {
		t.Errorf("didOpen item incomplete: %+v", item)
	}
}

func TestInstallCommandPerPackageManager(t *testing.T) {
	tests := []struct {
		manager string
		want    string
	}{
		{"npm", "npm install lint"},
		{"yarn", "yarn add lint"},
		{"pnpm", "pnpm add lint"},
		{"", "npm install lint"},
	}
	for _, tt := range tests {
		if got := installCommand(tt.manager); got != tt.want {
			t.Errorf("installCommand(%q) = %q, want %q", tt.manager, got, tt.want)
		}
	}
}
