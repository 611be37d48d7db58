package session

import (
	"context"
	"sync"
	"testing"

	"github.com/dshills/lintbridge/internal/policy"
	"github.com/dshills/lintbridge/internal/protocol"
)

// recordingTarget captures open and close side effects.
type recordingTarget struct {
	mu     sync.Mutex
	opens  []protocol.DocumentURI
	closes []protocol.DocumentURI
}

func (t *recordingTarget) SendOpen(ctx context.Context, doc Document) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.opens = append(t.opens, doc.URI)
	return nil
}

func (t *recordingTarget) SendClose(ctx context.Context, uri protocol.DocumentURI) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closes = append(t.closes, uri)
	return nil
}

func (t *recordingTarget) counts() (opens, closes int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.opens), len(t.closes)
}

// configSource lets tests swap the active validation config mid-flight,
// standing in for a settings change.
type configSource struct {
	mu  sync.Mutex
	cfg policy.Config
}

func (c *configSource) get(Document) policy.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

func (c *configSource) set(cfg policy.Config) {
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()
}

func newTestReconciler(cfg policy.Config) (*Reconciler, *recordingTarget, *configSource) {
	src := &configSource{cfg: cfg}
	target := &recordingTarget{}
	rec := NewReconciler(policy.NewClassifier(), src.get, target, nil)
	return rec, target, src
}

func TestShouldSync(t *testing.T) {
	cfg := policy.Config{
		Enabled:  true,
		Validate: []string{"javascript"},
		Probe:    []string{"markdown"},
	}

	tests := []struct {
		name string
		doc  Document
		want bool
	}{
		{"validate match", Document{URI: "file:///a.js", Language: "javascript"}, true},
		{"probe match", Document{URI: "file:///a.md", Language: "markdown"}, true},
		{"no match", Document{URI: "file:///a.go", Language: "go"}, false},
		{"manifest bypasses policy", Document{URI: "file:///ws/package.json", Language: "json"}, true},
		{"nested lint config", Document{URI: "file:///ws/pkg/.lintrc.json", Language: "json"}, true},
		{"manifest-like suffix", Document{URI: "file:///ws/notapackage.json", Language: "json"}, false},
		{"untitled manifest name", Document{URI: "untitled:package.json", Language: "json"}, false},
	}

	rec, _, _ := newTestReconciler(cfg)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rec.ShouldSync(tt.doc); got != tt.want {
				t.Errorf("ShouldSync(%v) = %v, want %v", tt.doc, got, tt.want)
			}
		})
	}
}

func TestAlwaysSyncIgnoresDisabledPolicy(t *testing.T) {
	rec, _, _ := newTestReconciler(policy.Config{Enabled: false})
	doc := Document{URI: "file:///ws/package.json", Language: "json"}
	if !rec.ShouldSync(doc) {
		t.Error("manifest not synced while linting is disabled")
	}
}

func TestHandleOpenAndCloseIdempotent(t *testing.T) {
	ctx := context.Background()
	rec, target, _ := newTestReconciler(policy.Config{Enabled: true, Validate: []string{"javascript"}})
	doc := Document{URI: "file:///a.js", Language: "javascript"}

	rec.HandleOpen(ctx, doc)
	rec.HandleOpen(ctx, doc)
	if opens, _ := target.counts(); opens != 1 {
		t.Errorf("opens = %d, want 1 for duplicate open", opens)
	}
	if !rec.IsSynced(doc.URI) {
		t.Error("document not synced after open")
	}

	rec.HandleClose(ctx, doc.URI)
	rec.HandleClose(ctx, doc.URI)
	if _, closes := target.counts(); closes != 1 {
		t.Errorf("closes = %d, want 1 for duplicate close", closes)
	}
	if rec.IsSynced(doc.URI) {
		t.Error("document still synced after close")
	}
}

func TestHandleOpenSkipsUnvalidated(t *testing.T) {
	ctx := context.Background()
	rec, target, _ := newTestReconciler(policy.Config{Enabled: true, Validate: []string{"javascript"}})

	rec.HandleOpen(ctx, Document{URI: "file:///a.go", Language: "go"})
	if opens, _ := target.counts(); opens != 0 {
		t.Errorf("opens = %d, want 0 for a language outside the policy", opens)
	}
	rec.HandleClose(ctx, "file:///a.go")
	if _, closes := target.counts(); closes != 0 {
		t.Errorf("closes = %d, want 0 for a document never synced", closes)
	}
}

func TestReconcileConverges(t *testing.T) {
	ctx := context.Background()
	rec, target, src := newTestReconciler(policy.Config{Enabled: true, Validate: []string{"javascript", "go"}})

	a := Document{URI: "file:///a.js", Language: "javascript"}
	b := Document{URI: "file:///b.go", Language: "go"}
	c := Document{URI: "file:///c.js", Language: "javascript"}

	rec.Reconcile(ctx, []Document{a, b})
	if rec.SyncedCount() != 2 {
		t.Fatalf("synced = %d, want 2", rec.SyncedCount())
	}

	// Narrow the policy so b is demoted, and bring c into the population.
	src.set(policy.Config{Enabled: true, Validate: []string{"javascript"}})
	rec.Reconcile(ctx, []Document{a, b, c})

	if rec.IsSynced(b.URI) {
		t.Error("demoted document still synced after reconcile")
	}
	if !rec.IsSynced(a.URI) || !rec.IsSynced(c.URI) {
		t.Error("validated documents missing from synced set")
	}

	target.mu.Lock()
	closes := append([]protocol.DocumentURI(nil), target.closes...)
	target.mu.Unlock()
	if len(closes) != 1 || closes[0] != b.URI {
		t.Errorf("closes = %v, want exactly the demoted document", closes)
	}
}

func TestReconcileIdempotent(t *testing.T) {
	ctx := context.Background()
	rec, target, _ := newTestReconciler(policy.Config{Enabled: true, Validate: []string{"javascript"}})

	open := []Document{
		{URI: "file:///a.js", Language: "javascript"},
		{URI: "file:///b.js", Language: "javascript"},
		{URI: "file:///c.go", Language: "go"},
	}

	rec.Reconcile(ctx, open)
	opens1, closes1 := target.counts()

	rec.Reconcile(ctx, open)
	opens2, closes2 := target.counts()

	if opens1 != opens2 || closes1 != closes2 {
		t.Errorf("second reconcile sent traffic: opens %d->%d closes %d->%d", opens1, opens2, closes1, closes2)
	}
	if rec.SyncedCount() != 2 {
		t.Errorf("synced = %d, want 2", rec.SyncedCount())
	}
}

func TestProbeFailureClosesImmediately(t *testing.T) {
	ctx := context.Background()
	rec, target, _ := newTestReconciler(policy.Config{Enabled: true, Probe: []string{"markdown"}})
	doc := Document{URI: "file:///readme.md", Language: "markdown"}

	rec.HandleOpen(ctx, doc)
	if !rec.IsSynced(doc.URI) {
		t.Fatal("probe candidate not synced")
	}

	rec.HandleProbeFailure(ctx, doc.URI)
	if rec.IsSynced(doc.URI) {
		t.Error("document still synced after probe failure")
	}
	if _, closes := target.counts(); closes != 1 {
		t.Errorf("closes = %d, want exactly 1", closes)
	}

	// The failure is sticky for plain opens.
	rec.HandleOpen(ctx, doc)
	if rec.IsSynced(doc.URI) {
		t.Error("failed probe re-synced without a reconcile")
	}
}

func TestReconcileClearsProbeFailures(t *testing.T) {
	ctx := context.Background()
	rec, _, _ := newTestReconciler(policy.Config{Enabled: true, Probe: []string{"markdown"}})
	doc := Document{URI: "file:///readme.md", Language: "markdown"}

	rec.HandleOpen(ctx, doc)
	rec.HandleProbeFailure(ctx, doc.URI)

	rec.Reconcile(ctx, []Document{doc})
	if !rec.IsSynced(doc.URI) {
		t.Error("probe failure survived a reconcile")
	}
}

func TestClearDropsSetWithoutCloses(t *testing.T) {
	ctx := context.Background()
	rec, target, _ := newTestReconciler(policy.Config{Enabled: true, Validate: []string{"javascript"}})

	rec.HandleOpen(ctx, Document{URI: "file:///a.js", Language: "javascript"})
	rec.Clear()

	if rec.SyncedCount() != 0 {
		t.Errorf("synced = %d after clear, want 0", rec.SyncedCount())
	}
	if _, closes := target.counts(); closes != 0 {
		t.Errorf("closes = %d, want 0; the process is gone", closes)
	}
}
