package session

import (
	"context"
	"testing"

	"github.com/dshills/lintbridge/internal/policy"
	"github.com/dshills/lintbridge/internal/protocol"
)

func newTestNotebookTracker() (*NotebookTracker, *Reconciler, *recordingTarget) {
	src := &configSource{cfg: policy.Config{Enabled: true, Validate: []string{"python", "javascript"}}}
	target := &recordingTarget{}
	rec := NewReconciler(policy.NewClassifier(), src.get, target, nil)
	return NewNotebookTracker(rec), rec, target
}

func TestNotebookOpenFiltersCells(t *testing.T) {
	ctx := context.Background()
	tracker, rec, target := newTestNotebookTracker()

	nb := protocol.DocumentURI("notebook://nb.ipynb")
	cells := []Document{
		{URI: "notebook-cell:///nb.ipynb#c1", Language: "python"},
		{URI: "notebook-cell:///nb.ipynb#c2", Language: "plaintext"},
		{URI: "notebook-cell:///nb.ipynb#c3", Language: "javascript"},
	}
	tracker.Open(ctx, nb, cells)

	if rec.SyncedCount() != 2 {
		t.Fatalf("synced = %d, want the 2 candidate cells", rec.SyncedCount())
	}
	if rec.IsSynced(cells[1].URI) {
		t.Error("non-candidate cell entered the synced set")
	}
	if opens, _ := target.counts(); opens != 2 {
		t.Errorf("opens = %d, want 2", opens)
	}
}

func TestNotebookChange(t *testing.T) {
	ctx := context.Background()
	tracker, rec, _ := newTestNotebookTracker()

	nb := protocol.DocumentURI("notebook://nb.ipynb")
	c1 := Document{URI: "notebook-cell:///nb.ipynb#c1", Language: "python"}
	c2 := Document{URI: "notebook-cell:///nb.ipynb#c2", Language: "python"}
	tracker.Open(ctx, nb, []Document{c1})

	tracker.Change(ctx, nb, []Document{c2}, []protocol.DocumentURI{c1.URI})

	if rec.IsSynced(c1.URI) {
		t.Error("removed cell still synced")
	}
	if !rec.IsSynced(c2.URI) {
		t.Error("added cell not synced")
	}
}

func TestNotebookCloseClosesTrackedCells(t *testing.T) {
	ctx := context.Background()
	tracker, rec, target := newTestNotebookTracker()

	nb := protocol.DocumentURI("notebook://nb.ipynb")
	cells := []Document{
		{URI: "notebook-cell:///nb.ipynb#c1", Language: "python"},
		{URI: "notebook-cell:///nb.ipynb#c2", Language: "javascript"},
	}
	tracker.Open(ctx, nb, cells)
	tracker.Close(ctx, nb)

	if rec.SyncedCount() != 0 {
		t.Errorf("synced = %d after notebook close, want 0", rec.SyncedCount())
	}
	if _, closes := target.counts(); closes != 2 {
		t.Errorf("closes = %d, want 2", closes)
	}
}
