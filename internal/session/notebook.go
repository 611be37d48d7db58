package session

import (
	"context"
	"sync"

	"github.com/dshills/lintbridge/internal/protocol"
)

// NotebookTracker follows notebook structural changes. Each cell is an
// independent pseudo-document for sync purposes; cells that fail the
// candidate filter never enter the sync state machine at all.
type NotebookTracker struct {
	rec *Reconciler

	mu    sync.Mutex
	cells map[protocol.DocumentURI][]protocol.DocumentURI // notebook -> tracked cells
}

// NewNotebookTracker creates a tracker feeding the reconciler.
func NewNotebookTracker(rec *Reconciler) *NotebookTracker {
	return &NotebookTracker{
		rec:   rec,
		cells: make(map[protocol.DocumentURI][]protocol.DocumentURI),
	}
}

// FilterCells returns the cells that are candidates for sync.
func (n *NotebookTracker) FilterCells(cells []Document) []Document {
	var candidates []Document
	for _, cell := range cells {
		if n.rec.ShouldSync(cell) {
			candidates = append(candidates, cell)
		}
	}
	return candidates
}

// Open materializes a notebook's candidate cells.
func (n *NotebookTracker) Open(ctx context.Context, notebook protocol.DocumentURI, cells []Document) {
	candidates := n.FilterCells(cells)

	n.mu.Lock()
	tracked := n.cells[notebook]
	for _, cell := range candidates {
		tracked = append(tracked, cell.URI)
	}
	n.cells[notebook] = tracked
	n.mu.Unlock()

	for _, cell := range candidates {
		n.rec.HandleOpen(ctx, cell)
	}
}

// Change applies a structural change: newly added cells open (if they pass
// the filter), removed cells close.
func (n *NotebookTracker) Change(ctx context.Context, notebook protocol.DocumentURI, added []Document, removed []protocol.DocumentURI) {
	candidates := n.FilterCells(added)

	n.mu.Lock()
	tracked := n.cells[notebook]
	for _, uri := range removed {
		for i, t := range tracked {
			if t == uri {
				tracked = append(tracked[:i], tracked[i+1:]...)
				break
			}
		}
	}
	for _, cell := range candidates {
		tracked = append(tracked, cell.URI)
	}
	n.cells[notebook] = tracked
	n.mu.Unlock()

	for _, uri := range removed {
		n.rec.HandleClose(ctx, uri)
	}
	for _, cell := range candidates {
		n.rec.HandleOpen(ctx, cell)
	}
}

// Close closes all of a notebook's tracked cells.
func (n *NotebookTracker) Close(ctx context.Context, notebook protocol.DocumentURI) {
	n.mu.Lock()
	tracked := n.cells[notebook]
	delete(n.cells, notebook)
	n.mu.Unlock()

	for _, uri := range tracked {
		n.rec.HandleClose(ctx, uri)
	}
}
