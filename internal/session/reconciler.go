package session

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/dshills/lintbridge/internal/policy"
	"github.com/dshills/lintbridge/internal/protocol"
)

// Document is the identity of an editor document, as much of it as sync
// decisions need. Content stays with the editor.
type Document struct {
	URI      protocol.DocumentURI
	Language string
}

// SyncTarget receives the open and close side effects of sync decisions.
type SyncTarget interface {
	SendOpen(ctx context.Context, doc Document) error
	SendClose(ctx context.Context, uri protocol.DocumentURI) error
}

// ConfigFor returns the validation config governing a document's scope.
type ConfigFor func(doc Document) policy.Config

// alwaysSyncNames are synced regardless of classification so the analysis
// process sees edits to manifests and its own configuration files.
var alwaysSyncNames = map[string]bool{
	"package.json":    true,
	".lintrc":         true,
	".lintrc.json":    true,
	".lintrc.yaml":    true,
	".lintrc.yml":     true,
	"lint.config.js":  true,
	"lint.config.mjs": true,
	"lint.config.cjs": true,
}

// Reconciler keeps the set of documents reported open to the analysis
// process converged with the validation policy. The synced set is derived
// state: a full reconcile recomputes it from the open-document population
// and the policy, so running it twice without intervening events is a
// no-op.
type Reconciler struct {
	classifier *policy.Classifier
	configFor  ConfigFor
	target     SyncTarget
	logger     *slog.Logger

	mu     sync.Mutex
	synced map[protocol.DocumentURI]Document
}

// NewReconciler creates a reconciler with an empty synced set.
func NewReconciler(classifier *policy.Classifier, configFor ConfigFor, target SyncTarget, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		classifier: classifier,
		configFor:  configFor,
		target:     target,
		logger:     logger,
		synced:     make(map[protocol.DocumentURI]Document),
	}
}

// ShouldSync reports whether the document belongs in the synced set:
// its classification is not off, or it passes the always-sync filter.
func (r *Reconciler) ShouldSync(doc Document) bool {
	if alwaysSync(doc.URI) {
		return true
	}
	return r.classifier.Classify(doc.URI, doc.Language, r.configFor(doc)) != policy.ModeOff
}

// HandleOpen processes an editor open event.
func (r *Reconciler) HandleOpen(ctx context.Context, doc Document) {
	if !r.ShouldSync(doc) {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.synced[doc.URI]; ok {
		return
	}
	r.synced[doc.URI] = doc
	r.sendOpen(ctx, doc)
}

// HandleClose processes an editor close event.
func (r *Reconciler) HandleClose(ctx context.Context, uri protocol.DocumentURI) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.synced[uri]; !ok {
		return
	}
	delete(r.synced, uri)
	r.sendClose(ctx, uri)
}

// HandleProbeFailure records that the analysis process rejected a probe for
// the document and closes that one document immediately, without waiting
// for a full reconcile.
func (r *Reconciler) HandleProbeFailure(ctx context.Context, uri protocol.DocumentURI) {
	r.classifier.MarkProbeFailed(uri)
	r.HandleClose(ctx, uri)
}

// Reconcile recomputes the synced set from the full open-document
// population. Prior probe failures are cleared first: a configuration
// change may have changed the probe list itself. Open and close events
// arriving during the pass serialize against it; last state wins.
func (r *Reconciler) Reconcile(ctx context.Context, open []Document) {
	r.classifier.ClearProbeFailures()

	r.mu.Lock()
	defer r.mu.Unlock()

	desired := make(map[protocol.DocumentURI]Document, len(open))
	for _, doc := range open {
		if r.ShouldSync(doc) {
			desired[doc.URI] = doc
		}
	}

	for uri := range r.synced {
		if _, keep := desired[uri]; !keep {
			delete(r.synced, uri)
			r.sendClose(ctx, uri)
		}
	}
	for uri, doc := range desired {
		if _, ok := r.synced[uri]; !ok {
			r.synced[uri] = doc
			r.sendOpen(ctx, doc)
		}
	}
}

// IsSynced reports whether the document is currently reported open to the
// analysis process.
func (r *Reconciler) IsSynced(uri protocol.DocumentURI) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.synced[uri]
	return ok
}

// SyncedDocument returns the synced document for the URI, if any.
func (r *Reconciler) SyncedDocument(uri protocol.DocumentURI) (Document, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.synced[uri]
	return doc, ok
}

// SyncedCount returns the size of the synced set.
func (r *Reconciler) SyncedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.synced)
}

// Clear empties the synced set without emitting close events. Used when
// the analysis process is gone and the open state with it.
func (r *Reconciler) Clear() {
	r.mu.Lock()
	r.synced = make(map[protocol.DocumentURI]Document)
	r.mu.Unlock()
}

func (r *Reconciler) sendOpen(ctx context.Context, doc Document) {
	if err := r.target.SendOpen(ctx, doc); err != nil {
		r.logger.Warn("sending document open failed", "uri", string(doc.URI), "error", err)
	}
}

func (r *Reconciler) sendClose(ctx context.Context, uri protocol.DocumentURI) {
	if err := r.target.SendClose(ctx, uri); err != nil {
		r.logger.Warn("sending document close failed", "uri", string(uri), "error", err)
	}
}

// alwaysSync matches manifest and analysis-config files by name.
func alwaysSync(uri protocol.DocumentURI) bool {
	if !uri.IsFile() {
		return false
	}
	return alwaysSyncNames[filepath.Base(uri.Path())]
}
