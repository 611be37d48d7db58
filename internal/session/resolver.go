package session

import (
	"context"
	"log/slog"

	"github.com/dshills/lintbridge/internal/migrate"
	"github.com/dshills/lintbridge/internal/policy"
	"github.com/dshills/lintbridge/internal/protocol"
	"github.com/dshills/lintbridge/internal/settings"
)

// Resolver answers the analysis process's batched configuration requests.
// Items are processed strictly in order; each item passes through the
// migration gate before its settings are computed, so resolution serializes
// with any migration prompt in flight.
type Resolver struct {
	ws         Workspace
	classifier *policy.Classifier
	reconciler *Reconciler
	migrator   *migrate.Coordinator
	logger     *slog.Logger
}

// NewResolver creates a resolver over the session's collaborators.
func NewResolver(ws Workspace, classifier *policy.Classifier, reconciler *Reconciler, migrator *migrate.Coordinator, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		ws:         ws,
		classifier: classifier,
		reconciler: reconciler,
		migrator:   migrator,
		logger:     logger,
	}
}

// Resolve answers one configuration batch. The result preserves the input's
// order and cardinality; items this resolver does not handle yield nil.
func (r *Resolver) Resolve(ctx context.Context, params protocol.ConfigurationParams) []*protocol.ResolvedSettings {
	results := make([]*protocol.ResolvedSettings, len(params.Items))
	for i, item := range params.Items {
		results[i] = r.resolveItem(ctx, item)
	}
	return results
}

func (r *Resolver) resolveItem(ctx context.Context, item protocol.ConfigurationItem) *protocol.ResolvedSettings {
	// Section lookups and scopeless items belong to the editor's own
	// configuration plumbing, not to this resolver.
	if item.Section != "" || item.ScopeURI == "" {
		return nil
	}

	uri := item.ScopeURI
	doc, known := r.reconciler.SyncedDocument(uri)
	folder := r.folderFor(uri)

	resource := protocol.DocumentURI("")
	if folder != nil {
		resource = folder.URI
	}

	// Unconditional per item: the gate serializes resolution against every
	// other item and any pending migration prompt.
	if err := r.migrator.Run(ctx, resource); err != nil {
		r.logger.Warn("migration check failed", "resource", string(resource), "error", err)
	}

	view := r.ws.SettingsView(resource)

	resolved := &protocol.ResolvedSettings{
		Validate:        policy.ModeOff.String(),
		PackageManager:  view.PackageManager(),
		NodePath:        view.NodePath(),
		Run:             view.Run(),
		Quiet:           view.Quiet(),
		CodeAction:      view.CodeActions(),
		WorkspaceFolder: folder,
	}

	notebook := uri.Scheme() == protocol.SchemeNotebookCell
	rules, rejected := view.RuleCustomizations(notebook)
	r.logRejected(uri, "rules.customizations", rejected)
	resolved.RulesCustomizations = rules

	if known && view.Enabled() {
		cfg := policy.Config{
			Enabled:  true,
			Validate: view.ValidateLanguages(),
			Probe:    view.ProbeLanguages(),
		}
		resolved.Validate = r.classifier.Classify(uri, doc.Language, cfg).String()
	}

	if resolved.Validate != policy.ModeOff.String() {
		resolved.Format = view.FormatEnabled()
		resolved.CodeActionOnSave = view.CodeActionsOnSave()
		resolved.WorkingDirectory = r.workingDirectory(view, uri, folder)
	}

	return resolved
}

// folderFor resolves the workspace folder owning a scope. Untitled
// documents default to the first workspace folder.
func (r *Resolver) folderFor(uri protocol.DocumentURI) *protocol.WorkspaceFolder {
	if uri.Scheme() == protocol.SchemeUntitled {
		if folders := r.ws.Folders(); len(folders) > 0 {
			first := folders[0]
			return &first
		}
		return nil
	}
	return r.ws.FolderFor(uri)
}

// workingDirectory applies the working-directory rules to the document's
// file path. Non-file scopes and scopes without rules resolve to nil,
// which tells the analysis process to use the document's own directory.
func (r *Resolver) workingDirectory(view *settings.View, uri protocol.DocumentURI, folder *protocol.WorkspaceFolder) *protocol.WorkingDirectory {
	filePath := uri.Path()
	if filePath == "" {
		return nil
	}

	rules, rejected := view.WorkingDirectories()
	r.logRejected(uri, "workingDirectories", rejected)
	if len(rules) == 0 {
		return nil
	}

	root := ""
	if folder != nil {
		root = folder.URI.Path()
	}
	return settings.ResolveWorkingDirectory(rules, filePath, root)
}

func (r *Resolver) logRejected(uri protocol.DocumentURI, key string, rejected []settings.Rejected) {
	for _, rej := range rejected {
		r.logger.Debug("dropped malformed settings entry",
			"scope", string(uri), "setting", key, "index", rej.Index, "reason", rej.Reason)
	}
}
