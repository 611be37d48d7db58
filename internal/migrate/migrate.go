// Package migrate rewrites the deprecated lint.autoFixOnSave setting into
// the editor's codeActionsOnSave form.
//
// The rewrite runs at most once in flight system-wide: a single-slot gate
// serializes the detect, prompt, and apply steps across all resources, so
// the user never sees two migration prompts at once. The gate is released
// on every exit path.
package migrate

import (
	"context"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/dshills/lintbridge/internal/flagstore"
	"github.com/dshills/lintbridge/internal/protocol"
	"github.com/dshills/lintbridge/internal/settings"
)

// KeyNeverMigrate is the flag-store key for the persisted "never migrate"
// decision.
const KeyNeverMigrate = "migration.never"

// DefaultDocsURL is opened when the user asks for the migration reference.
const DefaultDocsURL = "https://github.com/dshills/lintbridge#settings-migration"

// Decision is the user's answer to the migration prompt.
type Decision int

const (
	// DecisionDismissed means the prompt was closed without a choice.
	// Treated like DecisionNotNow.
	DecisionDismissed Decision = iota
	// DecisionYes applies the rewrite.
	DecisionYes
	// DecisionNever disables migration permanently via the flag store.
	DecisionNever
	// DecisionOpenDocs opens the reference docs and defers for the session.
	DecisionOpenDocs
	// DecisionNotNow defers for the rest of the session.
	DecisionNotNow
)

// SettingsEditor reads and rewrites the settings document of one scope.
// The empty scope addresses the global document.
type SettingsEditor interface {
	// ReadSettings returns the raw settings document, or nil when the scope
	// has none.
	ReadSettings(ctx context.Context, scope protocol.DocumentURI) ([]byte, error)
	// WriteSettings atomically replaces the settings document.
	WriteSettings(ctx context.Context, scope protocol.DocumentURI, doc []byte) error
}

// Prompter presents the migration choice to the user.
type Prompter interface {
	PromptMigration(ctx context.Context, resource protocol.DocumentURI) (Decision, error)
}

// Coordinator owns the migration workflow and its single-slot gate.
type Coordinator struct {
	gate   *semaphore.Weighted
	editor SettingsEditor
	prompt Prompter
	flags  flagstore.Store

	logger   *slog.Logger
	docsURL  string
	warn     func(text string)
	openDocs func(ctx context.Context, url string)

	// record is only touched while holding the gate. deferred lives for
	// the session and resets when the analysis session restarts.
	record   *record
	deferred atomic.Bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the coordinator's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithWarnFunc routes apply failures to the session's warning channel.
func WithWarnFunc(warn func(text string)) Option {
	return func(c *Coordinator) {
		if warn != nil {
			c.warn = warn
		}
	}
}

// WithOpenDocs sets the callback that opens the migration reference docs.
func WithOpenDocs(open func(ctx context.Context, url string)) Option {
	return func(c *Coordinator) {
		if open != nil {
			c.openDocs = open
		}
	}
}

// WithDocsURL overrides the reference docs location.
func WithDocsURL(url string) Option {
	return func(c *Coordinator) {
		if url != "" {
			c.docsURL = url
		}
	}
}

// NewCoordinator creates a migration coordinator.
func NewCoordinator(editor SettingsEditor, prompter Prompter, flags flagstore.Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		gate:     semaphore.NewWeighted(1),
		editor:   editor,
		prompt:   prompter,
		flags:    flags,
		logger:   slog.Default(),
		docsURL:  DefaultDocsURL,
		warn:     func(string) {},
		openDocs: func(context.Context, string) {},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes the migration workflow for the resource. It blocks until
// the gate is free; the wait is cancelable through ctx. The gate and the
// in-flight record are released on every exit path.
func (c *Coordinator) Run(ctx context.Context, resource protocol.DocumentURI) error {
	if c.deferred.Load() || c.flags.Get(KeyNeverMigrate, false) {
		return nil
	}

	if err := c.gate.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.gate.Release(1)

	// Re-check under the gate: an earlier holder may have deferred.
	if c.deferred.Load() || c.flags.Get(KeyNeverMigrate, false) {
		return nil
	}

	rec, err := c.capture(ctx, resource)
	if err != nil {
		return err
	}
	if rec == nil || !rec.needsUpdate() {
		return nil
	}

	c.record = rec
	defer func() { c.record = nil }() // cleared before the gate releases

	decision, err := c.prompt.PromptMigration(ctx, resource)
	if err != nil {
		c.logger.Warn("migration prompt failed", "error", err)
		decision = DecisionDismissed
	}

	switch decision {
	case DecisionYes:
		c.apply(ctx, rec)
	case DecisionNever:
		if err := c.flags.Set(KeyNeverMigrate, true); err != nil {
			c.logger.Warn("persisting never-migrate flag failed", "error", err)
		}
	case DecisionOpenDocs:
		c.deferred.Store(true)
		c.openDocs(ctx, c.docsURL)
	default: // DecisionNotNow, DecisionDismissed
		c.deferred.Store(true)
	}
	return nil
}

// ResetSession clears the session defer flag. Called when the analysis
// session restarts.
func (c *Coordinator) ResetSession() {
	c.deferred.Store(false)
}

// capture reads the settings documents governing the resource and snapshots
// the legacy values. Returns nil when migration is disabled for the scope.
func (c *Coordinator) capture(ctx context.Context, resource protocol.DocumentURI) (*record, error) {
	globalDoc, err := c.editor.ReadSettings(ctx, "")
	if err != nil {
		return nil, err
	}
	var folderDoc []byte
	if resource != "" {
		folderDoc, err = c.editor.ReadSettings(ctx, resource)
		if err != nil {
			return nil, err
		}
	}

	if !settings.NewView(folderDoc, globalDoc).MigrationEnabled() {
		return nil, nil
	}

	rec := &record{resource: resource}
	rec.add("", globalDoc)
	if resource != "" {
		rec.add(resource, folderDoc)
	}
	return rec, nil
}

// apply rewrites every captured document. The first failure is reported
// once through the warning channel and stops the pass; there is no retry.
func (c *Coordinator) apply(ctx context.Context, rec *record) {
	for _, t := range rec.targets {
		updated, err := applyRewrite(t.doc, t.autoFix)
		if err == nil {
			err = c.editor.WriteSettings(ctx, t.scope, updated)
		}
		if err != nil {
			c.logger.Warn("settings migration failed", "scope", string(t.scope), "error", err)
			c.warn("Migrating lint.autoFixOnSave failed. The setting was left unchanged.")
			return
		}
		c.logger.Info("migrated lint.autoFixOnSave", "scope", string(t.scope))
	}
}
