// Package settings reads the client-side lint configuration documents.
//
// Settings live in JSON documents: one global document plus an optional
// document per workspace folder. A View merges the two for one scope, with
// folder values winning key by key. Values with the wrong shape are dropped
// entry by entry; the validating parses report what they dropped so callers
// can log it.
package settings

import (
	"github.com/tidwall/gjson"

	"github.com/dshills/lintbridge/internal/protocol"
)

// Setting paths in gjson syntax. Shared with the migration rewrite, which
// patches the same documents with sjson.
const (
	KeyEnable             = "lint.enable"
	KeyMigrationEnable    = "lint.migration.enable"
	KeyValidate           = "lint.validate"
	KeyProbe              = "lint.probe"
	KeyPackageManager     = "lint.packageManager"
	KeyNodePath           = "lint.nodePath"
	KeyRun                = "lint.run"
	KeyQuiet              = "lint.quiet"
	KeyFormatEnable       = "lint.format.enable"
	KeyCodeActionsOnSave  = "lint.codeActionsOnSave"
	KeyRuleCustomizations = "lint.rules.customizations"
	KeyNotebookRules      = "lint.notebooks.rules.customizations"
	KeyWorkingDirectories = "lint.workingDirectories"

	// KeyAutoFixOnSave is the deprecated setting the migration rewrites.
	KeyAutoFixOnSave = "lint.autoFixOnSave"
	// KeyFixAllOnSave is its replacement under the editor's own namespace.
	KeyFixAllOnSave = `editor.codeActionsOnSave.source\.fixAll\.lint`
)

// DefaultProbeLanguages applies when lint.probe is not configured.
var DefaultProbeLanguages = []string{
	"javascript", "javascriptreact",
	"typescript", "typescriptreact",
	"html", "vue", "markdown", "json", "jsonc", "yaml",
}

// Rejected describes a settings entry dropped by a validating parse.
type Rejected struct {
	Index  int // position in the source array, -1 for the value itself
	Reason string
}

// View is a read-only view of the settings governing one scope. Lookups hit
// the folder document first and fall back to the global document.
type View struct {
	folder gjson.Result
	global gjson.Result
}

// NewView builds a view over a folder settings document and the global one.
// Either document may be nil.
func NewView(folderDoc, globalDoc []byte) *View {
	v := &View{}
	if len(folderDoc) > 0 {
		v.folder = gjson.ParseBytes(folderDoc)
	}
	if len(globalDoc) > 0 {
		v.global = gjson.ParseBytes(globalDoc)
	}
	return v
}

func (v *View) get(path string) gjson.Result {
	if r := v.folder.Get(path); r.Exists() {
		return r
	}
	return v.global.Get(path)
}

// Enabled reports whether linting is enabled for this scope. Default true.
func (v *View) Enabled() bool {
	r := v.get(KeyEnable)
	if !r.Exists() {
		return true
	}
	return r.Bool()
}

// MigrationEnabled reports whether the legacy-settings migration may run.
// The setting is the string "on" or "off"; default on.
func (v *View) MigrationEnabled() bool {
	r := v.get(KeyMigrationEnable)
	switch {
	case !r.Exists():
		return true
	case r.Type == gjson.String:
		return r.Str != "off"
	case r.Type == gjson.False:
		return false
	default:
		return true
	}
}

// ValidateLanguages returns the language tags under lint.validate. Entries
// may be plain strings or {language} descriptor objects; anything else is
// skipped.
func (v *View) ValidateLanguages() []string {
	r := v.get(KeyValidate)
	if !r.IsArray() {
		return nil
	}
	var langs []string
	r.ForEach(func(_, entry gjson.Result) bool {
		switch {
		case entry.Type == gjson.String:
			langs = append(langs, entry.Str)
		case entry.IsObject():
			if lang := entry.Get("language"); lang.Type == gjson.String {
				langs = append(langs, lang.Str)
			}
		}
		return true
	})
	return langs
}

// ProbeLanguages returns the language tags eligible for speculative
// validation, defaulting to DefaultProbeLanguages when unset.
func (v *View) ProbeLanguages() []string {
	r := v.get(KeyProbe)
	if !r.IsArray() {
		return DefaultProbeLanguages
	}
	var langs []string
	r.ForEach(func(_, entry gjson.Result) bool {
		if entry.Type == gjson.String {
			langs = append(langs, entry.Str)
		}
		return true
	})
	return langs
}

// PackageManager returns the configured package manager, defaulting to npm.
func (v *View) PackageManager() string {
	if r := v.get(KeyPackageManager); r.Type == gjson.String && r.Str != "" {
		return r.Str
	}
	return "npm"
}

// NodePath returns the configured runtime path, if any.
func (v *View) NodePath() string {
	if r := v.get(KeyNodePath); r.Type == gjson.String {
		return r.Str
	}
	return ""
}

// Run returns when validation runs, "onType" or "onSave". Default onType.
func (v *View) Run() string {
	if r := v.get(KeyRun); r.Type == gjson.String && r.Str == "onSave" {
		return "onSave"
	}
	return "onType"
}

// Quiet reports whether only errors should be surfaced. Default false.
func (v *View) Quiet() bool {
	return v.get(KeyQuiet).Bool()
}

// FormatEnabled reports whether the analysis process should register as a
// formatter. Default false.
func (v *View) FormatEnabled() bool {
	return v.get(KeyFormatEnable).Bool()
}

// CodeActionsOnSave returns the on-save fix policy. Enabled with mode "all"
// unless configured otherwise.
func (v *View) CodeActionsOnSave() protocol.CodeActionsOnSave {
	cas := protocol.CodeActionsOnSave{
		Enable: true,
		Mode:   protocol.CodeActionModeAll,
	}
	if r := v.get(KeyCodeActionsOnSave + ".enable"); r.Exists() {
		cas.Enable = r.Bool()
	}
	if r := v.get(KeyCodeActionsOnSave + ".mode"); r.Type == gjson.String && r.Str == protocol.CodeActionModeProblems {
		cas.Mode = protocol.CodeActionModeProblems
	}
	if r := v.get(KeyCodeActionsOnSave + ".rules"); r.IsArray() {
		r.ForEach(func(_, entry gjson.Result) bool {
			if entry.Type == gjson.String {
				cas.Rules = append(cas.Rules, entry.Str)
			}
			return true
		})
	}
	return cas
}

// CodeActions returns the code-action feature toggles, all enabled by
// default.
func (v *View) CodeActions() protocol.CodeActionSettings {
	ca := protocol.CodeActionSettings{
		DisableRuleComment: protocol.OnOffSetting{Enable: true},
		ShowDocumentation:  protocol.OnOffSetting{Enable: true},
	}
	if r := v.get("lint.codeAction.disableRuleComment.enable"); r.Exists() {
		ca.DisableRuleComment.Enable = r.Bool()
	}
	if r := v.get("lint.codeAction.showDocumentation.enable"); r.Exists() {
		ca.ShowDocumentation.Enable = r.Bool()
	}
	return ca
}

// RuleCustomizations returns the validated severity overrides for this
// scope. Notebook cells read the notebook-specific key first and fall back
// to the general key when it is absent or null.
func (v *View) RuleCustomizations(notebook bool) ([]protocol.RuleCustomization, []Rejected) {
	var r gjson.Result
	if notebook {
		r = v.get(KeyNotebookRules)
	}
	if !r.Exists() || r.Type == gjson.Null {
		r = v.get(KeyRuleCustomizations)
	}
	return parseRuleCustomizations(r)
}
