package migrate

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/dshills/lintbridge/internal/protocol"
	"github.com/dshills/lintbridge/internal/settings"
)

// record is the in-flight migration state: the targeted resource and the
// pre-migration snapshot of every settings document that needs the rewrite.
// It exists only while the gate is held.
type record struct {
	resource protocol.DocumentURI
	targets  []target
}

// target is one settings document carrying the deprecated setting.
type target struct {
	scope   protocol.DocumentURI // "" is the global document
	doc     []byte
	autoFix bool
}

// add snapshots a document if it needs the rewrite.
func (r *record) add(scope protocol.DocumentURI, doc []byte) {
	if !docNeedsUpdate(doc) {
		return
	}
	r.targets = append(r.targets, target{
		scope:   scope,
		doc:     doc,
		autoFix: gjson.GetBytes(doc, settings.KeyAutoFixOnSave).Bool(),
	})
}

func (r *record) needsUpdate() bool {
	return len(r.targets) > 0
}

// docNeedsUpdate reports whether the document enables the deprecated
// auto-fix-on-save key in a form the replacement key does not yet express.
// A disabled legacy key expresses nothing, and a replacement that is
// already true has nothing left to carry over.
func docNeedsUpdate(doc []byte) bool {
	if len(doc) == 0 {
		return false
	}
	legacy := gjson.GetBytes(doc, settings.KeyAutoFixOnSave)
	if !legacy.Exists() || !legacy.Bool() {
		return false
	}
	return !gjson.GetBytes(doc, settings.KeyFixAllOnSave).Bool()
}

// applyRewrite translates the deprecated key into its replacement. The
// rewrite is idempotent: a document whose replacement key is already true
// is never a target, and re-running it yields the same document.
func applyRewrite(doc []byte, autoFix bool) ([]byte, error) {
	updated, err := sjson.SetBytes(doc, settings.KeyFixAllOnSave, autoFix)
	if err != nil {
		return nil, err
	}
	return sjson.DeleteBytes(updated, settings.KeyAutoFixOnSave)
}
