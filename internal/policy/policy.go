// Package policy decides whether a document takes part in analysis.
//
// A document classifies as on, probe, or off. Probe is speculative: the
// analysis process later confirms or rejects applicability, and a rejected
// document stays off for the session until a configuration change clears
// the rejection.
package policy

import (
	"sync"

	"github.com/dshills/lintbridge/internal/protocol"
)

// ValidationMode is the analysis decision for a document.
type ValidationMode int

const (
	// ModeOff excludes the document from analysis.
	ModeOff ValidationMode = iota
	// ModeOn includes the document unconditionally.
	ModeOn
	// ModeProbe includes the document until the analysis process rejects it.
	ModeProbe
)

func (m ValidationMode) String() string {
	switch m {
	case ModeOn:
		return "on"
	case ModeProbe:
		return "probe"
	default:
		return "off"
	}
}

// Config is the slice of the settings that classification depends on.
type Config struct {
	Enabled  bool
	Validate []string
	Probe    []string
}

// Classifier applies the validation policy. It owns the probe-failure set;
// everything else about Classify is a pure function of its arguments.
type Classifier struct {
	mu          sync.RWMutex
	probeFailed map[protocol.DocumentURI]struct{}
}

// NewClassifier creates a classifier with an empty probe-failure set.
func NewClassifier() *Classifier {
	return &Classifier{
		probeFailed: make(map[protocol.DocumentURI]struct{}),
	}
}

// Classify decides the validation mode for a document. First match wins:
// disabled scope, validate-list entry, prior probe failure, probe-list
// entry, otherwise off. A validate-list match outranks a probe failure.
func (c *Classifier) Classify(uri protocol.DocumentURI, language string, cfg Config) ValidationMode {
	if !cfg.Enabled {
		return ModeOff
	}
	if containsLanguage(cfg.Validate, language) {
		return ModeOn
	}
	if c.ProbeFailed(uri) {
		return ModeOff
	}
	if containsLanguage(cfg.Probe, language) {
		return ModeProbe
	}
	return ModeOff
}

// MarkProbeFailed records that the analysis process rejected a probe for
// the document.
func (c *Classifier) MarkProbeFailed(uri protocol.DocumentURI) {
	c.mu.Lock()
	c.probeFailed[uri] = struct{}{}
	c.mu.Unlock()
}

// ProbeFailed reports whether a probe for the document was rejected.
func (c *Classifier) ProbeFailed(uri protocol.DocumentURI) bool {
	c.mu.RLock()
	_, ok := c.probeFailed[uri]
	c.mu.RUnlock()
	return ok
}

// ClearProbeFailures empties the probe-failure set. Called on configuration
// changes, which may change the probe list itself.
func (c *Classifier) ClearProbeFailures() {
	c.mu.Lock()
	c.probeFailed = make(map[protocol.DocumentURI]struct{})
	c.mu.Unlock()
}

func containsLanguage(list []string, language string) bool {
	for _, entry := range list {
		if entry == language {
			return true
		}
	}
	return false
}
