package settings

import (
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/dshills/lintbridge/internal/protocol"
)

// Severities the analysis process understands for rule customizations.
var validSeverities = map[string]bool{
	"downgrade": true,
	"upgrade":   true,
	"info":      true,
	"warn":      true,
	"error":     true,
	"off":       true,
	"default":   true,
}

// parseRuleCustomizations validates each entry of a customizations array.
// Malformed entries are rejected individually and never fail the parse.
func parseRuleCustomizations(r gjson.Result) ([]protocol.RuleCustomization, []Rejected) {
	if !r.Exists() || r.Type == gjson.Null {
		return nil, nil
	}
	if !r.IsArray() {
		return nil, []Rejected{{Index: -1, Reason: "customizations value is not an array"}}
	}

	var accepted []protocol.RuleCustomization
	var rejected []Rejected
	idx := -1
	r.ForEach(func(_, entry gjson.Result) bool {
		idx++
		if !entry.IsObject() {
			rejected = append(rejected, Rejected{Index: idx, Reason: "entry is not an object"})
			return true
		}
		rule := entry.Get("rule")
		severity := entry.Get("severity")
		switch {
		case rule.Type != gjson.String || rule.Str == "":
			rejected = append(rejected, Rejected{Index: idx, Reason: "missing or non-string rule"})
		case severity.Type != gjson.String:
			rejected = append(rejected, Rejected{Index: idx, Reason: "missing or non-string severity"})
		case !validSeverities[severity.Str]:
			rejected = append(rejected, Rejected{Index: idx, Reason: fmt.Sprintf("unknown severity %q", severity.Str)})
		default:
			accepted = append(accepted, protocol.RuleCustomization{Rule: rule.Str, Severity: severity.Str})
		}
		return true
	})
	return accepted, rejected
}
