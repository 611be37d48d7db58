package settings

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/dshills/lintbridge/internal/protocol"
)

// WorkDirKind discriminates the lint.workingDirectories rule variants.
type WorkDirKind int

const (
	// WorkDirDirectory maps a directory prefix to the working directory.
	WorkDirDirectory WorkDirKind = iota
	// WorkDirPattern maps a glob-style prefix pattern.
	WorkDirPattern
	// WorkDirMode is a fallback flag used only when nothing else matches.
	WorkDirMode
)

// WorkDirRule is one entry of lint.workingDirectories.
type WorkDirRule struct {
	Kind        WorkDirKind
	Directory   string
	Pattern     string
	Mode        string
	NoCwdChange bool
}

// WorkingDirectories returns the validated working-directory rules in
// declared order. Entries may be plain directory strings, {directory},
// {pattern}, or {mode} objects.
func (v *View) WorkingDirectories() ([]WorkDirRule, []Rejected) {
	r := v.get(KeyWorkingDirectories)
	if !r.Exists() || r.Type == gjson.Null {
		return nil, nil
	}
	if !r.IsArray() {
		return nil, []Rejected{{Index: -1, Reason: "workingDirectories value is not an array"}}
	}

	var rules []WorkDirRule
	var rejected []Rejected
	idx := -1
	r.ForEach(func(_, entry gjson.Result) bool {
		idx++
		switch {
		case entry.Type == gjson.String:
			rules = append(rules, WorkDirRule{Kind: WorkDirDirectory, Directory: entry.Str})
		case entry.IsObject():
			noCwd := entry.Get(`\!cwd`).Bool()
			if dir := entry.Get("directory"); dir.Type == gjson.String && dir.Str != "" {
				rules = append(rules, WorkDirRule{Kind: WorkDirDirectory, Directory: dir.Str, NoCwdChange: noCwd})
				return true
			}
			if pat := entry.Get("pattern"); pat.Type == gjson.String && pat.Str != "" {
				rules = append(rules, WorkDirRule{Kind: WorkDirPattern, Pattern: pat.Str, NoCwdChange: noCwd})
				return true
			}
			if mode := entry.Get("mode"); mode.Type == gjson.String {
				if mode.Str != protocol.ModeAuto && mode.Str != protocol.ModeLocation {
					rejected = append(rejected, Rejected{Index: idx, Reason: "unknown working-directory mode"})
					return true
				}
				rules = append(rules, WorkDirRule{Kind: WorkDirMode, Mode: mode.Str})
				return true
			}
			rejected = append(rejected, Rejected{Index: idx, Reason: "object has none of directory, pattern, mode"})
		default:
			rejected = append(rejected, Rejected{Index: idx, Reason: "entry is neither string nor object"})
		}
		return true
	})
	return rules, rejected
}

// ResolveWorkingDirectory selects the working directory for filePath from
// the rules, in declared order. Directory and pattern rules compete on match
// length; a longer match replaces the running best, an equal-length match
// does not. A mode rule never competes and is returned only when no
// directory or pattern rule matched. Returns nil when nothing applies.
func ResolveWorkingDirectory(rules []WorkDirRule, filePath, workspaceRoot string) *protocol.WorkingDirectory {
	if filePath == "" {
		return nil
	}
	filePath = filepath.ToSlash(filePath)

	var best *protocol.WorkingDirectory
	bestLen := 0
	mode := ""

	for _, rule := range rules {
		switch rule.Kind {
		case WorkDirMode:
			if mode == "" {
				mode = rule.Mode
			}
		case WorkDirDirectory:
			prefix := normalizeDirPrefix(rule.Directory, workspaceRoot)
			if prefix == "" {
				continue
			}
			if strings.HasPrefix(filePath, prefix) && len(prefix) > bestLen {
				best = &protocol.WorkingDirectory{Directory: prefix, NoCwdChange: rule.NoCwdChange}
				bestLen = len(prefix)
			}
		case WorkDirPattern:
			prefix := normalizeDirPrefix(rule.Pattern, workspaceRoot)
			if prefix == "" {
				continue
			}
			re, err := globToRegexp(prefix)
			if err != nil {
				continue
			}
			if m := re.FindString(filePath); m != "" && len(m) > bestLen {
				best = &protocol.WorkingDirectory{Directory: m, NoCwdChange: rule.NoCwdChange}
				bestLen = len(m)
			}
		}
	}

	if best != nil {
		return best
	}
	if mode != "" {
		return &protocol.WorkingDirectory{Mode: mode}
	}
	return nil
}

// normalizeDirPrefix makes dir an absolute, slash-separated,
// separator-terminated prefix. Relative directories resolve against
// workspaceRoot; with no root to resolve against the rule cannot apply.
func normalizeDirPrefix(dir, workspaceRoot string) string {
	if dir == "" {
		return ""
	}
	if !isSlashAbs(dir) {
		if workspaceRoot == "" {
			return ""
		}
		dir = strings.TrimSuffix(filepath.ToSlash(workspaceRoot), "/") + "/" + dir
	}
	dir = filepath.ToSlash(dir)
	if !strings.HasSuffix(dir, "/") {
		dir += "/"
	}
	return dir
}

// isSlashAbs reports whether the slash-form path is absolute, including
// windows drive-letter paths.
func isSlashAbs(path string) bool {
	if strings.HasPrefix(path, "/") {
		return true
	}
	return len(path) >= 3 && path[1] == ':' && (path[2] == '/' || path[2] == '\\')
}

// globToRegexp compiles a slash-form glob to an anchored prefix regexp.
// `*` and `?` do not cross separators; `**` does.
func globToRegexp(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch c {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				b.WriteString(".*")
				i++
			} else {
				b.WriteString("[^/]*")
			}
		case '?':
			b.WriteString("[^/]")
		case '.', '+', '(', ')', '[', ']', '{', '}', '^', '$', '|', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return regexp.Compile(b.String())
}
