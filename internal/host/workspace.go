package host

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"log/slog"

	"github.com/dshills/lintbridge/internal/protocol"
	"github.com/dshills/lintbridge/internal/session"
	"github.com/dshills/lintbridge/internal/settings"
)

// FSWorkspace is the filesystem-backed workspace view the session reads:
// workspace folders from the command line, open documents from include
// globs or an explicit file list, settings documents on disk. It also
// serves as the settings editor the migration rewrites through.
type FSWorkspace struct {
	folders      []protocol.WorkspaceFolder
	settingsFile string
	globalPath   string
	logger       *slog.Logger

	mu   sync.RWMutex
	docs map[protocol.DocumentURI]session.Document
}

// NewFSWorkspace builds the workspace over the given folder paths. The
// global settings path may be empty when no user config dir exists.
func NewFSWorkspace(folderPaths []string, cfg WorkspaceConfig, globalPath string, logger *slog.Logger) (*FSWorkspace, error) {
	if logger == nil {
		logger = slog.Default()
	}
	settingsFile := cfg.SettingsFile
	if settingsFile == "" {
		settingsFile = ".lintbridge.json"
	}

	folders := make([]protocol.WorkspaceFolder, 0, len(folderPaths))
	for _, p := range folderPaths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolving folder %s: %w", p, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("workspace folder %s: %w", p, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("workspace folder %s is not a directory", p)
		}
		folders = append(folders, protocol.WorkspaceFolder{
			URI:  protocol.FilePathToURI(abs),
			Name: filepath.Base(abs),
		})
	}

	return &FSWorkspace{
		folders:      folders,
		settingsFile: settingsFile,
		globalPath:   globalPath,
		logger:       logger,
		docs:         make(map[protocol.DocumentURI]session.Document),
	}, nil
}

// Folders lists the workspace folders in declaration order.
func (w *FSWorkspace) Folders() []protocol.WorkspaceFolder {
	return w.folders
}

// FolderFor returns the folder owning the URI. Nested folders resolve to
// the longest matching root.
func (w *FSWorkspace) FolderFor(uri protocol.DocumentURI) *protocol.WorkspaceFolder {
	path := uri.Path()
	if path == "" {
		return nil
	}

	var best *protocol.WorkspaceFolder
	bestLen := 0
	for i := range w.folders {
		root := w.folders[i].URI.Path()
		if root == "" {
			continue
		}
		if path != root && !strings.HasPrefix(path, strings.TrimSuffix(root, "/")+"/") {
			continue
		}
		if len(root) > bestLen {
			best = &w.folders[i]
			bestLen = len(root)
		}
	}
	return best
}

// OpenDocuments enumerates the current open population.
func (w *FSWorkspace) OpenDocuments() []session.Document {
	w.mu.RLock()
	defer w.mu.RUnlock()
	docs := make([]session.Document, 0, len(w.docs))
	for _, doc := range w.docs {
		docs = append(docs, doc)
	}
	return docs
}

// AddDocument records a document as open.
func (w *FSWorkspace) AddDocument(path string) (session.Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return session.Document{}, err
	}
	if _, err := os.Stat(abs); err != nil {
		return session.Document{}, fmt.Errorf("open document %s: %w", path, err)
	}

	doc := session.Document{
		URI:      protocol.FilePathToURI(abs),
		Language: DetectLanguage(abs),
	}
	w.mu.Lock()
	w.docs[doc.URI] = doc
	w.mu.Unlock()
	return doc, nil
}

// RemoveDocument records a document as closed.
func (w *FSWorkspace) RemoveDocument(uri protocol.DocumentURI) {
	w.mu.Lock()
	delete(w.docs, uri)
	w.mu.Unlock()
}

// OpenByGlobs opens every file matched by the include globs, capped at
// maxFiles across all folders. Patterns resolve relative to each folder;
// `**` crosses directories, `*` and `?` stay within one path segment.
func (w *FSWorkspace) OpenByGlobs(includes []string, maxFiles int) error {
	if len(includes) == 0 {
		return nil
	}
	if maxFiles <= 0 {
		maxFiles = 2000
	}

	total := 0
	for _, folder := range w.folders {
		root := folder.URI.Path()
		for _, pattern := range includes {
			var matches []string
			var err error
			if strings.Contains(pattern, "**") {
				matches, err = walkMatches(root, pattern)
			} else {
				matches, err = filepath.Glob(filepath.Join(root, pattern))
			}
			if err != nil {
				return fmt.Errorf("include pattern %q: %w", pattern, err)
			}
			for _, m := range matches {
				info, err := os.Stat(m)
				if err != nil || info.IsDir() {
					continue
				}
				if total >= maxFiles {
					w.logger.Warn("include walk capped", "max", maxFiles)
					return nil
				}
				if _, err := w.AddDocument(m); err != nil {
					w.logger.Warn("skipping document", "path", m, "error", err)
					continue
				}
				total++
			}
		}
	}
	return nil
}

// walkMatches handles recursive include patterns, which filepath.Glob
// cannot: it walks the folder and matches each file's folder-relative
// path. Dependency and VCS directories are skipped.
func walkMatches(root, pattern string) ([]string, error) {
	re, err := includeRegexp(pattern)
	if err != nil {
		return nil, err
	}

	var matches []string
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if d.Name() == "node_modules" || d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		if re.MatchString(filepath.ToSlash(rel)) {
			matches = append(matches, path)
		}
		return nil
	})
	return matches, walkErr
}

// includeRegexp compiles an include glob to a full-match regexp over a
// slash-form relative path. A leading or interior `**/` also matches
// zero directories, so `**/*.js` picks up files at the folder root.
func includeRegexp(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch c {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				i++
				if i+1 < len(pattern) && pattern[i+1] == '/' {
					b.WriteString(`(?:[^/]+/)*`)
					i++
				} else {
					b.WriteString(".*")
				}
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
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// SettingsView merges the folder settings document over the global one.
// Missing documents read as empty.
func (w *FSWorkspace) SettingsView(folder protocol.DocumentURI) *settings.View {
	var folderDoc []byte
	if folder != "" {
		folderDoc = w.readSettingsFile(w.folderSettingsPath(folder))
	}
	return settings.NewView(folderDoc, w.readSettingsFile(w.globalPath))
}

// DocumentItem loads the full document for a didOpen.
func (w *FSWorkspace) DocumentItem(uri protocol.DocumentURI) (protocol.TextDocumentItem, error) {
	w.mu.RLock()
	doc, open := w.docs[uri]
	w.mu.RUnlock()

	path := uri.Path()
	if path == "" {
		return protocol.TextDocumentItem{}, fmt.Errorf("%w: %s", ErrDocumentNotOpen, uri)
	}

	text, err := os.ReadFile(path)
	if err != nil {
		return protocol.TextDocumentItem{}, fmt.Errorf("reading %s: %w", path, err)
	}

	language := doc.Language
	if !open || language == "" {
		language = DetectLanguage(path)
	}

	return protocol.TextDocumentItem{
		URI:        uri,
		LanguageID: language,
		Version:    1,
		Text:       string(text),
	}, nil
}

// ReadSettings implements the migration's settings editor. The empty scope
// reads the global document.
func (w *FSWorkspace) ReadSettings(ctx context.Context, scope protocol.DocumentURI) ([]byte, error) {
	path := w.settingsPath(scope)
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading settings %s: %w", path, err)
	}
	return data, nil
}

// WriteSettings rewrites a settings document atomically: write to a
// temporary file in the same directory, then rename over the original.
func (w *FSWorkspace) WriteSettings(ctx context.Context, scope protocol.DocumentURI, doc []byte) error {
	path := w.settingsPath(scope)
	if path == "" {
		return fmt.Errorf("no settings document for scope %q", scope)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating settings dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp settings file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(doc); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing settings file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing settings file %s: %w", path, err)
	}
	return nil
}

// SettingsPaths lists every settings document location: one per folder
// plus the global document. The watcher monitors these.
func (w *FSWorkspace) SettingsPaths() []string {
	var paths []string
	for _, folder := range w.folders {
		if p := w.folderSettingsPath(folder.URI); p != "" {
			paths = append(paths, p)
		}
	}
	if w.globalPath != "" {
		paths = append(paths, w.globalPath)
	}
	return paths
}

// settingsPath maps a migration scope to its document path. Empty scope is
// the global document.
func (w *FSWorkspace) settingsPath(scope protocol.DocumentURI) string {
	if scope == "" {
		return w.globalPath
	}
	return w.folderSettingsPath(scope)
}

func (w *FSWorkspace) folderSettingsPath(folder protocol.DocumentURI) string {
	root := folder.Path()
	if root == "" {
		return ""
	}
	return filepath.Join(root, w.settingsFile)
}

func (w *FSWorkspace) readSettingsFile(path string) []byte {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			w.logger.Warn("reading settings document failed", "path", path, "error", err)
		}
		return nil
	}
	return data
}

// DetectLanguage returns the language tag for a file path, matching the
// identifiers lint servers use.
func DetectLanguage(path string) string {
	base := filepath.Base(path)
	switch strings.ToLower(filepath.Ext(base)) {
	case ".js", ".mjs", ".cjs":
		return "javascript"
	case ".jsx":
		return "javascriptreact"
	case ".ts", ".mts", ".cts":
		return "typescript"
	case ".tsx":
		return "typescriptreact"
	case ".vue":
		return "vue"
	case ".html", ".htm":
		return "html"
	case ".md", ".markdown":
		return "markdown"
	case ".json":
		return "json"
	case ".jsonc":
		return "jsonc"
	case ".yaml", ".yml":
		return "yaml"
	case ".go":
		return "go"
	case ".py":
		return "python"
	default:
		return "plaintext"
	}
}
