package protocol

import (
	"net/url"
	"path/filepath"
	"runtime"
	"strings"
)

// URI schemes this client distinguishes.
const (
	SchemeFile         = "file"
	SchemeUntitled     = "untitled"
	SchemeNotebookCell = "notebook-cell"
)

// FilePathToURI converts a file path to a file:// DocumentURI.
func FilePathToURI(path string) DocumentURI {
	if path == "" {
		return ""
	}

	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}

	path = filepath.ToSlash(path)

	// Windows drive letters need a leading slash in the URI path.
	if runtime.GOOS == "windows" && len(path) >= 2 && path[1] == ':' {
		path = "/" + path
	}

	u := &url.URL{
		Scheme: SchemeFile,
		Path:   path,
	}

	return DocumentURI(u.String())
}

// URIToFilePath converts a file:// DocumentURI back to a file path.
// Non-file URIs are returned unchanged.
func URIToFilePath(uri DocumentURI) string {
	if uri == "" {
		return ""
	}

	u, err := url.Parse(string(uri))
	if err != nil {
		return string(uri)
	}

	if u.Scheme != SchemeFile {
		return string(uri)
	}

	path := u.Path

	if runtime.GOOS == "windows" && len(path) >= 3 && path[0] == '/' && path[2] == ':' {
		path = path[1:]
	}

	return filepath.FromSlash(path)
}

// Scheme returns the URI's scheme, or empty when the URI has none.
func (u DocumentURI) Scheme() string {
	s := string(u)
	i := strings.Index(s, ":")
	if i <= 0 {
		return ""
	}
	return s[:i]
}

// IsFile reports whether the URI uses the file scheme.
func (u DocumentURI) IsFile() bool {
	return u.Scheme() == SchemeFile
}

// Path returns the filesystem path for file URIs and empty otherwise.
func (u DocumentURI) Path() string {
	if !u.IsFile() {
		return ""
	}
	return URIToFilePath(u)
}
