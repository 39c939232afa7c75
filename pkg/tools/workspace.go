package tools

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/forgeline/sitesmith/pkg/types"
)

// Workspace confines all file tools to a single root directory. Every
// path argument is resolved relative to the root; absolute paths and
// paths escaping the root are rejected before any I/O happens.
type Workspace struct {
	root string
}

// NewWorkspace creates a workspace rooted at dir, creating it if
// needed.
func NewWorkspace(dir string) (*Workspace, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve workspace root")
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create workspace root")
	}
	return &Workspace{root: abs}, nil
}

// Root returns the absolute workspace root.
func (w *Workspace) Root() string {
	return w.root
}

// Resolve maps a client-supplied relative path to an absolute path
// inside the workspace.
func (w *Workspace) Resolve(rel string) (string, error) {
	if rel == "" {
		return "", types.NewError(types.CodeProtocolError, "path must not be empty")
	}
	if filepath.IsAbs(rel) {
		return "", types.NewError(types.CodeProtocolError, "absolute paths are not allowed")
	}
	clean := filepath.Clean(rel)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", types.NewError(types.CodeProtocolError, "path escapes the workspace")
	}
	return filepath.Join(w.root, clean), nil
}

// Rel converts an absolute path inside the workspace back to its
// workspace-relative form with forward slashes.
func (w *Workspace) Rel(abs string) string {
	rel, err := filepath.Rel(w.root, abs)
	if err != nil {
		return abs
	}
	return filepath.ToSlash(rel)
}
