package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathResolver resolves documents kept under the user data root.
type PathResolver struct {
	dataRoot string
}

// NewPathResolver creates a resolver rooted at dataRoot. An empty root falls back
// to the current working directory.
func NewPathResolver(dataRoot string) *PathResolver {
	if dataRoot == "" {
		dataRoot, _ = os.Getwd()
	}
	if abs, err := filepath.Abs(dataRoot); err == nil {
		dataRoot = abs
	}
	return &PathResolver{dataRoot: dataRoot}
}

// DataRoot returns the absolute user data root
func (pr *PathResolver) DataRoot() string {
	return pr.dataRoot
}

// ResolveUserPath returns the absolute path of name inside the data root.
// Absolute names are returned cleaned. Relative names that would escape the
// root are rejected.
func (pr *PathResolver) ResolveUserPath(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("empty path")
	}
	if filepath.IsAbs(name) {
		return filepath.Clean(name), nil
	}

	resolved := filepath.Join(pr.dataRoot, name)
	rel, err := filepath.Rel(pr.dataRoot, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes data root", name)
	}
	return resolved, nil
}

// EnsureDataRoot creates the data root when missing
func (pr *PathResolver) EnsureDataRoot() error {
	return os.MkdirAll(pr.dataRoot, 0755)
}
