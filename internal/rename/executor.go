// Package rename applies accepted name suggestions to files on durable
// storage.
package rename

import (
	"fmt"
	"os"
	"path/filepath"
)

// Result describes where a file ended up. Moved is true when the destination
// directory differs from the source, so callers can distinguish "completed
// here" from "moved away".
type Result struct {
	OldPath string
	NewPath string
	Moved   bool
}

// Executor applies a rename for one file. Failures are isolated per file and
// never affect other files in an apply batch.
type Executor interface {
	Apply(oldPath, newName, category string) (*Result, error)
}

// Local renames files on the local filesystem. When organizing is enabled,
// files are placed in a per-category subdirectory under BaseDir instead of
// staying in place.
type Local struct {
	OrganizeEnabled bool
	BaseDir         string
}

// NewLocal creates a local filesystem executor.
func NewLocal(organize bool, baseDir string) *Local {
	return &Local{OrganizeEnabled: organize, BaseDir: baseDir}
}

// Apply renames oldPath to newName, returning the final location.
func (l *Local) Apply(oldPath, newName, category string) (*Result, error) {
	if newName == "" {
		return nil, fmt.Errorf("empty target name for %s", oldPath)
	}
	if filepath.Base(newName) != newName {
		return nil, fmt.Errorf("target name must not contain path separators: %s", newName)
	}

	srcDir := filepath.Dir(oldPath)
	destDir := srcDir
	if l.OrganizeEnabled && category != "" {
		base := l.BaseDir
		if base == "" {
			base = srcDir
		}
		destDir = filepath.Join(base, category)
		if err := os.MkdirAll(destDir, 0755); err != nil {
			return nil, fmt.Errorf("create category directory: %w", err)
		}
	}

	newPath := filepath.Join(destDir, newName)
	if newPath == oldPath {
		return &Result{OldPath: oldPath, NewPath: newPath}, nil
	}

	if _, err := os.Stat(newPath); err == nil {
		return nil, fmt.Errorf("destination already exists: %s", newPath)
	}

	if err := os.Rename(oldPath, newPath); err != nil {
		return nil, fmt.Errorf("rename %s: %w", oldPath, err)
	}

	return &Result{
		OldPath: oldPath,
		NewPath: newPath,
		Moved:   destDir != srcDir,
	}, nil
}
