package mount

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RootDir is the marker directory that anchors all mounts.
const RootDir = ".cairn"

// FindRoot walks upward from cwd looking for the marker directory and
// returns its absolute path. cwd defaults to the working directory.
func FindRoot(cwd string) (string, error) {
	if cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("locate root: %w", err)
		}
		cwd = wd
	}
	dir, err := filepath.Abs(cwd)
	if err != nil {
		return "", fmt.Errorf("locate root: %w", err)
	}
	for {
		marker := filepath.Join(dir, RootDir)
		if info, err := os.Stat(marker); err == nil && info.IsDir() {
			return marker, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", &RootError{Start: cwd}
		}
		dir = parent
	}
}

// CreateRoot creates the marker directory in cwd if it does not already
// exist and returns its path.
func CreateRoot(cwd string) (string, error) {
	if cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("create root: %w", err)
		}
		cwd = wd
	}
	marker := filepath.Join(cwd, RootDir)
	if err := os.MkdirAll(marker, 0o755); err != nil {
		return "", fmt.Errorf("create root: %w", err)
	}
	return marker, nil
}

// ScriptLabel derives a label for the running executable: its path relative
// to the directory containing the root marker, with path separators
// rewritten to ':'. Executables outside the project fall back to their base
// name.
func ScriptLabel(base string) string {
	exe := os.Args[0]
	if exe == "" {
		return "__interpreter__"
	}
	abs, err := filepath.Abs(exe)
	if err != nil {
		return trimExecExt(filepath.Base(exe))
	}
	project := filepath.Dir(base)
	rel, err := filepath.Rel(project, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return trimExecExt(filepath.Base(abs))
	}
	rel = trimExecExt(rel)
	return strings.ReplaceAll(filepath.ToSlash(rel), "/", ":")
}

func trimExecExt(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// normalizePath renders a path relative to the project for log output.
func normalizePath(path string) string {
	root, err := FindRoot("")
	if err != nil {
		return path
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(filepath.Dir(root), abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}
