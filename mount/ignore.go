package mount

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// IgnoreFile is the name of the per-directory ignore list.
const IgnoreFile = ".gitignore"

// writeIgnoreFile merges the given entries into the directory's ignore
// file. Existing entries listed in stale are dropped when their files no
// longer exist. The file always carries a self entry; once the self entry
// is all that would remain, the file is deleted instead.
func writeIgnoreFile(directory string, entries []string, stale []string) error {
	path := filepath.Join(directory, IgnoreFile)

	current := map[string]struct{}{}
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read ignore file: %w", err)
	}
	staleSet := map[string]struct{}{}
	for _, s := range stale {
		staleSet[s] = struct{}{}
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if _, isStale := staleSet[line]; isStale {
			if _, err := os.Stat(filepath.Join(directory, line)); err != nil {
				continue
			}
		}
		current[line] = struct{}{}
	}
	for _, e := range entries {
		current[e] = struct{}{}
	}
	current[IgnoreFile] = struct{}{}

	if len(current) == 1 {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove ignore file: %w", err)
		}
		return nil
	}

	lines := make([]string, 0, len(current))
	for e := range current {
		lines = append(lines, e)
	}
	sort.Strings(lines)
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write ignore file: %w", err)
	}
	return nil
}

// DropIgnoreEntries removes the given entries from a directory's ignore
// file, provided their files no longer exist. The file is deleted once only
// its self entry remains.
func DropIgnoreEntries(directory string, entries ...string) error {
	return writeIgnoreFile(directory, nil, entries)
}

// pruneDirectories removes every empty directory below the given one,
// walking depth first. The root itself is kept. Returns whether anything in
// the tree should keep its parent alive.
func pruneDirectories(directory string, root bool) error {
	_, err := prune(directory, root)
	return err
}

func prune(directory string, root bool) (keep bool, err error) {
	info, err := os.Stat(directory)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !info.IsDir() {
		return true, nil
	}
	entries, err := os.ReadDir(directory)
	if err != nil {
		return false, err
	}
	for _, entry := range entries {
		k, err := prune(filepath.Join(directory, entry.Name()), false)
		if err != nil {
			return false, err
		}
		keep = keep || k
	}
	if keep {
		return true, nil
	}
	if !root {
		if err := os.Remove(directory); err != nil {
			return false, err
		}
	}
	return false, nil
}
