// Package pathutil keeps prepsim's file output inside the directories it was
// pointed at and locates its state directory.
package pathutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideDir is returned by ValidatePath when a CSV, backup or store
// path would land outside the directory it was meant for.
var ErrOutsideDir = errors.New("outside allowed directories")

// RedactPath shortens a path to .../<parent>/<file> so log lines and errors
// about exports, backups and the store do not leak the user's home layout:
// "/home/ann/.prepsim/prepsim.db" becomes ".../.prepsim/prepsim.db".
func RedactPath(path string) string {
	if path == "" {
		return ""
	}
	path = filepath.Clean(path)
	parent := filepath.Base(filepath.Dir(path))
	if parent == "." || parent == string(filepath.Separator) {
		return filepath.Base(path)
	}
	return ".../" + parent + "/" + filepath.Base(path)
}

// ValidatePath reports whether path, once symlinks in its existing
// ancestors are resolved, lies inside one of dirs. The file itself need not
// exist. Export uses it for every CSV it creates under a mode directory and
// backup for every file it writes into the backup directory.
func ValidatePath(path string, dirs []string) error {
	switch {
	case path == "":
		return fmt.Errorf("invalid path: empty")
	case len(dirs) == 0:
		return fmt.Errorf("invalid path %s: no allowed directories given", RedactPath(path))
	case strings.ContainsRune(path, 0):
		return fmt.Errorf("invalid path: contains a null byte")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("invalid path %s: %w", RedactPath(path), err)
	}
	parent, err := resolveExisting(filepath.Dir(abs))
	if err != nil {
		return fmt.Errorf("invalid path %s: %w", RedactPath(path), err)
	}
	target := filepath.Join(parent, filepath.Base(abs))

	for _, dir := range dirs {
		dirAbs, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		root, err := resolveExisting(dirAbs)
		if err != nil {
			continue
		}
		if within(target, root) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrOutsideDir, RedactPath(abs))
}

// resolveExisting evaluates symlinks in the deepest existing ancestor of dir
// and re-appends the part that does not exist yet, such as a mode directory
// a batch is about to create.
func resolveExisting(dir string) (string, error) {
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		return resolved, nil
	}
	up := filepath.Dir(dir)
	if up == dir {
		return "", fmt.Errorf("cannot resolve %s", RedactPath(dir))
	}
	resolved, err := resolveExisting(up)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolved, filepath.Base(dir)), nil
}

// within reports whether path is root or below it. "/tmp/out" is not within
// "/tmp/o".
func within(path, root string) bool {
	return path == root || strings.HasPrefix(path, root+string(os.PathSeparator))
}

// StateDirName is the per-user directory holding the results store and
// event logs.
const StateDirName = ".prepsim"

// StateDir returns ~/.prepsim.
func StateDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, StateDirName), nil
}

// DefaultStorePath returns ~/.prepsim/prepsim.db.
func DefaultStorePath() (string, error) {
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "prepsim.db"), nil
}

// DefaultLogDir returns ~/.prepsim/logs.
func DefaultLogDir() (string, error) {
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "logs"), nil
}

// SafeName checks that name can be used as a single path component:
// non-empty, not "." or "..", and free of separators and null bytes.
func SafeName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("invalid file name %q", name)
	case strings.ContainsAny(name, `/\`), strings.ContainsRune(name, '\x00'):
		return fmt.Errorf("invalid file name %q: contains a path separator", name)
	}
	return nil
}
