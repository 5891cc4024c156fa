// Package backup takes, verifies, restores and prunes point-in-time copies
// of the results database.
package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/annebeks/prepsim/internal/pathutil"
	"github.com/annebeks/prepsim/internal/store"
)

const (
	filePrefix = "prepsim-backup-"
	fileExt    = ".db"

	// timestampLayout sorts lexically in time order.
	timestampLayout = "20060102-150405.000"
)

// ErrExists is returned when a restore would overwrite a database without
// force.
var ErrExists = errors.New("destination exists")

// DefaultDir returns the default backup directory (~/.prepsim/backups).
func DefaultDir() (string, error) {
	dir, err := pathutil.StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "backups"), nil
}

// GeneratePath returns the backup file path for time t in dir.
func GeneratePath(dir string, t time.Time) string {
	return filepath.Join(dir, filePrefix+t.UTC().Format(timestampLayout)+fileExt)
}

// Backup copies st into a new timestamped file in dir and returns it.
func Backup(ctx context.Context, st *store.SQLiteStore, dir string) (Info, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return Info{}, fmt.Errorf("creating backup directory: %w", err)
	}

	now := time.Now()
	path := GeneratePath(dir, now)
	if err := pathutil.ValidatePath(path, []string{dir}); err != nil {
		return Info{}, err
	}
	if err := st.CopyTo(ctx, path); err != nil {
		return Info{}, err
	}

	fi, err := os.Stat(path)
	if err != nil {
		return Info{}, fmt.Errorf("stat backup: %w", err)
	}
	return Info{Path: path, Size: fi.Size(), CreatedAt: now.UTC().Truncate(time.Millisecond)}, nil
}

// Verify opens a backup, checks its integrity and returns how many
// experiments it holds.
func Verify(ctx context.Context, path string) (int, error) {
	if _, err := os.Stat(path); err != nil {
		return 0, fmt.Errorf("backup %s: %w", pathutil.RedactPath(path), err)
	}
	st, err := store.Open(ctx, path)
	if err != nil {
		return 0, err
	}
	defer st.Close()

	if err := st.Integrity(ctx); err != nil {
		return 0, fmt.Errorf("backup %s: %w", pathutil.RedactPath(path), err)
	}
	exps, err := st.ListExperiments(ctx, store.ListFilter{})
	if err != nil {
		return 0, err
	}
	return len(exps), nil
}

// Restore verifies the backup at src and copies it to dst. The database at
// dst must not be open. An existing dst is only replaced when force is set.
func Restore(ctx context.Context, src, dst string, force bool) (int, error) {
	n, err := Verify(ctx, src)
	if err != nil {
		return 0, err
	}

	if _, err := os.Stat(dst); err == nil && !force {
		return 0, fmt.Errorf("%w: %s", ErrExists, pathutil.RedactPath(dst))
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return 0, fmt.Errorf("creating store directory: %w", err)
	}

	tmp := dst + ".restore"
	if err := copyFile(src, tmp); err != nil {
		os.Remove(tmp)
		return 0, err
	}
	// Stale WAL files would be replayed over the restored database.
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(dst + suffix); err != nil && !os.IsNotExist(err) {
			os.Remove(tmp)
			return 0, fmt.Errorf("removing %s: %w", filepath.Base(dst+suffix), err)
		}
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("replacing store: %w", err)
	}
	return n, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening backup: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("creating %s: %w", pathutil.RedactPath(dst), err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying backup: %w", err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return fmt.Errorf("syncing %s: %w", pathutil.RedactPath(dst), err)
	}
	return out.Close()
}

// parseName returns the creation time encoded in a backup file name.
func parseName(name string) (time.Time, bool) {
	ts, ok := strings.CutPrefix(name, filePrefix)
	if !ok {
		return time.Time{}, false
	}
	ts, ok = strings.CutSuffix(ts, fileExt)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(timestampLayout, ts)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
