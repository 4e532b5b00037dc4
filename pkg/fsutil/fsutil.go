// Package fsutil holds the file helpers used when persisting a timing
// database: owner-aware directory creation, atomic writes and artifact
// backups.
package fsutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// OwnerConfig holds parsed UID/GID for file ownership.
type OwnerConfig struct {
	UID int
	GID int
}

// ParseOwner parses "UID:GID" string. Returns nil if empty.
func ParseOwner(owner string) (*OwnerConfig, error) {
	if owner == "" {
		return nil, nil
	}

	uidStr, gidStr, ok := strings.Cut(owner, ":")
	if !ok || strings.Contains(gidStr, ":") {
		return nil, fmt.Errorf("invalid format %q, expected UID:GID", owner)
	}

	uid, err := strconv.Atoi(uidStr)
	if err != nil {
		return nil, fmt.Errorf("invalid UID %q: %w", uidStr, err)
	}

	gid, err := strconv.Atoi(gidStr)
	if err != nil {
		return nil, fmt.Errorf("invalid GID %q: %w", gidStr, err)
	}

	return &OwnerConfig{UID: uid, GID: gid}, nil
}

// Chown sets ownership if owner is not nil. Best-effort, ignores errors.
func Chown(path string, owner *OwnerConfig) {
	if owner == nil {
		return
	}

	_ = os.Chown(path, owner.UID, owner.GID)
}

// MkdirAll creates directory and sets ownership.
func MkdirAll(path string, perm os.FileMode, owner *OwnerConfig) error {
	if err := os.MkdirAll(path, perm); err != nil {
		return err
	}

	Chown(path, owner)

	return nil
}

// WriteFileAtomic writes data to a temporary file next to path and renames
// it into place, so readers see either the old or the new content.
func WriteFileAtomic(path string, data []byte, perm os.FileMode, owner *OwnerConfig) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	tmpName := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()

		return fmt.Errorf("writing temp file: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		cleanup()

		return fmt.Errorf("syncing temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Chmod(tmpName, perm); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("setting permissions: %w", err)
	}

	Chown(tmpName, owner)

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("renaming temp file: %w", err)
	}

	return nil
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)

	return err == nil
}

// maxBackupSuffix bounds the collision suffixes tried for one stamp.
const maxBackupSuffix = 1000

// Backup copies path to "<path>.<stamp>.bak" and returns the backup path.
// An existing backup is never overwritten: later copies with the same
// stamp become "<path>.<stamp>.<n>.bak". A missing source is not an error
// and yields an empty path.
func Backup(path, stamp string, owner *OwnerConfig) (string, error) {
	src, err := os.Open(path) //nolint:gosec // artifact path from config
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}

		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = src.Close() }()

	info, err := src.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}

	dst, out, err := createBackupFile(path, stamp, info.Mode().Perm())
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()

		return "", fmt.Errorf("copying to backup: %w", err)
	}

	if err := out.Close(); err != nil {
		return "", fmt.Errorf("closing backup: %w", err)
	}

	Chown(dst, owner)

	return dst, nil
}

// createBackupFile exclusively creates the first free backup name for stamp.
func createBackupFile(path, stamp string, perm os.FileMode) (string, *os.File, error) {
	for n := 0; n < maxBackupSuffix; n++ {
		dst := fmt.Sprintf("%s.%s.bak", path, stamp)
		if n > 0 {
			dst = fmt.Sprintf("%s.%s.%d.bak", path, stamp, n)
		}

		out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, perm) //nolint:gosec // derived from path
		if err == nil {
			return dst, out, nil
		}

		if !errors.Is(err, os.ErrExist) {
			return "", nil, fmt.Errorf("creating backup: %w", err)
		}
	}

	return "", nil, fmt.Errorf("creating backup: no free name for %s at %s", path, stamp)
}
