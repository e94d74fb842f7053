package util

import (
	"fmt"
	"io"
	"os"
	"path"

	"github.com/spf13/afero"
)

const tmpSuffix = ".inboxsync.tmp"

// AtomicWrite writes r to a sibling temp file and renames it over dst, so a
// reader never sees a half-written note.
func AtomicWrite(fs afero.Fs, dst string, r io.Reader) error {
	if err := fs.MkdirAll(path.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create parent dir: %w", err)
	}

	tmp := dst + tmpSuffix
	f, err := fs.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = fs.Remove(tmp)
		return fmt.Errorf("failed to write: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = fs.Remove(tmp)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := fs.Rename(tmp, dst); err != nil {
		_ = fs.Remove(tmp)
		return fmt.Errorf("failed to rename: %w", err)
	}

	return nil
}

func RemoveIfExists(fs afero.Fs, p string) error {
	if err := fs.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", p, err)
	}

	return nil
}

// IsTemp reports whether name is a leftover from AtomicWrite.
func IsTemp(name string) bool {
	return len(name) > len(tmpSuffix) && name[len(name)-len(tmpSuffix):] == tmpSuffix
}
