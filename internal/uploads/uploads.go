// Package uploads manages the directory holding user-uploaded files.
package uploads

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// DirPerm is the mode used when creating the upload directory.
const DirPerm = 0o755

// Provision makes sure dir exists and is writable. An existing directory is
// success, so concurrent boots do not race each other.
func Provision(dir string) error {
	if dir == "" {
		return fmt.Errorf("upload directory is empty")
	}
	if err := os.MkdirAll(dir, DirPerm); err != nil {
		return err
	}
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	check, err := os.CreateTemp(dir, ".write-check-*")
	if err != nil {
		return fmt.Errorf("upload directory is not writable: %w", err)
	}
	name := check.Name()
	_ = check.Close()
	return os.Remove(name)
}

// NewName returns a random file name keeping the lower-cased extension of
// the original.
func NewName(original string) string {
	return uuid.New().String() + Ext(original)
}

// Ext returns the lower-cased extension of name, including the dot.
func Ext(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// Resolve maps a stored file name to its path inside dir. Names that would
// escape dir are rejected.
func Resolve(dir, name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	return filepath.Join(dir, name), nil
}
