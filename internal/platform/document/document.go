// Package document stores named JSON documents in a configuration directory.
package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/kislikjeka/quicktrade/internal/shared/errors"
)

// Document names used by the application.
const (
	APIKeys   = "api_keys.json"
	UserPrefs = "user_prefs.json"
)

var (
	ErrCorrupt     = apperrors.Persistence("document is not valid JSON")
	ErrInvalidName = apperrors.Validation("invalid document name")
)

// Dir is a configuration directory holding JSON documents.
type Dir struct {
	path string
}

// Open returns the directory at path, creating it if absent.
func Open(path string) (*Dir, error) {
	if path == "" {
		return nil, apperrors.Validation("configuration directory is required")
	}
	if err := os.MkdirAll(path, 0o700); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodePersistence, "failed to create configuration directory")
	}
	return &Dir{path: path}, nil
}

// Root returns the directory path.
func (d *Dir) Root() string {
	return d.path
}

// Path returns the full path of the named document.
func (d *Dir) Path(name string) string {
	return filepath.Join(d.path, name)
}

// Load decodes the named document into v. It reports found=false without
// error when the document does not exist or is empty. A document that is
// present but not valid JSON yields ErrCorrupt.
func (d *Dir) Load(name string, v any) (bool, error) {
	if err := validName(name); err != nil {
		return false, err
	}

	data, err := os.ReadFile(d.Path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.ErrCodePersistence, "failed to read "+name)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return false, nil
	}

	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrCorrupt, name, err)
	}

	return true, nil
}

// Save writes v as indented JSON. The data goes to a temporary file in the
// same directory which then replaces the document, so readers never observe
// a half-written file.
func (d *Dir) Save(name string, v any) error {
	if err := validName(name); err != nil {
		return err
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodePersistence, "failed to encode "+name)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(d.path, 0o700); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodePersistence, "failed to create configuration directory")
	}

	tmp, err := os.CreateTemp(d.path, "."+name+".tmp-*")
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodePersistence, "failed to save "+name)
	}
	tmpName := tmp.Name()

	if err := writeAndSync(tmp, data); err != nil {
		os.Remove(tmpName)
		return apperrors.Wrap(err, apperrors.ErrCodePersistence, "failed to save "+name)
	}

	if err := os.Rename(tmpName, d.Path(name)); err != nil {
		os.Remove(tmpName)
		return apperrors.Wrap(err, apperrors.ErrCodePersistence, "failed to save "+name)
	}

	return nil
}

func writeAndSync(f *os.File, data []byte) error {
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Chmod(0o600); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Remove deletes the named document. Removing a missing document is not an error.
func (d *Dir) Remove(name string) error {
	if err := validName(name); err != nil {
		return err
	}
	err := os.Remove(d.Path(name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperrors.Wrap(err, apperrors.ErrCodePersistence, "failed to remove "+name)
	}
	return nil
}

// ModTime returns the modification time and size of the named document.
// exists is false when the document is missing.
func (d *Dir) ModTime(name string) (mod time.Time, size int64, exists bool, err error) {
	if err := validName(name); err != nil {
		return time.Time{}, 0, false, err
	}
	info, err := os.Stat(d.Path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, 0, false, nil
	}
	if err != nil {
		return time.Time{}, 0, false, apperrors.Wrap(err, apperrors.ErrCodePersistence, "failed to stat "+name)
	}
	return info.ModTime(), info.Size(), true, nil
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
