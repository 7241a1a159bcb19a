package ical

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	appLog "sacal/internal/log"
)

// ErrPermission wraps filesystem permission failures on the output file so
// the pipeline can report them as their own error kind.
var ErrPermission = errors.New("permission denied writing calendar")

// Writer persists generated calendars. SimulatePermission forces a
// permission failure for the error-path tests.
type Writer struct {
	SimulatePermission bool
}

// WriteIfChanged compares data against the current file content and only
// rewrites the file when it differs, atomically (temp file + rename in the
// target directory). It returns whether the file changed on disk.
func (w *Writer) WriteIfChanged(path string, data []byte) (bool, error) {
	if w.SimulatePermission {
		return false, fmt.Errorf("%s: simulated: %w", path, ErrPermission)
	}

	existing, err := os.ReadFile(path)
	if err == nil && bytes.Equal(existing, data) {
		appLog.Info("calendar unchanged, skipping write", "path", path)
		return false, nil
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		if errors.Is(err, fs.ErrPermission) {
			return false, fmt.Errorf("%s: %w", path, ErrPermission)
		}
		return false, fmt.Errorf("reading existing %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".sacal-cal-*.tmp")
	if err != nil {
		return false, classifyWriteErr(path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return false, classifyWriteErr(path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return false, classifyWriteErr(path, err)
	}
	if err := tmp.Close(); err != nil {
		return false, classifyWriteErr(path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return false, classifyWriteErr(path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return false, classifyWriteErr(path, err)
	}

	appLog.Info("calendar written", "path", path, "bytes", len(data))
	return true, nil
}

func classifyWriteErr(path string, err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%s: %v: %w", path, err, ErrPermission)
	}
	return fmt.Errorf("writing %s: %w", path, err)
}
