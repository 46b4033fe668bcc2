// Package storage holds the small file persistence helpers used by the
// service: directory creation, gob and JSON snapshots, file sizes.
package storage

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	apperrors "github.com/dasmlab/polyglot/pkg/errors"
)

// Files performs persistence operations and logs them.
type Files struct {
	logger *logrus.Logger
}

// NewFiles creates a Files helper. A nil logger gets a default one.
func NewFiles(logger *logrus.Logger) *Files {
	if logger == nil {
		logger = logrus.New()
	}
	return &Files{logger: logger}
}

// SaveObject gob-encodes obj to path, creating parent directories.
func (f *Files) SaveObject(path string, obj any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return f.fail("storage.save_object", path, err)
	}
	file, err := os.Create(path)
	if err != nil {
		return f.fail("storage.save_object", path, err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(obj); err != nil {
		return f.fail("storage.save_object", path, fmt.Errorf("encode: %w", err))
	}
	f.logger.WithField("path", path).Info("Object saved")
	return nil
}

// LoadObject decodes a gob file written by SaveObject into obj (a pointer).
func (f *Files) LoadObject(path string, obj any) error {
	file, err := os.Open(path)
	if err != nil {
		return f.fail("storage.load_object", path, err)
	}
	defer file.Close()

	if err := gob.NewDecoder(file).Decode(obj); err != nil {
		return f.fail("storage.load_object", path, fmt.Errorf("decode: %w", err))
	}
	f.logger.WithField("path", path).Debug("Object loaded")
	return nil
}

// SaveJSON writes data as indented JSON, keeping non-ASCII characters as is.
func (f *Files) SaveJSON(path string, data any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return f.fail("storage.save_json", path, err)
	}
	file, err := os.Create(path)
	if err != nil {
		return f.fail("storage.save_json", path, err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		return f.fail("storage.save_json", path, fmt.Errorf("encode: %w", err))
	}
	f.logger.WithField("path", path).Info("JSON saved")
	return nil
}

// LoadJSON decodes the JSON file at path into data (a pointer).
func (f *Files) LoadJSON(path string, data any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return f.fail("storage.load_json", path, err)
	}
	if err := json.Unmarshal(b, data); err != nil {
		return f.fail("storage.load_json", path, fmt.Errorf("decode: %w", err))
	}
	f.logger.WithField("path", path).Debug("JSON loaded")
	return nil
}

// CreateDirectories creates every directory in dirs, parents included.
func (f *Files) CreateDirectories(dirs ...string) error {
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return f.fail("storage.create_directories", dir, err)
		}
		f.logger.WithField("dir", dir).Debug("Directory ready")
	}
	return nil
}

// FileSize returns the human readable size of the file at path (e.g. "1.5 KiB").
func (f *Files) FileSize(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", f.fail("storage.file_size", path, err)
	}
	return humanize.IBytes(uint64(info.Size())), nil
}

func (f *Files) fail(op, path string, err error) error {
	f.logger.WithError(err).WithField("path", path).Error("Storage operation failed")
	return apperrors.Wrap(op, err)
}
