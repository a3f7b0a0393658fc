// Copyright 2025 SirSeer, LLC
//
// Licensed under the Business Source License 1.1 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://mariadb.com/bsl11
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	porterrors "github.com/sirseerhq/flagport/internal/errors"
)

// Extension is appended to every document name.
const Extension = ".json"

const (
	dirMode  os.FileMode = 0o755
	fileMode os.FileMode = 0o644
)

// FileStore reads and writes JSON documents on the local filesystem.
type FileStore struct {
	indent string
}

// NewFileStore creates a FileStore that indents documents with two spaces.
func NewFileStore() *FileStore {
	return &FileStore{indent: "  "}
}

// EnsureDir creates dir and its parents if needed.
func (s *FileStore) EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// WriteDocument stores value as <dir>/<name>.json, replacing any previous
// document of that name. A []byte or json.RawMessage value must hold JSON
// and is re-indented; anything else is marshaled.
func (s *FileStore) WriteDocument(dir, name string, value any) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}

	data, err := s.encode(value)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s: %w", name, err)
	}

	if err := s.EnsureDir(dir); err != nil {
		return "", err
	}

	path := filepath.Join(dir, name+Extension)
	if err := WriteFileAtomic(path, data, fileMode); err != nil {
		return "", err
	}
	return path, nil
}

// ReadDocument returns the raw bytes of <dir>/<name>.json. The content must
// be valid JSON.
func (s *FileStore) ReadDocument(dir, name string) ([]byte, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, name+Extension)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%s is not valid JSON: %w", path, porterrors.ErrInvalidDocument)
	}
	return data, nil
}

// ListFiles returns the names (with extension) of the JSON documents
// directly inside dir, sorted. Subdirectories and leftover temporary files
// are skipped.
func (s *FileStore) ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), Extension) || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// WriteRaw atomically replaces <dir>/<file> with data exactly as given.
func (s *FileStore) WriteRaw(dir, file string, data []byte) error {
	if err := validateName(strings.TrimSuffix(file, Extension)); err != nil {
		return err
	}
	return WriteFileAtomic(filepath.Join(dir, file), data, fileMode)
}

func (s *FileStore) encode(value any) ([]byte, error) {
	var buf bytes.Buffer
	switch v := value.(type) {
	case []byte:
		if err := json.Indent(&buf, v, "", s.indent); err != nil {
			return nil, fmt.Errorf("%w: %w", porterrors.ErrInvalidDocument, err)
		}
	case json.RawMessage:
		if err := json.Indent(&buf, v, "", s.indent); err != nil {
			return nil, fmt.Errorf("%w: %w", porterrors.ErrInvalidDocument, err)
		}
	default:
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", s.indent)
		if err := enc.Encode(v); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// validateName rejects names that would escape the target directory.
func validateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("invalid document name %q", name)
	}
	return nil
}

// WriteFileAtomic writes data to a temporary file next to path, syncs it,
// and renames it over path. On failure path is left untouched.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	tempFile := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to write temp file for %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to sync temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to close temp file for %s: %w", path, err)
	}
	if err := os.Chmod(tempFile, perm); err != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to set permissions on %s: %w", path, err)
	}

	if err := os.Rename(tempFile, path); err != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to rename temp file to %s: %w", path, err)
	}
	return nil
}
