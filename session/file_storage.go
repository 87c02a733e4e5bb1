package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

var errCorruptFile = errors.New("corrupt session file")

// FileStorage keeps the session keys in a single JSON object on disk. Writes go to a
// temporary file that is renamed over the target, so readers never see a torn file.
type FileStorage struct {
	mu   sync.Mutex
	path string
}

// NewFileStorage prepares a storage at path, creating the parent directory.
func NewFileStorage(path string) (*FileStorage, error) {
	if path == "" {
		return nil, errors.New("session: file storage path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return &FileStorage{path: path}, nil
}

// Path returns the backing file.
func (f *FileStorage) Path() string {
	return f.path
}

// Load implements [Storage]. A missing file is an empty session.
func (f *FileStorage) Load(_ context.Context, keys ...string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	all, err := f.read()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := all[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

// Save implements [Storage]. The file is removed once it holds no keys. A file that
// does not parse is replaced rather than merged into.
func (f *FileStorage) Save(_ context.Context, set map[string]string, del ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	all, err := f.read()
	if errors.Is(err, errCorruptFile) {
		all, err = make(map[string]string), nil
	}
	if err != nil {
		return err
	}
	for k, v := range set {
		all[k] = v
	}
	for _, k := range del {
		delete(all, k)
	}

	if len(all) == 0 {
		if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		return nil
	}
	return f.write(all)
}

func (f *FileStorage) read() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	out := make(map[string]string)
	if len(data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %w: %v", ErrStorageUnavailable, errCorruptFile, err)
	}
	return out, nil
}

func (f *FileStorage) write(all map[string]string) error {
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}
