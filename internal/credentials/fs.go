package credentials

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

type fsFile struct {
	Tokens map[string]string `json:"tokens"`
}

// FSStore persists tokens as a JSON file, by default under the XDG config
// directory. The file is written with 0600 permissions.
type FSStore struct {
	Path string

	mu sync.Mutex
}

func NewFSStore(path string) *FSStore {
	return &FSStore{Path: path}
}

func (f *FSStore) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := f.read()
	if err != nil {
		return "", false, &StorageError{Op: "get", Key: key, Err: err}
	}
	v, ok := file.Tokens[key]
	return v, ok, nil
}

func (f *FSStore) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := f.read()
	if err != nil {
		return &StorageError{Op: "set", Key: key, Err: err}
	}
	file.Tokens[key] = value
	if err := f.write(file); err != nil {
		return &StorageError{Op: "set", Key: key, Err: err}
	}
	return nil
}

func (f *FSStore) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := f.read()
	if err != nil {
		return &StorageError{Op: "remove", Key: key, Err: err}
	}
	if _, ok := file.Tokens[key]; !ok {
		return nil
	}
	delete(file.Tokens, key)
	if err := f.write(file); err != nil {
		return &StorageError{Op: "remove", Key: key, Err: err}
	}
	return nil
}

// read returns an empty file when none exists yet.
func (f *FSStore) read() (*fsFile, error) {
	file := &fsFile{Tokens: map[string]string{}}

	b, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return file, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}
	if len(b) == 0 {
		return file, nil
	}
	if err := json.Unmarshal(b, file); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}
	if file.Tokens == nil {
		file.Tokens = map[string]string{}
	}
	return file, nil
}

func (f *FSStore) write(file *fsFile) error {
	if err := EnsureParentDir(f.Path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.Path), ".credentials-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp credentials file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod temp credentials file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp credentials file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp credentials file: %w", err)
	}
	if err := os.Rename(tmpName, f.Path); err != nil {
		return fmt.Errorf("failed to replace credentials file: %w", err)
	}
	return nil
}
