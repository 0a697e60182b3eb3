// ABOUTME: JSON-file session tier for readers that expect a plain token file
// ABOUTME: Written with 0600 permissions via a temp file and rename

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileTier stores keys in a single JSON object on disk.
type FileTier struct {
	mu   sync.Mutex
	path string
}

var _ Tier = (*FileTier)(nil)

// NewFileTier creates a tier at path, creating the parent directory.
func NewFileTier(path string) (*FileTier, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating session directory: %w", err)
	}
	return &FileTier{path: path}, nil
}

func (t *FileTier) Get(_ context.Context, key string) (string, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	values, err := t.load()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (t *FileTier) Put(_ context.Context, values map[string]string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	current, err := t.load()
	if err != nil {
		return err
	}
	for k, v := range values {
		current[k] = v
	}
	return t.save(current)
}

func (t *FileTier) Delete(_ context.Context, keys ...string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	current, err := t.load()
	if err != nil {
		return err
	}
	for _, k := range keys {
		delete(current, k)
	}
	if len(current) == 0 {
		if err := os.Remove(t.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing session file: %w", err)
		}
		return nil
	}
	return t.save(current)
}

func (t *FileTier) load() (map[string]string, error) {
	data, err := os.ReadFile(t.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading session file: %w", err)
	}

	values := map[string]string{}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parsing session file: %w", err)
	}
	return values, nil
}

func (t *FileTier) save(values map[string]string) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session file: %w", err)
	}

	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("writing session file: %w", err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		return fmt.Errorf("replacing session file: %w", err)
	}
	return nil
}
