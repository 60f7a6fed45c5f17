// Package store provides portal.TokenStore implementations.
//
// Only the raw session token is ever persisted; identity fields are derived
// from it on load.
package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	portal "github.com/chimerakang/portal-go"
	json "github.com/goccy/go-json"
)

// ErrCorrupt is returned by File when the backing file is not valid JSON.
var ErrCorrupt = errors.New("portal/store: corrupt token file")

// Memory keeps the token in process memory.
type Memory struct {
	mu    sync.RWMutex
	token string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory { return &Memory{} }

// Load returns the stored token, or "" when none is set.
func (m *Memory) Load(_ context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, nil
}

// Save replaces the stored token.
func (m *Memory) Save(_ context.Context, token string) error {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	return nil
}

// Clear removes the stored token.
func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()
	return nil
}

// File persists the token as a JSON object in a single file.
//
// The file holds a map so that other keys written by a front end survive; the
// token lives under Key (portal.DefaultTokenKey unless set).
type File struct {
	path string
	key  string
	mu   sync.Mutex
}

// FileOption configures a File store.
type FileOption func(*File)

// WithKey sets the JSON key the token is stored under.
func WithKey(key string) FileOption {
	return func(f *File) {
		if key != "" {
			f.key = key
		}
	}
}

// NewFile returns a store backed by path. The file is created on first Save.
func NewFile(path string, opts ...FileOption) *File {
	f := &File{path: path, key: portal.DefaultTokenKey}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Path returns the backing file path.
func (f *File) Path() string { return f.path }

// Load returns the stored token. A missing file or key yields ("", nil).
func (f *File) Load(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	m, err := f.read()
	if err != nil {
		return "", err
	}
	tok, _ := m[f.key].(string)
	return tok, nil
}

// Save writes token under the configured key.
func (f *File) Save(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	m, err := f.read()
	if err != nil {
		return err
	}
	m[f.key] = token
	return f.write(m)
}

// Clear removes the token key. Other keys are kept. A corrupt file is
// replaced by an empty one.
func (f *File) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	m, err := f.read()
	if errors.Is(err, ErrCorrupt) {
		return f.write(map[string]any{})
	}
	if err != nil {
		return err
	}
	if _, ok := m[f.key]; !ok {
		return nil
	}
	delete(m, f.key)
	return f.write(m)
}

func (f *File) read() (map[string]any, error) {
	b, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("portal/store: read %s: %w", f.path, err)
	}
	m := map[string]any{}
	if len(b) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, f.path, err)
	}
	return m, nil
}

func (f *File) write(m map[string]any) error {
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("portal/store: encode: %w", err)
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("portal/store: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".token-*")
	if err != nil {
		return fmt.Errorf("portal/store: create temp: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("portal/store: chmod: %w", err)
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("portal/store: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("portal/store: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("portal/store: rename: %w", err)
	}
	return nil
}

var (
	_ portal.TokenStore = (*Memory)(nil)
	_ portal.TokenStore = (*File)(nil)
)
