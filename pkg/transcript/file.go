package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// FileStore persists every session in a single JSON file. Writes go to a
// temp file that is renamed into place.
type FileStore struct {
	path     string
	sessions map[string]*Session
	mu       sync.Mutex
}

type fileData struct {
	Version       int        `json:"version"`
	UpdatedAt     string     `json:"updated_at"`
	Conversations []*Session `json:"conversations"`
}

const fileVersion = 1

// DefaultFileName is the file used under a data directory.
const DefaultFileName = "transcripts.json"

// NewFileStore opens or creates the store at path.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	fs := &FileStore{path: path, sessions: make(map[string]*Session)}
	if _, err := os.Stat(path); err == nil {
		if err := fs.read(); err != nil {
			return nil, fmt.Errorf("failed to load store: %w", err)
		}
	}
	return fs, nil
}

// NewDefaultFileStore opens the store at <dir>/transcripts.json.
func NewDefaultFileStore(dir string) (*FileStore, error) {
	return NewFileStore(filepath.Join(dir, DefaultFileName))
}

func (f *FileStore) read() error {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	var data fileData
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}
	for _, s := range data.Conversations {
		f.sessions[s.ID] = s
	}
	return nil
}

func (f *FileStore) write() error {
	list := make([]*Session, 0, len(f.sessions))
	for _, s := range f.sessions {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].StartTime.Before(list[j].StartTime) })

	raw, err := json.MarshalIndent(fileData{
		Version:       fileVersion,
		UpdatedAt:     time.Now().Format(time.RFC3339),
		Conversations: list,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Load implements Store.
func (f *FileStore) Load(context.Context) ([]*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Session, 0, len(f.sessions))
	for _, s := range f.sessions {
		out = append(out, s.clone())
	}
	return out, nil
}

// Save implements Store.
func (f *FileStore) Save(_ context.Context, s *Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.ID] = s.clone()
	return f.write()
}

// Delete implements Store.
func (f *FileStore) Delete(_ context.Context, ids ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		delete(f.sessions, id)
	}
	return f.write()
}

// Path returns the backing file path.
func (f *FileStore) Path() string { return f.path }

// Close implements Store.
func (f *FileStore) Close() error { return nil }

var _ Store = (*FileStore)(nil)
