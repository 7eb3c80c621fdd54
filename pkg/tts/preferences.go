package tts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Preferences persist the user's chosen voice per language.
type Preferences interface {
	Get(ctx context.Context, lang string) (string, error)
	Set(ctx context.Context, lang, voiceID string) error
	All(ctx context.Context) (map[string]string, error)
}

// MemoryPreferences keeps preferences for the life of the process.
type MemoryPreferences struct {
	mu    sync.RWMutex
	voice map[string]string
}

// NewMemoryPreferences creates an empty in-memory store.
func NewMemoryPreferences() *MemoryPreferences {
	return &MemoryPreferences{voice: make(map[string]string)}
}

// Get returns the voice for lang, or "" when unset.
func (m *MemoryPreferences) Get(_ context.Context, lang string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.voice[lang], nil
}

// Set stores voiceID for lang. An empty voiceID clears it.
func (m *MemoryPreferences) Set(_ context.Context, lang, voiceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if voiceID == "" {
		delete(m.voice, lang)
	} else {
		m.voice[lang] = voiceID
	}
	return nil
}

// All returns a copy of every preference.
func (m *MemoryPreferences) All(context.Context) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.voice))
	for k, v := range m.voice {
		out[k] = v
	}
	return out, nil
}

// FilePreferences is a MemoryPreferences mirrored to a JSON file.
type FilePreferences struct {
	*MemoryPreferences
	path string
	mu   sync.Mutex
}

// DefaultPreferencesFile is the file used under a data directory.
const DefaultPreferencesFile = "voice_preferences.json"

// NewFilePreferences loads preferences from path, creating the directory
// if needed. A missing file starts empty.
func NewFilePreferences(path string) (*FilePreferences, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("tts: create preferences dir: %w", err)
	}
	p := &FilePreferences{MemoryPreferences: NewMemoryPreferences(), path: path}
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return p, nil
	case err != nil:
		return nil, fmt.Errorf("tts: read preferences: %w", err)
	}
	if err := json.Unmarshal(raw, &p.voice); err != nil {
		return nil, fmt.Errorf("tts: parse preferences: %w", err)
	}
	if p.voice == nil {
		p.voice = make(map[string]string)
	}
	return p, nil
}

// Set stores the preference and rewrites the file.
func (p *FilePreferences) Set(ctx context.Context, lang, voiceID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.MemoryPreferences.Set(ctx, lang, voiceID); err != nil {
		return err
	}
	all, _ := p.MemoryPreferences.All(ctx)
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("tts: write preferences: %w", err)
	}
	return os.Rename(tmp, p.path)
}

const redisPreferencesKey = "tts:voice_preferences"

// RedisPreferences keeps preferences in a Redis hash keyed by language.
type RedisPreferences struct {
	client *redis.Client
	key    string
}

// NewRedisPreferences creates a store on client.
func NewRedisPreferences(client *redis.Client) *RedisPreferences {
	return &RedisPreferences{client: client, key: redisPreferencesKey}
}

// Get returns the voice for lang, or "" when unset.
func (r *RedisPreferences) Get(ctx context.Context, lang string) (string, error) {
	v, err := r.client.HGet(ctx, r.key, lang).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

// Set stores voiceID for lang. An empty voiceID clears it.
func (r *RedisPreferences) Set(ctx context.Context, lang, voiceID string) error {
	if voiceID == "" {
		return r.client.HDel(ctx, r.key, lang).Err()
	}
	return r.client.HSet(ctx, r.key, lang, voiceID).Err()
}

// All returns every preference.
func (r *RedisPreferences) All(ctx context.Context) (map[string]string, error) {
	return r.client.HGetAll(ctx, r.key).Result()
}

var (
	_ Preferences = (*MemoryPreferences)(nil)
	_ Preferences = (*FilePreferences)(nil)
	_ Preferences = (*RedisPreferences)(nil)
)
