package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/supabase-community/supabase-go"
)

// DefaultSupabaseTable is the table used by SupabaseStore.
const DefaultSupabaseTable = "transcripts"

// supabaseRow is the table layout. The full session lives in data.
type supabaseRow struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	StartTime time.Time       `json:"start_time"`
	EndTime   *time.Time      `json:"end_time"`
	Data      json.RawMessage `json:"data"`
}

func toRow(s *Session) (supabaseRow, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return supabaseRow{}, err
	}
	return supabaseRow{ID: s.ID, UserID: s.UserID, StartTime: s.StartTime, EndTime: s.EndTime, Data: raw}, nil
}

func fromRow(r supabaseRow) (*Session, error) {
	var s Session
	if err := json.Unmarshal(r.Data, &s); err != nil {
		return nil, fmt.Errorf("transcript: decode row %s: %w", r.ID, err)
	}
	return &s, nil
}

// SupabaseStore archives sessions in a Postgres table through Supabase's
// REST interface.
type SupabaseStore struct {
	client *supabase.Client
	table  string
}

// NewSupabaseStore connects to the project at url using key.
func NewSupabaseStore(url, key, table string) (*SupabaseStore, error) {
	if url == "" || key == "" {
		return nil, fmt.Errorf("%w: supabase url and key are required", ErrInvalidConfig)
	}
	if table == "" {
		table = DefaultSupabaseTable
	}
	client, err := supabase.NewClient(url, key, nil)
	if err != nil {
		return nil, fmt.Errorf("transcript: create supabase client: %w", err)
	}
	return &SupabaseStore{client: client, table: table}, nil
}

// Load implements Store.
func (s *SupabaseStore) Load(context.Context) ([]*Session, error) {
	var rows []supabaseRow
	_, err := s.client.From(s.table).
		Select("*", "", false).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("transcript: select sessions: %w", err)
	}
	out := make([]*Session, 0, len(rows))
	for _, r := range rows {
		sess, err := fromRow(r)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, nil
}

// Save implements Store.
func (s *SupabaseStore) Save(_ context.Context, sess *Session) error {
	row, err := toRow(sess)
	if err != nil {
		return err
	}
	_, _, err = s.client.From(s.table).
		Upsert(row, "id", "minimal", "").
		Execute()
	if err != nil {
		return fmt.Errorf("transcript: upsert session: %w", err)
	}
	return nil
}

// Delete implements Store.
func (s *SupabaseStore) Delete(_ context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, _, err := s.client.From(s.table).
		Delete("minimal", "").
		In("id", ids).
		Execute()
	if err != nil {
		return fmt.Errorf("transcript: delete sessions: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SupabaseStore) Close() error { return nil }

var _ Store = (*SupabaseStore)(nil)
