//go:build integration

package transcript

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	id := "itest_" + time.Now().Format("150405.000")

	require.NoError(t, store.Save(ctx, sampleSession(id, time.Now())))
	t.Cleanup(func() { _ = store.Delete(ctx, id) })

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	found := false
	for _, s := range loaded {
		if s.ID == id {
			found = true
			assert.Equal(t, "farmer", s.UserID)
		}
	}
	assert.True(t, found)

	require.NoError(t, store.Delete(ctx, id))
}

func TestRedisStoreIntegration(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	store, err := NewRedisStoreFromURL(url, time.Hour)
	require.NoError(t, err)
	defer store.Close()
	exerciseStore(t, store)
}

func TestSupabaseStoreIntegration(t *testing.T) {
	url, key := os.Getenv("SUPABASE_URL"), os.Getenv("SUPABASE_KEY")
	if url == "" || key == "" {
		t.Skip("SUPABASE_URL or SUPABASE_KEY not set")
	}
	store, err := NewSupabaseStore(url, key, os.Getenv("SUPABASE_TABLE"))
	require.NoError(t, err)
	exerciseStore(t, store)
}

func TestDynamoStoreIntegration(t *testing.T) {
	table := os.Getenv("TRANSCRIPT_TABLE")
	if table == "" {
		t.Skip("TRANSCRIPT_TABLE not set")
	}
	store, err := OpenStore(context.Background(), StoreConfig{Type: StoreDynamo, Table: table})
	require.NoError(t, err)
	exerciseStore(t, store)
}
