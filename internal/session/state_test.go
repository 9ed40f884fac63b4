package session

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeginEndAdvancesEpoch(t *testing.T) {
	ctx := context.Background()
	st := NewState(NewMemoryStore())

	_, _, ok := st.Snapshot()
	assert.False(t, ok, "absence of a session is valid")

	epoch, err := st.Begin(ctx, Session{Token: "t1", Principal: Principal{ID: "1", DisplayName: "Kim"}})
	require.NoError(t, err)

	cur, got, ok := st.Snapshot()
	require.True(t, ok)
	assert.Equal(t, epoch, got)
	assert.Equal(t, "t1", cur.Token)
	assert.False(t, cur.CreatedAt.IsZero())

	ended, err := st.End(ctx, epoch)
	require.NoError(t, err)
	assert.True(t, ended)

	ended, err = st.End(ctx, epoch)
	require.NoError(t, err)
	assert.False(t, ended, "a second end for the same epoch is a no-op")
}

func TestEndForStaleEpochKeepsNewSession(t *testing.T) {
	ctx := context.Background()
	st := NewState(nil)

	old, _ := st.Begin(ctx, Session{Token: "old"})
	_, _ = st.Begin(ctx, Session{Token: "new"})

	ended, err := st.End(ctx, old)
	require.NoError(t, err)
	assert.False(t, ended)

	cur, _, ok := st.Snapshot()
	require.True(t, ok)
	assert.Equal(t, "new", cur.Token)
}

func TestConcurrentEndsDestroyOnce(t *testing.T) {
	ctx := context.Background()
	st := NewState(NewMemoryStore())
	epoch, _ := st.Begin(ctx, Session{Token: "t"})

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := st.End(ctx, epoch); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestRestoreFromFileAndDiscardExpired(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "s", "session.json")
	store := NewFileStore(path)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(ctx, Session{Token: "live", ExpiresAt: now.Add(time.Hour)}))
	st := NewState(store)
	st.now = func() time.Time { return now }
	restored, err := st.Restore(ctx)
	require.NoError(t, err)
	assert.True(t, restored)

	require.NoError(t, store.Save(ctx, Session{Token: "stale", ExpiresAt: now.Add(-time.Minute)}))
	st = NewState(store)
	st.now = func() time.Time { return now }
	restored, err = st.Restore(ctx)
	require.NoError(t, err)
	assert.False(t, restored)

	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, ErrNoSession, "expired session removed from disk")
}

func TestEndCurrentClearsPersistedSession(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, store.Save(ctx, Session{Token: "persisted"}))

	st := NewState(store)
	ended, err := st.EndCurrent(ctx)
	require.NoError(t, err)
	assert.False(t, ended)

	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, ErrNoSession)
}
