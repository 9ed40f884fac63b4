package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"saintplus-client/internal/shared/telemetry"
)

// Epoch identifies one session lifetime. Every Begin and every End starts a
// new epoch, so an End for an epoch that already ended is a no-op.
type Epoch uint64

// State is the single writer of the active session. Readers take snapshots.
type State struct {
	mu      sync.RWMutex
	current Session
	active  bool
	epoch   Epoch
	store   Store
	now     func() time.Time
}

// NewState returns an empty state persisting through store (nil keeps the
// session in memory only).
func NewState(store Store) *State {
	return &State{store: store, now: time.Now}
}

// Restore loads a persisted session. An expired token is discarded.
func (s *State) Restore(ctx context.Context) (bool, error) {
	if s.store == nil {
		return false, nil
	}
	loaded, err := s.store.Load(ctx)
	if errors.Is(err, ErrNoSession) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !loaded.Valid() {
		return false, nil
	}
	if loaded.Expired(s.now()) {
		telemetry.Info("session.restore.expired", map[string]any{"user_id": loaded.Principal.ID})
		return false, s.store.Clear(ctx)
	}

	s.mu.Lock()
	s.current = loaded
	s.active = true
	s.epoch++
	s.mu.Unlock()
	telemetry.Debug("session.restored", map[string]any{"user_id": loaded.Principal.ID})
	return true, nil
}

// Snapshot returns the active session and its epoch.
func (s *State) Snapshot() (Session, Epoch, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.epoch, s.active
}

// Begin installs a new session, replacing any previous one, and persists it.
func (s *State) Begin(ctx context.Context, next Session) (Epoch, error) {
	if next.CreatedAt.IsZero() {
		next.CreatedAt = s.now().UTC()
	}
	s.mu.Lock()
	s.current = next
	s.active = true
	s.epoch++
	epoch := s.epoch
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.Save(ctx, next); err != nil {
			return epoch, err
		}
	}
	return epoch, nil
}

// End destroys the session if epoch is still current. It reports whether
// this call performed the destruction.
func (s *State) End(ctx context.Context, epoch Epoch) (bool, error) {
	s.mu.Lock()
	if !s.active || s.epoch != epoch {
		s.mu.Unlock()
		return false, nil
	}
	s.current = Session{}
	s.active = false
	s.epoch++
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.Clear(ctx); err != nil {
			return true, err
		}
	}
	return true, nil
}

// EndCurrent destroys whatever session is active.
func (s *State) EndCurrent(ctx context.Context) (bool, error) {
	_, epoch, _ := s.Snapshot()
	ended, err := s.End(ctx, epoch)
	if !ended && err == nil && s.store != nil {
		// Nothing in memory; still drop anything persisted.
		return false, s.store.Clear(ctx)
	}
	return ended, err
}
