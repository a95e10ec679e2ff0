package draft

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"brewlog/internal/kv"

	"go.uber.org/zap"
)

// Session pairs a user's draft manager with its autosaver.
type Session struct {
	*Manager
	Autosave *Autosaver
}

// Registry hands out one Session per user so that every writer of a
// user's draft goes through the same Manager.
type Registry struct {
	store         kv.Store
	opts          Options
	autosaveDelay time.Duration

	mu       sync.Mutex
	sessions map[uint64]*Session
}

func NewRegistry(store kv.Store, autosaveDelay time.Duration, opts Options) *Registry {
	return &Registry{
		store:         store,
		opts:          opts.withDefaults(),
		autosaveDelay: autosaveDelay,
		sessions:      map[uint64]*Session{},
	}
}

func DraftKey(userID uint64) string { return fmt.Sprintf("tasting_draft:%d", userID) }
func MetaKey(userID uint64) string  { return fmt.Sprintf("tasting_draft_meta:%d", userID) }

func (r *Registry) For(userID uint64) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[userID]; ok {
		return s
	}
	opts := r.opts
	opts.Logger = r.opts.Logger.With(zap.Uint64("user_id", userID))
	m := NewManager(r.store, DraftKey(userID), MetaKey(userID), opts)
	s := &Session{Manager: m, Autosave: NewAutosaver(m, r.autosaveDelay, opts.Logger)}
	r.sessions[userID] = s
	return s
}

// Release stops the user's autosaver and forgets the session once the draft
// is cleared. The next For call starts from the store again.
func (r *Registry) Release(ctx context.Context, userID uint64) error {
	r.mu.Lock()
	s, ok := r.sessions[userID]
	delete(r.sessions, userID)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	if err := s.Autosave.Close(ctx); err != nil && !errors.Is(err, ErrNoDraft) {
		return err
	}
	return nil
}

// Close flushes and stops every autosaver.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		if err := s.Autosave.Close(ctx); err != nil && !errors.Is(err, ErrNoDraft) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
