package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"brewlog/internal/kv"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultTTL = 24 * time.Hour

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

type Options struct {
	// TTL is how long after the last save a draft can still be resumed.
	TTL    time.Duration
	Clock  Clock
	Logger *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.Clock == nil {
		o.Clock = SystemClock{}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Manager owns exactly one draft, stored under a draft key and a metadata
// key. Every read-merge-write cycle runs under one mutex, so the explicit
// step saves and the autosaver never interleave.
type Manager struct {
	store    kv.Store
	draftKey string
	metaKey  string
	opts     Options
	log      *zap.Logger

	mu sync.Mutex
	// cached is the latest merged draft, including merges whose durable
	// write failed. nil means "ask the store".
	cached   *Draft
	dirty    bool
	failures int
}

func NewManager(store kv.Store, draftKey, metaKey string, opts Options) *Manager {
	opts = opts.withDefaults()
	return &Manager{
		store:    store,
		draftKey: draftKey,
		metaKey:  metaKey,
		opts:     opts,
		log:      opts.Logger.With(zap.String("draft_key", draftKey)),
	}
}

// Start begins a new session, replacing any existing draft.
func (m *Manager) Start(ctx context.Context, mode Mode) (Draft, error) {
	if _, err := ParseMode(string(mode)); err != nil {
		return Draft{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.opts.Clock.Now()
	d := Draft{
		ID:          uuid.NewString(),
		Mode:        mode,
		CurrentStep: StepCoffeeInfo,
		StartedAt:   now,
		LastSavedAt: now,
	}
	m.failures = 0
	return d, m.commitLocked(ctx, d)
}

// Load returns the draft to resume. A draft idle for longer than the TTL is
// cleared and reported as ErrDraftExpired.
func (m *Manager) Load(ctx context.Context) (Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLocked(ctx)
}

// SaveStep merges a partial payload into the draft and persists it.
// When the durable write fails the merged draft is still returned, along
// with an error wrapping ErrNotPersisted; the in-memory flow continues.
func (m *Manager) SaveStep(ctx context.Context, p Patch) (Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, err := m.loadLocked(ctx)
	if err != nil {
		return Draft{}, err
	}
	if d.CurrentStep == StepResult {
		return d, ErrFlowComplete
	}
	if err := p.validate(d.Mode); err != nil {
		return d, err
	}

	d = d.apply(p)
	d.LastSavedAt = m.opts.Clock.Now()
	return d, m.commitLocked(ctx, d)
}

// Next saves the patch and moves to the following step. Required steps
// must be answered; optional ones left empty are recorded as skipped.
func (m *Manager) Next(ctx context.Context, p Patch) (Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, err := m.loadLocked(ctx)
	if err != nil {
		return Draft{}, err
	}
	if err := p.validate(d.Mode); err != nil {
		return d, err
	}

	step := d.CurrentStep
	to, ok := next(d.Mode, step)
	if !ok {
		return d, ErrFlowComplete
	}

	merged := d.apply(p)
	if step.hasPayload() && !merged.Populated(step) {
		if !step.Optional() {
			return d, fmt.Errorf("%w: step %s requires an answer", ErrValidation, step)
		}
		if !merged.skipped(step) {
			merged.Skipped = append(merged.Skipped, step)
		}
	}
	if to == StepResult {
		if err := merged.checkRequired(StepResult); err != nil {
			return d, err
		}
	}

	merged.CurrentStep = to
	merged.LastSavedAt = m.opts.Clock.Now()
	return merged, m.commitLocked(ctx, merged)
}

// Back returns to the previous step. Answers are kept.
func (m *Manager) Back(ctx context.Context) (Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, err := m.loadLocked(ctx)
	if err != nil {
		return Draft{}, err
	}
	to, ok := prev(d.Mode, d.CurrentStep)
	if !ok {
		return d, nil
	}
	d.CurrentStep = to
	d.LastSavedAt = m.opts.Clock.Now()
	return d, m.commitLocked(ctx, d)
}

// Finish moves the draft to Result once every required step is answered.
// Optional steps still open are recorded as skipped. Calling Finish on a
// finished draft returns it unchanged.
func (m *Manager) Finish(ctx context.Context) (Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, err := m.loadLocked(ctx)
	if err != nil {
		return Draft{}, err
	}
	if d.CurrentStep == StepResult {
		return d, nil
	}
	if err := d.checkRequired(StepResult); err != nil {
		return d, err
	}
	for _, s := range dataSteps(d.Mode) {
		if s.Optional() && !d.Populated(s) && !d.skipped(s) {
			d.Skipped = append(d.Skipped, s)
		}
	}
	d.CurrentStep = StepResult
	d.LastSavedAt = m.opts.Clock.Now()
	return d, m.commitLocked(ctx, d)
}

// Clear deletes all persisted draft state.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clearLocked(ctx)
}

// Flush retries the durable write of a draft whose last save failed.
func (m *Manager) Flush(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.dirty || m.cached == nil {
		return nil
	}
	return m.commitLocked(ctx, *m.cached)
}

// Metadata summarizes the resumable draft, reading the metadata key first
// and falling back to projecting the draft itself.
func (m *Manager) Metadata(ctx context.Context) (Metadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cached == nil {
		if md, ok := m.readMetaLocked(ctx); ok {
			if m.expired(md.LastSavedAt) {
				return Metadata{}, m.expireLocked(ctx)
			}
			return md, nil
		}
	}

	d, err := m.loadLocked(ctx)
	if err != nil {
		return Metadata{}, err
	}
	return m.metadataLocked(d), nil
}

// MetadataFor projects d with this manager's TTL and failure count, for a
// draft just returned by one of the operations above.
func (m *Manager) MetadataFor(d Draft) Metadata {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metadataLocked(d)
}

func (m *Manager) metadataLocked(d Draft) Metadata {
	md := d.Metadata()
	md.ExpiresAt = d.LastSavedAt.Add(m.opts.TTL)
	md.SaveFailures = m.failures
	return md
}

func (m *Manager) loadLocked(ctx context.Context) (Draft, error) {
	if m.cached != nil {
		if m.expired(m.cached.LastSavedAt) {
			return Draft{}, m.expireLocked(ctx)
		}
		return *m.cached, nil
	}

	b, err := m.store.Get(ctx, m.draftKey)
	if errors.Is(err, kv.ErrNotFound) {
		return Draft{}, ErrNoDraft
	}
	if err != nil {
		return Draft{}, fmt.Errorf("load draft: %w", err)
	}

	var d Draft
	if err := json.Unmarshal(b, &d); err != nil || d.ID == "" {
		// unreadable drafts cannot be resumed
		m.log.Warn("discarding unreadable draft", zap.Error(err))
		_ = m.clearLocked(ctx)
		return Draft{}, ErrNoDraft
	}
	if m.expired(d.LastSavedAt) {
		return Draft{}, m.expireLocked(ctx)
	}

	m.cached = &d
	return d, nil
}

func (m *Manager) readMetaLocked(ctx context.Context) (Metadata, bool) {
	b, err := m.store.Get(ctx, m.metaKey)
	if err != nil {
		return Metadata{}, false
	}
	var md Metadata
	if err := json.Unmarshal(b, &md); err != nil || md.DraftID == "" {
		return Metadata{}, false
	}
	return md, true
}

func (m *Manager) expired(lastSaved time.Time) bool {
	return m.opts.Clock.Now().Sub(lastSaved) > m.opts.TTL
}

func (m *Manager) expireLocked(ctx context.Context) error {
	m.log.Info("draft expired, discarding", zap.Duration("ttl", m.opts.TTL))
	if err := m.clearLocked(ctx); err != nil {
		return err
	}
	return ErrDraftExpired
}

// commitLocked makes d the current draft and writes both keys.
func (m *Manager) commitLocked(ctx context.Context, d Draft) error {
	m.cached = &d
	m.dirty = true

	if err := m.writeLocked(ctx, d); err != nil {
		m.failures++
		m.log.Warn("draft save failed, continuing in memory",
			zap.Int("consecutive_failures", m.failures),
			zap.String("step", string(d.CurrentStep)),
			zap.Error(err))
		return fmt.Errorf("%w: %w", ErrNotPersisted, err)
	}

	m.dirty = false
	m.failures = 0
	return nil
}

func (m *Manager) writeLocked(ctx context.Context, d Draft) error {
	db, err := json.Marshal(d)
	if err != nil {
		return err
	}
	md := d.Metadata()
	md.ExpiresAt = d.LastSavedAt.Add(m.opts.TTL)
	mb, err := json.Marshal(md)
	if err != nil {
		return err
	}

	if err := m.store.Set(ctx, m.draftKey, db); err != nil {
		return err
	}
	return m.store.Set(ctx, m.metaKey, mb)
}

func (m *Manager) clearLocked(ctx context.Context) error {
	m.cached = nil
	m.dirty = false
	m.failures = 0

	var errs []error
	if err := m.store.Remove(ctx, m.draftKey); err != nil {
		errs = append(errs, err)
	}
	if err := m.store.Remove(ctx, m.metaKey); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		m.log.Warn("draft clear failed", zap.Error(err))
		return fmt.Errorf("clear draft: %w", err)
	}
	return nil
}
