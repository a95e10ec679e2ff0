package draft

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

const DefaultAutosaveDelay = 10 * time.Second

// Autosaver coalesces partial answers and writes them through the Manager
// once input has been quiet for delay. A failed write is retried on the
// next tick; saves are at-least-once, never concurrent with step saves.
type Autosaver struct {
	m       *Manager
	delay   time.Duration
	timeout time.Duration
	log     *zap.Logger

	// saveMu is held from taking pending until its write lands, so Flush
	// waits out an in-flight timer write. Taken before mu.
	saveMu sync.Mutex
	// taken runs between taking pending and writing it; tests only.
	taken func()

	mu      sync.Mutex
	pending *Patch
	timer   *time.Timer
	gen     uint64
	running int
	closed  bool
	wg      sync.WaitGroup
}

func NewAutosaver(m *Manager, delay time.Duration, log *zap.Logger) *Autosaver {
	if delay <= 0 {
		delay = DefaultAutosaveDelay
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Autosaver{m: m, delay: delay, timeout: 5 * time.Second, log: log}
}

// Queue records a partial answer and restarts the debounce timer. An empty
// patch changes nothing and leaves the timer alone.
func (a *Autosaver) Queue(p Patch) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || p.Empty() {
		return
	}
	a.pending = mergePending(a.pending, p)
	a.cancelLocked()
	a.scheduleLocked()
}

// Pending reports whether answers are waiting to be written.
func (a *Autosaver) Pending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending != nil || a.timer != nil || a.running > 0
}

// Flush writes queued answers now and waits for a timer write already in
// flight. Step saves call it first so that the explicit answer is the last write.
func (a *Autosaver) Flush(ctx context.Context) error {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	a.mu.Lock()
	p := a.pending
	a.pending = nil
	a.cancelLocked()
	a.mu.Unlock()

	return a.save(ctx, p)
}

// Discard drops queued answers, e.g. before the draft is cleared.
func (a *Autosaver) Discard() {
	a.mu.Lock()
	a.pending = nil
	a.cancelLocked()
	a.mu.Unlock()
}

// Close stops the timer, waits for an in-flight write and flushes what is left.
func (a *Autosaver) Close(ctx context.Context) error {
	a.mu.Lock()
	a.closed = true
	a.cancelLocked()
	a.mu.Unlock()

	a.wg.Wait()

	a.saveMu.Lock()
	defer a.saveMu.Unlock()
	a.mu.Lock()
	p := a.pending
	a.pending = nil
	a.mu.Unlock()
	return a.save(ctx, p)
}

func (a *Autosaver) fire(gen uint64) {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	a.mu.Lock()
	if gen == a.gen {
		a.timer = nil
	}
	p := a.pending
	a.pending = nil
	a.running++
	a.mu.Unlock()

	if a.taken != nil {
		a.taken()
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	err := a.save(ctx, p)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.running--

	switch {
	case err == nil:
		return
	case errors.Is(err, ErrNoDraft), errors.Is(err, ErrFlowComplete), errors.Is(err, ErrValidation):
		a.log.Debug("autosave dropped", zap.Error(err))
		return
	}

	a.log.Warn("autosave failed, will retry", zap.Error(err))
	if a.closed {
		return
	}
	// a merge that reached the manager is retried by Flush; one that did
	// not goes back in the queue under any newer answers
	if p != nil && !errors.Is(err, ErrNotPersisted) {
		older := *p
		if a.pending != nil {
			older = older.Merge(*a.pending)
		}
		a.pending = &older
	}
	if a.timer == nil {
		a.scheduleLocked()
	}
}

func (a *Autosaver) save(ctx context.Context, p *Patch) error {
	if p == nil {
		return a.m.Flush(ctx)
	}
	_, err := a.m.SaveStep(ctx, *p)
	return err
}

func (a *Autosaver) scheduleLocked() {
	a.gen++
	gen := a.gen
	a.wg.Add(1)
	a.timer = time.AfterFunc(a.delay, func() {
		defer a.wg.Done()
		a.fire(gen)
	})
}

func (a *Autosaver) cancelLocked() {
	if a.timer != nil && a.timer.Stop() {
		a.wg.Done()
	}
	a.timer = nil
}

func mergePending(cur *Patch, p Patch) *Patch {
	if cur == nil {
		return &p
	}
	merged := cur.Merge(p)
	return &merged
}
