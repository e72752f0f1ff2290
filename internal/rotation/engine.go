package rotation

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"storefront/backend/internal/domain"
	"storefront/backend/internal/store"
	"storefront/backend/internal/store/memory"
)

const (
	DefaultWindow = 2 * time.Hour
	PairSize      = 2
)

type Option func(*Engine)

func WithWindow(window time.Duration) Option {
	return func(e *Engine) {
		if window > 0 {
			e.window = window
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) {
		if rng != nil {
			e.rng = rng
		}
	}
}

func WithTickInterval(interval time.Duration) Option {
	return func(e *Engine) {
		if interval > 0 {
			e.tick = interval
		}
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.log = logger
		}
	}
}

// Engine keeps a pair of promotional codes stable for one window and redraws
// once the window has elapsed. It is safe for concurrent use.
type Engine struct {
	store   store.RotationStore
	catalog []domain.PromotionalCode
	byID    map[int]struct{}
	window  time.Duration
	tick    time.Duration
	now     func() time.Time
	log     logrus.FieldLogger

	mu      sync.Mutex
	rng     *rand.Rand
	current *domain.RotationState
}

func NewEngine(rotationStore store.RotationStore, catalog []domain.PromotionalCode, opts ...Option) *Engine {
	if rotationStore == nil {
		rotationStore = memory.New()
	}

	codes := make([]domain.PromotionalCode, len(catalog))
	copy(codes, catalog)
	byID := make(map[int]struct{}, len(codes))
	for _, code := range codes {
		byID[code.ID] = struct{}{}
	}

	e := &Engine{
		store:   rotationStore,
		catalog: codes,
		byID:    byID,
		window:  DefaultWindow,
		tick:    time.Second,
		now:     time.Now,
		log:     logrus.StandardLogger(),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Window() time.Duration {
	return e.window
}

// Current returns the active rotation, drawing and persisting a new pair when
// none is stored or the stored one has expired.
func (e *Engine) Current(ctx context.Context) domain.RotationState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return store.CloneState(e.currentLocked(ctx, e.now()))
}

// Snapshot is Current plus the countdown to the next draw.
func (e *Engine) Snapshot(ctx context.Context) domain.RotationSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()
	return e.snapshot(e.currentLocked(ctx, now), now)
}

// Peek reports the countdown for the state already held without touching the
// store. Before the first Current call it returns an empty snapshot.
func (e *Engine) Peek() domain.RotationSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return domain.RotationSnapshot{Codes: []domain.PromotionalCode{}, Countdown: FormatCountdown(0)}
	}
	return e.snapshot(*e.current, e.now())
}

// Run emits a snapshot every tick and redraws when the window elapses. Ticks
// never write to the store; only the expiry path does. Run returns when ctx is
// cancelled.
func (e *Engine) Run(ctx context.Context, onTick func(domain.RotationSnapshot)) error {
	snap := e.Snapshot(ctx)
	if onTick != nil {
		onTick(snap)
	}

	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()
	expiry := time.NewTimer(untilExpiry(snap.Remaining))
	defer expiry.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if onTick != nil {
				onTick(e.Peek())
			}
		case <-expiry.C:
			snap = e.Snapshot(ctx)
			expiry.Reset(untilExpiry(snap.Remaining))
			if onTick != nil {
				onTick(snap)
			}
		}
	}
}

func (e *Engine) snapshot(state domain.RotationState, now time.Time) domain.RotationSnapshot {
	remaining := Remaining(state, now, e.window)
	selectedAt := state.SelectedTime().UTC()
	return domain.RotationSnapshot{
		Codes:      store.CloneState(state).Codes,
		SelectedAt: selectedAt,
		ExpiresAt:  selectedAt.Add(e.window),
		Remaining:  remaining,
		Countdown:  FormatCountdown(remaining),
	}
}

func (e *Engine) currentLocked(ctx context.Context, now time.Time) domain.RotationState {
	if e.current != nil && e.fresh(*e.current, now) {
		return *e.current
	}

	// Another process may already have rotated; adopt its pair when current.
	if loaded := e.load(ctx, now); loaded != nil {
		e.current = loaded
		return *loaded
	}

	state := domain.RotationState{
		Codes:      e.draw(),
		SelectedAt: now.UnixMilli(),
	}
	e.current = &state
	if err := e.store.Save(ctx, store.CloneState(state)); err != nil {
		e.log.WithError(err).Warn("rotation save failed, keeping selection in memory")
	} else {
		e.log.WithFields(logrus.Fields{
			"codes":       codeList(state.Codes),
			"selected_at": state.SelectedTime().UTC().Format(time.RFC3339),
		}).Info("promotional rotation drawn")
	}
	return state
}

func (e *Engine) load(ctx context.Context, now time.Time) *domain.RotationState {
	state, ok, err := e.store.Load(ctx)
	if err != nil {
		e.log.WithError(err).Warn("rotation load failed, treating as absent")
		return nil
	}
	if !ok || state == nil {
		return nil
	}
	if !e.valid(*state, now) {
		return nil
	}
	cloned := store.CloneState(*state)
	return &cloned
}

func (e *Engine) fresh(state domain.RotationState, now time.Time) bool {
	elapsed := now.Sub(state.SelectedTime())
	return elapsed >= 0 && elapsed < e.window
}

func (e *Engine) valid(state domain.RotationState, now time.Time) bool {
	if state.SelectedAt <= 0 || !e.fresh(state, now) {
		return false
	}
	if len(state.Codes) != e.pairSize() {
		return false
	}
	seen := make(map[int]struct{}, len(state.Codes))
	for _, code := range state.Codes {
		if _, ok := e.byID[code.ID]; !ok {
			return false
		}
		if _, dup := seen[code.ID]; dup {
			return false
		}
		seen[code.ID] = struct{}{}
	}
	return true
}

func (e *Engine) pairSize() int {
	if len(e.catalog) < PairSize {
		return len(e.catalog)
	}
	return PairSize
}

// draw picks pairSize distinct codes uniformly at random.
func (e *Engine) draw() []domain.PromotionalCode {
	n := e.pairSize()
	picked := make([]domain.PromotionalCode, 0, n)
	for _, idx := range e.rng.Perm(len(e.catalog))[:n] {
		picked = append(picked, e.catalog[idx])
	}
	return picked
}

// Remaining is the time left in the window, never negative.
func Remaining(state domain.RotationState, now time.Time, window time.Duration) time.Duration {
	remaining := window - now.Sub(state.SelectedTime())
	if remaining < 0 {
		return 0
	}
	if remaining > window {
		return window
	}
	return remaining
}

// FormatCountdown renders d as zero-padded HH:MM:SS, dropping fractions of a
// second.
func FormatCountdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

func untilExpiry(remaining time.Duration) time.Duration {
	if remaining <= 0 {
		return time.Millisecond
	}
	return remaining
}

func codeList(codes []domain.PromotionalCode) []string {
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		out = append(out, code.Code)
	}
	return out
}
