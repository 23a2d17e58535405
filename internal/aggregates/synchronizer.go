package aggregates

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"sync"
	"time"

	"example.com/prayer/internal/catalog"
	"example.com/prayer/internal/domain"
	"example.com/prayer/internal/events"
	"example.com/prayer/internal/guard"
)

// User-facing messages.
const (
	MsgLoadFailed         = "Failed to load prayer data"
	MsgSubmitFailed       = "Failed to submit prayer. Please try again."
	MsgSubmitInProgress   = "A submission is already in progress"
	MsgNoIdentity         = "No device identity available"
	DefaultDemoDelay      = 300 * time.Millisecond
	DefaultReconnectDelay = 3 * time.Second
)

// CooldownMessage is shown while the device must wait.
func CooldownMessage(seconds int) string {
	return fmt.Sprintf("Please wait %d seconds", seconds)
}

// Total pairs an activity type with its current total.
type Total struct {
	catalog.ActivityType
	Total int64
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithLogger overrides the logger used for swallowed backend failures.
func WithLogger(logger *log.Logger) Option {
	return func(s *Synchronizer) { s.logger = logger }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) { s.now = now }
}

// WithCooldown overrides the per-device cooldown.
func WithCooldown(d time.Duration) Option {
	return func(s *Synchronizer) { s.cooldown = d }
}

// WithDemoDelay sets the simulated latency of unconfigured submissions.
func WithDemoDelay(d time.Duration) Option {
	return func(s *Synchronizer) { s.demoDelay = d }
}

// WithReconnectDelay sets the pause before resubscribing after the stream drops.
func WithReconnectDelay(d time.Duration) Option {
	return func(s *Synchronizer) { s.reconnectDelay = d }
}

// Synchronizer holds the locally displayed totals. Optimistic deltas are applied on accepted
// submissions and replaced wholesale by the next authoritative load.
type Synchronizer struct {
	backend        Backend
	guard          *guard.Guard
	logger         *log.Logger
	now            func() time.Time
	cooldown       time.Duration
	demoDelay      time.Duration
	reconnectDelay time.Duration

	mu         sync.Mutex
	totals     map[int]int64
	loadSeq    uint64 // loads started
	appliedSeq uint64 // newest load whose result is displayed
	loaded     bool
	loadErr    string
	lastErr    string
	submitting bool
	closed     bool
	listeners  []func()
}

// New constructs a Synchronizer. A nil backend runs in demo mode. With a backend, g needs a store:
// without one there is no device identity and submissions are refused with MsgNoIdentity.
func New(backend Backend, g *guard.Guard, opts ...Option) *Synchronizer {
	if g == nil {
		g = guard.New(nil)
	}
	s := &Synchronizer{
		backend:        backend,
		guard:          g,
		logger:         log.New(os.Stderr, "[sync] ", log.LstdFlags),
		now:            time.Now,
		cooldown:       catalog.DefaultCooldownSeconds * time.Second,
		demoDelay:      DefaultDemoDelay,
		reconnectDelay: DefaultReconnectDelay,
		totals:         make(map[int]int64, catalog.Len()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Configured reports whether a backend was supplied.
func (s *Synchronizer) Configured() bool { return s.backend != nil }

// Load fetches authoritative totals and replaces the local ones. It never fails: backend errors
// fall back to demo data and set LoadError. A load that finishes after a newer one has been
// applied is discarded.
func (s *Synchronizer) Load(ctx context.Context) map[int]int64 {
	var (
		totals  map[int]int64
		loadErr string
	)
	s.mu.Lock()
	s.loadSeq++
	seq := s.loadSeq
	s.mu.Unlock()

	if s.backend == nil {
		totals = demoTotals()
	} else {
		aggs, err := s.backend.SelectAggregates(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			return s.snapshot()
		case err != nil:
			s.logger.Printf("load aggregates: %v", err)
			totals, loadErr = demoTotals(), MsgLoadFailed
		default:
			totals = domain.MergeTotals(aggs)
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return copyTotals(totals)
	}
	if seq < s.appliedSeq {
		current := copyTotals(s.totals)
		s.mu.Unlock()
		return current
	}
	s.appliedSeq = seq
	s.totals = totals
	s.loaded = true
	s.loadErr = loadErr
	s.mu.Unlock()

	s.changed()
	return copyTotals(totals)
}

// ApplyOptimisticDelta adds value to the local total of id until the next load.
func (s *Synchronizer) ApplyOptimisticDelta(id int, value int64) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.totals[id] += value
	s.mu.Unlock()
	s.changed()
}

// Submit records one prayer act for this device. It returns false, with LastError set, when the
// device is cooling down, another submission is in flight or the backend rejects the write.
func (s *Synchronizer) Submit(ctx context.Context, id int, value int64) bool {
	s.mu.Lock()
	if s.submitting {
		s.lastErr = MsgSubmitInProgress
		s.mu.Unlock()
		s.changed()
		return false
	}
	if remaining := s.guard.CooldownRemaining(s.cooldown); remaining > 0 {
		s.lastErr = CooldownMessage(remaining)
		s.mu.Unlock()
		s.changed()
		return false
	}
	s.submitting = true
	s.lastErr = ""
	s.mu.Unlock()
	s.changed()

	msg := s.dispatch(ctx, id, value)

	s.mu.Lock()
	s.submitting = false
	s.lastErr = msg
	s.mu.Unlock()
	s.changed()
	return msg == ""
}

// dispatch performs the write and returns the failure message, or "" on acceptance.
func (s *Synchronizer) dispatch(ctx context.Context, id int, value int64) string {
	if s.backend == nil {
		mark := s.loadMark()
		timer := time.NewTimer(s.demoDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return MsgSubmitFailed
		case <-timer.C:
		}
		s.accept(id, value, mark)
		return ""
	}

	device := s.guard.DeviceIdentity()
	if device == guard.NoIdentity {
		return MsgNoIdentity
	}
	recent, err := s.backend.SelectRecentEntries(ctx, device, 1)
	if err != nil {
		s.logger.Printf("check recent entries: %v", err)
		return MsgSubmitFailed
	}
	if len(recent) > 0 {
		if remaining := domain.RemainingSeconds(s.cooldown, s.now().Sub(recent[0].CreatedAt)); remaining > 0 {
			return CooldownMessage(remaining)
		}
	}

	mark := s.loadMark()
	err = s.backend.InsertEntry(ctx, domain.NewEntry{ActivityTypeID: id, Value: value, DeviceHash: device})
	if err != nil {
		s.logger.Printf("insert entry: %v", err)
		var cooldown *domain.CooldownError
		if errors.As(err, &cooldown) && cooldown.Remaining > 0 {
			return CooldownMessage(cooldown.Remaining)
		}
		return MsgSubmitFailed
	}
	s.accept(id, value, mark)
	return ""
}

// loadMark returns the sequence of the newest load started so far.
func (s *Synchronizer) loadMark() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadSeq
}

// accept records the cooldown and applies the optimistic delta, unless a load started after mark
// has already been applied. That load may have counted the write, and the insert notification
// that follows every commit reloads again.
func (s *Synchronizer) accept(id int, value int64, mark uint64) {
	s.guard.RecordSubmission(s.now())
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.appliedSeq <= mark {
		s.totals[id] += value
	}
	s.mu.Unlock()
	s.changed()
}

// Watch reloads totals on every insert notification until ctx ends, resubscribing after
// ReconnectDelay when the stream drops. Without a backend it returns immediately.
func (s *Synchronizer) Watch(ctx context.Context) error {
	if s.backend == nil {
		return nil
	}
	reconnecting := false
	for {
		stream, err := s.backend.SubscribeInserts(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Printf("subscribe to inserts: %v", err)
		} else {
			if reconnecting {
				// Events may have been missed while disconnected.
				s.Load(ctx)
			}
			for range stream {
				drain(stream)
				s.Load(ctx)
			}
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Printf("insert stream closed, reconnecting in %s", s.reconnectDelay)
		}
		reconnecting = true

		timer := time.NewTimer(s.reconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// drain discards queued notifications so a burst costs one reload.
func drain(ch <-chan events.EntryCreated) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

// Totals returns every catalog entry with its current total, in display order.
func (s *Synchronizer) Totals() []Total {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := catalog.All()
	out := make([]Total, 0, len(all))
	for _, at := range all {
		out = append(out, Total{ActivityType: at, Total: s.totals[at.ID]})
	}
	return out
}

// Summary derives the headline statistics from the current totals.
func (s *Synchronizer) Summary() domain.Summary {
	return domain.Summarize(s.snapshot())
}

// Loaded reports whether at least one load has completed.
func (s *Synchronizer) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// OnChange registers fn to be called after every state change.
func (s *Synchronizer) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.listeners = append(s.listeners, fn)
	}
}

// Close detaches listeners. Writes already dispatched finish without touching local totals.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.listeners = nil
}

// LastError returns the message of the last failed submission, if any.
func (s *Synchronizer) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// LoadError returns the message of the last failed load, if any.
func (s *Synchronizer) LoadError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadErr
}

// ClearError dismisses the submission error.
func (s *Synchronizer) ClearError() {
	s.mu.Lock()
	s.lastErr = ""
	s.mu.Unlock()
	s.changed()
}

// IsSubmitting reports whether a submission is in flight.
func (s *Synchronizer) IsSubmitting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitting
}

// CooldownRemaining returns the seconds left before this device may submit again.
func (s *Synchronizer) CooldownRemaining() int {
	return s.guard.CooldownRemaining(s.cooldown)
}

// DeviceIdentity exposes the identity submissions are made under.
func (s *Synchronizer) DeviceIdentity() string {
	return s.guard.DeviceIdentity()
}

func (s *Synchronizer) snapshot() map[int]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyTotals(s.totals)
}

func (s *Synchronizer) changed() {
	s.mu.Lock()
	listeners := append([]func(){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

func demoTotals() map[int]int64 {
	totals := make(map[int]int64, catalog.Len())
	for _, at := range catalog.All() {
		totals[at.ID] = int64(rand.IntN(100) + 10)
	}
	return totals
}

func copyTotals(in map[int]int64) map[int]int64 {
	out := make(map[int]int64, catalog.Len())
	for _, at := range catalog.All() {
		out[at.ID] = 0
	}
	for id, v := range in {
		out[id] = v
	}
	return out
}
