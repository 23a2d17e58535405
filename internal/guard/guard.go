// Package guard keeps the per-device identity and the local submission cooldown.
package guard

import (
	"io"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"example.com/prayer/internal/domain"
)

// NoIdentity is returned when no durable store is attached.
const NoIdentity = "server-side"

// Keys used in the client state store.
const (
	KeyDeviceHash     = "device_hash"
	KeyLastSubmission = "last_submission"
)

// Store is the durable key-value scope the guard persists into.
type Store interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
}

// Option configures a Guard.
type Option func(*Guard)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

// WithLogger overrides where swallowed store errors are reported.
func WithLogger(logger *log.Logger) Option {
	return func(g *Guard) { g.logger = logger }
}

// Guard tracks the device identity and last accepted submission. It never returns errors:
// storage failures degrade to "no restriction".
type Guard struct {
	mu     sync.Mutex
	store  Store
	now    func() time.Time
	logger *log.Logger
}

// New constructs a Guard. A nil store yields the NoIdentity context.
func New(store Store, opts ...Option) *Guard {
	g := &Guard{
		store:  store,
		now:    time.Now,
		logger: log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// DeviceIdentity returns the persisted device token, creating one on first use.
func (g *Guard) DeviceIdentity() string {
	if g.store == nil {
		return NoIdentity
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	existing, ok, err := g.store.Get(KeyDeviceHash)
	if err == nil && ok && existing != "" {
		return existing
	}

	token, genErr := newToken()
	if genErr != nil {
		g.logger.Printf("generate device token: %v", genErr)
		return NoIdentity
	}
	if err != nil {
		g.logger.Printf("read device token: %v", err)
		return token
	}
	if err := g.store.Set(KeyDeviceHash, token); err != nil {
		g.logger.Printf("persist device token: %v", err)
	}
	return token
}

// RecordSubmission persists t as the last accepted submission.
func (g *Guard) RecordSubmission(t time.Time) {
	if g.store == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.store.Set(KeyLastSubmission, strconv.FormatInt(t.UnixMilli(), 10)); err != nil {
		g.logger.Printf("persist last submission: %v", err)
	}
}

// LastSubmission returns the recorded submission time, if any.
func (g *Guard) LastSubmission() (time.Time, bool) {
	if g.store == nil {
		return time.Time{}, false
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	raw, ok, err := g.store.Get(KeyLastSubmission)
	if err != nil || !ok {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// CooldownRemaining returns the whole seconds left before another submission is allowed.
func (g *Guard) CooldownRemaining(cooldown time.Duration) int {
	last, ok := g.LastSubmission()
	if !ok {
		return 0
	}
	elapsed := g.now().Sub(last)
	if elapsed < 0 {
		elapsed = 0
	}
	return domain.RemainingSeconds(cooldown, elapsed)
}

func newToken() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(id.String(), "-", ""), nil
}
