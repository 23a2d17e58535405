package aggregates_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/prayer/internal/aggregates"
	"example.com/prayer/internal/catalog"
	"example.com/prayer/internal/domain"
	"example.com/prayer/internal/events"
	"example.com/prayer/internal/guard"
	"example.com/prayer/internal/notify"
	"example.com/prayer/internal/persistence/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// serviceBackend serves the client contract straight from a domain.Service.
type serviceBackend struct {
	svc *domain.Service
	hub *notify.Hub

	inserts   atomic.Int32
	aggErr    error
	insertErr error
	gate      chan struct{}
}

func (b *serviceBackend) SelectAggregates(ctx context.Context) ([]domain.Aggregate, error) {
	if b.aggErr != nil {
		return nil, b.aggErr
	}
	return b.svc.Aggregates(ctx)
}

func (b *serviceBackend) SelectRecentEntries(ctx context.Context, device string, limit int) ([]domain.RecentEntry, error) {
	return b.svc.RecentByDevice(ctx, device, limit)
}

func (b *serviceBackend) InsertEntry(ctx context.Context, entry domain.NewEntry) error {
	if b.gate != nil {
		<-b.gate
	}
	b.inserts.Add(1)
	if b.insertErr != nil {
		return b.insertErr
	}
	_, err := b.svc.RecordEntry(ctx, entry)
	return err
}

func (b *serviceBackend) SubscribeInserts(ctx context.Context) (<-chan events.EntryCreated, error) {
	return b.hub.Subscribe(ctx, 16), nil
}

type fixture struct {
	clock   *fakeClock
	backend *serviceBackend
	guard   *guard.Guard
	sync    *aggregates.Synchronizer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	hub := notify.NewHub()
	svc := domain.NewService(memory.NewRepository(),
		domain.WithClock(clock.Now),
		domain.WithNotifier(hub),
		domain.WithCooldown(5*time.Second),
	)
	backend := &serviceBackend{svc: svc, hub: hub}
	g := guard.New(guard.NewMemoryStore(), guard.WithClock(clock.Now))
	s := aggregates.New(backend, g,
		aggregates.WithClock(clock.Now),
		aggregates.WithCooldown(5*time.Second),
		aggregates.WithReconnectDelay(10*time.Millisecond),
		aggregates.WithLogger(discardLogger()),
	)
	return &fixture{clock: clock, backend: backend, guard: g, sync: s}
}

func totalOf(s *aggregates.Synchronizer, id int) int64 {
	for _, t := range s.Totals() {
		if t.ID == id {
			return t.Total
		}
	}
	return -1
}

func TestSubmitAppliesDeltaUntilAuthoritativeLoad(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	totals := f.sync.Load(ctx)
	assert.Len(t, totals, catalog.Len())
	assert.True(t, f.sync.Loaded())

	require.True(t, f.sync.Submit(ctx, 3, 30))
	assert.EqualValues(t, 30, totalOf(f.sync, 3))
	assert.Equal(t, 5, f.sync.CooldownRemaining())
	assert.Empty(t, f.sync.LastError())

	f.sync.ApplyOptimisticDelta(3, 100)
	assert.EqualValues(t, 130, totalOf(f.sync, 3))

	f.sync.Load(ctx)
	assert.EqualValues(t, 30, totalOf(f.sync, 3), "authoritative totals replace optimistic ones")
}

func TestCooldownScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.sync.Load(ctx)

	require.True(t, f.sync.Submit(ctx, 1, 1))
	assert.EqualValues(t, 1, totalOf(f.sync, 1))

	f.clock.Advance(2 * time.Second)
	assert.False(t, f.sync.Submit(ctx, 2, 1))
	assert.Equal(t, "Please wait 3 seconds", f.sync.LastError())
	assert.EqualValues(t, 1, f.backend.inserts.Load(), "no write while cooling down")
	assert.EqualValues(t, 0, totalOf(f.sync, 2))

	f.clock.Advance(4 * time.Second)
	assert.True(t, f.sync.Submit(ctx, 2, 1))
	assert.EqualValues(t, 1, totalOf(f.sync, 2))
	assert.Empty(t, f.sync.LastError())
	assert.EqualValues(t, 2, f.backend.inserts.Load())
}

func TestServerCooldownRejection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.sync.Load(ctx)
	f.backend.insertErr = &domain.CooldownError{Remaining: 4}

	assert.Equal(t, 0, f.sync.CooldownRemaining())
	assert.False(t, f.sync.Submit(ctx, 1, 1))
	assert.Equal(t, "Please wait 4 seconds", f.sync.LastError())
	assert.EqualValues(t, 0, totalOf(f.sync, 1))
	assert.Equal(t, 0, f.sync.CooldownRemaining(), "rejected writes do not start the local cooldown")
}

func TestServerSideDoubleCheckSkipsInsert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.backend.svc.RecordEntry(ctx, domain.NewEntry{
		ActivityTypeID: 2, Value: 1, DeviceHash: f.guard.DeviceIdentity(),
	})
	require.NoError(t, err)
	f.clock.Advance(1500 * time.Millisecond)

	assert.False(t, f.sync.Submit(ctx, 2, 1))
	assert.Equal(t, "Please wait 4 seconds", f.sync.LastError())
	assert.EqualValues(t, 0, f.backend.inserts.Load())
}

func TestGenericFailureMessage(t *testing.T) {
	f := newFixture(t)
	f.backend.insertErr = errors.New("connection reset")

	assert.False(t, f.sync.Submit(context.Background(), 5, 1))
	assert.Equal(t, aggregates.MsgSubmitFailed, f.sync.LastError())

	f.sync.ClearError()
	assert.Empty(t, f.sync.LastError())
}

func TestSubmitRefusedWhileInFlight(t *testing.T) {
	f := newFixture(t)
	f.backend.gate = make(chan struct{})
	ctx := context.Background()

	done := make(chan bool)
	go func() { done <- f.sync.Submit(ctx, 1, 1) }()
	require.Eventually(t, f.sync.IsSubmitting, time.Second, 5*time.Millisecond)

	assert.False(t, f.sync.Submit(ctx, 6, 1))
	assert.Equal(t, aggregates.MsgSubmitInProgress, f.sync.LastError())

	close(f.backend.gate)
	assert.True(t, <-done)
	assert.False(t, f.sync.IsSubmitting())
	assert.EqualValues(t, 1, f.backend.inserts.Load())
}

func TestCloseDropsLateDelta(t *testing.T) {
	f := newFixture(t)
	f.backend.gate = make(chan struct{})
	ctx := context.Background()
	f.sync.Load(ctx)

	var calls atomic.Int32
	f.sync.OnChange(func() { calls.Add(1) })

	done := make(chan bool)
	go func() { done <- f.sync.Submit(ctx, 1, 1) }()
	require.Eventually(t, f.sync.IsSubmitting, time.Second, 5*time.Millisecond)

	f.sync.Close()
	seen := calls.Load()
	close(f.backend.gate)

	assert.True(t, <-done, "the dispatched write still completes")
	assert.EqualValues(t, 0, totalOf(f.sync, 1))
	assert.Equal(t, seen, calls.Load())
}

func TestPushNotificationReloads(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.sync.Load(ctx)
	f.sync.ApplyOptimisticDelta(7, 50)

	watchDone := make(chan error, 1)
	go func() { watchDone <- f.sync.Watch(ctx) }()
	require.Eventually(t, func() bool { return f.backend.hub.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	_, err := f.backend.svc.RecordEntry(ctx, domain.NewEntry{ActivityTypeID: 7, Value: 1, DeviceHash: "another-device"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return totalOf(f.sync, 7) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-watchDone:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watch did not stop")
	}
}

type flakyStream struct {
	serviceBackend
	subscribes atomic.Int32
}

func (b *flakyStream) SubscribeInserts(ctx context.Context) (<-chan events.EntryCreated, error) {
	n := b.subscribes.Add(1)
	if n == 1 {
		return nil, errors.New("stream unavailable")
	}
	ch := make(chan events.EntryCreated)
	close(ch)
	return ch, nil
}

func TestWatchReconnects(t *testing.T) {
	f := newFixture(t)
	backend := &flakyStream{serviceBackend: serviceBackend{svc: f.backend.svc, hub: f.backend.hub}}
	s := aggregates.New(backend, f.guard,
		aggregates.WithReconnectDelay(5*time.Millisecond),
		aggregates.WithLogger(discardLogger()),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Watch(ctx)

	require.Eventually(t, func() bool { return backend.subscribes.Load() >= 3 }, time.Second, 5*time.Millisecond)
	assert.True(t, s.Loaded(), "reconnects reload missed changes")
}

func TestLoadFailureFallsBackToDemoData(t *testing.T) {
	f := newFixture(t)
	f.backend.aggErr = errors.New("boom")

	totals := f.sync.Load(context.Background())
	assert.Len(t, totals, catalog.Len())
	for _, at := range catalog.All() {
		assert.GreaterOrEqual(t, totals[at.ID], int64(10))
		assert.LessOrEqual(t, totals[at.ID], int64(109))
	}
	assert.Equal(t, aggregates.MsgLoadFailed, f.sync.LoadError())

	f.backend.aggErr = nil
	f.sync.Load(context.Background())
	assert.Empty(t, f.sync.LoadError())
}

func TestUnconfiguredMode(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	g := guard.New(guard.NewMemoryStore(), guard.WithClock(clock.Now))
	s := aggregates.New(nil, g, aggregates.WithClock(clock.Now), aggregates.WithDemoDelay(time.Millisecond))
	ctx := context.Background()

	assert.False(t, s.Configured())
	totals := s.Load(ctx)
	require.Len(t, totals, catalog.Len())
	for _, at := range catalog.All() {
		assert.GreaterOrEqual(t, totals[at.ID], int64(10))
		assert.LessOrEqual(t, totals[at.ID], int64(109))
	}
	assert.Empty(t, s.LoadError())

	before := totalOf(s, 4)
	require.True(t, s.Submit(ctx, 4, 15))
	assert.Equal(t, before+15, totalOf(s, 4))
	assert.False(t, s.Submit(ctx, 4, 15))
	assert.Equal(t, "Please wait 5 seconds", s.LastError())

	assert.NoError(t, s.Watch(ctx))
}

func TestTotalsFollowDisplayOrderAndSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.sync.Load(ctx)
	f.sync.ApplyOptimisticDelta(3, 61)
	f.sync.ApplyOptimisticDelta(1, 2)

	totals := f.sync.Totals()
	require.Len(t, totals, catalog.Len())
	for i := 1; i < len(totals); i++ {
		assert.Less(t, totals[i-1].DisplayOrder, totals[i].DisplayOrder)
	}

	summary := f.sync.Summary()
	assert.EqualValues(t, 5, summary.TotalPrayers)
	assert.EqualValues(t, 61, summary.TotalMinutes)
	assert.Equal(t, 2, summary.ActiveTypes)
}

// slowReplyBackend commits the insert but delays the reply, so the insert notification reaches
// Watch before Submit returns.
type slowReplyBackend struct {
	*serviceBackend
	delay time.Duration
}

func (b *slowReplyBackend) InsertEntry(ctx context.Context, entry domain.NewEntry) error {
	err := b.serviceBackend.InsertEntry(ctx, entry)
	time.Sleep(b.delay)
	return err
}

func TestOwnInsertNotificationIsNotCountedTwice(t *testing.T) {
	f := newFixture(t)
	backend := &slowReplyBackend{serviceBackend: f.backend, delay: 100 * time.Millisecond}
	s := aggregates.New(backend, f.guard,
		aggregates.WithClock(f.clock.Now),
		aggregates.WithCooldown(5*time.Second),
		aggregates.WithLogger(discardLogger()),
	)
	ctx, cancel := context.WithCancel(context.Background())
	s.Load(ctx)

	watchDone := make(chan error, 1)
	go func() { watchDone <- s.Watch(ctx) }()
	require.Eventually(t, func() bool { return f.backend.hub.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	require.True(t, s.Submit(ctx, 1, 1))
	assert.EqualValues(t, 1, totalOf(s, 1))
	assert.Equal(t, 5, s.CooldownRemaining(), "the cooldown is recorded even when the delta is skipped")

	cancel()
	require.NoError(t, <-watchDone)
	assert.EqualValues(t, 1, totalOf(s, 1))
}

func TestDeltaAppliedWhenNoReloadRaced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.sync.Load(ctx)
	f.sync.Load(ctx)

	require.True(t, f.sync.Submit(ctx, 2, 1))
	assert.EqualValues(t, 1, totalOf(f.sync, 2))
}

// staleFirstBackend holds the first aggregate read after fetching it, so a later load finishes
// first.
type staleFirstBackend struct {
	*serviceBackend
	calls   atomic.Int32
	fetched chan struct{}
	release chan struct{}
}

func (b *staleFirstBackend) SelectAggregates(ctx context.Context) ([]domain.Aggregate, error) {
	aggs, err := b.serviceBackend.SelectAggregates(ctx)
	if b.calls.Add(1) == 1 {
		close(b.fetched)
		<-b.release
	}
	return aggs, err
}

func TestOverlappingLoadsKeepNewestResult(t *testing.T) {
	f := newFixture(t)
	backend := &staleFirstBackend{
		serviceBackend: f.backend,
		fetched:        make(chan struct{}),
		release:        make(chan struct{}),
	}
	s := aggregates.New(backend, f.guard, aggregates.WithLogger(discardLogger()))
	ctx := context.Background()

	staleDone := make(chan map[int]int64, 1)
	go func() { staleDone <- s.Load(ctx) }()
	<-backend.fetched

	_, err := f.backend.svc.RecordEntry(ctx, domain.NewEntry{ActivityTypeID: 2, Value: 1, DeviceHash: "another-device"})
	require.NoError(t, err)
	fresh := s.Load(ctx)
	assert.EqualValues(t, 1, fresh[2])

	close(backend.release)
	stale := <-staleDone
	assert.EqualValues(t, 1, stale[2], "a superseded load reports the displayed totals")
	assert.EqualValues(t, 1, totalOf(s, 2))
}

func TestSubmitWithoutDeviceIdentity(t *testing.T) {
	f := newFixture(t)
	s := aggregates.New(f.backend, guard.New(nil), aggregates.WithLogger(discardLogger()))

	assert.False(t, s.Submit(context.Background(), 1, 1))
	assert.Equal(t, aggregates.MsgNoIdentity, s.LastError())
	assert.Zero(t, f.backend.inserts.Load())
}
