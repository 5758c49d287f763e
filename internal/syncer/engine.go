// Package syncer polls a ledger source, merges new logs into an EventCache and
// fans consolidated snapshots out to subscribers.
package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"stakeScope/internal/cache"
	"stakeScope/internal/model"
)

// Defaults applied by New for zero Config fields.
const (
	MinPollInterval         = 500 * time.Millisecond
	DefaultPollInterval     = 4 * time.Second
	DefaultFailureThreshold = 3
	DefaultBypassEvery      = 5
	DefaultMaxBackoff       = 30 * time.Second
)

// Source is the read side of the ledger the engine polls.
type Source interface {
	Height(ctx context.Context) (uint64, error)
	Scalars(ctx context.Context) (map[string]string, error)
	Logs(ctx context.Context, kind model.EventKind, from, to uint64) ([]model.LogRecord, error)
}

// Callback receives every delivered snapshot. It runs on the poll goroutine.
type Callback func(model.SyncSnapshot)

// Config controls polling.
type Config struct {
	PollInterval      time.Duration
	MaxRecordsPerKind int
	FailureThreshold  int
	// BypassEvery forces a full fetch on every n-th poll even when the height
	// has not moved.
	BypassEvery int
	MaxBackoff  time.Duration
	// TickTimeout bounds the ledger calls of one poll. Zero means no bound.
	TickTimeout time.Duration
	Kinds       []model.EventKind
	RosterKinds []model.EventKind
	// Store, when set, receives the cache after every merge and seeds it on
	// Configure.
	Store cache.Store
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.PollInterval < MinPollInterval {
		c.PollInterval = MinPollInterval
	}
	if c.MaxRecordsPerKind <= 0 {
		c.MaxRecordsPerKind = cache.DefaultMaxRecordsPerKind
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = DefaultFailureThreshold
	}
	if c.BypassEvery <= 0 {
		c.BypassEvery = DefaultBypassEvery
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	if len(c.Kinds) == 0 {
		c.Kinds = model.AllKinds()
	}
	if c.RosterKinds == nil {
		c.RosterKinds = model.RosterKinds()
	}
	return c
}

type subscriber struct {
	id uuid.UUID
	fn Callback
	// fresh subscribers have not been sent anything yet.
	fresh bool
}

// Stats describes the engine for diagnostics.
type Stats struct {
	Endpoint            string      `json:"endpoint"`
	Contract            string      `json:"contract"`
	Active              bool        `json:"active"`
	Subscribers         int         `json:"subscribers"`
	PollIntervalMillis  int64       `json:"poll_interval_millis"`
	Generation          uint64      `json:"generation"`
	LastHeight          uint64      `json:"last_height"`
	ConsecutiveFailures int         `json:"consecutive_failures"`
	Ticks               uint64      `json:"ticks"`
	Fetches             uint64      `json:"fetches"`
	Throttled           uint64      `json:"throttled"`
	Unchanged           uint64      `json:"unchanged"`
	Notifications       uint64      `json:"notifications"`
	FailedTicks         uint64      `json:"failed_ticks"`
	Discarded           uint64      `json:"discarded"`
	Overlapped          uint64      `json:"overlapped"`
	Cache               cache.Stats `json:"cache"`
}

// Engine owns one EventCache and at most one poll loop.
type Engine struct {
	cfg    Config
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	cache       *cache.EventCache
	source      Source
	endpoint    string
	contract    string
	generation  uint64
	subscribers []subscriber
	interval    time.Duration
	stop        chan struct{}
	closed      bool
	busy        bool

	fingerprint string
	lastHeight  uint64
	haveHeight  bool
	force       bool
	retry       bool
	sinceFetch  int
	failures    int
	latest      *model.SyncSnapshot

	stats Stats

	// spawn runs the poll loop; tests replace it to observe activation.
	spawn func(stop <-chan struct{}, initial time.Duration)
}

// New builds an idle engine. Nothing is polled until Configure and Subscribe
// have both been called.
func New(cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:      cfg,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		cache:    cache.New(cfg.MaxRecordsPerKind),
		interval: cfg.PollInterval,
	}
	e.spawn = func(stop <-chan struct{}, initial time.Duration) {
		go e.run(stop, initial)
	}
	return e
}

// Configure points the engine at a contract on an endpoint. Repeating the
// current pair is a no-op. Any other pair drops the cache and all change
// detection state; results of a poll already in flight are discarded.
func (e *Engine) Configure(ctx context.Context, endpointID, contractAddress string, source Source) error {
	if source == nil {
		return fmt.Errorf("source is nil")
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return fmt.Errorf("engine is closed")
	}
	if e.source != nil && e.endpoint == endpointID && e.contract == contractAddress {
		e.mu.Unlock()
		return nil
	}

	e.generation++
	e.source = source
	e.endpoint = endpointID
	e.contract = contractAddress
	e.cache = cache.New(e.cfg.MaxRecordsPerKind)
	e.fingerprint = ""
	e.lastHeight = 0
	e.haveHeight = false
	e.force = false
	e.retry = false
	e.sinceFetch = 0
	e.failures = 0
	e.latest = nil
	c := e.cache
	gen := e.generation
	e.mu.Unlock()

	e.logger.Info("sync configured",
		zap.String("endpoint", endpointID),
		zap.String("contract", contractAddress),
		zap.Uint64("generation", gen),
	)

	if e.cfg.Store == nil {
		return nil
	}
	key := cache.MirrorKey(endpointID, contractAddress)
	mirror, ok, err := e.cfg.Store.Load(ctx, key)
	if err != nil {
		e.logger.Warn("load cache mirror failed", zap.String("key", key), zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.generation {
		return nil
	}
	restored := c.Import(mirror)
	e.logger.Info("cache warm start", zap.String("key", key), zap.Int("kinds", restored))
	return nil
}

// Subscribe registers fn and starts polling if it is the first subscriber.
// The returned function deregisters fn and stops polling once nobody is
// left. A new subscriber is sent the latest snapshot on the next poll;
// existing subscribers are not notified again.
func (e *Engine) Subscribe(fn Callback) func() {
	if fn == nil {
		return func() {}
	}

	id := uuid.New()
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return func() {}
	}
	e.subscribers = append(e.subscribers, subscriber{id: id, fn: fn, fresh: true})
	if len(e.subscribers) == 1 {
		e.startLocked(0)
	}
	count := len(e.subscribers)
	e.mu.Unlock()

	e.logger.Debug("subscriber added", zap.String("id", id.String()), zap.Int("subscribers", count))

	var once sync.Once
	return func() {
		once.Do(func() { e.unsubscribe(id) })
	}
}

func (e *Engine) unsubscribe(id uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, sub := range e.subscribers {
		if sub.id == id {
			e.subscribers = append(e.subscribers[:i:i], e.subscribers[i+1:]...)
			break
		}
	}
	if len(e.subscribers) == 0 {
		e.stopLocked()
	}
	e.logger.Debug("subscriber removed", zap.String("id", id.String()), zap.Int("subscribers", len(e.subscribers)))
}

// ForceRefresh makes the next poll fetch and notify even if nothing changed.
func (e *Engine) ForceRefresh() {
	e.mu.Lock()
	e.fingerprint = ""
	e.force = true
	e.mu.Unlock()
}

// ResetCache drops every cached kind so the next poll backfills from block 0.
// A poll already in flight is discarded.
func (e *Engine) ResetCache() {
	e.mu.Lock()
	e.generation++
	e.cache.ClearAll()
	e.fingerprint = ""
	e.force = true
	e.mu.Unlock()
}

// SetPollInterval changes the base interval, clamped to MinPollInterval. A
// running loop is restarted with the new period.
func (e *Engine) SetPollInterval(d time.Duration) time.Duration {
	if d < MinPollInterval {
		d = MinPollInterval
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.interval = d
	if e.stop != nil {
		e.stopLocked()
		e.startLocked(d)
	}
	return d
}

// PollInterval returns the current base interval.
func (e *Engine) PollInterval() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.interval
}

// Latest returns the most recently delivered snapshot.
func (e *Engine) Latest() (model.SyncSnapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.latest == nil {
		return model.SyncSnapshot{}, false
	}
	return *e.latest, true
}

// Stats returns engine counters and cache statistics.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.stats
	out.Endpoint = e.endpoint
	out.Contract = e.contract
	out.Active = e.stop != nil
	out.Subscribers = len(e.subscribers)
	out.PollIntervalMillis = e.interval.Milliseconds()
	out.Generation = e.generation
	out.LastHeight = e.lastHeight
	out.ConsecutiveFailures = e.failures
	out.Cache = e.cache.Stats()
	return out
}

// Close stops polling, drops subscribers and cancels any poll in flight.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.subscribers = nil
	e.stopLocked()
	e.mu.Unlock()
	e.cancel()
}

func (e *Engine) startLocked(initial time.Duration) {
	if e.stop != nil {
		return
	}
	stop := make(chan struct{})
	e.stop = stop
	e.spawn(stop, initial)
	e.logger.Info("poll loop started", zap.Duration("interval", e.interval))
}

func (e *Engine) stopLocked() {
	if e.stop == nil {
		return
	}
	close(e.stop)
	e.stop = nil
	e.logger.Info("poll loop stopped")
}

// run ticks until stop is closed. The next tick is armed only after the
// previous one returned, so ticks of one loop never overlap.
func (e *Engine) run(stop <-chan struct{}, initial time.Duration) {
	delay := initial
	for {
		if !sleep(e.ctx, stop, delay) {
			return
		}
		if err := e.tick(e.ctx); err != nil {
			e.logger.Warn("poll failed", zap.Error(err))
		}
		delay = e.nextDelay()
	}
}

// recipientsLocked copies the subscriber list for delivery and marks every
// subscriber as served.
func (e *Engine) recipientsLocked() []subscriber {
	subs := make([]subscriber, len(e.subscribers))
	copy(subs, e.subscribers)
	for i := range e.subscribers {
		e.subscribers[i].fresh = false
	}
	return subs
}

// greetLocked returns the subscribers still waiting for their first snapshot
// together with the snapshot to send them. Without a latest snapshot they
// simply get the next delivery.
func (e *Engine) greetLocked() ([]subscriber, model.SyncSnapshot) {
	var subs []subscriber
	for i := range e.subscribers {
		if !e.subscribers[i].fresh {
			continue
		}
		e.subscribers[i].fresh = false
		if e.latest != nil {
			subs = append(subs, e.subscribers[i])
		}
	}
	if len(subs) == 0 {
		return nil, model.SyncSnapshot{}
	}
	return subs, *e.latest
}

func (e *Engine) nextDelay() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return backoffDelay(e.interval, e.failures, e.cfg.MaxBackoff)
}
