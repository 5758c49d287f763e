package syncer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"stakeScope/internal/cache"
	"stakeScope/internal/model"
)

type fetchPlan struct {
	kind     model.EventKind
	from     uint64
	to       uint64
	backfill bool
	// current is set when the watermark already equals the height; the kind
	// is appended with no records.
	current bool
	records []model.LogRecord
}

// tick is one poll. A tick that finds another one still running returns
// immediately.
func (e *Engine) tick(parent context.Context) error {
	e.mu.Lock()
	if e.closed || e.source == nil {
		e.mu.Unlock()
		return nil
	}
	if e.busy {
		e.stats.Overlapped++
		e.mu.Unlock()
		return nil
	}
	e.busy = true
	e.stats.Ticks++
	gen := e.generation
	source := e.source
	c := e.cache
	newcomers, latest := e.greetLocked()
	e.mu.Unlock()
	defer e.release()

	e.deliver(newcomers, latest)

	ctx := parent
	if e.cfg.TickTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, e.cfg.TickTimeout)
		defer cancel()
	}

	height, err := source.Height(ctx)
	if err != nil {
		return e.fail(gen, fmt.Errorf("height: %w", err))
	}

	fetch, forced := e.admit(gen, height)
	if !fetch {
		return nil
	}

	plans := planFetch(c, e.cfg.Kinds, height)
	scalars, err := fetchAll(ctx, source, plans)
	if err != nil {
		e.restoreForce(gen, forced)
		return e.fail(gen, err)
	}
	return e.publish(ctx, gen, height, scalars, plans)
}

func (e *Engine) release() {
	e.mu.Lock()
	e.busy = false
	e.mu.Unlock()
}

// admit applies the height throttle. A poll after a failure always fetches.
// It reports whether this poll fetches and whether a forced refresh was
// consumed to get there.
func (e *Engine) admit(gen, height uint64) (bool, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.generation || e.closed {
		e.stats.Discarded++
		return false, false
	}

	advanced := !e.haveHeight || height != e.lastHeight
	bypass := e.sinceFetch+1 >= e.cfg.BypassEvery
	if !advanced && !e.force && !e.retry && !bypass {
		e.sinceFetch++
		e.failures = 0
		e.stats.Throttled++
		return false, false
	}

	forced := e.force
	e.force = false
	e.retry = false
	e.sinceFetch = 0
	e.stats.Fetches++
	return true, forced
}

func (e *Engine) restoreForce(gen uint64, forced bool) {
	if !forced {
		return
	}
	e.mu.Lock()
	if gen == e.generation {
		e.force = true
	}
	e.mu.Unlock()
}

// planFetch picks the block range of every kind: a backfill from block 0 for
// kinds never synced or ahead of the chain, otherwise a top-up past the
// watermark.
func planFetch(c *cache.EventCache, kinds []model.EventKind, height uint64) []*fetchPlan {
	plans := make([]*fetchPlan, 0, len(kinds))
	for _, kind := range kinds {
		plan := &fetchPlan{kind: kind, to: height}
		watermark := c.LastIncorporatedBlock(kind)
		switch {
		case !c.Synced(kind) || height < watermark:
			plan.backfill = true
		case watermark == height:
			plan.current = true
		default:
			plan.from = watermark + 1
		}
		plans = append(plans, plan)
	}
	return plans
}

func fetchAll(ctx context.Context, source Source, plans []*fetchPlan) (map[string]string, error) {
	g, gctx := errgroup.WithContext(ctx)

	var scalars map[string]string
	g.Go(func() error {
		values, err := source.Scalars(gctx)
		if err != nil {
			return fmt.Errorf("scalars: %w", err)
		}
		scalars = values
		return nil
	})

	for _, plan := range plans {
		if plan.current {
			continue
		}
		plan := plan
		g.Go(func() error {
			records, err := source.Logs(gctx, plan.kind, plan.from, plan.to)
			if err != nil {
				return fmt.Errorf("%s logs [%d,%d]: %w", plan.kind, plan.from, plan.to, err)
			}
			plan.records = records
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scalars, nil
}

// fail records a failed poll. The degraded snapshot goes out only when the
// consecutive failure count reaches the threshold, so one outage produces one
// notification.
func (e *Engine) fail(gen uint64, err error) error {
	e.mu.Lock()
	if gen != e.generation || e.closed {
		e.stats.Discarded++
		e.mu.Unlock()
		return nil
	}

	e.failures++
	e.retry = true
	e.stats.FailedTicks++
	failures := e.failures

	var subs []subscriber
	var degraded model.SyncSnapshot
	if failures == e.cfg.FailureThreshold {
		degraded = model.SyncSnapshot{
			Connected:            false,
			Endpoint:             e.endpoint,
			Contract:             e.contract,
			Height:               e.lastHeight,
			CapturedAtUnixMillis: time.Now().UnixMilli(),
		}
		e.fingerprint = ""
		e.force = true
		e.latest = &degraded
		e.stats.Notifications++
		subs = e.recipientsLocked()
	}
	e.mu.Unlock()

	if failures == e.cfg.FailureThreshold {
		e.logger.Error("ledger unreachable",
			zap.String("endpoint", degraded.Endpoint),
			zap.Int("failures", failures),
			zap.Error(err),
		)
		e.deliver(subs, degraded)
	}
	return fmt.Errorf("failure %d: %w", failures, err)
}

// publish merges a fully fetched poll into the cache and notifies
// subscribers when the resulting snapshot differs from the last one.
func (e *Engine) publish(ctx context.Context, gen, height uint64, scalars map[string]string, plans []*fetchPlan) error {
	e.mu.Lock()
	if gen != e.generation || e.closed {
		e.stats.Discarded++
		e.mu.Unlock()
		return nil
	}
	c := e.cache

	for _, plan := range plans {
		if plan.backfill {
			continue
		}
		if watermark := c.LastIncorporatedBlock(plan.kind); height < watermark {
			e.stats.FailedTicks++
			e.mu.Unlock()
			err := fmt.Errorf("%w: %s through %d below %d", cache.ErrWatermarkRegression, plan.kind, height, watermark)
			e.logger.DPanic("cache merge rejected", zap.Error(err))
			return err
		}
	}

	byKind := make(map[model.EventKind][]model.LogRecord, len(plans))
	moved := false
	for _, plan := range plans {
		if plan.backfill || len(plan.records) > 0 || !c.Synced(plan.kind) || c.LastIncorporatedBlock(plan.kind) != height {
			moved = true
		}
		if plan.backfill {
			if c.Synced(plan.kind) {
				e.logger.Info("height below watermark, backfilling",
					zap.String("kind", string(plan.kind)),
					zap.Uint64("height", height),
					zap.Uint64("watermark", c.LastIncorporatedBlock(plan.kind)),
				)
			}
			byKind[plan.kind] = c.Replace(plan.kind, plan.records, height)
			continue
		}
		merged, err := c.Append(plan.kind, plan.records, height)
		if err != nil {
			e.stats.FailedTicks++
			e.mu.Unlock()
			e.logger.DPanic("cache merge rejected", zap.Error(err))
			return err
		}
		byKind[plan.kind] = merged
	}

	e.lastHeight = height
	e.haveHeight = true
	e.failures = 0

	snapshot := model.SyncSnapshot{
		Connected:            true,
		Endpoint:             e.endpoint,
		Contract:             e.contract,
		Height:               height,
		Scalars:              scalars,
		RecordsByKind:        byKind,
		Roster:               roster(byKind, e.cfg.RosterKinds),
		RecentActivity:       recentActivity(byKind, model.MaxRecentActivity),
		CapturedAtUnixMillis: time.Now().UnixMilli(),
	}
	key := cache.MirrorKey(e.endpoint, e.contract)

	fp, err := fingerprint(snapshot, e.cfg.Kinds)
	if err != nil {
		e.stats.FailedTicks++
		e.mu.Unlock()
		return err
	}

	var subs []subscriber
	changed := fp != e.fingerprint
	if changed {
		e.fingerprint = fp
		e.latest = &snapshot
		e.stats.Notifications++
		subs = e.recipientsLocked()
	} else {
		e.stats.Unchanged++
	}
	e.mu.Unlock()

	if moved {
		e.saveMirror(ctx, key, c)
	}

	if changed {
		e.logger.Debug("snapshot changed",
			zap.Uint64("height", height),
			zap.String("fingerprint", fp),
			zap.Int("subscribers", len(subs)),
		)
		e.deliver(subs, snapshot)
	}
	return nil
}

func (e *Engine) saveMirror(ctx context.Context, key string, c *cache.EventCache) {
	if e.cfg.Store == nil {
		return
	}
	if err := e.cfg.Store.Save(ctx, key, c.Export()); err != nil {
		e.logger.Warn("save cache mirror failed", zap.String("key", key), zap.Error(err))
	}
}

// deliver calls every subscriber in registration order. A panicking
// subscriber is logged and skipped.
func (e *Engine) deliver(subs []subscriber, snapshot model.SyncSnapshot) {
	for _, sub := range subs {
		e.invoke(sub, snapshot)
	}
}

func (e *Engine) invoke(sub subscriber, snapshot model.SyncSnapshot) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("subscriber panicked",
				zap.String("subscriber", sub.id.String()),
				zap.Any("panic", r),
			)
		}
	}()
	sub.fn(snapshot)
}
