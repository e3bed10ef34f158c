// Package idle periodically scans running projects and stops any that have
// been idle past their effective timeout, dynamic or fixed.
package idle

import (
	"context"
	"log"
	"time"

	"github.com/lazydevhq/lazydev/internal/config"
	"github.com/lazydevhq/lazydev/internal/process"
	"github.com/lazydevhq/lazydev/internal/store"
)

const dynamicBase = 5 * time.Minute
const defaultColdStartMs = 5000

// activityThresholds walks in order; the first threshold with at least
// three request timestamps within its window wins the activity score.
var activityThresholds = []struct {
	window time.Duration
	score  float64
}{
	{30 * time.Second, 1.0},
	{60 * time.Second, 0.8},
	{120 * time.Second, 0.6},
	{300 * time.Second, 0.4},
	{600 * time.Second, 0.2},
}

// Controller is the periodic idle scanner.
type Controller struct {
	store      *store.Store
	supervisor *process.Supervisor
	cfgSource  func() *config.Config
}

// New creates an idle controller. cfgSource is consulted on every scan so
// the controller always acts on the latest hot-reloaded config.
func New(st *store.Store, sup *process.Supervisor, cfgSource func() *config.Config) *Controller {
	return &Controller{store: st, supervisor: sup, cfgSource: cfgSource}
}

// Run blocks, scanning every settings.scan_interval until ctx is cancelled.
// The interval is re-read after each scan, so a hot-reloaded value takes
// effect from the next tick.
func (c *Controller) Run(ctx context.Context) {
	interval := c.cfgSource().Settings.ScanInterval.Duration()
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.scanOnce(ctx)
			if next := c.cfgSource().Settings.ScanInterval.Duration(); next > 0 && next != interval {
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

func (c *Controller) scanOnce(ctx context.Context) {
	cfg := c.cfgSource()
	now := time.Now().UnixMilli()

	for name, st := range c.store.AllStates() {
		if st.Status != store.StatusRunning {
			continue
		}
		proj, known := cfg.Projects[name]
		if known && proj.Disabled {
			continue
		}
		if st.WebsocketConnections > 0 {
			c.store.UpdateActivity(name)
			continue
		}
		if st.LastActivity == 0 {
			continue
		}
		if known && proj.IdleTimeout != nil && proj.IdleTimeout.Duration() == 0 {
			continue
		}

		metrics := c.store.GetMetrics(name)
		timeout := EffectiveTimeout(proj, cfg.Settings, metrics, st.WebsocketConnections)
		if timeout <= 0 {
			continue
		}

		idleFor := time.Duration(now-st.LastActivity) * time.Millisecond
		if idleFor >= timeout {
			log.Printf("[idle] stopping %s after %s idle (timeout %s)", name, idleFor, timeout)
			if err := c.supervisor.Stop(ctx, name); err != nil {
				log.Printf("[idle] stop %s: %v", name, err)
			}
		}
	}
}

// EffectiveTimeout implements the §4.D effective_timeout query: an explicit
// per-project override wins, then a disabled dynamic policy falls back to
// the global fixed timeout, else the dynamic algorithm is evaluated and
// clamped to [min_timeout, max_timeout]. wsConnections is consulted for the
// ws_mult term even though a live scan never reaches this call with
// wsConnections > 0 (such projects are treated as active and skipped
// earlier); external callers querying the timeout for display purposes do
// pass the real count.
func EffectiveTimeout(proj *config.Project, settings config.Settings, metrics store.ProjectMetrics, wsConnections int) time.Duration {
	if proj != nil && proj.IdleTimeout != nil {
		return proj.IdleTimeout.Duration()
	}
	if !settings.DynamicTimeout {
		return settings.IdleTimeout.Duration()
	}

	t := dynamicTimeout(metrics, wsConnections)
	min := settings.MinTimeout.Duration()
	max := settings.MaxTimeout.Duration()
	if min > 0 && t < min {
		t = min
	}
	if max > 0 && t > max {
		t = max
	}
	return t
}

func dynamicTimeout(metrics store.ProjectMetrics, wsConnections int) time.Duration {
	cold := metrics.ColdStartTime
	if cold <= 0 {
		cold = defaultColdStartMs
	}
	coldFactor := float64(cold) / float64(defaultColdStartMs)

	wsMult := 1.0
	if wsConnections > 0 {
		wsMult = 2.0
	}

	score := activityScore(metrics.RequestHistory, time.Now().UnixMilli())
	activityMult := 0.5 + 0.5*score

	seconds := dynamicBase.Seconds() * coldFactor * wsMult * activityMult
	return time.Duration(seconds * float64(time.Second))
}

func activityScore(history []int64, nowMs int64) float64 {
	for _, th := range activityThresholds {
		cutoff := nowMs - th.window.Milliseconds()
		count := 0
		for _, ts := range history {
			if ts >= cutoff {
				count++
			}
		}
		if count >= 3 {
			return th.score
		}
	}
	return 0.0
}
