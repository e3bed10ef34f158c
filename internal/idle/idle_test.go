package idle

import (
	"testing"
	"time"

	"github.com/lazydevhq/lazydev/internal/config"
	"github.com/lazydevhq/lazydev/internal/store"
)

func TestEffectiveTimeoutHonorsPerProjectOverride(t *testing.T) {
	proj := &config.Project{Name: "alpha"}
	d := config.Duration(42 * time.Second)
	proj.IdleTimeout = &d

	got := EffectiveTimeout(proj, config.DefaultSettings(), store.ProjectMetrics{}, 0)
	if got != 42*time.Second {
		t.Errorf("expected override to win, got %v", got)
	}
}

func TestEffectiveTimeoutFallsBackToFixedWhenDynamicDisabled(t *testing.T) {
	settings := config.DefaultSettings()
	settings.DynamicTimeout = false
	settings.IdleTimeout = config.Duration(7 * time.Minute)

	got := EffectiveTimeout(nil, settings, store.ProjectMetrics{}, 0)
	if got != 7*time.Minute {
		t.Errorf("expected fixed timeout, got %v", got)
	}
}

func TestDynamicTimeoutBaselineWithNoHistory(t *testing.T) {
	settings := config.DefaultSettings()
	got := EffectiveTimeout(nil, settings, store.ProjectMetrics{}, 0)
	// cold_factor=1 (no cold start recorded -> default 5000ms), ws_mult=1,
	// activity_score=0 (no history) -> activity_mult=0.5 -> T = 5min*0.5 = 2m30s,
	// clamped up to MinTimeout (2m) is below 2m30s so stays at 2m30s.
	want := 150 * time.Second
	if got != want {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestDynamicTimeoutDoublesForActiveWebsockets(t *testing.T) {
	settings := config.DefaultSettings()
	withoutWS := EffectiveTimeout(nil, settings, store.ProjectMetrics{}, 0)
	withWS := EffectiveTimeout(nil, settings, store.ProjectMetrics{}, 1)
	if withWS != withoutWS*2 {
		t.Errorf("expected ws_mult to double the timeout: without=%v with=%v", withoutWS, withWS)
	}
}

func TestDynamicTimeoutClampsToMax(t *testing.T) {
	settings := config.DefaultSettings()
	settings.MaxTimeout = config.Duration(3 * time.Minute)

	metrics := store.ProjectMetrics{ColdStartTime: 60000} // cold_factor = 12
	got := EffectiveTimeout(nil, settings, metrics, 0)
	if got != 3*time.Minute {
		t.Errorf("expected clamp to max_timeout 3m, got %v", got)
	}
}

func TestDynamicTimeoutClampsToMin(t *testing.T) {
	settings := config.DefaultSettings()
	settings.MinTimeout = config.Duration(4 * time.Minute)

	metrics := store.ProjectMetrics{ColdStartTime: 1000} // cold_factor = 0.2
	got := EffectiveTimeout(nil, settings, metrics, 0)
	if got != 4*time.Minute {
		t.Errorf("expected clamp to min_timeout 4m, got %v", got)
	}
}

func TestActivityScoreRequiresThreeWithinWindow(t *testing.T) {
	now := time.Now().UnixMilli()
	// Only 2 requests in the last 30s: not enough for the top score.
	history := []int64{now - 1000, now - 2000}
	if score := activityScore(history, now); score != 0 {
		t.Errorf("expected 0 with only 2 recent requests, got %v", score)
	}

	history = []int64{now - 1000, now - 2000, now - 3000}
	if score := activityScore(history, now); score != 1.0 {
		t.Errorf("expected top score with 3 requests inside 30s, got %v", score)
	}
}

func TestScanOnceSkipsDisabledProjects(t *testing.T) {
	st, err := store.Open(store.Config{Path: t.TempDir() + "/state.db"})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	st.SetState("alpha", func(ps *store.ProjectState) {
		ps.Status = store.StatusRunning
		ps.LastActivity = time.Now().Add(-time.Hour).UnixMilli()
	})

	cfg := &config.Config{
		Settings: config.DefaultSettings(),
		Projects: map[string]*config.Project{
			"alpha": {Name: "alpha", Disabled: true},
		},
	}

	c := New(st, nil, func() *config.Config { return cfg })
	// supervisor is nil: if the scan attempted to stop "alpha" despite being
	// disabled, this would panic on the nil supervisor call.
	c.scanOnce(nil)
}
