// Package daemon composes the state store, port allocator, process
// supervisor, idle controller, reverse proxy, and config watcher into the
// single long-running lazydev process.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/lazydevhq/lazydev/internal/config"
	"github.com/lazydevhq/lazydev/internal/idle"
	"github.com/lazydevhq/lazydev/internal/portalloc"
	"github.com/lazydevhq/lazydev/internal/process"
	"github.com/lazydevhq/lazydev/internal/proxy"
	"github.com/lazydevhq/lazydev/internal/store"
)

// Config configures a Daemon before Start.
type Config struct {
	ConfigPath string // defaults to config.DefaultPath()
	StatePath  string // defaults to store.DefaultStatePath()
}

// Daemon is the composition root: one struct owning every subsystem, wired
// together with plain field references and no package-level mutable state.
type Daemon struct {
	store      *store.Store
	alloc      *portalloc.Allocator
	supervisor *process.Supervisor
	idle       *idle.Controller
	proxy      *proxy.Server
	watcher    *config.Watcher

	pidPath string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stopMu  sync.Mutex
	stopped bool
}

// New constructs a Daemon without starting anything.
func New(cfg Config) (*Daemon, error) {
	configPath := cfg.ConfigPath
	if configPath == "" {
		configPath = config.DefaultPath()
	}
	watcher, err := config.NewWatcher(configPath)
	if err != nil {
		return nil, fmt.Errorf("daemon: load config: %w", err)
	}

	statePath := cfg.StatePath
	if statePath == "" {
		statePath = store.DefaultStatePath()
	}
	st, err := store.Open(store.Config{Path: statePath})
	if err != nil {
		return nil, fmt.Errorf("daemon: open state store: %w", err)
	}

	settings := watcher.Current().Settings
	alloc := portalloc.New(settings.PortRange[0], settings.PortRange[1])

	sup := process.New(st, alloc)
	proxySrv := proxy.New(st, sup, watcher.Current)
	idleCtl := idle.New(st, sup, watcher.Current)

	pidPath := filepath.Join(filepath.Dir(statePath), "daemon.pid")

	return &Daemon{
		store:      st,
		alloc:      alloc,
		supervisor: sup,
		idle:       idleCtl,
		proxy:      proxySrv,
		watcher:    watcher,
		pidPath:    pidPath,
	}, nil
}

// Start runs the §4.G startup sequence and returns once the proxy listener
// is bound and accepting.
func (d *Daemon) Start(parent context.Context) error {
	d.ctx, d.cancel = context.WithCancel(parent)

	running := make([]int, 0)
	for _, st := range d.store.AllStates() {
		if st.Status == store.StatusRunning && st.Port != 0 {
			running = append(running, st.Port)
		}
	}
	d.alloc.InitializeFromState(running)

	result, err := d.supervisor.ReconcileOrphansOnStartup()
	if err != nil {
		return fmt.Errorf("daemon: reconcile orphans: %w", err)
	}
	log.Printf("[daemon] startup reconciliation: adopted=%d cleaned=%d", result.Adopted, result.Cleaned)

	if err := d.writePIDFile(); err != nil {
		return fmt.Errorf("daemon: write pid file: %w", err)
	}

	ready := make(chan error, 1)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ready <- d.proxy.ListenAndServe(d.ctx)
	}()

	// ListenAndServe binds synchronously before it ever blocks on Serve, but
	// since that happens inside the goroutine we give it a moment to report
	// an immediate bind failure before declaring Start successful.
	select {
	case err := <-ready:
		if err != nil {
			return fmt.Errorf("daemon: bind proxy: %w", err)
		}
	case <-time.After(150 * time.Millisecond):
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.idle.Run(d.ctx)
	}()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.watcher.Run(d.ctx)
	}()

	return nil
}

// Wait blocks until the daemon's internal context is cancelled (i.e. until
// Stop is called).
func (d *Daemon) Wait() {
	<-d.ctx.Done()
}

// Stop performs the §4.G shutdown sequence: stop the watcher, stop the
// idle scan, stop the listener, stop-all children, close the store, remove
// the PID file. Idempotent.
func (d *Daemon) Stop(ctx context.Context) error {
	d.stopMu.Lock()
	if d.stopped {
		d.stopMu.Unlock()
		return nil
	}
	d.stopped = true
	d.stopMu.Unlock()

	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}

	var errs []error

	if err := d.supervisor.StopAll(ctx); err != nil {
		log.Printf("[daemon] stop all children: %v", err)
		errs = append(errs, fmt.Errorf("stop children: %w", err))
	}

	if err := d.store.Close(); err != nil {
		log.Printf("[daemon] close store: %v", err)
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}

	if err := os.Remove(d.pidPath); err != nil && !os.IsNotExist(err) {
		log.Printf("[daemon] remove pid file: %v", err)
		errs = append(errs, fmt.Errorf("remove pid file: %w", err))
	}

	return errors.Join(errs...)
}

func (d *Daemon) writePIDFile() error {
	if err := os.MkdirAll(filepath.Dir(d.pidPath), 0o755); err != nil {
		return err
	}
	tmp := d.pidPath + ".tmp"
	pid := strconv.Itoa(os.Getpid())
	if err := os.WriteFile(tmp, []byte(pid), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, d.pidPath)
}

// ShutdownTimeout computes the 5s + 1s-per-live-child bound from §4.G for a
// given number of currently live children.
func ShutdownTimeout(liveChildren int) time.Duration {
	return 5*time.Second + time.Duration(liveChildren)*time.Second
}

// LiveChildren reports how many children are currently managed or adopted,
// for sizing the shutdown deadline.
func (d *Daemon) LiveChildren() int {
	return d.supervisor.LiveCount()
}
