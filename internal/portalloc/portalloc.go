// Package portalloc picks free TCP ports within a configured range and
// tracks in-process reservations, checking both the kernel's listen table
// and the daemon's own bookkeeping before handing out a port.
package portalloc

import (
	"errors"
	"fmt"
	"net"
	"sync"

	gopsnet "github.com/shirou/gopsutil/v3/net"
)

// ErrNoPortsAvailable is returned when every port in the configured range is
// either reserved or already bound by something else.
var ErrNoPortsAvailable = errors.New("portalloc: no ports available in range")

// Allocator holds the process-local reservation set.
type Allocator struct {
	mu       sync.Mutex
	min, max int
	reserved map[int]bool
}

// New creates an allocator for the inclusive range [min, max].
func New(min, max int) *Allocator {
	return &Allocator{min: min, max: max, reserved: make(map[int]bool)}
}

// InitializeFromState seeds the reservation set with the ports of projects
// that are already "running" in the state store. Called once at startup,
// before reconciliation, so the allocator never hands out a port a running
// project is already using.
func (a *Allocator) InitializeFromState(runningPorts []int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, p := range runningPorts {
		a.reserved[p] = true
	}
}

// FindAvailable returns a port in [min, max] that is neither reserved nor
// currently bound on the host, reserving it atomically before returning.
func (a *Allocator) FindAvailable() (int, error) {
	listening, err := kernelListeningPorts()
	if err != nil {
		// A failed kernel-table read degrades to relying solely on the
		// bind-and-close probe per candidate; it must not make the whole
		// allocator fail.
		listening = map[int]bool{}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for p := a.min; p <= a.max; p++ {
		if a.reserved[p] {
			continue
		}
		if listening[p] {
			continue
		}
		if !probeBindable(p) {
			continue
		}
		a.reserved[p] = true
		return p, nil
	}
	return 0, ErrNoPortsAvailable
}

// Release removes a port from the reservation set.
func (a *Allocator) Release(port int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.reserved, port)
}

// MarkUsed adds a port to the reservation set without scanning, used when
// adopting an orphan already bound to a known port.
func (a *Allocator) MarkUsed(port int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reserved[port] = true
}

// kernelListeningPorts reads the kernel's TCP connection table via gopsutil
// (no shelling out to ss/lsof/awk, per SPEC_FULL.md §4.B.1) and returns the
// set of ports in LISTEN state.
func kernelListeningPorts() (map[int]bool, error) {
	conns, err := gopsnet.Connections("tcp")
	if err != nil {
		return nil, fmt.Errorf("portalloc: read kernel connection table: %w", err)
	}
	ports := make(map[int]bool, len(conns))
	for _, c := range conns {
		if c.Status == "LISTEN" {
			ports[int(c.Laddr.Port)] = true
		}
	}
	return ports, nil
}

// probeBindable attempts to bind and immediately release a port, the
// fallback check for anything the kernel-table read missed (e.g. restricted
// permissions on some platforms).
func probeBindable(port int) bool {
	l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return false
	}
	l.Close()
	return true
}
