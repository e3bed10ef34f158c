package portalloc

import "testing"

func TestFindAvailableSkipsReserved(t *testing.T) {
	a := New(20000, 20010)

	p1, err := a.FindAvailable()
	if err != nil {
		t.Fatalf("FindAvailable failed: %v", err)
	}

	p2, err := a.FindAvailable()
	if err != nil {
		t.Fatalf("FindAvailable failed: %v", err)
	}

	if p1 == p2 {
		t.Fatalf("expected distinct ports, got %d twice", p1)
	}
	if p1 < 20000 || p1 > 20010 || p2 < 20000 || p2 > 20010 {
		t.Fatalf("ports out of range: %d, %d", p1, p2)
	}
}

func TestReleaseMakesPortAvailableAgain(t *testing.T) {
	a := New(20020, 20020) // exactly one port in range

	p, err := a.FindAvailable()
	if err != nil {
		t.Fatalf("FindAvailable failed: %v", err)
	}

	if _, err := a.FindAvailable(); err != ErrNoPortsAvailable {
		t.Fatalf("expected exhaustion, got port=%v err=%v", p, err)
	}

	a.Release(p)

	if _, err := a.FindAvailable(); err != nil {
		t.Fatalf("expected port available again after release, got %v", err)
	}
}

func TestMarkUsedReservesWithoutScanning(t *testing.T) {
	a := New(20030, 20031)
	a.MarkUsed(20030)

	p, err := a.FindAvailable()
	if err != nil {
		t.Fatalf("FindAvailable failed: %v", err)
	}
	if p != 20031 {
		t.Fatalf("expected allocator to skip marked-used port, got %d", p)
	}
}

func TestInitializeFromStateSeedsReservations(t *testing.T) {
	a := New(20040, 20041)
	a.InitializeFromState([]int{20040})

	p, err := a.FindAvailable()
	if err != nil {
		t.Fatalf("FindAvailable failed: %v", err)
	}
	if p != 20041 {
		t.Fatalf("expected seeded port skipped, got %d", p)
	}
}

func TestExhaustionReturnsNoPortsAvailable(t *testing.T) {
	a := New(20050, 20050)
	if _, err := a.FindAvailable(); err != nil {
		t.Fatalf("first allocation should succeed, got %v", err)
	}
	if _, err := a.FindAvailable(); err != ErrNoPortsAvailable {
		t.Fatalf("expected ErrNoPortsAvailable, got %v", err)
	}
}
