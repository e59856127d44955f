package portalloc

import (
	"net"
	"testing"
	"time"
)

func freeConsecutiveBase(t *testing.T, count int) int {
	t.Helper()
	// Find a base the OS will actually let us bind, to keep the test
	// independent of whether 30000+ happens to be free in CI.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to probe for a free port: %v", err)
	}
	base := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return base
}

func TestAllocateConsecutiveReturnsAContiguousRun(t *testing.T) {
	base := freeConsecutiveBase(t, 3)
	p := New(Config{Start: base, TmpDir: t.TempDir(), Staleness: time.Second})

	ports, release, err := p.Allocate(3, true)
	defer release()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ports) != 3 {
		t.Fatalf("expected 3 ports, got %v", ports)
	}
	for i := 1; i < len(ports); i++ {
		if ports[i] != ports[i-1]+1 {
			t.Fatalf("expected a contiguous run, got %v", ports)
		}
	}
}

func TestAllocateTwiceDoesNotCollide(t *testing.T) {
	base := freeConsecutiveBase(t, 1)
	p := New(Config{Start: base, TmpDir: t.TempDir(), Staleness: time.Second})

	firstPorts, release1, err := p.Allocate(1, false)
	if err != nil {
		t.Fatalf("first Allocate failed: %v", err)
	}
	defer release1()

	secondPorts, release2, err := p.Allocate(1, false)
	if err != nil {
		t.Fatalf("second Allocate failed: %v", err)
	}
	defer release2()

	if firstPorts[0] == secondPorts[0] {
		t.Fatalf("expected distinct ports, got %d twice", firstPorts[0])
	}
}

func TestReleaseFreesTheLockFile(t *testing.T) {
	base := freeConsecutiveBase(t, 1)
	dir := t.TempDir()
	p := New(Config{Start: base, TmpDir: dir, Staleness: time.Second})

	ports, release, err := p.Allocate(1, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	release()

	// A second allocator (fresh process lock state) should be able to
	// take the same port again immediately after release.
	p2 := New(Config{Start: ports[0], TmpDir: dir, Staleness: time.Second})
	again, release2, err := p2.Allocate(1, false)
	defer release2()
	if err != nil {
		t.Fatalf("expected the released port to be reacquirable: %v", err)
	}
	if again[0] != ports[0] {
		t.Fatalf("expected to reacquire port %d, got %d", ports[0], again[0])
	}
}

func TestPortBindableDetectsAnOccupiedPort(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to bind a test listener: %v", err)
	}
	defer l.Close()
	port := l.Addr().(*net.TCPAddr).Port

	if portBindable(port) {
		t.Fatalf("expected port %d to be reported unavailable while held", port)
	}
}
