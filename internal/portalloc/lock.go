package portalloc

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// portLock is one held advisory file lock plus the port it guards.
type portLock struct {
	port int
	path string
	file *os.File
}

func (p *PortAllocator) lockPath(port int) string {
	return filepath.Join(p.cfg.tmpDir(), fmt.Sprintf("mcu-debug-port-%d.lock", port))
}

// tryLockPort attempts to reserve port: acquire an exclusive, non-
// blocking advisory lock on its lock file (recycling it first if it is
// older than the configured staleness window), then confirm the port is
// actually bindable on both 127.0.0.1 and 0.0.0.0 (spec §4.9 "Considers a
// port free iff...").
func (p *PortAllocator) tryLockPort(port int) (*portLock, bool) {
	path := p.lockPath(port)

	f, locked := acquireFlock(path)
	if !locked {
		if !p.recycleIfStale(path) {
			return nil, false
		}
		f, locked = acquireFlock(path)
		if !locked {
			return nil, false
		}
	}

	now := time.Now()
	os.Chtimes(path, now, now)

	if !portBindable(port) {
		unlockAndClose(f)
		return nil, false
	}

	l := &portLock{port: port, path: path, file: f}
	return l, true
}

// acquireFlock opens (creating if needed) path and attempts a non-
// blocking exclusive flock on it.
func acquireFlock(path string) (*os.File, bool) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, false
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, false
	}
	return f, true
}

// recycleIfStale removes a lock file whose mtime is older than the
// configured staleness window, on the theory that whatever process held
// it died without releasing it (spec §4.9 "30-second staleness").
func (p *PortAllocator) recycleIfStale(path string) bool {
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}
	if time.Since(fi.ModTime()) < p.cfg.staleness() {
		return false
	}
	return os.Remove(path) == nil
}

func unlockAndClose(f *os.File) {
	unix.Flock(int(f.Fd()), unix.LOCK_UN)
	f.Close()
}

// portBindable reports whether port can be bound on both the loopback
// and wildcard addresses, immediately closing each test listener (spec
// §4.9 "a test TCP server bound to both 127.0.0.1 and 0.0.0.0 on that
// port succeeds and then closes").
func portBindable(port int) bool {
	for _, host := range []string{"127.0.0.1", "0.0.0.0"} {
		l, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
		if err != nil {
			return false
		}
		l.Close()
	}
	return true
}

func (l *portLock) release() {
	if l == nil || l.file == nil {
		return
	}
	unlockAndClose(l.file)
	os.Remove(l.path)
	l.file = nil
}

// leakRegistry tracks every PortRangeLock handed out so a process-wide
// cleanup can release whatever a crashing caller forgot to (spec §4.9
// "processwide cleanup handler releases all leaked locks on exit").
var leakRegistry sync.Map // *PortRangeLock -> struct{}

func trackLock(r *PortRangeLock) {
	leakRegistry.Store(r, struct{}{})
	runtime.SetFinalizer(r, func(r *PortRangeLock) { r.Release() })
}

// ReleaseAllLeaked releases every PortRangeLock ever returned by
// Allocate that hasn't already released itself. Intended to be called
// from a signal handler or deferred in main so a killed process doesn't
// leave lock files behind until they age out past the staleness window.
func ReleaseAllLeaked() {
	leakRegistry.Range(func(key, _ interface{}) bool {
		if r, ok := key.(*PortRangeLock); ok {
			r.Release()
		}
		leakRegistry.Delete(key)
		return true
	})
}
