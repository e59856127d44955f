package rtt

import (
	"context"
	"encoding/binary"
	"sync"
	"testing"

	"github.com/mcu-debug/mcu-debug-core/internal/gdbmi"
	"github.com/mcu-debug/mcu-debug-core/internal/membridge"
)

func readU32LE(mem *fakeMem, addr uint64) uint32 {
	b, _ := mem.ReadMemory(context.Background(), addr, 4)
	return binary.LittleEndian.Uint32(b)
}

type fakeMem struct {
	mu   sync.Mutex
	data map[uint64]byte
}

func newFakeMem() *fakeMem { return &fakeMem{data: make(map[uint64]byte)} }

func (f *fakeMem) ReadMemory(ctx context.Context, addr uint64, length int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]byte, length)
	for i := 0; i < length; i++ {
		out[i] = f.data[addr+uint64(i)]
	}
	return out, nil
}

func (f *fakeMem) ReadMemoryStreaming(ctx context.Context, addr uint64, length int, cb membridge.ChunkCallback) error {
	data, _ := f.ReadMemory(ctx, addr, length)
	return cb(addr, data)
}

func (f *fakeMem) WriteMemory(ctx context.Context, addr uint64, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, b := range data {
		f.data[addr+uint64(i)] = b
	}
	return nil
}

func (f *fakeMem) writeDescriptor(addr uint64, d Descriptor) {
	var raw []byte
	raw = append(raw, EncodeOffset(d.NamePtr)...)
	raw = append(raw, EncodeOffset(d.BufPtr)...)
	raw = append(raw, EncodeOffset(d.Size)...)
	raw = append(raw, EncodeOffset(d.WrOff)...)
	raw = append(raw, EncodeOffset(d.RdOff)...)
	raw = append(raw, EncodeOffset(d.Flags)...)
	ctx := context.Background()
	f.WriteMemory(ctx, addr, raw)
}

type fakeLifecycle struct{}

func (fakeLifecycle) Status() gdbmi.Status { return gdbmi.StatusRunning }
func (fakeLifecycle) Subscribe() (<-chan gdbmi.Event, func()) {
	return make(chan gdbmi.Event), func() {}
}

type fakePorts struct{}

func (fakePorts) Allocate(count int, consecutive bool) ([]int, func(), error) {
	ports := make([]int, count) // 0 lets the OS pick an ephemeral port
	return ports, func() {}, nil
}

func newTestEngine(mem memoryBridge, cfg Config) *Engine {
	return New(mem, fakeLifecycle{}, fakePorts{}, cfg, nil)
}

func TestTrySearchFindsControlBlockAndParsesCounts(t *testing.T) {
	mem := newFakeMem()
	ctx := context.Background()
	idBytes := make([]byte, 16)
	copy(idBytes, "SEGGER RTT")
	mem.WriteMemory(ctx, 0x20000000, idBytes)
	mem.WriteMemory(ctx, 0x20000010, EncodeOffset(1))
	mem.WriteMemory(ctx, 0x20000014, EncodeOffset(2))

	e := newTestEngine(mem, Config{CBAddr: 0x20000000})
	found, err := e.trySearch(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Fatal("expected the control block to be found")
	}
	if e.numUp != 1 || e.numDown != 2 {
		t.Fatalf("got numUp=%d numDown=%d", e.numUp, e.numDown)
	}
}

func TestTrySearchDoesNotMatchWrongID(t *testing.T) {
	mem := newFakeMem()
	e := newTestEngine(mem, Config{CBAddr: 0x20000000})
	found, err := e.trySearch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatal("expected no match against all-zero memory")
	}
}

func TestTrySearchAbortsOnImplausibleCounts(t *testing.T) {
	mem := newFakeMem()
	ctx := context.Background()
	idBytes := make([]byte, 16)
	copy(idBytes, "SEGGER RTT")
	mem.WriteMemory(ctx, 0x20000000, idBytes)
	mem.WriteMemory(ctx, 0x20000010, EncodeOffset(100))
	mem.WriteMemory(ctx, 0x20000014, EncodeOffset(0))

	e := newTestEngine(mem, Config{CBAddr: 0x20000000})
	_, err := e.trySearch(ctx)
	if _, ok := err.(*AbortError); !ok {
		t.Fatalf("expected an *AbortError, got %v", err)
	}
}

func TestDrainUpAdvancesReadOffsetAfterDeliveringBytes(t *testing.T) {
	mem := newFakeMem()
	ctx := context.Background()
	const descAddr = 0x20000020
	const bufAddr = 0x30000000
	mem.writeDescriptor(descAddr, Descriptor{BufPtr: bufAddr, Size: 16, WrOff: 8, RdOff: 0})
	mem.WriteMemory(ctx, bufAddr, []byte("ABCDEFGH"))

	ch := newChannel(0, DirectionUp, "up0", descAddr)
	ch.bufAddr = bufAddr

	e := newTestEngine(mem, Config{})
	if err := e.drainUp(ctx, ch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := readU32LE(mem, descAddr+16); got != 8 {
		t.Fatalf("expected rd_off advanced to 8, got %d", got)
	}
}

func TestDrainUpIsNoOpWhenEmpty(t *testing.T) {
	mem := newFakeMem()
	ctx := context.Background()
	const descAddr = 0x20000020
	mem.writeDescriptor(descAddr, Descriptor{BufPtr: 0x30000000, Size: 16, WrOff: 4, RdOff: 4})

	ch := newChannel(0, DirectionUp, "up0", descAddr)
	ch.bufAddr = 0x30000000

	e := newTestEngine(mem, Config{})
	if err := e.drainUp(ctx, ch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := readU32LE(mem, descAddr+16); got != 4 {
		t.Fatalf("expected rd_off untouched at 4, got %d", got)
	}
}

func TestFillDownWritesPendingBytesAndAdvancesWriteOffset(t *testing.T) {
	mem := newFakeMem()
	ctx := context.Background()
	const descAddr = 0x20000040
	const bufAddr = 0x40000000
	mem.writeDescriptor(descAddr, Descriptor{BufPtr: bufAddr, Size: 16, WrOff: 0, RdOff: 0})

	ch := newChannel(0, DirectionDown, "down0", descAddr)
	ch.bufAddr = bufAddr
	ch.pending = []byte("hi")

	e := newTestEngine(mem, Config{})
	if err := e.fillDown(ctx, ch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	written, _ := mem.ReadMemory(ctx, bufAddr, 2)
	if string(written) != "hi" {
		t.Fatalf("expected \"hi\" written to the ring buffer, got %q", written)
	}
	if got := readU32LE(mem, descAddr+12); got != 2 {
		t.Fatalf("expected wr_off advanced to 2, got %d", got)
	}
}

func TestFillDownTruncatesToAvailableFreeSpace(t *testing.T) {
	mem := newFakeMem()
	ctx := context.Background()
	const descAddr = 0x20000060
	const bufAddr = 0x50000000
	// size 4: one byte always reserved, rd_off == wr_off == 0 means only
	// 3 bytes of free space are available.
	mem.writeDescriptor(descAddr, Descriptor{BufPtr: bufAddr, Size: 4, WrOff: 0, RdOff: 0})

	ch := newChannel(0, DirectionDown, "down0", descAddr)
	ch.bufAddr = bufAddr
	ch.pending = []byte("abcd")

	e := newTestEngine(mem, Config{})
	if err := e.fillDown(ctx, ch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	written, _ := mem.ReadMemory(ctx, bufAddr, 3)
	if string(written) != "abc" {
		t.Fatalf("expected only 3 bytes written, got %q", written)
	}
}
