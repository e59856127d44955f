package membridge

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

// fakeMemory simulates a flat target RAM image and records the address of
// every chunk it was asked for, so tests can assert on chunk boundaries.
type fakeMemory struct {
	ram       map[uint64]byte
	reads     []string
	shortenAt int // if > 0, the read at this addr returns one byte fewer
}

func (f *fakeMemory) DataReadMemoryBytes(_ context.Context, addr string, count int) ([]byte, error) {
	a, err := ParseAddress(addr)
	if err != nil {
		return nil, err
	}
	f.reads = append(f.reads, addr)
	n := count
	if f.shortenAt != 0 && a == uint64(f.shortenAt) {
		n--
	}
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = f.ram[a+uint64(i)]
	}
	return out, nil
}

func (f *fakeMemory) DataWriteMemoryBytes(_ context.Context, addr string, data []byte) error {
	a, err := ParseAddress(addr)
	if err != nil {
		return err
	}
	for i, b := range data {
		f.ram[a+uint64(i)] = b
	}
	return nil
}

func newFakeMemory(size int) *fakeMemory {
	return &fakeMemory{ram: make(map[uint64]byte, size)}
}

func TestFormatAddress(t *testing.T) {
	cases := map[uint64]string{
		0:                  "0x0",
		255:                "0xff",
		0x20000000:         "0x20000000",
		0xffffffffffffffff: "0xffffffffffffffff",
	}
	for addr, want := range cases {
		if got := FormatAddress(addr); got != want {
			t.Errorf("FormatAddress(%d) = %q, want %q", addr, got, want)
		}
	}
}

func TestParseAddressHexAndDecimal(t *testing.T) {
	v, err := ParseAddress("0x20000010")
	if err != nil || v != 0x20000010 {
		t.Fatalf("hex parse failed: %v %v", v, err)
	}
	v, err = ParseAddress("42")
	if err != nil || v != 42 {
		t.Fatalf("decimal parse failed: %v %v", v, err)
	}
	if _, err := ParseAddress("not-an-address"); err == nil {
		t.Fatal("expected an error for a malformed address")
	}
}

func TestReadMemorySplitsIntoChunks(t *testing.T) {
	mem := newFakeMemory(2000)
	for i := 0; i < 1200; i++ {
		mem.ram[uint64(i)] = byte(i)
	}
	b := New(mem)

	data, err := b.ReadMemory(context.Background(), 0, 1200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(data) != 1200 {
		t.Fatalf("expected 1200 bytes, got %d", len(data))
	}
	if len(mem.reads) != 3 {
		t.Fatalf("expected 3 chunked reads (512+512+176), got %d: %v", len(mem.reads), mem.reads)
	}
	for i, b := range data {
		if b != byte(i) {
			t.Fatalf("byte %d mismatch: got %d", i, b)
		}
	}
}

func TestReadMemoryStopsEarlyOnShortChunk(t *testing.T) {
	mem := newFakeMemory(2000)
	mem.shortenAt = 512
	b := New(mem)

	data, err := b.ReadMemory(context.Background(), 0, 1200)
	if err != nil {
		t.Fatalf("unexpected error on partial read: %v", err)
	}
	// First chunk (0..512) full; second chunk at 512 is short by one byte,
	// so the read stops there without issuing a third chunk.
	if len(data) != 1023 {
		t.Fatalf("expected 1023 bytes from a short second chunk, got %d", len(data))
	}
	if len(mem.reads) != 2 {
		t.Fatalf("expected exactly 2 reads after the short chunk, got %d", len(mem.reads))
	}
}

func TestReadMemoryStreamingInvokesCallbackPerChunk(t *testing.T) {
	mem := newFakeMemory(2000)
	for i := 0; i < 1024; i++ {
		mem.ram[uint64(i)] = byte(i % 251)
	}
	b := New(mem)

	var chunkAddrs []uint64
	err := b.ReadMemoryStreaming(context.Background(), 0, 1024, func(addr uint64, data []byte) error {
		chunkAddrs = append(chunkAddrs, addr)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []uint64{0, 512}
	if !reflect.DeepEqual(chunkAddrs, want) {
		t.Fatalf("unexpected chunk addresses: %v, want %v", chunkAddrs, want)
	}
}

func TestReadMemoryStreamingAbortsOnCallbackError(t *testing.T) {
	mem := newFakeMemory(2000)
	b := New(mem)
	boom := errors.New("boom")

	err := b.ReadMemoryStreaming(context.Background(), 0, 1024, func(addr uint64, data []byte) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error to propagate, got %v", err)
	}
	if len(mem.reads) != 1 {
		t.Fatalf("expected the read to stop after the first chunk, got %d reads", len(mem.reads))
	}
}

func TestWriteMemoryWritesContiguousBytes(t *testing.T) {
	mem := newFakeMemory(100)
	b := New(mem)
	data := []byte{1, 2, 3, 4, 5}

	if err := b.WriteMemory(context.Background(), 10, data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, want := range data {
		if mem.ram[uint64(10+i)] != want {
			t.Fatalf("byte at offset %d mismatch: got %d, want %d", i, mem.ram[uint64(10+i)], want)
		}
	}
}
