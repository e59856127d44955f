// Package membridge turns GDB's chunked -data-read/write-memory-bytes
// commands into contiguous byte-region reads and writes (spec §4.6
// "MemoryBridge").
package membridge

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// maxChunkBytes is the largest single -data-read/write-memory-bytes
// request the bridge will ever issue.
const maxChunkBytes = 512

// memoryCommands is the slice of *micmds.Commands the bridge actually
// calls; declared as an interface so tests can exercise the chunking
// logic without a live GdbInstance.
type memoryCommands interface {
	DataReadMemoryBytes(ctx context.Context, addr string, count int) ([]byte, error)
	DataWriteMemoryBytes(ctx context.Context, addr string, data []byte) error
}

// Bridge issues chunked memory reads/writes against a single GdbInstance
// by way of its typed command wrappers.
type Bridge struct {
	cmds memoryCommands
}

func New(cmds memoryCommands) *Bridge {
	return &Bridge{cmds: cmds}
}

// ChunkCallback is invoked once per chunk during a streaming read, before
// the bridge moves on to the next chunk. Returning an error aborts the
// read and the error is propagated to the caller of ReadMemoryStreaming.
type ChunkCallback func(chunkAddr uint64, data []byte) error

// ReadMemory reads exactly length bytes starting at addr, chunked at
// maxChunkBytes. If a chunk returns fewer bytes than requested the read
// stops there and the partial result is returned without an error (spec
// §4.6: "partial read is surfaced to the caller").
func (b *Bridge) ReadMemory(ctx context.Context, addr uint64, length int) ([]byte, error) {
	var out []byte
	err := b.readChunks(ctx, addr, length, func(_ uint64, data []byte) error {
		out = append(out, data...)
		return nil
	})
	return out, err
}

// ReadMemoryStreaming is ReadMemory's streaming form: cb is invoked after
// each chunk is fetched, before the next chunk is requested. This is used
// by the RTT engine to advance a ring-buffer read pointer only after a
// chunk has actually been delivered (spec §4.6 "Optional streaming read").
func (b *Bridge) ReadMemoryStreaming(ctx context.Context, addr uint64, length int, cb ChunkCallback) error {
	return b.readChunks(ctx, addr, length, cb)
}

func (b *Bridge) readChunks(ctx context.Context, addr uint64, length int, cb ChunkCallback) error {
	remaining := length
	cur := addr
	for remaining > 0 {
		want := remaining
		if want > maxChunkBytes {
			want = maxChunkBytes
		}
		data, err := b.cmds.DataReadMemoryBytes(ctx, FormatAddress(cur), want)
		if err != nil {
			return fmt.Errorf("membridge: read at %s: %w", FormatAddress(cur), err)
		}
		if err := cb(cur, data); err != nil {
			return err
		}
		cur += uint64(len(data))
		remaining -= len(data)
		if len(data) < want {
			// Target returned a short chunk: stop here, partial read.
			break
		}
	}
	return nil
}

// WriteMemory writes the given bytes starting at addr in a single
// -data-write-memory-bytes command (spec §4.6: "issues ... once").
func (b *Bridge) WriteMemory(ctx context.Context, addr uint64, data []byte) error {
	if err := b.cmds.DataWriteMemoryBytes(ctx, FormatAddress(addr), data); err != nil {
		return fmt.Errorf("membridge: write at %s: %w", FormatAddress(addr), err)
	}
	return nil
}

// FormatAddress renders addr as "0x" followed by at most 16 lower-case
// hex digits, unpadded (spec §4.6).
func FormatAddress(addr uint64) string {
	return "0x" + strconv.FormatUint(addr, 16)
}

// ParseAddress accepts either a "0x..." hex literal or a plain decimal
// string (spec §4.6).
func ParseAddress(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := strconv.ParseUint(s[2:], 16, 64)
		if err != nil {
			return 0, fmt.Errorf("membridge: invalid hex address %q: %w", s, err)
		}
		return v, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("membridge: invalid address %q: %w", s, err)
	}
	return v, nil
}
