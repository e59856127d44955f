// Package rtt implements RttEngine: it locates a SEGGER-RTT-compatible
// control block in live target RAM and drains/fills its ring buffers
// across the debug link while the target runs (spec §4.7 "RttEngine",
// §3 "RTT control block").
package rtt

import "encoding/binary"

// headerSize is the fixed control block header: a 16-byte ASCII id plus
// two little-endian uint32 counts (spec §3 "RTT control block").
const headerSize = 24

// descriptorSize is one channel descriptor: name_ptr, buf_ptr, size,
// wr_off, rd_off, flags, each a little-endian uint32.
const descriptorSize = 24

// MaxChannelsPerDirection is the sanity ceiling applied to num_up and
// num_down (spec §4.7 "refuse if either exceeds 16").
const MaxChannelsPerDirection = 16

// MatchID reports whether the first 16 bytes read at cb_addr equal the
// configured search string, NUL-padded on the right (spec §3: "16
// bytes: ASCII ID").
func MatchID(idBytes []byte, search string) bool {
	if len(idBytes) != 16 || len(search) > 16 {
		return false
	}
	for i := 0; i < 16; i++ {
		var want byte
		if i < len(search) {
			want = search[i]
		}
		if idBytes[i] != want {
			return false
		}
	}
	return true
}

// ParseCounts decodes the 8 bytes immediately after the id field into
// (num_up, num_down).
func ParseCounts(b []byte) (numUp, numDown uint32) {
	numUp = binary.LittleEndian.Uint32(b[0:4])
	numDown = binary.LittleEndian.Uint32(b[4:8])
	return
}

// Descriptor is one channel's control structure (spec §3: "24 bytes:
// {name_ptr (4), buf_ptr (4), size (4), wr_off (4), rd_off (4), flags
// (4)}").
type Descriptor struct {
	NamePtr uint32
	BufPtr  uint32
	Size    uint32
	WrOff   uint32
	RdOff   uint32
	Flags   uint32
}

// ParseDescriptor decodes one 24-byte descriptor.
func ParseDescriptor(b []byte) Descriptor {
	return Descriptor{
		NamePtr: binary.LittleEndian.Uint32(b[0:4]),
		BufPtr:  binary.LittleEndian.Uint32(b[4:8]),
		Size:    binary.LittleEndian.Uint32(b[8:12]),
		WrOff:   binary.LittleEndian.Uint32(b[12:16]),
		RdOff:   binary.LittleEndian.Uint32(b[16:20]),
		Flags:   binary.LittleEndian.Uint32(b[20:24]),
	}
}

// EncodeOffset little-endian encodes a single 32-bit offset word, the
// unit rd_off/wr_off are advanced by (spec §4.7 Drain: "writing a single
// 32-bit LE word").
func EncodeOffset(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

// descriptorAddr returns the target address of the descriptor at index
// idx in the unified up-then-down array (spec §4.7: "read descriptor at
// cb_addr + 24 + ch_index*24"; up-channel index i, down-channel index j
// given numUp up channels, continues the same array at numUp+j).
func descriptorAddr(cbAddr uint64, idx int) uint64 {
	return cbAddr + headerSize + uint64(idx)*descriptorSize
}

// UpDescriptorAddr returns the target address of up-channel i's
// descriptor.
func UpDescriptorAddr(cbAddr uint64, i int) uint64 {
	return descriptorAddr(cbAddr, i)
}

// DownDescriptorAddr returns the target address of down-channel j's
// descriptor, given the control block reports numUp up channels.
func DownDescriptorAddr(cbAddr uint64, numUp, j int) uint64 {
	return descriptorAddr(cbAddr, numUp+j)
}
