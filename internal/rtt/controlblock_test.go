package rtt

import "testing"

func TestMatchIDPadsWithNulBytes(t *testing.T) {
	id := make([]byte, 16)
	copy(id, "SEGGER RTT")
	if !MatchID(id, "SEGGER RTT") {
		t.Fatal("expected padded id to match")
	}
	if MatchID(id, "WRONG") {
		t.Fatal("did not expect a mismatched search string to match")
	}
}

func TestParseCountsAndDescriptor(t *testing.T) {
	counts := EncodeOffset(2)
	counts = append(counts, EncodeOffset(3)...)
	numUp, numDown := ParseCounts(counts)
	if numUp != 2 || numDown != 3 {
		t.Fatalf("got numUp=%d numDown=%d", numUp, numDown)
	}

	var raw []byte
	raw = append(raw, EncodeOffset(0x1000)...) // name_ptr
	raw = append(raw, EncodeOffset(0x2000)...) // buf_ptr
	raw = append(raw, EncodeOffset(1024)...)   // size
	raw = append(raw, EncodeOffset(10)...)     // wr_off
	raw = append(raw, EncodeOffset(4)...)      // rd_off
	raw = append(raw, EncodeOffset(0)...)      // flags
	d := ParseDescriptor(raw)
	if d.NamePtr != 0x1000 || d.BufPtr != 0x2000 || d.Size != 1024 || d.WrOff != 10 || d.RdOff != 4 {
		t.Fatalf("unexpected descriptor: %+v", d)
	}
}

func TestDescriptorAddrLayout(t *testing.T) {
	const cb = 0x2000_0000
	if got := UpDescriptorAddr(cb, 0); got != cb+headerSize {
		t.Fatalf("up[0]: got 0x%x, want 0x%x", got, cb+headerSize)
	}
	if got := UpDescriptorAddr(cb, 1); got != cb+headerSize+descriptorSize {
		t.Fatalf("up[1]: got 0x%x, want 0x%x", got, cb+headerSize+descriptorSize)
	}
	if got := DownDescriptorAddr(cb, 2, 0); got != cb+headerSize+2*descriptorSize {
		t.Fatalf("down[0] with numUp=2: got 0x%x, want 0x%x", got, cb+headerSize+2*descriptorSize)
	}
}
