package micmds

import (
	"testing"

	"github.com/mcu-debug/mcu-debug-core/internal/mi"
)

func TestParseThreadInfoParsesThreadsAndCurrent(t *testing.T) {
	rec := &mi.ResultRecord{Class: mi.ClassDone, Fields: mi.NewTuple()}
	t1 := mi.NewTuple()
	t1.Add("id", mi.Const("1"))
	t1.Add("target-id", mi.Const("Thread 0x1"))
	t1.Add("state", mi.Const("stopped"))
	t2 := mi.NewTuple()
	t2.Add("id", mi.Const("2"))
	t2.Add("target-id", mi.Const("Thread 0x2"))
	t2.Add("state", mi.Const("stopped"))
	rec.Fields.Add("threads", mi.Value{Kind: mi.ListKind, List: []mi.Value{
		{Kind: mi.TupleKind, Tuple: t1},
		{Kind: mi.TupleKind, Tuple: t2},
	}})
	rec.Fields.Add("current-thread-id", mi.Const("1"))

	info, err := parseThreadInfo(rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.CurrentThreadID != "1" || len(info.Threads) != 2 {
		t.Fatalf("unexpected result: %+v", info)
	}
	if info.Threads[1].ID != "2" || info.Threads[1].TargetID != "Thread 0x2" {
		t.Fatalf("unexpected second thread: %+v", info.Threads[1])
	}
}

func TestParseFramesKeepsStackOrder(t *testing.T) {
	rec := &mi.ResultRecord{Class: mi.ClassDone, Fields: mi.NewTuple()}
	f0 := mi.NewTuple()
	f0.Add("level", mi.Const("0"))
	f0.Add("func", mi.Const("main"))
	f0.Add("line", mi.Const("42"))
	f1 := mi.NewTuple()
	f1.Add("level", mi.Const("1"))
	f1.Add("func", mi.Const("HardFault_Handler"))
	f1.Add("line", mi.Const("7"))
	rec.Fields.Add("stack", mi.Value{Kind: mi.ListKind, List: []mi.Value{
		{Kind: mi.TupleKind, Tuple: f0},
		{Kind: mi.TupleKind, Tuple: f1},
	}})

	frames, err := parseFrames(rec, "stack")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frames) != 2 || frames[0].Func != "main" || frames[1].Line != 7 {
		t.Fatalf("unexpected frames: %+v", frames)
	}
}

func TestRequireClassSurfacesErrorMessage(t *testing.T) {
	rec := &mi.ResultRecord{Class: mi.ClassError, Fields: mi.NewTuple()}
	rec.Fields.Add("msg", mi.Const("No symbol table is loaded"))
	err := requireClass(rec, mi.ClassDone)
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestEscapeQuotesHandlesBackslashesAndQuotes(t *testing.T) {
	got := escapeQuotes(`say "hi"\n`)
	want := `say \"hi\"\\n`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestHexRoundTrip(t *testing.T) {
	data := []byte{0x00, 0x01, 0xFE, 0xFF, 0xAB}
	encoded := encodeHex(data)
	if encoded != "0001feffab" {
		t.Fatalf("unexpected encoding: %s", encoded)
	}
	decoded, err := decodeHex(encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(decoded) != string(data) {
		t.Fatalf("round trip mismatch: %v vs %v", decoded, data)
	}
}

func TestDecodeHexRejectsOddLength(t *testing.T) {
	if _, err := decodeHex("abc"); err == nil {
		t.Fatal("expected error for odd-length hex string")
	}
}
