package variables

import "testing"

func TestIsVariableHandle(t *testing.T) {
	if IsVariableHandle(5) {
		t.Fatal("plain handle should not be a variable handle")
	}
	if !IsVariableHandle(5 | VariableTypeMask) {
		t.Fatal("masked handle should be a variable handle")
	}
}

func TestFrameReferenceEncodeDecodeRoundTrips(t *testing.T) {
	cases := []struct {
		thread, frame uint32
		scope         Scope
	}{
		{0, 0, 0},
		{1, 2, ScopeLocal},
		{1, 2, ScopeRegisters},
		{1<<25 - 1, 1<<24 - 1, Scope(15)},
		{42, 7, ScopeWatch},
		{1000000, 65535, ScopeGlobal},
	}
	for _, c := range cases {
		ref := EncodeFrameReference(c.thread, c.frame, c.scope)
		gotThread, gotFrame, gotScope := DecodeFrameReference(ref)
		if gotThread != c.thread || gotFrame != c.frame || gotScope != c.scope {
			t.Fatalf("decode(encode(%d,%d,%d)) = (%d,%d,%d)", c.thread, c.frame, c.scope, gotThread, gotFrame, gotScope)
		}
	}
}

func TestFrameKeyHandleIsStableAndDistinct(t *testing.T) {
	a := FrameKey{ThreadID: 1, FrameID: 2, Scope: ScopeLocal}
	b := FrameKey{ThreadID: 1, FrameID: 2, Scope: ScopeLocal}
	c := FrameKey{ThreadID: 1, FrameID: 2, Scope: ScopeRegisters}

	if a.Handle() != b.Handle() {
		t.Fatalf("equal tuples should encode identically: %d vs %d", a.Handle(), b.Handle())
	}
	if a.Handle() == c.Handle() {
		t.Fatalf("different scopes should not collide: %d", a.Handle())
	}
	if DecodeFrameKey(a.Handle()) != a {
		t.Fatalf("DecodeFrameKey(a.Handle()) = %+v, want %+v", DecodeFrameKey(a.Handle()), a)
	}
}

func TestFrameReferenceNeverSetsVariableTypeMask(t *testing.T) {
	for s := ScopeGlobal; s <= ScopeWatch; s++ {
		ref := EncodeFrameReference(1<<25-1, 1<<24-1, s)
		if IsVariableHandle(ref) {
			t.Fatalf("a well-formed frame scope handle (scope=%d) must never look like a variable handle", s)
		}
	}
}

func TestHandleRegistryAddObjectIsIdempotentByKey(t *testing.T) {
	r := NewHandleRegistry()
	h1 := r.AddObject("k1", "v1")
	h2 := r.AddObject("k1", "v1-updated")
	if h1 != h2 {
		t.Fatalf("same key should return the same handle: %d vs %d", h1, h2)
	}
	obj, ok := r.Lookup(h1)
	if !ok || obj != "v1-updated" {
		t.Fatalf("expected updated object, got %v", obj)
	}
}

func TestHandleRegistryHandlesAreMonotonicAndNeverZero(t *testing.T) {
	r := NewHandleRegistry()
	h1 := r.AddObject("a", 1)
	h2 := r.AddObject("b", 2)
	if h1 == 0 || h2 == 0 {
		t.Fatal("handle 0 is reserved for \"no reference\"")
	}
	if h2 <= h1 {
		t.Fatalf("expected monotonically increasing handles, got %d then %d", h1, h2)
	}
}

func TestHandleRegistryRelease(t *testing.T) {
	r := NewHandleRegistry()
	h := r.AddObject("a", 1)
	r.Release(h)
	if _, ok := r.Lookup(h); ok {
		t.Fatal("expected handle to be gone after release")
	}
	if _, ok := r.HandleFor("a"); ok {
		t.Fatal("expected key to be gone after release")
	}
	// Re-adding the same key after release must mint a fresh handle.
	h2 := r.AddObject("a", 1)
	if h2 == h {
		t.Fatal("expected a new handle after release, got the same one back")
	}
}
