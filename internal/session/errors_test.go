package session

import (
	"errors"
	"fmt"
	"testing"

	"github.com/mcu-debug/mcu-debug-core/internal/mi"
)

func TestErrorIDFor(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"target busy", fmt.Errorf("continue: %w", mi.ErrTargetBusy), errIDNotStopped},
		{"no such variable", mi.ErrNoSuchVariable, errIDFailed},
		{"invalid reference", mi.ErrInvalidReference, errIDFailed},
		{"command timeout", mi.ErrCommandTimeout, errIDFailed},
		{"unclassified", errors.New("boom"), errIDUnknown},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := errorIDFor(c.err); got != c.want {
				t.Errorf("errorIDFor(%v) = %d, want %d", c.err, got, c.want)
			}
		})
	}
}

func TestWrapSessionErr(t *testing.T) {
	got := wrapSessionErr(errors.New("no such variable 3"))
	want := "mcu-debug: no such variable 3"
	if got != want {
		t.Errorf("wrapSessionErr = %q, want %q", got, want)
	}
}

func TestNewResponseAndEvent(t *testing.T) {
	resp := newResponse(7, "next")
	if resp.RequestSeq != 7 || resp.Command != "next" || !resp.Success || resp.Type != "response" {
		t.Errorf("newResponse(7, \"next\") = %+v", resp)
	}
	ev := newEvent("stopped")
	if ev.Event != "stopped" || ev.Type != "event" {
		t.Errorf("newEvent(\"stopped\") = %+v", ev)
	}
}
