package livewatch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mcu-debug/mcu-debug-core/internal/gdbmi"
	"github.com/mcu-debug/mcu-debug-core/internal/variables"
)

func newTestEngine(refresh func(ctx context.Context) ([]*variables.VariableObject, error)) *Engine {
	e := New(gdbmi.New(nil), nil)
	e.refreshFn = refresh
	return e
}

func TestRegisterClientStartsAndStopsThePollLoop(t *testing.T) {
	var ticks int32
	e := newTestEngine(func(ctx context.Context) ([]*variables.VariableObject, error) {
		atomic.AddInt32(&ticks, 1)
		return []*variables.VariableObject{{Name: "x"}}, nil
	})

	ch, unregister := e.RegisterClient(5 * time.Millisecond)

	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("expected at least one update before timing out")
	}

	unregister()

	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel != nil {
		t.Fatal("expected the poll loop to be cancelled once the last client unregisters")
	}

	if _, ok := <-ch; ok {
		t.Fatal("expected the subscriber channel to be closed on unregister")
	}
}

func TestRegisterClientSharesOneLoopAcrossClients(t *testing.T) {
	e := newTestEngine(func(ctx context.Context) ([]*variables.VariableObject, error) {
		return []*variables.VariableObject{{Name: "x"}}, nil
	})

	_, unregisterA := e.RegisterClient(5 * time.Millisecond)
	e.mu.Lock()
	firstCancel := e.cancel
	e.mu.Unlock()

	_, unregisterB := e.RegisterClient(5 * time.Millisecond)
	e.mu.Lock()
	secondCancel := e.cancel
	count := e.clientCount
	e.mu.Unlock()

	if count != 2 {
		t.Fatalf("expected clientCount == 2, got %d", count)
	}
	if firstCancel == nil || secondCancel == nil {
		t.Fatal("expected a live cancel func while clients are registered")
	}

	unregisterA()
	e.mu.Lock()
	stillRunning := e.cancel != nil
	e.mu.Unlock()
	if !stillRunning {
		t.Fatal("expected the poll loop to survive while one client is still registered")
	}

	unregisterB()
}

func TestTickDropsEmptyUpdatesWithoutBroadcasting(t *testing.T) {
	e := newTestEngine(func(ctx context.Context) ([]*variables.VariableObject, error) {
		return nil, nil
	})
	ch, unregister := e.RegisterClient(5 * time.Millisecond)
	defer unregister()

	select {
	case <-ch:
		t.Fatal("expected no update for an empty refresh result")
	case <-time.After(100 * time.Millisecond):
	}
}
