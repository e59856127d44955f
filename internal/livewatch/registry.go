package livewatch

import (
	"context"
	"time"

	"github.com/mcu-debug/mcu-debug-core/internal/variables"
)

// RegisterClient backs the "registerClient" custom request: it arms the
// periodic -var-update refresh loop on the first caller and tears it down
// once every registered client has unregistered, so an idle editor with no
// Live Watch panel open generates no continuous GDB/MI traffic (spec §6
// "registerClient"). pollInterval <= 0 falls back to the engine default.
// The returned channel carries each tick's changed-variable list; the
// caller must drain it and call the returned func when done.
func (e *Engine) RegisterClient(pollInterval time.Duration) (<-chan []*variables.VariableObject, func()) {
	e.mu.Lock()
	id := e.nextSubID
	e.nextSubID++
	ch := make(chan []*variables.VariableObject, 8)
	e.subs[id] = ch
	e.clientCount++
	first := e.clientCount == 1
	if first {
		if pollInterval > 0 {
			e.pollInterval = pollInterval
		}
		ctx, cancel := context.WithCancel(context.Background())
		e.cancel = cancel
		go e.pollLoop(ctx)
	}
	e.mu.Unlock()

	return ch, func() { e.unregister(id) }
}

func (e *Engine) unregister(id int) {
	e.mu.Lock()
	if ch, ok := e.subs[id]; ok {
		delete(e.subs, id)
		close(ch)
		e.clientCount--
	}
	var cancel context.CancelFunc
	if e.clientCount == 0 && e.cancel != nil {
		cancel = e.cancel
		e.cancel = nil
	}
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (e *Engine) currentInterval() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pollInterval
}

func (e *Engine) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(e.currentInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

func (e *Engine) tick(ctx context.Context) {
	updated, err := e.refreshFn(ctx)
	if err != nil {
		e.logf("livewatch: refresh failed: %v", err)
		return
	}
	if len(updated) == 0 {
		return
	}

	e.mu.Lock()
	chans := make([]chan []*variables.VariableObject, 0, len(e.subs))
	for _, c := range e.subs {
		chans = append(chans, c)
	}
	e.mu.Unlock()

	for _, c := range chans {
		select {
		case c <- updated:
		default:
			e.logf("livewatch: subscriber channel full, dropping update")
		}
	}
}
