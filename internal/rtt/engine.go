package rtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mcu-debug/mcu-debug-core/internal/gdbmi"
	"github.com/mcu-debug/mcu-debug-core/internal/membridge"
)

// memoryBridge is the slice of *membridge.Bridge the engine calls,
// declared as an interface so tests can drive the search/drain logic
// without a live GdbInstance.
type memoryBridge interface {
	ReadMemory(ctx context.Context, addr uint64, length int) ([]byte, error)
	ReadMemoryStreaming(ctx context.Context, addr uint64, length int, cb membridge.ChunkCallback) error
	WriteMemory(ctx context.Context, addr uint64, data []byte) error
}

// targetLifecycle is the slice of *gdbmi.GdbInstance the engine calls to
// gate polling on the main target's run state (spec §4.7 "Lifecycle").
type targetLifecycle interface {
	Status() gdbmi.Status
	Subscribe() (<-chan gdbmi.Event, func())
}

// PortAllocator is the slice of internal/portalloc.PortAllocator the
// engine calls to bind one TCP listener per configured channel.
type PortAllocator interface {
	Allocate(count int, consecutive bool) (ports []int, release func(), err error)
}

// Engine drains and fills a SEGGER-RTT-compatible control block on a
// second, LiveWatch-owned GDB instance while the main target runs (spec
// §4.7).
type Engine struct {
	mem   memoryBridge
	life  targetLifecycle
	ports PortAllocator
	logf  func(format string, args ...interface{})
	cfg   Config

	mu       sync.Mutex
	phase    Phase
	numUp    int
	numDown  int
	up       []*Channel
	down     []*Channel
	lastErr  error
	releaseP func()

	running         int32 // atomic bool, gate on whether polling should drain
	postStopDrained bool  // true once the post-stop flush has run, until running resumes
	cancel          context.CancelFunc
	done            chan struct{}
}

// New constructs an Engine. logf may be nil (messages are discarded).
func New(mem memoryBridge, life targetLifecycle, ports PortAllocator, cfg Config, logf func(string, ...interface{})) *Engine {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &Engine{
		mem:   mem,
		life:  life,
		ports: ports,
		cfg:   cfg,
		logf:  logf,
		phase: PhaseSearching,
	}
}

// Phase reports the engine's current lifecycle phase.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// LastError returns the error that caused the engine to abort, if any.
func (e *Engine) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// Start begins the search/drain loop in the background and returns
// immediately; call Dispose to stop it.
func (e *Engine) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})

	lifeEvents, cancelSub := e.life.Subscribe()
	atomic.StoreInt32(&e.running, boolToInt32(e.life.Status() == gdbmi.StatusRunning))

	go e.lifecycleLoop(ctx, lifeEvents)
	go e.pollLoop(ctx, cancelSub)
}

func boolToInt32(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// lifecycleLoop mirrors the main target's running/stopped transitions
// into the atomic running flag (spec §4.7 "on running, resume polling
// loop; on stopped, drain once more and pause").
func (e *Engine) lifecycleLoop(ctx context.Context, events <-chan gdbmi.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Kind {
			case gdbmi.EventRunning:
				atomic.StoreInt32(&e.running, 1)
				e.mu.Lock()
				e.postStopDrained = false
				e.mu.Unlock()
			case gdbmi.EventStopped:
				atomic.StoreInt32(&e.running, 0)
			case gdbmi.EventExit:
				e.abort("target GDB instance exited")
				return
			}
		}
	}
}

// pollLoop is the single search/drain ticker (spec §4.7 Phases).
func (e *Engine) pollLoop(ctx context.Context, cancelSub func()) {
	defer close(e.done)
	defer cancelSub()

	ticker := time.NewTicker(e.cfg.pollInterval())
	defer ticker.Stop()

	searchAttempts := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		switch e.Phase() {
		case PhaseSearching:
			found, err := e.trySearch(ctx)
			if err != nil {
				if abortErr, ok := err.(*AbortError); ok {
					e.abort(abortErr.Reason)
					return
				}
				e.logf("rtt: search attempt failed: %v", err)
				continue
			}
			if !found {
				searchAttempts++
				if e.cfg.SearchRetryBudget > 0 && searchAttempts >= e.cfg.SearchRetryBudget {
					e.abort("control block not found within the retry budget")
					return
				}
				continue
			}
			if err := e.setupChannels(ctx); err != nil {
				e.abort(err.Error())
				return
			}
		case PhaseDraining:
			if atomic.LoadInt32(&e.running) == 0 {
				// Drain once more to flush whatever arrived right before
				// the stop, then idle until running resumes rather than
				// hammering the gdbserver while the target is halted.
				e.mu.Lock()
				already := e.postStopDrained
				e.postStopDrained = true
				e.mu.Unlock()
				if already {
					continue
				}
			}
			e.drainOnce(ctx)
		case PhaseAborted, PhaseDisposed:
			return
		}
	}
}

// trySearch performs one control-block search attempt (spec §4.7 Phase
// 1 "Search").
func (e *Engine) trySearch(ctx context.Context) (bool, error) {
	id, err := e.mem.ReadMemory(ctx, e.cfg.CBAddr, 16)
	if err != nil {
		return false, err
	}
	if len(id) != 16 || !MatchID(id, e.cfg.searchString()) {
		return false, nil
	}

	counts, err := e.mem.ReadMemory(ctx, e.cfg.CBAddr+16, 8)
	if err != nil {
		return false, err
	}
	if len(counts) != 8 {
		return false, nil
	}
	numUp, numDown := ParseCounts(counts)
	if numUp > MaxChannelsPerDirection || numDown > MaxChannelsPerDirection {
		return false, &AbortError{Reason: fmt.Sprintf("implausible channel counts num_up=%d num_down=%d", numUp, numDown)}
	}

	e.mu.Lock()
	e.numUp = int(numUp)
	e.numDown = int(numDown)
	e.mu.Unlock()
	return true, nil
}

// setupChannels reads every channel's initial descriptor, allocates one
// TCP listener per channel, and transitions to Drain.
func (e *Engine) setupChannels(ctx context.Context) error {
	e.mu.Lock()
	numUp, numDown := e.numUp, e.numDown
	e.mu.Unlock()

	total := numUp + numDown
	var ports []int
	var release func()
	if total > 0 {
		var err error
		ports, release, err = e.ports.Allocate(total, true)
		if err != nil {
			return fmt.Errorf("rtt: port allocation failed: %w", err)
		}
	}

	up := make([]*Channel, numUp)
	down := make([]*Channel, numDown)
	for i := 0; i < numUp; i++ {
		ch, err := e.loadChannel(ctx, i, DirectionUp, UpDescriptorAddr(e.cfg.CBAddr, i))
		if err != nil {
			if release != nil {
				release()
			}
			return err
		}
		if err := ch.listen(ports[i], e.logf); err != nil {
			if release != nil {
				release()
			}
			return fmt.Errorf("rtt: channel %d listen failed: %w", i, err)
		}
		e.maybeStartDecoder(ch)
		up[i] = ch
	}
	for j := 0; j < numDown; j++ {
		ch, err := e.loadChannel(ctx, j, DirectionDown, DownDescriptorAddr(e.cfg.CBAddr, numUp, j))
		if err != nil {
			if release != nil {
				release()
			}
			return err
		}
		if err := ch.listen(ports[numUp+j], e.logf); err != nil {
			if release != nil {
				release()
			}
			return fmt.Errorf("rtt: down-channel %d listen failed: %w", j, err)
		}
		down[j] = ch
	}

	e.mu.Lock()
	e.up = up
	e.down = down
	e.releaseP = release
	e.phase = PhaseDraining
	e.mu.Unlock()
	return nil
}

func (e *Engine) loadChannel(ctx context.Context, index int, dir Direction, descAddr uint64) (*Channel, error) {
	raw, err := e.mem.ReadMemory(ctx, descAddr, descriptorSize)
	if err != nil {
		return nil, fmt.Errorf("rtt: reading descriptor at 0x%x: %w", descAddr, err)
	}
	if len(raw) != descriptorSize {
		return nil, &AbortError{Reason: fmt.Sprintf("short descriptor read at 0x%x", descAddr)}
	}
	desc := ParseDescriptor(raw)
	ch := newChannel(index, dir, channelName(dir, index), descAddr)
	ch.Descriptor = desc
	ch.bufAddr = uint64(desc.BufPtr)
	return ch, nil
}

func channelName(dir Direction, index int) string {
	if dir == DirectionUp {
		return fmt.Sprintf("up%d", index)
	}
	return fmt.Sprintf("down%d", index)
}

func (e *Engine) maybeStartDecoder(ch *Channel) {
	argv := e.cfg.PreDecoders[ch.Name]
	if len(argv) == 0 {
		return
	}
	if err := ch.startDecoder(argv, func(b []byte) { ch.broadcast(b, e.logf) }, e.logf); err != nil {
		e.logf("rtt: channel %q pre-decoder spawn failed: %v", ch.Name, err)
	}
}

// drainOnce performs one up-channel-read, down-channel-write pass across
// every configured channel, each channel's drain running concurrently
// and joined before the tick ends (spec §4.7 Phase 2 "Drain"; spec §5
// "at most one outstanding drain per channel per polling tick").
func (e *Engine) drainOnce(ctx context.Context) {
	e.mu.Lock()
	up := append([]*Channel(nil), e.up...)
	down := append([]*Channel(nil), e.down...)
	e.mu.Unlock()

	var g errgroup.Group
	for _, ch := range up {
		ch := ch
		g.Go(func() error {
			if err := e.drainUp(ctx, ch); err != nil {
				e.logf("rtt: channel %q drain failed: %v", ch.Name, err)
			}
			return nil
		})
	}
	for _, ch := range down {
		ch := ch
		g.Go(func() error {
			if err := e.fillDown(ctx, ch); err != nil {
				e.logf("rtt: channel %q fill failed: %v", ch.Name, err)
			}
			return nil
		})
	}
	g.Wait()
}

// drainUp reads descriptor's current offsets, streams the available
// region(s) to the host, and advances rd_off after each chunk actually
// lands (spec §4.7 Drain up-channel; spec §5 "advances rd_off only after
// the bytes have been successfully delivered").
func (e *Engine) drainUp(ctx context.Context, ch *Channel) error {
	raw, err := e.mem.ReadMemory(ctx, ch.descAddr, descriptorSize)
	if err != nil {
		return err
	}
	if len(raw) != descriptorSize {
		return nil
	}
	desc := ParseDescriptor(raw)
	if desc.Size == 0 {
		return nil
	}

	regions := UpRegions(desc.RdOff, desc.WrOff, desc.Size)
	rd := desc.RdOff
	for _, region := range regions {
		start, end := region[0], region[1]
		length := int(end - start)
		if length <= 0 {
			continue
		}
		addr := ch.bufAddr + uint64(start)
		err := e.mem.ReadMemoryStreaming(ctx, addr, length, func(_ uint64, data []byte) error {
			ch.writeThrough(data, e.logf)
			rd = AdvanceOffset(rd, uint32(len(data)), desc.Size)
			return e.mem.WriteMemory(ctx, ch.descAddr+16, EncodeOffset(rd))
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// fillDown writes any bytes queued from down-channel clients into the
// target's ring buffer, advancing wr_off only after the write lands
// (spec §4.7 Drain down-channel; spec §5 "advances wr_off only after the
// bytes have been fully written").
func (e *Engine) fillDown(ctx context.Context, ch *Channel) error {
	pending := ch.takePending()
	if len(pending) == 0 {
		return nil
	}

	raw, err := e.mem.ReadMemory(ctx, ch.descAddr, descriptorSize)
	if err != nil {
		return err
	}
	if len(raw) != descriptorSize {
		return nil
	}
	desc := ParseDescriptor(raw)
	if desc.Size == 0 {
		return nil
	}

	free := DownFreeSpace(desc.WrOff, desc.RdOff, desc.Size)
	if free == 0 {
		return nil
	}
	if uint32(len(pending)) > free {
		pending = pending[:free]
	}

	wr := desc.WrOff
	for _, region := range DownWriteRegions(desc.WrOff, desc.Size, uint32(len(pending))) {
		start, end := region[0], region[1]
		chunk := pending[:end-start]
		pending = pending[end-start:]
		if err := e.mem.WriteMemory(ctx, ch.bufAddr+uint64(start), chunk); err != nil {
			return err
		}
		wr = AdvanceOffset(wr, end-start, desc.Size)
	}
	return e.mem.WriteMemory(ctx, ch.descAddr+12, EncodeOffset(wr))
}

func (e *Engine) abort(reason string) {
	e.mu.Lock()
	if e.phase == PhaseAborted || e.phase == PhaseDisposed {
		e.mu.Unlock()
		return
	}
	e.phase = PhaseAborted
	e.lastErr = &AbortError{Reason: reason}
	up, down, release := e.up, e.down, e.releaseP
	e.mu.Unlock()

	for _, ch := range up {
		ch.close()
	}
	for _, ch := range down {
		ch.close()
	}
	if release != nil {
		release()
	}
	e.logf("rtt: engine aborted: %s", reason)
}

// Dispose stops polling, closes every channel's listener/clients, and
// kills any pre-decoder subprocesses (spec §4.7 "dispose()").
func (e *Engine) Dispose() {
	e.mu.Lock()
	if e.phase == PhaseDisposed {
		e.mu.Unlock()
		return
	}
	e.phase = PhaseDisposed
	up, down, release := e.up, e.down, e.releaseP
	cancel := e.cancel
	done := e.done
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	for _, ch := range up {
		ch.close()
	}
	for _, ch := range down {
		ch.close()
	}
	if release != nil {
		release()
	}
}
