package gdbmi

import "github.com/mcu-debug/mcu-debug-core/internal/mi"

// EventKind names the reduced async-event set GdbInstance demultiplexes
// onto (spec §4.2 "Async output routing").
type EventKind string

const (
	EventRunning            EventKind = "running"
	EventStopped            EventKind = "stopped"
	EventBreakpointDeleted  EventKind = "breakpoint-deleted"
	EventThreadCreated      EventKind = "thread-created"
	EventThreadExited       EventKind = "thread-exited"
	EventThreadSelected     EventKind = "thread-selected"
	EventThreadGroupExited  EventKind = "thread-group-exited"
	EventConsoleStream      EventKind = "console"
	EventTargetStream       EventKind = "target"
	EventLogStream          EventKind = "log"
	EventExit               EventKind = "exit"
)

// StopReason enumerates the "reason" field of a *stopped record (spec
// §4.2). ReasonEntry is synthesized locally for the first-ever stop with
// no reason field.
type StopReason string

const (
	ReasonBreakpointHit      StopReason = "breakpoint-hit"
	ReasonWatchpointTrigger  StopReason = "watchpoint-trigger"
	ReasonWatchpointScope    StopReason = "watchpoint-scope"
	ReasonEndSteppingRange   StopReason = "end-stepping-range"
	ReasonFunctionFinished   StopReason = "function-finished"
	ReasonSignalReceived     StopReason = "signal-received"
	ReasonExited             StopReason = "exited"
	ReasonExitedNormally     StopReason = "exited-normally"
	ReasonNone               StopReason = "none"
	ReasonEntry              StopReason = "entry"
)

// Event is one item on GdbInstance's async event bus.
type Event struct {
	Kind   EventKind
	Reason StopReason   // only meaningful when Kind == EventStopped
	Record mi.Record    // the raw record that produced this event
	Text   string       // only meaningful for stream events
}
