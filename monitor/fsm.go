package monitor

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// ErrInvalidTransition is returned by Fire for an event the current state
// does not accept.
var ErrInvalidTransition = errors.New("monitor: invalid transition")

// State is a supervisory state of the device.
type State uint8

const (
	StateSleep State = iota
	StateIdle
	StateNormal
	StateRecord
	StateSendPacket
	StateError
)

var stateNames = [...]string{
	StateSleep:      "sleep",
	StateIdle:       "idle",
	StateNormal:     "normal",
	StateRecord:     "record",
	StateSendPacket: "send-packet",
	StateError:      "error",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", s)
}

// Event drives a transition.
type Event uint8

const (
	EventWake Event = iota
	EventMeasure
	EventStartRecord
	EventStopRecord
	EventSend
	EventSent
	EventFault
	EventReset
	EventSleep
)

var eventNames = [...]string{
	EventWake:        "wake",
	EventMeasure:     "measure",
	EventStartRecord: "start-record",
	EventStopRecord:  "stop-record",
	EventSend:        "send",
	EventSent:        "sent",
	EventFault:       "fault",
	EventReset:       "reset",
	EventSleep:       "sleep",
}

func (e Event) String() string {
	if int(e) < len(eventNames) {
		return eventNames[e]
	}
	return fmt.Sprintf("event(%d)", e)
}

type edge struct {
	from State
	on   Event
}

var transitions = map[edge]State{
	{StateSleep, EventWake}: StateIdle,

	{StateIdle, EventMeasure}: StateNormal,
	{StateIdle, EventFault}:   StateError,
	{StateIdle, EventSleep}:   StateSleep,

	{StateNormal, EventStartRecord}: StateRecord,
	{StateNormal, EventSend}:        StateSendPacket,
	{StateNormal, EventFault}:       StateError,
	{StateNormal, EventSleep}:       StateSleep,

	{StateRecord, EventStopRecord}: StateNormal,
	{StateRecord, EventSend}:       StateSendPacket,
	{StateRecord, EventFault}:      StateError,

	{StateSendPacket, EventSent}:  StateNormal,
	{StateSendPacket, EventFault}: StateError,

	{StateError, EventReset}: StateIdle,
	{StateError, EventSleep}: StateSleep,
}

// Machine is the supervisory state machine. It starts asleep.
type Machine struct {
	mu       sync.Mutex
	current  State
	previous State
	log      *slog.Logger
}

// NewMachine returns a machine in StateSleep. A nil logger discards.
func NewMachine(log *slog.Logger) *Machine {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Machine{current: StateSleep, previous: StateSleep, log: log}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Previous returns the state before the last successful transition.
func (m *Machine) Previous() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.previous
}

// Can reports whether ev is accepted in the current state.
func (m *Machine) Can(ev Event) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := transitions[edge{m.current, ev}]
	return ok
}

// Fire applies ev and returns the new state.
func (m *Machine) Fire(ev Event) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, ok := transitions[edge{m.current, ev}]
	if !ok {
		return m.current, fmt.Errorf("%w: %s in %s", ErrInvalidTransition, ev, m.current)
	}
	m.log.Debug("state transition", "from", m.current.String(), "event", ev.String(), "to", next.String())
	m.previous, m.current = m.current, next
	return next, nil
}
