package connection

import (
	"time"

	"github.com/rickgao/pricestream/internal/model"
)

// EventKind identifies an input to the state machine.
type EventKind int

const (
	EventStart EventKind = iota // Caller asked for the feed
	EventStop                   // Caller closed the feed
	EventOpen                   // Source finished opening
	EventError                  // Source reported a transport failure
	EventClose                  // Source stopped producing ticks
	EventRetry                  // Retry timer fired
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventStop:
		return "stop"
	case EventOpen:
		return "open"
	case EventError:
		return "error"
	case EventClose:
		return "close"
	case EventRetry:
		return "retry"
	default:
		return "unknown"
	}
}

// Event is one input to Machine.HandleEvent.
//
// Source events carry the generation of the instance that produced them.
// Retry events carry the id of the timer that fired.
type Event struct {
	Kind       EventKind
	Generation uint64
	Err        error
}

// ActionKind identifies an effect requested by the state machine.
type ActionKind int

const (
	ActionDial          ActionKind = iota // Create and start a new source instance
	ActionTeardown                        // Close the instance with the given generation
	ActionScheduleRetry                   // Arm a retry timer
	ActionCancelRetry                     // Disarm the pending retry timer
	ActionPublishStatus                   // Publish a status change
)

func (k ActionKind) String() string {
	switch k {
	case ActionDial:
		return "dial"
	case ActionTeardown:
		return "teardown"
	case ActionScheduleRetry:
		return "schedule_retry"
	case ActionCancelRetry:
		return "cancel_retry"
	case ActionPublishStatus:
		return "publish_status"
	default:
		return "unknown"
	}
}

// Action is one effect returned by Machine.HandleEvent. Actions must be
// executed in order.
type Action struct {
	Kind       ActionKind
	Generation uint64                 // Dial, Teardown: source generation. ScheduleRetry: retry id.
	Delay      time.Duration          // ScheduleRetry only
	Status     model.ConnectionStatus // PublishStatus only
}

// Machine is the connection lifecycle state machine. It performs no I/O and
// is not safe for concurrent use; Supervisor feeds it from a single goroutine.
type Machine struct {
	initialBackoff time.Duration
	maxBackoff     time.Duration

	currentState model.ConnectionStatus
	shutdown     bool // Closed by the caller; suppresses reconnects
	initialized  bool // Start accepted and not yet stopped
	backoff      time.Duration

	generation uint64 // Generation of the most recent source instance
	live       bool   // The instance with generation is still up

	retryID      uint64
	retryPending bool
}

// NewMachine creates a machine in the disconnected state.
// Non-positive durations fall back to DefaultSupervisorConfig values.
func NewMachine(initialBackoff, maxBackoff time.Duration) *Machine {
	defaults := DefaultSupervisorConfig()
	if initialBackoff <= 0 {
		initialBackoff = defaults.InitialBackoff
	}
	if maxBackoff < initialBackoff {
		maxBackoff = initialBackoff
	}

	return &Machine{
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
		currentState:   model.StatusDisconnected,
		backoff:        initialBackoff,
	}
}

// State returns the current connection status.
func (m *Machine) State() model.ConnectionStatus {
	return m.currentState
}

// Generation returns the generation of the most recent source instance.
func (m *Machine) Generation() uint64 {
	return m.generation
}

// NextBackoff returns the delay the next retry would use.
func (m *Machine) NextBackoff() time.Duration {
	return m.backoff
}

// HandleEvent applies one event and returns the actions to execute.
func (m *Machine) HandleEvent(ev Event) []Action {
	switch ev.Kind {
	case EventStart:
		return m.start()
	case EventStop:
		return m.stop()
	case EventOpen:
		return m.open(ev.Generation)
	case EventError, EventClose:
		return m.fail(ev.Generation)
	case EventRetry:
		return m.retry(ev.Generation)
	default:
		return nil
	}
}

func (m *Machine) start() []Action {
	if m.initialized {
		return nil
	}

	m.shutdown = false
	m.initialized = true
	m.backoff = m.initialBackoff

	return append(m.dial(), m.transition(model.StatusConnecting)...)
}

func (m *Machine) stop() []Action {
	if !m.initialized {
		return nil
	}

	m.shutdown = true
	m.initialized = false

	var actions []Action
	if m.retryPending {
		m.retryPending = false
		actions = append(actions, Action{Kind: ActionCancelRetry})
	}
	if m.live {
		m.live = false
		actions = append(actions, Action{Kind: ActionTeardown, Generation: m.generation})
	}

	return append(actions, m.transition(model.StatusDisconnected)...)
}

func (m *Machine) open(gen uint64) []Action {
	if !m.current(gen) || m.currentState != model.StatusConnecting {
		return nil
	}

	m.backoff = m.initialBackoff
	return m.transition(model.StatusConnected)
}

func (m *Machine) fail(gen uint64) []Action {
	if m.shutdown || !m.current(gen) {
		return nil
	}
	if m.currentState != model.StatusConnecting && m.currentState != model.StatusConnected {
		return nil
	}

	m.live = false
	delay := m.backoff
	m.backoff *= 2
	if m.backoff > m.maxBackoff {
		m.backoff = m.maxBackoff
	}

	m.retryID++
	m.retryPending = true

	actions := []Action{
		{Kind: ActionTeardown, Generation: gen},
		{Kind: ActionScheduleRetry, Generation: m.retryID, Delay: delay},
	}
	return append(actions, m.transition(model.StatusReconnecting)...)
}

func (m *Machine) retry(id uint64) []Action {
	if m.shutdown || !m.retryPending || id != m.retryID {
		return nil
	}
	if m.currentState != model.StatusReconnecting {
		return nil
	}

	m.retryPending = false
	return append(m.dial(), m.transition(model.StatusConnecting)...)
}

func (m *Machine) dial() []Action {
	m.generation++
	m.live = true
	return []Action{{Kind: ActionDial, Generation: m.generation}}
}

func (m *Machine) current(gen uint64) bool {
	return m.live && gen == m.generation
}

func (m *Machine) transition(to model.ConnectionStatus) []Action {
	if m.currentState == to {
		return nil
	}
	m.currentState = to
	return []Action{{Kind: ActionPublishStatus, Status: to}}
}
