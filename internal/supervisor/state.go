package supervisor

import "github.com/rmckenny/shadowsync/internal/readiness"

// State is the supervisor's position in the connectivity stack. It is
// always derived from the readiness flags, never stored, so a flag
// cleared by another goroutine (a disconnect callback, publish triage)
// moves the machine on its next decision.
type State int

const (
	// StateLinkDown means no layer is up.
	StateLinkDown State = iota

	// StateLinkUp means the link is attached but no data path exists.
	StateLinkUp

	// StateBearerUp means a data path exists but no broker session.
	StateBearerUp

	// StateSessionUp means the broker session is live but the topic set
	// is not yet subscribed.
	StateSessionUp

	// StateSubscribed is the steady operating state.
	StateSubscribed
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateLinkDown:
		return "link_down"
	case StateLinkUp:
		return "link_up"
	case StateBearerUp:
		return "bearer_up"
	case StateSessionUp:
		return "session_up"
	case StateSubscribed:
		return "subscribed"
	default:
		return "invalid"
	}
}

// Action is the single step the supervisor should take next.
type Action int

const (
	// ActionWait means a retry delay has not elapsed yet.
	ActionWait Action = iota

	// ActionBringUpLink attempts link attachment.
	ActionBringUpLink

	// ActionBringUpBearer attempts data-path activation.
	ActionBringUpBearer

	// ActionConnectSession attempts the broker connection.
	ActionConnectSession

	// ActionSubscribe subscribes the steady-state topic set.
	ActionSubscribe

	// ActionRevalidate is the steady-state liveness check.
	ActionRevalidate
)

// String returns the action name for logging.
func (a Action) String() string {
	switch a {
	case ActionWait:
		return "wait"
	case ActionBringUpLink:
		return "bring_up_link"
	case ActionBringUpBearer:
		return "bring_up_bearer"
	case ActionConnectSession:
		return "connect_session"
	case ActionSubscribe:
		return "subscribe"
	case ActionRevalidate:
		return "revalidate"
	default:
		return "invalid"
	}
}

// stateFromFlags maps a flag snapshot to the highest state consistent
// with the flags that are true, checking from the bottom of the stack.
// A cleared lower flag therefore dominates regardless of what is still
// set above it.
func stateFromFlags(snap readiness.Flag) State {
	switch {
	case snap&readiness.Link == 0:
		return StateLinkDown
	case snap&readiness.Bearer == 0:
		return StateLinkUp
	case snap&readiness.Session == 0:
		return StateBearerUp
	case snap&readiness.Subscribed == 0:
		return StateSessionUp
	default:
		return StateSubscribed
	}
}

// actionForState maps a derived state to the step that advances it.
func actionForState(s State) Action {
	switch s {
	case StateLinkDown:
		return ActionBringUpLink
	case StateLinkUp:
		return ActionBringUpBearer
	case StateBearerUp:
		return ActionConnectSession
	case StateSessionUp:
		return ActionSubscribe
	default:
		return ActionRevalidate
	}
}
