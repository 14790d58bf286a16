package rotation

import "time"

// State is a rotation lifecycle phase.
type State string

const (
	// StateInitiated means the new credential version has been requested
	// but is not yet accepted for authentication.
	StateInitiated State = "initiated"
	// StateDualActive means both old and new secrets authenticate.
	StateDualActive State = "dual_active"
	// StateOldDeprecated means the old secret is marked for retirement but
	// still authenticates until the rotation completes.
	StateOldDeprecated State = "old_deprecated"
	// StateNewActive is the terminal success state: only the new secret
	// authenticates.
	StateNewActive State = "new_active"
	// StateFailed is the terminal failure state.
	StateFailed State = "failed"
)

// Terminal reports whether the state accepts no further transitions.
func (s State) Terminal() bool {
	return s == StateNewActive || s == StateFailed
}

// next is the forward edge of the lifecycle graph. Any non-terminal state
// may additionally transition to StateFailed.
var next = map[State]State{
	StateInitiated:     StateDualActive,
	StateDualActive:    StateOldDeprecated,
	StateOldDeprecated: StateNewActive,
}

// CanTransition reports whether from → to is a permitted edge.
func CanTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	return next[from] == to
}

// Rotation describes one credential rotation. Credential versions are
// referenced by (ClientID, version number) only; the record holds no
// secret material.
type Rotation struct {
	RotationID       string        `json:"rotationId"`
	ClientID         string        `json:"clientId"`
	CurrentState     State         `json:"currentState"`
	TargetState      State         `json:"targetState"`
	OldVersion       int           `json:"oldVersion"`
	NewVersion       int           `json:"newVersion"`
	TransitionPeriod time.Duration `json:"transitionPeriod"`
	Reason           string        `json:"reason,omitempty"`
	StartedAt        time.Time     `json:"startedAt"`
	CompletedAt      time.Time     `json:"completedAt,omitzero"`
	Success          bool          `json:"success"`
	Message          string        `json:"message,omitempty"`
}

// Completed reports whether the rotation reached a terminal state.
func (r Rotation) Completed() bool {
	return r.CurrentState.Terminal()
}
