package swap

import (
	"fmt"
	"time"

	"github.com/andres-erbsen/clock"
	"go.uber.org/zap"

	"github.com/wormhole-demo/xswap/internal/metrics"
)

type State int

const (
	StateIdle State = iota
	StateQuoting
	StateQuoted
	StateSourceSwapping
	StateSourceConfirmed
	StateAwaitingAttestation
	StateRelayedComplete
	StateManualRedeeming
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateQuoting:
		return "quoting"
	case StateQuoted:
		return "quoted"
	case StateSourceSwapping:
		return "source-swapping"
	case StateSourceConfirmed:
		return "source-confirmed"
	case StateAwaitingAttestation:
		return "awaiting-attestation"
	case StateRelayedComplete:
		return "relayed-complete"
	case StateManualRedeeming:
		return "manual-redeeming"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further progress can be made without a reset.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

type StateChangeCallback func(from, to State, reason string)

type StateTransition struct {
	From      State
	To        State
	Timestamp time.Time
	Reason    string
}

// stateMachine is guarded by the owning Executor's mutex.
type stateMachine struct {
	currentState State
	clock        clock.Clock
	log          *zap.Logger

	// State history
	transitions []StateTransition
}

func newStateMachine(log *zap.Logger, clk clock.Clock) *stateMachine {
	return &stateMachine{
		currentState: StateIdle,
		clock:        clk,
		log:          log,
		transitions:  make([]StateTransition, 0),
	}
}

func (sm *stateMachine) transitionTo(newState State, reason string) (StateTransition, error) {
	oldState := sm.currentState
	if !isValidTransition(oldState, newState) {
		return StateTransition{}, fmt.Errorf("%w: cannot move from %s to %s", ErrInvalidExecutionState, oldState, newState)
	}

	sm.log.Info("Swap state transition",
		zap.Stringer("from", oldState),
		zap.Stringer("to", newState),
		zap.String("reason", reason))

	transition := StateTransition{
		From:      oldState,
		To:        newState,
		Timestamp: sm.clock.Now(),
		Reason:    reason,
	}
	sm.currentState = newState
	sm.transitions = append(sm.transitions, transition)
	metrics.StateTransitions.WithLabelValues(newState.String()).Inc()
	return transition, nil
}

// Any state may be reset to idle, and any non-terminal state may fail.
func isValidTransition(from, to State) bool {
	switch to {
	case StateIdle:
		return true
	case StateFailed:
		return !from.Terminal()
	}

	switch from {
	case StateIdle:
		return to == StateQuoting || to == StateSourceConfirmed
	case StateQuoting:
		return to == StateQuoted
	case StateQuoted:
		return to == StateQuoting || to == StateSourceSwapping
	case StateSourceSwapping:
		return to == StateSourceConfirmed
	case StateSourceConfirmed:
		return to == StateAwaitingAttestation
	case StateAwaitingAttestation:
		return to == StateRelayedComplete || to == StateManualRedeeming || to == StateComplete
	case StateRelayedComplete, StateManualRedeeming:
		return to == StateComplete
	}
	return false
}

func (sm *stateMachine) history() []StateTransition {
	result := make([]StateTransition, len(sm.transitions))
	copy(result, sm.transitions)
	return result
}
