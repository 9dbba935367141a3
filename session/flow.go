// Package session models the register and login flows as small state
// machines. Each flow carries a unique ID so a GUI layer and the
// structured logs can correlate one physical interaction across
// capture, matching, and ledger writes.
package session

import (
	"fmt"

	"github.com/google/uuid"
)

// State is a flow state. Terminal states end the flow; a new flow is
// required for another attempt.
type State int

const (
	StateIdle State = iota
	StateCapturing
	StateSubmitted
	StateMatching
	StateAuthenticated
	StateRejected
	StateNoFaceDetected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateSubmitted:
		return "submitted"
	case StateMatching:
		return "matching"
	case StateAuthenticated:
		return "authenticated"
	case StateRejected:
		return "rejected"
	case StateNoFaceDetected:
		return "no_face_detected"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Terminal reports whether the state ends its flow.
func (s State) Terminal() bool {
	switch s {
	case StateSubmitted, StateAuthenticated, StateRejected, StateNoFaceDetected:
		return true
	default:
		return false
	}
}

// Kind distinguishes the two flow shapes.
type Kind int

const (
	KindRegister Kind = iota
	KindLogin
)

func (k Kind) String() string {
	if k == KindRegister {
		return "register"
	}
	return "login"
}

// ErrInvalidTransition indicates an attempted state change the flow's
// state machine does not allow.
type ErrInvalidTransition struct {
	Kind Kind
	From State
	To   State
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid %s flow transition: %s -> %s", e.Kind, e.From, e.To)
}

// Flow is one register or login attempt.
//
// Register: idle -> capturing -> submitted.
// Login:    idle -> capturing -> matching -> authenticated | rejected,
// or capturing -> no_face_detected when the provider found no face.
//
// A Flow is owned by a single goroutine for its lifetime; it is not
// safe for concurrent use.
type Flow struct {
	id    string
	kind  Kind
	state State
}

// NewRegister creates a register flow in the idle state.
func NewRegister() *Flow {
	return &Flow{id: uuid.NewString(), kind: KindRegister}
}

// NewLogin creates a login flow in the idle state.
func NewLogin() *Flow {
	return &Flow{id: uuid.NewString(), kind: KindLogin}
}

// ID returns the flow's correlation ID.
func (f *Flow) ID() string { return f.id }

// Kind returns the flow's kind.
func (f *Flow) Kind() Kind { return f.kind }

// State returns the current state.
func (f *Flow) State() State { return f.state }

// Advance moves the flow to the given state, enforcing the flow
// shape. Terminal states accept no further transitions.
func (f *Flow) Advance(to State) error {
	if !f.allowed(to) {
		return &ErrInvalidTransition{Kind: f.kind, From: f.state, To: to}
	}
	f.state = to
	return nil
}

// MustAdvance is Advance for transitions the caller has already
// established as legal. An illegal transition here is a programming
// error, not an input condition, and panics.
func (f *Flow) MustAdvance(to State) {
	if err := f.Advance(to); err != nil {
		panic(err)
	}
}

func (f *Flow) allowed(to State) bool {
	if f.state.Terminal() {
		return false
	}

	switch f.kind {
	case KindRegister:
		switch f.state {
		case StateIdle:
			return to == StateCapturing
		case StateCapturing:
			return to == StateSubmitted
		}
	case KindLogin:
		switch f.state {
		case StateIdle:
			return to == StateCapturing
		case StateCapturing:
			return to == StateMatching || to == StateNoFaceDetected
		case StateMatching:
			return to == StateAuthenticated || to == StateRejected
		}
	}

	return false
}
