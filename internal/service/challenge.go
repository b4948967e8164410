package service

import "github.com/boddenberg/atm-terminal-go/internal/domain"

// MaxPinAttempts is the number of wrong PINs that locks a session.
const MaxPinAttempts = 3

// ChallengeState is the state of a session's PIN challenge.
type ChallengeState int

const (
	StateIdle ChallengeState = iota
	StateAwaitingPin
	StateRetrying
	StateLockedOut
)

func (s ChallengeState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingPin:
		return "awaiting_pin"
	case StateRetrying:
		return "retrying"
	case StateLockedOut:
		return "locked_out"
	}
	return "unknown"
}

// PinChallenge gates one staged operation behind PIN re-verification.
// It is not safe for concurrent use; Session serializes access.
type PinChallenge struct {
	state    ChallengeState
	pending  *domain.PendingOperation
	attempts int
}

// State returns the current state.
func (c *PinChallenge) State() ChallengeState { return c.state }

// Pending returns a copy of the staged operation, or nil.
func (c *PinChallenge) Pending() *domain.PendingOperation {
	if c.pending == nil {
		return nil
	}
	cp := *c.pending
	cp.NoteBreakdown = c.pending.NoteBreakdown.Clone()
	return &cp
}

// AttemptsRemaining returns how many PINs may still be tried.
func (c *PinChallenge) AttemptsRemaining() int {
	return MaxPinAttempts - c.attempts
}

func (c *PinChallenge) awaiting() bool {
	return c.state == StateAwaitingPin || c.state == StateRetrying
}

// Stage starts a new challenge for op. Only one operation may be staged at a time.
func (c *PinChallenge) Stage(op domain.PendingOperation) error {
	switch {
	case c.state == StateLockedOut:
		return &domain.ErrSessionClosed{}
	case c.awaiting():
		return &domain.ErrOperationPending{Kind: c.pending.Kind}
	}
	c.pending = &op
	c.attempts = 0
	c.state = StateAwaitingPin
	return nil
}

// Submit evaluates verify against the staged operation. verify is called only
// while a challenge is open, so no PIN is checked after lockout. On success the
// staged operation is returned and the challenge resets to idle.
func (c *PinChallenge) Submit(verify func() bool) (*domain.PendingOperation, error) {
	switch {
	case c.state == StateLockedOut:
		return nil, &domain.ErrSessionClosed{}
	case !c.awaiting():
		return nil, &domain.ErrNoPendingOperation{}
	}

	if verify() {
		op := c.pending
		c.reset()
		return op, nil
	}

	c.attempts++
	if c.attempts >= MaxPinAttempts {
		c.pending = nil
		c.state = StateLockedOut
		return nil, &domain.ErrLockedOut{}
	}
	c.state = StateRetrying
	return nil, &domain.ErrPinMismatch{AttemptsRemaining: c.AttemptsRemaining()}
}

// Cancel discards the staged operation without penalty.
func (c *PinChallenge) Cancel() error {
	switch {
	case c.state == StateLockedOut:
		return &domain.ErrSessionClosed{}
	case !c.awaiting():
		return &domain.ErrNoPendingOperation{}
	}
	c.reset()
	return nil
}

func (c *PinChallenge) reset() {
	c.pending = nil
	c.attempts = 0
	c.state = StateIdle
}
