package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrTokenNotFound is returned when no access token exists for a code.
	ErrTokenNotFound = errors.New("access token not found")
	// ErrTokenExpired is returned when a token is past its validity window.
	ErrTokenExpired = errors.New("access token expired")
	// ErrTokenUsed is returned when a token has already been consumed.
	ErrTokenUsed = errors.New("access token already used")
	// ErrSessionNotFound is returned when no session exists for a token code.
	ErrSessionNotFound = errors.New("exam session not found")
	// ErrSessionLocked rejects mutations after a violation has been latched
	// or once the session has reached its result.
	ErrSessionLocked = errors.New("exam session is locked")
	// ErrInvalidOption indicates a submitted answer label is not A-E.
	ErrInvalidOption = errors.New("option label not recognized")
	// ErrOutOfRange indicates a question cursor outside the stage quota.
	ErrOutOfRange = errors.New("question index out of range")
	// ErrWrongPhase rejects an action not permitted in the current phase.
	ErrWrongPhase = errors.New("action not allowed in current phase")
	// ErrUnknownSignal is returned for proctor signal kinds the engine
	// does not recognize.
	ErrUnknownSignal = errors.New("unknown proctor signal")
)

// InsufficientBankError reports a stage whose question pool is smaller than
// its quota. No session plan is ever built once any stage is deficient.
type InsufficientBankError struct {
	StageID string
	Have    int
	Need    int
}

func (e *InsufficientBankError) Error() string {
	return fmt.Sprintf("question bank for stage %q has %d questions, need %d", e.StageID, e.Have, e.Need)
}
