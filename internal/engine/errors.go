package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/intents/internal/intent"
	"github.com/roach88/intents/internal/settlement"
)

// Queue-time rejection causes. They are wrapped by InvalidIntentError.
var (
	ErrUnknownSession  = errors.New("unknown session")
	ErrSessionEnded    = errors.New("session ended")
	ErrSessionHalted   = errors.New("session halted")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrKindMismatch    = errors.New("intent kind not valid for session")
	ErrMalformed       = intent.ErrMalformed
)

// ErrNonDeterministic is returned when a replay settles an intent
// differently from the recorded log.
var ErrNonDeterministic = errors.New("replay diverged from settlement log")

// ErrorCode categorizes engine errors for transports and the CLI.
type ErrorCode string

const (
	// ErrCodeInvalidIntent: the intent was refused before it got a seq.
	ErrCodeInvalidIntent ErrorCode = "INVALID_INTENT"

	// ErrCodeFatal: a tick broke a world invariant and the session halted.
	ErrCodeFatal ErrorCode = "FATAL"

	// ErrCodeNonDeterministic: replay did not reproduce the log.
	ErrCodeNonDeterministic ErrorCode = "NON_DETERMINISTIC"
)

// InvalidIntentError is returned synchronously by Submit when an intent
// cannot be queued. The caller sees it immediately; nothing is logged.
type InvalidIntentError struct {
	Code      ErrorCode
	SessionID string
	ActorID   string
	Kind      intent.Kind
	Err       error
}

func (e *InvalidIntentError) Error() string {
	return fmt.Sprintf("%s: %s %s by %s: %v", e.Code, e.SessionID, e.Kind, e.ActorID, e.Err)
}

func (e *InvalidIntentError) Unwrap() error {
	return e.Err
}

func invalidIntent(in intent.Intent, err error) *InvalidIntentError {
	return &InvalidIntentError{
		Code:      ErrCodeInvalidIntent,
		SessionID: in.SessionID,
		ActorID:   in.ActorID,
		Kind:      in.Kind,
		Err:       err,
	}
}

// IsInvalidIntent returns true if err is a queue-time rejection.
// Uses errors.As to handle wrapped errors.
func IsInvalidIntent(err error) bool {
	var ie *InvalidIntentError
	return errors.As(err, &ie)
}

// FatalError reports a halted session. Only the offending session stops;
// the rest keep ticking.
type FatalError struct {
	SessionID string
	Tick      int64
	Err       error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: session %s halted at tick %d: %v", ErrCodeFatal, e.SessionID, e.Tick, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatal returns true if err reports a halted session.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// DivergenceError describes the first replayed settlement that did not
// match the log.
type DivergenceError struct {
	SessionID string
	Seq       int64
	Recorded  settlement.Outcome
	Replayed  settlement.Outcome
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("%s: session %s seq %d recorded %s(%s) replayed %s(%s)",
		ErrCodeNonDeterministic, e.SessionID, e.Seq,
		e.Recorded.Status, e.Recorded.Reason, e.Replayed.Status, e.Replayed.Reason)
}

func (e *DivergenceError) Unwrap() error {
	return ErrNonDeterministic
}
