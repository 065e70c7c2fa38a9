package game

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrRangeExhausted     = errors.New("no legal digit left for position")
	ErrNoValue            = errors.New("card has no drawn value")
	ErrInfeasible         = errors.New("drawn value no longer fits the maximum price")
	ErrInvariantViolation = errors.New("final total exceeds maximum price")
	ErrInvalidTransition  = errors.New("operation not allowed in current card state")
	ErrUnknownPosition    = errors.New("unknown position")
	ErrDigitNotAllowed    = errors.New("digit not in allowed range")
	ErrSessionClosed      = errors.New("session closed")
)

// ConfigError describes a rejected configuration value.
type ConfigError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

// RangeExhaustedError reports the position whose legal digit set is empty.
type RangeExhaustedError struct {
	Position int
}

func (e *RangeExhaustedError) Error() string {
	return fmt.Sprintf("position %d: %v", e.Position, ErrRangeExhausted)
}

func (e *RangeExhaustedError) Unwrap() error { return ErrRangeExhausted }

// TransitionError is returned when a command does not apply to the card's
// current state.
type TransitionError struct {
	Position int
	Op       string
	State    CardState
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s position %d: %v (state %s)", e.Op, e.Position, ErrInvalidTransition, e.State)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// InvariantError is the fatal finalize failure. It means the engine let a
// combination through that overshoots the maximum price.
type InvariantError struct {
	Total    int
	MaxPrice int
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%v: total %d > max %d", ErrInvariantViolation, e.Total, e.MaxPrice)
}

func (e *InvariantError) Unwrap() error { return ErrInvariantViolation }

// IsUserCorrectable reports whether err is an expected rejection the player
// can fix by redrawing or changing the setup.
func IsUserCorrectable(err error) bool {
	return errors.Is(err, ErrRangeExhausted) ||
		errors.Is(err, ErrInfeasible) ||
		errors.Is(err, ErrNoValue) ||
		errors.Is(err, ErrDigitNotAllowed)
}

// ErrorCode maps an error onto a short machine-readable code.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidConfig):
		return "invalid_config"
	case errors.Is(err, ErrRangeExhausted):
		return "range_exhausted"
	case errors.Is(err, ErrNoValue):
		return "no_value"
	case errors.Is(err, ErrInfeasible):
		return "infeasible"
	case errors.Is(err, ErrInvariantViolation):
		return "invariant_violation"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrUnknownPosition):
		return "unknown_position"
	case errors.Is(err, ErrDigitNotAllowed):
		return "digit_not_allowed"
	case errors.Is(err, ErrSessionClosed):
		return "session_closed"
	default:
		return "internal"
	}
}
