package session

import "errors"

// Session errors
var (
	ErrInvalidSelection = errors.New("selected cards are not a legal play")
	ErrNotStarted       = errors.New("game has not started")
)

// WarningKind classifies a non-fatal condition surfaced to the user.
// Nothing in this layer is fatal to the process.
type WarningKind uint8

const (
	// WarningInvalidSelection means a commit was attempted with cards the
	// engine rejects. No state changed.
	WarningInvalidSelection WarningKind = iota

	// WarningDecodeFailure means inbound bytes did not decode to a valid
	// snapshot. Prior state is fully retained.
	WarningDecodeFailure

	// WarningDuplicateTransfer means an inbound image matched the code
	// just rendered locally and the user declined to apply it.
	WarningDuplicateTransfer
)

func (k WarningKind) String() string {
	switch k {
	case WarningInvalidSelection:
		return "invalid_selection"
	case WarningDecodeFailure:
		return "decode_failure"
	case WarningDuplicateTransfer:
		return "duplicate_transfer"
	default:
		return "unknown"
	}
}

// Warning is one user-facing non-fatal condition.
type Warning struct {
	Kind WarningKind
	Err  error
}
