package protocol

import "fmt"

// ErrorCode is the closed set of failure reasons an on-chain instruction can
// return. Every code here corresponds to a named failure in spec §7.
type ErrorCode string

const (
	// Authorization
	ErrUnauthorized ErrorCode = "UNAUTHORIZED"

	// Lifecycle
	ErrAlreadyInitialized  ErrorCode = "ALREADY_INITIALIZED"
	ErrMarketNotActive     ErrorCode = "MARKET_NOT_ACTIVE"
	ErrEpochNotOpen        ErrorCode = "EPOCH_NOT_OPEN"
	ErrEpochAlreadyOpen    ErrorCode = "EPOCH_ALREADY_OPEN"
	ErrMarketAlreadyExists ErrorCode = "MARKET_ALREADY_EXISTS"
	ErrPaused              ErrorCode = "PAUSED"

	// Validation
	ErrInvalidMarketID         ErrorCode = "INVALID_MARKET_ID"
	ErrInvalidOutcomeID        ErrorCode = "INVALID_OUTCOME_ID"
	ErrInvalidParameter        ErrorCode = "INVALID_PARAMETER"
	ErrInvalidThreshold        ErrorCode = "INVALID_THRESHOLD"
	ErrInvalidProbabilityScale ErrorCode = "INVALID_PROBABILITY_SCALE"
	ErrBadBundle               ErrorCode = "BAD_BUNDLE"

	// Commit/reveal
	ErrCommitNotFound        ErrorCode = "COMMIT_NOT_FOUND"
	ErrCommitAlreadyExists   ErrorCode = "COMMIT_ALREADY_EXISTS"
	ErrCommitAlreadyRevealed ErrorCode = "COMMIT_ALREADY_REVEALED"
	ErrRevealTooEarly        ErrorCode = "REVEAL_TOO_EARLY"
	ErrRevealMismatch        ErrorCode = "REVEAL_MISMATCH"
	ErrBundleHashMismatch    ErrorCode = "BUNDLE_HASH_MISMATCH"

	// Signer
	ErrSignerSetNotActive          ErrorCode = "SIGNER_SET_NOT_ACTIVE"
	ErrSignatureVerificationFailed ErrorCode = "SIGNATURE_VERIFICATION_FAILED"
	ErrReplayViolation             ErrorCode = "REPLAY_VIOLATION"
)

// ProtocolError is the error type every on-chain instruction returns on
// failure. It carries a stable machine-readable Code plus a human-readable
// Msg with the offending identifiers.
type ProtocolError struct {
	Code ErrorCode
	Msg  string
}

func (e *ProtocolError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// protoerr builds a *ProtocolError. Instructions return it directly so
// callers can type-assert on Code without parsing strings.
func protoerr(code ErrorCode, msg string) error {
	return &ProtocolError{Code: code, Msg: msg}
}

func protoerrf(code ErrorCode, format string, args ...any) error {
	return &ProtocolError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the ErrorCode from err if it is a *ProtocolError, and the
// zero value otherwise.
func CodeOf(err error) ErrorCode {
	pe, ok := err.(*ProtocolError)
	if !ok || pe == nil {
		return ""
	}
	return pe.Code
}
