package publisher

import "fmt"

// transientError marks a publisher-side failure as retryable (network/IO),
// matching §7's "retry only transient network/IO failures with linear
// backoff; all validation failures are terminal" rule. Grounded on
// consensus/errors.go's wrapped-error-plus-helper pattern, narrowed to a
// single boolean flag since the publisher has no closed error-code enum of
// its own — validation failures already carry a *protocol.ProtocolError.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient wraps err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// Transientf is Transient with fmt.Errorf-style formatting.
func Transientf(format string, args ...any) error {
	return Transient(fmt.Errorf(format, args...))
}

// IsTransient reports whether err (or something it wraps) was marked
// Transient. Anything else is treated as terminal.
func IsTransient(err error) bool {
	for err != nil {
		if _, ok := err.(*transientError); ok {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
