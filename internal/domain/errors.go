package domain

import "fmt"

// ValidationError signals that an input violated a pre-condition. Never
// retried; surfaced straight back to the caller.
type ValidationError struct {
	Op     string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: validation: %s", e.Op, e.Reason)
}

// TransientIOError wraps a network/timeout/rate-limit failure. Callers may
// retry up to a bounded attempt count with exponential backoff.
type TransientIOError struct {
	Op    string
	Cause error
}

func (e *TransientIOError) Error() string {
	return fmt.Sprintf("%s: transient I/O: %v", e.Op, e.Cause)
}

func (e *TransientIOError) Unwrap() error { return e.Cause }

// AmbiguousPlacement signals a write call to the exchange whose outcome is
// unknown (e.g. a timeout mid-request). Resolved by a status query; if
// still ambiguous after a bounded window, the pair is parked in a
// reconcile-pending state.
type AmbiguousPlacement struct {
	Op             string
	IdempotencyKey string
	Cause          error
}

func (e *AmbiguousPlacement) Error() string {
	return fmt.Sprintf("%s: ambiguous placement (key=%s): %v", e.Op, e.IdempotencyKey, e.Cause)
}

func (e *AmbiguousPlacement) Unwrap() error { return e.Cause }

// ExchangeRejected signals a terminal Rejected/Expired status from the
// exchange. State is left unchanged.
type ExchangeRejected struct {
	Op     string
	Status OrderStatus
	Reason string
}

func (e *ExchangeRejected) Error() string {
	return fmt.Sprintf("%s: exchange rejected order (%s): %s", e.Op, e.Status, e.Reason)
}

// InvariantViolation signals that a documented aggregate contract was
// broken. Treated as a bug: callers must log full state and, at startup,
// exit the process; at runtime, suspend trading and raise a critical
// health check rather than kill the orchestrator.
type InvariantViolation struct {
	Op      string
	Details string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("%s: invariant violated: %s", e.Op, e.Details)
}

// ConfigurationError signals an invalid configuration on load or hot
// reload. On hot reload, the old configuration is retained and a
// notification is issued; the engine continues running.
type ConfigurationError struct {
	Op     string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: configuration: %s", e.Op, e.Reason)
}

// IsRetryable reports whether err belongs to a class that a caller may
// retry with backoff.
func IsRetryable(err error) bool {
	switch err.(type) {
	case *TransientIOError:
		return true
	default:
		return false
	}
}
