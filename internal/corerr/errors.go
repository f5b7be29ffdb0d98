// Package corerr classifies pipeline failures into the handful of kinds the
// trading pipeline reacts to differently: drop-and-log, retry, convert to a
// domain rejection, fall back to a default, or abort the process.
package corerr

import "errors"

// Kind is the error taxonomy used across the pipeline. Call sites wrap a
// root cause with the Kind that matches how the caller should react, never
// by matching on error message substrings.
type Kind int

const (
	// KindInputContract marks a message that failed to deserialize or was
	// missing a required field. Dropped with a structured log; never
	// crashes the worker.
	KindInputContract Kind = iota
	// KindTransient marks a network error, broker disconnect, or gateway
	// timeout. Retried where safe (reads); surfaced otherwise.
	KindTransient
	// KindGatewayDomain marks an order rejected by the exchange,
	// insufficient balance, or an unknown symbol. Converted into a
	// REJECTED execution report.
	KindGatewayDomain
	// KindDataUnavailable marks a missing price or indicator. Callers
	// fall back in documented order and log at warning.
	KindDataUnavailable
	// KindStoreFailure marks a persistence failure. Logged with context;
	// never aborts an in-flight decision.
	KindStoreFailure
	// KindFatal marks invalid configuration or a failed secret validation
	// at startup. Aborts the process.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindInputContract:
		return "input_contract"
	case KindTransient:
		return "transient_io"
	case KindGatewayDomain:
		return "gateway_domain"
	case KindDataUnavailable:
		return "data_unavailable"
	case KindStoreFailure:
		return "store_failure"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error wraps a root cause with a Kind so handlers can classify it with
// errors.As instead of matching strings.
type Error struct {
	Kind Kind
	Op   string // the operation that failed, e.g. "fusion.decide", "execution.placeOrder"
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.String()
	}
	return e.Op + ": " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with a Kind and the operation name. Returns nil if err is nil.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err (or any error it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind of err, defaulting to KindTransient when err
// carries no classification (the conservative choice: retry rather than
// silently swallow).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransient
}
