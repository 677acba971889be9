// Package sentinel provides standardized error definitions for the pagetemp system.
// This package centralizes all error types used across the pagetemp components,
// ensuring consistent error handling and messaging throughout the application.
//
// The errors defined here cover various scenarios including:
// - Invalid configuration parameters (capacity, K, page size, sample rates)
// - Trace decoding failures (malformed access records)
// - Component lookup errors (missing algorithms, serializers, sinks)
// - Programming errors detected inside eviction policies (broken invariants)
//
// All errors are created using the ewrap package to provide enhanced error
// wrapping and context capabilities.
package sentinel

import (
	"github.com/hyp3rd/ewrap"
)

var (
	// ErrInvalidCapacity is returned when a policy is constructed with a non-positive capacity.
	ErrInvalidCapacity = ewrap.New("capacity must be positive")

	// ErrInvalidK is returned when LRU-K or GCLOCK is constructed with K < 1.
	ErrInvalidK = ewrap.New("k must be at least 1")

	// ErrInvalidPageSize is returned when a page size is not a power of two.
	ErrInvalidPageSize = ewrap.New("page size must be a power of two")

	// ErrInvalidSampleRate is returned when a sample rate falls outside (0, 1].
	ErrInvalidSampleRate = ewrap.New("sample rate must be in (0, 1]")

	// ErrInvalidTraceLine is returned when an access record cannot be decoded.
	ErrInvalidTraceLine = ewrap.New("invalid trace line")

	// ErrAlgorithmNotFound is returned when an algorithm is not found.
	ErrAlgorithmNotFound = ewrap.New("algorithm not found")

	// ErrParamCannotBeEmpty is returned when a parameter cannot be empty.
	ErrParamCannotBeEmpty = ewrap.New("param cannot be empty")

	// ErrSerializerNotFound is returned when a serializer is not found.
	ErrSerializerNotFound = ewrap.New("serializer not found")

	// ErrNilClient is returned when a nil client is passed to a sink.
	ErrNilClient = ewrap.New("nil client")

	// ErrSinkClosed is returned when records are appended to a closed sink.
	ErrSinkClosed = ewrap.New("sink is closed")

	// ErrCorruptSeries is returned when a stored series cannot be decoded.
	ErrCorruptSeries = ewrap.New("corrupt series file")

	// ErrEmptyPlan is returned when a bench has nothing to run.
	ErrEmptyPlan = ewrap.New("nothing to run: empty plan")

	// ErrInvariantViolation marks a broken internal policy invariant. It is never returned:
	// policies panic with an error wrapping it.
	ErrInvariantViolation = ewrap.New("eviction policy invariant violated")

	// ErrTimeoutOrCanceled is returned when a timeout or cancellation occurs.
	ErrTimeoutOrCanceled = ewrap.New("the operation timed out or was canceled")

	// ErrMgmtHTTPShutdownTimeout is returned when the management HTTP server fails to shutdown before context deadline.
	ErrMgmtHTTPShutdownTimeout = ewrap.New("management http shutdown timeout")
)
