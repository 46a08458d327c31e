package gateway

import (
	"errors"
)

// Call failure taxonomy. All of these are recoverable: the scheduler
// retries on its next cycle and the ping coordinator reports them as a
// failed probe.
var (
	// ErrGatewayUnreachable indicates a transport-level failure talking
	// to the companion device
	ErrGatewayUnreachable = errors.New("gateway unreachable")

	// ErrGatewayTimeout indicates a per-call timeout
	ErrGatewayTimeout = errors.New("gateway timeout")

	// ErrMalformedReply indicates a reply the protocol layer could not
	// decode
	ErrMalformedReply = errors.New("malformed gateway reply")

	// ErrContactNotFound indicates the companion has never heard the
	// repeater (out of range, or wrong key configured)
	ErrContactNotFound = errors.New("repeater not found in contacts")
)
