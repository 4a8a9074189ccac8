package console

import "errors"

var (
	// ErrStreamClosed reports that the remote console closed the
	// connection (or the socket died mid-session). Fatal for the
	// session: command state on the engine side cannot be assumed
	// recoverable, so callers report and exit rather than reconnect.
	ErrStreamClosed = errors.New("console stream closed")

	// ErrQueryTimeout reports a query that produced no output within
	// the overall timeout. Recoverable: the caller keeps going with an
	// empty result.
	ErrQueryTimeout = errors.New("query timed out with no output")

	// ErrQueryBusy reports a query issued while another capture was in
	// flight. Two simultaneous captures cannot be told apart on an
	// unframed stream, so the second one is refused instead of queued.
	ErrQueryBusy = errors.New("another query is in flight")
)
