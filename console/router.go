package console

import (
	"sync"
	"time"
)

// DisplaySink receives continuous console output. Implementations must
// not block for long: a stalled sink stalls the reader loop and,
// transitively, any concurrent capture wait.
type DisplaySink interface {
	WriteLine(line string)
}

// DisplayFunc adapts a function to DisplaySink.
type DisplayFunc func(line string)

func (f DisplayFunc) WriteLine(line string) { f(line) }

// capture tracks one in-flight query-mode response.
type capture struct {
	command string
	started time.Time
	lines   []string
	failed  error

	// arrived is pulsed (buffered, size 1) whenever a line is appended
	// or the capture fails; waiters re-read the line count, so
	// coalesced pulses are fine.
	arrived chan struct{}
}

func (c *capture) signal() {
	select {
	case c.arrived <- struct{}{}:
	default:
	}
}

// Router runs the single background reader over a Transport and is its
// only reader, so two components can never race on the socket. Every
// incoming line goes to exactly one place: the armed capture buffer,
// or the display sink (or the floor, when continuous display is off).
//
// The wire gives no end-of-response marker, so the Router never tries
// to detect "end of command output" from content; capture completion
// is the Console's quiescence policy.
type Router struct {
	tr   Transport
	sink DisplaySink

	mu      sync.Mutex
	cap     *capture
	display bool
	dead    bool

	done chan struct{} // closed when the reader loop stops
}

// NewRouter builds a router; call Run in its own goroutine.
func NewRouter(tr Transport, sink DisplaySink, display bool) *Router {
	return &Router{
		tr:      tr,
		sink:    sink,
		display: display,
		done:    make(chan struct{}),
	}
}

// Run reads lines until the transport dies. On closure it marks the
// connection dead, fails any armed capture with ErrStreamClosed, and
// stops.
func (r *Router) Run() {
	for {
		line, err := r.tr.ReadLine()
		if err != nil {
			r.mu.Lock()
			r.dead = true
			if r.cap != nil {
				r.cap.failed = ErrStreamClosed
				r.cap.signal()
			}
			r.mu.Unlock()
			close(r.done)
			return
		}

		r.mu.Lock()
		if c := r.cap; c != nil {
			c.lines = append(c.lines, line)
			c.signal()
			r.mu.Unlock()
			continue
		}
		display := r.display
		r.mu.Unlock()

		// Sink write happens outside the lock so a slow terminal can
		// never hold up arming.
		if display {
			r.sink.WriteLine(line)
		}
	}
}

// Done is closed once the reader loop has stopped.
func (r *Router) Done() <-chan struct{} { return r.done }

// Dead reports whether the connection has been marked dead.
func (r *Router) Dead() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dead
}

// SetDisplay toggles forwarding of non-captured lines to the sink.
func (r *Router) SetDisplay(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.display = enabled
}

// arm switches routing to capture mode. Single-flight: a second arm
// while one capture is outstanding fails with ErrQueryBusy.
func (r *Router) arm(command string) (*capture, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dead {
		return nil, ErrStreamClosed
	}
	if r.cap != nil {
		return nil, ErrQueryBusy
	}
	c := &capture{
		command: command,
		started: time.Now(),
		arrived: make(chan struct{}, 1),
	}
	r.cap = c
	return c, nil
}

// disarm switches routing back to display mode and returns the lines
// captured so far, in emission order.
func (r *Router) disarm(c *capture) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cap == c {
		r.cap = nil
	}
	lines := make([]string, len(c.lines))
	copy(lines, c.lines)
	return lines
}

// state returns the current line count and failure of a capture.
func (r *Router) state(c *capture) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(c.lines), c.failed
}
