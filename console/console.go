package console

import (
	"time"

	"github.com/GrayareaGaming/source-console-shell/util"
)

const (
	// DefaultIdleWindow is the quiescence window: a capture completes
	// once no new line has arrived for this long. Tuned against local
	// engine latency; adjustable via Options.
	DefaultIdleWindow = 150 * time.Millisecond

	// DefaultQueryTimeout bounds the wait for the first output line of
	// a query. A query that stays silent this long fails.
	DefaultQueryTimeout = 2 * time.Second
)

// Options tunes a Console.
type Options struct {
	IdleWindow       time.Duration
	QueryTimeout     time.Duration
	ContinuousOutput bool

	// Logger receives protocol-level debug output (sent commands,
	// capture results). Optional; nil means silent.
	Logger *util.Logger
}

// Console is the command issuer: it owns the session (transport plus
// router) and offers the two issuance modes the unframed wire allows.
// Fire streams output to the display sink as it arrives; Query arms a
// capture and returns exactly the lines the command produced.
type Console struct {
	tr     Transport
	router *Router
	log    *util.Logger

	idleWindow   time.Duration
	queryTimeout time.Duration
}

// New starts the background reader over tr and returns the session.
// The Console takes ownership of the transport; Close tears it down.
func New(tr Transport, sink DisplaySink, opts Options) *Console {
	if opts.IdleWindow <= 0 {
		opts.IdleWindow = DefaultIdleWindow
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = DefaultQueryTimeout
	}
	if sink == nil {
		sink = DisplayFunc(func(string) {})
	}
	if opts.Logger == nil {
		opts.Logger = util.NewLogger(0)
	}

	c := &Console{
		tr:           tr,
		router:       NewRouter(tr, sink, opts.ContinuousOutput),
		log:          opts.Logger,
		idleWindow:   opts.IdleWindow,
		queryTimeout: opts.QueryTimeout,
	}
	go c.router.Run()
	return c
}

// Fire sends a command with no capture. Whatever the engine prints
// streams to the display sink; there is no return value to wait for.
func (c *Console) Fire(command string) error {
	if c.router.Dead() {
		return ErrStreamClosed
	}
	c.log.Debug("fire %q", command)
	return c.tr.SendLine(command)
}

// Query sends a command and captures its output. The capture is
// complete once no new line has arrived for the idle window; a query
// that produces nothing within the overall timeout fails with
// ErrQueryTimeout. Single-flight: a concurrent Query fails with
// ErrQueryBusy. Captured lines preserve the engine's emission order.
func (c *Console) Query(command string) ([]string, error) {
	cap, err := c.router.arm(command)
	if err != nil {
		return nil, err
	}

	c.log.Debug("query %q armed", command)
	if err := c.tr.SendLine(command); err != nil {
		c.router.disarm(cap)
		return nil, err
	}

	overall := time.NewTimer(c.queryTimeout)
	defer overall.Stop()

	// The idle timer starts once the first line arrives.
	idle := time.NewTimer(c.idleWindow)
	if !idle.Stop() {
		<-idle.C
	}
	defer idle.Stop()

	seen := 0
	for {
		select {
		case <-cap.arrived:
			n, failed := c.router.state(cap)
			if failed != nil {
				c.router.disarm(cap)
				return nil, failed
			}
			if n > seen {
				seen = n
				resetTimer(idle, c.idleWindow)
			}

		case <-idle.C:
			// A line may have landed between the last pulse and the
			// timer firing; recheck before declaring quiescence.
			n, failed := c.router.state(cap)
			if failed != nil {
				c.router.disarm(cap)
				return nil, failed
			}
			if n > seen {
				seen = n
				idle.Reset(c.idleWindow)
				continue
			}
			lines := c.router.disarm(cap)
			c.log.Debug("query %q captured %d lines in %s", command, len(lines), time.Since(cap.started).Round(time.Millisecond))
			return lines, nil

		case <-overall.C:
			if seen > 0 {
				// Output is still flowing; return what we have rather
				// than hold the router armed forever.
				lines := c.router.disarm(cap)
				c.log.Debug("query %q hit the overall timeout with %d lines", command, len(lines))
				return lines, nil
			}
			c.router.disarm(cap)
			c.log.Debug("query %q produced no output within %s", command, c.queryTimeout)
			return nil, ErrQueryTimeout

		case <-c.router.Done():
			c.router.disarm(cap)
			return nil, ErrStreamClosed
		}
	}
}

// SetContinuousOutput toggles forwarding of non-captured lines.
func (c *Console) SetContinuousOutput(enabled bool) {
	c.router.SetDisplay(enabled)
}

// Alive reports whether the session is still usable.
func (c *Console) Alive() bool { return !c.router.Dead() }

// Closed is closed once the background reader has stopped.
func (c *Console) Closed() <-chan struct{} { return c.router.Done() }

// Close force-closes the transport, which unblocks the reader's
// pending read, and waits for the reader loop to stop.
func (c *Console) Close() error {
	err := c.tr.Close()
	<-c.router.Done()
	return err
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
