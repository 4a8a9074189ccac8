package console

import (
	"sync"
	"testing"
	"time"
)

// fakeTransport scripts the remote side of a session. Lines pushed
// into the lines channel appear to the router as remote output; an
// optional onSend hook plays the engine's response to a command.
type fakeTransport struct {
	lines  chan string
	closed chan struct{}
	once   sync.Once

	mu     sync.Mutex
	sent   []string
	onSend func(command string)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		lines:  make(chan string, 64),
		closed: make(chan struct{}),
	}
}

func (t *fakeTransport) SendLine(line string) error {
	select {
	case <-t.closed:
		return ErrStreamClosed
	default:
	}
	t.mu.Lock()
	t.sent = append(t.sent, line)
	hook := t.onSend
	t.mu.Unlock()
	if hook != nil {
		hook(line)
	}
	return nil
}

func (t *fakeTransport) ReadLine() (string, error) {
	select {
	case line := <-t.lines:
		return line, nil
	case <-t.closed:
		// Drain anything scripted before the close.
		select {
		case line := <-t.lines:
			return line, nil
		default:
			return "", ErrStreamClosed
		}
	}
}

func (t *fakeTransport) Close() error {
	t.once.Do(func() { close(t.closed) })
	return nil
}

func (t *fakeTransport) sentCommands() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.sent))
	copy(out, t.sent)
	return out
}

// recordingSink collects everything routed to the display.
type recordingSink struct {
	mu    sync.Mutex
	lines []string
}

func (s *recordingSink) WriteLine(line string) {
	s.mu.Lock()
	s.lines = append(s.lines, line)
	s.mu.Unlock()
}

func (s *recordingSink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.lines))
	copy(out, s.lines)
	return out
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestRouterForwardsToDisplayWhenDisarmed(t *testing.T) {
	ft := newFakeTransport()
	sink := &recordingSink{}
	r := NewRouter(ft, sink, true)
	go r.Run()
	defer ft.Close()

	ft.lines <- "log line one"
	ft.lines <- "log line two"

	waitFor(t, "display lines", func() bool { return len(sink.snapshot()) == 2 })

	got := sink.snapshot()
	if got[0] != "log line one" || got[1] != "log line two" {
		t.Errorf("sink = %v", got)
	}
}

func TestRouterDropsLinesWhenDisplayDisabled(t *testing.T) {
	ft := newFakeTransport()
	sink := &recordingSink{}
	r := NewRouter(ft, sink, false)
	go r.Run()

	ft.lines <- "chatter"
	ft.lines <- "more chatter"

	// Give the loop time to consume; nothing may reach the sink.
	waitFor(t, "lines consumed", func() bool { return len(ft.lines) == 0 })
	time.Sleep(20 * time.Millisecond)
	if got := sink.snapshot(); len(got) != 0 {
		t.Errorf("sink = %v, want empty", got)
	}
	ft.Close()
}

func TestRouterCaptureExclusivity(t *testing.T) {
	ft := newFakeTransport()
	sink := &recordingSink{}
	r := NewRouter(ft, sink, true)
	go r.Run()
	defer ft.Close()

	c, err := r.arm("cvarlist")
	if err != nil {
		t.Fatalf("arm: %v", err)
	}

	// While armed, no line reaches the display sink.
	ft.lines <- "sv_cheats 0"
	ft.lines <- "sv_gravity 800"
	waitFor(t, "captured lines", func() bool {
		n, _ := r.state(c)
		return n == 2
	})
	if got := sink.snapshot(); len(got) != 0 {
		t.Errorf("sink during capture = %v, want empty", got)
	}

	lines := r.disarm(c)
	if len(lines) != 2 || lines[0] != "sv_cheats 0" || lines[1] != "sv_gravity 800" {
		t.Errorf("captured = %v", lines)
	}

	// After disarm, lines flow to the display again.
	ft.lines <- "back to normal"
	waitFor(t, "display line after disarm", func() bool { return len(sink.snapshot()) == 1 })
}

func TestRouterSecondArmFails(t *testing.T) {
	ft := newFakeTransport()
	r := NewRouter(ft, &recordingSink{}, true)
	go r.Run()
	defer ft.Close()

	c, err := r.arm("first")
	if err != nil {
		t.Fatalf("arm: %v", err)
	}
	if _, err := r.arm("second"); err != ErrQueryBusy {
		t.Errorf("second arm = %v, want ErrQueryBusy", err)
	}
	r.disarm(c)

	if _, err := r.arm("third"); err != nil {
		t.Errorf("arm after disarm = %v, want nil", err)
	}
}

func TestRouterFailsCaptureOnClose(t *testing.T) {
	ft := newFakeTransport()
	r := NewRouter(ft, &recordingSink{}, true)
	go r.Run()

	c, err := r.arm("status")
	if err != nil {
		t.Fatalf("arm: %v", err)
	}

	ft.Close()

	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatal("router did not stop after transport close")
	}

	if _, failed := r.state(c); failed != ErrStreamClosed {
		t.Errorf("capture failure = %v, want ErrStreamClosed", failed)
	}
	if !r.Dead() {
		t.Error("router not marked dead")
	}

	if _, err := r.arm("late"); err != ErrStreamClosed {
		t.Errorf("arm on dead router = %v, want ErrStreamClosed", err)
	}
}
