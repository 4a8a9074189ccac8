package console

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSTransport carries the same newline text protocol over a WebSocket,
// for setups that put the netconport behind a WebSocket bridge. Each
// text message holds one or more newline-terminated lines, re-split on
// the read side so the Router sees the identical line stream.
type WSTransport struct {
	conn *websocket.Conn

	mu sync.Mutex // serializes writes

	// pending holds lines split from the last message; only the Router
	// goroutine touches it.
	pending []string
}

// DialConsoleWS connects to a WebSocket console bridge.
func DialConsoleWS(url string, timeout time.Duration) (*WSTransport, error) {
	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", url, err)
	}
	return &WSTransport{conn: conn}, nil
}

func (t *WSTransport) SendLine(line string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	line = strings.TrimSuffix(line, "\n")
	if err := t.conn.WriteMessage(websocket.TextMessage, []byte(line+"\n")); err != nil {
		return fmt.Errorf("send %q: %w", line, err)
	}
	return nil
}

func (t *WSTransport) ReadLine() (string, error) {
	for len(t.pending) == 0 {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			// Any read failure ends the session; the Router does not
			// distinguish close reasons.
			return "", ErrStreamClosed
		}
		lines := strings.Split(string(data), "\n")
		// A message ending in \n splits into a spurious trailing empty
		// element; interior blank lines are real output and kept.
		if n := len(lines); n > 0 && lines[n-1] == "" {
			lines = lines[:n-1]
		}
		for _, line := range lines {
			t.pending = append(t.pending, strings.TrimSuffix(line, "\r"))
		}
	}

	line := t.pending[0]
	t.pending = t.pending[1:]
	return line, nil
}

func (t *WSTransport) Close() error {
	return t.conn.Close()
}
