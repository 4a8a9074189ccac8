// Package console implements the core of source-console-shell: a
// single TCP (or WebSocket) connection to a Source engine netconport
// console, multiplexed between continuous display and exact-output
// capture, plus the completion index built from captured listings.
//
// The wire protocol is newline-delimited plain text with no framing,
// request ids, or terminators; command results and unrelated engine
// chatter are interleaved on the same stream.
package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"
)

// Transport is a duplex line channel to the remote console. ReadLine
// blocks until a full line arrives or the connection dies; exactly one
// goroutine (the Router) may call it.
type Transport interface {
	SendLine(line string) error
	ReadLine() (string, error)
	Close() error
}

// TCPTransport carries the console protocol over a raw TCP socket.
type TCPTransport struct {
	conn net.Conn
	r    *bufio.Reader

	mu sync.Mutex // serializes writes
}

// DialConsole connects to the engine's netconport.
func DialConsole(host string, port int, timeout time.Duration) (*TCPTransport, error) {
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}
	return NewTCPTransport(conn), nil
}

// NewTCPTransport wraps an established connection.
func NewTCPTransport(conn net.Conn) *TCPTransport {
	return &TCPTransport{conn: conn, r: bufio.NewReader(conn)}
}

// SendLine writes the command plus a newline terminator.
func (t *TCPTransport) SendLine(line string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	line = strings.TrimSuffix(line, "\n")
	if _, err := fmt.Fprintf(t.conn, "%s\n", line); err != nil {
		return fmt.Errorf("send %q: %w", line, err)
	}
	return nil
}

// ReadLine blocks until a newline-terminated line is available. A
// partial final line before EOF is delivered; the next call reports
// ErrStreamClosed.
func (t *TCPTransport) ReadLine() (string, error) {
	line, err := t.r.ReadString('\n')
	if err != nil {
		if line != "" {
			return trimEOL(line), nil
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
			return "", ErrStreamClosed
		}
		return "", fmt.Errorf("read line: %w", err)
	}
	return trimEOL(line), nil
}

// Close force-closes the socket, unblocking any pending ReadLine.
func (t *TCPTransport) Close() error {
	return t.conn.Close()
}

func trimEOL(line string) string {
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r")
}
