package console

import (
	"bufio"
	"errors"
	"net"
	"testing"
	"time"
)

func TestTCPTransportSendLine(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	tr := NewTCPTransport(client)

	go func() {
		if err := tr.SendLine("sv_cheats 1"); err != nil {
			t.Errorf("SendLine: %v", err)
		}
	}()

	line, err := bufio.NewReader(server).ReadString('\n')
	if err != nil {
		t.Fatalf("server read: %v", err)
	}
	if line != "sv_cheats 1\n" {
		t.Errorf("wire = %q, want %q", line, "sv_cheats 1\n")
	}
}

func TestTCPTransportSendLineStripsTrailingNewline(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	tr := NewTCPTransport(client)
	go tr.SendLine("status\n")

	line, err := bufio.NewReader(server).ReadString('\n')
	if err != nil {
		t.Fatalf("server read: %v", err)
	}
	if line != "status\n" {
		t.Errorf("wire = %q, want single trailing newline", line)
	}
}

func TestTCPTransportReadLine(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	tr := NewTCPTransport(client)

	go server.Write([]byte("hello world\r\nsecond\n"))

	for i, want := range []string{"hello world", "second"} {
		line, err := tr.ReadLine()
		if err != nil {
			t.Fatalf("ReadLine %d: %v", i, err)
		}
		if line != want {
			t.Errorf("line %d = %q, want %q", i, line, want)
		}
	}
}

func TestTCPTransportRemoteClose(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	tr := NewTCPTransport(client)

	go func() {
		server.Write([]byte("partial"))
		server.Close()
	}()

	// The partial final line is still delivered.
	line, err := tr.ReadLine()
	if err != nil {
		t.Fatalf("ReadLine: %v", err)
	}
	if line != "partial" {
		t.Errorf("line = %q, want %q", line, "partial")
	}

	if _, err := tr.ReadLine(); !errors.Is(err, ErrStreamClosed) {
		t.Errorf("ReadLine after close = %v, want ErrStreamClosed", err)
	}
}

func TestTCPTransportLocalCloseUnblocksRead(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	tr := NewTCPTransport(client)

	done := make(chan error, 1)
	go func() {
		_, err := tr.ReadLine()
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	tr.Close()

	select {
	case err := <-done:
		if !errors.Is(err, ErrStreamClosed) {
			t.Errorf("ReadLine = %v, want ErrStreamClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("ReadLine did not unblock after Close")
	}
}
