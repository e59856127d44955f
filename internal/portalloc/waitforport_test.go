package portalloc

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"
)

func TestWaitForPortTCPSucceedsOnceListening(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to bind listener: %v", err)
	}
	defer l.Close()
	go func() {
		conn, err := l.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	port := l.Addr().(*net.TCPAddr).Port
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := WaitForPort(ctx, "127.0.0.1", port, 2*time.Second, 20*time.Millisecond, ProtocolTCP, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	conn.Close()
}

func TestWaitForPortTimesOutWhenNothingListens(t *testing.T) {
	// Bind and immediately close to get a port almost certainly refusing
	// connections for the duration of the test.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to bind listener: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	ctx := context.Background()
	_, err = WaitForPort(ctx, "127.0.0.1", port, 150*time.Millisecond, 20*time.Millisecond, ProtocolTCP, "")
	if err == nil {
		t.Fatal("expected a timeout error")
	}
}

func TestWaitForPortHTTPRequiresA2xxStatus(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to bind listener: %v", err)
	}
	defer l.Close()
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		bufio.NewReader(conn).ReadString('\n')
		conn.Write([]byte("HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n"))
	}()

	port := l.Addr().(*net.TCPAddr).Port
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := WaitForPort(ctx, "127.0.0.1", port, 2*time.Second, 20*time.Millisecond, ProtocolHTTP, "/healthz")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	conn.Close()
}

func TestProbeHTTPRejectsNon2xx(t *testing.T) {
	server, client := net.Pipe()
	go func() {
		bufio.NewReader(server).ReadString('\n')
		server.Write([]byte("HTTP/1.1 503 Service Unavailable\r\n\r\n"))
		server.Close()
	}()
	if err := probeHTTP(client, "example.com", "/"); err == nil {
		t.Fatal("expected a 503 to be rejected")
	}
}
