package portalloc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// Protocol selects how WaitForPort validates a connection once it has
// been established (spec §4.9 "protocol ∈ {tcp, http}").
type Protocol string

const (
	ProtocolTCP  Protocol = "tcp"
	ProtocolHTTP Protocol = "http"
)

const perAttemptDialTimeout = 1 * time.Second

// WaitForPort polls host:port until a connection succeeds (and, for
// ProtocolHTTP, until an HTTP GET against path returns a 2xx status),
// retrying every interval until timeout elapses (spec §4.9
// "wait_for_port"). The returned net.Conn is already connected; the
// caller may adopt it without reconnecting.
func WaitForPort(ctx context.Context, host string, port int, timeout, interval time.Duration, protocol Protocol, httpPath string) (net.Conn, error) {
	deadline := time.Now().Add(timeout)
	preferV6 := false
	ipv6Disabled := false
	var lastErr error

	for {
		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("portalloc: timed out waiting for %s:%d: %w", host, port, lastErr)
		}

		network := "tcp4"
		if preferV6 && !ipv6Disabled {
			network = "tcp6"
		}

		conn, err := (&net.Dialer{Timeout: perAttemptDialTimeout}).DialContext(ctx, network, net.JoinHostPort(host, strconv.Itoa(port)))
		if err != nil {
			lastErr = err
			if isAddressFamilyFailure(err) {
				if network == "tcp4" {
					preferV6 = !ipv6Disabled
				} else {
					ipv6Disabled = true
					preferV6 = false
				}
			}
			if !sleepOrDone(ctx, interval) {
				return nil, ctx.Err()
			}
			continue
		}

		if protocol == ProtocolHTTP {
			if err := probeHTTP(conn, host, httpPath); err != nil {
				conn.Close()
				lastErr = err
				if !sleepOrDone(ctx, interval) {
					return nil, ctx.Err()
				}
				continue
			}
		}

		return conn, nil
	}
}

func sleepOrDone(ctx context.Context, interval time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(interval):
		return true
	}
}

// isAddressFamilyFailure reports whether err looks like the local
// address family is unsupported for this connection (spec §4.9 "on
// EADDRNOTAVAIL/ENOTFOUND flip to IPv6 ... if IPv6 also fails with
// EADDRNOTAVAIL, disable IPv6").
func isAddressFamilyFailure(err error) bool {
	if errors.Is(err, unix.EADDRNOTAVAIL) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsNotFound
	}
	return false
}

// probeHTTP issues a minimal HTTP/1.1 GET over an already-connected
// socket and requires a 2xx status line (spec §4.9 "http" protocol).
func probeHTTP(conn net.Conn, host, path string) error {
	if path == "" {
		path = "/"
	}
	req := fmt.Sprintf("GET %s HTTP/1.1\r\nHost: %s\r\n\r\n", path, host)
	if _, err := conn.Write([]byte(req)); err != nil {
		return err
	}

	reader := bufio.NewReader(conn)
	statusLine, err := reader.ReadString('\n')
	if err != nil {
		return err
	}
	fields := strings.SplitN(strings.TrimSpace(statusLine), " ", 3)
	if len(fields) < 2 {
		return fmt.Errorf("portalloc: malformed HTTP status line %q", statusLine)
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil {
		return fmt.Errorf("portalloc: malformed HTTP status code in %q: %w", statusLine, err)
	}
	if code < 200 || code >= 300 {
		return fmt.Errorf("portalloc: non-2xx HTTP status %d", code)
	}
	return nil
}
