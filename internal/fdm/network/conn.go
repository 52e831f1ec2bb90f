package network

import (
	"fmt"
	"net"
	"time"
)

// drainWait bounds each post-receive drain read. Effectively non-blocking:
// it only delays the tick when the drain finds an empty socket, and then by
// well under the offline poll budget.
const drainWait = 100 * time.Microsecond

// Conn is the bridge's bound UDP endpoint. The flight controller's address
// is never configured; it is discovered from inbound traffic, so Conn only
// binds a local port and sends to whatever address the caller supplies.
type Conn struct {
	sock UDPSocket
}

// Listen binds a UDP socket on addr:port. A bind failure is fatal to bridge
// startup, so the error is returned rather than retried.
func Listen(addr string, port int, factory UDPSocketFactory) (*Conn, error) {
	if factory == nil {
		factory = NewRealUDPSocketFactory()
	}
	laddr := &net.UDPAddr{IP: net.ParseIP(addr), Port: port}
	if laddr.IP == nil && addr != "" {
		return nil, fmt.Errorf("invalid bind address %q", addr)
	}
	sock, err := factory.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind %s:%d: %w", addr, port, err)
	}
	return &Conn{sock: sock}, nil
}

// NewConn wraps an already created socket. Used by tests.
func NewConn(sock UDPSocket) *Conn {
	return &Conn{sock: sock}
}

// RecvLatest performs one read bounded by wait, then drains any further
// immediately available datagrams without blocking, keeping only the newest.
// It returns the newest datagram's length and source plus the number of
// older datagrams discarded. When nothing arrives within the wait budget the
// returned error satisfies IsTimeout.
func (c *Conn) RecvLatest(buf []byte, wait time.Duration) (n int, addr *net.UDPAddr, drained int, err error) {
	if derr := c.sock.SetReadDeadline(time.Now().Add(wait)); derr != nil {
		return 0, nil, 0, derr
	}
	n, addr, err = c.sock.ReadFromUDP(buf)

	// Drain the socket in case we are backed up: repeat near-zero-wait reads
	// and keep the last datagram received. The deadline must sit slightly in
	// the future: an already-expired deadline fails the read even when a
	// datagram is queued.
	scratch := make([]byte, len(buf))
	for {
		if derr := c.sock.SetReadDeadline(time.Now().Add(drainWait)); derr != nil {
			break
		}
		dn, daddr, derr := c.sock.ReadFromUDP(scratch)
		if derr != nil {
			break
		}
		if err == nil {
			drained++
		}
		n = copy(buf, scratch[:dn])
		addr = daddr
		err = nil
	}
	if err != nil {
		return 0, nil, drained, err
	}
	return n, addr, drained, nil
}

// SendTo sends one best-effort datagram to addr. There is no retry: loss is
// tolerated by the protocol.
func (c *Conn) SendTo(b []byte, addr *net.UDPAddr) (int, error) {
	return c.sock.WriteToUDP(b, addr)
}

// LocalAddr returns the bound local address.
func (c *Conn) LocalAddr() net.Addr {
	return c.sock.LocalAddr()
}

// Close releases the socket. Safe to call on an already closed Conn.
func (c *Conn) Close() error {
	return c.sock.Close()
}

// IsTimeout reports whether err is a read timeout rather than a hard socket
// failure.
func IsTimeout(err error) bool {
	netErr, ok := err.(net.Error)
	return ok && netErr.Timeout()
}
