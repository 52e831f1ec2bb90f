package network

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addrWithPort(port int) *net.UDPAddr {
	return &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: port}
}

func TestListenBindFailure(t *testing.T) {
	factory := NewMockUDPSocketFactory(nil)
	factory.Error = errors.New("address in use")

	_, err := Listen("127.0.0.1", 9002, factory)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to bind")
}

func TestListenPassesBindAddress(t *testing.T) {
	factory := NewMockUDPSocketFactory(NewMockUDPSocket(nil))
	_, err := Listen("127.0.0.1", 9002, factory)
	require.NoError(t, err)
	require.Len(t, factory.ListenCalls, 1)
	assert.Equal(t, "udp", factory.ListenCalls[0].Network)
	assert.Equal(t, 9002, factory.ListenCalls[0].Addr.Port)
}

func TestRecvLatestSinglePacket(t *testing.T) {
	sock := NewMockUDPSocket(nil)
	sock.Enqueue([]byte("hello"), addrWithPort(5000))
	conn := NewConn(sock)

	buf := make([]byte, 64)
	n, addr, drained, err := conn.RecvLatest(buf, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
	assert.Equal(t, 5000, addr.Port)
	assert.Zero(t, drained)
}

// Backed-up datagrams are drained without blocking and only the newest is
// returned.
func TestRecvLatestDrainsBacklog(t *testing.T) {
	sock := NewMockUDPSocket(nil)
	sock.Enqueue([]byte("one"), addrWithPort(5000))
	sock.Enqueue([]byte("two"), addrWithPort(5001))
	sock.Enqueue([]byte("three"), addrWithPort(5002))
	conn := NewConn(sock)

	buf := make([]byte, 64)
	n, addr, drained, err := conn.RecvLatest(buf, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "three", string(buf[:n]))
	assert.Equal(t, 5002, addr.Port)
	assert.Equal(t, 2, drained)
}

func TestRecvLatestTimeout(t *testing.T) {
	conn := NewConn(NewMockUDPSocket(nil))
	buf := make([]byte, 64)
	_, _, _, err := conn.RecvLatest(buf, time.Millisecond)
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
}

func TestSendTo(t *testing.T) {
	sock := NewMockUDPSocket(nil)
	conn := NewConn(sock)

	dest := addrWithPort(6000)
	n, err := conn.SendTo([]byte("state"), dest)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	require.Len(t, sock.Sent, 1)
	assert.Equal(t, "state", string(sock.Sent[0].Data))
	assert.Equal(t, dest, sock.Sent[0].Addr)
}

func TestIsTimeout(t *testing.T) {
	assert.True(t, IsTimeout(&net.OpError{Op: "read", Err: &timeoutError{}}))
	assert.False(t, IsTimeout(errors.New("plain error")))
	assert.False(t, IsTimeout(net.ErrClosed))
}

func TestCloseIsIdempotentOnMock(t *testing.T) {
	sock := NewMockUDPSocket(nil)
	conn := NewConn(sock)
	require.NoError(t, conn.Close())
	assert.True(t, sock.Closed)
}
