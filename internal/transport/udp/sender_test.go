// SPDX-License-Identifier: MIT
package udp

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listenUDP(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestUDPSenderRoundTrip(t *testing.T) {
	rx := listenUDP(t)
	s, err := NewUDPSender(rx.LocalAddr().String())
	require.NoError(t, err)

	require.NoError(t, s.Send([]byte("ping")))

	buf := make([]byte, 16)
	require.NoError(t, rx.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, err := rx.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf[:n]))

	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "second Close is a no-op")
	assert.ErrorIs(t, s.Send([]byte("late")), errSenderClosed)
}

func TestUDPSenderBadAddress(t *testing.T) {
	_, err := NewUDPSender("not an address")
	assert.Error(t, err)
}
