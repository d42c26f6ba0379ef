package mpif

import (
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huskysdr/aerowave/internal/wire"
)

func Test_Broker_RelaysBytesBetweenMACAndPHY(t *testing.T) {
	logger := log.New(io.Discard)
	b, err := New("127.0.0.1", logger)
	require.NoError(t, err)
	defer b.Close()
	go b.Run()

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(b.Port()))

	macConn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer macConn.Close()
	macWire := wire.NewConn(macConn)
	require.NoError(t, macWire.Send("MAC", []int{}))

	phyConn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer phyConn.Close()
	phyWire := wire.NewConn(phyConn)
	require.NoError(t, phyWire.Send("PHY", []int{}))

	// MAC -> PHY.
	require.NoError(t, macWire.Send("PHY-DATA.request", []int{1, 0, 1}))
	phyConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	env, err := phyWire.Receive()
	require.NoError(t, err)
	assert.Equal(t, "PHY-DATA.request", env.Primitive)
	var bits []int
	require.NoError(t, env.DecodeData(&bits))
	assert.Equal(t, []int{1, 0, 1}, bits)

	// PHY -> MAC.
	require.NoError(t, phyWire.Send("PHY-DATA.indication", []int{0, 1, 1}))
	macConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	env, err = macWire.Receive()
	require.NoError(t, err)
	assert.Equal(t, "PHY-DATA.indication", env.Primitive)
}

func Test_Broker_ClosesConnectionOnUnknownIdentification(t *testing.T) {
	logger := log.New(io.Discard)
	b, err := New("127.0.0.1", logger)
	require.NoError(t, err)
	defer b.Close()
	go b.Run()

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(b.Port()))

	rogue, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer rogue.Close()
	rogueWire := wire.NewConn(rogue)
	require.NoError(t, rogueWire.Send("CHANNEL", []int{}))

	rogue.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	_, err = rogue.Read(buf)
	assert.Equal(t, io.EOF, err, "the broker should close an unrecognized client's connection")
}

