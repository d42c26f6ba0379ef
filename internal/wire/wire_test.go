package wire

import (
	"encoding/binary"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type sample struct {
	Foo string `json:"foo"`
	Bar int    `json:"bar"`
}

func pipeConns(t *testing.T) (*Conn, *Conn) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() { a.Close(); b.Close() })
	return NewConn(a), NewConn(b)
}

func Test_Conn_SendReceive_RoundTrip(t *testing.T) {
	client, server := pipeConns(t)

	go func() {
		_ = client.Send("DATA.request", sample{Foo: "hi", Bar: 42})
	}()

	env, err := server.Receive()
	require.NoError(t, err)
	assert.Equal(t, "DATA.request", env.Primitive)

	var got sample
	require.NoError(t, env.DecodeData(&got))
	assert.Equal(t, sample{Foo: "hi", Bar: 42}, got)
}

func Test_Conn_Receive_EOFOnCleanClose(t *testing.T) {
	client, server := pipeConns(t)
	client.Close()

	_, err := server.Receive()
	assert.ErrorIs(t, err, io.EOF)
}

func Test_Conn_Send_RejectsOversizeFrame(t *testing.T) {
	client, _ := pipeConns(t)
	huge := make([]byte, MaxFrameSize+1)

	err := client.Send("RF-SIGNAL.request", huge)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds max size")
}

func Test_Conn_Receive_RejectsOversizeLengthPrefix(t *testing.T) {
	client, server := pipeConns(t)

	go func() {
		var header [4]byte
		binary.BigEndian.PutUint32(header[:], MaxFrameSize+1)
		_, _ = client.Raw().Write(header[:])
	}()

	_, err := server.Receive()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds max")
}

func Test_Envelope_DecodeData_EmptyIsNoOp(t *testing.T) {
	env := Envelope{Primitive: "PHY-RXSTART.indication"}
	var v sample
	assert.NoError(t, env.DecodeData(&v))
	assert.Zero(t, v)
}

func Test_ComplexSamples_WireRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 32).Draw(t, "n")
		samples := make([]complex128, n)
		for i := range samples {
			re := rapid.Float64Range(-1e6, 1e6).Draw(t, "re")
			im := rapid.Float64Range(-1e6, 1e6).Draw(t, "im")
			samples[i] = complex(re, im)
		}

		wire := ComplexSamplesToWire(samples)
		require.Len(t, wire, n)
		back := ComplexSamplesFromWire(wire)
		assert.Equal(t, samples, back)
	})
}
