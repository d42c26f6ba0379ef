package channel

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huskysdr/aerowave/internal/wire"
)

func Test_convolve_WithImpulseOne_IsIdentity(t *testing.T) {
	signal := []complex128{1 + 1i, 2 - 1i, -3 + 0i}
	out := convolve(signal, []complex128{1})
	assert.Equal(t, signal, out)
}

func Test_convolve_LengthIsSumMinusOne(t *testing.T) {
	a := make([]complex128, 5)
	b := make([]complex128, 3)
	out := convolve(a, b)
	assert.Len(t, out, len(a)+len(b)-1)
}

func Test_convolve_EmptyInputYieldsNil(t *testing.T) {
	assert.Nil(t, convolve(nil, []complex128{1}))
	assert.Nil(t, convolve([]complex128{1}, nil))
}

func Test_Model_Pass_PreservesConvolvedLength(t *testing.T) {
	model := Model{ImpulseResponse: []complex128{1, 0.5}, SNRdB: 20}
	signal := make([]complex128, 10)
	for i := range signal {
		signal[i] = complex(float64(i), 0)
	}

	out := model.Pass(signal)
	assert.Len(t, out, len(signal)+1) // len(a)+len(b)-1 with a 2-tap response.
}

// Test_Model_Pass_HighSNRStaysCloseToCleanSignal checks the noise term's
// magnitude is bounded by its configured standard deviation at a high SNR,
// using a large sample count so the assertion isn't sensitive to the luck of
// any individual Gaussian draw.
func Test_Model_Pass_HighSNRStaysCloseToCleanSignal(t *testing.T) {
	const amplitude = 10.0
	const n = 2000

	clean := make([]complex128, n)
	for i := range clean {
		clean[i] = complex(amplitude, 0)
	}

	model := Model{ImpulseResponse: []complex128{1}, SNRdB: 40}
	noisy := model.Pass(clean)
	require.Len(t, noisy, n)

	var sumRe float64
	for _, c := range noisy {
		sumRe += real(c)
	}
	meanRe := sumRe / n

	assert.InDelta(t, amplitude, meanRe, 0.5, "mean of a large noisy sample should stay close to the clean amplitude at 40dB SNR")
}

func Test_Server_BroadcastsRFSignalToAllClients(t *testing.T) {
	logger := log.New(io.Discard)
	model := Model{ImpulseResponse: []complex128{1}, SNRdB: 200} // negligible noise.

	server, err := New("127.0.0.1:0", model, logger)
	require.NoError(t, err)
	defer server.Close()
	go server.Serve()

	dial := func() *wire.Conn {
		conn, err := net.Dial("tcp", server.Addr().String())
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		return wire.NewConn(conn)
	}

	sender := dial()
	listener := dial()

	time.Sleep(20 * time.Millisecond) // let Serve's Accept loop register both clients.

	sent := []complex128{1 + 2i, -3 + 4i, 0.5 - 0.5i}
	require.NoError(t, sender.Send("RF-SIGNAL", wire.ComplexSamplesToWire(sent)))

	for _, conn := range []*wire.Conn{sender, listener} {
		conn.Raw().SetReadDeadline(time.Now().Add(2 * time.Second))
		env, err := conn.Receive()
		require.NoError(t, err)
		assert.Equal(t, "RF-SIGNAL", env.Primitive)

		var pairs []wire.ComplexPair
		require.NoError(t, env.DecodeData(&pairs))
		got := wire.ComplexSamplesFromWire(pairs)
		require.Len(t, got, len(sent))
		for i := range sent {
			assert.InDelta(t, real(sent[i]), real(got[i]), 0.2)
			assert.InDelta(t, imag(sent[i]), imag(got[i]), 0.2)
		}
	}
}
