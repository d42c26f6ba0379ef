package phy

import (
	"io"
	"math"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/huskysdr/aerowave/internal/mcs"
	"github.com/huskysdr/aerowave/internal/wire"
)

func Test_FFT_IFFT_RoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		x := make([]complex128, fftSize)
		for i := range x {
			re := rapid.Float64Range(-10, 10).Draw(t, "re")
			im := rapid.Float64Range(-10, 10).Draw(t, "im")
			x[i] = complex(re, im)
		}

		freq := fft64(x)
		back := ifft64(freq)
		for i := range x {
			assert.InDelta(t, real(x[i]), real(back[i]), 1e-6)
			assert.InDelta(t, imag(x[i]), imag(back[i]), 1e-6)
		}
	})
}

func Test_GenerateLFSRSequence_IsDeterministicAndBinary(t *testing.T) {
	a := generateLFSRSequence(50, 42)
	b := generateLFSRSequence(50, 42)
	require.Equal(t, a, b)
	for _, bit := range a {
		assert.Contains(t, []int{0, 1}, bit)
	}
}

func Test_GenerateLFSRSequence_DifferentSeedsDiverge(t *testing.T) {
	a := generateLFSRSequence(32, 1)
	b := generateLFSRSequence(32, 2)
	assert.NotEqual(t, a, b)
}

func Test_Interleave_Deinterleave_RoundTrip(t *testing.T) {
	for rate, params := range mcs.RateTable {
		bits := make([]int, params.NCBPS)
		for i := range bits {
			bits[i] = i % 2
		}

		interleaved := interleave(bits, rate)
		recovered := deinterleave(interleaved, rate)
		assert.Equalf(t, bits, recovered, "rate %d Mbps interleave/deinterleave mismatch", rate)
	}
}

func Test_SubcarrierModulation_HardDecisionDemapping_RoundTrip(t *testing.T) {
	for rate, params := range mcs.RateTable {
		bits := make([]int, params.NCBPS)
		for i := range bits {
			bits[i] = (i * 3) % 2
		}

		modulated := subcarrierModulation(bits, rate)
		demapped := hardDecisionDemapping(modulated, params.Modulation)
		assert.Equalf(t, bits, demapped, "rate %d Mbps modulation/demapping mismatch", rate)
	}
}

func Test_PilotSubcarrierInsertion_EqualizeAndRemovePilots_RoundTrip(t *testing.T) {
	data := make([]complex128, 48)
	for i := range data {
		data[i] = complex(float64(i%5)-2, float64(i%3)-1)
	}

	withPilots := pilotSubcarrierInsertion(data, 1)
	require.Len(t, withPilots, 52)

	unitChannel := make([]complex128, 52)
	for i := range unitChannel {
		unitChannel[i] = 1
	}

	recovered := equalizeAndRemovePilots(withPilots, unitChannel)
	assert.Equal(t, data, recovered)
}

func Test_BccEncode_ConvolutionalDecodeViterbi_RoundTrip_NoNoise(t *testing.T) {
	for _, codingRate := range []mcs.CodingRate{mcs.Rate1_2, mcs.Rate2_3, mcs.Rate3_4} {
		p := &PHY{}
		bits := make([]int, 60)
		for i := range bits[:54] {
			bits[i] = (i * 7) % 2
		}
		// Trailing 6 zero bits flush the encoder's shift register, the same
		// tail every DATA symbol's last chunk carries, removing any
		// traceback ambiguity at the end of the trellis.

		encoded := p.bccEncode(bits, codingRate)
		decoded := convolutionalDecodeViterbi(encoded, codingRate)

		require.Len(t, decoded, len(bits))
		assert.Equalf(t, bits, decoded, "coding rate %s round-trip mismatch", codingRate)
	}
}

func Test_GenerateRFSignal_MatchesIQUpmixFormula(t *testing.T) {
	ppdu := []complex128{complex(1, 0.5), complex(-0.25, 0.75), complex(0, -1)}
	rf := GenerateRFSignal(ppdu, DefaultCarrierFrequencyHz, DefaultSampleRateHz)
	require.Len(t, rf, len(ppdu))

	for n, c := range ppdu {
		tSec := float64(n) / DefaultSampleRateHz
		angle := 2 * math.Pi * DefaultCarrierFrequencyHz * tSec
		want := real(c)*math.Cos(angle) - imag(c)*math.Sin(angle)
		assert.InDeltaf(t, want, rf[n], 1e-9, "sample %d", n)
	}
}

func Test_GenerateRFSignal_EmptyInputYieldsEmptyOutput(t *testing.T) {
	rf := GenerateRFSignal(nil, DefaultCarrierFrequencyHz, DefaultSampleRateHz)
	assert.Empty(t, rf)
}

// Test_PHY_TXRX_RoundTrip drives a transmitting PHY and a receiving PHY
// through the full TXSTART/DATA/TXEND -> RF-SIGNAL -> DATA.indication
// pipeline exactly as chip.go wires a real MAC/channel link, and confirms
// the receiver recovers the exact PSDU bits the transmitter sent.
func Test_PHY_TXRX_RoundTrip(t *testing.T) {
	const rate = 6
	data := []int{
		1, 0, 1, 1, 0, 0, 1, 0,
		0, 0, 1, 1, 1, 0, 1, 0,
	}
	length := len(data) / 8

	logger := log.New(io.Discard)

	txMPIFLocal, txMPIFRemote := net.Pipe()
	defer txMPIFLocal.Close()
	defer txMPIFRemote.Close()
	go drainForever(txMPIFRemote)

	txChannelLocal, txChannelRemote := net.Pipe()
	defer txChannelLocal.Close()
	defer txChannelRemote.Close()
	rfSignal := make(chan []complex128, 1)
	go func() {
		conn := wire.NewConn(txChannelRemote)
		env, err := conn.Receive()
		if err != nil {
			return
		}
		var pairs []wire.ComplexPair
		_ = env.DecodeData(&pairs)
		rfSignal <- wire.ComplexSamplesFromWire(pairs)
	}()

	tx := New("tx", logger, 1e-9)
	tx.mpifConn = wire.NewConn(txMPIFLocal)
	tx.channelConn = wire.NewConn(txChannelLocal)

	tx.controller(event{primitive: "PHY-TXSTART.request", bits: []int{rate, length}})
	for i := 0; i < length; i++ {
		tx.controller(event{primitive: "PHY-DATA.request", bits: data[i*8 : (i+1)*8]})
	}
	tx.controller(event{primitive: "PHY-TXEND.request"})

	var samples []complex128
	select {
	case samples = <-rfSignal:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for RF-SIGNAL")
	}
	require.NotEmpty(t, samples)

	rxMPIFLocal, rxMPIFRemote := net.Pipe()
	defer rxMPIFLocal.Close()
	defer rxMPIFRemote.Close()

	type rxResult struct {
		bits      []int
		finalPrim string
	}
	rxDone := make(chan rxResult, 1)
	go func() {
		conn := wire.NewConn(rxMPIFRemote)
		var result rxResult
		for {
			env, err := conn.Receive()
			if err != nil {
				rxDone <- result
				return
			}
			switch {
			case env.Primitive == "PHY-DATA.indication":
				var bits []int
				_ = env.DecodeData(&bits)
				result.bits = append(result.bits, bits...)
			case strings.HasPrefix(env.Primitive, "PHY-RXEND.indication"):
				result.finalPrim = env.Primitive
				rxDone <- result
				return
			}
		}
	}()

	rx := New("rx", logger, 1e-9)
	rx.mpifConn = wire.NewConn(rxMPIFLocal)

	go rx.controller(event{primitive: "RF-SIGNAL", samples: samples})

	var result rxResult
	select {
	case result = <-rxDone:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for PHY-RXEND.indication")
	}

	assert.Equal(t, "PHY-RXEND.indication(No_Error)", result.finalPrim)
	assert.Equal(t, data, result.bits)
}

func drainForever(conn net.Conn) {
	c := wire.NewConn(conn)
	for {
		if _, err := c.Receive(); err != nil {
			return
		}
	}
}
