package phy

import "math"

// fftSize is the OFDM subcarrier count, IEEE Std 802.11-2020 17.3.2.
const fftSize = 64

// ifft64 and fft64 are implemented as direct O(N^2) DFT sums rather than a
// radix-2 fast transform: at N=64 the two are performance-equivalent for a
// simulation (4096 complex multiplies per symbol), and no third-party FFT
// library appears anywhere in the example corpus to ground a dependency on.
func ifft64(x []complex128) []complex128 {
	n := len(x)
	out := make([]complex128, n)
	for k := 0; k < n; k++ {
		var sum complex128
		for j := 0; j < n; j++ {
			angle := 2 * math.Pi * float64(k) * float64(j) / float64(n)
			sum += x[j] * complex(math.Cos(angle), math.Sin(angle))
		}
		out[k] = sum / complex(float64(n), 0)
	}
	return out
}

func fft64(x []complex128) []complex128 {
	n := len(x)
	out := make([]complex128, n)
	for k := 0; k < n; k++ {
		var sum complex128
		for j := 0; j < n; j++ {
			angle := 2 * math.Pi * float64(k) * float64(j) / float64(n)
			sum += x[j] * complex(math.Cos(angle), -math.Sin(angle))
		}
		out[k] = sum
	}
	return out
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func roundComplex3(c complex128) complex128 {
	return complex(round3(real(c)), round3(imag(c)))
}

// DefaultCarrierFrequencyHz and DefaultSampleRateHz are the carrier and
// baseband sampling parameters GenerateRFSignal uses unless overridden,
// matching generate_rf_signal's hardcoded 2.4GHz/20MHz.
const (
	DefaultCarrierFrequencyHz = 2.4e9
	DefaultSampleRateHz       = 20e6
)

// GenerateRFSignal upmixes a complex baseband PPDU onto a real-valued
// passband waveform via IQ modulation:
//
//	rf(t) = I(t)*cos(2*pi*fc*t) - Q(t)*sin(2*pi*fc*t)
//
// Not part of the TX/channel/RX path, which stays complex-baseband
// end-to-end; this exists as a standalone conversion for callers that need
// a real-valued RF waveform (e.g. feeding a SDR or an audio-rate plot).
func GenerateRFSignal(ppdu []complex128, carrierFrequencyHz, sampleRateHz float64) []float64 {
	out := make([]float64, len(ppdu))
	for n, c := range ppdu {
		t := float64(n) / sampleRateHz
		angle := 2 * math.Pi * carrierFrequencyHz * t
		out[n] = real(c)*math.Cos(angle) - imag(c)*math.Sin(angle)
	}
	return out
}

// generateLFSRSequence runs the length-127 scrambler LFSR (x^7 + x^4),
// IEEE Std 802.11-2020 17.3.5.5, for sequenceLength steps from a nonzero
// 7-bit seed. feedback = state[6] XOR state[3], shifted in as the new
// state[0] on each step; each feedback bit is also the scrambler's output
// bit for that step.
func generateLFSRSequence(sequenceLength, seed int) []int {
	state := make([]int, 7)
	for i := 0; i < 7; i++ {
		state[i] = (seed >> i) & 1
	}

	sequence := make([]int, sequenceLength)
	for i := 0; i < sequenceLength; i++ {
		feedback := state[6] ^ state[3]
		sequence[i] = feedback
		copy(state[1:], state[:6])
		state[0] = feedback
	}
	return sequence
}
