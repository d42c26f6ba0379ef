package phy

import (
	"errors"
	"math"
	"math/cmplx"

	"github.com/huskysdr/aerowave/internal/mcs"
)

// ErrFormatViolation is returned when the SIGNAL field's parity check fails
// or decodes to an undefined RATE.
var ErrFormatViolation = errors.New("phy: SIGNAL field format violation")

// ErrScrambleSeedNotFound is returned when no 7-bit scrambler seed
// reproduces the all-zero SERVICE field.
var ErrScrambleSeedNotFound = errors.New("phy: scrambler seed not found")

// hardDecisionDemapping reverses subcarrierModulation with a hard decision
// per constellation point (nearest Gray-coded level), IEEE Std 802.11-2020
// 17.3.5.8.
func hardDecisionDemapping(equalized []complex128, modulation mcs.Modulation) []int {
	var bits []int

	switch modulation {
	case mcs.BPSK:
		for _, sym := range equalized {
			bits = append(bits, boolBit(real(sym) >= 0))
		}

	case mcs.QPSK:
		for _, sym := range equalized {
			bits = append(bits, boolBit(real(sym) >= 0), boolBit(imag(sym) >= 0))
		}

	case mcs.QAM16:
		levels := scaledLevels([]float64{-3, -1, 1, 3}, sqrt10)
		gray := []string{"00", "01", "11", "10"}
		for _, sym := range equalized {
			bits = append(bits, grayBits(gray[nearestLevel(real(sym), levels)])...)
			bits = append(bits, grayBits(gray[nearestLevel(imag(sym), levels)])...)
		}

	case mcs.QAM64:
		levels := scaledLevels([]float64{-7, -5, -3, -1, 1, 3, 5, 7}, sqrt42)
		gray := []string{"000", "001", "011", "010", "110", "111", "101", "100"}
		for _, sym := range equalized {
			bits = append(bits, grayBits(gray[nearestLevel(real(sym), levels)])...)
			bits = append(bits, grayBits(gray[nearestLevel(imag(sym), levels)])...)
		}
	}

	return bits
}

func boolBit(b bool) int {
	if b {
		return 1
	}
	return 0
}

func scaledLevels(raw []float64, scale float64) []float64 {
	out := make([]float64, len(raw))
	for i, v := range raw {
		out[i] = v / scale
	}
	return out
}

func nearestLevel(v float64, levels []float64) int {
	best, bestDist := 0, math.Inf(1)
	for i, lvl := range levels {
		d := math.Abs(v - lvl)
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

func grayBits(s string) []int {
	out := make([]int, len(s))
	for i, c := range s {
		if c == '1' {
			out[i] = 1
		}
	}
	return out
}

// convolutionalDecodeViterbi performs hard-decision Viterbi decoding of a
// (possibly punctured) rate-1/2 K=7 convolutional code, tracing back from
// the best-metric final state over the full sequence. IEEE Std 802.11-2020
// 17.3.5.6.
func convolutionalDecodeViterbi(received []int, codingRate mcs.CodingRate) []int {
	pattern := mcs.PuncturingPattern(codingRate)
	patternLen := len(pattern)
	onesInPattern := 0
	for _, v := range pattern {
		onesInPattern += v
	}

	const k = 7
	nStates := 1 << (k - 1)

	estimatedInputBits := len(received) * patternLen / onesInPattern / 2

	pathMetrics := make([]float64, nStates)
	for i := 1; i < nStates; i++ {
		pathMetrics[i] = math.Inf(1)
	}
	paths := make([][]int, nStates)

	receivedIdx := 0
	punctureIdx := 0

	for step := 0; step < estimatedInputBits; step++ {
		newMetrics := make([]float64, nStates)
		for i := range newMetrics {
			newMetrics[i] = math.Inf(1)
		}
		newPaths := make([][]int, nStates)

		for state := 0; state < nStates; state++ {
			if math.IsInf(pathMetrics[state], 1) {
				continue
			}
			for _, inputBit := range []int{0, 1} {
				shiftRegister := shiftRegisterFor(inputBit, state, k)

				out1 := dotMod2(shiftRegister, mcs.G1[:])
				out2 := dotMod2(shiftRegister, mcs.G2[:])
				outBits := [2]int{out1, out2}

				metric := 0.0
				tempIdx := receivedIdx
				localPunctureIdx := punctureIdx
				ranOut := false
				for _, bit := range outBits {
					if pattern[localPunctureIdx] == 1 {
						if tempIdx >= len(received) {
							ranOut = true
							break
						}
						if bit != received[tempIdx] {
							metric++
						}
						tempIdx++
					}
					localPunctureIdx = (localPunctureIdx + 1) % patternLen
				}
				if ranOut {
					continue
				}

				nextState := ((state >> 1) | (inputBit << (k - 2))) & (nStates - 1)
				total := pathMetrics[state] + metric
				if total < newMetrics[nextState] {
					newMetrics[nextState] = total
					p := make([]int, len(paths[state])+1)
					copy(p, paths[state])
					p[len(p)-1] = inputBit
					newPaths[nextState] = p
				}
			}
		}

		pathMetrics = newMetrics
		paths = newPaths

		for range [2]int{} {
			if pattern[punctureIdx] == 1 {
				receivedIdx++
			}
			punctureIdx = (punctureIdx + 1) % patternLen
		}
	}

	bestState, bestMetric := 0, math.Inf(1)
	for state, m := range pathMetrics {
		if m < bestMetric {
			bestMetric = m
			bestState = state
		}
	}
	return paths[bestState]
}

func shiftRegisterFor(inputBit, state, k int) []int {
	reg := make([]int, k)
	reg[0] = inputBit
	for i := 0; i < k-1; i++ {
		reg[i+1] = (state >> (k - 2 - i)) & 1
	}
	return reg
}

func dotMod2(a []int, b []int) int {
	sum := 0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum % 2
}

// convertToFrequencyDomain FFTs the last 64 samples of a time-domain symbol
// (guard interval already stripped by slicing) and reorders the result into
// the 52 non-null subcarriers (-26..-1, +1..+26).
func convertToFrequencyDomain(timeDomainSymbol []complex128) []complex128 {
	last64 := timeDomainSymbol[len(timeDomainSymbol)-fftSize:]
	freq := fft64(last64)

	out := make([]complex128, 0, 52)
	out = append(out, freq[38:]...)
	out = append(out, freq[1:27]...)
	return out
}

// channelEstimation divides the LTF's frequency-domain representation by the
// known LTF pattern to estimate the per-subcarrier channel response,
// clamping near-zero estimates to avoid later division blowing up.
func channelEstimation(timeDomainLTF []complex128) []complex128 {
	pilots := convertToFrequencyDomain(timeDomainLTF)

	const epsilon = 1e-10
	estimate := make([]complex128, len(pilots))
	for i, p := range pilots {
		normalized := p / mcs.FrequencyDomainLTF[i]
		magnitude, phase := cmplx.Polar(normalized)
		ce := cmplx.Rect(magnitude, phase)
		if cmplx.Abs(ce) < epsilon {
			ce = complex(epsilon, 0)
		}
		estimate[i] = ce
	}
	return estimate
}

// equalizeAndRemovePilots divides each subcarrier by the channel estimate
// and strips the 4 pilot tones, leaving the 48 data subcarriers.
func equalizeAndRemovePilots(frequencySymbol, channelEstimate []complex128) []complex128 {
	equalized := make([]complex128, len(frequencySymbol))
	for i := range frequencySymbol {
		equalized[i] = frequencySymbol[i] / channelEstimate[i]
	}

	out := make([]complex128, 0, 48)
	out = append(out, equalized[:5]...)
	out = append(out, equalized[6:19]...)
	out = append(out, equalized[20:32]...)
	out = append(out, equalized[33:46]...)
	out = append(out, equalized[47:]...)
	return out
}

// detectFrame correlates baseband against the known time-domain STF and
// returns the index of the highest-correlation sample, or ok=false if the
// peak never exceeds threshold.
func detectFrame(basebandSignal []complex128, threshold float64) (index int, ok bool) {
	stf := convertToTimeDomain(mcs.FrequencyDomainSTF, fieldSTF)

	// Matched filter: sum over k of signal[start+k] * conj(stf[k]).
	ref := make([]complex128, len(stf))
	for i, c := range stf {
		ref[i] = cmplx.Conj(c)
	}

	validLen := len(basebandSignal) - len(ref) + 1
	if validLen <= 0 {
		return 0, false
	}

	bestIdx, bestMag := 0, -1.0
	for start := 0; start < validLen; start++ {
		var sum complex128
		for i, r := range ref {
			sum += basebandSignal[start+i] * r
		}
		mag := cmplx.Abs(sum)
		if mag > bestMag {
			bestMag = mag
			bestIdx = start
		}
	}

	if bestMag >= threshold {
		return bestIdx, true
	}
	return 0, false
}

// decodeSignal recovers the PHY rate and LENGTH from a received SIGNAL
// symbol (time domain, guard interval included), validating the SIGNAL
// field's parity bit.
func decodeSignal(signal []complex128, channelEstimate []complex128) (rate int, length int, err error) {
	freq := convertToFrequencyDomain(signal)
	equalized := equalizeAndRemovePilots(freq, channelEstimate)
	interleaved := hardDecisionDemapping(equalized, mcs.BPSK)
	encoded := deinterleave(interleaved, 6)
	signalData := convolutionalDecodeViterbi(encoded, mcs.Rate1_2)

	if len(signalData) < 24 {
		return 0, 0, ErrFormatViolation
	}

	parity := 0
	for _, b := range signalData[:18] {
		parity += b
	}
	if parity%2 != 0 {
		return 0, 0, ErrFormatViolation
	}

	var coding [4]int
	copy(coding[:], signalData[:4])
	rate, ok := mcs.RateFromSignalFieldCoding(coding)
	if !ok {
		return 0, 0, ErrFormatViolation
	}

	lengthBits := signalData[5:17]
	length = 0
	for i := len(lengthBits) - 1; i >= 0; i-- {
		length = length<<1 | lengthBits[i]
	}

	return rate, length, nil
}
