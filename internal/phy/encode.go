package phy

import (
	"math"

	"github.com/huskysdr/aerowave/internal/mcs"
)

// bccEncode runs the rate-1/2 K=7 convolutional encoder (generators
// mcs.G1/G2) over bits, advancing the shared shift register, then punctures
// for rates above 1/2. IEEE Std 802.11-2020 17.3.5.6.
func (p *PHY) bccEncode(bits []int, codingRate mcs.CodingRate) []int {
	encoded := make([]int, 0, 2*len(bits))

	for _, bit := range bits {
		copy(p.bccShiftRegister[1:], p.bccShiftRegister[:6])
		p.bccShiftRegister[0] = bit

		for _, g := range [][7]int{mcs.G1, mcs.G2} {
			sum := 0
			for i := 0; i < 7; i++ {
				sum += p.bccShiftRegister[i] * g[i]
			}
			encoded = append(encoded, sum%2)
		}
	}

	if codingRate == mcs.Rate1_2 {
		return encoded
	}

	pattern := mcs.PuncturingPattern(codingRate)
	out := make([]int, 0, len(encoded))
	for i, bit := range encoded {
		if pattern[i%len(pattern)] == 1 {
			out = append(out, bit)
		}
	}
	return out
}

// interleave applies the two-step 802.11 bit interleaver, IEEE Std
// 802.11-2020 17.3.5.7.
func interleave(bits []int, phyRate int) []int {
	params := mcs.RateTable[phyRate]
	nBPSC, nCBPS := params.NBPSC, params.NCBPS
	s := max(nBPSC/2, 1)

	out := make([]int, nCBPS)
	for k := 0; k < nCBPS; k++ {
		i := (nCBPS/16)*(k%16) + k/16
		j := s*(i/s) + (i+nCBPS-(16*i)/nCBPS)%s
		out[j] = bits[k]
	}
	return out
}

// deinterleave inverts interleave.
func deinterleave(bits []int, phyRate int) []int {
	params := mcs.RateTable[phyRate]
	nBPSC, nCBPS := params.NBPSC, params.NCBPS
	s := max(nBPSC/2, 1)

	interleaveMap := make([]int, nCBPS)
	for k := 0; k < nCBPS; k++ {
		i := (nCBPS/16)*(k%16) + k/16
		j := s*(i/s) + (i+nCBPS-(16*i)/nCBPS)%s
		interleaveMap[k] = j
	}
	deinterleaveMap := make([]int, nCBPS)
	for k, v := range interleaveMap {
		deinterleaveMap[v] = k
	}

	out := make([]int, len(bits))
	for k := 0; k < len(bits) && k < nCBPS; k++ {
		out[deinterleaveMap[k]] = bits[k]
	}
	return out
}

var (
	sqrt2  = math.Sqrt(2)
	sqrt10 = math.Sqrt(10)
	sqrt42 = math.Sqrt(42)
)

// subcarrierModulation maps interleaved bits to BPSK/QPSK/16-QAM/64-QAM
// constellation points, IEEE Std 802.11-2020 17.3.5.8.
func subcarrierModulation(bits []int, phyRate int) []complex128 {
	params := mcs.RateTable[phyRate]
	nBPSC := params.NBPSC

	switch params.Modulation {
	case mcs.BPSK:
		out := make([]complex128, len(bits))
		for i, b := range bits {
			out[i] = complex(float64(2*b-1), 0)
		}
		return out

	case mcs.QPSK:
		mapping := func(b int) float64 {
			if b == 1 {
				return 1
			}
			return -1
		}
		out := make([]complex128, 0, len(bits)/nBPSC)
		for i := 0; i+1 < len(bits); i += 2 {
			out = append(out, complex(mapping(bits[i]), mapping(bits[i+1]))/complex(sqrt2, 0))
		}
		return out

	case mcs.QAM16:
		mapping := []float64{-3, -1, 3, 1}
		out := make([]complex128, 0, len(bits)/nBPSC)
		for i := 0; i+3 < len(bits); i += 4 {
			re := mapping[2*bits[i]+bits[i+1]]
			im := mapping[2*bits[i+2]+bits[i+3]]
			out = append(out, complex(re, im)/complex(sqrt10, 0))
		}
		return out

	case mcs.QAM64:
		mapping := []float64{-7, -5, -1, -3, 7, 5, 1, 3}
		out := make([]complex128, 0, len(bits)/nBPSC)
		for i := 0; i+5 < len(bits); i += 6 {
			re := mapping[4*bits[i]+2*bits[i+1]+bits[i+2]]
			im := mapping[4*bits[i+3]+2*bits[i+4]+bits[i+5]]
			out = append(out, complex(re, im)/complex(sqrt42, 0))
		}
		return out
	}
	return nil
}

// pilotSubcarrierInsertion interleaves 48 modulated data subcarriers with 4
// pilot subcarriers (indices 5, 19, 32, 46) into the 52 non-null tones of an
// OFDM symbol, IEEE Std 802.11-2020 17.3.5.9.
func pilotSubcarrierInsertion(modulated []complex128, pilotPolarity int) []complex128 {
	ofdmSymbol := make([]complex128, 52)
	pilotValues := []complex128{complex(float64(pilotPolarity), 0), complex(float64(pilotPolarity), 0),
		complex(float64(pilotPolarity), 0), complex(float64(-pilotPolarity), 0)}

	pilotSet := map[int]bool{}
	for _, idx := range mcs.PilotIndices {
		pilotSet[idx] = true
	}

	dataIdx, pilotIdx := 0, 0
	for i := 0; i < 52; i++ {
		if pilotSet[i] {
			ofdmSymbol[i] = pilotValues[pilotIdx]
			pilotIdx++
		} else {
			ofdmSymbol[i] = modulated[dataIdx]
			dataIdx++
		}
	}
	return ofdmSymbol
}

// fieldType selects the guard-interval/windowing treatment applied by
// convertToTimeDomain.
type fieldType int

const (
	fieldSTF fieldType = iota
	fieldLTF
	fieldSignalOrData
)

// convertToTimeDomain maps a 52-tone frequency-domain OFDM symbol onto the
// 64-point IFFT input (DC and tones ±27..±31 null), applies the cyclic
// prefix/extension appropriate to field, and windows the first/last sample
// by 0.5 so adjacent symbols can be summed at their shared sample. IEEE Std
// 802.11-2020 17.3.2, 17.3.3.
func convertToTimeDomain(ofdmSymbol []complex128, field fieldType) []complex128 {
	reordered := make([]complex128, fftSize)
	copy(reordered[1:27], ofdmSymbol[26:])
	copy(reordered[38:], ofdmSymbol[:26])

	timeSignal := ifft64(reordered)
	for i := range timeSignal {
		timeSignal[i] = roundComplex3(timeSignal[i])
	}

	var out []complex128
	switch field {
	case fieldSTF:
		out = append(out, timeSignal...)
		out = append(out, timeSignal...)
		out = append(out, timeSignal[:33]...)
	case fieldLTF:
		out = append(out, timeSignal[len(timeSignal)-32:]...)
		out = append(out, timeSignal...)
		out = append(out, timeSignal...)
		out = append(out, timeSignal[0])
	default: // SIGNAL or DATA
		out = append(out, timeSignal[len(timeSignal)-16:]...)
		out = append(out, timeSignal...)
		out = append(out, timeSignal[0])
	}

	out[0] *= 0.5
	out[len(out)-1] *= 0.5
	return out
}
