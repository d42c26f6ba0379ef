// Package mcs holds the IEEE 802.11-2020 Clause 17 (OFDM PHY) reference
// constants that a compliant implementation must reproduce exactly rather
// than regenerate: the modulation and coding scheme table (Table 17-6), the
// frequency-domain short/long training sequences, the rate-1/2 convolutional
// encoder's generator polynomials, and the fixed WEP key table used for
// shared-key authentication in simulation runs.
package mcs

import "math"

// Modulation identifies the subcarrier mapping used by a PHY rate.
type Modulation string

const (
	BPSK   Modulation = "BPSK"
	QPSK   Modulation = "QPSK"
	QAM16  Modulation = "16-QAM"
	QAM64  Modulation = "64-QAM"
)

// CodingRate identifies the puncturing pattern applied on top of the rate-1/2
// convolutional code.
type CodingRate string

const (
	Rate1_2 CodingRate = "1/2"
	Rate2_3 CodingRate = "2/3"
	Rate3_4 CodingRate = "3/4"
)

// Params is one row of the 802.11a/g rate table (Table 17-6), keyed by the
// PHY rate in Mbps.
type Params struct {
	Modulation         Modulation
	CodingRate         CodingRate
	NBPSC              int // coded bits per subcarrier
	NCBPS              int // coded bits per OFDM symbol
	NDBPS              int // data bits per OFDM symbol
	SignalFieldCoding  [4]int
}

// RateTable is MODULATION_CODING_SCHEME_PARAMETERS, vendored verbatim from
// IEEE Std 802.11-2020, Table 17-6 (p. 2816).
var RateTable = map[int]Params{
	6:  {BPSK, Rate1_2, 1, 48, 24, [4]int{1, 1, 0, 1}},
	9:  {BPSK, Rate3_4, 1, 48, 36, [4]int{1, 1, 1, 1}},
	12: {QPSK, Rate1_2, 2, 96, 48, [4]int{0, 1, 0, 1}},
	18: {QPSK, Rate3_4, 2, 96, 72, [4]int{0, 1, 1, 1}},
	24: {QAM16, Rate1_2, 4, 192, 96, [4]int{1, 0, 0, 1}},
	36: {QAM16, Rate3_4, 4, 192, 144, [4]int{1, 0, 1, 1}},
	48: {QAM64, Rate2_3, 6, 288, 192, [4]int{0, 0, 0, 1}},
	54: {QAM64, Rate3_4, 6, 288, 216, [4]int{0, 0, 1, 1}},
}

// RateFromSignalFieldCoding reverses the SIGNAL field RATE bits back to a
// PHY rate in Mbps. Returns ok=false for an undefined rate code.
func RateFromSignalFieldCoding(coding [4]int) (rate int, ok bool) {
	for r, p := range RateTable {
		if p.SignalFieldCoding == coding {
			return r, true
		}
	}
	return 0, false
}

// G1, G2 are the rate-1/2 convolutional encoder's generator polynomials,
// 133(oct) and 171(oct), expressed as 7-tap masks matching a shift register
// whose element 0 holds the newest input bit.
var (
	G1 = [7]int{1, 0, 1, 1, 0, 1, 1}
	G2 = [7]int{1, 1, 1, 1, 0, 0, 1}
)

// PuncturingPattern returns the puncturing mask for a coding rate, reused
// identically by the BCC encoder and the Viterbi decoder.
func PuncturingPattern(rate CodingRate) []int {
	switch rate {
	case Rate1_2:
		return []int{1, 1}
	case Rate2_3:
		return []int{1, 1, 1, 0}
	case Rate3_4:
		return []int{1, 1, 1, 0, 0, 1}
	default:
		return nil
	}
}

// PilotIndices are the tone positions (within the 52 non-null subcarriers)
// reserved for pilot signals, IEEE Std 802.11-2020 17.3.5.9.
var PilotIndices = [4]int{5, 19, 32, 46}

// sqrt13over6 is the STF normalization factor from Eq. 17-25.
var sqrt13over6 = math.Sqrt(13.0 / 6.0)

// FrequencyDomainSTF is the 52 non-null subcarrier values (ordered
// subcarrier -26..-1 then +1..+26, DC omitted) of the Short Training Field,
// IEEE Std 802.11-2020 Eq. 17-25.
var FrequencyDomainSTF = scale(sqrt13over6, []complex128{
	0, 0, 1 + 1i, 0, 0, 0, -1 - 1i, 0, 0, 0, 1 + 1i, 0, 0, 0, -1 - 1i, 0, 0, 0, -1 - 1i, 0, 0, 0, 1 + 1i, 0, 0, 0,
	0, 0, 0, -1 - 1i, 0, 0, 0, -1 - 1i, 0, 0, 0, 1 + 1i, 0, 0, 0, 1 + 1i, 0, 0, 0, 1 + 1i, 0, 0, 0, 1 + 1i, 0, 0,
})

// FrequencyDomainLTF is the 52 non-null subcarrier values (same ordering) of
// the Long Training Field, IEEE Std 802.11-2020 17.3.5.10.
var FrequencyDomainLTF = []complex128{
	1, 1, -1, -1, 1, 1, -1, 1, -1, 1, 1, 1, 1, 1, 1, -1, -1, 1, 1, -1, 1, -1, 1, 1, 1, 1,
	1, -1, -1, 1, 1, -1, 1, -1, 1, -1, -1, -1, -1, -1, 1, 1, -1, -1, 1, -1, 1, -1, 1, 1, 1, 1,
}

func scale(factor float64, v []complex128) []complex128 {
	out := make([]complex128, len(v))
	for i, c := range v {
		out[i] = complex(factor, 0) * c
	}
	return out
}

// WEPKeys is the fixed shared-key table used by shared-key authentication in
// simulation runs, indexed by key ID (0-3), matching the four-slot
// dot11WEPDefaultKeys table of legacy 802.11 shared-key authentication.
var WEPKeys = map[int][]byte{
	0: []byte("aerowave-key-0"),
	1: []byte("aerowave-key-1"),
	2: []byte("aerowave-key-2"),
	3: []byte("aerowave-key-3"),
}
