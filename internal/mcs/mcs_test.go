package mcs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var legalRates = []int{6, 9, 12, 18, 24, 36, 48, 54}

func Test_RateTable_HasEveryLegalRate(t *testing.T) {
	require.Len(t, RateTable, len(legalRates))
	for _, rate := range legalRates {
		_, ok := RateTable[rate]
		assert.Truef(t, ok, "RateTable missing entry for %d Mbps", rate)
	}
}

func Test_RateTable_NDBPSConsistentWithNCBPSAndCodingRate(t *testing.T) {
	codingRateFraction := map[CodingRate]float64{
		Rate1_2: 1.0 / 2.0,
		Rate2_3: 2.0 / 3.0,
		Rate3_4: 3.0 / 4.0,
	}

	for rate, p := range RateTable {
		want := float64(p.NCBPS) * codingRateFraction[p.CodingRate]
		assert.Equalf(t, want, float64(p.NDBPS), "rate %d: NDBPS inconsistent with NCBPS*codingRate", rate)
		assert.Equalf(t, p.NBPSC*48, p.NCBPS, "rate %d: NCBPS must be NBPSC * 48 subcarriers", rate)
	}
}

func Test_RateFromSignalFieldCoding_RoundTrip(t *testing.T) {
	for rate, p := range RateTable {
		got, ok := RateFromSignalFieldCoding(p.SignalFieldCoding)
		require.True(t, ok)
		assert.Equal(t, rate, got)
	}
}

func Test_RateFromSignalFieldCoding_UndefinedCodeReturnsNotOK(t *testing.T) {
	_, ok := RateFromSignalFieldCoding([4]int{1, 1, 0, 0})
	assert.False(t, ok)
}

func Test_SignalFieldCoding_AllDistinct(t *testing.T) {
	seen := map[[4]int]int{}
	for rate, p := range RateTable {
		seen[p.SignalFieldCoding] = rate
	}
	assert.Len(t, seen, len(RateTable), "every rate must have a unique SIGNAL field RATE code")
}

func Test_PuncturingPattern_KnownCodingRates(t *testing.T) {
	assert.Equal(t, []int{1, 1}, PuncturingPattern(Rate1_2))
	assert.Equal(t, []int{1, 1, 1, 0}, PuncturingPattern(Rate2_3))
	assert.Equal(t, []int{1, 1, 1, 0, 0, 1}, PuncturingPattern(Rate3_4))
	assert.Nil(t, PuncturingPattern(CodingRate("bogus")))
}

func Test_PuncturingPattern_PunctureCountMatchesCodingRate(t *testing.T) {
	cases := map[CodingRate]float64{Rate1_2: 0.5, Rate2_3: 2.0 / 3.0, Rate3_4: 0.75}
	for codingRate, want := range cases {
		pattern := PuncturingPattern(codingRate)
		kept := 0
		for _, bit := range pattern {
			if bit == 1 {
				kept++
			}
		}
		// The pattern spans the rate-1/2 mother code's output, two coded
		// bits per input bit.
		assert.InDelta(t, want, float64(len(pattern)/2)/float64(kept), 1e-9)
	}
}

func Test_G1G2_AreSevenTapMasksOfZeroOrOne(t *testing.T) {
	for _, tap := range append(append([]int{}, G1[:]...), G2[:]...) {
		assert.Contains(t, []int{0, 1}, tap)
	}
}

func Test_PilotIndices_WithinNonNullSubcarrierRange(t *testing.T) {
	for _, idx := range PilotIndices {
		assert.GreaterOrEqual(t, idx, 0)
		assert.Less(t, idx, 52)
	}
}

func Test_TrainingFields_Have52NonNullSubcarriers(t *testing.T) {
	assert.Len(t, FrequencyDomainSTF, 52)
	assert.Len(t, FrequencyDomainLTF, 52)
}

func Test_FrequencyDomainLTF_IsUnitMagnitude(t *testing.T) {
	for i, v := range FrequencyDomainLTF {
		mag := real(v)*real(v) + imag(v)*imag(v)
		assert.InDeltaf(t, 1.0, mag, 1e-9, "LTF subcarrier %d must have unit magnitude", i)
	}
}

func Test_WEPKeys_HasAllFourSlotsNonEmpty(t *testing.T) {
	require.Len(t, WEPKeys, 4)
	for id := 0; id < 4; id++ {
		key, ok := WEPKeys[id]
		require.Truef(t, ok, "missing WEP key slot %d", id)
		assert.NotEmpty(t, key)
	}
}
