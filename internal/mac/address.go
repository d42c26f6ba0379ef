package mac

import (
	"fmt"
	"math/rand/v2"
)

// Address is a 48-bit 802.11 MAC address. Representing it as a fixed-size
// array (rather than a []byte, as the original carries addresses) lets every
// comparison the state machine needs — associated AP, blacklist membership,
// duplicate-source checks — use Go's native == and map-key semantics.
type Address [6]byte

// Broadcast is the all-ones destination address used for Beacon and Probe
// Request frames.
var Broadcast = Address{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

// String formats the address as colon-separated hex octets.
func (a Address) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", a[0], a[1], a[2], a[3], a[4], a[5])
}

// GenerateAddress returns a random unicast, locally-administered MAC address.
func GenerateAddress() Address {
	var a Address
	first := byte(rand.IntN(256))
	a[0] = (first &^ 0b11) | 0b10 // unicast (bit0=0), locally administered (bit1=1)
	for i := 1; i < 6; i++ {
		a[i] = byte(rand.IntN(256))
	}
	return a
}

func addressFromBytes(b []byte) Address {
	var a Address
	copy(a[:], b)
	return a
}
