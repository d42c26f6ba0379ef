package mac

import (
	"crypto/rc4"
	"encoding/binary"
	"hash/crc32"
)

// Kind names an 802.11 frame by function, matching the "TYPE" string key the
// original transmission parameters dictionary carries.
type Kind string

const (
	KindBeacon               Kind = "Beacon"
	KindProbeRequest         Kind = "Probe Request"
	KindProbeResponse        Kind = "Probe Response"
	KindAssociationRequest   Kind = "Association Request"
	KindAssociationResponse  Kind = "Association Response"
	KindAuthentication       Kind = "Authentication"
	KindACK                  Kind = "ACK"
	KindData                 Kind = "Data"
)

// frameCode is one row of FRAME_TYPES: the Type and Subtype subfield values
// of the 802.11 Frame Control field, IEEE Std 802.11-2020 9.2.4.1.
type frameCode struct {
	typeBits    [2]int
	subtypeBits [4]int
}

var frameCodes = map[Kind]frameCode{
	KindAssociationRequest:  {[2]int{0, 0}, [4]int{0, 0, 0, 0}},
	KindAssociationResponse: {[2]int{0, 0}, [4]int{0, 0, 0, 1}},
	KindProbeRequest:        {[2]int{0, 0}, [4]int{0, 1, 0, 0}},
	KindProbeResponse:       {[2]int{0, 0}, [4]int{0, 1, 0, 1}},
	KindBeacon:              {[2]int{0, 0}, [4]int{1, 0, 0, 0}},
	KindAuthentication:      {[2]int{0, 0}, [4]int{1, 0, 1, 1}},
	KindACK:                 {[2]int{0, 1}, [4]int{1, 1, 0, 1}},
	KindData:                {[2]int{1, 0}, [4]int{0, 0, 0, 0}},
}

// FrameParameters is the transmission-side counterpart of a queued frame,
// equivalent to the original's transmission parameters dictionary.
type FrameParameters struct {
	Kind        Kind
	Destination Address
	WaitForACK  bool
	Retry       bool
}

// txItem is one entry of the TX queue: the frame's parameters plus its
// payload (frame body appended after the MAC header).
type txItem struct {
	params  FrameParameters
	payload []byte
}

// txItemKey is a value comparable with ==, built by key(), used to deduplicate the TX
// queue the same way the original compares json.dumps(item, sort_keys=True).
type txItemKey struct {
	kind        Kind
	destination Address
	waitForACK  bool
	retry       bool
	payload     string
}

func (t txItem) key() txItemKey {
	return txItemKey{t.params.Kind, t.params.Destination, t.params.WaitForACK, t.params.Retry, string(t.payload)}
}

// generateFrameControlField builds the 16-bit Frame Control field (returned
// as 2 bytes), IEEE Std 802.11-2020 9.2.4.1. Direction (To DS/From DS) is
// left at [0,0] since no frame this MAC generates is ever a DS-to-DS relay.
func generateFrameControlField(params FrameParameters) []byte {
	bits := make([]int, 16)
	code := frameCodes[params.Kind]
	copy(bits[2:4], reversed(code.typeBits[:]))
	copy(bits[4:8], reversed(code.subtypeBits[:]))
	if params.Retry {
		bits[11] = 1
	}
	return bitsToBytes(bits)
}

func reversed(bits []int) []int {
	out := make([]int, len(bits))
	for i, b := range bits {
		out[len(bits)-1-i] = b
	}
	return out
}

// generateMACHeader builds the 24-byte MAC header: Frame Control, Duration/ID
// (unused, zero), Address 1 (DA), Address 2 (SA). IEEE Std 802.11-2020 9.3.3.
func generateMACHeader(params FrameParameters, source Address) []byte {
	header := make([]byte, 24)
	copy(header[0:2], generateFrameControlField(params))
	copy(header[4:10], params.Destination[:])
	copy(header[10:16], source[:])
	return header
}

// generatePSDU appends a CRC-32 (IEEE 802.3/802.11 FCS polynomial) to payload
// and returns the whole frame as a bit list, ready for PHY-DATA.request
// octets.
func generatePSDU(payload []byte) []int {
	crc := make([]byte, 4)
	binary.LittleEndian.PutUint32(crc, crc32.ChecksumIEEE(payload))
	return bytesToBits(append(append([]byte{}, payload...), crc...))
}

// checkCRC32 reports whether the trailing 4 bytes of frame match the CRC-32
// of the bytes preceding them.
func checkCRC32(frame []byte) bool {
	if len(frame) < 4 {
		return false
	}
	body, trailer := frame[:len(frame)-4], frame[len(frame)-4:]
	want := make([]byte, 4)
	binary.LittleEndian.PutUint32(want, crc32.ChecksumIEEE(body))
	for i := range want {
		if want[i] != trailer[i] {
			return false
		}
	}
	return true
}

func bitsToBytes(bits []int) []byte {
	out := make([]byte, 0, (len(bits)+7)/8)
	for i := 0; i < len(bits); i += 8 {
		end := i + 8
		if end > len(bits) {
			end = len(bits)
		}
		var b byte
		for _, bit := range bits[i:end] {
			b = b<<1 | byte(bit)
		}
		if end-i < 8 {
			b <<= uint(8 - (end - i))
		}
		out = append(out, b)
	}
	return out
}

func bytesToBits(data []byte) []int {
	out := make([]int, 0, len(data)*8)
	for _, b := range data {
		for i := 7; i >= 0; i-- {
			out = append(out, int((b>>i)&1))
		}
	}
	return out
}

// rc4Cipher XORs challenge against the RC4 keystream derived from seed,
// used both to encrypt (STA side) and decrypt (AP side) shared-key
// authentication challenge text — XOR with a given keystream is its own
// inverse.
func rc4Cipher(seed, challenge []byte) ([]byte, error) {
	c, err := rc4.NewCipher(seed)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(challenge))
	c.XORKeyStream(out, challenge)
	return out, nil
}
