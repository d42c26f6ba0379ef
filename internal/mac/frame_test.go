package mac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// Canonical CRC-32/IEEE test vector, "123456789" -> 0xCBF43926.
func Test_generatePSDU_CRC32Vector(t *testing.T) {
	psdu := generatePSDU([]byte("123456789"))
	bytes := bitsToBytes(psdu)

	require.True(t, checkCRC32(bytes))

	trailer := bytes[len(bytes)-4:]
	// Little-endian 0xCBF43926.
	assert.Equal(t, []byte{0x26, 0x39, 0xF4, 0xCB}, trailer)
}

func Test_checkCRC32_DetectsCorruption(t *testing.T) {
	psdu := generatePSDU([]byte("hello, wifi"))
	bytes := bitsToBytes(psdu)
	require.True(t, checkCRC32(bytes))

	corrupted := append([]byte{}, bytes...)
	corrupted[0] ^= 0xFF
	assert.False(t, checkCRC32(corrupted))
}

func Test_generatePSDU_RoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		payload := rapid.SliceOf(rapid.Byte()).Draw(t, "payload")
		psdu := generatePSDU(payload)
		bytes := bitsToBytes(psdu)

		assert.True(t, checkCRC32(bytes))
		assert.Equal(t, payload, bytes[:len(bytes)-4])
	})
}

// RC4 test vector: key="Key", plaintext="Plaintext" -> keystream XOR
// ciphertext BBF316E8D940AF0AD3.
func Test_rc4Cipher_KnownVector(t *testing.T) {
	ciphertext, err := rc4Cipher([]byte("Key"), []byte("Plaintext"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xBB, 0xF3, 0x16, 0xE8, 0xD9, 0x40, 0xAF, 0x0A, 0xD3}, ciphertext)
}

func Test_rc4Cipher_IsSelfInverse(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		seed := rapid.SliceOfN(rapid.Byte(), 1, 64).Draw(t, "seed")
		plaintext := rapid.SliceOf(rapid.Byte()).Draw(t, "plaintext")

		ciphertext, err := rc4Cipher(seed, plaintext)
		require.NoError(t, err)
		recovered, err := rc4Cipher(seed, ciphertext)
		require.NoError(t, err)

		assert.Equal(t, plaintext, recovered)
	})
}

func Test_bitsToBytes_bytesToBits_RoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		data := rapid.SliceOf(rapid.Byte()).Draw(t, "data")
		assert.Equal(t, data, bitsToBytes(bytesToBits(data)))
	})
}

func Test_generateFrameControlField_TypeSubtypeBits(t *testing.T) {
	field := generateFrameControlField(FrameParameters{Kind: KindBeacon})
	bits := bytesToBits(field)

	// Type = Management (00), Subtype = Beacon (1000). Bits are indexed by
	// position (B2..B7), so each subfield reads least significant bit first.
	assert.Equal(t, []int{0, 0}, bits[2:4])
	assert.Equal(t, []int{0, 0, 0, 1}, bits[4:8])
}

func Test_generateFrameControlField_RetryBit(t *testing.T) {
	field := generateFrameControlField(FrameParameters{Kind: KindData, Retry: true})
	bits := bytesToBits(field)
	assert.Equal(t, 1, bits[11])

	fieldNoRetry := generateFrameControlField(FrameParameters{Kind: KindData})
	assert.Equal(t, 0, bytesToBits(fieldNoRetry)[11])
}

func Test_generateMACHeader_Layout(t *testing.T) {
	dest := Address{1, 2, 3, 4, 5, 6}
	source := Address{9, 8, 7, 6, 5, 4}
	header := generateMACHeader(FrameParameters{Kind: KindData, Destination: dest}, source)

	require.Len(t, header, 24)
	assert.Equal(t, dest[:], header[4:10])
	assert.Equal(t, source[:], header[10:16])
	assert.Equal(t, []byte{0, 0}, header[2:4]) // Duration/ID, unused.
}

func Test_GenerateAddress_UnicastLocallyAdministered(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		addr := GenerateAddress()
		assert.Zero(t, addr[0]&0b1, "bit0 must be 0 (unicast)")
		assert.NotZero(t, addr[0]&0b10, "bit1 must be 1 (locally administered)")
	})
}

func Test_Address_String(t *testing.T) {
	addr := Address{0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0x01}
	assert.Equal(t, "DE:AD:BE:EF:00:01", addr.String())
}
