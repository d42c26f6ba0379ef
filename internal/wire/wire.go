// Package wire implements the length-delimited JSON primitive framing used
// on every TCP link in the simulation (chip-to-channel, MAC-to-PHY via
// MPIF). Every message carries a PRIMITIVE name and an opaque DATA payload,
// mirroring the {"PRIMITIVE": ..., "DATA": ...} envelope of the original
// simulator's socket protocol. Unlike the original's bare recv() calls,
// frames here are length-prefixed so a message is never split or coalesced
// by the TCP stream, the same concern the teacher's KISS framing (FEND
// byte-stuffing over TCP) solves for its own wire format.
package wire

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
)

// MaxFrameSize bounds a single frame, matching the largest payload the
// simulation ever sends on the wire: one PPDU's worth of complex samples.
const MaxFrameSize = 8 << 20

// Envelope is the wire-level message shape shared by every link.
type Envelope struct {
	Primitive string          `json:"PRIMITIVE"`
	Data      json.RawMessage `json:"DATA"`
}

// Conn wraps a net.Conn with framed Envelope send/receive.
type Conn struct {
	nc net.Conn
	r  *bufio.Reader
}

// NewConn wraps an already-connected socket.
func NewConn(nc net.Conn) *Conn {
	return &Conn{nc: nc, r: bufio.NewReader(nc)}
}

// Raw returns the underlying connection, for callers that need to Close it
// or inspect its address.
func (c *Conn) Raw() net.Conn { return c.nc }

// Reader returns the buffered reader Receive reads frames from. Callers
// relaying raw bytes after reading one or more framed messages (e.g. MPIF's
// broker, after reading a client's identification frame) must read through
// this, not through Raw(), since bufio.Reader may already have buffered
// bytes past the last frame it decoded.
func (c *Conn) Reader() io.Reader { return c.r }

// Close closes the underlying connection.
func (c *Conn) Close() error { return c.nc.Close() }

// Send encodes data as JSON and writes one length-prefixed frame.
func (c *Conn) Send(primitive string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("wire: marshal data for %s: %w", primitive, err)
	}
	env := Envelope{Primitive: primitive, Data: payload}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("wire: marshal envelope for %s: %w", primitive, err)
	}
	if len(body) > MaxFrameSize {
		return fmt.Errorf("wire: frame for %s exceeds max size (%d > %d)", primitive, len(body), MaxFrameSize)
	}

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(body)))
	if _, err := c.nc.Write(header[:]); err != nil {
		return fmt.Errorf("wire: write header: %w", err)
	}
	if _, err := c.nc.Write(body); err != nil {
		return fmt.Errorf("wire: write body: %w", err)
	}
	return nil
}

// Receive blocks for the next frame and decodes its envelope. Returns
// io.EOF when the peer closed the connection cleanly.
func (c *Conn) Receive() (Envelope, error) {
	var header [4]byte
	if _, err := io.ReadFull(c.r, header[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return Envelope{}, err
	}
	size := binary.BigEndian.Uint32(header[:])
	if size > MaxFrameSize {
		return Envelope{}, fmt.Errorf("wire: frame size %d exceeds max %d", size, MaxFrameSize)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(c.r, body); err != nil {
		return Envelope{}, fmt.Errorf("wire: read body: %w", err)
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, fmt.Errorf("wire: unmarshal envelope: %w", err)
	}
	return env, nil
}

// DecodeData unmarshals an Envelope's DATA field into v.
func (e Envelope) DecodeData(v any) error {
	if len(e.Data) == 0 {
		return nil
	}
	return json.Unmarshal(e.Data, v)
}

// ComplexPair is the [real, imag] wire shape used for complex sample lists
// (RF-SIGNAL payloads), since JSON has no native complex type.
type ComplexPair [2]float64

// ComplexSamplesToWire converts a complex128 slice to its wire shape.
func ComplexSamplesToWire(samples []complex128) []ComplexPair {
	out := make([]ComplexPair, len(samples))
	for i, c := range samples {
		out[i] = ComplexPair{real(c), imag(c)}
	}
	return out
}

// ComplexSamplesFromWire converts the wire shape back to complex128.
func ComplexSamplesFromWire(pairs []ComplexPair) []complex128 {
	out := make([]complex128, len(pairs))
	for i, p := range pairs {
		out[i] = complex(p[0], p[1])
	}
	return out
}
