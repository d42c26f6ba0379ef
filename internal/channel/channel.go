// Package channel implements the software wireless channel: a TCP broadcast
// server that passes every received RF signal through a fixed impulse
// response and additive complex Gaussian noise, then rebroadcasts the result
// to every connected client (every PHY's channel socket).
//
// Grounded on original_source/WiFi/Source/channel.py.
package channel

import (
	"fmt"
	"math"
	"math/rand/v2"
	"net"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/huskysdr/aerowave/internal/wire"
)

// Model is the channel's convolution + AWGN impulse response model.
type Model struct {
	ImpulseResponse []complex128
	SNRdB           float64
}

// Pass convolves rfSignal with the impulse response and adds complex
// Gaussian noise scaled to the configured SNR, rounding each sample to 3
// decimal places to match the reference implementation's output precision.
func (m Model) Pass(rfSignal []complex128) []complex128 {
	resp := m.ImpulseResponse
	if len(resp) == 0 {
		resp = []complex128{1}
	}

	convolved := convolve(rfSignal, resp)

	var powerSum float64
	for _, c := range convolved {
		powerSum += real(c)*real(c) + imag(c)*imag(c)
	}
	power := powerSum / float64(len(convolved))
	sigma2 := power * math.Pow(10, -m.SNRdB/10)
	noiseStd := math.Sqrt(sigma2 / 2)

	out := make([]complex128, len(convolved))
	for i, c := range convolved {
		noise := complex(noiseStd*rand.NormFloat64(), noiseStd*rand.NormFloat64())
		noisy := c + noise
		out[i] = complex(round3(real(noisy)), round3(imag(noisy)))
	}
	return out
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func convolve(a, b []complex128) []complex128 {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	out := make([]complex128, len(a)+len(b)-1)
	for i, av := range a {
		for j, bv := range b {
			out[i+j] += av * bv
		}
	}
	return out
}

// Server is the channel's TCP broadcast server: every connected PHY socket
// receives every other PHY's (channel-affected) transmission.
type Server struct {
	Model Model

	logger   *log.Logger
	listener net.Listener

	mu      sync.Mutex
	clients map[*wire.Conn]struct{}
}

// New creates a channel server listening on addr ("host:port").
func New(addr string, model Model, logger *log.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("channel: listen on %s: %w", addr, err)
	}
	s := &Server{
		Model:    model,
		logger:   logger,
		listener: ln,
		clients:  make(map[*wire.Conn]struct{}),
	}
	logger.Info("channel: listening", "addr", ln.Addr().String())
	return s, nil
}

// Addr returns the server's bound address.
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// Serve accepts client connections until the listener is closed.
func (s *Server) Serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.logger.Debug("channel: accepted connection", "remote", conn.RemoteAddr())

		wc := wire.NewConn(conn)
		s.mu.Lock()
		s.clients[wc] = struct{}{}
		s.mu.Unlock()

		go s.handleClient(wc)
	}
}

// Close stops accepting new connections and closes every client socket.
func (s *Server) Close() error {
	err := s.listener.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		c.Close()
	}
	return err
}

func (s *Server) handleClient(wc *wire.Conn) {
	defer func() {
		s.mu.Lock()
		delete(s.clients, wc)
		s.mu.Unlock()
		wc.Close()
	}()

	for {
		env, err := wc.Receive()
		if err != nil {
			return
		}

		var pairs []wire.ComplexPair
		if err := env.DecodeData(&pairs); err != nil {
			s.logger.Error("channel: decode signal", "err", err)
			continue
		}
		signal := wire.ComplexSamplesFromWire(pairs)

		s.logger.Debug("channel: received", "primitive", env.Primitive, "samples", len(signal))

		result := s.Model.Pass(signal)
		s.broadcast("RF-SIGNAL", result)
	}
}

func (s *Server) broadcast(primitive string, signal []complex128) {
	pairs := wire.ComplexSamplesToWire(signal)

	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		if err := c.Send(primitive, pairs); err != nil {
			s.logger.Error("channel: broadcast failed, dropping client", "err", err)
			delete(s.clients, c)
			c.Close()
		}
	}
}
