// Package mpif implements the Modem Protocol Interface Function: a
// per-chip TCP broker that accepts exactly two connections (one from the
// chip's MAC, one from its PHY), identifies each by the PRIMITIVE field of
// its first message, and then relays raw bytes full-duplex between them for
// the lifetime of the chip.
//
// Grounded on original_source/WiFi/Source/mpif.py.
package mpif

import (
	"fmt"
	"io"
	"net"

	"github.com/charmbracelet/log"

	"github.com/huskysdr/aerowave/internal/wire"
)

// Broker is one chip's MPIF instance.
type Broker struct {
	listener net.Listener
	logger   *log.Logger
}

// New binds a broker to an OS-chosen free port on host.
func New(host string, logger *log.Logger) (*Broker, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return nil, fmt.Errorf("mpif: listen: %w", err)
	}
	return &Broker{listener: ln, logger: logger}, nil
}

// Port returns the OS-chosen listening port, for the MAC and PHY to connect to.
func (b *Broker) Port() int {
	return b.listener.Addr().(*net.TCPAddr).Port
}

// Close stops accepting connections.
func (b *Broker) Close() error { return b.listener.Close() }

// Run accepts MAC and PHY connections (identified by their first message's
// PRIMITIVE field) and relays bytes between them until either side closes.
// It blocks until both sides disconnect or the broker is closed.
func (b *Broker) Run() {
	clients := make(map[string]*wire.Conn, 2)

	for len(clients) < 2 {
		conn, err := b.listener.Accept()
		if err != nil {
			return // listener closed
		}

		wc := wire.NewConn(conn)
		env, err := wc.Receive()
		if err != nil {
			b.logger.Error("mpif: failed to read identification message", "err", err)
			conn.Close()
			continue
		}

		switch env.Primitive {
		case "MAC", "PHY":
			b.logger.Debug("mpif: client identified", "layer", env.Primitive)
			clients[env.Primitive] = wc
		default:
			b.logger.Error("mpif: unknown client identification, closing", "primitive", env.Primitive)
			conn.Close()
		}
	}

	b.logger.Debug("mpif: both clients connected, forwarding")
	done := make(chan struct{}, 2)
	go forward(clients["MAC"], clients["PHY"], b.logger, done)
	go forward(clients["PHY"], clients["MAC"], b.logger, done)
	<-done
	<-done
}

// forward relays bytes from src to dst. It reads through src's buffered
// wire.Conn reader (not its raw net.Conn) so bytes already buffered past
// src's identification frame aren't silently dropped.
func forward(src, dst *wire.Conn, logger *log.Logger, done chan<- struct{}) {
	defer func() {
		src.Close()
		dst.Close()
		done <- struct{}{}
	}()

	if _, err := io.Copy(dst.Raw(), src.Reader()); err != nil {
		logger.Debug("mpif: forwarding ended", "err", err)
	}
}
