// Package chip wires one simulated station's MPIF, PHY and MAC layers
// together and exposes the handful of operations a simulation driver needs:
// bring the chip up, send a text message as a data frame, tear it down.
//
// Grounded on original_source/WiFi/Source/chip.py.
package chip

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/charmbracelet/log"

	"github.com/huskysdr/aerowave/internal/eventlog"
	"github.com/huskysdr/aerowave/internal/mac"
	"github.com/huskysdr/aerowave/internal/mpif"
	"github.com/huskysdr/aerowave/internal/phy"
)

// bufferTime is how long New waits after starting the background
// scanning/beacon goroutines before returning, giving MPIF's Accept loop a
// moment to pick up both the MAC and PHY connections.
const bufferTime = 100 * time.Millisecond

// Chip represents one simulated WiFi chip: MPIF broker plus its PHY and MAC
// layer instances, wired together over the loopback MPIF socket.
type Chip struct {
	Identifier string
	Role       mac.Role

	MAC *mac.MAC
	PHY *phy.PHY

	broker *mpif.Broker
}

// New establishes a CHIP instance: starts the MPIF broker, connects PHY and
// MAC to it and to the channel, and (per role) starts beacon broadcast or
// scanning in the background.
func New(ctx context.Context, identifier string, role mac.Role, host, channelAddr string, phyCfg PHYConfig, macCfg mac.Config, authAlgorithm mac.AuthAlgorithm, wepKeyID int, logger *log.Logger, eventLog *eventlog.Logger) (*Chip, error) {
	logger.Info("establishing WiFi chip", "role", role, "id", identifier)

	broker, err := mpif.New(host, logger)
	if err != nil {
		return nil, fmt.Errorf("chip(%s): start MPIF: %w", identifier, err)
	}
	go broker.Run()

	mpifAddr := net.JoinHostPort(host, fmt.Sprintf("%d", broker.Port()))

	p := phy.New(identifier, logger, phyCfg.CorrelationThreshold)
	if err := p.Connect(ctx, mpifAddr, channelAddr); err != nil {
		broker.Close()
		return nil, fmt.Errorf("chip(%s): connect PHY: %w", identifier, err)
	}
	go p.Run(ctx)

	m := mac.New(identifier, role, logger, eventLog, macCfg, authAlgorithm, wepKeyID)
	if phyCfg.FixedRate != 0 {
		m.IsFixedRate = true
		m.PhyRate = phyCfg.FixedRate
	}
	if err := m.Connect(mpifAddr); err != nil {
		broker.Close()
		return nil, fmt.Errorf("chip(%s): connect MAC: %w", identifier, err)
	}
	go m.Run(ctx)

	time.Sleep(bufferTime)

	return &Chip{
		Identifier: identifier,
		Role:       role,
		MAC:        m,
		PHY:        p,
		broker:     broker,
	}, nil
}

// PHYConfig bundles the PHY-layer knobs a chip needs at construction time.
type PHYConfig struct {
	CorrelationThreshold float64
	FixedRate            int // Mbps, 0 means use the rate-selection ladder
}

// SendText converts text to a byte payload and enqueues it as a Data frame
// addressed to the currently associated peer — the associated AP for a STA
// (uplink), or for an AP (downlink) the first entry of the AssociatedSTAs
// snapshot, whose order is not defined — mirroring send_text.
func (c *Chip) SendText(text string) error {
	destination, err := c.associatedPeer()
	if err != nil {
		return err
	}

	c.MAC.Logger.Info("chip: sending data frame", "id", c.Identifier, "bytes", len(text))
	return c.MAC.EnqueueData(destination, []byte(text))
}

func (c *Chip) associatedPeer() (mac.Address, error) {
	if c.Role == mac.RoleSTA {
		if ap := c.MAC.AssociatedAP(); ap != nil {
			return *ap, nil
		}
		return mac.Address{}, fmt.Errorf("chip(%s): not yet associated with an AP", c.Identifier)
	}

	stas := c.MAC.AssociatedSTAs()
	if len(stas) == 0 {
		return mac.Address{}, fmt.Errorf("chip(%s): no associated STA", c.Identifier)
	}
	return stas[0], nil
}

// Shutdown stops the chip's MAC/PHY processing and closes all four
// sockets (MPIF server, PHY<->MPIF, PHY<->channel, MAC<->MPIF), mirroring
// the original's shutdown() closing mpif.server, phy's two sockets, and
// mac's socket.
func (c *Chip) Shutdown() {
	c.MAC.Logger.Info("chip: shutting down", "id", c.Identifier)
	c.MAC.Shutdown()
	if err := c.PHY.Close(); err != nil {
		c.MAC.Logger.Debug("chip: closing PHY sockets", "err", err)
	}
	if err := c.MAC.Close(); err != nil {
		c.MAC.Logger.Debug("chip: closing MAC socket", "err", err)
	}
	c.broker.Close()
}
