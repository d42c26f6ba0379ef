// Package mac implements the IEEE 802.11 MAC sublayer: frame construction
// and parsing, the association/authentication state machines for both AP
// and STA roles, ACK-gated transmission with retry, rate selection, and
// periodic beacon broadcast / passive-then-active scanning.
//
// Grounded on original_source/WiFi/Source/mac.py.
package mac

import (
	"context"
	"fmt"
	"net"
	"sort"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/huskysdr/aerowave/internal/eventlog"
	"github.com/huskysdr/aerowave/internal/mcs"
	"github.com/huskysdr/aerowave/internal/wire"
)

// Config bundles the timing knobs a MAC needs, sourced from internal/config.
type Config struct {
	BeaconInterval    time.Duration
	PassiveScanTime   time.Duration
	ProbeInterval     time.Duration
	AckWait           time.Duration
	AuthAttemptsLimit int
	InterFrameDelay   time.Duration
}

// MAC is one chip's MAC-sublayer instance. All of its mutable state is
// touched only from the single goroutine running Run's event loop, the same
// ownership discipline as internal/phy.PHY — background goroutines
// (listener, beacon broadcast, scanning, ACK waiter) only ever communicate
// with Run over channels.
type MAC struct {
	Identifier string
	Logger     *log.Logger
	EventLog   *eventlog.Logger

	Role    Role
	Address Address
	cfg     Config

	AuthAlgorithm AuthAlgorithm
	WEPKeyID      int

	PhyRate     int
	lastPhyRate int
	IsFixedRate bool

	mpifConn *wire.Conn

	// AP-side state.
	challengeText       map[Address][]byte
	authenticatedSTA    map[Address]bool
	associatedSTA       map[Address]bool
	associatedSTAAtomic atomic.Pointer[[]Address]

	// STA-side state.
	probedAP           *Address
	probedAPBlacklist  map[Address]bool
	authenticatedAP    *Address
	authAttempts       int
	associatedAP       *Address
	probedAPAtomic     atomic.Pointer[Address]
	associatedAPAtomic atomic.Pointer[Address]

	isShutdown atomic.Bool

	txPSDU       []int
	rxPSDU       []int
	isAcked      ackState
	txQueue      []txItem
	lastData     []byte

	events      chan event
	enqueueCh   chan txItem
	ackQueryCh  chan ackQuery
	resetAckCh  chan struct{}
	retransmitCh chan txItem
}

type event struct {
	primitive string
	bits      []int
}

type ackQuery struct {
	resp chan bool
}

// New creates a MAC instance. The role determines which background
// goroutines Run starts (beacon broadcast for AP, scanning for STA).
func New(identifier string, role Role, logger *log.Logger, eventLog *eventlog.Logger, cfg Config, authAlgorithm AuthAlgorithm, wepKeyID int) *MAC {
	return &MAC{
		Identifier:       identifier,
		Logger:           logger,
		EventLog:         eventLog,
		Role:             role,
		Address:          GenerateAddress(),
		cfg:              cfg,
		AuthAlgorithm:    authAlgorithm,
		WEPKeyID:         wepKeyID,
		PhyRate:          6,
		lastPhyRate:      6,
		challengeText:    map[Address][]byte{},
		authenticatedSTA: map[Address]bool{},
		associatedSTA:    map[Address]bool{},
		probedAPBlacklist: map[Address]bool{},
		isAcked:          ackNotNeeded,
		events:           make(chan event, 64),
		enqueueCh:        make(chan txItem, 64),
		ackQueryCh:       make(chan ackQuery),
		resetAckCh:       make(chan struct{}, 1),
		retransmitCh:     make(chan txItem, 8),
	}
}

// Connect dials the MPIF endpoint and identifies this client as "MAC".
func (m *MAC) Connect(mpifAddr string) error {
	conn, err := net.Dial("tcp", mpifAddr)
	if err != nil {
		return fmt.Errorf("mac(%s): connect MPIF: %w", m.Identifier, err)
	}
	m.mpifConn = wire.NewConn(conn)
	return m.mpifConn.Send("MAC", []int{})
}

// Run processes MAC-layer events and drives the TX queue until ctx is
// cancelled. It is the single goroutine that owns all MAC mutable state.
func (m *MAC) Run(ctx context.Context) {
	go m.listen(ctx)

	switch m.Role {
	case RoleAP:
		go m.beaconBroadcast(ctx)
	case RoleSTA:
		go m.scanning(ctx)
	}

	pump := time.NewTicker(m.cfg.InterFrameDelay)
	defer pump.Stop()

	for {
		select {
		case <-ctx.Done():
			m.isShutdown.Store(true)
			return

		case ev, ok := <-m.events:
			if !ok {
				return
			}
			m.controller(ev)

		case item := <-m.enqueueCh:
			m.txQueue = append(m.txQueue, item)

		case item := <-m.retransmitCh:
			m.startTransmissionChain(ctx, item.params, item.payload)

		case q := <-m.ackQueryCh:
			acked := m.isAcked == ackReceived
			if acked {
				m.isAcked = ackNotNeeded
			}
			q.resp <- acked

		case <-m.resetAckCh:
			m.isAcked = ackNotNeeded

		case <-pump.C:
			m.pumpTxQueue(ctx)
		}
	}
}

// Shutdown stops the background advertisement/scanning goroutines and drops
// the TX queue, mirroring _is_shutdown.
func (m *MAC) Shutdown() {
	m.isShutdown.Store(true)
}

// Close closes the MPIF connection, unblocking listen's Receive call so its
// goroutine exits.
func (m *MAC) Close() error {
	if m.mpifConn == nil {
		return nil
	}
	return m.mpifConn.Close()
}

func (m *MAC) pumpTxQueue(ctx context.Context) {
	if m.isShutdown.Load() {
		m.txQueue = nil
		return
	}
	if len(m.txQueue) == 0 || m.isAcked != ackNotNeeded {
		return
	}

	item := m.txQueue[0]
	m.txQueue = m.txQueue[1:]

	if !m.IsFixedRate {
		m.rateSelection(&item.params)
	} else {
		m.Logger.Warn("mac: rate fixed", "id", m.Identifier, "rate", m.PhyRate)
	}

	m.startTransmissionChain(ctx, item.params, item.payload)
}

// rateSelection mirrors rate_selection: advertisement/ACK frames always go at
// 6 Mbps; otherwise step the legal-rates ladder down on retry, up on success.
func (m *MAC) rateSelection(params *FrameParameters) {
	if params.Kind == KindBeacon || params.Kind == KindProbeRequest || params.Kind == KindACK {
		m.PhyRate = 6
		return
	}

	rates := legalRates()
	index := sort.SearchInts(rates, m.lastPhyRate)

	if params.Retry {
		if index > 0 {
			m.PhyRate = rates[index-1]
			m.lastPhyRate = rates[index-1]
		}
		return
	}

	if index < len(rates)-1 {
		m.PhyRate = rates[index+1]
		m.lastPhyRate = rates[index+1]
	}
}

func legalRates() []int {
	rates := make([]int, 0, len(mcs.RateTable))
	for r := range mcs.RateTable {
		rates = append(rates, r)
	}
	sort.Ints(rates)
	return rates
}

// beaconBroadcast periodically enqueues a Beacon frame, AP role only.
func (m *MAC) beaconBroadcast(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.BeaconInterval)
	defer ticker.Stop()

	for {
		if m.isShutdown.Load() {
			return
		}
		m.enqueue(ctx, FrameParameters{Kind: KindBeacon, Destination: Broadcast, WaitForACK: false}, nil)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// scanning runs the passive-then-active AP discovery sequence, STA role
// only: listen for beacons for PassiveScanTime, then probe repeatedly until
// an AP responds.
func (m *MAC) scanning(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(m.cfg.PassiveScanTime):
	}

	ticker := time.NewTicker(m.cfg.ProbeInterval)
	defer ticker.Stop()

	for m.probedAPAtomic.Load() == nil {
		if m.isShutdown.Load() {
			return
		}
		m.enqueue(ctx, FrameParameters{Kind: KindProbeRequest, Destination: Broadcast, WaitForACK: false}, nil)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *MAC) enqueue(ctx context.Context, params FrameParameters, payload []byte) {
	select {
	case m.enqueueCh <- txItem{params: params, payload: payload}:
	case <-ctx.Done():
	}
}

// AssociatedAP returns the currently associated AP's address, or nil if this
// STA is not associated. Safe to call from any goroutine.
func (m *MAC) AssociatedAP() *Address {
	return m.associatedAPAtomic.Load()
}

// AssociatedSTAs returns a snapshot of the addresses currently associated
// with this AP. Safe to call from any goroutine.
func (m *MAC) AssociatedSTAs() []Address {
	if p := m.associatedSTAAtomic.Load(); p != nil {
		return *p
	}
	return nil
}

// EnqueueData queues a Data frame addressed to destination for transmission,
// for use by callers outside Run's goroutine (e.g. an application layer
// calling Chip.SendText). Unlike enqueue, it has no cancellation path since
// the TX queue channel is always drained promptly by Run.
func (m *MAC) EnqueueData(destination Address, payload []byte) error {
	if m.isShutdown.Load() {
		return fmt.Errorf("mac(%s): shut down", m.Identifier)
	}
	m.enqueueCh <- txItem{
		params:  FrameParameters{Kind: KindData, Destination: destination, WaitForACK: true},
		payload: payload,
	}
	return nil
}

func (m *MAC) send(primitive string, data any) {
	if err := m.mpifConn.Send(primitive, data); err != nil {
		m.Logger.Error("mac: send failed", "id", m.Identifier, "primitive", primitive, "err", err)
	}
}

func (m *MAC) listen(ctx context.Context) {
	for {
		env, err := m.mpifConn.Receive()
		if err != nil {
			return
		}
		var bits []int
		_ = env.DecodeData(&bits)
		select {
		case m.events <- event{primitive: env.Primitive, bits: bits}:
		case <-ctx.Done():
			return
		}
	}
}
