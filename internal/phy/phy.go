// Package phy implements the IEEE 802.11a/g OFDM physical layer: preamble
// and SIGNAL field generation, DATA symbol scrambling/encoding/interleaving/
// modulation/IFFT on transmit, and STF-correlation frame detection, channel
// estimation, SIGNAL decoding, and Viterbi-based DATA recovery on receive.
//
// Grounded on original_source/WiFi/Source/phy.py.
package phy

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net"
	"time"

	"github.com/charmbracelet/log"

	"github.com/huskysdr/aerowave/internal/mcs"
	"github.com/huskysdr/aerowave/internal/wire"
)

// TXVector carries the RATE/LENGTH pair a MAC supplies on PHY-TXSTART.request.
type TXVector struct {
	Rate   int // Mbps
	Length int // PSDU octets
}

// RXVector is the RATE/LENGTH pair recovered from a received SIGNAL field.
type RXVector struct {
	Rate   int
	Length int
}

// PHY is one chip's physical layer instance. All of its mutable state is
// touched only from the single goroutine running Run's event loop — the
// listener goroutines for MPIF/Channel only decode wire frames and hand them
// off, never touch PHY fields directly.
type PHY struct {
	Identifier string
	Logger     *log.Logger

	CorrelationThreshold float64

	mpifConn    *wire.Conn
	channelConn *wire.Conn

	txVector TXVector
	rxVector RXVector

	modulation     mcs.Modulation
	dataCodingRate mcs.CodingRate
	nBPSC          int
	nCBPS          int
	nDBPS          int
	nSymbols       int
	nData          int
	padBits        int
	signalCoding   [4]int
	phyRate        int
	length         int

	preamble []complex128
	signal   []complex128
	data     []complex128
	ppdu     []complex128

	dataBuffer        []int
	dataSymbols       [][]complex128
	lengthCounter     int
	lfsrSequence      []int
	bccShiftRegister  [7]int
	pilotPolaritySeq  []int
	pilotPolarityIdx  int
	channelEstimate   []complex128
	psdu              []int
}

// New creates a PHY instance identified by id, for logging.
func New(id string, logger *log.Logger, correlationThreshold float64) *PHY {
	return &PHY{Identifier: id, Logger: logger, CorrelationThreshold: correlationThreshold}
}

type event struct {
	primitive string
	bits      []int
	samples   []complex128
}

// Connect dials both the MPIF and channel endpoints and identifies to the
// MPIF. It blocks until both connections are established; Run starts the
// listener goroutines that read from them.
func (p *PHY) Connect(ctx context.Context, mpifAddr, channelAddr string) error {
	mc, err := dial(mpifAddr)
	if err != nil {
		return fmt.Errorf("phy(%s): connect MPIF: %w", p.Identifier, err)
	}
	p.mpifConn = mc
	if err := p.mpifConn.Send("PHY", []int{}); err != nil {
		return fmt.Errorf("phy(%s): identify to MPIF: %w", p.Identifier, err)
	}

	cc, err := dial(channelAddr)
	if err != nil {
		return fmt.Errorf("phy(%s): connect channel: %w", p.Identifier, err)
	}
	p.channelConn = cc

	return nil
}

// Close closes the MPIF and channel connections, unblocking the Receive
// calls in listenMPIF/listenChannel so their goroutines exit.
func (p *PHY) Close() error {
	var err error
	if p.mpifConn != nil {
		err = p.mpifConn.Close()
	}
	if p.channelConn != nil {
		if cErr := p.channelConn.Close(); err == nil {
			err = cErr
		}
	}
	return err
}

func dial(addr string) (*wire.Conn, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return wire.NewConn(conn), nil
}

// Run processes PHY-layer events until ctx is cancelled; a closed connection
// ends only its listener goroutine. It is the single goroutine that owns all
// PHY mutable state.
func (p *PHY) Run(ctx context.Context) {
	events := make(chan event, 64)

	go p.listenMPIF(ctx, events)
	go p.listenChannel(ctx, events)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			p.controller(ev)
		}
	}
}

func (p *PHY) listenMPIF(ctx context.Context, events chan<- event) {
	for {
		env, err := p.mpifConn.Receive()
		if err != nil {
			return
		}
		var bits []int
		_ = env.DecodeData(&bits)
		select {
		case events <- event{primitive: env.Primitive, bits: bits}:
		case <-ctx.Done():
			return
		}
	}
}

func (p *PHY) listenChannel(ctx context.Context, events chan<- event) {
	for {
		env, err := p.channelConn.Receive()
		if err != nil {
			return
		}
		var pairs []wire.ComplexPair
		_ = env.DecodeData(&pairs)
		select {
		case events <- event{primitive: env.Primitive, samples: wire.ComplexSamplesFromWire(pairs)}:
		case <-ctx.Done():
			return
		}
	}
}

// controller dispatches one PHY-layer primitive, mirroring phy.py's
// controller() switch.
func (p *PHY) controller(ev event) {
	switch ev.primitive {
	case "PHY-TXSTART.request":
		p.setTXVector(TXVector{Rate: ev.bits[0], Length: ev.bits[1]})
		p.preamble = p.generatePreamble()
		p.signal = p.generateSignalSymbol()
		p.bccShiftRegister = [7]int{}
		p.send(p.mpifConn, "PHY-TXSTART.confirm", []int{})

	case "PHY-DATA.request":
		p.dataBuffer = append(p.dataBuffer, ev.bits...)

		if len(p.dataBuffer) >= p.nDBPS {
			p.dataSymbols = append(p.dataSymbols, p.generateDataSymbol(p.dataBuffer[:p.nDBPS], false))
			p.dataBuffer = p.dataBuffer[p.nDBPS:]
		}

		p.lengthCounter--
		if p.lengthCounter == 0 {
			p.dataBuffer = append(p.dataBuffer, make([]int, 6+p.padBits)...)
			p.dataSymbols = append(p.dataSymbols, p.generateDataSymbol(p.dataBuffer, true))

			ofdmData := []complex128{0}
			for i := 0; i < p.nSymbols; i++ {
				ofdmData[len(ofdmData)-1] += p.dataSymbols[i][0]
				ofdmData = append(ofdmData, p.dataSymbols[i][1:]...)
			}
			p.data = ofdmData
		}
		p.send(p.mpifConn, "PHY-DATA.confirm", []int{})

	case "PHY-TXEND.request":
		p.ppdu = p.generatePPDU()
		p.send(p.mpifConn, "PHY-TXEND.confirm", []int{})
		p.send(p.channelConn, "RF-SIGNAL", wire.ComplexSamplesToWire(p.ppdu))

	case "RF-SIGNAL":
		if len(p.ppdu) > 0 {
			p.ppdu = nil // This is the echo of our own transmission.
			return
		}
		p.receiveFrame(ev.samples)
	}
}

func (p *PHY) send(conn *wire.Conn, primitive string, data any) {
	if err := conn.Send(primitive, data); err != nil {
		p.Logger.Error("phy: send failed", "id", p.Identifier, "primitive", primitive, "err", err)
	}
}

func (p *PHY) setGeneralParameters(rate, length int) {
	params := mcs.RateTable[rate]
	p.modulation = params.Modulation
	p.dataCodingRate = params.CodingRate
	p.nBPSC = params.NBPSC
	p.nCBPS = params.NCBPS
	p.nDBPS = params.NDBPS
	p.signalCoding = params.SignalFieldCoding
	p.phyRate = rate
	p.length = length

	p.nSymbols = ceilDiv(16+8*length+6, p.nDBPS)
	p.nData = p.nSymbols * p.nDBPS
	p.padBits = p.nData - (16 + 8*length + 6)
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

func (p *PHY) setTXVector(tv TXVector) {
	p.txVector = tv
	p.setGeneralParameters(tv.Rate, tv.Length)

	p.dataBuffer = make([]int, 16) // SERVICE field, all zero.
	p.dataSymbols = nil
	p.lfsrSequence = generateLFSRSequence(p.nData, 1+rand.IntN(127))
	p.bccShiftRegister = [7]int{}
	p.lengthCounter = tv.Length
	p.pilotPolaritySeq = generateLFSRSequence(127, 127)
	p.pilotPolarityIdx = 1
}

// generatePPDU overlaps the preamble, SIGNAL and DATA fields at their
// shared boundary samples, IEEE Std 802.11-2020 Figure 17-4.
func (p *PHY) generatePPDU() []complex128 {
	out := append([]complex128{}, p.preamble[:len(p.preamble)-1]...)
	out = append(out, p.preamble[len(p.preamble)-1]+p.signal[0])
	out = append(out, p.signal[1:len(p.signal)-1]...)
	out = append(out, p.signal[len(p.signal)-1]+p.data[0])
	out = append(out, p.data[1:]...)
	return out
}

func (p *PHY) generatePreamble() []complex128 {
	stf := convertToTimeDomain(mcs.FrequencyDomainSTF, fieldSTF)
	ltf := convertToTimeDomain(mcs.FrequencyDomainLTF, fieldLTF)

	out := append([]complex128{}, stf[:len(stf)-1]...)
	out = append(out, stf[len(stf)-1]+ltf[0])
	out = append(out, ltf[1:]...)
	return out
}

func (p *PHY) generateSignalSymbol() []complex128 {
	field := p.generateSignalField()
	coded := p.bccEncode(field, mcs.Rate1_2)
	interleaved := interleave(coded, 6)
	modulated := subcarrierModulation(interleaved, 6)
	freq := pilotSubcarrierInsertion(modulated, 1)
	return convertToTimeDomain(freq, fieldSignalOrData)
}

// generateSignalField lays out the 24-bit SIGNAL field: RATE(4)+reserved(1)
// +LENGTH(12)+parity(1)+tail(6), IEEE Std 802.11-2020 17.3.4.
func (p *PHY) generateSignalField() []int {
	field := make([]int, 24)
	copy(field[:4], p.signalCoding[:])

	for i := 0; i < 12; i++ {
		field[5+i] = (p.length >> i) & 1
	}

	parity := 0
	for _, b := range field[:17] {
		parity += b
	}
	field[17] = parity % 2

	return field
}

func (p *PHY) generateDataSymbol(symbolData []int, isLastSymbol bool) []complex128 {
	scrambled := make([]int, len(symbolData))
	for i, b := range symbolData {
		scrambled[i] = b ^ p.lfsrSequence[i]
	}
	p.lfsrSequence = p.lfsrSequence[len(symbolData):]

	if isLastSymbol {
		for i := len(scrambled) - p.padBits - 6; i < len(scrambled)-p.padBits; i++ {
			scrambled[i] = 0
		}
	}

	encoded := p.bccEncode(scrambled, p.dataCodingRate)
	interleaved := interleave(encoded, p.phyRate)
	modulated := subcarrierModulation(interleaved, p.phyRate)

	polarity := p.pilotPolaritySeq[p.pilotPolarityIdx]
	pilotPolarity := 1
	if polarity == 1 {
		pilotPolarity = -1
	}
	freq := pilotSubcarrierInsertion(modulated, pilotPolarity)
	p.pilotPolarityIdx++

	return convertToTimeDomain(freq, fieldSignalOrData)
}

// receiveFrame implements the RF-SIGNAL reception chain: STF detection,
// channel estimation, SIGNAL decode, DATA deciphering, and relaying the PSDU
// to the MAC octet by octet.
func (p *PHY) receiveFrame(rfFrame []complex128) {
	index, ok := detectFrame(rfFrame, p.CorrelationThreshold)
	if !ok {
		p.send(p.mpifConn, "PHY-CCA.indication(IDLE)", []int{})
		return
	}
	p.send(p.mpifConn, "PHY-CCA.indication(BUSY)", []int{})

	if index+400 > len(rfFrame) {
		p.send(p.mpifConn, "PHY-RXEND.indication(FormatViolation)", []int{})
		return
	}
	p.channelEstimate = channelEstimation(rfFrame[index+160 : index+320])

	rate, length, err := decodeSignal(rfFrame[index+320:index+400], p.channelEstimate)
	if err != nil {
		p.send(p.mpifConn, "PHY-RXEND.indication(FormatViolation)", []int{})
		return
	}
	p.rxVector = RXVector{Rate: rate, Length: length}
	p.setGeneralParameters(rate, length)

	psdu, err := p.decipherData(rfFrame[index+400:])
	if err != nil {
		p.send(p.mpifConn, "PHY-RXEND.indication(ScrambleSeedNotFound)", []int{})
		return
	}
	p.psdu = psdu

	for range make([]struct{}, p.length) {
		octet := p.psdu
		if len(octet) > 8 {
			octet = octet[:8]
		}
		p.send(p.mpifConn, "PHY-DATA.indication", octet)
		time.Sleep(time.Millisecond) // Buffer time for the MAC to append the octet.
		if len(p.psdu) >= 8 {
			p.psdu = p.psdu[8:]
		}
	}

	p.send(p.mpifConn, "PHY-RXEND.indication(No_Error)", []int{})
	p.send(p.mpifConn, "PHY-CCA.indication(IDLE)", []int{})
}

// decipherData FFTs, equalizes, demaps, deinterleaves and Viterbi-decodes
// every DATA symbol, then searches over all 127 scrambler seeds for the one
// that descrambles the SERVICE field to all zero.
func (p *PHY) decipherData(data []complex128) ([]int, error) {
	var deinterleavedData []int
	for i := 0; i < p.nSymbols; i++ {
		symbol := data[80*i : 80*(i+1)]
		freq := convertToFrequencyDomain(symbol)
		equalized := equalizeAndRemovePilots(freq, p.channelEstimate)
		interleaved := hardDecisionDemapping(equalized, p.modulation)
		encoded := deinterleave(interleaved, p.phyRate)
		deinterleavedData = append(deinterleavedData, encoded...)
	}

	decoded := convolutionalDecodeViterbi(deinterleavedData, p.dataCodingRate)

	serviceField := decoded[:16]
	for seed := 1; seed < 128; seed++ {
		candidate := generateLFSRSequence(16, seed)
		match := true
		for i, b := range candidate {
			if b^serviceField[i] != 0 {
				match = false
				break
			}
		}
		if !match {
			continue
		}

		full := generateLFSRSequence(len(decoded), seed)
		descrambled := make([]int, len(decoded))
		for i := range decoded {
			descrambled[i] = full[i] ^ decoded[i]
		}
		end := len(descrambled) - 6 - p.padBits
		return descrambled[16:end], nil
	}

	return nil, ErrScrambleSeedNotFound
}
