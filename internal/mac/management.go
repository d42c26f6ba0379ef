package mac

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/huskysdr/aerowave/internal/mcs"
)

func subtypeOf(bits []int) [4]int {
	var out [4]int
	for i := 0; i < 4; i++ {
		out[i] = bits[3-i]
	}
	return out
}

// managementController mirrors management_controller: dispatches on the
// frame subtype and drives the association/authentication state machines for
// both the AP and STA roles.
func (m *MAC) managementController(source Address, cast castKind) {
	switch subtypeOf(m.rxPSDU[4:8]) {
	case frameCodes[KindAssociationRequest].subtypeBits:
		if m.Role == RoleAP && cast == castUnicast {
			m.sendAcknowledgement(source)
			if m.authenticatedSTA[source] {
				m.associatedSTA[source] = true
				m.refreshAssociatedSTASnapshot()
				m.logEvent(source, "associated-sta", "")
				m.queueFrame(FrameParameters{Kind: KindAssociationResponse, Destination: source, WaitForACK: true}, []byte{0x00, 0x00})
			}
		}

	case frameCodes[KindAssociationResponse].subtypeBits:
		if m.Role == RoleSTA && cast == castUnicast {
			m.sendAcknowledgement(source)
			if m.authenticatedAP != nil && *m.authenticatedAP == source {
				m.associatedAP = &source
				m.associatedAPAtomic.Store(&source)
				m.Logger.Info("mac: association successful", "id", m.Identifier, "ap", source)
				m.logEvent(source, "associated", "")
			}
		}

	case frameCodes[KindProbeRequest].subtypeBits:
		if m.Role == RoleAP && cast == castBroadcast {
			m.queueFrame(FrameParameters{Kind: KindProbeResponse, Destination: source, WaitForACK: true}, nil)
		}

	case frameCodes[KindProbeResponse].subtypeBits:
		if m.Role == RoleSTA && cast == castUnicast {
			m.sendAcknowledgement(source)
			if !m.probedAPBlacklist[source] {
				m.setProbedAP(source)
				m.beginAuthentication(source)
			}
		}

	case frameCodes[KindBeacon].subtypeBits:
		if m.Role == RoleSTA && m.probedAP == nil && cast == castBroadcast {
			if !m.probedAPBlacklist[source] {
				m.setProbedAP(source)
				m.beginAuthentication(source)
			}
		}

	case frameCodes[KindAuthentication].subtypeBits:
		m.handleAuthentication(source, cast)
	}
}

func (m *MAC) refreshAssociatedSTASnapshot() {
	stas := make([]Address, 0, len(m.associatedSTA))
	for addr := range m.associatedSTA {
		stas = append(stas, addr)
	}
	m.associatedSTAAtomic.Store(&stas)
}

func (m *MAC) setProbedAP(addr Address) {
	m.probedAP = &addr
	m.probedAPAtomic.Store(&addr)
}

func (m *MAC) beginAuthentication(apAddress Address) {
	payload := append(append([]byte{}, securityAlgorithmCode[m.AuthAlgorithm]...), 0x00, 0x01) // sequence 1
	m.queueFrame(FrameParameters{Kind: KindAuthentication, Destination: apAddress, WaitForACK: true}, payload)
}

// handleAuthentication mirrors the Authentication case of management_controller:
// algorithm bytes select open-system (2-sequence) or shared-key (4-sequence,
// RC4 challenge/response) handshakes.
func (m *MAC) handleAuthentication(source Address, cast castKind) {
	byteList := bitsToBytes(m.rxPSDU)
	authData := byteList[24 : len(byteList)-4]
	if len(authData) < 4 {
		return
	}
	algorithm := [2]byte{authData[0], authData[1]}
	sequence := [2]byte{authData[2], authData[3]}

	switch algorithm {
	case [2]byte{0x00, 0x00}: // Open system.
		switch sequence {
		case [2]byte{0x00, 0x01}: // Sequence 1 - request.
			if m.Role == RoleAP && cast == castUnicast {
				m.sendAcknowledgement(source)
				m.authenticatedSTA[source] = true
				m.logEvent(source, "authenticated-sta", "open-system")
				payload := []byte{0x00, 0x00, 0x00, 0x02, 0x00, 0x00} // algorithm, seq 2, status success
				m.queueFrame(FrameParameters{Kind: KindAuthentication, Destination: source, WaitForACK: true}, payload)
			}
		case [2]byte{0x00, 0x02}: // Sequence 2 - response.
			if m.Role == RoleSTA && cast == castUnicast && m.probedAP != nil && *m.probedAP == source {
				m.authenticationResponseHandler(authData[4:6])
			}
		}

	case [2]byte{0x00, 0x01}: // Shared-key.
		switch sequence {
		case [2]byte{0x00, 0x01}: // Sequence 1 - request.
			if m.Role == RoleAP && cast == castUnicast {
				m.sendAcknowledgement(source)
				challenge := make([]byte, 128)
				for i := range challenge {
					challenge[i] = byte(rand.IntN(256))
				}
				m.challengeText[source] = challenge
				payload := append([]byte{0x00, 0x01, 0x00, 0x02}, challenge...)
				m.queueFrame(FrameParameters{Kind: KindAuthentication, Destination: source, WaitForACK: true}, payload)
			}
		case [2]byte{0x00, 0x02}: // Sequence 2 - challenge text.
			if m.Role == RoleSTA && cast == castUnicast && m.probedAP != nil && *m.probedAP == source {
				m.sendAcknowledgement(source)
				challenge := authData[4:]

				iv := make([]byte, 3)
				for i := range iv {
					iv[i] = byte(rand.IntN(256))
				}
				keyID := m.WEPKeyID
				seed := append(append([]byte{}, iv...), mcs.WEPKeys[keyID]...)
				encrypted, err := rc4Cipher(seed, challenge)
				if err != nil {
					m.Logger.Error("mac: RC4 encrypt failed", "id", m.Identifier, "err", err)
					return
				}

				payload := append([]byte{0x00, 0x01, 0x00, 0x03}, iv...)
				payload = append(payload, byte(keyID))
				payload = append(payload, encrypted...)
				m.queueFrame(FrameParameters{Kind: KindAuthentication, Destination: source, WaitForACK: true}, payload)
			}
		case [2]byte{0x00, 0x03}: // Sequence 3 - encrypted challenge.
			if m.Role == RoleAP && cast == castUnicast {
				m.sendAcknowledgement(source)
				iv := authData[4:7]
				keyID := int(authData[7])
				encryptedChallenge := authData[8:]

				seed := append(append([]byte{}, iv...), mcs.WEPKeys[keyID]...)
				decrypted, err := rc4Cipher(seed, encryptedChallenge)
				if err != nil {
					m.Logger.Error("mac: RC4 decrypt failed", "id", m.Identifier, "err", err)
					return
				}

				result := []byte{0x00, 0x01}
				if bytesEqual(decrypted, m.challengeText[source]) {
					result = []byte{0x00, 0x00}
					m.authenticatedSTA[source] = true
					m.logEvent(source, "authenticated-sta", "shared-key")
				}
				delete(m.challengeText, source)

				payload := append([]byte{0x00, 0x01, 0x00, 0x04}, result...)
				m.queueFrame(FrameParameters{Kind: KindAuthentication, Destination: source, WaitForACK: true}, payload)
			}
		case [2]byte{0x00, 0x04}: // Sequence 4 - response.
			if m.Role == RoleSTA && cast == castUnicast && m.probedAP != nil && *m.probedAP == source {
				m.authenticationResponseHandler(authData[4:6])
			}
		}
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// authenticationResponseHandler mirrors authentication_response_handler:
// on success, marks the AP authenticated and starts association; on failure,
// counts attempts and blacklists the AP once the limit is reached.
func (m *MAC) authenticationResponseHandler(status []byte) {
	probed := *m.probedAP
	m.sendAcknowledgement(probed)

	if len(status) == 2 && status[0] == 0x00 && status[1] == 0x00 {
		m.authenticatedAP = &probed
		m.Logger.Info("mac: authentication successful", "id", m.Identifier, "ap", probed)
		m.logEvent(probed, "authenticated", "")
		m.queueFrame(FrameParameters{Kind: KindAssociationRequest, Destination: probed, WaitForACK: true}, nil)
		return
	}

	m.authAttempts++
	if m.authAttempts == m.cfg.AuthAttemptsLimit {
		m.Logger.Warn("mac: authentication failed repeatedly, blacklisting AP", "id", m.Identifier, "ap", probed)
		m.authAttempts = 0
		m.probedAPBlacklist[probed] = true
		m.probedAP = nil
		m.probedAPAtomic.Store(nil)
	}
}

// controlController mirrors control_controller: the only implemented
// control subtype is ACK.
func (m *MAC) controlController(source Address, cast castKind) {
	if subtypeOf(m.rxPSDU[4:8]) == frameCodes[KindACK].subtypeBits {
		m.Logger.Info("mac: frame acknowledged", "id", m.Identifier, "peer", source)
		m.isAcked = ackReceived
	}
}

// dataController mirrors data_controller: only unicast data from the
// associated AP is accepted, ACKed, and handed off as application data.
func (m *MAC) dataController(source Address, cast castKind, byteList []byte) {
	if subtypeOf(m.rxPSDU[4:8]) != frameCodes[KindData].subtypeBits {
		return
	}
	if m.associatedAP == nil || *m.associatedAP != source || cast != castUnicast {
		return
	}

	m.sendAcknowledgement(source)
	m.lastData = byteList[24 : len(byteList)-4]
	m.Logger.Info("mac: received message", "id", m.Identifier, "bytes", len(m.lastData))
	m.logEvent(source, "data-received", string(m.lastData))
}

// sendAcknowledgement enqueues an ACK addressed to source, mirroring
// send_acknowledgement. It runs synchronously inside Run's own event loop,
// so it appends to the TX queue directly via queueFrame rather than going
// through the cross-goroutine enqueue channel.
func (m *MAC) sendAcknowledgement(source Address) {
	m.queueFrame(FrameParameters{Kind: KindACK, Destination: source, WaitForACK: false}, nil)
}

// queueFrame appends to the TX queue directly. Safe only when called from
// Run's own goroutine, which owns m.txQueue.
func (m *MAC) queueFrame(params FrameParameters, payload []byte) {
	m.txQueue = append(m.txQueue, txItem{params: params, payload: payload})
}

func (m *MAC) logEvent(peer Address, kind, detail string) {
	if m.EventLog == nil {
		return
	}
	_ = m.EventLog.Record(time.Now(), string(m.Role), m.Address.String(), peer.String(), kind, detail)
}

// startTransmissionChain mirrors start_transmission_chain: builds the MAC
// header and PSDU, hands it to the PHY, and spawns an ACK waiter if needed.
func (m *MAC) startTransmissionChain(ctx context.Context, params FrameParameters, payload []byte) {
	header := generateMACHeader(params, m.Address)
	full := append(append([]byte{}, header...), payload...)
	psdu := generatePSDU(full)

	m.txPSDU = psdu
	m.send("PHY-TXSTART.request", []int{m.PhyRate, len(psdu) / 8})

	if params.WaitForACK {
		m.isAcked = ackWaiting
		go m.waitForAcknowledgement(ctx, params, payload)
	}
}

// waitForAcknowledgement mirrors wait_for_acknowledgement: polls (via the
// Run-owned ackQueryCh) for up to ShortRetryLimit attempts, retransmitting
// with the retry bit set between attempts, then drops the frame.
func (m *MAC) waitForAcknowledgement(ctx context.Context, params FrameParameters, payload []byte) {
	for attempt := 0; attempt < ShortRetryLimit; attempt++ {
		select {
		case <-time.After(m.cfg.AckWait):
		case <-ctx.Done():
			return
		}

		resp := make(chan bool, 1)
		select {
		case m.ackQueryCh <- ackQuery{resp: resp}:
		case <-ctx.Done():
			return
		}

		var acked bool
		select {
		case acked = <-resp:
		case <-ctx.Done():
			return
		}
		if acked {
			return
		}

		m.Logger.Warn("mac: no ACK, retransmitting", "id", m.Identifier, "type", params.Kind)
		params.Retry = true
		params.WaitForACK = false // this goroutine already waits; avoid another nested waiter
		select {
		case m.retransmitCh <- txItem{params: params, payload: payload}:
		case <-ctx.Done():
			return
		}
	}

	m.Logger.Error("mac: frame dropped", "id", m.Identifier, "type", params.Kind)
	select {
	case m.resetAckCh <- struct{}{}:
	case <-ctx.Done():
	}
}
