package mac

// controller dispatches one MAC-layer primitive received from the PHY (via
// MPIF), mirroring mac.py's controller().
func (m *MAC) controller(ev event) {
	switch ev.primitive {
	// Transmitter.
	case "PHY-TXSTART.confirm":
		m.sendNextOctet()
	case "PHY-DATA.confirm":
		if len(m.txPSDU) == 0 {
			m.send("PHY-TXEND.request", []int{})
		} else {
			m.sendNextOctet()
		}
	case "PHY-TXEND.confirm":
		m.Logger.Info("mac: transmission successful", "id", m.Identifier)

	// Receiver.
	case "PHY-CCA.indication(BUSY)":
		m.rxPSDU = nil
	case "PHY-DATA.indication":
		m.rxPSDU = append(m.rxPSDU, ev.bits...)
	case "PHY-RXEND.indication(No_Error)":
		m.handleReceivedFrame()
	case "PHY-RXEND.indication(FormatViolation)", "PHY-RXEND.indication(ScrambleSeedNotFound)":
		m.Logger.Debug("mac: reception error", "id", m.Identifier, "primitive", ev.primitive)
	}
}

func (m *MAC) sendNextOctet() {
	octet := m.txPSDU
	if len(octet) > 8 {
		octet = octet[:8]
	}
	m.send("PHY-DATA.request", octet)
	if len(m.txPSDU) > 8 {
		m.txPSDU = m.txPSDU[8:]
	} else {
		m.txPSDU = nil
	}
}

// handleReceivedFrame checks the CRC, classifies the destination cast and
// frame type, and delegates to the matching subtype controller.
func (m *MAC) handleReceivedFrame() {
	byteList := bitsToBytes(m.rxPSDU)
	if !checkCRC32(byteList) {
		m.Logger.Error("mac: CRC check failed", "id", m.Identifier)
		return
	}
	if len(byteList) < 24 {
		return
	}
	macHeader := byteList[:24]
	destination := addressFromBytes(macHeader[4:10])
	source := addressFromBytes(macHeader[10:16])

	cast := castNone
	switch {
	case destination == Broadcast:
		cast = castBroadcast
	case destination == m.Address:
		cast = castUnicast
	default:
		return // not for us
	}

	isRetry := len(m.rxPSDU) > 11 && m.rxPSDU[11] == 1

	typeBits := [2]int{m.rxPSDU[3], m.rxPSDU[2]}
	switch typeBits {
	case [2]int{0, 0}:
		m.managementController(source, cast)
	case [2]int{0, 1}:
		m.controlController(source, cast)
	case [2]int{1, 0}:
		m.dataController(source, cast, byteList)
	}

	if isRetry {
		m.dedupeTxQueue()
	}
}

// dedupeTxQueue removes duplicate queued frames after a retransmission was
// observed, keeping the last-queued occurrence of each distinct item in its
// original relative order.
func (m *MAC) dedupeTxQueue() {
	seen := map[txItemKey]bool{}
	result := make([]txItem, 0, len(m.txQueue))
	for i := len(m.txQueue) - 1; i >= 0; i-- {
		item := m.txQueue[i]
		k := item.key()
		if seen[k] {
			continue
		}
		seen[k] = true
		result = append([]txItem{item}, result...)
	}
	m.txQueue = result
}
