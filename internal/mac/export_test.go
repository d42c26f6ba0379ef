package mac

// SetAssociatedAPForTest seeds the associated-AP snapshot directly, for use
// by other packages' tests that need a STA MAC to already be associated
// without driving the full authenticate/associate handshake.
func (m *MAC) SetAssociatedAPForTest(ap Address) {
	m.associatedAP = &ap
	m.associatedAPAtomic.Store(&ap)
}

// SetAssociatedSTAsForTest seeds the associated-STA snapshot directly, for
// use by other packages' tests that need an AP MAC to already have
// associated STAs without driving the full handshake.
func (m *MAC) SetAssociatedSTAsForTest(stas []Address) {
	for _, addr := range stas {
		m.associatedSTA[addr] = true
	}
	m.refreshAssociatedSTASnapshot()
}
