package chip

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huskysdr/aerowave/internal/mac"
)

func testMAC(t *testing.T, role mac.Role) *mac.MAC {
	t.Helper()
	logger := log.New(io.Discard)
	cfg := mac.Config{}
	return mac.New(string(role)+"-under-test", role, logger, nil, cfg, mac.AuthOpenSystem, 0)
}

// Test_SendText_STA_NotAssociated confirms a STA refuses to send before it
// has associated with an AP, mirroring send_text's reliance on
// _associated_ap being set.
func Test_SendText_STA_NotAssociated(t *testing.T) {
	c := &Chip{Identifier: "sta-1", Role: mac.RoleSTA, MAC: testMAC(t, mac.RoleSTA)}

	err := c.SendText("hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not yet associated")
}

// Test_SendText_AP_NoAssociatedSTA confirms an AP refuses to send before any
// STA has associated with it.
func Test_SendText_AP_NoAssociatedSTA(t *testing.T) {
	c := &Chip{Identifier: "ap-1", Role: mac.RoleAP, MAC: testMAC(t, mac.RoleAP)}

	err := c.SendText("hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no associated STA")
}

// Test_associatedPeer_STA_UsesAssociatedAP confirms a STA addresses its
// currently associated AP once one is set.
func Test_associatedPeer_STA_UsesAssociatedAP(t *testing.T) {
	m := testMAC(t, mac.RoleSTA)
	ap := mac.Address{1, 2, 3, 4, 5, 6}
	m.SetAssociatedAPForTest(ap)

	c := &Chip{Identifier: "sta-1", Role: mac.RoleSTA, MAC: m}

	dest, err := c.associatedPeer()
	require.NoError(t, err)
	assert.Equal(t, ap, dest)
}

// Test_associatedPeer_AP_UsesFirstAssociatedSTA confirms an AP addresses one
// of its currently associated STAs once at least one is set.
func Test_associatedPeer_AP_UsesFirstAssociatedSTA(t *testing.T) {
	m := testMAC(t, mac.RoleAP)
	sta := mac.Address{6, 5, 4, 3, 2, 1}
	m.SetAssociatedSTAsForTest([]mac.Address{sta})

	c := &Chip{Identifier: "ap-1", Role: mac.RoleAP, MAC: m}

	dest, err := c.associatedPeer()
	require.NoError(t, err)
	assert.Equal(t, sta, dest)
}
