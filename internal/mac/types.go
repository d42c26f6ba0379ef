package mac

// Role is the two roles a chip's MAC can take, matching the original's
// role string ("AP" or "STA").
type Role string

const (
	RoleAP  Role = "AP"
	RoleSTA Role = "STA"
)

// AuthAlgorithm names the two 802.11 authentication algorithms this MAC
// supports.
type AuthAlgorithm string

const (
	AuthOpenSystem AuthAlgorithm = "open-system"
	AuthSharedKey  AuthAlgorithm = "shared-key"
)

// securityAlgorithmCode is the 2-byte Authentication Algorithm Number field,
// IEEE Std 802.11-2020 9.4.1.1.
var securityAlgorithmCode = map[AuthAlgorithm][]byte{
	AuthOpenSystem: {0x00, 0x00},
	AuthSharedKey:  {0x00, 0x01},
}

// ShortRetryLimit is SHORT_RETRY_LIMIT: the number of times an unacknowledged
// frame is retransmitted before it is dropped.
const ShortRetryLimit = 7

// ackState tracks whether the MAC is waiting for, or has received, an ACK
// for the frame currently awaiting acknowledgement.
type ackState int

const (
	ackNotNeeded ackState = iota
	ackWaiting
	ackReceived
)

// castKind classifies a received frame's destination address against this
// MAC's own address.
type castKind int

const (
	castNone castKind = iota
	castUnicast
	castBroadcast
)
