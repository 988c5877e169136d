package hpgp

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAcceptSourceBroadcastModeAcceptsAny(t *testing.T) {
	assert.True(t, acceptSource(net.HardwareAddr{1, 2, 3, 4, 5, 6}, nil))
}

func TestAcceptSourceUnicastModeFiltersByPeer(t *testing.T) {
	peer := net.HardwareAddr{1, 2, 3, 4, 5, 6}
	assert.True(t, acceptSource(peer, peer))
	assert.False(t, acceptSource(net.HardwareAddr{9, 9, 9, 9, 9, 9}, peer))
}

func TestAcceptDestinationLocalOrBroadcast(t *testing.T) {
	local := net.HardwareAddr{1, 2, 3, 4, 5, 6}
	assert.True(t, acceptDestination(local, local))
	assert.True(t, acceptDestination(broadcastMAC, local))
	assert.False(t, acceptDestination(net.HardwareAddr{9, 9, 9, 9, 9, 9}, local))
}

func TestAcceptLegacySourceWidensFilter(t *testing.T) {
	peer := net.HardwareAddr{1, 2, 3, 4, 5, 6}
	assert.True(t, acceptLegacySource(broadcastMAC, peer))
	assert.True(t, acceptLegacySource(BootloaderMAC, peer))
	assert.True(t, acceptLegacySource(peer, peer))
	assert.False(t, acceptLegacySource(net.HardwareAddr{9, 9, 9, 9, 9, 9}, peer))
}

func TestResolveIfaceRejectsUnknownName(t *testing.T) {
	_, err := ResolveIface("hpgp-test-no-such-iface")
	assert.ErrorIs(t, err, ErrNotFound)
}
