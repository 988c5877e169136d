//go:build linux

package hpgp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHtonsByteSwap(t *testing.T) {
	assert.Equal(t, uint16(0xE188), htons(0x88E1))
	assert.Equal(t, uint16(0x0001), htons(0x0100))
}

func TestNewLinuxTransportRejectsUnknownInterface(t *testing.T) {
	_, err := NewLinuxTransport("hpgp-test-no-such-iface", nil, DefaultEtherType)
	assert.Error(t, err)
}
