package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPeerID(t *testing.T) {
	p := PeerID("12D3KooWabcdefgh")
	assert.Equal(t, "12D3KooW", p.ShortString())
	assert.False(t, p.IsEmpty())
	assert.NoError(t, p.Validate())

	assert.ErrorIs(t, EmptyPeerID.Validate(), ErrEmptyPeerID)
	assert.Equal(t, "abc", PeerID("abc").ShortString())
}

func TestLinkState_String(t *testing.T) {
	assert.Equal(t, "connected", LinkConnected.String())
	assert.Equal(t, "connecting", LinkConnecting.String())
	assert.Equal(t, "disconnected", LinkDisconnected.String())
	assert.Equal(t, "disconnecting", LinkDisconnecting.String())
	assert.Equal(t, "unknown", LinkState(42).String())
}

func TestDirection_String(t *testing.T) {
	assert.Equal(t, "inbound", DirInbound.String())
	assert.Equal(t, "outbound", DirOutbound.String())
	assert.Equal(t, "unknown", DirUnknown.String())
}

func TestDeviceOutcome_IsAnomaly(t *testing.T) {
	anomalies := []DeviceOutcome{OutcomeDuplicateKey, OutcomeStaleRemoval, OutcomeDuplicateLogical, OutcomeAmbiguous}
	for _, o := range anomalies {
		assert.True(t, o.IsAnomaly(), o)
	}

	normal := []DeviceOutcome{OutcomeOK, OutcomeNotFound, OutcomeNotReady, OutcomeInterrupted, OutcomeEvicted}
	for _, o := range normal {
		assert.False(t, o.IsAnomaly(), o)
	}
}

func TestDeviceEvent(t *testing.T) {
	evt := DeviceEvent{Op: DeviceOpSend, Outcome: OutcomeOK}
	assert.Equal(t, "ble.send", evt.Type())
	assert.True(t, evt.OK())

	evt.Outcome = OutcomeNotReady
	assert.False(t, evt.OK())
}
