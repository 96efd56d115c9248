package mqtt

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon-bridge.klederson.com/internal/bridge"
	"beacon-bridge.klederson.com/internal/config"
)

func newTestPublisher() *Publisher {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPublisher(config.MQTTOptions{
		Broker:      "127.0.0.1",
		Port:        1,
		ClientID:    "beacon-bridge-test",
		TopicPrefix: "beacons",
	}, logger)
}

func TestTopic(t *testing.T) {
	tests := []struct {
		prefix, event, want string
	}{
		{"beacons", bridge.EventBeaconsDidRange, "beacons/events/beaconsDidRange"},
		{"site/a", bridge.EventRegionDidEnter, "site/a/events/regionDidEnter"},
		{"", bridge.EventBindStatus, "events/bindStatus"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Topic(tt.prefix, tt.event))
	}
}

func TestEncode(t *testing.T) {
	data, err := encode(nil)
	require.NoError(t, err)
	assert.Empty(t, data)

	data, err = encode(bridge.BindStatusPayload{Status: "true"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"true"}`, string(data))
}

func TestPublisherInactiveUntilConnected(t *testing.T) {
	p := newTestPublisher()
	assert.False(t, p.Active())
	assert.NotPanics(t, func() { p.Emit(bridge.EventBindStatus, bridge.BindStatusPayload{Status: "true"}) })
}

func TestConnectAfterClose(t *testing.T) {
	p := newTestPublisher()
	p.Close()
	p.Close()

	err := p.Connect(context.Background())
	require.ErrorIs(t, err, errStopped)
	assert.False(t, p.Active())
}

func TestPublisherImplementsEmitter(t *testing.T) {
	var _ bridge.Emitter = newTestPublisher()
}
