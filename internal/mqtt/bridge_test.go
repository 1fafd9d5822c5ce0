package mqtt

import (
	"context"
	"testing"

	"github.com/jkaflik/windowbox2mqtt/internal/shutter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBridgeTopics(t *testing.T) {
	assert := assert.New(t)

	bridge := NewBridge(newFakeClient(), &fakeShutter{})

	assert.Equal("windowbox2mqtt/dev_motor_0/state", bridge.StateTopic)
	assert.Equal("windowbox2mqtt/dev_motor_0/position", bridge.PositionTopic)
	assert.Equal("windowbox2mqtt/dev_motor_0/attributes", bridge.AttributesTopic)
	assert.Equal("windowbox2mqtt/dev_motor_0/availability", bridge.AvailabilityTopic)
	assert.Equal("windowbox2mqtt/dev_motor_0/set", bridge.CommandTopic)
	assert.Equal("windowbox2mqtt/dev_motor_0/position/set", bridge.PositionChangeTopic)
}

func TestBridgePublishesUpdates(t *testing.T) {
	client := newFakeClient()
	s := &fakeShutter{}
	bridge := NewBridge(client, s)

	t.Run("known state", func(t *testing.T) {
		pos := 40
		s.emit(shutter.Update{State: shutter.ShutterOpeningState, Position: &pos, Available: true})

		state, _ := client.last(bridge.StateTopic)
		assert.Equal(t, "opening", state)
		position, _ := client.last(bridge.PositionTopic)
		assert.Equal(t, "40", position)
		availability, _ := client.last(bridge.AvailabilityTopic)
		assert.Equal(t, "online", availability)
		attributes, _ := client.last(bridge.AttributesTopic)
		assert.JSONEq(t, `{"motor_state":2}`, attributes)
	})

	t.Run("unknown state is not published", func(t *testing.T) {
		client.published = nil
		s.emit(shutter.Update{Available: false})

		_, ok := client.last(bridge.StateTopic)
		assert.False(t, ok)
		_, ok = client.last(bridge.PositionTopic)
		assert.False(t, ok)
		availability, _ := client.last(bridge.AvailabilityTopic)
		assert.Equal(t, "offline", availability)
	})

	t.Run("published messages are retained", func(t *testing.T) {
		bridge.PublishState()
		for _, p := range client.published {
			assert.True(t, p.retained, p.topic)
		}
	})
}

func TestBridgeCommands(t *testing.T) {
	client := newFakeClient()
	s := &fakeShutter{}
	bridge := NewBridge(client, s)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, bridge.Subscribe(ctx))

	for _, cmd := range []string{"open", "close", "stop", "favorite", "next_step", "dance"} {
		client.deliver(bridge.CommandTopic, cmd)
	}
	assert.Equal(t, []string{"open", "close", "stop", "favorite", "next_step"}, s.commands)

	client.deliver(bridge.PositionChangeTopic, "35")
	client.deliver(bridge.PositionChangeTopic, " 70\n")
	client.deliver(bridge.PositionChangeTopic, "half")
	assert.Equal(t, []int{35, 70}, s.positions)

	cancel()
	assert.Eventually(t, func() bool {
		client.mu.Lock()
		defer client.mu.Unlock()
		return len(client.unsubscribed) == 2
	}, testTimeout, testTick)
}

func TestBridgeMetadata(t *testing.T) {
	client := newFakeClient()
	bridge := NewBridge(client, &fakeShutter{})

	require.NoError(t, bridge.SetMetadata(map[string]string{"fw": "0.9"}))
	metadata, _ := client.last(bridge.MetadataTopic)
	assert.JSONEq(t, `{"fw":"0.9"}`, metadata)
}
