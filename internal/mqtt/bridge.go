package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jkaflik/windowbox2mqtt/internal/shutter"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const TopicPrefix = "windowbox2mqtt"

const (
	payloadOnline  = "online"
	payloadOffline = "offline"
)

type Bridge struct {
	mqtt    mqtt.Client
	shutter shutter.Shutter

	StateTopic        string
	PositionTopic     string
	AttributesTopic   string
	AvailabilityTopic string
	MetadataTopic     string

	CommandTopic        string
	PositionChangeTopic string
}

func NewBridge(mqtt mqtt.Client, shutter shutter.Shutter) *Bridge {
	bridge := &Bridge{mqtt: mqtt, shutter: shutter}
	bridge.StateTopic = fmt.Sprintf("%s/%s/state", TopicPrefix, shutter.ID())
	bridge.PositionTopic = fmt.Sprintf("%s/%s/position", TopicPrefix, shutter.ID())
	bridge.AttributesTopic = fmt.Sprintf("%s/%s/attributes", TopicPrefix, shutter.ID())
	bridge.AvailabilityTopic = fmt.Sprintf("%s/%s/availability", TopicPrefix, shutter.ID())
	bridge.MetadataTopic = fmt.Sprintf("%s/%s/metadata", TopicPrefix, shutter.ID())
	bridge.CommandTopic = fmt.Sprintf("%s/%s/set", TopicPrefix, shutter.ID())
	bridge.PositionChangeTopic = fmt.Sprintf("%s/%s/position/set", TopicPrefix, shutter.ID())

	shutter.OnUpdate(bridge.onShutterUpdateHandler())

	return bridge
}

func (b *Bridge) SetMetadata(value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}

	if token := b.mqtt.Publish(b.MetadataTopic, 0, true, payload); token.Wait() && token.Error() != nil {
		return errors.Wrapf(token.Error(), "%s: MQTT metadata publish failed", b.shutter.Name())
	}

	return nil
}

func (b *Bridge) Subscribe(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		if token := b.mqtt.Unsubscribe(b.PositionChangeTopic, b.CommandTopic); token.Wait() && token.Error() != nil {
			logrus.Errorf("%s: MQTT topics unsubscribe failed: %s", b.shutter.Name(), token.Error())
		}
	}()

	if token := b.mqtt.Subscribe(b.CommandTopic, 0, b.onCommandHandler(ctx)); token.Wait() && token.Error() != nil {
		return errors.Wrapf(token.Error(), "%s: MQTT command topic subscription failed", b.shutter.Name())
	}
	logrus.Infof("%s: MQTT command topic subscribed", b.shutter.Name())
	if token := b.mqtt.Subscribe(b.PositionChangeTopic, 0, b.onPositionChangeHandler(ctx)); token.Wait() && token.Error() != nil {
		return errors.Wrapf(token.Error(), "%s: MQTT position change topic subscription failed", b.shutter.Name())
	}
	logrus.Infof("%s: MQTT position change topic subscribed", b.shutter.Name())

	return nil
}

// PublishState publishes the current shutter state, e.g. right after (re)connect.
func (b *Bridge) PublishState() {
	b.onShutterUpdateHandler()(shutter.Update{
		State:     b.shutter.State(),
		Position:  b.shutter.Position(),
		Available: b.shutter.Available(),
	})
}

func (b *Bridge) onShutterUpdateHandler() shutter.ShutterUpdateHandler {
	return func(u shutter.Update) {
		availability := payloadOffline
		if u.Available {
			availability = payloadOnline
		}
		b.publish(b.AvailabilityTopic, availability, "availability")

		if u.State != "" {
			b.publish(b.StateTopic, u.State, "state")
		}
		if u.Position != nil {
			b.publish(b.PositionTopic, strconv.Itoa(*u.Position), "position")
		}

		attributes, err := json.Marshal(b.shutter.Attributes())
		if err != nil {
			logrus.Errorf("%s: attributes encode failed: %s", b.shutter.Name(), err)
			return
		}
		b.publish(b.AttributesTopic, attributes, "attributes")
	}
}

func (b *Bridge) publish(topic string, payload interface{}, what string) {
	if token := b.mqtt.Publish(topic, 0, true, payload); token.Wait() && token.Error() != nil {
		logrus.Errorf("%s: MQTT %s publish failed: %s", b.shutter.Name(), what, token.Error())
	}
}

func (b *Bridge) onCommandHandler(ctx context.Context) mqtt.MessageHandler {
	return func(c mqtt.Client, msg mqtt.Message) {
		cmd := strings.TrimSpace(string(msg.Payload()))
		if err := shutter.Run(ctx, b.shutter, cmd); err != nil {
			logrus.Errorf("%s: MQTT %s command failed: %s", b.shutter.Name(), cmd, err)
		}
	}
}

func (b *Bridge) onPositionChangeHandler(ctx context.Context) mqtt.MessageHandler {
	return func(c mqtt.Client, msg mqtt.Message) {
		pos, err := strconv.Atoi(strings.TrimSpace(string(msg.Payload())))
		if err != nil {
			logrus.Errorf("%s: MQTT invalid position %q: %s", b.shutter.Name(), msg.Payload(), err)
			return
		}
		if err := b.shutter.SetPosition(ctx, pos); err != nil {
			logrus.Error(err)
		}
	}
}
