package mqtt

import (
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jkaflik/windowbox2mqtt/internal/sensor"
	"github.com/sirupsen/logrus"
)

const (
	payloadOn  = "ON"
	payloadOff = "OFF"
)

// SensorBridge publishes a read-only binary sensor.
type SensorBridge struct {
	mqtt   mqtt.Client
	sensor sensor.Binary

	StateTopic        string
	AttributesTopic   string
	AvailabilityTopic string
}

func NewSensorBridge(mqtt mqtt.Client, s sensor.Binary) *SensorBridge {
	bridge := &SensorBridge{mqtt: mqtt, sensor: s}
	bridge.StateTopic = fmt.Sprintf("%s/%s/state", TopicPrefix, s.ID())
	bridge.AttributesTopic = fmt.Sprintf("%s/%s/attributes", TopicPrefix, s.ID())
	bridge.AvailabilityTopic = fmt.Sprintf("%s/%s/availability", TopicPrefix, s.ID())

	s.OnUpdate(bridge.onSensorUpdateHandler())

	return bridge
}

func (b *SensorBridge) PublishState() {
	b.onSensorUpdateHandler()(b.sensor.IsOn(), b.sensor.Available())
}

func (b *SensorBridge) onSensorUpdateHandler() sensor.UpdateHandler {
	return func(isOn *bool, available bool) {
		availability := payloadOffline
		if available {
			availability = payloadOnline
		}
		b.publish(b.AvailabilityTopic, availability, "availability")

		if isOn != nil {
			state := payloadOff
			if *isOn {
				state = payloadOn
			}
			b.publish(b.StateTopic, state, "state")
		}

		attributes, err := json.Marshal(b.sensor.Attributes())
		if err != nil {
			logrus.Errorf("%s: attributes encode failed: %s", b.sensor.Name(), err)
			return
		}
		b.publish(b.AttributesTopic, attributes, "attributes")
	}
}

func (b *SensorBridge) publish(topic string, payload interface{}, what string) {
	if token := b.mqtt.Publish(topic, 0, true, payload); token.Wait() && token.Error() != nil {
		logrus.Errorf("%s: MQTT %s publish failed: %s", b.sensor.Name(), what, token.Error())
	}
}
