package mqtt

import (
	"encoding/json"
	"fmt"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/jkaflik/windowbox2mqtt/internal/blebox"
	"github.com/jkaflik/windowbox2mqtt/internal/shutter"
)

type haDevice struct {
	Identifiers  []string `json:"ids,omitempty"`
	Manufacturer string   `json:"mf,omitempty"`
	Model        string   `json:"mdl,omitempty"`
	Name         string   `json:"name,omitempty"`
	SWVersion    string   `json:"sw,omitempty"`
	HWVersion    string   `json:"hw,omitempty"`
}

type haEntity struct {
	AvailabilityTopic   string `json:"avty_t,omitempty"`
	JSONAttributesTopic string `json:"json_attr_t,omitempty"`
	UniqueID            string `json:"uniq_id,omitempty"`
	Name                string `json:"name,omitempty"`
	DeviceClass         string `json:"device_class,omitempty"`

	Device haDevice `json:"device,omitempty"`
}

type haCover struct {
	haEntity
	StateTopic       string `json:"stat_t"`
	CommandTopic     string `json:"cmd_t"`
	PositionTopic    string `json:"pos_t"`
	SetPositionTopic string `json:"set_pos_t"`
	PositionOpen     int    `json:"pos_open"`
	PositionClosed   int    `json:"pos_clsd"`
	PayloadOpen      string `json:"pl_open"`
	PayloadStop      string `json:"pl_stop"`
	PayloadClose     string `json:"pl_cls"`
}

type haButton struct {
	haEntity
	CommandTopic string `json:"cmd_t"`
	PayloadPress string `json:"pl_prs"`
}

type haBinarySensor struct {
	haEntity
	StateTopic string `json:"stat_t"`
	PayloadOn  string `json:"pl_on"`
	PayloadOff string `json:"pl_off"`
}

func NewHADevice(info blebox.DeviceInfo) haDevice {
	return haDevice{
		Identifiers:  []string{info.ID},
		Manufacturer: "BleBox",
		Model:        info.Type,
		Name:         info.Name,
		SWVersion:    info.FWVersion,
		HWVersion:    info.HWVersion,
	}
}

func NewHACoverFromBridge(bridge *Bridge, device haDevice) haCover {
	return haCover{
		haEntity: haEntity{
			AvailabilityTopic:   bridge.AvailabilityTopic,
			JSONAttributesTopic: bridge.AttributesTopic,
			UniqueID:            bridge.shutter.ID(),
			Name:                bridge.shutter.Name(),
			DeviceClass:         "window",
			Device:              device,
		},
		StateTopic:       bridge.StateTopic,
		CommandTopic:     bridge.CommandTopic,
		PositionTopic:    bridge.PositionTopic,
		SetPositionTopic: bridge.PositionChangeTopic,
		PositionOpen:     bridge.shutter.FullOpenPosition(),
		PositionClosed:   bridge.shutter.FullClosePosition(),
		PayloadOpen:      shutter.OpenCommand,
		PayloadStop:      shutter.StopCommand,
		PayloadClose:     shutter.CloseCommand,
	}
}

// NewHAButtonsFromBridge exposes favorite and next step presets as buttons.
// Shutters without presets get none.
func NewHAButtonsFromBridge(bridge *Bridge, device haDevice) []haButton {
	if _, ok := bridge.shutter.(shutter.StepShutter); !ok {
		return nil
	}

	button := func(command, label string) haButton {
		return haButton{
			haEntity: haEntity{
				AvailabilityTopic: bridge.AvailabilityTopic,
				UniqueID:          bridge.shutter.ID() + "_" + command,
				Name:              bridge.shutter.Name() + " " + label,
				Device:            device,
			},
			CommandTopic: bridge.CommandTopic,
			PayloadPress: command,
		}
	}

	return []haButton{
		button(shutter.FavoriteCommand, "favorite"),
		button(shutter.NextStepCommand, "next step"),
	}
}

func NewHABinarySensorFromBridge(bridge *SensorBridge, device haDevice) haBinarySensor {
	return haBinarySensor{
		haEntity: haEntity{
			AvailabilityTopic:   bridge.AvailabilityTopic,
			JSONAttributesTopic: bridge.AttributesTopic,
			UniqueID:            bridge.sensor.ID(),
			Name:                bridge.sensor.Name(),
			DeviceClass:         bridge.sensor.DeviceClass(),
			Device:              device,
		},
		StateTopic: bridge.StateTopic,
		PayloadOn:  payloadOn,
		PayloadOff: payloadOff,
	}
}

func PublishHAAutoDiscovery(client paho.Client, homeAssistantDiscoveryTopicPrefix string, haCover haCover) error {
	return publishHAConfig(client, homeAssistantDiscoveryTopicPrefix, "cover", haCover.UniqueID, haCover)
}

func PublishHAButtonDiscovery(client paho.Client, homeAssistantDiscoveryTopicPrefix string, buttons []haButton) error {
	for _, b := range buttons {
		if err := publishHAConfig(client, homeAssistantDiscoveryTopicPrefix, "button", b.UniqueID, b); err != nil {
			return err
		}
	}
	return nil
}

func PublishHABinarySensorDiscovery(client paho.Client, homeAssistantDiscoveryTopicPrefix string, sensor haBinarySensor) error {
	return publishHAConfig(client, homeAssistantDiscoveryTopicPrefix, "binary_sensor", sensor.UniqueID, sensor)
}

func discoveryTopic(prefix, component, objectID string) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", prefix, component, TopicPrefix, objectID)
}

func publishHAConfig(client paho.Client, prefix, component, objectID string, config interface{}) error {
	payload, err := json.Marshal(config)
	if err != nil {
		return err
	}

	if token := client.Publish(discoveryTopic(prefix, component, objectID), 0, true, payload); token.Wait() && token.Error() != nil {
		return token.Error()
	}

	return nil
}
