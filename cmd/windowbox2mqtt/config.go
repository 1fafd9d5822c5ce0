package main

import (
	"context"
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/jkaflik/windowbox2mqtt/internal/blebox"
	"github.com/jkaflik/windowbox2mqtt/internal/mqtt"
	"github.com/jkaflik/windowbox2mqtt/internal/poller"
	"github.com/jkaflik/windowbox2mqtt/internal/sensor"
	"github.com/jkaflik/windowbox2mqtt/internal/shutter/driver/windowbox"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

type cfgDevice struct {
	Host    string        `yaml:"host" env:"HOST"`
	Name    string        `yaml:"name" env:"NAME"`
	Timeout time.Duration `yaml:"timeout" default:"8s" env:"TIMEOUT"`
}

type cfgMQTT struct {
	ClientID string `yaml:"client_id" default:"windowbox2mqtt" env:"CLIENT_ID"`
	Broker   string `yaml:"broker" default:"127.0.0.1:1883" env:"BROKER"`
	Username string `yaml:"username" env:"USERNAME"`
	Password string `yaml:"password" env:"PASSWORD"`
}

type cfgHASS struct {
	Enabled     bool   `yaml:"enabled" default:"true" env:"ENABLED"`
	TopicPrefix string `yaml:"topic_prefix" default:"homeassistant" env:"TOPIC_PREFIX"`
}

type cfgHTTP struct {
	Enabled bool   `yaml:"enabled" default:"false" env:"ENABLED"`
	Listen  string `yaml:"listen" default:":8080" env:"LISTEN"`
	Log     bool   `yaml:"log" default:"false" env:"LOG"`
}

var Cfg struct {
	LogLevel string `yaml:"log_level" default:"info" env:"LOG_LEVEL"`

	Device cfgDevice `yaml:"device" env:"DEVICE"`
	MQTT   cfgMQTT   `yaml:"mqtt" env:"MQTT"`
	HASS   cfgHASS   `yaml:"hass" env:"HASS"`
	HTTP   cfgHTTP   `yaml:"http" env:"HTTP"`
}

var configLoader = aconfig.LoaderFor(&Cfg, aconfig.Config{
	EnvPrefix: "W2M",
	SkipFlags: true,
	SkipFiles: true,
})

func loadConfigFromYamlFile(filename string) {
	f, err := os.Open(filename)
	if err != nil {
		logrus.Error(err)
		return
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&Cfg); err != nil {
		logrus.Fatal(err)
	}
}

func validateConfig() error {
	if Cfg.Device.Host == "" {
		return errors.New("device.host is required")
	}
	return nil
}

func pahoOptsFromConfig() *paho.ClientOptions {
	return paho.NewClientOptions().
		SetClientID(Cfg.MQTT.ClientID).
		AddBroker(Cfg.MQTT.Broker).
		SetUsername(Cfg.MQTT.Username).
		SetPassword(Cfg.MQTT.Password).
		SetConnectTimeout(time.Second).
		SetPingTimeout(time.Second).
		SetWriteTimeout(time.Second).
		SetAutoReconnect(true)
}

// device is everything derived from one smartWindowBox at startup.
type device struct {
	info    blebox.DeviceInfo
	client  *blebox.Client
	poller  *poller.Poller
	covers  []*windowbox.Cover
	sensors []*sensor.Rain
}

// deviceFromConfig identifies the device and creates its entities from the
// first state it reports.
func deviceFromConfig(ctx context.Context) (*device, error) {
	client := blebox.NewClient(Cfg.Device.Host, Cfg.Device.Timeout)

	info, err := client.Identify(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: cannot connect", client.BaseURL())
	}
	logrus.Infof("%s: found %s %s (fw %s)", client.BaseURL(), info.Type, info.Name, info.FWVersion)

	p := poller.New(client, poller.DefaultInterval)
	if err := p.Refresh(ctx); err != nil {
		return nil, errors.Wrapf(err, "%s: cannot connect", client.BaseURL())
	}

	d := &device{info: info, client: client, poller: p}
	state := p.Snapshot().State
	for _, m := range state.Motors {
		if _, ok := m.ID.Int(); !ok {
			logrus.Warnf("%s: motor %q has no valid id, skipped", client.BaseURL(), m.Name)
			continue
		}
		d.covers = append(d.covers, windowbox.NewCover(info.ID, Cfg.Device.Name, m.Channel(), client, p))
	}
	for _, id := range sensor.RainSensorIDs(state) {
		d.sensors = append(d.sensors, sensor.NewRain(info.ID, Cfg.Device.Name, id, p))
	}

	return d, nil
}

func bridgesFromDevice(client paho.Client, d *device) (bridges []*mqtt.Bridge, sensorBridges []*mqtt.SensorBridge) {
	for _, c := range d.covers {
		bridge := mqtt.NewBridge(client, c)
		bridges = append(bridges, bridge)
	}
	for _, s := range d.sensors {
		sensorBridges = append(sensorBridges, mqtt.NewSensorBridge(client, s))
	}

	return bridges, sensorBridges
}
