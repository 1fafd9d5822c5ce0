package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/jkaflik/windowbox2mqtt/internal/mqtt"
	"github.com/jkaflik/windowbox2mqtt/internal/sensor"
	"github.com/jkaflik/windowbox2mqtt/internal/web"
	"github.com/sirupsen/logrus"
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{
		DisableColors: false,
		FullTimestamp: true,
	})

	configPath := flag.String("config", "config.yaml", "config.yaml file path")
	flag.Parse()

	if err := configLoader.Load(); err != nil {
		logrus.Fatal(err)
	}
	loadConfigFromYamlFile(*configPath)
	if err := validateConfig(); err != nil {
		logrus.Fatal(err)
	}

	level, err := logrus.ParseLevel(Cfg.LogLevel)
	if err != nil {
		logrus.Fatal(err)
	}
	logrus.SetLevel(level)

	ctx, cancel := context.WithCancel(context.Background())

	d, err := deviceFromConfig(ctx)
	if err != nil {
		logrus.Fatal(err)
	}

	var bridges []*mqtt.Bridge
	var sensorBridges []*mqtt.SensorBridge
	cfg := pahoOptsFromConfig()
	cfg.OnConnect = func(m paho.Client) {
		logrus.Info("MQTT broker connected")
		subscribe(ctx, m, d, bridges, sensorBridges)
	}
	cfg.OnConnectionLost = func(_ paho.Client, err error) {
		logrus.Errorf("MQTT broker connection lost: %s", err.Error())
	}

	m := paho.NewClient(cfg)
	bridges, sensorBridges = bridgesFromDevice(m, d)

	if token := m.Connect(); token.Wait() && token.Error() != nil {
		logrus.Fatal(token.Error())
	}

	go d.poller.Run(ctx)

	if Cfg.HTTP.Enabled {
		serve(ctx, d)
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		oscall := <-c
		logrus.Infof("system call: %+v", oscall)
		cancel()
	}()

	<-ctx.Done()

	cleanupTime := time.Second
	logrus.Infof("cleanups for %s...", cleanupTime.String())
	time.Sleep(cleanupTime)
	m.Disconnect(uint(cleanupTime.Milliseconds()))
}

func subscribe(ctx context.Context, m paho.Client, d *device, bridges []*mqtt.Bridge, sensorBridges []*mqtt.SensorBridge) {
	haDevice := mqtt.NewHADevice(d.info)

	for _, bridge := range bridges {
		if Cfg.HASS.Enabled {
			if err := mqtt.PublishHAAutoDiscovery(m, Cfg.HASS.TopicPrefix, mqtt.NewHACoverFromBridge(bridge, haDevice)); err != nil {
				logrus.Error(err)
			}
			if err := mqtt.PublishHAButtonDiscovery(m, Cfg.HASS.TopicPrefix, mqtt.NewHAButtonsFromBridge(bridge, haDevice)); err != nil {
				logrus.Error(err)
			}
		}

		if err := bridge.SetMetadata(d.info); err != nil {
			logrus.Error(err)
		}
		if err := bridge.Subscribe(ctx); err != nil {
			logrus.Error(err)
		}
		bridge.PublishState()
	}

	for _, bridge := range sensorBridges {
		if Cfg.HASS.Enabled {
			if err := mqtt.PublishHABinarySensorDiscovery(m, Cfg.HASS.TopicPrefix, mqtt.NewHABinarySensorFromBridge(bridge, haDevice)); err != nil {
				logrus.Error(err)
			}
		}
		bridge.PublishState()
	}
}

func serve(ctx context.Context, d *device) {
	covers := make([]web.Cover, 0, len(d.covers))
	for _, c := range d.covers {
		covers = append(covers, c)
	}
	sensors := make([]sensor.Binary, 0, len(d.sensors))
	for _, s := range d.sensors {
		sensors = append(sensors, s)
	}

	srv := web.NewServer(ctx, web.Config{Listen: Cfg.HTTP.Listen, HTTPLog: Cfg.HTTP.Log}, d.poller, covers, sensors)

	go func() {
		logrus.Infof("HTTP server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatal(err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logrus.Errorf("HTTP server shutdown failed: %s", err)
		}
	}()
}
