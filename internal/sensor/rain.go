// Package sensor exposes device sensors as read-only binary sensors.
package sensor

import (
	"fmt"
	"sync"

	"github.com/jkaflik/windowbox2mqtt/internal/blebox"
	"github.com/jkaflik/windowbox2mqtt/internal/poller"
)

const RainType = "rain"

type UpdateHandler func(isOn *bool, available bool)

// Binary is an on/off sensor whose state may be unknown.
type Binary interface {
	ID() string
	Name() string
	DeviceClass() string
	IsOn() *bool
	Available() bool
	Attributes() interface{}
	OnUpdate(h UpdateHandler)
}

type Source interface {
	Snapshot() poller.Snapshot
	OnUpdate(h poller.UpdateHandler)
}

// Rain is a view over one rain sensor of the latest snapshot.
type Rain struct {
	id       string
	name     string
	sensorID int
	source   Source

	mu      sync.RWMutex
	handler UpdateHandler
}

func NewRain(deviceID, namePrefix string, sensorID int, source Source) *Rain {
	name := "Rain"
	if namePrefix != "" {
		name = namePrefix + " " + name
	}

	r := &Rain{
		id:       fmt.Sprintf("%s_rain_%d", deviceID, sensorID),
		name:     name,
		sensorID: sensorID,
		source:   source,
	}
	source.OnUpdate(r.handleSnapshot)

	return r
}

// RainSensorIDs lists the rain sensors present in state.
func RainSensorIDs(state *blebox.WindowState) []int {
	if state == nil {
		return nil
	}

	var ids []int
	for _, s := range state.Sensors {
		if s.Type == RainType {
			ids = append(ids, s.SensorID())
		}
	}
	return ids
}

func (r *Rain) ID() string {
	return r.id
}

func (r *Rain) Name() string {
	return r.name
}

func (r *Rain) DeviceClass() string {
	return "moisture"
}

func (r *Rain) sensor() (blebox.Sensor, bool) {
	return r.source.Snapshot().State.Sensor(RainType, r.sensorID)
}

// IsOn is nil when the sensor is missing from the payload.
func (r *Rain) IsOn() *bool {
	s, ok := r.sensor()
	if !ok {
		return nil
	}

	v, valid := s.Value.Float()
	on := valid && v == 1
	return &on
}

func (r *Rain) Available() bool {
	snap := r.source.Snapshot()
	if snap.Stale() {
		return false
	}
	_, ok := snap.State.Sensor(RainType, r.sensorID)
	return ok
}

type RainAttributes struct {
	State        interface{} `json:"state"`
	Trend        interface{} `json:"trend"`
	ElapsedTimeS interface{} `json:"elapsedTimeS"`
	IconSet      interface{} `json:"iconSet"`
}

func (r *Rain) Attributes() interface{} {
	s, _ := r.sensor()
	return RainAttributes{
		State:        s.State,
		Trend:        s.Trend,
		ElapsedTimeS: s.ElapsedTimeS,
		IconSet:      s.IconSet,
	}
}

func (r *Rain) OnUpdate(h UpdateHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handler = h
}

func (r *Rain) handleSnapshot(_ poller.Snapshot) {
	r.mu.RLock()
	h := r.handler
	r.mu.RUnlock()

	if h != nil {
		h(r.IsOn(), r.Available())
	}
}
