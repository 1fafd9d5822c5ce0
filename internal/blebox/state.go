package blebox

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Motor raw states as reported by the firmware.
const (
	MotorClosing          = 0
	MotorOpening          = 1
	MotorIdleIntermediate = 2
	MotorIdleClosed       = 3
	MotorIdleOpen         = 4
)

// maxMagnitude bounds valid numbers so they always fit an int and a
// millisecond time.Duration.
const maxMagnitude = math.MaxInt32

// Number is a leniently decoded JSON scalar. The firmware is not consistent
// about types, so numbers, numeric strings, null and garbage all decode
// without error; garbage is kept as set but not valid. NaN, infinities and
// out of range values count as garbage.
type Number struct {
	value float64
	set   bool
	valid bool
	// quoted values must be integral to be read as an int
	quoted bool
}

func NewNumber(v float64) Number {
	return Number{value: v, set: true, valid: inRange(v)}
}

func inRange(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && math.Abs(v) <= maxMagnitude
}

// InvalidNumber is a present value that does not parse as a number.
func InvalidNumber() Number {
	return Number{set: true}
}

func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number{}

	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	text := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &text); err != nil {
			n.set = true
			return nil
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return nil
		}
		n.quoted = true
	}

	n.set = true
	if v, err := strconv.ParseFloat(text, 64); err == nil && inRange(v) {
		n.value = v
		n.valid = true
	}

	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.valid {
		return []byte("null"), nil
	}

	return json.Marshal(n.value)
}

// IsSet reports whether the field was present, non-null and non-empty.
func (n Number) IsSet() bool {
	return n.set
}

func (n Number) Valid() bool {
	return n.valid
}

func (n Number) Float() (float64, bool) {
	return n.value, n.valid
}

// Int truncates JSON numbers towards zero. Numeric strings must be integral:
// "50.9" is not an int.
func (n Number) Int() (int, bool) {
	if !n.valid || (n.quoted && n.value != math.Trunc(n.value)) {
		return 0, false
	}
	return int(n.value), true
}

// IntPtr returns nil for unknown values.
func (n Number) IntPtr() *int {
	v, ok := n.Int()
	if !ok {
		return nil
	}
	return &v
}

type PositionValue struct {
	Position Number `json:"position"`
}

type Calibration struct {
	IsCalibrated      interface{} `json:"isCalibrated"`
	MaxMoveTimeUpMs   Number      `json:"maxMoveTimeUpMs"`
	MaxMoveTimeDownMs Number      `json:"maxMoveTimeDownMs"`
}

type Motor struct {
	ID          Number        `json:"id"`
	Name        string        `json:"name"`
	State       Number        `json:"state"`
	CurrentPos  PositionValue `json:"currentPos"`
	DesiredPos  PositionValue `json:"desiredPos"`
	FavPos      PositionValue `json:"favPos"`
	Calibration Calibration   `json:"calibrationParameters"`

	Enabled     interface{} `json:"enabled"`
	ControlType interface{} `json:"controlType"`
	IconSet     interface{} `json:"iconSet"`
}

// Channel is the motor id, 0 when missing.
func (m Motor) Channel() int {
	ch, _ := m.ID.Int()
	return ch
}

// RawState returns the firmware state code, -1 when unknown.
func (m Motor) RawState() int {
	if s, ok := m.State.Int(); ok {
		return s
	}
	return -1
}

func (m Motor) IsMoving() bool {
	s := m.RawState()
	return s == MotorClosing || s == MotorOpening
}

func (m Motor) IsOpening() bool {
	return m.RawState() == MotorOpening
}

func (m Motor) IsClosing() bool {
	return m.RawState() == MotorClosing
}

func (m Motor) CurrentPosition() *int {
	return m.CurrentPos.Position.IntPtr()
}

func (m Motor) DesiredPosition() *int {
	return m.DesiredPos.Position.IntPtr()
}

func (m Motor) FavoritePosition() *int {
	return m.FavPos.Position.IntPtr()
}

type Sensor struct {
	ID           Number      `json:"id"`
	Type         string      `json:"type"`
	Value        Number      `json:"value"`
	State        interface{} `json:"state"`
	Trend        interface{} `json:"trend"`
	ElapsedTimeS interface{} `json:"elapsedTimeS"`
	IconSet      interface{} `json:"iconSet"`
}

func (s Sensor) SensorID() int {
	id, _ := s.ID.Int()
	return id
}

// WindowState is one /api/window/extended/state snapshot. Treat it as immutable.
type WindowState struct {
	Motors  []Motor
	Sensors []Sensor
}

type windowStatePayload struct {
	Window struct {
		Motors  []Motor  `json:"motors"`
		Sensors []Sensor `json:"sensors"`
	} `json:"window"`
}

// Motor looks a channel up. Motors without a valid id never match.
func (s *WindowState) Motor(channel int) (Motor, bool) {
	if s == nil {
		return Motor{}, false
	}

	for _, m := range s.Motors {
		if id, ok := m.ID.Int(); ok && id == channel {
			return m, true
		}
	}

	return Motor{}, false
}

func (s *WindowState) Sensor(kind string, id int) (Sensor, bool) {
	if s == nil {
		return Sensor{}, false
	}

	for _, sensor := range s.Sensors {
		if sensor.Type != kind {
			continue
		}
		if sid, ok := sensor.ID.Int(); ok && sid == id {
			return sensor, true
		}
	}

	return Sensor{}, false
}
