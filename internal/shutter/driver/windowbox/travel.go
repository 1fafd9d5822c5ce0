package windowbox

import (
	"time"

	"github.com/jkaflik/windowbox2mqtt/internal/blebox"
)

type Direction string

const (
	Opening Direction = "opening"
	Closing Direction = "closing"
)

const (
	defaultTravelTime = 40 * time.Second
	minTravelTime     = time.Second
)

// TravelTime is the calibrated full-range travel time for a direction.
// Missing or zero calibration falls back to 40s, garbage to 40s flat.
func TravelTime(cal blebox.Calibration, dir Direction) time.Duration {
	ms := cal.MaxMoveTimeDownMs
	if dir == Opening {
		ms = cal.MaxMoveTimeUpMs
	}

	if !ms.IsSet() {
		return defaultTravelTime
	}

	v, ok := ms.Float()
	if !ok {
		return defaultTravelTime
	}
	if v == 0 {
		v = float64(defaultTravelTime / time.Millisecond)
	}

	d := time.Duration(v * float64(time.Millisecond))
	if d < minTravelTime {
		return minTravelTime
	}

	return d
}

func directionOf(m blebox.Motor) Direction {
	if m.IsOpening() {
		return Opening
	}
	return Closing
}
