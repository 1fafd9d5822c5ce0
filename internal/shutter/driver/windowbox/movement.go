package windowbox

import (
	"time"

	"github.com/jkaflik/windowbox2mqtt/internal/blebox"
)

// Session describes one observed movement of a motor, whoever started it.
// StartedAt, StartPosition and FullTravelTime are fixed when the movement is
// first seen; Direction and Target follow the firmware.
type Session struct {
	StartedAt      time.Time
	StartPosition  *int
	Target         *int
	Direction      Direction
	FullTravelTime time.Duration
}

// Tracker keeps the movement session of one motor channel. It is not safe for
// concurrent use.
type Tracker struct {
	session *Session
}

// Update feeds the tracker with the latest state of its motor. A nil motor
// means the channel disappeared from the payload. It returns the active
// session, nil when the motor is not moving.
func (t *Tracker) Update(m *blebox.Motor, now time.Time) *Session {
	if m == nil || !m.IsMoving() {
		t.session = nil
		return nil
	}

	dir := directionOf(*m)

	if t.session == nil {
		t.session = &Session{
			StartedAt:      now,
			StartPosition:  m.CurrentPosition(),
			Target:         m.DesiredPosition(),
			Direction:      dir,
			FullTravelTime: TravelTime(m.Calibration, dir),
		}
		return t.Session()
	}

	t.session.Direction = dir
	t.session.Target = m.DesiredPosition()
	if t.session.FullTravelTime == 0 {
		t.session.FullTravelTime = TravelTime(m.Calibration, dir)
	}

	return t.Session()
}

// Session returns a copy of the active session or nil.
func (t *Tracker) Session() *Session {
	if t.session == nil {
		return nil
	}

	s := *t.session
	return &s
}
