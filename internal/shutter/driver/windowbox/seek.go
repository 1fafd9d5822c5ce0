package windowbox

import (
	"context"
	"time"

	"github.com/jkaflik/windowbox2mqtt/internal/blebox"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	DefaultTolerance    = 1
	DefaultPollInterval = 350 * time.Millisecond
	DefaultSettleDelay  = 150 * time.Millisecond
	DefaultMinTimeout   = 5 * time.Second

	// added to the calibrated travel time
	timeoutMargin = 5 * time.Second
)

type Device interface {
	WindowExtendedState(ctx context.Context) (*blebox.WindowState, error)
	SendMotorCommand(ctx context.Context, channel int, cmd blebox.Command) error
}

type Refresher interface {
	RequestRefresh()
}

type Outcome int

const (
	Failed Outcome = iota
	AlreadyAtTarget
	Converged
	TimedOut
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case AlreadyAtTarget:
		return "already at target"
	case Converged:
		return "converged"
	case TimedOut:
		return "timed out"
	case Cancelled:
		return "cancelled"
	}
	return "failed"
}

// Seeker emulates an absolute position move, which the firmware lacks: it
// starts the motor in the right direction, polls the device directly until the
// position is within tolerance of the target, then stops it. A seek is bounded
// by the calibrated travel time plus a margin.
//
// Seek must not run concurrently for the same channel; Cover serializes it.
type Seeker struct {
	Name    string
	Channel int

	Tolerance    int
	PollInterval time.Duration
	SettleDelay  time.Duration
	MinTimeout   time.Duration

	device    Device
	refresher Refresher

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewSeeker(name string, channel int, device Device, refresher Refresher) *Seeker {
	return &Seeker{
		Name:         name,
		Channel:      channel,
		Tolerance:    DefaultTolerance,
		PollInterval: DefaultPollInterval,
		SettleDelay:  DefaultSettleDelay,
		MinTimeout:   DefaultMinTimeout,
		device:       device,
		refresher:    refresher,
		now:          time.Now,
		sleep:        sleepContext,
	}
}

// Timeout is the seek budget for a direction.
func (s *Seeker) Timeout(cal blebox.Calibration, dir Direction) time.Duration {
	timeout := TravelTime(cal, dir) + timeoutMargin
	if timeout < s.MinTimeout {
		return s.MinTimeout
	}
	return timeout
}

// ToleranceFor is zero at both ends of the range so endpoints are hit exactly.
func (s *Seeker) ToleranceFor(target int) int {
	if target == 0 || target == 100 {
		return 0
	}
	return s.Tolerance
}

// Seek moves motor to target (0 open, 100 closed). motor is the last known
// state of the channel and is only used to decide direction and budget.
func (s *Seeker) Seek(ctx context.Context, motor blebox.Motor, target int) (Outcome, error) {
	target = clamp(target, 0, 100)
	tolerance := s.ToleranceFor(target)

	current := motor.CurrentPosition()
	if current != nil && abs(*current-target) <= tolerance {
		logrus.Debugf("%s: already on a position %d", s.Name, *current)
		return AlreadyAtTarget, nil
	}

	dir, cmd := Closing, blebox.CommandDown
	if current == nil || target < *current {
		dir, cmd = Opening, blebox.CommandUp
	}
	timeout := s.Timeout(motor.Calibration, dir)

	logrus.Infof("%s: seek to %d, %s (tolerance %d, timeout %s)", s.Name, target, dir, tolerance, timeout)
	if err := s.device.SendMotorCommand(ctx, s.Channel, cmd); err != nil {
		return Failed, errors.Wrapf(err, "%s: %s command failed", s.Name, dir)
	}

	start := s.now()
	for {
		if elapsed := s.now().Sub(start); elapsed > timeout {
			logrus.Warnf("%s: seek to %d timed out after %s", s.Name, target, elapsed)
			return TimedOut, s.halt(ctx, false)
		}

		if err := s.sleep(ctx, s.PollInterval); err != nil {
			logrus.Infof("%s: seek to %d cancelled", s.Name, target)
			if herr := s.halt(ctx, false); herr != nil {
				return Cancelled, herr
			}
			return Cancelled, err
		}

		state, err := s.device.WindowExtendedState(ctx)
		if err != nil {
			logrus.Debugf("%s: seek poll failed: %s", s.Name, err)
			continue
		}

		m, ok := state.Motor(s.Channel)
		if !ok {
			logrus.Debugf("%s: channel missing from state", s.Name)
			continue
		}

		pos := m.CurrentPosition()
		if pos == nil {
			continue
		}
		logrus.Tracef("%s: seek position %d", s.Name, *pos)

		if converged(dir, *pos, target, tolerance) {
			logrus.Infof("%s: reached position %d (target %d)", s.Name, *pos, target)
			return Converged, s.halt(ctx, true)
		}
	}
}

// halt stops the motor and asks for a state refresh. With settle, a second
// stop follows a short delay to catch mechanical coasting.
func (s *Seeker) halt(ctx context.Context, settle bool) error {
	ctx = context.WithoutCancel(ctx)

	err := s.device.SendMotorCommand(ctx, s.Channel, blebox.CommandStop)
	if settle {
		_ = s.sleep(ctx, s.SettleDelay)
		if serr := s.device.SendMotorCommand(ctx, s.Channel, blebox.CommandStop); err == nil {
			err = serr
		}
	}

	s.refresher.RequestRefresh()

	if err != nil {
		return errors.Wrapf(err, "%s: stop command failed", s.Name)
	}
	return nil
}

func converged(dir Direction, pos, target, tolerance int) bool {
	if dir == Opening {
		return pos <= target+tolerance
	}
	return pos >= target-tolerance
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
