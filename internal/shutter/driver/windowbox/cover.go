package windowbox

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jkaflik/windowbox2mqtt/internal/blebox"
	"github.com/jkaflik/windowbox2mqtt/internal/poller"
	"github.com/jkaflik/windowbox2mqtt/internal/shutter"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	fullOpenPosition  = 0
	fullClosePosition = 100
)

// Source is the shared, periodically refreshed device state.
type Source interface {
	Snapshot() poller.Snapshot
	OnUpdate(h poller.UpdateHandler)
	RequestRefresh()
}

// Cover is one motor channel of a smartWindowBox.
type Cover struct {
	id         string
	namePrefix string
	channel    int

	device Device
	source Source
	seeker *Seeker
	now    func() time.Time

	mu            sync.RWMutex
	motor         blebox.Motor
	present       bool
	available     bool
	tracker       Tracker
	updateHandler shutter.ShutterUpdateHandler

	// channelLock serializes commands and seeks on this channel.
	channelLock sync.Mutex

	contextLock          sync.Mutex
	cancelCurrentContext context.CancelFunc
}

// NewCover binds a channel to the shared state. deviceID makes the cover id
// unique, namePrefix is prepended to the motor name when set.
func NewCover(deviceID, namePrefix string, channel int, device Device, source Source) *Cover {
	c := &Cover{
		id:         fmt.Sprintf("%s_motor_%d", deviceID, channel),
		namePrefix: namePrefix,
		channel:    channel,
		device:     device,
		source:     source,
		now:        time.Now,
	}
	c.seeker = NewSeeker(c.id, channel, device, source)

	c.applySnapshot(source.Snapshot())
	c.seeker.Name = c.Name()
	source.OnUpdate(c.handleSnapshot)

	return c
}

func (c *Cover) ID() string {
	return c.id
}

func (c *Cover) Channel() int {
	return c.channel
}

func (c *Cover) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	base := c.motor.Name
	if !c.present || base == "" {
		base = fmt.Sprintf("Motor %d", c.channel)
	}
	if c.namePrefix != "" {
		return c.namePrefix + " " + base
	}
	return base
}

func (c *Cover) FullOpenPosition() int {
	return fullOpenPosition
}

func (c *Cover) FullClosePosition() int {
	return fullClosePosition
}

// Motor returns the last known state of the channel.
func (c *Cover) Motor() (blebox.Motor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.motor, c.present
}

func (c *Cover) Position() *int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.present {
		return nil
	}
	return c.motor.CurrentPosition()
}

// State is opening/closing while moving, otherwise closed at 100 and open
// anywhere else. Empty when the position is unknown.
func (c *Cover) State() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.state()
}

func (c *Cover) state() string {
	if !c.present {
		return ""
	}

	switch {
	case c.motor.IsOpening():
		return shutter.ShutterOpeningState
	case c.motor.IsClosing():
		return shutter.ShutterClosingState
	}

	pos := c.motor.CurrentPosition()
	if pos == nil {
		return ""
	}
	if *pos >= fullClosePosition {
		return shutter.ShutterClosedState
	}
	return shutter.ShutterOpenState
}

func (c *Cover) Available() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.available
}

// Session returns the movement currently observed, nil when idle.
func (c *Cover) Session() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.tracker.Session()
}

func (c *Cover) OnUpdate(h shutter.ShutterUpdateHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.updateHandler = h
}

func (c *Cover) handleSnapshot(snap poller.Snapshot) {
	c.applySnapshot(snap)

	c.mu.RLock()
	h := c.updateHandler
	u := shutter.Update{State: c.state(), Available: c.available}
	if c.present {
		u.Position = c.motor.CurrentPosition()
	}
	c.mu.RUnlock()

	if h != nil {
		h(u)
	}
}

func (c *Cover) applySnapshot(snap poller.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if snap.Err != nil || snap.State == nil {
		c.available = false
		return
	}

	m, ok := snap.State.Motor(c.channel)
	c.motor, c.present, c.available = m, ok, ok

	if ok {
		c.tracker.Update(&m, c.now())
	} else {
		c.tracker.Update(nil, c.now())
	}
}

func (c *Cover) retainContext(parent context.Context) (ctx context.Context) {
	c.contextLock.Lock()
	defer c.contextLock.Unlock()

	if c.cancelCurrentContext != nil {
		logrus.Debugf("%s: found previous operation context, cancel", c.seeker.Name)
		c.cancelCurrentContext()
	}

	ctx, c.cancelCurrentContext = context.WithCancel(parent)
	return ctx
}

func (c *Cover) Open(ctx context.Context) error {
	logrus.Infof("%s: open", c.Name())
	return c.command(c.retainContext(ctx), blebox.CommandUp)
}

func (c *Cover) Close(ctx context.Context) error {
	logrus.Infof("%s: close", c.Name())
	return c.command(c.retainContext(ctx), blebox.CommandDown)
}

func (c *Cover) Stop(ctx context.Context) error {
	logrus.Infof("%s: stop", c.Name())
	return c.command(c.retainContext(ctx), blebox.CommandStop)
}

func (c *Cover) Favorite(ctx context.Context) error {
	logrus.Infof("%s: favorite", c.Name())
	return c.command(c.retainContext(ctx), blebox.CommandFavorite)
}

func (c *Cover) NextStep(ctx context.Context) error {
	logrus.Infof("%s: next step", c.Name())
	return c.command(c.retainContext(ctx), blebox.CommandNext)
}

// SetPosition starts a seek in the background and returns. A later command on
// the same cover cancels it.
func (c *Cover) SetPosition(ctx context.Context, position int) error {
	logrus.Infof("%s: set position to %d", c.Name(), position)

	if _, ok := c.Motor(); !ok {
		return errors.Errorf("%s: channel %d is not reported by the device", c.Name(), c.channel)
	}
	ctx = c.retainContext(ctx)

	go func() {
		outcome, err := c.Seek(ctx, position)
		if err != nil && outcome != Cancelled {
			logrus.Errorf("%s: set position %d: %s", c.Name(), position, err)
			return
		}
		logrus.Infof("%s: set position %d %s", c.Name(), position, outcome)
	}()

	return nil
}

// Seek runs a position seek synchronously.
func (c *Cover) Seek(ctx context.Context, position int) (Outcome, error) {
	c.channelLock.Lock()
	defer c.channelLock.Unlock()

	if err := ctx.Err(); err != nil {
		return Cancelled, err
	}

	motor, ok := c.Motor()
	if !ok {
		return Failed, errors.Errorf("%s: channel %d is not reported by the device", c.Name(), c.channel)
	}

	return c.seeker.Seek(ctx, motor, position)
}

func (c *Cover) command(ctx context.Context, cmd blebox.Command) error {
	c.channelLock.Lock()
	defer c.channelLock.Unlock()

	if err := c.device.SendMotorCommand(ctx, c.channel, cmd); err != nil {
		return errors.Wrapf(err, "%s: command %s failed", c.Name(), cmd)
	}
	c.source.RequestRefresh()

	return nil
}

// Attributes is the diagnostics bundle published next to the cover state.
type Attributes struct {
	Enabled           interface{}   `json:"enabled"`
	MotorState        blebox.Number `json:"motor_state"`
	CurrentPosition   *int          `json:"current_position"`
	DesiredPosition   *int          `json:"desired_position"`
	FavoritePosition  *int          `json:"favorite_position"`
	AtFavorite        *bool         `json:"at_favorite"`
	ControlType       interface{}   `json:"control_type"`
	IconSet           interface{}   `json:"icon_set"`
	IsCalibrated      interface{}   `json:"is_calibrated"`
	MaxMoveTimeUpMs   blebox.Number `json:"max_move_time_up_ms"`
	MaxMoveTimeDownMs blebox.Number `json:"max_move_time_down_ms"`

	Moving              bool     `json:"moving"`
	MoveDirection       *string  `json:"move_direction"`
	MoveTargetPosition  *int     `json:"move_target_position"`
	MoveStartPosition   *int     `json:"move_start_position"`
	MoveElapsedS        *float64 `json:"move_elapsed_s"`
	EstimatedTotalS     *float64 `json:"estimated_total_s"`
	EstimatedRemainingS *float64 `json:"estimated_remaining_s"`
	MoveProgressPct     *int     `json:"move_progress_pct"`
}

func (c *Cover) Attributes() interface{} {
	return c.Diagnostics()
}

func (c *Cover) Diagnostics() Attributes {
	c.mu.RLock()
	m := c.motor
	session := c.tracker.Session()
	c.mu.RUnlock()

	current := m.CurrentPosition()
	favorite := m.FavoritePosition()

	a := Attributes{
		Enabled:           m.Enabled,
		MotorState:        m.State,
		CurrentPosition:   current,
		DesiredPosition:   m.DesiredPosition(),
		FavoritePosition:  favorite,
		ControlType:       m.ControlType,
		IconSet:           m.IconSet,
		IsCalibrated:      m.Calibration.IsCalibrated,
		MaxMoveTimeUpMs:   m.Calibration.MaxMoveTimeUpMs,
		MaxMoveTimeDownMs: m.Calibration.MaxMoveTimeDownMs,
	}

	if current != nil && favorite != nil {
		at := *current == *favorite
		a.AtFavorite = &at
	}

	if session != nil {
		dir := string(session.Direction)
		a.Moving = true
		a.MoveDirection = &dir
		a.MoveTargetPosition = session.Target
		a.MoveStartPosition = session.StartPosition

		p := Estimate(session, current, c.now())
		a.MoveElapsedS = seconds(p.Elapsed)
		a.EstimatedTotalS = seconds(p.EstimatedTotal)
		a.EstimatedRemainingS = seconds(p.EstimatedRemaining)
		a.MoveProgressPct = p.ProgressPct
	}

	return a
}

func seconds(d *time.Duration) *float64 {
	if d == nil {
		return nil
	}
	s := math.Round(d.Seconds()*100) / 100
	return &s
}
