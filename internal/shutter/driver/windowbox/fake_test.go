package windowbox

import (
	"context"
	"sync"
	"time"

	"github.com/jkaflik/windowbox2mqtt/internal/blebox"
	"github.com/jkaflik/windowbox2mqtt/internal/poller"
)

// fakeDevice replays a scripted sequence of positions for one channel. raw,
// when set, is replayed instead of positions. Commands, fetches and seeker
// sleeps are recorded in order in log.
type fakeDevice struct {
	mu sync.Mutex

	channel   int
	positions []int
	raw       []blebox.Number
	fetchErr  error
	missing   bool
	fetches   int

	commands   []blebox.Command
	commandErr error

	log []string
}

func (d *fakeDevice) record(event string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.log = append(d.log, event)
}

func (d *fakeDevice) events() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]string(nil), d.log...)
}

func (d *fakeDevice) nextPosition() blebox.Number {
	if len(d.raw) > 0 {
		pos := d.raw[0]
		if len(d.raw) > 1 {
			d.raw = d.raw[1:]
		}
		return pos
	}

	if len(d.positions) > 0 {
		pos := blebox.NewNumber(float64(d.positions[0]))
		if len(d.positions) > 1 {
			d.positions = d.positions[1:]
		}
		return pos
	}

	return blebox.InvalidNumber()
}

func (d *fakeDevice) WindowExtendedState(_ context.Context) (*blebox.WindowState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.fetches++
	d.log = append(d.log, "fetch")
	if d.fetchErr != nil {
		return nil, d.fetchErr
	}
	if d.missing {
		return &blebox.WindowState{}, nil
	}

	pos := d.nextPosition()

	return &blebox.WindowState{Motors: []blebox.Motor{{
		ID:         blebox.NewNumber(float64(d.channel)),
		CurrentPos: blebox.PositionValue{Position: pos},
	}}}, nil
}

func (d *fakeDevice) SendMotorCommand(_ context.Context, channel int, cmd blebox.Command) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.commandErr != nil {
		return d.commandErr
	}
	d.commands = append(d.commands, cmd)
	d.log = append(d.log, "cmd:"+string(cmd))
	return nil
}

func (d *fakeDevice) sent() []blebox.Command {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]blebox.Command(nil), d.commands...)
}

type fakeRefresher struct {
	mu       sync.Mutex
	requests int
}

func (r *fakeRefresher) RequestRefresh() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.requests++
}

func (r *fakeRefresher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.requests
}

// fakeClock advances only when the code under test sleeps.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.t = c.t.Add(d)
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Advance(d)
	return nil
}

// fakeSource is a poller stand-in that counts refresh requests.
type fakeSource struct {
	fakeRefresher

	mu       sync.Mutex
	snap     poller.Snapshot
	handlers []poller.UpdateHandler
}

func (s *fakeSource) Snapshot() poller.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snap
}

func (s *fakeSource) OnUpdate(h poller.UpdateHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handlers = append(s.handlers, h)
}

func (s *fakeSource) publish(snap poller.Snapshot) {
	s.mu.Lock()
	s.snap = snap
	handlers := append([]poller.UpdateHandler(nil), s.handlers...)
	s.mu.Unlock()

	for _, h := range handlers {
		h(snap)
	}
}

func motorAt(channel int, state int, current, desired *int, upMs, downMs float64) blebox.Motor {
	m := blebox.Motor{
		ID:    blebox.NewNumber(float64(channel)),
		State: blebox.NewNumber(float64(state)),
		Calibration: blebox.Calibration{
			IsCalibrated:      true,
			MaxMoveTimeUpMs:   blebox.NewNumber(upMs),
			MaxMoveTimeDownMs: blebox.NewNumber(downMs),
		},
	}
	if current != nil {
		m.CurrentPos.Position = blebox.NewNumber(float64(*current))
	}
	if desired != nil {
		m.DesiredPos.Position = blebox.NewNumber(float64(*desired))
	}
	return m
}

func intPtr(v int) *int {
	return &v
}
