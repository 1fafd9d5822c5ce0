// Package poller keeps the latest device snapshot and fans it out to listeners.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/jkaflik/windowbox2mqtt/internal/blebox"
	"github.com/sirupsen/logrus"
)

const DefaultInterval = 5 * time.Second

type Fetcher interface {
	WindowExtendedState(ctx context.Context) (*blebox.WindowState, error)
}

// Snapshot is a value; State is shared and must not be modified.
type Snapshot struct {
	State     *blebox.WindowState
	UpdatedAt time.Time
	// Err is the last fetch failure. When set, State is stale.
	Err error
}

func (s Snapshot) Stale() bool {
	return s.Err != nil || s.State == nil
}

type UpdateHandler func(snap Snapshot)

type Poller struct {
	fetcher  Fetcher
	interval time.Duration
	now      func() time.Time

	mu       sync.RWMutex
	snap     Snapshot
	handlers []UpdateHandler

	refresh chan struct{}
}

func New(fetcher Fetcher, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Poller{
		fetcher:  fetcher,
		interval: interval,
		now:      time.Now,
		refresh:  make(chan struct{}, 1),
	}
}

func (p *Poller) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.snap
}

// OnUpdate registers h. Handlers run on the polling goroutine after every fetch.
func (p *Poller) OnUpdate(h UpdateHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.handlers = append(p.handlers, h)
}

// RequestRefresh asks Run for an early fetch. Requests coalesce and never block.
func (p *Poller) RequestRefresh() {
	select {
	case p.refresh <- struct{}{}:
	default:
	}
}

// Refresh fetches once and notifies listeners. A failed fetch keeps the previous
// state and marks the snapshot stale.
func (p *Poller) Refresh(ctx context.Context) error {
	state, err := p.fetcher.WindowExtendedState(ctx)

	p.mu.Lock()
	if err != nil {
		logrus.Warnf("poller: update failed: %s", err)
		p.snap.Err = err
	} else {
		p.snap = Snapshot{State: state, UpdatedAt: p.now()}
	}
	snap := p.snap
	handlers := append([]UpdateHandler(nil), p.handlers...)
	p.mu.Unlock()

	for _, h := range handlers {
		h(snap)
	}

	return err
}

// Run polls until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	logrus.Debugf("poller: started, interval %s", p.interval)

	for {
		select {
		case <-ctx.Done():
			logrus.Debug("poller: exit")
			return
		case <-ticker.C:
		case <-p.refresh:
			logrus.Trace("poller: refresh requested")
		}

		p.Refresh(ctx)
	}
}
