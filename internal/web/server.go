package web

import (
	"context"
	"net/http"
	"time"

	"github.com/jkaflik/windowbox2mqtt/internal/poller"
	"github.com/jkaflik/windowbox2mqtt/internal/sensor"
	"github.com/jkaflik/windowbox2mqtt/internal/shutter"
)

type Config struct {
	Listen  string
	HTTPLog bool
}

// Cover is a shutter addressed by its device channel.
type Cover interface {
	shutter.Shutter
	Channel() int
}

type Health interface {
	Snapshot() poller.Snapshot
}

type Server struct {
	// ctx outlives single requests so that seeks started over HTTP keep running.
	ctx     context.Context
	httpLog bool
	health  Health
	covers  []Cover
	sensors []sensor.Binary
}

func NewServer(ctx context.Context, cfg Config, health Health, covers []Cover, sensors []sensor.Binary) *http.Server {
	s := &Server{
		ctx:     ctx,
		httpLog: cfg.HTTPLog,
		health:  health,
		covers:  covers,
		sensors: sensors,
	}

	return &http.Server{
		Addr:         cfg.Listen,
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}
