package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/jkaflik/windowbox2mqtt/internal/shutter"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
)

type coverResponse struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Channel    int         `json:"channel"`
	State      *string     `json:"state"`
	Position   *int        `json:"position"`
	Available  bool        `json:"available"`
	Attributes interface{} `json:"attributes"`
}

type sensorResponse struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	DeviceClass string      `json:"device_class"`
	IsOn        *bool       `json:"is_on"`
	Available   bool        `json:"available"`
	Attributes  interface{} `json:"attributes"`
}

type positionRequest struct {
	Position *int `json:"position"`
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)

	api := e.Group("/api")
	api.GET("/covers", s.CoversHandler)
	api.GET("/covers/:channel", s.CoverHandler)
	api.PUT("/covers/:channel/position", s.CoverPositionHandler)
	api.POST("/covers/:channel/:command", s.CoverCommandHandler)
	api.GET("/sensors", s.SensorsHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	snap := s.health.Snapshot()
	if snap.Stale() {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	return c.String(http.StatusOK, "health_check: OK "+snap.UpdatedAt.Format(time.RFC3339))
}

func (s *Server) CoversHandler(c echo.Context) error {
	res := make([]coverResponse, 0, len(s.covers))
	for _, cover := range s.covers {
		res = append(res, newCoverResponse(cover))
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) CoverHandler(c echo.Context) error {
	cover, err := s.cover(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newCoverResponse(cover))
}

func (s *Server) CoverCommandHandler(c echo.Context) error {
	cover, err := s.cover(c)
	if err != nil {
		return err
	}

	if err := shutter.Run(s.ctx, cover, c.Param("command")); err != nil {
		var unsupported *shutter.UnsupportedCommandError
		if errors.As(err, &unsupported) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}

	return c.NoContent(http.StatusAccepted)
}

func (s *Server) CoverPositionHandler(c echo.Context) error {
	cover, err := s.cover(c)
	if err != nil {
		return err
	}

	var req positionRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if req.Position == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "position is required")
	}

	if err := cover.SetPosition(s.ctx, *req.Position); err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}

	return c.NoContent(http.StatusAccepted)
}

func (s *Server) SensorsHandler(c echo.Context) error {
	res := make([]sensorResponse, 0, len(s.sensors))
	for _, sensor := range s.sensors {
		res = append(res, sensorResponse{
			ID:          sensor.ID(),
			Name:        sensor.Name(),
			DeviceClass: sensor.DeviceClass(),
			IsOn:        sensor.IsOn(),
			Available:   sensor.Available(),
			Attributes:  sensor.Attributes(),
		})
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) cover(c echo.Context) (Cover, error) {
	channel, err := strconv.Atoi(c.Param("channel"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid channel")
	}

	for _, cover := range s.covers {
		if cover.Channel() == channel {
			return cover, nil
		}
	}

	return nil, echo.NewHTTPError(http.StatusNotFound, "unknown channel")
}

func newCoverResponse(cover Cover) coverResponse {
	res := coverResponse{
		ID:         cover.ID(),
		Name:       cover.Name(),
		Channel:    cover.Channel(),
		Position:   cover.Position(),
		Available:  cover.Available(),
		Attributes: cover.Attributes(),
	}
	if state := cover.State(); state != "" {
		res.State = &state
	}
	return res
}
