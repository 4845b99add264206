// Package status serves the health and current readings of the agent.
package status

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/ktt-ol/sensorlux/internal/config"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
)

type generic map[string]interface{}

type Server struct {
	e      *echo.Echo
	addr   string
	latest *Latest
	conf   config.Config
}

// New returns a status server. conf is served redacted.
func New(addr string, conf config.Config, latest *Latest) *Server {
	s := &Server{
		e:      echo.New(),
		addr:   addr,
		latest: latest,
		conf:   conf.Redacted(),
	}
	s.e.HidePort = true
	s.e.HideBanner = true
	s.e.Use(middleware.Recover())
	s.e.Use(middleware.CORS())
	s.e.GET("/health", s.getHealth)
	s.e.GET("/api/readings", s.getReadings)
	s.e.GET("/api/config", s.getConfig)
	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler { return s.e }

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		log.Printf("info: status server listening on %s", s.addr)
		errc <- s.e.Start(s.addr)
	}()
	select {
	case err := <-errc:
		return errors.Wrap(err, "status server")
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.e.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "stopping status server")
	}
	return nil
}

func (s *Server) getHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (s *Server) getReadings(c echo.Context) error {
	return c.JSON(http.StatusOK, generic{
		"location":  s.conf.Location,
		"lastWrite": s.latest.LastWrite(),
		"readings":  s.latest.Readings(),
	})
}

func (s *Server) getConfig(c echo.Context) error {
	return c.JSON(http.StatusOK, s.conf)
}
