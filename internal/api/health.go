package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"
)

const readyTimeout = 5 * time.Second

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": s.config.AppName,
		"version": s.config.Version,
		"uptime":  time.Since(s.started).Round(time.Second).String(),
		"tools":   len(s.tools.List()),
	})
}

// ready runs every dependency check concurrently and reports 503 if any fails.
func (s *Server) ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readyTimeout)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]string, len(names))
	var g errgroup.Group
	for i, name := range names {
		i := i
		check := s.checks[name]
		g.Go(func() error {
			if err := check(ctx); err != nil {
				results[i] = err.Error()
				return err
			}
			results[i] = "ok"
			return nil
		})
	}
	err := g.Wait()

	checks := make(map[string]string, len(names))
	for i, name := range names {
		checks[name] = results[i]
	}

	status, state := http.StatusOK, "ready"
	if err != nil {
		status, state = http.StatusServiceUnavailable, "not ready"
	}
	return c.JSON(status, map[string]interface{}{
		"status": state,
		"checks": checks,
	})
}
