package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"newsletter-agent/internal/common/validation"
	"newsletter-agent/internal/models"
	"newsletter-agent/internal/newsletter"
	"newsletter-agent/internal/pipeline"

	"github.com/labstack/echo/v4"
)

const (
	defaultSearchSize = 10
	maxSearchSize     = 50
)

type runResponse struct {
	Success  bool                    `json:"success"`
	RunID    string                  `json:"runId"`
	Status   string                  `json:"status"`
	Draft    *models.NewsletterDraft `json:"draft,omitempty"`
	Trends   *models.TrendSummary    `json:"trends,omitempty"`
	Sources  []pipeline.SourceStatus `json:"sources,omitempty"`
	Delivery *models.Delivery        `json:"delivery,omitempty"`
}

func newRunResponse(run *pipeline.Run) runResponse {
	return runResponse{
		Success: true,
		RunID:   run.ID,
		Status:  run.Status(),
		Draft:   run.Draft,
		Trends:  run.Trends,
		Sources: run.Sources,
	}
}

// bindGenerate decodes a generation request. An empty user_email is allowed
// only when requireEmail is false.
func (s *Server) bindGenerate(c echo.Context, requireEmail bool) (newsletter.GenerateRequest, error) {
	var req newsletter.GenerateRequest
	if err := c.Bind(&req); err != nil {
		return req, badRequest("body must be a JSON object")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if (requireEmail || req.Email != "") && !validation.ValidateEmail(req.Email) {
		return req, badRequest("user_email: invalid address")
	}
	if src := strings.ToLower(strings.TrimSpace(req.NewsSource)); src != "" && len(req.Sources) == 0 {
		req.Sources = []string{src}
	}
	req.NewsSource = ""
	req.Format = models.NormalizeFormat(req.Format)
	if req.Format != "" && !models.ValidFormat(req.Format) {
		return req, badRequest("format: must be one of html, plain-text, both")
	}
	return req, nil
}

// generateAndSend generates a newsletter for one subscriber and mails it.
func (s *Server) generateAndSend(c echo.Context) error {
	req, err := s.bindGenerate(c, true)
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(c, s.config.RequestTimeout)
	defer cancel()

	run, delivery, err := s.newsletters.Deliver(ctx, req)
	if err != nil {
		return runError(c, run, err)
	}
	resp := newRunResponse(run)
	resp.Delivery = delivery
	return c.JSON(http.StatusOK, resp)
}

// generateContent returns the draft without sending it.
func (s *Server) generateContent(c echo.Context) error {
	req, err := s.bindGenerate(c, false)
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(c, s.config.RequestTimeout)
	defer cancel()

	run, err := s.newsletters.Generate(ctx, req)
	if err != nil {
		return runError(c, run, err)
	}
	return c.JSON(http.StatusOK, newRunResponse(run))
}

// sendToActive runs a delivery batch for every active subscriber. The batch
// outlives a disconnected client.
func (s *Server) sendToActive(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), s.config.BatchTimeout)
	defer cancel()

	report, err := s.newsletters.SendToActive(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": report.Failed == 0,
		"report":  report,
	})
}

type testEmailRequest struct {
	Email string `json:"email"`
}

func (s *Server) testEmail(c echo.Context) error {
	var req testEmailRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("body must be a JSON object")
	}
	to := strings.TrimSpace(req.Email)
	if !validation.ValidateEmail(to) {
		return badRequest("email: invalid address")
	}

	ctx, cancel := withTimeout(c, s.config.RequestTimeout)
	defer cancel()

	delivery, err := s.newsletters.SendTest(ctx, to)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":  true,
		"delivery": delivery,
	})
}

func (s *Server) stats(c echo.Context) error {
	stats, err := s.newsletters.Stats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) search(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	email := strings.ToLower(strings.TrimSpace(c.QueryParam("email")))

	size := defaultSearchSize
	if raw := c.QueryParam("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return badRequest("size: must be a positive integer")
		}
		size = min(n, maxSearchSize)
	}

	hits, err := s.newsletters.Search(c.Request().Context(), q, email, size)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"query": q,
		"count": len(hits),
		"hits":  hits,
	})
}
