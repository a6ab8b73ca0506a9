package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"newsletter-agent/internal/common/validation"
	"newsletter-agent/internal/models"

	"github.com/labstack/echo/v4"
)

type registerRequest struct {
	Email        string   `json:"email"`
	Name         string   `json:"name"`
	Topics       []string `json:"topics"`
	NewsSources  []string `json:"news_sources"`
	DeliveryTime string   `json:"delivery_time"`
	OutputFormat string   `json:"output_format"`
}

type registerResponse struct {
	Success bool         `json:"success"`
	Created bool         `json:"created"`
	Message string       `json:"message"`
	User    *models.User `json:"user"`
}

// register validates the raw payload against the subscriber schema before
// binding it, so schema messages reach the client unchanged.
func (s *Server) register(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return badRequest(err.Error())
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return badRequest("body must be a JSON object")
	}
	result, err := validation.ValidateSubscriber(payload)
	if err != nil {
		return err
	}
	if !result.Valid {
		return badRequest(result.GetErrorMessages()...)
	}

	var req registerRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return badRequest(err.Error())
	}
	if !validation.ValidateEmail(req.Email) {
		return badRequest("email: invalid address")
	}
	topics := validation.NormalizeTopics(req.Topics)
	if len(topics) == 0 {
		return badRequest("topics: at least one non-blank topic is required")
	}

	user := &models.User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Name:         strings.TrimSpace(req.Name),
		Topics:       topics,
		NewsSources:  req.NewsSources,
		DeliveryTime: req.DeliveryTime,
		OutputFormat: models.NormalizeFormat(req.OutputFormat),
		IsActive:     true,
	}

	ctx, cancel := withTimeout(c, s.config.RequestTimeout)
	defer cancel()

	created, err := s.newsletters.Register(ctx, user)
	if err != nil {
		return err
	}

	status, message := http.StatusOK, "subscription updated"
	if created {
		status, message = http.StatusCreated, "subscribed"
	}
	return c.JSON(status, registerResponse{Success: true, Created: created, Message: message, User: user})
}

func (s *Server) listUsers(c echo.Context) error {
	activeOnly := c.QueryParam("all") != "true"

	users, err := s.newsletters.Users(c.Request().Context(), activeOnly)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"users": users,
		"count": len(users),
	})
}

func (s *Server) unsubscribe(c echo.Context) error {
	email, err := emailParam(c)
	if err != nil {
		return err
	}
	if err := s.newsletters.Unsubscribe(c.Request().Context(), email); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "unsubscribed " + email,
	})
}

func (s *Server) history(c echo.Context) error {
	email, err := emailParam(c)
	if err != nil {
		return err
	}
	logs, err := s.newsletters.History(c.Request().Context(), email)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"email":       email,
		"newsletters": logs,
	})
}

func emailParam(c echo.Context) (string, error) {
	raw, err := url.PathUnescape(c.Param("email"))
	if err != nil {
		return "", badRequest("email: " + err.Error())
	}
	email := strings.ToLower(strings.TrimSpace(raw))
	if !validation.ValidateEmail(email) {
		return "", badRequest("email: invalid address")
	}
	return email, nil
}
