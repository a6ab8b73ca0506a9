package api

import (
	"errors"
	"fmt"
	"net/http"

	apperrors "newsletter-agent/internal/common/errors"
	"newsletter-agent/internal/pipeline"

	"github.com/labstack/echo/v4"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Error   string `json:"error"`
	Stage   string `json:"stage,omitempty"`
	Status  string `json:"status,omitempty"`
	RunID   string `json:"runId,omitempty"`
}

var codeStatus = map[apperrors.ErrorCode]int{
	apperrors.ErrCodeInvalidParameters:     http.StatusBadRequest,
	apperrors.ErrCodeUserNotFound:          http.StatusNotFound,
	apperrors.ErrCodeToolNotFound:          http.StatusNotFound,
	"RESOURCE_NOT_FOUND":                   http.StatusNotFound,
	apperrors.ErrCodeSourceUnavailable:     http.StatusBadGateway,
	apperrors.ErrCodeAggregationEmpty:      http.StatusBadGateway,
	apperrors.ErrCodeGenerationUnavailable: http.StatusBadGateway,
	apperrors.ErrCodeDeliveryFailed:        http.StatusBadGateway,
	"EXTERNAL_SERVICE_ERROR":               http.StatusBadGateway,
	apperrors.ErrCodeRunCancelled:          http.StatusServiceUnavailable,
	"TIMEOUT_ERROR":                        http.StatusGatewayTimeout,
}

// statusFor maps a taxonomy code to an HTTP status. Unlisted codes are 500.
func statusFor(code apperrors.ErrorCode) int {
	if status, ok := codeStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code := "HTTP_ERROR"
		if he.Code == http.StatusNotFound {
			code = "ROUTE_NOT_FOUND"
		}
		_ = c.JSON(he.Code, errorResponse{Code: code, Error: fmt.Sprint(he.Message)})
		return
	}

	resp := errorResponse{}
	var se *pipeline.StageError
	if errors.As(err, &se) {
		resp.Code = se.Code
		resp.Error = se.Message
		resp.Stage = string(se.Stage)
		resp.Status = fmt.Sprintf("%s(%s)", pipeline.StateFailed, se.Stage)
	} else {
		stdErr := apperrors.AsStandardError(err)
		resp.Code = string(stdErr.Code)
		resp.Error = stdErr.Describe()
	}

	status := statusFor(apperrors.ErrorCode(resp.Code))
	if status >= http.StatusInternalServerError {
		s.logger.Error("request error", map[string]interface{}{
			"path":  c.Path(),
			"code":  resp.Code,
			"error": err.Error(),
		})
	}
	_ = c.JSON(status, resp)
}

// runError attaches the run id to a pipeline failure so clients can find the
// log entry.
func runError(c echo.Context, run *pipeline.Run, err error) error {
	var se *pipeline.StageError
	if run == nil || !errors.As(err, &se) {
		return err
	}
	return c.JSON(statusFor(apperrors.ErrorCode(se.Code)), errorResponse{
		Code:   se.Code,
		Error:  se.Message,
		Stage:  string(se.Stage),
		Status: run.Status(),
		RunID:  run.ID,
	})
}

func badRequest(problems ...string) error {
	return apperrors.NewInvalidRequestError(problems)
}
