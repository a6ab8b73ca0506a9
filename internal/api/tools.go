package api

import (
	"net/http"
	"strings"

	"newsletter-agent/internal/tools"

	"github.com/labstack/echo/v4"
)

type testToolRequest struct {
	ToolName   string                 `json:"tool_name"`
	Parameters map[string]interface{} `json:"parameters"`
}

func (s *Server) listTools(c echo.Context) error {
	list := s.tools.List()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"tools": list,
		"count": len(list),
	})
}

// testTool dispatches one tool. Tool failures are reported in the envelope
// with a 200; only a malformed request is an HTTP error.
func (s *Server) testTool(c echo.Context) error {
	var req testToolRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("body must be a JSON object")
	}
	name := strings.TrimSpace(req.ToolName)
	if name == "" {
		return badRequest("tool_name: required")
	}

	ctx, cancel := withTimeout(c, s.config.RequestTimeout)
	defer cancel()

	result := s.tools.Execute(ctx, name, req.Parameters)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"tool":   name,
		"result": result,
	})
}

// demo fetches news for the requested topics and runs trend analysis over it.
func (s *Server) demo(c echo.Context) error {
	var topics []string
	for _, t := range strings.Split(c.QueryParam("topics"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	if len(topics) == 0 {
		topics = []string{"technology", "ai"}
	}

	ctx, cancel := withTimeout(c, s.config.RequestTimeout)
	defer cancel()

	news := s.tools.Execute(ctx, string(tools.FetchNews), map[string]interface{}{"topics": topics})
	resp := map[string]interface{}{
		"topics": topics,
		"news":   news,
	}
	if !news.Success {
		return c.JSON(http.StatusOK, resp)
	}

	records, _ := news.Data["records"].([]interface{})
	resp["trends"] = s.tools.Execute(ctx, string(tools.AnalyzeTrends), map[string]interface{}{
		"records": records,
	})
	return c.JSON(http.StatusOK, resp)
}
