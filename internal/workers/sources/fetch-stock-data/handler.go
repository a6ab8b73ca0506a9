package fetchstockdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"newsletter-agent/internal/common/camunda"
	apperrors "newsletter-agent/internal/common/errors"
	httpclient "newsletter-agent/internal/common/http"
	"newsletter-agent/internal/common/logger"
	"newsletter-agent/internal/models"
	"newsletter-agent/internal/tools"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "fetch-stock-data"

	avTimeLayout = "20060102T150405"
)

var (
	ErrAPIKeyMissing  = errors.New("ALPHAVANTAGE_KEY_MISSING")
	ErrUpstreamFailed = errors.New("ALPHAVANTAGE_UPSTREAM_FAILED")
	ErrRateLimited    = errors.New("ALPHAVANTAGE_RATE_LIMITED")
	ErrRejected       = errors.New("ALPHAVANTAGE_REQUEST_REJECTED")
)

type Handler struct {
	config *Config
	client *httpclient.Client
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		client: httpclient.NewClient(config.Timeout),
		logger: log.With(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	started := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		camunda.FailJob(client, job, apperrors.NewInvalidParametersError(TaskType, []string{err.Error()}), started, h.logger)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		camunda.FailJob(client, job, err, started, h.logger)
		return
	}

	camunda.CompleteJob(client, job, output, started, h.logger)
}

// Execute fetches the latest market news for each ticker symbol.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

func (h *Handler) Tool() tools.Tool {
	return tools.Typed(tools.FetchStockData, h.Execute)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if h.config.APIKey == "" {
		return nil, apperrors.NewSourceUnavailableError(models.SourceStocks, ErrAPIKeyMissing, false)
	}

	symbols := normalizeSymbols(input.Symbols)
	if len(symbols) == 0 {
		symbols = h.config.Symbols
	}

	out := &Output{Source: models.SourceStocks, Symbols: symbols, Records: []models.Record{}}
	var lastErr error

	// Symbols are fetched one after another; the free tier rejects bursts.
	for _, symbol := range symbols {
		records, err := h.fetchSymbol(ctx, symbol)
		if err != nil {
			h.logger.Warn("symbol fetch failed", map[string]interface{}{"symbol": symbol, "error": err.Error()})
			out.Failed = append(out.Failed, symbol)
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		out.Records = append(out.Records, records...)
	}

	if len(out.Records) == 0 && lastErr != nil {
		retryable := httpclient.IsRetryable(lastErr) && !errors.Is(lastErr, ErrRejected)
		return nil, apperrors.NewSourceUnavailableError(models.SourceStocks, lastErr, retryable)
	}

	h.logger.Info("market news fetched", map[string]interface{}{
		"symbols": len(symbols),
		"records": len(out.Records),
		"failed":  len(out.Failed),
	})
	return out, nil
}

func (h *Handler) fetchSymbol(ctx context.Context, symbol string) ([]models.Record, error) {
	params := url.Values{}
	params.Set("function", "NEWS_SENTIMENT")
	params.Set("tickers", symbol)
	params.Set("sort", "LATEST")
	params.Set("limit", fmt.Sprintf("%d", h.config.ItemsPerSymbol*5))
	params.Set("apikey", h.config.APIKey)
	endpoint := strings.TrimRight(h.config.BaseURL, "/") + "/query?" + params.Encode()

	var resp avResponse
	if err := h.client.GetJSON(ctx, endpoint, nil, &resp); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUpstreamFailed, symbol, err)
	}
	if resp.Note != "" || resp.Information != "" {
		return nil, fmt.Errorf("%w: %s", ErrRateLimited, firstNonEmpty(resp.Note, resp.Information))
	}
	if resp.ErrorMessage != "" {
		return nil, fmt.Errorf("%w: %s: %s", ErrRejected, symbol, resp.ErrorMessage)
	}

	records := make([]models.Record, 0, h.config.ItemsPerSymbol)
	for _, item := range resp.Feed {
		if len(records) == h.config.ItemsPerSymbol {
			break
		}
		title := strings.TrimSpace(item.Title)
		link := strings.TrimSpace(item.URL)
		if title == "" || link == "" {
			continue
		}

		record := models.Record{
			ID:        models.RecordID(models.SourceStocks, link, title),
			Title:     title,
			Source:    models.SourceStocks,
			Publisher: fmt.Sprintf("%s - %s", firstNonEmpty(item.Source, "Alpha Vantage"), symbol),
			URL:       link,
			Summary:   strings.TrimSpace(item.Summary),
			Topics:    []string{"finance"},
		}
		if ts, err := time.Parse(avTimeLayout, item.TimePublished); err == nil {
			record.PublishedAt = &ts
		}
		records = append(records, record)
	}
	return records, nil
}

func normalizeSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]bool{}
	for _, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
