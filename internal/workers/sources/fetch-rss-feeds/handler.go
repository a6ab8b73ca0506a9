package fetchrssfeeds

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"newsletter-agent/internal/common/camunda"
	apperrors "newsletter-agent/internal/common/errors"
	httpclient "newsletter-agent/internal/common/http"
	"newsletter-agent/internal/common/logger"
	"newsletter-agent/internal/common/topics"
	"newsletter-agent/internal/models"
	"newsletter-agent/internal/tools"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"
)

const TaskType = "fetch-rss-feeds"

var (
	ErrFeedUnavailable = errors.New("RSS_FEED_UNAVAILABLE")
	ErrFeedMalformed   = errors.New("RSS_FEED_MALFORMED")
)

var feedHeaders = map[string]string{
	"Accept": "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8",
}

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

// Execute reads the configured feed of every requested topic.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

func (h *Handler) Tool() tools.Tool {
	return tools.Typed(tools.FetchRSSFeeds, h.Execute)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	limit := input.MaxItems
	if limit <= 0 {
		limit = h.config.MaxItemsPerFeed
	}

	var statuses []FeedStatus
	for _, topic := range topics.Normalize(input.Topics) {
		if feedURL, ok := h.config.Feeds[topic]; ok {
			statuses = append(statuses, FeedStatus{Topic: topic, URL: feedURL})
		}
	}

	out := &Output{Source: models.SourceRSS, Records: []models.Record{}, Feeds: statuses}
	if len(statuses) == 0 {
		h.logger.Debug("no feeds configured for topics", map[string]interface{}{"topics": input.Topics})
		return out, nil
	}

	perFeed := make([][]models.Record, len(statuses))
	errs := make([]error, len(statuses))

	// One feed failing must not cancel its siblings, so the group carries no context.
	var g errgroup.Group
	for i := range statuses {
		i := i
		g.Go(func() error {
			records, err := h.fetchFeed(ctx, statuses[i].Topic, statuses[i].URL, limit)
			perFeed[i], errs[i] = records, err
			return nil
		})
	}
	_ = g.Wait()

	var lastErr error
	for i := range statuses {
		if errs[i] != nil {
			statuses[i].Error = errs[i].Error()
			lastErr = errs[i]
			h.logger.Warn("feed fetch failed", map[string]interface{}{
				"topic": statuses[i].Topic,
				"url":   statuses[i].URL,
				"error": errs[i].Error(),
			})
			continue
		}
		statuses[i].Items = len(perFeed[i])
		out.Records = append(out.Records, perFeed[i]...)
	}

	if len(out.Records) == 0 && lastErr != nil {
		retryable := httpclient.IsRetryable(lastErr) && !errors.Is(lastErr, ErrFeedMalformed)
		return nil, apperrors.NewSourceUnavailableError(models.SourceRSS, lastErr, retryable)
	}

	h.logger.Info("feeds fetched", map[string]interface{}{
		"feeds":   len(statuses),
		"records": len(out.Records),
	})
	return out, nil
}

func (h *Handler) fetchFeed(ctx context.Context, topic, feedURL string, limit int) ([]models.Record, error) {
	body, err := h.client.GetBytes(ctx, feedURL, feedHeaders)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFeedUnavailable, topic, err)
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFeedMalformed, topic, err)
	}

	publisher := "RSS - " + topic
	records := make([]models.Record, 0, limit)
	for _, item := range feed.Items {
		if len(records) == limit {
			break
		}
		title := strings.TrimSpace(item.Title)
		link := strings.TrimSpace(item.Link)
		if title == "" || link == "" {
			continue
		}

		record := models.Record{
			ID:        models.RecordID(models.SourceRSS, link, title),
			Title:     title,
			Source:    models.SourceRSS,
			Publisher: publisher,
			URL:       link,
			Summary:   stripMarkup(item.Description),
			Topics:    []string{topic},
		}
		if item.PublishedParsed != nil {
			ts := item.PublishedParsed.UTC()
			record.PublishedAt = &ts
		} else if item.UpdatedParsed != nil {
			ts := item.UpdatedParsed.UTC()
			record.PublishedAt = &ts
		}
		records = append(records, record)
	}
	return records, nil
}

// stripMarkup drops tags from feed descriptions, which are frequently HTML.
func stripMarkup(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch {
		case r == '<':
			depth++
		case r == '>' && depth > 0:
			depth--
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
