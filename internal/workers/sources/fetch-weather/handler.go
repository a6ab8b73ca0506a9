package fetchweather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"newsletter-agent/internal/common/camunda"
	apperrors "newsletter-agent/internal/common/errors"
	httpclient "newsletter-agent/internal/common/http"
	"newsletter-agent/internal/common/logger"
	"newsletter-agent/internal/tools"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "fetch-weather"

	sourceName        = "weather"
	currentTimeLayout = "2006-01-02T15:04"
)

var (
	ErrLocationNotFound = errors.New("WEATHER_LOCATION_NOT_FOUND")
	ErrGeocodingFailed  = errors.New("WEATHER_GEOCODING_FAILED")
	ErrForecastFailed   = errors.New("WEATHER_FORECAST_FAILED")
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

// Execute resolves the location and reads its current conditions.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

func (h *Handler) Tool() tools.Tool {
	return tools.Typed(tools.FetchWeather, h.Execute)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	location := strings.TrimSpace(input.Location)
	if location == "" {
		location = h.config.DefaultLocation
	}

	out, err := h.geocode(ctx, location)
	if err != nil {
		return nil, apperrors.NewSourceUnavailableError(sourceName, err, httpclient.IsRetryable(err) && !errors.Is(err, ErrLocationNotFound))
	}

	if err := h.current(ctx, out); err != nil {
		return nil, apperrors.NewSourceUnavailableError(sourceName, err, httpclient.IsRetryable(err))
	}

	h.logger.Info("weather fetched", map[string]interface{}{
		"location":   out.Location,
		"conditions": out.Conditions,
	})
	return out, nil
}

func (h *Handler) geocode(ctx context.Context, location string) (*Output, error) {
	params := url.Values{}
	params.Set("name", location)
	params.Set("count", "1")
	params.Set("language", "en")
	params.Set("format", "json")
	endpoint := strings.TrimRight(h.config.GeocodingURL, "/") + "/v1/search?" + params.Encode()

	var resp geocodingResponse
	if err := h.client.GetJSON(ctx, endpoint, nil, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeocodingFailed, err)
	}
	if len(resp.Results) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrLocationNotFound, location)
	}

	place := resp.Results[0]
	return &Output{
		Location:  place.Name,
		Country:   place.Country,
		Latitude:  place.Latitude,
		Longitude: place.Longitude,
	}, nil
}

func (h *Handler) current(ctx context.Context, out *Output) error {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(out.Latitude, 'f', 4, 64))
	params.Set("longitude", strconv.FormatFloat(out.Longitude, 'f', 4, 64))
	params.Set("current", "temperature_2m,wind_speed_10m,weather_code")
	params.Set("timezone", "UTC")
	endpoint := strings.TrimRight(h.config.ForecastURL, "/") + "/v1/forecast?" + params.Encode()

	var resp forecastResponse
	if err := h.client.GetJSON(ctx, endpoint, nil, &resp); err != nil {
		return fmt.Errorf("%w: %w", ErrForecastFailed, err)
	}

	out.TemperatureC = resp.Current.Temperature2m
	out.WindSpeedKmh = resp.Current.WindSpeed10m
	out.WeatherCode = resp.Current.WeatherCode
	out.Conditions = describe(resp.Current.WeatherCode)
	if ts, err := time.Parse(currentTimeLayout, resp.Current.Time); err == nil {
		out.ObservedAt = &ts
	}
	return nil
}
