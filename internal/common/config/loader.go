package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultTopicKeywords expands a subscriber topic into the words searched for in
// upstream queries and relevance scoring.
var DefaultTopicKeywords = map[string][]string{
	"technology":    {"tech", "software", "AI", "artificial intelligence", "startup", "innovation"},
	"business":      {"business", "company", "corporate", "market", "economy"},
	"finance":       {"finance", "stocks", "investment", "trading", "market"},
	"politics":      {"politics", "government", "policy", "election"},
	"science":       {"science", "research", "study", "discovery"},
	"health":        {"health", "medical", "medicine", "healthcare"},
	"sports":        {"sports", "football", "basketball", "baseball", "soccer"},
	"entertainment": {"entertainment", "movie", "music", "celebrity"},
}

// DefaultVocabulary is the ordered trend vocabulary. Order breaks count ties.
var DefaultVocabulary = []string{
	"technology", "business", "finance", "politics", "science", "health", "sports", "entertainment",
}

var DefaultTrendKeywords = []string{
	"AI", "artificial intelligence", "startup", "market", "economy", "innovation",
}

var DefaultFeeds = map[string]string{
	"technology": "https://feeds.feedburner.com/TechCrunch",
	"business":   "https://feeds.feedburner.com/businessinsider",
	"science":    "https://rss.sciencedaily.com/all.xml",
	"health":     "https://www.medicalnewstoday.com/rss.xml",
}

// Load reads configs/config.yaml, merges configs/config.<APP_ENVIRONMENT>.yaml on
// top, expands ${VAR} placeholders and applies env overrides and defaults.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // overlay is optional

	return build(v)
}

// LoadFromFile reads a single config file without the environment overlay.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return build(v)
}

func build(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	candidates := []string{".env", "../.env", "../../.env", "../../../.env"}
	if root := findProjectRoot(); root != "" {
		candidates = append(candidates, filepath.Join(root, ".env"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok || !strings.Contains(strVal, "$") {
			continue
		}
		if expanded := os.ExpandEnv(strVal); expanded != strVal {
			v.Set(key, expanded)
		}
	}
}

// overrideEmptyConfig fills secrets from the conventional env names when the
// config file leaves them empty.
func overrideEmptyConfig(cfg *Config) {
	setIfEmpty(&cfg.Sources.NewsAPI.APIKey, "NEWS_API_KEY")
	setIfEmpty(&cfg.Sources.Stocks.APIKey, "ALPHA_VANTAGE_API_KEY")
	setIfEmpty(&cfg.LLM.APIKey, "LLM_API_KEY")
	setIfEmpty(&cfg.LLM.APIKey, "OPENAI_API_KEY")
	setIfEmpty(&cfg.Database.Postgres.User, "DB_USER")
	setIfEmpty(&cfg.Database.Postgres.Password, "DB_PASSWORD")
	setIfEmpty(&cfg.Delivery.SMTP.Username, "SMTP_USERNAME")
	setIfEmpty(&cfg.Delivery.SMTP.Password, "SMTP_PASSWORD")
	setIfEmpty(&cfg.Delivery.AWS.SNS.AlertTopicARN, "ALERT_TOPIC_ARN")
}

func setIfEmpty(dst *string, envKey string) {
	if *dst != "" {
		return
	}
	if val := os.Getenv(envKey); val != "" {
		*dst = val
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "newsletter-agent"
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30000
	}

	// Camunda
	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	// Databases
	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Postgres.MigrationsPath == "" {
		cfg.Database.Postgres.MigrationsPath = "file://migrations"
	}
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}
	if len(cfg.Database.Elasticsearch.Addresses) == 0 && cfg.Database.Elasticsearch.URL != "" {
		cfg.Database.Elasticsearch.Addresses = []string{cfg.Database.Elasticsearch.URL}
	}
	if cfg.Database.Elasticsearch.ArchiveIndex == "" {
		cfg.Database.Elasticsearch.ArchiveIndex = "newsletters"
	}

	// Sources
	if cfg.Sources.NewsAPI.BaseURL == "" {
		cfg.Sources.NewsAPI.BaseURL = "https://newsapi.org"
	}
	if cfg.Sources.NewsAPI.PageSize == 0 {
		cfg.Sources.NewsAPI.PageSize = 20
	}
	if cfg.Sources.Stocks.BaseURL == "" {
		cfg.Sources.Stocks.BaseURL = "https://www.alphavantage.co"
	}
	if len(cfg.Sources.Stocks.Symbols) == 0 {
		cfg.Sources.Stocks.Symbols = []string{"AAPL", "GOOGL", "MSFT"}
	}
	if cfg.Sources.Stocks.ItemsPerSymbol == 0 {
		cfg.Sources.Stocks.ItemsPerSymbol = 2
	}
	if len(cfg.Sources.RSS.Feeds) == 0 {
		cfg.Sources.RSS.Feeds = DefaultFeeds
	}
	if cfg.Sources.RSS.MaxItemsPerFeed == 0 {
		cfg.Sources.RSS.MaxItemsPerFeed = 5
	}
	if cfg.Sources.HackerNews.BaseURL == "" {
		cfg.Sources.HackerNews.BaseURL = "https://hn.algolia.com"
	}
	if cfg.Sources.HackerNews.HitsPerTopic == 0 {
		cfg.Sources.HackerNews.HitsPerTopic = 10
	}
	if cfg.Sources.Weather.GeocodingURL == "" {
		cfg.Sources.Weather.GeocodingURL = "https://geocoding-api.open-meteo.com"
	}
	if cfg.Sources.Weather.ForecastURL == "" {
		cfg.Sources.Weather.ForecastURL = "https://api.open-meteo.com"
	}
	if cfg.Sources.Weather.DefaultLocation == "" {
		cfg.Sources.Weather.DefaultLocation = "New York"
	}
	if len(cfg.Sources.Topics) == 0 {
		cfg.Sources.Topics = DefaultTopicKeywords
	}
	for _, timeout := range []*int{
		&cfg.Sources.NewsAPI.Timeout,
		&cfg.Sources.Stocks.Timeout,
		&cfg.Sources.RSS.Timeout,
		&cfg.Sources.HackerNews.Timeout,
		&cfg.Sources.Weather.Timeout,
	} {
		if *timeout == 0 {
			*timeout = 10000
		}
	}

	// LLM
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 800
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.4
	}
	if cfg.LLM.MaxRecords == 0 {
		cfg.LLM.MaxRecords = 12
	}
	if cfg.LLM.MaxBodyChars == 0 {
		cfg.LLM.MaxBodyChars = 400
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 60000
	}

	// Pipeline
	if cfg.Pipeline.FetcherTimeout == 0 {
		cfg.Pipeline.FetcherTimeout = 15000
	}
	if cfg.Pipeline.FetcherRetries == 0 {
		cfg.Pipeline.FetcherRetries = 1
	}
	if cfg.Pipeline.MaxRecords == 0 {
		cfg.Pipeline.MaxRecords = 20
	}
	if len(cfg.Pipeline.Vocabulary) == 0 {
		cfg.Pipeline.Vocabulary = DefaultVocabulary
	}
	if len(cfg.Pipeline.Keywords) == 0 {
		cfg.Pipeline.Keywords = DefaultTrendKeywords
	}
	if len(cfg.Pipeline.DefaultSources) == 0 {
		cfg.Pipeline.DefaultSources = []string{"auto"}
	}
	if len(cfg.Pipeline.DefaultTopics) == 0 {
		cfg.Pipeline.DefaultTopics = []string{"technology"}
	}
	if cfg.Pipeline.DefaultFormat == "" {
		cfg.Pipeline.DefaultFormat = "both"
	}
	if cfg.Pipeline.TopStories == 0 {
		cfg.Pipeline.TopStories = 8
	}

	if cfg.Tools.CatalogPath == "" {
		cfg.Tools.CatalogPath = "configs/tool-registry.json"
	}

	// Delivery
	if cfg.Delivery.Provider == "" {
		cfg.Delivery.Provider = "ses"
	}
	if cfg.Delivery.FromName == "" {
		cfg.Delivery.FromName = "Newsletter Agent"
	}
	if cfg.Delivery.Timeout == 0 {
		cfg.Delivery.Timeout = 15000
	}
	if cfg.Delivery.AWS.Region == "" {
		cfg.Delivery.AWS.Region = "us-east-1"
	}
	if cfg.Delivery.SMTP.Port == 0 {
		cfg.Delivery.SMTP.Port = 587
	}

	if cfg.Scheduler.Cron == "" {
		cfg.Scheduler.Cron = "0 9 * * *"
	}
	if cfg.Scheduler.LockTTL == 0 {
		cfg.Scheduler.LockTTL = 600000
	}
	if cfg.Scheduler.BatchSize == 0 {
		cfg.Scheduler.BatchSize = 4
	}
	if cfg.Scheduler.Timezone == "" {
		cfg.Scheduler.Timezone = "UTC"
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = cfg.App.Name
	}

	// Logging
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	// Workers
	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Camunda.Enabled && cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required when camunda.enabled is set")
	}

	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}

	if cfg.Database.Elasticsearch.GetURL() == "" {
		return fmt.Errorf("database.elasticsearch.addresses or url is required")
	}

	if cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}

	switch cfg.Delivery.Provider {
	case "ses", "smtp":
	default:
		return fmt.Errorf("delivery.provider must be ses or smtp, got %q", cfg.Delivery.Provider)
	}
	if cfg.Delivery.Provider == "smtp" && cfg.Delivery.SMTP.Host == "" {
		return fmt.Errorf("delivery.smtp.host is required for the smtp provider")
	}

	if cfg.Pipeline.DefaultFormat == "text" {
		cfg.Pipeline.DefaultFormat = "plain-text"
	}
	switch cfg.Pipeline.DefaultFormat {
	case "html", "plain-text", "both":
	default:
		return fmt.Errorf("pipeline.default_format must be html, plain-text or both, got %q", cfg.Pipeline.DefaultFormat)
	}

	return nil
}

func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig returns the named worker's settings or enabled defaults.
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
