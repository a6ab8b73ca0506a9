// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Server        ServerConfig            `mapstructure:"server"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Sources       SourcesConfig           `mapstructure:"sources"`
	LLM           LLMConfig               `mapstructure:"llm"`
	Pipeline      PipelineConfig          `mapstructure:"pipeline"`
	Tools         ToolsConfig             `mapstructure:"tools"`
	Delivery      DeliveryConfig          `mapstructure:"delivery"`
	Scheduler     SchedulerConfig         `mapstructure:"scheduler"`
	Observability ObservabilityConfig     `mapstructure:"observability"`
	Logging       LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
	MigrationsPath string `mapstructure:"migrations_path"`
}

func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// GetURL is the URL form golang-migrate expects.
func (p PostgresConfig) GetURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses    []string `mapstructure:"addresses"`
	Username     string   `mapstructure:"username"`
	Password     string   `mapstructure:"password"`
	URL          string   `mapstructure:"url"`
	ArchiveIndex string   `mapstructure:"archive_index"`
}

func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

// --- News sources ---

type SourcesConfig struct {
	NewsAPI    NewsAPIConfig       `mapstructure:"newsapi"`
	Stocks     StocksConfig        `mapstructure:"stocks"`
	RSS        RSSConfig           `mapstructure:"rss"`
	HackerNews HackerNewsConfig    `mapstructure:"hackernews"`
	Weather    WeatherConfig       `mapstructure:"weather"`
	Topics     map[string][]string `mapstructure:"topic_keywords"`
}

type NewsAPIConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	APIKey   string `mapstructure:"api_key"`
	PageSize int    `mapstructure:"page_size"`
	Timeout  int    `mapstructure:"timeout"` // milliseconds
}

type StocksConfig struct {
	BaseURL        string   `mapstructure:"base_url"`
	APIKey         string   `mapstructure:"api_key"`
	Symbols        []string `mapstructure:"symbols"`
	ItemsPerSymbol int      `mapstructure:"items_per_symbol"`
	Timeout        int      `mapstructure:"timeout"` // milliseconds
}

type RSSConfig struct {
	Feeds           map[string]string `mapstructure:"feeds"` // topic -> feed URL
	MaxItemsPerFeed int               `mapstructure:"max_items_per_feed"`
	Timeout         int               `mapstructure:"timeout"` // milliseconds
}

type HackerNewsConfig struct {
	BaseURL      string `mapstructure:"base_url"`
	HitsPerTopic int    `mapstructure:"hits_per_topic"`
	Timeout      int    `mapstructure:"timeout"` // milliseconds
}

type WeatherConfig struct {
	GeocodingURL    string `mapstructure:"geocoding_url"`
	ForecastURL     string `mapstructure:"forecast_url"`
	DefaultLocation string `mapstructure:"default_location"`
	Timeout         int    `mapstructure:"timeout"` // milliseconds
}

// --- Generation ---

type LLMConfig struct {
	BaseURL      string  `mapstructure:"base_url"`
	APIKey       string  `mapstructure:"api_key"`
	Model        string  `mapstructure:"model"`
	MaxTokens    int     `mapstructure:"max_tokens"`
	Temperature  float64 `mapstructure:"temperature"`
	MaxRecords   int     `mapstructure:"max_records"`
	MaxBodyChars int     `mapstructure:"max_body_chars"`
	Timeout      int     `mapstructure:"timeout"` // milliseconds
}

type PipelineConfig struct {
	FetcherTimeout int      `mapstructure:"fetcher_timeout"` // milliseconds
	FetcherRetries int      `mapstructure:"fetcher_retries"`
	MaxRecords     int      `mapstructure:"max_records"`
	Vocabulary     []string `mapstructure:"vocabulary"`
	Keywords       []string `mapstructure:"keywords"`
	DefaultSources []string `mapstructure:"default_sources"`
	DefaultTopics  []string `mapstructure:"default_topics"`
	DefaultFormat  string   `mapstructure:"default_format"`
	TopStories     int      `mapstructure:"top_stories"`
}

type ToolsConfig struct {
	CatalogPath string `mapstructure:"catalog_path"`
	CacheTTL    int    `mapstructure:"cache_ttl"` // milliseconds, 0 disables caching
}

// --- Delivery ---

type DeliveryConfig struct {
	Provider  string `mapstructure:"provider"` // ses | smtp
	FromEmail string `mapstructure:"from_email"`
	FromName  string `mapstructure:"from_name"`
	Timeout   int    `mapstructure:"timeout"` // milliseconds

	AWS struct {
		Region string `mapstructure:"region"`
		SES    struct {
			Enabled bool `mapstructure:"enabled"`
		} `mapstructure:"ses"`
		SNS struct {
			Enabled       bool   `mapstructure:"enabled"`
			AlertTopicARN string `mapstructure:"alert_topic_arn"`
		} `mapstructure:"sns"`
	} `mapstructure:"aws"`

	SMTP struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		UseTLS   bool   `mapstructure:"use_tls"`
	} `mapstructure:"smtp"`
}

type SchedulerConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Cron      string `mapstructure:"cron"`
	LockTTL   int    `mapstructure:"lock_ttl"` // milliseconds
	BatchSize int    `mapstructure:"batch_size"`
	// PerSubscriber sends only to subscribers whose delivery_time matches the
	// slot instead of to every active subscriber.
	PerSubscriber bool   `mapstructure:"per_subscriber"`
	Timezone      string `mapstructure:"timezone"`
}

type ObservabilityConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
