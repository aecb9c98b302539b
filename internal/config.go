package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Receipts      ReceiptsConfig      `mapstructure:"receipts"`
	OCR           OCRConfig           `mapstructure:"ocr"`
	Workflow      WorkflowConfig      `mapstructure:"workflow"`
	Listing       ListingConfig       `mapstructure:"listing"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Source          string        `mapstructure:"source"`
}

// ReceiptsConfig covers blob storage and signed download links.
type ReceiptsConfig struct {
	MongoURI       string        `mapstructure:"mongo_uri"`
	MongoDatabase  string        `mapstructure:"mongo_database"`
	Bucket         string        `mapstructure:"bucket"`
	SigningSecret  string        `mapstructure:"signing_secret"`
	URLTTL         time.Duration `mapstructure:"url_ttl"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
}

type OCRConfig struct {
	APIURL    string        `mapstructure:"api_url"`
	APIKey    string        `mapstructure:"api_key"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Workers   int           `mapstructure:"workers"`
	QueueSize int           `mapstructure:"queue_size"`
}

type WorkflowConfig struct {
	SearchDebounce      time.Duration `mapstructure:"search_debounce"`
	ConfidenceThreshold float64       `mapstructure:"confidence_threshold"`
	PrefillPolicy       string        `mapstructure:"prefill_policy"`
	DefaultCurrency     string        `mapstructure:"default_currency"`
	DefaultType         string        `mapstructure:"default_type"`
	DraftTTL            time.Duration `mapstructure:"draft_ttl"`
	SearchLimit         int           `mapstructure:"search_limit"`
}

type ListingConfig struct {
	DefaultPageSize int `mapstructure:"default_page_size"`
	MaxPageSize     int `mapstructure:"max_page_size"`
}

type ObservabilityConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
	OpenAPI OpenAPIConfig `mapstructure:"openapi"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type OpenAPIConfig struct {
	SpecPath         string `mapstructure:"spec_path"`
	ValidateRequests bool   `mapstructure:"validate_requests"`
}

// ApplyDefaults fills zero values left by a sparse config file.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Receipts.Bucket == "" {
		c.Receipts.Bucket = "receipts"
	}
	if c.Receipts.MongoDatabase == "" {
		c.Receipts.MongoDatabase = "fleet"
	}
	if c.Receipts.URLTTL == 0 {
		c.Receipts.URLTTL = 24 * time.Hour
	}
	if c.Receipts.MaxUploadBytes == 0 {
		c.Receipts.MaxUploadBytes = 10 << 20
	}
	if c.OCR.Timeout == 0 {
		c.OCR.Timeout = 15 * time.Second
	}
	if c.OCR.Workers == 0 {
		c.OCR.Workers = 4
	}
	if c.OCR.QueueSize == 0 {
		c.OCR.QueueSize = 32
	}
	if c.Workflow.SearchDebounce == 0 {
		c.Workflow.SearchDebounce = 300 * time.Millisecond
	}
	if c.Workflow.ConfidenceThreshold == 0 {
		c.Workflow.ConfidenceThreshold = 0.5
	}
	if c.Workflow.PrefillPolicy == "" {
		c.Workflow.PrefillPolicy = "overwrite"
	}
	if c.Workflow.DefaultCurrency == "" {
		c.Workflow.DefaultCurrency = "EUR"
	}
	if c.Workflow.DefaultType == "" {
		c.Workflow.DefaultType = "MISC"
	}
	if c.Workflow.DraftTTL == 0 {
		c.Workflow.DraftTTL = 30 * time.Minute
	}
	if c.Workflow.SearchLimit == 0 {
		c.Workflow.SearchLimit = 20
	}
	if c.Listing.DefaultPageSize == 0 {
		c.Listing.DefaultPageSize = 10
	}
	if c.Listing.MaxPageSize == 0 {
		c.Listing.MaxPageSize = 100
	}
	if c.Observability.Metrics.Path == "" {
		c.Observability.Metrics.Path = "/metrics"
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
	if c.Observability.Logging.Format == "" {
		c.Observability.Logging.Format = "json"
	}
	if c.Observability.OpenAPI.SpecPath == "" {
		c.Observability.OpenAPI.SpecPath = "api/openapi.yml"
	}
}

// LoadConfigFromEnv builds the config for container deployments where no
// config.yml is mounted.
func LoadConfigFromEnv() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:              getEnvAsInt("PORT", 8080),
			BaseURL:           getEnv("BASE_URL", ""),
			AllowedOrigins:    getEnv("ALLOWED_ORIGINS", "*"),
			ReadHeaderTimeout: getEnvAsDuration("READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("READ_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("IDLE_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvAsDuration("WRITE_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			Source:          getEnv("DATABASE_URL", ""),
		},
		Receipts: ReceiptsConfig{
			MongoURI:       getEnv("MONGO_URI", "mongodb://localhost:27017"),
			MongoDatabase:  getEnv("MONGO_DATABASE", "fleet"),
			Bucket:         getEnv("RECEIPTS_BUCKET", "receipts"),
			SigningSecret:  getEnv("RECEIPTS_SIGNING_SECRET", ""),
			URLTTL:         getEnvAsDuration("RECEIPTS_URL_TTL", 24*time.Hour),
			MaxUploadBytes: int64(getEnvAsInt("RECEIPTS_MAX_UPLOAD_BYTES", 10<<20)),
		},
		OCR: OCRConfig{
			APIURL:    getEnv("OCR_API_URL", ""),
			APIKey:    getEnv("OCR_API_KEY", ""),
			Timeout:   getEnvAsDuration("OCR_TIMEOUT", 15*time.Second),
			Workers:   getEnvAsInt("OCR_WORKERS", 4),
			QueueSize: getEnvAsInt("OCR_QUEUE_SIZE", 32),
		},
		Workflow: WorkflowConfig{
			SearchDebounce:      getEnvAsDuration("WORKFLOW_SEARCH_DEBOUNCE", 300*time.Millisecond),
			ConfidenceThreshold: getEnvAsFloat("WORKFLOW_CONFIDENCE_THRESHOLD", 0.5),
			PrefillPolicy:       getEnv("WORKFLOW_PREFILL_POLICY", "overwrite"),
			DefaultCurrency:     getEnv("WORKFLOW_DEFAULT_CURRENCY", "EUR"),
			DefaultType:         getEnv("WORKFLOW_DEFAULT_TYPE", "MISC"),
			DraftTTL:            getEnvAsDuration("WORKFLOW_DRAFT_TTL", 30*time.Minute),
			SearchLimit:         getEnvAsInt("WORKFLOW_SEARCH_LIMIT", 20),
		},
		Listing: ListingConfig{
			DefaultPageSize: getEnvAsInt("LISTING_DEFAULT_PAGE_SIZE", 10),
			MaxPageSize:     getEnvAsInt("LISTING_MAX_PAGE_SIZE", 100),
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: getEnv("METRICS_ENABLED", "true") == "true",
				Path:    getEnv("METRICS_PATH", "/metrics"),
			},
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
			OpenAPI: OpenAPIConfig{
				SpecPath:         getEnv("OPENAPI_SPEC_PATH", "api/openapi.yml"),
				ValidateRequests: getEnv("OPENAPI_VALIDATE_REQUESTS", "false") == "true",
			},
		},
	}
	return cfg
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Receipts.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("receipts config: %v", err))
	}

	if err := c.OCR.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("ocr config: %v", err))
	}

	if err := c.Workflow.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("workflow config: %v", err))
	}

	if err := c.Listing.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("listing config: %v", err))
	}

	if err := c.Observability.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("logging config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *ReceiptsConfig) Validate() error {
	if len(c.SigningSecret) < 32 {
		return errors.New("signing_secret must be at least 32 characters")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("max_upload_bytes must be positive")
	}
	if c.URLTTL <= 0 {
		return errors.New("url_ttl must be positive")
	}
	return nil
}

func (c *OCRConfig) Validate() error {
	if c.APIURL != "" {
		if _, err := url.ParseRequestURI(c.APIURL); err != nil {
			return fmt.Errorf("invalid api_url: %w", err)
		}
	}
	if c.Workers < 1 {
		return errors.New("workers must be >= 1")
	}
	if c.QueueSize < 1 {
		return errors.New("queue_size must be >= 1")
	}
	return nil
}

func (c *WorkflowConfig) Validate() error {
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return errors.New("confidence_threshold must be within [0, 1]")
	}
	switch c.PrefillPolicy {
	case "overwrite", "untouched":
	default:
		return fmt.Errorf("unknown prefill_policy %q", c.PrefillPolicy)
	}
	if len(c.DefaultCurrency) != 3 {
		return errors.New("default_currency must be a 3-letter code")
	}
	switch c.DefaultType {
	case "FUEL", "MISC":
	default:
		return fmt.Errorf("unknown default_type %q", c.DefaultType)
	}
	return nil
}

func (c *ListingConfig) Validate() error {
	if c.DefaultPageSize < 1 {
		return errors.New("default_page_size must be >= 1")
	}
	if c.MaxPageSize < c.DefaultPageSize {
		return errors.New("max_page_size must be >= default_page_size")
	}
	return nil
}

func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Level)
	}
	switch c.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log format %q", c.Format)
	}
	return nil
}
