package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/deusflow/MeterNews/internal/dedup"
)

var (
	ErrMissingDatabaseURL = errors.New("DATABASE_URL is required when SEEN_STORE=postgres")
	ErrMissingTelegram    = errors.New("TELEGRAM_TOKEN and TELEGRAM_CHAT_ID are required when DELIVERY=telegram")
)

// Seen-story memory backends.
const (
	SeenStoreNone     = "none"
	SeenStoreFile     = "file"
	SeenStorePostgres = "postgres"
)

// Delivery channels.
const (
	DeliveryWhatsApp = "whatsapp"
	DeliveryTelegram = "telegram"
	DeliveryStdout   = "stdout"
)

type Config struct {
	// Collection window
	DaysBack int

	// Provider credentials
	NewsAPIKey   string
	OpenAIAPIKey string
	OpenAIModel  string
	GeminiAPIKey string
	GeminiModel  string

	// AI budget per run (0 = unlimited)
	MaxAIRequests     int
	MaxGeminiRequests int
	MaxOpenAIRequests int

	// Queries, regions and extra feeds
	QueriesConfigPath string
	Queries           *Queries

	// Dedup tuning
	DedupHighThreshold  float64
	DedupLowThreshold   float64
	DedupBodyPrefix     int
	DedupTrackingParams []string
	DedupWorkers        int

	// Seen-story memory
	SeenStore    string // none | file | postgres
	SeenFilePath string
	DatabaseURL  string
	SeenTTLHours int

	// Digest
	MaxDigestItems    int
	ScrapeMaxArticles int
	ScrapeConcurrency int

	// Delivery
	Delivery             string // whatsapp | telegram | stdout
	TwilioAccountSID     string
	TwilioAuthToken      string
	TwilioWhatsAppNumber string
	WhatsAppRecipients   []string
	WhatsAppMaxChars     int
	TelegramToken        string
	TelegramChatID       string

	// App settings
	Debug                bool
	RequestTimeout       time.Duration
	RetryAttempts        int
	RetryDelay           time.Duration
	EnableHTTPMonitoring bool
	MonitoringPort       string
}

// Load reads .env when present, then the environment, then the queries file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from the process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		// Default values
		DaysBack:          2,
		OpenAIModel:       "gpt-4-turbo-preview",
		GeminiModel:       "gemini-2.0-flash",
		MaxAIRequests:     3,
		QueriesConfigPath: "configs/queries.yaml",
		SeenStore:         SeenStoreNone,
		SeenFilePath:      "sent_stories.json",
		SeenTTLHours:      72,
		MaxDigestItems:    25,
		ScrapeMaxArticles: 5,
		ScrapeConcurrency: 4,
		Delivery:          DeliveryWhatsApp,
		WhatsAppMaxChars:  1400,
		RequestTimeout:    30 * time.Second,
		RetryAttempts:     3,
		RetryDelay:        5 * time.Second,
		MonitoringPort:    "8080",
	}

	cfg.NewsAPIKey = os.Getenv("NEWSAPI_KEY")
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.OpenAIModel = getEnvOrDefault("OPENAI_MODEL", cfg.OpenAIModel)
	cfg.GeminiModel = getEnvOrDefault("GEMINI_MODEL", cfg.GeminiModel)

	cfg.DaysBack = getEnvIntOrDefault("DAYS_BACK", cfg.DaysBack)
	cfg.MaxAIRequests = getEnvIntOrDefault("MAX_AI_REQUESTS", cfg.MaxAIRequests)
	cfg.MaxGeminiRequests = getEnvIntOrDefault("MAX_GEMINI_REQUESTS", cfg.MaxGeminiRequests)
	cfg.MaxOpenAIRequests = getEnvIntOrDefault("MAX_OPENAI_REQUESTS", cfg.MaxOpenAIRequests)
	cfg.QueriesConfigPath = getEnvOrDefault("QUERIES_CONFIG_PATH", cfg.QueriesConfigPath)

	defaults := dedup.DefaultOptions()
	cfg.DedupHighThreshold = getEnvFloatOrDefault("DEDUP_HIGH_THRESHOLD", defaults.HighThreshold)
	cfg.DedupLowThreshold = getEnvFloatOrDefault("DEDUP_LOW_THRESHOLD", defaults.LowThreshold)
	cfg.DedupBodyPrefix = getEnvIntOrDefault("DEDUP_BODY_PREFIX", defaults.BodyPrefixRunes)
	cfg.DedupWorkers = getEnvIntOrDefault("DEDUP_WORKERS", 0)
	cfg.DedupTrackingParams = defaults.TrackingParams
	if v := os.Getenv("DEDUP_TRACKING_PARAMS"); v != "" {
		cfg.DedupTrackingParams = splitList(v)
	}

	cfg.SeenStore = strings.ToLower(getEnvOrDefault("SEEN_STORE", cfg.SeenStore))
	cfg.SeenFilePath = getEnvOrDefault("SEEN_FILE_PATH", cfg.SeenFilePath)
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.SeenTTLHours = getEnvIntOrDefault("SEEN_TTL_HOURS", cfg.SeenTTLHours)

	cfg.MaxDigestItems = getEnvIntOrDefault("MAX_DIGEST_ITEMS", cfg.MaxDigestItems)
	if v := os.Getenv("SCRAPE_MAX_ARTICLES"); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val >= 0 {
			cfg.ScrapeMaxArticles = val
		}
	}
	if v := os.Getenv("SCRAPE_CONCURRENCY"); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val > 0 {
			cfg.ScrapeConcurrency = val
		}
	}

	cfg.Delivery = strings.ToLower(getEnvOrDefault("DELIVERY", cfg.Delivery))
	cfg.TwilioAccountSID = strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID"))
	cfg.TwilioAuthToken = strings.TrimSpace(os.Getenv("TWILIO_AUTH_TOKEN"))
	cfg.TwilioWhatsAppNumber = strings.TrimSpace(os.Getenv("TWILIO_WHATSAPP_NUMBER"))
	cfg.WhatsAppRecipients = splitList(os.Getenv("WHATSAPP_PHONE_NUMBERS"))
	cfg.WhatsAppMaxChars = getEnvIntOrDefault("WHATSAPP_MAX_CHARS_PER_MSG", cfg.WhatsAppMaxChars)
	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	cfg.TelegramChatID = os.Getenv("TELEGRAM_CHAT_ID")

	if debug := os.Getenv("DEBUG"); debug == "true" {
		cfg.Debug = true
	}
	if v := os.Getenv("REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.RequestTimeout = d
		}
	}
	cfg.RetryAttempts = getEnvIntOrDefault("RETRY_ATTEMPTS", cfg.RetryAttempts)
	if v := os.Getenv("RETRY_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			cfg.RetryDelay = d
		}
	}
	cfg.EnableHTTPMonitoring = os.Getenv("ENABLE_HTTP_MONITORING") == "true"
	cfg.MonitoringPort = getEnvOrDefault("MONITORING_PORT", cfg.MonitoringPort)

	queries, err := LoadQueries(cfg.QueriesConfigPath)
	if err != nil {
		return nil, err
	}
	cfg.Queries = queries

	return cfg, cfg.Validate()
}

// DedupOptions maps the DEDUP_* settings onto engine options.
func (c *Config) DedupOptions() dedup.Options {
	return dedup.Options{
		HighThreshold:   c.DedupHighThreshold,
		LowThreshold:    c.DedupLowThreshold,
		BodyPrefixRunes: c.DedupBodyPrefix,
		TrackingParams:  c.DedupTrackingParams,
		Workers:         c.DedupWorkers,
	}
}

// SeenTTL is the retention window of the seen-story memory.
func (c *Config) SeenTTL() time.Duration {
	return time.Duration(c.SeenTTLHours) * time.Hour
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) Validate() error {
	if c.DaysBack < 1 {
		return fmt.Errorf("DAYS_BACK must be at least 1, got %d", c.DaysBack)
	}
	if err := c.DedupOptions().Validate(); err != nil {
		return fmt.Errorf("dedup settings: %w", err)
	}
	switch c.SeenStore {
	case SeenStoreNone, SeenStoreFile:
	case SeenStorePostgres:
		if c.DatabaseURL == "" {
			return ErrMissingDatabaseURL
		}
	default:
		return fmt.Errorf("SEEN_STORE must be 'none', 'file' or 'postgres', got %q", c.SeenStore)
	}
	if c.SeenTTLHours < 1 {
		return fmt.Errorf("SEEN_TTL_HOURS must be positive, got %d", c.SeenTTLHours)
	}
	switch c.Delivery {
	case DeliveryWhatsApp, DeliveryStdout:
	case DeliveryTelegram:
		if c.TelegramToken == "" || c.TelegramChatID == "" {
			return ErrMissingTelegram
		}
	default:
		return fmt.Errorf("DELIVERY must be 'whatsapp', 'telegram' or 'stdout', got %q", c.Delivery)
	}
	if c.WhatsAppMaxChars < 100 {
		return fmt.Errorf("WHATSAPP_MAX_CHARS_PER_MSG must be at least 100, got %d", c.WhatsAppMaxChars)
	}
	if c.MaxDigestItems < 1 {
		return fmt.Errorf("MAX_DIGEST_ITEMS must be positive, got %d", c.MaxDigestItems)
	}
	return nil
}
