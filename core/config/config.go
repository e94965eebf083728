package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration in a structured way.
type Config struct {
	App        AppConfig
	Paths      PathsConfig
	Database   DatabaseConfig
	Scheduler  SchedulerConfig
	WorkerPool WorkerPoolConfig
	Social     SocialConfig
	Notify     NotifyConfig
	AI         AIConfig
}

type AppConfig struct {
	Version            string
	Port               string
	Debug              bool
	Environment        string
	BasicAuth          []string
	BasePath           string
	TrustedProxies     []string
	CorsAllowedOrigins []string
	ServerID           string
}

type PathsConfig struct {
	BaseDir  string
	Storages string
}

type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            int
	User            string
	Password        string
	Name            string // File path for SQLite, DB Name for Postgres
	ValkeyEnabled   bool
	ValkeyAddress   string
	ValkeyPassword  string
	ValkeyDB        int
	ValkeyKeyPrefix string
}

type SchedulerConfig struct {
	// Lookahead is the window FindDue scans for due instances.
	Lookahead time.Duration
	// HorizonDays / HorizonCount are the default materialization policy
	// applied when a post does not carry its own.
	HorizonDays    int
	HorizonCount   int
	PublishTimeout time.Duration
	ReminderWindow time.Duration
	// HorizonCron / AnalyticsCron are robfig/cron specs for the fixed
	// cadence maintenance jobs.
	HorizonCron        string
	AnalyticsCron      string
	AnalyticsThreshold float64
}

type WorkerPoolConfig struct {
	Size      int
	QueueSize int
}

type SocialConfig struct {
	// StubMode skips the real platform HTTP calls and records a synthetic
	// post ID. Used for local development and tests.
	StubMode       bool
	RequestTimeout time.Duration

	TwitterToken   string
	TwitterAPIBase string

	LinkedInToken     string
	LinkedInAuthorURN string
	LinkedInAPIBase   string

	FacebookToken   string
	FacebookPageID  string
	FacebookAPIBase string

	InstagramToken      string
	InstagramBusinessID string
	InstagramAPIBase    string
}

type NotifyConfig struct {
	WebhookURLs   []string
	WebhookSecret string
}

type AIConfig struct {
	GeminiAPIKey string
	Model        string
}

// Global provides access to the loaded configuration globally.
var Global *Config

// LoadConfig loads configuration from a .env file (if present) and
// environment variables, falling back to defaults.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		App: AppConfig{
			Version:            getEnv("APP_VERSION", "dev"),
			Port:               getEnv("APP_PORT", "3000"),
			Debug:              getEnvBool("APP_DEBUG", false),
			Environment:        getEnv("APP_ENV", "production"),
			BasicAuth:          splitNonEmpty(getEnv("APP_BASIC_AUTH", "")),
			BasePath:           getEnv("APP_BASE_PATH", ""),
			TrustedProxies:     splitNonEmpty(getEnv("APP_TRUSTED_PROXIES", "")),
			CorsAllowedOrigins: splitNonEmpty(getEnv("APP_CORS_ALLOWED_ORIGINS", "")),
			ServerID:           getEnv("APP_SERVER_ID", ""),
		},
		Paths: PathsConfig{
			BaseDir:  getEnv("APP_BASE_DIR", "storages"),
			Storages: getEnv("APP_STORAGES_DIR", "storages"),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "sqlite"),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postpilot"),
			Password:        getEnv("DB_PASSWORD", ""),
			Name:            getEnv("DB_NAME", "storages/postpilot.db"),
			ValkeyEnabled:   getEnvBool("VALKEY_ENABLED", false),
			ValkeyAddress:   getEnv("VALKEY_ADDRESS", "localhost:6379"),
			ValkeyPassword:  getEnv("VALKEY_PASSWORD", ""),
			ValkeyDB:        getEnvInt("VALKEY_DB", 0),
			ValkeyKeyPrefix: getEnv("VALKEY_KEY_PREFIX", "postpilot"),
		},
		Scheduler: SchedulerConfig{
			Lookahead:          getEnvDuration("SCHEDULER_LOOKAHEAD", 5*time.Minute),
			HorizonDays:        getEnvInt("SCHEDULER_HORIZON_DAYS", 90),
			HorizonCount:       getEnvInt("SCHEDULER_HORIZON_COUNT", 10),
			PublishTimeout:     getEnvDuration("SCHEDULER_PUBLISH_TIMEOUT", 30*time.Second),
			ReminderWindow:     getEnvDuration("SCHEDULER_REMINDER_WINDOW", time.Hour),
			HorizonCron:        getEnv("SCHEDULER_HORIZON_CRON", "@every 1h"),
			AnalyticsCron:      getEnv("SCHEDULER_ANALYTICS_CRON", "@every 15m"),
			AnalyticsThreshold: getEnvFloat("SCHEDULER_ANALYTICS_THRESHOLD", 20.0),
		},
		WorkerPool: WorkerPoolConfig{
			Size:      getEnvInt("PUBLISH_WORKERS", 10),
			QueueSize: getEnvInt("PUBLISH_QUEUE_SIZE", 500),
		},
		Social: SocialConfig{
			StubMode:       getEnvBool("SOCIAL_STUB_MODE", false),
			RequestTimeout: getEnvDuration("SOCIAL_REQUEST_TIMEOUT", 20*time.Second),

			TwitterToken:   getEnv("TWITTER_BEARER_TOKEN", ""),
			TwitterAPIBase: getEnv("TWITTER_API_BASE", "https://api.twitter.com"),

			LinkedInToken:     getEnv("LINKEDIN_ACCESS_TOKEN", ""),
			LinkedInAuthorURN: getEnv("LINKEDIN_AUTHOR_URN", ""),
			LinkedInAPIBase:   getEnv("LINKEDIN_API_BASE", "https://api.linkedin.com"),

			FacebookToken:   getEnv("FACEBOOK_ACCESS_TOKEN", ""),
			FacebookPageID:  getEnv("FACEBOOK_PAGE_ID", ""),
			FacebookAPIBase: getEnv("FACEBOOK_API_BASE", "https://graph.facebook.com/v19.0"),

			InstagramToken:      getEnv("INSTAGRAM_ACCESS_TOKEN", ""),
			InstagramBusinessID: getEnv("INSTAGRAM_BUSINESS_ID", ""),
			InstagramAPIBase:    getEnv("INSTAGRAM_API_BASE", "https://graph.facebook.com/v19.0"),
		},
		Notify: NotifyConfig{
			WebhookURLs:   splitNonEmpty(getEnv("NOTIFY_WEBHOOK", "")),
			WebhookSecret: getEnv("NOTIFY_WEBHOOK_SECRET", ""),
		},
		AI: AIConfig{
			GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
			Model:        getEnv("AI_MODEL", "gemini-2.0-flash"),
		},
	}

	Global = cfg
	return cfg, nil
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
