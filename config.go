package storyline

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/eringen/storyline/post"
)

// SiteConfig holds all configuration for a storyline server.
type SiteConfig struct {
	Name        string // Site name (default "Storyline")
	URL         string // Canonical URL (default "http://localhost:3000")
	Description string // Site description for RSS

	Addr         string // Listen address (default ":3000")
	ContentDir   string // Post files root (default "data/posts")
	DatabasePath string // SQLite path for comments and the search index (default "data/storyline.db")
	SettingsPath string // Site settings TOML file (default "data/settings.toml")
	UploadsDir   string // Cover image directory (default "data/uploads")
	SeedSamples  bool   // Seed sample posts into an empty content root

	RedisAddr     string // Empty means the in-memory feed cache
	RedisPassword string
	RedisDB       int

	SearchEnabled bool          // Mirror published posts into the FTS index
	FeedCacheTTL  time.Duration // Home feed cache lifetime (default 60s)

	APIToken   string // Bearer token for mutating routes; empty leaves them open
	CORSOrigin string // Allowed CORS origin (default "*")

	LogLevel string
	LogPath  string // Rolling log file; empty logs to stdout only

	WriteRatePerMin   int           // Per-IP write requests per minute (default 60, negative disables)
	ScheduleInterval  time.Duration // Scheduled post check interval (default 1m)
	MaxBodyBytes      string        // Request body limit (default "2M")
	ShutdownTimeout   time.Duration // Graceful shutdown deadline (default 10s)
	MaxCoverUploadMiB int           // Cover upload limit (default 10)
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Storyline"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	c.URL = strings.TrimRight(c.URL, "/")
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.ContentDir == "" {
		c.ContentDir = "data/posts"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/storyline.db"
	}
	if c.SettingsPath == "" {
		c.SettingsPath = "data/settings.toml"
	}
	if c.UploadsDir == "" {
		c.UploadsDir = "data/uploads"
	}
	if c.FeedCacheTTL <= 0 {
		c.FeedCacheTTL = 60 * time.Second
	}
	if c.CORSOrigin == "" {
		c.CORSOrigin = "*"
	}
	if c.WriteRatePerMin == 0 {
		c.WriteRatePerMin = 60
	}
	if c.ScheduleInterval <= 0 {
		c.ScheduleInterval = time.Minute
	}
	if c.MaxBodyBytes == "" {
		c.MaxBodyBytes = "2M"
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.MaxCoverUploadMiB <= 0 {
		c.MaxCoverUploadMiB = 10
	}
}

// LoadConfig reads a SiteConfig from the environment. Unset or malformed
// values fall back to their defaults.
func LoadConfig() SiteConfig {
	cfg := SiteConfig{
		Name:          os.Getenv("SITE_NAME"),
		URL:           os.Getenv("SITE_URL"),
		Description:   EnvOr("SITE_DESCRIPTION", "Stories worth reading"),
		Addr:          os.Getenv("ADDR"),
		ContentDir:    os.Getenv("CONTENT_DIR"),
		DatabasePath:  os.Getenv("DATABASE_PATH"),
		SettingsPath:  os.Getenv("SETTINGS_PATH"),
		UploadsDir:    os.Getenv("UPLOADS_DIR"),
		SeedSamples:   envBool("SEED_SAMPLE_POSTS", true),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),
		SearchEnabled: envBool("SEARCH_ENABLED", true),
		FeedCacheTTL:  envDuration("FEED_CACHE_TTL", 60*time.Second),
		APIToken:      os.Getenv("API_TOKEN"),
		CORSOrigin:    os.Getenv("CORS_ORIGIN"),
		LogLevel:      EnvOr("LOG_LEVEL", "info"),
		LogPath:       os.Getenv("LOG_PATH"),

		WriteRatePerMin:  writeRate(envInt("WRITE_RATE_PER_MIN", 60)),
		ScheduleInterval: envDuration("SCHEDULER_INTERVAL", time.Minute),
		MaxBodyBytes:     os.Getenv("MAX_BODY_SIZE"),
	}
	cfg.setDefaults()
	return cfg
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance before
// the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithPostStoreOptions passes extra options to the post store, such as a
// fake file system or clock in tests.
func WithPostStoreOptions(opts ...post.StoreOption) Option {
	return func(a *App) {
		a.postOpts = append(a.postOpts, opts...)
	}
}

// WithoutScheduler keeps Start from running the scheduled publishing loop.
func WithoutScheduler() Option {
	return func(a *App) {
		a.noScheduler = true
	}
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// writeRate maps WRITE_RATE_PER_MIN=0 to a disabled limiter.
func writeRate(n int) int {
	if n <= 0 {
		return -1
	}
	return n
}
