package storyline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/storyline/post"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"SITE_NAME", "SITE_URL", "ADDR", "CONTENT_DIR", "FEED_CACHE_TTL", "SEED_SAMPLE_POSTS", "SEARCH_ENABLED", "WRITE_RATE_PER_MIN"} {
		t.Setenv(key, "")
	}

	cfg := LoadConfig()
	assert.Equal(t, "Storyline", cfg.Name)
	assert.Equal(t, "http://localhost:3000", cfg.URL)
	assert.Equal(t, ":3000", cfg.Addr)
	assert.Equal(t, "data/posts", cfg.ContentDir)
	assert.Equal(t, "data/storyline.db", cfg.DatabasePath)
	assert.Equal(t, 60*time.Second, cfg.FeedCacheTTL)
	assert.Equal(t, 60, cfg.WriteRatePerMin)
	assert.Equal(t, time.Minute, cfg.ScheduleInterval)
	assert.True(t, cfg.SeedSamples)
	assert.True(t, cfg.SearchEnabled)
	assert.Equal(t, "*", cfg.CORSOrigin)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("SITE_NAME", "Field Notes")
	t.Setenv("SITE_URL", "https://notes.example.com/")
	t.Setenv("CONTENT_DIR", "/srv/posts")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("FEED_CACHE_TTL", "5m")
	t.Setenv("SEED_SAMPLE_POSTS", "false")
	t.Setenv("SEARCH_ENABLED", "0")
	t.Setenv("WRITE_RATE_PER_MIN", "10")
	t.Setenv("API_TOKEN", "token")

	cfg := LoadConfig()
	assert.Equal(t, "Field Notes", cfg.Name)
	assert.Equal(t, "https://notes.example.com", cfg.URL, "trailing slash is trimmed")
	assert.Equal(t, "/srv/posts", cfg.ContentDir)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, 5*time.Minute, cfg.FeedCacheTTL)
	assert.False(t, cfg.SeedSamples)
	assert.False(t, cfg.SearchEnabled)
	assert.Equal(t, 10, cfg.WriteRatePerMin)
	assert.Equal(t, "token", cfg.APIToken)
}

func TestLoadConfigZeroWriteRateDisablesLimiter(t *testing.T) {
	t.Setenv("WRITE_RATE_PER_MIN", "0")

	cfg := LoadConfig()
	assert.Negative(t, cfg.WriteRatePerMin)
	assert.Negative(t, New(cfg, nil).Config.WriteRatePerMin, "defaults keep the limiter disabled")
	assert.Equal(t, 60, New(SiteConfig{}, nil).Config.WriteRatePerMin)
}

func TestLoadConfigMalformedFallsBack(t *testing.T) {
	t.Setenv("FEED_CACHE_TTL", "soon")
	t.Setenv("REDIS_DB", "two")
	t.Setenv("SEED_SAMPLE_POSTS", "maybe")

	cfg := LoadConfig()
	assert.Equal(t, 60*time.Second, cfg.FeedCacheTTL)
	assert.Equal(t, 0, cfg.RedisDB)
	assert.True(t, cfg.SeedSamples)
}

func TestInitFailsOnUnusableContentDir(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	a := New(SiteConfig{
		ContentDir:   filepath.Join(blocker, "posts"),
		DatabasePath: filepath.Join(root, "db.sqlite"),
	}, nil)
	err := a.Init(t.Context())
	var serr *post.StorageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "mkdir", serr.Op)
}

func TestBuildURL(t *testing.T) {
	tests := []struct {
		base string
		segs []string
		want string
	}{
		{"https://example.com", nil, "https://example.com/"},
		{"https://example.com", []string{"posts", "hello"}, "https://example.com/posts/hello"},
		{"https://example.com/blog", []string{"uploads", "a.jpg"}, "https://example.com/blog/uploads/a.jpg"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BuildURL(tt.base, tt.segs...))
	}
}

func TestPostJSONLD(t *testing.T) {
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	cover := "https://example.com/uploads/c.jpg"
	p := &post.Post{
		Slug:            "hello",
		Title:           "Hello",
		Excerpt:         "An excerpt",
		Tags:            []string{"go"},
		Author:          post.Author{Name: "Ada"},
		PublishedAt:     &at,
		ReadTimeMinutes: 3,
		CoverImage:      &cover,
		UpdatedAt:       at,
	}
	got := PostJSONLD(p, SiteConfig{Name: "Site", URL: "https://example.com"})
	for _, want := range []string{
		`"@type":"BlogPosting"`,
		`"headline":"Hello"`,
		`"url":"https://example.com/posts/hello"`,
		`"datePublished":"2024-05-01T00:00:00Z"`,
		`"timeRequired":"PT3M"`,
		`"keywords":["go"]`,
		`"image":"https://example.com/uploads/c.jpg"`,
	} {
		assert.Contains(t, got, want)
	}
}

func TestNewLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "storyline.log")
	log, err := NewLogger(SiteConfig{LogLevel: "warn", LogPath: path})
	require.NoError(t, err)

	log.Info("dropped")
	log.Warn("kept")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"kept"`)
	assert.NotContains(t, string(data), "dropped")
}
