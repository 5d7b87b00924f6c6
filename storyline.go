// Package storyline is a Medium-style blogging backend. Posts live as plain
// text files on disk; the home feed is cached, published posts are mirrored
// into a full-text index, and everything is served as a JSON API with Echo.
//
// The App type wires the stores, caches, search index, metrics and routes
// together. Domain logic lives in the blog, post, feed, search and comment
// packages; this package only adapts it to HTTP.
package storyline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/eringen/storyline/blog"
	"github.com/eringen/storyline/cache"
	"github.com/eringen/storyline/comment"
	"github.com/eringen/storyline/database"
	"github.com/eringen/storyline/feed"
	"github.com/eringen/storyline/metrics"
	"github.com/eringen/storyline/post"
	"github.com/eringen/storyline/search"
	"github.com/eringen/storyline/settings"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// App is the central storyline application.
type App struct {
	Config   SiteConfig
	Echo     *echo.Echo
	Log      *zap.Logger
	Blog     *blog.Service
	Posts    *post.Store
	Settings *settings.Store
	Metrics  *metrics.Collector
	Registry *prometheus.Registry

	db           *sql.DB
	closers      []io.Closer
	limiter      *WriteLimiter
	scheduler    *blog.Scheduler
	customRoutes []func(*App)
	postOpts     []post.StoreOption
	noScheduler  bool
	initialized  bool
}

// New creates an App. Nothing is opened until Init or Start.
func New(cfg SiteConfig, log *zap.Logger, opts ...Option) *App {
	cfg.setDefaults()
	if log == nil {
		log = zap.NewNop()
	}

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
		Log:    log,
	}
	a.Echo.HideBanner = true
	a.Echo.HidePort = true

	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Init opens the content root, database, cache and search index and
// registers middleware and routes. It is called by Start; tests call it
// directly and drive a.Echo with httptest.
func (a *App) Init(ctx context.Context) error {
	if a.initialized {
		return nil
	}

	storeOpts := []post.StoreOption{post.WithLogger(a.Log.Named("posts"))}
	if !a.Config.SeedSamples {
		storeOpts = append(storeOpts, post.WithoutSeed())
	}
	a.Posts = post.NewStore(a.Config.ContentDir, append(storeOpts, a.postOpts...)...)
	if err := a.Posts.Ready(); err != nil {
		return fmt.Errorf("storyline: init post store: %w", err)
	}

	db, err := database.Open(a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("storyline: open database: %w", err)
	}
	a.db = db
	a.closers = append(a.closers, db)

	comments, err := comment.NewStore(db)
	if err != nil {
		return fmt.Errorf("storyline: init comments: %w", err)
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.NewCollector(a.Registry)

	var index search.Index
	if a.Config.SearchEnabled {
		idx, err := search.NewSQLiteIndex(db)
		if err != nil {
			return fmt.Errorf("storyline: init search index: %w", err)
		}
		index = idx
	}
	indexSync := search.NewSync(index, a.Posts, a.Log.Named("search"), a.Metrics)

	aggregator := feed.NewAggregator(a.Posts,
		feed.WithCache(a.feedCache(ctx)),
		feed.WithTTL(a.Config.FeedCacheTTL),
		feed.WithLogger(a.Log.Named("feed")),
		feed.WithMetrics(a.Metrics),
	)

	a.Blog = blog.New(blog.Deps{
		Posts:    a.Posts,
		Comments: comments,
		Feed:     aggregator,
		Search:   indexSync,
		Logger:   a.Log.Named("blog"),
		Metrics:  a.Metrics,
	})
	a.Settings = settings.NewStore(a.Config.SettingsPath)
	if a.Config.WriteRatePerMin > 0 {
		a.limiter = NewWriteLimiter(a.Config.WriteRatePerMin, 10*time.Minute)
	}
	a.scheduler = blog.NewScheduler(a.Blog, a.Log.Named("scheduler"))

	if indexSync.Enabled() {
		if n, err := a.Blog.Reindex(ctx); err != nil {
			a.Log.Warn("initial search reindex failed", zap.Error(err))
		} else {
			a.Log.Debug("search index ready", zap.Int("documents", n))
		}
	}

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}

	a.initialized = true
	return nil
}

// feedCache returns Redis when configured and reachable, and the in-memory
// cache otherwise.
func (a *App) feedCache(ctx context.Context) cache.Cache {
	if a.Config.RedisAddr == "" {
		return cache.NewMemory()
	}
	r, err := cache.NewRedis(ctx, cache.RedisOptions{
		Addr:     a.Config.RedisAddr,
		Password: a.Config.RedisPassword,
		DB:       a.Config.RedisDB,
		Prefix:   "storyline:",
	})
	if err != nil {
		a.Log.Warn("redis unavailable, using in-memory feed cache",
			zap.String("addr", a.Config.RedisAddr), zap.Error(err))
		return cache.NewMemory()
	}
	a.closers = append(a.closers, r)
	return r
}

// Start initializes the app, starts the publish scheduler and serves HTTP
// until ctx is cancelled, then shuts down gracefully.
func (a *App) Start(ctx context.Context) error {
	if err := a.Init(ctx); err != nil {
		return err
	}

	if a.limiter != nil {
		a.limiter.StartCleanup()
		defer a.limiter.Stop()
	}

	if !a.noScheduler {
		go a.scheduler.Start(ctx, a.Config.ScheduleInterval)
	}

	errCh := make(chan error, 1)
	go func() {
		a.Log.Info("server listening", zap.String("addr", a.Config.Addr), zap.String("version", Version))
		errCh <- a.Echo.Start(a.Config.Addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.ShutdownTimeout)
	defer cancel()
	a.Log.Info("shutting down")
	if err := a.Echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("storyline: shutdown: %w", err)
	}
	return nil
}

// Close releases the database and cache connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
