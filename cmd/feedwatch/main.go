package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"Tootline/internal/api/handlers/timeline"
	"Tootline/internal/api/middleware"
	"Tootline/internal/api/routes"
	"Tootline/internal/core/feed"
	"Tootline/internal/mastodon"
)

type config struct {
	instanceURL   string
	accessToken   string
	timeline      mastodon.Timeline
	port          string
	maxEntries    int
	retryDelay    time.Duration
	filterPhrases []string
}

func loadConfig() (config, error) {
	cfg := config{
		instanceURL: os.Getenv("INSTANCE_URL"),
		accessToken: os.Getenv("ACCESS_TOKEN"),
		port:        os.Getenv("FEEDWATCH_PORT"),
	}
	if cfg.instanceURL == "" {
		return cfg, errors.New("INSTANCE_URL is required")
	}
	if cfg.port == "" {
		cfg.port = "8090"
	}

	tl := os.Getenv("TIMELINE")
	if tl == "" {
		tl = "home"
	}
	parsed, err := mastodon.ParseTimeline(tl)
	if err != nil {
		return cfg, fmt.Errorf("TIMELINE: %w", err)
	}
	cfg.timeline = parsed

	if v := os.Getenv("FEED_MAX_ENTRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return cfg, fmt.Errorf("FEED_MAX_ENTRIES must be a positive integer, got %q", v)
		}
		cfg.maxEntries = n
	}
	if v := os.Getenv("FEED_RETRY_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return cfg, fmt.Errorf("FEED_RETRY_DELAY must be a positive duration, got %q", v)
		}
		cfg.retryDelay = d
	}
	if v := os.Getenv("FEED_FILTER_PHRASES"); v != "" {
		cfg.filterPhrases = strings.Split(v, ",")
	}
	return cfg, nil
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatal("Invalid configuration: ", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := mastodon.NewClient(cfg.instanceURL, cfg.accessToken)
	opts := feed.Options{
		Logger:     slog.Default(),
		Metrics:    feed.NewMetrics(prometheus.DefaultRegisterer),
		MaxEntries: cfg.maxEntries,
		RetryDelay: cfg.retryDelay,
	}

	streamingBase, err := client.StreamingBaseURL(ctx)
	if err != nil {
		log.Printf("Warning: could not look up streaming endpoint, using %s: %v", client.BaseURL(), err)
		streamingBase = client.BaseURL()
	}

	var service timeline.Service
	if cfg.timeline.IsNotifications() {
		tl, err := feed.NewTimeline[*mastodon.Notification](mastodon.NewNotificationFetcher(client), opts)
		if err != nil {
			log.Fatal("Failed to create timeline: ", err)
		}
		predicates := func(filters []mastodon.KeywordFilter) []feed.Predicate[*mastodon.Notification] {
			return mastodon.NotificationPredicates(filters, time.Now)
		}
		startFeed(ctx, cfg, client, tl, mastodon.NewNotificationConsumer(tl), streamingBase, predicates)
		service = tl
	} else {
		tl, err := feed.NewTimeline[*mastodon.Status](mastodon.NewStatusFetcher(client, cfg.timeline), opts)
		if err != nil {
			log.Fatal("Failed to create timeline: ", err)
		}
		predicates := func(filters []mastodon.KeywordFilter) []feed.Predicate[*mastodon.Status] {
			return mastodon.StatusPredicates(filters, cfg.timeline.FilterContext(), time.Now)
		}
		startFeed(ctx, cfg, client, tl, mastodon.NewStatusConsumer(tl), streamingBase, predicates)
		service = tl
	}

	r := chi.NewRouter()

	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)

	// Rate limiting: 100 requests per minute per IP
	rateLimiter := middleware.NewRateLimiter(100, 1*time.Minute)
	defer rateLimiter.Close()
	r.Use(rateLimiter.Middleware)

	routes.RegisterTimelineRoutes(r, service)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	server := &http.Server{Addr: ":" + cfg.port, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP shutdown error: %v", err)
		}
	}()

	fmt.Printf("Feedwatch starting on port %s\n", cfg.port)
	fmt.Printf("Instance: %s, timeline: %s\n", client.BaseURL(), cfg.timeline)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

// startFeed runs the timeline loop, its filters and its live stream in the background
func startFeed[E feed.Keyed](
	ctx context.Context,
	cfg config,
	client *mastodon.Client,
	tl *feed.Timeline[E],
	consumer *mastodon.EventConsumer[E],
	streamingBase string,
	predicates func([]mastodon.KeywordFilter) []feed.Predicate[E],
) {
	go func() {
		if err := tl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Timeline stopped: %v", err)
		}
	}()

	loadFilters := func() {
		filters, err := client.Filters(ctx)
		if err != nil {
			log.Printf("Failed to load server filters: %v", err)
		}
		filters = append(filters, mastodon.LocalFilters(cfg.filterPhrases)...)
		if err := tl.SetFilters(predicates(filters)); err != nil {
			log.Printf("Failed to apply filters: %v", err)
		}
	}
	loadFilters()
	// The hook runs on the timeline loop, so refetching happens elsewhere
	if err := tl.OnFiltersChanged(func() { go loadFilters() }); err != nil {
		log.Printf("Failed to install filters hook: %v", err)
	}

	connector, err := mastodon.NewStreamingConnector(consumer, streamingBase, cfg.accessToken, cfg.timeline)
	if err != nil {
		log.Printf("Live updates disabled: %v", err)
		return
	}
	go func() {
		if err := connector.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Streaming consumer stopped: %v", err)
		}
	}()
}
