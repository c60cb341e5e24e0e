package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"deskcal/internal/backend"
	"deskcal/internal/config"
	"deskcal/internal/feed"
	"deskcal/internal/httpcache"
	appLog "deskcal/internal/log"
	"deskcal/internal/model"
	"deskcal/internal/store"
	"deskcal/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
	debug      bool
}

func main() {
	appLog.Info("deskcal starting", "version", "0.1.0")

	flags := parseFlags()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides the config file listen address if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if token := os.Getenv("DESKCAL_BACKEND_TOKEN"); token != "" {
		conf.Backend.Token = token
	}
	if flags.debug {
		conf.CacheDir = "./cache/http-cache"
		appLog.SetLevel(appLog.LevelDebug)
	} else {
		appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"week_start", conf.WeekStart,
		"refresh", conf.RefreshCron,
		"backend", httpcache.RedactURL(conf.Backend.BaseURL),
		"feed_count", len(conf.HolidayFeeds),
		"once", flags.once,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	fetcher := httpcache.New(conf.CacheDir)
	client := backend.New(fetcher, conf.Backend.BaseURL, conf.Backend.Token)

	var loadFeeds store.FeedLoader
	if len(conf.HolidayFeeds) > 0 {
		sources := feedSources(conf.HolidayFeeds)
		loadFeeds = func(ctx context.Context, rangeStart, rangeEnd time.Time) ([]model.Holiday, []error) {
			return feed.FetchAll(ctx, fetcher, sources, rangeStart, rangeEnd)
		}
	}

	st := store.New(client, loadFeeds)

	// Initial population. A failing backend is not fatal in server mode;
	// handlers retry via EnsureFresh.
	if err := st.Refresh(ctx); err != nil {
		appLog.Error("initial snapshot refresh failed", err)
		if flags.once {
			os.Exit(1)
		}
	}
	if flags.once {
		appLog.Info("single refresh complete, exiting")
		return
	}

	// Periodic refresh driven by the configured cron expression.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(conf.RefreshCron, func() {
		if err := st.Refresh(ctx); err != nil {
			appLog.Error("scheduled snapshot refresh failed", err)
		}
	}); err != nil {
		appLog.Error("invalid refresh cron expression", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop()

	srv := &http.Server{
		Addr:    conf.Listen,
		Handler: web.NewServer(conf, st).Handler(),
	}

	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("HTTP server failed", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("HTTP server shutdown failed", err)
	}

	appLog.Info("deskcal exiting")
}

func feedSources(configs []config.FeedConfig) []feed.Source {
	sources := make([]feed.Source, 0, len(configs))
	for _, fc := range configs {
		if fc.URL == "" {
			continue
		}
		id := fc.ID
		if id == "" {
			if fc.Name != "" {
				id = fc.Name
			} else {
				id = fc.URL
			}
		}
		sources = append(sources, feed.Source{ID: id, Name: fc.Name, URL: fc.URL})
	}
	return sources
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/deskcal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one snapshot refresh and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Debug logging and local cache directory")

	flag.Parse()

	return cfg
}
