// Package app wires configuration, storage, the scraper and the scheduler
// into the running service and the maintenance CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/cgpvp/cgpvp/internal/auth"
	"github.com/cgpvp/cgpvp/internal/browser"
	"github.com/cgpvp/cgpvp/internal/config"
	"github.com/cgpvp/cgpvp/internal/httpserver"
	"github.com/cgpvp/cgpvp/internal/ingest"
	"github.com/cgpvp/cgpvp/internal/media"
	"github.com/cgpvp/cgpvp/internal/metrics"
	"github.com/cgpvp/cgpvp/internal/scheduler"
	"github.com/cgpvp/cgpvp/internal/scraper"
	"github.com/cgpvp/cgpvp/internal/store"
	"github.com/cgpvp/cgpvp/internal/types"
)

// LoadConfig loads the config file, writing the defaults on first run.
func LoadConfig(logger *zap.SugaredLogger) (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		logger.Warnf("Could not load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load config: %w", err)
		}
		// First run - create default config
		cfg = config.Default()
		if err := cfg.Save(); err != nil {
			logger.Warnf("Could not save default config: %v", err)
		} else {
			path, _ := config.ConfigPath()
			logger.Infof("Created default config at: %s", path)
		}
		if err := cfg.ApplyEnv(); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// App holds the wired components. It is built once per process.
type App struct {
	cfg      *config.Config
	logger   *zap.SugaredLogger
	store    *store.Store
	metrics  *metrics.Metrics
	pipeline *ingest.Pipeline
	auth     *auth.Manager
	cacheDir string
}

// New opens the database and builds the ingestion pipeline.
func New(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (*App, error) {
	st, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Database.Migrate {
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, err
		}
	}

	cookiePath, err := auth.DefaultCookieStorePath()
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to get cookie store path: %w", err)
	}
	cookies := auth.NewCookieStore(cookiePath)

	cacheDir, err := config.CacheDir()
	if err != nil {
		logger.Warnf("No cache directory, run snapshots disabled: %v", err)
	}

	m := metrics.New()
	sc := cfg.Scraping
	fetcher := scraper.NewFetcher(browser.Options(sc.Headless, sc.UserAgent), sc.PageSettle, cookies, logger)
	extractor := scraper.NewExtractor(sc.ExpandSettle, logger)
	retriever := media.NewRetriever(sc.UserAgent, cfg.Images.Timeout, logger, media.WithMaxBytes(cfg.Images.MaxBytes))

	pipeline := ingest.New(fetcher, extractor, retriever, st, m, ingest.Options{
		Sources:   sc.Sources,
		CacheDir:  cacheDir,
		CacheRuns: sc.CacheRuns && cacheDir != "",
	}, logger)

	return &App{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		metrics:  m,
		pipeline: pipeline,
		auth:     auth.NewManager(cookies, browser.Options(false, sc.UserAgent), logger),
		cacheDir: cacheDir,
	}, nil
}

// Close releases the database.
func (a *App) Close() error {
	return a.store.Close()
}

// Store exposes the database for maintenance commands.
func (a *App) Store() *store.Store {
	return a.store
}

// newScheduler builds a scheduler around job with the configured trigger.
func (a *App) newScheduler(name string, job scheduler.Job) (*scheduler.Scheduler, error) {
	sc := a.cfg.Schedule
	return scheduler.New(scheduler.Options{
		Name:         name,
		Schedule:     sc.Cron,
		Timezone:     sc.Timezone,
		PollInterval: sc.PollInterval,
		SkipInterval: sc.SkipInterval,
		RunTimeout:   a.cfg.Scraping.RunTimeout,
	}, job, a.logger)
}

// Serve runs the HTTP API and, when enabled, the daily scheduler until ctx
// is cancelled.
func (a *App) Serve(ctx context.Context) error {
	if a.cfg.Schedule.Enabled {
		sched, err := a.newScheduler("facebook-sync", a.pipeline.RunAll)
		if err != nil {
			return err
		}
		sched.Start(ctx)
		defer sched.Stop()
	} else {
		a.logger.Info("Scheduler disabled")
	}

	srv := httpserver.New(a.cfg.Server, a.store, a.metrics.Registry, a.logger)

	return srv.Run(ctx)
}

// Scrape runs one ingestion immediately, for a single source or for all of
// them when name is empty.
func (a *App) Scrape(ctx context.Context, name string) error {
	job := a.pipeline.RunAll
	jobName := "all sources"
	if name != "" {
		src, ok := a.cfg.Source(name)
		if !ok {
			return fmt.Errorf("unknown source %q", name)
		}
		jobName = src.Name
		job = func(ctx context.Context) error {
			_, err := a.pipeline.Run(ctx, src)
			return err
		}
	}

	sched, err := a.newScheduler(jobName, job)
	if err != nil {
		return err
	}
	return sched.RunNow(ctx)
}

// LastRun returns the newest cached record of a source and its path. An
// empty name means the first configured source.
func (a *App) LastRun(name string) (types.PostRecord, string, error) {
	if a.cacheDir == "" {
		return types.PostRecord{}, "", errors.New("no cache directory")
	}
	if name == "" {
		if len(a.cfg.Scraping.Sources) == 0 {
			return types.PostRecord{}, "", errors.New("no sources configured")
		}
		name = a.cfg.Scraping.Sources[0].Name
	} else if _, ok := a.cfg.Source(name); !ok {
		return types.PostRecord{}, "", fmt.Errorf("unknown source %q", name)
	}
	return store.LoadLatestStepOutput[types.PostRecord](a.cacheDir, name, store.StepRecord)
}

// IsAuthenticated checks if Facebook credentials are stored.
func (a *App) IsAuthenticated() bool {
	return a.auth.IsAuthenticated()
}

// TriggerLogin starts the Facebook login flow.
func (a *App) TriggerLogin(ctx context.Context) error {
	a.logger.Info("Login triggered - opening browser for Facebook authentication")
	if err := a.auth.Login(ctx); err != nil {
		a.logger.Errorf("Login failed: %v", err)
		return err
	}
	a.logger.Info("Login successful - cookies saved")
	return nil
}

// TriggerLogout clears stored Facebook credentials.
func (a *App) TriggerLogout() error {
	a.logger.Info("Logout triggered - clearing stored cookies")
	if err := a.auth.Logout(); err != nil {
		a.logger.Errorf("Logout failed: %v", err)
		return err
	}
	a.logger.Info("Logout successful - cookies cleared")
	return nil
}
