package cmd

import (
	"fmt"

	"curseforge-mod-fetcher/batch"
	"curseforge-mod-fetcher/config"
	"curseforge-mod-fetcher/curseforge"
	"curseforge-mod-fetcher/db"
	"curseforge-mod-fetcher/download"
	"curseforge-mod-fetcher/ledger"
	"curseforge-mod-fetcher/logger"
	"curseforge-mod-fetcher/metrics"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app holds the components a command works with. It is built once per
// command from the validated configuration.
type app struct {
	cfg     config.Config
	client  *curseforge.Client
	catalog *curseforge.Catalog
	ledger  *ledger.Ledger
	history *db.History
	metrics *metrics.Metrics
}

// bootstrap handles shared initialization logic for commands. Configuration
// is validated before anything that could touch the network is built.
func bootstrap(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(".", cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	if err := logger.InitLogger(cfg.LogFile, verbose); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	log := logger.Log

	m := metrics.New()
	client, err := curseforge.NewClient(cfg,
		curseforge.WithLogger(log.Named("api")),
		curseforge.WithMetrics(m),
	)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		client: client,
		catalog: curseforge.NewCatalog(client, cfg.GameID,
			curseforge.WithModCache(cfg.CacheSize, cfg.CacheTTL),
			curseforge.WithCatalogLogger(log.Named("catalog")),
			curseforge.WithCatalogMetrics(m),
		),
		ledger:  ledger.New(cfg.LedgerPath, ledger.WithLogger(log.Named("ledger"))),
		metrics: m,
	}

	if cfg.HistoryPath != "" {
		h, err := db.Open(cfg.HistoryPath, logger.ZapLogger)
		if err != nil {
			log.Warnw("Download history disabled", zap.String("path", cfg.HistoryPath), zap.Error(err))
		} else {
			a.history = h
			log.Infow("Database initialized", zap.String("path", cfg.HistoryPath))
		}
	}

	log.Infow("Configuration loaded",
		zap.Int("game_id", cfg.GameID),
		zap.String("mods_dir", cfg.ModsDir),
		zap.String("ledger", cfg.LedgerPath),
		zap.Int("concurrency", cfg.Concurrency))
	return a, nil
}

func (a *app) newManager(progress func(download.Progress)) *download.Manager {
	return download.NewManager(a.catalog, a.ledger, a.cfg.ModsDir,
		download.WithUserAgent(a.cfg.UserAgent),
		download.WithMaxRedirects(a.cfg.MaxRedirects),
		download.WithProgress(progress),
		download.WithLogger(logger.Log.Named("download")),
		download.WithMetrics(a.metrics),
	)
}

func (a *app) newRunner(d batch.Downloader, hook func(batch.Result)) *batch.Runner {
	opts := []batch.Option{
		batch.WithConcurrency(a.cfg.Concurrency),
		batch.WithLogger(logger.Log.Named("batch")),
		batch.WithMetrics(a.metrics),
		batch.WithResultHook(hook),
	}
	if a.history != nil {
		opts = append(opts, batch.WithHistory(a.history))
	}
	return batch.NewRunner(d, opts...)
}

// close flushes metrics and releases the history database.
func (a *app) close() {
	if err := a.metrics.WriteTextfile(a.cfg.MetricsFile); err != nil {
		logger.Log.Warnw("Failed to write metrics", zap.Error(err))
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			logger.Log.Warnw("Failed to close history database", zap.Error(err))
		}
	}
}
