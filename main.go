package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"

	"lpsn-harvester/config"
	"lpsn-harvester/crawler"
	"lpsn-harvester/database"
	"lpsn-harvester/export"
	"lpsn-harvester/models"
	"lpsn-harvester/pipeline"
	"lpsn-harvester/progress"
	"lpsn-harvester/report"
)

// CLI flags. Every flag is optional and overrides the environment.
type CLI struct {
	EnvFile     string `help:"Path to a .env file." default:".env" type:"path"`
	Output      string `help:"Spreadsheet to write." short:"o"`
	BaseURL     string `help:"LPSN site root."`
	DatabaseURL string `help:"PostgreSQL DSN; also stores results when set."`
	LogLevel    string `help:"Log level (debug, info, warn, error)."`
	NoProgress  bool   `help:"Disable progress bars."`
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("lpsn-harvester"),
		kong.Description("Download 16S rRNA sequences for every species listed on LPSN."),
	)

	cfg, err := config.Load(cli.EnvFile)
	if err != nil {
		log.Fatal("failed to load configuration", "err", err)
	}
	if err := cli.apply(cfg); err != nil {
		log.Fatal("invalid flags", "err", err)
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "lpsn",
	})
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Fatal("invalid log level", "level", cfg.LogLevel, "err", err)
	}
	logger.SetLevel(level)

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, !cli.NoProgress); err != nil {
		logger.Fatal("run failed", "err", err)
	}
}

func (c *CLI) apply(cfg *config.Config) error {
	if c.Output != "" {
		cfg.OutputFile = c.Output
	}
	if c.BaseURL != "" {
		cfg.BaseURL = c.BaseURL
		cfg.SpeciesURL = ""
	}
	if c.DatabaseURL != "" {
		cfg.DatabaseURL = c.DatabaseURL
	}
	if c.LogLevel != "" {
		cfg.LogLevel = c.LogLevel
	}
	return cfg.Validate()
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger, showProgress bool) error {
	logger.Info("starting harvest", "listing", cfg.SpeciesURL, "output", cfg.OutputFile)

	client := crawler.NewClient(crawler.NewHTTPClient(cfg.RequestTimeout), cfg.UserAgent, cfg.RateLimit)
	parser := crawler.NewLPSNParser(cfg.BaseURL)

	xlsx := export.NewXLSXWriter(cfg.OutputFile, logger)
	sinks := []export.Sink{xlsx}

	var db *database.PostgresDB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = database.NewPostgresDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		sinks = append(sinks, db)
	}

	var letterBar, speciesBar crawler.Tracker
	if showProgress {
		letterBar = progress.New(os.Stderr, "Fetching Species", "rounds")
		speciesBar = progress.New(os.Stderr, "Processing species", "species")
	}

	runner := &pipeline.Runner{
		ListingURL: cfg.SpeciesURL,
		Indexer:    crawler.NewIndexCrawler(client, parser, logger, letterBar),
		Fetcher:    crawler.NewSequenceFetcher(client, parser, logger),
		Sinks:      sinks,
		Logger:     logger,
		Tracker:    speciesBar,
	}

	table, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	report.Summary(os.Stdout, table.Stats, xlsx.Path())

	if db != nil {
		logStaleSequences(context.WithoutCancel(ctx), db, table.Failed, logger)

		pending, err := db.UnfetchableURLs(context.WithoutCancel(ctx))
		if err != nil {
			logger.Warn("failed to count unfetchable species", "err", err)
		} else {
			logger.Info("species without a sequence across runs", "count", len(pending))
		}
	}

	return nil
}

type sequenceStore interface {
	GetSequence(ctx context.Context, url string) (*models.SequenceRecord, bool, error)
}

// logStaleSequences notes species that failed this run but still have a
// sequence stored from an earlier one.
func logStaleSequences(ctx context.Context, store sequenceStore, failed []string, logger *log.Logger) {
	for _, url := range failed {
		rec, ok, err := store.GetSequence(ctx, url)
		if err != nil {
			logger.Warn("failed to look up stored sequence", "url", url, "err", err)
			continue
		}
		if ok {
			logger.Debug("keeping previously stored sequence", "url", url, "sequence_name", rec.SequenceName)
		}
	}
}
