// Package pipeline wires the index crawler, the sequence fetcher and the
// export sinks into a single sequential run.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"lpsn-harvester/crawler"
	"lpsn-harvester/export"
	"lpsn-harvester/models"
)

// Indexer produces the species and subspecies link sets.
type Indexer interface {
	Crawl(ctx context.Context, listingURL string) ([]string, []string, models.CrawlStats)
}

// Fetcher turns one species URL into a record.
type Fetcher interface {
	Fetch(ctx context.Context, speciesURL string) (*models.SequenceRecord, error)
}

type Runner struct {
	ListingURL string
	Indexer    Indexer
	Fetcher    Fetcher
	Sinks      []export.Sink
	Logger     *log.Logger
	// Tracker, when set, is advanced once per species processed.
	Tracker crawler.Tracker
}

// Run crawls every listing page, fetches each species in turn and hands the
// table to every sink. Only a sink failure is returned as an error; the
// table is returned either way.
func (r *Runner) Run(ctx context.Context) (*models.ResultTable, error) {
	logger := r.Logger
	if logger == nil {
		logger = log.Default()
	}
	start := time.Now()

	species, subspecies, stats := r.Indexer.Crawl(ctx, r.ListingURL)
	logger.Info("listing crawl finished",
		"species", len(species), "subspecies", len(subspecies),
		"letters_skipped", stats.LettersSkipped)

	table := &models.ResultTable{Subspecies: subspecies}

	if r.Tracker != nil {
		r.Tracker.SetTotal(len(species))
	}
	interrupted := false
	for _, speciesURL := range species {
		if ctx.Err() != nil {
			interrupted = true
			break
		}

		rec, err := r.Fetcher.Fetch(ctx, speciesURL)
		if err != nil && ctx.Err() != nil {
			// Interrupted mid-request: neither attempted nor unfetchable.
			interrupted = true
			break
		}

		stats.Attempted++
		if r.Tracker != nil {
			r.Tracker.Increment()
		}
		if err != nil {
			logger.Warn("unable to download sequence", "url", speciesURL, "err", err)
			table.Failed = append(table.Failed, speciesURL)
			continue
		}
		table.Records = append(table.Records, *rec)
	}

	if r.Tracker != nil {
		r.Tracker.Done()
	}
	if interrupted {
		logger.Warn("fetch interrupted", "remaining", len(species)-stats.Attempted)
	}

	stats.Failed = len(table.Failed)
	stats.Duration = time.Since(start)
	table.Stats = stats

	logger.Info("sequence fetch finished", "attempted", stats.Attempted, "failed", stats.Failed)

	for _, sink := range r.Sinks {
		if err := sink.Write(context.WithoutCancel(ctx), table); err != nil {
			return table, fmt.Errorf("failed to write results: %w", err)
		}
	}

	return table, nil
}
