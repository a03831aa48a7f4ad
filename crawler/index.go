package crawler

import (
	"context"
	"net/url"

	"github.com/charmbracelet/log"

	"lpsn-harvester/models"
)

// Letters are the listing page selectors, one request each.
var Letters = func() []string {
	letters := make([]string, 0, 26)
	for c := 'A'; c <= 'Z'; c++ {
		letters = append(letters, string(c))
	}
	return letters
}()

// Tracker receives one Increment per unit of work and a Done when the
// stage ends, finished or not.
type Tracker interface {
	SetTotal(total int)
	Increment()
	Done()
}

type IndexCrawler struct {
	client  *Client
	parser  LinkExtractor
	logger  *log.Logger
	tracker Tracker
}

func NewIndexCrawler(client *Client, parser LinkExtractor, logger *log.Logger, tracker Tracker) *IndexCrawler {
	if logger == nil {
		logger = log.Default()
	}
	return &IndexCrawler{
		client:  client,
		parser:  parser,
		logger:  logger,
		tracker: tracker,
	}
}

// Crawl requests listingURL?page=<L> for every letter and collects species and
// subspecies links. A failed letter is logged and skipped.
func (ic *IndexCrawler) Crawl(ctx context.Context, listingURL string) ([]string, []string, models.CrawlStats) {
	var (
		species    []string
		subspecies []string
		stats      models.CrawlStats
	)

	if ic.tracker != nil {
		ic.tracker.SetTotal(len(Letters))
	}

	interrupted := ""
	for _, letter := range Letters {
		if ctx.Err() != nil {
			interrupted = letter
			break
		}

		sp, sub, err := ic.crawlLetter(ctx, listingURL, letter)
		if err != nil && ctx.Err() != nil {
			// In flight when cancelled; not a failed letter.
			interrupted = letter
			break
		}
		if ic.tracker != nil {
			ic.tracker.Increment()
		}
		if err != nil {
			ic.logger.Warn("failed to fetch listing page", "letter", letter, "err", err)
			stats.LettersSkipped++
			continue
		}

		stats.LettersFetched++
		species = append(species, sp...)
		subspecies = append(subspecies, sub...)
		ic.logger.Debug("listing page parsed", "letter", letter, "species", len(sp), "subspecies", len(sub))
	}

	if ic.tracker != nil {
		ic.tracker.Done()
	}
	if interrupted != "" {
		ic.logger.Warn("crawl interrupted", "letter", interrupted, "err", ctx.Err())
	}

	stats.Species = len(species)
	stats.Subspecies = len(subspecies)

	return species, subspecies, stats
}

func (ic *IndexCrawler) crawlLetter(ctx context.Context, listingURL, letter string) ([]string, []string, error) {
	doc, err := ic.client.GetDocument(ctx, listingURL, url.Values{"page": {letter}})
	if err != nil {
		return nil, nil, err
	}

	return ic.parser.ExtractSpeciesLinks(doc)
}
