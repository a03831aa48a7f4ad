package crawler

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"lpsn-harvester/models"
	"lpsn-harvester/utils"
)

type SequenceFetcher struct {
	client *Client
	parser LinkExtractor
	logger *log.Logger
}

func NewSequenceFetcher(client *Client, parser LinkExtractor, logger *log.Logger) *SequenceFetcher {
	if logger == nil {
		logger = log.Default()
	}
	return &SequenceFetcher{
		client: client,
		parser: parser,
		logger: logger,
	}
}

// Fetch downloads the 16S rRNA FASTA file linked from a species page. Any
// error means "no record for this URL" and is safe to continue past.
func (sf *SequenceFetcher) Fetch(ctx context.Context, speciesURL string) (*models.SequenceRecord, error) {
	name := utils.SpeciesName(speciesURL)

	doc, err := sf.client.GetDocument(ctx, speciesURL, nil)
	if err != nil {
		return nil, fmt.Errorf("species page: %w", err)
	}

	downloadURL, ok := sf.parser.DownloadLink(doc)
	if !ok {
		return nil, ErrNoDownloadLink
	}

	content, err := sf.client.GetText(ctx, downloadURL)
	if err != nil {
		return nil, fmt.Errorf("sequence file: %w", err)
	}

	header, sequence := utils.SplitSequence(content)
	sf.logger.Debug("sequence downloaded", "species", name, "url", downloadURL, "bases", len(sequence))

	return &models.SequenceRecord{
		SpeciesName:  name,
		SequenceName: header,
		URL:          speciesURL,
		RNASequence:  sequence,
	}, nil
}
