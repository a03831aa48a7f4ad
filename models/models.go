// models/models.go
package models

import (
	"time"
)

// SequenceRecord is one downloaded 16S rRNA FASTA file for a species page.
type SequenceRecord struct {
	SpeciesName  string `json:"specie_name"`
	SequenceName string `json:"sequence_name"`
	URL          string `json:"url"`
	RNASequence  string `json:"rna_sequence"`
}

// ResultTable is everything a run produced, in crawl order.
type ResultTable struct {
	Records    []SequenceRecord `json:"records"`
	Failed     []string         `json:"failed"`
	Subspecies []string         `json:"subspecies"`
	Stats      CrawlStats       `json:"stats"`
}

// Columns returns the records as four parallel columns in export order.
func (t *ResultTable) Columns() (names, sequenceNames, urls, sequences []string) {
	for _, r := range t.Records {
		names = append(names, r.SpeciesName)
		sequenceNames = append(sequenceNames, r.SequenceName)
		urls = append(urls, r.URL)
		sequences = append(sequences, r.RNASequence)
	}
	return names, sequenceNames, urls, sequences
}

type CrawlStats struct {
	LettersFetched int           `json:"letters_fetched"`
	LettersSkipped int           `json:"letters_skipped"`
	Species        int           `json:"species"`
	Subspecies     int           `json:"subspecies"`
	Attempted      int           `json:"attempted"`
	Failed         int           `json:"failed"`
	Duration       time.Duration `json:"duration"`
}

// Downloaded is the number of species that produced a record.
func (s CrawlStats) Downloaded() int {
	return s.Attempted - s.Failed
}
