// Package export writes a run's ResultTable to its output artifacts.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/xuri/excelize/v2"

	"lpsn-harvester/models"
)

// Sink receives the finished table once per run.
type Sink interface {
	Write(ctx context.Context, table *models.ResultTable) error
}

// SheetName is the single sheet every workbook is written to.
const SheetName = "Sheet1"

// Header is the first row of the sheet.
var Header = []string{"specie_name", "sequence_name", "url", "rna_sequence"}

// XLSXWriter writes records as rows of a one-sheet workbook.
type XLSXWriter struct {
	path   string
	logger *log.Logger
}

func NewXLSXWriter(path string, logger *log.Logger) *XLSXWriter {
	if logger == nil {
		logger = log.Default()
	}
	return &XLSXWriter{path: path, logger: logger}
}

func (w *XLSXWriter) Path() string {
	return w.path
}

func (w *XLSXWriter) Write(ctx context.Context, table *models.ResultTable) error {
	if dir := filepath.Dir(w.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetRow(SheetName, "A1", &Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	w.warnOversized(table.Records)

	names, sequenceNames, urls, sequences := table.Columns()
	for i, col := range [][]string{names, sequenceNames, urls, sequences} {
		if len(col) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(i+1, 2)
		if err != nil {
			return err
		}
		if err := f.SetSheetCol(SheetName, cell, &col); err != nil {
			return fmt.Errorf("failed to write column %s: %w", Header[i], err)
		}
	}

	if err := f.SaveAs(w.path); err != nil {
		return fmt.Errorf("failed to save %s: %w", w.path, err)
	}

	return nil
}

// warnOversized logs every field longer than a cell holds. excelize keeps the
// first TotalCellChars characters.
func (w *XLSXWriter) warnOversized(records []models.SequenceRecord) {
	for _, rec := range records {
		for i, field := range []string{rec.SpeciesName, rec.SequenceName, rec.URL, rec.RNASequence} {
			if n := utf8.RuneCountInString(field); n > excelize.TotalCellChars {
				w.logger.Warn("cell truncated", "url", rec.URL, "column", Header[i], "chars", n, "limit", excelize.TotalCellChars)
			}
		}
	}
}
