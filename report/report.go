package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"lpsn-harvester/models"
)

// Summary prints the end-of-run counts as a fixed-width table.
func Summary(w io.Writer, stats models.CrawlStats, output string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "LPSN 16S rRNA harvest")
	fmt.Fprintln(w, strings.Repeat("=", 40))

	fmt.Fprintf(w, "%-26s %13d\n", "Letters fetched", stats.LettersFetched)
	fmt.Fprintf(w, "%-26s %13d\n", "Letters skipped", stats.LettersSkipped)
	fmt.Fprintf(w, "%-26s %13d\n", "Species links", stats.Species)
	fmt.Fprintf(w, "%-26s %13d\n", "Subspecies links", stats.Subspecies)
	fmt.Fprintln(w, strings.Repeat("-", 40))
	fmt.Fprintf(w, "%-26s %13d\n", "Species attempted", stats.Attempted)
	fmt.Fprintf(w, "%-26s %13d\n", "Unable to download", stats.Failed)
	fmt.Fprintf(w, "%-26s %13s\n", "Downloaded", withRate(stats.Downloaded(), stats.Attempted))
	fmt.Fprintf(w, "%-26s %13s\n", "Duration", stats.Duration.Round(time.Second))

	if output != "" {
		fmt.Fprintf(w, "\nOutput written to %s\n", output)
	}
}

func withRate(part, total int) string {
	if total == 0 {
		return fmt.Sprintf("%d", part)
	}
	return fmt.Sprintf("%d (%.1f%%)", part, float64(part)/float64(total)*100)
}
