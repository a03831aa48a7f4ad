package pipeline

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"lpsn-harvester/crawler"
	"lpsn-harvester/export"
	"lpsn-harvester/models"
)

type memorySink struct {
	tables []*models.ResultTable
	err    error
}

func (m *memorySink) Write(_ context.Context, table *models.ResultTable) error {
	m.tables = append(m.tables, table)
	return m.err
}

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

// newLPSN serves letter A with one species and one subspecies, and a species
// page whose FASTA download works. Every other letter is empty.
func newLPSN(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/species", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "A" {
			io.WriteString(w, `<ul class="main-list"></ul>`)
			return
		}
		io.WriteString(w, `<html><body><ul class="main-list">
<li><a class="last-child color-species" href="/species/abditibacterium-utsteinense">A. utsteinense</a></li>
<li><a class="color-subspecies" href="/subspecies/azotobacter-chroococcum-isscasi">subsp.</a></li>
</ul></body></html>`)
	})
	mux.HandleFunc("/species/abditibacterium-utsteinense", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<a class="fasta-download" href="/fasta/abditibacterium-utsteinense.fasta">fasta</a>`)
	})
	mux.HandleFunc("/fasta/abditibacterium-utsteinense.fasta", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, ">Abditibacterium utsteinense R-68213 16S\nACGTACGTTTGA\n")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newRunner(srv *httptest.Server, sinks ...export.Sink) *Runner {
	client := crawler.NewClient(srv.Client(), "test-agent/1.0", 0)
	parser := crawler.NewLPSNParser(srv.URL + "/")
	logger := quietLogger()

	return &Runner{
		ListingURL: srv.URL + "/species",
		Indexer:    crawler.NewIndexCrawler(client, parser, logger, nil),
		Fetcher:    crawler.NewSequenceFetcher(client, parser, logger),
		Sinks:      sinks,
		Logger:     logger,
	}
}

func TestRunEndToEnd(t *testing.T) {
	srv := newLPSN(t)
	path := filepath.Join(t.TempDir(), "output.xlsx")
	mem := &memorySink{}

	table, err := newRunner(srv, export.NewXLSXWriter(path, quietLogger()), mem).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, table.Records, 1)
	assert.Empty(t, table.Failed)
	assert.Equal(t, []string{"/subspecies/azotobacter-chroococcum-isscasi"}, table.Subspecies)
	assert.Equal(t, models.SequenceRecord{
		SpeciesName:  "Abditibacterium utsteinense",
		SequenceName: ">Abditibacterium utsteinense R-68213 16S",
		URL:          srv.URL + "/species/abditibacterium-utsteinense",
		RNASequence:  "ACGTACGTTTGA\n",
	}, table.Records[0])

	assert.Equal(t, 26, table.Stats.LettersFetched)
	assert.Equal(t, 1, table.Stats.Attempted)
	assert.Zero(t, table.Stats.Failed)

	require.Len(t, mem.tables, 1)
	assert.Same(t, table, mem.tables[0])

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(export.SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, export.Header, rows[0])
	assert.Equal(t, "Abditibacterium utsteinense", rows[1][0])
}

type stubIndexer struct {
	species, subspecies []string
}

func (s stubIndexer) Crawl(context.Context, string) ([]string, []string, models.CrawlStats) {
	return s.species, s.subspecies, models.CrawlStats{
		LettersFetched: 26,
		Species:        len(s.species),
		Subspecies:     len(s.subspecies),
	}
}

type stubFetcher map[string]error

func (s stubFetcher) Fetch(_ context.Context, url string) (*models.SequenceRecord, error) {
	if err := s[url]; err != nil {
		return nil, err
	}
	return &models.SequenceRecord{SpeciesName: url, URL: url}, nil
}

func TestRunPartitionsFailures(t *testing.T) {
	mem := &memorySink{}
	r := &Runner{
		Indexer: stubIndexer{species: []string{"u1", "u2", "u3", "u4"}},
		Fetcher: stubFetcher{
			"u2": crawler.ErrNoDownloadLink,
			"u4": &crawler.StatusError{URL: "u4", StatusCode: http.StatusBadGateway},
		},
		Sinks:  []export.Sink{mem},
		Logger: quietLogger(),
	}

	table, err := r.Run(context.Background())
	require.NoError(t, err)

	var urls []string
	for _, rec := range table.Records {
		urls = append(urls, rec.URL)
	}
	assert.Equal(t, []string{"u1", "u3"}, urls)
	assert.Equal(t, []string{"u2", "u4"}, table.Failed)
	assert.Equal(t, 4, table.Stats.Attempted)
	assert.Equal(t, 2, table.Stats.Failed)
	assert.Equal(t, 2, table.Stats.Downloaded())

	for _, f := range table.Failed {
		assert.NotContains(t, urls, f)
	}
}

type stepTracker struct{ total, steps, done int }

func (s *stepTracker) SetTotal(n int) { s.total = n }
func (s *stepTracker) Increment()     { s.steps++ }
func (s *stepTracker) Done()          { s.done++ }

func TestRunAdvancesTracker(t *testing.T) {
	tr := &stepTracker{}
	r := &Runner{
		Indexer: stubIndexer{species: []string{"u1", "u2"}},
		Fetcher: stubFetcher{"u1": errors.New("boom")},
		Logger:  quietLogger(),
		Tracker: tr,
	}

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, tr.total)
	assert.Equal(t, 2, tr.steps)
	assert.Equal(t, 1, tr.done)
}

func TestRunCancelledDuringFetch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mux := http.NewServeMux()
	mux.HandleFunc("/species/aadella-gelida", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html><body>no download</body></html>`)
	})
	mux.HandleFunc("/species/abditibacterium-utsteinense", func(w http.ResponseWriter, r *http.Request) {
		cancel()
		<-r.Context().Done()
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := crawler.NewClient(srv.Client(), "test-agent/1.0", 0)
	mem := &memorySink{}
	tr := &stepTracker{}
	r := &Runner{
		Indexer: stubIndexer{species: []string{
			srv.URL + "/species/aadella-gelida",
			srv.URL + "/species/abditibacterium-utsteinense",
			srv.URL + "/species/bacillus-subtilis",
		}},
		Fetcher: crawler.NewSequenceFetcher(client, crawler.NewLPSNParser(srv.URL+"/"), quietLogger()),
		Sinks:   []export.Sink{mem},
		Logger:  quietLogger(),
		Tracker: tr,
	}

	table, err := r.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{srv.URL + "/species/aadella-gelida"}, table.Failed)
	assert.Empty(t, table.Records)
	assert.Equal(t, 1, table.Stats.Attempted)
	assert.Equal(t, 1, table.Stats.Failed)
	assert.Equal(t, 1, tr.steps)
	assert.Equal(t, 1, tr.done)
	require.Len(t, mem.tables, 1)
}

func TestRunSinkError(t *testing.T) {
	failing := &memorySink{err: errors.New("disk full")}
	after := &memorySink{}
	r := &Runner{
		Indexer: stubIndexer{species: []string{"u1"}},
		Fetcher: stubFetcher{},
		Sinks:   []export.Sink{failing, after},
		Logger:  quietLogger(),
	}

	table, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	require.NotNil(t, table)
	assert.Len(t, table.Records, 1)
	assert.Empty(t, after.tables)
}

func TestRunCancelledStillWrites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mem := &memorySink{}
	r := &Runner{
		Indexer: stubIndexer{species: []string{"u1", "u2"}},
		Fetcher: stubFetcher{},
		Sinks:   []export.Sink{mem},
		Logger:  quietLogger(),
	}

	table, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, table.Records)
	assert.Zero(t, table.Stats.Attempted)
	require.Len(t, mem.tables, 1)
}

func TestRunEmptyCrawl(t *testing.T) {
	mem := &memorySink{}
	r := &Runner{
		Indexer: stubIndexer{},
		Fetcher: stubFetcher{},
		Sinks:   []export.Sink{mem},
	}

	table, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, table.Records)
	assert.Empty(t, table.Failed)
	require.Len(t, mem.tables, 1)
}
