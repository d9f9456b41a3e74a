package crawler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ymakhloufi/taux-livrets/internal/pkg/model"
	"github.com/ymakhloufi/taux-livrets/internal/pkg/store"
	"go.uber.org/zap"
)

const seedDocument = `{
  "updated_at": "2025-02-01",
  "products": {
    "livret_a": {"current_rate": 0.03, "current_since": "2024-02-01", "history": [{"date": "2024-02-01", "rate": 0.03}]},
    "ldds": {"current_rate": 0.017, "current_since": "2025-08-01", "history": [{"date": "2025-08-01", "rate": 0.017}]},
    "lep": {"current_rate": 0.027, "current_since": "2025-08-01", "history": [{"date": "2025-08-01", "rate": 0.027}]},
    "cel": {"current_rate": 0.015, "current_since": "2025-02-01", "history": [{"date": "2025-02-01", "rate": 0.015}]},
    "pel_new": {"current_rate": 0.0175, "current_since": "2025-01-01", "history": [{"date": "2025-01-01", "rate": 0.0175}]}
  }
}
`

var productPages = map[model.ProductID]string{
	model.ProductLivretA: `<p>Le taux d'intérêt annuel du Livret A est fixé à 1,7 %.</p>`,
	model.ProductLDDS:    `<p>Taux d'intérêt annuel du LDDS : 1,7 %</p>`,
	model.ProductLEP:     `<p>Taux d'intérêt annuel : 2,7 %</p>`,
	model.ProductCEL:     `<p>Taux d'intérêt annuel : 1,5 %</p>`,
	model.ProductPELNew:  `<p>Taux d'intérêt annuel : 1,75 %</p>`,
}

func runDay() time.Time {
	return time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)
}

// pageServer serves productPages under /<product>; products in failing answer 500.
func pageServer(t *testing.T, failing ...model.ProductID) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := model.ProductID(strings.TrimPrefix(r.URL.Path, "/"))
		for _, f := range failing {
			if f == id {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
		}
		body, ok := productPages[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(page(body)))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func pageCrawlers(baseURL string) []RateCrawler {
	fetcher := NewHTTPFetcher(5*time.Second, "", zap.NewNop())
	crawlers := make([]RateCrawler, 0, len(model.Products()))
	for _, id := range model.Products() {
		src := model.Source{Product: id, URL: baseURL + "/" + string(id)}
		crawlers = append(crawlers, NewServicePublicCrawler(src, fetcher, zap.NewNop()))
	}
	return crawlers
}

func seedFile(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "rates.json")
	require.NoError(t, os.WriteFile(path, []byte(seedDocument), 0o644))
	return path
}

func TestService_EndToEnd(t *testing.T) {
	srv := pageServer(t)
	path := seedFile(t)
	jsonStore := store.NewJSONFile(path, zap.NewNop())

	svc := NewService(jsonStore, pageCrawlers(srv.URL), zap.NewNop(), WithClock(runDay))
	report, err := svc.Crawl(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Saved)
	assert.Equal(t, []model.ProductID{model.ProductLivretA}, report.Changed)
	assert.Equal(t, civil.Date{Year: 2025, Month: time.August, Day: 1}, report.Date)
	assert.Len(t, report.Rates, 5)

	doc, err := jsonStore.Load(context.Background())
	require.NoError(t, err)

	livretA := doc.Products[model.ProductLivretA]
	assert.Equal(t, 0.017, livretA.CurrentRate)
	assert.Equal(t, "2025-08-01", livretA.CurrentSince.String())
	require.Len(t, livretA.History, 2)
	assert.Equal(t, model.HistoryEntry{Date: civil.Date{Year: 2025, Month: time.August, Day: 1}, Rate: 0.017}, livretA.History[1])
	assert.Equal(t, "2025-08-01", doc.UpdatedAt.String())

	cel := doc.Products[model.ProductCEL]
	assert.Equal(t, "2025-02-01", cel.CurrentSince.String())
	assert.Len(t, cel.History, 1)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(raw), "}\n"))
	assert.Contains(t, string(raw), "\n  \"products\": {")
}

func TestService_SecondRunSameDayIsNoop(t *testing.T) {
	srv := pageServer(t)
	path := seedFile(t)
	jsonStore := store.NewJSONFile(path, zap.NewNop())
	svc := NewService(jsonStore, pageCrawlers(srv.URL), zap.NewNop(), WithClock(runDay))

	_, err := svc.Crawl(context.Background())
	require.NoError(t, err)
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	report, err := svc.Crawl(context.Background())
	require.NoError(t, err)
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.False(t, report.Saved)
	assert.Empty(t, report.Changed)
	assert.Equal(t, string(first), string(second))
}

func TestService_FailFast(t *testing.T) {
	srv := pageServer(t, model.ProductCEL)
	path := seedFile(t)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	svc := NewService(store.NewJSONFile(path, zap.NewNop()), pageCrawlers(srv.URL), zap.NewNop(), WithClock(runDay))
	report, err := svc.Crawl(context.Background())

	require.Error(t, err)
	assert.Nil(t, report)

	var fetchErr *model.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, model.ProductCEL, fetchErr.Product)
	assert.Equal(t, http.StatusInternalServerError, fetchErr.StatusCode)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestService_ReportsEveryFailedProduct(t *testing.T) {
	crawlers := []RateCrawler{
		&failingCrawler{product: model.ProductLivretA, err: &model.ExtractionError{Product: model.ProductLivretA, Reason: "anchor phrase not found"}},
		NewStaticCrawler(model.ProductLDDS, 0.017, zap.NewNop()),
		NewStaticCrawler(model.ProductLEP, 0.9, zap.NewNop()),
	}
	mem := newMemoryStore(t)

	_, err := NewService(mem, crawlers, zap.NewNop(), WithClock(runDay)).Crawl(context.Background())

	var extractionErr *model.ExtractionError
	var rangeErr *model.OutOfRangeError
	assert.True(t, errors.As(err, &extractionErr))
	assert.True(t, errors.As(err, &rangeErr))
	assert.Equal(t, model.ProductLEP, rangeErr.Product)
	assert.Zero(t, mem.saves)
}

func TestService_MissingProductAbortsBeforeCrawling(t *testing.T) {
	mem := newMemoryStore(t)
	delete(mem.doc.Products, model.ProductPELNew)
	c := &failingCrawler{product: model.ProductPELNew}

	_, err := NewService(mem, []RateCrawler{c}, zap.NewNop()).Crawl(context.Background())

	var persistenceErr *model.PersistenceError
	require.True(t, errors.As(err, &persistenceErr))
	assert.Contains(t, err.Error(), "pel_new")
	assert.Zero(t, c.calls.Load())
}

func TestService_LoadErrorAbortsBeforeCrawling(t *testing.T) {
	mem := newMemoryStore(t)
	mem.loadErr = &model.PersistenceError{Target: "rates.json", Err: errors.New("unexpected end of JSON input")}
	c := &failingCrawler{product: model.ProductLivretA}

	_, err := NewService(mem, []RateCrawler{c}, zap.NewNop()).Crawl(context.Background())

	assert.ErrorIs(t, err, mem.loadErr)
	assert.Zero(t, c.calls.Load())
}

func TestService_DryRunDoesNotSave(t *testing.T) {
	mem := newMemoryStore(t)
	mirror := &recordingMirror{}
	crawlers := []RateCrawler{NewStaticCrawler(model.ProductLivretA, 0.017, zap.NewNop())}

	report, err := NewService(mem, crawlers, zap.NewNop(), WithClock(runDay), WithDryRun(true), WithMirror(mirror)).
		Crawl(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []model.ProductID{model.ProductLivretA}, report.Changed)
	assert.False(t, report.Saved)
	assert.Zero(t, mem.saves)
	assert.Empty(t, mirror.products)
}

func TestService_MirrorsChangedProducts(t *testing.T) {
	mem := newMemoryStore(t)
	mirror := &recordingMirror{}
	crawlers := []RateCrawler{
		NewStaticCrawler(model.ProductLivretA, 0.017, zap.NewNop()),
		NewStaticCrawler(model.ProductCEL, 0.015, zap.NewNop()),
	}

	report, err := NewService(mem, crawlers, zap.NewNop(), WithClock(runDay), WithMirror(mirror)).Crawl(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Saved)
	assert.True(t, report.HasChanged(model.ProductLivretA))
	assert.False(t, report.HasChanged(model.ProductCEL))
	assert.Equal(t, 1, mem.saves)
	assert.Equal(t, []model.ProductID{model.ProductLivretA}, mirror.products)
}

func TestService_MirrorFailure(t *testing.T) {
	mem := newMemoryStore(t)
	mirror := &recordingMirror{err: &model.PersistenceError{Target: "postgres", Err: errors.New("connection refused")}}
	crawlers := []RateCrawler{NewStaticCrawler(model.ProductLivretA, 0.017, zap.NewNop())}

	_, err := NewService(mem, crawlers, zap.NewNop(), WithClock(runDay), WithMirror(mirror)).Crawl(context.Background())

	var persistenceErr *model.PersistenceError
	require.True(t, errors.As(err, &persistenceErr))
	assert.Equal(t, "postgres", persistenceErr.Target)
}

func TestService_EffectiveDateUsesClockLocation(t *testing.T) {
	mem := newMemoryStore(t)
	paris := time.FixedZone("CEST", 2*60*60)
	clock := func() time.Time { return time.Date(2025, 7, 31, 23, 30, 0, 0, time.UTC).In(paris) }
	crawlers := []RateCrawler{NewStaticCrawler(model.ProductLivretA, 0.017, zap.NewNop())}

	report, err := NewService(mem, crawlers, zap.NewNop(), WithClock(clock)).Crawl(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "2025-08-01", report.Date.String())
	assert.Equal(t, "2025-08-01", mem.doc.Products[model.ProductLivretA].CurrentSince.String())
}

type memoryStore struct {
	doc     *model.RateDocument
	loadErr error
	saves   int
}

func newMemoryStore(t *testing.T) *memoryStore {
	var doc model.RateDocument
	require.NoError(t, json.Unmarshal([]byte(seedDocument), &doc))
	return &memoryStore{doc: &doc}
}

func (m *memoryStore) Load(_ context.Context) (*model.RateDocument, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.doc, nil
}

func (m *memoryStore) Save(_ context.Context, doc *model.RateDocument) error {
	m.doc = doc
	m.saves++
	return nil
}

type failingCrawler struct {
	product model.ProductID
	err     error
	calls   atomic.Int32
}

func (f *failingCrawler) Product() model.ProductID { return f.product }

func (f *failingCrawler) Crawl(_ context.Context) (float64, error) {
	f.calls.Add(1)
	if f.err == nil {
		return 0, errors.New("crawler should not have run")
	}
	return 0, f.err
}

type recordingMirror struct {
	products []model.ProductID
	err      error
}

func (r *recordingMirror) MirrorProduct(_ context.Context, product model.ProductID, _ *model.ProductRate) error {
	if r.err != nil {
		return r.err
	}
	r.products = append(r.products, product)
	return nil
}
