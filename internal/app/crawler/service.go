package crawler

import (
	"context"
	"errors"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/ymakhloufi/taux-livrets/internal/pkg/model"
	"go.uber.org/zap"
)

type Store interface {
	Load(ctx context.Context) (*model.RateDocument, error)
	Save(ctx context.Context, doc *model.RateDocument) error
}

// Mirror receives the records that changed, after the document has been saved.
type Mirror interface {
	MirrorProduct(ctx context.Context, product model.ProductID, rate *model.ProductRate) error
}

type RateCrawler interface {
	Product() model.ProductID
	Crawl(ctx context.Context) (float64, error)
}

type Service struct {
	store    Store
	mirror   Mirror
	crawlers []RateCrawler
	now      func() time.Time
	dryRun   bool
	logger   *zap.Logger
}

type Option func(*Service)

func WithMirror(mirror Mirror) Option {
	return func(s *Service) { s.mirror = mirror }
}

// WithClock sets the clock the effective date is taken from. The date is read in the clock's location.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithDryRun runs the whole cycle but neither saves nor mirrors.
func WithDryRun(dryRun bool) Option {
	return func(s *Service) { s.dryRun = dryRun }
}

func NewService(store Store, crawlers []RateCrawler, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		crawlers: crawlers,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Report summarizes one refresh cycle.
type Report struct {
	Date    civil.Date
	Rates   []model.Observation
	Changed []model.ProductID
	Saved   bool
}

func (r *Report) HasChanged(product model.ProductID) bool {
	for _, id := range r.Changed {
		if id == product {
			return true
		}
	}
	return false
}

// Crawl runs one refresh cycle: every crawler runs concurrently and the document is only
// touched once all of them succeeded. Any failure aborts the cycle with nothing written.
func (s *Service) Crawl(ctx context.Context) (*Report, error) {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := doc.Require(s.products()); err != nil {
		return nil, &model.PersistenceError{Target: "rate document", Err: err}
	}

	observations, err := s.crawlAll(ctx)
	if err != nil {
		return nil, err
	}

	today := civil.DateOf(s.now())
	changed, err := doc.Apply(today, observations)
	if err != nil {
		return nil, &model.PersistenceError{Target: "rate document", Err: err}
	}
	report := &Report{Date: today, Rates: observations, Changed: changed}

	if len(changed) == 0 {
		s.logger.Info("no rate changed, nothing to persist", zap.Stringer("date", today))
		return report, nil
	}
	if s.dryRun {
		s.logger.Info("dry run, not persisting", zap.Any("changed", changed))
		return report, nil
	}

	if err := s.store.Save(ctx, doc); err != nil {
		return nil, err
	}
	report.Saved = true
	s.logger.Info("successfully saved rate document", zap.Any("changed", changed), zap.Stringer("date", today))

	if s.mirror == nil {
		return report, nil
	}
	for _, id := range changed {
		if err := s.mirror.MirrorProduct(ctx, id, doc.Products[id]); err != nil {
			s.logger.Error("failed to mirror product rate", zap.String("product", string(id)), zap.Error(err))
			return nil, err
		}
	}
	return report, nil
}

func (s *Service) crawlAll(ctx context.Context) ([]model.Observation, error) {
	var wg sync.WaitGroup
	observations := make([]model.Observation, len(s.crawlers))
	errs := make([]error, len(s.crawlers))

	for i, c := range s.crawlers {
		wg.Add(1)
		go func(i int, c RateCrawler) {
			defer wg.Done()
			rate, err := c.Crawl(ctx)
			observations[i] = model.Observation{Product: c.Product(), Rate: rate}
			errs[i] = err
		}(i, c)
	}

	wg.Wait()
	s.logger.Info("all crawlers finished")

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return observations, nil
}

func (s *Service) products() []model.ProductID {
	ids := make([]model.ProductID, 0, len(s.crawlers))
	for _, c := range s.crawlers {
		ids = append(ids, c.Product())
	}
	return ids
}
