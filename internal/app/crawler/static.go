package crawler

import (
	"context"

	"github.com/ymakhloufi/taux-livrets/internal/pkg/model"
	"go.uber.org/zap"
)

var _ RateCrawler = &StaticCrawler{}

// StaticCrawler reports a rate given by the operator instead of reading a page.
// Used to push a known rate when a source page is broken.
type StaticCrawler struct {
	product model.ProductID
	rate    float64
	logger  *zap.Logger
}

func NewStaticCrawler(product model.ProductID, rate float64, logger *zap.Logger) *StaticCrawler {
	return &StaticCrawler{product: product, rate: rate, logger: logger}
}

func (s *StaticCrawler) Product() model.ProductID {
	return s.product
}

func (s *StaticCrawler) Crawl(_ context.Context) (float64, error) {
	if err := ValidateRate(s.product, s.rate); err != nil {
		return 0, err
	}
	s.logger.Info("using static rate", zap.Float64("rate", s.rate))
	return s.rate, nil
}
