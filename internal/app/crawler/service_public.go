package crawler

import (
	"context"

	"github.com/ymakhloufi/taux-livrets/internal/pkg/model"
	"go.uber.org/zap"
)

var _ RateCrawler = &ServicePublicCrawler{}

// ServicePublicCrawler reads one product's rate from its Service-Public fact sheet.
type ServicePublicCrawler struct {
	source    model.Source
	fetcher   PageFetcher
	extractor *Extractor
	logger    *zap.Logger
}

func NewServicePublicCrawler(source model.Source, fetcher PageFetcher, logger *zap.Logger) *ServicePublicCrawler {
	return &ServicePublicCrawler{
		source:    source,
		fetcher:   fetcher,
		extractor: NewExtractor(source.Product),
		logger:    logger,
	}
}

func (c *ServicePublicCrawler) Product() model.ProductID {
	return c.source.Product
}

func (c *ServicePublicCrawler) Crawl(ctx context.Context) (float64, error) {
	page, err := c.fetcher.Fetch(ctx, c.source)
	if err != nil {
		c.logger.Error("failed reading product page", zap.String("url", c.source.URL), zap.Error(err))
		return 0, err
	}
	c.logger.Debug("read product page")

	rate, err := c.extractor.Extract(page)
	if err != nil {
		c.logger.Error("failed to extract rate from product page", zap.String("url", c.source.URL), zap.Error(err))
		return 0, err
	}

	if err := ValidateRate(c.source.Product, rate); err != nil {
		c.logger.Error("extracted rate is not plausible", zap.Float64("rate", rate), zap.Error(err))
		return 0, err
	}

	c.logger.Info("extracted rate", zap.Float64("rate", rate))
	return rate, nil
}
