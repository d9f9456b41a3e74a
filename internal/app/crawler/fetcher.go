package crawler

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/ymakhloufi/taux-livrets/internal/pkg/model"
	"go.uber.org/zap"
)

const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120 Safari/537.36"

// PageFetcher returns the body of a product's source page.
type PageFetcher interface {
	Fetch(ctx context.Context, source model.Source) (string, error)
}

var _ PageFetcher = &HTTPFetcher{}

type HTTPFetcher struct {
	client *resty.Client
	logger *zap.Logger
}

func NewHTTPFetcher(timeout time.Duration, userAgent string, logger *zap.Logger) *HTTPFetcher {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeaders(map[string]string{
			"User-Agent":      userAgent,
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "fr-FR,fr;q=0.9,en;q=0.8",
			"Cache-Control":   "no-cache",
			"Pragma":          "no-cache",
		})

	return &HTTPFetcher{client: client, logger: logger}
}

// Fetch fails with a *model.FetchError on transport errors and non-2xx responses. There are no retries.
func (f *HTTPFetcher) Fetch(ctx context.Context, source model.Source) (string, error) {
	res, err := f.client.R().
		SetContext(ctx).
		Get(source.URL)
	if err != nil {
		return "", &model.FetchError{Product: source.Product, URL: source.URL, Err: err}
	}
	if !res.IsSuccess() {
		return "", &model.FetchError{Product: source.Product, URL: source.URL, StatusCode: res.StatusCode()}
	}

	f.logger.Debug("fetched page",
		zap.String("product", string(source.Product)),
		zap.Int("status", res.StatusCode()),
		zap.Int("bytes", len(res.Body())),
		zap.Duration("elapsed", res.Time()))

	return string(res.Body()), nil
}
