package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/ymakhloufi/taux-livrets/internal/app/crawler"
	"github.com/ymakhloufi/taux-livrets/internal/pkg/config"
	"github.com/ymakhloufi/taux-livrets/internal/pkg/model"
	"github.com/ymakhloufi/taux-livrets/internal/pkg/store"
	"go.uber.org/zap"
)

var (
	dryRun      bool
	staticRates map[string]string
)

func init() {
	// a bare "crawler" runs an update, so the scheduler does not need to know the subcommand
	for _, cmd := range []*cobra.Command{updateCmd, rootCmd} {
		cmd.Flags().BoolVar(&dryRun, "dry-run", false, "fetch and compare rates without writing anything")
		cmd.Flags().StringToStringVar(&staticRates, "set", nil, "use a known rate instead of reading the page, e.g. --set cel=0.015")
	}
	rootCmd.Args = cobra.NoArgs
	rootCmd.RunE = runUpdate
	rootCmd.AddCommand(updateCmd)
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Fetches every product page and records rate changes.",
	Args:  cobra.NoArgs,
	RunE:  runUpdate,
}

func runUpdate(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	overrides, err := parseStaticRates(staticRates)
	if err != nil {
		return err
	}
	crawlers := buildCrawlers(cfg, overrides, log)

	opts := []crawler.Option{
		crawler.WithClock(func() time.Time { return time.Now().In(loc) }),
		crawler.WithDryRun(dryRun),
	}
	if cfg.DatabaseURL != "" && !dryRun {
		pg, pool, err := store.ConnectPostgres(cmd.Context(), cfg.DatabaseURL, log.Named("PG Store"))
		if err != nil {
			return err
		}
		defer pool.Close()
		opts = append(opts, crawler.WithMirror(pg))
	}

	jsonStore := store.NewJSONFile(cfg.RatesPath, log.Named("JSON Store"))
	svc := crawler.NewService(jsonStore, crawlers, log.Named("Crawler Svc"), opts...)

	report, err := svc.Crawl(cmd.Context())
	if err != nil {
		return err
	}
	printReport(cmd.OutOrStdout(), report)
	return nil
}

func buildCrawlers(cfg *config.Config, overrides map[model.ProductID]float64, log *zap.Logger) []crawler.RateCrawler {
	fetcher := crawler.NewHTTPFetcher(cfg.HTTPTimeout, cfg.UserAgent, log.Named("Fetcher"))

	crawlers := make([]crawler.RateCrawler, 0, len(cfg.Sources))
	for _, src := range cfg.Sources {
		named := log.Named(string(src.Product))
		if rate, ok := overrides[src.Product]; ok {
			crawlers = append(crawlers, crawler.NewStaticCrawler(src.Product, rate, named))
			continue
		}
		crawlers = append(crawlers, crawler.NewServicePublicCrawler(src, fetcher, named))
	}
	return crawlers
}

func parseStaticRates(raw map[string]string) (map[model.ProductID]float64, error) {
	known := make(map[model.ProductID]bool)
	for _, id := range model.Products() {
		known[id] = true
	}

	out := make(map[model.ProductID]float64, len(raw))
	for product, value := range raw {
		id := model.ProductID(product)
		if !known[id] {
			return nil, fmt.Errorf("unknown product '%s' in --set", product)
		}
		d, err := decimal.NewFromString(strings.Replace(value, ",", ".", 1))
		if err != nil {
			return nil, fmt.Errorf("failed to parse rate '%s' for %s: %w", value, product, err)
		}
		out[id], _ = d.Float64()
	}
	return out, nil
}

func printReport(w io.Writer, report *crawler.Report) {
	status := "unchanged"
	switch {
	case report.Saved:
		status = fmt.Sprintf("%d changed, saved", len(report.Changed))
	case len(report.Changed) > 0:
		status = fmt.Sprintf("%d changed, not saved (dry run)", len(report.Changed))
	}
	fmt.Fprintf(w, "OK: rates fetched on %s (%s)\n", report.Date, status)

	for _, o := range report.Rates {
		line := fmt.Sprintf("%s: %s", o.Product, formatPercent(o.Rate))
		if report.HasChanged(o.Product) {
			line += " (changed)"
		}
		fmt.Fprintln(w, line)
	}
}

func formatPercent(rate float64) string {
	return decimal.NewFromFloat(rate).Mul(decimal.NewFromInt(100)).String() + "%"
}
