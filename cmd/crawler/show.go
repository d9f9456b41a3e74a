package main

import (
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/ymakhloufi/taux-livrets/internal/pkg/model"
	"github.com/ymakhloufi/taux-livrets/internal/pkg/store"
)

func init() {
	rootCmd.AddCommand(showCmd)
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Prints the current rate of every product in the rates document.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		doc, err := store.NewJSONFile(cfg.RatesPath, log.Named("JSON Store")).Load(cmd.Context())
		if err != nil {
			return err
		}
		renderDocument(cmd.OutOrStdout(), doc)
		return nil
	},
}

func renderDocument(w io.Writer, doc *model.RateDocument) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Product", "Rate", "Since", "History"})

	for _, id := range documentOrder(doc) {
		p := doc.Products[id]
		if p == nil {
			continue
		}
		t.AppendRow(table.Row{id, formatPercent(p.CurrentRate), p.CurrentSince, len(p.History)})
	}

	t.AppendFooter(table.Row{"Updated", doc.UpdatedAt, "", ""})
	t.SetStyle(table.StyleRounded)
	t.Render()
}

// documentOrder lists tracked products first, then whatever else the document holds.
func documentOrder(doc *model.RateDocument) []model.ProductID {
	seen := make(map[model.ProductID]bool)
	var ids []model.ProductID
	for _, id := range model.Products() {
		if _, ok := doc.Products[id]; ok {
			ids = append(ids, id)
			seen[id] = true
		}
	}

	var rest []model.ProductID
	for id := range doc.Products {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	return append(ids, rest...)
}
