package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"cloud.google.com/go/civil"
)

// HistoryEntry records a rate in effect starting on Date.
type HistoryEntry struct {
	Date civil.Date `json:"date"`
	Rate float64    `json:"rate"`
}

// ProductRate is the persisted state of one product. Rates are decimal fractions (1.7% = 0.017).
type ProductRate struct {
	CurrentRate  float64
	CurrentSince civil.Date
	History      []HistoryEntry

	// keys we don't manage (labels, notes, ...) are carried through untouched
	extra map[string]json.RawMessage
	keys  []string
}

// Observation is a freshly extracted and validated rate for one product.
type Observation struct {
	Product ProductID
	Rate    float64
}

// RateDocument is the whole persisted record.
type RateDocument struct {
	UpdatedAt civil.Date
	Products  map[ProductID]*ProductRate

	extra       map[string]json.RawMessage
	keys        []string
	productKeys []string
}

var (
	productRateKeys  = []string{"current_rate", "current_since", "history"}
	rateDocumentKeys = []string{"updated_at", "products"}
)

type productRateFields struct {
	CurrentRate  float64        `json:"current_rate"`
	CurrentSince civil.Date     `json:"current_since"`
	History      []HistoryEntry `json:"history"`
}

type rateDocumentFields struct {
	UpdatedAt civil.Date                 `json:"updated_at"`
	Products  map[ProductID]*ProductRate `json:"products"`
}

func (p *ProductRate) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var fields productRateFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	keys, err := objectKeys(data)
	if err != nil {
		return err
	}
	delete(raw, "current_rate")
	delete(raw, "current_since")
	delete(raw, "history")

	p.CurrentRate = fields.CurrentRate
	p.CurrentSince = fields.CurrentSince
	p.History = fields.History
	p.extra = raw
	p.keys = keys
	return nil
}

func (p ProductRate) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.extra)+3)
	for k, v := range p.extra {
		out[k] = v
	}
	out["current_rate"] = p.CurrentRate
	if p.CurrentSince != (civil.Date{}) {
		out["current_since"] = p.CurrentSince
	}
	history := p.History
	if history == nil {
		history = []HistoryEntry{}
	}
	out["history"] = history
	return marshalObject(out, p.keys, productRateKeys)
}

func (d *RateDocument) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var fields rateDocumentFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	keys, err := objectKeys(data)
	if err != nil {
		return err
	}
	var productKeys []string
	if products, ok := raw["products"]; ok && fields.Products != nil {
		if productKeys, err = objectKeys(products); err != nil {
			return err
		}
	}
	delete(raw, "updated_at")
	delete(raw, "products")

	d.UpdatedAt = fields.UpdatedAt
	d.Products = fields.Products
	d.extra = raw
	d.keys = keys
	d.productKeys = productKeys
	return nil
}

func (d RateDocument) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.extra)+2)
	for k, v := range d.extra {
		out[k] = v
	}
	if d.UpdatedAt != (civil.Date{}) {
		out["updated_at"] = d.UpdatedAt
	}
	products := make(map[string]any, len(d.Products))
	for id, p := range d.Products {
		products[string(id)] = p
	}
	encodedProducts, err := marshalObject(products, d.productKeys, productKeyOrder())
	if err != nil {
		return nil, err
	}
	out["products"] = json.RawMessage(encodedProducts)
	return marshalObject(out, d.keys, rateDocumentKeys)
}

// Require fails when any of ids has no record in the document.
// Records are seeded by hand, never created by the crawler.
func (d *RateDocument) Require(ids []ProductID) error {
	var missing []string
	for _, id := range ids {
		if p, ok := d.Products[id]; !ok || p == nil {
			missing = append(missing, string(id))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing product records: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Apply records every observation as effective on date and returns the products whose record changed.
// UpdatedAt is only bumped when at least one product changed.
func (d *RateDocument) Apply(date civil.Date, observations []Observation) ([]ProductID, error) {
	if err := d.Require(productsOf(observations)); err != nil {
		return nil, err
	}

	var changed []ProductID
	for _, o := range observations {
		if d.Products[o.Product].Record(date, o.Rate) {
			changed = append(changed, o.Product)
		}
	}
	if len(changed) > 0 {
		d.UpdatedAt = date
	}
	return changed, nil
}

func productKeyOrder() []string {
	ids := Products()
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = string(id)
	}
	return keys
}

func productsOf(observations []Observation) []ProductID {
	ids := make([]ProductID, 0, len(observations))
	for _, o := range observations {
		ids = append(ids, o.Product)
	}
	return ids
}
