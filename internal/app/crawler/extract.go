package crawler

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/antchfx/htmlquery"
	"github.com/shopspring/decimal"
	"github.com/ymakhloufi/taux-livrets/internal/pkg/model"
	"golang.org/x/net/html"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	rateAnchor = "taux d'intérêt annuel"

	// how far past the anchor we look for the percentage
	windowSize = 2500
)

var (
	foldedRateAnchor = foldAccents(rateAnchor)

	percentPattern    = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*%`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	textReplacer      = strings.NewReplacer(
		"\u00a0", " ", // non-breaking space
		"\u202f", " ", // narrow non-breaking space, French typography puts it before '%'
		"\u2019", "'",
	)

	hundred = decimal.NewFromInt(100)
)

// Extractor turns the markup of one product page into that product's annual rate.
type Extractor struct {
	product  model.ProductID
	patterns []*regexp.Regexp
}

func NewExtractor(product model.ProductID) *Extractor {
	return &Extractor{product: product, patterns: productPatterns[product]}
}

// Extract returns the rate as a decimal fraction (1,7 % -> 0.017).
//
// Only the windowSize bytes after the "taux d'intérêt annuel" anchor are searched. The product's own
// patterns are tried there first, then the first percentage of the window is used.
func (e *Extractor) Extract(markup string) (float64, error) {
	text, err := FlattenText(markup)
	if err != nil {
		return 0, &model.ExtractionError{Product: e.product, Reason: err.Error()}
	}

	window, ok := rateWindow(text)
	if !ok {
		return 0, &model.ExtractionError{Product: e.product, Reason: fmt.Sprintf("anchor phrase %q not found", rateAnchor)}
	}

	for _, p := range e.patterns {
		if m := p.FindStringSubmatch(window); m != nil {
			return e.parsePercent(m[p.SubexpIndex("rate")])
		}
	}

	m := percentPattern.FindStringSubmatch(window)
	if m == nil {
		return 0, &model.ExtractionError{Product: e.product, Reason: "no percentage found after anchor phrase"}
	}
	return e.parsePercent(m[1])
}

func (e *Extractor) parsePercent(s string) (float64, error) {
	d, err := decimal.NewFromString(strings.Replace(s, ",", ".", 1))
	if err != nil {
		return 0, &model.ExtractionError{Product: e.product, Reason: fmt.Sprintf("failed to parse percentage '%s': %v", s, err)}
	}
	rate, _ := d.Div(hundred).Float64()
	return rate, nil
}

// rateWindow returns the text following the anchor phrase, bounded to windowSize.
// The accent-free anchor is tried on an accent-folded copy when the page encodes accents inconsistently.
func rateWindow(text string) (string, bool) {
	if i := strings.Index(text, rateAnchor); i >= 0 {
		return clip(text[i+len(rateAnchor):], windowSize), true
	}
	folded := foldAccents(text)
	if i := strings.Index(folded, foldedRateAnchor); i >= 0 {
		return clip(folded[i+len(foldedRateAnchor):], windowSize), true
	}
	return "", false
}

// clip cuts s to at most n bytes without splitting a rune.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// FlattenText renders markup as a single lowercase line of plain text, without scripts and styles.
func FlattenText(markup string) (string, error) {
	doc, err := htmlquery.Parse(strings.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("failed to parse markup: %w", err)
	}

	nodes, err := htmlquery.QueryAll(doc, "//script|//style")
	if err != nil {
		return "", fmt.Errorf("failed to xpath script and style nodes: %w", err)
	}
	for _, n := range nodes {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}

	return sanitizeText(getAllTextFromNode(doc)), nil
}

func getAllTextFromNode(node *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if node != nil {
		walk(node)
	}
	return sb.String()
}

func sanitizeText(s string) string {
	s = textReplacer.Replace(s)
	s = whitespacePattern.ReplaceAllString(s, " ") // merge multi-spaces
	return strings.ToLower(strings.TrimSpace(s))
}
