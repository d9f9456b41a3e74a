package model

const (
	ProductLivretA ProductID = "livret_a"
	ProductLDDS    ProductID = "ldds"
	ProductLEP     ProductID = "lep"
	ProductCEL     ProductID = "cel"
	ProductPELNew  ProductID = "pel_new"
)

type ProductID string

// Source is the single authoritative page a product's rate is read from.
type Source struct {
	Product ProductID
	URL     string
}

// Products lists the tracked products in the order they are reported.
func Products() []ProductID {
	return []ProductID{ProductLivretA, ProductLDDS, ProductLEP, ProductCEL, ProductPELNew}
}

// DefaultSources returns the Service-Public fact sheets, one per product.
func DefaultSources() []Source {
	return []Source{
		{Product: ProductLivretA, URL: "https://www.service-public.gouv.fr/particuliers/vosdroits/F2365"},
		{Product: ProductLDDS, URL: "https://www.service-public.gouv.fr/particuliers/vosdroits/F2368"},
		{Product: ProductLEP, URL: "https://www.service-public.gouv.fr/particuliers/vosdroits/F2367"},
		{Product: ProductCEL, URL: "https://www.service-public.gouv.fr/particuliers/vosdroits/F16136"},
		{Product: ProductPELNew, URL: "https://www.service-public.gouv.fr/particuliers/vosdroits/F16140"},
	}
}
