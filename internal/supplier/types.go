package supplier

import (
	"github.com/shopspring/decimal"

	"github.com/mkellerhals/sourcelane-backend/pkg/enums"
)

// Product is the immutable snapshot produced by one scrape. Variants belong
// exclusively to their product and are never shared between snapshots.
type Product struct {
	SupplierProductID string
	Title             string
	Description       string
	Price             decimal.Decimal
	Currency          enums.Currency
	Stock             *int
	ImageURLs         []string
	Variants          []Variant
}

// Variant is one sellable option of a supplier listing. A nil Stock means the
// supplier did not report a number, which is treated as available.
type Variant struct {
	SKU        string
	Attributes map[string]string
	Price      decimal.Decimal
	Stock      *int
}

// HasVariants reports whether the listing carries a variant matrix.
func (p *Product) HasVariants() bool {
	return len(p.Variants) > 0
}

// Fingerprint is a randomized, plausible client identity used for one scrape
// session.
type Fingerprint struct {
	UserAgent string
	Viewport  Viewport
	Locale    string
	Timezone  string
}

// Viewport is the claimed browser window size.
type Viewport struct {
	Width  int
	Height int
}

// StockValidationResult is the derived verdict over a product's variants. It
// is never persisted.
type StockValidationResult struct {
	IsValid                bool
	AvailableVariants      []Variant
	OutOfStockVariants     []Variant
	TotalAvailableStock    int
	IsCompletelyOutOfStock bool
	HasPartialStock        bool
	Reason                 string
}

// RecommendedAction tells an operator how to triage an import.
type RecommendedAction string

const (
	ActionNone         RecommendedAction = "NONE"
	ActionUpdateStock  RecommendedAction = "UPDATE_STOCK"
	ActionHideVariants RecommendedAction = "HIDE_VARIANTS"
	ActionHideProduct  RecommendedAction = "HIDE_PRODUCT"
)

// DownloadedImage is one fetched and validated product image. Width and
// Height are zero when the format was not sniffable.
type DownloadedImage struct {
	URL         string
	Buffer      []byte
	ContentType string
	Size        int64
	Width       int
	Height      int
}
