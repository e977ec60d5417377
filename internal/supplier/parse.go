package supplier

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mkellerhals/sourcelane-backend/pkg/enums"
	"github.com/mkellerhals/sourcelane-backend/pkg/errors"
)

// Supplier listing pages embed their product state as a JSON blob assigned to
// window.runParams inside an inline script. The page markup around it changes
// constantly; the blob shape does not.
var runParamsRe = regexp.MustCompile(`(?s)window\.runParams\s*=\s*(\{.*?\})\s*;?\s*</script>`)

type listingPayload struct {
	Data listingData `json:"data"`
}

type listingData struct {
	ItemID      string           `json:"itemId"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Price       listingPrice     `json:"price"`
	Stock       *int             `json:"stock"`
	Images      []string         `json:"images"`
	Variants    []listingVariant `json:"variants"`
}

type listingPrice struct {
	Value    json.Number `json:"value"`
	Currency string      `json:"currency"`
}

type listingVariant struct {
	SKU        string            `json:"sku"`
	Attributes map[string]string `json:"attributes"`
	Price      json.Number       `json:"price"`
	Stock      *int              `json:"stock"`
}

// ParseListing converts a fetched listing page into a Product snapshot.
// productID is the ID extracted from the URL and wins over the page's own
// item ID when the two disagree.
func ParseListing(body []byte, productID string) (*Product, error) {
	match := runParamsRe.FindSubmatch(body)
	if match == nil {
		return nil, errors.New(errors.CodeSupplierParse, "no embedded product state in page")
	}

	var payload listingPayload
	if err := json.Unmarshal(match[1], &payload); err != nil {
		return nil, errors.Wrap(errors.CodeSupplierParse, err, "decoding embedded product state")
	}

	data := payload.Data
	if data.Title == "" {
		return nil, errors.New(errors.CodeSupplierParse, "embedded state has no product title")
	}

	price, err := parsePrice(data.Price.Value)
	if err != nil {
		return nil, errors.Wrap(errors.CodeSupplierParse, err, "parsing product price")
	}

	currency := enums.CurrencyUSD
	if data.Price.Currency != "" {
		parsed, err := enums.ParseCurrency(strings.ToUpper(data.Price.Currency))
		if err != nil {
			return nil, errors.Wrap(errors.CodeSupplierParse, err, "parsing product currency")
		}
		currency = parsed
	}

	if productID == "" {
		productID = data.ItemID
	}
	if productID == "" {
		return nil, errors.New(errors.CodeSupplierParse, "embedded state has no item id")
	}

	product := &Product{
		SupplierProductID: productID,
		Title:             data.Title,
		Description:       data.Description,
		Price:             price,
		Currency:          currency,
		Stock:             data.Stock,
		ImageURLs:         data.Images,
	}

	for i, v := range data.Variants {
		if v.SKU == "" {
			return nil, errors.New(errors.CodeSupplierParse, fmt.Sprintf("variant %d has no sku", i))
		}
		variantPrice, err := parsePrice(v.Price)
		if err != nil {
			return nil, errors.Wrap(errors.CodeSupplierParse, err, fmt.Sprintf("parsing price of variant %q", v.SKU))
		}
		product.Variants = append(product.Variants, Variant{
			SKU:        v.SKU,
			Attributes: v.Attributes,
			Price:      variantPrice,
			Stock:      v.Stock,
		})
	}

	return product, nil
}

func parsePrice(value json.Number) (decimal.Decimal, error) {
	raw := strings.TrimSpace(value.String())
	if raw == "" {
		return decimal.Zero, fmt.Errorf("missing price value")
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, err
	}
	if price.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative price %s", price)
	}
	return price, nil
}
