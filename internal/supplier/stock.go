package supplier

// StockValidatorConfig tunes the sellability policy applied to a scraped
// product.
type StockValidatorConfig struct {
	// MinStockThreshold is the smallest reported stock count a variant may
	// have and still count as available. Zero stock is always out.
	MinStockThreshold int
	// RejectOnPartialStock fails the product when any variant is out.
	RejectOnPartialStock bool
	// MaxOutOfStockVariants caps how many variants may be out before the
	// product fails. Negative means unbounded.
	MaxOutOfStockVariants int
	// MinInStockPercentage is the lowest acceptable available/total ratio,
	// expressed as 0-100.
	MinInStockPercentage float64
}

// DefaultStockValidatorConfig mirrors the permissive defaults used for
// one-click imports.
func DefaultStockValidatorConfig() StockValidatorConfig {
	return StockValidatorConfig{
		MinStockThreshold:     1,
		RejectOnPartialStock:  false,
		MaxOutOfStockVariants: -1,
		MinInStockPercentage:  0,
	}
}

// StockValidator is a pure policy over Product snapshots; it performs no I/O.
type StockValidator struct {
	cfg StockValidatorConfig
}

// NewStockValidator builds a validator, normalizing nonsensical settings.
func NewStockValidator(cfg StockValidatorConfig) *StockValidator {
	if cfg.MinStockThreshold < 1 {
		cfg.MinStockThreshold = 1
	}
	if cfg.MinInStockPercentage < 0 {
		cfg.MinInStockPercentage = 0
	}
	if cfg.MinInStockPercentage > 100 {
		cfg.MinInStockPercentage = 100
	}
	return &StockValidator{cfg: cfg}
}

// Validate partitions a product's variants into available and out-of-stock
// and decides overall sellability.
func (v *StockValidator) Validate(product *Product) StockValidationResult {
	if !product.HasVariants() {
		return v.validateSingle(product)
	}

	result := StockValidationResult{}
	for _, variant := range product.Variants {
		if variantAvailable(variant, v.cfg.MinStockThreshold) {
			result.AvailableVariants = append(result.AvailableVariants, variant)
			if variant.Stock != nil {
				result.TotalAvailableStock += *variant.Stock
			}
		} else {
			result.OutOfStockVariants = append(result.OutOfStockVariants, variant)
		}
	}

	total := len(product.Variants)
	available := len(result.AvailableVariants)
	outOfStock := len(result.OutOfStockVariants)

	result.IsCompletelyOutOfStock = available == 0
	result.HasPartialStock = outOfStock > 0 && available > 0

	switch {
	case available == 0:
		result.Reason = "all variants are out of stock"
	case v.cfg.RejectOnPartialStock && outOfStock > 0:
		result.Reason = "partial stock rejected by policy"
	case v.cfg.MaxOutOfStockVariants >= 0 && outOfStock > v.cfg.MaxOutOfStockVariants:
		result.Reason = "too many variants out of stock"
	case float64(available)/float64(total)*100 < v.cfg.MinInStockPercentage:
		result.Reason = "in-stock percentage below minimum"
	default:
		result.IsValid = true
	}
	return result
}

// validateSingle covers products without a variant matrix. Unlike variants,
// a missing stock number on a single-SKU product fails closed.
func (v *StockValidator) validateSingle(product *Product) StockValidationResult {
	result := StockValidationResult{}
	if product.Stock == nil {
		result.IsCompletelyOutOfStock = true
		result.Reason = "product reports no stock number"
		return result
	}
	if *product.Stock < v.cfg.MinStockThreshold {
		result.IsCompletelyOutOfStock = true
		result.Reason = "product stock below minimum"
		return result
	}
	result.IsValid = true
	result.TotalAvailableStock = *product.Stock
	return result
}

// variantAvailable treats an unreported stock count as available; a reported
// zero is always out regardless of threshold.
func variantAvailable(variant Variant, threshold int) bool {
	if variant.Stock == nil {
		return true
	}
	if *variant.Stock == 0 {
		return false
	}
	return *variant.Stock >= threshold
}

// InventoryHealthScore rates a product 0-100: 70% variant availability
// ratio, 30% total stock normalized against a 100 unit cap.
func (v *StockValidator) InventoryHealthScore(product *Product) int {
	result := v.Validate(product)

	var availabilityRatio float64
	if product.HasVariants() {
		availabilityRatio = float64(len(result.AvailableVariants)) / float64(len(product.Variants))
	} else if result.IsValid {
		availabilityRatio = 1
	}

	stockRatio := float64(result.TotalAvailableStock) / 100
	if stockRatio > 1 {
		stockRatio = 1
	}

	score := availabilityRatio*70 + stockRatio*30
	if score > 100 {
		score = 100
	}
	return int(score)
}

// RecommendAction triages an import for an operator.
func (v *StockValidator) RecommendAction(product *Product) RecommendedAction {
	result := v.Validate(product)

	switch {
	case result.IsCompletelyOutOfStock:
		return ActionHideProduct
	case result.HasPartialStock && len(result.OutOfStockVariants) > len(result.AvailableVariants):
		return ActionHideVariants
	case result.HasPartialStock:
		return ActionUpdateStock
	default:
		return ActionNone
	}
}
