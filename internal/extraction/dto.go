package extraction

import (
	"github.com/google/uuid"

	"github.com/mkellerhals/sourcelane-backend/internal/supplier"
)

// PreviewResult is the read-only outcome of a preview run. Nothing is
// persisted; the operator decides whether to commit the import.
type PreviewResult struct {
	Product           *supplier.Product              `json:"product"`
	Stock             supplier.StockValidationResult `json:"stock"`
	InventoryScore    int                            `json:"inventoryScore"`
	RecommendedAction supplier.RecommendedAction     `json:"recommendedAction"`
}

// ImportInput describes one requested supplier import.
type ImportInput struct {
	OwnerID        uuid.UUID
	SupplierURL    string
	CategoryID     *uuid.UUID
	DownloadImages bool
}

// ImportResult identifies the catalog records an import created.
type ImportResult struct {
	ProductID   uuid.UUID `json:"productId"`
	ProductSlug string    `json:"productSlug"`
	SourceID    uuid.UUID `json:"sourceId"`
	ImageCount  int       `json:"imageCount"`
}
