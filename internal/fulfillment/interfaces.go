package fulfillment

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mkellerhals/sourcelane-backend/pkg/db/models"
	"github.com/mkellerhals/sourcelane-backend/pkg/pagination"
)

// Repository defines persistence operations for dropship fulfillment.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateDropshipOrder(ctx context.Context, order *models.DropshipOrder) (*models.DropshipOrder, error)
	CreateDropshipOrderItems(ctx context.Context, items []models.DropshipOrderItem) error
	FindDropshipOrder(ctx context.Context, orderID uuid.UUID) (*models.DropshipOrder, error)
	FindDropshipOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.DropshipOrder, error)
	FindDropshipOrderByStoreOrder(ctx context.Context, storeOrderID uuid.UUID) (*models.DropshipOrder, error)
	ListDropshipOrders(ctx context.Context, params ListParams) ([]models.DropshipOrder, *pagination.Cursor, error)
	UpdateDropshipOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	FindStoreOrder(ctx context.Context, orderID uuid.UUID) (*models.StoreOrder, error)
	UpdateStoreOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	UpsertShipment(ctx context.Context, shipment *models.Shipment) error
	FindProductSourcesBySlugs(ctx context.Context, slugs []string) ([]models.ProductSource, error)
}
