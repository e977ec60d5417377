package fulfillment

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mkellerhals/sourcelane-backend/pkg/db/models"
	"github.com/mkellerhals/sourcelane-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a fulfillment repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateDropshipOrder(ctx context.Context, order *models.DropshipOrder) (*models.DropshipOrder, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) CreateDropshipOrderItems(ctx context.Context, items []models.DropshipOrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) FindDropshipOrder(ctx context.Context, orderID uuid.UUID) (*models.DropshipOrder, error) {
	var order models.DropshipOrder
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindDropshipOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.DropshipOrder, error) {
	var order models.DropshipOrder
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindDropshipOrderByStoreOrder(ctx context.Context, storeOrderID uuid.UUID) (*models.DropshipOrder, error) {
	var order models.DropshipOrder
	err := r.db.WithContext(ctx).
		Where("store_order_id = ?", storeOrderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListDropshipOrders(ctx context.Context, params ListParams) ([]models.DropshipOrder, *pagination.Cursor, error) {
	limit := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.DropshipOrder{})
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Cursor != nil {
		query = query.Where(
			"(created_at, id) < (?, ?)",
			params.Cursor.CreatedAt, params.Cursor.ID,
		)
	}

	var orders []models.DropshipOrder
	err := query.
		Order("created_at DESC, id DESC").
		Limit(limit + 1).
		Find(&orders).Error
	if err != nil {
		return nil, nil, err
	}

	var next *pagination.Cursor
	if len(orders) > limit {
		orders = orders[:limit]
		last := orders[len(orders)-1]
		next = &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return orders, next, nil
}

func (r *repository) UpdateDropshipOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.DropshipOrder{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}

func (r *repository) FindStoreOrder(ctx context.Context, orderID uuid.UUID) (*models.StoreOrder, error) {
	var order models.StoreOrder
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) UpdateStoreOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.StoreOrder{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}

func (r *repository) UpsertShipment(ctx context.Context, shipment *models.Shipment) error {
	// Tracking corrections arrive without timestamps; never let them null
	// out shipped_at/delivered_at already recorded on the row.
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "order_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"tracking_number": shipment.TrackingNumber,
				"carrier":         shipment.Carrier,
				"tracking_url":    shipment.TrackingURL,
				"shipped_at":      gorm.Expr("COALESCE(excluded.shipped_at, shipments.shipped_at)"),
				"delivered_at":    gorm.Expr("COALESCE(excluded.delivered_at, shipments.delivered_at)"),
				"updated_at":      gorm.Expr("now()"),
			}),
		}).
		Create(shipment).Error
}

func (r *repository) FindProductSourcesBySlugs(ctx context.Context, slugs []string) ([]models.ProductSource, error) {
	if len(slugs) == 0 {
		return nil, nil
	}
	var sources []models.ProductSource
	err := r.db.WithContext(ctx).
		Where("product_slug IN ?", slugs).
		Order("created_at ASC").
		Find(&sources).Error
	if err != nil {
		return nil, err
	}
	return sources, nil
}
