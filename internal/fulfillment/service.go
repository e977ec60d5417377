package fulfillment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mkellerhals/sourcelane-backend/pkg/config"
	"github.com/mkellerhals/sourcelane-backend/pkg/db/models"
	"github.com/mkellerhals/sourcelane-backend/pkg/enums"
	pkgerrors "github.com/mkellerhals/sourcelane-backend/pkg/errors"
	"github.com/mkellerhals/sourcelane-backend/pkg/logger"
	"github.com/mkellerhals/sourcelane-backend/pkg/metrics"
	"github.com/mkellerhals/sourcelane-backend/pkg/outbox"
	"github.com/mkellerhals/sourcelane-backend/pkg/outbox/payloads"
	"github.com/mkellerhals/sourcelane-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service exposes dropship fulfillment operations.
type Service interface {
	CreateForOrder(ctx context.Context, order *models.StoreOrder, items []models.StoreOrderItem) (*models.DropshipOrder, error)
	CreateFromStoreOrder(ctx context.Context, storeOrderID uuid.UUID) (*models.DropshipOrder, error)
	Get(ctx context.Context, orderID uuid.UUID) (*models.DropshipOrder, error)
	List(ctx context.Context, query ListQuery) (*OrderList, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.DropshipOrderStatus) error
	AddTracking(ctx context.Context, orderID uuid.UUID, input TrackingInput) error
	MarkPlaced(ctx context.Context, orderID uuid.UUID, supplierOrderID string) error
	MarkShipped(ctx context.Context, orderID uuid.UUID, input TrackingInput) error
	MarkDelivered(ctx context.Context, orderID uuid.UUID) error
	ReportIssue(ctx context.Context, orderID uuid.UUID, description string) error
}

// ServiceParams collects the fulfillment service dependencies.
type ServiceParams struct {
	Repo     Repository
	Tx       txRunner
	Outbox   outboxPublisher
	Metrics  *metrics.FulfillmentMetrics
	Logger   *logger.Logger
	Shipping config.ShippingConfig
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	metrics  *metrics.FulfillmentMetrics
	logg     *logger.Logger
	shipping config.ShippingConfig
}

// NewService wires the fulfillment service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "fulfillment repository required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox service required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		outbox:   params.Outbox,
		metrics:  params.Metrics,
		logg:     params.Logger,
		shipping: params.Shipping,
	}, nil
}

// CreateForOrder derives a dropship order from a paid store order. Items
// whose product slug has no supplier source are not dropshipped; when no item
// matches at all this is a successful no-op and returns nil.
func (s *service) CreateForOrder(ctx context.Context, order *models.StoreOrder, items []models.StoreOrderItem) (*models.DropshipOrder, error) {
	if order == nil || order.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store order required")
	}
	if len(items) == 0 {
		return nil, nil
	}

	slugs := make([]string, 0, len(items))
	seen := map[string]bool{}
	for _, item := range items {
		if item.ProductSlug != "" && !seen[item.ProductSlug] {
			seen[item.ProductSlug] = true
			slugs = append(slugs, item.ProductSlug)
		}
	}

	sources, err := s.repo.FindProductSourcesBySlugs(ctx, slugs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product sources")
	}
	// First source per slug wins; the repository orders by creation time.
	bySlug := map[string]*models.ProductSource{}
	for i := range sources {
		source := &sources[i]
		if _, ok := bySlug[source.ProductSlug]; !ok {
			bySlug[source.ProductSlug] = source
		}
	}

	type matchedItem struct {
		item   models.StoreOrderItem
		source *models.ProductSource
		sku    *string
	}
	matched := []matchedItem{}
	supplierName := ""
	for _, item := range items {
		source, ok := bySlug[item.ProductSlug]
		if !ok {
			continue
		}
		if supplierName == "" {
			supplierName = source.SupplierName
		}
		matched = append(matched, matchedItem{
			item:   item,
			source: source,
			sku:    resolveSupplierSKU(source, item.SKU),
		})
	}
	if len(matched) == 0 {
		return nil, nil
	}

	itemsCost := decimal.Zero
	for _, m := range matched {
		itemsCost = itemsCost.Add(m.source.OriginalPrice.Mul(decimal.NewFromInt(int64(m.item.Qty))))
	}
	shippingCost := s.estimateShipping(len(matched))
	totalCost := itemsCost.Add(shippingCost)

	var created *models.DropshipOrder
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if _, err := repo.FindDropshipOrderByStoreOrder(ctx, order.ID); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "dropship order already exists for store order")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing dropship order")
		}

		row := &models.DropshipOrder{
			StoreOrderID:    order.ID,
			Status:          enums.DropshipOrderStatusPending,
			SupplierName:    supplierName,
			CustomerName:    order.CustomerName,
			CustomerEmail:   order.CustomerEmail,
			CustomerPhone:   order.CustomerPhone,
			ShippingAddress: order.ShippingAddress,
			ItemsCost:       itemsCost,
			ShippingCost:    shippingCost,
			TotalCost:       totalCost,
			Currency:        enums.CurrencyUSD,
		}
		saved, err := repo.CreateDropshipOrder(ctx, row)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create dropship order")
		}

		rows := make([]models.DropshipOrderItem, 0, len(matched))
		for _, m := range matched {
			rows = append(rows, models.DropshipOrderItem{
				DropshipOrderID:  saved.ID,
				ProductSourceID:  m.source.ID,
				StoreOrderItemID: m.item.ID,
				SupplierSKU:      m.sku,
				Qty:              m.item.Qty,
				UnitCost:         m.source.OriginalPrice,
				TotalCost:        m.source.OriginalPrice.Mul(decimal.NewFromInt(int64(m.item.Qty))),
			})
		}
		if err := repo.CreateDropshipOrderItems(ctx, rows); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create dropship order items")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDropshipOrderCreated,
			AggregateType: enums.AggregateDropshipOrder,
			AggregateID:   saved.ID,
			Data: payloads.DropshipOrderCreatedEvent{
				OrderID:      saved.ID,
				StoreOrderID: order.ID,
				SupplierName: supplierName,
				ItemCount:    len(rows),
				TotalCost:    totalCost,
				Currency:     saved.Currency,
			},
			Version: 1,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue created event")
		}

		created = saved
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithOrderID(ctx, created.ID.String())
	s.logg.Info(logCtx, "dropship order created")
	return created, nil
}

// CreateFromStoreOrder loads the store order and runs CreateForOrder on its
// items. Returns NOT_FOUND when the store order does not exist.
func (s *service) CreateFromStoreOrder(ctx context.Context, storeOrderID uuid.UUID) (*models.DropshipOrder, error) {
	if storeOrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store order id required")
	}
	order, err := s.repo.FindStoreOrder(ctx, storeOrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "store order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load store order")
	}
	return s.CreateForOrder(ctx, order, order.Items)
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.DropshipOrder, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindDropshipOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "dropship order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find dropship order")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, query ListQuery) (*OrderList, error) {
	params := ListParams{Limit: query.Limit}
	if query.Status != "" {
		status, err := enums.ParseDropshipOrderStatus(query.Status)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		params.Status = &status
	}
	if query.Cursor != "" {
		cursor, err := pagination.ParseCursor(query.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		params.Cursor = cursor
	}

	orders, next, err := s.repo.ListDropshipOrders(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list dropship orders")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &OrderList{Items: orders, Cursor: cursor}, nil
}

// UpdateStatus applies a generic table-checked transition with no extra
// side effects beyond the status-changed event.
func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.DropshipOrderStatus) error {
	return s.transition(ctx, orderID, status, nil, nil)
}

// AddTracking records shipment data without changing status.
func (s *service) AddTracking(ctx context.Context, orderID uuid.UUID, input TrackingInput) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.TrackingNumber == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "tracking number required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.lockOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if order.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is "+order.Status.String()+" and can no longer change")
		}
		updates := map[string]any{
			"tracking_number": input.TrackingNumber,
			"carrier":         input.Carrier,
			"tracking_url":    input.TrackingURL,
		}
		if err := repo.UpdateDropshipOrder(ctx, orderID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update tracking")
		}
		return s.writeShipment(ctx, repo, order.StoreOrderID, input, nil, nil)
	})
}

// MarkPlaced moves a pending order to placed once the supplier-side order
// reference is known.
func (s *service) MarkPlaced(ctx context.Context, orderID uuid.UUID, supplierOrderID string) error {
	if supplierOrderID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "supplier order id required")
	}
	now := time.Now().UTC()
	return s.transition(ctx, orderID, enums.DropshipOrderStatusPlaced,
		func(order *models.DropshipOrder) error {
			if order.Status != enums.DropshipOrderStatusPending {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "only a pending order can be marked placed")
			}
			return nil
		},
		func(ctx context.Context, tx *gorm.DB, repo Repository, order *models.DropshipOrder) error {
			updates := map[string]any{
				"supplier_order_id": supplierOrderID,
				"placed_at":         now,
			}
			if err := repo.UpdateDropshipOrder(ctx, orderID, updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record supplier order id")
			}
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventDropshipOrderPlaced,
				AggregateType: enums.AggregateDropshipOrder,
				AggregateID:   order.ID,
				Data: payloads.DropshipOrderPlacedEvent{
					OrderID:         order.ID,
					StoreOrderID:    order.StoreOrderID,
					SupplierOrderID: supplierOrderID,
				},
				Version: 1,
			})
		})
}

// MarkShipped moves a placed or confirmed order to shipped and, in the same
// transaction, updates the parent store order and the shared shipment record.
// The customer notification rides the outbox and can never roll this back.
func (s *service) MarkShipped(ctx context.Context, orderID uuid.UUID, input TrackingInput) error {
	if input.TrackingNumber == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "tracking number required")
	}
	now := time.Now().UTC()
	return s.transition(ctx, orderID, enums.DropshipOrderStatusShipped,
		func(order *models.DropshipOrder) error {
			if order.Status != enums.DropshipOrderStatusPlaced && order.Status != enums.DropshipOrderStatusConfirmed {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "only a placed or confirmed order can be marked shipped")
			}
			return nil
		},
		func(ctx context.Context, tx *gorm.DB, repo Repository, order *models.DropshipOrder) error {
			updates := map[string]any{
				"tracking_number": input.TrackingNumber,
				"carrier":         input.Carrier,
				"tracking_url":    input.TrackingURL,
				"shipped_at":      now,
			}
			if err := repo.UpdateDropshipOrder(ctx, orderID, updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record shipment on dropship order")
			}
			storeUpdates := map[string]any{
				"status":     enums.StoreOrderStatusShipped,
				"shipped_at": now,
			}
			if err := repo.UpdateStoreOrder(ctx, order.StoreOrderID, storeUpdates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record shipment on store order")
			}
			if err := s.writeShipment(ctx, repo, order.StoreOrderID, input, &now, nil); err != nil {
				return err
			}
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventDropshipOrderShipped,
				AggregateType: enums.AggregateDropshipOrder,
				AggregateID:   order.ID,
				Data: payloads.DropshipOrderShippedEvent{
					OrderID:        order.ID,
					StoreOrderID:   order.StoreOrderID,
					CustomerName:   order.CustomerName,
					CustomerEmail:  order.CustomerEmail,
					TrackingNumber: input.TrackingNumber,
					Carrier:        input.Carrier,
					TrackingURL:    input.TrackingURL,
				},
				Version: 1,
			})
		})
}

// MarkDelivered closes out a shipped order and its parent records.
func (s *service) MarkDelivered(ctx context.Context, orderID uuid.UUID) error {
	now := time.Now().UTC()
	return s.transition(ctx, orderID, enums.DropshipOrderStatusDelivered,
		func(order *models.DropshipOrder) error {
			if order.Status != enums.DropshipOrderStatusShipped {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "only a shipped order can be marked delivered")
			}
			return nil
		},
		func(ctx context.Context, tx *gorm.DB, repo Repository, order *models.DropshipOrder) error {
			if err := repo.UpdateDropshipOrder(ctx, orderID, map[string]any{"delivered_at": now}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record delivery on dropship order")
			}
			storeUpdates := map[string]any{
				"status":       enums.StoreOrderStatusDelivered,
				"delivered_at": now,
			}
			if err := repo.UpdateStoreOrder(ctx, order.StoreOrderID, storeUpdates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record delivery on store order")
			}
			shipment := &models.Shipment{
				OrderID:     order.StoreOrderID,
				DeliveredAt: &now,
			}
			if order.TrackingNumber != nil {
				shipment.TrackingNumber = order.TrackingNumber
				shipment.Carrier = order.Carrier
				shipment.TrackingURL = order.TrackingURL
				shipment.ShippedAt = order.ShippedAt
			}
			if err := repo.UpsertShipment(ctx, shipment); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record delivery on shipment")
			}
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventDropshipOrderDelivered,
				AggregateType: enums.AggregateDropshipOrder,
				AggregateID:   order.ID,
				Data: payloads.DropshipOrderDeliveredEvent{
					OrderID:       order.ID,
					StoreOrderID:  order.StoreOrderID,
					CustomerName:  order.CustomerName,
					CustomerEmail: order.CustomerEmail,
				},
				Version: 1,
			})
		})
}

// ReportIssue parks any non-terminal order in the issue state and routes a
// notification to the operator channel instead of the customer.
func (s *service) ReportIssue(ctx context.Context, orderID uuid.UUID, description string) error {
	if description == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "issue description required")
	}
	err := s.transition(ctx, orderID, enums.DropshipOrderStatusIssue, nil,
		func(ctx context.Context, tx *gorm.DB, repo Repository, order *models.DropshipOrder) error {
			if err := repo.UpdateDropshipOrder(ctx, orderID, map[string]any{"issue_notes": description}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record issue notes")
			}
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventDropshipOrderIssue,
				AggregateType: enums.AggregateDropshipOrder,
				AggregateID:   order.ID,
				Data: payloads.DropshipOrderIssueEvent{
					OrderID:      order.ID,
					StoreOrderID: order.StoreOrderID,
					Issue:        description,
				},
				Version: 1,
			})
		})
	if err == nil && s.metrics != nil {
		s.metrics.IncIssue()
	}
	return err
}

// transition is the shared skeleton of every status change: lock the row,
// check the extra precondition, check the table, write the new status, run
// the side effects, emit the generic status-changed event.
func (s *service) transition(
	ctx context.Context,
	orderID uuid.UUID,
	target enums.DropshipOrderStatus,
	precondition func(*models.DropshipOrder) error,
	sideEffects func(context.Context, *gorm.DB, Repository, *models.DropshipOrder) error,
) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var from enums.DropshipOrderStatus
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.lockOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		from = order.Status

		if precondition != nil {
			if err := precondition(order); err != nil {
				return err
			}
		}
		if err := Transition(order.Status, target); err != nil {
			return err
		}

		if err := repo.UpdateDropshipOrder(ctx, orderID, map[string]any{"status": target}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if sideEffects != nil {
			if err := sideEffects(ctx, tx, repo, order); err != nil {
				return err
			}
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDropshipOrderStatusChanged,
			AggregateType: enums.AggregateDropshipOrder,
			AggregateID:   order.ID,
			Data: payloads.DropshipOrderStatusChangedEvent{
				OrderID: order.ID,
				From:    order.Status,
				To:      target,
			},
			Version: 1,
		})
	})

	if s.metrics != nil {
		if err != nil && pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
			s.metrics.IncRejected(from.String(), target.String())
		} else if err == nil {
			s.metrics.IncTransition(from.String(), target.String())
		}
	}
	if err == nil {
		logCtx := s.logg.WithOrderID(ctx, orderID.String())
		logCtx = s.logg.WithField(logCtx, "status", target.String())
		s.logg.Info(logCtx, "dropship order transitioned")
	}
	return err
}

func (s *service) lockOrder(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.DropshipOrder, error) {
	order, err := repo.FindDropshipOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "dropship order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find dropship order")
	}
	return order, nil
}

func (s *service) writeShipment(ctx context.Context, repo Repository, storeOrderID uuid.UUID, input TrackingInput, shippedAt, deliveredAt *time.Time) error {
	tracking := input.TrackingNumber
	shipment := &models.Shipment{
		OrderID:        storeOrderID,
		TrackingNumber: &tracking,
		Carrier:        input.Carrier,
		TrackingURL:    input.TrackingURL,
		ShippedAt:      shippedAt,
		DeliveredAt:    deliveredAt,
	}
	if err := repo.UpsertShipment(ctx, shipment); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert shipment")
	}
	return nil
}

// estimateShipping prices the supplier shipment as a base fee plus a reduced
// per-item fee for every matched line item after the first. Quantity within a
// line does not change the estimate.
func (s *service) estimateShipping(itemCount int) decimal.Decimal {
	base := s.shipping.BaseCents
	perItem := s.shipping.PerItemCents
	if itemCount < 1 {
		itemCount = 1
	}
	cents := base + perItem*int64(itemCount-1)
	return decimal.New(cents, -2)
}

func resolveSupplierSKU(source *models.ProductSource, catalogSKU *string) *string {
	if catalogSKU != nil && source.VariantSKUMap != nil {
		if mapped, ok := source.VariantSKUMap[*catalogSKU]; ok && mapped != "" {
			sku := mapped
			return &sku
		}
	}
	return source.SupplierSKU
}
