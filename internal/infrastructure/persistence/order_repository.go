package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/cryptonexus/backend/internal/domain/trade"
	"github.com/cryptonexus/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOrderRepository implements OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// FindByID finds an order by ID
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*trade.Order, error) {
	return r.findOne(Conn(ctx, r.db).Where("id = ?", id))
}

// FindByNumber finds an order by its ORD-XXXXXXXX number
func (r *GormOrderRepository) FindByNumber(ctx context.Context, orderNumber string) (*trade.Order, error) {
	return r.findOne(Conn(ctx, r.db).Where("order_number = ?", orderNumber))
}

// FindByNumberForUpdate finds an order by number and locks its row
func (r *GormOrderRepository) FindByNumberForUpdate(ctx context.Context, orderNumber string) (*trade.Order, error) {
	return r.findOne(Conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_number = ?", orderNumber))
}

// FindByPaymentAddress finds the order paying into address
func (r *GormOrderRepository) FindByPaymentAddress(ctx context.Context, address string) (*trade.Order, error) {
	if address == "" {
		return nil, shared.ErrNotFound
	}
	return r.findOne(Conn(ctx, r.db).Where("payment_address = ?", address))
}

func (r *GormOrderRepository) findOne(query *gorm.DB) (*trade.Order, error) {
	var model models.OrderModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if err := r.loadDisputes(query.Session(&gorm.Session{NewDB: true}), []*models.OrderModel{&model}); err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll lists orders matching the filter, newest first
func (r *GormOrderRepository) FindAll(ctx context.Context, filter trade.OrderFilter) ([]*trade.Order, int64, error) {
	query := Conn(ctx, r.db).Model(&models.OrderModel{})
	if filter.BuyerID != nil {
		query = query.Where("buyer_id = ?", *filter.BuyerID)
	}
	if filter.VendorID != nil {
		query = query.Where("vendor_id = ?", *filter.VendorID)
	}
	if filter.Participant != nil {
		query = query.Where("buyer_id = ? OR vendor_id = ?", *filter.Participant, *filter.Participant)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.OrderModel
	if err := query.Order("created_at DESC").
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	orders, err := r.toOrders(Conn(ctx, r.db), rows)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// FindOverdueUnpaid returns pending_payment orders whose payment window closed
func (r *GormOrderRepository) FindOverdueUnpaid(ctx context.Context, now time.Time, limit int) ([]*trade.Order, error) {
	var rows []models.OrderModel
	if err := Conn(ctx, r.db).
		Where("status = ? AND payment_expires_at IS NOT NULL AND payment_expires_at < ?", trade.OrderStatusPendingPayment, now).
		Order("payment_expires_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return r.toOrders(Conn(ctx, r.db), rows)
}

// Stats counts orders per dashboard bucket
func (r *GormOrderRepository) Stats(ctx context.Context) (trade.OrderStats, error) {
	var rows []struct {
		Status trade.OrderStatus
		Count  int64
	}
	if err := Conn(ctx, r.db).Model(&models.OrderModel{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return trade.OrderStats{}, err
	}

	var stats trade.OrderStats
	for _, row := range rows {
		stats.TotalOrders += row.Count
		switch row.Status {
		case trade.OrderStatusPendingPayment:
			stats.PendingPayments += row.Count
		case trade.OrderStatusPaid:
			stats.PaidOrders += row.Count
		case trade.OrderStatusDisputed:
			stats.DisputedOrders += row.Count
		case trade.OrderStatusDelivered:
			stats.DeliveredOrders += row.Count
		case trade.OrderStatusConfirmed:
			stats.CompletedOrders += row.Count
		}
	}
	return stats, nil
}

// FindRecent returns the newest orders
func (r *GormOrderRepository) FindRecent(ctx context.Context, limit int) ([]*trade.Order, error) {
	var rows []models.OrderModel
	if err := Conn(ctx, r.db).Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return r.toOrders(Conn(ctx, r.db), rows)
}

// Save creates or updates an order and its dispute. An update of a row
// changed since the order was read fails with shared.ErrConcurrencyConflict.
func (r *GormOrderRepository) Save(ctx context.Context, order *trade.Order) error {
	model := models.OrderModelFromDomain(order)
	db := Conn(ctx, r.db)
	if err := saveVersioned(db, model, order); err != nil {
		return err
	}
	if model.Dispute != nil {
		return db.Save(model.Dispute).Error
	}
	return nil
}

func (r *GormOrderRepository) toOrders(db *gorm.DB, rows []models.OrderModel) ([]*trade.Order, error) {
	ptrs := make([]*models.OrderModel, len(rows))
	for i := range rows {
		ptrs[i] = &rows[i]
	}
	if err := r.loadDisputes(db, ptrs); err != nil {
		return nil, err
	}
	orders := make([]*trade.Order, len(rows))
	for i := range rows {
		orders[i] = rows[i].ToDomain()
	}
	return orders, nil
}

func (r *GormOrderRepository) loadDisputes(db *gorm.DB, rows []*models.OrderModel) error {
	if len(rows) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	var disputes []models.DisputeModel
	if err := db.Where("order_id IN ?", ids).Find(&disputes).Error; err != nil {
		return err
	}
	byOrder := make(map[uuid.UUID]*models.DisputeModel, len(disputes))
	for i := range disputes {
		byOrder[disputes[i].OrderID] = &disputes[i]
	}
	for _, row := range rows {
		row.Dispute = byOrder[row.ID]
	}
	return nil
}

var _ trade.OrderRepository = (*GormOrderRepository)(nil)
