package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/cryptonexus/backend/internal/domain/payment"
	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/cryptonexus/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormPaymentAddressRepository implements PaymentAddressRepository using GORM
type GormPaymentAddressRepository struct {
	db *gorm.DB
}

// NewGormPaymentAddressRepository creates a new GormPaymentAddressRepository
func NewGormPaymentAddressRepository(db *gorm.DB) *GormPaymentAddressRepository {
	return &GormPaymentAddressRepository{db: db}
}

// FindByID finds a payment address by ID
func (r *GormPaymentAddressRepository) FindByID(ctx context.Context, id uuid.UUID) (*payment.PaymentAddress, error) {
	return r.findOne(Conn(ctx, r.db).Where("id = ?", id))
}

// FindByOrderID finds the payment address of an order
func (r *GormPaymentAddressRepository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*payment.PaymentAddress, error) {
	return r.findOne(Conn(ctx, r.db).Where("order_id = ?", orderID))
}

// FindByInvoiceID finds a payment address by BTCPay invoice ID
func (r *GormPaymentAddressRepository) FindByInvoiceID(ctx context.Context, invoiceID string) (*payment.PaymentAddress, error) {
	if invoiceID == "" {
		return nil, shared.ErrNotFound
	}
	return r.findOne(Conn(ctx, r.db).Where("btcpay_invoice_id = ?", invoiceID))
}

// FindByAddress finds a payment address by its on-chain address
func (r *GormPaymentAddressRepository) FindByAddress(ctx context.Context, address string) (*payment.PaymentAddress, error) {
	return r.findOne(Conn(ctx, r.db).Where("address = ?", address))
}

func (r *GormPaymentAddressRepository) findOne(query *gorm.DB) (*payment.PaymentAddress, error) {
	var model models.PaymentAddressModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindOverdue returns pending addresses whose window closed before now
func (r *GormPaymentAddressRepository) FindOverdue(ctx context.Context, now time.Time, limit int) ([]*payment.PaymentAddress, error) {
	var rows []models.PaymentAddressModel
	if err := Conn(ctx, r.db).
		Where("status = ? AND expires_at < ?", payment.AddressStatusPending, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toPaymentAddresses(rows), nil
}

// FindOpenByCurrency returns pending or partial addresses of one currency
func (r *GormPaymentAddressRepository) FindOpenByCurrency(ctx context.Context, currency shared.CryptoCurrency, limit int) ([]*payment.PaymentAddress, error) {
	var rows []models.PaymentAddressModel
	if err := Conn(ctx, r.db).
		Where("crypto_currency = ? AND status IN ?", currency,
			[]payment.AddressStatus{payment.AddressStatusPending, payment.AddressStatusPartial}).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toPaymentAddresses(rows), nil
}

// CountByStatus counts addresses per status
func (r *GormPaymentAddressRepository) CountByStatus(ctx context.Context) (map[payment.AddressStatus]int64, error) {
	var rows []struct {
		Status payment.AddressStatus
		Count  int64
	}
	if err := Conn(ctx, r.db).Model(&models.PaymentAddressModel{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[payment.AddressStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

// Save creates or updates a payment address, refusing stale writes
func (r *GormPaymentAddressRepository) Save(ctx context.Context, address *payment.PaymentAddress) error {
	if err := saveVersioned(Conn(ctx, r.db), models.PaymentAddressModelFromDomain(address), address); err != nil {
		if isUniqueViolation(err) {
			return shared.NewDomainError("ALREADY_EXISTS", "Payment address already exists for this order")
		}
		return err
	}
	return nil
}

func toPaymentAddresses(rows []models.PaymentAddressModel) []*payment.PaymentAddress {
	out := make([]*payment.PaymentAddress, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out
}

var _ payment.PaymentAddressRepository = (*GormPaymentAddressRepository)(nil)

// GormEscrowRepository implements EscrowRepository using GORM
type GormEscrowRepository struct {
	db *gorm.DB
}

// NewGormEscrowRepository creates a new GormEscrowRepository
func NewGormEscrowRepository(db *gorm.DB) *GormEscrowRepository {
	return &GormEscrowRepository{db: db}
}

// FindByID finds an escrow by ID
func (r *GormEscrowRepository) FindByID(ctx context.Context, id uuid.UUID) (*payment.EscrowPayment, error) {
	return r.findOne(Conn(ctx, r.db).Where("id = ?", id))
}

// FindByOrderID finds the escrow of an order
func (r *GormEscrowRepository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*payment.EscrowPayment, error) {
	return r.findOne(Conn(ctx, r.db).Where("order_id = ?", orderID))
}

// FindByPaymentAddressID finds the escrow attached to a payment address
func (r *GormEscrowRepository) FindByPaymentAddressID(ctx context.Context, addressID uuid.UUID) (*payment.EscrowPayment, error) {
	return r.findOne(Conn(ctx, r.db).Where("payment_address_id = ?", addressID))
}

func (r *GormEscrowRepository) findOne(query *gorm.DB) (*payment.EscrowPayment, error) {
	var model models.EscrowPaymentModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll lists escrows newest first
func (r *GormEscrowRepository) FindAll(ctx context.Context, filter payment.EscrowFilter) ([]*payment.EscrowPayment, int64, error) {
	query := Conn(ctx, r.db).Model(&models.EscrowPaymentModel{})
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.EscrowPaymentModel
	if err := query.Order("created_at DESC").
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return toEscrows(rows), total, nil
}

// FindDueForRelease returns funded auto-release escrows past their release time
func (r *GormEscrowRepository) FindDueForRelease(ctx context.Context, now time.Time, limit int) ([]*payment.EscrowPayment, error) {
	var rows []models.EscrowPaymentModel
	if err := Conn(ctx, r.db).
		Where("status = ? AND auto_release_enabled = ? AND auto_release_at IS NOT NULL AND auto_release_at <= ?",
			payment.EscrowStatusFunded, true, now).
		Order("auto_release_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toEscrows(rows), nil
}

// Totals aggregates counts and volumes per escrow status
func (r *GormEscrowRepository) Totals(ctx context.Context) (*payment.EscrowTotals, error) {
	var rows []struct {
		Status payment.EscrowStatus
		Count  int64
		Amount decimal.NullDecimal
		Fees   decimal.NullDecimal
	}
	if err := Conn(ctx, r.db).Model(&models.EscrowPaymentModel{}).
		Select("status, COUNT(*) AS count, SUM(escrow_amount) AS amount, SUM(escrow_fee) AS fees").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	totals := &payment.EscrowTotals{
		CountByStatus:  make(map[payment.EscrowStatus]int64, len(rows)),
		FundedVolume:   decimal.Zero,
		ReleasedVolume: decimal.Zero,
		RefundedVolume: decimal.Zero,
		FeesEarned:     decimal.Zero,
	}
	for _, row := range rows {
		totals.CountByStatus[row.Status] = row.Count
		amount := row.Amount.Decimal
		switch row.Status {
		case payment.EscrowStatusFunded, payment.EscrowStatusDisputed:
			totals.FundedVolume = totals.FundedVolume.Add(amount)
		case payment.EscrowStatusReleased:
			totals.ReleasedVolume = totals.ReleasedVolume.Add(amount)
			totals.FeesEarned = totals.FeesEarned.Add(row.Fees.Decimal)
		case payment.EscrowStatusRefunded:
			totals.RefundedVolume = totals.RefundedVolume.Add(amount)
		}
	}
	return totals, nil
}

// Save creates or updates an escrow, refusing stale writes
func (r *GormEscrowRepository) Save(ctx context.Context, escrow *payment.EscrowPayment) error {
	return saveVersioned(Conn(ctx, r.db), models.EscrowPaymentModelFromDomain(escrow), escrow)
}

func toEscrows(rows []models.EscrowPaymentModel) []*payment.EscrowPayment {
	out := make([]*payment.EscrowPayment, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out
}

var _ payment.EscrowRepository = (*GormEscrowRepository)(nil)

// GormWebhookRepository implements WebhookRepository using GORM
type GormWebhookRepository struct {
	db *gorm.DB
}

// NewGormWebhookRepository creates a new GormWebhookRepository
func NewGormWebhookRepository(db *gorm.DB) *GormWebhookRepository {
	return &GormWebhookRepository{db: db}
}

// Exists reports whether the same notification was stored before
func (r *GormWebhookRepository) Exists(ctx context.Context, source payment.WebhookSource, externalID, eventType string) (bool, error) {
	var count int64
	if err := Conn(ctx, r.db).Model(&models.PaymentWebhookModel{}).
		Where("webhook_type = ? AND external_id = ? AND event_type = ?", source, externalID, eventType).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save creates or updates a webhook record
func (r *GormWebhookRepository) Save(ctx context.Context, webhook *payment.PaymentWebhook) error {
	if err := Conn(ctx, r.db).Save(models.PaymentWebhookModelFromDomain(webhook)).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.NewDomainError("ALREADY_EXISTS", "Webhook already recorded")
		}
		return err
	}
	return nil
}

var _ payment.WebhookRepository = (*GormWebhookRepository)(nil)
