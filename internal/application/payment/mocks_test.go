package payment

import (
	"context"
	"time"

	"github.com/cryptonexus/backend/internal/domain/payment"
	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/cryptonexus/backend/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockAddressRepository is a mock implementation of payment.PaymentAddressRepository
type MockAddressRepository struct {
	mock.Mock
}

func (m *MockAddressRepository) find(args mock.Arguments) (*payment.PaymentAddress, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	if fn, ok := args.Get(0).(func() *payment.PaymentAddress); ok {
		return fn(), args.Error(1)
	}
	return args.Get(0).(*payment.PaymentAddress), args.Error(1)
}

func (m *MockAddressRepository) FindByID(ctx context.Context, id uuid.UUID) (*payment.PaymentAddress, error) {
	return m.find(m.Called(ctx, id))
}

func (m *MockAddressRepository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*payment.PaymentAddress, error) {
	return m.find(m.Called(ctx, orderID))
}

func (m *MockAddressRepository) FindByInvoiceID(ctx context.Context, invoiceID string) (*payment.PaymentAddress, error) {
	return m.find(m.Called(ctx, invoiceID))
}

func (m *MockAddressRepository) FindByAddress(ctx context.Context, address string) (*payment.PaymentAddress, error) {
	return m.find(m.Called(ctx, address))
}

func (m *MockAddressRepository) FindOverdue(ctx context.Context, now time.Time, limit int) ([]*payment.PaymentAddress, error) {
	args := m.Called(ctx, now, limit)
	return args.Get(0).([]*payment.PaymentAddress), args.Error(1)
}

func (m *MockAddressRepository) FindOpenByCurrency(ctx context.Context, currency shared.CryptoCurrency, limit int) ([]*payment.PaymentAddress, error) {
	args := m.Called(ctx, currency, limit)
	return args.Get(0).([]*payment.PaymentAddress), args.Error(1)
}

func (m *MockAddressRepository) CountByStatus(ctx context.Context) (map[payment.AddressStatus]int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(map[payment.AddressStatus]int64), args.Error(1)
}

func (m *MockAddressRepository) Save(ctx context.Context, address *payment.PaymentAddress) error {
	return m.Called(ctx, address).Error(0)
}

// MockEscrowRepository is a mock implementation of payment.EscrowRepository
type MockEscrowRepository struct {
	mock.Mock
}

func (m *MockEscrowRepository) find(args mock.Arguments) (*payment.EscrowPayment, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.EscrowPayment), args.Error(1)
}

func (m *MockEscrowRepository) FindByID(ctx context.Context, id uuid.UUID) (*payment.EscrowPayment, error) {
	return m.find(m.Called(ctx, id))
}

func (m *MockEscrowRepository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*payment.EscrowPayment, error) {
	return m.find(m.Called(ctx, orderID))
}

func (m *MockEscrowRepository) FindByPaymentAddressID(ctx context.Context, addressID uuid.UUID) (*payment.EscrowPayment, error) {
	return m.find(m.Called(ctx, addressID))
}

func (m *MockEscrowRepository) FindAll(ctx context.Context, filter payment.EscrowFilter) ([]*payment.EscrowPayment, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]*payment.EscrowPayment), args.Get(1).(int64), args.Error(2)
}

func (m *MockEscrowRepository) FindDueForRelease(ctx context.Context, now time.Time, limit int) ([]*payment.EscrowPayment, error) {
	args := m.Called(ctx, now, limit)
	return args.Get(0).([]*payment.EscrowPayment), args.Error(1)
}

func (m *MockEscrowRepository) Totals(ctx context.Context) (*payment.EscrowTotals, error) {
	args := m.Called(ctx)
	return args.Get(0).(*payment.EscrowTotals), args.Error(1)
}

func (m *MockEscrowRepository) Save(ctx context.Context, escrow *payment.EscrowPayment) error {
	return m.Called(ctx, escrow).Error(0)
}

// MockWebhookRepository is a mock implementation of payment.WebhookRepository
type MockWebhookRepository struct {
	mock.Mock
}

func (m *MockWebhookRepository) Exists(ctx context.Context, source payment.WebhookSource, externalID, eventType string) (bool, error) {
	args := m.Called(ctx, source, externalID, eventType)
	return args.Bool(0), args.Error(1)
}

func (m *MockWebhookRepository) Save(ctx context.Context, webhook *payment.PaymentWebhook) error {
	return m.Called(ctx, webhook).Error(0)
}

// MockOrderRepository is a mock implementation of trade.OrderRepository
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) find(args mock.Arguments) (*trade.Order, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*trade.Order), args.Error(1)
}

func (m *MockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*trade.Order, error) {
	return m.find(m.Called(ctx, id))
}

func (m *MockOrderRepository) FindByNumber(ctx context.Context, orderNumber string) (*trade.Order, error) {
	return m.find(m.Called(ctx, orderNumber))
}

func (m *MockOrderRepository) FindByNumberForUpdate(ctx context.Context, orderNumber string) (*trade.Order, error) {
	return m.find(m.Called(ctx, orderNumber))
}

func (m *MockOrderRepository) FindByPaymentAddress(ctx context.Context, address string) (*trade.Order, error) {
	return m.find(m.Called(ctx, address))
}

func (m *MockOrderRepository) FindAll(ctx context.Context, filter trade.OrderFilter) ([]*trade.Order, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]*trade.Order), args.Get(1).(int64), args.Error(2)
}

func (m *MockOrderRepository) FindOverdueUnpaid(ctx context.Context, now time.Time, limit int) ([]*trade.Order, error) {
	args := m.Called(ctx, now, limit)
	return args.Get(0).([]*trade.Order), args.Error(1)
}

func (m *MockOrderRepository) Stats(ctx context.Context) (trade.OrderStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(trade.OrderStats), args.Error(1)
}

func (m *MockOrderRepository) FindRecent(ctx context.Context, limit int) ([]*trade.Order, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]*trade.Order), args.Error(1)
}

func (m *MockOrderRepository) Save(ctx context.Context, order *trade.Order) error {
	return m.Called(ctx, order).Error(0)
}

// MockBitcoinGateway is a mock implementation of payment.BitcoinGateway
type MockBitcoinGateway struct {
	mock.Mock
}

func (m *MockBitcoinGateway) CreateInvoice(ctx context.Context, req *payment.InvoiceRequest) (*payment.Invoice, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Invoice), args.Error(1)
}

func (m *MockBitcoinGateway) GetInvoice(ctx context.Context, invoiceID string) (*payment.Invoice, error) {
	args := m.Called(ctx, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Invoice), args.Error(1)
}

func (m *MockBitcoinGateway) VerifyWebhook(payload []byte, signature string) (*payment.WebhookEvent, error) {
	args := m.Called(payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.WebhookEvent), args.Error(1)
}

// MockMoneroWallet is a mock implementation of payment.MoneroWallet
type MockMoneroWallet struct {
	mock.Mock
}

func (m *MockMoneroWallet) CreateSubaddress(ctx context.Context, label string) (*payment.Subaddress, error) {
	args := m.Called(ctx, label)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Subaddress), args.Error(1)
}

func (m *MockMoneroWallet) IncomingTransfers(ctx context.Context, indices []uint32) ([]payment.Transfer, error) {
	args := m.Called(ctx, indices)
	if fn, ok := args.Get(0).(func([]uint32) []payment.Transfer); ok {
		return fn(indices), args.Error(1)
	}
	return args.Get(0).([]payment.Transfer), args.Error(1)
}

// MockEventPublisher is a mock implementation of shared.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	return m.Called(ctx, events).Error(0)
}

// inlineTx runs fn directly on the caller's context
type inlineTx struct{}

func (inlineTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
