package payment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/cryptonexus/backend/internal/domain/payment"
	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/cryptonexus/backend/internal/domain/trade"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// batchSize bounds every maintenance sweep
const batchSize = 100

// PaymentServiceConfig holds the dependencies and settings of PaymentService
type PaymentServiceConfig struct {
	AddressRepo    payment.PaymentAddressRepository
	EscrowRepo     payment.EscrowRepository
	WebhookRepo    payment.WebhookRepository
	OrderRepo      trade.OrderRepository
	TxManager      shared.TransactionManager
	EventPublisher shared.EventPublisher
	// Bitcoin and Monero may be nil when the gateway is not configured
	Bitcoin payment.BitcoinGateway
	Monero  payment.MoneroWallet

	PaymentWindow    time.Duration
	EscrowFeePercent decimal.Decimal
	AutoReleaseAfter time.Duration
	// SiteURL is the public base URL used for gateway callbacks
	SiteURL string
	// AddressSecret seeds the fallback BTC address
	AddressSecret string
	Logger        *zap.Logger
}

// PaymentService opens payment addresses, applies gateway notifications
// and manages escrow
type PaymentService struct {
	addressRepo      payment.PaymentAddressRepository
	escrowRepo       payment.EscrowRepository
	webhookRepo      payment.WebhookRepository
	orderRepo        trade.OrderRepository
	txManager        shared.TransactionManager
	eventPublisher   shared.EventPublisher
	bitcoin          payment.BitcoinGateway
	monero           payment.MoneroWallet
	paymentWindow    time.Duration
	escrowFeePercent decimal.Decimal
	autoReleaseAfter time.Duration
	siteURL          string
	addressSecret    string
	logger           *zap.Logger
	now              func() time.Time
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(cfg PaymentServiceConfig) *PaymentService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	window := cfg.PaymentWindow
	if window <= 0 {
		window = payment.DefaultPaymentWindow
	}
	fee := cfg.EscrowFeePercent
	if fee.IsZero() {
		fee = decimal.NewFromInt(payment.DefaultEscrowFeePercent)
	}
	autoRelease := cfg.AutoReleaseAfter
	if autoRelease <= 0 {
		autoRelease = payment.DefaultAutoReleaseDays * 24 * time.Hour
	}

	return &PaymentService{
		addressRepo:      cfg.AddressRepo,
		escrowRepo:       cfg.EscrowRepo,
		webhookRepo:      cfg.WebhookRepo,
		orderRepo:        cfg.OrderRepo,
		txManager:        cfg.TxManager,
		eventPublisher:   cfg.EventPublisher,
		bitcoin:          cfg.Bitcoin,
		monero:           cfg.Monero,
		paymentWindow:    window,
		escrowFeePercent: fee,
		autoReleaseAfter: autoRelease,
		siteURL:          strings.TrimRight(cfg.SiteURL, "/"),
		addressSecret:    cfg.AddressSecret,
		logger:           logger,
		now:              time.Now,
	}
}

// MoneroEnabled reports whether a Monero wallet is wired
func (s *PaymentService) MoneroEnabled() bool {
	return s.monero != nil
}

// CreateForOrder opens the payment address of order, with an escrow when
// the order asks for one. An order that already has an open address gets
// that address back.
func (s *PaymentService) CreateForOrder(ctx context.Context, order *trade.Order) (string, time.Time, error) {
	existing, err := s.addressRepo.FindByOrderID(ctx, order.ID)
	switch {
	case err == nil && existing.Status.IsOpen():
		return existing.Address, existing.ExpiresAt, nil
	case err != nil && !errors.Is(err, shared.ErrNotFound):
		return "", time.Time{}, err
	}

	addr, err := s.newAddress(ctx, order)
	if err != nil {
		return "", time.Time{}, err
	}

	err = s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.addressRepo.Save(ctx, addr); err != nil {
			return err
		}
		if !order.UseEscrow {
			return nil
		}
		return s.escrowRepo.Save(ctx, payment.NewEscrowPayment(addr, s.escrowFeePercent))
	})
	if err != nil {
		return "", time.Time{}, err
	}

	s.logger.Info("Payment address created",
		zap.String("order_id", order.OrderNumber),
		zap.String("currency", string(addr.CryptoCurrency)),
		zap.String("payment_type", string(addr.PaymentType)),
		zap.Bool("escrow", order.UseEscrow))
	return addr.Address, addr.ExpiresAt, nil
}

func (s *PaymentService) newAddress(ctx context.Context, order *trade.Order) (*payment.PaymentAddress, error) {
	ref := payment.OrderRef{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		BuyerID:     order.BuyerID,
		VendorID:    order.VendorID,
		UseEscrow:   order.UseEscrow,
	}
	now := s.now()

	switch order.CryptoCurrency {
	case shared.CurrencyBTC:
		invoice := s.createInvoice(ctx, order)
		if invoice == nil {
			return payment.NewPaymentAddress(ref, shared.CurrencyBTC, payment.PaymentTypeWallet,
				FallbackBTCAddress(s.addressSecret, order.OrderNumber), order.TotalAmount, now, s.paymentWindow)
		}
		addr, err := payment.NewPaymentAddress(ref, shared.CurrencyBTC, payment.PaymentTypeBTCPay,
			invoice.Address, order.TotalAmount, now, s.paymentWindow)
		if err != nil {
			return nil, err
		}
		addr.SetInvoice(invoice.ID, invoice.CheckoutLink)
		return addr, nil

	case shared.CurrencyXMR:
		if s.monero == nil {
			return nil, shared.NewDomainError("PAYMENT_GATEWAY_ERROR", "Monero wallet is not configured")
		}
		sub, err := s.monero.CreateSubaddress(ctx, "Order-"+order.OrderNumber)
		if err != nil {
			s.logger.Error("Failed to create Monero subaddress",
				zap.String("order_id", order.OrderNumber), zap.Error(err))
			return nil, shared.NewDomainError("PAYMENT_GATEWAY_ERROR", "Failed to create Monero subaddress")
		}
		addr, err := payment.NewPaymentAddress(ref, shared.CurrencyXMR, payment.PaymentTypeMoneroRPC,
			sub.Address, order.TotalAmount, now, s.paymentWindow)
		if err != nil {
			return nil, err
		}
		addr.SetSubaddressIndex(sub.Index)
		return addr, nil
	}
	return nil, shared.NewDomainError("UNSUPPORTED_CURRENCY", "Unsupported cryptocurrency: "+string(order.CryptoCurrency))
}

// createInvoice returns nil when BTCPay is unavailable so the caller can
// fall back to a wallet address
func (s *PaymentService) createInvoice(ctx context.Context, order *trade.Order) *payment.Invoice {
	if s.bitcoin == nil {
		return nil
	}
	invoice, err := s.bitcoin.CreateInvoice(ctx, &payment.InvoiceRequest{
		OrderNumber:     order.OrderNumber,
		Amount:          order.TotalAmount,
		Currency:        string(shared.CurrencyBTC),
		NotificationURL: s.siteURL + "/api/v1/payments/webhooks/btcpay/",
		RedirectURL:     s.siteURL + "/orders/" + order.OrderNumber,
	})
	if err != nil || invoice == nil || invoice.Address == "" {
		s.logger.Warn("BTCPay invoice unavailable, using fallback address",
			zap.String("order_id", order.OrderNumber), zap.Error(err))
		return nil
	}
	return invoice
}

// FallbackBTCAddress derives the placeholder address used when BTCPay is
// unreachable: "bc1q" followed by 32 hex chars of sha256(secret+orderNumber)
func FallbackBTCAddress(secret, orderNumber string) string {
	sum := sha256.Sum256([]byte(secret + orderNumber))
	return "bc1q" + hex.EncodeToString(sum[:])[:32]
}

// ManualCreate opens a payment address for an order created without one.
// Buyer of the order only.
func (s *PaymentService) ManualCreate(ctx context.Context, actor shared.Actor, req CreatePaymentRequest) (*PaymentStatusResponse, error) {
	order, err := s.orderRepo.FindByNumber(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != actor.UserID {
		return nil, shared.NewDomainError("FORBIDDEN", "Only the buyer can create a payment for this order")
	}
	if order.Status != trade.OrderStatusPendingPayment {
		return nil, shared.NewDomainError("INVALID_STATE", "Order is not awaiting payment")
	}
	if order.PaymentAddress != "" {
		return nil, shared.NewDomainError("ALREADY_EXISTS", "Payment address already exists for this order")
	}

	address, expiresAt, err := s.CreateForOrder(ctx, order)
	if err != nil {
		return nil, err
	}
	closed := false
	err = s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		locked, err := s.orderRepo.FindByNumberForUpdate(ctx, order.OrderNumber)
		if err != nil {
			return err
		}
		if locked.Status != trade.OrderStatusPendingPayment {
			closed = true
			return nil
		}
		locked.AttachPayment(address, expiresAt)
		return s.orderRepo.Save(ctx, locked)
	})
	if err != nil {
		return nil, err
	}
	if closed {
		// the order ended while the gateway was being called
		if err := s.CloseForOrder(ctx, order.ID); err != nil {
			return nil, err
		}
		return nil, shared.NewDomainError("INVALID_STATE", "Order is not awaiting payment")
	}
	return s.status(ctx, order)
}

// Status returns the payment state of an order visible to the caller
func (s *PaymentService) Status(ctx context.Context, actor shared.Actor, orderNumber string) (*PaymentStatusResponse, error) {
	order, err := s.orderRepo.FindByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if !order.CanView(actor.UserID, actor.IsAdmin()) {
		return nil, shared.ErrNotFound
	}
	return s.status(ctx, order)
}

func (s *PaymentService) status(ctx context.Context, order *trade.Order) (*PaymentStatusResponse, error) {
	addr, err := s.addressRepo.FindByOrderID(ctx, order.ID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "Payment not found")
		}
		return nil, err
	}
	escrow, err := s.escrowFor(ctx, addr)
	if err != nil {
		return nil, err
	}
	resp := toPaymentStatusResponse(addr, escrow)
	return &resp, nil
}

// EscrowAction lets a participant release or dispute an order's escrow.
// Release is open to the buyer and admins, dispute to the buyer.
func (s *PaymentService) EscrowAction(ctx context.Context, actor shared.Actor, orderNumber string, req EscrowActionRequest) (*EscrowResponse, error) {
	order, err := s.orderRepo.FindByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if !order.CanView(actor.UserID, actor.IsAdmin()) {
		return nil, shared.ErrNotFound
	}

	var escrow *payment.EscrowPayment
	err = s.txManager.WithinTransaction(ctx, func(ctx context.Context) error {
		escrow, err = s.escrowRepo.FindByOrderID(ctx, order.ID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return shared.NewDomainError("NOT_FOUND", "No escrow exists for this order")
			}
			return err
		}

		switch req.Action {
		case "release":
			if order.BuyerID != actor.UserID && !actor.IsAdmin() {
				return shared.NewDomainError("FORBIDDEN", "Only the buyer or an administrator can release escrow")
			}
			if err := escrow.Release(&actor.UserID, s.now()); err != nil {
				return err
			}
		case "dispute":
			if order.BuyerID != actor.UserID {
				return shared.NewDomainError("FORBIDDEN", "Only the buyer can dispute escrow")
			}
			if err := escrow.Dispute(req.Reason); err != nil {
				return err
			}
		default:
			return shared.NewDomainError("INVALID_INPUT", "Invalid action")
		}
		return s.escrowRepo.Save(ctx, escrow)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Escrow action applied",
		zap.String("order_id", orderNumber),
		zap.String("action", req.Action),
		zap.String("actor_id", actor.UserID.String()))
	resp := ToEscrowResponse(escrow)
	return &resp, nil
}

// Currencies lists the currencies buyers can pay with
func (s *PaymentService) Currencies() CurrenciesResponse {
	var active []payment.Currency
	for _, c := range payment.SupportedCurrencies() {
		if c.IsActive {
			active = append(active, c)
		}
	}
	return CurrenciesResponse{SupportedCurrencies: active}
}

// ExpirePayments closes pending addresses whose window has passed and
// returns how many were expired
func (s *PaymentService) ExpirePayments(ctx context.Context, now time.Time) (int, error) {
	overdue, err := s.addressRepo.FindOverdue(ctx, now, batchSize)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, addr := range overdue {
		if !addr.IsOverdue(now) {
			continue
		}
		if err := addr.Expire(); err != nil {
			s.logger.Warn("Cannot expire payment address",
				zap.String("order_id", addr.OrderNumber), zap.Error(err))
			continue
		}
		if err := s.addressRepo.Save(ctx, addr); err != nil {
			s.logger.Error("Failed to save expired payment address",
				zap.String("order_id", addr.OrderNumber), zap.Error(err))
			continue
		}
		expired++
	}
	if expired > 0 {
		s.logger.Info("Expired payment addresses", zap.Int("count", expired))
	}
	return expired, nil
}

// settle records a completed payment: the address is saved with its
// PaymentConfirmed event and the escrow, if any, is funded. Call inside a
// transaction, after orderAcceptsPayment has locked the order.
func (s *PaymentService) settle(ctx context.Context, addr *payment.PaymentAddress) error {
	if err := s.saveAddress(ctx, addr); err != nil {
		return err
	}
	escrow, err := s.escrowFor(ctx, addr)
	if err != nil || escrow == nil {
		return err
	}
	if err := escrow.Fund(s.now(), s.autoReleaseAfter); err != nil {
		return err
	}
	return s.escrowRepo.Save(ctx, escrow)
}

func (s *PaymentService) saveAddress(ctx context.Context, addr *payment.PaymentAddress) error {
	if err := s.addressRepo.Save(ctx, addr); err != nil {
		return err
	}
	if events := addr.GetDomainEvents(); len(events) > 0 && s.eventPublisher != nil {
		if err := s.eventPublisher.Publish(ctx, events...); err != nil {
			return err
		}
	}
	addr.ClearDomainEvents()
	return nil
}

// escrowFor returns nil without error when the address has no escrow
func (s *PaymentService) escrowFor(ctx context.Context, addr *payment.PaymentAddress) (*payment.EscrowPayment, error) {
	escrow, err := s.escrowRepo.FindByPaymentAddressID(ctx, addr.ID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return escrow, nil
}
