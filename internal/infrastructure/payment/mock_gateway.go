package payment

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cryptonexus/backend/internal/domain/payment"
)

// MockGateway is an in-process stand-in for both BTCPay and the Monero
// wallet. It is only meant for local development and demos.
type MockGateway struct {
	mu            sync.Mutex
	webhookSecret string
	checkoutBase  string
	invoices      map[string]*payment.Invoice
	nextIndex     uint32
	transfers     map[uint32][]payment.Transfer
	logger        *zap.Logger
}

// NewMockGateway creates a mock gateway. Webhooks must be signed with
// webhookSecret, the same way BTCPay signs them.
func NewMockGateway(webhookSecret, checkoutBase string, logger *zap.Logger) *MockGateway {
	return &MockGateway{
		webhookSecret: webhookSecret,
		checkoutBase:  checkoutBase,
		invoices:      make(map[string]*payment.Invoice),
		nextIndex:     1,
		transfers:     make(map[uint32][]payment.Transfer),
		logger:        logger,
	}
}

// CreateInvoice records a New invoice with a random testnet address
func (g *MockGateway) CreateInvoice(_ context.Context, req *payment.InvoiceRequest) (*payment.Invoice, error) {
	if req == nil || req.OrderNumber == "" {
		return nil, fmt.Errorf("mock: order number is required")
	}
	inv := &payment.Invoice{
		ID:           "mock_invoice_" + req.OrderNumber,
		CheckoutLink: g.checkoutBase + "/mock-payment/" + req.OrderNumber,
		Address:      "tb1q" + randomHex(19),
		Status:       btcpayStatusNew,
		Amount:       req.Amount,
	}
	g.mu.Lock()
	g.invoices[inv.ID] = inv
	g.mu.Unlock()

	g.logger.Info("Mock invoice created", zap.String("invoice_id", inv.ID))
	copied := *inv
	return &copied, nil
}

// GetInvoice returns a previously created invoice
func (g *MockGateway) GetInvoice(_ context.Context, invoiceID string) (*payment.Invoice, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	inv, ok := g.invoices[invoiceID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown invoice %s", payment.ErrGatewayRequestFailed, invoiceID)
	}
	copied := *inv
	return &copied, nil
}

// VerifyWebhook verifies like BTCPay and marks known invoices settled or
// expired so GetInvoice reflects the simulated outcome
func (g *MockGateway) VerifyWebhook(payload []byte, signature string) (*payment.WebhookEvent, error) {
	if !VerifyBTCPaySignature(g.webhookSecret, payload, signature) {
		return nil, payment.ErrInvalidWebhookSig
	}
	event, err := parseBTCPayWebhook(payload)
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	if inv, ok := g.invoices[event.InvoiceID]; ok {
		switch {
		case event.Settled():
			inv.Status = btcpayStatusSettled
		case event.Expired():
			inv.Status = btcpayStatusExpired
		case event.Invalid():
			inv.Status = btcpayStatusInvalid
		default:
			inv.Status = btcpayStatusProcessing
		}
	}
	g.mu.Unlock()
	return event, nil
}

// CreateSubaddress hands out sequential subaddress indices
func (g *MockGateway) CreateSubaddress(_ context.Context, label string) (*payment.Subaddress, error) {
	g.mu.Lock()
	idx := g.nextIndex
	g.nextIndex++
	g.mu.Unlock()

	g.logger.Info("Mock subaddress created", zap.String("label", label), zap.Uint32("index", idx))
	return &payment.Subaddress{Address: "9" + randomHex(47), Index: idx}, nil
}

// IncomingTransfers returns deposits simulated with Deposit
func (g *MockGateway) IncomingTransfers(_ context.Context, subaddressIndices []uint32) ([]payment.Transfer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []payment.Transfer
	for _, idx := range subaddressIndices {
		out = append(out, g.transfers[idx]...)
	}
	return out, nil
}

// Deposit simulates an incoming transfer to a subaddress and returns its hash
func (g *MockGateway) Deposit(index uint32, address string, amount decimal.Decimal, confirmations int) string {
	hash := randomHex(64)
	g.mu.Lock()
	g.transfers[index] = append(g.transfers[index], payment.Transfer{
		TxHash:          hash,
		Address:         address,
		SubaddressIndex: index,
		Amount:          amount,
		Confirmations:   confirmations,
	})
	g.mu.Unlock()
	return hash
}

func randomHex(n int) string {
	b := make([]byte, (n+1)/2)
	if _, err := rand.Read(b); err != nil {
		return strings.Repeat("0", n)
	}
	return hex.EncodeToString(b)[:n]
}

var (
	_ payment.BitcoinGateway = (*MockGateway)(nil)
	_ payment.MoneroWallet   = (*MockGateway)(nil)
)
