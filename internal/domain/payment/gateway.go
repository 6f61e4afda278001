package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Gateway errors
// ---------------------------------------------------------------------------

var (
	ErrGatewayNotConfigured   = errors.New("payment: gateway not configured")
	ErrGatewayRequestFailed   = errors.New("payment: gateway request failed")
	ErrGatewayInvalidResponse = errors.New("payment: invalid gateway response")
	ErrInvalidWebhookSig      = errors.New("payment: invalid webhook signature")
)

// ---------------------------------------------------------------------------
// Bitcoin (BTCPay Server)
// ---------------------------------------------------------------------------

// InvoiceRequest asks the Bitcoin gateway for a new invoice
type InvoiceRequest struct {
	OrderNumber     string
	Amount          decimal.Decimal
	Currency        string
	NotificationURL string
	RedirectURL     string
}

// Invoice is the gateway's view of an invoice
type Invoice struct {
	ID           string
	CheckoutLink string
	Address      string
	Status       string
	Amount       decimal.Decimal
}

// WebhookEvent is a verified, parsed BTCPay notification
type WebhookEvent struct {
	DeliveryID  string
	Type        string
	InvoiceID   string
	OrderNumber string
	Status      string

	// TransactionHash is only present on some BTCPay payloads
	TransactionHash string
}

// Settled reports whether the event means the invoice is fully paid
func (e *WebhookEvent) Settled() bool {
	return e.Type == "InvoiceSettled" || e.Status == "Settled"
}

// Expired reports whether the invoice can no longer be paid
func (e *WebhookEvent) Expired() bool {
	return e.Type == "InvoiceExpired" || e.Status == "Expired"
}

// Invalid reports whether the gateway gave up on the invoice
func (e *WebhookEvent) Invalid() bool {
	return e.Type == "InvoiceInvalid" || e.Status == "Invalid"
}

// BitcoinGateway is the port for invoice-based BTC payments
type BitcoinGateway interface {
	CreateInvoice(ctx context.Context, req *InvoiceRequest) (*Invoice, error)
	GetInvoice(ctx context.Context, invoiceID string) (*Invoice, error)
	// VerifyWebhook checks the signature header and parses the body
	VerifyWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

// ---------------------------------------------------------------------------
// Monero (wallet RPC)
// ---------------------------------------------------------------------------

// Subaddress is a freshly created receiving address
type Subaddress struct {
	Address string
	Index   uint32
}

// Transfer is an incoming transfer seen by the wallet
type Transfer struct {
	TxHash          string
	Address         string
	SubaddressIndex uint32
	Amount          decimal.Decimal
	Confirmations   int
}

// MoneroWallet is the port for subaddress-based XMR payments
type MoneroWallet interface {
	CreateSubaddress(ctx context.Context, label string) (*Subaddress, error)
	IncomingTransfers(ctx context.Context, subaddressIndices []uint32) ([]Transfer, error)
}
