package payment

import "strings"

// Greenfield invoice statuses
const (
	btcpayStatusNew        = "New"
	btcpayStatusProcessing = "Processing"
	btcpayStatusSettled    = "Settled"
	btcpayStatusExpired    = "Expired"
	btcpayStatusInvalid    = "Invalid"
)

// btcpaySignaturePrefix precedes the hex digest in the BTCPay-Sig header
const btcpaySignaturePrefix = "sha256="

// btcpayPaymentMethodBTC identifies on-chain bitcoin in payment method lists
const btcpayPaymentMethodBTC = "BTC"

type btcpayInvoiceMetadata struct {
	OrderID  string `json:"orderId,omitempty"`
	Platform string `json:"platform,omitempty"`
}

type btcpayCheckoutOptions struct {
	RedirectURL string `json:"redirectURL,omitempty"`
}

type btcpayCreateInvoiceRequest struct {
	Amount   string                 `json:"amount"`
	Currency string                 `json:"currency"`
	Metadata btcpayInvoiceMetadata  `json:"metadata"`
	Checkout *btcpayCheckoutOptions `json:"checkout,omitempty"`
}

type btcpayInvoice struct {
	ID           string                `json:"id"`
	StoreID      string                `json:"storeId"`
	Amount       string                `json:"amount"`
	Currency     string                `json:"currency"`
	Status       string                `json:"status"`
	CheckoutLink string                `json:"checkoutLink"`
	Metadata     btcpayInvoiceMetadata `json:"metadata"`
}

type btcpayPaymentMethod struct {
	// PaymentMethod is used by Greenfield 1.x, PaymentMethodID by 2.x
	PaymentMethod   string `json:"paymentMethod"`
	PaymentMethodID string `json:"paymentMethodId"`
	Destination     string `json:"destination"`
	Amount          string `json:"amount"`
}

func (m btcpayPaymentMethod) isBTC() bool {
	id := m.PaymentMethodID
	if id == "" {
		id = m.PaymentMethod
	}
	return strings.EqualFold(id, btcpayPaymentMethodBTC) || strings.EqualFold(id, "BTC-CHAIN")
}

type btcpayWebhookPayment struct {
	ID     string `json:"id"`
	Value  string `json:"value"`
	Status string `json:"status"`
}

type btcpayWebhookPayload struct {
	DeliveryID  string                `json:"deliveryId"`
	WebhookID   string                `json:"webhookId"`
	Type        string                `json:"type"`
	StoreID     string                `json:"storeId"`
	InvoiceID   string                `json:"invoiceId"`
	Status      string                `json:"status"`
	Metadata    btcpayInvoiceMetadata `json:"metadata"`
	Payment     *btcpayWebhookPayment `json:"payment"`
	OrderID     string                `json:"orderId"`
	IsRedeliver bool                  `json:"isRedelivery"`
}

// transactionHash extracts the txid from a payment id of the form <txid>-<vout>
func (p *btcpayWebhookPayload) transactionHash() string {
	if p.Payment == nil || p.Payment.ID == "" {
		return ""
	}
	id := p.Payment.ID
	if i := strings.LastIndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

type btcpayErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
