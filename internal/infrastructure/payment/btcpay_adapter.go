package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cryptonexus/backend/internal/domain/payment"
)

// BTCPayAdapter implements payment.BitcoinGateway against the BTCPay Server
// Greenfield API
type BTCPayAdapter struct {
	config     *BTCPayConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewBTCPayAdapter creates a new BTCPay adapter
func NewBTCPayAdapter(config *BTCPayConfig, logger *zap.Logger) (*BTCPayAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &BTCPayAdapter{
		config:     config,
		httpClient: &http.Client{Timeout: config.timeout()},
		logger:     logger,
	}, nil
}

// CreateInvoice creates an invoice and resolves its on-chain BTC address
func (a *BTCPayAdapter) CreateInvoice(ctx context.Context, req *payment.InvoiceRequest) (*payment.Invoice, error) {
	if req == nil || req.OrderNumber == "" || !req.Amount.IsPositive() {
		return nil, fmt.Errorf("btcpay: order number and a positive amount are required")
	}
	currency := req.Currency
	if currency == "" {
		currency = btcpayPaymentMethodBTC
	}

	body := btcpayCreateInvoiceRequest{
		Amount:   req.Amount.String(),
		Currency: currency,
		Metadata: btcpayInvoiceMetadata{OrderID: req.OrderNumber, Platform: "CryptoNexus"},
	}
	if req.RedirectURL != "" {
		body.Checkout = &btcpayCheckoutOptions{RedirectURL: req.RedirectURL}
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("btcpay: failed to marshal invoice request: %w", err)
	}

	respBody, err := a.doRequest(ctx, http.MethodPost, a.storePath("invoices"), bodyBytes)
	if err != nil {
		return nil, err
	}
	var inv btcpayInvoice
	if err := json.Unmarshal(respBody, &inv); err != nil || inv.ID == "" {
		return nil, fmt.Errorf("%w: btcpay invoice", payment.ErrGatewayInvalidResponse)
	}

	invoice := toInvoice(&inv)
	address, err := a.invoiceAddress(ctx, inv.ID)
	if err != nil {
		// The invoice exists; callers decide what to do without an address.
		a.logger.Warn("BTCPay invoice created without a resolvable address",
			zap.String("invoice_id", inv.ID), zap.Error(err))
		return invoice, nil
	}
	invoice.Address = address

	a.logger.Info("BTCPay invoice created",
		zap.String("invoice_id", inv.ID),
		zap.String("order_id", req.OrderNumber),
		zap.String("amount", req.Amount.String()))
	return invoice, nil
}

// GetInvoice fetches the current state of an invoice
func (a *BTCPayAdapter) GetInvoice(ctx context.Context, invoiceID string) (*payment.Invoice, error) {
	if invoiceID == "" {
		return nil, fmt.Errorf("btcpay: invoice id is required")
	}
	respBody, err := a.doRequest(ctx, http.MethodGet, a.storePath("invoices", invoiceID), nil)
	if err != nil {
		return nil, err
	}
	var inv btcpayInvoice
	if err := json.Unmarshal(respBody, &inv); err != nil {
		return nil, fmt.Errorf("%w: btcpay invoice", payment.ErrGatewayInvalidResponse)
	}
	return toInvoice(&inv), nil
}

// VerifyWebhook checks the BTCPay-Sig header against an HMAC-SHA256 of the
// raw body and parses the payload. The header may carry the "sha256=" prefix.
func (a *BTCPayAdapter) VerifyWebhook(payload []byte, signature string) (*payment.WebhookEvent, error) {
	if !VerifyBTCPaySignature(a.config.WebhookSecret, payload, signature) {
		return nil, payment.ErrInvalidWebhookSig
	}
	return parseBTCPayWebhook(payload)
}

// VerifyBTCPaySignature reports whether signature is the HMAC-SHA256 of
// payload under secret. An empty secret never verifies.
func VerifyBTCPaySignature(secret string, payload []byte, signature string) bool {
	if secret == "" {
		return false
	}
	signature = strings.TrimPrefix(strings.TrimSpace(signature), btcpaySignaturePrefix)
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(got, btcpayDigest(secret, payload))
}

// SignBTCPayPayload produces a BTCPay-Sig header value for payload
func SignBTCPayPayload(secret string, payload []byte) string {
	return btcpaySignaturePrefix + hex.EncodeToString(btcpayDigest(secret, payload))
}

func btcpayDigest(secret string, payload []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return mac.Sum(nil)
}

func parseBTCPayWebhook(payload []byte) (*payment.WebhookEvent, error) {
	var p btcpayWebhookPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", payment.ErrGatewayInvalidResponse, err)
	}
	if p.InvoiceID == "" && p.Metadata.OrderID == "" && p.OrderID == "" {
		return nil, fmt.Errorf("%w: webhook carries no invoice reference", payment.ErrGatewayInvalidResponse)
	}
	orderNumber := p.Metadata.OrderID
	if orderNumber == "" {
		orderNumber = p.OrderID
	}
	return &payment.WebhookEvent{
		DeliveryID:      p.DeliveryID,
		Type:            p.Type,
		InvoiceID:       p.InvoiceID,
		OrderNumber:     orderNumber,
		Status:          p.Status,
		TransactionHash: p.transactionHash(),
	}, nil
}

// invoiceAddress returns the BTC destination of an invoice
func (a *BTCPayAdapter) invoiceAddress(ctx context.Context, invoiceID string) (string, error) {
	respBody, err := a.doRequest(ctx, http.MethodGet, a.storePath("invoices", invoiceID, "payment-methods"), nil)
	if err != nil {
		return "", err
	}
	var methods []btcpayPaymentMethod
	if err := json.Unmarshal(respBody, &methods); err != nil {
		return "", fmt.Errorf("%w: btcpay payment methods", payment.ErrGatewayInvalidResponse)
	}
	for _, m := range methods {
		if m.isBTC() && m.Destination != "" {
			return m.Destination, nil
		}
	}
	return "", fmt.Errorf("%w: no BTC payment method on invoice %s", payment.ErrGatewayInvalidResponse, invoiceID)
}

func toInvoice(inv *btcpayInvoice) *payment.Invoice {
	amount, err := decimal.NewFromString(inv.Amount)
	if err != nil {
		amount = decimal.Zero
	}
	return &payment.Invoice{
		ID:           inv.ID,
		CheckoutLink: inv.CheckoutLink,
		Status:       inv.Status,
		Amount:       amount,
	}
}

func (a *BTCPayAdapter) storePath(parts ...string) string {
	escaped := make([]string, 0, len(parts)+3)
	escaped = append(escaped, "api", "v1", "stores", url.PathEscape(a.config.StoreID))
	for _, p := range parts {
		escaped = append(escaped, url.PathEscape(p))
	}
	return "/" + strings.Join(escaped, "/")
}

// doRequest sends an authenticated Greenfield request
func (a *BTCPayAdapter) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.config.baseURL()+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("btcpay: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "token "+a.config.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", payment.ErrGatewayRequestFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("btcpay: failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var errResp btcpayErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Message != "" {
			return nil, fmt.Errorf("%w: %s - %s", payment.ErrGatewayRequestFailed, errResp.Code, errResp.Message)
		}
		return nil, fmt.Errorf("%w: HTTP %d", payment.ErrGatewayRequestFailed, resp.StatusCode)
	}
	return respBody, nil
}

var _ payment.BitcoinGateway = (*BTCPayAdapter)(nil)
