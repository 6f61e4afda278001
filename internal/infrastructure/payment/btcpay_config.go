package payment

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// BTCPayConfig contains configuration for the BTCPay Server Greenfield API
type BTCPayConfig struct {
	// ServerURL is the BTCPay Server base URL, e.g. https://btcpay.example.com
	ServerURL string
	// StoreID is the store that owns created invoices
	StoreID string
	// APIKey is a Greenfield API key with invoice permissions
	APIKey string
	// WebhookSecret is the shared secret BTCPay signs webhook bodies with
	WebhookSecret string
	// Timeout bounds every API call (default 30s)
	Timeout time.Duration
}

// Errors for configuration validation
var (
	ErrBTCPayMissingServerURL = errors.New("btcpay: missing server URL")
	ErrBTCPayInvalidServerURL = errors.New("btcpay: invalid server URL")
	ErrBTCPayMissingStoreID   = errors.New("btcpay: missing store ID")
	ErrBTCPayMissingAPIKey    = errors.New("btcpay: missing API key")
)

// Validate validates the configuration
func (c *BTCPayConfig) Validate() error {
	if c.ServerURL == "" {
		return ErrBTCPayMissingServerURL
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ErrBTCPayInvalidServerURL
	}
	if c.StoreID == "" {
		return ErrBTCPayMissingStoreID
	}
	if c.APIKey == "" {
		return ErrBTCPayMissingAPIKey
	}
	return nil
}

func (c *BTCPayConfig) baseURL() string {
	return strings.TrimRight(c.ServerURL, "/")
}

func (c *BTCPayConfig) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 30 * time.Second
	}
	return c.Timeout
}
