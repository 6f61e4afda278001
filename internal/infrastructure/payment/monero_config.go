package payment

import (
	"errors"
	"net/url"
	"time"
)

// MoneroConfig contains configuration for monero-wallet-rpc
type MoneroConfig struct {
	// RPCURL is the JSON-RPC endpoint, e.g. http://localhost:18082/json_rpc
	RPCURL string
	// RPCUser and RPCPassword enable HTTP basic auth when both are set
	RPCUser     string
	RPCPassword string
	// AccountIndex is the wallet account new subaddresses are created under
	AccountIndex uint32
	// Timeout bounds every RPC call (default 30s)
	Timeout time.Duration
}

// Errors for configuration validation
var (
	ErrMoneroMissingRPCURL = errors.New("monero: missing RPC URL")
	ErrMoneroInvalidRPCURL = errors.New("monero: invalid RPC URL")
)

// Validate validates the configuration
func (c *MoneroConfig) Validate() error {
	if c.RPCURL == "" {
		return ErrMoneroMissingRPCURL
	}
	u, err := url.Parse(c.RPCURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ErrMoneroInvalidRPCURL
	}
	return nil
}

func (c *MoneroConfig) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 30 * time.Second
	}
	return c.Timeout
}
