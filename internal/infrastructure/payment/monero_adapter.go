package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cryptonexus/backend/internal/domain/payment"
)

// MoneroAdapter implements payment.MoneroWallet over monero-wallet-rpc
type MoneroAdapter struct {
	config     *MoneroConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewMoneroAdapter creates a new Monero wallet adapter
func NewMoneroAdapter(config *MoneroConfig, logger *zap.Logger) (*MoneroAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &MoneroAdapter{
		config:     config,
		httpClient: &http.Client{Timeout: config.timeout()},
		logger:     logger,
	}, nil
}

// CreateSubaddress creates a labelled subaddress under the configured account
func (a *MoneroAdapter) CreateSubaddress(ctx context.Context, label string) (*payment.Subaddress, error) {
	var result moneroCreateAddressResult
	err := a.call(ctx, "create_address", moneroCreateAddressParams{
		AccountIndex: a.config.AccountIndex,
		Label:        label,
	}, &result)
	if err != nil {
		return nil, err
	}
	if result.Address == "" {
		return nil, fmt.Errorf("%w: create_address returned no address", payment.ErrGatewayInvalidResponse)
	}
	a.logger.Info("Monero subaddress created",
		zap.String("label", label),
		zap.Uint32("index", result.AddressIndex))
	return &payment.Subaddress{Address: result.Address, Index: result.AddressIndex}, nil
}

// IncomingTransfers lists confirmed and pooled incoming transfers to the
// given subaddresses. Pool transfers report zero confirmations.
func (a *MoneroAdapter) IncomingTransfers(ctx context.Context, subaddressIndices []uint32) ([]payment.Transfer, error) {
	if len(subaddressIndices) == 0 {
		return nil, nil
	}
	var result moneroGetTransfersResult
	err := a.call(ctx, "get_transfers", moneroGetTransfersParams{
		In:             true,
		Pool:           true,
		AccountIndex:   a.config.AccountIndex,
		SubaddrIndices: subaddressIndices,
	}, &result)
	if err != nil {
		return nil, err
	}

	transfers := make([]payment.Transfer, 0, len(result.In)+len(result.Pool))
	for _, t := range result.In {
		transfers = append(transfers, toTransfer(t))
	}
	for _, t := range result.Pool {
		t.Confirmations = 0
		transfers = append(transfers, toTransfer(t))
	}
	return transfers, nil
}

func toTransfer(t moneroTransfer) payment.Transfer {
	return payment.Transfer{
		TxHash:          t.TxID,
		Address:         t.Address,
		SubaddressIndex: t.SubaddrIndex.Minor,
		Amount:          PiconeroToXMR(t.Amount),
		Confirmations:   t.Confirmations,
	}
}

// PiconeroToXMR converts atomic units to a decimal XMR amount
func PiconeroToXMR(atomic uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(atomic), piconeroExponent)
}

// call performs one JSON-RPC 2.0 request and decodes result into out
func (a *MoneroAdapter) call(ctx context.Context, method string, params, out any) error {
	body, err := json.Marshal(moneroRPCRequest{JSONRPC: "2.0", ID: "0", Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("monero: failed to marshal %s: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.RPCURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("monero: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if a.config.RPCUser != "" && a.config.RPCPassword != "" {
		req.SetBasicAuth(a.config.RPCUser, a.config.RPCPassword)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", payment.ErrGatewayRequestFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("monero: failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: HTTP %d: %s", payment.ErrGatewayRequestFailed, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var rpcResp moneroRPCResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return fmt.Errorf("%w: %v", payment.ErrGatewayInvalidResponse, err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("%w: %s: %v", payment.ErrGatewayRequestFailed, method, rpcResp.Error)
	}
	if out == nil || len(rpcResp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return fmt.Errorf("%w: %s result: %v", payment.ErrGatewayInvalidResponse, method, err)
	}
	return nil
}

var _ payment.MoneroWallet = (*MoneroAdapter)(nil)
