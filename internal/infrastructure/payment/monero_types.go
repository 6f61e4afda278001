package payment

import (
	"encoding/json"
	"fmt"
)

// piconeroExponent converts atomic units to XMR (1 XMR = 1e12 piconero)
const piconeroExponent = -12

type moneroRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type moneroRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *moneroRPCError) Error() string {
	return fmt.Sprintf("monero rpc error %d: %s", e.Code, e.Message)
}

type moneroRPCResponse struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *moneroRPCError `json:"error"`
}

type moneroCreateAddressParams struct {
	AccountIndex uint32 `json:"account_index"`
	Label        string `json:"label,omitempty"`
}

type moneroCreateAddressResult struct {
	Address      string `json:"address"`
	AddressIndex uint32 `json:"address_index"`
}

type moneroGetTransfersParams struct {
	In             bool     `json:"in"`
	Pool           bool     `json:"pool"`
	AccountIndex   uint32   `json:"account_index"`
	SubaddrIndices []uint32 `json:"subaddr_indices,omitempty"`
}

type moneroSubaddrIndex struct {
	Major uint32 `json:"major"`
	Minor uint32 `json:"minor"`
}

type moneroTransfer struct {
	TxID          string             `json:"txid"`
	Address       string             `json:"address"`
	Amount        uint64             `json:"amount"`
	Confirmations int                `json:"confirmations"`
	Height        uint64             `json:"height"`
	SubaddrIndex  moneroSubaddrIndex `json:"subaddr_index"`
	Type          string             `json:"type"`
}

type moneroGetTransfersResult struct {
	In   []moneroTransfer `json:"in"`
	Pool []moneroTransfer `json:"pool"`
}
