package payment

import (
	"testing"
	"time"

	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAddress(t *testing.T, currency shared.CryptoCurrency, amount string) *PaymentAddress {
	t.Helper()
	ref := OrderRef{
		OrderID:     uuid.New(),
		OrderNumber: "ORD-ABCDEF12",
		BuyerID:     uuid.New(),
		VendorID:    uuid.New(),
		UseEscrow:   true,
	}
	p, err := NewPaymentAddress(ref, currency, PaymentTypeWallet, "addr-1", decimal.RequireFromString(amount), time.Now(), 0)
	require.NoError(t, err)
	return p
}

func TestNewPaymentAddress(t *testing.T) {
	now := time.Now()
	p, err := NewPaymentAddress(OrderRef{OrderID: uuid.New()}, shared.CurrencyXMR, PaymentTypeMoneroRPC, "8abc", decimal.NewFromInt(1), now, 0)
	require.NoError(t, err)

	assert.Equal(t, AddressStatusPending, p.Status)
	assert.Equal(t, 1, p.RequiredConfirmations)
	assert.True(t, p.ReceivedAmount.IsZero())
	assert.Equal(t, now.Add(DefaultPaymentWindow), p.ExpiresAt)

	btc := newTestAddress(t, shared.CurrencyBTC, "0.01")
	assert.Equal(t, 3, btc.RequiredConfirmations)
}

func TestNewPaymentAddress_Validation(t *testing.T) {
	_, err := NewPaymentAddress(OrderRef{}, shared.CurrencyBTC, PaymentTypeWallet, "", decimal.NewFromInt(1), time.Now(), time.Hour)
	assert.Error(t, err)

	_, err = NewPaymentAddress(OrderRef{}, shared.CurrencyBTC, PaymentTypeWallet, "addr", decimal.Zero, time.Now(), time.Hour)
	assert.Error(t, err)
}

func TestPaymentAddress_MarkSettled(t *testing.T) {
	p := newTestAddress(t, shared.CurrencyBTC, "0.01")
	now := time.Now()

	changed, err := p.MarkSettled("tx-1", now)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, AddressStatusPaid, p.Status)
	assert.True(t, p.ReceivedAmount.Equal(p.ExpectedAmount))
	assert.Equal(t, "tx-1", p.TransactionHash)
	require.NotNil(t, p.ConfirmedAt)

	events := p.GetDomainEvents()
	require.Len(t, events, 1)
	confirmed, ok := events[0].(*PaymentConfirmedEvent)
	require.True(t, ok)
	assert.Equal(t, p.OrderID, confirmed.OrderID)
	assert.True(t, confirmed.UseEscrow)

	// a redelivered notification is a no-op
	changed, err = p.MarkSettled("tx-1", now)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Len(t, p.GetDomainEvents(), 1)
}

func TestPaymentAddress_MarkSettled_Failed(t *testing.T) {
	p := newTestAddress(t, shared.CurrencyBTC, "0.01")
	require.NoError(t, p.Fail())

	_, err := p.MarkSettled("", time.Now())
	assert.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestPaymentAddress_RecordTransfer(t *testing.T) {
	tests := []struct {
		name          string
		received      string
		confirmations int
		wantSettled   bool
		wantStatus    AddressStatus
	}{
		{"nothing yet", "0", 0, false, AddressStatusPending},
		{"partial", "0.4", 5, false, AddressStatusPartial},
		{"full but unconfirmed", "1", 0, false, AddressStatusPending},
		{"full and confirmed", "1", 1, true, AddressStatusPaid},
		{"overpaid", "1.5", 2, true, AddressStatusOverpaid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestAddress(t, shared.CurrencyXMR, "1")
			settled, err := p.RecordTransfer(decimal.RequireFromString(tt.received), tt.confirmations, "tx", time.Now())
			require.NoError(t, err)
			assert.Equal(t, tt.wantSettled, settled)
			assert.Equal(t, tt.wantStatus, p.Status)
			assert.True(t, decimal.RequireFromString(tt.received).Equal(p.ReceivedAmount))
			if tt.wantSettled {
				assert.Len(t, p.GetDomainEvents(), 1)
			} else {
				assert.Empty(t, p.GetDomainEvents())
			}
		})
	}
}

func TestPaymentAddress_RecordTransfer_PartialThenComplete(t *testing.T) {
	p := newTestAddress(t, shared.CurrencyXMR, "1")

	_, err := p.RecordTransfer(decimal.RequireFromString("0.5"), 1, "tx-a", time.Now())
	require.NoError(t, err)
	assert.Equal(t, AddressStatusPartial, p.Status)

	settled, err := p.RecordTransfer(decimal.NewFromInt(1), 1, "tx-b", time.Now())
	require.NoError(t, err)
	assert.True(t, settled)
	assert.Equal(t, AddressStatusPaid, p.Status)
	assert.Equal(t, "tx-b", p.TransactionHash)
}

func TestPaymentAddress_RecordTransfer_NeverDecreases(t *testing.T) {
	p := newTestAddress(t, shared.CurrencyXMR, "1")

	_, err := p.RecordTransfer(decimal.RequireFromString("0.6"), 1, "tx-a", time.Now())
	require.NoError(t, err)

	// a stale notification carrying a smaller total
	settled, err := p.RecordTransfer(decimal.RequireFromString("0.4"), 2, "tx-b", time.Now())
	require.NoError(t, err)
	assert.False(t, settled)
	assert.True(t, decimal.RequireFromString("0.6").Equal(p.ReceivedAmount))
	assert.Equal(t, AddressStatusPartial, p.Status)
}

func TestPaymentAddress_RecordTransfer_Expired(t *testing.T) {
	p := newTestAddress(t, shared.CurrencyXMR, "1")
	require.NoError(t, p.Expire())

	_, err := p.RecordTransfer(decimal.NewFromInt(1), 1, "tx", time.Now())
	assert.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestPaymentAddress_Expire(t *testing.T) {
	p := newTestAddress(t, shared.CurrencyBTC, "0.01")

	assert.False(t, p.IsOverdue(time.Now()))
	assert.True(t, p.IsOverdue(p.ExpiresAt.Add(time.Second)))

	require.NoError(t, p.Expire())
	assert.Equal(t, AddressStatusExpired, p.Status)
	assert.False(t, p.IsOverdue(p.ExpiresAt.Add(time.Second)))
	assert.Error(t, p.Expire())
}

func TestPaymentAddress_FailSettled(t *testing.T) {
	p := newTestAddress(t, shared.CurrencyBTC, "0.01")
	_, err := p.MarkSettled("", time.Now())
	require.NoError(t, err)

	assert.ErrorIs(t, p.Fail(), shared.ErrInvalidState)
}

func TestSupportedCurrencies(t *testing.T) {
	currencies := SupportedCurrencies()
	require.Len(t, currencies, 2)
	assert.Equal(t, shared.CurrencyBTC, currencies[0].Symbol)
	assert.Equal(t, 3, currencies[0].MinConfirmations)
	assert.Equal(t, shared.CurrencyXMR, currencies[1].Symbol)
	assert.Equal(t, 1, currencies[1].MinConfirmations)
}

func TestPaymentWebhook_DedupKey(t *testing.T) {
	w := NewPaymentWebhook(WebhookSourceBTCPay, "inv-1", "InvoiceSettled", []byte("{}"))
	assert.Equal(t, "btcpay:inv-1:InvoiceSettled", w.DedupKey())
	assert.False(t, w.Processed)
}
