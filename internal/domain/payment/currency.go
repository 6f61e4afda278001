package payment

import "github.com/cryptonexus/backend/internal/domain/shared"

// Currency describes a payment currency offered to buyers
type Currency struct {
	Symbol           shared.CryptoCurrency `json:"symbol"`
	Name             string                `json:"name"`
	IsActive         bool                  `json:"is_active"`
	MinConfirmations int                   `json:"min_confirmations"`
}

// SupportedCurrencies is the seeded currency table
func SupportedCurrencies() []Currency {
	return []Currency{
		{Symbol: shared.CurrencyBTC, Name: "Bitcoin", IsActive: true, MinConfirmations: RequiredConfirmations(shared.CurrencyBTC)},
		{Symbol: shared.CurrencyXMR, Name: "Monero", IsActive: true, MinConfirmations: RequiredConfirmations(shared.CurrencyXMR)},
	}
}

// RequiredConfirmations is the confirmation depth before a payment counts
func RequiredConfirmations(c shared.CryptoCurrency) int {
	if c == shared.CurrencyXMR {
		return 1
	}
	return 3
}
