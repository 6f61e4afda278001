package shared

import "strings"

// CryptoCurrency is the symbol of a supported payment currency
type CryptoCurrency string

const (
	CurrencyBTC CryptoCurrency = "BTC"
	CurrencyXMR CryptoCurrency = "XMR"
)

// ParseCryptoCurrency normalizes a symbol and rejects unsupported ones
func ParseCryptoCurrency(symbol string) (CryptoCurrency, error) {
	c := CryptoCurrency(strings.ToUpper(strings.TrimSpace(symbol)))
	switch c {
	case CurrencyBTC, CurrencyXMR:
		return c, nil
	}
	return "", NewDomainError("UNSUPPORTED_CURRENCY", "Unsupported cryptocurrency: "+symbol)
}
