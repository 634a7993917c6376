package domain

import "strings"

// CryptoSeparator splits base and quote in crypto pair symbols ("BTC/USD").
// Equity symbols never contain it.
const CryptoSeparator = "/"

// IsCrypto reports whether a symbol is a crypto pair. Both spellings of the
// same pair ("BTC/USD" and "BTCUSD") occur in broker responses, but only the
// separated form is detectable; callers that hold the unseparated form must
// compare through NormalizeSymbol instead.
func IsCrypto(symbol string) bool {
	return strings.Contains(symbol, CryptoSeparator)
}

// NormalizeSymbol canonicalizes a symbol for cross-source comparison:
// upper-cased, trimmed, crypto separator removed. "btc/usd", "BTC/USD" and
// "BTCUSD" all normalize to "BTCUSD". Raw symbols from different sources
// must never be compared without this.
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	return strings.ReplaceAll(s, CryptoSeparator, "")
}

// SameSymbol reports whether two raw symbols refer to the same instrument,
// tolerating crypto separator and case differences.
func SameSymbol(a, b string) bool {
	return NormalizeSymbol(a) == NormalizeSymbol(b)
}
