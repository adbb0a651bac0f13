package symbol

import (
	"strings"
)

// Symbol is a perpetual contract pair, e.g. BTC/USDT.
type Symbol struct {
	Base  string
	Quote string
}

// Binance renders the USDT-M contract name, e.g. BTCUSDT.
func (s Symbol) Binance() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + s.Quote
}

var quoteCurrencies = []string{"USDT", "USDC", "BUSD"}

// Parse accepts "BTC/USDT", "BTC/USDT:USDT" and "BTCUSDT".
func Parse(s string) Symbol {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Symbol{}
	}
	if idx := strings.Index(s, ":"); idx >= 0 {
		s = s[:idx]
	}
	if parts := strings.SplitN(s, "/", 2); len(parts) == 2 {
		return Symbol{
			Base:  strings.TrimSpace(parts[0]),
			Quote: strings.TrimSpace(parts[1]),
		}
	}
	for _, quote := range quoteCurrencies {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return Symbol{
				Base:  s[:len(s)-len(quote)],
				Quote: quote,
			}
		}
	}
	return Symbol{}
}

// Binance normalizes any accepted spelling to the exchange contract name.
func Binance(s string) string {
	return Parse(s).Binance()
}

func IsValid(s string) bool {
	sym := Parse(s)
	return sym.Base != "" && sym.Quote != ""
}

// NormalizeList converts to contract names and drops duplicates, keeping order.
// Invalid entries are returned separately.
func NormalizeList(symbols []string) (out []string, invalid []string) {
	seen := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		if strings.TrimSpace(s) == "" {
			continue
		}
		norm := Binance(s)
		if norm == "" {
			invalid = append(invalid, s)
			continue
		}
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	}
	return out, invalid
}
