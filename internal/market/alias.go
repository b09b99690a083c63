package market

import "strings"

// defaultAliases maps common tickers to CoinGecko identifiers.
var defaultAliases = Aliases{
	"btc":   "bitcoin",
	"xbt":   "bitcoin",
	"eth":   "ethereum",
	"sol":   "solana",
	"bnb":   "binancecoin",
	"xrp":   "ripple",
	"ada":   "cardano",
	"doge":  "dogecoin",
	"dot":   "polkadot",
	"trx":   "tron",
	"ltc":   "litecoin",
	"link":  "chainlink",
	"avax":  "avalanche-2",
	"matic": "matic-network",
	"pol":   "matic-network",
	"usdt":  "tether",
	"usdc":  "usd-coin",
	"xlm":   "stellar",
}

// Aliases maps lowercase tickers to canonical identifiers.
type Aliases map[string]string

// DefaultAliases returns a copy of the built-in alias table.
func DefaultAliases() Aliases {
	return defaultAliases.With(nil)
}

// With returns a copy of a extended by extra. Keys and values are
// lowercased; extra wins on conflict.
func (a Aliases) With(extra map[string]string) Aliases {
	out := make(Aliases, len(a)+len(extra))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range extra {
		out[strings.ToLower(strings.TrimSpace(k))] = strings.ToLower(strings.TrimSpace(v))
	}
	return out
}

// Normalize lowercases and trims input, then resolves it through the
// alias table. Unmapped inputs pass through unchanged.
func (a Aliases) Normalize(input string) string {
	id := strings.ToLower(strings.TrimSpace(input))
	if canonical, ok := a[id]; ok {
		return canonical
	}
	return id
}

// Normalize resolves input through the built-in alias table.
func Normalize(input string) string {
	return defaultAliases.Normalize(input)
}
