package merem

import (
	"slices"
	"strings"
)

// defaultOrder is the order symbols are offered to the model in.
var defaultOrder = []string{"SOL", "USDC", "BONK", "WISE", "JTO"}

// DefaultTokens returns the built-in symbol table. WISE ships without an
// address and has to be configured before it can be priced.
func DefaultTokens() map[string]string {
	return map[string]string{
		"SOL":  "So11111111111111111111111111111111111111112",
		"USDC": "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		"BONK": "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263",
		"WISE": "",
		"JTO":  "jtojtomepa8beP8AuQc6eXt5FriJwfFMwQx2v2f9mCL",
	}
}

// MergeTokens returns base with overrides applied. Keys are upper-cased since
// config loaders lower-case map keys.
func MergeTokens(base, overrides map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(overrides))
	for k, v := range base {
		out[strings.ToUpper(k)] = v
	}
	for k, v := range overrides {
		sym := strings.ToUpper(strings.TrimSpace(k))
		if sym == "" {
			continue
		}
		out[sym] = strings.TrimSpace(v)
	}
	return out
}

func symbols(tokens map[string]string) []string {
	out := make([]string, 0, len(tokens))
	for _, sym := range defaultOrder {
		if _, ok := tokens[sym]; ok {
			out = append(out, sym)
		}
	}
	var extra []string
	for sym := range tokens {
		if !slices.Contains(defaultOrder, sym) {
			extra = append(extra, sym)
		}
	}
	slices.Sort(extra)
	return append(out, extra...)
}
