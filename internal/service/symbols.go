package service

import "strings"

// SymbolFilter decides which snapshot assets are tradeable holdings and
// which are exchange-internal or quote-currency noise. Filtered assets are
// skipped silently during sync, never recorded as errors.
type SymbolFilter struct {
	excluded map[string]string
	prefixes map[string]string
	suffixes map[string]string
}

func NewSymbolFilter() *SymbolFilter {
	return &SymbolFilter{
		excluded: map[string]string{
			"USDT":  "stablecoin used as quote currency",
			"USDC":  "stablecoin used as quote currency",
			"BUSD":  "stablecoin used as quote currency",
			"FDUSD": "stablecoin used as quote currency",
			"TUSD":  "stablecoin used as quote currency",
			"DAI":   "stablecoin used as quote currency",
		},
		prefixes: map[string]string{
			"LD": "exchange-internal earn wrapper token",
		},
		suffixes: map[string]string{
			"UP":   "leveraged derivative token",
			"DOWN": "leveraged derivative token",
			"BULL": "leveraged derivative token",
			"BEAR": "leveraged derivative token",
		},
	}
}

func (f *SymbolFilter) IsValidSymbol(symbol string) bool {
	return f.FilterReason(symbol) == ""
}

// FilterReason returns why a symbol is filtered, or "" if it is valid.
func (f *SymbolFilter) FilterReason(symbol string) string {
	sym := strings.ToUpper(symbol)
	if sym == "" {
		return "empty symbol"
	}
	if reason, ok := f.excluded[sym]; ok {
		return reason
	}
	for prefix, reason := range f.prefixes {
		// a bare prefix match like "LD" itself is not a wrapper
		if strings.HasPrefix(sym, prefix) && len(sym) > len(prefix) {
			return reason
		}
	}
	for suffix, reason := range f.suffixes {
		if strings.HasSuffix(sym, suffix) && len(sym) > len(suffix) {
			return reason
		}
	}
	return ""
}
