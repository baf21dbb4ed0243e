package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSymbolFilter(t *testing.T) {
	f := NewSymbolFilter()

	valid := []string{"BTC", "ETH", "SOL", "ATOM", "btc"}
	for _, sym := range valid {
		assert.True(t, f.IsValidSymbol(sym), "expected %s to be valid", sym)
	}

	filtered := []string{"USDT", "USDC", "BUSD", "FDUSD", "LDBTC", "LDETH", "BTCUP", "ETHDOWN", ""}
	for _, sym := range filtered {
		assert.False(t, f.IsValidSymbol(sym), "expected %s to be filtered", sym)
		assert.NotEmpty(t, f.FilterReason(sym))
	}
}

func TestSymbolFilter_ReasonIsEmptyForValid(t *testing.T) {
	f := NewSymbolFilter()
	assert.Empty(t, f.FilterReason("BTC"))
}
