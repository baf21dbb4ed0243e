package service

import (
	"context"
	"testing"

	"cryptofolio/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedHolding(t *testing.T, store *memStore, portfolioID, symbol, qty, avgCost string) {
	t.Helper()
	require.NoError(t, store.CreateHolding(context.Background(), &models.Holding{
		PortfolioID: portfolioID,
		Symbol:      symbol,
		Name:        symbol,
		Quantity:    decimal.RequireFromString(qty),
		AverageCost: decimal.RequireFromString(avgCost),
	}))
}

func TestPortfolioSummary_Rollups(t *testing.T) {
	store := newMemStore()
	store.addUser("alice")
	pf, err := store.EnsurePortfolio(context.Background(), "alice")
	require.NoError(t, err)
	seedHolding(t, store, pf.ID, "BTC", "1", "40000")
	seedHolding(t, store, pf.ID, "ETH", "10", "2000")

	prices := &stubPrices{bulk: map[string]models.PriceInfo{
		"BTC": price("BTC", "60000"),
		"ETH": price("ETH", "2000"),
	}}
	svc := NewValuation(store, prices, testLogger())

	summary, err := svc.PortfolioSummary(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, summary.Holdings, 2)

	// total value 60000 + 20000, total cost 40000 + 20000
	assert.True(t, summary.TotalValue.Equal(decimal.RequireFromString("80000")), "totalValue = %s", summary.TotalValue)
	assert.True(t, summary.TotalCost.Equal(decimal.RequireFromString("60000")), "totalCost = %s", summary.TotalCost)
	assert.True(t, summary.TotalGainLoss.Equal(decimal.RequireFromString("20000")))

	bySymbol := map[string]HoldingValuation{}
	for _, h := range summary.Holdings {
		bySymbol[h.Symbol] = h
	}
	btc := bySymbol["BTC"]
	assert.True(t, btc.AllocationPct.Equal(decimal.RequireFromString("75")), "allocation = %s", btc.AllocationPct)
	assert.True(t, btc.GainLossPct.Equal(decimal.RequireFromString("50")), "gainLossPct = %s", btc.GainLossPct)
	eth := bySymbol["ETH"]
	assert.True(t, eth.AllocationPct.Equal(decimal.RequireFromString("25")), "allocation = %s", eth.AllocationPct)
	assert.True(t, eth.GainLossPct.IsZero(), "gainLossPct = %s", eth.GainLossPct)
}

func TestPortfolioSummary_UnpricedHoldingIsReportedNotDropped(t *testing.T) {
	store := newMemStore()
	store.addUser("alice")
	pf, err := store.EnsurePortfolio(context.Background(), "alice")
	require.NoError(t, err)
	seedHolding(t, store, pf.ID, "BTC", "1", "40000")
	seedHolding(t, store, pf.ID, "OBSCURE", "100", "2")

	prices := &stubPrices{bulk: map[string]models.PriceInfo{"BTC": price("BTC", "60000")}}
	svc := NewValuation(store, prices, testLogger())

	summary, err := svc.PortfolioSummary(context.Background(), "alice")
	require.NoError(t, err)
	assert.Len(t, summary.Holdings, 2)
	assert.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0], "OBSCURE")
	assert.True(t, summary.TotalValue.Equal(decimal.RequireFromString("60000")))
}

func TestPortfolioSummary_UnknownUser(t *testing.T) {
	svc := NewValuation(newMemStore(), &stubPrices{}, testLogger())
	_, err := svc.PortfolioSummary(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}
