package ledger

import (
	"testing"
	"time"

	"cryptofolio/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseDate = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func tx(txType models.TransactionType, day int, qty, price string) models.Transaction {
	q := decimal.RequireFromString(qty)
	p := decimal.RequireFromString(price)
	return models.Transaction{
		Type:         txType,
		Quantity:     q,
		PricePerUnit: p,
		TotalCost:    q.Mul(p),
		Date:         baseDate.AddDate(0, 0, day),
	}
}

func TestReplay_BuyOnlyAveraging(t *testing.T) {
	res := Replay([]models.Transaction{
		tx(models.TransactionBuy, 0, "5", "40000"),
		tx(models.TransactionBuy, 1, "5", "60000"),
	})
	require.False(t, res.Empty)
	assert.True(t, res.Quantity.Equal(decimal.RequireFromString("10")), "quantity = %s", res.Quantity)
	assert.True(t, res.AverageCost.Equal(decimal.RequireFromString("50000")), "averageCost = %s", res.AverageCost)
}

func TestReplay_SellPreservesAverageCost(t *testing.T) {
	res := Replay([]models.Transaction{
		tx(models.TransactionBuy, 0, "10", "50000"),
		tx(models.TransactionSell, 1, "5", "60000"),
	})
	assert.True(t, res.Quantity.Equal(decimal.RequireFromString("5")), "quantity = %s", res.Quantity)
	assert.True(t, res.AverageCost.Equal(decimal.RequireFromString("50000")), "averageCost = %s", res.AverageCost)
	assert.False(t, res.Oversold)
}

func TestReplay_FullLiquidationZeroesOut(t *testing.T) {
	res := Replay([]models.Transaction{
		tx(models.TransactionBuy, 0, "10", "50000"),
		tx(models.TransactionSell, 1, "10", "60000"),
	})
	assert.True(t, res.Quantity.IsZero(), "quantity = %s", res.Quantity)
	assert.True(t, res.AverageCost.IsZero(), "averageCost = %s", res.AverageCost)
}

func TestReplay_SortsByDateBeforeFolding(t *testing.T) {
	forward := []models.Transaction{
		tx(models.TransactionBuy, 0, "10", "50000"),
		tx(models.TransactionSell, 1, "5", "55000"),
		tx(models.TransactionBuy, 2, "5", "30000"),
	}
	reversed := []models.Transaction{forward[2], forward[1], forward[0]}

	a := Replay(forward)
	b := Replay(reversed)
	assert.True(t, a.Quantity.Equal(b.Quantity), "quantity %s != %s", a.Quantity, b.Quantity)
	assert.True(t, a.AverageCost.Equal(b.AverageCost), "averageCost %s != %s", a.AverageCost, b.AverageCost)
}

func TestReplay_Deterministic(t *testing.T) {
	txs := []models.Transaction{
		tx(models.TransactionBuy, 0, "1.5", "30123.45"),
		tx(models.TransactionBuy, 3, "0.25", "41000"),
		tx(models.TransactionSell, 5, "0.75", "39000"),
		tx(models.TransactionBuy, 9, "2", "28500.10"),
	}
	a := Replay(txs)
	b := Replay(txs)
	assert.True(t, a.Quantity.Equal(b.Quantity))
	assert.True(t, a.AverageCost.Equal(b.AverageCost))
}

func TestReplay_FeeExcludedFromCostBasis(t *testing.T) {
	buy := tx(models.TransactionBuy, 0, "2", "100")
	buy.Fee = decimal.RequireFromString("9.99")
	buy.TotalCost = buy.TotalCost.Add(buy.Fee)

	res := Replay([]models.Transaction{buy})
	assert.True(t, res.AverageCost.Equal(decimal.RequireFromString("100")), "averageCost = %s", res.AverageCost)
}

func TestReplay_EmptyListLeavesHoldingUntouched(t *testing.T) {
	res := Replay(nil)
	assert.True(t, res.Empty)
}

func TestReplay_SellWithNothingHeldIsNoOp(t *testing.T) {
	res := Replay([]models.Transaction{
		tx(models.TransactionSell, 0, "3", "50000"),
		tx(models.TransactionBuy, 1, "1", "40000"),
	})
	assert.True(t, res.Oversold)
	assert.True(t, res.Quantity.Equal(decimal.RequireFromString("1")), "quantity = %s", res.Quantity)
	assert.True(t, res.AverageCost.Equal(decimal.RequireFromString("40000")), "averageCost = %s", res.AverageCost)
}

func TestReplay_SellExceedingHeldDrainsToZero(t *testing.T) {
	res := Replay([]models.Transaction{
		tx(models.TransactionBuy, 0, "1", "40000"),
		tx(models.TransactionSell, 1, "2", "45000"),
	})
	assert.True(t, res.Oversold)
	assert.True(t, res.Quantity.IsZero(), "quantity = %s", res.Quantity)
	assert.True(t, res.AverageCost.IsZero(), "averageCost = %s", res.AverageCost)
}

func TestReplay_OversoldSellNeverGoesNegative(t *testing.T) {
	// a history where every step was valid on admission can still
	// oversell on replay once an early buy is removed
	res := Replay([]models.Transaction{
		tx(models.TransactionBuy, 0, "5", "50000"),
		tx(models.TransactionSell, 1, "12", "55000"),
		tx(models.TransactionBuy, 2, "3", "60000"),
	})
	assert.True(t, res.Oversold)
	assert.True(t, res.Quantity.Equal(decimal.RequireFromString("3")), "quantity = %s", res.Quantity)
	assert.True(t, res.AverageCost.Equal(decimal.RequireFromString("60000")), "averageCost = %s", res.AverageCost)
}

func TestReplay_QuantityRoundedToEightDigits(t *testing.T) {
	res := Replay([]models.Transaction{
		tx(models.TransactionBuy, 0, "0.123456789123", "100"),
	})
	assert.True(t, res.Quantity.Equal(decimal.RequireFromString("0.12345679")), "quantity = %s", res.Quantity)
}

func TestTotalInvested_NetsSellsAgainstBuys(t *testing.T) {
	txs := []models.Transaction{
		tx(models.TransactionBuy, 0, "10", "50000"),
		tx(models.TransactionSell, 1, "4", "60000"),
	}
	// 500000 - 240000
	assert.True(t, TotalInvested(txs).Equal(decimal.RequireFromString("260000")))
}

func TestTotalInvested_IncludesFees(t *testing.T) {
	buy := tx(models.TransactionBuy, 0, "1", "100")
	buy.Fee = decimal.RequireFromString("5")
	buy.TotalCost = buy.TotalCost.Add(buy.Fee)
	assert.True(t, TotalInvested([]models.Transaction{buy}).Equal(decimal.RequireFromString("105")))
}

func TestAverageBuyPrice_IgnoresSells(t *testing.T) {
	txs := []models.Transaction{
		tx(models.TransactionBuy, 0, "5", "40000"),
		tx(models.TransactionBuy, 1, "5", "60000"),
		tx(models.TransactionSell, 2, "8", "90000"),
	}
	assert.True(t, AverageBuyPrice(txs).Equal(decimal.RequireFromString("50000")))
}

func TestAverageBuyPrice_NoBuys(t *testing.T) {
	txs := []models.Transaction{tx(models.TransactionSell, 0, "1", "100")}
	assert.True(t, AverageBuyPrice(txs).IsZero())
}
