// Package ledger recomputes a holding's quantity and average cost from its
// full transaction history using the moving weighted-average method.
package ledger

import (
	"sort"

	"cryptofolio/internal/models"

	"github.com/shopspring/decimal"
)

// QuantityScale is the fractional precision quantities are persisted at.
const QuantityScale = 8

// Result is the outcome of replaying a holding's transactions.
type Result struct {
	Quantity    decimal.Decimal
	AverageCost decimal.Decimal
	// Empty means the transaction list was empty; the holding's stored
	// values must be left untouched rather than reset to zero.
	Empty bool
	// Oversold means at least one SELL exceeded the quantity held at that
	// point in the replay. A sell with nothing held is ignored; a sell
	// exceeding the held quantity drains the position to zero instead of
	// going negative. Callers should surface it: it usually means
	// out-of-band data.
	Oversold bool
}

// Replay folds the full transaction list into (quantity, averageCost).
// The input is not mutated; transactions are replayed in ascending date
// order regardless of input order.
//
// BUYs accumulate cost basis at quantity*price. The fee is part of the
// transaction's own total cost but is excluded from the cost basis.
// SELLs remove quantity at the running average cost, so the average cost
// of what remains is unchanged by a sell.
func Replay(txs []models.Transaction) Result {
	if len(txs) == 0 {
		return Result{Empty: true}
	}

	sorted := make([]models.Transaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	totalQuantity := decimal.Zero
	totalCost := decimal.Zero
	oversold := false

	for _, tx := range sorted {
		switch tx.Type {
		case models.TransactionBuy:
			totalCost = totalCost.Add(tx.Quantity.Mul(tx.PricePerUnit))
			totalQuantity = totalQuantity.Add(tx.Quantity)
		case models.TransactionSell:
			if totalQuantity.Sign() <= 0 {
				// nothing held at this point; ignore the sell
				oversold = true
				continue
			}
			if tx.Quantity.GreaterThan(totalQuantity) {
				// drain to zero instead of going negative; stored
				// quantities are constrained to be non-negative
				oversold = true
				totalQuantity = decimal.Zero
				totalCost = decimal.Zero
				continue
			}
			avgCost := totalCost.Div(totalQuantity)
			totalCost = totalCost.Sub(tx.Quantity.Mul(avgCost))
			totalQuantity = totalQuantity.Sub(tx.Quantity)
		}
	}

	avgCost := decimal.Zero
	if totalQuantity.Sign() > 0 {
		avgCost = totalCost.Div(totalQuantity)
	}
	return Result{
		Quantity:    totalQuantity.Round(QuantityScale),
		AverageCost: avgCost,
		Oversold:    oversold,
	}
}

// TotalInvested is the net amount put into a holding: the sum of BUY total
// costs minus the sum of SELL total costs. Fees are included via TotalCost,
// unlike the replay's cost-basis accumulation.
func TotalInvested(txs []models.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		switch tx.Type {
		case models.TransactionBuy:
			total = total.Add(tx.TotalCost)
		case models.TransactionSell:
			total = total.Sub(tx.TotalCost)
		}
	}
	return total
}

// AverageBuyPrice is the quantity-weighted mean price across BUYs only.
// SELLs do not enter this aggregate at all, which makes it distinct from
// the replay's sell-aware average cost.
func AverageBuyPrice(txs []models.Transaction) decimal.Decimal {
	quantity := decimal.Zero
	cost := decimal.Zero
	for _, tx := range txs {
		if tx.Type != models.TransactionBuy {
			continue
		}
		cost = cost.Add(tx.Quantity.Mul(tx.PricePerUnit))
		quantity = quantity.Add(tx.Quantity)
	}
	if quantity.Sign() <= 0 {
		return decimal.Zero
	}
	return cost.Div(quantity)
}
