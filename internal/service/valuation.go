package service

import (
	"context"
	"fmt"

	"cryptofolio/internal/models"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var hundred = decimal.NewFromInt(100)

// HoldingValuation is one priced holding inside a portfolio summary.
type HoldingValuation struct {
	Symbol        string          `json:"symbol"`
	Name          string          `json:"name"`
	Quantity      decimal.Decimal `json:"quantity"`
	AverageCost   decimal.Decimal `json:"average_cost"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	CurrentValue  decimal.Decimal `json:"current_value"`
	CostBasis     decimal.Decimal `json:"cost_basis"`
	GainLoss      decimal.Decimal `json:"gain_loss"`
	GainLossPct   decimal.Decimal `json:"gain_loss_pct"`
	AllocationPct decimal.Decimal `json:"allocation_pct"`
}

// PortfolioSummary is the valuation rollup across a user's holdings.
// Holdings whose price could not be resolved appear with zero value and an
// entry in Errors rather than being dropped.
type PortfolioSummary struct {
	Holdings      []HoldingValuation `json:"holdings"`
	TotalValue    decimal.Decimal    `json:"total_value"`
	TotalCost     decimal.Decimal    `json:"total_cost"`
	TotalGainLoss decimal.Decimal    `json:"total_gain_loss"`
	GainLossPct   decimal.Decimal    `json:"gain_loss_pct"`
	Errors        []string           `json:"errors"`
}

// Valuation prices a portfolio and computes allocation and gain/loss rollups.
type Valuation struct {
	holdings HoldingStore
	prices   PriceResolver
	log      *logrus.Logger
}

func NewValuation(holdings HoldingStore, prices PriceResolver, log *logrus.Logger) *Valuation {
	return &Valuation{holdings: holdings, prices: prices, log: log}
}

func (s *Valuation) PortfolioSummary(ctx context.Context, userID string) (*PortfolioSummary, error) {
	user, err := s.holdings.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	portfolio, err := s.holdings.EnsurePortfolio(ctx, userID)
	if err != nil {
		return nil, err
	}
	holdings, err := s.holdings.ListHoldings(ctx, portfolio.ID)
	if err != nil {
		return nil, err
	}

	summary := &PortfolioSummary{Holdings: []HoldingValuation{}, Errors: []string{}}

	symbols := make([]string, 0, len(holdings))
	for _, h := range holdings {
		symbols = append(symbols, h.Symbol)
	}
	priceMap, err := s.prices.GetPrices(ctx, symbols)
	if err != nil {
		s.log.Warnf("portfolio summary: bulk price lookup failed: %v", err)
		priceMap = map[string]models.PriceInfo{}
	}

	for _, h := range holdings {
		item := HoldingValuation{
			Symbol:      h.Symbol,
			Name:        h.Name,
			Quantity:    h.Quantity,
			AverageCost: h.AverageCost,
			CostBasis:   h.Quantity.Mul(h.AverageCost),
		}

		price, ok := priceMap[h.Symbol]
		if !ok {
			price, err = s.prices.GetPrice(ctx, h.Symbol)
			if err != nil {
				summary.Errors = append(summary.Errors, fmt.Sprintf("%s: price unavailable: %v", h.Symbol, err))
				summary.Holdings = append(summary.Holdings, item)
				continue
			}
		}

		item.CurrentPrice = price.Price
		item.CurrentValue = h.Quantity.Mul(price.Price)
		item.GainLoss = item.CurrentValue.Sub(item.CostBasis)
		if item.CostBasis.Sign() > 0 {
			item.GainLossPct = item.GainLoss.Div(item.CostBasis).Mul(hundred)
		}

		summary.TotalValue = summary.TotalValue.Add(item.CurrentValue)
		summary.TotalCost = summary.TotalCost.Add(item.CostBasis)
		summary.Holdings = append(summary.Holdings, item)
	}

	// allocations need the final total, so they are a second pass
	if summary.TotalValue.Sign() > 0 {
		for i := range summary.Holdings {
			summary.Holdings[i].AllocationPct = summary.Holdings[i].CurrentValue.
				Div(summary.TotalValue).Mul(hundred)
		}
	}
	summary.TotalGainLoss = summary.TotalValue.Sub(summary.TotalCost)
	if summary.TotalCost.Sign() > 0 {
		summary.GainLossPct = summary.TotalGainLoss.Div(summary.TotalCost).Mul(hundred)
	}
	return summary, nil
}
