package service

import (
	"context"
	"time"

	"cryptofolio/internal/models"

	"github.com/shopspring/decimal"
)

// HoldingStore is the persistence surface the holdings sync, transaction
// admission and valuation services depend on. Find* methods return
// (nil, nil) when no row matches; Get* methods return ErrNotFound.
type HoldingStore interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	EnsurePortfolio(ctx context.Context, userID string) (*models.Portfolio, error)
	ListHoldings(ctx context.Context, portfolioID string) ([]models.Holding, error)
	GetHolding(ctx context.Context, id string) (*models.Holding, error)
	FindHoldingBySymbol(ctx context.Context, portfolioID, symbol string) (*models.Holding, error)
	CreateHolding(ctx context.Context, h *models.Holding) error
	UpdateHoldingQuantity(ctx context.Context, id string, quantity decimal.Decimal) error
	UpdateHoldingLedger(ctx context.Context, id string, quantity, averageCost decimal.Decimal) error
	DeleteHolding(ctx context.Context, id string) error
}

type TransactionStore interface {
	ListTransactions(ctx context.Context, holdingID string) ([]models.Transaction, error)
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	CreateTransaction(ctx context.Context, tx *models.Transaction) error
	UpdateTransaction(ctx context.Context, tx *models.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error
}

type EarnStore interface {
	ListEarnPositions(ctx context.Context, userID string) ([]models.EarnPosition, error)
	FindEarnPosition(ctx context.Context, userID, productID, asset string) (*models.EarnPosition, error)
	FindEarnPositionByAsset(ctx context.Context, userID, asset string) (*models.EarnPosition, error)
	CreateEarnPosition(ctx context.Context, p *models.EarnPosition) error
	UpdateEarnPosition(ctx context.Context, p *models.EarnPosition) error
	DeleteEarnPosition(ctx context.Context, id string) error
	RewardExists(ctx context.Context, userID, asset string, amount decimal.Decimal, rewardDate time.Time, rewardType string) (bool, error)
	CreateEarnReward(ctx context.Context, r *models.EarnReward) error
}

// ExchangeAccount is the exchange adapter the sync engine reads snapshots
// from. A failed call here is fatal to the whole sync.
type ExchangeAccount interface {
	GetAccountBalances(ctx context.Context) ([]models.AccountBalance, error)
	GetAllEarnPositions(ctx context.Context) ([]models.EarnPositionSnapshot, error)
	GetAllRewardsHistory(ctx context.Context, start, end *time.Time) ([]models.RewardSnapshot, error)
}

// PriceResolver resolves current prices. GetPrices is bulk and best-effort:
// a symbol missing from the map means "try GetPrice as a fallback".
type PriceResolver interface {
	GetPrice(ctx context.Context, symbol string) (models.PriceInfo, error)
	GetPrices(ctx context.Context, symbols []string) (map[string]models.PriceInfo, error)
}
