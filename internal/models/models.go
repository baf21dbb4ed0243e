package models

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionBuy  TransactionType = "BUY"
	TransactionSell TransactionType = "SELL"
)

type EarnPositionType string

const (
	EarnFlexible EarnPositionType = "FLEXIBLE"
	EarnLocked   EarnPositionType = "LOCKED"
)

type User struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type Portfolio struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Holding quantity and average cost are derived state: once a holding has
// transactions they are always the result of replaying the full transaction
// list through the ledger, never edited independently.
type Holding struct {
	ID          string          `db:"id" json:"id"`
	PortfolioID string          `db:"portfolio_id" json:"portfolio_id"`
	Symbol      string          `db:"symbol" json:"symbol"`
	Name        string          `db:"name" json:"name"`
	Quantity    decimal.Decimal `db:"quantity" json:"quantity"`
	AverageCost decimal.Decimal `db:"average_cost" json:"average_cost"`
	Notes       string          `db:"notes" json:"notes,omitempty"`
	LastUpdated time.Time       `db:"last_updated" json:"last_updated"`
}

type Transaction struct {
	ID           string          `db:"id" json:"id"`
	HoldingID    string          `db:"holding_id" json:"holding_id"`
	Type         TransactionType `db:"type" json:"type"`
	Quantity     decimal.Decimal `db:"quantity" json:"quantity"`
	PricePerUnit decimal.Decimal `db:"price_per_unit" json:"price_per_unit"`
	Fee          decimal.Decimal `db:"fee" json:"fee"`
	TotalCost    decimal.Decimal `db:"total_cost" json:"total_cost"`
	Date         time.Time       `db:"date" json:"date"`
	Notes        string          `db:"notes" json:"notes,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

type EarnPosition struct {
	ID            string              `db:"id" json:"id"`
	UserID        string              `db:"user_id" json:"user_id"`
	Asset         string              `db:"asset" json:"asset"`
	ProductID     string              `db:"product_id" json:"product_id"`
	ProductName   string              `db:"product_name" json:"product_name"`
	Type          EarnPositionType    `db:"type" json:"type"`
	Amount        decimal.Decimal     `db:"amount" json:"amount"`
	CurrentAPY    decimal.Decimal     `db:"current_apy" json:"current_apy"`
	DailyEarnings decimal.NullDecimal `db:"daily_earnings" json:"daily_earnings,omitempty"`
	LockPeriod    int                 `db:"lock_period" json:"lock_period"`
	LockedUntil   sql.NullTime        `db:"locked_until" json:"locked_until,omitempty"`
	CanRedeem     bool                `db:"can_redeem" json:"can_redeem"`
	AutoSubscribe bool                `db:"auto_subscribe" json:"auto_subscribe"`
	LastSyncedAt  time.Time           `db:"last_synced_at" json:"last_synced_at"`
}

// EarnReward has no natural external ID; duplicates are detected on the
// (user, asset, amount, reward date, type) tuple.
type EarnReward struct {
	ID         string          `db:"id" json:"id"`
	UserID     string          `db:"user_id" json:"user_id"`
	PositionID sql.NullString  `db:"position_id" json:"position_id,omitempty"`
	Asset      string          `db:"asset" json:"asset"`
	Amount     decimal.Decimal `db:"amount" json:"amount"`
	Type       string          `db:"type" json:"type"`
	RewardDate time.Time       `db:"reward_date" json:"reward_date"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// AccountBalance is one line of the exchange account snapshot.
type AccountBalance struct {
	Asset  string          `json:"asset"`
	Free   decimal.Decimal `json:"free"`
	Locked decimal.Decimal `json:"locked"`
}

func (b AccountBalance) Total() decimal.Decimal {
	return b.Free.Add(b.Locked)
}

// EarnPositionSnapshot is one earn product position as reported by the exchange.
type EarnPositionSnapshot struct {
	Asset         string
	ProductID     string
	ProductName   string
	Type          EarnPositionType
	Amount        decimal.Decimal
	CurrentAPY    decimal.Decimal
	DailyEarnings decimal.NullDecimal
	LockPeriod    int
	LockedUntil   sql.NullTime
	CanRedeem     bool
	AutoSubscribe bool
}

// RewardSnapshot is one earn reward record as reported by the exchange.
type RewardSnapshot struct {
	Asset      string
	ProductID  string
	Amount     decimal.Decimal
	Type       string
	RewardDate time.Time
}

type PriceInfo struct {
	Symbol string          `json:"symbol"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
}
