package service

import (
	"context"
	"fmt"
	"time"

	"cryptofolio/internal/ledger"
	"cryptofolio/internal/models"
	"cryptofolio/internal/observability"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// TransactionInput carries the caller-supplied fields of a transaction.
// TotalCost is never accepted from the caller; it is recomputed here.
type TransactionInput struct {
	Type         models.TransactionType
	Quantity     decimal.Decimal
	PricePerUnit decimal.Decimal
	Fee          decimal.Decimal
	Date         time.Time
	Notes        string
}

func (in TransactionInput) validate() error {
	if in.Type != models.TransactionBuy && in.Type != models.TransactionSell {
		return fmt.Errorf("%w: type must be BUY or SELL", ErrInvalidInput)
	}
	if in.Quantity.Sign() <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}
	if in.PricePerUnit.Sign() <= 0 {
		return fmt.Errorf("%w: price per unit must be positive", ErrInvalidInput)
	}
	if in.Fee.Sign() < 0 {
		return fmt.Errorf("%w: fee must not be negative", ErrInvalidInput)
	}
	if in.Date.After(time.Now()) {
		return fmt.Errorf("%w: date must not be in the future", ErrInvalidInput)
	}
	return nil
}

func (in TransactionInput) totalCost() decimal.Decimal {
	return in.Quantity.Mul(in.PricePerUnit).Add(in.Fee)
}

// Transactions admits BUY/SELL transactions and keeps the owning holding's
// derived quantity and average cost in step by replaying the full
// transaction list after every mutation.
type Transactions struct {
	holdings HoldingStore
	txs      TransactionStore
	metrics  *observability.Metrics
	log      *logrus.Logger
}

func NewTransactions(holdings HoldingStore, txs TransactionStore, metrics *observability.Metrics, log *logrus.Logger) *Transactions {
	return &Transactions{holdings: holdings, txs: txs, metrics: metrics, log: log}
}

// Add validates and creates a transaction, then replays the holding.
// A SELL larger than the holding's current quantity is rejected with
// ErrInsufficientQuantity before anything is written.
func (s *Transactions) Add(ctx context.Context, holdingID string, in TransactionInput) (*models.Transaction, error) {
	holding, err := s.holdings.GetHolding(ctx, holdingID)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	if in.Type == models.TransactionSell && in.Quantity.GreaterThan(holding.Quantity) {
		return nil, fmt.Errorf("%w: sell %s exceeds held %s %s",
			ErrInsufficientQuantity, in.Quantity, holding.Quantity, holding.Symbol)
	}

	tx := &models.Transaction{
		HoldingID:    holdingID,
		Type:         in.Type,
		Quantity:     in.Quantity,
		PricePerUnit: in.PricePerUnit,
		Fee:          in.Fee,
		TotalCost:    in.totalCost(),
		Date:         in.Date,
		Notes:        in.Notes,
	}
	if err := s.txs.CreateTransaction(ctx, tx); err != nil {
		return nil, err
	}
	if err := s.recompute(ctx, holding); err != nil {
		return nil, err
	}
	return tx, nil
}

// Update rewrites a transaction and replays the holding when any field
// entering the ledger changed.
func (s *Transactions) Update(ctx context.Context, id string, in TransactionInput) (*models.Transaction, error) {
	tx, err := s.txs.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	changed := tx.Type != in.Type ||
		!tx.Quantity.Equal(in.Quantity) ||
		!tx.PricePerUnit.Equal(in.PricePerUnit) ||
		!tx.Fee.Equal(in.Fee) ||
		!tx.Date.Equal(in.Date)

	tx.Type = in.Type
	tx.Quantity = in.Quantity
	tx.PricePerUnit = in.PricePerUnit
	tx.Fee = in.Fee
	tx.TotalCost = in.totalCost()
	tx.Date = in.Date
	tx.Notes = in.Notes
	if err := s.txs.UpdateTransaction(ctx, tx); err != nil {
		return nil, err
	}

	if changed {
		holding, err := s.holdings.GetHolding(ctx, tx.HoldingID)
		if err != nil {
			return nil, err
		}
		if err := s.recompute(ctx, holding); err != nil {
			return nil, err
		}
	}
	return tx, nil
}

// Delete removes a transaction and replays the holding over what remains.
func (s *Transactions) Delete(ctx context.Context, id string) error {
	tx, err := s.txs.GetTransaction(ctx, id)
	if err != nil {
		return err
	}
	if err := s.txs.DeleteTransaction(ctx, id); err != nil {
		return err
	}
	holding, err := s.holdings.GetHolding(ctx, tx.HoldingID)
	if err != nil {
		return err
	}
	return s.recompute(ctx, holding)
}

// HoldingStats are the simple aggregates over a holding's transactions,
// distinct from the sell-aware average cost the replay produces.
type HoldingStats struct {
	TransactionCount int             `json:"transaction_count"`
	TotalInvested    decimal.Decimal `json:"total_invested"`
	AverageBuyPrice  decimal.Decimal `json:"average_buy_price"`
}

func (s *Transactions) Stats(ctx context.Context, holdingID string) (*HoldingStats, error) {
	if _, err := s.holdings.GetHolding(ctx, holdingID); err != nil {
		return nil, err
	}
	txs, err := s.txs.ListTransactions(ctx, holdingID)
	if err != nil {
		return nil, err
	}
	return &HoldingStats{
		TransactionCount: len(txs),
		TotalInvested:    ledger.TotalInvested(txs),
		AverageBuyPrice:  ledger.AverageBuyPrice(txs),
	}, nil
}

func (s *Transactions) recompute(ctx context.Context, holding *models.Holding) error {
	txs, err := s.txs.ListTransactions(ctx, holding.ID)
	if err != nil {
		return err
	}
	res := ledger.Replay(txs)
	if res.Empty {
		// no history left; keep the stored values instead of zeroing a
		// manually entered holding
		return nil
	}
	if res.Oversold {
		s.log.Warnf("holding %s (%s): replay hit a sell exceeding held quantity", holding.ID, holding.Symbol)
		s.metrics.LedgerOversold.Inc()
	}
	return s.holdings.UpdateHoldingLedger(ctx, holding.ID, res.Quantity, res.AverageCost)
}
