package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cryptofolio/internal/models"
	"cryptofolio/internal/service"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Repo is the sqlx-backed implementation of the store interfaces the
// services consume. Every write is its own statement; the sync loop relies
// on resync idempotency rather than a wrapping transaction.
type Repo struct {
	db  *sqlx.DB
	log *logrus.Logger
}

func New(db *sqlx.DB, log *logrus.Logger) *Repo {
	return &Repo{db: db, log: log}
}

// --- users & portfolios ---

func (r *Repo) EnsureUser(ctx context.Context, userID, name string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO users (id, name) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`, userID, name)
	return err
}

func (r *Repo) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u, `SELECT id, name, created_at FROM users WHERE id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repo) EnsurePortfolio(ctx context.Context, userID string) (*models.Portfolio, error) {
	var p models.Portfolio
	err := r.db.GetContext(ctx, &p, `SELECT id, user_id, name, created_at FROM portfolios WHERE user_id = $1 ORDER BY created_at ASC LIMIT 1`, userID)
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	id := uuid.NewString()
	if _, err := r.db.ExecContext(ctx, `INSERT INTO portfolios (id, user_id, name) VALUES ($1, $2, 'Main')`, id, userID); err != nil {
		return nil, err
	}
	if err := r.db.GetContext(ctx, &p, `SELECT id, user_id, name, created_at FROM portfolios WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &p, nil
}

// --- holdings ---

const holdingColumns = `id, portfolio_id, symbol, name, quantity, average_cost, notes, last_updated`

func (r *Repo) ListHoldings(ctx context.Context, portfolioID string) ([]models.Holding, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT `+holdingColumns+` FROM holdings WHERE portfolio_id = $1 ORDER BY symbol ASC`, portfolioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []models.Holding{}
	for rows.Next() {
		var h models.Holding
		if err := rows.StructScan(&h); err != nil {
			r.log.Warnf("scan holding failed: %v", err)
			continue
		}
		res = append(res, h)
	}
	return res, rows.Err()
}

func (r *Repo) GetHolding(ctx context.Context, id string) (*models.Holding, error) {
	var h models.Holding
	err := r.db.GetContext(ctx, &h, `SELECT `+holdingColumns+` FROM holdings WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("holding %s: %w", id, service.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (r *Repo) FindHoldingBySymbol(ctx context.Context, portfolioID, symbol string) (*models.Holding, error) {
	var h models.Holding
	err := r.db.GetContext(ctx, &h, `SELECT `+holdingColumns+` FROM holdings WHERE portfolio_id = $1 AND symbol = $2`, portfolioID, symbol)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (r *Repo) CreateHolding(ctx context.Context, h *models.Holding) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO holdings (id, portfolio_id, symbol, name, quantity, average_cost, notes, last_updated)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7, now())`,
		h.ID, h.PortfolioID, h.Symbol, h.Name, h.Quantity.String(), h.AverageCost.String(), h.Notes)
	return err
}

func (r *Repo) UpdateHoldingQuantity(ctx context.Context, id string, quantity decimal.Decimal) error {
	res, err := r.db.ExecContext(ctx, `UPDATE holdings SET quantity = $1::numeric, last_updated = now() WHERE id = $2`, quantity.String(), id)
	if err != nil {
		return err
	}
	return requireRow(res, "holding", id)
}

func (r *Repo) UpdateHoldingLedger(ctx context.Context, id string, quantity, averageCost decimal.Decimal) error {
	res, err := r.db.ExecContext(ctx, `UPDATE holdings SET quantity = $1::numeric, average_cost = $2::numeric, last_updated = now() WHERE id = $3`,
		quantity.String(), averageCost.String(), id)
	if err != nil {
		return err
	}
	return requireRow(res, "holding", id)
}

func (r *Repo) DeleteHolding(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM holdings WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(res, "holding", id)
}

// --- transactions ---

const transactionColumns = `id, holding_id, type, quantity, price_per_unit, fee, total_cost, date, notes, created_at`

func (r *Repo) ListTransactions(ctx context.Context, holdingID string) ([]models.Transaction, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE holding_id = $1 ORDER BY date ASC`, holdingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []models.Transaction{}
	for rows.Next() {
		var tx models.Transaction
		if err := rows.StructScan(&tx); err != nil {
			r.log.Warnf("scan transaction failed: %v", err)
			continue
		}
		res = append(res, tx)
	}
	return res, rows.Err()
}

func (r *Repo) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	var tx models.Transaction
	err := r.db.GetContext(ctx, &tx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", id, service.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *Repo) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, holding_id, type, quantity, price_per_unit, fee, total_cost, date, notes)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7::numeric, $8, $9)`,
		tx.ID, tx.HoldingID, tx.Type, tx.Quantity.String(), tx.PricePerUnit.String(),
		tx.Fee.String(), tx.TotalCost.String(), tx.Date, tx.Notes)
	return err
}

func (r *Repo) UpdateTransaction(ctx context.Context, tx *models.Transaction) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET type = $1, quantity = $2::numeric, price_per_unit = $3::numeric, fee = $4::numeric,
		    total_cost = $5::numeric, date = $6, notes = $7
		WHERE id = $8`,
		tx.Type, tx.Quantity.String(), tx.PricePerUnit.String(), tx.Fee.String(),
		tx.TotalCost.String(), tx.Date, tx.Notes, tx.ID)
	if err != nil {
		return err
	}
	return requireRow(res, "transaction", tx.ID)
}

func (r *Repo) DeleteTransaction(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(res, "transaction", id)
}

// --- earn positions & rewards ---

const earnPositionColumns = `id, user_id, asset, product_id, product_name, type, amount, current_apy, daily_earnings, lock_period, locked_until, can_redeem, auto_subscribe, last_synced_at`

func (r *Repo) ListEarnPositions(ctx context.Context, userID string) ([]models.EarnPosition, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT `+earnPositionColumns+` FROM earn_positions WHERE user_id = $1 ORDER BY asset ASC, product_id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []models.EarnPosition{}
	for rows.Next() {
		var p models.EarnPosition
		if err := rows.StructScan(&p); err != nil {
			r.log.Warnf("scan earn position failed: %v", err)
			continue
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r *Repo) FindEarnPosition(ctx context.Context, userID, productID, asset string) (*models.EarnPosition, error) {
	var p models.EarnPosition
	err := r.db.GetContext(ctx, &p, `SELECT `+earnPositionColumns+` FROM earn_positions WHERE user_id = $1 AND product_id = $2 AND asset = $3`, userID, productID, asset)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) FindEarnPositionByAsset(ctx context.Context, userID, asset string) (*models.EarnPosition, error) {
	var p models.EarnPosition
	err := r.db.GetContext(ctx, &p, `SELECT `+earnPositionColumns+` FROM earn_positions WHERE user_id = $1 AND asset = $2 ORDER BY last_synced_at DESC LIMIT 1`, userID, asset)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) CreateEarnPosition(ctx context.Context, p *models.EarnPosition) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO earn_positions (id, user_id, asset, product_id, product_name, type, amount, current_apy,
		                            daily_earnings, lock_period, locked_until, can_redeem, auto_subscribe, last_synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric, $9, $10, $11, $12, $13, $14)`,
		p.ID, p.UserID, p.Asset, p.ProductID, p.ProductName, p.Type, p.Amount.String(), p.CurrentAPY.String(),
		p.DailyEarnings, p.LockPeriod, p.LockedUntil, p.CanRedeem, p.AutoSubscribe, p.LastSyncedAt)
	return err
}

func (r *Repo) UpdateEarnPosition(ctx context.Context, p *models.EarnPosition) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE earn_positions
		SET product_name = $1, type = $2, amount = $3::numeric, current_apy = $4::numeric,
		    daily_earnings = $5, lock_period = $6, locked_until = $7, can_redeem = $8,
		    auto_subscribe = $9, last_synced_at = $10
		WHERE id = $11`,
		p.ProductName, p.Type, p.Amount.String(), p.CurrentAPY.String(),
		p.DailyEarnings, p.LockPeriod, p.LockedUntil, p.CanRedeem, p.AutoSubscribe, p.LastSyncedAt, p.ID)
	if err != nil {
		return err
	}
	return requireRow(res, "earn position", p.ID)
}

func (r *Repo) DeleteEarnPosition(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM earn_positions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(res, "earn position", id)
}

func (r *Repo) RewardExists(ctx context.Context, userID, asset string, amount decimal.Decimal, rewardDate time.Time, rewardType string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM earn_rewards
			WHERE user_id = $1 AND asset = $2 AND amount = $3::numeric AND reward_date = $4 AND type = $5
		)`, userID, asset, amount.String(), rewardDate, rewardType)
	return exists, err
}

func (r *Repo) CreateEarnReward(ctx context.Context, reward *models.EarnReward) error {
	if reward.ID == "" {
		reward.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO earn_rewards (id, user_id, position_id, asset, amount, type, reward_date)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7)`,
		reward.ID, reward.UserID, reward.PositionID, reward.Asset, reward.Amount.String(), reward.Type, reward.RewardDate)
	return err
}

func (r *Repo) ListEarnRewards(ctx context.Context, userID string) ([]models.EarnReward, error) {
	rows, err := r.db.QueryxContext(ctx, `
		SELECT id, user_id, position_id, asset, amount, type, reward_date, created_at
		FROM earn_rewards WHERE user_id = $1 ORDER BY reward_date DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []models.EarnReward{}
	for rows.Next() {
		var reward models.EarnReward
		if err := rows.StructScan(&reward); err != nil {
			r.log.Warnf("scan earn reward failed: %v", err)
			continue
		}
		res = append(res, reward)
	}
	return res, rows.Err()
}

func requireRow(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", entity, id, service.ErrNotFound)
	}
	return nil
}
