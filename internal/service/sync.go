package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"cryptofolio/internal/models"
	"cryptofolio/internal/observability"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// dustThreshold is the quantity below which an asset is treated as zero.
var dustThreshold = decimal.New(1, -8)

// SyncResult is the diff a reconciliation applied. Errors holds non-fatal
// per-asset failures; the sync as a whole still succeeded when it is
// non-empty, and callers must inspect it to tell full from partial success.
type SyncResult struct {
	Added   int      `json:"added"`
	Updated int      `json:"updated"`
	Deleted int      `json:"deleted"`
	Errors  []string `json:"errors"`
}

// RewardsSyncResult reports a reward-history sync.
type RewardsSyncResult struct {
	Added   int      `json:"added"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors"`
}

// Sync reconciles locally persisted holdings and earn positions against
// fresh exchange snapshots. Each run is idempotent: re-running against an
// unchanged snapshot adds and deletes nothing.
type Sync struct {
	holdings HoldingStore
	earn     EarnStore
	exchange ExchangeAccount
	prices   PriceResolver
	symbols  *SymbolFilter
	metrics  *observability.Metrics
	log      *logrus.Logger
}

func NewSync(holdings HoldingStore, earn EarnStore, exchange ExchangeAccount, prices PriceResolver, metrics *observability.Metrics, log *logrus.Logger) *Sync {
	return &Sync{
		holdings: holdings,
		earn:     earn,
		exchange: exchange,
		prices:   prices,
		symbols:  NewSymbolFilter(),
		metrics:  metrics,
		log:      log,
	}
}

// SyncHoldings brings the user's portfolio holdings in line with the
// exchange account snapshot. Assets present remotely are created or have
// their quantity refreshed (average cost is never touched on resync);
// holdings absent from the snapshot are deleted.
func (s *Sync) SyncHoldings(ctx context.Context, userID string) (*SyncResult, error) {
	user, err := s.holdings.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}

	balances, err := s.exchange.GetAccountBalances(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: account balances: %v", ErrExternalSourceUnavailable, err)
	}

	portfolio, err := s.holdings.EnsurePortfolio(ctx, userID)
	if err != nil {
		return nil, err
	}

	res := &SyncResult{Errors: []string{}}

	// An empty snapshot is treated as "no changes", not "everything sold":
	// a transient empty response must never wipe out local state. The flip
	// side is that a real full liquidation is not propagated; the metric
	// exists so that case is at least visible.
	if len(balances) == 0 {
		local, lerr := s.holdings.ListHoldings(ctx, portfolio.ID)
		if lerr == nil && len(local) > 0 {
			s.log.Warnf("holdings sync for %s: empty snapshot with %d local holdings, skipping deletions", userID, len(local))
			s.metrics.EmptySnapshots.WithLabelValues("holdings").Inc()
		}
		return res, nil
	}

	seen := map[string]bool{}
	totals := map[string]decimal.Decimal{}
	valid := []string{}
	for _, b := range balances {
		seen[b.Asset] = true
		if reason := s.symbols.FilterReason(b.Asset); reason != "" {
			s.log.Debugf("holdings sync: skipping %s: %s", b.Asset, reason)
			continue
		}
		total := b.Total()
		if total.LessThan(dustThreshold) {
			s.log.Debugf("holdings sync: skipping %s: dust quantity %s", b.Asset, total)
			continue
		}
		totals[b.Asset] = total
		valid = append(valid, b.Asset)
	}

	priceMap, err := s.prices.GetPrices(ctx, valid)
	if err != nil {
		// bulk lookup is best-effort; fall back per symbol below
		s.log.Warnf("holdings sync: bulk price lookup failed: %v", err)
		priceMap = map[string]models.PriceInfo{}
	}

	for _, asset := range valid {
		price, ok := priceMap[asset]
		if !ok {
			price, err = s.prices.GetPrice(ctx, asset)
			if err != nil {
				s.recordError(res, "holdings", fmt.Sprintf("%s: price unavailable: %v", asset, err))
				continue
			}
			s.metrics.PriceFallbacks.Inc()
		}

		existing, err := s.holdings.FindHoldingBySymbol(ctx, portfolio.ID, asset)
		if err != nil {
			s.recordError(res, "holdings", fmt.Sprintf("%s: lookup failed: %v", asset, err))
			continue
		}
		if existing != nil {
			if err := s.holdings.UpdateHoldingQuantity(ctx, existing.ID, totals[asset]); err != nil {
				s.recordError(res, "holdings", fmt.Sprintf("%s: update failed: %v", asset, err))
				continue
			}
			res.Updated++
			s.metrics.SyncEntities.WithLabelValues("holdings", "updated").Inc()
			continue
		}

		name := price.Name
		if name == "" {
			name = asset
		}
		h := &models.Holding{
			PortfolioID: portfolio.ID,
			Symbol:      asset,
			Name:        name,
			Quantity:    totals[asset],
			// no transaction history exists yet, so the observed price
			// seeds the cost basis
			AverageCost: price.Price,
		}
		if err := s.holdings.CreateHolding(ctx, h); err != nil {
			s.recordError(res, "holdings", fmt.Sprintf("%s: create failed: %v", asset, err))
			continue
		}
		res.Added++
		s.metrics.SyncEntities.WithLabelValues("holdings", "added").Inc()
	}

	local, err := s.holdings.ListHoldings(ctx, portfolio.ID)
	if err != nil {
		s.recordError(res, "holdings", fmt.Sprintf("list local holdings failed: %v", err))
		return res, nil
	}
	for _, h := range local {
		if seen[h.Symbol] {
			continue
		}
		if err := s.holdings.DeleteHolding(ctx, h.ID); err != nil {
			s.recordError(res, "holdings", fmt.Sprintf("%s: delete failed: %v", h.Symbol, err))
			continue
		}
		res.Deleted++
		s.metrics.SyncEntities.WithLabelValues("holdings", "deleted").Inc()
	}

	s.log.Infof("holdings sync for %s: added=%d updated=%d deleted=%d errors=%d",
		userID, res.Added, res.Updated, res.Deleted, len(res.Errors))
	return res, nil
}

// SyncEarnPositions reconciles earn positions against the exchange's earn
// account snapshot. Positions are keyed on (user, product, asset); there is
// no price-resolution step since amounts are denominated in their own asset.
func (s *Sync) SyncEarnPositions(ctx context.Context, userID string) (*SyncResult, error) {
	user, err := s.holdings.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}

	snapshot, err := s.exchange.GetAllEarnPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: earn positions: %v", ErrExternalSourceUnavailable, err)
	}

	res := &SyncResult{Errors: []string{}}

	if len(snapshot) == 0 {
		local, lerr := s.earn.ListEarnPositions(ctx, userID)
		if lerr == nil && len(local) > 0 {
			s.log.Warnf("earn sync for %s: empty snapshot with %d local positions, skipping deletions", userID, len(local))
			s.metrics.EmptySnapshots.WithLabelValues("earn_positions").Inc()
		}
		return res, nil
	}

	type positionKey struct{ productID, asset string }
	seen := map[positionKey]bool{}
	now := time.Now().UTC()

	for _, snap := range snapshot {
		seen[positionKey{snap.ProductID, snap.Asset}] = true
		if snap.Amount.LessThan(dustThreshold) {
			s.log.Debugf("earn sync: skipping %s/%s: dust amount %s", snap.ProductID, snap.Asset, snap.Amount)
			continue
		}

		existing, err := s.earn.FindEarnPosition(ctx, userID, snap.ProductID, snap.Asset)
		if err != nil {
			s.recordError(res, "earn_positions", fmt.Sprintf("%s/%s: lookup failed: %v", snap.ProductID, snap.Asset, err))
			continue
		}
		if existing != nil {
			existing.ProductName = snap.ProductName
			existing.Type = snap.Type
			existing.Amount = snap.Amount
			existing.CurrentAPY = snap.CurrentAPY
			existing.DailyEarnings = snap.DailyEarnings
			existing.LockPeriod = snap.LockPeriod
			existing.LockedUntil = snap.LockedUntil
			existing.CanRedeem = snap.CanRedeem
			existing.AutoSubscribe = snap.AutoSubscribe
			existing.LastSyncedAt = now
			if err := s.earn.UpdateEarnPosition(ctx, existing); err != nil {
				s.recordError(res, "earn_positions", fmt.Sprintf("%s/%s: update failed: %v", snap.ProductID, snap.Asset, err))
				continue
			}
			res.Updated++
			s.metrics.SyncEntities.WithLabelValues("earn_positions", "updated").Inc()
			continue
		}

		p := &models.EarnPosition{
			UserID:        userID,
			Asset:         snap.Asset,
			ProductID:     snap.ProductID,
			ProductName:   snap.ProductName,
			Type:          snap.Type,
			Amount:        snap.Amount,
			CurrentAPY:    snap.CurrentAPY,
			DailyEarnings: snap.DailyEarnings,
			LockPeriod:    snap.LockPeriod,
			LockedUntil:   snap.LockedUntil,
			CanRedeem:     snap.CanRedeem,
			AutoSubscribe: snap.AutoSubscribe,
			LastSyncedAt:  now,
		}
		if err := s.earn.CreateEarnPosition(ctx, p); err != nil {
			s.recordError(res, "earn_positions", fmt.Sprintf("%s/%s: create failed: %v", snap.ProductID, snap.Asset, err))
			continue
		}
		res.Added++
		s.metrics.SyncEntities.WithLabelValues("earn_positions", "added").Inc()
	}

	local, err := s.earn.ListEarnPositions(ctx, userID)
	if err != nil {
		s.recordError(res, "earn_positions", fmt.Sprintf("list local positions failed: %v", err))
		return res, nil
	}
	for _, p := range local {
		if seen[positionKey{p.ProductID, p.Asset}] {
			continue
		}
		if err := s.earn.DeleteEarnPosition(ctx, p.ID); err != nil {
			s.recordError(res, "earn_positions", fmt.Sprintf("%s/%s: delete failed: %v", p.ProductID, p.Asset, err))
			continue
		}
		res.Deleted++
		s.metrics.SyncEntities.WithLabelValues("earn_positions", "deleted").Inc()
	}

	s.log.Infof("earn sync for %s: added=%d updated=%d deleted=%d errors=%d",
		userID, res.Added, res.Updated, res.Deleted, len(res.Errors))
	return res, nil
}

// SyncRewards pulls earn reward history and inserts the records not seen
// before. Each new reward is linked to a matching local position when one
// exists; the link is best effort and never fails the insert.
func (s *Sync) SyncRewards(ctx context.Context, userID string, start, end *time.Time) (*RewardsSyncResult, error) {
	user, err := s.holdings.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}

	history, err := s.exchange.GetAllRewardsHistory(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: rewards history: %v", ErrExternalSourceUnavailable, err)
	}

	res := &RewardsSyncResult{Errors: []string{}}
	for _, snap := range history {
		exists, err := s.earn.RewardExists(ctx, userID, snap.Asset, snap.Amount, snap.RewardDate, snap.Type)
		if err != nil {
			s.recordRewardError(res, fmt.Sprintf("%s: dedup check failed: %v", snap.Asset, err))
			continue
		}
		if exists {
			res.Skipped++
			s.metrics.RewardDuplicates.Inc()
			continue
		}

		reward := &models.EarnReward{
			UserID:     userID,
			Asset:      snap.Asset,
			Amount:     snap.Amount,
			Type:       snap.Type,
			RewardDate: snap.RewardDate,
		}
		if pos := s.matchPosition(ctx, userID, snap); pos != nil {
			reward.PositionID = sql.NullString{String: pos.ID, Valid: true}
		}
		if err := s.earn.CreateEarnReward(ctx, reward); err != nil {
			s.recordRewardError(res, fmt.Sprintf("%s: insert failed: %v", snap.Asset, err))
			continue
		}
		res.Added++
		s.metrics.SyncEntities.WithLabelValues("earn_rewards", "added").Inc()
	}

	s.log.Infof("rewards sync for %s: added=%d skipped=%d errors=%d", userID, res.Added, res.Skipped, len(res.Errors))
	return res, nil
}

func (s *Sync) matchPosition(ctx context.Context, userID string, snap models.RewardSnapshot) *models.EarnPosition {
	if snap.ProductID != "" {
		if pos, err := s.earn.FindEarnPosition(ctx, userID, snap.ProductID, snap.Asset); err == nil && pos != nil {
			return pos
		}
	}
	pos, err := s.earn.FindEarnPositionByAsset(ctx, userID, snap.Asset)
	if err != nil {
		return nil
	}
	return pos
}

func (s *Sync) recordError(res *SyncResult, kind, msg string) {
	s.log.Warnf("%s sync: %s", kind, msg)
	res.Errors = append(res.Errors, msg)
	s.metrics.SyncErrors.WithLabelValues(kind).Inc()
}

func (s *Sync) recordRewardError(res *RewardsSyncResult, msg string) {
	s.log.Warnf("rewards sync: %s", msg)
	res.Errors = append(res.Errors, msg)
	s.metrics.SyncErrors.WithLabelValues("earn_rewards").Inc()
}
