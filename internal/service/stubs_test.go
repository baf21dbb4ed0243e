package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cryptofolio/internal/models"
	"cryptofolio/internal/observability"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func testMetrics() *observability.Metrics {
	return observability.NewMetrics(prometheus.NewRegistry())
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

// memStore is an in-memory HoldingStore + TransactionStore + EarnStore.
type memStore struct {
	users      map[string]*models.User
	portfolios map[string]*models.Portfolio
	holdings   map[string]*models.Holding
	txs        map[string]*models.Transaction
	positions  map[string]*models.EarnPosition
	rewards    []*models.EarnReward

	failCreateSymbol map[string]bool
	nextID           int
}

func newMemStore() *memStore {
	return &memStore{
		users:            map[string]*models.User{},
		portfolios:       map[string]*models.Portfolio{},
		holdings:         map[string]*models.Holding{},
		txs:              map[string]*models.Transaction{},
		positions:        map[string]*models.EarnPosition{},
		failCreateSymbol: map[string]bool{},
	}
}

func (m *memStore) id() string {
	m.nextID++
	return fmt.Sprintf("id-%d", m.nextID)
}

func (m *memStore) addUser(userID string) {
	m.users[userID] = &models.User{ID: userID, Name: userID}
}

func (m *memStore) GetUser(_ context.Context, userID string) (*models.User, error) {
	return m.users[userID], nil
}

func (m *memStore) EnsurePortfolio(_ context.Context, userID string) (*models.Portfolio, error) {
	if p, ok := m.portfolios[userID]; ok {
		return p, nil
	}
	p := &models.Portfolio{ID: m.id(), UserID: userID, Name: "Main"}
	m.portfolios[userID] = p
	return p, nil
}

func (m *memStore) ListHoldings(_ context.Context, portfolioID string) ([]models.Holding, error) {
	var out []models.Holding
	for _, h := range m.holdings {
		if h.PortfolioID == portfolioID {
			out = append(out, *h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (m *memStore) GetHolding(_ context.Context, id string) (*models.Holding, error) {
	h, ok := m.holdings[id]
	if !ok {
		return nil, fmt.Errorf("holding %s: %w", id, ErrNotFound)
	}
	cp := *h
	return &cp, nil
}

func (m *memStore) FindHoldingBySymbol(_ context.Context, portfolioID, symbol string) (*models.Holding, error) {
	for _, h := range m.holdings {
		if h.PortfolioID == portfolioID && h.Symbol == symbol {
			cp := *h
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) CreateHolding(_ context.Context, h *models.Holding) error {
	if m.failCreateSymbol[h.Symbol] {
		return fmt.Errorf("simulated write failure for %s", h.Symbol)
	}
	if h.ID == "" {
		h.ID = m.id()
	}
	cp := *h
	m.holdings[h.ID] = &cp
	return nil
}

func (m *memStore) UpdateHoldingQuantity(_ context.Context, id string, quantity decimal.Decimal) error {
	h, ok := m.holdings[id]
	if !ok {
		return fmt.Errorf("holding %s: %w", id, ErrNotFound)
	}
	h.Quantity = quantity
	return nil
}

func (m *memStore) UpdateHoldingLedger(_ context.Context, id string, quantity, averageCost decimal.Decimal) error {
	h, ok := m.holdings[id]
	if !ok {
		return fmt.Errorf("holding %s: %w", id, ErrNotFound)
	}
	h.Quantity = quantity
	h.AverageCost = averageCost
	return nil
}

func (m *memStore) DeleteHolding(_ context.Context, id string) error {
	delete(m.holdings, id)
	return nil
}

func (m *memStore) ListTransactions(_ context.Context, holdingID string) ([]models.Transaction, error) {
	var out []models.Transaction
	for _, tx := range m.txs {
		if tx.HoldingID == holdingID {
			out = append(out, *tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *memStore) GetTransaction(_ context.Context, id string) (*models.Transaction, error) {
	tx, ok := m.txs[id]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	cp := *tx
	return &cp, nil
}

func (m *memStore) CreateTransaction(_ context.Context, tx *models.Transaction) error {
	if tx.ID == "" {
		tx.ID = m.id()
	}
	cp := *tx
	m.txs[tx.ID] = &cp
	return nil
}

func (m *memStore) UpdateTransaction(_ context.Context, tx *models.Transaction) error {
	if _, ok := m.txs[tx.ID]; !ok {
		return fmt.Errorf("transaction %s: %w", tx.ID, ErrNotFound)
	}
	cp := *tx
	m.txs[tx.ID] = &cp
	return nil
}

func (m *memStore) DeleteTransaction(_ context.Context, id string) error {
	delete(m.txs, id)
	return nil
}

func (m *memStore) ListEarnPositions(_ context.Context, userID string) ([]models.EarnPosition, error) {
	var out []models.EarnPosition
	for _, p := range m.positions {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (m *memStore) FindEarnPosition(_ context.Context, userID, productID, asset string) (*models.EarnPosition, error) {
	for _, p := range m.positions {
		if p.UserID == userID && p.ProductID == productID && p.Asset == asset {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) FindEarnPositionByAsset(_ context.Context, userID, asset string) (*models.EarnPosition, error) {
	for _, p := range m.positions {
		if p.UserID == userID && p.Asset == asset {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) CreateEarnPosition(_ context.Context, p *models.EarnPosition) error {
	if p.ID == "" {
		p.ID = m.id()
	}
	cp := *p
	m.positions[p.ID] = &cp
	return nil
}

func (m *memStore) UpdateEarnPosition(_ context.Context, p *models.EarnPosition) error {
	if _, ok := m.positions[p.ID]; !ok {
		return fmt.Errorf("position %s: %w", p.ID, ErrNotFound)
	}
	cp := *p
	m.positions[p.ID] = &cp
	return nil
}

func (m *memStore) DeleteEarnPosition(_ context.Context, id string) error {
	delete(m.positions, id)
	return nil
}

func (m *memStore) RewardExists(_ context.Context, userID, asset string, amount decimal.Decimal, rewardDate time.Time, rewardType string) (bool, error) {
	for _, r := range m.rewards {
		if r.UserID == userID && r.Asset == asset && r.Amount.Equal(amount) &&
			r.RewardDate.Equal(rewardDate) && r.Type == rewardType {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) CreateEarnReward(_ context.Context, r *models.EarnReward) error {
	if r.ID == "" {
		r.ID = m.id()
	}
	cp := *r
	m.rewards = append(m.rewards, &cp)
	return nil
}

// stubExchange serves canned snapshots.
type stubExchange struct {
	balances  []models.AccountBalance
	positions []models.EarnPositionSnapshot
	rewards   []models.RewardSnapshot
	err       error
}

func (e *stubExchange) GetAccountBalances(context.Context) ([]models.AccountBalance, error) {
	return e.balances, e.err
}

func (e *stubExchange) GetAllEarnPositions(context.Context) ([]models.EarnPositionSnapshot, error) {
	return e.positions, e.err
}

func (e *stubExchange) GetAllRewardsHistory(context.Context, *time.Time, *time.Time) ([]models.RewardSnapshot, error) {
	return e.rewards, e.err
}

// stubPrices serves bulk prices from a map; symbols in fallback resolve only
// via GetPrice, everything else fails an individual lookup.
type stubPrices struct {
	bulk     map[string]models.PriceInfo
	fallback map[string]models.PriceInfo
}

func (p *stubPrices) GetPrice(_ context.Context, symbol string) (models.PriceInfo, error) {
	if info, ok := p.fallback[symbol]; ok {
		return info, nil
	}
	if info, ok := p.bulk[symbol]; ok {
		return info, nil
	}
	return models.PriceInfo{}, fmt.Errorf("no trading pair for %s", symbol)
}

func (p *stubPrices) GetPrices(_ context.Context, symbols []string) (map[string]models.PriceInfo, error) {
	out := map[string]models.PriceInfo{}
	for _, s := range symbols {
		if info, ok := p.bulk[s]; ok {
			out[s] = info
		}
	}
	return out, nil
}

func bal(asset, free, locked string) models.AccountBalance {
	return models.AccountBalance{
		Asset:  asset,
		Free:   decimal.RequireFromString(free),
		Locked: decimal.RequireFromString(locked),
	}
}

func price(symbol, value string) models.PriceInfo {
	return models.PriceInfo{Symbol: symbol, Price: decimal.RequireFromString(value)}
}
