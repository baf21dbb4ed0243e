// Package binance is the exchange account adapter: a thin signed REST
// client for the spot account, Simple Earn positions and reward history,
// and ticker prices.
package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"cryptofolio/internal/models"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	defaultBaseURL = "https://api.binance.com"
	quoteCurrency  = "USDT"
	recvWindow     = "5000"
	pageSize       = 100
)

var hundred = decimal.NewFromInt(100)

type Client struct {
	baseURL   string
	apiKey    string
	apiSecret string
	http      *http.Client
	log       *logrus.Logger
}

func NewClient(baseURL, apiKey, apiSecret string, log *logrus.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:   baseURL,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		http:      &http.Client{Timeout: 15 * time.Second},
		log:       log,
	}
}

// GetAccountBalances returns the spot balances with a non-zero total.
func (c *Client) GetAccountBalances(ctx context.Context) ([]models.AccountBalance, error) {
	var resp struct {
		Balances []struct {
			Asset  string          `json:"asset"`
			Free   decimal.Decimal `json:"free"`
			Locked decimal.Decimal `json:"locked"`
		} `json:"balances"`
	}
	if err := c.getSigned(ctx, "/api/v3/account", nil, &resp); err != nil {
		return nil, err
	}
	res := []models.AccountBalance{}
	for _, b := range resp.Balances {
		if b.Free.Add(b.Locked).Sign() <= 0 {
			continue
		}
		res = append(res, models.AccountBalance{Asset: b.Asset, Free: b.Free, Locked: b.Locked})
	}
	return res, nil
}

// GetAllEarnPositions merges flexible and locked Simple Earn positions.
func (c *Client) GetAllEarnPositions(ctx context.Context) ([]models.EarnPositionSnapshot, error) {
	flexible, err := c.flexiblePositions(ctx)
	if err != nil {
		return nil, err
	}
	locked, err := c.lockedPositions(ctx)
	if err != nil {
		return nil, err
	}
	return append(flexible, locked...), nil
}

type flexiblePositionRow struct {
	Asset                      string          `json:"asset"`
	ProductID                  string          `json:"productId"`
	TotalAmount                decimal.Decimal `json:"totalAmount"`
	LatestAnnualPercentageRate decimal.Decimal `json:"latestAnnualPercentageRate"`
	YesterdayRealTimeRewards   decimal.Decimal `json:"yesterdayRealTimeRewards"`
	CanRedeem                  bool            `json:"canRedeem"`
	AutoSubscribe              bool            `json:"autoSubscribe"`
}

func (c *Client) flexiblePositions(ctx context.Context) ([]models.EarnPositionSnapshot, error) {
	res := []models.EarnPositionSnapshot{}
	for current := 1; ; current++ {
		var page struct {
			Rows []flexiblePositionRow `json:"rows"`
		}
		params := url.Values{}
		params.Set("current", strconv.Itoa(current))
		params.Set("size", strconv.Itoa(pageSize))
		if err := c.getSigned(ctx, "/sapi/v1/simple-earn/flexible/position", params, &page); err != nil {
			return nil, err
		}
		for _, row := range page.Rows {
			res = append(res, models.EarnPositionSnapshot{
				Asset:       row.Asset,
				ProductID:   row.ProductID,
				ProductName: row.Asset + " Flexible",
				Type:        models.EarnFlexible,
				Amount:      row.TotalAmount,
				// rates come back as fractions, positions store percent
				CurrentAPY:    row.LatestAnnualPercentageRate.Mul(hundred),
				DailyEarnings: decimal.NullDecimal{Decimal: row.YesterdayRealTimeRewards, Valid: true},
				CanRedeem:     row.CanRedeem,
				AutoSubscribe: row.AutoSubscribe,
			})
		}
		if len(page.Rows) < pageSize {
			return res, nil
		}
	}
}

type lockedPositionRow struct {
	Asset          string          `json:"asset"`
	ProductID      string          `json:"productId"`
	Amount         decimal.Decimal `json:"amount"`
	APY            decimal.Decimal `json:"apy"`
	Duration       int             `json:"duration"`
	DeliverDate    int64           `json:"deliverDate"`
	CanRedeemEarly bool            `json:"canRedeemEarly"`
	AutoSubscribe  bool            `json:"autoSubscribe"`
}

func (c *Client) lockedPositions(ctx context.Context) ([]models.EarnPositionSnapshot, error) {
	res := []models.EarnPositionSnapshot{}
	for current := 1; ; current++ {
		var page struct {
			Rows []lockedPositionRow `json:"rows"`
		}
		params := url.Values{}
		params.Set("current", strconv.Itoa(current))
		params.Set("size", strconv.Itoa(pageSize))
		if err := c.getSigned(ctx, "/sapi/v1/simple-earn/locked/position", params, &page); err != nil {
			return nil, err
		}
		for _, row := range page.Rows {
			snap := models.EarnPositionSnapshot{
				Asset:         row.Asset,
				ProductID:     row.ProductID,
				ProductName:   fmt.Sprintf("%s Locked %dd", row.Asset, row.Duration),
				Type:          models.EarnLocked,
				Amount:        row.Amount,
				CurrentAPY:    row.APY.Mul(hundred),
				LockPeriod:    row.Duration,
				CanRedeem:     row.CanRedeemEarly,
				AutoSubscribe: row.AutoSubscribe,
			}
			if row.DeliverDate > 0 {
				snap.LockedUntil = sql.NullTime{Time: time.UnixMilli(row.DeliverDate).UTC(), Valid: true}
			}
			res = append(res, snap)
		}
		if len(page.Rows) < pageSize {
			return res, nil
		}
	}
}

// GetAllRewardsHistory merges flexible (realtime + bonus) and locked reward
// records for the optional time window.
func (c *Client) GetAllRewardsHistory(ctx context.Context, start, end *time.Time) ([]models.RewardSnapshot, error) {
	res := []models.RewardSnapshot{}
	for _, rewardType := range []string{"REALTIME", "BONUS"} {
		rewards, err := c.flexibleRewards(ctx, rewardType, start, end)
		if err != nil {
			return nil, err
		}
		res = append(res, rewards...)
	}
	locked, err := c.lockedRewards(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return append(res, locked...), nil
}

func windowParams(start, end *time.Time) url.Values {
	params := url.Values{}
	if start != nil {
		params.Set("startTime", strconv.FormatInt(start.UnixMilli(), 10))
	}
	if end != nil {
		params.Set("endTime", strconv.FormatInt(end.UnixMilli(), 10))
	}
	return params
}

func (c *Client) flexibleRewards(ctx context.Context, rewardType string, start, end *time.Time) ([]models.RewardSnapshot, error) {
	res := []models.RewardSnapshot{}
	for current := 1; ; current++ {
		var page struct {
			Rows []struct {
				Asset     string          `json:"asset"`
				ProjectID string          `json:"projectId"`
				Rewards   decimal.Decimal `json:"rewards"`
				Type      string          `json:"type"`
				Time      int64           `json:"time"`
			} `json:"rows"`
		}
		params := windowParams(start, end)
		params.Set("type", rewardType)
		params.Set("current", strconv.Itoa(current))
		params.Set("size", strconv.Itoa(pageSize))
		if err := c.getSigned(ctx, "/sapi/v1/simple-earn/flexible/history/rewardsRecord", params, &page); err != nil {
			return nil, err
		}
		for _, row := range page.Rows {
			res = append(res, models.RewardSnapshot{
				Asset:      row.Asset,
				ProductID:  row.ProjectID,
				Amount:     row.Rewards,
				Type:       rewardType,
				RewardDate: time.UnixMilli(row.Time).UTC(),
			})
		}
		if len(page.Rows) < pageSize {
			return res, nil
		}
	}
}

func (c *Client) lockedRewards(ctx context.Context, start, end *time.Time) ([]models.RewardSnapshot, error) {
	res := []models.RewardSnapshot{}
	for current := 1; ; current++ {
		var page struct {
			Rows []struct {
				Asset  string          `json:"asset"`
				Amount decimal.Decimal `json:"amount"`
				Time   int64           `json:"time"`
			} `json:"rows"`
		}
		params := windowParams(start, end)
		params.Set("current", strconv.Itoa(current))
		params.Set("size", strconv.Itoa(pageSize))
		if err := c.getSigned(ctx, "/sapi/v1/simple-earn/locked/history/rewardsRecord", params, &page); err != nil {
			return nil, err
		}
		for _, row := range page.Rows {
			res = append(res, models.RewardSnapshot{
				Asset:      row.Asset,
				Amount:     row.Amount,
				Type:       "LOCKED",
				RewardDate: time.UnixMilli(row.Time).UTC(),
			})
		}
		if len(page.Rows) < pageSize {
			return res, nil
		}
	}
}

type ticker struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
}

// GetPrice resolves the USDT price for a single asset.
func (c *Client) GetPrice(ctx context.Context, symbol string) (models.PriceInfo, error) {
	params := url.Values{}
	params.Set("symbol", symbol+quoteCurrency)
	var t ticker
	if err := c.getPublic(ctx, "/api/v3/ticker/price", params, &t); err != nil {
		return models.PriceInfo{}, err
	}
	return models.PriceInfo{Symbol: symbol, Price: t.Price}, nil
}

// GetPrices resolves USDT prices in bulk from the full ticker list.
// Symbols without a direct USDT pair are simply absent from the result;
// the caller falls back to GetPrice per symbol.
func (c *Client) GetPrices(ctx context.Context, symbols []string) (map[string]models.PriceInfo, error) {
	var tickers []ticker
	if err := c.getPublic(ctx, "/api/v3/ticker/price", nil, &tickers); err != nil {
		return nil, err
	}
	byPair := make(map[string]decimal.Decimal, len(tickers))
	for _, t := range tickers {
		byPair[t.Symbol] = t.Price
	}
	res := map[string]models.PriceInfo{}
	for _, sym := range symbols {
		if p, ok := byPair[sym+quoteCurrency]; ok {
			res[sym] = models.PriceInfo{Symbol: sym, Price: p}
		}
	}
	return res, nil
}

func (c *Client) sign(query string) string {
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) getSigned(ctx context.Context, path string, params url.Values, out interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("recvWindow", recvWindow)
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	query := params.Encode()
	query += "&signature=" + c.sign(query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-MBX-APIKEY", c.apiKey)
	return c.do(req, out)
}

func (c *Client) getPublic(ctx context.Context, path string, params url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		c.log.Warnf("binance %s returned %d: %s", req.URL.Path, resp.StatusCode, body)
		return fmt.Errorf("binance %s: status %d", req.URL.Path, resp.StatusCode)
	}
	return json.Unmarshal(body, out)
}
