package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"cryptofolio/internal/database"
	"cryptofolio/internal/models"
	"cryptofolio/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	repo      *database.Repo
	txSvc     *service.Transactions
	syncSvc   *service.Sync
	valuation *service.Valuation
	log       *logrus.Logger
}

func NewHandler(repo *database.Repo, txSvc *service.Transactions, syncSvc *service.Sync, valuation *service.Valuation, log *logrus.Logger) *Handler {
	return &Handler{repo: repo, txSvc: txSvc, syncSvc: syncSvc, valuation: valuation, log: log}
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInsufficientQuantity):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrExternalSourceUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		h.log.Errorf("request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
	}
}

type UserRequest struct {
	ID   string `json:"id" binding:"required"`
	Name string `json:"name"`
}

func (h *Handler) PostUser(c *gin.Context) {
	var req UserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnf("invalid post body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.repo.EnsureUser(context.Background(), req.ID, req.Name); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": req.ID})
}

type HoldingRequest struct {
	Symbol      string `json:"symbol" binding:"required"`
	Name        string `json:"name"`
	Quantity    string `json:"quantity"`
	AverageCost string `json:"average_cost"`
	Notes       string `json:"notes"`
}

func (h *Handler) PostHolding(c *gin.Context) {
	var req HoldingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnf("invalid post body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	quantity, err := parseDecimal(req.Quantity, decimal.Zero)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quantity format"})
		return
	}
	averageCost, err := parseDecimal(req.AverageCost, decimal.Zero)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid average_cost format"})
		return
	}
	if quantity.Sign() < 0 || averageCost.Sign() < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity and average_cost must not be negative"})
		return
	}

	ctx := context.Background()
	userID := c.Param("userId")
	user, err := h.repo.GetUser(ctx, userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	portfolio, err := h.repo.EnsurePortfolio(ctx, userID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	symbol := strings.ToUpper(req.Symbol)
	if existing, err := h.repo.FindHoldingBySymbol(ctx, portfolio.ID, symbol); err != nil {
		h.writeError(c, err)
		return
	} else if existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "holding already exists", "id": existing.ID})
		return
	}

	holding := &models.Holding{
		PortfolioID: portfolio.ID,
		Symbol:      symbol,
		Name:        req.Name,
		Quantity:    quantity,
		AverageCost: averageCost,
		Notes:       req.Notes,
	}
	if err := h.repo.CreateHolding(ctx, holding); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, holding)
}

func (h *Handler) DeleteHolding(c *gin.Context) {
	if err := h.repo.DeleteHolding(context.Background(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *Handler) GetPortfolio(c *gin.Context) {
	summary, err := h.valuation.PortfolioSummary(context.Background(), c.Param("userId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

type TransactionRequest struct {
	Type         string    `json:"type" binding:"required"`
	Quantity     string    `json:"quantity" binding:"required"`
	PricePerUnit string    `json:"price_per_unit" binding:"required"`
	Fee          string    `json:"fee"`
	Date         time.Time `json:"date" binding:"required"`
	Notes        string    `json:"notes"`
}

func (h *Handler) parseTransaction(c *gin.Context) (service.TransactionInput, bool) {
	var req TransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnf("invalid post body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return service.TransactionInput{}, false
	}
	quantity, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quantity format"})
		return service.TransactionInput{}, false
	}
	pricePerUnit, err := decimal.NewFromString(req.PricePerUnit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid price_per_unit format"})
		return service.TransactionInput{}, false
	}
	fee, err := parseDecimal(req.Fee, decimal.Zero)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid fee format"})
		return service.TransactionInput{}, false
	}
	return service.TransactionInput{
		Type:         models.TransactionType(strings.ToUpper(req.Type)),
		Quantity:     quantity,
		PricePerUnit: pricePerUnit,
		Fee:          fee,
		Date:         req.Date,
		Notes:        req.Notes,
	}, true
}

func (h *Handler) PostTransaction(c *gin.Context) {
	in, ok := h.parseTransaction(c)
	if !ok {
		return
	}
	tx, err := h.txSvc.Add(context.Background(), c.Param("id"), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tx)
}

func (h *Handler) PutTransaction(c *gin.Context) {
	in, ok := h.parseTransaction(c)
	if !ok {
		return
	}
	tx, err := h.txSvc.Update(context.Background(), c.Param("id"), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}

func (h *Handler) DeleteTransaction(c *gin.Context) {
	if err := h.txSvc.Delete(context.Background(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *Handler) GetTransactions(c *gin.Context) {
	ctx := context.Background()
	holdingID := c.Param("id")
	txs, err := h.repo.ListTransactions(ctx, holdingID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	stats, err := h.txSvc.Stats(ctx, holdingID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs, "stats": stats})
}

func (h *Handler) SyncHoldings(c *gin.Context) {
	res, err := h.syncSvc.SyncHoldings(context.Background(), c.Param("userId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) SyncEarnPositions(c *gin.Context) {
	res, err := h.syncSvc.SyncEarnPositions(context.Background(), c.Param("userId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) SyncRewards(c *gin.Context) {
	start, ok := parseTimeParam(c, "start")
	if !ok {
		return
	}
	end, ok := parseTimeParam(c, "end")
	if !ok {
		return
	}
	res, err := h.syncSvc.SyncRewards(context.Background(), c.Param("userId"), start, end)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) GetEarnPositions(c *gin.Context) {
	positions, err := h.repo.ListEarnPositions(context.Background(), c.Param("userId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, positions)
}

func (h *Handler) GetEarnRewards(c *gin.Context) {
	rewards, err := h.repo.ListEarnRewards(context.Background(), c.Param("userId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rewards)
}

func parseDecimal(s string, fallback decimal.Decimal) (decimal.Decimal, error) {
	if s == "" {
		return fallback, nil
	}
	return decimal.NewFromString(s)
}

func parseTimeParam(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name + " timestamp, want RFC3339"})
		return nil, false
	}
	return &t, true
}
