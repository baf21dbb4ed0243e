package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"cryptofolio/internal/database"
	"cryptofolio/internal/ledger"
	"cryptofolio/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Seeds a demo user with a small transaction history so the API has data to
// show without exchange credentials.
func main() {
	godotenv.Load()
	dbURL := os.Getenv("POSTGRES_URL")
	if dbURL == "" {
		log.Fatal("POSTGRES_URL is required")
	}

	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	repo := database.New(db, logrus.New())

	userID := "demo-user"
	if err := repo.EnsureUser(ctx, userID, "Demo User"); err != nil {
		log.Fatalf("ensure user: %v", err)
	}
	portfolio, err := repo.EnsurePortfolio(ctx, userID)
	if err != nil {
		log.Fatalf("ensure portfolio: %v", err)
	}

	holding, err := repo.FindHoldingBySymbol(ctx, portfolio.ID, "BTC")
	if err != nil {
		log.Fatalf("find holding: %v", err)
	}
	if holding == nil {
		holding = &models.Holding{PortfolioID: portfolio.ID, Symbol: "BTC", Name: "Bitcoin"}
		if err := repo.CreateHolding(ctx, holding); err != nil {
			log.Fatalf("create holding: %v", err)
		}
	}

	now := time.Now().UTC()
	seed := []models.Transaction{
		{Type: models.TransactionBuy, Quantity: dec("0.5"), PricePerUnit: dec("42000"), Fee: dec("21"), Date: now.AddDate(0, -3, 0)},
		{Type: models.TransactionBuy, Quantity: dec("0.25"), PricePerUnit: dec("58000"), Fee: dec("14.5"), Date: now.AddDate(0, -1, 0)},
		{Type: models.TransactionSell, Quantity: dec("0.1"), PricePerUnit: dec("64000"), Fee: dec("6.4"), Date: now.AddDate(0, 0, -7)},
	}
	for i := range seed {
		tx := seed[i]
		tx.HoldingID = holding.ID
		tx.TotalCost = tx.Quantity.Mul(tx.PricePerUnit).Add(tx.Fee)
		if err := repo.CreateTransaction(ctx, &tx); err != nil {
			fmt.Printf("Warning: could not insert transaction: %v\n", err)
		}
	}

	txs, err := repo.ListTransactions(ctx, holding.ID)
	if err != nil {
		log.Fatalf("list transactions: %v", err)
	}
	res := ledger.Replay(txs)
	if !res.Empty {
		if err := repo.UpdateHoldingLedger(ctx, holding.ID, res.Quantity, res.AverageCost); err != nil {
			log.Fatalf("update holding: %v", err)
		}
	}

	fmt.Printf("Seeded %s: quantity=%s averageCost=%s\n", holding.Symbol, res.Quantity, res.AverageCost)
	fmt.Println("Now check: http://localhost:8080/portfolios/demo-user")
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
