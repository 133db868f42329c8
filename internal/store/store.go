// Package store declares the persistence ports shared by the pricing, ledger and trade packages.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xtrntr/cryptotrade/internal/models"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict is returned when an optimistic update lost the race
	ErrVersionConflict = errors.New("version conflict")
	// ErrTransient is returned for deadlocks and serialization failures; the transaction may be retried
	ErrTransient = errors.New("transient storage failure")
	// ErrNegativeBalance is returned when storage refuses to commit a negative balance
	ErrNegativeBalance = errors.New("balance would become negative")
)

// Querier is the set of operations available both inside and outside a transaction
type Querier interface {
	GetTradingPair(ctx context.Context, symbol string) (*models.TradingPair, error)
	ListActivePairs(ctx context.Context) ([]models.TradingPair, error)
	GetOrderSide(ctx context.Context, code models.Side) (*models.OrderSide, error)

	GetPrice(ctx context.Context, pairID int64) (*models.AggregatedPrice, error)
	ListPrices(ctx context.Context) ([]models.AggregatedPrice, error)
	// UpsertPrice writes the full tuple, sets both timestamps to at and bumps the version
	UpsertPrice(ctx context.Context, price models.AggregatedPrice, at time.Time) (*models.AggregatedPrice, error)
	// TouchPrice moves only LastCheckedAt
	TouchPrice(ctx context.Context, pairID int64, at time.Time) error

	GetWallet(ctx context.Context, userID int64, currency string) (*models.Wallet, error)
	ListWallets(ctx context.Context, userID int64) ([]models.Wallet, error)
	// UpdateWalletBalance stores balance if the row still has expectedVersion, else ErrVersionConflict
	UpdateWalletBalance(ctx context.Context, walletID int64, balance decimal.Decimal, expectedVersion int64) (*models.Wallet, error)

	CreateTrade(ctx context.Context, trade models.Trade) (*models.Trade, error)
	ListTrades(ctx context.Context, userID int64, limit, offset int) ([]models.Trade, int, error)
}

// Store is a Querier that can also run a function atomically
type Store interface {
	Querier
	// InTx runs fn in one transaction; fn's error rolls everything back
	InTx(ctx context.Context, fn func(q Querier) error) error
	Ping(ctx context.Context) error
	Close()
}
