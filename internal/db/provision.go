package db

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Migrate executes a schema script
func (db *DB) Migrate(ctx context.Context, script string) error {
	if _, err := db.Pool.Exec(ctx, script); err != nil {
		return fmt.Errorf("failed to apply migration: %w", err)
	}
	return nil
}

// EnsureCurrency inserts a currency unless its code exists and returns its id
func (db *DB) EnsureCurrency(ctx context.Context, code, name string) (int64, error) {
	var id int64
	err := db.Pool.QueryRow(ctx,
		"INSERT INTO currencies (code, name) VALUES ($1, $2) "+
			"ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name, updated_at = NOW() RETURNING id",
		code, name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to ensure currency %s: %w", code, err)
	}
	return id, nil
}

// EnsureTradingPair inserts an active pair unless the symbol exists and returns its id
func (db *DB) EnsureTradingPair(ctx context.Context, symbol, base, quote string) (int64, error) {
	var id int64
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO trading_pairs (symbol, base_currency_id, quote_currency_id)
		SELECT $1, b.id, q.id FROM currencies b, currencies q WHERE b.code = $2 AND q.code = $3
		ON CONFLICT (symbol) DO UPDATE SET updated_at = NOW()
		RETURNING id`,
		symbol, base, quote).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to ensure trading pair %s: %w", symbol, err)
	}
	return id, nil
}

// SetPairActive toggles whether a pair can be traded and aggregated
func (db *DB) SetPairActive(ctx context.Context, symbol string, active bool) error {
	tag, err := db.Pool.Exec(ctx, "UPDATE trading_pairs SET active = $1, updated_at = NOW() WHERE symbol = $2", active, symbol)
	if err != nil {
		return fmt.Errorf("failed to update trading pair: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("trading pair %s not found", symbol)
	}
	return nil
}

// EnsureWallet opens a wallet with the given balance; an existing wallet is left untouched.
// It reports whether a wallet was created.
func (db *DB) EnsureWallet(ctx context.Context, userID int64, currency string, opening decimal.Decimal) (bool, error) {
	tag, err := db.Pool.Exec(ctx, `
		INSERT INTO wallets (user_id, currency_id, balance)
		SELECT $1, c.id, $3 FROM currencies c WHERE c.code = $2
		ON CONFLICT (user_id, currency_id) DO NOTHING`,
		userID, currency, opening)
	if err != nil {
		return false, fmt.Errorf("failed to ensure wallet %s: %w", currency, err)
	}
	return tag.RowsAffected() == 1, nil
}

// CountTrades returns the number of trades stored
func (db *DB) CountTrades(ctx context.Context) (int, error) {
	var n int
	if err := db.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM trades").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count trades: %w", err)
	}
	return n, nil
}
