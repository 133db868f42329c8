package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xtrntr/cryptotrade/internal/models"
	"github.com/xtrntr/cryptotrade/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ store.Store = (*DB)(nil)

// conn is satisfied by both the pool and a transaction
type conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// queries implements store.Querier on top of a conn
type queries struct {
	c conn
}

// DB wraps a PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
	queries
}

// NewDB initializes a new database connection pool
func NewDB(ctx context.Context, connString string) (*DB, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	return &DB{Pool: pool, queries: queries{c: pool}}, nil
}

// Close closes the database connection pool
func (db *DB) Close() {
	db.Pool.Close()
}

// Ping checks that the database answers
func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// InTx runs fn inside a transaction, committing only when fn succeeds
func (db *DB) InTx(ctx context.Context, fn func(q store.Querier) error) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&queries{c: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return classify(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// classify maps PostgreSQL failures onto the store sentinels
func classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "40001", "40P01":
		return fmt.Errorf("%w: %v", store.ErrTransient, err)
	case "23514":
		return fmt.Errorf("%w: %v", store.ErrNegativeBalance, err)
	}
	return err
}

const pairColumns = `p.id, p.symbol, p.base_currency_id, b.code, p.quote_currency_id, q.code, p.active, p.created_at, p.updated_at, p.created_by`

const pairFrom = `FROM trading_pairs p
	JOIN currencies b ON b.id = p.base_currency_id
	JOIN currencies q ON q.id = p.quote_currency_id`

func scanPair(row pgx.Row) (*models.TradingPair, error) {
	p := &models.TradingPair{}
	err := row.Scan(&p.ID, &p.Symbol, &p.BaseCurrencyID, &p.BaseCurrency, &p.QuoteCurrencyID, &p.QuoteCurrency,
		&p.Active, &p.CreatedAt, &p.UpdatedAt, &p.CreatedBy)
	return p, err
}

// GetTradingPair retrieves a pair by symbol, active or not
func (q *queries) GetTradingPair(ctx context.Context, symbol string) (*models.TradingPair, error) {
	p, err := scanPair(q.c.QueryRow(ctx, "SELECT "+pairColumns+" "+pairFrom+" WHERE p.symbol = $1", symbol))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("trading pair %s: %w", symbol, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get trading pair: %w", err)
	}
	return p, nil
}

// ListActivePairs retrieves every active pair
func (q *queries) ListActivePairs(ctx context.Context) ([]models.TradingPair, error) {
	rows, err := q.c.Query(ctx, "SELECT "+pairColumns+" "+pairFrom+" WHERE p.active ORDER BY p.id")
	if err != nil {
		return nil, fmt.Errorf("failed to list trading pairs: %w", err)
	}
	defer rows.Close()

	var pairs []models.TradingPair
	for rows.Next() {
		p, err := scanPair(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trading pair: %w", err)
		}
		pairs = append(pairs, *p)
	}
	return pairs, rows.Err()
}

// GetOrderSide retrieves the row behind a side code
func (q *queries) GetOrderSide(ctx context.Context, code models.Side) (*models.OrderSide, error) {
	side := &models.OrderSide{}
	err := q.c.QueryRow(ctx, "SELECT id, code FROM order_sides WHERE code = $1", string(code)).Scan(&side.ID, &side.Code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("order side %s: %w", code, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get order side: %w", err)
	}
	return side, nil
}

const priceColumns = `a.id, a.trading_pair_id, p.symbol, a.bid_price, a.bid_exchange, a.ask_price, a.ask_exchange,
	a.last_checked_at, a.last_changed_at, a.version, a.created_at, a.updated_at, a.created_by`

func scanPrice(row pgx.Row) (*models.AggregatedPrice, error) {
	a := &models.AggregatedPrice{}
	err := row.Scan(&a.ID, &a.TradingPairID, &a.Symbol, &a.BidPrice, &a.BidExchange, &a.AskPrice, &a.AskExchange,
		&a.LastCheckedAt, &a.LastChangedAt, &a.Version, &a.CreatedAt, &a.UpdatedAt, &a.CreatedBy)
	return a, err
}

// GetPrice retrieves the aggregated price of a pair
func (q *queries) GetPrice(ctx context.Context, pairID int64) (*models.AggregatedPrice, error) {
	a, err := scanPrice(q.c.QueryRow(ctx,
		"SELECT "+priceColumns+" FROM aggregated_prices a JOIN trading_pairs p ON p.id = a.trading_pair_id WHERE a.trading_pair_id = $1",
		pairID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("price for pair %d: %w", pairID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get price: %w", err)
	}
	return a, nil
}

// ListPrices retrieves every aggregated price
func (q *queries) ListPrices(ctx context.Context) ([]models.AggregatedPrice, error) {
	rows, err := q.c.Query(ctx,
		"SELECT "+priceColumns+" FROM aggregated_prices a JOIN trading_pairs p ON p.id = a.trading_pair_id ORDER BY a.trading_pair_id")
	if err != nil {
		return nil, fmt.Errorf("failed to list prices: %w", err)
	}
	defer rows.Close()

	var prices []models.AggregatedPrice
	for rows.Next() {
		a, err := scanPrice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		prices = append(prices, *a)
	}
	return prices, rows.Err()
}

// UpsertPrice inserts or replaces the price tuple of a pair
func (q *queries) UpsertPrice(ctx context.Context, price models.AggregatedPrice, at time.Time) (*models.AggregatedPrice, error) {
	a, err := scanPrice(q.c.QueryRow(ctx, `
		WITH a AS (
			INSERT INTO aggregated_prices (trading_pair_id, bid_price, bid_exchange, ask_price, ask_exchange,
				last_checked_at, last_changed_at, version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $6, 1, $6, $6)
			ON CONFLICT (trading_pair_id) DO UPDATE SET
				bid_price = EXCLUDED.bid_price,
				bid_exchange = EXCLUDED.bid_exchange,
				ask_price = EXCLUDED.ask_price,
				ask_exchange = EXCLUDED.ask_exchange,
				last_checked_at = EXCLUDED.last_checked_at,
				last_changed_at = EXCLUDED.last_changed_at,
				version = aggregated_prices.version + 1,
				updated_at = EXCLUDED.updated_at
			RETURNING *
		)
		SELECT `+priceColumns+` FROM a JOIN trading_pairs p ON p.id = a.trading_pair_id`,
		price.TradingPairID, price.BidPrice, price.BidExchange, price.AskPrice, price.AskExchange, at))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert price: %w", err)
	}
	return a, nil
}

// TouchPrice records that the price was confirmed at `at` without changing it
func (q *queries) TouchPrice(ctx context.Context, pairID int64, at time.Time) error {
	tag, err := q.c.Exec(ctx, "UPDATE aggregated_prices SET last_checked_at = $1 WHERE trading_pair_id = $2", at, pairID)
	if err != nil {
		return fmt.Errorf("failed to touch price: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("price for pair %d: %w", pairID, store.ErrNotFound)
	}
	return nil
}

const walletColumns = `w.id, w.user_id, w.currency_id, c.code, w.balance, w.version, w.created_at, w.updated_at, w.created_by`

func scanWallet(row pgx.Row) (*models.Wallet, error) {
	w := &models.Wallet{}
	err := row.Scan(&w.ID, &w.UserID, &w.CurrencyID, &w.Currency, &w.Balance, &w.Version, &w.CreatedAt, &w.UpdatedAt, &w.CreatedBy)
	return w, err
}

// GetWallet retrieves a user's wallet in one currency
func (q *queries) GetWallet(ctx context.Context, userID int64, currency string) (*models.Wallet, error) {
	w, err := scanWallet(q.c.QueryRow(ctx,
		"SELECT "+walletColumns+" FROM wallets w JOIN currencies c ON c.id = w.currency_id WHERE w.user_id = $1 AND c.code = $2",
		userID, currency))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("wallet %d/%s: %w", userID, currency, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return w, nil
}

// ListWallets retrieves all wallets of a user
func (q *queries) ListWallets(ctx context.Context, userID int64) ([]models.Wallet, error) {
	rows, err := q.c.Query(ctx,
		"SELECT "+walletColumns+" FROM wallets w JOIN currencies c ON c.id = w.currency_id WHERE w.user_id = $1 ORDER BY c.code",
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}
	defer rows.Close()

	var wallets []models.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wallet: %w", err)
		}
		wallets = append(wallets, *w)
	}
	return wallets, rows.Err()
}

// UpdateWalletBalance compares-and-swaps the balance on the version column.
// The UPDATE takes the row lock, so a concurrent writer is waited for and then detected.
func (q *queries) UpdateWalletBalance(ctx context.Context, walletID int64, balance decimal.Decimal, expectedVersion int64) (*models.Wallet, error) {
	w, err := scanWallet(q.c.QueryRow(ctx, `
		WITH w AS (
			UPDATE wallets SET balance = $1, version = version + 1, updated_at = NOW()
			WHERE id = $2 AND version = $3
			RETURNING *
		)
		SELECT `+walletColumns+` FROM w JOIN currencies c ON c.id = w.currency_id`,
		balance, walletID, expectedVersion))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("wallet %d moved past version %d: %w", walletID, expectedVersion, store.ErrVersionConflict)
		}
		return nil, classify(fmt.Errorf("failed to update wallet: %w", err))
	}
	return w, nil
}

// CreateTrade inserts a new trade
func (q *queries) CreateTrade(ctx context.Context, trade models.Trade) (*models.Trade, error) {
	createdBy := trade.CreatedBy
	if createdBy == "" {
		createdBy = models.SystemAuditUser
	}
	newTrade := trade
	err := q.c.QueryRow(ctx,
		"INSERT INTO trades (user_id, trading_pair_id, order_side_id, price, quantity, cost, created_at, created_by) "+
			"VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()), $8) RETURNING id, created_at, created_by",
		trade.UserID, trade.TradingPairID, trade.OrderSideID, trade.Price, trade.Quantity, trade.Cost,
		nullableTime(trade.CreatedAt), createdBy).Scan(&newTrade.ID, &newTrade.CreatedAt, &newTrade.CreatedBy)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to create trade: %w", err))
	}
	return &newTrade, nil
}

// ListTrades retrieves one page of a user's trades, newest first, plus the total count
func (q *queries) ListTrades(ctx context.Context, userID int64, limit, offset int) ([]models.Trade, int, error) {
	var total int
	if err := q.c.QueryRow(ctx, "SELECT COUNT(*) FROM trades WHERE user_id = $1", userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count trades: %w", err)
	}

	rows, err := q.c.Query(ctx, `
		SELECT t.id, t.user_id, t.trading_pair_id, p.symbol, t.order_side_id, s.code,
			t.price, t.quantity, t.cost, t.created_at, t.created_by
		FROM trades t
		JOIN trading_pairs p ON p.id = t.trading_pair_id
		JOIN order_sides s ON s.id = t.order_side_id
		WHERE t.user_id = $1
		ORDER BY t.created_at DESC, t.id DESC
		LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get user trades: %w", err)
	}
	defer rows.Close()

	trades := []models.Trade{}
	for rows.Next() {
		var t models.Trade
		if err := rows.Scan(&t.ID, &t.UserID, &t.TradingPairID, &t.Symbol, &t.OrderSideID, &t.Side,
			&t.Price, &t.Quantity, &t.Cost, &t.CreatedAt, &t.CreatedBy); err != nil {
			return nil, 0, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return trades, total, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
