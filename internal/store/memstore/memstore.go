// Package memstore is an in-memory store.Store used for local runs and tests.
// Transactions are serialized and applied copy-on-write, so a failed
// transaction leaves no trace.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xtrntr/cryptotrade/internal/models"
	"github.com/xtrntr/cryptotrade/internal/store"
)

var _ store.Store = (*Store)(nil)

type state struct {
	nextID     int64
	currencies map[string]models.Currency
	sides      map[models.Side]models.OrderSide
	pairs      map[string]models.TradingPair
	prices     map[int64]models.AggregatedPrice
	wallets    map[int64]models.Wallet
	trades     []models.Trade
}

func (s *state) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *state) clone() *state {
	c := &state{
		nextID:     s.nextID,
		currencies: make(map[string]models.Currency, len(s.currencies)),
		sides:      make(map[models.Side]models.OrderSide, len(s.sides)),
		pairs:      make(map[string]models.TradingPair, len(s.pairs)),
		prices:     make(map[int64]models.AggregatedPrice, len(s.prices)),
		wallets:    make(map[int64]models.Wallet, len(s.wallets)),
		// trades is append-only: a draft appends past the committed length and
		// a discarded draft leaves that length untouched
		trades: s.trades,
	}
	for k, v := range s.currencies {
		c.currencies[k] = v
	}
	for k, v := range s.sides {
		c.sides[k] = v
	}
	for k, v := range s.pairs {
		c.pairs[k] = v
	}
	for k, v := range s.prices {
		c.prices[k] = v
	}
	for k, v := range s.wallets {
		c.wallets[k] = v
	}
	return c
}

// Store keeps every table in maps guarded by one mutex
type Store struct {
	mu    sync.Mutex
	state *state
	now   func() time.Time
}

// New creates an empty store with the BUY and SELL order sides present
func New() *Store {
	st := &state{
		currencies: map[string]models.Currency{},
		sides:      map[models.Side]models.OrderSide{},
		pairs:      map[string]models.TradingPair{},
		prices:     map[int64]models.AggregatedPrice{},
		wallets:    map[int64]models.Wallet{},
	}
	st.sides[models.SideBuy] = models.OrderSide{ID: 1, Code: models.SideBuy}
	st.sides[models.SideSell] = models.OrderSide{ID: 2, Code: models.SideSell}
	st.nextID = 2
	return &Store{state: st, now: time.Now}
}

// SetClock overrides the time source used for audit columns
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// AddCurrency provisions a currency
func (s *Store) AddCurrency(code, name string) models.Currency {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	c := models.Currency{ID: s.state.id(), Code: code, Name: name,
		Audit: models.Audit{CreatedAt: now, UpdatedAt: now, CreatedBy: models.SystemAuditUser}}
	s.state.currencies[code] = c
	return c
}

// AddTradingPair provisions a pair between two existing currencies
func (s *Store) AddTradingPair(symbol, base, quote string, active bool) (models.TradingPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.state.currencies[base]
	if !ok {
		return models.TradingPair{}, fmt.Errorf("base currency %s: %w", base, store.ErrNotFound)
	}
	q, ok := s.state.currencies[quote]
	if !ok {
		return models.TradingPair{}, fmt.Errorf("quote currency %s: %w", quote, store.ErrNotFound)
	}
	now := s.now()
	p := models.TradingPair{
		ID:              s.state.id(),
		Symbol:          symbol,
		BaseCurrencyID:  b.ID,
		BaseCurrency:    b.Code,
		QuoteCurrencyID: q.ID,
		QuoteCurrency:   q.Code,
		Active:          active,
		Audit:           models.Audit{CreatedAt: now, UpdatedAt: now, CreatedBy: models.SystemAuditUser},
	}
	s.state.pairs[symbol] = p
	return p, nil
}

// SetPairActive toggles a pair's active flag
func (s *Store) SetPairActive(symbol string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.state.pairs[symbol]
	if !ok {
		return fmt.Errorf("trading pair %s: %w", symbol, store.ErrNotFound)
	}
	p.Active = active
	p.UpdatedAt = s.now()
	s.state.pairs[symbol] = p
	return nil
}

// AddWallet provisions a wallet with an opening balance
func (s *Store) AddWallet(userID int64, currency string, balance decimal.Decimal) (models.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.state.currencies[currency]
	if !ok {
		return models.Wallet{}, fmt.Errorf("currency %s: %w", currency, store.ErrNotFound)
	}
	for _, w := range s.state.wallets {
		if w.UserID == userID && w.CurrencyID == c.ID {
			return models.Wallet{}, fmt.Errorf("wallet for user %d in %s already exists", userID, currency)
		}
	}
	now := s.now()
	w := models.Wallet{ID: s.state.id(), UserID: userID, CurrencyID: c.ID, Currency: c.Code, Balance: balance,
		Audit: models.Audit{CreatedAt: now, UpdatedAt: now, CreatedBy: models.SystemAuditUser}}
	s.state.wallets[w.ID] = w
	return w, nil
}

// PutPrice stores an aggregated price row as is, for fixtures
func (s *Store) PutPrice(p models.AggregatedPrice) models.AggregatedPrice {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.state.id()
	}
	for _, pair := range s.state.pairs {
		if pair.ID == p.TradingPairID {
			p.Symbol = pair.Symbol
		}
	}
	s.state.prices[p.TradingPairID] = p
	return p
}

// TradeCount returns the number of committed trades
func (s *Store) TradeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.trades)
}

func (s *Store) view() *view { return &view{st: s.state, now: s.now} }

// InTx runs fn against a private copy and publishes it only if fn succeeds
func (s *Store) InTx(ctx context.Context, fn func(q store.Querier) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	draft := s.state.clone()
	if err := fn(&view{st: draft, now: s.now}); err != nil {
		return err
	}
	s.state = draft
	return nil
}

// Ping always succeeds
func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

// Close is a no-op
func (s *Store) Close() {}

func (s *Store) GetTradingPair(ctx context.Context, symbol string) (*models.TradingPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().GetTradingPair(ctx, symbol)
}

func (s *Store) ListActivePairs(ctx context.Context) ([]models.TradingPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().ListActivePairs(ctx)
}

func (s *Store) GetOrderSide(ctx context.Context, code models.Side) (*models.OrderSide, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().GetOrderSide(ctx, code)
}

func (s *Store) GetPrice(ctx context.Context, pairID int64) (*models.AggregatedPrice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().GetPrice(ctx, pairID)
}

func (s *Store) ListPrices(ctx context.Context) ([]models.AggregatedPrice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().ListPrices(ctx)
}

func (s *Store) UpsertPrice(ctx context.Context, price models.AggregatedPrice, at time.Time) (*models.AggregatedPrice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().UpsertPrice(ctx, price, at)
}

func (s *Store) TouchPrice(ctx context.Context, pairID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().TouchPrice(ctx, pairID, at)
}

func (s *Store) GetWallet(ctx context.Context, userID int64, currency string) (*models.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().GetWallet(ctx, userID, currency)
}

func (s *Store) ListWallets(ctx context.Context, userID int64) ([]models.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().ListWallets(ctx, userID)
}

func (s *Store) UpdateWalletBalance(ctx context.Context, walletID int64, balance decimal.Decimal, expectedVersion int64) (*models.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().UpdateWalletBalance(ctx, walletID, balance, expectedVersion)
}

func (s *Store) CreateTrade(ctx context.Context, trade models.Trade) (*models.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().CreateTrade(ctx, trade)
}

func (s *Store) ListTrades(ctx context.Context, userID int64, limit, offset int) ([]models.Trade, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().ListTrades(ctx, userID, limit, offset)
}

// view implements store.Querier over one state; callers hold the lock
type view struct {
	st  *state
	now func() time.Time
}

func (v *view) GetTradingPair(_ context.Context, symbol string) (*models.TradingPair, error) {
	p, ok := v.st.pairs[strings.ToUpper(symbol)]
	if !ok {
		return nil, fmt.Errorf("trading pair %s: %w", symbol, store.ErrNotFound)
	}
	return &p, nil
}

func (v *view) ListActivePairs(_ context.Context) ([]models.TradingPair, error) {
	var out []models.TradingPair
	for _, p := range v.st.pairs {
		if p.Active {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (v *view) GetOrderSide(_ context.Context, code models.Side) (*models.OrderSide, error) {
	s, ok := v.st.sides[code]
	if !ok {
		return nil, fmt.Errorf("order side %s: %w", code, store.ErrNotFound)
	}
	return &s, nil
}

func (v *view) GetPrice(_ context.Context, pairID int64) (*models.AggregatedPrice, error) {
	p, ok := v.st.prices[pairID]
	if !ok {
		return nil, fmt.Errorf("price for pair %d: %w", pairID, store.ErrNotFound)
	}
	return &p, nil
}

func (v *view) ListPrices(_ context.Context) ([]models.AggregatedPrice, error) {
	out := make([]models.AggregatedPrice, 0, len(v.st.prices))
	for _, p := range v.st.prices {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TradingPairID < out[j].TradingPairID })
	return out, nil
}

func (v *view) UpsertPrice(_ context.Context, price models.AggregatedPrice, at time.Time) (*models.AggregatedPrice, error) {
	var symbol string
	for _, pair := range v.st.pairs {
		if pair.ID == price.TradingPairID {
			symbol = pair.Symbol
		}
	}
	if symbol == "" {
		return nil, fmt.Errorf("trading pair %d: %w", price.TradingPairID, store.ErrNotFound)
	}
	existing, ok := v.st.prices[price.TradingPairID]
	if ok {
		existing.BidPrice, existing.BidExchange = price.BidPrice, price.BidExchange
		existing.AskPrice, existing.AskExchange = price.AskPrice, price.AskExchange
		existing.LastCheckedAt, existing.LastChangedAt = at, at
		existing.Version++
		existing.UpdatedAt = at
		v.st.prices[price.TradingPairID] = existing
		return &existing, nil
	}
	price.ID = v.st.id()
	price.Symbol = symbol
	price.LastCheckedAt, price.LastChangedAt = at, at
	price.Version = 1
	price.Audit = models.Audit{CreatedAt: at, UpdatedAt: at, CreatedBy: models.SystemAuditUser}
	v.st.prices[price.TradingPairID] = price
	return &price, nil
}

func (v *view) TouchPrice(_ context.Context, pairID int64, at time.Time) error {
	p, ok := v.st.prices[pairID]
	if !ok {
		return fmt.Errorf("price for pair %d: %w", pairID, store.ErrNotFound)
	}
	p.LastCheckedAt = at
	v.st.prices[pairID] = p
	return nil
}

func (v *view) GetWallet(_ context.Context, userID int64, currency string) (*models.Wallet, error) {
	for _, w := range v.st.wallets {
		if w.UserID == userID && w.Currency == currency {
			return &w, nil
		}
	}
	return nil, fmt.Errorf("wallet %d/%s: %w", userID, currency, store.ErrNotFound)
}

func (v *view) ListWallets(_ context.Context, userID int64) ([]models.Wallet, error) {
	var out []models.Wallet
	for _, w := range v.st.wallets {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out, nil
}

func (v *view) UpdateWalletBalance(_ context.Context, walletID int64, balance decimal.Decimal, expectedVersion int64) (*models.Wallet, error) {
	w, ok := v.st.wallets[walletID]
	if !ok {
		return nil, fmt.Errorf("wallet %d: %w", walletID, store.ErrNotFound)
	}
	if w.Version != expectedVersion {
		return nil, fmt.Errorf("wallet %d at version %d, expected %d: %w", walletID, w.Version, expectedVersion, store.ErrVersionConflict)
	}
	if balance.IsNegative() {
		return nil, fmt.Errorf("wallet %d: %w", walletID, store.ErrNegativeBalance)
	}
	w.Balance = balance
	w.Version++
	w.UpdatedAt = v.now()
	v.st.wallets[walletID] = w
	return &w, nil
}

func (v *view) CreateTrade(_ context.Context, trade models.Trade) (*models.Trade, error) {
	trade.ID = v.st.id()
	if trade.CreatedAt.IsZero() {
		trade.CreatedAt = v.now()
	}
	if trade.CreatedBy == "" {
		trade.CreatedBy = models.SystemAuditUser
	}
	v.st.trades = append(v.st.trades, trade)
	return &trade, nil
}

func (v *view) ListTrades(_ context.Context, userID int64, limit, offset int) ([]models.Trade, int, error) {
	if offset < 0 || limit < 0 {
		return nil, 0, fmt.Errorf("invalid page bounds limit=%d offset=%d", limit, offset)
	}
	var mine []models.Trade
	for _, t := range v.st.trades {
		if t.UserID == userID {
			mine = append(mine, t)
		}
	}
	sort.SliceStable(mine, func(i, j int) bool {
		if mine[i].CreatedAt.Equal(mine[j].CreatedAt) {
			return mine[i].ID > mine[j].ID
		}
		return mine[i].CreatedAt.After(mine[j].CreatedAt)
	})
	total := len(mine)
	if offset >= total {
		return []models.Trade{}, total, nil
	}
	end := total
	if limit > 0 && limit < total-offset {
		end = offset + limit
	}
	return mine[offset:end], total, nil
}
