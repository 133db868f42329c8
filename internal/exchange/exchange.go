package exchange

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/xtrntr/cryptotrade/internal/apperr"
	"github.com/xtrntr/cryptotrade/internal/ledger"
	"github.com/xtrntr/cryptotrade/internal/models"
	"github.com/xtrntr/cryptotrade/internal/retry"
	"github.com/xtrntr/cryptotrade/internal/store"
)

// Order is a market order filled against the aggregated price
type Order struct {
	UserID   int64
	Symbol   string
	Side     string
	Quantity decimal.Decimal
}

// Execution is the committed trade plus both wallets after it
type Execution struct {
	Trade        models.Trade
	BaseBalance  models.Wallet
	QuoteBalance models.Wallet
}

// Config holds the engine limits
type Config struct {
	MaxPriceAge   time.Duration
	RetryAttempts int
	RetryBackoff  time.Duration
}

// Engine executes market orders at the best aggregated price
type Engine struct {
	store  store.Store
	ledger *ledger.Ledger
	cfg    Config
	now    func() time.Time
	logger logrus.FieldLogger
}

// Option customizes an Engine
type Option func(*Engine)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a trade engine
func NewEngine(st store.Store, l *ledger.Ledger, cfg Config, logger logrus.FieldLogger, opts ...Option) *Engine {
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 1
	}
	e := &Engine{store: st, ledger: l, cfg: cfg, now: time.Now, logger: logger.WithField("component", "engine")}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExecuteTrade fills order atomically: either the trade and both wallet
// movements are committed or nothing is.
func (e *Engine) ExecuteTrade(ctx context.Context, order Order) (*Execution, error) {
	if err := validate(order); err != nil {
		return nil, err
	}

	var exec *Execution
	err := retry.Do(ctx, e.cfg.RetryAttempts, e.cfg.RetryBackoff, transient, func() error {
		return e.store.InTx(ctx, func(q store.Querier) error {
			var err error
			exec, err = e.execute(ctx, q, order)
			return err
		})
	})
	if err != nil {
		if transient(err) && apperr.KindOf(err) != apperr.TransientConflict {
			err = apperr.Wrap(apperr.TransientConflict, err, "Trade conflicted with a concurrent update, please retry")
		}
		log := e.logger.WithFields(logrus.Fields{"user_id": order.UserID, "symbol": order.Symbol, "side": order.Side})
		if apperr.KindOf(err) == apperr.Internal {
			log.WithError(err).Error("trade failed")
		} else {
			log.WithField("code", apperr.KindOf(err).Code()).Info("trade rejected")
		}
		return nil, err
	}

	e.logger.WithFields(logrus.Fields{
		"trade_id": exec.Trade.ID,
		"user_id":  exec.Trade.UserID,
		"symbol":   exec.Trade.Symbol,
		"side":     exec.Trade.Side,
		"price":    exec.Trade.Price.String(),
		"quantity": exec.Trade.Quantity.String(),
		"cost":     exec.Trade.Cost.String(),
	}).Info("trade executed")
	return exec, nil
}

func transient(err error) bool {
	return errors.Is(err, store.ErrTransient) || apperr.KindOf(err) == apperr.TransientConflict
}

func validate(order Order) error {
	if order.UserID <= 0 {
		return apperr.New(apperr.Validation, "User id must be positive")
	}
	if !order.Quantity.IsPositive() {
		return apperr.New(apperr.Validation, "Quantity must be positive")
	}
	if !models.FitsScale(order.Quantity) {
		return apperr.New(apperr.Validation, "Quantity must have at most %d decimal places", models.AmountScale)
	}
	return nil
}

func (e *Engine) execute(ctx context.Context, q store.Querier, order Order) (*Execution, error) {
	symbol := strings.ToUpper(strings.TrimSpace(order.Symbol))
	pair, err := q.GetTradingPair(ctx, symbol)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !pair.Active) {
		return nil, apperr.New(apperr.UnsupportedPair, "Unsupported trading pair: %s", symbol)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load trading pair: %w", err)
	}

	code, ok := models.ParseSide(order.Side)
	if !ok {
		return nil, apperr.New(apperr.InvalidSide, "Invalid order side: %s", order.Side)
	}
	side, err := q.GetOrderSide(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.New(apperr.InvalidSide, "Invalid order side: %s", order.Side)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order side: %w", err)
	}

	price, err := q.GetPrice(ctx, pair.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.New(apperr.PriceUnavailable, "No price available for %s", symbol)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load price: %w", err)
	}
	if err := e.checkFresh(price); err != nil {
		return nil, err
	}

	fill := price.AskPrice
	if code == models.SideSell {
		fill = price.BidPrice
	}
	if !fill.IsPositive() {
		return nil, apperr.New(apperr.PriceUnavailable, "No price available for %s", symbol)
	}
	cost := models.Cost(order.Quantity, fill)

	var base, quote *models.Wallet
	if code == models.SideBuy {
		if quote, err = e.ledger.Debit(ctx, q, order.UserID, pair.QuoteCurrency, cost); err != nil {
			return nil, err
		}
		if base, err = e.ledger.Credit(ctx, q, order.UserID, pair.BaseCurrency, order.Quantity); err != nil {
			return nil, err
		}
	} else {
		if base, err = e.ledger.Debit(ctx, q, order.UserID, pair.BaseCurrency, order.Quantity); err != nil {
			return nil, err
		}
		if quote, err = e.ledger.Credit(ctx, q, order.UserID, pair.QuoteCurrency, cost); err != nil {
			return nil, err
		}
	}

	trade, err := q.CreateTrade(ctx, models.Trade{
		UserID:        order.UserID,
		TradingPairID: pair.ID,
		Symbol:        pair.Symbol,
		OrderSideID:   side.ID,
		Side:          side.Code,
		Price:         fill,
		Quantity:      order.Quantity,
		Cost:          cost,
		CreatedAt:     e.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record trade: %w", err)
	}

	return &Execution{Trade: *trade, BaseBalance: *base, QuoteBalance: *quote}, nil
}

// checkFresh rejects prices older than the configured age. A reference time in
// the future counts as age zero.
func (e *Engine) checkFresh(price *models.AggregatedPrice) error {
	ref := price.LastCheckedAt
	if ref.IsZero() {
		ref = price.LastChangedAt
	}
	if ref.IsZero() {
		return apperr.New(apperr.PriceUnavailable, "No price available for %s", price.Symbol)
	}
	age := e.now().Sub(ref)
	if age < 0 {
		age = 0
	}
	if age > e.cfg.MaxPriceAge {
		return apperr.New(apperr.PriceStale, "Price for %s is stale (%s old)", price.Symbol, age.Truncate(time.Second))
	}
	return nil
}
