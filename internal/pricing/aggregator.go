// Package pricing merges exchange feeds into one best bid/ask per trading pair.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/xtrntr/cryptotrade/internal/feed"
	"github.com/xtrntr/cryptotrade/internal/models"
	"github.com/xtrntr/cryptotrade/internal/store"
)

// QuoteSink receives every raw quote a feed reported during a run
type QuoteSink interface {
	Record(ctx context.Context, exchange string, quotes map[string]models.Quote, at time.Time) error
}

// Result summarizes one aggregation run
type Result struct {
	RunID        string
	Updated      int
	Touched      int
	SkippedPairs int
	// Skipped is set when every feed came back empty and nothing was written
	Skipped bool
}

// Aggregator computes and persists the best bid/ask for every active pair
type Aggregator struct {
	store   store.Querier
	feeds   []feed.Feed
	sink    QuoteSink
	timeout time.Duration
	now     func() time.Time
	logger  logrus.FieldLogger
}

// Option customizes an Aggregator
type Option func(*Aggregator)

// WithQuoteSink records raw feed quotes after each fetch
func WithQuoteSink(sink QuoteSink) Option {
	return func(a *Aggregator) { a.sink = sink }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// NewAggregator creates an aggregator; feeds are listed in priority order
func NewAggregator(st store.Querier, feeds []feed.Feed, timeout time.Duration, logger logrus.FieldLogger, opts ...Option) *Aggregator {
	a := &Aggregator{
		store:   st,
		feeds:   feeds,
		timeout: timeout,
		now:     time.Now,
		logger:  logger.WithField("component", "aggregator"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate runs one aggregation pass
func (a *Aggregator) Aggregate(ctx context.Context) (Result, error) {
	res := Result{RunID: uuid.NewString()}
	log := a.logger.WithField("run_id", res.RunID)

	pairs, err := a.store.ListActivePairs(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to list active pairs: %w", err)
	}
	if len(pairs) == 0 {
		log.Debug("no active trading pairs")
		return res, nil
	}
	symbols := make([]string, len(pairs))
	for i, p := range pairs {
		symbols[i] = p.Symbol
	}

	reports := a.fetchAll(ctx, symbols)
	empty := true
	for _, r := range reports {
		if len(r) > 0 {
			empty = false
			break
		}
	}
	if empty {
		log.Warn("all price feeds returned no data, skipping run")
		res.Skipped = true
		return res, nil
	}
	a.record(ctx, log, reports)

	stored, err := a.store.ListPrices(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to list stored prices: %w", err)
	}
	byPair := make(map[int64]models.AggregatedPrice, len(stored))
	for _, p := range stored {
		byPair[p.TradingPairID] = p
	}

	now := a.now().UTC()
	var errs []error
	for _, pair := range pairs {
		var current *models.AggregatedPrice
		if p, ok := byPair[pair.ID]; ok {
			current = &p
		}

		next, ok := a.best(pair, current, reports)
		if !ok {
			log.WithField("symbol", pair.Symbol).Warn("no usable quotes for pair, skipping")
			res.SkippedPairs++
			continue
		}

		if current != nil && current.SameTuple(next) {
			if err := a.store.TouchPrice(ctx, pair.ID, now); err != nil {
				errs = append(errs, fmt.Errorf("touch %s: %w", pair.Symbol, err))
				continue
			}
			res.Touched++
			continue
		}

		saved, err := a.store.UpsertPrice(ctx, next, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("upsert %s: %w", pair.Symbol, err))
			continue
		}
		res.Updated++
		log.WithFields(logrus.Fields{
			"symbol":       pair.Symbol,
			"bid":          saved.BidPrice.String(),
			"bid_exchange": saved.BidExchange,
			"ask":          saved.AskPrice.String(),
			"ask_exchange": saved.AskExchange,
			"version":      saved.Version,
		}).Debug("aggregated price changed")
	}

	log.WithFields(logrus.Fields{
		"updated":       res.Updated,
		"touched":       res.Touched,
		"skipped_pairs": res.SkippedPairs,
	}).Info("aggregation run finished")
	return res, errors.Join(errs...)
}

// fetchAll queries every feed concurrently; reports[i] belongs to a.feeds[i]
func (a *Aggregator) fetchAll(ctx context.Context, symbols []string) []map[string]models.Quote {
	reports := make([]map[string]models.Quote, len(a.feeds))
	var wg sync.WaitGroup
	for i, f := range a.feeds {
		wg.Add(1)
		go func(i int, f feed.Feed) {
			defer wg.Done()
			fctx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()
			reports[i] = f.Fetch(fctx, symbols)
		}(i, f)
	}
	wg.Wait()
	return reports
}

func (a *Aggregator) record(ctx context.Context, log logrus.FieldLogger, reports []map[string]models.Quote) {
	if a.sink == nil {
		return
	}
	at := a.now().UTC()
	for i, r := range reports {
		if err := a.sink.Record(ctx, a.feeds[i].Name(), r, at); err != nil {
			log.WithError(err).WithField("exchange", a.feeds[i].Name()).Warn("failed to record raw quotes")
		}
	}
}

type candidate struct {
	price    decimal.Decimal
	exchange string
}

// best picks the new tuple for pair. ok is false when no feed had a usable quote.
func (a *Aggregator) best(pair models.TradingPair, current *models.AggregatedPrice, reports []map[string]models.Quote) (models.AggregatedPrice, bool) {
	var bids, asks []candidate
	for i, r := range reports {
		q, ok := r[pair.Symbol]
		if !ok {
			continue
		}
		name := a.feeds[i].Name()
		if q.Bid.IsPositive() {
			bids = append(bids, candidate{q.Bid, name})
		}
		if q.Ask.IsPositive() {
			asks = append(asks, candidate{q.Ask, name})
		}
	}
	if len(bids) == 0 && len(asks) == 0 {
		return models.AggregatedPrice{}, false
	}

	var storedBid, storedAsk *candidate
	if current != nil {
		storedBid = &candidate{current.BidPrice, current.BidExchange}
		storedAsk = &candidate{current.AskPrice, current.AskExchange}
	}

	bid, okBid := pick(withStored(storedBid, bids), func(x, y decimal.Decimal) bool { return x.GreaterThan(y) })
	ask, okAsk := pick(withStored(storedAsk, asks), func(x, y decimal.Decimal) bool { return x.LessThan(y) })
	if !okBid || !okAsk {
		return models.AggregatedPrice{}, false
	}

	return models.AggregatedPrice{
		TradingPairID: pair.ID,
		Symbol:        pair.Symbol,
		BidPrice:      bid.price,
		BidExchange:   bid.exchange,
		AskPrice:      ask.price,
		AskExchange:   ask.exchange,
	}, true
}

// withStored puts the stored candidate first so it wins ties. Fresh quotes
// only replace it by strictly beating it, so the stored best never regresses.
func withStored(stored *candidate, fresh []candidate) []candidate {
	if stored == nil {
		return fresh
	}
	return append([]candidate{*stored}, fresh...)
}

// pick returns the first candidate that no later candidate strictly beats
func pick(cands []candidate, better func(x, y decimal.Decimal) bool) (candidate, bool) {
	if len(cands) == 0 {
		return candidate{}, false
	}
	best := cands[0]
	for _, c := range cands[1:] {
		if better(c.price, best.price) {
			best = c
		}
	}
	return best, true
}
