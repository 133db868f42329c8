package pricing

import (
	"context"
	"errors"
	"strings"

	"github.com/xtrntr/cryptotrade/internal/apperr"
	"github.com/xtrntr/cryptotrade/internal/models"
	"github.com/xtrntr/cryptotrade/internal/store"
)

// PriceStore is the read side of the aggregated prices
type PriceStore struct {
	store store.Querier
}

func NewPriceStore(st store.Querier) *PriceStore {
	return &PriceStore{store: st}
}

// List returns every stored aggregated price
func (p *PriceStore) List(ctx context.Context) ([]models.AggregatedPrice, error) {
	return p.store.ListPrices(ctx)
}

// Get returns the aggregated price of symbol
func (p *PriceStore) Get(ctx context.Context, symbol string) (*models.AggregatedPrice, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	pair, err := p.store.GetTradingPair(ctx, symbol)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.New(apperr.UnsupportedPair, "Unsupported trading pair: %s", symbol)
	}
	if err != nil {
		return nil, err
	}
	price, err := p.store.GetPrice(ctx, pair.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.New(apperr.PriceUnavailable, "No price available for %s", symbol)
	}
	if err != nil {
		return nil, err
	}
	return price, nil
}
