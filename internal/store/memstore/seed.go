package memstore

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xtrntr/cryptotrade/internal/store"
)

// Seed provisions the default currencies and pairs plus one wallet per balance for userID
func (s *Store) Seed(userID int64, balances map[string]decimal.Decimal) error {
	for _, c := range store.DefaultCurrencies {
		s.AddCurrency(c.Code, c.Name)
	}
	for _, p := range store.DefaultPairs {
		if _, err := s.AddTradingPair(p.Symbol, p.Base, p.Quote, true); err != nil {
			return fmt.Errorf("failed to add pair %s: %w", p.Symbol, err)
		}
	}
	for code, bal := range balances {
		if _, err := s.AddWallet(userID, code, bal); err != nil {
			return fmt.Errorf("failed to add %s wallet: %w", code, err)
		}
	}
	return nil
}
