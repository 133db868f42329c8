package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SystemAuditUser is recorded as creator when no operator is known
const SystemAuditUser = "system-auto"

// Audit carries the bookkeeping columns every persisted row has
type Audit struct {
	CreatedAt time.Time
	UpdatedAt time.Time
	CreatedBy string
}

// Side is an order side code
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide resolves a side code in any letter case
func ParseSide(s string) (Side, bool) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case SideBuy:
		return SideBuy, true
	case SideSell:
		return SideSell, true
	}
	return "", false
}

// Currency is a tradable asset or the quote currency
type Currency struct {
	ID   int64
	Code string
	Name string
	Audit
}

// OrderSide is the persisted row behind a Side
type OrderSide struct {
	ID   int64
	Code Side
}

// TradingPair identifies a symbol built from a base and a quote currency
type TradingPair struct {
	ID              int64
	Symbol          string
	BaseCurrencyID  int64
	BaseCurrency    string
	QuoteCurrencyID int64
	QuoteCurrency   string
	Active          bool
	Audit
}

// Quote is the top of book reported by one exchange for one symbol
type Quote struct {
	Bid decimal.Decimal
	Ask decimal.Decimal
}

// AggregatedPrice is the best bid/ask across feeds for one trading pair
type AggregatedPrice struct {
	ID            int64
	TradingPairID int64
	Symbol        string
	BidPrice      decimal.Decimal
	BidExchange   string
	AskPrice      decimal.Decimal
	AskExchange   string
	LastCheckedAt time.Time
	LastChangedAt time.Time
	Version       int64
	Audit
}

// SameTuple reports whether both records quote the same prices from the same exchanges
func (p AggregatedPrice) SameTuple(o AggregatedPrice) bool {
	return p.BidPrice.Equal(o.BidPrice) && p.BidExchange == o.BidExchange &&
		p.AskPrice.Equal(o.AskPrice) && p.AskExchange == o.AskExchange
}

// Wallet is a user's balance in one currency
type Wallet struct {
	ID         int64
	UserID     int64
	CurrencyID int64
	Currency   string
	Balance    decimal.Decimal
	Version    int64
	Audit
}

// Trade represents an executed fill against the aggregated price
type Trade struct {
	ID            int64
	UserID        int64
	TradingPairID int64
	Symbol        string
	OrderSideID   int64
	Side          Side
	Price         decimal.Decimal
	Quantity      decimal.Decimal
	Cost          decimal.Decimal
	CreatedAt     time.Time
	CreatedBy     string
}

// Page is one slice of a longer result set
type Page[T any] struct {
	Data       []T
	TotalCount int
	PageNumber int
	PageSize   int
}
