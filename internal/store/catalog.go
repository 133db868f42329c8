package store

import "github.com/shopspring/decimal"

// CurrencySpec describes a currency to provision
type CurrencySpec struct {
	Code string
	Name string
}

// PairSpec describes a trading pair to provision
type PairSpec struct {
	Symbol string
	Base   string
	Quote  string
}

// DefaultCurrencies are provisioned by the seed binary and the in-memory driver
var DefaultCurrencies = []CurrencySpec{
	{Code: "USDT", Name: "Tether"},
	{Code: "BTC", Name: "Bitcoin"},
	{Code: "ETH", Name: "Ethereum"},
}

// DefaultPairs are the pairs quoted against USDT
var DefaultPairs = []PairSpec{
	{Symbol: "BTCUSDT", Base: "BTC", Quote: "USDT"},
	{Symbol: "ETHUSDT", Base: "ETH", Quote: "USDT"},
}

// DefaultOpeningBalances fund a freshly provisioned user
func DefaultOpeningBalances() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"USDT": decimal.NewFromInt(50000),
		"BTC":  decimal.Zero,
		"ETH":  decimal.Zero,
	}
}
