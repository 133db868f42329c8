package feed

import (
	"context"
	"net/http"
	"time"

	gbinance "github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/xtrntr/cryptotrade/internal/models"
)

// Binance reads /api/v3/ticker/bookTicker through go-binance
type Binance struct {
	name   string
	client *gbinance.Client
	logger logrus.FieldLogger
}

// NewBinance creates a public (unauthenticated) Binance feed.
// An empty baseURL keeps the library default.
func NewBinance(name, baseURL string, timeout time.Duration, logger logrus.FieldLogger) *Binance {
	client := gbinance.NewClient("", "")
	if baseURL != "" {
		client.BaseURL = baseURL
	}
	client.HTTPClient = &http.Client{Timeout: timeout}
	return &Binance{name: name, client: client, logger: logger.WithField("feed", name)}
}

func (b *Binance) Name() string { return b.name }

func (b *Binance) Fetch(ctx context.Context, symbols []string) map[string]models.Quote {
	out := map[string]models.Quote{}
	tickers, err := b.client.NewListBookTickersService().Do(ctx)
	if err != nil {
		b.logger.WithError(err).Warn("failed to fetch book tickers")
		return out
	}

	want := symbolSet(symbols)
	for _, t := range tickers {
		if _, ok := want[t.Symbol]; !ok {
			continue
		}
		bid, err := decimal.NewFromString(t.BidPrice)
		if err != nil {
			b.logger.WithField("symbol", t.Symbol).WithError(err).Warn("unparsable bid")
			continue
		}
		ask, err := decimal.NewFromString(t.AskPrice)
		if err != nil {
			b.logger.WithField("symbol", t.Symbol).WithError(err).Warn("unparsable ask")
			continue
		}
		out[t.Symbol] = models.Quote{Bid: bid, Ask: ask}
	}
	return out
}
