package feed

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/xtrntr/cryptotrade/internal/models"
)

const huobiDefaultURL = "https://api.huobi.pro"

// Huobi reads /market/tickers; Huobi symbols are lower case ("btcusdt")
type Huobi struct {
	name   string
	client *resty.Client
	logger logrus.FieldLogger
}

type huobiTicker struct {
	Symbol string          `json:"symbol"`
	Bid    decimal.Decimal `json:"bid"`
	Ask    decimal.Decimal `json:"ask"`
}

type huobiResponse struct {
	Status string        `json:"status"`
	Data   []huobiTicker `json:"data"`
}

// NewHuobi creates a Huobi feed. An empty baseURL uses the public API.
func NewHuobi(name, baseURL string, timeout time.Duration, logger logrus.FieldLogger) *Huobi {
	if baseURL == "" {
		baseURL = huobiDefaultURL
	}
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &Huobi{name: name, client: client, logger: logger.WithField("feed", name)}
}

func (h *Huobi) Name() string { return h.name }

func (h *Huobi) Fetch(ctx context.Context, symbols []string) map[string]models.Quote {
	out := map[string]models.Quote{}
	var body huobiResponse
	resp, err := h.client.R().SetContext(ctx).SetResult(&body).Get("/market/tickers")
	if err != nil {
		h.logger.WithError(err).Warn("failed to fetch tickers")
		return out
	}
	if resp.IsError() {
		h.logger.WithField("status", resp.Status()).Warn("tickers request rejected")
		return out
	}
	if body.Status != "ok" {
		h.logger.WithField("api_status", body.Status).Warn("tickers response not ok")
		return out
	}

	want := symbolSet(symbols)
	for _, t := range body.Data {
		sym := strings.ToUpper(t.Symbol)
		if _, ok := want[sym]; !ok {
			continue
		}
		out[sym] = models.Quote{Bid: t.Bid, Ask: t.Ask}
	}
	return out
}
