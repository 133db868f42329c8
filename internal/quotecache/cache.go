// Package quotecache keeps the latest raw quote per exchange in Redis so the
// API can show which venue contributed to an aggregated price.
package quotecache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/xtrntr/cryptotrade/internal/models"
)

const keyPrefix = "quotes:"

// SourceQuote is one exchange's last reported quote for a symbol
type SourceQuote struct {
	Exchange   string          `json:"exchange"`
	Bid        decimal.Decimal `json:"bid"`
	Ask        decimal.Decimal `json:"ask"`
	ReceivedAt time.Time       `json:"received_at"`
}

type entry struct {
	Bid decimal.Decimal `json:"bid"`
	Ask decimal.Decimal `json:"ask"`
	At  time.Time       `json:"at"`
}

// Cache stores one hash per symbol, keyed by exchange name
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger logrus.FieldLogger
}

// New wraps an existing client; ttl bounds how long an idle symbol survives
func New(client *redis.Client, ttl time.Duration, logger logrus.FieldLogger) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{client: client, ttl: ttl, logger: logger.WithField("component", "quotecache")}
}

func key(symbol string) string {
	return keyPrefix + strings.ToUpper(symbol)
}

// Record stores every quote one exchange reported in a single pipeline
func (c *Cache) Record(ctx context.Context, exchange string, quotes map[string]models.Quote, at time.Time) error {
	if len(quotes) == 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	for symbol, q := range quotes {
		raw, err := json.Marshal(entry{Bid: q.Bid, Ask: q.Ask, At: at.UTC()})
		if err != nil {
			return fmt.Errorf("failed to encode quote: %w", err)
		}
		k := key(symbol)
		pipe.HSet(ctx, k, exchange, raw)
		pipe.Expire(ctx, k, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.WithError(err).WithField("exchange", exchange).Error("failed to record quotes")
		return fmt.Errorf("failed to record quotes: %w", err)
	}
	return nil
}

// Sources returns the cached quotes for symbol ordered by exchange name
func (c *Cache) Sources(ctx context.Context, symbol string) ([]SourceQuote, error) {
	fields, err := c.client.HGetAll(ctx, key(symbol)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read quotes: %w", err)
	}

	out := make([]SourceQuote, 0, len(fields))
	for exchange, raw := range fields {
		var e entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			c.logger.WithField("exchange", exchange).WithError(err).Warn("could not decode cached quote")
			continue
		}
		out = append(out, SourceQuote{Exchange: exchange, Bid: e.Bid, Ask: e.Ask, ReceivedAt: e.At})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Exchange < out[j].Exchange })
	return out, nil
}

// Ping checks the connection
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
