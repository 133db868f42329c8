package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xtrntr/cryptotrade/internal/logger"
	"github.com/xtrntr/cryptotrade/internal/models"
)

func quote(bid, ask string) models.Quote {
	return models.Quote{Bid: decimal.RequireFromString(bid), Ask: decimal.RequireFromString(ask)}
}

func TestBinance_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/bookTicker", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"symbol":"BTCUSDT","bidPrice":"50000.10","bidQty":"1","askPrice":"50010.20","askQty":"1"},
			{"symbol":"ETHUSDT","bidPrice":"3000.00","bidQty":"1","askPrice":"3001.00","askQty":"1"},
			{"symbol":"DOGEUSDT","bidPrice":"0.1","bidQty":"1","askPrice":"0.2","askQty":"1"}
		]`))
	}))
	defer srv.Close()

	b := NewBinance("BINANCE", srv.URL, time.Second, logger.Discard())
	got := b.Fetch(context.Background(), []string{"BTCUSDT", "ETHUSDT"})

	require.Len(t, got, 2)
	assert.True(t, got["BTCUSDT"].Bid.Equal(decimal.RequireFromString("50000.10")))
	assert.True(t, got["BTCUSDT"].Ask.Equal(decimal.RequireFromString("50010.20")))
	assert.True(t, got["ETHUSDT"].Ask.Equal(decimal.RequireFromString("3001")))
	assert.Equal(t, "BINANCE", b.Name())
}

func TestBinance_FetchFailure(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"ServerError", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"Garbage", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			b := NewBinance("BINANCE", srv.URL, time.Second, logger.Discard())
			assert.Empty(t, b.Fetch(context.Background(), []string{"BTCUSDT"}))
		})
	}
}

func TestHuobi_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/market/tickers", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","ts":1,"data":[
			{"symbol":"btcusdt","bid":50050,"ask":50080},
			{"symbol":"ethusdt","bid":3000.5,"ask":3002},
			{"symbol":"xrpusdt","bid":0.5,"ask":0.6}
		]}`))
	}))
	defer srv.Close()

	h := NewHuobi("HUOBI", srv.URL, time.Second, logger.Discard())
	got := h.Fetch(context.Background(), []string{"BTCUSDT", "ETHUSDT"})

	require.Len(t, got, 2)
	assert.True(t, got["BTCUSDT"].Bid.Equal(decimal.RequireFromString("50050")))
	assert.True(t, got["BTCUSDT"].Ask.Equal(decimal.RequireFromString("50080")))
	assert.True(t, got["ETHUSDT"].Bid.Equal(decimal.RequireFromString("3000.5")))
}

func TestHuobi_FetchFailure(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"ServerError", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}},
		{"StatusError", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"error","err-msg":"down"}`))
		}},
		{"Slow", func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(300 * time.Millisecond)
			_, _ = w.Write([]byte(`{"status":"ok","data":[]}`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			h := NewHuobi("HUOBI", srv.URL, 100*time.Millisecond, logger.Discard())
			assert.Empty(t, h.Fetch(context.Background(), []string{"BTCUSDT"}))
		})
	}
}

func TestStatic_Fetch(t *testing.T) {
	s := NewStatic("BINANCE", map[string]models.Quote{
		"BTCUSDT": quote("1", "2"),
		"ETHUSDT": quote("3", "4"),
	})
	got := s.Fetch(context.Background(), []string{"btcusdt"})
	require.Len(t, got, 1)
	assert.True(t, got["BTCUSDT"].Ask.Equal(decimal.NewFromInt(2)))

	s.Set(nil)
	assert.Empty(t, s.Fetch(context.Background(), []string{"BTCUSDT"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Set(map[string]models.Quote{"BTCUSDT": quote("1", "2")})
	assert.Empty(t, s.Fetch(ctx, []string{"BTCUSDT"}))
}
