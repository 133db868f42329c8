package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/xtrntr/cryptotrade/internal/apperr"
	"github.com/xtrntr/cryptotrade/internal/exchange"
	"github.com/xtrntr/cryptotrade/internal/ledger"
	"github.com/xtrntr/cryptotrade/internal/pricing"
	"github.com/xtrntr/cryptotrade/internal/quotecache"
)

// Pinger reports whether storage is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// SourceLister returns the raw per-exchange quotes behind a symbol
type SourceLister interface {
	Sources(ctx context.Context, symbol string) ([]quotecache.SourceQuote, error)
}

// Handler contains dependencies for HTTP handlers
type Handler struct {
	Engine  *exchange.Engine
	History *exchange.History
	Prices  *pricing.PriceStore
	Wallets *ledger.Ledger
	Health  Pinger
	// Sources is optional; nil disables /prices/{symbol}/sources
	Sources       SourceLister
	DefaultUserID int64
	Logger        logrus.FieldLogger
}

// NewHandler creates a new handler
func NewHandler(engine *exchange.Engine, history *exchange.History, prices *pricing.PriceStore,
	wallets *ledger.Ledger, health Pinger, defaultUserID int64, logger logrus.FieldLogger) *Handler {
	return &Handler{
		Engine:        engine,
		History:       history,
		Prices:        prices,
		Wallets:       wallets,
		Health:        health,
		DefaultUserID: defaultUserID,
		Logger:        logger,
	}
}

// PlaceTrade executes a market order for the calling user
func (h *Handler) PlaceTrade(w http.ResponseWriter, r *http.Request) {
	userID := userFromContext(r.Context())

	var req struct {
		Symbol   string          `json:"symbol"`
		Side     string          `json:"side"`
		Quantity decimal.Decimal `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperr.New(apperr.Validation, "Invalid request body"))
		return
	}
	if req.Symbol == "" || req.Side == "" {
		h.writeError(w, r, apperr.New(apperr.Validation, "Symbol and side required"))
		return
	}

	exec, err := h.Engine.ExecuteTrade(r.Context(), exchange.Order{
		UserID:   userID,
		Symbol:   req.Symbol,
		Side:     req.Side,
		Quantity: req.Quantity,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, executionResponse{
		Trade: newTradeResponse(exec.Trade),
		Balances: map[string]string{
			exec.BaseBalance.Currency:  formatAmount(exec.BaseBalance.Balance),
			exec.QuoteBalance.Currency: formatAmount(exec.QuoteBalance.Balance),
		},
	})
}

// GetUserTrades retrieves a page of the user's trade history
func (h *Handler) GetUserTrades(w http.ResponseWriter, r *http.Request) {
	userID := userFromContext(r.Context())

	page, err := intQuery(r, "page")
	if err != nil {
		h.writeError(w, r, apperr.New(apperr.Validation, "Invalid page"))
		return
	}
	pageSize, err := intQuery(r, "pageSize")
	if err != nil {
		h.writeError(w, r, apperr.New(apperr.Validation, "Invalid page size"))
		return
	}

	result, err := h.History.List(r.Context(), userID, page, pageSize)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	data := make([]tradeResponse, len(result.Data))
	for i, t := range result.Data {
		data[i] = newTradeResponse(t)
	}
	writeJSON(w, http.StatusOK, pageResponse[tradeResponse]{
		Data:       data,
		TotalCount: result.TotalCount,
		PageNumber: result.PageNumber,
		PageSize:   result.PageSize,
	})
}

// GetPrices lists every aggregated price
func (h *Handler) GetPrices(w http.ResponseWriter, r *http.Request) {
	prices, err := h.Prices.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]priceResponse, len(prices))
	for i, p := range prices {
		out[i] = newPriceResponse(p)
	}
	writeJSON(w, http.StatusOK, out)
}

// GetPrice returns the aggregated price of one symbol
func (h *Handler) GetPrice(w http.ResponseWriter, r *http.Request) {
	p, err := h.Prices.Get(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPriceResponse(*p))
}

// GetPriceSources returns the last quote each exchange reported for a symbol
func (h *Handler) GetPriceSources(w http.ResponseWriter, r *http.Request) {
	if h.Sources == nil {
		writeErrorBody(w, http.StatusNotFound, "NOT_FOUND", "Quote cache is disabled")
		return
	}
	symbol := chi.URLParam(r, "symbol")
	sources, err := h.Sources.Sources(r.Context(), symbol)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if len(sources) == 0 {
		writeErrorBody(w, http.StatusNotFound, "NOT_FOUND", "No cached quotes for "+symbol)
		return
	}
	out := make([]sourceResponse, len(sources))
	for i, s := range sources {
		out[i] = sourceResponse{
			Exchange:   s.Exchange,
			Bid:        formatAmount(s.Bid),
			Ask:        formatAmount(s.Ask),
			ReceivedAt: s.ReceivedAt,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// GetWallets returns the user's balances
func (h *Handler) GetWallets(w http.ResponseWriter, r *http.Request) {
	userID := userFromContext(r.Context())
	wallets, err := h.Wallets.Balances(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]walletResponse, len(wallets))
	for i, wl := range wallets {
		out[i] = walletResponse{Currency: wl.Currency, Balance: formatAmount(wl.Balance)}
	}
	writeJSON(w, http.StatusOK, out)
}

// Healthz pings storage
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.Health.Ping(ctx); err != nil {
		h.Logger.WithError(err).Warn("health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func intQuery(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
