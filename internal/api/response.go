package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xtrntr/cryptotrade/internal/apperr"
	"github.com/xtrntr/cryptotrade/internal/models"
)

type tradeResponse struct {
	ID        int64     `json:"id"`
	Symbol    string    `json:"symbol"`
	Side      string    `json:"side"`
	Price     string    `json:"price"`
	Quantity  string    `json:"quantity"`
	Cost      string    `json:"cost"`
	CreatedAt time.Time `json:"created_at"`
}

type executionResponse struct {
	Trade    tradeResponse     `json:"trade"`
	Balances map[string]string `json:"balances"`
}

type pageResponse[T any] struct {
	Data       []T `json:"data"`
	TotalCount int `json:"total_count"`
	PageNumber int `json:"page_number"`
	PageSize   int `json:"page_size"`
}

type priceResponse struct {
	Symbol        string    `json:"symbol"`
	BidPrice      string    `json:"bid_price"`
	BidExchange   string    `json:"bid_exchange"`
	AskPrice      string    `json:"ask_price"`
	AskExchange   string    `json:"ask_exchange"`
	LastCheckedAt time.Time `json:"last_checked_at"`
	LastChangedAt time.Time `json:"last_changed_at"`
	Version       int64     `json:"version"`
}

type sourceResponse struct {
	Exchange   string    `json:"exchange"`
	Bid        string    `json:"bid"`
	Ask        string    `json:"ask"`
	ReceivedAt time.Time `json:"received_at"`
}

type walletResponse struct {
	Currency string `json:"currency"`
	Balance  string `json:"balance"`
}

type errorResponse struct {
	Error     string    `json:"error"`
	Code      string    `json:"code"`
	Status    int       `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func formatAmount(d decimal.Decimal) string { return models.FormatAmount(d) }

func newTradeResponse(t models.Trade) tradeResponse {
	return tradeResponse{
		ID:        t.ID,
		Symbol:    t.Symbol,
		Side:      string(t.Side),
		Price:     formatAmount(t.Price),
		Quantity:  formatAmount(t.Quantity),
		Cost:      formatAmount(t.Cost),
		CreatedAt: t.CreatedAt,
	}
}

func newPriceResponse(p models.AggregatedPrice) priceResponse {
	return priceResponse{
		Symbol:        p.Symbol,
		BidPrice:      formatAmount(p.BidPrice),
		BidExchange:   p.BidExchange,
		AskPrice:      formatAmount(p.AskPrice),
		AskExchange:   p.AskExchange,
		LastCheckedAt: p.LastCheckedAt,
		LastChangedAt: p.LastChangedAt,
		Version:       p.Version,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorBody(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code, Status: status, Timestamp: time.Now().UTC()})
}

// writeError maps err onto its status; unexpected errors are logged and hidden
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.Internal {
		h.Logger.WithError(err).WithField("path", r.URL.Path).Error("request failed")
	}
	writeErrorBody(w, kind.HTTPStatus(), kind.Code(), apperr.Message(err))
}
