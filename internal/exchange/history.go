package exchange

import (
	"context"
	"fmt"
	"math"

	"github.com/xtrntr/cryptotrade/internal/apperr"
	"github.com/xtrntr/cryptotrade/internal/models"
	"github.com/xtrntr/cryptotrade/internal/store"
)

// History reads a user's executed trades
type History struct {
	store           store.Querier
	defaultPageSize int
}

// NewHistory creates a history reader; pageSize applies when a caller passes 0
func NewHistory(st store.Querier, defaultPageSize int) *History {
	if defaultPageSize <= 0 {
		defaultPageSize = 10000
	}
	return &History{store: st, defaultPageSize: defaultPageSize}
}

// List returns one zero-based page of the user's trades, newest first
func (h *History) List(ctx context.Context, userID int64, page, pageSize int) (*models.Page[models.Trade], error) {
	if page < 0 {
		return nil, apperr.New(apperr.Validation, "Page must not be negative")
	}
	if pageSize < 0 {
		return nil, apperr.New(apperr.Validation, "Page size must not be negative")
	}
	if pageSize == 0 {
		pageSize = h.defaultPageSize
	}
	if page > math.MaxInt/pageSize {
		return nil, apperr.New(apperr.Validation, "Page is out of range")
	}

	trades, total, err := h.store.ListTrades(ctx, userID, pageSize, page*pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	return &models.Page[models.Trade]{
		Data:       trades,
		TotalCount: total,
		PageNumber: page,
		PageSize:   pageSize,
	}, nil
}
