// Package feed fetches top-of-book quotes from external exchanges.
package feed

import (
	"context"
	"strings"
	"sync"

	"github.com/xtrntr/cryptotrade/internal/models"
)

// Feed returns the current best bid/ask per symbol. Fetch never fails:
// any transport or decoding error yields an empty (or partial) map.
type Feed interface {
	Name() string
	Fetch(ctx context.Context, symbols []string) map[string]models.Quote
}

func symbolSet(symbols []string) map[string]struct{} {
	set := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		set[strings.ToUpper(s)] = struct{}{}
	}
	return set
}

// Static serves fixed quotes; it backs offline runs and tests
type Static struct {
	name string

	mu     sync.RWMutex
	quotes map[string]models.Quote
}

// NewStatic creates a feed answering with quotes
func NewStatic(name string, quotes map[string]models.Quote) *Static {
	s := &Static{name: name}
	s.Set(quotes)
	return s
}

func (s *Static) Name() string { return s.name }

// Set replaces the served quotes; nil makes the feed behave as failed
func (s *Static) Set(quotes map[string]models.Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes = make(map[string]models.Quote, len(quotes))
	for k, v := range quotes {
		s.quotes[k] = v
	}
}

func (s *Static) Fetch(ctx context.Context, symbols []string) map[string]models.Quote {
	out := map[string]models.Quote{}
	if ctx.Err() != nil {
		return out
	}
	want := symbolSet(symbols)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for sym, q := range s.quotes {
		if _, ok := want[sym]; ok {
			out[sym] = q
		}
	}
	return out
}
