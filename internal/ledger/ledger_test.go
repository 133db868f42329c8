package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xtrntr/cryptotrade/internal/apperr"
	"github.com/xtrntr/cryptotrade/internal/logger"
	"github.com/xtrntr/cryptotrade/internal/models"
	"github.com/xtrntr/cryptotrade/internal/store"
	"github.com/xtrntr/cryptotrade/internal/store/memstore"
)

func setup(t *testing.T) (*memstore.Store, *Ledger) {
	t.Helper()
	st := memstore.New()
	require.NoError(t, st.Seed(1, map[string]decimal.Decimal{
		"USDT": decimal.NewFromInt(1000),
		"BTC":  decimal.Zero,
	}))
	return st, New(st, 3, logger.Discard())
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// conflicting fails the first n balance updates with a version conflict
type conflicting struct {
	store.Querier
	mu sync.Mutex
	n  int
}

func (c *conflicting) UpdateWalletBalance(ctx context.Context, id int64, bal decimal.Decimal, v int64) (*models.Wallet, error) {
	c.mu.Lock()
	if c.n > 0 {
		c.n--
		c.mu.Unlock()
		return nil, store.ErrVersionConflict
	}
	c.mu.Unlock()
	return c.Querier.UpdateWalletBalance(ctx, id, bal, v)
}

type transient struct{ store.Querier }

func (transient) UpdateWalletBalance(context.Context, int64, decimal.Decimal, int64) (*models.Wallet, error) {
	return nil, store.ErrTransient
}

func TestLedger_DebitCredit(t *testing.T) {
	st, l := setup(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		debit      bool
		currency   string
		amount     string
		expectKind *apperr.Kind
		expectBal  string
	}{
		{name: "Debit", debit: true, currency: "USDT", amount: "250.12345678", expectBal: "749.87654322"},
		{name: "Credit", currency: "BTC", amount: "0.5", expectBal: "0.50000000"},
		{name: "DebitWholeBalance", debit: true, currency: "BTC", amount: "0.5", expectBal: "0.00000000"},
		{name: "Insufficient", debit: true, currency: "USDT", amount: "749.87654323", expectKind: kind(apperr.InsufficientBalance)},
		{name: "Negative", currency: "USDT", amount: "-1", expectKind: kind(apperr.Validation)},
		{name: "MissingWallet", currency: "ETH", amount: "1", expectKind: kind(apperr.WalletNotFound)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var w *models.Wallet
			var err error
			if tt.debit {
				w, err = l.Debit(ctx, st, 1, tt.currency, d(tt.amount))
			} else {
				w, err = l.Credit(ctx, st, 1, tt.currency, d(tt.amount))
			}
			if tt.expectKind != nil {
				assert.Equal(t, *tt.expectKind, apperr.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectBal, w.Balance.StringFixed(8))
		})
	}

	usdt, err := l.Balance(ctx, 1, "USDT")
	require.NoError(t, err)
	assert.Equal(t, "749.87654322", usdt.Balance.StringFixed(8))
}

func kind(k apperr.Kind) *apperr.Kind { return &k }

func TestLedger_RetriesVersionConflict(t *testing.T) {
	st, l := setup(t)
	q := &conflicting{Querier: st, n: 2}

	w, err := l.Debit(context.Background(), q, 1, "USDT", d("100"))
	require.NoError(t, err)
	assert.Equal(t, "900", w.Balance.String())
	assert.Equal(t, int64(1), w.Version)
}

func TestLedger_ConflictExhausted(t *testing.T) {
	st, l := setup(t)
	q := &conflicting{Querier: st, n: 3}

	_, err := l.Debit(context.Background(), q, 1, "USDT", d("100"))
	assert.Equal(t, apperr.TransientConflict, apperr.KindOf(err))

	w, err := l.Balance(context.Background(), 1, "USDT")
	require.NoError(t, err)
	assert.Equal(t, "1000", w.Balance.String())
}

func TestLedger_TransientStorageError(t *testing.T) {
	st, l := setup(t)
	_, err := l.Credit(context.Background(), transient{st}, 1, "USDT", d("1"))
	assert.Equal(t, apperr.TransientConflict, apperr.KindOf(err))
}

func TestLedger_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	st, l := setup(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := st.InTx(ctx, func(q store.Querier) error {
				_, err := l.Debit(ctx, q, 1, "USDT", d("100"))
				return err
			})
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, ok)
	w, err := l.Balance(ctx, 1, "USDT")
	require.NoError(t, err)
	assert.True(t, w.Balance.IsZero())
}

func TestLedger_Balances(t *testing.T) {
	_, l := setup(t)
	ws, err := l.Balances(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, ws, 2)
	assert.Equal(t, "BTC", ws[0].Currency)
	assert.Equal(t, "USDT", ws[1].Currency)

	_, err = l.Balance(context.Background(), 1, "ETH")
	assert.Equal(t, apperr.WalletNotFound, apperr.KindOf(err))
}
