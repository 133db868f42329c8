// Package ledger moves funds between user wallets with optimistic locking.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/xtrntr/cryptotrade/internal/apperr"
	"github.com/xtrntr/cryptotrade/internal/models"
	"github.com/xtrntr/cryptotrade/internal/store"
)

// Ledger applies debits and credits to wallets.
// Writes take the caller's querier so they join the caller's transaction.
type Ledger struct {
	store    store.Querier
	attempts int
	logger   logrus.FieldLogger
}

// New creates a ledger; attempts bounds the re-reads after a version conflict
func New(st store.Querier, attempts int, logger logrus.FieldLogger) *Ledger {
	if attempts < 1 {
		attempts = 1
	}
	return &Ledger{store: st, attempts: attempts, logger: logger.WithField("component", "ledger")}
}

// Debit subtracts amount from the user's wallet in currency
func (l *Ledger) Debit(ctx context.Context, q store.Querier, userID int64, currency string, amount decimal.Decimal) (*models.Wallet, error) {
	return l.apply(ctx, q, userID, currency, amount, true)
}

// Credit adds amount to the user's wallet in currency
func (l *Ledger) Credit(ctx context.Context, q store.Querier, userID int64, currency string, amount decimal.Decimal) (*models.Wallet, error) {
	return l.apply(ctx, q, userID, currency, amount, false)
}

func (l *Ledger) apply(ctx context.Context, q store.Querier, userID int64, currency string, amount decimal.Decimal, debit bool) (*models.Wallet, error) {
	if amount.IsNegative() {
		return nil, apperr.New(apperr.Validation, "Amount must not be negative")
	}

	for attempt := 1; attempt <= l.attempts; attempt++ {
		w, err := q.GetWallet(ctx, userID, currency)
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.New(apperr.WalletNotFound, "Wallet not found for currency: %s", currency)
		}
		if err != nil {
			return nil, classify(err, "failed to load wallet")
		}

		balance := w.Balance.Add(amount)
		if debit {
			if w.Balance.LessThan(amount) {
				return nil, apperr.New(apperr.InsufficientBalance, "Insufficient %s balance", currency)
			}
			balance = w.Balance.Sub(amount)
		}

		updated, err := q.UpdateWalletBalance(ctx, w.ID, balance, w.Version)
		switch {
		case err == nil:
			return updated, nil
		case errors.Is(err, store.ErrVersionConflict):
			l.logger.WithFields(logrus.Fields{
				"user_id":  userID,
				"currency": currency,
				"attempt":  attempt,
			}).Debug("wallet version conflict, re-reading")
			continue
		case errors.Is(err, store.ErrNegativeBalance):
			return nil, apperr.Wrap(apperr.InsufficientBalance, err, "Insufficient %s balance", currency)
		default:
			return nil, classify(err, "failed to update wallet")
		}
	}

	return nil, apperr.New(apperr.TransientConflict, "Wallet %s was modified concurrently, please retry", currency)
}

func classify(err error, msg string) error {
	if errors.Is(err, store.ErrTransient) {
		return apperr.Wrap(apperr.TransientConflict, err, "Wallet update conflicted, please retry")
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Balance returns one wallet of the user
func (l *Ledger) Balance(ctx context.Context, userID int64, currency string) (*models.Wallet, error) {
	w, err := l.store.GetWallet(ctx, userID, currency)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.New(apperr.WalletNotFound, "Wallet not found for currency: %s", currency)
	}
	return w, err
}

// Balances returns every wallet of the user
func (l *Ledger) Balances(ctx context.Context, userID int64) ([]models.Wallet, error) {
	return l.store.ListWallets(ctx, userID)
}
