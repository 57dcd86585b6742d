package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/wagers/internal/apperrors"
	"github.com/nkiryanov/wagers/internal/models"
	"github.com/nkiryanov/wagers/internal/repository"
)

// Entry describes why the balance changed. It becomes the audit transaction.
type Entry struct {
	Type        string
	WagerID     *uuid.UUID
	BetID       *uuid.UUID
	ExternalRef *string
}

// Ledger changes user balances and appends the audit transaction in the same db transaction.
// Called on a transaction bound storage it joins the caller's unit of work.
type Ledger struct {
	storage repository.Storage
}

func New(storage repository.Storage) *Ledger {
	return &Ledger{storage: storage}
}

// Amounts are kept in minor units (cents)
const minorUnitsExp = 2

// IsMinorUnits reports whether amount has no fraction smaller than a cent
func IsMinorUnits(amount decimal.Decimal) bool {
	return amount.Equal(amount.Truncate(minorUnitsExp))
}

// Credit increases the balance by amount
func (l *Ledger) Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, entry Entry) (models.Transaction, error) {
	if !amount.IsPositive() || !IsMinorUnits(amount) {
		return models.Transaction{}, apperrors.ErrInvalidAmount
	}

	var transaction models.Transaction

	err := l.storage.InTx(ctx, func(s repository.Storage) error {
		if _, err := s.Balance().Credit(ctx, userID, amount); err != nil {
			return err
		}

		var err error
		transaction, err = s.Balance().CreateTransaction(ctx, entry.transaction(userID, amount))
		return err
	})
	if err != nil {
		return transaction, fmt.Errorf("credit %s: %w", entry.Type, err)
	}

	return transaction, nil
}

// Debit decreases the balance by amount. Never drives the balance below zero.
// Withdraw entries also increase the withdrawn total.
func (l *Ledger) Debit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, entry Entry) (models.Transaction, error) {
	if !amount.IsPositive() || !IsMinorUnits(amount) {
		return models.Transaction{}, apperrors.ErrInvalidAmount
	}

	var transaction models.Transaction

	err := l.storage.InTx(ctx, func(s repository.Storage) error {
		var err error
		if entry.Type == models.TransactionTypeWithdraw {
			_, err = s.Balance().Withdraw(ctx, userID, amount)
		} else {
			_, err = s.Balance().Debit(ctx, userID, amount)
		}
		if err != nil {
			return err
		}

		transaction, err = s.Balance().CreateTransaction(ctx, entry.transaction(userID, amount.Neg()))
		return err
	})
	if err != nil {
		return transaction, fmt.Errorf("debit %s: %w", entry.Type, err)
	}

	return transaction, nil
}

// Record appends zero amount transaction. The balance is unchanged.
func (l *Ledger) Record(ctx context.Context, userID uuid.UUID, entry Entry) (models.Transaction, error) {
	transaction, err := l.storage.Balance().CreateTransaction(ctx, entry.transaction(userID, decimal.Zero))
	if err != nil {
		return transaction, fmt.Errorf("record %s: %w", entry.Type, err)
	}

	return transaction, nil
}

func (e Entry) transaction(userID uuid.UUID, amount decimal.Decimal) models.Transaction {
	return models.Transaction{
		UserID:      userID,
		Type:        e.Type,
		Amount:      amount,
		WagerID:     e.WagerID,
		BetID:       e.BetID,
		ExternalRef: e.ExternalRef,
	}
}
