package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/wagers/internal/apperrors"
	"github.com/nkiryanov/wagers/internal/models"
	"github.com/nkiryanov/wagers/internal/repository"
)

type BalanceRepo struct {
	DB DBTX
}

func (r *BalanceRepo) CreateBalance(ctx context.Context, userID uuid.UUID) error {
	const createBalance = `
	INSERT INTO balances (user_id, current, withdrawn)
	VALUES ($1, 0, 0)
	`

	_, err := r.DB.Exec(ctx, createBalance, userID)

	switch {
	case err == nil:
		return nil
	case isViolation(err, pgerrcode.UniqueViolation, ""):
		return fmt.Errorf("user balance already exists: %w", err)
	case isViolation(err, pgerrcode.ForeignKeyViolation, ""):
		return apperrors.ErrUserNotFound
	default:
		return dbError(err)
	}
}

func (r *BalanceRepo) GetBalance(ctx context.Context, userID uuid.UUID, lock bool) (models.Balance, error) {
	const getBalanceByUserID = `
	SELECT id, user_id, current, withdrawn FROM balances
	WHERE user_id = $1
	`

	query := getBalanceByUserID
	if lock {
		query += " FOR UPDATE"
	}

	rows, _ := r.DB.Query(ctx, query, userID)
	return r.collectBalance(rows)
}

// Balance changes are single conditional statements
// so concurrent debits can never drive the balance below zero
const (
	creditBalance = `
	UPDATE balances SET current = current + $2
	WHERE user_id = $1
	RETURNING id, user_id, current, withdrawn
	`
	debitBalance = `
	UPDATE balances SET current = current - $2
	WHERE user_id = $1 AND current >= $2
	RETURNING id, user_id, current, withdrawn
	`
	withdrawBalance = `
	UPDATE balances SET current = current - $2, withdrawn = withdrawn + $2
	WHERE user_id = $1 AND current >= $2
	RETURNING id, user_id, current, withdrawn
	`
)

func (r *BalanceRepo) Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (models.Balance, error) {
	if !amount.IsPositive() {
		return models.Balance{}, apperrors.ErrInvalidAmount
	}

	rows, _ := r.DB.Query(ctx, creditBalance, userID, amount)
	return r.collectBalance(rows)
}

func (r *BalanceRepo) Debit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (models.Balance, error) {
	return r.decrease(ctx, debitBalance, userID, amount)
}

func (r *BalanceRepo) Withdraw(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (models.Balance, error) {
	return r.decrease(ctx, withdrawBalance, userID, amount)
}

func (r *BalanceRepo) decrease(ctx context.Context, query string, userID uuid.UUID, amount decimal.Decimal) (models.Balance, error) {
	if !amount.IsPositive() {
		return models.Balance{}, apperrors.ErrInvalidAmount
	}

	rows, _ := r.DB.Query(ctx, query, userID, amount)
	balance, err := r.collectBalance(rows)

	if !errors.Is(err, apperrors.ErrUserNotFound) {
		return balance, err
	}

	// Nothing updated: either no balance or not enough money on it
	_, err = r.GetBalance(ctx, userID, false)
	if err != nil {
		return balance, err
	}
	return balance, apperrors.ErrInsufficientFunds
}

func (r *BalanceRepo) collectBalance(rows pgx.Rows) (models.Balance, error) {
	balance, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (models.Balance, error) {
		var b models.Balance
		err := row.Scan(&b.ID, &b.UserID, &b.Current, &b.Withdrawn)
		return b, err
	})

	switch {
	case err == nil:
		return balance, nil
	case errors.Is(err, pgx.ErrNoRows):
		return balance, apperrors.ErrUserNotFound
	case isViolation(err, pgerrcode.CheckViolation, ""):
		return balance, apperrors.ErrInsufficientFunds
	case isViolation(err, pgerrcode.NumericValueOutOfRange, ""):
		// Balance would not fit into its column
		return balance, apperrors.ErrInvalidAmount
	default:
		return balance, dbError(err)
	}
}

const transactionColumns = `id, processed_at, user_id, type, amount, status, wager_id, bet_id, external_ref`

const createTransaction = `-- name: CreateTransaction
INSERT INTO transactions (id, processed_at, user_id, type, amount, status, wager_id, bet_id, external_ref)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + transactionColumns

func (r *BalanceRepo) CreateTransaction(ctx context.Context, t models.Transaction) (models.Transaction, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.ProcessedAt.IsZero() {
		t.ProcessedAt = time.Now()
	}
	if t.Status == "" {
		t.Status = models.TransactionStatusCompleted
	}

	rows, _ := r.DB.Query(ctx, createTransaction,
		t.ID, t.ProcessedAt, t.UserID, t.Type, t.Amount, t.Status, t.WagerID, t.BetID, t.ExternalRef,
	)
	created, err := pgx.CollectOneRow(rows, rowToTransaction)

	switch {
	case err == nil:
		return created, nil
	case isViolation(err, pgerrcode.UniqueViolation, "transactions_external_ref_key"):
		return created, apperrors.ErrAlreadyApplied
	case isViolation(err, pgerrcode.UniqueViolation, "transactions_bet_settlement_key"):
		return created, apperrors.ErrTransactionExists
	case isViolation(err, pgerrcode.ForeignKeyViolation, "transactions_user_id_fkey"):
		return created, apperrors.ErrUserNotFound
	default:
		return created, dbError(err)
	}
}

const getTransactionByExternalRef = `-- name: GetTransactionByExternalRef
SELECT ` + transactionColumns + ` FROM transactions
WHERE external_ref = $1
`

func (r *BalanceRepo) GetTransactionByExternalRef(ctx context.Context, ref string) (models.Transaction, error) {
	rows, _ := r.DB.Query(ctx, getTransactionByExternalRef, ref)
	t, err := pgx.CollectOneRow(rows, rowToTransaction)

	switch {
	case err == nil:
		return t, nil
	case errors.Is(err, pgx.ErrNoRows):
		return t, apperrors.ErrTransactionNotFound
	default:
		return t, dbError(err)
	}
}

const listTransactions = `-- name: ListTransactions
SELECT ` + transactionColumns + ` FROM transactions
WHERE user_id = $1 AND ($2::text[] IS NULL OR type = ANY($2))
ORDER BY processed_at DESC, seq DESC
`

func (r *BalanceRepo) ListTransactions(ctx context.Context, userID uuid.UUID, types []string) ([]models.Transaction, error) {
	if len(types) == 0 {
		types = nil
	}

	rows, _ := r.DB.Query(ctx, listTransactions, userID, types)
	transactions, err := pgx.CollectRows(rows, rowToTransaction)
	if err != nil {
		return nil, dbError(err)
	}

	return transactions, nil
}

const listBalanceDrift = `-- name: ListBalanceDrift
SELECT b.user_id, b.current, COALESCE(SUM(t.amount), 0)
FROM balances b
LEFT JOIN transactions t ON t.user_id = b.user_id
GROUP BY b.user_id, b.current
HAVING b.current <> COALESCE(SUM(t.amount), 0)
`

// List balances which differ from the sum of the user's ledger
func (r *BalanceRepo) ListBalanceDrift(ctx context.Context) ([]repository.BalanceDrift, error) {
	rows, _ := r.DB.Query(ctx, listBalanceDrift)
	drift, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (repository.BalanceDrift, error) {
		var d repository.BalanceDrift
		err := row.Scan(&d.UserID, &d.Current, &d.Computed)
		return d, err
	})
	if err != nil {
		return nil, dbError(err)
	}

	return drift, nil
}

func rowToTransaction(row pgx.CollectableRow) (models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.ProcessedAt, &t.UserID, &t.Type, &t.Amount, &t.Status, &t.WagerID, &t.BetID, &t.ExternalRef)
	return t, err
}
