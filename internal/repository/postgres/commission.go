package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/wagers/internal/apperrors"
	"github.com/nkiryanov/wagers/internal/models"
	"github.com/nkiryanov/wagers/internal/repository"
)

type CommissionRepo struct {
	DB DBTX
}

const commissionColumns = `id, created_at, wager_id, recipient_id, amount, transferred_at`

const createCommission = `-- name: CreateCommission
INSERT INTO commissions (id, created_at, wager_id, recipient_id, amount)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + commissionColumns

// Only one commission per wager may exist
func (r *CommissionRepo) CreateCommission(ctx context.Context, c models.Commission) (models.Commission, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	rows, _ := r.DB.Query(ctx, createCommission, c.ID, c.CreatedAt, c.WagerID, c.RecipientID, c.Amount)
	created, err := pgx.CollectOneRow(rows, rowToCommission)

	switch {
	case err == nil:
		return created, nil
	case isViolation(err, pgerrcode.UniqueViolation, "commissions_wager_id_key"):
		return created, apperrors.ErrWagerClosed
	case isViolation(err, pgerrcode.ForeignKeyViolation, "commissions_wager_id_fkey"):
		return created, apperrors.ErrWagerNotFound
	case isViolation(err, pgerrcode.ForeignKeyViolation, "commissions_recipient_id_fkey"):
		return created, apperrors.ErrUserNotFound
	default:
		return created, dbError(err)
	}
}

const listCommissions = `-- name: ListCommissions
SELECT ` + commissionColumns + ` FROM commissions
WHERE ($1::uuid IS NULL OR recipient_id = $1)
	AND ($2::boolean IS NULL OR (transferred_at IS NOT NULL) = $2)
ORDER BY created_at, id
`

func (r *CommissionRepo) ListCommissions(ctx context.Context, opts repository.ListCommissionsOpts) ([]models.Commission, error) {
	rows, _ := r.DB.Query(ctx, listCommissions, opts.RecipientID, opts.Transferred)
	commissions, err := pgx.CollectRows(rows, rowToCommission)
	if err != nil {
		return nil, dbError(err)
	}

	return commissions, nil
}

const markTransferred = `-- name: MarkTransferred
UPDATE commissions SET transferred_at = $2
WHERE id = ANY($1) AND transferred_at IS NULL
`

// Mark not yet transferred commissions. Return count of marked ones.
func (r *CommissionRepo) MarkTransferred(ctx context.Context, ids []uuid.UUID, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tag, err := r.DB.Exec(ctx, markTransferred, ids, at)
	if err != nil {
		return 0, dbError(err)
	}

	return tag.RowsAffected(), nil
}

func rowToCommission(row pgx.CollectableRow) (models.Commission, error) {
	var c models.Commission
	err := row.Scan(&c.ID, &c.CreatedAt, &c.WagerID, &c.RecipientID, &c.Amount, &c.TransferredAt)
	return c, err
}
