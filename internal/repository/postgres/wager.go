package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/wagers/internal/apperrors"
	"github.com/nkiryanov/wagers/internal/models"
	"github.com/nkiryanov/wagers/internal/repository"
)

const defaultListLimit = 100

type WagerRepo struct {
	DB DBTX
}

const wagerColumns = `id, created_at, created_by, title, description, category, tags, deadline,
	stake_type, fixed_stake, min_stake, max_stake,
	status, result, resolved_at, resolved_by,
	participant_count, yes_count, no_count, total_yes_stake, total_no_stake, total_pool`

const createWager = `-- name: CreateWager
INSERT INTO wagers (id, created_at, created_by, title, description, category, tags, deadline,
	stake_type, fixed_stake, min_stake, max_stake)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING ` + wagerColumns

func (r *WagerRepo) CreateWager(ctx context.Context, w models.Wager) (models.Wager, error) {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now()
	}
	if w.Tags == nil {
		w.Tags = []string{}
	}

	rows, _ := r.DB.Query(ctx, createWager,
		w.ID, w.CreatedAt, w.CreatedBy, w.Title, w.Description, w.Category, w.Tags, w.Deadline,
		w.StakeType, w.FixedStake, w.MinStake, w.MaxStake,
	)

	return r.collectWager(rows)
}

func (r *WagerRepo) GetWager(ctx context.Context, id uuid.UUID, lock bool) (models.Wager, error) {
	query := `SELECT ` + wagerColumns + ` FROM wagers WHERE id = $1`
	if lock {
		query += " FOR UPDATE"
	}

	rows, _ := r.DB.Query(ctx, query, id)
	return r.collectWager(rows)
}

const listWagers = `-- name: ListWagers
SELECT ` + wagerColumns + ` FROM wagers
WHERE ($1::text[] IS NULL OR status = ANY($1))
	AND ($2 = '' OR category = $2)
	AND ($3::uuid IS NULL OR created_by = $3)
ORDER BY created_at DESC, id
LIMIT $4 OFFSET $5
`

func (r *WagerRepo) ListWagers(ctx context.Context, opts repository.ListWagersOpts) ([]models.Wager, error) {
	statuses := opts.Statuses
	if len(statuses) == 0 {
		statuses = nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, _ := r.DB.Query(ctx, listWagers, statuses, opts.Category, opts.CreatedBy, limit, max(opts.Offset, 0))
	wagers, err := pgx.CollectRows(rows, rowToWager)
	if err != nil {
		return nil, dbError(err)
	}

	return wagers, nil
}

const updateWager = `-- name: UpdateWager
UPDATE wagers SET
	title = COALESCE($2, title),
	description = COALESCE($3, description),
	tags = COALESCE($4, tags)
WHERE id = $1 AND status = 'active'
RETURNING ` + wagerColumns

func (r *WagerRepo) UpdateWager(ctx context.Context, id uuid.UUID, params repository.UpdateWagerParams) (models.Wager, error) {
	rows, _ := r.DB.Query(ctx, updateWager, id, params.Title, params.Description, params.Tags)
	wager, err := r.collectWager(rows)
	if errors.Is(err, apperrors.ErrWagerNotFound) {
		return wager, r.closedOrMissing(ctx, id)
	}

	return wager, err
}

const deleteWager = `-- name: DeleteWager
DELETE FROM wagers
WHERE id = $1 AND participant_count = 0
`

func (r *WagerRepo) DeleteWager(ctx context.Context, id uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, deleteWager, id)
	if err != nil {
		return dbError(err)
	}

	if tag.RowsAffected() == 1 {
		return nil
	}

	_, err = r.GetWager(ctx, id, false)
	if err != nil {
		return err
	}
	return apperrors.ErrWagerHasBets
}

const (
	addYesStake = `-- name: AddYesStake
	UPDATE wagers SET
		participant_count = participant_count + 1,
		yes_count = yes_count + 1,
		total_yes_stake = total_yes_stake + $2
	WHERE id = $1 AND status = 'active'
	RETURNING ` + wagerColumns

	addNoStake = `-- name: AddNoStake
	UPDATE wagers SET
		participant_count = participant_count + 1,
		no_count = no_count + 1,
		total_no_stake = total_no_stake + $2
	WHERE id = $1 AND status = 'active'
	RETURNING ` + wagerColumns
)

func (r *WagerRepo) AddYesStake(ctx context.Context, id uuid.UUID, stake decimal.Decimal) (models.Wager, error) {
	return r.addStake(ctx, addYesStake, id, stake)
}

func (r *WagerRepo) AddNoStake(ctx context.Context, id uuid.UUID, stake decimal.Decimal) (models.Wager, error) {
	return r.addStake(ctx, addNoStake, id, stake)
}

func (r *WagerRepo) addStake(ctx context.Context, query string, id uuid.UUID, stake decimal.Decimal) (models.Wager, error) {
	if !stake.IsPositive() {
		return models.Wager{}, apperrors.ErrInvalidStake
	}

	rows, _ := r.DB.Query(ctx, query, id, stake)
	wager, err := r.collectWager(rows)
	if errors.Is(err, apperrors.ErrWagerNotFound) {
		return wager, r.closedOrMissing(ctx, id)
	}

	return wager, err
}

const (
	refundYesStake = `-- name: RefundYesStake
	UPDATE wagers SET
		participant_count = participant_count - 1,
		yes_count = yes_count - 1,
		total_yes_stake = total_yes_stake - $2
	WHERE id = $1 AND status = 'cancelled' AND yes_count > 0 AND total_yes_stake >= $2
	RETURNING ` + wagerColumns

	refundNoStake = `-- name: RefundNoStake
	UPDATE wagers SET
		participant_count = participant_count - 1,
		no_count = no_count - 1,
		total_no_stake = total_no_stake - $2
	WHERE id = $1 AND status = 'cancelled' AND no_count > 0 AND total_no_stake >= $2
	RETURNING ` + wagerColumns
)

func (r *WagerRepo) RefundYesStake(ctx context.Context, id uuid.UUID, stake decimal.Decimal) (models.Wager, error) {
	return r.refundStake(ctx, refundYesStake, id, stake)
}

func (r *WagerRepo) RefundNoStake(ctx context.Context, id uuid.UUID, stake decimal.Decimal) (models.Wager, error) {
	return r.refundStake(ctx, refundNoStake, id, stake)
}

func (r *WagerRepo) refundStake(ctx context.Context, query string, id uuid.UUID, stake decimal.Decimal) (models.Wager, error) {
	if !stake.IsPositive() {
		return models.Wager{}, apperrors.ErrInvalidStake
	}

	rows, _ := r.DB.Query(ctx, query, id, stake)
	wager, err := r.collectWager(rows)
	if !errors.Is(err, apperrors.ErrWagerNotFound) {
		return wager, err
	}

	current, err := r.GetWager(ctx, id, false)
	switch {
	case err != nil:
		return current, err
	case current.Status != models.WagerStatusCancelled:
		return current, apperrors.ErrWagerClosed
	default:
		return current, apperrors.ErrInvalidStake
	}
}

const setResult = `-- name: SetResult
UPDATE wagers SET status = $2, result = $3, resolved_by = $4, resolved_at = $5
WHERE id = $1 AND status = 'active'
RETURNING ` + wagerColumns

func (r *WagerRepo) SetResult(ctx context.Context, id uuid.UUID, params repository.SetResultParams) (models.Wager, error) {
	rows, _ := r.DB.Query(ctx, setResult, id, params.Status, params.Result, params.ResolvedBy, params.ResolvedAt)
	wager, err := r.collectWager(rows)
	if errors.Is(err, apperrors.ErrWagerNotFound) {
		return wager, r.closedOrMissing(ctx, id)
	}

	return wager, err
}

// Conditional update matched nothing: tell apart a missing wager from a closed one
func (r *WagerRepo) closedOrMissing(ctx context.Context, id uuid.UUID) error {
	_, err := r.GetWager(ctx, id, false)
	if err != nil {
		return err
	}
	return apperrors.ErrWagerClosed
}

func (r *WagerRepo) collectWager(rows pgx.Rows) (models.Wager, error) {
	wager, err := pgx.CollectOneRow(rows, rowToWager)

	switch {
	case err == nil:
		return wager, nil
	case errors.Is(err, pgx.ErrNoRows):
		return wager, apperrors.ErrWagerNotFound
	default:
		return wager, dbError(err)
	}
}

func rowToWager(row pgx.CollectableRow) (models.Wager, error) {
	var w models.Wager
	err := row.Scan(
		&w.ID, &w.CreatedAt, &w.CreatedBy, &w.Title, &w.Description, &w.Category, &w.Tags, &w.Deadline,
		&w.StakeType, &w.FixedStake, &w.MinStake, &w.MaxStake,
		&w.Status, &w.Result, &w.ResolvedAt, &w.ResolvedBy,
		&w.ParticipantCount, &w.YesCount, &w.NoCount, &w.TotalYesStake, &w.TotalNoStake, &w.TotalPool,
	)
	return w, err
}
