package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/wagers/internal/apperrors"
	"github.com/nkiryanov/wagers/internal/models"
	"github.com/nkiryanov/wagers/internal/repository"
)

type BetRepo struct {
	DB DBTX
}

const betColumns = `id, created_at, wager_id, user_id, choice, stake`

const createBet = `-- name: CreateBet
INSERT INTO bets (id, created_at, wager_id, user_id, choice, stake)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + betColumns

func (r *BetRepo) CreateBet(ctx context.Context, bet models.Bet) (models.Bet, error) {
	if bet.ID == uuid.Nil {
		bet.ID = uuid.New()
	}
	if bet.CreatedAt.IsZero() {
		bet.CreatedAt = time.Now()
	}

	rows, _ := r.DB.Query(ctx, createBet, bet.ID, bet.CreatedAt, bet.WagerID, bet.UserID, bet.Choice, bet.Stake)
	created, err := pgx.CollectOneRow(rows, rowToBet)

	switch {
	case err == nil:
		return created, nil
	case isViolation(err, pgerrcode.ForeignKeyViolation, "bets_wager_id_fkey"):
		return created, apperrors.ErrWagerNotFound
	case isViolation(err, pgerrcode.ForeignKeyViolation, "bets_user_id_fkey"):
		return created, apperrors.ErrUserNotFound
	case isViolation(err, pgerrcode.CheckViolation, ""):
		return created, apperrors.ErrInvalidStake
	default:
		return created, dbError(err)
	}
}

const listBets = `-- name: ListBets
SELECT ` + betColumns + ` FROM bets
WHERE ($1::uuid IS NULL OR wager_id = $1)
	AND ($2::uuid IS NULL OR user_id = $2)
ORDER BY seq
`

func (r *BetRepo) ListBets(ctx context.Context, opts repository.ListBetsOpts) ([]models.Bet, error) {
	rows, _ := r.DB.Query(ctx, listBets, opts.WagerID, opts.UserID)
	bets, err := pgx.CollectRows(rows, rowToBet)
	if err != nil {
		return nil, dbError(err)
	}

	return bets, nil
}

const sumBets = `-- name: SumBets
SELECT
	COUNT(*) FILTER (WHERE choice = 'yes'),
	COUNT(*) FILTER (WHERE choice = 'no'),
	COALESCE(SUM(stake) FILTER (WHERE choice = 'yes'), 0),
	COALESCE(SUM(stake) FILTER (WHERE choice = 'no'), 0)
FROM bets b
WHERE b.wager_id = $1
	AND NOT EXISTS (SELECT 1 FROM transactions t WHERE t.bet_id = b.id AND t.type = 'refund')
`

func (r *BetRepo) SumBets(ctx context.Context, wagerID uuid.UUID) (repository.BetTotals, error) {
	rows, _ := r.DB.Query(ctx, sumBets, wagerID)
	totals, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (repository.BetTotals, error) {
		var t repository.BetTotals
		err := row.Scan(&t.YesCount, &t.NoCount, &t.YesStake, &t.NoStake)
		return t, err
	})

	switch {
	case err == nil:
		return totals, nil
	case errors.Is(err, pgx.ErrNoRows):
		return totals, nil
	default:
		return totals, dbError(err)
	}
}

func rowToBet(row pgx.CollectableRow) (models.Bet, error) {
	var b models.Bet
	err := row.Scan(&b.ID, &b.CreatedAt, &b.WagerID, &b.UserID, &b.Choice, &b.Stake)
	return b, err
}
