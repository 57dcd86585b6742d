package wager

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/wagers/internal/apperrors"
	"github.com/nkiryanov/wagers/internal/logger"
	"github.com/nkiryanov/wagers/internal/models"
	"github.com/nkiryanov/wagers/internal/repository"
	"github.com/nkiryanov/wagers/internal/service/ledger"
)

type CreateWagerParams struct {
	Title       string
	Description string
	Category    string
	Tags        []string
	Deadline    time.Time

	StakeType  string // models.StakeTypeFixed if empty
	FixedStake *decimal.Decimal
	MinStake   *decimal.Decimal
	MaxStake   *decimal.Decimal
}

type UpdateWagerParams = repository.UpdateWagerParams

type ListWagersOpts = repository.ListWagersOpts

type WagerService struct {
	storage repository.Storage
	logger  logger.Logger
	now     func() time.Time
}

func NewService(storage repository.Storage, l logger.Logger) *WagerService {
	return &WagerService{
		storage: storage,
		logger:  l,
		now:     time.Now,
	}
}

func (s *WagerService) CreateWager(ctx context.Context, creator models.User, params CreateWagerParams) (models.Wager, error) {
	if params.StakeType == "" {
		params.StakeType = models.StakeTypeFixed
	}

	if err := s.validate(params); err != nil {
		return models.Wager{}, fmt.Errorf("create wager: %w", err)
	}

	w := models.Wager{
		CreatedBy:   creator.ID,
		Title:       strings.TrimSpace(params.Title),
		Description: params.Description,
		Category:    params.Category,
		Tags:        params.Tags,
		Deadline:    params.Deadline,
		StakeType:   params.StakeType,
	}
	if params.StakeType == models.StakeTypeFixed {
		w.FixedStake = params.FixedStake
	} else {
		w.MinStake, w.MaxStake = params.MinStake, params.MaxStake
	}

	created, err := s.storage.Wager().CreateWager(ctx, w)
	if err != nil {
		return created, fmt.Errorf("create wager: %w", err)
	}

	s.logger.Info("Wager created", "wager_id", created.ID, "created_by", creator.ID, "stake_type", created.StakeType)
	return created, nil
}

func (s *WagerService) validate(params CreateWagerParams) error {
	invalid := func(msg string) error {
		return fmt.Errorf("%w: %s", apperrors.ErrWagerInvalid, msg)
	}
	validStake := func(stake *decimal.Decimal) bool {
		return stake != nil && stake.IsPositive() && ledger.IsMinorUnits(*stake)
	}

	switch {
	case strings.TrimSpace(params.Title) == "":
		return invalid("title is required")
	case !models.ValidCategory(params.Category):
		return invalid(fmt.Sprintf("unknown category %q", params.Category))
	case !params.Deadline.After(s.now()):
		return invalid("deadline must be in the future")
	}

	switch params.StakeType {
	case models.StakeTypeFixed:
		if !validStake(params.FixedStake) {
			return invalid("fixed stake must be a positive amount")
		}
	case models.StakeTypeOpen:
		if !validStake(params.MinStake) || !validStake(params.MaxStake) {
			return invalid("min and max stakes must be positive amounts")
		}
		if !params.MinStake.LessThan(*params.MaxStake) {
			return invalid("min stake must be less than max stake")
		}
	default:
		return invalid(fmt.Sprintf("unknown stake type %q", params.StakeType))
	}

	return nil
}

func (s *WagerService) GetWager(ctx context.Context, id uuid.UUID) (models.Wager, error) {
	return s.storage.Wager().GetWager(ctx, id, false)
}

// List wagers newest first. Only active ones if no status requested.
func (s *WagerService) ListWagers(ctx context.Context, opts ListWagersOpts) ([]models.Wager, error) {
	if len(opts.Statuses) == 0 {
		opts.Statuses = []string{models.WagerStatusActive}
	}
	return s.storage.Wager().ListWagers(ctx, opts)
}

// Update wager description fields. Only creator may do it while the wager accepts bets.
func (s *WagerService) UpdateWager(ctx context.Context, id uuid.UUID, by models.User, params UpdateWagerParams) (models.Wager, error) {
	var updated models.Wager

	if params.Title != nil && strings.TrimSpace(*params.Title) == "" {
		return updated, fmt.Errorf("update wager: %w: title must not be empty", apperrors.ErrWagerInvalid)
	}

	err := s.storage.InTx(ctx, func(tx repository.Storage) error {
		w, err := tx.Wager().GetWager(ctx, id, true)
		if err != nil {
			return err
		}

		switch {
		case w.CreatedBy != by.ID:
			return apperrors.ErrForbidden
		case !w.IsActive():
			return apperrors.ErrWagerClosed
		case !s.now().Before(w.Deadline):
			return apperrors.ErrDeadlinePassed
		}

		updated, err = tx.Wager().UpdateWager(ctx, id, params)
		return err
	})
	if err != nil {
		return models.Wager{}, fmt.Errorf("update wager: %w", err)
	}

	return updated, nil
}

// Delete wager nobody bet on. Only creator may do it.
func (s *WagerService) DeleteWager(ctx context.Context, id uuid.UUID, by models.User) error {
	err := s.storage.InTx(ctx, func(tx repository.Storage) error {
		w, err := tx.Wager().GetWager(ctx, id, true)
		if err != nil {
			return err
		}
		if w.CreatedBy != by.ID {
			return apperrors.ErrForbidden
		}
		// Resolved wagers are kept with their settlement records
		if !w.IsActive() {
			return apperrors.ErrWagerClosed
		}

		return tx.Wager().DeleteWager(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete wager: %w", err)
	}

	s.logger.Info("Wager deleted", "wager_id", id, "deleted_by", by.ID)
	return nil
}
