package bet

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/wagers/internal/apperrors"
	"github.com/nkiryanov/wagers/internal/logger"
	"github.com/nkiryanov/wagers/internal/metrics"
	"github.com/nkiryanov/wagers/internal/models"
	"github.com/nkiryanov/wagers/internal/repository"
	"github.com/nkiryanov/wagers/internal/service/ledger"
)

type BetService struct {
	storage repository.Storage
	metrics *metrics.Metrics
	logger  logger.Logger

	// Current time, replaced in tests
	now func() time.Time
}

func NewService(storage repository.Storage, m *metrics.Metrics, l logger.Logger) *BetService {
	return &BetService{
		storage: storage,
		metrics: m,
		logger:  l,
		now:     time.Now,
	}
}

// PlaceBet moves stake from the user balance to the wager pool.
// The wager row stays locked until commit, so the bet can't interleave with resolution.
func (s *BetService) PlaceBet(ctx context.Context, wagerID uuid.UUID, userID uuid.UUID, choice string, stake decimal.Decimal) (models.Bet, error) {
	var bet models.Bet

	err := s.storage.InTx(ctx, func(tx repository.Storage) error {
		wager, err := tx.Wager().GetWager(ctx, wagerID, true)
		if err != nil {
			return err
		}

		if err := s.validate(wager, choice, stake); err != nil {
			return err
		}

		if _, err := tx.User().GetUserByID(ctx, userID); err != nil {
			return err
		}

		bet, err = tx.Bet().CreateBet(ctx, models.Bet{
			WagerID: wager.ID,
			UserID:  userID,
			Choice:  choice,
			Stake:   stake,
		})
		if err != nil {
			return err
		}

		_, err = ledger.New(tx).Debit(ctx, userID, stake, ledger.Entry{
			Type:    models.TransactionTypeBet,
			WagerID: &bet.WagerID,
			BetID:   &bet.ID,
		})
		if err != nil {
			return err
		}

		if choice == models.ChoiceYes {
			_, err = tx.Wager().AddYesStake(ctx, wager.ID, stake)
		} else {
			_, err = tx.Wager().AddNoStake(ctx, wager.ID, stake)
		}
		return err
	})
	if err != nil {
		return models.Bet{}, fmt.Errorf("place bet: %w", err)
	}

	s.metrics.BetPlaced(choice, stake)
	s.logger.Info("Bet placed", "bet_id", bet.ID, "wager_id", wagerID, "user_id", userID, "choice", choice, "stake", stake)

	return bet, nil
}

// Checked in order, the first failed check wins
func (s *BetService) validate(wager models.Wager, choice string, stake decimal.Decimal) error {
	switch {
	case !wager.IsActive():
		return apperrors.ErrWagerClosed
	case !s.now().Before(wager.Deadline):
		return apperrors.ErrDeadlinePassed
	case !models.ValidChoice(choice):
		return apperrors.ErrInvalidChoice
	case !stake.IsPositive(), !ledger.IsMinorUnits(stake):
		return apperrors.ErrInvalidStake
	}

	switch wager.StakeType {
	case models.StakeTypeFixed:
		if !stake.Equal(*wager.FixedStake) {
			return fmt.Errorf("%w: want %s", apperrors.ErrStakeMismatch, wager.FixedStake)
		}
	case models.StakeTypeOpen:
		if stake.LessThan(*wager.MinStake) || stake.GreaterThan(*wager.MaxStake) {
			return fmt.Errorf("%w: want from %s to %s", apperrors.ErrStakeOutOfRange, wager.MinStake, wager.MaxStake)
		}
	}

	return nil
}

func (s *BetService) ListWagerBets(ctx context.Context, wagerID uuid.UUID) ([]models.Bet, error) {
	if _, err := s.storage.Wager().GetWager(ctx, wagerID, false); err != nil {
		return nil, err
	}
	return s.storage.Bet().ListBets(ctx, repository.ListBetsOpts{WagerID: &wagerID})
}

func (s *BetService) ListUserBets(ctx context.Context, userID uuid.UUID) ([]models.Bet, error) {
	return s.storage.Bet().ListBets(ctx, repository.ListBetsOpts{UserID: &userID})
}
