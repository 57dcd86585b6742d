package funding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/wagers/internal/apperrors"
	"github.com/nkiryanov/wagers/internal/logger"
	"github.com/nkiryanov/wagers/internal/metrics"
	"github.com/nkiryanov/wagers/internal/models"
	"github.com/nkiryanov/wagers/internal/repository"
	"github.com/nkiryanov/wagers/internal/service/ledger"
)

// Largest amount NUMERIC(14, 2) holds, in minor units
const maxAmountMinorUnits = 99_999_999_999_999

type FundingService struct {
	storage repository.Storage
	metrics *metrics.Metrics
	logger  logger.Logger
}

func NewService(storage repository.Storage, m *metrics.Metrics, l logger.Logger) *FundingService {
	return &FundingService{
		storage: storage,
		metrics: m,
		logger:  l,
	}
}

// ApplyExternalCredit credits the user once per external reference.
// User is looked up by id or email. Amount is in minor units (cents).
// On repeated reference returns the first transaction and apperrors.ErrAlreadyApplied.
func (s *FundingService) ApplyExternalCredit(ctx context.Context, externalRef string, user string, amountMinorUnits int64) (models.Transaction, error) {
	if externalRef == "" {
		return models.Transaction{}, apperrors.ErrExternalRefEmpty
	}

	transaction, err := s.storage.Balance().GetTransactionByExternalRef(ctx, externalRef)
	switch {
	case err == nil:
		s.metrics.ExternalCredit("duplicate")
		return transaction, apperrors.ErrAlreadyApplied
	case !errors.Is(err, apperrors.ErrTransactionNotFound):
		return transaction, err
	}

	err = s.storage.InTx(ctx, func(tx repository.Storage) error {
		u, err := s.lookupUser(ctx, tx, user)
		if err != nil {
			return err
		}

		if amountMinorUnits <= 0 || amountMinorUnits > maxAmountMinorUnits {
			return apperrors.ErrInvalidAmount
		}
		amount := decimal.New(amountMinorUnits, -2)

		transaction, err = ledger.New(tx).Credit(ctx, u.ID, amount, ledger.Entry{
			Type:        models.TransactionTypeDeposit,
			ExternalRef: &externalRef,
		})
		return err
	})

	switch {
	case err == nil:
		s.metrics.ExternalCredit("applied")
		s.logger.Info("External credit applied", "ref", externalRef, "user_id", transaction.UserID, "amount", transaction.Amount)
		return transaction, nil

	// Concurrent delivery of the same reference won the race
	case errors.Is(err, apperrors.ErrAlreadyApplied):
		s.metrics.ExternalCredit("duplicate")
		transaction, err = s.storage.Balance().GetTransactionByExternalRef(ctx, externalRef)
		if err != nil {
			return transaction, err
		}
		return transaction, apperrors.ErrAlreadyApplied

	default:
		s.metrics.ExternalCredit("failed")
		return models.Transaction{}, fmt.Errorf("apply external credit %s: %w", externalRef, err)
	}
}

func (s *FundingService) lookupUser(ctx context.Context, storage repository.Storage, user string) (models.User, error) {
	if id, err := uuid.Parse(user); err == nil {
		return storage.User().GetUserByID(ctx, id)
	}
	return storage.User().GetUserByEmail(ctx, strings.TrimSpace(user))
}

// Withdraw moves money out of the ledger. Bank transfer is up to the payment gateway.
func (s *FundingService) Withdraw(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (models.Transaction, error) {
	transaction, err := ledger.New(s.storage).Debit(ctx, userID, amount, ledger.Entry{
		Type: models.TransactionTypeWithdraw,
	})
	if err != nil {
		return transaction, err
	}

	s.logger.Info("Withdrawn", "user_id", userID, "amount", amount)
	return transaction, nil
}
