package settlement

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

var DefaultCommissionRate = decimal.RequireFromString("0.10")

// Payout credited to a bet owner. Zero for losing bets.
type Payout struct {
	BetID  uuid.UUID
	UserID uuid.UUID
	Type   string // win, loss or refund
	Amount decimal.Decimal
}

// Settlement is the outcome of a wager resolution
type Settlement struct {
	Wager      models.Wager
	Commission decimal.Decimal
	Payouts    []Payout

	// Part of the pool nobody won, kept when there are no winning bets
	Retained decimal.Decimal
}

type SettlementService struct {
	storage        repository.Storage
	commissionRate decimal.Decimal
	metrics        *metrics.Metrics
	logger         logger.Logger
}

func NewService(storage repository.Storage, commissionRate decimal.Decimal, m *metrics.Metrics, l logger.Logger) *SettlementService {
	return &SettlementService{
		storage:        storage,
		commissionRate: commissionRate,
		metrics:        m,
		logger:         l,
	}
}

// Resolve closes the wager with the result and settles every bet in one db transaction.
// Result "cancelled" refunds all stakes without commission.
func (s *SettlementService) Resolve(ctx context.Context, wagerID uuid.UUID, resolver models.User, result string) (Settlement, error) {
	var settlement Settlement

	if !models.ValidResult(result) {
		return settlement, fmt.Errorf("result %q: %w", result, apperrors.ErrInvalidChoice)
	}

	err := s.storage.InTx(ctx, func(tx repository.Storage) error {
		wager, err := tx.Wager().GetWager(ctx, wagerID, true)
		if err != nil {
			return err
		}
		if !wager.IsActive() {
			return apperrors.ErrWagerClosed
		}
		if !resolver.IsAdmin() {
			return apperrors.ErrForbidden
		}

		status := models.WagerStatusResolved
		if result == models.ResultCancelled {
			status = models.WagerStatusCancelled
		}

		wager, err = tx.Wager().SetResult(ctx, wager.ID, repository.SetResultParams{
			Status:     status,
			Result:     result,
			ResolvedBy: resolver.ID,
			ResolvedAt: time.Now(),
		})
		if err != nil {
			return err
		}

		bets, err := tx.Bet().ListBets(ctx, repository.ListBetsOpts{WagerID: &wager.ID})
		if err != nil {
			return err
		}

		if result == models.ResultCancelled {
			settlement, err = s.refund(ctx, tx, wager, bets)
		} else {
			settlement, err = s.payout(ctx, tx, wager, resolver, bets)
		}
		return err
	})
	if err != nil {
		return Settlement{}, fmt.Errorf("resolve wager: %w", err)
	}

	paidOut := decimal.Zero
	for _, p := range settlement.Payouts {
		paidOut = paidOut.Add(p.Amount)
	}
	s.metrics.WagerResolved(result, settlement.Commission, paidOut)

	s.logger.Info("Wager resolved",
		"wager_id", wagerID, "result", result, "pool", settlement.Wager.TotalPool,
		"commission", settlement.Commission, "paid_out", paidOut, "bets", len(settlement.Payouts),
	)
	if settlement.Retained.IsPositive() {
		s.logger.Warn("Wager has no winning bets, pool retained", "wager_id", wagerID, "retained", settlement.Retained)
	}

	return settlement, nil
}

func (s *SettlementService) refund(ctx context.Context, tx repository.Storage, wager models.Wager, bets []models.Bet) (Settlement, error) {
	settlement := Settlement{Wager: wager, Commission: decimal.Zero, Retained: decimal.Zero}
	l := ledger.New(tx)

	for _, bet := range bets {
		_, err := l.Credit(ctx, bet.UserID, bet.Stake, ledger.Entry{
			Type:    models.TransactionTypeRefund,
			WagerID: &wager.ID,
			BetID:   &bet.ID,
		})
		if err != nil {
			return settlement, err
		}

		// Refunded stakes leave the pool in the same transaction
		if bet.Choice == models.ChoiceYes {
			wager, err = tx.Wager().RefundYesStake(ctx, wager.ID, bet.Stake)
		} else {
			wager, err = tx.Wager().RefundNoStake(ctx, wager.ID, bet.Stake)
		}
		if err != nil {
			return settlement, err
		}

		settlement.Payouts = append(settlement.Payouts, Payout{
			BetID: bet.ID, UserID: bet.UserID, Type: models.TransactionTypeRefund, Amount: bet.Stake,
		})
	}

	settlement.Wager = wager
	return settlement, nil
}

func (s *SettlementService) payout(ctx context.Context, tx repository.Storage, wager models.Wager, resolver models.User, bets []models.Bet) (Settlement, error) {
	pool := wager.TotalYesStake.Add(wager.TotalNoStake)
	commission := pool.Mul(s.commissionRate).Round(2)
	distributable := pool.Sub(commission)

	settlement := Settlement{Wager: wager, Commission: commission, Retained: decimal.Zero}
	l := ledger.New(tx)

	if commission.IsPositive() {
		_, err := l.Credit(ctx, resolver.ID, commission, ledger.Entry{
			Type:    models.TransactionTypeCommission,
			WagerID: &wager.ID,
		})
		if err != nil {
			return settlement, err
		}
	}

	_, err := tx.Commission().CreateCommission(ctx, models.Commission{
		WagerID:     wager.ID,
		RecipientID: resolver.ID,
		Amount:      commission,
	})
	if err != nil {
		return settlement, err
	}

	var winners []models.Bet
	var stakes []decimal.Decimal
	for _, bet := range bets {
		if bet.Choice == *wager.Result {
			winners = append(winners, bet)
			stakes = append(stakes, bet.Stake)
		}
	}

	if len(winners) == 0 {
		settlement.Retained = distributable
	}

	shares := Allocate(distributable, stakes)
	won := make(map[uuid.UUID]decimal.Decimal, len(winners))
	for i, bet := range winners {
		won[bet.ID] = shares[i]
	}

	for _, bet := range bets {
		share, isWinner := won[bet.ID]
		entry := ledger.Entry{WagerID: &wager.ID, BetID: &bet.ID}

		switch {
		case isWinner && share.IsPositive():
			entry.Type = models.TransactionTypeWin
			_, err = l.Credit(ctx, bet.UserID, share, entry)
		case isWinner:
			entry.Type = models.TransactionTypeWin
			_, err = l.Record(ctx, bet.UserID, entry)
		default:
			entry.Type = models.TransactionTypeLoss
			share = decimal.Zero
			_, err = l.Record(ctx, bet.UserID, entry)
		}
		if err != nil {
			return settlement, err
		}

		settlement.Payouts = append(settlement.Payouts, Payout{
			BetID: bet.ID, UserID: bet.UserID, Type: entry.Type, Amount: share,
		})
	}

	return settlement, nil
}

func (s *SettlementService) ListCommissions(ctx context.Context, opts repository.ListCommissionsOpts) ([]models.Commission, error) {
	return s.storage.Commission().ListCommissions(ctx, opts)
}

// TransferCommissions withdraws all not yet transferred commissions of the admin.
// Payout to the bank is done by the payment gateway.
func (s *SettlementService) TransferCommissions(ctx context.Context, admin models.User) (decimal.Decimal, error) {
	total := decimal.Zero

	if !admin.IsAdmin() {
		return total, apperrors.ErrForbidden
	}

	err := s.storage.InTx(ctx, func(tx repository.Storage) error {
		// Lock balance first, so concurrent transfers see the same pending commissions
		if _, err := tx.Balance().GetBalance(ctx, admin.ID, true); err != nil {
			return err
		}

		transferred := false
		pending, err := tx.Commission().ListCommissions(ctx, repository.ListCommissionsOpts{
			RecipientID: &admin.ID,
			Transferred: &transferred,
		})
		if err != nil {
			return err
		}

		ids := make([]uuid.UUID, 0, len(pending))
		for _, c := range pending {
			total = total.Add(c.Amount)
			ids = append(ids, c.ID)
		}

		if len(ids) == 0 {
			return nil
		}

		if total.IsPositive() {
			_, err = ledger.New(tx).Debit(ctx, admin.ID, total, ledger.Entry{Type: models.TransactionTypeWithdraw})
			if err != nil {
				return err
			}
		}

		marked, err := tx.Commission().MarkTransferred(ctx, ids, time.Now())
		if err != nil {
			return err
		}
		if marked != int64(len(ids)) {
			return apperrors.ErrConflict
		}
		return nil
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("transfer commissions: %w", err)
	}

	s.logger.Info("Commissions transferred", "admin_id", admin.ID, "amount", total)
	return total, nil
}
