package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/wagers/internal/models"
)

// Storage gives access to all repositories bound to the same connection
// InTx runs fn in a db transaction: commit if fn returns nil, rollback otherwise
type Storage interface {
	User() UserRepo
	Refresh() RefreshTokenRepo
	Balance() BalanceRepo
	Wager() WagerRepo
	Bet() BetRepo
	Commission() CommissionRepo

	InTx(ctx context.Context, fn func(Storage) error) error
}

type CreateUserParams struct {
	Username       string
	Email          string
	HashedPassword string
	Role           string // models.RoleUser if empty
}

// User repository interface
type UserRepo interface {
	// Create user
	// If user with username or email exists already has to return error apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, params CreateUserParams) (models.User, error)

	// Get user by it's id, username or email
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
}

// RefreshToken repository interface
type RefreshTokenRepo interface {
	Save(ctx context.Context, token models.RefreshToken) (models.RefreshToken, error)

	// Return the token and mark it used
	// If the token is already used, must not overwrite 'usedAt' and return apperrors.ErrRefreshTokenIsUsed
	GetAndMarkUsed(ctx context.Context, tokenString string) (models.RefreshToken, error)
}

// BalanceDrift is a balance that differs from the sum of its transactions
type BalanceDrift struct {
	UserID   uuid.UUID
	Current  decimal.Decimal
	Computed decimal.Decimal
}

type BalanceRepo interface {
	CreateBalance(ctx context.Context, userID uuid.UUID) error

	// If lock is true the balance row is locked until the transaction ends
	GetBalance(ctx context.Context, userID uuid.UUID, lock bool) (models.Balance, error)

	// Atomic balance changes. Amount must be positive.
	// Debit and Withdraw return apperrors.ErrInsufficientFunds if balance is lower than amount
	Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (models.Balance, error)
	Debit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (models.Balance, error)
	Withdraw(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (models.Balance, error)

	// Append transaction to the user's ledger
	// Must return apperrors.ErrAlreadyApplied if a transaction with the same external ref exists
	// Must return apperrors.ErrTransactionExists if the bet already has transaction of the same type
	CreateTransaction(ctx context.Context, t models.Transaction) (models.Transaction, error)
	GetTransactionByExternalRef(ctx context.Context, ref string) (models.Transaction, error)

	// List transactions newest first. Filter by types if not empty.
	ListTransactions(ctx context.Context, userID uuid.UUID, types []string) ([]models.Transaction, error)

	ListBalanceDrift(ctx context.Context) ([]BalanceDrift, error)
}

type ListWagersOpts struct {
	Statuses  []string
	Category  string
	CreatedBy *uuid.UUID
	Limit     int
	Offset    int
}

type UpdateWagerParams struct {
	Title       *string
	Description *string
	Tags        []string // not changed if nil
}

type SetResultParams struct {
	Status     string
	Result     string
	ResolvedBy uuid.UUID
	ResolvedAt time.Time
}

type WagerRepo interface {
	CreateWager(ctx context.Context, w models.Wager) (models.Wager, error)

	// If lock is true the wager row is locked until the transaction ends
	// Must return apperrors.ErrWagerNotFound if wager not exists
	GetWager(ctx context.Context, id uuid.UUID, lock bool) (models.Wager, error)
	ListWagers(ctx context.Context, opts ListWagersOpts) ([]models.Wager, error)

	// Update only while the wager is active
	UpdateWager(ctx context.Context, id uuid.UUID, params UpdateWagerParams) (models.Wager, error)

	// Delete wager without participants
	// Must return apperrors.ErrWagerHasBets if anyone already bet on it
	DeleteWager(ctx context.Context, id uuid.UUID) error

	// Pool aggregate counters: increment participants, side count and side stake
	// Must return apperrors.ErrWagerClosed if the wager is not active
	AddYesStake(ctx context.Context, id uuid.UUID, stake decimal.Decimal) (models.Wager, error)
	AddNoStake(ctx context.Context, id uuid.UUID, stake decimal.Decimal) (models.Wager, error)

	// Take a refunded bet back out of a cancelled wager's aggregates
	// Must return apperrors.ErrWagerClosed if the wager is not cancelled
	// and apperrors.ErrInvalidStake if the side holds less than the stake
	RefundYesStake(ctx context.Context, id uuid.UUID, stake decimal.Decimal) (models.Wager, error)
	RefundNoStake(ctx context.Context, id uuid.UUID, stake decimal.Decimal) (models.Wager, error)

	// Move active wager to the terminal status
	// Must return apperrors.ErrWagerClosed if the wager is not active
	SetResult(ctx context.Context, id uuid.UUID, params SetResultParams) (models.Wager, error)
}

type ListBetsOpts struct {
	WagerID *uuid.UUID
	UserID  *uuid.UUID
}

// BetTotals are aggregates computed from the bets themselves
type BetTotals struct {
	YesCount int
	NoCount  int
	YesStake decimal.Decimal
	NoStake  decimal.Decimal
}

type BetRepo interface {
	CreateBet(ctx context.Context, bet models.Bet) (models.Bet, error)

	// List bets in placement order
	ListBets(ctx context.Context, opts ListBetsOpts) ([]models.Bet, error)

	// Totals over bets not refunded yet
	SumBets(ctx context.Context, wagerID uuid.UUID) (BetTotals, error)
}

type ListCommissionsOpts struct {
	RecipientID *uuid.UUID
	Transferred *bool
}

type CommissionRepo interface {
	CreateCommission(ctx context.Context, c models.Commission) (models.Commission, error)
	ListCommissions(ctx context.Context, opts ListCommissionsOpts) ([]models.Commission, error)
	MarkTransferred(ctx context.Context, ids []uuid.UUID, at time.Time) (int64, error)
}
