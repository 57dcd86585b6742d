package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TransactionTypeDeposit    = "deposit"
	TransactionTypeWithdraw   = "withdraw"
	TransactionTypeBet        = "bet"
	TransactionTypeWin        = "win"
	TransactionTypeLoss       = "loss"
	TransactionTypeRefund     = "refund"
	TransactionTypeCommission = "commission"
)

const TransactionStatusCompleted = "completed"

type Balance struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Current   decimal.Decimal
	Withdrawn decimal.Decimal
}

// Transaction is an append-only audit record of a balance change.
// Amount is signed: debits are negative.
type Transaction struct {
	ID          uuid.UUID
	ProcessedAt time.Time
	UserID      uuid.UUID
	Type        string
	Amount      decimal.Decimal
	Status      string
	WagerID     *uuid.UUID
	BetID       *uuid.UUID
	ExternalRef *string
}
