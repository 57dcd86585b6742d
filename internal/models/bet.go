package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Bet struct {
	ID        uuid.UUID
	CreatedAt time.Time
	WagerID   uuid.UUID
	UserID    uuid.UUID
	Choice    string
	Stake     decimal.Decimal
}

type Commission struct {
	ID            uuid.UUID
	CreatedAt     time.Time
	WagerID       uuid.UUID
	RecipientID   uuid.UUID
	Amount        decimal.Decimal
	TransferredAt *time.Time
}
