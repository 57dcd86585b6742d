package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	StakeTypeFixed = "fixed"
	StakeTypeOpen  = "open"
)

const (
	WagerStatusActive    = "active"
	WagerStatusResolved  = "resolved"
	WagerStatusCancelled = "cancelled"
)

const (
	ChoiceYes = "yes"
	ChoiceNo  = "no"

	ResultYes       = "yes"
	ResultNo        = "no"
	ResultCancelled = "cancelled"
)

var WagerCategories = []string{
	"sports", "politics", "entertainment", "crypto", "tech", "weather", "finance", "other",
}

type Wager struct {
	ID          uuid.UUID
	CreatedAt   time.Time
	CreatedBy   uuid.UUID
	Title       string
	Description string
	Category    string
	Tags        []string
	Deadline    time.Time

	StakeType  string
	FixedStake *decimal.Decimal
	MinStake   *decimal.Decimal
	MaxStake   *decimal.Decimal

	Status     string
	Result     *string // nil until resolved
	ResolvedAt *time.Time
	ResolvedBy *uuid.UUID

	ParticipantCount int
	YesCount         int
	NoCount          int
	TotalYesStake    decimal.Decimal
	TotalNoStake     decimal.Decimal
	TotalPool        decimal.Decimal
}

func (w Wager) IsActive() bool {
	return w.Status == WagerStatusActive
}

func ValidChoice(choice string) bool {
	return choice == ChoiceYes || choice == ChoiceNo
}

func ValidResult(result string) bool {
	return result == ResultYes || result == ResultNo || result == ResultCancelled
}

func ValidCategory(category string) bool {
	return slices.Contains(WagerCategories, category)
}
