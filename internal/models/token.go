package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken is stored server side and exchanged once for a new pair
type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Token     string
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time // nil if token not used
}

func (t RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// Access token goes to Authorization header, refresh token to http-only cookie
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}
