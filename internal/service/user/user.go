package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nkiryanov/wagers/internal/apperrors"
	"github.com/nkiryanov/wagers/internal/models"
	"github.com/nkiryanov/wagers/internal/repository"
)

// Compared against when user not found, so login takes the same time either way
const dummyHash = "$2a$10$7EqJtq98hPqEX7fNZaFWoOa0Ys5ZrWp0YAbQ5kGhv0R0Aw1xQJ1bK"

type CreateUserParams struct {
	Username string
	Email    string
	Password string
	Role     string // models.RoleUser if empty
}

type UserService struct {
	hasher  PasswordHasher
	storage repository.Storage
}

func NewService(hasher PasswordHasher, storage repository.Storage) *UserService {
	if hasher == nil {
		hasher = DefaultHasher
	}

	return &UserService{
		hasher:  hasher,
		storage: storage,
	}
}

// Create user with empty balance
func (s *UserService) CreateUser(ctx context.Context, params CreateUserParams) (models.User, error) {
	var user models.User

	if params.Password == "" {
		return user, errors.New("password must not be empty")
	}

	hash, err := s.hasher.Hash(params.Password)
	if err != nil {
		return user, fmt.Errorf("can't use this as password, Err: %w", err)
	}

	err = s.storage.InTx(ctx, func(tx repository.Storage) error {
		user, err = tx.User().CreateUser(ctx, repository.CreateUserParams{
			Username:       params.Username,
			Email:          params.Email,
			HashedPassword: hash,
			Role:           params.Role,
		})
		if err != nil {
			return err
		}

		return tx.Balance().CreateBalance(ctx, user.ID)
	})
	if err != nil {
		return models.User{}, fmt.Errorf("can't create user. Err: %w", err)
	}

	return user, nil
}

// Login returns user if password matches
// Returns apperrors.ErrUserNotFound either user not exists or password is wrong
func (s *UserService) Login(ctx context.Context, username string, password string) (models.User, error) {
	user, err := s.storage.User().GetUserByUsername(ctx, username)

	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		_ = s.hasher.Compare(dummyHash, password)
		return models.User{}, apperrors.ErrUserNotFound
	case err != nil:
		return models.User{}, err
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		return models.User{}, apperrors.ErrUserNotFound
	}

	return user, nil
}

func (s *UserService) GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error) {
	return s.storage.User().GetUserByID(ctx, userID)
}

func (s *UserService) GetBalance(ctx context.Context, userID uuid.UUID) (models.Balance, error) {
	return s.storage.Balance().GetBalance(ctx, userID, false)
}

// List user transactions newest first, all types if types is empty
func (s *UserService) ListTransactions(ctx context.Context, userID uuid.UUID, types ...string) ([]models.Transaction, error) {
	return s.storage.Balance().ListTransactions(ctx, userID, types)
}
