package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/wagers/internal/apperrors"
	"github.com/nkiryanov/wagers/internal/models"
	"github.com/nkiryanov/wagers/internal/repository"
	"github.com/nkiryanov/wagers/internal/testutil"
)

func Test_UserRepo(t *testing.T) {
	t.Parallel() // It's ok to run in parallel with other tests, but not with subtests

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	params := repository.CreateUserParams{
		Username:       "testuser",
		Email:          "TestUser@example.com",
		HashedPassword: "hashedpassword123",
	}

	t.Run("create user ok", func(t *testing.T) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}

			user, err := r.CreateUser(t.Context(), params)

			require.NoError(t, err)
			assert.Equal(t, "testuser", user.Username)
			assert.Equal(t, "TestUser@example.com", user.Email)
			assert.Equal(t, "hashedpassword123", user.HashedPassword)
			assert.Equal(t, models.RoleUser, user.Role, "role is 'user' by default")
			assert.WithinDuration(t, time.Now(), user.CreatedAt, time.Second, "CreatedAt should be recent")
		})
	})

	t.Run("create admin", func(t *testing.T) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			p := params
			p.Role = models.RoleAdmin

			user, err := r.CreateUser(t.Context(), p)

			require.NoError(t, err)
			assert.True(t, user.IsAdmin())
		})
	})

	t.Run("create duplicate", func(t *testing.T) {
		tests := []struct {
			name   string
			mutate func(p *repository.CreateUserParams)
		}{
			{"same username", func(p *repository.CreateUserParams) { p.Email = "other@example.com" }},
			{"same email", func(p *repository.CreateUserParams) { p.Username = "other" }},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
					r := UserRepo{DB: tx}
					_, err := r.CreateUser(t.Context(), params)
					require.NoError(t, err)

					p := params
					tt.mutate(&p)
					_, err = r.CreateUser(t.Context(), p)

					require.ErrorIs(t, err, apperrors.ErrUserAlreadyExists)
				})
			})
		}
	})

	t.Run("get user ok", func(t *testing.T) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			created, err := r.CreateUser(t.Context(), params)
			require.NoError(t, err)

			byID, err := r.GetUserByID(t.Context(), created.ID)
			require.NoError(t, err)
			assert.Equal(t, created, byID)

			byUsername, err := r.GetUserByUsername(t.Context(), created.Username)
			require.NoError(t, err)
			assert.Equal(t, created.ID, byUsername.ID)

			byEmail, err := r.GetUserByEmail(t.Context(), "testuser@EXAMPLE.com")
			require.NoError(t, err, "email lookup is case insensitive")
			assert.Equal(t, created.ID, byEmail.ID)
		})
	})

	t.Run("get user not found", func(t *testing.T) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}

			_, err := r.GetUserByID(t.Context(), uuid.New())
			assert.ErrorIs(t, err, apperrors.ErrUserNotFound, "should return well known error")

			_, err = r.GetUserByUsername(t.Context(), "nonexistentuser")
			assert.ErrorIs(t, err, apperrors.ErrUserNotFound)

			_, err = r.GetUserByEmail(t.Context(), "nobody@example.com")
			assert.ErrorIs(t, err, apperrors.ErrNotFound)
		})
	})
}
