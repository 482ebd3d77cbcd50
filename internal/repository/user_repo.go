package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/eduniche/eduniche-backend/internal/models"
)

type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

type UpsertUserInput struct {
	Fid           int64
	WalletAddress string
	DisplayName   string
	Role          string
}

// UpsertByFid creates the user on first sign-in and refreshes the custody
// address and display name on subsequent ones. The role is fixed at creation.
func (r *UserRepository) UpsertByFid(ctx context.Context, input UpsertUserInput) (*models.User, error) {
	query := `
		INSERT INTO users (fid, wallet_address, display_name, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (fid) DO UPDATE
		SET wallet_address = EXCLUDED.wallet_address,
			display_name = EXCLUDED.display_name,
			updated_at = NOW()
		RETURNING id, fid, wallet_address, display_name, role, created_at, updated_at
	`
	var user models.User
	err := r.db.QueryRow(ctx, query, input.Fid, input.WalletAddress, input.DisplayName, input.Role).Scan(
		&user.ID,
		&user.Fid,
		&user.WalletAddress,
		&user.DisplayName,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `
		SELECT id, fid, wallet_address, display_name, role, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var user models.User
	err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Fid,
		&user.WalletAddress,
		&user.DisplayName,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByFid(ctx context.Context, fid int64) (*models.User, error) {
	query := `
		SELECT id, fid, wallet_address, display_name, role, created_at, updated_at
		FROM users
		WHERE fid = $1
	`
	var user models.User
	err := r.db.QueryRow(ctx, query, fid).Scan(
		&user.ID,
		&user.Fid,
		&user.WalletAddress,
		&user.DisplayName,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
