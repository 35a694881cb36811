package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-gallery/app/entity"

	"github.com/go-sql-driver/mysql"
)

var ErrDuplicateEmail = errors.New("email already registered")

const mysqlDuplicateEntry = 1062

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	query := `
		INSERT INTO users (user_name, email, phone_number, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		user.UserName,
		user.Email,
		user.PhoneNumber,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
			return ErrDuplicateEmail
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	user.ID = uint64(id)
	return nil
}

// FindByEmail normalizes the address to lowercase before lookup; rows are
// stored lowercase so the match is effectively case-insensitive.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	query := `
		SELECT id, user_name, email, phone_number, password_hash, reset_token_hash, reset_token_expires_at,
		       refresh_token, refresh_token_expires_at, created_at, updated_at
		FROM users WHERE email = ?
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, strings.ToLower(email)))
}

func (r *UserRepository) FindByID(ctx context.Context, id uint64) (*entity.User, error) {
	query := `
		SELECT id, user_name, email, phone_number, password_hash, reset_token_hash, reset_token_expires_at,
		       refresh_token, refresh_token_expires_at, created_at, updated_at
		FROM users WHERE id = ?
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// FindByResetTokenHash only matches rows whose reset token is still valid;
// callers never need to re-check the expiry.
func (r *UserRepository) FindByResetTokenHash(ctx context.Context, tokenHash string) (*entity.User, error) {
	query := `
		SELECT id, user_name, email, phone_number, password_hash, reset_token_hash, reset_token_expires_at,
		       refresh_token, refresh_token_expires_at, created_at, updated_at
		FROM users WHERE reset_token_hash = ? AND reset_token_expires_at > NOW()
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, tokenHash))
}

// FindByActiveRefreshToken matches only when the stored refresh token equals
// the supplied one and has not expired.
func (r *UserRepository) FindByActiveRefreshToken(ctx context.Context, userID uint64, token string) (*entity.User, error) {
	query := `
		SELECT id, user_name, email, phone_number, password_hash, reset_token_hash, reset_token_expires_at,
		       refresh_token, refresh_token_expires_at, created_at, updated_at
		FROM users WHERE id = ? AND refresh_token = ? AND refresh_token_expires_at > NOW()
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, userID, token))
}

func (r *UserRepository) Update(ctx context.Context, user *entity.User) error {
	query := `
		UPDATE users SET
			user_name = ?,
			email = ?,
			phone_number = ?,
			password_hash = ?,
			reset_token_hash = ?,
			reset_token_expires_at = ?,
			refresh_token = ?,
			refresh_token_expires_at = ?,
			updated_at = ?
		WHERE id = ?
	`
	user.UpdatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, query,
		user.UserName,
		user.Email,
		user.PhoneNumber,
		user.PasswordHash,
		user.ResetTokenHash,
		user.ResetTokenExpiresAt,
		user.RefreshToken,
		user.RefreshTokenExpiresAt,
		user.UpdatedAt,
		user.ID,
	)
	return err
}

// ClearExpiredCredentials nulls out reset and refresh token fields whose
// expiry has passed. Used by the cleanup command.
func (r *UserRepository) ClearExpiredCredentials(ctx context.Context) (int64, error) {
	resetQuery := `
		UPDATE users SET reset_token_hash = NULL, reset_token_expires_at = NULL
		WHERE reset_token_expires_at IS NOT NULL AND reset_token_expires_at < NOW()
	`
	refreshQuery := `
		UPDATE users SET refresh_token = NULL, refresh_token_expires_at = NULL
		WHERE refresh_token_expires_at IS NOT NULL AND refresh_token_expires_at < NOW()
	`

	var total int64
	result, err := r.db.ExecContext(ctx, resetQuery)
	if err != nil {
		return 0, err
	}
	if n, err := result.RowsAffected(); err == nil {
		total += n
	}

	result, err = r.db.ExecContext(ctx, refreshQuery)
	if err != nil {
		return total, err
	}
	if n, err := result.RowsAffected(); err == nil {
		total += n
	}
	return total, nil
}

func (r *UserRepository) scanOne(row *sql.Row) (*entity.User, error) {
	user := &entity.User{}
	err := row.Scan(
		&user.ID,
		&user.UserName,
		&user.Email,
		&user.PhoneNumber,
		&user.PasswordHash,
		&user.ResetTokenHash,
		&user.ResetTokenExpiresAt,
		&user.RefreshToken,
		&user.RefreshTokenExpiresAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}
