package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-gallery/app/entity"
	"github.com/vibast-solutions/ms-go-gallery/app/repository"
	"github.com/vibast-solutions/ms-go-gallery/config"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/singleflight"
)

var (
	ErrUserExists          = errors.New("user already exists")
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidResetToken   = errors.New("invalid or expired reset token")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
)

type userRepository interface {
	Create(ctx context.Context, user *entity.User) error
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	FindByID(ctx context.Context, id uint64) (*entity.User, error)
	FindByResetTokenHash(ctx context.Context, tokenHash string) (*entity.User, error)
	FindByActiveRefreshToken(ctx context.Context, userID uint64, token string) (*entity.User, error)
	Update(ctx context.Context, user *entity.User) error
}

type tokenIssuer interface {
	IssueAccessToken(userID uint64) (string, error)
	IssueRefreshToken(userID uint64) (string, time.Time, error)
	VerifyRefreshToken(tokenString string) (uint64, error)
}

type Session struct {
	User         *entity.User
	AccessToken  string
	RefreshToken string
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AuthService owns the authentication state machine: registration, login,
// password reset and refresh-token rotation.
type AuthService struct {
	userRepo userRepository
	tokens   tokenIssuer
	cfg      *config.Config

	// refreshGroup collapses concurrent refresh calls carrying the same
	// token into one rotation within this process.
	refreshGroup singleflight.Group
}

func NewAuthService(userRepo userRepository, tokens tokenIssuer, cfg *config.Config) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		tokens:   tokens,
		cfg:      cfg,
	}
}

func (s *AuthService) Register(ctx context.Context, userName, email, phoneNumber, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &entity.User{
		UserName:     strings.TrimSpace(userName),
		Email:        email,
		PhoneNumber:  strings.TrimSpace(phoneNumber),
		PasswordHash: string(hashedPassword),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		// Lost a concurrent registration race on the unique email index.
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrUserExists
		}
		return nil, err
	}

	return s.issueSession(ctx, user)
}

// Login reports the same ErrInvalidCredentials for an unknown address, a user
// without a password and a hash mismatch, so callers cannot enumerate accounts.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issueSession(ctx, user)
}

// ForgotPassword persists only the sha256 of the generated token; the
// plaintext goes back to the caller for out-of-band delivery and is never
// stored anywhere.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (string, *entity.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return "", nil, err
	}
	if user == nil {
		return "", nil, ErrInvalidCredentials
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", nil, err
	}
	resetToken := hex.EncodeToString(raw)

	user.ResetTokenHash = sql.NullString{String: hashResetToken(resetToken), Valid: true}
	user.ResetTokenExpiresAt = sql.NullTime{Time: time.Now().Add(s.cfg.ResetTokenTTL), Valid: true}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return "", nil, err
	}

	return resetToken, user, nil
}

// ResetPassword also clears the persisted refresh token, forcing a fresh
// login on every device that held a session.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	user, err := s.userRepo.FindByResetTokenHash(ctx, hashResetToken(token))
	if err != nil {
		return err
	}
	if user == nil {
		return ErrInvalidResetToken
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	user.PasswordHash = string(hashedPassword)
	user.ResetTokenHash = sql.NullString{Valid: false}
	user.ResetTokenExpiresAt = sql.NullTime{Valid: false}
	user.RefreshToken = sql.NullString{Valid: false}
	user.RefreshTokenExpiresAt = sql.NullTime{Valid: false}

	return s.userRepo.Update(ctx, user)
}

// RefreshSession rotates the refresh token on use. A structurally valid token
// that no longer matches the persisted value fails closed: after a concurrent
// rotation only the winner's token remains usable.
func (s *AuthService) RefreshSession(ctx context.Context, refreshToken string) (*TokenPair, error) {
	pair, err, _ := s.refreshGroup.Do(refreshToken, func() (interface{}, error) {
		return s.rotateRefreshToken(ctx, refreshToken)
	})
	if err != nil {
		return nil, err
	}
	return pair.(*TokenPair), nil
}

func (s *AuthService) rotateRefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	userID, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.userRepo.FindByActiveRefreshToken(ctx, userID, refreshToken)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidRefreshToken
	}

	session, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: session.AccessToken, RefreshToken: session.RefreshToken}, nil
}

func (s *AuthService) Logout(ctx context.Context, userID uint64) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	user.RefreshToken = sql.NullString{Valid: false}
	user.RefreshTokenExpiresAt = sql.NullTime{Valid: false}

	return s.userRepo.Update(ctx, user)
}

func (s *AuthService) CurrentUser(ctx context.Context, userID uint64) (*entity.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// issueSession mints a token pair and persists the refresh half on the user
// row, superseding whatever token was there before.
func (s *AuthService) issueSession(ctx context.Context, user *entity.User) (*Session, error) {
	accessToken, err := s.tokens.IssueAccessToken(user.ID)
	if err != nil {
		return nil, err
	}

	refreshToken, expiresAt, err := s.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		return nil, err
	}

	user.RefreshToken = sql.NullString{String: refreshToken, Valid: true}
	user.RefreshTokenExpiresAt = sql.NullTime{Time: expiresAt, Valid: true}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	return &Session{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
