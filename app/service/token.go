package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/vibast-solutions/ms-go-gallery/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token has expired")
)

type Claims struct {
	UserID uint64 `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies the two token classes. Access and refresh
// tokens use separate secrets so leaking one never compromises the other.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewTokenService(cfg *config.Config) *TokenService {
	return &TokenService{
		accessSecret:  []byte(cfg.JWTAccessSecret),
		refreshSecret: []byte(cfg.JWTRefreshSecret),
		accessTTL:     cfg.AccessTokenTTL,
		refreshTTL:    cfg.RefreshTokenTTL,
	}
}

func (s *TokenService) AccessTokenTTL() time.Duration {
	return s.accessTTL
}

func (s *TokenService) IssueAccessToken(userID uint64) (string, error) {
	return s.sign(userID, s.accessSecret, s.accessTTL)
}

// IssueRefreshToken returns the signed token together with its expiry so the
// session layer can persist both on the user record.
func (s *TokenService) IssueRefreshToken(userID uint64) (string, time.Time, error) {
	expiresAt := time.Now().Add(s.refreshTTL)
	token, err := s.sign(userID, s.refreshSecret, s.refreshTTL)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

func (s *TokenService) VerifyAccessToken(tokenString string) (uint64, error) {
	return s.verify(tokenString, s.accessSecret)
}

func (s *TokenService) VerifyRefreshToken(tokenString string) (uint64, error) {
	return s.verify(tokenString, s.refreshSecret)
}

func (s *TokenService) sign(userID uint64, secret []byte, ttl time.Duration) (string, error) {
	// The jti keeps two tokens minted in the same second from colliding;
	// rotation depends on the new token differing from the old one.
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func (s *TokenService) verify(tokenString string, secret []byte) (uint64, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrTokenExpired
		}
		return 0, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == 0 {
		return 0, ErrInvalidToken
	}

	return claims.UserID, nil
}
