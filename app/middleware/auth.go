package middleware

import (
	"errors"
	"net/http"
	"strings"

	httpdto "github.com/vibast-solutions/ms-go-gallery/app/dto/http"
	"github.com/vibast-solutions/ms-go-gallery/app/service"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type accessTokenVerifier interface {
	VerifyAccessToken(tokenString string) (uint64, error)
}

type AuthMiddleware struct {
	tokens accessTokenVerifier
}

func NewAuthMiddleware(tokens accessTokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// RequireAuth guards a route group with bearer-token auth. The 401 body
// carries TOKEN_EXPIRED for expired tokens so clients know a refresh is worth
// attempting; every other failure is the generic AUTH_ERROR.
func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			logrus.Debug("Missing authorization header")
			return c.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{
				Error: "missing authorization header",
				Code:  httpdto.CodeAuthError,
			})
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			logrus.Debug("Invalid authorization header format")
			return c.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{
				Error: "invalid authorization header format",
				Code:  httpdto.CodeAuthError,
			})
		}

		userID, err := m.tokens.VerifyAccessToken(parts[1])
		if err != nil {
			if errors.Is(err, service.ErrTokenExpired) {
				logrus.Debug("Expired access token")
				return c.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{
					Error: "token has expired",
					Code:  httpdto.CodeTokenExpired,
				})
			}
			logrus.Debug("Invalid access token")
			return c.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{
				Error: "invalid token",
				Code:  httpdto.CodeAuthError,
			})
		}

		c.Set("user_id", userID)

		return next(c)
	}
}
