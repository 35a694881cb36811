package controller

import (
	"errors"
	"net/http"

	httpdto "github.com/vibast-solutions/ms-go-gallery/app/dto/http"
	"github.com/vibast-solutions/ms-go-gallery/app/service"
	"github.com/vibast-solutions/ms-go-gallery/config"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type AuthController struct {
	authService *service.AuthService
	cfg         *config.Config
}

func NewAuthController(authService *service.AuthService, cfg *config.Config) *AuthController {
	return &AuthController{authService: authService, cfg: cfg}
}

func (c *AuthController) Register(ctx echo.Context) error {
	var req httpdto.RegisterRequest
	if err := ctx.Bind(&req); err != nil {
		logrus.WithError(err).Debug("Failed to bind register request")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid request body"})
	}

	if err := req.Validate(); err != nil {
		logrus.WithField("email", req.Email).Debug("Register validation failed")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: err.Error()})
	}

	logrus.WithField("email", req.Email).Info("Register request received")
	session, err := c.authService.Register(ctx.Request().Context(), req.UserName, req.Email, req.PhoneNumber, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrUserExists) {
			logrus.WithField("email", req.Email).Warn("Register failed: user already exists")
			return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "user already exists, please login"})
		}
		logrus.WithError(err).WithField("email", req.Email).Error("Register failed")
		return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
	}

	logrus.WithFields(logrus.Fields{
		"user_id": session.User.ID,
		"email":   session.User.Email,
	}).Info("User registered")

	return ctx.JSON(http.StatusOK, httpdto.AuthResponse{
		Message:      "User registered successfully!",
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		User:         httpdto.NewPublicUser(session.User),
	})
}

func (c *AuthController) Login(ctx echo.Context) error {
	var req httpdto.LoginRequest
	if err := ctx.Bind(&req); err != nil {
		logrus.WithError(err).Debug("Failed to bind login request")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid request body"})
	}

	if err := req.Validate(); err != nil {
		logrus.WithField("email", req.Email).Debug("Login validation failed")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: err.Error()})
	}

	logrus.WithField("email", req.Email).Info("Login request received")
	session, err := c.authService.Login(ctx.Request().Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			logrus.WithField("email", req.Email).Warn("Login failed: invalid credentials")
			return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid credentials"})
		}
		logrus.WithError(err).WithField("email", req.Email).Error("Login failed")
		return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
	}

	logrus.WithField("email", req.Email).Info("Login successful")
	return ctx.JSON(http.StatusOK, httpdto.AuthResponse{
		Message:      "Logged in successfully!",
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		User:         httpdto.NewPublicUser(session.User),
	})
}

// ForgotPassword answers 400 invalid credentials for unknown addresses, the
// same error login uses, so the endpoint cannot be used to enumerate
// accounts. In development the reset link comes back in the response body
// instead of going out by mail.
func (c *AuthController) ForgotPassword(ctx echo.Context) error {
	var req httpdto.ForgotPasswordRequest
	if err := ctx.Bind(&req); err != nil {
		logrus.WithError(err).Debug("Failed to bind forgot password request")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid request body"})
	}

	if err := req.Validate(); err != nil {
		logrus.Debug("Forgot password validation failed")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: err.Error()})
	}

	logrus.WithField("email", req.Email).Info("Password reset requested")
	resetToken, _, err := c.authService.ForgotPassword(ctx.Request().Context(), req.Email)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			logrus.WithField("email", req.Email).Debug("Password reset requested for unknown email")
			return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid credentials"})
		}
		logrus.WithError(err).WithField("email", req.Email).Error("Forgot password failed")
		return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
	}

	logrus.WithField("email", req.Email).Info("Password reset token generated")

	if c.cfg.IsDevelopment() {
		return ctx.JSON(http.StatusOK, httpdto.MessageResponse{
			Message: "Reset link (dev mode): " + c.cfg.FrontendURL + "/reset-password/" + resetToken,
		})
	}

	return ctx.JSON(http.StatusOK, httpdto.MessageResponse{Message: "Password reset mail sent"})
}

func (c *AuthController) ResetPassword(ctx echo.Context) error {
	var req httpdto.ResetPasswordRequest
	if err := ctx.Bind(&req); err != nil {
		logrus.WithError(err).Debug("Failed to bind reset password request")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid request body"})
	}

	if err := req.Validate(); err != nil {
		logrus.Debug("Reset password validation failed")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: err.Error()})
	}

	logrus.Info("Reset password request received")
	if err := c.authService.ResetPassword(ctx.Request().Context(), req.Token, req.Password); err != nil {
		if errors.Is(err, service.ErrInvalidResetToken) {
			logrus.Warn("Reset password failed: invalid or expired token")
			return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid or expired token"})
		}
		logrus.WithError(err).Error("Reset password failed")
		return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
	}

	logrus.Info("Password reset successful")
	return ctx.JSON(http.StatusOK, httpdto.MessageResponse{Message: "Password reset successful!"})
}

func (c *AuthController) RefreshToken(ctx echo.Context) error {
	var req httpdto.RefreshTokenRequest
	if err := ctx.Bind(&req); err != nil {
		logrus.WithError(err).Debug("Failed to bind refresh token request")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid request body"})
	}

	if err := req.Validate(); err != nil {
		logrus.Debug("Refresh token validation failed")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: err.Error()})
	}

	pair, err := c.authService.RefreshSession(ctx.Request().Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefreshToken) {
			logrus.Warn("Refresh token failed: invalid or superseded token")
			return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{
				Error: "invalid refresh token",
				Code:  httpdto.CodeAuthError,
			})
		}
		logrus.WithError(err).Error("Refresh token failed")
		return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
	}

	logrus.Info("Refresh token successful")
	return ctx.JSON(http.StatusOK, httpdto.RefreshTokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (c *AuthController) Logout(ctx echo.Context) error {
	userID, ok := ctx.Get("user_id").(uint64)
	if !ok {
		logrus.Warn("Logout failed: missing user_id in context")
		return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{
			Error: "unauthorized",
			Code:  httpdto.CodeAuthError,
		})
	}

	logrus.WithField("user_id", userID).Info("Logout request received")
	if err := c.authService.Logout(ctx.Request().Context(), userID); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{
				Error: "unauthorized",
				Code:  httpdto.CodeAuthError,
			})
		}
		logrus.WithError(err).WithField("user_id", userID).Error("Logout failed")
		return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
	}

	logrus.WithField("user_id", userID).Info("Logout successful")
	return ctx.JSON(http.StatusOK, httpdto.MessageResponse{Message: "Logged out successfully"})
}
