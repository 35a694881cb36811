package http

import (
	"errors"
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^[0-9]{10,15}$`)
)

type RegisterRequest struct {
	UserName    string `json:"userName"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
	Password    string `json:"password"`
}

func (r *RegisterRequest) Validate() error {
	userName := strings.TrimSpace(r.UserName)
	if len(userName) < 3 || len(userName) > 50 {
		return errors.New("userName must be between 3 and 50 characters")
	}
	if !emailPattern.MatchString(strings.TrimSpace(r.Email)) {
		return errors.New("a valid email is required")
	}
	if !phonePattern.MatchString(strings.TrimSpace(r.PhoneNumber)) {
		return errors.New("phoneNumber must be 10 to 15 digits")
	}
	if len(r.Password) < 6 {
		return errors.New("password must be at least 6 characters")
	}
	return nil
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" || r.Password == "" {
		return errors.New("email and password are required")
	}
	return nil
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

func (r *ForgotPasswordRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" {
		return errors.New("email is required")
	}
	return nil
}

type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (r *ResetPasswordRequest) Validate() error {
	if strings.TrimSpace(r.Token) == "" {
		return errors.New("token is required")
	}
	if len(r.Password) < 6 {
		return errors.New("password must be at least 6 characters")
	}
	return nil
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (r *RefreshTokenRequest) Validate() error {
	if strings.TrimSpace(r.RefreshToken) == "" {
		return errors.New("refreshToken is required")
	}
	return nil
}

type BulkDeleteRequest struct {
	ImageIDs []string `json:"imageIds"`
}

func (r *BulkDeleteRequest) Validate() error {
	if len(r.ImageIDs) == 0 {
		return errors.New("imageIds must be a non-empty array")
	}
	return nil
}

type RearrangeRequest struct {
	ImageOrder []string `json:"imageOrder"`
}

func (r *RearrangeRequest) Validate() error {
	if len(r.ImageOrder) == 0 {
		return errors.New("imageOrder must be a non-empty array")
	}
	return nil
}
