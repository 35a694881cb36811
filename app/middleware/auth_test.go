package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-gallery/app/middleware"
	"github.com/vibast-solutions/ms-go-gallery/app/service"
	"github.com/vibast-solutions/ms-go-gallery/config"

	"github.com/labstack/echo/v4"
)

func newTokenService(accessTTL time.Duration) *service.TokenService {
	return service.NewTokenService(&config.Config{
		JWTAccessSecret:  "access-secret-for-tests",
		JWTRefreshSecret: "refresh-secret-for-tests",
		AccessTokenTTL:   accessTTL,
		RefreshTokenTTL:  7 * 24 * time.Hour,
	})
}

func runRequireAuth(t *testing.T, tokens *service.TokenService, authorization string) (*httptest.ResponseRecorder, uint64) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	var gotUserID uint64
	handler := middleware.NewAuthMiddleware(tokens).RequireAuth(func(c echo.Context) error {
		gotUserID, _ = c.Get("user_id").(uint64)
		return c.NoContent(http.StatusOK)
	})

	if err := handler(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return rec, gotUserID
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var body struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body.Code
}

func TestRequireAuth_MissingHeader(t *testing.T) {
	rec, _ := runRequireAuth(t, newTokenService(15*time.Minute), "")

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "AUTH_ERROR" {
		t.Fatalf("expected AUTH_ERROR code, got %q", code)
	}
}

func TestRequireAuth_InvalidHeaderFormat(t *testing.T) {
	rec, _ := runRequireAuth(t, newTokenService(15*time.Minute), "Token abc")

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}

func TestRequireAuth_InvalidToken(t *testing.T) {
	rec, _ := runRequireAuth(t, newTokenService(15*time.Minute), "Bearer not-a-jwt")

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "AUTH_ERROR" {
		t.Fatalf("expected AUTH_ERROR code, got %q", code)
	}
}

func TestRequireAuth_ExpiredTokenCode(t *testing.T) {
	tokens := newTokenService(-time.Minute)
	token, err := tokens.IssueAccessToken(42)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	rec, _ := runRequireAuth(t, tokens, "Bearer "+token)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "TOKEN_EXPIRED" {
		t.Fatalf("expected TOKEN_EXPIRED code, got %q", code)
	}
}

func TestRequireAuth_ValidToken(t *testing.T) {
	tokens := newTokenService(15 * time.Minute)
	token, err := tokens.IssueAccessToken(42)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	rec, userID := runRequireAuth(t, tokens, "Bearer "+token)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if userID != 42 {
		t.Fatalf("expected user_id 42 in context, got %d", userID)
	}
}
