package http

import (
	"time"

	"github.com/vibast-solutions/ms-go-gallery/app/entity"
)

// Error codes on 401 responses let clients decide whether a refresh is worth
// attempting.
const (
	CodeTokenExpired = "TOKEN_EXPIRED"
	CodeAuthError    = "AUTH_ERROR"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// PublicUser is the projection sent to clients; the password hash and token
// fields never leave the server.
type PublicUser struct {
	ID          uint64 `json:"id"`
	UserName    string `json:"userName"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
}

func NewPublicUser(user *entity.User) PublicUser {
	return PublicUser{
		ID:          user.ID,
		UserName:    user.UserName,
		Email:       user.Email,
		PhoneNumber: user.PhoneNumber,
	}
}

type AuthResponse struct {
	Message      string     `json:"message"`
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
	User         PublicUser `json:"user"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type RefreshTokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type ImageResponse struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	Format       string `json:"format"`
	Bytes        int64  `json:"bytes"`
	Width        int64  `json:"width,omitempty"`
	Height       int64  `json:"height,omitempty"`
	Order        int    `json:"order"`
	CreatedAt    string `json:"createdAt"`
	UpdatedAt    string `json:"updatedAt"`
}

func NewImageResponse(image *entity.Image) ImageResponse {
	resp := ImageResponse{
		ID:        image.ID,
		Title:     image.Title,
		URL:       image.URL,
		Format:    image.Format,
		Bytes:     image.Bytes,
		Order:     image.DisplayOrder,
		CreatedAt: image.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: image.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if image.ThumbnailURL.Valid {
		resp.ThumbnailURL = image.ThumbnailURL.String
	}
	if image.Width.Valid {
		resp.Width = image.Width.Int64
	}
	if image.Height.Valid {
		resp.Height = image.Height.Int64
	}
	return resp
}

func NewImageResponses(images []*entity.Image) []ImageResponse {
	out := make([]ImageResponse, 0, len(images))
	for _, image := range images {
		out = append(out, NewImageResponse(image))
	}
	return out
}

type ImageListResponse struct {
	Images     []ImageResponse `json:"images"`
	Total      int64           `json:"total"`
	Page       int             `json:"page"`
	TotalPages int             `json:"totalPages"`
	HasMore    bool            `json:"hasMore"`
}

type UploadResponse struct {
	Message string        `json:"message"`
	Image   ImageResponse `json:"image"`
}

type BulkUploadResponse struct {
	Message string          `json:"message"`
	Images  []ImageResponse `json:"images"`
}

type BulkDeleteResponse struct {
	Message      string `json:"message"`
	DeletedCount int64  `json:"deletedCount"`
}

type StatsResponse struct {
	TotalImages   int64   `json:"totalImages"`
	TotalSize     int64   `json:"totalSize"`
	TotalSizeMB   float64 `json:"totalSizeMB"`
	RecentUploads int64   `json:"recentUploads"`
}
