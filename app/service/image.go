package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-gallery/app/entity"
	"github.com/vibast-solutions/ms-go-gallery/app/repository"
	"github.com/vibast-solutions/ms-go-gallery/app/storage"
	"github.com/vibast-solutions/ms-go-gallery/config"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrImageNotFound      = errors.New("image not found")
	ErrNoImagesFound      = errors.New("no images found")
	ErrForbiddenReorder   = errors.New("some images do not belong to user")
	ErrTitleCountMismatch = errors.New("title count must match file count")
	ErrTitleRequired      = errors.New("title is required")
	ErrTitleTooLong       = errors.New("title cannot be more than 100 characters")
	ErrFileTooLarge       = errors.New("file size exceeds limit")
	ErrUnsupportedFormat  = errors.New("invalid file type")
)

const maxTitleLength = 100

type imageRepository interface {
	Create(ctx context.Context, image *entity.Image) error
	FindByID(ctx context.Context, id string) (*entity.Image, error)
	FindByOwner(ctx context.Context, userID uint64, page, pageSize int) ([]*entity.Image, int64, error)
	FindHighestOrder(ctx context.Context, userID uint64) (*entity.Image, error)
	FindOwnedByIDs(ctx context.Context, userID uint64, ids []string) ([]*entity.Image, error)
	Update(ctx context.Context, image *entity.Image) error
	UpdateOrders(ctx context.Context, pairs []repository.OrderPair) error
	Delete(ctx context.Context, id string) error
	DeleteManyOwned(ctx context.Context, ids []string, userID uint64) (int64, error)
	AggregateStats(ctx context.Context, userID uint64) (*repository.ImageStats, error)
}

type objectStore interface {
	Store(ctx context.Context, upload *storage.Upload) (*storage.StoredObject, error)
	Delete(ctx context.Context, publicID string) error
}

type ImageList struct {
	Images     []*entity.Image
	Total      int64
	TotalPages int
	HasMore    bool
}

type ImageStats struct {
	TotalImages   int64
	TotalSize     int64
	TotalSizeMB   float64
	RecentUploads int64
}

// ImageService orchestrates the image lifecycle across the metadata store and
// the blob backend, enforcing ownership and display ordering.
type ImageService struct {
	imageRepo imageRepository
	store     objectStore
	policy    config.UploadPolicy
}

func NewImageService(imageRepo imageRepository, store objectStore, policy config.UploadPolicy) *ImageService {
	return &ImageService{
		imageRepo: imageRepo,
		store:     store,
		policy:    policy,
	}
}

func (s *ImageService) ListImages(ctx context.Context, userID uint64, page, pageSize int) (*ImageList, error) {
	if page < 1 {
		page = 1
	}
	pageSize = repository.ClampPageSize(pageSize)

	images, total, err := s.imageRepo.FindByOwner(ctx, userID, page, pageSize)
	if err != nil {
		return nil, err
	}

	totalPages := int(math.Ceil(float64(total) / float64(pageSize)))

	return &ImageList{
		Images:     images,
		Total:      total,
		TotalPages: totalPages,
		HasMore:    int64(page*pageSize) < total,
	}, nil
}

// UploadImage writes the blob first; the metadata row is only created once the
// blob exists, so a row can never point at nothing. If the row insert fails
// the freshly stored blob is released best-effort.
func (s *ImageService) UploadImage(ctx context.Context, userID uint64, upload *storage.Upload, title string) (*entity.Image, error) {
	title, err := s.validateTitle(title)
	if err != nil {
		return nil, err
	}
	if err := s.validateUpload(upload); err != nil {
		return nil, err
	}

	stored, err := s.store.Store(ctx, upload)
	if err != nil {
		return nil, err
	}

	order, err := s.nextOrder(ctx, userID)
	if err != nil {
		s.releaseBlob(ctx, stored.PublicID)
		return nil, err
	}

	image := newImage(userID, title, stored, order)
	if err := s.imageRepo.Create(ctx, image); err != nil {
		s.releaseBlob(ctx, stored.PublicID)
		return nil, err
	}

	return image, nil
}

// BulkUploadImages validates everything before the first storage call; after
// that each item commits independently, so a mid-batch failure leaves the
// earlier items in place.
func (s *ImageService) BulkUploadImages(ctx context.Context, userID uint64, uploads []*storage.Upload, titles []string) ([]*entity.Image, error) {
	if len(titles) != len(uploads) {
		return nil, ErrTitleCountMismatch
	}

	cleanTitles := make([]string, len(titles))
	for i, title := range titles {
		clean, err := s.validateTitle(title)
		if err != nil {
			return nil, fmt.Errorf("file %d: %w", i+1, err)
		}
		cleanTitles[i] = clean
	}
	for i, upload := range uploads {
		if err := s.validateUpload(upload); err != nil {
			return nil, fmt.Errorf("file %d: %w", i+1, err)
		}
	}

	order, err := s.nextOrder(ctx, userID)
	if err != nil {
		return nil, err
	}

	images := make([]*entity.Image, 0, len(uploads))
	for i, upload := range uploads {
		stored, err := s.store.Store(ctx, upload)
		if err != nil {
			return images, err
		}

		image := newImage(userID, cleanTitles[i], stored, order)
		if err := s.imageRepo.Create(ctx, image); err != nil {
			s.releaseBlob(ctx, stored.PublicID)
			return images, err
		}

		images = append(images, image)
		order++
	}

	return images, nil
}

// UpdateImage replaces the title and/or the blob. The new blob must be stored
// and the row updated before the old blob is released; releasing is
// best-effort and never fails the update.
func (s *ImageService) UpdateImage(ctx context.Context, id string, userID uint64, title string, upload *storage.Upload) (*entity.Image, error) {
	image, err := s.findOwned(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if title != "" {
		clean, err := s.validateTitle(title)
		if err != nil {
			return nil, err
		}
		image.Title = clean
	}

	oldPublicID := ""
	if upload != nil {
		if err := s.validateUpload(upload); err != nil {
			return nil, err
		}

		stored, err := s.store.Store(ctx, upload)
		if err != nil {
			return nil, err
		}

		oldPublicID = image.PublicID
		applyStored(image, stored)

		if err := s.imageRepo.Update(ctx, image); err != nil {
			s.releaseBlob(ctx, stored.PublicID)
			return nil, err
		}
	} else {
		if err := s.imageRepo.Update(ctx, image); err != nil {
			return nil, err
		}
	}

	if oldPublicID != "" {
		s.releaseBlob(ctx, oldPublicID)
	}

	return image, nil
}

// DeleteImage removes the row first, then releases the blob best-effort; a
// storage failure never resurrects the metadata.
func (s *ImageService) DeleteImage(ctx context.Context, id string, userID uint64) error {
	image, err := s.findOwned(ctx, id, userID)
	if err != nil {
		return err
	}

	if err := s.imageRepo.Delete(ctx, image.ID); err != nil {
		return err
	}

	s.releaseBlob(ctx, image.PublicID)
	return nil
}

// BulkDeleteImages silently drops ids that are missing or foreign; a batch
// selection in the UI routinely mixes in stale entries. Only a fully empty
// owned subset is an error.
func (s *ImageService) BulkDeleteImages(ctx context.Context, ids []string, userID uint64) (int64, error) {
	owned, err := s.imageRepo.FindOwnedByIDs(ctx, userID, ids)
	if err != nil {
		return 0, err
	}
	if len(owned) == 0 {
		return 0, ErrNoImagesFound
	}

	deleted, err := s.imageRepo.DeleteManyOwned(ctx, ids, userID)
	if err != nil {
		return 0, err
	}

	for _, image := range owned {
		s.releaseBlob(ctx, image.PublicID)
	}

	return deleted, nil
}

// RearrangeImages assigns order = position for every id in list order. One
// foreign or unknown id aborts the whole operation with nothing applied.
func (s *ImageService) RearrangeImages(ctx context.Context, userID uint64, orderedIDs []string) error {
	if len(orderedIDs) == 0 {
		return nil
	}

	owned, err := s.imageRepo.FindOwnedByIDs(ctx, userID, orderedIDs)
	if err != nil {
		return err
	}
	if len(owned) != len(orderedIDs) {
		return ErrForbiddenReorder
	}

	pairs := make([]repository.OrderPair, len(orderedIDs))
	for i, id := range orderedIDs {
		pairs[i] = repository.OrderPair{ID: id, Order: i}
	}

	return s.imageRepo.UpdateOrders(ctx, pairs)
}

func (s *ImageService) GetImageStats(ctx context.Context, userID uint64) (*ImageStats, error) {
	stats, err := s.imageRepo.AggregateStats(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &ImageStats{
		TotalImages:   stats.TotalImages,
		TotalSize:     stats.TotalBytes,
		TotalSizeMB:   math.Round(float64(stats.TotalBytes)/(1024*1024)*100) / 100,
		RecentUploads: stats.RecentUploads,
	}, nil
}

// findOwned reports the same not-found error whether the image is missing or
// belongs to someone else.
func (s *ImageService) findOwned(ctx context.Context, id string, userID uint64) (*entity.Image, error) {
	image, err := s.imageRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if image == nil || image.UserID != userID {
		return nil, ErrImageNotFound
	}
	return image, nil
}

func (s *ImageService) nextOrder(ctx context.Context, userID uint64) (int, error) {
	highest, err := s.imageRepo.FindHighestOrder(ctx, userID)
	if err != nil {
		return 0, err
	}
	if highest == nil {
		return 0, nil
	}
	return highest.DisplayOrder + 1, nil
}

func (s *ImageService) validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", ErrTitleRequired
	}
	if len(title) > maxTitleLength {
		return "", ErrTitleTooLong
	}
	return title, nil
}

func (s *ImageService) validateUpload(upload *storage.Upload) error {
	if upload.Size > s.policy.MaxBytes {
		return ErrFileTooLarge
	}
	if !s.policy.AllowsMIME(upload.ContentType) {
		return ErrUnsupportedFormat
	}
	return nil
}

// releaseBlob is the best-effort half of every delete/replace path: failures
// are logged and swallowed so the enclosing operation still succeeds.
func (s *ImageService) releaseBlob(ctx context.Context, publicID string) {
	if err := s.store.Delete(ctx, publicID); err != nil {
		logrus.WithError(err).WithField("public_id", publicID).Warn("Failed to release stored blob")
	}
}

func newImage(userID uint64, title string, stored *storage.StoredObject, order int) *entity.Image {
	now := time.Now()
	return &entity.Image{
		ID:           uuid.New().String(),
		UserID:       userID,
		Title:        title,
		PublicID:     stored.PublicID,
		URL:          stored.URL,
		ThumbnailURL: sql.NullString{String: stored.ThumbnailURL, Valid: stored.ThumbnailURL != ""},
		Format:       stored.Format,
		Bytes:        stored.Bytes,
		Width:        sql.NullInt64{Int64: int64(stored.Width), Valid: stored.Width > 0},
		Height:       sql.NullInt64{Int64: int64(stored.Height), Valid: stored.Height > 0},
		DisplayOrder: order,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func applyStored(image *entity.Image, stored *storage.StoredObject) {
	image.PublicID = stored.PublicID
	image.URL = stored.URL
	image.ThumbnailURL = sql.NullString{String: stored.ThumbnailURL, Valid: stored.ThumbnailURL != ""}
	image.Format = stored.Format
	image.Bytes = stored.Bytes
	image.Width = sql.NullInt64{Int64: int64(stored.Width), Valid: stored.Width > 0}
	image.Height = sql.NullInt64{Int64: int64(stored.Height), Valid: stored.Height > 0}
}
