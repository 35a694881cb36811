package controller_test

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/vibast-solutions/ms-go-gallery/app/controller"
	"github.com/vibast-solutions/ms-go-gallery/app/entity"
	"github.com/vibast-solutions/ms-go-gallery/app/repository"
	"github.com/vibast-solutions/ms-go-gallery/app/service"
	"github.com/vibast-solutions/ms-go-gallery/app/storage"
	"github.com/vibast-solutions/ms-go-gallery/config"

	"github.com/labstack/echo/v4"
)

type memoryImageRepo struct {
	images map[string]*entity.Image
}

func newMemoryImageRepo() *memoryImageRepo {
	return &memoryImageRepo{images: map[string]*entity.Image{}}
}

func (r *memoryImageRepo) Create(_ context.Context, image *entity.Image) error {
	clone := *image
	r.images[image.ID] = &clone
	return nil
}

func (r *memoryImageRepo) FindByID(_ context.Context, id string) (*entity.Image, error) {
	image, ok := r.images[id]
	if !ok {
		return nil, nil
	}
	clone := *image
	return &clone, nil
}

func (r *memoryImageRepo) FindByOwner(_ context.Context, userID uint64, page, pageSize int) ([]*entity.Image, int64, error) {
	var owned []*entity.Image
	for _, image := range r.images {
		if image.UserID == userID {
			clone := *image
			owned = append(owned, &clone)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		return owned[i].DisplayOrder < owned[j].DisplayOrder
	})
	total := int64(len(owned))
	start := (page - 1) * pageSize
	if start > len(owned) {
		start = len(owned)
	}
	end := start + pageSize
	if end > len(owned) {
		end = len(owned)
	}
	return owned[start:end], total, nil
}

func (r *memoryImageRepo) FindHighestOrder(_ context.Context, userID uint64) (*entity.Image, error) {
	var highest *entity.Image
	for _, image := range r.images {
		if image.UserID != userID {
			continue
		}
		if highest == nil || image.DisplayOrder > highest.DisplayOrder {
			clone := *image
			highest = &clone
		}
	}
	return highest, nil
}

func (r *memoryImageRepo) FindOwnedByIDs(_ context.Context, userID uint64, ids []string) ([]*entity.Image, error) {
	var owned []*entity.Image
	for _, id := range ids {
		if image, ok := r.images[id]; ok && image.UserID == userID {
			clone := *image
			owned = append(owned, &clone)
		}
	}
	return owned, nil
}

func (r *memoryImageRepo) Update(_ context.Context, image *entity.Image) error {
	clone := *image
	r.images[image.ID] = &clone
	return nil
}

func (r *memoryImageRepo) UpdateOrders(_ context.Context, pairs []repository.OrderPair) error {
	for _, pair := range pairs {
		if image, ok := r.images[pair.ID]; ok {
			image.DisplayOrder = pair.Order
		}
	}
	return nil
}

func (r *memoryImageRepo) Delete(_ context.Context, id string) error {
	delete(r.images, id)
	return nil
}

func (r *memoryImageRepo) DeleteManyOwned(_ context.Context, ids []string, userID uint64) (int64, error) {
	var deleted int64
	for _, id := range ids {
		if image, ok := r.images[id]; ok && image.UserID == userID {
			delete(r.images, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *memoryImageRepo) AggregateStats(_ context.Context, userID uint64) (*repository.ImageStats, error) {
	stats := &repository.ImageStats{}
	for _, image := range r.images {
		if image.UserID == userID {
			stats.TotalImages++
			stats.TotalBytes += image.Bytes
			stats.RecentUploads++
		}
	}
	return stats, nil
}

type memoryObjectStore struct {
	seq     int
	deleted []string
}

func (s *memoryObjectStore) Store(_ context.Context, upload *storage.Upload) (*storage.StoredObject, error) {
	s.seq++
	publicID := fmt.Sprintf("blob-%d", s.seq)
	return &storage.StoredObject{
		PublicID:     publicID,
		URL:          "https://cdn.example.com/" + publicID,
		ThumbnailURL: "https://cdn.example.com/" + publicID + "?w=300&h=300&fit=cover&fmt=webp",
		Format:       "jpg",
		Bytes:        upload.Size,
		Width:        800,
		Height:       600,
	}, nil
}

func (s *memoryObjectStore) Delete(_ context.Context, publicID string) error {
	s.deleted = append(s.deleted, publicID)
	return nil
}

func newImageController() (*controller.ImageController, *service.ImageService, *memoryImageRepo) {
	repo := newMemoryImageRepo()
	imageService := service.NewImageService(repo, &memoryObjectStore{}, config.UploadPolicy{
		MaxBytes:     5 * 1024 * 1024,
		AllowedMIMEs: []string{"image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp"},
	})
	return controller.NewImageController(imageService), imageService, repo
}

func seedImage(t *testing.T, images *service.ImageService, userID uint64, title string) *entity.Image {
	t.Helper()

	image, err := images.UploadImage(context.Background(), userID, &storage.Upload{
		Reader:      strings.NewReader("fake image bytes"),
		ContentType: "image/jpeg",
		Size:        16,
		Filename:    "photo.jpg",
	}, title)
	if err != nil {
		t.Fatalf("seed upload failed: %v", err)
	}
	return image
}

func newMultipartRequest(t *testing.T, target string, files map[string][]string, fields map[string][]string) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for field, names := range files {
		for _, name := range names {
			header := make(map[string][]string)
			header["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name=%q; filename=%q`, field, name)}
			header["Content-Type"] = []string{"image/jpeg"}
			part, err := writer.CreatePart(header)
			if err != nil {
				t.Fatalf("failed to create part: %v", err)
			}
			if _, err := part.Write([]byte("fake image bytes")); err != nil {
				t.Fatalf("failed to write part: %v", err)
			}
		}
	}
	for field, values := range fields {
		for _, value := range values {
			if err := writer.WriteField(field, value); err != nil {
				t.Fatalf("failed to write field: %v", err)
			}
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	return req, httptest.NewRecorder()
}

func authedContext(req *http.Request, rec *httptest.ResponseRecorder, userID uint64) echo.Context {
	ctx := echo.New().NewContext(req, rec)
	ctx.Set("user_id", userID)
	return ctx
}

func TestImageUpload_Success(t *testing.T) {
	imageController, _, repo := newImageController()

	req, rec := newMultipartRequest(t, "/images/upload",
		map[string][]string{"image": {"photo.jpg"}},
		map[string][]string{"title": {"My photo"}})
	ctx := authedContext(req, rec, 1)

	if err := imageController.Upload(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body: %s", rec.Code, rec.Body.String())
	}
	if len(repo.images) != 1 {
		t.Fatalf("expected 1 stored image, got %d", len(repo.images))
	}
	if !strings.Contains(rec.Body.String(), `"title":"My photo"`) {
		t.Fatalf("expected title in response, got %s", rec.Body.String())
	}
}

func TestImageUpload_MissingFile(t *testing.T) {
	imageController, _, _ := newImageController()

	req, rec := newMultipartRequest(t, "/images/upload",
		nil,
		map[string][]string{"title": {"My photo"}})
	ctx := authedContext(req, rec, 1)

	if err := imageController.Upload(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestImageUpload_MissingTitle(t *testing.T) {
	imageController, _, repo := newImageController()

	req, rec := newMultipartRequest(t, "/images/upload",
		map[string][]string{"image": {"photo.jpg"}},
		nil)
	ctx := authedContext(req, rec, 1)

	if err := imageController.Upload(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if len(repo.images) != 0 {
		t.Fatal("nothing may be stored for an invalid request")
	}
}

func TestImageBulkUpload_Success(t *testing.T) {
	imageController, _, repo := newImageController()

	req, rec := newMultipartRequest(t, "/images/bulk-upload",
		map[string][]string{"images": {"a.jpg", "b.jpg"}},
		map[string][]string{"titles": {"A", "B"}})
	ctx := authedContext(req, rec, 1)

	if err := imageController.BulkUpload(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body: %s", rec.Code, rec.Body.String())
	}
	if len(repo.images) != 2 {
		t.Fatalf("expected 2 stored images, got %d", len(repo.images))
	}
}

func TestImageBulkUpload_TitleCountMismatch(t *testing.T) {
	imageController, _, repo := newImageController()

	req, rec := newMultipartRequest(t, "/images/bulk-upload",
		map[string][]string{"images": {"a.jpg", "b.jpg"}},
		map[string][]string{"titles": {"Only one"}})
	ctx := authedContext(req, rec, 1)

	if err := imageController.BulkUpload(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if len(repo.images) != 0 {
		t.Fatal("nothing may be stored for a mismatched batch")
	}
}

func TestImageList_Success(t *testing.T) {
	imageController, imageService, _ := newImageController()

	seedImage(t, imageService, 1, "First")
	seedImage(t, imageService, 1, "Second")
	seedImage(t, imageService, 2, "Foreign")

	req := httptest.NewRequest(http.MethodGet, "/images?page=1&limit=10", nil)
	rec := httptest.NewRecorder()
	ctx := authedContext(req, rec, 1)

	if err := imageController.List(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"total":2`) {
		t.Fatalf("expected total 2 for own images only, got %s", rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "Foreign") {
		t.Fatal("another user's image leaked into the listing")
	}
}

func TestImageDelete_NotFound(t *testing.T) {
	imageController, _, _ := newImageController()

	req := httptest.NewRequest(http.MethodDelete, "/images/missing", nil)
	rec := httptest.NewRecorder()
	ctx := authedContext(req, rec, 1)
	ctx.SetParamNames("id")
	ctx.SetParamValues("missing")

	if err := imageController.Delete(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}

func TestImageDelete_ForeignImage(t *testing.T) {
	imageController, imageService, repo := newImageController()

	image := seedImage(t, imageService, 2, "Theirs")

	req := httptest.NewRequest(http.MethodDelete, "/images/"+image.ID, nil)
	rec := httptest.NewRecorder()
	ctx := authedContext(req, rec, 1)
	ctx.SetParamNames("id")
	ctx.SetParamValues(image.ID)

	if err := imageController.Delete(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for foreign image, got %d", rec.Code)
	}
	if _, ok := repo.images[image.ID]; !ok {
		t.Fatal("foreign image must survive")
	}
}

func TestImageBulkDelete_Success(t *testing.T) {
	imageController, imageService, repo := newImageController()

	a := seedImage(t, imageService, 1, "A")
	b := seedImage(t, imageService, 1, "B")

	req, rec := newJSONRequest(t, http.MethodPost, "/images/bulk-delete", map[string][]string{
		"imageIds": {a.ID, b.ID},
	})
	ctx := authedContext(req, rec, 1)

	if err := imageController.BulkDelete(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"deletedCount":2`) {
		t.Fatalf("expected deletedCount 2, got %s", rec.Body.String())
	}
	if len(repo.images) != 0 {
		t.Fatalf("expected empty gallery, got %d images", len(repo.images))
	}
}

func TestImageBulkDelete_EmptyBody(t *testing.T) {
	imageController, _, _ := newImageController()

	req, rec := newJSONRequest(t, http.MethodPost, "/images/bulk-delete", map[string][]string{
		"imageIds": {},
	})
	ctx := authedContext(req, rec, 1)

	if err := imageController.BulkDelete(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestImageRearrange_Success(t *testing.T) {
	imageController, imageService, repo := newImageController()

	a := seedImage(t, imageService, 1, "A")
	b := seedImage(t, imageService, 1, "B")

	req, rec := newJSONRequest(t, http.MethodPut, "/images/rearrange/order", map[string][]string{
		"imageOrder": {b.ID, a.ID},
	})
	ctx := authedContext(req, rec, 1)

	if err := imageController.Rearrange(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body: %s", rec.Code, rec.Body.String())
	}
	if repo.images[b.ID].DisplayOrder != 0 || repo.images[a.ID].DisplayOrder != 1 {
		t.Fatalf("unexpected orders: a=%d b=%d", repo.images[a.ID].DisplayOrder, repo.images[b.ID].DisplayOrder)
	}
}

func TestImageRearrange_ForeignID(t *testing.T) {
	imageController, imageService, _ := newImageController()

	mine := seedImage(t, imageService, 1, "Mine")
	theirs := seedImage(t, imageService, 2, "Theirs")

	req, rec := newJSONRequest(t, http.MethodPut, "/images/rearrange/order", map[string][]string{
		"imageOrder": {theirs.ID, mine.ID},
	})
	ctx := authedContext(req, rec, 1)

	if err := imageController.Rearrange(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rec.Code)
	}
}

func TestImageUpdate_TitleOnly(t *testing.T) {
	imageController, imageService, repo := newImageController()

	image := seedImage(t, imageService, 1, "Before")

	req, rec := newMultipartRequest(t, "/images/"+image.ID,
		nil,
		map[string][]string{"title": {"After"}})
	req.Method = http.MethodPut
	ctx := authedContext(req, rec, 1)
	ctx.SetParamNames("id")
	ctx.SetParamValues(image.ID)

	if err := imageController.Update(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body: %s", rec.Code, rec.Body.String())
	}
	if repo.images[image.ID].Title != "After" {
		t.Fatalf("expected updated title, got %s", repo.images[image.ID].Title)
	}
}

func TestImageStats_Success(t *testing.T) {
	imageController, imageService, _ := newImageController()

	seedImage(t, imageService, 1, "A")
	seedImage(t, imageService, 1, "B")

	req := httptest.NewRequest(http.MethodGet, "/images/stats", nil)
	rec := httptest.NewRecorder()
	ctx := authedContext(req, rec, 1)

	if err := imageController.Stats(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"totalImages":2`) {
		t.Fatalf("expected totalImages 2, got %s", rec.Body.String())
	}
}
