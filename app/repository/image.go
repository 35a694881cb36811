package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-gallery/app/entity"
)

const (
	MaxPageSize     = 50
	DefaultPageSize = 10
)

// ClampPageSize bounds a client-requested page size to [1, MaxPageSize].
// A non-positive value falls back to the default.
func ClampPageSize(size int) int {
	if size <= 0 {
		return DefaultPageSize
	}
	if size > MaxPageSize {
		return MaxPageSize
	}
	return size
}

type OrderPair struct {
	ID    string
	Order int
}

type ImageStats struct {
	TotalImages   int64
	TotalBytes    int64
	RecentUploads int64
}

type ImageRepository struct {
	db *sql.DB
}

func NewImageRepository(db *sql.DB) *ImageRepository {
	return &ImageRepository{db: db}
}

func (r *ImageRepository) Create(ctx context.Context, image *entity.Image) error {
	query := `
		INSERT INTO images (id, user_id, title, public_id, url, thumbnail_url, format, bytes, width, height, display_order, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		image.ID,
		image.UserID,
		image.Title,
		image.PublicID,
		image.URL,
		image.ThumbnailURL,
		image.Format,
		image.Bytes,
		image.Width,
		image.Height,
		image.DisplayOrder,
		image.CreatedAt,
		image.UpdatedAt,
	)
	return err
}

func (r *ImageRepository) FindByID(ctx context.Context, id string) (*entity.Image, error) {
	query := `
		SELECT id, user_id, title, public_id, url, thumbnail_url, format, bytes, width, height, display_order, created_at, updated_at
		FROM images WHERE id = ?
	`
	image := &entity.Image{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(scanTargets(image)...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return image, nil
}

// FindByOwner pages through a user's images ordered by display_order with
// created_at descending as the tie-break, so equal orders still list stably.
func (r *ImageRepository) FindByOwner(ctx context.Context, userID uint64, page, pageSize int) ([]*entity.Image, int64, error) {
	if page < 1 {
		page = 1
	}
	pageSize = ClampPageSize(pageSize)
	offset := (page - 1) * pageSize

	countQuery := `SELECT COUNT(*) FROM images WHERE user_id = ?`
	var total int64
	if err := r.db.QueryRowContext(ctx, countQuery, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, user_id, title, public_id, url, thumbnail_url, format, bytes, width, height, display_order, created_at, updated_at
		FROM images WHERE user_id = ?
		ORDER BY display_order ASC, created_at DESC
		LIMIT ? OFFSET ?
	`
	rows, err := r.db.QueryContext(ctx, query, userID, pageSize, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var images []*entity.Image
	for rows.Next() {
		image := &entity.Image{}
		if err := rows.Scan(scanTargets(image)...); err != nil {
			return nil, 0, err
		}
		images = append(images, image)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return images, total, nil
}

func (r *ImageRepository) FindHighestOrder(ctx context.Context, userID uint64) (*entity.Image, error) {
	query := `
		SELECT id, user_id, title, public_id, url, thumbnail_url, format, bytes, width, height, display_order, created_at, updated_at
		FROM images WHERE user_id = ?
		ORDER BY display_order DESC LIMIT 1
	`
	image := &entity.Image{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(scanTargets(image)...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return image, nil
}

func (r *ImageRepository) FindOwnedByIDs(ctx context.Context, userID uint64, ids []string) ([]*entity.Image, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, user_id, title, public_id, url, thumbnail_url, format, bytes, width, height, display_order, created_at, updated_at
		FROM images WHERE user_id = ? AND id IN (` + placeholders(len(ids)) + `)`

	args := make([]any, 0, len(ids)+1)
	args = append(args, userID)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []*entity.Image
	for rows.Next() {
		image := &entity.Image{}
		if err := rows.Scan(scanTargets(image)...); err != nil {
			return nil, err
		}
		images = append(images, image)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return images, nil
}

func (r *ImageRepository) Update(ctx context.Context, image *entity.Image) error {
	query := `
		UPDATE images SET
			title = ?,
			public_id = ?,
			url = ?,
			thumbnail_url = ?,
			format = ?,
			bytes = ?,
			width = ?,
			height = ?,
			display_order = ?,
			updated_at = ?
		WHERE id = ?
	`
	image.UpdatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, query,
		image.Title,
		image.PublicID,
		image.URL,
		image.ThumbnailURL,
		image.Format,
		image.Bytes,
		image.Width,
		image.Height,
		image.DisplayOrder,
		image.UpdatedAt,
		image.ID,
	)
	return err
}

// UpdateOrders applies all pairs in one statement so concurrent mutations see
// either none or all of the reorder.
func (r *ImageRepository) UpdateOrders(ctx context.Context, pairs []OrderPair) error {
	if len(pairs) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("UPDATE images SET display_order = CASE id")
	args := make([]any, 0, len(pairs)*3+1)
	for _, pair := range pairs {
		sb.WriteString(" WHEN ? THEN ?")
		args = append(args, pair.ID, pair.Order)
	}
	sb.WriteString(" END, updated_at = ? WHERE id IN (")
	sb.WriteString(placeholders(len(pairs)))
	sb.WriteString(")")

	args = append(args, time.Now())
	for _, pair := range pairs {
		args = append(args, pair.ID)
	}

	_, err := r.db.ExecContext(ctx, sb.String(), args...)
	return err
}

func (r *ImageRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM images WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// DeleteManyOwned deletes only rows owned by userID and reports how many went.
func (r *ImageRepository) DeleteManyOwned(ctx context.Context, ids []string, userID uint64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := `DELETE FROM images WHERE user_id = ? AND id IN (` + placeholders(len(ids)) + `)`

	args := make([]any, 0, len(ids)+1)
	args = append(args, userID)
	for _, id := range ids {
		args = append(args, id)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *ImageRepository) AggregateStats(ctx context.Context, userID uint64) (*ImageStats, error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(bytes), 0), COALESCE(SUM(created_at >= ?), 0)
		FROM images WHERE user_id = ?
	`
	cutoff := time.Now().AddDate(0, 0, -7)

	stats := &ImageStats{}
	err := r.db.QueryRowContext(ctx, query, cutoff, userID).Scan(
		&stats.TotalImages,
		&stats.TotalBytes,
		&stats.RecentUploads,
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func scanTargets(image *entity.Image) []any {
	return []any{
		&image.ID,
		&image.UserID,
		&image.Title,
		&image.PublicID,
		&image.URL,
		&image.ThumbnailURL,
		&image.Format,
		&image.Bytes,
		&image.Width,
		&image.Height,
		&image.DisplayOrder,
		&image.CreatedAt,
		&image.UpdatedAt,
	}
}
