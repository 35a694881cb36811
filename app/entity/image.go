package entity

import (
	"database/sql"
	"time"
)

// Image is the metadata record for one stored blob. PublicID is the key the
// object store assigned to the blob; at most one row references a given key.
type Image struct {
	ID           string
	UserID       uint64
	Title        string
	PublicID     string
	URL          string
	ThumbnailURL sql.NullString
	Format       string
	Bytes        int64
	Width        sql.NullInt64
	Height       sql.NullInt64
	DisplayOrder int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
