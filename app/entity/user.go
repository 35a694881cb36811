package entity

import (
	"database/sql"
	"time"
)

type User struct {
	ID                    uint64
	UserName              string
	Email                 string
	PhoneNumber           string
	PasswordHash          string
	ResetTokenHash        sql.NullString
	ResetTokenExpiresAt   sql.NullTime
	RefreshToken          sql.NullString
	RefreshTokenExpiresAt sql.NullTime
	CreatedAt             time.Time
	UpdatedAt             time.Time
}
