package models

import "time"

// User represents an account of the marketplace.
type User struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Email        string    `json:"email" gorm:"uniqueIndex;type:varchar(255);not null"`
	Username     string    `json:"username" gorm:"type:varchar(16);not null"`
	Password     string    `json:"-" gorm:"type:varchar(255);not null"` // bcrypt hash, never serialized
	Avatar       string    `json:"avatar,omitempty" gorm:"type:varchar(255)"`
	DateCreation time.Time `json:"date_creation" gorm:"autoCreateTime"`
}

// UserSummary is the projection returned by the user listing.
type UserSummary struct {
	ID           uint      `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	DateCreation time.Time `json:"date_creation"`
}

// Summary projects u onto the listing fields.
func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Email: u.Email, Username: u.Username, DateCreation: u.DateCreation}
}

// UserUpdate carries the fields of a partial user update. Nil means "leave as is".
type UserUpdate struct {
	Email    *string `json:"email" validate:"omitempty,emailshape"`
	Password *string `json:"password" validate:"omitempty,password"`
	Username *string `json:"username" validate:"omitempty,username"`
	Avatar   *string `json:"avatar" validate:"omitempty,max=255"`
}

// UserCreate is the registration payload.
type UserCreate struct {
	Email    string `json:"email" validate:"required,emailshape"`
	Password string `json:"password" validate:"required,password"`
	Username string `json:"username" validate:"required,username"`
	Avatar   string `json:"avatar" validate:"omitempty,max=255"`
}

// Credentials is the login payload.
type Credentials struct {
	Email    string `json:"email" validate:"required,emailshape"`
	Password string `json:"password" validate:"required,password"`
}
