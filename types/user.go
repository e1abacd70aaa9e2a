package types

import "time"

// User represents an account in the system.
// It contains identity, credential, and email-confirmation metadata.
type User struct {
	// ID is the unique identifier of the user (a UUID string).
	ID string `json:"id" db:"id"`

	// Name is the user's display or full name.
	Name string `json:"name" db:"name"`

	// Email is the user's normalized (trimmed, lowercase) email address.
	// It is unique across all users and doubles as the login identifier.
	Email string `json:"email" db:"email"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// ConfirmToken is the single-use email confirmation token, if one is pending.
	ConfirmToken *string `json:"-" db:"confirm_token"`

	// ConfirmTokenExpires is the instant after which ConfirmToken is rejected.
	ConfirmTokenExpires *time.Time `json:"-" db:"confirm_token_expires"`

	// Confirmed reports whether the user has confirmed their email address.
	Confirmed bool `json:"confirmed" db:"confirmed"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// UserSafe is the projection of a User that may leave the API boundary.
type UserSafe struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Safe returns the externally visible projection of the user.
func (u User) Safe() UserSafe {
	return UserSafe{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
