package domain

import (
	"errors"
	"net/mail"
	"time"
)

var (
	ErrEmptyUsername = errors.New("username cannot be empty")
	ErrInvalidEmail  = errors.New("invalid email address")
)

// User is a subscriber. Authentication lives outside this module; a user
// here is only the owner of subscription edges and the recipient of alerts.
type User struct {
	ID         string     `json:"id"`
	Username   string     `json:"username"`
	Email      string     `json:"email,omitempty"`
	Vendors    []Vendor   `json:"vendors,omitempty"`
	Products   []Product  `json:"products,omitempty"`
	Categories []Category `json:"categories,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NewUser creates a new validated user instance.
func NewUser(id, username, email string) (*User, error) {
	u := &User{
		ID:        id,
		Username:  username,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

// Validate ensures the user entity is in a valid state.
func (u *User) Validate() error {
	if u.Username == "" {
		return ErrEmptyUsername
	}
	if u.Email != "" {
		if _, err := mail.ParseAddress(u.Email); err != nil {
			return ErrInvalidEmail
		}
	}
	return nil
}

// FollowsCategory reports whether the user follows the given category.
func (u *User) FollowsCategory(categoryID string) bool {
	for _, c := range u.Categories {
		if c.ID == categoryID {
			return true
		}
	}
	return false
}

// HasSubscriptions reports whether the user follows anything at all.
func (u *User) HasSubscriptions() bool {
	return len(u.Vendors) > 0 || len(u.Products) > 0 || len(u.Categories) > 0
}
