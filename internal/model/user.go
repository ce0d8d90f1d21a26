// Package model defines the core domain types.
//
// Users and Statuses are the two root entities. Follow and Mention edges are
// join records keyed by their two ids and have no identity of their own.
package model

import "time"

// User is an account created on first login through the external identity
// provider. Nickname is unique and never changes once assigned; it appears
// in URLs (/api/users/{nickname}) and as the @handle in status text.
type User struct {
	ID            string    `json:"id"`
	Nickname      string    `json:"nickname"`
	Email         string    `json:"email"`
	Identifier    string    `json:"-"` // provider reference, e.g. "github:583231"
	Provider      string    `json:"provider"`
	FormattedName string    `json:"formattedName"`
	PhotoURL      string    `json:"photoUrl"`
	Location      string    `json:"location"`
	Description   string    `json:"description"`
	APIPassword   string    `json:"-"` // bcrypt hash; empty until the user sets one
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ProfileUpdate carries the editable profile fields. A nil pointer leaves the
// stored value untouched. Nickname is deliberately absent.
type ProfileUpdate struct {
	Email         *string `json:"email"         validate:"omitempty,email,max=255"`
	FormattedName *string `json:"formattedName" validate:"omitempty,max=100"`
	PhotoURL      *string `json:"photoUrl"      validate:"omitempty,url,max=500"`
	Location      *string `json:"location"      validate:"omitempty,max=100"`
	Description   *string `json:"description"   validate:"omitempty,max=160"`
}
