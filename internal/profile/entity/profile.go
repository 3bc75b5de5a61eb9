package entity

import "time"

// GenderNone in an update clears the stored gender.
const GenderNone = "none"

// Profile joins auth_users names with the user_profile row.
type Profile struct {
	Birthday    *time.Time `db:"birthday" json:"birthday"`
	Bio         *string    `db:"bio" json:"bio"`
	LinkedInURL *string    `db:"linked_in_url" json:"linkedInUrl"`
	FirstName   string     `db:"first_name" json:"firstName"`
	LastName    string     `db:"last_name" json:"lastName"`
	MiddleName  *string    `db:"middle_name" json:"middleName"`
	IsVerified  bool       `db:"is_verified" json:"isVerified"`
	Gender      *string    `db:"gender" json:"gender"`
}

// Update carries the fields a user may change. Nil means unchanged.
type Update struct {
	FirstName   *string `json:"firstName"`
	LastName    *string `json:"lastName"`
	Bio         *string `json:"bio"`
	LinkedInURL *string `json:"linkedInUrl"`
	Gender      *string `json:"gender"`
}

// Empty reports whether u changes nothing.
func (u Update) Empty() bool {
	return u.FirstName == nil && u.LastName == nil && u.Bio == nil && u.LinkedInURL == nil && u.Gender == nil
}

// TouchesNames reports whether u changes auth_users.
func (u Update) TouchesNames() bool { return u.FirstName != nil || u.LastName != nil }

// TouchesProfile reports whether u changes user_profile.
func (u Update) TouchesProfile() bool { return u.Bio != nil || u.LinkedInURL != nil || u.Gender != nil }
