package entity

import (
	"time"

	"github.com/lib/pq"
)

// Login providers recorded in Account.LastLoginProvider and auth_oauth.provider.
const (
	ProviderLocal    = "local"
	ProviderFacebook = "facebook"
	ProviderGoogle   = "google"
	ProviderLinkedIn = "linkedin"
)

// Account is the authentication root stored in auth_accounts.
type Account struct {
	ID                     int64      `db:"id"`
	Email                  string     `db:"email"`
	MobilePhone            *string    `db:"mobile_phone"`
	PasswordHash           string     `db:"password_hash"`
	Salt                   string     `db:"salt"`
	HashCheck              string     `db:"hash_check"`
	IsEmailVerified        bool       `db:"is_email_verified"`
	IsMobileVerified       bool       `db:"is_mobile_verified"`
	IsTwoFaEnabled         bool       `db:"is_two_fa_enabled"`
	TwoFaSecret            *string    `db:"two_fa_secret"`
	TwoFaPendingSecret     *string    `db:"two_fa_pending_secret"`
	TwoFaLastStep          *int64     `db:"two_fa_last_step"`
	TwoFaCode              *string    `db:"two_fa_code"`
	TwoFaCodeAt            *time.Time `db:"two_fa_code_at"`
	IsBanned               bool       `db:"is_banned"`
	IsDeleted              bool       `db:"is_deleted"`
	DeletedAt              *time.Time `db:"deleted_at"`
	RestoredAt             *time.Time `db:"restored_at"`
	AccountRestoreCode     *string    `db:"account_restore_code"`
	PasswordChangeRequired bool       `db:"password_change_required"`
	PasswordChangedAt      *time.Time `db:"password_changed_at"`
	PasswordResetCode      *string    `db:"password_reset_code"`
	PasswordResetAt        *time.Time `db:"password_reset_at"`
	EmailVerificationCode  *string    `db:"email_verification_code"`
	LastLoginAt            *time.Time `db:"last_login_at"`
	LastLoginProvider      *string    `db:"last_login_provider"`
	IsCreatedLocally       bool       `db:"is_created_locally"`
	CreatedAt              time.Time  `db:"created_at"`
}

// User is the profile identity owned 1:1 by an Account.
type User struct {
	ID         int64   `db:"id"`
	AccountID  int64   `db:"account_id"`
	FirstName  string  `db:"first_name"`
	LastName   string  `db:"last_name"`
	MiddleName *string `db:"middle_name"`
	IsVerified bool    `db:"is_verified"`
}

// Principal is an account joined with its user id; what login flows need.
type Principal struct {
	Account
	UserID int64 `db:"user_id"`
}

// UserInfo is the header projection returned after login and by profile calls.
type UserInfo struct {
	Email             string         `db:"email" json:"email"`
	IsEmailVerified   bool           `db:"is_email_verified" json:"isEmailVerified"`
	IsTwoFaEnabled    bool           `db:"is_two_fa_enabled" json:"isTwoFaEnabled"`
	LastLoginAt       *time.Time     `db:"last_login_at" json:"lastLoginAt"`
	LastLoginProvider *string        `db:"last_login_provider" json:"lastLoginProvider"`
	FirstName         string         `db:"first_name" json:"firstName"`
	LastName          string         `db:"last_name" json:"lastName"`
	Roles             pq.StringArray `db:"roles" json:"roles"`
	ImpersonationMode bool           `db:"-" json:"impersonationMode,omitempty"`
}

// UserListItem is one row of the admin user listing.
type UserListItem struct {
	ID int64 `db:"id" json:"id"`
	UserInfo
}

// UserDetailed is the admin detail view of one account.
type UserDetailed struct {
	AccountID              int64 `db:"account_id" json:"accountId"`
	UserID                 int64 `db:"user_id" json:"userId"`
	IsBanned               bool  `db:"is_banned" json:"isBanned"`
	PasswordChangeRequired bool  `db:"password_change_required" json:"passwordChangeRequired"`
	UserInfo
}

// NewAccount is the input for creating Account, User and profile rows together.
type NewAccount struct {
	Email                 string
	MobilePhone           *string
	PasswordHash          string
	Salt                  string
	HashCheck             string
	EmailVerificationCode *string
	FirstName             string
	LastName              string
	IsCreatedLocally      bool
	IsEmailVerified       bool
	Provider              string
}
