// Package apperr defines the coded errors returned by the auth core.
// Each error carries a machine-readable code, a translation message key
// and the HTTP status it maps to.
package apperr

import (
	"fmt"
	"maps"
	"net/http"
)

// Kind groups codes into the error taxonomy.
type Kind int

const (
	KindAuthentication Kind = iota + 1
	KindAuthorization
	KindState
	KindConflict
	KindInput
	KindNotFound
	KindRateLimit
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindState:
		return "state"
	case KindConflict:
		return "conflict"
	case KindInput:
		return "input"
	case KindNotFound:
		return "not_found"
	case KindRateLimit:
		return "rate_limit"
	default:
		return "internal"
	}
}

// Error is an expected, user-facing failure.
type Error struct {
	Kind       Kind
	Code       string
	MessageKey string
	Status     int
	// ClearSession asks the transport to drop the session cookie.
	ClearSession bool
	Details      map[string]any
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.MessageKey)
}

// Is matches on Code so errors decorated with With still compare equal
// to the package-level values.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.MessageKey == e.MessageKey
}

// With returns a copy of e carrying an extra detail field.
func (e *Error) With(key string, value any) *Error {
	cp := *e
	cp.Details = maps.Clone(e.Details)
	if cp.Details == nil {
		cp.Details = map[string]any{}
	}
	cp.Details[key] = value
	return &cp
}

// WithMessage returns a copy of e with a different message key.
func (e *Error) WithMessage(key string) *Error {
	cp := *e
	cp.MessageKey = key
	return &cp
}

func newErr(kind Kind, status int, code, key string) *Error {
	return &Error{Kind: kind, Code: code, MessageKey: key, Status: status}
}

func clearing(e *Error) *Error {
	e.ClearSession = true
	return e
}

// Session guard.
var (
	ErrTokenNotFound          = newErr(KindAuthentication, http.StatusUnauthorized, "TOKEN_NOT_FOUND", "auth_error#token_not_found")
	ErrInvalidToken           = newErr(KindAuthentication, http.StatusUnauthorized, "INVALID_TOKEN", "auth_error#invalid_token")
	ErrUserNotFound           = newErr(KindAuthentication, http.StatusUnauthorized, "USER_NOT_FOUND", "auth_error#user_not_found")
	ErrAccountDeactivated     = clearing(newErr(KindState, http.StatusUnauthorized, "ACCOUNT_DEACTIVATED", "auth_error#account_deactivated"))
	ErrPasswordChangeRequired = newErr(KindState, http.StatusUnauthorized, "PASSWORD_CHANGE_REQUIRED", "auth_error#password_change_required")
	ErrEmailNotVerified       = newErr(KindState, http.StatusForbidden, "EMAIL_NOT_VERIFIED", "auth_error#email_not_verified")
	ErrMobileNotVerified      = newErr(KindState, http.StatusForbidden, "MOBILE_NOT_VERIFIED", "auth_error#mobile_not_verified")
	ErrUserBanned             = clearing(newErr(KindState, http.StatusForbidden, "USER_BANNED", "auth_error#user_is_banned"))
	ErrNewLoginRequired       = clearing(newErr(KindAuthentication, http.StatusUnauthorized, "NEW_LOGIN_REQUIRED", "auth_error#new_login_required"))
)

// Roles.
var (
	ErrRolesNotSpecified       = newErr(KindAuthorization, http.StatusForbidden, "ROLES_NOT_SPECIFIED", "auth_error#roles_not_specified")
	ErrRolesMissing            = newErr(KindAuthorization, http.StatusForbidden, "ROLES_MISSING", "auth_error#roles_missed")
	ErrRoleDependenciesMissing = newErr(KindAuthorization, http.StatusForbidden, "ROLE_DEPENDENCIES_MISSING", "auth_error#role_dependencies_missed")
	ErrRolesNotChanged         = newErr(KindConflict, http.StatusBadRequest, "ROLES_NOT_CHANGED", "admin_error#roles_not_changed")
)

// Login, password and codes.
var (
	ErrLoginFailed             = newErr(KindAuthentication, http.StatusForbidden, "LOGIN_FAILED", "auth_error#login_failed")
	ErrPasswordCheckFailed     = newErr(KindAuthentication, http.StatusUnauthorized, "PASSWORD_CHECK_FAILED", "auth_error#password_check_failed")
	ErrWrongCode               = newErr(KindAuthentication, http.StatusUnauthorized, "WRONG_CODE", "auth_error#login_failed")
	ErrInvalidEnrollmentCode   = newErr(KindAuthentication, http.StatusForbidden, "WRONG_CODE", "auth_error#invalid_code")
	ErrPasswordPolicy          = newErr(KindInput, http.StatusBadRequest, "PASSWORD_POLICY", "auth_error#validation_password_length")
	ErrPasswordChangeFailed    = newErr(KindInput, http.StatusForbidden, "PASSWORD_CHANGE_FAILED", "auth_error#password_change_failed")
	ErrPasswordSameAsOld       = newErr(KindInput, http.StatusForbidden, "PASSWORD_SAME_AS_OLD", "auth_error#password_should_be_different")
	ErrOldPasswordNotCorrect   = newErr(KindAuthentication, http.StatusForbidden, "OLD_PASSWORD_IS_NOT_CORRECT", "auth_error#old_password_not_correct")
	ErrResetLinkInvalid        = newErr(KindState, http.StatusForbidden, "PASSWORD_RESET_LINK_INVALID", "auth_error#password_reset_link_invalid")
	ErrResetLinkExpired        = newErr(KindState, http.StatusForbidden, "PASSWORD_RESET_LINK_EXPIRED", "auth_error#password_reset_link_expired")
	ErrVerificationNotFound    = newErr(KindState, http.StatusUnauthorized, "VERIFICATION_CODE_NOT_FOUND", "auth_error#verification_code_not_found")
	ErrVerificationNotCorrect  = newErr(KindState, http.StatusUnauthorized, "VERIFICATION_CODE_IS_NOT_CORRECT", "auth_error#verification_code_not_correct")
	ErrRestoreLinkInvalid      = newErr(KindState, http.StatusUnauthorized, "ACCOUNT_RESTORE_LINK_INVALID", "auth_error#account_restore_link_invalid")
	ErrNotInImpersonation      = newErr(KindAuthorization, http.StatusForbidden, "NOT_ALLOWED_IN_IMPERSONATION", "auth_error#not_allowed_in_impersonation")
	ErrTooManyAttempts         = newErr(KindRateLimit, http.StatusTooManyRequests, "TOO_MANY_ATTEMPTS", "auth_error#too_many_attempts")
	ErrImpersonationTargetGone = newErr(KindNotFound, http.StatusNotFound, "USER_NOT_FOUND", "auth_error#login_as_user_email_not_exist")
	// The impersonator's own session stays; details carry the target's state code.
	ErrImpersonationTargetInactive = newErr(KindState, http.StatusForbidden, "IMPERSONATION_TARGET_INACTIVE", "auth_error#login_as_user_inactive")
)

// Registration and accounts.
var (
	ErrEmailExists     = newErr(KindConflict, http.StatusBadRequest, "EMAIL_EXISTS", "auth_error#email_in_use")
	ErrMobileExists    = newErr(KindConflict, http.StatusBadRequest, "MOBILE_EXISTS", "auth_error#mobile_in_use")
	ErrNoEmailSupplied = newErr(KindInput, http.StatusBadRequest, "INVALID_REQUEST", "auth_error#no_email_supplied")
	ErrInvalidRequest  = newErr(KindInput, http.StatusBadRequest, "INVALID_REQUEST", "common_error#invalid_request")
	ErrAccountNotFound = newErr(KindNotFound, http.StatusNotFound, "USER_NOT_FOUND", "admin_error#user_not_found")
	ErrProfileNotSaved = newErr(KindInput, http.StatusUnprocessableEntity, "PROFILE_NOT_UPDATED", "user_error#profile_not_updated")
)

// OAuth.
var (
	ErrSocialLoginNotAllowed = newErr(KindAuthorization, http.StatusUnauthorized, "SOCIAL_LOGIN_NOT_ALLOWED", "auth_error#no_social_network_login")
	ErrProviderNotFound      = newErr(KindInput, http.StatusBadRequest, "OAUTH_PROVIDER_NOT_FOUND", "auth_error#oauth_provider_not_found")
	ErrProviderTokenMissing  = newErr(KindAuthentication, http.StatusBadRequest, "OAUTH_TOKEN_NOT_FOUND", "auth_error#oauth_token_not_found")
)

// Internal is what the transport renders for anything that is not *Error.
var Internal = newErr(KindInternal, http.StatusInternalServerError, "INTERNAL_ERROR", "common_error#internal")
