package entity

// Identity is one auth_oauth row: a social login linked to an account.
type Identity struct {
	Provider       string  `db:"provider"`
	AccountID      int64   `db:"account_id"`
	ProviderUserID string  `db:"provider_user_id"`
	Email          string  `db:"email"`
	FirstName      string  `db:"first_name"`
	LastName       string  `db:"last_name"`
	DisplayName    string  `db:"display_name"`
	Picture        string  `db:"picture"`
	RefreshToken   *string `db:"refresh_token"`
	AccessToken    *string `db:"access_token"`
}

// Tokens are the provider tokens kept for revocation on logout.
type Tokens struct {
	RefreshToken *string `db:"refresh_token"`
	AccessToken  *string `db:"access_token"`
}

// Revocable returns the refresh token when present, else the access token.
func (t Tokens) Revocable() string {
	if t.RefreshToken != nil && *t.RefreshToken != "" {
		return *t.RefreshToken
	}
	if t.AccessToken != nil {
		return *t.AccessToken
	}
	return ""
}

// Profile is the provider profile snapshot shown in the header.
type Profile struct {
	Provider    string `db:"provider" json:"provider"`
	FirstName   string `db:"first_name" json:"givenName"`
	LastName    string `db:"last_name" json:"familyName"`
	DisplayName string `db:"display_name" json:"name"`
	Picture     string `db:"picture" json:"picture"`
}
