package entity

import "encoding/json"

// Option names stored in general_config.
const (
	OneLoginOnly          = "oneLoginOnly"
	AutoLogout            = "autoLogout"
	SocialLoginNotAllowed = "socialLoginNotAllowed"
	RoleDependencies      = "roleDependencies"
)

// Option is one general_config row. Value holds arbitrary JSON.
type Option struct {
	Name  string          `db:"name" json:"name"`
	Value json.RawMessage `db:"value" json:"value"`
}

// AutoLogoutConfig drives the client side idle timer.
type AutoLogoutConfig struct {
	IsEnabled   bool `json:"isEnabled"`
	WarningTime int  `json:"warningTime"`
	Timeout     int  `json:"timeout"`
}
