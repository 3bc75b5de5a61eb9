// Package role holds the role catalog, the role-kind predicates and the
// pure RBAC and assignment rules.
package role

// Catalog ids and names of the built-in roles.
const (
	SuperAdminID    int64 = 100
	AdminID         int64 = 200
	TwoFaID         int64 = 300
	ImpersonationID int64 = 500

	SuperAdmin    = "superadmin"
	Admin         = "admin"
	TwoFa         = "2fa"
	Impersonation = "impersonation"
)

// Role is a catalog entry.
type Role struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Builtin is the bootstrap catalog.
var Builtin = []Role{
	{ID: SuperAdminID, Name: SuperAdmin},
	{ID: AdminID, Name: Admin},
	{ID: TwoFaID, Name: TwoFa},
	{ID: ImpersonationID, Name: Impersonation},
}

// Kind classifies a role. Custom roles added to the catalog are KindStandard.
type Kind int

const (
	KindStandard Kind = iota
	KindSuperAdmin
	KindAdmin
	KindTwoFa
	KindImpersonation
)

// KindOf maps a catalog id to its kind.
func KindOf(id int64) Kind {
	switch id {
	case SuperAdminID:
		return KindSuperAdmin
	case AdminID:
		return KindAdmin
	case TwoFaID:
		return KindTwoFa
	case ImpersonationID:
		return KindImpersonation
	default:
		return KindStandard
	}
}

// Protected roles are granted by dedicated flows (2FA enrollment, seeding)
// and are never touched by bulk role assignment.
func (k Kind) Protected() bool {
	return k == KindTwoFa || k == KindImpersonation
}

// Hidden roles are not offered to clients as assignable options.
func (k Kind) Hidden() bool {
	return k == KindSuperAdmin || k == KindTwoFa
}

// IsProtected reports whether the role with this id is protected.
func IsProtected(id int64) bool { return KindOf(id).Protected() }

// IsHidden reports whether the role with this id is hidden.
func IsHidden(id int64) bool { return KindOf(id).Hidden() }

// Visible filters hidden roles out of a catalog listing.
func Visible(all []Role) []Role {
	out := make([]Role, 0, len(all))
	for _, r := range all {
		if !IsHidden(r.ID) {
			out = append(out, r)
		}
	}
	return out
}
