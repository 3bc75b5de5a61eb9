package role

import (
	"slices"

	"github.com/slava-lu/auth-app-backend/internal/apperr"
)

// Dependencies maps a role name to groups of role names that must also be held.
type Dependencies map[string][][]string

// Check verifies that held covers required and every dependency of the
// required roles. All missing roles are reported at once; missing roles
// take precedence over missing dependencies.
func Check(held, required []string, deps Dependencies) error {
	if len(required) == 0 {
		return apperr.ErrRolesNotSpecified
	}
	var missed, missedDeps []string
	for _, r := range required {
		if !slices.Contains(held, r) && !slices.Contains(missed, r) {
			missed = append(missed, r)
		}
		for _, group := range deps[r] {
			for _, d := range group {
				if !slices.Contains(held, d) && !slices.Contains(missedDeps, d) {
					missedDeps = append(missedDeps, d)
				}
			}
		}
	}
	if len(missed) > 0 {
		return apperr.ErrRolesMissing.With("missedRoles", missed)
	}
	if len(missedDeps) > 0 {
		return apperr.ErrRoleDependenciesMissing.With("missedDependencies", missedDeps)
	}
	return nil
}

// Diff computes the role ids to add and remove to move from current to
// requested. Duplicates are ignored and protected roles are left alone.
func Diff(current, requested []int64) (add, remove []int64) {
	for _, id := range requested {
		if IsProtected(id) || slices.Contains(current, id) || slices.Contains(add, id) {
			continue
		}
		add = append(add, id)
	}
	for _, id := range current {
		if IsProtected(id) || slices.Contains(requested, id) || slices.Contains(remove, id) {
			continue
		}
		remove = append(remove, id)
	}
	return add, remove
}
