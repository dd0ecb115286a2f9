package repository

// Visibility is the capability a store uses to narrow project and task
// queries. A project is visible to a user when the user owns it or holds a
// membership on it; a task is visible when its project is. The zero value
// matches nothing.
type Visibility struct {
	userID       string
	unrestricted bool
}

// VisibleTo scopes queries to the projects userID owns or is a member of.
func VisibleTo(userID string) Visibility {
	return Visibility{userID: userID}
}

// Unrestricted disables narrowing. Only organisation-wide admin reads use it.
func Unrestricted() Visibility {
	return Visibility{unrestricted: true}
}

// UserID returns the user the scope is bound to.
func (v Visibility) UserID() string { return v.userID }

// IsUnrestricted reports whether every row is visible.
func (v Visibility) IsUnrestricted() bool { return v.unrestricted }

// MatchesNothing reports whether the scope excludes every row.
func (v Visibility) MatchesNothing() bool { return !v.unrestricted && v.userID == "" }

// AllowsProject evaluates the scope for a project given its owner and whether
// the scoped user holds a membership on it.
func (v Visibility) AllowsProject(ownerID string, isMember bool) bool {
	if v.unrestricted {
		return true
	}
	if v.userID == "" {
		return false
	}
	return ownerID == v.userID || isMember
}
