package domain

// Principal is the verified identity attached to a request by the
// authentication collaborator.
type Principal struct {
	UserID    string     `json:"userId"`
	Email     string     `json:"email"`
	Role      GlobalRole `json:"role"`
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
}

// IsAdmin reports whether the principal holds the global admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == GlobalRoleAdmin
}

// DisplayName returns "First Last".
func (p Principal) DisplayName() string {
	return User{FirstName: p.FirstName, LastName: p.LastName}.FullName()
}

// PrincipalFor builds the principal of an authenticated user.
func PrincipalFor(u User) Principal {
	return Principal{UserID: u.ID, Email: u.Email, Role: u.Role, FirstName: u.FirstName, LastName: u.LastName}
}
