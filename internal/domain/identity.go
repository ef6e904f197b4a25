package domain

// Role type to distinguish what an identity may do
type Role string

const (
	RoleParticipant Role = "participant"
	RoleReviewer    Role = "reviewer"
	RoleAdmin       Role = "admin"
)

// Identity is an already-authenticated caller. It is built from verified
// token claims by the API middleware; the pipeline never derives trust from a
// bare wallet string in a request body.
type Identity struct {
	Subject string // stable id from the auth service
	Wallet  string // normalised lower-case address, may be empty for staff accounts
	Roles   []Role
}

// HasRole reports whether the identity carries role r.
func (id Identity) HasRole(r Role) bool {
	for _, have := range id.Roles {
		if have == r {
			return true
		}
	}
	return false
}

// Actor is the name recorded against review decisions.
func (id Identity) Actor() string {
	if id.Subject != "" {
		return id.Subject
	}
	return id.Wallet
}
