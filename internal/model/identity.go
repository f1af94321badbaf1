package model

// User types carried in the access token.
const (
	UserTypeKonfi = "konfi"
	UserTypeAdmin = "admin"
)

// Identity is the authenticated caller.  Every engine operation is
// scoped to OrganizationID.
type Identity struct {
	UserID         uint64
	OrganizationID uint64
	UserType       string
	Role           string
}

// IsAdmin reports whether the caller is an organizer.
func (i Identity) IsAdmin() bool { return i.UserType == UserTypeAdmin }
