package activity

// Role is the resolved access level of the caller.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleViewer Role = "viewer"
)

// Identity carries who the request is about and who is asking, resolved
// at the request boundary. The service never resolves credentials itself;
// it trusts the Identity handed to it.
type Identity struct {
	SubjectID string
	ViewerID  string
	Role      Role
}

// Owner reports whether the caller may perform write operations.
func (id Identity) Owner() bool {
	return id.Role == RoleOwner
}
