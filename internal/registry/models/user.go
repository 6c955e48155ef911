package models

// Roles, in decreasing order of privilege.
const (
	RoleAdmin     = "admin"
	RoleDeveloper = "developer"
	RoleViewer    = "viewer"
)

// User is an account record. PasswordHash holds a bcrypt hash; Password
// carries a legacy plaintext credential for accounts seeded before
// hashing was introduced. Token is the single active session token,
// overwritten on every successful authentication. LastLogin is epoch
// milliseconds.
type User struct {
	Username     string
	PasswordHash string
	Password     string
	Token        string
	Role         string
	LastLogin    int64
}
