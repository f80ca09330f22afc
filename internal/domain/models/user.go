// internal/domain/models/user.go
package models

import (
	"time"
)

// Role is the privilege level stored on a user's role record.
type Role string

const (
	RoleStandard   Role = "standard"
	RoleSuperadmin Role = "superadmin"
)

// DefaultRole is assigned when a principal's role record is provisioned at
// first sign-in.
const DefaultRole = RoleStandard

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleStandard || r == RoleSuperadmin
}

// UsersCollection holds one role record per principal, keyed by principal id.
const UsersCollection = "users"

// User is the role record for a principal.
//
// The _id is the principal id supplied by the identity provider, so there is
// at most one record per principal and provisioning can rely on the primary
// key for create-if-absent.
type User struct {
	ID    string `bson:"_id" json:"id"`
	Email string `bson:"email,omitempty" json:"email,omitempty"`
	Role  Role   `bson:"role" json:"role"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

func (u *User) validate() error {
	if !u.Role.Valid() {
		return ErrInvalidRole
	}
	return nil
}
