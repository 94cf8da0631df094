package account

import (
	"time"

	"github.com/google/uuid"

	"github.com/strokeunit/strokeunit/internal/platform/auth"
)

// Role is the clinical role assigned to a user at creation.
type Role string

const (
	RolePatient     Role = "PATIENT"
	RoleTechnician  Role = "TECHNICIAN"
	RoleNeurologist Role = "NEUROLOGIST"
)

func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleTechnician, RoleNeurologist:
		return true
	}
	return false
}

// User maps to the users table. Credentials live with the token issuer.
type User struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Username    string    `db:"username" json:"username"`
	Email       string    `db:"email" json:"email"`
	FirstName   string    `db:"first_name" json:"first_name"`
	LastName    string    `db:"last_name" json:"last_name"`
	PhoneNumber string    `db:"phone_number" json:"phone_number"`
	Role        Role      `db:"role" json:"role"`
	IsAdmin     bool      `db:"is_admin" json:"is_admin"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

func (u *User) IsPatient() bool     { return u.Role == RolePatient }
func (u *User) IsTechnician() bool  { return u.Role == RoleTechnician }
func (u *User) IsNeurologist() bool { return u.Role == RoleNeurologist }

// FullName falls back to the username when no name is on file.
func (u *User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	}
	return u.Username
}

// Capabilities lists the token roles this user should carry.
func (u *User) Capabilities() []auth.Capability {
	var caps []auth.Capability
	switch u.Role {
	case RolePatient:
		caps = append(caps, auth.CapPatient)
	case RoleTechnician:
		caps = append(caps, auth.CapTechnician)
	case RoleNeurologist:
		caps = append(caps, auth.CapNeurologist)
	}
	if u.IsAdmin {
		caps = append(caps, auth.CapAdmin)
	}
	return caps
}
