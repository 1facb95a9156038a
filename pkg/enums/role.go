package enums

import "fmt"

// Role is the platform-wide permission tier carried by every user.
type Role string

const (
	RoleAdmin      Role = "admin"
	RolePartner    Role = "partner"
	RoleFieldStaff Role = "field_staff"
)

var validRoles = []Role{
	RoleAdmin,
	RolePartner,
	RoleFieldStaff,
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsManager reports whether the role administers teams and funding (admin or partner).
func (r Role) IsManager() bool {
	return r == RoleAdmin || r == RolePartner
}

// ParseRole converts raw input into a Role.
func ParseRole(value string) (Role, error) {
	for _, candidate := range validRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}
