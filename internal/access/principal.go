// Package access holds the request principal and the ownership rules shared by
// every service that reads or moves team money.
package access

import (
	"github.com/google/uuid"

	"github.com/fieldworkbook/backend/pkg/enums"
	pkgerrors "github.com/fieldworkbook/backend/pkg/errors"
)

// Principal is the authenticated caller. It is built once per request from the
// verified access token and passed explicitly into service calls.
type Principal struct {
	UserID uuid.UUID
	Role   enums.Role
	TeamID *uuid.UUID
}

func (p Principal) IsAdmin() bool {
	return p.Role == enums.RoleAdmin
}

// IsManager reports whether the caller administers teams (admin or partner).
func (p Principal) IsManager() bool {
	return p.Role.IsManager()
}

// CanAccessTeam reports whether the caller may read or act on the team.
// Field staff are confined to their bound team.
func (p Principal) CanAccessTeam(teamID uuid.UUID) bool {
	if p.IsManager() {
		return true
	}
	return p.Role == enums.RoleFieldStaff && p.TeamID != nil && *p.TeamID == teamID
}

// RequireManager fails with FORBIDDEN unless the caller is admin or partner.
func (p Principal) RequireManager() error {
	if !p.IsManager() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "admin or partner role required")
	}
	return nil
}

// RequireAdmin fails with FORBIDDEN unless the caller is an admin.
func (p Principal) RequireAdmin() error {
	if !p.IsAdmin() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	return nil
}

// RequireTeamAccess fails with FORBIDDEN when CanAccessTeam is false.
func (p Principal) RequireTeamAccess(teamID uuid.UUID) error {
	if !p.CanAccessTeam(teamID) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "team access denied")
	}
	return nil
}

// BoundTeam returns the team a field staff member is assigned to.
func (p Principal) BoundTeam() (uuid.UUID, error) {
	if p.TeamID == nil || *p.TeamID == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "user is not assigned to a team")
	}
	return *p.TeamID, nil
}

// ResolveTeam picks the team an operation targets. Field staff always act on
// their bound team and may not name another one; managers must name a team.
func (p Principal) ResolveTeam(requested *uuid.UUID) (uuid.UUID, error) {
	if p.Role == enums.RoleFieldStaff {
		bound, err := p.BoundTeam()
		if err != nil {
			return uuid.Nil, err
		}
		if requested != nil && *requested != bound {
			return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "team access denied")
		}
		return bound, nil
	}
	if !p.IsManager() {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "role not permitted")
	}
	if requested == nil || *requested == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(map[string]string{"team_id": "is required"})
	}
	return *requested, nil
}

// TeamScope narrows list queries: nil means every team.
func (p Principal) TeamScope(requested *uuid.UUID) (*uuid.UUID, error) {
	if p.IsManager() {
		return requested, nil
	}
	bound, err := p.BoundTeam()
	if err != nil {
		return nil, err
	}
	if requested != nil && *requested != bound {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "team access denied")
	}
	return &bound, nil
}

// CanManageRole reports whether the caller may create or delete users of the
// target role. Partners only manage field staff; admins also manage partners.
func (p Principal) CanManageRole(target enums.Role) bool {
	switch p.Role {
	case enums.RoleAdmin:
		return target == enums.RolePartner || target == enums.RoleFieldStaff
	case enums.RolePartner:
		return target == enums.RoleFieldStaff
	default:
		return false
	}
}
