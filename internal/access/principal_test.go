package access

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldworkbook/backend/pkg/enums"
	pkgerrors "github.com/fieldworkbook/backend/pkg/errors"
)

func TestCanAccessTeam(t *testing.T) {
	teamA, teamB := uuid.New(), uuid.New()

	admin := Principal{UserID: uuid.New(), Role: enums.RoleAdmin}
	partner := Principal{UserID: uuid.New(), Role: enums.RolePartner}
	staff := Principal{UserID: uuid.New(), Role: enums.RoleFieldStaff, TeamID: &teamA}
	unbound := Principal{UserID: uuid.New(), Role: enums.RoleFieldStaff}

	assert.True(t, admin.CanAccessTeam(teamB))
	assert.True(t, partner.CanAccessTeam(teamB))
	assert.True(t, staff.CanAccessTeam(teamA))
	assert.False(t, staff.CanAccessTeam(teamB))
	assert.False(t, unbound.CanAccessTeam(teamA))

	err := staff.RequireTeamAccess(teamB)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestResolveTeam(t *testing.T) {
	teamA, teamB := uuid.New(), uuid.New()
	staff := Principal{UserID: uuid.New(), Role: enums.RoleFieldStaff, TeamID: &teamA}

	got, err := staff.ResolveTeam(nil)
	require.NoError(t, err)
	assert.Equal(t, teamA, got)

	_, err = staff.ResolveTeam(&teamB)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = Principal{Role: enums.RoleFieldStaff}.ResolveTeam(nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	partner := Principal{UserID: uuid.New(), Role: enums.RolePartner}
	_, err = partner.ResolveTeam(nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	got, err = partner.ResolveTeam(&teamB)
	require.NoError(t, err)
	assert.Equal(t, teamB, got)
}

func TestTeamScope(t *testing.T) {
	teamA := uuid.New()
	staff := Principal{Role: enums.RoleFieldStaff, TeamID: &teamA}

	scope, err := staff.TeamScope(nil)
	require.NoError(t, err)
	require.NotNil(t, scope)
	assert.Equal(t, teamA, *scope)

	admin := Principal{Role: enums.RoleAdmin}
	scope, err = admin.TeamScope(nil)
	require.NoError(t, err)
	assert.Nil(t, scope)
}

func TestCanManageRole(t *testing.T) {
	admin := Principal{Role: enums.RoleAdmin}
	partner := Principal{Role: enums.RolePartner}
	staff := Principal{Role: enums.RoleFieldStaff}

	assert.True(t, admin.CanManageRole(enums.RolePartner))
	assert.True(t, admin.CanManageRole(enums.RoleFieldStaff))
	assert.False(t, admin.CanManageRole(enums.RoleAdmin))

	assert.True(t, partner.CanManageRole(enums.RoleFieldStaff))
	assert.False(t, partner.CanManageRole(enums.RolePartner))
	assert.False(t, partner.CanManageRole(enums.RoleAdmin))

	assert.False(t, staff.CanManageRole(enums.RoleFieldStaff))

	assert.NoError(t, admin.RequireAdmin())
	assert.Error(t, partner.RequireAdmin())
	assert.NoError(t, partner.RequireManager())
	assert.Error(t, staff.RequireManager())
}
