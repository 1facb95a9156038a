package users

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldworkbook/backend/internal/access"
	"github.com/fieldworkbook/backend/pkg/config"
	"github.com/fieldworkbook/backend/pkg/db"
	"github.com/fieldworkbook/backend/pkg/db/dbtest"
	"github.com/fieldworkbook/backend/pkg/db/models"
	"github.com/fieldworkbook/backend/pkg/enums"
	pkgerrors "github.com/fieldworkbook/backend/pkg/errors"
	"github.com/fieldworkbook/backend/pkg/pagination"
	"github.com/fieldworkbook/backend/pkg/security"
)

var testPasswordConfig = config.PasswordConfig{
	ArgonMemoryKB:    64,
	ArgonTime:        1,
	ArgonParallelism: 1,
	ArgonSaltLen:     16,
	ArgonKeyLen:      32,
}

type recordingRevoker struct {
	mu      sync.Mutex
	revoked []uuid.UUID
	err     error
}

func (r *recordingRevoker) RevokeUser(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.revoked = append(r.revoked, userID)
	return nil
}

func (r *recordingRevoker) calls() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uuid.UUID(nil), r.revoked...)
}

type fixture struct {
	client   *db.Client
	svc      Service
	sessions *recordingRevoker
	team     models.Team
	admin    access.Principal
	partner  access.Principal
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client := dbtest.NewClient(t)
	sessions := &recordingRevoker{}
	svc, err := NewService(ServiceParams{Repo: NewRepository(client.DB()), Tx: client, PasswordConfig: testPasswordConfig, Sessions: sessions})
	require.NoError(t, err)

	team := models.Team{Name: "North", InitialAmount: decimal.Zero, UsedAmount: decimal.Zero, RemainingAmount: decimal.Zero}
	require.NoError(t, client.DB().Create(&team).Error)

	admin, err := svc.CreateAdmin(context.Background(), CreateInput{Username: "root", Password: "rootpass1", FullName: "Root"})
	require.NoError(t, err)

	return fixture{
		client:   client,
		svc:      svc,
		sessions: sessions,
		team:     team,
		admin:    access.Principal{UserID: admin.User.ID, Role: enums.RoleAdmin},
		partner:  access.Principal{UserID: uuid.New(), Role: enums.RolePartner},
	}
}

func (f fixture) staffInput(username string) CreateInput {
	return CreateInput{Username: username, FullName: "Field Person", Role: enums.RoleFieldStaff, TeamID: &f.team.ID}
}

func TestCreateAdminBootstrap(t *testing.T) {
	f := newFixture(t)

	var stored models.User
	require.NoError(t, f.client.DB().First(&stored, "id = ?", f.admin.UserID).Error)
	assert.Equal(t, enums.RoleAdmin, stored.Role)
	assert.Equal(t, "root", stored.Username)
	ok, err := security.VerifyPassword("rootpass1", stored.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCreateGeneratesTemporaryPassword(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.Create(context.Background(), f.partner, f.staffInput("  Ana.Ruiz "))
	require.NoError(t, err)
	assert.Equal(t, "ana.ruiz", result.User.Username)
	assert.Equal(t, enums.RoleFieldStaff, result.User.Role)
	require.NotNil(t, result.User.TeamID)
	assert.Equal(t, f.team.ID, *result.User.TeamID)
	require.Len(t, result.TemporaryPassword, tempPasswordLength)
	assert.NoError(t, security.ValidatePassword(result.TemporaryPassword))

	var stored models.User
	require.NoError(t, f.client.DB().First(&stored, "id = ?", result.User.ID).Error)
	ok, err := security.VerifyPassword(result.TemporaryPassword, stored.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCreateRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	missingTeam := uuid.New()
	staff := access.Principal{UserID: uuid.New(), Role: enums.RoleFieldStaff, TeamID: &f.team.ID}

	_, err := f.svc.Create(ctx, f.partner, f.staffInput("taken"))
	require.NoError(t, err)

	cases := []struct {
		name      string
		principal access.Principal
		input     CreateInput
		code      pkgerrors.Code
	}{
		{name: "field staff cannot create", principal: staff, input: f.staffInput("x1"), code: pkgerrors.CodeForbidden},
		{name: "partner cannot create partner", principal: f.partner, input: CreateInput{Username: "p2", FullName: "P", Role: enums.RolePartner}, code: pkgerrors.CodeForbidden},
		{name: "nobody creates admins", principal: f.admin, input: CreateInput{Username: "a2", FullName: "A", Role: enums.RoleAdmin}, code: pkgerrors.CodeForbidden},
		{name: "unknown role", principal: f.admin, input: CreateInput{Username: "r", FullName: "R", Role: "owner"}, code: pkgerrors.CodeValidation},
		{name: "staff without team", principal: f.admin, input: CreateInput{Username: "s", FullName: "S", Role: enums.RoleFieldStaff}, code: pkgerrors.CodeValidation},
		{name: "partner with team", principal: f.admin, input: CreateInput{Username: "p", FullName: "P", Role: enums.RolePartner, TeamID: &f.team.ID}, code: pkgerrors.CodeValidation},
		{name: "missing team", principal: f.admin, input: CreateInput{Username: "m", FullName: "M", Role: enums.RoleFieldStaff, TeamID: &missingTeam}, code: pkgerrors.CodeNotFound},
		{name: "weak password", principal: f.admin, input: CreateInput{Username: "w", Password: "password", FullName: "W", Role: enums.RoleFieldStaff, TeamID: &f.team.ID}, code: pkgerrors.CodeValidation},
		{name: "duplicate username", principal: f.admin, input: f.staffInput("TAKEN"), code: pkgerrors.CodeConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tc.principal, tc.input)
			assert.Equal(t, tc.code, pkgerrors.CodeOf(err))
		})
	}

	partner, err := f.svc.Create(ctx, f.admin, CreateInput{Username: "paul", Password: "partner123", FullName: "Paul", Role: enums.RolePartner})
	require.NoError(t, err)
	assert.Empty(t, partner.TemporaryPassword)
}

func TestListAndGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana, err := f.svc.Create(ctx, f.partner, f.staffInput("ana"))
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, f.partner, f.staffInput("bob"))
	require.NoError(t, err)

	all, err := f.svc.List(ctx, f.partner, ListParams{})
	require.NoError(t, err)
	assert.Len(t, all.Items, 3)

	role := enums.RoleFieldStaff
	staffOnly, err := f.svc.List(ctx, f.admin, ListParams{Role: &role, Params: pagination.Params{Limit: 1}})
	require.NoError(t, err)
	assert.Len(t, staffOnly.Items, 1)
	assert.NotEmpty(t, staffOnly.NextCursor)

	search, err := f.svc.List(ctx, f.admin, ListParams{Search: "AN"})
	require.NoError(t, err)
	require.Len(t, search.Items, 1)
	assert.Equal(t, "ana", search.Items[0].Username)

	staff := access.Principal{UserID: ana.User.ID, Role: enums.RoleFieldStaff, TeamID: &f.team.ID}
	_, err = f.svc.List(ctx, staff, ListParams{})
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	self, err := f.svc.Get(ctx, staff, ana.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana", self.Username)
	_, err = f.svc.Get(ctx, staff, f.admin.UserID)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
	_, err = f.svc.Get(ctx, f.admin, uuid.New())
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestAssignTeam(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	south := models.Team{Name: "South", InitialAmount: decimal.Zero, UsedAmount: decimal.Zero, RemainingAmount: decimal.Zero}
	require.NoError(t, f.client.DB().Create(&south).Error)
	ana, err := f.svc.Create(ctx, f.partner, f.staffInput("ana"))
	require.NoError(t, err)

	moved, err := f.svc.AssignTeam(ctx, f.partner, ana.User.ID, AssignTeamInput{TeamID: &south.ID})
	require.NoError(t, err)
	require.NotNil(t, moved.TeamID)
	assert.Equal(t, south.ID, *moved.TeamID)

	unbound, err := f.svc.AssignTeam(ctx, f.partner, ana.User.ID, AssignTeamInput{})
	require.NoError(t, err)
	assert.Nil(t, unbound.TeamID)

	missing := uuid.New()
	_, err = f.svc.AssignTeam(ctx, f.partner, ana.User.ID, AssignTeamInput{TeamID: &missing})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	_, err = f.svc.AssignTeam(ctx, f.partner, f.admin.UserID, AssignTeamInput{TeamID: &south.ID})
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))
}

func TestAssignTeamRevokesSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	south := models.Team{Name: "South", InitialAmount: decimal.Zero, UsedAmount: decimal.Zero, RemainingAmount: decimal.Zero}
	require.NoError(t, f.client.DB().Create(&south).Error)
	ana, err := f.svc.Create(ctx, f.partner, f.staffInput("ana"))
	require.NoError(t, err)

	_, err = f.svc.AssignTeam(ctx, f.partner, ana.User.ID, AssignTeamInput{TeamID: &f.team.ID})
	require.NoError(t, err)
	assert.Empty(t, f.sessions.calls(), "same team keeps sessions")

	_, err = f.svc.AssignTeam(ctx, f.partner, ana.User.ID, AssignTeamInput{TeamID: &south.ID})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{ana.User.ID}, f.sessions.calls())

	_, err = f.svc.AssignTeam(ctx, f.partner, ana.User.ID, AssignTeamInput{})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{ana.User.ID, ana.User.ID}, f.sessions.calls())

	f.sessions.err = errors.New("redis down")
	_, err = f.svc.AssignTeam(ctx, f.partner, ana.User.ID, AssignTeamInput{TeamID: &south.ID})
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.CodeOf(err))
}

func TestDeletePreconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana, err := f.svc.Create(ctx, f.partner, f.staffInput("ana"))
	require.NoError(t, err)
	bob, err := f.svc.Create(ctx, f.partner, f.staffInput("bob"))
	require.NoError(t, err)
	paul, err := f.svc.Create(ctx, f.admin, CreateInput{Username: "paul", FullName: "Paul", Role: enums.RolePartner})
	require.NoError(t, err)
	partner := access.Principal{UserID: paul.User.ID, Role: enums.RolePartner}

	require.NoError(t, f.client.DB().Create(&models.Expense{TeamID: f.team.ID, UserID: ana.User.ID, Description: "x", Amount: decimal.RequireFromString("1"), Category: "misc"}).Error)
	require.NoError(t, f.client.DB().Create(&models.AmountRequest{TeamID: f.team.ID, UserID: bob.User.ID, RequestedAmount: decimal.RequireFromString("5"), Reason: "x", Status: enums.RequestStatusPending}).Error)

	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(f.svc.Delete(ctx, partner, ana.User.ID)))
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(f.svc.Delete(ctx, partner, f.admin.UserID)))
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(f.svc.Delete(ctx, f.admin, f.admin.UserID)))
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(f.svc.Delete(ctx, partner, paul.User.ID)))

	require.NoError(t, f.svc.Delete(ctx, partner, bob.User.ID))
	assert.Equal(t, []uuid.UUID{bob.User.ID}, f.sessions.calls())
	var requests int64
	require.NoError(t, f.client.DB().Model(&models.AmountRequest{}).Where("user_id = ?", bob.User.ID).Count(&requests).Error)
	assert.Zero(t, requests)
	_, err = f.svc.Get(ctx, f.admin, bob.User.ID)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	require.NoError(t, f.svc.Delete(ctx, f.admin, paul.User.ID))
}
