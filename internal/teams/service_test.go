package teams

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldworkbook/backend/internal/access"
	"github.com/fieldworkbook/backend/internal/ledger"
	"github.com/fieldworkbook/backend/pkg/db"
	"github.com/fieldworkbook/backend/pkg/db/dbtest"
	"github.com/fieldworkbook/backend/pkg/db/models"
	"github.com/fieldworkbook/backend/pkg/enums"
	pkgerrors "github.com/fieldworkbook/backend/pkg/errors"
	"github.com/fieldworkbook/backend/pkg/pagination"
)

func money(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func ptr[T any](v T) *T {
	return &v
}

type fixture struct {
	client  *db.Client
	svc     Service
	admin   access.Principal
	partner access.Principal
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client := dbtest.NewClient(t)
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(client.DB()), nil)
	require.NoError(t, err)
	svc, err := NewService(NewRepository(client.DB()), client, ledgerSvc, nil)
	require.NoError(t, err)
	return fixture{
		client:  client,
		svc:     svc,
		admin:   access.Principal{UserID: uuid.New(), Role: enums.RoleAdmin},
		partner: access.Principal{UserID: uuid.New(), Role: enums.RolePartner},
	}
}

func (f fixture) create(t *testing.T, name, initial string) *TeamDTO {
	t.Helper()
	team, err := f.svc.Create(context.Background(), f.partner, CreateInput{Name: name, Location: "Field", InitialAmount: money(initial)})
	require.NoError(t, err)
	return team
}

func (f fixture) staffOf(teamID uuid.UUID) access.Principal {
	return access.Principal{UserID: uuid.New(), Role: enums.RoleFieldStaff, TeamID: &teamID}
}

func TestCreateFundsTeamThroughLedger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	team := f.create(t, "  North  ", "5000.00")
	assert.Equal(t, "North", team.Name)
	assert.Equal(t, "5000.00", team.InitialAmount)
	assert.Equal(t, "0.00", team.UsedAmount)
	assert.Equal(t, "5000.00", team.RemainingAmount)
	require.NotNil(t, team.CreatedBy)
	assert.Equal(t, f.partner.UserID, *team.CreatedBy)

	events, err := f.svc.Events(ctx, f.partner, team.ID, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, events.Items, 1)
	assert.Equal(t, enums.LedgerEventTypeAdjustment, events.Items[0].Type)
	assert.Equal(t, "5000.00", events.Items[0].RemainingAfter)

	empty := f.create(t, "Empty", "0")
	events, err = f.svc.Events(ctx, f.partner, empty.ID, pagination.Params{})
	require.NoError(t, err)
	assert.Empty(t, events.Items)
}

func TestCreateRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.staffOf(uuid.New()), CreateInput{Name: "x", InitialAmount: money("1")})
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	_, err = f.svc.Create(ctx, f.admin, CreateInput{Name: " ", InitialAmount: money("1")})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	_, err = f.svc.Create(ctx, f.admin, CreateInput{Name: "Bad", InitialAmount: money("-1")})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	var count int64
	require.NoError(t, f.client.DB().Model(&models.Team{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestFieldStaffSeeOwnTeamOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	north := f.create(t, "North", "100")
	south := f.create(t, "South", "200")
	staff := f.staffOf(north.ID)

	page, err := f.svc.List(ctx, staff, ListParams{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, north.ID, page.Items[0].ID)

	_, err = f.svc.Get(ctx, staff, south.ID)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
	_, err = f.svc.Events(ctx, staff, south.ID, pagination.Params{})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	all, err := f.svc.List(ctx, f.admin, ListParams{})
	require.NoError(t, err)
	assert.Len(t, all.Items, 2)

	search, err := f.svc.List(ctx, f.admin, ListParams{Search: "sou"})
	require.NoError(t, err)
	require.Len(t, search.Items, 1)
	assert.Equal(t, south.ID, search.Items[0].ID)

	stats, err := f.svc.Stats(ctx, staff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TeamCount)
	assert.Equal(t, "100.00", stats.TotalRemaining)

	stats, err = f.svc.Stats(ctx, f.partner)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TeamCount)
	assert.Equal(t, "300.00", stats.TotalInitial)

	_, err = f.svc.Stats(ctx, access.Principal{UserID: uuid.New(), Role: enums.RoleFieldStaff})
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))
}

func TestUpdateProfileAndInitialAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	team := f.create(t, "North", "1000.00")
	require.NoError(t, f.client.DB().Model(&models.Team{}).Where("id = ?", team.ID).
		Updates(map[string]any{"used_amount": money("400.00"), "remaining_amount": money("600.00")}).Error)

	updated, err := f.svc.Update(ctx, f.admin, team.ID, UpdateInput{
		Location:      ptr("South ridge"),
		InitialAmount: ptr(money("1500.00")),
	})
	require.NoError(t, err)
	assert.Equal(t, "North", updated.Name)
	assert.Equal(t, "South ridge", updated.Location)
	assert.Equal(t, "1500.00", updated.InitialAmount)
	assert.Equal(t, "400.00", updated.UsedAmount)
	assert.Equal(t, "1100.00", updated.RemainingAmount)

	_, err = f.svc.Update(ctx, f.admin, team.ID, UpdateInput{Name: ptr("Renamed"), InitialAmount: ptr(money("300.00"))})
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))
	got, err := f.svc.Get(ctx, f.admin, team.ID)
	require.NoError(t, err)
	assert.Equal(t, "North", got.Name, "rename rolls back with the failed adjustment")
	assert.Equal(t, "1500.00", got.InitialAmount)

	_, err = f.svc.Update(ctx, f.staffOf(team.ID), team.ID, UpdateInput{Name: ptr("x")})
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))
	_, err = f.svc.Update(ctx, f.admin, uuid.New(), UpdateInput{Name: ptr("x")})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestDeleteRequiresNoExpenses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	team := f.create(t, "North", "1000.00")

	staffUser := models.User{Username: "ana", PasswordHash: "x", Role: enums.RoleFieldStaff, FullName: "Ana", TeamID: &team.ID}
	require.NoError(t, f.client.DB().Create(&staffUser).Error)
	request := models.AmountRequest{TeamID: team.ID, UserID: staffUser.ID, RequestedAmount: money("10"), Reason: "x", Status: enums.RequestStatusPending}
	require.NoError(t, f.client.DB().Create(&request).Error)
	expense := models.Expense{TeamID: team.ID, UserID: staffUser.ID, Description: "x", Amount: money("1"), Category: "misc"}
	require.NoError(t, f.client.DB().Create(&expense).Error)

	err := f.svc.Delete(ctx, f.partner, team.ID)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))

	require.NoError(t, f.client.DB().Delete(&models.Expense{}, "id = ?", expense.ID).Error)
	require.NoError(t, f.svc.Delete(ctx, f.partner, team.ID))

	_, err = f.svc.Get(ctx, f.admin, team.ID)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	var requests, events int64
	require.NoError(t, f.client.DB().Model(&models.AmountRequest{}).Where("team_id = ?", team.ID).Count(&requests).Error)
	require.NoError(t, f.client.DB().Model(&models.LedgerEvent{}).Where("team_id = ?", team.ID).Count(&events).Error)
	assert.Zero(t, requests)
	assert.Zero(t, events)

	var reloaded models.User
	require.NoError(t, f.client.DB().First(&reloaded, "id = ?", staffUser.ID).Error)
	assert.Nil(t, reloaded.TeamID)

	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(f.svc.Delete(ctx, f.partner, team.ID)))
}

func TestDriftAndRecalculateAreAdminOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	team := f.create(t, "North", "1000.00")
	staffID := uuid.New()
	require.NoError(t, f.client.DB().Create(&models.Expense{TeamID: team.ID, UserID: staffID, Description: "x", Amount: money("250.00"), Category: "misc"}).Error)

	_, err := f.svc.Drift(ctx, f.partner)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	drift, err := f.svc.Drift(ctx, f.admin)
	require.NoError(t, err)
	require.Len(t, drift, 1)
	assert.Equal(t, "750.00", drift[0].ExpectedRemaining)

	_, err = f.svc.Recalculate(ctx, f.partner, team.ID)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	balances, err := f.svc.Recalculate(ctx, f.admin, team.ID)
	require.NoError(t, err)
	assert.Equal(t, "250.00", balances.UsedAmount)
	assert.Equal(t, "750.00", balances.RemainingAmount)

	drift, err = f.svc.Drift(ctx, f.admin)
	require.NoError(t, err)
	assert.Empty(t, drift)
}
