package reports

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldworkbook/backend/internal/access"
	"github.com/fieldworkbook/backend/pkg/db/dbtest"
	"github.com/fieldworkbook/backend/pkg/db/models"
	"github.com/fieldworkbook/backend/pkg/enums"
	pkgerrors "github.com/fieldworkbook/backend/pkg/errors"
)

func TestComparisonAggregatesPerManager(t *testing.T) {
	client := dbtest.NewClient(t)
	gdb := client.DB()
	ctx := context.Background()

	admin := models.User{Username: "root", PasswordHash: "x", Role: enums.RoleAdmin, FullName: "Ada Admin"}
	partner := models.User{Username: "paul", PasswordHash: "x", Role: enums.RolePartner, FullName: "Paul Diaz"}
	idle := models.User{Username: "pia", PasswordHash: "x", Role: enums.RolePartner, FullName: "Pia Idle"}
	staff := models.User{Username: "ana", PasswordHash: "x", Role: enums.RoleFieldStaff, FullName: "Ana Ruiz"}
	for _, u := range []*models.User{&admin, &partner, &idle, &staff} {
		require.NoError(t, gdb.Create(u).Error)
	}

	north := models.Team{Name: "North", InitialAmount: money("7000.00"), UsedAmount: money("1200.50"), RemainingAmount: money("5799.50"), CreatedBy: &partner.ID}
	south := models.Team{Name: "South", InitialAmount: money("1000.00"), UsedAmount: money("0"), RemainingAmount: money("1000.00"), CreatedBy: &partner.ID}
	east := models.Team{Name: "East", InitialAmount: money("300.00"), UsedAmount: money("100.00"), RemainingAmount: money("200.00"), CreatedBy: &admin.ID}
	for _, team := range []*models.Team{&north, &south, &east} {
		require.NoError(t, gdb.Create(team).Error)
	}

	for _, e := range []models.Expense{
		{TeamID: north.ID, UserID: staff.ID, Description: "fuel", Amount: money("1000.00"), Category: "travel"},
		{TeamID: north.ID, UserID: staff.ID, Description: "lunch", Amount: money("200.50"), Category: "food"},
		{TeamID: east.ID, UserID: staff.ID, Description: "tools", Amount: money("100.00"), Category: "equipment"},
	} {
		expense := e
		require.NoError(t, gdb.Create(&expense).Error)
	}

	now := time.Now().UTC()
	for _, r := range []models.AmountRequest{
		{TeamID: north.ID, UserID: staff.ID, RequestedAmount: money("2000.00"), Reason: "a", Status: enums.RequestStatusApproved, ProcessedBy: &partner.ID, ProcessedAt: &now},
		{TeamID: north.ID, UserID: staff.ID, RequestedAmount: money("500.00"), Reason: "b", Status: enums.RequestStatusRejected, ProcessedBy: &partner.ID, ProcessedAt: &now},
		{TeamID: east.ID, UserID: staff.ID, RequestedAmount: money("50.00"), Reason: "c", Status: enums.RequestStatusApproved, ProcessedBy: &admin.ID, ProcessedAt: &now},
		{TeamID: east.ID, UserID: staff.ID, RequestedAmount: money("75.00"), Reason: "d", Status: enums.RequestStatusPending},
	} {
		request := r
		require.NoError(t, gdb.Create(&request).Error)
	}

	svc, err := NewService(NewRepository(gdb))
	require.NoError(t, err)

	report, err := svc.Comparison(ctx, access.Principal{UserID: partner.ID, Role: enums.RolePartner})
	require.NoError(t, err)
	require.Len(t, report.Rows, 3)

	byUser := map[uuid.UUID]ComparisonRowDTO{}
	for _, row := range report.Rows {
		byUser[row.UserID] = row
	}
	assert.NotContains(t, byUser, staff.ID)

	p := byUser[partner.ID]
	assert.Equal(t, "paul", p.Username)
	assert.Equal(t, enums.RolePartner, p.Role)
	assert.Equal(t, int64(2), p.TeamsCreated)
	assert.Equal(t, "8000.00", p.TotalAllocated)
	assert.Equal(t, "1200.50", p.TotalUsed)
	assert.Equal(t, "6799.50", p.TotalRemaining)
	assert.Equal(t, int64(2), p.ExpenseCount)
	assert.Equal(t, int64(1), p.RequestsApproved)
	assert.Equal(t, int64(1), p.RequestsRejected)
	assert.Equal(t, "2000.00", p.AmountApproved)

	a := byUser[admin.ID]
	assert.Equal(t, int64(1), a.TeamsCreated)
	assert.Equal(t, int64(1), a.ExpenseCount)
	assert.Equal(t, "50.00", a.AmountApproved)

	i := byUser[idle.ID]
	assert.Equal(t, int64(0), i.TeamsCreated)
	assert.Equal(t, "0.00", i.TotalAllocated)
	assert.Equal(t, "0.00", i.AmountApproved)

	assert.Equal(t, int64(3), report.Totals.TeamsCreated)
	assert.Equal(t, "8300.00", report.Totals.TotalAllocated)
	assert.Equal(t, int64(3), report.Totals.ExpenseCount)
	assert.Equal(t, int64(2), report.Totals.RequestsApproved)
	assert.Equal(t, "2050.00", report.Totals.AmountApproved)
}

func TestComparisonRequiresManager(t *testing.T) {
	client := dbtest.NewClient(t)
	svc, err := NewService(NewRepository(client.DB()))
	require.NoError(t, err)

	teamID := uuid.New()
	_, err = svc.Comparison(context.Background(), access.Principal{UserID: uuid.New(), Role: enums.RoleFieldStaff, TeamID: &teamID})
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	empty, err := svc.Comparison(context.Background(), access.Principal{UserID: uuid.New(), Role: enums.RoleAdmin})
	require.NoError(t, err)
	assert.Empty(t, empty.Rows)
	assert.Equal(t, "0.00", empty.Totals.TotalAllocated)

	_, err = NewService(nil)
	assert.Error(t, err)
}

func money(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}
