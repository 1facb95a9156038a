package expenses

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldworkbook/backend/internal/access"
	"github.com/fieldworkbook/backend/internal/attachments"
	"github.com/fieldworkbook/backend/internal/ledger"
	"github.com/fieldworkbook/backend/pkg/db"
	"github.com/fieldworkbook/backend/pkg/db/dbtest"
	"github.com/fieldworkbook/backend/pkg/db/models"
	"github.com/fieldworkbook/backend/pkg/enums"
	pkgerrors "github.com/fieldworkbook/backend/pkg/errors"
	"github.com/fieldworkbook/backend/pkg/pagination"
)

var receiptPDF = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n%%EOF\n")

type fixture struct {
	client  *db.Client
	svc     Service
	dir     string
	team    models.Team
	staff   access.Principal
	partner access.Principal
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client := dbtest.NewClient(t)
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(client.DB()), nil)
	require.NoError(t, err)

	dir := t.TempDir()
	store, err := attachments.NewLocalStore(dir)
	require.NoError(t, err)
	files, err := attachments.NewService(store, 1<<20, nil)
	require.NoError(t, err)

	svc, err := NewService(NewRepository(client.DB()), client, ledgerSvc, files, nil)
	require.NoError(t, err)

	team := models.Team{
		Name:            "North",
		InitialAmount:   decimal.RequireFromString("5000.00"),
		UsedAmount:      decimal.RequireFromString("1200.00"),
		RemainingAmount: decimal.RequireFromString("3800.00"),
	}
	require.NoError(t, client.DB().Create(&team).Error)

	staffUser := models.User{Username: "ana", PasswordHash: "x", Role: enums.RoleFieldStaff, FullName: "Ana Ruiz", TeamID: &team.ID}
	partnerUser := models.User{Username: "paul", PasswordHash: "x", Role: enums.RolePartner, FullName: "Paul Diaz"}
	require.NoError(t, client.DB().Create(&staffUser).Error)
	require.NoError(t, client.DB().Create(&partnerUser).Error)

	return fixture{
		client:  client,
		svc:     svc,
		dir:     dir,
		team:    team,
		staff:   access.Principal{UserID: staffUser.ID, Role: enums.RoleFieldStaff, TeamID: &team.ID},
		partner: access.Principal{UserID: partnerUser.ID, Role: enums.RolePartner},
	}
}

func (f fixture) reloadTeam(t *testing.T) models.Team {
	t.Helper()
	var team models.Team
	require.NoError(t, f.client.DB().First(&team, "id = ?", f.team.ID).Error)
	return team
}

func (f fixture) countExpenses(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.client.DB().Model(&models.Expense{}).Count(&count).Error)
	return count
}

func (f fixture) storedFiles(t *testing.T) int {
	t.Helper()
	count := 0
	require.NoError(t, filepath.WalkDir(f.dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			count++
		}
		return nil
	}))
	return count
}

func input(amount string) CreateInput {
	return CreateInput{
		Description: "Diesel",
		Amount:      decimal.RequireFromString(amount),
		Category:    "Fuel",
	}
}

func TestCreateDebitsTeamInSameTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.svc.Create(ctx, f.staff, input("500.00"))
	require.NoError(t, err)

	assert.Equal(t, "500.00", result.Expense.Amount)
	assert.Equal(t, "North", result.Expense.TeamName)
	assert.Equal(t, "ana", result.Expense.Username)
	assert.False(t, result.Expense.HasAttachment)
	assert.Equal(t, "1700.00", result.Balances.UsedAmount)
	assert.Equal(t, "3300.00", result.Balances.RemainingAmount)

	team := f.reloadTeam(t)
	assert.Equal(t, "1700.00", team.UsedAmount.StringFixed(2))
	assert.Equal(t, "3300.00", team.RemainingAmount.StringFixed(2))

	var event models.LedgerEvent
	require.NoError(t, f.client.DB().Where("expense_id = ?", result.Expense.ID).First(&event).Error)
	assert.Equal(t, enums.LedgerEventTypeDebit, event.Type)
	assert.Equal(t, "3300.00", event.RemainingAfter.StringFixed(2))
}

func TestCreateWithAttachment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := input("20.00")
	in.Attachment = &attachments.Upload{Filename: "fuel.pdf", Body: bytes.NewReader(receiptPDF)}
	result, err := f.svc.Create(ctx, f.staff, in)
	require.NoError(t, err)
	assert.True(t, result.Expense.HasAttachment)
	require.NotNil(t, result.Expense.AttachmentName)
	assert.Equal(t, "fuel.pdf", *result.Expense.AttachmentName)
	assert.Equal(t, 1, f.storedFiles(t))

	file, err := f.svc.OpenAttachment(ctx, f.partner, result.Expense.ID)
	require.NoError(t, err)
	defer file.Body.Close()
	assert.Equal(t, "fuel.pdf", file.Name)
	assert.Equal(t, "application/pdf", file.ContentType)
	data, err := io.ReadAll(file.Body)
	require.NoError(t, err)
	assert.Equal(t, receiptPDF, data)
}

func TestInsufficientFundsRollsBackExpenseAndAttachment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := input("3800.01")
	in.Attachment = &attachments.Upload{Filename: "big.pdf", Body: bytes.NewReader(receiptPDF)}
	_, err := f.svc.Create(ctx, f.staff, in)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeInsufficient, pkgerrors.CodeOf(err))

	assert.Equal(t, int64(0), f.countExpenses(t))
	assert.Equal(t, 0, f.storedFiles(t))
	team := f.reloadTeam(t)
	assert.Equal(t, "1200.00", team.UsedAmount.StringFixed(2))
	assert.Equal(t, "3800.00", team.RemainingAmount.StringFixed(2))
}

func TestCreateExactRemainingThenAnyMoreFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.svc.Create(ctx, f.staff, input("3800.00"))
	require.NoError(t, err)
	assert.Equal(t, "0.00", result.Balances.RemainingAmount)

	_, err = f.svc.Create(ctx, f.staff, input("0.01"))
	assert.Equal(t, pkgerrors.CodeInsufficient, pkgerrors.CodeOf(err))
	assert.Equal(t, int64(1), f.countExpenses(t))
}

func TestCreateRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := uuid.New()

	foreign := input("1.00")
	foreign.TeamID = &other
	blank := input("1.00")
	blank.Description = "  "
	longCategory := input("1.00")
	longCategory.Category = strings.Repeat("c", maxCategoryLength+1)

	cases := []struct {
		name      string
		principal access.Principal
		input     CreateInput
		code      pkgerrors.Code
	}{
		{name: "staff on foreign team", principal: f.staff, input: foreign, code: pkgerrors.CodeForbidden},
		{name: "manager without team", principal: f.partner, input: input("1.00"), code: pkgerrors.CodeValidation},
		{name: "blank description", principal: f.staff, input: blank, code: pkgerrors.CodeValidation},
		{name: "long category", principal: f.staff, input: longCategory, code: pkgerrors.CodeValidation},
		{name: "negative amount", principal: f.staff, input: input("-1.00"), code: pkgerrors.CodeValidation},
		{name: "three decimals", principal: f.staff, input: input("1.005"), code: pkgerrors.CodeValidation},
		{name: "too large", principal: f.staff, input: input("100000000.00"), code: pkgerrors.CodeValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tc.principal, tc.input)
			assert.Equal(t, tc.code, pkgerrors.CodeOf(err))
		})
	}
	assert.Equal(t, int64(0), f.countExpenses(t))
}

func TestManagerCreatesForNamedTeam(t *testing.T) {
	f := newFixture(t)

	in := input("100.00")
	in.TeamID = &f.team.ID
	result, err := f.svc.Create(context.Background(), f.partner, in)
	require.NoError(t, err)
	assert.Equal(t, f.partner.UserID, result.Expense.UserID)
	assert.Equal(t, "3700.00", result.Balances.RemainingAmount)
}

func TestListAndGetAreScoped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	otherTeam := models.Team{Name: "South", InitialAmount: decimal.RequireFromString("100"), UsedAmount: decimal.Zero, RemainingAmount: decimal.RequireFromString("100")}
	require.NoError(t, f.client.DB().Create(&otherTeam).Error)
	foreignIn := input("10.00")
	foreignIn.TeamID = &otherTeam.ID
	foreign, err := f.svc.Create(ctx, f.partner, foreignIn)
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, f.staff, input("1.00"))
	require.NoError(t, err)
	food := input("2.00")
	food.Category = "Food"
	_, err = f.svc.Create(ctx, f.staff, food)
	require.NoError(t, err)

	staffPage, err := f.svc.List(ctx, f.staff, ListParams{})
	require.NoError(t, err)
	assert.Len(t, staffPage.Items, 2)

	_, err = f.svc.List(ctx, f.staff, ListParams{TeamID: &otherTeam.ID})
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	all, err := f.svc.List(ctx, f.partner, ListParams{})
	require.NoError(t, err)
	assert.Len(t, all.Items, 3)

	foodPage, err := f.svc.List(ctx, f.partner, ListParams{Category: "food"})
	require.NoError(t, err)
	require.Len(t, foodPage.Items, 1)
	assert.Equal(t, "2.00", foodPage.Items[0].Amount)

	byUser, err := f.svc.List(ctx, f.partner, ListParams{UserID: &f.partner.UserID})
	require.NoError(t, err)
	assert.Len(t, byUser.Items, 1)

	paged, err := f.svc.List(ctx, f.partner, ListParams{Params: pagination.Params{Limit: 2}})
	require.NoError(t, err)
	assert.Len(t, paged.Items, 2)
	require.NotEmpty(t, paged.NextCursor)
	rest, err := f.svc.List(ctx, f.partner, ListParams{Params: pagination.Params{Limit: 2, Cursor: paged.NextCursor}})
	require.NoError(t, err)
	assert.Len(t, rest.Items, 1)

	_, err = f.svc.List(ctx, f.partner, ListParams{Params: pagination.Params{Cursor: "%%%"}})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	_, err = f.svc.Get(ctx, f.staff, foreign.Expense.ID)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
	_, err = f.svc.OpenAttachment(ctx, f.partner, foreign.Expense.ID)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestCreateOnUnknownTeamIsNotFound(t *testing.T) {
	f := newFixture(t)
	missing := uuid.New()

	in := input("1.00")
	in.TeamID = &missing
	_, err := f.svc.Create(context.Background(), f.partner, in)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
	assert.Equal(t, int64(0), f.countExpenses(t))
}
