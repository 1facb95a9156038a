package teams

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fieldworkbook/backend/pkg/db/models"
	"github.com/fieldworkbook/backend/pkg/enums"
	"github.com/fieldworkbook/backend/pkg/pagination"
)

// Repository persists teams. Balance columns are written by the ledger only;
// Create seeds them and UpdateProfile never touches them.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, team *models.Team) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Team, error)
	List(ctx context.Context, filter listFilter, params pagination.Params) ([]models.Team, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, updates map[string]any) error
	CountExpenses(ctx context.Context, teamID uuid.UUID) (int64, error)
	Delete(ctx context.Context, teamID uuid.UUID) error
}

type listFilter struct {
	TeamID *uuid.UUID
	Search string
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a team repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, team *models.Team) error {
	return r.db.WithContext(ctx).Create(team).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Team, error) {
	var team models.Team
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&team).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &team, nil
}

func (r *repository) List(ctx context.Context, filter listFilter, params pagination.Params) ([]models.Team, error) {
	query := r.db.WithContext(ctx).Model(&models.Team{})
	if filter.TeamID != nil {
		query = query.Where("id = ?", *filter.TeamID)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("LOWER(name) LIKE LOWER(?) OR LOWER(location) LIKE LOWER(?)", like, like)
	}
	query, err := pagination.Apply(query, params, "")
	if err != nil {
		return nil, err
	}
	var teams []models.Team
	if err := query.Find(&teams).Error; err != nil {
		return nil, err
	}
	return teams, nil
}

func (r *repository) UpdateProfile(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Team{}).Where("id = ?", id).Updates(updates).Error
}

func (r *repository) CountExpenses(ctx context.Context, teamID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Expense{}).Where("team_id = ?", teamID).Count(&count).Error
	return count, err
}

// Delete removes the team with its requests and ledger trail and unbinds its
// field staff. Callers check CountExpenses first.
func (r *repository) Delete(ctx context.Context, teamID uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("team_id = ?", teamID).Delete(&models.LedgerEvent{}).Error; err != nil {
		return err
	}
	if err := db.Where("team_id = ?", teamID).Delete(&models.AmountRequest{}).Error; err != nil {
		return err
	}
	if err := db.Model(&models.User{}).
		Where("team_id = ? AND role = ?", teamID, enums.RoleFieldStaff).
		Update("team_id", nil).Error; err != nil {
		return err
	}
	return db.Where("id = ?", teamID).Delete(&models.Team{}).Error
}
