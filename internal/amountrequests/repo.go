package amountrequests

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fieldworkbook/backend/pkg/db/models"
	"github.com/fieldworkbook/backend/pkg/enums"
	"github.com/fieldworkbook/backend/pkg/pagination"
)

// Repository persists amount requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, request *models.AmountRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.AmountRequest, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.AmountRequest, error)
	Transition(ctx context.Context, id uuid.UUID, to enums.RequestStatus, processedBy uuid.UUID, now time.Time) (int64, error)
	FindRow(ctx context.Context, id uuid.UUID) (*Row, error)
	List(ctx context.Context, filter listFilter, params pagination.Params) ([]Row, error)
}

// Row is a request joined with the names the list views display.
type Row struct {
	models.AmountRequest `gorm:"embedded"`
	TeamName             string `gorm:"column:team_name"`
	Username             string `gorm:"column:username"`
	FullName             string `gorm:"column:full_name"`
}

type listFilter struct {
	TeamID *uuid.UUID
	UserID *uuid.UUID
	Status *enums.RequestStatus
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an amount request repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, request *models.AmountRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.AmountRequest, error) {
	return r.find(r.db.WithContext(ctx), id)
}

// FindByIDForUpdate takes a row lock on postgres. sqlite has no row locks and
// serialises writers instead.
func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.AmountRequest, error) {
	query := r.db.WithContext(ctx)
	if query.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return r.find(query, id)
}

func (r *repository) find(query *gorm.DB, id uuid.UUID) (*models.AmountRequest, error) {
	var request models.AmountRequest
	if err := query.Where("id = ?", id).First(&request).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &request, nil
}

// Transition moves a pending request to a terminal status. Zero affected rows
// means another caller already processed it.
func (r *repository) Transition(ctx context.Context, id uuid.UUID, to enums.RequestStatus, processedBy uuid.UUID, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.AmountRequest{}).
		Where("id = ? AND status = ?", id, enums.RequestStatusPending).
		UpdateColumns(map[string]any{
			"status":       to,
			"processed_by": processedBy,
			"processed_at": now,
		})
	return result.RowsAffected, result.Error
}

func (r *repository) rows(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("amount_requests").
		Select("amount_requests.*, teams.name AS team_name, users.username AS username, users.full_name AS full_name").
		Joins("LEFT JOIN teams ON teams.id = amount_requests.team_id").
		Joins("LEFT JOIN users ON users.id = amount_requests.user_id")
}

func (r *repository) FindRow(ctx context.Context, id uuid.UUID) (*Row, error) {
	var rows []Row
	if err := r.rows(ctx).Where("amount_requests.id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *repository) List(ctx context.Context, filter listFilter, params pagination.Params) ([]Row, error) {
	query := r.rows(ctx)
	if filter.TeamID != nil {
		query = query.Where("amount_requests.team_id = ?", *filter.TeamID)
	}
	if filter.UserID != nil {
		query = query.Where("amount_requests.user_id = ?", *filter.UserID)
	}
	if filter.Status != nil {
		query = query.Where("amount_requests.status = ?", *filter.Status)
	}
	query, err := pagination.Apply(query, params, "amount_requests")
	if err != nil {
		return nil, err
	}
	var rows []Row
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
