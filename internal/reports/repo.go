package reports

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fieldworkbook/backend/pkg/enums"
)

// Repository runs the read-only report queries.
type Repository interface {
	Comparison(ctx context.Context) ([]comparisonRow, error)
}

type comparisonRow struct {
	UserID           uuid.UUID
	Username         string
	FullName         string
	Role             enums.Role
	TeamsCreated     int64
	TotalAllocated   decimal.Decimal
	TotalUsed        decimal.Decimal
	TotalRemaining   decimal.Decimal
	ExpenseCount     int64
	RequestsApproved int64
	RequestsRejected int64
	AmountApproved   decimal.Decimal
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a report repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// Each figure is a correlated subquery so team and request counts never
// multiply each other through a join.
const comparisonSQL = `
SELECT
	u.id AS user_id,
	u.username,
	u.full_name,
	u.role,
	(SELECT COUNT(*) FROM teams t WHERE t.created_by = u.id) AS teams_created,
	(SELECT ROUND(COALESCE(SUM(t.initial_amount), 0), 2) FROM teams t WHERE t.created_by = u.id) AS total_allocated,
	(SELECT ROUND(COALESCE(SUM(t.used_amount), 0), 2) FROM teams t WHERE t.created_by = u.id) AS total_used,
	(SELECT ROUND(COALESCE(SUM(t.remaining_amount), 0), 2) FROM teams t WHERE t.created_by = u.id) AS total_remaining,
	(SELECT COUNT(*) FROM expenses e JOIN teams t ON t.id = e.team_id WHERE t.created_by = u.id) AS expense_count,
	(SELECT COUNT(*) FROM amount_requests r WHERE r.processed_by = u.id AND r.status = ?) AS requests_approved,
	(SELECT COUNT(*) FROM amount_requests r WHERE r.processed_by = u.id AND r.status = ?) AS requests_rejected,
	(SELECT ROUND(COALESCE(SUM(r.requested_amount), 0), 2) FROM amount_requests r WHERE r.processed_by = u.id AND r.status = ?) AS amount_approved
FROM users u
WHERE u.role IN (?, ?)
ORDER BY u.role, u.full_name, u.username`

func (r *repository) Comparison(ctx context.Context) ([]comparisonRow, error) {
	var rows []comparisonRow
	err := r.db.WithContext(ctx).Raw(comparisonSQL,
		enums.RequestStatusApproved,
		enums.RequestStatusRejected,
		enums.RequestStatusApproved,
		enums.RoleAdmin,
		enums.RolePartner,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
