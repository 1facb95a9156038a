package reports

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fieldworkbook/backend/pkg/enums"
	"github.com/fieldworkbook/backend/pkg/types"
)

// ComparisonRowDTO is one admin or partner in the comparison table.
type ComparisonRowDTO struct {
	UserID           uuid.UUID  `json:"user_id"`
	Username         string     `json:"username"`
	FullName         string     `json:"full_name"`
	Role             enums.Role `json:"role"`
	TeamsCreated     int64      `json:"teams_created"`
	TotalAllocated   string     `json:"total_allocated"`
	TotalUsed        string     `json:"total_used"`
	TotalRemaining   string     `json:"total_remaining"`
	ExpenseCount     int64      `json:"expense_count"`
	RequestsApproved int64      `json:"requests_approved"`
	RequestsRejected int64      `json:"requests_rejected"`
	AmountApproved   string     `json:"amount_approved"`
}

// ComparisonTotalsDTO sums every row of the table.
type ComparisonTotalsDTO struct {
	TeamsCreated     int64  `json:"teams_created"`
	TotalAllocated   string `json:"total_allocated"`
	TotalUsed        string `json:"total_used"`
	TotalRemaining   string `json:"total_remaining"`
	ExpenseCount     int64  `json:"expense_count"`
	RequestsApproved int64  `json:"requests_approved"`
	RequestsRejected int64  `json:"requests_rejected"`
	AmountApproved   string `json:"amount_approved"`
}

// ComparisonDTO is the response of the comparison report.
type ComparisonDTO struct {
	Rows   []ComparisonRowDTO  `json:"rows"`
	Totals ComparisonTotalsDTO `json:"totals"`
}

func buildComparison(rows []comparisonRow) ComparisonDTO {
	out := ComparisonDTO{Rows: make([]ComparisonRowDTO, 0, len(rows))}
	var allocated, used, remaining, approved decimal.Decimal
	for _, row := range rows {
		out.Rows = append(out.Rows, ComparisonRowDTO{
			UserID:           row.UserID,
			Username:         row.Username,
			FullName:         row.FullName,
			Role:             row.Role,
			TeamsCreated:     row.TeamsCreated,
			TotalAllocated:   types.FormatMoney(row.TotalAllocated),
			TotalUsed:        types.FormatMoney(row.TotalUsed),
			TotalRemaining:   types.FormatMoney(row.TotalRemaining),
			ExpenseCount:     row.ExpenseCount,
			RequestsApproved: row.RequestsApproved,
			RequestsRejected: row.RequestsRejected,
			AmountApproved:   types.FormatMoney(row.AmountApproved),
		})
		out.Totals.TeamsCreated += row.TeamsCreated
		out.Totals.ExpenseCount += row.ExpenseCount
		out.Totals.RequestsApproved += row.RequestsApproved
		out.Totals.RequestsRejected += row.RequestsRejected
		allocated = allocated.Add(row.TotalAllocated)
		used = used.Add(row.TotalUsed)
		remaining = remaining.Add(row.TotalRemaining)
		approved = approved.Add(row.AmountApproved)
	}
	out.Totals.TotalAllocated = types.FormatMoney(allocated)
	out.Totals.TotalUsed = types.FormatMoney(used)
	out.Totals.TotalRemaining = types.FormatMoney(remaining)
	out.Totals.AmountApproved = types.FormatMoney(approved)
	return out
}
