// Package reports builds read-only management reports over teams, expenses
// and amount requests.
package reports

import (
	"context"
	"fmt"

	"github.com/fieldworkbook/backend/internal/access"
	pkgerrors "github.com/fieldworkbook/backend/pkg/errors"
)

// Service exposes the management reports.
type Service interface {
	Comparison(ctx context.Context, principal access.Principal) (ComparisonDTO, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("report repository required")
	}
	return &service{repo: repo}, nil
}

// Comparison lists every admin and partner with the budget they allocated,
// the spend inside the teams they created and the requests they decided.
func (s *service) Comparison(ctx context.Context, principal access.Principal) (ComparisonDTO, error) {
	if err := principal.RequireManager(); err != nil {
		return ComparisonDTO{}, err
	}
	rows, err := s.repo.Comparison(ctx)
	if err != nil {
		return ComparisonDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build comparison report")
	}
	return buildComparison(rows), nil
}
