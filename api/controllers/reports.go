package controllers

import (
	"net/http"

	"github.com/fieldworkbook/backend/api/responses"
	"github.com/fieldworkbook/backend/internal/reports"
	"github.com/fieldworkbook/backend/pkg/logger"
)

func ReportComparison(svc reports.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "report service")
			return
		}
		principal, ok := principalOrFail(w, r, logg)
		if !ok {
			return
		}

		report, err := svc.Comparison(r.Context(), principal)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}
