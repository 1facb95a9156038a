package controllers

import (
	"net/http"

	"github.com/fieldworkbook/backend/api/responses"
	"github.com/fieldworkbook/backend/api/validators"
	"github.com/fieldworkbook/backend/internal/teams"
	"github.com/fieldworkbook/backend/pkg/logger"
)

// DashboardStats returns the ledger aggregate visible to the caller.
func DashboardStats(svc teams.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "team service")
			return
		}
		principal, ok := principalOrFail(w, r, logg)
		if !ok {
			return
		}

		stats, err := svc.Stats(r.Context(), principal)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}

func TeamList(svc teams.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "team service")
			return
		}
		principal, ok := principalOrFail(w, r, logg)
		if !ok {
			return
		}

		page, err := parsePageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), principal, teams.ListParams{
			Search: validators.SanitizeString(r.URL.Query().Get("q"), 200),
			Params: page,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func TeamCreate(svc teams.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "team service")
			return
		}
		principal, ok := principalOrFail(w, r, logg)
		if !ok {
			return
		}

		var body teams.CreateInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		team, err := svc.Create(r.Context(), principal, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, team)
	}
}

func TeamGet(svc teams.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "team service")
			return
		}
		principal, ok := principalOrFail(w, r, logg)
		if !ok {
			return
		}
		teamID, err := validators.ParseURLUUID(r, "teamId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		team, err := svc.Get(r.Context(), principal, teamID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, team)
	}
}

func TeamUpdate(svc teams.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "team service")
			return
		}
		principal, ok := principalOrFail(w, r, logg)
		if !ok {
			return
		}
		teamID, err := validators.ParseURLUUID(r, "teamId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body teams.UpdateInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		team, err := svc.Update(r.Context(), principal, teamID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, team)
	}
}

func TeamDelete(svc teams.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "team service")
			return
		}
		principal, ok := principalOrFail(w, r, logg)
		if !ok {
			return
		}
		teamID, err := validators.ParseURLUUID(r, "teamId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), principal, teamID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

// TeamLedger pages through the team's ledger events, newest first.
func TeamLedger(svc teams.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "team service")
			return
		}
		principal, ok := principalOrFail(w, r, logg)
		if !ok {
			return
		}
		teamID, err := validators.ParseURLUUID(r, "teamId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := parsePageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		events, err := svc.Events(r.Context(), principal, teamID, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, events)
	}
}

func LedgerDrift(svc teams.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "team service")
			return
		}
		principal, ok := principalOrFail(w, r, logg)
		if !ok {
			return
		}

		drift, err := svc.Drift(r.Context(), principal)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"teams": drift})
	}
}

// LedgerRecalculate rebuilds a team's used and remaining amounts from its expenses.
func LedgerRecalculate(svc teams.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "team service")
			return
		}
		principal, ok := principalOrFail(w, r, logg)
		if !ok {
			return
		}
		teamID, err := validators.ParseURLUUID(r, "teamId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balances, err := svc.Recalculate(r.Context(), principal, teamID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, balances)
	}
}
