package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/fieldworkbook/backend/api/responses"
	"github.com/fieldworkbook/backend/api/validators"
	"github.com/fieldworkbook/backend/internal/access"
	"github.com/fieldworkbook/backend/internal/amountrequests"
	"github.com/fieldworkbook/backend/pkg/enums"
	pkgerrors "github.com/fieldworkbook/backend/pkg/errors"
	"github.com/fieldworkbook/backend/pkg/logger"
)

func AmountRequestList(svc amountrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "amount request service")
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
		teamID, err := validators.ParseQueryUUID(r, "team_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := amountrequests.ListParams{TeamID: teamID, Params: page}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseRequestStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid status").WithDetails(map[string]any{"field": "status"}))
				return
			}
			params.Status = &status
		}

		result, err := svc.List(r.Context(), principal, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// AmountRequestSubmit files a pending request for additional team funds.
func AmountRequestSubmit(svc amountrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "amount request service")
			return
		}
		principal, ok := principalOrFail(w, r, logg)
		if !ok {
			return
		}

		var body amountrequests.SubmitInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := svc.Submit(r.Context(), principal, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, request)
	}
}

func AmountRequestGet(svc amountrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "amount request service")
			return
		}
		principal, ok := principalOrFail(w, r, logg)
		if !ok {
			return
		}
		requestID, err := validators.ParseURLUUID(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := svc.Get(r.Context(), principal, requestID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, request)
	}
}

func AmountRequestApprove(svc amountrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return amountRequestTransition(svc, logg, func(s amountrequests.Service) transitionFunc { return s.Approve })
}

func AmountRequestReject(svc amountrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return amountRequestTransition(svc, logg, func(s amountrequests.Service) transitionFunc { return s.Reject })
}

type transitionFunc func(ctx context.Context, principal access.Principal, id uuid.UUID) (*amountrequests.AmountRequestDTO, error)

func amountRequestTransition(svc amountrequests.Service, logg *logger.Logger, pick func(amountrequests.Service) transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "amount request service")
			return
		}
		principal, ok := principalOrFail(w, r, logg)
		if !ok {
			return
		}
		requestID, err := validators.ParseURLUUID(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := pick(svc)(r.Context(), principal, requestID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, request)
	}
}
