package controllers

import (
	"net/http"
	"strings"

	"github.com/fieldworkbook/backend/api/middleware"
	"github.com/fieldworkbook/backend/api/responses"
	"github.com/fieldworkbook/backend/api/validators"
	"github.com/fieldworkbook/backend/internal/access"
	pkgerrors "github.com/fieldworkbook/backend/pkg/errors"
	"github.com/fieldworkbook/backend/pkg/logger"
	"github.com/fieldworkbook/backend/pkg/pagination"
)

func parseBearerToken(r *http.Request) (string, error) {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	token := raw
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if token == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	return token, nil
}

// principalOrFail reports the authenticated caller, writing 401 when the
// route was mounted without the auth middleware.
func principalOrFail(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (access.Principal, bool) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
		return access.Principal{}, false
	}
	return principal, true
}

func parsePageParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}, nil
}

func unavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger, name string) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, name+" unavailable"))
}
