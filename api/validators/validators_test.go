package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/fieldworkbook/backend/pkg/errors"
)

type amountBody struct {
	Amount decimal.Decimal `json:"amount" validate:"money"`
	Reason string          `json:"reason" validate:"required,max=20"`
}

func TestDecodeJSONBodyValidatesMoney(t *testing.T) {
	cases := []struct {
		name  string
		body  string
		field string
	}{
		{name: "negative", body: `{"amount":"-5","reason":"fuel"}`, field: "amount"},
		{name: "zero", body: `{"amount":0,"reason":"fuel"}`, field: "amount"},
		{name: "three decimals", body: `{"amount":"1.005","reason":"fuel"}`, field: "amount"},
		{name: "too large", body: `{"amount":"100000000","reason":"fuel"}`, field: "amount"},
		{name: "missing reason", body: `{"amount":"10"}`, field: "reason"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			var dest amountBody
			err := DecodeJSONBody(req, &dest)
			require.Error(t, err)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
			details, ok := typed.Details().(map[string]string)
			require.True(t, ok)
			assert.Contains(t, details, tc.field)
		})
	}
}

func TestDecodeJSONBodyAcceptsNumbersAndStrings(t *testing.T) {
	for _, body := range []string{`{"amount":1200.5,"reason":"fuel"}`, `{"amount":"1200.50","reason":"fuel"}`} {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		var dest amountBody
		require.NoError(t, DecodeJSONBody(req, &dest))
		assert.Equal(t, "1200.50", dest.Amount.StringFixed(2))
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":"1","reason":"x","extra":true}`))
	var dest amountBody
	err := DecodeJSONBody(req, &dest)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParseAmount(t *testing.T) {
	amount, err := ParseAmount("amount", " 1200.5 ")
	require.NoError(t, err)
	assert.Equal(t, "1200.50", amount.StringFixed(2))

	for _, raw := range []string{"", "abc", "-1", "0", "0.001"} {
		_, err := ParseAmount("amount", raw)
		assert.Error(t, err, raw)
	}
}

func TestParseQueryHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=10&team_id=not-a-uuid", nil)

	limit, err := ParseQueryInt(req, "limit", 25, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 10, limit)

	_, err = ParseQueryUUID(req, "team_id")
	assert.Error(t, err)

	missing, err := ParseQueryUUID(req, "user_id")
	require.NoError(t, err)
	assert.Nil(t, missing)

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("teamId", "b9d4b1a8-3d5e-4a8e-9f6a-1f3f1c2b7e10")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	id, err := ParseURLUUID(req, "teamId")
	require.NoError(t, err)
	assert.Equal(t, "b9d4b1a8-3d5e-4a8e-9f6a-1f3f1c2b7e10", id.String())
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "abc", SanitizeString("  abcdef ", 3))
	assert.Equal(t, "ñan", SanitizeString("ñandú", 3))
	assert.Nil(t, OptionalString("   ", 10))
	assert.Equal(t, "x", *OptionalString(" x ", 10))
}
