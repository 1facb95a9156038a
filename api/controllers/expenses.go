package controllers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fieldworkbook/backend/api/responses"
	"github.com/fieldworkbook/backend/api/validators"
	"github.com/fieldworkbook/backend/internal/attachments"
	"github.com/fieldworkbook/backend/internal/expenses"
	pkgerrors "github.com/fieldworkbook/backend/pkg/errors"
	"github.com/fieldworkbook/backend/pkg/logger"
)

const (
	multipartMemory   = 8 << 20
	multipartOverhead = 1 << 20
	attachmentField   = "file"
)

// expenseForm carries multipart values; the amount is parsed after validation.
type expenseForm struct {
	TeamID      *uuid.UUID `form:"team_id"`
	Description string     `form:"description" validate:"required,max=1000"`
	Amount      string     `form:"amount"`
	Category    string     `form:"category" validate:"required,max=100"`
}

// expenseBody accepts the amount as a JSON number or a decimal string.
type expenseBody struct {
	TeamID      *uuid.UUID       `json:"team_id"`
	Description string           `json:"description" validate:"required,max=1000"`
	Amount      *decimal.Decimal `json:"amount" validate:"required,money_nonneg"`
	Category    string           `json:"category" validate:"required,max=100"`
}

// ExpenseCreate accepts multipart/form-data (with an optional "file" part)
// or a plain JSON body when there is no receipt.
func ExpenseCreate(svc expenses.Service, maxUploadBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "expense service")
			return
		}
		principal, ok := principalOrFail(w, r, logg)
		if !ok {
			return
		}

		input, cleanup, err := readExpenseInput(w, r, maxUploadBytes)
		if cleanup != nil {
			defer cleanup()
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Create(r.Context(), principal, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, result)
	}
}

func readExpenseInput(w http.ResponseWriter, r *http.Request, maxUploadBytes int64) (expenses.CreateInput, func(), error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var body expenseBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return expenses.CreateInput{}, nil, err
		}
		return expenses.CreateInput{
			TeamID:      body.TeamID,
			Description: body.Description,
			Amount:      body.Amount.Round(2),
			Category:    body.Category,
		}, nil, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return expenses.CreateInput{}, nil, pkgerrors.New(pkgerrors.CodeTooLarge, "attachment exceeds size limit").
				WithDetails(map[string]any{"max_bytes": maxUploadBytes})
		}
		return expenses.CreateInput{}, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart body")
	}
	cleanup := func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}

	form := expenseForm{
		Description: r.FormValue("description"),
		Amount:      r.FormValue("amount"),
		Category:    r.FormValue("category"),
	}
	if raw := strings.TrimSpace(r.FormValue("team_id")); raw != "" {
		teamID, err := uuid.Parse(raw)
		if err != nil {
			return expenses.CreateInput{}, cleanup, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
				WithDetails(map[string]string{"team_id": "must be a uuid"})
		}
		form.TeamID = &teamID
	}
	if err := validators.Struct(&form); err != nil {
		return expenses.CreateInput{}, cleanup, err
	}
	input, err := form.toInput()
	if err != nil {
		return expenses.CreateInput{}, cleanup, err
	}

	file, header, err := r.FormFile(attachmentField)
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		return expenses.CreateInput{}, cleanup, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid attachment")
	default:
		closeFile := cleanup
		cleanup = func() {
			_ = file.Close()
			closeFile()
		}
		if header.Size > maxUploadBytes {
			return expenses.CreateInput{}, cleanup, pkgerrors.New(pkgerrors.CodeTooLarge, "attachment exceeds size limit").
				WithDetails(map[string]any{"max_bytes": maxUploadBytes})
		}
		input.Attachment = &attachments.Upload{Filename: header.Filename, Body: file}
	}
	return input, cleanup, nil
}

func (f expenseForm) toInput() (expenses.CreateInput, error) {
	amount, err := validators.ParseNonNegativeAmount("amount", f.Amount)
	if err != nil {
		return expenses.CreateInput{}, err
	}
	return expenses.CreateInput{
		TeamID:      f.TeamID,
		Description: f.Description,
		Amount:      amount,
		Category:    f.Category,
	}, nil
}

func ExpenseList(svc expenses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "expense service")
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
		userID, err := validators.ParseQueryUUID(r, "user_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), principal, expenses.ListParams{
			TeamID:   teamID,
			UserID:   userID,
			Category: validators.SanitizeString(r.URL.Query().Get("category"), 100),
			Params:   page,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func ExpenseGet(svc expenses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "expense service")
			return
		}
		principal, ok := principalOrFail(w, r, logg)
		if !ok {
			return
		}
		expenseID, err := validators.ParseURLUUID(r, "expenseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		expense, err := svc.Get(r.Context(), principal, expenseID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, expense)
	}
}

// ExpenseAttachment streams the stored receipt back to the client.
func ExpenseAttachment(svc expenses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "expense service")
			return
		}
		principal, ok := principalOrFail(w, r, logg)
		if !ok {
			return
		}
		expenseID, err := validators.ParseURLUUID(r, "expenseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		attachment, err := svc.OpenAttachment(r.Context(), principal, expenseID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer attachment.Body.Close()

		contentType := attachment.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": attachment.Name}))
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.WriteHeader(http.StatusOK)
		if _, err := io.Copy(w, attachment.Body); err != nil && logg != nil {
			logg.Error(r.Context(), "attachment.stream_failed", err)
		}
	}
}
