// Package users manages login identities and their team bindings.
package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fieldworkbook/backend/internal/access"
	"github.com/fieldworkbook/backend/pkg/config"
	"github.com/fieldworkbook/backend/pkg/db"
	"github.com/fieldworkbook/backend/pkg/db/models"
	"github.com/fieldworkbook/backend/pkg/enums"
	pkgerrors "github.com/fieldworkbook/backend/pkg/errors"
	"github.com/fieldworkbook/backend/pkg/logger"
	"github.com/fieldworkbook/backend/pkg/pagination"
	"github.com/fieldworkbook/backend/pkg/security"
)

const tempPasswordLength = 12

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// sessionRevoker ends a user's sessions so the next request re-reads role
// and team from the database.
type sessionRevoker interface {
	RevokeUser(ctx context.Context, userID uuid.UUID) error
}

// Service defines user administration.
type Service interface {
	Create(ctx context.Context, principal access.Principal, input CreateInput) (*CreateResult, error)
	CreateAdmin(ctx context.Context, input CreateInput) (*CreateResult, error)
	List(ctx context.Context, principal access.Principal, params ListParams) (pagination.Page[UserDTO], error)
	Get(ctx context.Context, principal access.Principal, id uuid.UUID) (*UserDTO, error)
	AssignTeam(ctx context.Context, principal access.Principal, id uuid.UUID, input AssignTeamInput) (*UserDTO, error)
	Delete(ctx context.Context, principal access.Principal, id uuid.UUID) error
}

// ServiceParams bundles the dependencies required to build a user service.
type ServiceParams struct {
	Repo           *Repository
	Tx             txRunner
	PasswordConfig config.PasswordConfig
	Logger         *logger.Logger
	// Sessions may be nil when no login surface is wired (cmd/create-user).
	Sessions       sessionRevoker
}

type service struct {
	repo        *Repository
	tx          txRunner
	passwordCfg config.PasswordConfig
	logg        *logger.Logger
	sessions    sessionRevoker
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	return &service{
		repo:        params.Repo,
		tx:          params.Tx,
		passwordCfg: params.PasswordConfig,
		logg:        params.Logger,
		sessions:    params.Sessions,
	}, nil
}

// Create lets admins add partners and field staff, and partners add field staff.
func (s *service) Create(ctx context.Context, principal access.Principal, input CreateInput) (*CreateResult, error) {
	if err := principal.RequireManager(); err != nil {
		return nil, err
	}
	if !input.Role.IsValid() {
		return nil, validationError("role", "must be one of admin partner field_staff")
	}
	if !principal.CanManageRole(input.Role) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, fmt.Sprintf("%s cannot create %s users", principal.Role, input.Role))
	}
	return s.create(ctx, input)
}

// CreateAdmin bootstraps an admin account from the command line.
func (s *service) CreateAdmin(ctx context.Context, input CreateInput) (*CreateResult, error) {
	input.Role = enums.RoleAdmin
	input.TeamID = nil
	return s.create(ctx, input)
}

func (s *service) create(ctx context.Context, input CreateInput) (*CreateResult, error) {
	username := NormalizeUsername(input.Username)
	if username == "" {
		return nil, validationError("username", "is required")
	}
	if input.Role == enums.RoleFieldStaff && input.TeamID == nil {
		return nil, validationError("team_id", "is required for field staff")
	}
	if input.Role != enums.RoleFieldStaff && input.TeamID != nil {
		return nil, validationError("team_id", "only field staff belong to a team")
	}

	password := input.Password
	temporary := ""
	if password == "" {
		generated, err := generatePassword()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate password")
		}
		password, temporary = generated, generated
	} else if err := security.ValidatePassword(password); err != nil {
		return nil, validationError("password", "must be at least 8 characters with a letter and a digit")
	}

	hash, err := security.HashPassword(password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var user *models.User
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if input.TeamID != nil {
			if err := requireTeam(ctx, repo, *input.TeamID); err != nil {
				return err
			}
		}
		if _, err := repo.FindByUsername(ctx, username); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "username already taken")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check username")
		}

		created, err := repo.Create(ctx, CreateUserDTO{
			Username:     username,
			PasswordHash: hash,
			FullName:     input.FullName,
			Email:        input.Email,
			Role:         input.Role,
			TeamID:       input.TeamID,
		})
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "username already taken")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
		}
		user = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"created_user_id": user.ID.String(),
			"role":            string(user.Role),
		}), "user.created")
	}
	return &CreateResult{User: FromModel(user), TemporaryPassword: temporary}, nil
}

func (s *service) List(ctx context.Context, principal access.Principal, params ListParams) (pagination.Page[UserDTO], error) {
	if err := principal.RequireManager(); err != nil {
		return pagination.Page[UserDTO]{}, err
	}
	if params.Role != nil && !params.Role.IsValid() {
		return pagination.Page[UserDTO]{}, validationError("role", "must be one of admin partner field_staff")
	}
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return pagination.Page[UserDTO]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, listFilter{Role: params.Role, TeamID: params.TeamID, Search: params.Search}, params.Params)
	if err != nil {
		return pagination.Page[UserDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list users")
	}
	page := pagination.Build(rows, params.Params, func(u models.User) pagination.Cursor {
		return pagination.Cursor{CreatedAt: u.CreatedAt, ID: u.ID}
	})
	out := pagination.Page[UserDTO]{Items: make([]UserDTO, 0, len(page.Items)), NextCursor: page.NextCursor}
	for i := range page.Items {
		out.Items = append(out.Items, *FromModel(&page.Items[i]))
	}
	return out, nil
}

// Get returns any user to managers and only themselves to field staff.
func (s *service) Get(ctx context.Context, principal access.Principal, id uuid.UUID) (*UserDTO, error) {
	if !principal.IsManager() && principal.UserID != id {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	user, err := load(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	return FromModel(user), nil
}

func (s *service) AssignTeam(ctx context.Context, principal access.Principal, id uuid.UUID, input AssignTeamInput) (*UserDTO, error) {
	if err := principal.RequireManager(); err != nil {
		return nil, err
	}
	var (
		user    *models.User
		changed bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		user, err = load(ctx, repo, id)
		if err != nil {
			return err
		}
		if user.Role != enums.RoleFieldStaff {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only field staff can be assigned to a team").
				WithDetails(map[string]string{"role": string(user.Role)})
		}
		if input.TeamID != nil {
			if err := requireTeam(ctx, repo, *input.TeamID); err != nil {
				return err
			}
		}
		if err := repo.UpdateTeam(ctx, id, input.TeamID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign team")
		}
		changed = !sameTeam(user.TeamID, input.TeamID)
		user.TeamID = input.TeamID
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		// Access tokens carry the team claim; the old one must stop working.
		if err := s.revokeSessions(ctx, id); err != nil {
			return nil, err
		}
	}
	return FromModel(user), nil
}

// Delete refuses users that authored expenses; their amount requests are
// removed with them.
func (s *service) Delete(ctx context.Context, principal access.Principal, id uuid.UUID) error {
	if err := principal.RequireManager(); err != nil {
		return err
	}
	if principal.UserID == id {
		return pkgerrors.New(pkgerrors.CodeForbidden, "cannot delete your own account")
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		user, err := load(ctx, repo, id)
		if err != nil {
			return err
		}
		if !principal.CanManageRole(user.Role) {
			return pkgerrors.New(pkgerrors.CodeForbidden, fmt.Sprintf("%s cannot delete %s users", principal.Role, user.Role))
		}
		count, err := repo.CountExpenses(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count user expenses")
		}
		if count > 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "user has expenses and cannot be deleted").
				WithDetails(map[string]any{"expense_count": count})
		}
		if err := repo.Delete(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete user")
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := s.revokeSessions(ctx, id); err != nil {
		return err
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "deleted_user_id", id.String()), "user.deleted")
	}
	return nil
}

func (s *service) revokeSessions(ctx context.Context, userID uuid.UUID) error {
	if s.sessions == nil {
		return nil
	}
	if err := s.sessions.RevokeUser(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke user sessions")
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "revoked_user_id", userID.String()), "user.sessions_revoked")
	}
	return nil
}

func sameTeam(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func load(ctx context.Context, repo *Repository, id uuid.UUID) (*models.User, error) {
	user, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return user, nil
}

func requireTeam(ctx context.Context, repo *Repository, teamID uuid.UUID) error {
	ok, err := repo.TeamExists(ctx, teamID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load team")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "team not found")
	}
	return nil
}

// generatePassword draws until the result satisfies the password policy.
func generatePassword() (string, error) {
	for {
		candidate, err := security.GenerateTempPassword(tempPasswordLength)
		if err != nil {
			return "", err
		}
		if security.ValidatePassword(candidate) == nil {
			return candidate, nil
		}
	}
}

func validationError(field, msg string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(map[string]string{field: msg})
}
