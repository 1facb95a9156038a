package users

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fieldworkbook/backend/pkg/db/models"
	"github.com/fieldworkbook/backend/pkg/enums"
	"github.com/fieldworkbook/backend/pkg/pagination"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID          uuid.UUID  `json:"id"`
	Username    string     `json:"username"`
	FullName    string     `json:"full_name"`
	Email       *string    `json:"email,omitempty"`
	Role        enums.Role `json:"role"`
	TeamID      *uuid.UUID `json:"team_id,omitempty"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Username     string
	PasswordHash string
	FullName     string
	Email        *string
	Role         enums.Role
	TeamID       *uuid.UUID
}

// CreateInput is the body of POST /users. An empty password asks the server
// to generate a temporary one.
type CreateInput struct {
	Username string     `json:"username" validate:"required,min=3,max=50,username"`
	Password string     `json:"password" validate:"omitempty,min=8,max=128"`
	FullName string     `json:"full_name" validate:"required,max=200"`
	Email    *string    `json:"email" validate:"omitempty,email,max=254"`
	Role     enums.Role `json:"role" validate:"required"`
	TeamID   *uuid.UUID `json:"team_id"`
}

// CreateResult carries the temporary password exactly once.
type CreateResult struct {
	User              *UserDTO `json:"user"`
	TemporaryPassword string   `json:"temporary_password,omitempty"`
}

// AssignTeamInput is the body of PUT /users/{userId}/team. A null team unbinds.
type AssignTeamInput struct {
	TeamID *uuid.UUID `json:"team_id"`
}

type ListParams struct {
	Role   *enums.Role
	TeamID *uuid.UUID
	Search string
	pagination.Params
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}

	return &UserDTO{
		ID:          u.ID,
		Username:    u.Username,
		FullName:    u.FullName,
		Email:       u.Email,
		Role:        u.Role,
		TeamID:      u.TeamID,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	var email *string
	if c.Email != nil {
		if trimmed := strings.TrimSpace(*c.Email); trimmed != "" {
			email = &trimmed
		}
	}
	return &models.User{
		Username:     c.Username,
		PasswordHash: c.PasswordHash,
		FullName:     strings.TrimSpace(c.FullName),
		Email:        email,
		Role:         c.Role,
		TeamID:       c.TeamID,
	}
}

// NormalizeUsername is the canonical stored and looked-up form.
func NormalizeUsername(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
