package domain

import (
	"context"
	"time"
)

// Identity is the resolved user record returned by GET /auth/me.
type Identity struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	TenantID string `json:"tenantId"`
	IsActive bool   `json:"isActive"`
}

// NormalizedRole returns the identity's role after case and alias normalization.
func (i *Identity) NormalizedRole() (Role, bool) {
	if i == nil {
		return "", false
	}
	return NormalizeRole(i.Role)
}

// User represents an account known to the identity service
type User struct {
	ID           string // UUID
	Name         string
	Email        string // Unique email address
	PasswordHash string // Bcrypt hashed password (not returned in API)
	Role         string
	TenantID     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	IsActive     bool
}

// Identity projects the account onto the public identity record.
func (u *User) Identity() *Identity {
	return &Identity{
		ID:       u.ID,
		Name:     u.Name,
		Email:    u.Email,
		Role:     u.Role,
		TenantID: u.TenantID,
		IsActive: u.IsActive,
	}
}

// UserRepository defines data access for users
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*User, error)
}

// Tenant represents an academy
type Tenant struct {
	ID                string
	Name              string
	AulasExtrasAtivas bool
	CrossfitAtivo     bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
	IsActive          bool
}

// TenantRepository defines data access for tenants
type TenantRepository interface {
	GetByID(ctx context.Context, id string) (*Tenant, error)
}

// LoginResult is the body of POST /auth/login.
type LoginResult struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	Token   string    `json:"token,omitempty"`
	User    *Identity `json:"user,omitempty"`
}
