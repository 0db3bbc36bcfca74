package security

import (
	"fmt"
	"time"

	"github.com/aryan0dhankhar/academyportal/internal/domain"
	"github.com/aryan0dhankhar/academyportal/internal/security/auth"
)

// Area represents a role-scoped section of the portal
type Area string

const (
	AreaSuperAdmin Area = "superadmin"
	AreaAdmin      Area = "admin"
	AreaStaff      Area = "staff"
	AreaRecords    Area = "records"
	AreaStudent    Area = "student"
	AreaGuardian   Area = "guardian"
)

// AreaRoles maps areas to the roles allowed to enter them
var AreaRoles = map[Area][]domain.Role{
	AreaSuperAdmin: {
		domain.RoleSuperAdmin,
	},
	AreaAdmin: {
		domain.RoleSuperAdmin,
		domain.RoleAdmin,
	},
	AreaStaff: {
		domain.RoleAdmin,
		domain.RoleFuncionario,
	},
	AreaRecords: {
		domain.RoleSuperAdmin,
		domain.RoleAdmin,
		domain.RoleFuncionario,
	},
	AreaStudent: {
		domain.RoleAluno,
	},
	AreaGuardian: {
		domain.RoleResponsavel,
	},
}

// Policy is the single authorization policy shared by the edge gate and the route guards
type Policy struct {
	now func() time.Time
}

// NewPolicy creates a new authorization policy
func NewPolicy() *Policy {
	return &Policy{now: time.Now}
}

// CheckCredential performs the cheap structural check used at the edge
func (p *Policy) CheckCredential(token string) error {
	if token == "" {
		return domain.ErrUnauthenticated
	}
	if _, err := auth.InspectToken(token, p.now()); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	return nil
}

// Allows checks if a raw role string may enter an area. Roles are normalized
// before the membership check.
func Allows(area Area, rawRole string) bool {
	role, ok := domain.NormalizeRole(rawRole)
	if !ok {
		return false
	}
	for _, allowed := range AreaRoles[area] {
		if allowed == role {
			return true
		}
	}
	return false
}

// Allows is the policy's view of the package-level Allows.
func (p *Policy) Allows(area Area, rawRole string) bool {
	return Allows(area, rawRole)
}

// ValidateAreaAccess validates that an identity may enter an area. Denials are
// not logged here; callers record them in the audit log.
func (p *Policy) ValidateAreaAccess(area Area, identity *domain.Identity) error {
	if identity == nil {
		return domain.ErrUnauthenticated
	}
	if !p.Allows(area, identity.Role) {
		return fmt.Errorf("access denied: %s role cannot enter %s", identity.Role, area)
	}
	return nil
}
