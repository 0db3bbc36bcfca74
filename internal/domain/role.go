package domain

import "strings"

// Role is one of the fixed roles an academy account can hold.
type Role string

const (
	RoleSuperAdmin  Role = "SUPER_ADMIN"
	RoleAdmin       Role = "ADMIN"
	RoleFuncionario Role = "FUNCIONARIO"
	RoleAluno       Role = "ALUNO"
	RoleResponsavel Role = "RESPONSAVEL"
)

// Roles lists the full role enumeration.
var Roles = []Role{
	RoleSuperAdmin,
	RoleAdmin,
	RoleFuncionario,
	RoleAluno,
	RoleResponsavel,
}

// roleAliases maps spellings still emitted by older tenants onto the enumeration.
var roleAliases = map[string]Role{
	"SUPERADMIN":    RoleSuperAdmin,
	"ALUNO_FUTEBOL": RoleAluno,
}

// NormalizeRole uppercases and trims a raw role string and resolves known aliases.
// The second result is false when the value is not part of the enumeration.
func NormalizeRole(raw string) (Role, bool) {
	upper := strings.ToUpper(strings.TrimSpace(raw))
	if alias, ok := roleAliases[upper]; ok {
		return alias, true
	}
	r := Role(upper)
	return r, r.Valid()
}

// Valid reports whether r is exactly one of the enumerated roles.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

func (r Role) String() string {
	return string(r)
}
