package portal

import "github.com/aryan0dhankhar/academyportal/internal/domain"

// FallbackLanding is where roles outside the enumeration are sent.
const FallbackLanding = "/dashboard"

var landing = map[domain.Role]string{
	domain.RoleSuperAdmin:  "/superadmin",
	domain.RoleAdmin:       "/dashboard",
	domain.RoleFuncionario: "/funcionario",
	domain.RoleAluno:       "/dashboarduser/aluno-dashboard",
	domain.RoleResponsavel: "/dashboarduser/responsavel-dashboard",
}

// LandingPath maps a raw role to the area a user lands on after login.
func LandingPath(rawRole string) string {
	role, ok := domain.NormalizeRole(rawRole)
	if !ok {
		return FallbackLanding
	}
	if path, ok := landing[role]; ok {
		return path
	}
	return FallbackLanding
}
