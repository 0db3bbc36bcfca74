// Package portal serves the role-gated academy dashboards: the edge gate that
// bounces requests without a credential, the per-area route guard, the role
// dispatcher used after login and the pages themselves.
package portal

import "github.com/aryan0dhankhar/academyportal/internal/security"

// AreaRoute binds an area to the path prefix it is served under.
type AreaRoute struct {
	Area   security.Area
	Prefix string
	Title  string
}

// AreaRoutes lists every guarded area in navigation order.
var AreaRoutes = []AreaRoute{
	{Area: security.AreaSuperAdmin, Prefix: "/superadmin", Title: "Super administração"},
	{Area: security.AreaAdmin, Prefix: "/dashboard", Title: "Painel administrativo"},
	{Area: security.AreaStaff, Prefix: "/funcionario", Title: "Área do funcionário"},
	{Area: security.AreaRecords, Prefix: "/aluno", Title: "Alunos"},
	{Area: security.AreaStudent, Prefix: "/dashboarduser/aluno-dashboard", Title: "Área do aluno"},
	{Area: security.AreaGuardian, Prefix: "/dashboarduser/responsavel-dashboard", Title: "Área do responsável"},
}

// RouteFor returns the route of area.
func RouteFor(area security.Area) (AreaRoute, bool) {
	for _, r := range AreaRoutes {
		if r.Area == area {
			return r, true
		}
	}
	return AreaRoute{}, false
}
