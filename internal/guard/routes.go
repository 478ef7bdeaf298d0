package guard

import (
	"strings"

	"github.com/moriyama/contestgate/internal/model"
)

// Route はビュールート1件のアクセス制御メタデータを表す。
type Route struct {
	// Pattern はパスのプレフィックス。最長一致で解決する。
	Pattern string
	// RequiresAuth は認証必須かを示す。
	RequiresAuth bool
	// Roles は許可するロール。空の場合はロール制限なし。
	Roles []model.Role
}

// Allows は指定ロールのアクセスを許可するかを返す。
func (r *Route) Allows(role model.Role) bool {
	if len(r.Roles) == 0 {
		return true
	}
	for _, allowed := range r.Roles {
		if allowed == role {
			return true
		}
	}
	return false
}

// DefaultRoutes は既定のルートメタデータテーブルを返す。
func DefaultRoutes() []Route {
	return []Route{
		{Pattern: "/login"},
		{Pattern: "/register"},
		{Pattern: "/403"},
		{Pattern: "/dashboard", RequiresAuth: true},
		{Pattern: "/profile", RequiresAuth: true},
		{Pattern: "/competitions", RequiresAuth: true},
		{Pattern: "/teams", RequiresAuth: true},
		{Pattern: "/registrations", RequiresAuth: true},
		{Pattern: "/scores", RequiresAuth: true},
		{Pattern: "/teacher-dashboard", RequiresAuth: true, Roles: []model.Role{model.RoleTeacher, model.RoleAdmin}},
		{Pattern: "/grading", RequiresAuth: true, Roles: []model.Role{model.RoleTeacher, model.RoleAdmin}},
		{Pattern: "/admin-dashboard", RequiresAuth: true, Roles: []model.Role{model.RoleAdmin}},
		{Pattern: "/admin", RequiresAuth: true, Roles: []model.Role{model.RoleAdmin}},
	}
}

// match は最長一致でルートメタデータを解決する。
// 一致するルートがない場合はnilを返す（制限なしとして扱う）。
func match(routes []Route, path string) *Route {
	var best *Route
	for i := range routes {
		route := &routes[i]
		if path != route.Pattern && !strings.HasPrefix(path, route.Pattern+"/") {
			continue
		}
		if best == nil || len(route.Pattern) > len(best.Pattern) {
			best = route
		}
	}
	return best
}
