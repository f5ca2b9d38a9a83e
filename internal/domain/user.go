package domain

// 角色（粗粒度）
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// 功能权限标签
const (
	PermissionDashboard = "dashboard"
	PermissionForm      = "form"
	PermissionAdmin     = "admin"
)

// User 用户（对应 users 表）
// AssignedLocalities 为派生字段，由 access_grants 计算得出
type User struct {
	ID                 string   `db:"id" json:"id"`
	Name               string   `db:"name" json:"name,omitempty"`
	Role               string   `db:"role" json:"role"`
	AccessLevelID      string   `db:"access_level_id" json:"accessLevelId,omitempty"`
	Active             bool     `db:"active" json:"active"`
	AssignedLocalities []string `db:"-" json:"assignedLocalities,omitempty"`
}

// IsAdmin 管理员绕过所有辖区授权检查
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// AccessLevel 命名的权限集合（对应 access_levels 表）
type AccessLevel struct {
	ID          string   `db:"id" json:"id"`
	Name        string   `db:"name" json:"name"`
	Description string   `db:"description" json:"description,omitempty"`
	Permissions []string `db:"permissions" json:"permissions"`
}

// Has 是否包含某个功能权限
func (l AccessLevel) Has(permission string) bool {
	for _, p := range l.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// AccessGrant 用户-辖区授权（对应 access_grants 表），(user_id, locality_id) 唯一
type AccessGrant struct {
	UserID     string `db:"user_id" json:"userId"`
	LocalityID string `db:"locality_id" json:"localityId"`
}
