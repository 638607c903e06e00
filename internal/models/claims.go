package models

// Role represents user roles in the system
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleOperator Role = "operator"
	RoleViewer   Role = "viewer"
)

// Actions checked by the API.
const (
	PermViewSchedules   = "schedules:read"
	PermCreateSeries    = "schedules:write"
	PermMaintainHorizon = "horizon:maintain"
)

// Claims represents the identity carried by a JWT. TenantID scopes every
// schedule read and write made on behalf of the token holder.
type Claims struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
	Role     Role   `json:"role"`
	Exp      int64  `json:"exp"`
}

// IsValidRole checks if a role is valid
func IsValidRole(role Role) bool {
	switch role {
	case RoleAdmin, RoleManager, RoleOperator, RoleViewer:
		return true
	default:
		return false
	}
}

// HasPermission checks if the role may perform action
func (r Role) HasPermission(action string) bool {
	switch r {
	case RoleAdmin, RoleManager:
		return true
	case RoleOperator:
		return action == PermViewSchedules || action == PermCreateSeries
	case RoleViewer:
		return action == PermViewSchedules
	default:
		return false
	}
}
