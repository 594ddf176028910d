package shared

// Roles recognised by the reporting endpoints.
const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleCashier    = "cashier"
)

// ReportRoles returns the allow-list of roles permitted to run
// consolidated reports.
func ReportRoles() []string {
	return []string{RoleSuperAdmin, RoleAdmin}
}

// RoleAllowed reports whether role appears in the allow-list.
func RoleAllowed(role string, allowed []string) bool {
	for _, candidate := range allowed {
		if role == candidate {
			return true
		}
	}
	return false
}
