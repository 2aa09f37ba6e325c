package user

type Role string

const (
	RoleMD       Role = "md"       // Managing director - approves and voids payroll runs
	RoleHRAdmin  Role = "hr_admin" // Prepares payroll runs and adjusts items
	RoleManager  Role = "manager"  // Read access to payroll reports
	RoleEmployee Role = "employee" // Regular employee
	RolePending  Role = "pending"  // Still in onboarding
)

// ParseRole normalises a role claim. Unknown values map to RolePending so they
// carry no capabilities.
func ParseRole(s string) Role {
	switch r := Role(s); r {
	case RoleMD, RoleHRAdmin, RoleManager, RoleEmployee:
		return r
	default:
		return RolePending
	}
}

func (r Role) String() string {
	return string(r)
}
