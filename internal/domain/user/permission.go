package user

type Permission string

const (
	// Payroll
	PermissionPayrollView       Permission = "payroll.view"
	PermissionPayrollCreateRun  Permission = "payroll.create_run"
	PermissionPayrollApproveRun Permission = "payroll.approve_run"
	PermissionPayrollMarkPaid   Permission = "payroll.mark_paid"

	// Reports
	PermissionReportsView Permission = "reports.view"
)

// RolePermissions maps roles to their permissions
var RolePermissions = map[Role][]Permission{
	RoleMD: {
		PermissionPayrollView,
		PermissionPayrollCreateRun,
		PermissionPayrollApproveRun,
		PermissionPayrollMarkPaid,
		PermissionReportsView,
	},
	RoleHRAdmin: {
		PermissionPayrollView,
		PermissionPayrollCreateRun,
		PermissionPayrollMarkPaid,
		PermissionReportsView,
	},
	RoleManager: {
		PermissionReportsView,
	},
	RoleEmployee: {},
	RolePending: {
		// Pending role has no permissions
	},
}

// HasPermission checks if a role has a specific permission
func HasPermission(role Role, permission Permission) bool {
	permissions, exists := RolePermissions[role]
	if !exists {
		return false
	}

	for _, p := range permissions {
		if p == permission {
			return true
		}
	}

	return false
}
