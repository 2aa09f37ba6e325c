package authz

import (
	"testing"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorizer_RolePermissions(t *testing.T) {
	a, err := NewAuthorizer(nil)
	require.NoError(t, err)

	tests := []struct {
		role       user.Role
		capability user.Permission
		want       bool
	}{
		{user.RoleMD, user.PermissionPayrollCreateRun, true},
		{user.RoleMD, user.PermissionPayrollApproveRun, true},
		{user.RoleMD, user.PermissionPayrollMarkPaid, true},
		{user.RoleMD, user.PermissionPayrollView, true},
		{user.RoleHRAdmin, user.PermissionPayrollCreateRun, true},
		{user.RoleHRAdmin, user.PermissionPayrollMarkPaid, true},
		{user.RoleHRAdmin, user.PermissionPayrollApproveRun, false},
		{user.RoleManager, user.PermissionPayrollView, false},
		{user.RoleManager, user.PermissionReportsView, true},
		{user.RoleEmployee, user.PermissionPayrollView, false},
		{user.RolePending, user.PermissionPayrollCreateRun, false},
		{user.Role(""), user.PermissionPayrollView, false},
	}

	for _, tt := range tests {
		actor := payroll.Actor{UserID: "u1", CompanyID: "c1", Role: tt.role}
		assert.Equal(t, tt.want, a.HasCapability(actor, tt.capability), "%s -> %s", tt.role, tt.capability)
	}
}

// The casbin policy must agree with the static table for every pair.
func TestAuthorizer_MatchesStaticTable(t *testing.T) {
	a, err := NewAuthorizer(nil)
	require.NoError(t, err)

	roles := []user.Role{user.RoleMD, user.RoleHRAdmin, user.RoleManager, user.RoleEmployee, user.RolePending}
	perms := []user.Permission{
		user.PermissionPayrollView,
		user.PermissionPayrollCreateRun,
		user.PermissionPayrollApproveRun,
		user.PermissionPayrollMarkPaid,
		user.PermissionReportsView,
	}
	for _, r := range roles {
		for _, p := range perms {
			assert.Equal(t, user.HasPermission(r, p), a.HasCapability(payroll.Actor{Role: r}, p), "%s -> %s", r, p)
		}
	}
}

func TestNewAuthorizerFromTable_Custom(t *testing.T) {
	a, err := NewAuthorizerFromTable(map[user.Role][]user.Permission{
		user.RoleManager: {user.PermissionPayrollView},
	}, nil)
	require.NoError(t, err)

	assert.True(t, a.HasCapability(payroll.Actor{Role: user.RoleManager}, user.PermissionPayrollView))
	assert.False(t, a.HasCapability(payroll.Actor{Role: user.RoleMD}, user.PermissionPayrollView))
}

func TestSubjectFromRole(t *testing.T) {
	assert.Equal(t, "role:md", SubjectFromRole(user.RoleMD))
	assert.Equal(t, "role:hr_admin", SubjectFromRole(" HR_ADMIN "))
	assert.Equal(t, "role:anonymous", SubjectFromRole(""))
}
