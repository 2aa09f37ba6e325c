package authz

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/user"
)

const modelText = `
[request_definition]
r = sub, act

[policy_definition]
p = sub, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.act == p.act
`

// Authorizer answers capability checks from a casbin policy built out of a
// static role to permission table.
type Authorizer struct {
	enforcer *casbin.Enforcer
	logger   *slog.Logger
}

// NewAuthorizer builds the enforcer from user.RolePermissions.
func NewAuthorizer(logger *slog.Logger) (*Authorizer, error) {
	return NewAuthorizerFromTable(user.RolePermissions, logger)
}

func NewAuthorizerFromTable(table map[user.Role][]user.Permission, logger *slog.Logger) (*Authorizer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("authz: failed to parse model: %w", err)
	}
	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("authz: failed to create enforcer: %w", err)
	}

	var rules [][]string
	for role, perms := range table {
		for _, p := range perms {
			rules = append(rules, []string{SubjectFromRole(role), string(p)})
		}
	}
	if len(rules) > 0 {
		if _, err := enforcer.AddPolicies(rules); err != nil {
			return nil, fmt.Errorf("authz: failed to load policy: %w", err)
		}
	}

	return &Authorizer{enforcer: enforcer, logger: logger}, nil
}

func SubjectFromRole(role user.Role) string {
	slug := strings.TrimSpace(strings.ToLower(string(role)))
	if slug == "" {
		slug = "anonymous"
	}
	return "role:" + slug
}

// HasCapability reports whether the actor's role grants capability. Enforcer
// errors deny.
func (a *Authorizer) HasCapability(actor payroll.Actor, capability user.Permission) bool {
	ok, err := a.enforcer.Enforce(SubjectFromRole(actor.Role), string(capability))
	if err != nil {
		a.logger.Error("authorization check failed",
			slog.String("role", string(actor.Role)),
			slog.String("capability", string(capability)),
			slog.Any("error", err),
		)
		return false
	}
	return ok
}
