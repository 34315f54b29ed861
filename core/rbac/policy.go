// Package rbac decides which roles may run the gated mutations.
package rbac

import (
	"errors"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

// ErrForbidden is returned by services when the acting role fails a policy
// check.
var ErrForbidden = errors.New("forbidden")

// Actor identifies who is performing an operation. Identity arrives from the
// edge proxy; nothing is read from ambient session state.
type Actor struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	Department string `json:"department"`
}

const (
	RoleRiskManager = "risk_manager"
	RoleRiskOwner   = "risk_owner"
	RoleEmployee    = "employee"
)

const modelText = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

var policies = [][]string{
	{RoleEmployee, "task", "complete"},
	{RoleRiskManager, "task", "approve"},
	{RoleRiskManager, "gap", "approve"},
	{RoleRiskManager, "gap", "reject"},
	{RoleRiskOwner, "risk", "create"},
	{RoleRiskOwner, "risk", "delete"},
	{RoleRiskOwner, "control", "create"},
	{RoleRiskManager, "control", "delete"},
	{RoleRiskManager, "soa", "delete"},
}

// risk_manager inherits risk_owner which inherits employee.
var roleLinks = [][]string{
	{RoleRiskManager, RoleRiskOwner},
	{RoleRiskOwner, RoleEmployee},
}

type Enforcer struct {
	enforcer *casbin.Enforcer
}

func NewEnforcer() (*Enforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, err
	}
	for _, p := range policies {
		if _, err := e.AddPolicy(p[0], p[1], p[2]); err != nil {
			return nil, err
		}
	}
	for _, g := range roleLinks {
		if _, err := e.AddGroupingPolicy(g[0], g[1]); err != nil {
			return nil, err
		}
	}
	return &Enforcer{enforcer: e}, nil
}

func (e *Enforcer) Allow(role, obj, act string) bool {
	ok, err := e.enforcer.Enforce(role, obj, act)
	return err == nil && ok
}
