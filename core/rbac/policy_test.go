package rbac

import "testing"

func TestRoleGates(t *testing.T) {
	e, err := NewEnforcer()
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		role, obj, act string
		want           bool
	}{
		{RoleEmployee, "task", "complete", true},
		{RoleEmployee, "task", "approve", false},
		{RoleRiskOwner, "task", "complete", true},
		{RoleRiskOwner, "task", "approve", false},
		{RoleRiskManager, "task", "approve", true},
		{RoleRiskManager, "gap", "approve", true},
		{RoleRiskOwner, "gap", "approve", false},
		{RoleRiskManager, "control", "delete", true},
		{RoleRiskOwner, "control", "delete", false},
		{RoleRiskManager, "risk", "create", true},
		{RoleEmployee, "risk", "create", false},
	}
	for _, tc := range cases {
		if got := e.Allow(tc.role, tc.obj, tc.act); got != tc.want {
			t.Errorf("Allow(%s, %s, %s) = %v, want %v", tc.role, tc.obj, tc.act, got, tc.want)
		}
	}
}
