package core_test

import (
	"testing"

	"tablet-tracker/internal/core"
)

func TestAllowed(t *testing.T) {
	tests := []struct {
		role core.Role
		op   core.Operation
		want bool
	}{
		{core.RoleWarehouseStaff, core.OpSubmit, true},
		{core.RoleWarehouseStaff, core.OpListSubmissions, true},
		{core.RoleWarehouseStaff, core.OpAssignBag, false},
		{core.RoleWarehouseStaff, core.OpRecalculate, false},
		{core.RoleManager, core.OpAssignBag, true},
		{core.RoleManager, core.OpReassign, true},
		{core.RoleManager, core.OpReconcile, true},
		{core.RoleManager, core.OpReopenBag, false},
		{core.RoleManager, core.OpRecalculate, false},
		{core.RoleManager, core.OpPurgePO, false},
		{core.RoleAdmin, core.OpReopenBag, true},
		{core.RoleAdmin, core.OpRecalculate, true},
		{core.RoleAdmin, core.OpSubmit, true},
		{core.Role("guest"), core.OpSubmit, false},
		{core.Role(""), core.OpListSubmissions, false},
		{core.RoleAdmin, core.Operation("unknown.op"), false},
	}
	for _, tt := range tests {
		if got := core.Allowed(tt.role, tt.op); got != tt.want {
			t.Errorf("Allowed(%q, %q) = %v, want %v", tt.role, tt.op, got, tt.want)
		}
	}
}

func TestEmployeeActor(t *testing.T) {
	e := core.Employee{ID: 4, FullName: "Dana", Role: core.RoleManager}
	a := e.Actor()
	if a.EmployeeID == nil || *a.EmployeeID != 4 || a.Name != "Dana" || a.Role != core.RoleManager {
		t.Errorf("unexpected actor %+v", a)
	}
}
