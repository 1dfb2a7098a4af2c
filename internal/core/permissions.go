package core

// Role gates which operations an actor may run. It is never consulted by the
// matching or aggregation logic.
type Role string

const (
	RoleWarehouseStaff Role = "warehouse_staff"
	RoleManager        Role = "manager"
	RoleAdmin          Role = "admin"
)

func (r Role) rank() int {
	switch r {
	case RoleWarehouseStaff:
		return 1
	case RoleManager:
		return 2
	case RoleAdmin:
		return 3
	}
	return 0
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r.rank() > 0 }

// Actor is the authenticated identity attached to an operation.
type Actor struct {
	EmployeeID *int   `json:"employee_id,omitempty"`
	Name       string `json:"name"`
	Role       Role   `json:"role"`
}

type Operation string

const (
	OpSubmit           Operation = "submission.create"
	OpListSubmissions  Operation = "submission.list"
	OpEditSubmission   Operation = "submission.edit"
	OpDeleteSubmission Operation = "submission.delete"
	OpAssignBag        Operation = "submission.assign_bag"
	OpVerifyAssignment Operation = "submission.verify"
	OpReassign         Operation = "submission.reassign"
	OpCreateReceive    Operation = "receive.create"
	OpViewReceives     Operation = "receive.view"
	OpAssignReceive    Operation = "receive.assign"
	OpCloseReceive     Operation = "receive.close"
	OpCloseBag         Operation = "bag.close"
	OpReopenBag        Operation = "bag.reopen"
	OpMarkBagPushed    Operation = "bag.push"
	OpViewPOs          Operation = "po.view"
	OpSyncPO           Operation = "po.sync"
	OpSetPOStatus      Operation = "po.status"
	OpCreateOversPO    Operation = "po.overs"
	OpPurgePO          Operation = "po.purge"
	OpRecalculate      Operation = "aggregation.recalculate"
	OpSequentialFill   Operation = "aggregation.fill"
	OpReconcile        Operation = "review.reconcile"
	OpViewReports      Operation = "report.view"
	OpManageProducts   Operation = "product.manage"
	OpManageEmployees  Operation = "employee.manage"
)

// minimumRole lists the lowest role allowed to run each operation. Operations not
// listed are denied to everyone.
var minimumRole = map[Operation]Role{
	OpSubmit:           RoleWarehouseStaff,
	OpListSubmissions:  RoleWarehouseStaff,
	OpViewPOs:          RoleWarehouseStaff,
	OpViewReceives:     RoleWarehouseStaff,
	OpEditSubmission:   RoleManager,
	OpAssignBag:        RoleManager,
	OpVerifyAssignment: RoleManager,
	OpReassign:         RoleManager,
	OpCreateReceive:    RoleManager,
	OpAssignReceive:    RoleManager,
	OpCloseReceive:     RoleManager,
	OpCloseBag:         RoleManager,
	OpMarkBagPushed:    RoleManager,
	OpCreateOversPO:    RoleManager,
	OpReconcile:        RoleManager,
	OpViewReports:      RoleManager,
	OpDeleteSubmission: RoleAdmin,
	OpReopenBag:        RoleAdmin,
	OpSyncPO:           RoleAdmin,
	OpSetPOStatus:      RoleAdmin,
	OpPurgePO:          RoleAdmin,
	OpRecalculate:      RoleAdmin,
	OpSequentialFill:   RoleAdmin,
	OpManageProducts:   RoleAdmin,
	OpManageEmployees:  RoleAdmin,
}

// Allowed reports whether role may run op.
func Allowed(role Role, op Operation) bool {
	need, ok := minimumRole[op]
	if !ok || !role.Valid() {
		return false
	}
	return role.rank() >= need.rank()
}
