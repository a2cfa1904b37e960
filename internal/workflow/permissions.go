package workflow

// Permission predicates. All of them are pure functions over an explicit
// actor and a workflow item; the transport layer is responsible for
// establishing who the actor is.

// CanCreate reports whether the actor may author a new investigation.
func CanCreate(actor Actor) bool {
	return actor.Role.Valid()
}

// CanApproveOrReject reports whether the actor may decide the item.
// Only chefs decide, only pending items can be decided, and nobody decides
// their own submission.
func CanApproveOrReject(actor Actor, item WorkflowItem) bool {
	if item.Status() != ValidationPending {
		return false
	}
	switch actor.Role {
	case RoleChef:
		return !item.CreatedBy(actor.ID)
	case RoleAgent:
		return false
	}
	return false
}

// CanEdit reports whether the actor may modify the investigation.
// Chefs always can; agents only their own. Status is deliberately not a
// gating factor: even decided investigations may be corrected.
func CanEdit(actor Actor, item WorkflowItem) bool {
	switch actor.Role {
	case RoleChef:
		return true
	case RoleAgent:
		return item.CreatedBy(actor.ID)
	}
	return false
}

// CanDelete reports whether the actor may delete the investigation.
// Same rule as editing: ownership or chef role, regardless of status.
func CanDelete(actor Actor, item WorkflowItem) bool {
	return CanEdit(actor, item)
}

// CanRequestNewValidation reports whether a fresh validation round may be
// opened for the item. Legal only while no review is pending; a rejected or
// validated investigation gets a new record rather than a reopened one.
func CanRequestNewValidation(actor Actor, item WorkflowItem) bool {
	if !actor.Role.Valid() {
		return false
	}
	return item.Status() != ValidationPending
}
