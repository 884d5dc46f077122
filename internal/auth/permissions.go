package auth

import (
	"context"

	budget "grants-cloud/internal/budget/domain"
)

// Module is a functional area guarded by permissions.
type Module string

const (
	ModuleGrants         Module = "grants"
	ModuleBudgetPlanning Module = "budget_planning"
	ModuleEngagements    Module = "engagements"
	ModuleTracking       Module = "tracking"
	ModuleReports        Module = "reports"
)

// Modules lists every guarded module.
var Modules = []Module{ModuleGrants, ModuleBudgetPlanning, ModuleEngagements, ModuleTracking, ModuleReports}

// Action is an operation on a module.
type Action string

const (
	ActionView        Action = "view"
	ActionViewDetails Action = "view_details"
	ActionExport      Action = "export"
	ActionCreate      Action = "create"
	ActionEdit        Action = "edit"
	ActionDelete      Action = "delete"
)

// Actions lists every action in increasing order of privilege.
var Actions = []Action{ActionView, ActionViewDetails, ActionExport, ActionCreate, ActionEdit, ActionDelete}

// actionRole is the minimum role for each action on every module.
var actionRole = map[Action]Role{
	ActionView:        RoleViewer,
	ActionViewDetails: RoleViewer,
	ActionExport:      RoleViewer,
	ActionCreate:      RoleEditor,
	ActionEdit:        RoleEditor,
	ActionDelete:      RoleAdmin,
}

func knownModule(module Module) bool {
	for _, m := range Modules {
		if m == module {
			return true
		}
	}
	return false
}

// HasPermission reports whether role may perform action on module.
func HasPermission(role Role, module Module, action Action) bool {
	if !knownModule(module) {
		return false
	}
	required, ok := actionRole[action]
	if !ok {
		return false
	}
	return roleRank(role) > 0 && RoleAtLeast(role, required)
}

// HasModuleAccess reports whether role may open module at all.
func HasModuleAccess(role Role, module Module) bool {
	return HasPermission(role, module, ActionView)
}

// Require checks the identity in ctx for module/action and returns a
// *budget.PermissionError when it is missing.
func Require(ctx context.Context, module Module, action Action) (Identity, error) {
	id, ok := IdentityFromContext(ctx)
	if !ok || !HasPermission(id.Role, module, action) {
		return id, &budget.PermissionError{Module: string(module), Action: string(action)}
	}
	return id, nil
}

// Permissions lists the actions role may perform on each module.
func Permissions(role Role) map[Module][]Action {
	out := make(map[Module][]Action, len(Modules))
	for _, module := range Modules {
		for _, action := range Actions {
			if HasPermission(role, module, action) {
				out[module] = append(out[module], action)
			}
		}
	}
	return out
}
