// Package identity holds the authorization model: permissions, the
// request-scoped AuthContext, and tenant/branch visibility scopes.
package identity

import (
	"sort"
	"strings"
)

// Module is the namespace half of a permission
type Module string

// Action is the verb half of a permission
type Action string

const (
	ModuleAll         Module = "*"
	ModuleMembers     Module = "members"
	ModuleInvoices    Module = "invoices"
	ModuleMemberships Module = "memberships"
	ModuleCoupons     Module = "coupons"
	ModuleWebhooks    Module = "webhooks"

	// ActionAll grants every action within a module
	ActionAll Action = "*"
)

// Permission is a (module, action) pair. On the wire it is "module.action".
// The bare "*" parses to the global wildcard, which has an empty action.
type Permission struct {
	Module Module
	Action Action
}

// Known permissions checked by the core operations.
var (
	PermGlobal = Permission{Module: ModuleAll}

	PermInvoicesView   = Permission{ModuleInvoices, "view"}
	PermInvoicesCreate = Permission{ModuleInvoices, "create"}
	PermInvoicesPay    = Permission{ModuleInvoices, "pay"}
	PermInvoicesRefund = Permission{ModuleInvoices, "refund"}

	PermMembershipsView    = Permission{ModuleMemberships, "view"}
	PermMembershipsPause   = Permission{ModuleMemberships, "pause"}
	PermMembershipsResume  = Permission{ModuleMemberships, "resume"}
	PermMembershipsUpgrade = Permission{ModuleMemberships, "upgrade"}
	PermMembershipsCancel  = Permission{ModuleMemberships, "cancel"}

	PermCouponsView   = Permission{ModuleCoupons, "view"}
	PermCouponsApply  = Permission{ModuleCoupons, "apply"}
	PermCouponsManage = Permission{ModuleCoupons, "manage"}

	PermWebhooksView   = Permission{ModuleWebhooks, "view"}
	PermWebhooksReplay = Permission{ModuleWebhooks, "replay"}
)

// ParsePermission splits a wire permission on its first '.'.
// A string without a dot is a module-only permission.
func ParsePermission(raw string) Permission {
	module, action, _ := strings.Cut(strings.TrimSpace(raw), ".")
	return Permission{Module: Module(module), Action: Action(action)}
}

// String returns the wire form
func (p Permission) String() string {
	if p.Action == "" {
		return string(p.Module)
	}
	return string(p.Module) + "." + string(p.Action)
}

// IsGlobal reports whether p is the bare "*" permission
func (p Permission) IsGlobal() bool {
	return p == PermGlobal
}

// ModuleWildcard returns "{module}.*" for p's module
func (p Permission) ModuleWildcard() Permission {
	return Permission{Module: p.Module, Action: ActionAll}
}

// PermissionSet is an immutable set of granted permissions.
// The zero value grants nothing.
type PermissionSet struct {
	granted map[Permission]struct{}
}

// NewPermissionSet builds a set from wire strings, ignoring blanks
func NewPermissionSet(raw []string) PermissionSet {
	granted := make(map[Permission]struct{}, len(raw))
	for _, r := range raw {
		if strings.TrimSpace(r) == "" {
			continue
		}
		granted[ParsePermission(r)] = struct{}{}
	}
	return PermissionSet{granted: granted}
}

// Has evaluates required against the set. Every permission check in the
// service goes through here.
//
// Order: global "*", exact match, then "{module}.*" for the module of required.
func (s PermissionSet) Has(required Permission) bool {
	if len(s.granted) == 0 {
		return false
	}
	if _, ok := s.granted[PermGlobal]; ok {
		return true
	}
	if _, ok := s.granted[required]; ok {
		return true
	}
	_, ok := s.granted[required.ModuleWildcard()]
	return ok
}

// Len returns the number of granted permissions
func (s PermissionSet) Len() int {
	return len(s.granted)
}

// Strings returns the wire forms, sorted
func (s PermissionSet) Strings() []string {
	out := make([]string, 0, len(s.granted))
	for p := range s.granted {
		out = append(out, p.String())
	}
	sort.Strings(out)
	return out
}

// HasPermission evaluates a wire-format requirement against a wire-format grant list
func HasPermission(granted []string, required string) bool {
	return NewPermissionSet(granted).Has(ParsePermission(required))
}
