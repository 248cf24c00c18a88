package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePermission(t *testing.T) {
	tests := []struct {
		raw    string
		module Module
		action Action
	}{
		{"*", ModuleAll, ""},
		{"members.view", ModuleMembers, "view"},
		{"members.*", ModuleMembers, ActionAll},
		{"reports", "reports", ""},
		{"invoices.refund.partial", ModuleInvoices, "refund.partial"},
		{"  coupons.apply ", ModuleCoupons, "apply"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			p := ParsePermission(tt.raw)
			assert.Equal(t, tt.module, p.Module)
			assert.Equal(t, tt.action, p.Action)
		})
	}
}

func TestPermission_StringRoundTrip(t *testing.T) {
	for _, raw := range []string{"*", "members.view", "members.*", "reports", "*.*", "a.b.c"} {
		assert.Equal(t, raw, ParsePermission(raw).String())
	}
}

func TestHasPermission(t *testing.T) {
	tests := []struct {
		name     string
		granted  []string
		required string
		want     bool
	}{
		{"global wildcard allows anything", []string{"*"}, "anything", true},
		{"global wildcard allows dotted", []string{"*"}, "invoices.refund", true},
		{"module wildcard", []string{"members.*"}, "members.view", true},
		{"different action denied", []string{"members.view"}, "members.delete", false},
		{"exact match", []string{"invoices.pay"}, "invoices.pay", true},
		{"module wildcard does not cross modules", []string{"members.*"}, "invoices.view", false},
		{"module-only requirement matches module wildcard", []string{"reports.*"}, "reports", true},
		{"star-dot-star is not global", []string{"*.*"}, "invoices.view", false},
		{"empty grants deny", []string{}, "invoices.view", false},
		{"nil grants deny", nil, "*", false},
		{"blank entries ignored", []string{"", "  "}, "", false},
		{"wildcard splits on first dot only", []string{"invoices.*"}, "invoices.refund.partial", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasPermission(tt.granted, tt.required))
		})
	}
}

func TestPermissionSet_Strings(t *testing.T) {
	set := NewPermissionSet([]string{"members.view", "*", "invoices.*", "members.view"})

	assert.Equal(t, 3, set.Len())
	assert.Equal(t, []string{"*", "invoices.*", "members.view"}, set.Strings())
}

func TestPermissionSet_ZeroValueDeniesEverything(t *testing.T) {
	var set PermissionSet
	assert.False(t, set.Has(PermGlobal))
	assert.False(t, set.Has(PermInvoicesView))
}
