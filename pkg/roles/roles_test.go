package roles_test

import (
	"testing"

	"github.com/pharmaflow/pharmacy-backend/pkg/roles"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in    string
		role  roles.Role
		known bool
	}{
		{"admin", roles.Admin, true},
		{"pharmacist", roles.Pharmacist, true},
		{"staff", roles.Staff, true},
		{"superuser", "", false},
		{"", "", false},
		{"Admin", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			role, ok := roles.Parse(tt.in)
			assert.Equal(t, tt.known, ok)
			assert.Equal(t, tt.role, role)
		})
	}
}

func TestCapabilities(t *testing.T) {
	// Admin can do everything
	for _, c := range []roles.Capability{
		roles.MedicinesWrite, roles.MedicinesDelete, roles.PrescriptionsManage,
		roles.ReordersManage, roles.AnalyticsRead, roles.UsersManage,
	} {
		assert.True(t, roles.Admin.Can(c), "admin should have %s", c)
	}

	// Pharmacist can manage prescriptions and reorders but not delete medicines
	assert.True(t, roles.Pharmacist.Can(roles.PrescriptionsManage))
	assert.True(t, roles.Pharmacist.Can(roles.ReordersManage))
	assert.True(t, roles.Pharmacist.Can(roles.AnalyticsRead))
	assert.False(t, roles.Pharmacist.Can(roles.MedicinesDelete))
	assert.False(t, roles.Pharmacist.Can(roles.UsersManage))

	// Staff can only write medicines
	assert.True(t, roles.Staff.Can(roles.MedicinesWrite))
	assert.False(t, roles.Staff.Can(roles.PrescriptionsManage))
	assert.False(t, roles.Staff.Can(roles.ReordersManage))
	assert.False(t, roles.Staff.Can(roles.AnalyticsRead))
}

func TestUnknownRoleHasNoCapabilities(t *testing.T) {
	unknown := roles.Role("intern")
	assert.False(t, unknown.Can(roles.MedicinesWrite))
	assert.False(t, unknown.Can(roles.UsersManage))
}

func TestAll(t *testing.T) {
	all := roles.All()
	require.Len(t, all, 3)
	assert.Contains(t, all, roles.Admin)
	assert.Contains(t, all, roles.Pharmacist)
	assert.Contains(t, all, roles.Staff)
}
