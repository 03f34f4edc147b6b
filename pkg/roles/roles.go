// Package roles defines the closed set of user roles and the capabilities
// each role carries. Route guards check capabilities rather than comparing
// role strings, so an unknown role simply has no capabilities.
package roles

// Role is one of the known user roles.
type Role string

const (
	Admin      Role = "admin"
	Pharmacist Role = "pharmacist"
	Staff      Role = "staff"
)

// Capability names a guarded operation group.
type Capability string

const (
	MedicinesWrite      Capability = "medicines.write"
	MedicinesDelete     Capability = "medicines.delete"
	PrescriptionsManage Capability = "prescriptions.manage"
	ReordersManage      Capability = "reorders.manage"
	AnalyticsRead       Capability = "analytics.read"
	UsersManage         Capability = "users.manage"
)

var capabilities = map[Role]map[Capability]bool{
	Admin: {
		MedicinesWrite:      true,
		MedicinesDelete:     true,
		PrescriptionsManage: true,
		ReordersManage:      true,
		AnalyticsRead:       true,
		UsersManage:         true,
	},
	Pharmacist: {
		MedicinesWrite:      true,
		PrescriptionsManage: true,
		ReordersManage:      true,
		AnalyticsRead:       true,
	},
	Staff: {
		MedicinesWrite: true,
	},
}

// Parse returns the Role for a stored role string and whether it is known.
func Parse(s string) (Role, bool) {
	switch Role(s) {
	case Admin, Pharmacist, Staff:
		return Role(s), true
	}
	return "", false
}

// Valid reports whether s names a known role.
func Valid(s string) bool {
	_, ok := Parse(s)
	return ok
}

// Can reports whether the role carries the capability.
// Unknown roles carry no capabilities.
func (r Role) Can(c Capability) bool {
	return capabilities[r][c]
}

// All returns every known role. Useful for validation messages.
func All() []Role {
	return []Role{Admin, Pharmacist, Staff}
}
