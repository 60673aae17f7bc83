// Package auth defines the caller identity passed explicitly into scheduling
// operations. Services never read credentials from ambient context; the HTTP
// layer resolves a token into a Scope once and hands it down.
package auth

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Role classifies a caller.
type Role string

const (
	RolePatient Role = "patient"
	RoleStaff   Role = "staff"
	RoleAdmin   Role = "admin"
)

// ErrForbidden is returned when a scope does not authorize an operation.
var ErrForbidden = errors.New("auth: forbidden")

// Scope identifies who is performing an operation and what they may touch.
// PatientID is set for patient callers; ClinicID is set for staff callers
// bound to a single clinic.
type Scope struct {
	Role      Role
	PatientID uuid.UUID
	ClinicID  uuid.UUID
}

// System is the scope used by background workers and CLI tools.
func System() Scope {
	return Scope{Role: RoleAdmin}
}

// ParseRole validates a role claim from a token.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RolePatient, RoleStaff, RoleAdmin:
		return Role(s), nil
	default:
		return "", fmt.Errorf("auth: unknown role %q", s)
	}
}

// Staff reports whether the caller has staff-or-higher privileges.
func (s Scope) Staff() bool {
	return s.Role == RoleStaff || s.Role == RoleAdmin
}

// CanManagePatient reports whether the scope may act on a patient's records.
// Staff and admins may act on any patient; patients only on themselves.
func (s Scope) CanManagePatient(patientID uuid.UUID) bool {
	switch s.Role {
	case RoleAdmin, RoleStaff:
		return true
	case RolePatient:
		return s.PatientID != uuid.Nil && s.PatientID == patientID
	default:
		return false
	}
}

// CanManageClinic reports whether the scope may operate on a clinic's
// schedule. Staff bound to a clinic may only touch that clinic; staff with no
// clinic binding and admins may touch any.
func (s Scope) CanManageClinic(clinicID uuid.UUID) bool {
	switch s.Role {
	case RoleAdmin:
		return true
	case RoleStaff:
		return s.ClinicID == uuid.Nil || s.ClinicID == clinicID
	default:
		return false
	}
}
