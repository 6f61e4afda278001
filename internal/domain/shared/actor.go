package shared

import "github.com/google/uuid"

// Actor is the authenticated caller of an application service
type Actor struct {
	UserID   uuid.UUID
	UserType string
	IsStaff  bool
}

// IsAdmin is true for staff and admin accounts
func (a Actor) IsAdmin() bool {
	return a.IsStaff || a.UserType == "admin"
}

// IsVendor is true for vendor accounts
func (a Actor) IsVendor() bool {
	return a.UserType == "vendor"
}

// CanSell reports whether the actor may list products
func (a Actor) CanSell() bool {
	return a.IsVendor() || a.IsAdmin()
}
