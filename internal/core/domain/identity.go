package domain

import "time"

// User is the slice of the marketplace user record this service reads and
// writes: identity, type tag, and the approval status flipped by the
// approval workflow.
type User struct {
	ID             string
	Name           string
	Email          string
	UserType       string
	ApprovalStatus ApprovalStatus
	ApprovedBy     *string
	ApprovedAt     *time.Time
	IsActive       bool
	CreatedAt      time.Time
}

// Well-known user type tags supplied by the authentication layer.
const (
	UserTypeAdmin      = "admin"
	UserTypeSuperAdmin = "super_admin"
	UserTypeCustomer   = "customer"
	UserTypeProvider   = "provider"
)

// IsAdminType reports whether the tag identifies an administrative user.
func IsAdminType(userType string) bool {
	return userType == UserTypeAdmin || userType == UserTypeSuperAdmin
}
