// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

// # User Roles

// UserRole represents the authorization level granted to an account.
type UserRole string

const (
	// Operators of the platform
	RoleAdmin UserRole = "admin"

	// Default role for registered founders, investors and members
	RoleUser UserRole = "user"
)

// Valid reports whether r is a role the platform knows about.
func (r UserRole) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}
