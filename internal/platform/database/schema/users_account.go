// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// UserAccountTable represents the 'users.account' table
type UserAccountTable struct {
	Table           string
	ID              string
	Username        string
	Email           string
	Password        string
	FirstName       string
	LastName        string
	Role            string
	IsEnabled       string
	IsEmailVerified string
	LastLoginAt     string
	CreatedAt       string
	UpdatedAt       string
}

// UserAccount is the schema definition for users.account
var UserAccount = UserAccountTable{
	Table:           "users.account",
	ID:              "id",
	Username:        "username",
	Email:           "email",
	Password:        "passwordhash",
	FirstName:       "firstname",
	LastName:        "lastname",
	Role:            "role",
	IsEnabled:       "isenabled",
	IsEmailVerified: "isemailverified",
	LastLoginAt:     "lastloginat",
	CreatedAt:       "createdat",
	UpdatedAt:       "updatedat",
}

// Columns returns all standard column names
func (t UserAccountTable) Columns() []string {
	return []string{
		t.ID, t.Username, t.Email, t.Password, t.FirstName, t.LastName, t.Role,
		t.IsEnabled, t.IsEmailVerified, t.LastLoginAt, t.CreatedAt, t.UpdatedAt,
	}
}
