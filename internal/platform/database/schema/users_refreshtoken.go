// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// UserRefreshTokenTable represents the 'users.refreshtoken' table
type UserRefreshTokenTable struct {
	Table          string
	ID             string
	TokenHash      string
	UserID         string
	IsRevoked      string
	ReplacedByHash string
	IPAddress      string
	UserAgent      string
	CreatedAt      string
	ExpiresAt      string
}

// UserRefreshToken is the schema definition for users.refreshtoken
var UserRefreshToken = UserRefreshTokenTable{
	Table:          "users.refreshtoken",
	ID:             "id",
	TokenHash:      "tokenhash",
	UserID:         "userid",
	IsRevoked:      "isrevoked",
	ReplacedByHash: "replacedbyhash",
	IPAddress:      "ipaddress",
	UserAgent:      "useragent",
	CreatedAt:      "createdat",
	ExpiresAt:      "expiresat",
}

// Columns returns all standard column names
func (t UserRefreshTokenTable) Columns() []string {
	return []string{
		t.ID, t.TokenHash, t.UserID, t.IsRevoked, t.ReplacedByHash, t.IPAddress, t.UserAgent, t.CreatedAt, t.ExpiresAt,
	}
}
