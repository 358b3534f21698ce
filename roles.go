package siteauth

import (
	"strings"
)

// Role is the enumerated permission level of a user
type Role string

// Built-in roles, lowest to highest
const (
	RoleUser      Role = "user"      // Default for every new account
	RoleModerator Role = "moderator" // Forum moderation
	RoleAdmin     Role = "admin"     // Site administration
)

var roleRank = map[Role]int{
	RoleUser:      1,
	RoleModerator: 2,
	RoleAdmin:     3,
}

// AllRoles returns the built-in roles in ascending order
func AllRoles() []Role {
	return []Role{RoleUser, RoleModerator, RoleAdmin}
}

// ParseRole maps a stored string onto a Role.  Unknown or empty values parse to RoleUser.
func ParseRole(s string) Role {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := roleRank[r]; ok {
		return r
	}
	return RoleUser
}

// Valid reports whether r is one of the built-in roles
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast checks if r grants everything min grants.
// An empty role (a session whose user row is gone) satisfies nothing.
func (r Role) AtLeast(min Role) bool {
	have, ok := roleRank[r]
	if !ok {
		return false
	}
	return have >= roleRank[min]
}

func (r Role) String() string {
	return string(r)
}
