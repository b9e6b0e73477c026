package auth

import "slices"

// Permission names an action on a resource, "<resource>.<action>"
type Permission string

const (
	WidgetsRead  Permission = "widgets.read"
	WidgetsWrite Permission = "widgets.write"
	PartsRead    Permission = "parts.read"
	PartsWrite   Permission = "parts.write"
	SystemAdmin  Permission = "system.admin"
)

// Role represents a user role with a set of permissions
type Role struct {
	Name        string
	Permissions []Permission
}

// HasPermission checks if the role has a specific permission
func (r *Role) HasPermission(p Permission) bool {
	return slices.Contains(r.Permissions, p)
}

// Predefined roles
var (
	AdminRole = &Role{
		Name: "admin",
		Permissions: []Permission{
			WidgetsRead, WidgetsWrite, PartsRead, PartsWrite, SystemAdmin,
		},
	}

	EditorRole = &Role{
		Name:        "editor",
		Permissions: []Permission{WidgetsRead, WidgetsWrite, PartsRead, PartsWrite},
	}

	ViewerRole = &Role{
		Name:        "viewer",
		Permissions: []Permission{WidgetsRead, PartsRead},
	}
)

// GetRoleByName returns a predefined role by name, or nil
func GetRoleByName(name string) *Role {
	switch name {
	case "admin":
		return AdminRole
	case "editor":
		return EditorRole
	case "viewer":
		return ViewerRole
	default:
		return nil
	}
}

// RolesHavePermission checks if any of the roles grants permission
func RolesHavePermission(roles []string, p Permission) bool {
	for _, name := range roles {
		if role := GetRoleByName(name); role != nil && role.HasPermission(p) {
			return true
		}
	}
	return false
}
