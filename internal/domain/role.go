package domain

import "time"

// Role names known to the system.
const (
	RoleAuthor    = "author"
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
	RoleEditor    = "editor"
)

// Role is a named permission group attached to users.
type Role struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

var (
	adminRoles     = []string{RoleAdmin}
	moderatorRoles = []string{RoleAdmin, RoleModerator}
	editorRoles    = []string{RoleAdmin, RoleEditor}
)

// HasAdminAccess reports whether the role grants administrative access.
func HasAdminAccess(role Role) bool {
	return containsRole(adminRoles, role.Name)
}

// HasModeratorAccess reports whether the role grants moderation access.
func HasModeratorAccess(role Role) bool {
	return containsRole(moderatorRoles, role.Name)
}

// HasEditorAccess reports whether the role grants editorial access.
func HasEditorAccess(role Role) bool {
	return containsRole(editorRoles, role.Name)
}

// IsValidRoleName reports whether name is one of the known roles.
func IsValidRoleName(name string) bool {
	switch name {
	case RoleAuthor, RoleAdmin, RoleModerator, RoleEditor:
		return true
	}
	return false
}

func containsRole(set []string, name string) bool {
	for _, r := range set {
		if r == name {
			return true
		}
	}
	return false
}
