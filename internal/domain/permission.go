package domain

// Permission represents granular permission (resource:action pattern) / Permission granulaire (pattern resource:action)
type Permission string

// Predefined permissions / Permissions prédéfinies
const (
	PermissionUsersRead        Permission = "users:read"
	PermissionUsersList        Permission = "users:list"
	PermissionUsersDelete      Permission = "users:delete"
	PermissionRolesWrite       Permission = "roles:write"
	PermissionStatsRead        Permission = "stats:read"
	PermissionProjectsCreate   Permission = "projects:create"
	PermissionProjectsModerate Permission = "projects:moderate"
	PermissionOffersSubmit     Permission = "offers:submit"
	PermissionDocumentsVerify  Permission = "documents:verify"
	PermissionSystemAdmin      Permission = "system:admin"
)

// AllPermissions returns all defined permissions / Retourne toutes les permissions définies
func AllPermissions() []Permission {
	return []Permission{
		PermissionUsersRead,
		PermissionUsersList,
		PermissionUsersDelete,
		PermissionRolesWrite,
		PermissionStatsRead,
		PermissionProjectsCreate,
		PermissionProjectsModerate,
		PermissionOffersSubmit,
		PermissionDocumentsVerify,
		PermissionSystemAdmin,
	}
}

// String returns permission as string / Retourne la permission en string
func (p Permission) String() string {
	return string(p)
}

// DefaultPermissionsForRole returns default permissions for role / Retourne les permissions par défaut du rôle
func DefaultPermissionsForRole(role UserRole) []Permission {
	switch role {
	case RoleDonneurOrdre:
		return []Permission{PermissionProjectsCreate}

	case RoleSousTraitant:
		return []Permission{PermissionOffersSubmit}

	case RoleModerator:
		return []Permission{
			PermissionUsersRead,
			PermissionUsersList,
			PermissionStatsRead,
			PermissionProjectsModerate,
			PermissionDocumentsVerify,
		}

	case RoleAdmin:
		return AllPermissions() // Full system access / Accès complet au système

	default:
		return []Permission{}
	}
}
