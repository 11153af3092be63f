package auth

// Permission represents a named capability on accounts.
type Permission string

// Permission constants.
const (
	PermAccountRead       Permission = "account:read"
	PermAccountBlock      Permission = "account:block"
	PermAccountList       Permission = "account:list"
	PermAccountChangeRole Permission = "account:change_role"
	PermAuditRead         Permission = "audit:read"
	PermMetricsRead       Permission = "metrics:read"
)

// selfScoped lists the permissions any authenticated account holds over its
// own account. Every other permission is admin-only.
var selfScoped = map[Permission]bool{
	PermAccountRead:  true,
	PermAccountBlock: true,
}

// IsAdmin reports whether the identity has the admin role.
func IsAdmin(id Identity) bool {
	return id.Role == RoleAdmin
}

// IsSelfOrAdmin reports whether the identity may act on the account targetID:
// either it is that account, or it is an admin.
func IsSelfOrAdmin(id Identity, targetID int64) bool {
	return id.ID == targetID || IsAdmin(id)
}

// Authorize checks perm for the identity against the account targetID and
// returns ErrForbidden when the policy denies it. Self-scoped permissions
// follow IsSelfOrAdmin; the rest require IsAdmin and ignore targetID.
func Authorize(id Identity, perm Permission, targetID int64) error {
	if selfScoped[perm] {
		if IsSelfOrAdmin(id, targetID) {
			return nil
		}
		return ErrForbidden
	}
	if IsAdmin(id) {
		return nil
	}
	return ErrForbidden
}
