package auth

// Scopes granted to an admin session.
const (
	ScopeAdminRead   = "admin:read"
	ScopeAdminAdjust = "admin:adjust"
)

// AdminScopes is the scope set issued on login.
var AdminScopes = []string{ScopeAdminRead, ScopeAdminAdjust}
