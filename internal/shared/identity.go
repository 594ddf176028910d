package shared

// Identity describes the authenticated caller resolved from the session
// store. All report metadata and authorization checks run off this
// value; nothing is looked up ambiently further down the stack.
type Identity struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	TenantID string `json:"tenant_id"`
}

// Authenticated reports whether the identity belongs to a logged-in user.
func (i Identity) Authenticated() bool {
	return i.UserID != "" && i.TenantID != ""
}
