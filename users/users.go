package users

import "strings"

// User is the identity stored in a session and returned to the frontend.
type User struct {
	ID          string   `json:"id"`                    // Provider subject identifier
	Email       string   `json:"email"`                 // Email address the allowlist matched on
	Name        string   `json:"name,omitempty"`        // Display name
	Picture     string   `json:"picture,omitempty"`     // Avatar URL
	Permissions []string `json:"permissions,omitempty"` // Granted by the allowlist entry
}

// HasPermission reports whether the user was granted the named permission.
func (u User) HasPermission(permission string) bool {
	for _, p := range u.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// NormalizeEmail lower-cases and trims an email address for comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
