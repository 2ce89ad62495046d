package users_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jrsteele09/go-login-broker/users"
	"github.com/stretchr/testify/require"
)

func TestStaticAllowlist_Lookup(t *testing.T) {
	a := users.NewAllowlist([]string{"Jane.Doe@Example.com ", "bob@example.com"}, []string{"read"})
	require.Equal(t, 2, a.Len())

	t.Run("matches case-insensitively", func(t *testing.T) {
		e, ok := a.Lookup("  jane.doe@example.COM")
		require.True(t, ok)
		require.Equal(t, "jane.doe@example.com", e.Email)
		require.Equal(t, []string{"read"}, e.Permissions)
	})

	t.Run("denies unknown email", func(t *testing.T) {
		_, ok := a.Lookup("mallory@example.com")
		require.False(t, ok)
	})

	t.Run("denies empty email", func(t *testing.T) {
		_, ok := a.Lookup("")
		require.False(t, ok)
	})

	t.Run("returned permissions are a copy", func(t *testing.T) {
		e, _ := a.Lookup("bob@example.com")
		e.Permissions[0] = "admin"
		again, _ := a.Lookup("bob@example.com")
		require.Equal(t, []string{"read"}, again.Permissions)
	})
}

func TestParseAllowlistYAML(t *testing.T) {
	doc := `
users:
  - email: admin@example.com
    permissions: [read, admin]
  - email: viewer@example.com
`
	a, err := users.ParseAllowlistYAML(strings.NewReader(doc))
	require.NoError(t, err)

	e, ok := a.Lookup("ADMIN@example.com")
	require.True(t, ok)
	require.Equal(t, []string{"read", "admin"}, e.Permissions)

	e, ok = a.Lookup("viewer@example.com")
	require.True(t, ok)
	require.Empty(t, e.Permissions)
}

func TestParseAllowlistYAML_Errors(t *testing.T) {
	_, err := users.ParseAllowlistYAML(strings.NewReader("users:\n  - permissions: [read]\n"))
	require.Error(t, err)

	_, err = users.ParseAllowlistYAML(strings.NewReader("users:\n  - email: a@b.c\n    role: admin\n"))
	require.Error(t, err, "unknown fields are rejected")

	a, err := users.ParseAllowlistYAML(strings.NewReader(""))
	require.NoError(t, err)
	require.Equal(t, 0, a.Len())
}

func TestLoadAllowlistFile_Merge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "allowlist.yaml")
	require.NoError(t, os.WriteFile(path, []byte("users:\n  - email: bob@example.com\n    permissions: [admin]\n"), 0o600))

	fromFile, err := users.LoadAllowlistFile(path)
	require.NoError(t, err)

	merged := users.NewAllowlist([]string{"bob@example.com", "amy@example.com"}, []string{"read"}).Merge(fromFile)
	require.Equal(t, 2, merged.Len())

	e, ok := merged.Lookup("bob@example.com")
	require.True(t, ok)
	require.Equal(t, []string{"admin"}, e.Permissions)

	_, err = users.LoadAllowlistFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestUser_HasPermission(t *testing.T) {
	u := users.User{Permissions: []string{"read", "admin"}}
	require.True(t, u.HasPermission("admin"))
	require.False(t, u.HasPermission("write"))
}
