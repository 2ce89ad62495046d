package users

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Entry is one permitted email address and the permissions it carries.
type Entry struct {
	Email       string   `yaml:"email"`
	Permissions []string `yaml:"permissions"`
}

// Allowlist answers whether an email may sign in. Authorization is denial-by-default.
type Allowlist interface {
	Lookup(email string) (Entry, bool)
}

// StaticAllowlist is a read-only allowlist held in memory.
type StaticAllowlist struct {
	entries map[string]Entry
}

var _ Allowlist = (*StaticAllowlist)(nil)

// NewStaticAllowlist builds an allowlist from entries. Later duplicates replace earlier ones.
func NewStaticAllowlist(entries ...Entry) *StaticAllowlist {
	a := &StaticAllowlist{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		email := NormalizeEmail(e.Email)
		if email == "" {
			continue
		}
		a.entries[email] = Entry{
			Email:       email,
			Permissions: append([]string(nil), e.Permissions...),
		}
	}
	return a
}

// NewAllowlist builds an allowlist of plain emails that all receive the same permissions.
func NewAllowlist(emails []string, permissions []string) *StaticAllowlist {
	entries := make([]Entry, 0, len(emails))
	for _, email := range emails {
		entries = append(entries, Entry{Email: email, Permissions: permissions})
	}
	return NewStaticAllowlist(entries...)
}

func (a *StaticAllowlist) Lookup(email string) (Entry, bool) {
	e, ok := a.entries[NormalizeEmail(email)]
	if !ok {
		return Entry{}, false
	}
	e.Permissions = append([]string(nil), e.Permissions...)
	return e, true
}

func (a *StaticAllowlist) Len() int {
	return len(a.entries)
}

// Merge returns a new allowlist containing both sets; entries in other win.
func (a *StaticAllowlist) Merge(other *StaticAllowlist) *StaticAllowlist {
	entries := make([]Entry, 0, len(a.entries)+len(other.entries))
	for _, e := range a.entries {
		entries = append(entries, e)
	}
	for _, e := range other.entries {
		entries = append(entries, e)
	}
	return NewStaticAllowlist(entries...)
}

type allowlistFile struct {
	Users []Entry `yaml:"users"`
}

// ParseAllowlistYAML reads a document of the form
//
//	users:
//	  - email: someone@example.com
//	    permissions: [read, admin]
func ParseAllowlistYAML(r io.Reader) (*StaticAllowlist, error) {
	var f allowlistFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "[ParseAllowlistYAML] decode")
	}
	for i, e := range f.Users {
		if NormalizeEmail(e.Email) == "" {
			return nil, errors.Errorf("[ParseAllowlistYAML] users[%d] has no email", i)
		}
	}
	return NewStaticAllowlist(f.Users...), nil
}

func LoadAllowlistFile(path string) (*StaticAllowlist, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "[LoadAllowlistFile] open %s", path)
	}
	defer f.Close()
	return ParseAllowlistYAML(f)
}
