package config

type SecurityConfig interface {
	GetTokenSecret() []byte
	GetAllowedEmails() []string
	GetAllowlistFile() string
	GetDefaultPermissions() []string
}

type Security struct {
	TokenSecret        string   `env:"TOKEN_SECRET"`
	AllowedEmails      []string `env:"ALLOWED_EMAILS" envSeparator:","`
	AllowlistFile      string   `env:"ALLOWLIST_FILE"`
	DefaultPermissions []string `env:"DEFAULT_PERMISSIONS" envDefault:"read" envSeparator:","`
}

var _ SecurityConfig = Security{}

func (s Security) GetTokenSecret() []byte {
	return []byte(s.TokenSecret)
}

func (s Security) GetAllowedEmails() []string {
	return s.AllowedEmails
}

// GetAllowlistFile returns an optional YAML file of allowed users and their permissions.
func (s Security) GetAllowlistFile() string {
	return s.AllowlistFile
}

func (s Security) GetDefaultPermissions() []string {
	return s.DefaultPermissions
}
