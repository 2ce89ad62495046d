package config

type GoogleConfig interface {
	GetGoogleClientID() string
	GetGoogleClientSecret() string
	GetGoogleIssuer() string
	GetGoogleScopes() []string
}

type Google struct {
	ClientID     string   `env:"GOOGLE_CLIENT_ID,required"`
	ClientSecret string   `env:"GOOGLE_CLIENT_SECRET,required"`
	Issuer       string   `env:"GOOGLE_ISSUER" envDefault:"https://accounts.google.com"`
	Scopes       []string `env:"GOOGLE_SCOPES" envDefault:"openid,email,profile" envSeparator:","`
}

var _ GoogleConfig = Google{}

func (g Google) GetGoogleClientID() string {
	return g.ClientID
}

func (g Google) GetGoogleClientSecret() string {
	return g.ClientSecret
}

func (g Google) GetGoogleIssuer() string {
	return g.Issuer
}

func (g Google) GetGoogleScopes() []string {
	return g.Scopes
}
