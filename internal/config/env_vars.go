package config

import (
	"fmt"
	"strings"
)

type EnvVars struct {
	Port           string `env:"PORT" envDefault:"8080"`
	AppName        string `env:"APP_NAME" envDefault:"Login Broker"`
	Env            string `env:"ENV" envDefault:"DEV"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	PublicURL      string `env:"PUBLIC_URL" envDefault:"http://localhost:8080"`
	FrontendOrigin string `env:"FRONTEND_ORIGIN" envDefault:"http://localhost:3000"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	if strings.HasPrefix(e.Port, ":") {
		return e.Port
	}
	return fmt.Sprintf(":%s", e.Port)
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	return strings.ToUpper(e.Env)
}

func (e EnvVars) GetLogLevel() string {
	return e.LogLevel
}

// GetPublicURL returns the externally visible base URL of this service (e.g. "https://auth.example.com").
// The provider redirect URI is built from it.
func (e EnvVars) GetPublicURL() string {
	return e.PublicURL
}

// GetFrontendOrigin returns the origin of the application that opens the login popup.
// Completion messages are posted to this origin only.
func (e EnvVars) GetFrontendOrigin() string {
	return e.FrontendOrigin
}
