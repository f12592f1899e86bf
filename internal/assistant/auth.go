package assistant

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoCredentials is returned when no Anthropic credential can be found.
var ErrNoCredentials = errors.New("no anthropic credentials found")

// Credentials holds the token used against the Anthropic API. OAuth tokens
// authenticate with a Bearer header and a beta flag; API keys with the
// x-api-key header.
type Credentials struct {
	Token string
	OAuth bool
}

// oauthProfilePath locates the agent auth-profiles file relative to home.
var oauthProfilePath = filepath.Join(".openclaw", "agents", "main", "agent", "auth-profiles.json")

type authProfile struct {
	Provider string `json:"provider"`
	Type     string `json:"type"`
	Access   string `json:"access"`
}

type authProfiles struct {
	Profiles map[string]authProfile `json:"profiles"`
}

// LoadCredentials resolves Anthropic credentials, in order: an explicit
// key, an anthropic OAuth profile from ~/.openclaw, the ANTHROPIC_API_KEY
// environment variable, then the key file at ~/.config/anthropic/api_key.
func LoadCredentials(explicit string) (Credentials, error) {
	if explicit != "" {
		return Credentials{Token: explicit}, nil
	}
	if tok := oauthToken(); tok != "" {
		return Credentials{Token: tok, OAuth: true}, nil
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		return Credentials{Token: key}, nil
	}
	home, err := os.UserHomeDir()
	if err == nil {
		data, err := os.ReadFile(filepath.Join(home, ".config", "anthropic", "api_key"))
		if err == nil {
			if key := strings.TrimSpace(string(data)); key != "" {
				return Credentials{Token: key}, nil
			}
		}
	}
	return Credentials{}, ErrNoCredentials
}

// oauthToken reads the first anthropic oauth profile's access token, or ""
// when the profiles file is absent or holds none.
func oauthToken() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	data, err := os.ReadFile(filepath.Join(home, oauthProfilePath))
	if err != nil {
		return ""
	}
	var profiles authProfiles
	if err := json.Unmarshal(data, &profiles); err != nil {
		return ""
	}
	for _, p := range profiles.Profiles {
		if p.Provider == "anthropic" && p.Type == "oauth" && p.Access != "" {
			return p.Access
		}
	}
	return ""
}
