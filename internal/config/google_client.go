package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// GoogleClient is the OAuth client downloaded from the Google Cloud console.
// Only the Sheets commands load it.
type GoogleClient struct {
	ClientID     string `validate:"required"`
	ClientSecret string `validate:"required"`
	TokenURI     string `validate:"required,url"`

	raw []byte
}

// The console writes either an "installed" or a "web" section
type googleClientFile struct {
	Installed *googleClientSection `json:"installed"`
	Web       *googleClientSection `json:"web"`
}

type googleClientSection struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	TokenURI     string `json:"token_uri"`
}

// LoadGoogleClient finds oauthClient[.<env>].json the same way as the config file
func LoadGoogleClient(env string) (*GoogleClient, error) {
	path, err := findFile(envFileName("oauthClient", env, "json"))
	if err != nil {
		return nil, fmt.Errorf("failed to find oauth client file: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read oauth client file: %w", err)
	}
	return ParseGoogleClient(data)
}

// ParseGoogleClient decodes and validates a client file
func ParseGoogleClient(data []byte) (*GoogleClient, error) {
	var file googleClientFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse oauth client file: %w", err)
	}

	section := file.Installed
	if section == nil {
		section = file.Web
	}
	if section == nil {
		return nil, fmt.Errorf("oauth client file has neither an installed nor a web section")
	}

	client := &GoogleClient{
		ClientID:     section.ClientID,
		ClientSecret: section.ClientSecret,
		TokenURI:     section.TokenURI,
		raw:          data,
	}
	if err := validate.Struct(client); err != nil {
		return nil, fmt.Errorf("oauth client validation failed: %w", err)
	}
	return client, nil
}

// JSON returns the file as read, the form google.ConfigFromJSON expects
func (c *GoogleClient) JSON() []byte {
	return c.raw
}
