package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ppiankov/autodd/internal/source"
)

// LoadCredentials reads live feed credentials from file, or from the configured
// credentials file when file is empty, and fills each empty field from its
// environment variable. A configured file that does not exist is skipped; an
// explicit one is an error. Missing fields yield a *source.CredentialsError.
func (c *Config) LoadCredentials(file string) (source.Credentials, error) {
	live := c.Sources.Live
	explicit := file != ""
	if !explicit {
		file = c.Resolve(live.CredentialsFile)
	}

	var creds source.Credentials
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil && (explicit || !errors.Is(err, os.ErrNotExist)) {
			return creds, fmt.Errorf("read credentials: %w", err)
		}
		if err == nil {
			if err := json.Unmarshal(data, &creds); err != nil {
				return creds, fmt.Errorf("parse credentials: %w", err)
			}
		}
	}

	fill := func(field *string, env string) {
		if *field == "" && env != "" {
			*field = os.Getenv(env)
		}
	}
	fill(&creds.ClientID, live.ClientIDEnv)
	fill(&creds.ClientSecret, live.ClientSecretEnv)
	fill(&creds.UserAgent, live.UserAgentEnv)

	if err := creds.Validate(); err != nil {
		return creds, err
	}
	return creds, nil
}
