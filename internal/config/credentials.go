package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/titanous/json5"

	"github.com/ibeckermayer/xharvest/internal/types"
)

// ErrMissingCredentials is returned when the credential file is absent or incomplete
var ErrMissingCredentials = errors.New("please put auth_username and auth_password into the credentials file")

// LoadCredentials reads the credential file. Plain JSON works; comments and trailing commas are accepted.
func LoadCredentials(path string) (types.Credentials, error) {
	var creds types.Credentials

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return creds, fmt.Errorf("%w (%s not found)", ErrMissingCredentials, path)
		}
		return creds, err
	}

	if err := json5.Unmarshal(data, &creds); err != nil {
		return creds, fmt.Errorf("%w (%s is not valid JSON: %v)", ErrMissingCredentials, path, err)
	}

	if creds.Empty() {
		return creds, ErrMissingCredentials
	}
	return creds, nil
}
