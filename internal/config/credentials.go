package config

import (
	"os"
	"path/filepath"
	"strings"
)

const credentialsFileName = "credentials"

// CredentialsPath returns the path of the API key file inside the config
// directory.
func CredentialsPath(dir string) string {
	return filepath.Join(Dir(dir), credentialsFileName)
}

// LoadAPIKey reads the persisted API key. A missing file is not an error;
// it returns an empty key, meaning the backend is reached unauthenticated
// (fine for localhost setups where auth is disabled).
func LoadAPIKey(dir string) (string, error) {
	data, err := os.ReadFile(CredentialsPath(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// SaveAPIKey persists the API key with owner-only permissions.
func SaveAPIKey(dir, key string) error {
	path := CredentialsPath(dir)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(key+"\n"), 0600)
}
