package internalclient

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadCredentials reads a JSON file mapping client names to signing
// credentials. An empty path yields an empty credential set.
func LoadCredentials(path string) (map[string]Credential, error) {
	if path == "" {
		return map[string]Credential{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file %s: %w", path, err)
	}

	credentials := make(map[string]Credential)
	if err := json.Unmarshal(data, &credentials); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file %s: %w", path, err)
	}

	return credentials, nil
}
