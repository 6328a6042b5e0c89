package permissions

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadStaticChecker reads a JSON file mapping actor IDs to granted permission
// names and builds a StaticChecker from it.
//
//	{"reviewer-1": ["review_application", "request_documents"]}
func LoadStaticChecker(path string) (*StaticChecker, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read permissions file: %w", err)
	}

	var grants map[string][]string

	err = json.Unmarshal(data, &grants)
	if err != nil {
		return nil, fmt.Errorf("failed to parse permissions file %s: %w", path, err)
	}

	return NewStaticChecker(grants), nil
}
