package manifest

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// yamlFile is the raw YAML structure of a routing manifest.
type yamlFile struct {
	Routings []Entry `yaml:"routings"`
}

// ReadYAML parses a routing manifest from YAML bytes.
func ReadYAML(data []byte) (*Manifest, error) {
	var raw yamlFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	if len(raw.Routings) == 0 {
		return nil, fmt.Errorf("manifest contains no routings")
	}

	for i, e := range raw.Routings {
		if e.Name == "" {
			return nil, fmt.Errorf("routing at index %d has no name", i)
		}
		if len(e.Operations) == 0 {
			return nil, fmt.Errorf("routing %q has no operations", e.Name)
		}
	}

	return &Manifest{Entries: raw.Routings}, nil
}
