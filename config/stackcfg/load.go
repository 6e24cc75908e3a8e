package stackcfg

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPath returns the conventional config file name for a stack.
func DefaultPath(stack string) string {
	return fmt.Sprintf("%s.%s.yaml", DefaultProject, stack)
}

// Load reads a YAML file from the given path. It performs no validation beyond
// YAML decoding; see File.Settings.
func Load(path, project string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return Parse(data, project)
}

// Parse decodes configuration bytes.
func Parse(data []byte, project string) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}
	if project == "" {
		project = DefaultProject
	}
	f.project = project
	f.lookupEnv = os.LookupEnv
	f.readFile = os.ReadFile
	if f.Config == nil {
		f.Config = map[string]Value{}
	}
	return &f, nil
}
