package compose

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// templateFile is the on-disk shape of the template registry.
type templateFile struct {
	Templates map[string]string `yaml:"templates"`
}

// Registry holds the outreach templates keyed by template id (email_1,
// email_2, ...). Template text may open with a "Subject: ..." line and can
// contain {{column}} and {{ai: instruction}} placeholders.
type Registry struct {
	templates map[string]string
}

// LoadRegistry reads the YAML template file.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template file: %w", err)
	}
	var file templateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse template file: %w", err)
	}
	if len(file.Templates) == 0 {
		return nil, fmt.Errorf("template file %s defines no templates", path)
	}
	return &Registry{templates: file.Templates}, nil
}

// NewRegistry builds a registry from an in-memory map. Tests use this.
func NewRegistry(templates map[string]string) *Registry {
	return &Registry{templates: templates}
}

// Get returns the template text for id.
func (r *Registry) Get(id string) (string, error) {
	t, ok := r.templates[id]
	if !ok {
		return "", fmt.Errorf("unknown template %q", id)
	}
	return t, nil
}
