package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"aegis/internal/ratelimit/models"
)

// tiersFile is the YAML shape for operator-defined tiers:
//
//	tiers:
//	  - name: partner
//	    window: 30s
//	    max_requests: 500
//	    key_namespace: ratelimit:partner:   # optional
type tiersFile struct {
	Tiers []tierSpec `yaml:"tiers"`
}

type tierSpec struct {
	Name         string        `yaml:"name"`
	Window       time.Duration `yaml:"window"`
	MaxRequests  int           `yaml:"max_requests"`
	KeyNamespace string        `yaml:"key_namespace"`
}

// LoadTiersFile parses additional tiers from a YAML file. Validation happens
// in NewRegistry; this only handles shape and the namespace default.
func LoadTiersFile(path string) ([]models.Tier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tiers file: %w", err)
	}

	var file tiersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse tiers file %s: %w", path, err)
	}

	tiers := make([]models.Tier, 0, len(file.Tiers))
	for _, spec := range file.Tiers {
		namespace := spec.KeyNamespace
		if namespace == "" && spec.Name != "" {
			namespace = fmt.Sprintf("ratelimit:%s:", spec.Name)
		}
		tiers = append(tiers, models.Tier{
			Name:         spec.Name,
			Window:       spec.Window,
			MaxRequests:  spec.MaxRequests,
			KeyNamespace: namespace,
		})
	}
	return tiers, nil
}

// BuildRegistry combines the built-in tiers with an optional tiers file.
// An empty path yields the defaults only.
func BuildRegistry(tiersFilePath string) (*Registry, error) {
	tiers := DefaultTiers()
	if tiersFilePath != "" {
		extra, err := LoadTiersFile(tiersFilePath)
		if err != nil {
			return nil, err
		}
		tiers = append(tiers, extra...)
	}
	return NewRegistry(tiers)
}
