package jobs

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Manifest lists the runs to perform, read from a YAML file:
//
//	concurrency: 2
//	dry_run: false
//	jobs:
//	  - kind: sync
//	    business_areas: [afghanistan, ukraine]
type Manifest struct {
	Concurrency int             `yaml:"concurrency" validate:"gte=0"`
	DryRun      bool            `yaml:"dry_run"`
	Jobs        []ManifestEntry `yaml:"jobs" validate:"required,min=1,dive"`
}

type ManifestEntry struct {
	Kind          Kind     `yaml:"kind" validate:"required,oneof=migrate migrate-grievance sync"`
	BusinessAreas []string `yaml:"business_areas" validate:"required,min=1,dive,required"`
}

// Expand flattens the manifest into one job per business area, keeping file order.
func (m *Manifest) Expand() []Job {
	var out []Job
	for _, entry := range m.Jobs {
		for _, ba := range entry.BusinessAreas {
			out = append(out, Job{Kind: entry.Kind, BusinessAreaID: ba})
		}
	}
	return out
}

// ParseManifest decodes and validates a manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if err := validator.New().Struct(&m); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return &m, nil
}

func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return ParseManifest(data)
}
