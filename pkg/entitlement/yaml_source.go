package entitlement

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// yamlSource loads the catalog from a YAML file on every Load call, so a
// restart is not required to pick up catalog edits.
type yamlSource struct {
	path string
}

// NewYAMLSource returns a Source reading plans from the file at path.
// Expected document shape:
//
//	plans:
//	  basico:
//	    nombre: Básico
//	    limits:
//	      citas: 100
//	      profesionales: 2
//	    features: [reservas_online]
func NewYAMLSource(path string) Source {
	return &yamlSource{path: path}
}

type yamlCatalog struct {
	Plans map[string]Plan `yaml:"plans"`
}

func (s *yamlSource) Load(_ context.Context) (map[string]Plan, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}

	var doc yamlCatalog
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, fmt.Errorf("parse %s: %w", s.path, err))
	}

	for id, p := range doc.Plans {
		if p.ID == "" {
			p.ID = id
			doc.Plans[id] = p
		}
	}
	if err := validatePlans(doc.Plans); err != nil {
		return nil, err
	}
	return doc.Plans, nil
}
