// Package seed embeds the initial brand/model alias table.
package seed

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/TheAVengineer/CarScout-AI/internal/domain/catalog/entities"
)

//go:embed brand_models.yaml
var brandModelsYAML []byte

type seedFile struct {
	Brands []seedBrand `yaml:"brands"`
}

type seedBrand struct {
	Brand   string      `yaml:"brand"`
	BrandID string      `yaml:"brand_id"`
	Aliases []string    `yaml:"aliases"`
	Models  []seedModel `yaml:"models"`
}

type seedModel struct {
	Model   string   `yaml:"model"`
	ModelID string   `yaml:"model_id"`
	Aliases []string `yaml:"aliases"`
}

// BrandModels parses the embedded seed into table rows. Each row carries only
// its model's aliases; brand-level aliases are returned by BrandAliases.
func BrandModels() ([]entities.BrandModel, error) {
	var f seedFile
	if err := yaml.Unmarshal(brandModelsYAML, &f); err != nil {
		return nil, fmt.Errorf("parse brand model seed: %w", err)
	}

	var rows []entities.BrandModel
	for _, b := range f.Brands {
		for _, m := range b.Models {
			aliases, err := json.Marshal(m.Aliases)
			if err != nil {
				return nil, err
			}
			rows = append(rows, entities.BrandModel{
				Brand:   b.Brand,
				Model:   m.Model,
				BrandID: b.BrandID,
				ModelID: m.ModelID,
				Aliases: string(aliases),
				Locale:  "bg",
				Active:  true,
			})
		}
	}
	return rows, nil
}

// BrandAliases returns brand-level alias spellings keyed by brand id.
func BrandAliases() (map[string][]string, error) {
	var f seedFile
	if err := yaml.Unmarshal(brandModelsYAML, &f); err != nil {
		return nil, fmt.Errorf("parse brand model seed: %w", err)
	}

	out := make(map[string][]string, len(f.Brands))
	for _, b := range f.Brands {
		out[b.BrandID] = append([]string{b.Brand}, b.Aliases...)
	}
	return out, nil
}
