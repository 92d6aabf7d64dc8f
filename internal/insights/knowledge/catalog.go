// internal/insights/knowledge/catalog.go
package knowledge

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"audit-insights/internal/models"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Source loads a full catalog from somewhere.
type Source interface {
	Load(ctx context.Context) (*Catalog, error)
}

type catalogDocument struct {
	Version string         `yaml:"version"`
	Skills  []models.Skill `yaml:"skills"`
	Claims  []models.Claim `yaml:"claims"`
}

// ParseCatalog decodes a YAML catalog. Entries that fail validation are
// skipped and reported in Catalog.Issues; only undecodable input is an error.
func ParseCatalog(data []byte) (*Catalog, error) {
	var doc catalogDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return buildCatalog(doc.Version, doc.Skills, doc.Claims), nil
}

func buildCatalog(version string, skills []models.Skill, claims []models.Claim) *Catalog {
	catalog := &Catalog{
		Version: version,
		Skills:  make([]models.Skill, 0, len(skills)),
		Claims:  make([]models.Claim, 0, len(claims)),
	}

	for i, s := range skills {
		if err := validate.Struct(s); err != nil {
			catalog.Issues = append(catalog.Issues, fmt.Sprintf("skills[%d] %q: %v", i, s.Name, err))
			continue
		}
		catalog.Skills = append(catalog.Skills, s)
	}
	for i, c := range claims {
		if err := validate.Struct(c); err != nil {
			catalog.Issues = append(catalog.Issues, fmt.Sprintf("claims[%d]: %v", i, err))
			continue
		}
		catalog.Claims = append(catalog.Claims, c)
	}

	return catalog
}

// EmbeddedSource serves the catalog compiled into the binary.
type EmbeddedSource struct{}

func (EmbeddedSource) Load(_ context.Context) (*Catalog, error) {
	return ParseCatalog(embeddedCatalog)
}

// FileSource reads a YAML catalog from disk on every load.
type FileSource struct {
	Path string
}

func (s FileSource) Load(_ context.Context) (*Catalog, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", s.Path, err)
	}
	return ParseCatalog(data)
}
