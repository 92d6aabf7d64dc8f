// internal/insights/knowledge/elasticsearch.go
package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	"audit-insights/internal/models"
)

const (
	docKindSkill = "skill"
	docKindClaim = "claim"

	defaultIndexSize = 1000
)

// ElasticsearchSource reads the catalog from an index holding one document
// per skill or claim, discriminated by a "kind" field.
type ElasticsearchSource struct {
	client *elasticsearch.Client
	index  string
	size   int
}

func NewElasticsearchSource(client *elasticsearch.Client, index string) *ElasticsearchSource {
	return &ElasticsearchSource{client: client, index: index, size: defaultIndexSize}
}

type catalogHit struct {
	Kind string `json:"kind"`
	models.Skill
	Text string `json:"text"`
}

func (s *ElasticsearchSource) Load(ctx context.Context) (*Catalog, error) {
	query := `{"query":{"match_all":{}},"sort":[{"order":{"order":"asc","unmapped_type":"long"}}]}`

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.index),
		s.client.Search.WithBody(strings.NewReader(query)),
		s.client.Search.WithSize(s.size),
	)
	if err != nil {
		return nil, fmt.Errorf("search catalog index %s: %w", s.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search catalog index %s: %s", s.index, res.Status())
	}

	var body struct {
		Hits struct {
			Hits []struct {
				Source catalogHit `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode catalog search: %w", err)
	}

	var skills []models.Skill
	var claims []models.Claim
	for _, hit := range body.Hits.Hits {
		switch hit.Source.Kind {
		case docKindSkill:
			skills = append(skills, hit.Source.Skill)
		case docKindClaim:
			claims = append(claims, models.Claim{
				Text:   hit.Source.Text,
				Target: hit.Source.Target,
				Tags:   hit.Source.Tags,
			})
		}
	}

	return buildCatalog(s.index, skills, claims), nil
}
