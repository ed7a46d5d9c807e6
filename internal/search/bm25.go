package search

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// DefaultRelatedLimit caps related-problem results when no limit is given.
const DefaultRelatedLimit = 5

// Related runs a BM25 match over problem text, symptoms and type,
// optionally restricted to one device category.
// An empty query with a category lists that category.
func (i *Indexer) Related(text, deviceCategory string, limit int) ([]RelatedResult, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if limit <= 0 {
		limit = DefaultRelatedLimit
	}

	text = strings.TrimSpace(text)
	category := strings.ToLower(strings.TrimSpace(deviceCategory))
	if text == "" && category == "" {
		return []RelatedResult{}, nil
	}

	var searchQuery query.Query
	if text != "" {
		searchQuery = bleve.NewMatchQuery(text)
	} else {
		searchQuery = bleve.NewMatchAllQuery()
	}

	if category != "" {
		categoryQuery := bleve.NewTermQuery(category)
		categoryQuery.SetField("device_category")
		searchQuery = bleve.NewConjunctionQuery(searchQuery, categoryQuery)
	}

	searchRequest := bleve.NewSearchRequestOptions(searchQuery, limit, 0, false)
	searchRequest.Fields = []string{"problem_text", "device_category"}

	results, err := i.bleveIndex.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}

	return convertBleveResults(results), nil
}

// convertBleveResults converts Bleve hits to RelatedResults, skipping hits with malformed ids.
func convertBleveResults(results *bleve.SearchResult) []RelatedResult {
	related := make([]RelatedResult, 0, len(results.Hits))

	for _, hit := range results.Hits {
		id, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		problemText, _ := hit.Fields["problem_text"].(string)
		category, _ := hit.Fields["device_category"].(string)

		related = append(related, RelatedResult{
			RecordID:       id,
			ProblemText:    problemText,
			DeviceCategory: category,
			Score:          hit.Score,
		})
	}

	return related
}
