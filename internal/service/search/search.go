package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/C0lies/carbook/internal/models"
)

// Search queries the vehicle index maintained by the event-stream
// indexer. Results are filtered to the requesting user unless admin.
func Search(ctx context.Context, es *elasticsearch.Client, index, query string, userID uint, admin bool, from, size int) (int64, []models.Vehicle, error) {
	match := map[string]any{
		"multi_match": map[string]any{
			"query":     query,
			"fields":    []string{"brand^2", "model^2", "vin", "engine", "version"},
			"fuzziness": "AUTO",
		},
	}

	var q map[string]any
	if admin {
		q = match
	} else {
		q = map[string]any{
			"bool": map[string]any{
				"must":   []any{match},
				"filter": []any{map[string]any{"term": map[string]any{"userId": userID}}},
			},
		}
	}

	body := map[string]any{
		"query": q,
		"from":  from,
		"size":  size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, fmt.Errorf("encode search body: %w", err)
	}

	res, err := es.Search(
		es.Search.WithContext(ctx),
		es.Search.WithIndex(index),
		es.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("search request: %w", err)
	}

	defer res.Body.Close()
	if res.IsError() {
		return 0, nil, fmt.Errorf("search error: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source models.Vehicle `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, err
	}

	vehicles := make([]models.Vehicle, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		vehicles[i] = hit.Source
	}
	return r.Hits.Total.Value, vehicles, nil
}
