// Copyright 2025 DFRAS Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package embedding

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/oppachoriya-tal/dfras/internal/dataset"
	"github.com/oppachoriya-tal/dfras/internal/patterns"
)

const (
	// DefaultSimilarityThreshold is the minimum cosine similarity for a text
	// to count as semantically related to the query.
	DefaultSimilarityThreshold = 0.7
	// DefaultClusterCount is the number of k-means clusters used for
	// incident grouping.
	DefaultClusterCount = 5

	// minClusteringTexts is the smallest corpus worth clustering.
	minClusteringTexts = 5
	// highSimilarity escalates a semantic pattern to high severity.
	highSimilarity = 0.8
	// largeClusterSize escalates a cluster pattern to high severity.
	largeClusterSize = 10
)

// Analyzer derives semantic and clustering patterns from the working set using
// text embeddings. All failures degrade to an empty pattern list so the query
// pipeline never depends on embedding availability.
type Analyzer struct {
	provider     Provider
	cache        *Cache
	threshold    float64
	clusterCount int
	logger       *zap.Logger
}

// NewAnalyzer creates a semantic analyzer. A nil provider is valid and yields
// an analyzer whose methods return no patterns.
func NewAnalyzer(provider Provider, threshold float64, clusterCount int, logger *zap.Logger) *Analyzer {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	if clusterCount <= 0 {
		clusterCount = DefaultClusterCount
	}
	return &Analyzer{
		provider:     provider,
		cache:        NewCache(),
		threshold:    threshold,
		clusterCount: clusterCount,
		logger:       logger,
	}
}

// textCategory is one group of candidate texts compared against the query.
type textCategory struct {
	name  string
	texts []string
}

// SemanticPatterns compares the query against the distinct text values of the
// working set, one category at a time, and reports categories with matches
// above the similarity threshold.
func (a *Analyzer) SemanticPatterns(ctx context.Context, query string, ws *dataset.RecordTable) []patterns.Pattern {
	found := []patterns.Pattern{}
	if a.provider == nil || ws == nil {
		return found
	}

	categories := []textCategory{
		{name: "failure_reasons", texts: ws.Orders.Uniques("failure_reason")},
		{name: "weather_conditions", texts: ws.ExternalFactors.Uniques("weather_condition")},
		{name: "traffic_conditions", texts: ws.ExternalFactors.Uniques("traffic_condition")},
		{name: "delay_notes", texts: ws.FleetLogs.Uniques("gps_delay_notes")},
		{name: "cities", texts: ws.Orders.Uniques("city")},
		{name: "statuses", texts: ws.Orders.Uniques("status")},
	}

	queryVecs, err := a.embedBatch(ctx, []string{query})
	if err != nil {
		a.logger.Warn("Semantic analysis unavailable, skipping", zap.Error(err))
		return found
	}
	queryVec := queryVecs[0]

	for _, category := range categories {
		if len(category.texts) == 0 {
			continue
		}

		vectors, err := a.embedBatch(ctx, category.texts)
		if err != nil {
			a.logger.Warn("Failed to embed category texts, skipping",
				zap.String("category", category.name),
				zap.Error(err),
			)
			continue
		}

		type match struct {
			text       string
			similarity float64
		}
		var matches []match
		for i, vec := range vectors {
			sim := Cosine(queryVec, vec)
			if sim > a.threshold {
				matches = append(matches, match{text: category.texts[i], similarity: sim})
			}
		}
		if len(matches) == 0 {
			continue
		}

		sort.SliceStable(matches, func(i, j int) bool {
			return matches[i].similarity > matches[j].similarity
		})

		top := make([]string, 0, 3)
		maxSim := matches[0].similarity
		for _, m := range matches {
			if len(top) == 3 {
				break
			}
			top = append(top, m.text)
		}

		severity := patterns.SeverityMedium
		if maxSim > highSimilarity {
			severity = patterns.SeverityHigh
		}
		found = append(found, patterns.Pattern{
			Type:        patterns.TypeSemantic,
			Description: fmt.Sprintf("Semantic similarity found in %s: %s", category.name, strings.Join(top, ", ")),
			Frequency:   len(matches),
			Percentage:  share(len(matches), len(category.texts)),
			Severity:    severity,
		})
	}
	return found
}

// ClusterPatterns groups incident texts from orders and external factors into
// k-means clusters and reports clusters holding more than one incident.
func (a *Analyzer) ClusterPatterns(ctx context.Context, ws *dataset.RecordTable) []patterns.Pattern {
	found := []patterns.Pattern{}
	if a.provider == nil || ws == nil {
		return found
	}

	texts := incidentTexts(ws)
	if len(texts) <= minClusteringTexts {
		return found
	}

	vectors, err := a.embedBatch(ctx, texts)
	if err != nil {
		a.logger.Warn("Clustering analysis unavailable, skipping", zap.Error(err))
		return found
	}

	labels := KMeans(vectors, a.clusterCount)
	sizes := make(map[int]int)
	for _, label := range labels {
		sizes[label]++
	}

	// Cluster ids are visited in ascending order so output is stable.
	for cluster := 0; cluster < a.clusterCount; cluster++ {
		size := sizes[cluster]
		if size <= 1 {
			continue
		}
		severity := patterns.SeverityMedium
		if size > largeClusterSize {
			severity = patterns.SeverityHigh
		}
		found = append(found, patterns.Pattern{
			Type:        patterns.TypeCluster,
			Description: fmt.Sprintf("Cluster %d contains %d related incidents", cluster, size),
			Frequency:   size,
			Percentage:  share(size, len(texts)),
			Severity:    severity,
		})
	}
	return found
}

// incidentTexts builds one combined text per order and external-factor row.
// Rows with no populated text columns contribute nothing.
func incidentTexts(ws *dataset.RecordTable) []string {
	var texts []string
	for _, row := range ws.Orders.Rows {
		if t := joinFields(row, "failure_reason", "city", "status"); t != "" {
			texts = append(texts, t)
		}
	}
	for _, row := range ws.ExternalFactors.Rows {
		if t := joinFields(row, "weather_condition", "traffic_condition", "event_type"); t != "" {
			texts = append(texts, t)
		}
	}
	return texts
}

func joinFields(row dataset.Row, columns ...string) string {
	var parts []string
	for _, col := range columns {
		if v := strings.TrimSpace(row[col]); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}

// embedBatch returns one vector per text, serving repeats from the cache and
// embedding only the texts not seen before.
func (a *Analyzer) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if vec, ok := a.cache.Get(text); ok {
			vectors[i] = vec
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return vectors, nil
	}

	embedded, err := a.provider.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(embedded) != len(missing) {
		return nil, fmt.Errorf("provider returned %d vectors for %d texts", len(embedded), len(missing))
	}
	for i, vec := range embedded {
		a.cache.Put(missing[i], vec)
		vectors[missingIdx[i]] = vec
	}
	return vectors, nil
}

func share(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(count) / float64(total) * 100
}
