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
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/oppachoriya-tal/dfras/internal/dataset"
	"github.com/oppachoriya-tal/dfras/internal/patterns"
)

// fakeProvider returns fixed two-dimensional vectors keyed by text and counts
// how many texts it was asked to embed.
type fakeProvider struct {
	vectors       map[string][]float32
	embeddedTexts int
}

func (f *fakeProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, ok := f.vectors[text]
		if !ok {
			vec = []float32{0, 0}
		}
		out[i] = vec
		f.embeddedTexts++
	}
	return out, nil
}

type failingProvider struct{}

func (failingProvider) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("embedding service unavailable")
}

func ordersTable(failureReasons ...string) dataset.Table {
	t := dataset.Table{
		Name:    dataset.TableOrders,
		Columns: []string{"order_id", "failure_reason", "city", "status"},
	}
	for i, reason := range failureReasons {
		t.Rows = append(t.Rows, dataset.Row{
			"order_id":       string(rune('1' + i)),
			"failure_reason": reason,
			"city":           "",
			"status":         "",
		})
	}
	return t
}

func TestSemanticPatterns(t *testing.T) {
	provider := &fakeProvider{vectors: map[string][]float32{
		"why are addresses wrong": {1, 0},
		"Address not found":       {1, 0},
		"Nearby address":          {0.75, 0.661438},
		"Weather delay":           {0, 1},
	}}
	analyzer := NewAnalyzer(provider, 0.7, 5, zap.NewNop())

	ws := dataset.Empty()
	ws.Orders = ordersTable("Address not found", "Nearby address", "Weather delay")

	found := analyzer.SemanticPatterns(context.Background(), "why are addresses wrong", ws)
	if len(found) != 1 {
		t.Fatalf("Expected 1 semantic pattern, got %d", len(found))
	}

	p := found[0]
	if p.Type != patterns.TypeSemantic {
		t.Errorf("Expected type %s, got %s", patterns.TypeSemantic, p.Type)
	}
	if p.Frequency != 2 {
		t.Errorf("Expected frequency 2, got %d", p.Frequency)
	}
	if p.Severity != patterns.SeverityHigh {
		t.Errorf("Expected high severity, got %s", p.Severity)
	}
	if !strings.Contains(p.Description, "failure_reasons") {
		t.Errorf("Expected category in description, got %q", p.Description)
	}
	// Matches are listed best first.
	if !strings.Contains(p.Description, "Address not found, Nearby address") {
		t.Errorf("Expected ranked matches in description, got %q", p.Description)
	}
}

func TestSemanticPatterns_MediumSeverity(t *testing.T) {
	provider := &fakeProvider{vectors: map[string][]float32{
		"query":         {1, 0},
		"Nearby match":  {0.75, 0.661438},
		"Weather delay": {0, 1},
	}}
	analyzer := NewAnalyzer(provider, 0.7, 5, zap.NewNop())

	ws := dataset.Empty()
	ws.Orders = ordersTable("Nearby match", "Weather delay")

	found := analyzer.SemanticPatterns(context.Background(), "query", ws)
	if len(found) != 1 {
		t.Fatalf("Expected 1 semantic pattern, got %d", len(found))
	}
	if found[0].Severity != patterns.SeverityMedium {
		t.Errorf("Expected medium severity, got %s", found[0].Severity)
	}
}

func TestSemanticPatterns_NilProvider(t *testing.T) {
	analyzer := NewAnalyzer(nil, 0, 0, zap.NewNop())

	ws := dataset.Empty()
	ws.Orders = ordersTable("Address not found")

	if got := analyzer.SemanticPatterns(context.Background(), "anything", ws); len(got) != 0 {
		t.Errorf("Expected no patterns without a provider, got %d", len(got))
	}
	if got := analyzer.ClusterPatterns(context.Background(), ws); len(got) != 0 {
		t.Errorf("Expected no clusters without a provider, got %d", len(got))
	}
}

func TestSemanticPatterns_ProviderFailureDegrades(t *testing.T) {
	analyzer := NewAnalyzer(failingProvider{}, 0.7, 5, zap.NewNop())

	ws := dataset.Empty()
	ws.Orders = ordersTable("Address not found", "Weather delay")

	if got := analyzer.SemanticPatterns(context.Background(), "failures", ws); len(got) != 0 {
		t.Errorf("Expected no patterns on provider failure, got %d", len(got))
	}
}

func TestSemanticPatterns_CachesEmbeddings(t *testing.T) {
	provider := &fakeProvider{vectors: map[string][]float32{
		"failures":          {1, 0},
		"Address not found": {1, 0},
	}}
	analyzer := NewAnalyzer(provider, 0.7, 5, zap.NewNop())

	ws := dataset.Empty()
	ws.Orders = ordersTable("Address not found")

	analyzer.SemanticPatterns(context.Background(), "failures", ws)
	embedded := provider.embeddedTexts
	if embedded == 0 {
		t.Fatal("Expected provider to embed texts on first run")
	}

	analyzer.SemanticPatterns(context.Background(), "failures", ws)
	if provider.embeddedTexts != embedded {
		t.Errorf("Expected cached embeddings on second run, provider embedded %d more texts",
			provider.embeddedTexts-embedded)
	}
}

func TestClusterPatterns(t *testing.T) {
	provider := &fakeProvider{vectors: map[string][]float32{
		"Address not found Mumbai Failed": {1, 0},
		"Weather delay Chennai Failed":    {0, 1},
	}}
	analyzer := NewAnalyzer(provider, 0.7, 2, zap.NewNop())

	ws := dataset.Empty()
	ws.Orders = dataset.Table{
		Name:    dataset.TableOrders,
		Columns: []string{"failure_reason", "city", "status"},
	}
	for i := 0; i < 12; i++ {
		ws.Orders.Rows = append(ws.Orders.Rows, dataset.Row{
			"failure_reason": "Address not found", "city": "Mumbai", "status": "Failed",
		})
	}
	for i := 0; i < 3; i++ {
		ws.Orders.Rows = append(ws.Orders.Rows, dataset.Row{
			"failure_reason": "Weather delay", "city": "Chennai", "status": "Failed",
		})
	}

	found := analyzer.ClusterPatterns(context.Background(), ws)
	if len(found) != 2 {
		t.Fatalf("Expected 2 cluster patterns, got %d", len(found))
	}

	if found[0].Description != "Cluster 0 contains 3 related incidents" {
		t.Errorf("Unexpected first cluster description: %q", found[0].Description)
	}
	if found[0].Severity != patterns.SeverityMedium {
		t.Errorf("Expected medium severity for small cluster, got %s", found[0].Severity)
	}
	if found[1].Description != "Cluster 1 contains 12 related incidents" {
		t.Errorf("Unexpected second cluster description: %q", found[1].Description)
	}
	if found[1].Severity != patterns.SeverityHigh {
		t.Errorf("Expected high severity for large cluster, got %s", found[1].Severity)
	}
	for _, p := range found {
		if p.Type != patterns.TypeCluster {
			t.Errorf("Expected type %s, got %s", patterns.TypeCluster, p.Type)
		}
	}
}

func TestClusterPatterns_TooFewTexts(t *testing.T) {
	provider := &fakeProvider{vectors: map[string][]float32{}}
	analyzer := NewAnalyzer(provider, 0.7, 5, zap.NewNop())

	ws := dataset.Empty()
	ws.Orders = ordersTable("a", "b", "c", "d", "e")

	if got := analyzer.ClusterPatterns(context.Background(), ws); len(got) != 0 {
		t.Errorf("Expected no clusters for 5 texts, got %d", len(got))
	}
}

func TestIncidentTexts(t *testing.T) {
	ws := dataset.Empty()
	ws.Orders = dataset.Table{
		Name:    dataset.TableOrders,
		Columns: []string{"failure_reason", "city", "status"},
		Rows: []dataset.Row{
			{"failure_reason": "Address not found", "city": "Mumbai", "status": "Failed"},
			{"failure_reason": "", "city": "", "status": ""},
		},
	}
	ws.ExternalFactors = dataset.Table{
		Name:    dataset.TableExternalFactors,
		Columns: []string{"weather_condition", "traffic_condition", "event_type"},
		Rows: []dataset.Row{
			{"weather_condition": "Rain", "traffic_condition": "", "event_type": "Festival"},
		},
	}

	texts := incidentTexts(ws)
	if len(texts) != 2 {
		t.Fatalf("Expected 2 incident texts, got %d", len(texts))
	}
	if texts[0] != "Address not found Mumbai Failed" {
		t.Errorf("Unexpected order text: %q", texts[0])
	}
	if texts[1] != "Rain Festival" {
		t.Errorf("Unexpected external factor text: %q", texts[1])
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"mismatched lengths", []float32{1, 0}, []float32{1}, 0.0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cosine(tt.a, tt.b)
			if diff := got - tt.expected; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("Expected %f, got %f", tt.expected, got)
			}
		})
	}
}

func TestKMeans(t *testing.T) {
	vectors := [][]float32{
		{1, 0}, {1, 0.1}, {0.9, 0},
		{0, 1}, {0.1, 1}, {0, 0.9},
	}

	labels := KMeans(vectors, 2)
	if len(labels) != 6 {
		t.Fatalf("Expected 6 labels, got %d", len(labels))
	}
	if labels[0] != labels[1] || labels[1] != labels[2] {
		t.Errorf("Expected first group in one cluster, got %v", labels[:3])
	}
	if labels[3] != labels[4] || labels[4] != labels[5] {
		t.Errorf("Expected second group in one cluster, got %v", labels[3:])
	}
	if labels[0] == labels[3] {
		t.Errorf("Expected groups in different clusters, got %v", labels)
	}

	again := KMeans(vectors, 2)
	for i := range labels {
		if labels[i] != again[i] {
			t.Fatalf("Expected deterministic labels, got %v then %v", labels, again)
		}
	}
}

func TestKMeans_Boundaries(t *testing.T) {
	if got := KMeans(nil, 3); got != nil {
		t.Errorf("Expected nil labels for no vectors, got %v", got)
	}
	if got := KMeans([][]float32{{1, 0}}, 0); got != nil {
		t.Errorf("Expected nil labels for k=0, got %v", got)
	}

	labels := KMeans([][]float32{{1, 0}, {0, 1}}, 5)
	if len(labels) != 2 {
		t.Errorf("Expected k clamped to vector count, got %v", labels)
	}
}

func TestCache(t *testing.T) {
	cache := NewCache()
	if _, ok := cache.Get("missing"); ok {
		t.Error("Expected miss for unknown text")
	}

	cache.Put("text", []float32{1, 2})
	vec, ok := cache.Get("text")
	if !ok || len(vec) != 2 {
		t.Errorf("Expected cached vector of length 2, got %v (ok=%v)", vec, ok)
	}
	if cache.Len() != 1 {
		t.Errorf("Expected cache length 1, got %d", cache.Len())
	}
}

func BenchmarkSemanticPatterns(b *testing.B) {
	provider := &fakeProvider{vectors: map[string][]float32{
		"failures":          {1, 0},
		"Address not found": {1, 0},
		"Weather delay":     {0, 1},
	}}
	analyzer := NewAnalyzer(provider, 0.7, 5, zap.NewNop())
	ws := dataset.Empty()
	ws.Orders = ordersTable("Address not found", "Weather delay")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		analyzer.SemanticPatterns(context.Background(), "failures", ws)
	}
}
