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

// Package engine runs the delivery-failure analysis pipeline. One Engine is
// built per loaded dataset snapshot and analyzes queries concurrently; every
// stage reads the snapshot but never mutates it, so Analyze is a pure function
// of (query, snapshot, config, clock).
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oppachoriya-tal/dfras/internal/causes"
	"github.com/oppachoriya-tal/dfras/internal/classifier"
	"github.com/oppachoriya-tal/dfras/internal/dataset"
	"github.com/oppachoriya-tal/dfras/internal/embedding"
	"github.com/oppachoriya-tal/dfras/internal/patterns"
	"github.com/oppachoriya-tal/dfras/internal/recommend"
	"github.com/oppachoriya-tal/dfras/internal/selector"
)

// Config carries the analysis tuning knobs.
type Config struct {
	TopPatterns         int
	SeverityThreshold   int
	SimilarityThreshold float64
	ClusterCount        int
	INRRate             float64
}

// DefaultConfig returns the standard analysis configuration.
func DefaultConfig() Config {
	miner := patterns.DefaultConfig()
	return Config{
		TopPatterns:         miner.TopPatterns,
		SeverityThreshold:   miner.SeverityThreshold,
		SimilarityThreshold: embedding.DefaultSimilarityThreshold,
		ClusterCount:        embedding.DefaultClusterCount,
		INRRate:             causes.DefaultINRRate,
	}
}

// PatternGroups splits the identified patterns by analysis method.
type PatternGroups struct {
	Traditional []patterns.Pattern `json:"traditional"`
	Semantic    []patterns.Pattern `json:"semantic"`
	Clustering  []patterns.Pattern `json:"clustering"`
	Total       int                `json:"total_patterns"`
}

// Result is the complete answer to one analysis query.
type Result struct {
	QueryID          string                          `json:"query_id"`
	OriginalQuery    string                          `json:"original_query"`
	InterpretedQuery string                          `json:"interpreted_query"`
	AnalysisType     string                          `json:"analysis_type"`
	ConfidenceScore  float64                         `json:"confidence_score"`
	QueryEntities    classifier.Entities             `json:"query_entities"`
	DataSummary      map[string]dataset.TableSummary `json:"relevant_data_summary"`
	Patterns         PatternGroups                   `json:"patterns_identified"`
	RootCauses       []causes.RootCause              `json:"root_causes"`
	Recommendations  []recommend.Recommendation      `json:"recommendations"`
	ImpactAnalysis   recommend.ImpactSummary         `json:"impact_analysis"`
	Timestamp        time.Time                       `json:"timestamp"`
	ProcessingTimeMS int64                           `json:"processing_time_ms"`
}

// Engine wires the pipeline stages over one dataset snapshot.
type Engine struct {
	snapshot    *dataset.RecordTable
	classifier  *classifier.IntentClassifier
	selector    *selector.Selector
	miner       *patterns.Miner
	analyzer    *embedding.Analyzer
	mapper      *causes.Mapper
	synthesizer *recommend.Synthesizer
	logger      *zap.Logger
	now         func() time.Time
}

// New creates an Engine over the given snapshot. The embedding provider may
// be nil, in which case semantic and clustering patterns stay empty.
func New(snapshot *dataset.RecordTable, provider embedding.Provider, cfg Config, logger *zap.Logger) *Engine {
	return NewWithClock(snapshot, provider, cfg, logger, time.Now)
}

// NewWithClock creates an Engine with an injected clock for time-period
// filtering and result timestamps.
func NewWithClock(snapshot *dataset.RecordTable, provider embedding.Provider, cfg Config, logger *zap.Logger, now func() time.Time) *Engine {
	if snapshot == nil {
		snapshot = dataset.Empty()
	}
	lexicon := classifier.BuildLexicon(snapshot)
	return &Engine{
		snapshot:   snapshot,
		classifier: classifier.New(lexicon),
		selector:   selector.NewWithClock(logger, now),
		miner: patterns.New(patterns.Config{
			TopPatterns:       cfg.TopPatterns,
			SeverityThreshold: cfg.SeverityThreshold,
		}, logger),
		analyzer:    embedding.NewAnalyzer(provider, cfg.SimilarityThreshold, cfg.ClusterCount, logger),
		mapper:      causes.New(cfg.INRRate, logger),
		synthesizer: recommend.New(cfg.INRRate, logger),
		logger:      logger,
		now:         now,
	}
}

// Analyze runs the full pipeline for one query. An empty or whitespace-only
// query is rejected with classifier.ErrEmptyQuery before any stage runs.
// Every other failure degrades: a stage panic is caught at this boundary and
// replaced with a minimal fallback result so the caller always gets an answer.
func (e *Engine) Analyze(ctx context.Context, query string) (result Result, err error) {
	queryID := uuid.New().String()
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Analysis stage panicked, returning fallback result",
				zap.String("query_id", queryID),
				zap.String("query", query),
				zap.Any("panic", r),
			)
			result = e.fallbackResult(queryID, query, started)
			err = nil
		}
	}()

	classified, err := e.classifier.Classify(query)
	if err != nil {
		return Result{}, err
	}

	e.logger.Debug("Query classified",
		zap.String("query_id", queryID),
		zap.String("analysis_type", classified.AnalysisType),
		zap.Float64("confidence", classified.Confidence),
	)

	ws := e.selector.Select(e.snapshot, classified.Entities)

	traditional := e.miner.Mine(ws)
	semantic := e.analyzer.SemanticPatterns(ctx, query, ws)
	clustering := e.analyzer.ClusterPatterns(ctx, ws)

	all := make([]patterns.Pattern, 0, len(traditional)+len(semantic)+len(clustering))
	all = append(all, traditional...)
	all = append(all, semantic...)
	all = append(all, clustering...)

	rootCauses := e.mapper.Map(ws, all)
	recommendations := e.synthesizer.Synthesize(rootCauses)
	impact := e.synthesizer.Impact(rootCauses, recommendations)

	result = Result{
		QueryID:          queryID,
		OriginalQuery:    query,
		InterpretedQuery: classified.InterpretedQuery,
		AnalysisType:     classified.AnalysisType,
		ConfidenceScore:  classified.Confidence,
		QueryEntities:    classified.Entities,
		DataSummary:      ws.Summary(),
		Patterns: PatternGroups{
			Traditional: traditional,
			Semantic:    semantic,
			Clustering:  clustering,
			Total:       len(all),
		},
		RootCauses:       rootCauses,
		Recommendations:  recommendations,
		ImpactAnalysis:   impact,
		Timestamp:        e.now().UTC(),
		ProcessingTimeMS: time.Since(started).Milliseconds(),
	}

	e.logger.Info("Query analyzed",
		zap.String("query_id", queryID),
		zap.String("analysis_type", result.AnalysisType),
		zap.Int("patterns", result.Patterns.Total),
		zap.Int("root_causes", len(result.RootCauses)),
		zap.Int("recommendations", len(result.Recommendations)),
		zap.Int64("processing_time_ms", result.ProcessingTimeMS),
	)
	return result, nil
}

// fallbackResult is the answer of last resort. It carries the generic cause
// and general recommendations so the response stays structurally complete.
func (e *Engine) fallbackResult(queryID, query string, started time.Time) Result {
	rootCauses := e.mapper.Map(dataset.Empty(), nil)
	recommendations := e.synthesizer.Synthesize(rootCauses)
	impact := e.synthesizer.Impact(rootCauses, recommendations)

	return Result{
		QueryID:          queryID,
		OriginalQuery:    query,
		InterpretedQuery: "Analysis degraded: internal error, returning generic findings",
		AnalysisType:     classifier.FailureAnalysis,
		ConfidenceScore:  0,
		Patterns: PatternGroups{
			Traditional: []patterns.Pattern{},
			Semantic:    []patterns.Pattern{},
			Clustering:  []patterns.Pattern{},
		},
		RootCauses:       rootCauses,
		Recommendations:  recommendations,
		ImpactAnalysis:   impact,
		Timestamp:        e.now().UTC(),
		ProcessingTimeMS: time.Since(started).Milliseconds(),
	}
}
