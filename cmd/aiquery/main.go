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

// Package main provides the delivery-failure analysis query service. It loads
// the CSV dataset once at startup and answers analysis queries over it.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/oppachoriya-tal/dfras/internal/classifier"
	"github.com/oppachoriya-tal/dfras/internal/config"
	"github.com/oppachoriya-tal/dfras/internal/dataset"
	"github.com/oppachoriya-tal/dfras/internal/embedding"
	"github.com/oppachoriya-tal/dfras/internal/engine"
	"github.com/oppachoriya-tal/dfras/internal/health"
	"github.com/oppachoriya-tal/dfras/internal/resilience"
)

const (
	// HealthCheckTimeout defines the timeout for health checks
	HealthCheckTimeout = 5 * time.Second
	// QueryRequestTimeout defines the timeout for analysis requests
	QueryRequestTimeout = 30 * time.Second
	// StorePingRetries bounds the startup retry loop for the SQLite mirror
	StorePingRetries = 3
)

// QueryRequest represents the JSON payload for analysis requests
type QueryRequest struct {
	Query string `json:"query" binding:"required"`
}

// ServiceDependencies holds initialized service dependencies
type ServiceDependencies struct {
	Snapshot *dataset.RecordTable
	Store    *dataset.Store
	Provider embedding.Provider
	Engine   *engine.Engine
	Logger   *zap.Logger
	Config   *config.Config
}

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initializeLogger(cfg)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	maskedConfig := cfg.MaskSensitiveValues()
	logger.Info("Configuration loaded successfully",
		zap.String("service", "aiquery"),
		zap.String("environment", os.Getenv("ENVIRONMENT")),
		zap.String("dataset_path", maskedConfig.Dataset.Path),
		zap.String("dataset_db_path", maskedConfig.Dataset.DBPath),
		zap.Float64("similarity_threshold", maskedConfig.Analysis.SimilarityThreshold),
		zap.Int("cluster_count", maskedConfig.Analysis.ClusterCount),
		zap.Float64("inr_rate", maskedConfig.Analysis.INRRate),
		zap.String("openai_api_key", maskedConfig.OpenAI.APIKey),
	)

	deps, err := initializeDependencies(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize dependencies", zap.Error(err))
	}
	defer func() {
		if deps.Store != nil {
			if err := deps.Store.Close(); err != nil {
				logger.Warn("Failed to close dataset store", zap.Error(err))
			}
		}
	}()

	// Set Gin mode based on log level
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	healthManager := health.NewManager("aiquery", "1.0.0", logger)
	setupHealthChecks(healthManager, deps)

	router.GET("/health", gin.WrapH(healthManager.HTTPHandler()))
	router.POST("/api/ai/query", createQueryHandler(deps))
	router.GET("/api/ai/sample-queries", createSampleQueriesHandler())
	router.GET("/api/ai/capabilities", createCapabilitiesHandler(deps))

	port := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Starting aiquery service",
		zap.String("port", port),
		zap.String("dataset_path", cfg.Dataset.Path),
		zap.Bool("semantic_analysis", deps.Provider != nil),
	)

	if err := router.Run(port); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}

// initializeLogger creates a logger based on configuration settings
func initializeLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapConfig zap.Config

	if cfg.Logging.Format == "json" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	switch cfg.Logging.Level {
	case "debug":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "info":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	case "warn":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case "error":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	if cfg.Logging.Output == "file" {
		zapConfig.OutputPaths = []string{"aiquery.log"}
		zapConfig.ErrorOutputPaths = []string{"aiquery.log"}
	} else {
		zapConfig.OutputPaths = []string{"stdout"}
		zapConfig.ErrorOutputPaths = []string{"stderr"}
	}

	return zapConfig.Build()
}

// initializeDependencies initializes all service dependencies. The dataset
// always loads (missing files become empty tables), the SQLite mirror and
// the embedding provider are both optional.
func initializeDependencies(cfg *config.Config, logger *zap.Logger) (*ServiceDependencies, error) {
	logger.Info("Initializing service dependencies")

	loader := dataset.NewLoader(cfg.Dataset.Path, logger)
	snapshot, err := loader.Load()
	if err != nil {
		logger.Warn("Dataset load reported errors, continuing with partial snapshot", zap.Error(err))
	}

	store := openStore(cfg, logger)

	var provider embedding.Provider
	if cfg.OpenAI.APIKey != "" {
		p, err := embedding.NewOpenAIProvider(cfg.OpenAI.APIKey, logger)
		if err != nil {
			logger.Warn("Failed to initialize embedding provider, semantic analysis disabled", zap.Error(err))
		} else {
			provider = p
		}
	} else {
		logger.Info("No OpenAI API key configured, semantic analysis disabled")
	}

	eng := engine.New(snapshot, provider, engine.Config{
		TopPatterns:         cfg.Analysis.TopPatterns,
		SeverityThreshold:   cfg.Analysis.SeverityThreshold,
		SimilarityThreshold: cfg.Analysis.SimilarityThreshold,
		ClusterCount:        cfg.Analysis.ClusterCount,
		INRRate:             cfg.Analysis.INRRate,
	}, logger)

	logger.Info("Service dependencies initialized successfully",
		zap.Any("table_counts", snapshot.Counts()),
	)

	return &ServiceDependencies{
		Snapshot: snapshot,
		Store:    store,
		Provider: provider,
		Engine:   eng,
		Logger:   logger,
		Config:   cfg,
	}, nil
}

// openStore opens the SQLite mirror and verifies it responds. Failures leave
// the mirror disabled; analysis runs on the in-memory snapshot either way.
func openStore(cfg *config.Config, logger *zap.Logger) *dataset.Store {
	store, err := dataset.NewStore(cfg.Dataset.DBPath)
	if err != nil {
		logger.Warn("Failed to open dataset store, mirror disabled", zap.Error(err))
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), HealthCheckTimeout)
	defer cancel()

	err = resilience.RetryWithMaxAttempts(ctx, logger, StorePingRetries, func(ctx context.Context) error {
		return store.Ping(ctx)
	})
	if err != nil {
		logger.Warn("Dataset store unreachable, mirror disabled", zap.Error(err))
		_ = store.Close()
		return nil
	}
	return store
}

// setupHealthChecks configures health checks for the aiquery service
func setupHealthChecks(manager *health.Manager, deps *ServiceDependencies) {
	manager.AddChecker("dataset", health.DatasetHealthChecker(deps.Snapshot.Counts))

	if deps.Store != nil {
		manager.AddChecker("store", health.DatabaseHealthChecker("sqlite", deps.Store.Ping))
	}

	if deps.Provider != nil {
		manager.AddChecker("embeddings", health.ExternalServiceHealthChecker("openai", func(ctx context.Context) error {
			_, err := deps.Provider.Embed(ctx, []string{"health check"})
			return err
		}))
	}

	manager.SetTimeout(HealthCheckTimeout)
}

// createQueryHandler creates the main analysis endpoint handler
func createQueryHandler(deps *ServiceDependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		ctx, cancel := context.WithTimeout(c.Request.Context(), QueryRequestTimeout)
		defer cancel()

		var queryReq QueryRequest
		if err := c.ShouldBindJSON(&queryReq); err != nil {
			deps.Logger.Error("Invalid query request", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request format: " + err.Error(),
			})
			return
		}

		result, err := deps.Engine.Analyze(ctx, queryReq.Query)
		if err != nil {
			if errors.Is(err, classifier.ErrEmptyQuery) {
				c.JSON(http.StatusBadRequest, gin.H{
					"error": "Query parameter is required",
				})
				return
			}
			deps.Logger.Error("Analysis failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Analysis failed",
			})
			return
		}

		deps.Logger.Info("Query request completed",
			zap.String("query_id", result.QueryID),
			zap.String("analysis_type", result.AnalysisType),
			zap.Duration("processing_time", time.Since(start)),
		)

		c.JSON(http.StatusOK, result)
	}
}

// createSampleQueriesHandler serves canned queries covering each analysis type
func createSampleQueriesHandler() gin.HandlerFunc {
	sampleQueries := []gin.H{
		{"query": "Why are deliveries failing in Mumbai?", "analysis_type": classifier.FailureAnalysis},
		{"query": "What is the delivery success rate this month?", "analysis_type": classifier.PerformanceAnalysis},
		{"query": "Show me failure trends over the last month", "analysis_type": classifier.TrendAnalysis},
		{"query": "What will happen to delivery failures next month?", "analysis_type": classifier.PredictiveAnalysis},
		{"query": "Which cities have the most delivery problems?", "analysis_type": classifier.GeographicAnalysis},
		{"query": "Why did Client X orders fail yesterday?", "analysis_type": classifier.ClientAnalysis},
		{"query": "Compare warehouse performance for last week", "analysis_type": classifier.WarehouseAnalysis},
		{"query": "What happens to deliveries during the festival period?", "analysis_type": classifier.TemporalAnalysis},
	}

	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"sample_queries": sampleQueries,
			"count":          len(sampleQueries),
		})
	}
}

// createCapabilitiesHandler exposes model and capability diagnostics
func createCapabilitiesHandler(deps *ServiceDependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		semanticEnabled := deps.Provider != nil

		capabilities := []string{
			"Intent classification",
			"Entity extraction",
			"Pattern mining",
			"Root cause analysis",
			"Actionable recommendations",
			"Business impact estimation",
		}
		if semanticEnabled {
			capabilities = append(capabilities,
				"Semantic similarity analysis",
				"Text clustering",
			)
		}

		model := "unavailable"
		if semanticEnabled {
			model = string(embedding.EmbeddingModel)
		}

		c.JSON(http.StatusOK, gin.H{
			"model":            model,
			"semantic_enabled": semanticEnabled,
			"capabilities":     capabilities,
			"params": gin.H{
				"similarity_threshold": deps.Config.Analysis.SimilarityThreshold,
				"kmeans_clusters":      deps.Config.Analysis.ClusterCount,
			},
			"data_statistics": deps.Snapshot.Counts(),
			"timestamp":       time.Now().UTC(),
		})
	}
}
