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

// Package patterns mines frequency patterns from the working set.
package patterns

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/oppachoriya-tal/dfras/internal/dataset"
)

// Pattern types.
const (
	TypeFailure    = "failure_pattern"
	TypeGeographic = "geographic_pattern"
	TypeStatus     = "status_pattern"
	TypeWeather    = "weather_correlation"
	TypeTraffic    = "traffic_correlation"
	TypeDelay      = "delay_pattern"
	TypeSemantic   = "semantic_pattern"
	TypeCluster    = "cluster_pattern"
)

// Pattern severities.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
)

// Pattern is one mined frequency summary over a categorical column value.
// Percentage is always relative to the total row count of the table the
// pattern was drawn from.
type Pattern struct {
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Frequency   int     `json:"frequency"`
	Percentage  float64 `json:"percentage"`
	Severity    string  `json:"severity"`
}

// Config tunes the ranking depth and the high-severity cutoff.
type Config struct {
	// TopPatterns bounds how many ranked values each column contributes.
	TopPatterns int
	// SeverityThreshold is the frequency above which a pattern is high
	// severity. Weather and traffic correlations use half of it, since
	// external-factor tables are much smaller than the order table.
	SeverityThreshold int
}

// DefaultConfig returns the standard mining configuration.
func DefaultConfig() Config {
	return Config{TopPatterns: 5, SeverityThreshold: 10}
}

// severeWeather and severeTraffic are the condition values that escalate a
// frequent correlation to high severity.
var (
	severeWeather = map[string]bool{"Rain": true, "Fog": true}
	severeTraffic = map[string]bool{"Heavy": true, "Severe": true}
)

// Miner computes frequency patterns over the working set tables.
type Miner struct {
	cfg    Config
	logger *zap.Logger
}

// New creates a Miner.
func New(cfg Config, logger *zap.Logger) *Miner {
	if cfg.TopPatterns <= 0 {
		cfg.TopPatterns = DefaultConfig().TopPatterns
	}
	if cfg.SeverityThreshold <= 0 {
		cfg.SeverityThreshold = DefaultConfig().SeverityThreshold
	}
	return &Miner{cfg: cfg, logger: logger}
}

// Mine returns all frequency patterns found in the working set. Tables or
// columns that are absent contribute nothing; Mine never fails.
func (m *Miner) Mine(ws *dataset.RecordTable) []Pattern {
	var out []Pattern
	out = append(out, m.mineOrders(ws.Orders)...)
	out = append(out, m.mineExternalFactors(ws.ExternalFactors)...)
	out = append(out, m.mineFleetLogs(ws.FleetLogs)...)
	out = append(out, m.mineDeliveryGeography(ws.Orders)...)

	m.logger.Debug("Mined patterns", zap.Int("count", len(out)))
	return out
}

func (m *Miner) mineOrders(orders dataset.Table) []Pattern {
	if orders.Empty() {
		return nil
	}
	var out []Pattern

	for _, vc := range top(orders.ValueCounts("failure_reason"), m.cfg.TopPatterns) {
		out = append(out, Pattern{
			Type:        TypeFailure,
			Description: fmt.Sprintf("'%s' appears in %d failed deliveries", vc.Value, vc.Count),
			Frequency:   vc.Count,
			Percentage:  percentage(vc.Count, orders.Len()),
			Severity:    severityAbove(vc.Count, m.cfg.SeverityThreshold),
		})
	}

	for _, vc := range top(orders.ValueCounts("city"), m.cfg.TopPatterns) {
		out = append(out, Pattern{
			Type:        TypeGeographic,
			Description: fmt.Sprintf("Most deliveries to %s (%d orders)", vc.Value, vc.Count),
			Frequency:   vc.Count,
			Percentage:  percentage(vc.Count, orders.Len()),
			Severity:    SeverityMedium,
		})
	}

	for _, vc := range orders.ValueCounts("status") {
		severity := SeverityMedium
		if vc.Value == "Failed" && vc.Count > m.cfg.SeverityThreshold {
			severity = SeverityHigh
		}
		out = append(out, Pattern{
			Type:        TypeStatus,
			Description: fmt.Sprintf("'%s' status in %d orders", vc.Value, vc.Count),
			Frequency:   vc.Count,
			Percentage:  percentage(vc.Count, orders.Len()),
			Severity:    severity,
		})
	}

	return out
}

func (m *Miner) mineExternalFactors(factors dataset.Table) []Pattern {
	if factors.Empty() {
		return nil
	}
	// External-factor correlations rank fewer values and escalate at half
	// the order-table threshold.
	depth := 3
	threshold := m.cfg.SeverityThreshold / 2

	var out []Pattern
	for _, vc := range top(factors.ValueCounts("weather_condition"), depth) {
		severity := SeverityMedium
		if severeWeather[vc.Value] && vc.Count > threshold {
			severity = SeverityHigh
		}
		out = append(out, Pattern{
			Type:        TypeWeather,
			Description: fmt.Sprintf("'%s' weather conditions in %d incidents", vc.Value, vc.Count),
			Frequency:   vc.Count,
			Percentage:  percentage(vc.Count, factors.Len()),
			Severity:    severity,
		})
	}
	for _, vc := range top(factors.ValueCounts("traffic_condition"), depth) {
		severity := SeverityMedium
		if severeTraffic[vc.Value] && vc.Count > threshold {
			severity = SeverityHigh
		}
		out = append(out, Pattern{
			Type:        TypeTraffic,
			Description: fmt.Sprintf("'%s' traffic conditions in %d incidents", vc.Value, vc.Count),
			Frequency:   vc.Count,
			Percentage:  percentage(vc.Count, factors.Len()),
			Severity:    severity,
		})
	}
	return out
}

func (m *Miner) mineFleetLogs(fleet dataset.Table) []Pattern {
	if fleet.Empty() {
		return nil
	}
	var out []Pattern
	for _, vc := range top(fleet.ValueCounts("gps_delay_notes"), m.cfg.TopPatterns) {
		out = append(out, Pattern{
			Type:        TypeDelay,
			Description: fmt.Sprintf("'%s' causes %d delays", vc.Value, vc.Count),
			Frequency:   vc.Count,
			Percentage:  percentage(vc.Count, fleet.Len()),
			Severity:    severityAbove(vc.Count, m.cfg.SeverityThreshold),
		})
	}
	return out
}

// mineDeliveryGeography ranks delivery destinations, which live in separate
// columns from the order origin city.
func (m *Miner) mineDeliveryGeography(orders dataset.Table) []Pattern {
	if orders.Empty() {
		return nil
	}
	var out []Pattern
	for _, col := range []string{"delivery_city", "delivery_state"} {
		for _, vc := range top(orders.ValueCounts(col), m.cfg.TopPatterns) {
			severity := SeverityMedium
			if vc.Count > 50 {
				severity = SeverityHigh
			}
			out = append(out, Pattern{
				Type:        TypeGeographic,
				Description: fmt.Sprintf("High volume in %s (%d orders)", vc.Value, vc.Count),
				Frequency:   vc.Count,
				Percentage:  percentage(vc.Count, orders.Len()),
				Severity:    severity,
			})
		}
	}
	return out
}

func top(counts []dataset.ValueCount, n int) []dataset.ValueCount {
	if len(counts) > n {
		return counts[:n]
	}
	return counts
}

func percentage(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(count) / float64(total) * 100
}

func severityAbove(count, threshold int) string {
	if count > threshold {
		return SeverityHigh
	}
	return SeverityMedium
}
