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

// Package causes maps mined patterns to structured root causes via fixed
// lookup tables enriched with factors computed from the working set.
package causes

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/oppachoriya-tal/dfras/internal/dataset"
	"github.com/oppachoriya-tal/dfras/internal/patterns"
)

// Impact levels.
const (
	ImpactHigh   = "high"
	ImpactMedium = "medium"
)

// DefaultINRRate is the USD to INR conversion used when no rate is configured.
const DefaultINRRate = 83.0

// BusinessImpact carries the heuristic per-incident cost figures attached to
// a root cause. Costs are in INR; satisfaction is on a -1..1 scale and
// efficiency loss is a 0..1 fraction.
type BusinessImpact struct {
	CostPerIncident            float64 `json:"cost_per_incident"`
	CustomerSatisfactionImpact float64 `json:"customer_satisfaction_impact"`
	OperationalEfficiencyLoss  float64 `json:"operational_efficiency_loss"`
}

// RootCause is a structured causal explanation derived from one pattern.
type RootCause struct {
	Cause               string         `json:"cause"`
	Confidence          float64        `json:"confidence"`
	Impact              string         `json:"impact"`
	Evidence            string         `json:"evidence"`
	ContributingFactors []string       `json:"contributing_factors"`
	BusinessImpact      BusinessImpact `json:"business_impact"`
}

// Mapper turns patterns into root causes. The INR rate converts the fixed
// USD-denominated cost constants in the lookup tables.
type Mapper struct {
	inrRate float64
	logger  *zap.Logger
}

// New creates a Mapper with the given currency conversion rate.
func New(inrRate float64, logger *zap.Logger) *Mapper {
	if inrRate <= 0 {
		inrRate = DefaultINRRate
	}
	return &Mapper{inrRate: inrRate, logger: logger}
}

// locationRe pulls the place name out of "in <place>" geographic pattern
// descriptions. "Most deliveries to <place>" descriptions intentionally do
// not match; those patterns produce the Unknown hotspot cause.
var locationRe = regexp.MustCompile(`in ([\w\s]+?)(?: \(| with|$)`)

// Map derives root causes from the mined patterns. Failure, weather and
// geographic patterns each map through their own lookup; other pattern types
// contribute nothing. When no pattern yields a cause, a single generic
// fallback cause is emitted so the result is never empty. Causes sharing the
// same label are collapsed, keeping the first occurrence.
func (m *Mapper) Map(ws *dataset.RecordTable, mined []patterns.Pattern) []RootCause {
	var out []RootCause
	for _, p := range mined {
		switch p.Type {
		case patterns.TypeFailure:
			out = append(out, m.failureCause(p, ws))
		case patterns.TypeWeather:
			out = append(out, m.weatherCause(p, ws))
		case patterns.TypeGeographic:
			out = append(out, m.geographicCause(p, ws))
		}
	}
	if len(out) == 0 {
		out = append(out, m.fallbackCause())
	}

	deduped := dedupeByCause(out)
	m.logger.Debug("Mapped root causes",
		zap.Int("patterns", len(mined)),
		zap.Int("causes", len(deduped)),
	)
	return deduped
}

// quotedLabel extracts the value between the first pair of single quotes in a
// pattern description.
func quotedLabel(description string) string {
	parts := strings.Split(description, "'")
	if len(parts) >= 2 {
		return parts[1]
	}
	return "Unknown"
}

func (m *Mapper) failureCause(p patterns.Pattern, ws *dataset.RecordTable) RootCause {
	reason := quotedLabel(p.Description)
	dynamic := m.failureFactors(reason, ws)

	switch reason {
	case "Address not found":
		return RootCause{
			Cause:      "Inaccurate Address Data & Lack of Geo-Validation",
			Confidence: 0.85,
			Impact:     ImpactHigh,
			Evidence: fmt.Sprintf("Address validation failures account for %.1f%% of all failures. "+
				"This is often linked to outdated client records or manual input errors.", p.Percentage),
			ContributingFactors: append([]string{
				"Outdated or incomplete client address database: Many client addresses lack apartment/suite numbers or correct pin codes.",
				"Lack of real-time GPS coordinate validation: No system to verify if a provided address is physically deliverable.",
				"Manual address entry errors: Human errors during order creation leading to incorrect delivery locations.",
				"Inadequate driver tools for address troubleshooting: Drivers lack tools to confirm or correct addresses on-the-go.",
				"Poor synchronization with mapping services: Mapping data used by drivers is not up-to-date with ground reality.",
			}, dynamic...),
			BusinessImpact: m.impact(25.0, -0.3, 0.15),
		}
	case "Customer not available":
		return RootCause{
			Cause:      "Ineffective Customer Communication & Delivery Window Management",
			Confidence: 0.80,
			Impact:     ImpactMedium,
			Evidence: fmt.Sprintf("Customer unavailability causes %.1f%% of delivery failures, "+
				"suggesting a gap in pre-delivery communication or flexible scheduling.", p.Percentage),
			ContributingFactors: append([]string{
				"Inflexible delivery windows offered to customers: Limited slots force customers to choose inconvenient times.",
				"Poor pre-delivery communication: No SMS/app notifications to confirm delivery time or allow rescheduling.",
				"Lack of delivery notifications: Customers are not alerted when the driver is en route or has arrived.",
				"No rescheduling options: Customers cannot easily change delivery times after order placement.",
				"Absence of preferred delivery instructions: No way for customers to specify safe drop-off points or contact preferences.",
			}, dynamic...),
			BusinessImpact: m.impact(15.0, -0.2, 0.10),
		}
	case "Weather delay":
		return RootCause{
			Cause:      "Inadequate Weather Contingency Planning & Route Optimization",
			Confidence: 0.90,
			Impact:     ImpactHigh,
			Evidence: fmt.Sprintf("Weather-related delays affect %.1f%% of deliveries, "+
				"indicating a significant vulnerability to adverse conditions.", p.Percentage),
			ContributingFactors: []string{
				"No real-time weather monitoring integration: Lack of automatic alerts or dynamic route adjustments based on live weather data.",
				"Lack of alternative delivery routes for severe weather: Predetermined routes are not optimized for bad weather conditions.",
				"Insufficient weather-resistant packaging: Goods are damaged during transit in rain or extreme humidity.",
				"No weather-based scheduling adjustments: Delivery schedules are not modified to account for anticipated weather impact.",
				"Drivers are not adequately trained for adverse weather conditions: Lack of protocols for driving in heavy rain, fog, etc.",
			},
			BusinessImpact: m.impact(30.0, -0.25, 0.20),
		}
	default:
		return RootCause{
			Cause:      fmt.Sprintf("Systemic Operational Issue: %s", reason),
			Confidence: 0.70,
			Impact:     ImpactMedium,
			Evidence: fmt.Sprintf("This failure reason accounts for %.1f%% of all failures, "+
				"indicating a broader systemic challenge that needs deeper investigation.", p.Percentage),
			ContributingFactors: append([]string{
				"Underlying process inefficiency: Core operational workflows may have bottlenecks.",
				"Lack of preventive measures: No proactive strategies to avert recurring issues.",
				"Insufficient training for personnel: Staff may lack skills to handle specific scenarios.",
				"Limitations in existing technology: Current systems may not support necessary dynamic adjustments.",
				"Data visibility gaps: Incomplete or delayed information hinders effective decision-making.",
			}, dynamic...),
			BusinessImpact: m.impact(20.0, -0.2, 0.12),
		}
	}
}

// failureFactors computes dataset-derived contributing factors for the two
// failure reasons that have measurable data-quality signals.
func (m *Mapper) failureFactors(reason string, ws *dataset.RecordTable) []string {
	orders := ws.Orders
	if orders.Empty() {
		return nil
	}
	var factors []string

	switch reason {
	case "Address not found":
		total := orders.Len()
		missingPincode := orders.CountWhere(func(r dataset.Row) bool {
			return strings.TrimSpace(r["delivery_address_pincode"]) == ""
		})
		factors = append(factors, fmt.Sprintf(
			"High percentage of orders (%.1f%%) with missing or invalid pincodes in the relevant dataset, hindering accurate delivery.",
			float64(missingPincode)/float64(total)*100))

		missingLine2 := orders.CountWhere(func(r dataset.Row) bool {
			return strings.TrimSpace(r["delivery_address_line2"]) == ""
		})
		factors = append(factors, fmt.Sprintf(
			"Approximately %.1f%% of orders lack detailed address line 2 information (e.g., apartment/suite number), leading to delivery confusion.",
			float64(missingLine2)/float64(total)*100))

	case "Customer not available":
		if hour, share, ok := peakUnavailabilityHour(orders); ok {
			factors = append(factors, fmt.Sprintf(
				"A significant portion of 'Customer not available' failures (%.1f%%) occur around %d:00, "+
					"suggesting issues with scheduled delivery windows or customer communication during these times.",
				share*100, hour))
		}
		if n := contactIssueCount(ws.Feedback); n > 0 {
			factors = append(factors, fmt.Sprintf(
				"Customer feedback analysis shows %d instances related to contact issues, potentially contributing to unavailability.", n))
		}
	}
	return factors
}

// peakUnavailabilityHour finds the hour of day in which the largest share of
// "Customer not available" failures were ordered.
func peakUnavailabilityHour(orders dataset.Table) (hour int, share float64, ok bool) {
	byHour := make(map[int]int)
	total := 0
	for _, row := range orders.Rows {
		if row["failure_reason"] != "Customer not available" {
			continue
		}
		ts, parsed := dataset.ParseTime(row["order_date"])
		if !parsed {
			continue
		}
		byHour[ts.Hour()]++
		total++
	}
	if total == 0 {
		return 0, 0, false
	}
	// Ties resolve to the earliest hour to keep output stable.
	best := -1
	for h := 0; h < 24; h++ {
		if n, tracked := byHour[h]; tracked && (best == -1 || n > byHour[best]) {
			best = h
		}
	}
	return best, float64(byHour[best]) / float64(total), true
}

// contactIssueCount counts feedback comments mentioning contact problems.
func contactIssueCount(feedback dataset.Table) int {
	if !feedback.HasColumn("comments") {
		return 0
	}
	return feedback.CountWhere(func(r dataset.Row) bool {
		c := strings.ToLower(r["comments"])
		return strings.Contains(c, "contact") || strings.Contains(c, "reach") || strings.Contains(c, "phone")
	})
}

func (m *Mapper) weatherCause(p patterns.Pattern, ws *dataset.RecordTable) RootCause {
	condition := quotedLabel(p.Description)
	dynamic := weatherFactors(condition, ws)

	return RootCause{
		Cause:      fmt.Sprintf("Weather Impact: %s Causing Delivery Disruptions", condition),
		Confidence: 0.88,
		Impact:     ImpactHigh,
		Evidence: fmt.Sprintf("%s weather conditions correlate with %.1f%% of delivery failures, "+
			"leading to delays and potential damage.", condition, p.Percentage),
		ContributingFactors: append([]string{
			"Lack of dynamic weather-based route optimization: Routes are not automatically re-calculated based on adverse weather.",
			"Insufficient real-time weather monitoring: No integrated system to provide immediate weather alerts to dispatch or drivers.",
			"Absence of alternative delivery methods for severe weather: No contingency plans for drone/alternative deliveries during extreme conditions.",
			"Poor vehicle weather preparedness: Vehicles may not be equipped for heavy rain, snow, or extreme heat.",
			"Inadequate communication to customers about weather-related delays: Customers are not proactively informed.",
		}, dynamic...),
		BusinessImpact: m.impact(35.0, -0.3, 0.25),
	}
}

// weatherFactors correlates orders against external-factor records for the
// given condition by joining order dates to factor timestamps.
func weatherFactors(condition string, ws *dataset.RecordTable) []string {
	if ws.ExternalFactors.Empty() || ws.Orders.Empty() || condition == "Unknown" {
		return nil
	}

	dates := make(map[string]struct{})
	for _, row := range ws.ExternalFactors.Rows {
		if strings.Contains(strings.ToLower(row["weather_condition"]), strings.ToLower(condition)) {
			if d := strings.TrimSpace(row["recorded_at"]); d != "" {
				dates[d] = struct{}{}
			}
		}
	}
	if len(dates) == 0 {
		return nil
	}

	affected := ws.Orders.Filter(func(r dataset.Row) bool {
		_, ok := dates[strings.TrimSpace(r["order_date"])]
		return ok
	})
	if affected.Empty() {
		return nil
	}
	failed := affected.Filter(func(r dataset.Row) bool { return r["status"] == "Failed" })
	if failed.Empty() {
		return nil
	}

	factors := []string{fmt.Sprintf(
		"Observed a %.1f%% failure rate in orders during '%s' conditions within the dataset, indicating a strong correlation.",
		float64(failed.Len())/float64(affected.Len())*100, condition)}

	reasons := failed.ValueCounts("failure_reason")
	if len(reasons) > 2 {
		reasons = reasons[:2]
	}
	if len(reasons) > 0 {
		labels := make([]string, len(reasons))
		for i, vc := range reasons {
			labels[i] = vc.Value
		}
		factors = append(factors, fmt.Sprintf(
			"Top failure reasons during '%s' were: %s.", condition, strings.Join(labels, ", ")))
	}
	return factors
}

func (m *Mapper) geographicCause(p patterns.Pattern, ws *dataset.RecordTable) RootCause {
	location := "Unknown"
	if match := locationRe.FindStringSubmatch(p.Description); match != nil {
		location = strings.TrimSpace(match[1])
	}

	return RootCause{
		Cause:      fmt.Sprintf("Geographic Hotspot: Operational Challenges in %s", location),
		Confidence: 0.75,
		Impact:     ImpactMedium,
		Evidence: fmt.Sprintf("%s represents %.1f%% of delivery volume with observed higher failure rates, "+
			"indicating specific regional challenges.", location, p.Percentage),
		ContributingFactors: append([]string{
			"Complex urban routing challenges: Densely populated areas or poor road infrastructure make navigation difficult.",
			"Limited local delivery infrastructure: Insufficient local warehouses or delivery hubs to support demand.",
			"Persistent traffic congestion patterns: Chronic traffic issues lead to consistent delays during peak hours.",
			"High address density issues: Many multi-story buildings or unclear addresses in specific areas.",
			"Lack of region-specific driver training: Drivers may not be familiar with local nuances of delivery.",
		}, geographicFactors(location, ws)...),
		BusinessImpact: m.impact(18.0, -0.15, 0.08),
	}
}

// geographicFactors inspects local failure reasons and warehouse coverage for
// the hotspot location.
func geographicFactors(location string, ws *dataset.RecordTable) []string {
	if ws.Orders.Empty() || location == "Unknown" {
		return nil
	}

	local := ws.Orders.Filter(func(r dataset.Row) bool {
		return containsFold(r["delivery_city"], location) || containsFold(r["delivery_state"], location)
	})
	if local.Empty() {
		return nil
	}

	var factors []string
	if reasons := local.ValueCounts("failure_reason"); len(reasons) > 0 {
		factors = append(factors, fmt.Sprintf(
			"In %s, a significant portion (%.1f%%) of failures are attributed to '%s', indicating a localized issue.",
			location, float64(reasons[0].Count)/float64(localReasonTotal(local))*100, reasons[0].Value))
	}

	if !ws.Warehouses.Empty() {
		warehouses := ws.Warehouses.CountWhere(func(r dataset.Row) bool {
			return containsFold(r["city"], location) || containsFold(r["state"], location)
		})
		failedShare := float64(local.CountWhere(func(r dataset.Row) bool { return r["status"] == "Failed" })) / float64(local.Len())
		if warehouses == 0 {
			factors = append(factors, fmt.Sprintf(
				"Lack of sufficient local warehouse infrastructure in %s could be contributing to delivery bottlenecks and increased failure rates.",
				location))
		} else if warehouses > 5 && failedShare > 0.15 {
			factors = append(factors, fmt.Sprintf(
				"Despite having %d warehouses in or near %s, the observed high failure rate suggests operational "+
					"inefficiencies within these facilities or last-mile challenges.", warehouses, location))
		}
	}
	return factors
}

// localReasonTotal is the denominator for the localized failure-reason share:
// all rows carrying any failure reason.
func localReasonTotal(local dataset.Table) int {
	n := local.CountWhere(func(r dataset.Row) bool {
		return strings.TrimSpace(r["failure_reason"]) != ""
	})
	if n == 0 {
		return 1
	}
	return n
}

func (m *Mapper) fallbackCause() RootCause {
	return RootCause{
		Cause:      "Systemic Operational Inefficiencies",
		Confidence: 0.65,
		Impact:     ImpactMedium,
		Evidence: "Analysis indicates multiple contributing factors to delivery challenges across the operational " +
			"spectrum, requiring a holistic review of processes and resources.",
		ContributingFactors: []string{
			"Suboptimal process workflows: Opportunities for streamlining and automation in various operational stages.",
			"Resource allocation imbalances: Misaligned deployment of drivers, vehicles, or warehouse staff.",
			"Technology integration gaps: Disconnected systems leading to information silos and manual data transfers.",
			"Insufficient training and development: Workforce skills may not meet evolving operational demands.",
			"Limited real-time visibility: Lack of granular, live data to identify and address issues promptly.",
		},
		BusinessImpact: m.impact(22.0, -0.2, 0.15),
	}
}

// impact builds a BusinessImpact from a USD cost constant and the fixed
// satisfaction/efficiency figures, converting cost to INR.
func (m *Mapper) impact(costUSD, satisfaction, efficiency float64) BusinessImpact {
	return BusinessImpact{
		CostPerIncident:            round2(costUSD * m.inrRate),
		CustomerSatisfactionImpact: satisfaction,
		OperationalEfficiencyLoss:  efficiency,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func dedupeByCause(in []RootCause) []RootCause {
	seen := make(map[string]struct{}, len(in))
	out := make([]RootCause, 0, len(in))
	for _, rc := range in {
		if _, ok := seen[rc.Cause]; ok {
			continue
		}
		seen[rc.Cause] = struct{}{}
		out = append(out, rc)
	}
	return out
}

func containsFold(value, needle string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(needle))
}
