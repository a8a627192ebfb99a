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

// Package recommend synthesizes remediation recommendations and the
// aggregate impact estimate from root causes.
package recommend

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/oppachoriya-tal/dfras/internal/causes"
)

// Recommendation priorities.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// priorityRank orders recommendations for display.
var priorityRank = map[string]int{
	PriorityHigh:   3,
	PriorityMedium: 2,
	PriorityLow:    1,
}

// Recommendation is one remediation suggestion with baked-in cost and impact
// estimates. The figures are illustrative, not computed.
type Recommendation struct {
	Title              string   `json:"title"`
	Priority           string   `json:"priority"`
	Category           string   `json:"category"`
	Description        string   `json:"description"`
	SpecificActions    []string `json:"specific_actions"`
	EstimatedImpact    string   `json:"estimated_impact"`
	Timeline           string   `json:"timeline"`
	InvestmentRequired string   `json:"investment_required"`
	ROIEstimate        string   `json:"roi_estimate"`
}

// ImpactSummary aggregates business impact across all root causes plus a
// savings heuristic driven by recommendation priority counts.
type ImpactSummary struct {
	CurrentImpact struct {
		CostPerIncident            float64 `json:"cost_per_incident"`
		CustomerSatisfactionImpact float64 `json:"customer_satisfaction_impact"`
		OperationalEfficiencyLoss  float64 `json:"operational_efficiency_loss"`
	} `json:"current_impact"`
	PotentialImprovements struct {
		EstimatedAnnualSavings          int    `json:"estimated_annual_savings"`
		FailureReductionPotential       string `json:"failure_reduction_potential"`
		CustomerSatisfactionImprovement string `json:"customer_satisfaction_improvement"`
		OperationalEfficiencyGain       string `json:"operational_efficiency_gain"`
	} `json:"potential_improvements"`
	ImplementationTimeline struct {
		QuickWins  string `json:"quick_wins"`
		MediumTerm string `json:"medium_term"`
		LongTerm   string `json:"long_term"`
	} `json:"implementation_timeline"`
}

// Synthesizer maps root causes to the fixed recommendation catalog.
type Synthesizer struct {
	inrRate float64
	logger  *zap.Logger
}

// New creates a Synthesizer with the given currency conversion rate.
func New(inrRate float64, logger *zap.Logger) *Synthesizer {
	if inrRate <= 0 {
		inrRate = 83.0
	}
	return &Synthesizer{inrRate: inrRate, logger: logger}
}

// Synthesize returns the recommendation list for the root causes: catalog
// entries matched by cause-name substring, the two general recommendations
// appended when absent, duplicates removed by title, and the result
// stable-sorted by priority descending.
func (s *Synthesizer) Synthesize(rootCauses []causes.RootCause) []Recommendation {
	var recs []Recommendation
	for _, rc := range rootCauses {
		recs = append(recs, s.catalogFor(rc.Cause)...)
	}
	recs = dedupeByTitle(recs)

	for _, general := range s.generalRecommendations() {
		if !hasTitle(recs, general.Title) {
			recs = append(recs, general)
		}
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return priorityRank[recs[i].Priority] > priorityRank[recs[j].Priority]
	})

	s.logger.Debug("Synthesized recommendations",
		zap.Int("causes", len(rootCauses)),
		zap.Int("recommendations", len(recs)),
	)
	return recs
}

// Impact aggregates the business impact of all root causes and estimates
// annual savings from the recommendation priority mix.
func (s *Synthesizer) Impact(rootCauses []causes.RootCause, recs []Recommendation) ImpactSummary {
	var summary ImpactSummary
	for _, rc := range rootCauses {
		summary.CurrentImpact.CostPerIncident += rc.BusinessImpact.CostPerIncident
		summary.CurrentImpact.CustomerSatisfactionImpact += rc.BusinessImpact.CustomerSatisfactionImpact
		summary.CurrentImpact.OperationalEfficiencyLoss += rc.BusinessImpact.OperationalEfficiencyLoss
	}

	high, medium := 0, 0
	for _, rec := range recs {
		switch rec.Priority {
		case PriorityHigh:
			high++
		case PriorityMedium:
			medium++
		}
	}
	summary.PotentialImprovements.EstimatedAnnualSavings = high*50000 + medium*25000
	summary.PotentialImprovements.FailureReductionPotential = "60-80%"
	summary.PotentialImprovements.CustomerSatisfactionImprovement = "40-60%"
	summary.PotentialImprovements.OperationalEfficiencyGain = "25-40%"

	summary.ImplementationTimeline.QuickWins = "2-4 weeks"
	summary.ImplementationTimeline.MediumTerm = "2-3 months"
	summary.ImplementationTimeline.LongTerm = "6-12 months"
	return summary
}

// catalogFor returns the static catalog entries triggered by substrings of
// the cause label.
func (s *Synthesizer) catalogFor(cause string) []Recommendation {
	switch {
	case strings.Contains(cause, "Address"):
		return []Recommendation{
			{
				Title:    "Implement Advanced Address Validation System",
				Priority: PriorityHigh,
				Category: "technology_upgrade",
				Description: "Deploy an AI-powered address validation system with real-time GPS coordinate verification " +
					"and auto-correction capabilities to drastically reduce 'Address not found' failures.",
				SpecificActions: []string{
					"Integrate with leading mapping APIs (e.g., Google Maps, MapmyIndia) for address validation and geo-coding.",
					"Implement real-time GPS coordinate verification during order creation and prior to dispatch.",
					"Add address autocomplete and suggestion functionality in both frontend and backend systems.",
					"Develop an address quality scoring system to prioritize verification efforts.",
					"Regularly update and cleanse the client address database using verified sources.",
				},
				EstimatedImpact:    "Reduce address-related failures by 60-80% and improve first-attempt delivery success.",
				Timeline:           "4-6 weeks",
				InvestmentRequired: s.investmentRange(15000, 25000),
				ROIEstimate:        "300% within 6 months due to reduced re-delivery costs and improved customer retention.",
			},
			{
				Title:    "Enhance Driver Training for Address Navigation",
				Priority: PriorityMedium,
				Category: "training",
				Description: "Provide comprehensive training to drivers on effective address verification, navigation best " +
					"practices, and troubleshooting techniques for ambiguous addresses in urban and rural areas.",
				SpecificActions: []string{
					"Develop detailed address verification protocols and scenario-based training modules for drivers.",
					"Train drivers on advanced GPS navigation features and use of supplementary mapping tools.",
					"Implement pre-delivery address confirmation via customer contact (SMS/Call) for complex locations.",
					"Create a centralized knowledge base/troubleshooting guide for common address-related issues.",
					"Conduct refresher workshops on local geographical nuances and difficult delivery zones.",
				},
				EstimatedImpact:    "Reduce address-related failures by 30-40% by empowering drivers with better tools and knowledge.",
				Timeline:           "2-3 weeks",
				InvestmentRequired: s.investmentRange(5000, 8000),
				ROIEstimate:        "200% within 3 months from fewer re-deliveries and improved driver efficiency.",
			},
		}

	case strings.Contains(cause, "Customer not available") || strings.Contains(cause, "Customer Communication"):
		return []Recommendation{
			{
				Title:    "Optimize Customer Communication & Flexi-Delivery Options",
				Priority: PriorityHigh,
				Category: "process_improvement",
				Description: "Implement a robust pre-delivery communication system with flexible delivery windows and " +
					"real-time notifications to significantly reduce instances of customer unavailability.",
				SpecificActions: []string{
					"Introduce dynamic delivery time slots based on driver routes and customer preferences.",
					"Implement automated SMS/App notifications: 'Driver en route', 'ETA updates', 'Delivery Attempted'.",
					"Provide in-app or web-based options for customers to reschedule or leave delivery instructions.",
					"Offer 'leave at door' or 'pickup point' options with secure authentication.",
					"Train customer service to proactively reach out to customers for confirmation on high-value/sensitive deliveries.",
				},
				EstimatedImpact:    "Reduce customer unavailability failures by 40-60% and boost customer satisfaction scores.",
				Timeline:           "3-5 weeks",
				InvestmentRequired: s.investmentRange(12000, 20000),
				ROIEstimate:        "280% within 5 months through fewer failed deliveries and improved operational flow.",
			},
			{
				Title:    "Empower Drivers with Customer Contact Tools",
				Priority: PriorityMedium,
				Category: "technology_enhancement",
				Description: "Equip drivers with direct and discreet customer contact tools (e.g., in-app call/message " +
					"masking) to confirm availability or resolve minor issues quickly at the delivery point.",
				SpecificActions: []string{
					"Integrate masked calling/messaging features within the driver app to protect privacy.",
					"Provide quick access to customer preferences or last-minute delivery instructions.",
					"Enable drivers to record customer unavailability reasons in detail for analytical purposes.",
					"Streamline the process for drivers to initiate re-delivery requests or return-to-warehouse actions.",
					"Ensure drivers have clear escalation paths for persistent customer contact issues.",
				},
				EstimatedImpact:    "Improve first-attempt delivery success by 15-25% for customer unavailability scenarios.",
				Timeline:           "2-4 weeks",
				InvestmentRequired: s.investmentRange(4000, 7000),
				ROIEstimate:        "180% within 3 months by increasing delivery efficiency.",
			},
		}

	case strings.Contains(cause, "Weather delay") || strings.Contains(cause, "Weather"):
		return []Recommendation{
			{
				Title:    "Implement Weather-Aware Dynamic Route Optimization",
				Priority: PriorityHigh,
				Category: "technology_upgrade",
				Description: "Integrate real-time weather data with route optimization algorithms to proactively adjust " +
					"delivery routes and schedules during adverse weather conditions, minimizing delays.",
				SpecificActions: []string{
					"Integrate with a reliable weather API (e.g., OpenWeatherMap, AccuWeather).",
					"Develop or integrate dynamic routing software that considers weather-induced traffic and road closures.",
					"Automate dispatch adjustments and driver alerts for impending severe weather.",
					"Implement predictive analytics for weather impact on delivery times and suggest alternative routes.",
					"Provide public weather advisories to customers for potential delays.",
				},
				EstimatedImpact:    "Reduce weather-related delays by 40-60% and improve on-time delivery performance.",
				Timeline:           "4-6 weeks",
				InvestmentRequired: s.investmentRange(8000, 15000),
				ROIEstimate:        "180% within 6 months by reducing damage claims and enhancing brand reputation.",
			},
			{
				Title:    "Enhance Driver Safety Training for Adverse Weather",
				Priority: PriorityMedium,
				Category: "training",
				Description: "Provide specialized training to drivers on safe driving practices during various adverse " +
					"weather conditions (e.g., heavy rain, fog, snow) and protocols for reporting unsafe routes.",
				SpecificActions: []string{
					"Develop a comprehensive safety training module for driving in adverse weather conditions.",
					"Conduct practical workshops and simulations for handling challenging road conditions.",
					"Establish clear protocols for drivers to report unsafe routes or conditions to dispatch.",
					"Provide drivers with appropriate safety gear and vehicle maintenance checks for all seasons.",
					"Implement a reward system for drivers who consistently demonstrate safe driving in difficult conditions.",
				},
				EstimatedImpact:    "Improve driver safety by 20-30% and reduce vehicle damage/accidents during adverse weather.",
				Timeline:           "2-3 weeks",
				InvestmentRequired: s.investmentRange(3000, 5000),
				ROIEstimate:        "150% within 3 months through reduced insurance claims and improved driver retention.",
			},
		}

	case strings.Contains(cause, "Traffic congestion"):
		return []Recommendation{
			{
				Title:    "Implement AI-Powered Traffic Prediction & Routing",
				Priority: PriorityHigh,
				Category: "technology_upgrade",
				Description: "Utilize AI to predict traffic congestion based on historical patterns and real-time data, " +
					"enabling dynamic re-routing and optimized delivery schedules to bypass heavy traffic zones.",
				SpecificActions: []string{
					"Integrate with advanced traffic data providers (e.g., HERE Technologies, Google Traffic API).",
					"Develop machine learning models to forecast traffic patterns for different times of day and days of the week.",
					"Implement dynamic re-routing capabilities within the dispatch and driver applications.",
					"Optimize route planning based on predicted fastest routes, not just shortest distances.",
					"Provide drivers with real-time traffic updates and alternative route suggestions.",
				},
				EstimatedImpact:    "Reduce traffic-related delays by 30-50% and improve fleet efficiency.",
				Timeline:           "5-7 weeks",
				InvestmentRequired: s.investmentRange(18000, 30000),
				ROIEstimate:        "270% within 7 months through fuel savings and increased delivery capacity.",
			},
			{
				Title:    "Optimize Delivery Time Windows for Peak Hours",
				Priority: PriorityMedium,
				Category: "process_improvement",
				Description: "Adjust delivery time windows to avoid known peak traffic hours in congested areas, offering " +
					"customers more flexible options during off-peak times.",
				SpecificActions: []string{
					"Analyze historical traffic data to identify consistently congested time slots and geographical areas.",
					"Implement a dynamic pricing or incentive model for deliveries during off-peak hours.",
					"Communicate revised delivery windows clearly to customers during order placement and confirmation.",
					"Optimize routing algorithms to prioritize deliveries in less congested areas during peak traffic.",
					"Explore micro-hubs or locker systems in highly congested urban centers for last-mile delivery efficiency.",
				},
				EstimatedImpact:    "Reduce peak-hour delivery delays by 20-30% and enhance driver productivity.",
				Timeline:           "3-4 weeks",
				InvestmentRequired: s.investmentRange(6000, 10000),
				ROIEstimate:        "150% within 4 months by reducing idle time and optimizing resource use.",
			},
		}

	case strings.Contains(cause, "Process inefficiency") || strings.Contains(cause, "Systemic Operational Inefficiencies"):
		return []Recommendation{
			{
				Title:    "Conduct Comprehensive Operational Audit",
				Priority: PriorityHigh,
				Category: "process_improvement",
				Description: "Initiate a thorough audit of end-to-end delivery processes, from order placement to final " +
					"delivery, to identify bottlenecks, redundant steps, and areas for automation and optimization.",
				SpecificActions: []string{
					"Map out current state process flows for all key operational areas (e.g., warehouse, dispatch, delivery).",
					"Identify and quantify the impact of bottlenecks and inefficiencies using process mining tools.",
					"Benchmark current performance against industry best practices and internal targets.",
					"Engage cross-functional teams (e.g., operations, technology, customer service) in the audit process.",
					"Develop a prioritized list of process improvement initiatives with clear owners and timelines.",
				},
				EstimatedImpact:    "Improve overall operational efficiency by 20-35% and reduce processing errors.",
				Timeline:           "4-8 weeks",
				InvestmentRequired: s.investmentRange(10000, 18000),
				ROIEstimate:        "200% within 8 months by reducing communication breakdowns and improving response times.",
			},
			{
				Title:    "Implement Automated Workflow & Communication Tools",
				Priority: PriorityMedium,
				Category: "technology_enhancement",
				Description: "Deploy automation tools and integrated communication platforms to streamline tasks, reduce " +
					"manual errors, and improve real-time information flow between dispatch, drivers, and customer service.",
				SpecificActions: []string{
					"Implement a modern Transport Management System (TMS) or upgrade existing one with automation features.",
					"Integrate dispatch software with driver applications for seamless task assignment and updates.",
					"Automate routine customer notifications (e.g., order confirmed, dispatched, delivered).",
					"Utilize AI-powered chatbots for initial customer queries, freeing up human agents for complex issues.",
					"Establish a centralized communication hub for internal teams to share real-time operational updates.",
				},
				EstimatedImpact:    "Enhance communication efficiency by 30-50% and reduce manual intervention by 20-30%.",
				Timeline:           "3-6 weeks",
				InvestmentRequired: s.investmentRange(7000, 12000),
				ROIEstimate:        "180% within 6 months by improving decision-making speed and reducing operational overheads.",
			},
		}
	}
	return nil
}

// generalRecommendations apply to every analysis regardless of cause.
func (s *Synthesizer) generalRecommendations() []Recommendation {
	return []Recommendation{
		{
			Title:       "Implement Predictive Analytics Dashboard",
			Priority:    PriorityMedium,
			Category:    "analytics",
			Description: "Deploy AI-powered analytics to predict and prevent delivery failures",
			SpecificActions: []string{
				"Implement machine learning failure prediction models",
				"Create real-time risk assessment dashboard",
				"Develop early warning systems",
				"Establish predictive maintenance protocols",
			},
			EstimatedImpact:    "Reduce overall failure rate by 25-35%",
			Timeline:           "8-10 weeks",
			InvestmentRequired: "$25,000 - $40,000",
			ROIEstimate:        "200% within 12 months",
		},
		{
			Title:       "Establish Continuous Improvement Program",
			Priority:    PriorityLow,
			Category:    "process_improvement",
			Description: "Create systematic approach to ongoing operational optimization",
			SpecificActions: []string{
				"Implement regular performance reviews",
				"Establish feedback collection mechanisms",
				"Create cross-functional improvement teams",
				"Develop best practice sharing platform",
			},
			EstimatedImpact:    "Sustain 10-15% annual improvement in delivery success rate",
			Timeline:           "Ongoing",
			InvestmentRequired: "$8,000 - $12,000 annually",
			ROIEstimate:        "150% annually",
		},
	}
}

func (s *Synthesizer) investmentRange(low, high float64) string {
	return fmt.Sprintf("INR %.2f - INR %.2f", round2(low*s.inrRate), round2(high*s.inrRate))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func dedupeByTitle(in []Recommendation) []Recommendation {
	seen := make(map[string]struct{}, len(in))
	out := make([]Recommendation, 0, len(in))
	for _, rec := range in {
		if _, ok := seen[rec.Title]; ok {
			continue
		}
		seen[rec.Title] = struct{}{}
		out = append(out, rec)
	}
	return out
}

func hasTitle(recs []Recommendation, title string) bool {
	for _, rec := range recs {
		if rec.Title == title {
			return true
		}
	}
	return false
}
