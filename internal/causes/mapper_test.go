package causes

import (
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/oppachoriya-tal/dfras/internal/dataset"
	"github.com/oppachoriya-tal/dfras/internal/patterns"
)

const testRate = 83.0

func testMapper() *Mapper {
	return New(testRate, zap.NewNop())
}

func TestMap_AddressNotFound(t *testing.T) {
	ws := dataset.Empty()
	ws.Orders = dataset.Table{
		Name:    dataset.TableOrders,
		Columns: []string{"order_id", "status", "failure_reason", "delivery_address_pincode", "delivery_address_line2"},
		Rows: []dataset.Row{
			{"order_id": "1", "status": "Failed", "failure_reason": "Address not found", "delivery_address_pincode": "", "delivery_address_line2": ""},
			{"order_id": "2", "status": "Failed", "failure_reason": "Address not found", "delivery_address_pincode": "400001", "delivery_address_line2": "Flat 2"},
			{"order_id": "3", "status": "Delivered", "failure_reason": "", "delivery_address_pincode": "400002", "delivery_address_line2": ""},
			{"order_id": "4", "status": "Delivered", "failure_reason": "", "delivery_address_pincode": "400003", "delivery_address_line2": "Suite 9"},
		},
	}
	mined := []patterns.Pattern{{
		Type:        patterns.TypeFailure,
		Description: "'Address not found' appears in 20 failed deliveries",
		Frequency:   20,
		Percentage:  20.0,
		Severity:    patterns.SeverityHigh,
	}}

	causes := testMapper().Map(ws, mined)
	if len(causes) != 1 {
		t.Fatalf("Expected 1 root cause, got %d", len(causes))
	}

	rc := causes[0]
	if rc.Cause != "Inaccurate Address Data & Lack of Geo-Validation" {
		t.Errorf("Unexpected cause %q", rc.Cause)
	}
	if rc.Confidence != 0.85 || rc.Impact != ImpactHigh {
		t.Errorf("Unexpected confidence/impact: %f/%s", rc.Confidence, rc.Impact)
	}
	if !strings.Contains(rc.Evidence, "20.0%") {
		t.Errorf("Expected pattern percentage in evidence, got %q", rc.Evidence)
	}
	if rc.BusinessImpact.CostPerIncident != 25.0*testRate {
		t.Errorf("Unexpected cost per incident %f", rc.BusinessImpact.CostPerIncident)
	}

	// One missing pincode out of four orders.
	found := false
	for _, f := range rc.ContributingFactors {
		if strings.Contains(f, "25.0%") && strings.Contains(f, "pincodes") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected dynamic pincode factor, got %v", rc.ContributingFactors)
	}
}

func TestMap_CustomerNotAvailable(t *testing.T) {
	ws := dataset.Empty()
	ws.Orders = dataset.Table{
		Name:    dataset.TableOrders,
		Columns: []string{"order_id", "failure_reason", "order_date"},
		Rows: []dataset.Row{
			{"order_id": "1", "failure_reason": "Customer not available", "order_date": "2025-08-01 18:15:00"},
			{"order_id": "2", "failure_reason": "Customer not available", "order_date": "2025-08-02 18:40:00"},
			{"order_id": "3", "failure_reason": "Customer not available", "order_date": "2025-08-03 09:05:00"},
		},
	}
	ws.Feedback = dataset.Table{
		Name:    dataset.TableFeedback,
		Columns: []string{"comments"},
		Rows: []dataset.Row{
			{"comments": "Could not reach the driver by phone"},
			{"comments": "Great service"},
		},
	}
	mined := []patterns.Pattern{{
		Type:        patterns.TypeFailure,
		Description: "'Customer not available' appears in 3 failed deliveries",
		Frequency:   3,
		Percentage:  30.0,
	}}

	causes := testMapper().Map(ws, mined)
	if len(causes) != 1 {
		t.Fatalf("Expected 1 root cause, got %d", len(causes))
	}

	rc := causes[0]
	if rc.Cause != "Ineffective Customer Communication & Delivery Window Management" {
		t.Errorf("Unexpected cause %q", rc.Cause)
	}

	var peakFactor, feedbackFactor bool
	for _, f := range rc.ContributingFactors {
		if strings.Contains(f, "occur around 18:00") && strings.Contains(f, "66.7%") {
			peakFactor = true
		}
		if strings.Contains(f, "1 instances related to contact issues") {
			feedbackFactor = true
		}
	}
	if !peakFactor {
		t.Errorf("Expected peak-hour factor, got %v", rc.ContributingFactors)
	}
	if !feedbackFactor {
		t.Errorf("Expected feedback factor, got %v", rc.ContributingFactors)
	}
}

func TestMap_UnknownReasonFallsBackToSystemic(t *testing.T) {
	mined := []patterns.Pattern{{
		Type:        patterns.TypeFailure,
		Description: "'Vehicle breakdown' appears in 4 failed deliveries",
		Percentage:  4.0,
	}}

	causes := testMapper().Map(dataset.Empty(), mined)
	if len(causes) != 1 {
		t.Fatalf("Expected 1 root cause, got %d", len(causes))
	}
	if causes[0].Cause != "Systemic Operational Issue: Vehicle breakdown" {
		t.Errorf("Unexpected cause %q", causes[0].Cause)
	}
	if causes[0].Confidence != 0.70 {
		t.Errorf("Unexpected confidence %f", causes[0].Confidence)
	}
}

func TestMap_WeatherCause(t *testing.T) {
	ws := dataset.Empty()
	ws.ExternalFactors = dataset.Table{
		Name:    dataset.TableExternalFactors,
		Columns: []string{"weather_condition", "recorded_at"},
		Rows: []dataset.Row{
			{"weather_condition": "Rain", "recorded_at": "2025-08-01"},
		},
	}
	ws.Orders = dataset.Table{
		Name:    dataset.TableOrders,
		Columns: []string{"order_id", "status", "failure_reason", "order_date"},
		Rows: []dataset.Row{
			{"order_id": "1", "status": "Failed", "failure_reason": "Weather delay", "order_date": "2025-08-01"},
			{"order_id": "2", "status": "Delivered", "failure_reason": "", "order_date": "2025-08-01"},
		},
	}
	mined := []patterns.Pattern{{
		Type:        patterns.TypeWeather,
		Description: "'Rain' weather conditions in 8 incidents",
		Frequency:   8,
		Percentage:  16.0,
	}}

	causes := testMapper().Map(ws, mined)
	if len(causes) != 1 {
		t.Fatalf("Expected 1 root cause, got %d", len(causes))
	}

	rc := causes[0]
	if !strings.HasPrefix(rc.Cause, "Weather Impact:") {
		t.Errorf("Unexpected cause %q", rc.Cause)
	}
	if !strings.Contains(rc.Evidence, "16.0%") {
		t.Errorf("Expected percentage in evidence, got %q", rc.Evidence)
	}

	var correlation bool
	for _, f := range rc.ContributingFactors {
		if strings.Contains(f, "50.0% failure rate") && strings.Contains(f, "'Rain'") {
			correlation = true
		}
	}
	if !correlation {
		t.Errorf("Expected date-joined correlation factor, got %v", rc.ContributingFactors)
	}
}

func TestMap_GeographicCause(t *testing.T) {
	ws := dataset.Empty()
	ws.Orders = dataset.Table{
		Name:    dataset.TableOrders,
		Columns: []string{"order_id", "status", "failure_reason", "delivery_city", "delivery_state"},
		Rows: []dataset.Row{
			{"order_id": "1", "status": "Failed", "failure_reason": "Address not found", "delivery_city": "Mumbai", "delivery_state": "Maharashtra"},
			{"order_id": "2", "status": "Delivered", "failure_reason": "", "delivery_city": "Mumbai", "delivery_state": "Maharashtra"},
		},
	}
	mined := []patterns.Pattern{{
		Type:        patterns.TypeGeographic,
		Description: "High volume in Mumbai (55 orders)",
		Frequency:   55,
		Percentage:  91.7,
	}}

	causes := testMapper().Map(ws, mined)
	if len(causes) != 1 {
		t.Fatalf("Expected 1 root cause, got %d", len(causes))
	}

	rc := causes[0]
	if rc.Cause != "Geographic Hotspot: Operational Challenges in Mumbai" {
		t.Errorf("Unexpected cause %q", rc.Cause)
	}

	var localized, infrastructure bool
	for _, f := range rc.ContributingFactors {
		if strings.Contains(f, "'Address not found'") && strings.Contains(f, "100.0%") {
			localized = true
		}
		if strings.Contains(f, "warehouse infrastructure") {
			infrastructure = true
		}
	}
	if !localized {
		t.Errorf("Expected localized failure-reason factor, got %v", rc.ContributingFactors)
	}
	// No warehouse table rows means no infrastructure factor either way.
	if infrastructure {
		t.Errorf("Empty warehouse table must not produce an infrastructure factor, got %v", rc.ContributingFactors)
	}
}

func TestMap_GeographicCauseUnparseableLocation(t *testing.T) {
	mined := []patterns.Pattern{{
		Type:        patterns.TypeGeographic,
		Description: "Most deliveries to Mumbai (12 orders)",
		Frequency:   12,
		Percentage:  30.0,
	}}

	causes := testMapper().Map(dataset.Empty(), mined)
	if causes[0].Cause != "Geographic Hotspot: Operational Challenges in Unknown" {
		t.Errorf("Unexpected cause %q", causes[0].Cause)
	}
}

func TestMap_DedupeKeepsFirst(t *testing.T) {
	mined := []patterns.Pattern{
		{Type: patterns.TypeFailure, Description: "'Address not found' appears in 20 failed deliveries", Percentage: 20.0},
		{Type: patterns.TypeFailure, Description: "'Address not found' appears in 5 failed deliveries", Percentage: 5.0},
	}

	causes := testMapper().Map(dataset.Empty(), mined)
	if len(causes) != 1 {
		t.Fatalf("Expected deduplicated causes, got %d", len(causes))
	}
	if !strings.Contains(causes[0].Evidence, "20.0%") {
		t.Errorf("Dedupe must keep the first occurrence, got %q", causes[0].Evidence)
	}
}

func TestMap_NoPatternsYieldsFallback(t *testing.T) {
	causes := testMapper().Map(dataset.Empty(), nil)
	if len(causes) != 1 {
		t.Fatalf("Expected exactly one fallback cause, got %d", len(causes))
	}
	if causes[0].Cause != "Systemic Operational Inefficiencies" {
		t.Errorf("Unexpected fallback cause %q", causes[0].Cause)
	}
	if causes[0].BusinessImpact.CostPerIncident != 22.0*testRate {
		t.Errorf("Unexpected fallback cost %f", causes[0].BusinessImpact.CostPerIncident)
	}
}

func TestMap_UnmappedPatternTypesProduceNoCause(t *testing.T) {
	mined := []patterns.Pattern{
		{Type: patterns.TypeStatus, Description: "'Failed' status in 12 orders"},
		{Type: patterns.TypeDelay, Description: "'Traffic jam' causes 7 delays"},
	}

	causes := testMapper().Map(dataset.Empty(), mined)
	if len(causes) != 1 || causes[0].Cause != "Systemic Operational Inefficiencies" {
		t.Errorf("Status and delay patterns must not map directly, got %v", causes)
	}
}
