// Package classifier provides query intent classification and entity
// extraction for delivery-failure analysis queries.
package classifier

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrEmptyQuery is returned for empty or whitespace-only queries.
var ErrEmptyQuery = errors.New("query must not be empty")

// Analysis categories. Classification walks them in the order they appear in
// New, so ties on confidence resolve to the earliest category and the result
// is deterministic.
const (
	FailureAnalysis     = "failure_analysis"
	PerformanceAnalysis = "performance_analysis"
	TrendAnalysis       = "trend_analysis"
	PredictiveAnalysis  = "predictive_analysis"
	GeographicAnalysis  = "geographic_analysis"
	ClientAnalysis      = "client_analysis"
	WarehouseAnalysis   = "warehouse_analysis"
	TemporalAnalysis    = "temporal_analysis"
)

// Entities holds the strings extracted from one query, grouped by kind.
type Entities struct {
	Locations      []string `json:"locations"`
	TimePeriods    []string `json:"time_periods"`
	Metrics        []string `json:"metrics"`
	Statuses       []string `json:"statuses"`
	Clients        []string `json:"clients"`
	Warehouses     []string `json:"warehouses"`
	FailureReasons []string `json:"failure_reasons"`
}

// Result is the outcome of classifying one query.
type Result struct {
	AnalysisType     string             `json:"analysis_type"`
	Confidence       float64            `json:"confidence_score"`
	Entities         Entities           `json:"entities"`
	InterpretedQuery string             `json:"interpreted_query"`
	ConfidenceScores map[string]float64 `json:"confidence_scores"`
}

// Lexicon is the dataset-driven gazetteer used for entity extraction. Values
// come from the loaded record tables, so extraction adapts to whatever data
// the process was started with.
type Lexicon struct {
	Cities         []string
	States         []string
	Clients        []string
	Warehouses     []string
	FailureReasons []string
	Statuses       []string
}

type category struct {
	name     string
	patterns []*regexp.Regexp
}

// IntentClassifier classifies queries into analysis categories and extracts
// query entities via fixed patterns plus the dataset lexicon.
type IntentClassifier struct {
	categories        []category
	locationPatterns  []*regexp.Regexp
	timePatterns      []*regexp.Regexp
	clientPatterns    []*regexp.Regexp
	warehousePatterns []*regexp.Regexp
	lexicon           Lexicon
}

// stateAliases maps state abbreviations to full names and back so a query
// naming either form matches a dataset that stores the other.
var stateAliases = map[string]string{
	"ca": "california", "california": "ca",
	"ny": "new york", "new york": "ny",
	"tx": "texas", "texas": "tx",
	"fl": "florida", "florida": "fl",
	"il": "illinois", "illinois": "il",
	"tn": "tamil nadu", "tamil nadu": "tn",
	"gj": "gujarat", "gujarat": "gj",
	"mh": "maharashtra", "maharashtra": "mh",
	"ka": "karnataka", "karnataka": "ka",
}

// New creates an IntentClassifier with the fixed category patterns and the
// given dataset lexicon.
func New(lexicon Lexicon) *IntentClassifier {
	return &IntentClassifier{
		categories: []category{
			{FailureAnalysis, compileAll(
				`why.*fail`, `failure.*reason`, `what.*causing.*fail`,
				`root.*cause`, `investigate.*failure`, `analyze.*problem`,
				`delivery.*fail`, `order.*fail`, `shipment.*fail`,
			)},
			{PerformanceAnalysis, compileAll(
				`performance`, `slow`, `delay`, `bottleneck`, `optimize`,
				`improve.*speed`, `reduce.*time`, `efficiency`, `late.*delivery`,
			)},
			{TrendAnalysis, compileAll(
				`trend`, `pattern`, `increase`, `decrease`, `over.*time`,
				`seasonal`, `monthly`, `weekly`, `comparison`, `compare`,
			)},
			{PredictiveAnalysis, compileAll(
				`predict`, `forecast`, `future`, `likely`, `risk`,
				`probability`, `chance`, `what.*happen`, `expect`,
			)},
			{GeographicAnalysis, compileAll(
				`location`, `region`, `city`, `state`, `geographic`,
				`where.*problem`, `which.*area`, `california`, `texas`, `new york`,
			)},
			{ClientAnalysis, compileAll(
				`client`, `customer`, `client.*x`, `customer.*x`,
				`enterprise`, `retail`, `specific.*client`,
			)},
			{WarehouseAnalysis, compileAll(
				`warehouse`, `warehouse.*b`, `distribution`, `hub`,
				`facility`, `storage`,
			)},
			{TemporalAnalysis, compileAll(
				`yesterday`, `last week`, `last month`, `august`, `festival`,
				`holiday`, `weekend`, `time.*period`,
			)},
		},
		locationPatterns: compileAll(
			`\b(?:new delhi|delhi)\b`,
			`\b(?:chennai|madras)\b`,
			`\bsurat\b`,
			`\bcoimbatore\b`,
			`\bahmedabad\b`,
			`\bnagpur\b`,
			`\b(?:mysuru|mysore)\b`,
			`\b(?:bengaluru|bangalore)\b`,
			`\bpune\b`,
			`\b(?:mumbai|bombay)\b`,
			`\b(?:tamil nadu)\b`,
			`\bgujarat\b`,
			`\bmaharashtra\b`,
			`\bkarnataka\b`,
		),
		timePatterns: compileAll(
			`\b(?:yesterday|today|tomorrow)\b`,
			`\b(?:last week|this week|next week)\b`,
			`\b(?:last month|this month|next month)\b`,
			`\b(?:january|february|march|april|may|june|july|august|september|october|november|december)\b`,
			`\b(?:festival|holiday|weekend)\b`,
			`\b\d{4}\b`,
		),
		clientPatterns: compileAll(
			`\bclient\s+[a-z]\b`,
			`\bcustomer\s+[a-z]\b`,
		),
		warehousePatterns: compileAll(
			`\bwarehouse\s+[a-z0-9]+\b`,
		),
		lexicon: lexicon,
	}
}

func compileAll(patterns ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = regexp.MustCompile(p)
	}
	return compiled
}

// Classify determines the analysis category, its confidence and the query
// entities. Confidence per category is the fraction of that category's
// patterns matching the lower-cased query; the highest score wins.
func (c *IntentClassifier) Classify(query string) (Result, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return Result{}, ErrEmptyQuery
	}
	lower := strings.ToLower(trimmed)

	scores := make(map[string]float64, len(c.categories))
	best := c.categories[0].name
	bestScore := -1.0
	for _, cat := range c.categories {
		matches := 0
		for _, p := range cat.patterns {
			if p.MatchString(lower) {
				matches++
			}
		}
		score := float64(matches) / float64(len(cat.patterns))
		scores[cat.name] = score
		if score > bestScore {
			best = cat.name
			bestScore = score
		}
	}

	entities := c.extractEntities(lower)

	return Result{
		AnalysisType:     best,
		Confidence:       bestScore,
		Entities:         entities,
		InterpretedQuery: interpret(best, entities),
		ConfidenceScores: scores,
	}, nil
}

// extractEntities runs the fixed entity patterns and the dataset lexicon
// against the lower-cased query. Duplicates within one kind are suppressed.
func (c *IntentClassifier) extractEntities(lower string) Entities {
	var e Entities

	for _, p := range c.locationPatterns {
		e.Locations = appendAll(e.Locations, p.FindAllString(lower, -1))
	}
	for _, p := range c.timePatterns {
		e.TimePeriods = appendAll(e.TimePeriods, p.FindAllString(lower, -1))
	}
	for _, p := range c.clientPatterns {
		e.Clients = appendAll(e.Clients, p.FindAllString(lower, -1))
	}
	for _, p := range c.warehousePatterns {
		e.Warehouses = appendAll(e.Warehouses, p.FindAllString(lower, -1))
	}

	// Dataset lexicon: any value that appears in the query is an entity of
	// the corresponding kind.
	for _, city := range c.lexicon.Cities {
		if containsFold(lower, city) {
			e.Locations = appendUnique(e.Locations, city)
		}
	}
	for _, state := range c.lexicon.States {
		if matchesState(lower, state) {
			e.Locations = appendUnique(e.Locations, state)
		}
	}
	for _, client := range c.lexicon.Clients {
		if containsFold(lower, client) {
			e.Clients = appendUnique(e.Clients, client)
		}
	}
	for _, wh := range c.lexicon.Warehouses {
		if containsFold(lower, wh) {
			e.Warehouses = appendUnique(e.Warehouses, wh)
		}
	}
	for _, reason := range c.lexicon.FailureReasons {
		if containsFold(lower, reason) {
			e.FailureReasons = appendUnique(e.FailureReasons, reason)
		}
	}
	for _, status := range c.lexicon.Statuses {
		if containsFold(lower, status) {
			e.Statuses = appendUnique(e.Statuses, status)
		}
	}

	return e
}

// matchesState reports whether the query names the state directly or through
// its abbreviation alias.
func matchesState(lower, state string) bool {
	stateLower := strings.ToLower(strings.TrimSpace(state))
	if stateLower == "" {
		return false
	}
	if containsWord(lower, stateLower) {
		return true
	}
	if alias, ok := stateAliases[stateLower]; ok && containsWord(lower, alias) {
		return true
	}
	return false
}

// containsWord matches needle on word boundaries; plain substring matching on
// two-letter state codes would trigger inside unrelated words.
func containsWord(haystack, needle string) bool {
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(needle) + `\b`)
	return re.MatchString(haystack)
}

func containsFold(lower, value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	return v != "" && strings.Contains(lower, v)
}

func appendAll(dst []string, values []string) []string {
	for _, v := range values {
		dst = appendUnique(dst, v)
	}
	return dst
}

func appendUnique(dst []string, value string) []string {
	for _, existing := range dst {
		if strings.EqualFold(existing, value) {
			return dst
		}
	}
	return append(dst, value)
}

// interpret builds the human-readable restatement of the query from the
// category and extracted entities.
func interpret(analysisType string, e Entities) string {
	var b strings.Builder
	kind := strings.ReplaceAll(strings.TrimSuffix(analysisType, "_analysis"), "_", " ")
	fmt.Fprintf(&b, "Performing %s analysis", kind)
	if len(e.Locations) > 0 {
		fmt.Fprintf(&b, " for locations: %s", strings.Join(e.Locations, ", "))
	}
	if len(e.TimePeriods) > 0 {
		fmt.Fprintf(&b, " in time period: %s", strings.Join(e.TimePeriods, ", "))
	}
	if len(e.Clients) > 0 {
		fmt.Fprintf(&b, " for clients: %s", strings.Join(e.Clients, ", "))
	}
	if len(e.Warehouses) > 0 {
		fmt.Fprintf(&b, " for warehouses: %s", strings.Join(e.Warehouses, ", "))
	}
	return b.String()
}
