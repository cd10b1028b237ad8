package rfm

import (
	"fmt"
	"os"

	"customer-segments/internal/models"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Feature fields a rule condition can test
const (
	FieldRecencyDays    = "recency_days"
	FieldFrequency      = "frequency"
	FieldMonetary       = "monetary"
	FieldAvgOrderValue  = "avg_order_value"
	FieldAvgDaysBetween = "avg_days_between"
)

// Condition compares one feature field against a constant
type Condition struct {
	Field string  `yaml:"field" json:"field"`
	Op    string  `yaml:"op" json:"op"`
	Value float64 `yaml:"value" json:"value"`
}

// Rule assigns Label when every condition holds. A rule without conditions
// always matches and serves as the fallback.
type Rule struct {
	Label      string      `yaml:"label" json:"label"`
	Conditions []Condition `yaml:"when,omitempty" json:"when,omitempty"`
}

// RuleTable is evaluated top to bottom, first match wins. The last rule must
// be a fallback so no customer is left unlabelled.
type RuleTable struct {
	Rules []Rule `yaml:"rules" json:"rules"`
}

// IsFallback reports whether the rule matches unconditionally
func (r Rule) IsFallback() bool {
	return len(r.Conditions) == 0
}

// Matches reports whether every condition holds for f
func (r Rule) Matches(f models.CustomerFeatures) bool {
	for _, c := range r.Conditions {
		if !c.holds(f) {
			return false
		}
	}
	return true
}

func (c Condition) holds(f models.CustomerFeatures) bool {
	cmp := fieldValue(f, c.Field).Cmp(decimal.NewFromFloat(c.Value))
	switch c.Op {
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case "==":
		return cmp == 0
	case "!=":
		return cmp != 0
	}
	return false
}

func fieldValue(f models.CustomerFeatures, field string) decimal.Decimal {
	switch field {
	case FieldRecencyDays:
		return decimal.NewFromInt(int64(f.RecencyDays))
	case FieldFrequency:
		return decimal.NewFromInt(int64(f.Frequency))
	case FieldMonetary:
		return f.Monetary
	case FieldAvgOrderValue:
		return f.AvgOrderValue
	case FieldAvgDaysBetween:
		return decimal.NewFromFloat(f.AvgDaysBetweenPurchases)
	}
	return decimal.Zero
}

var validOps = map[string]bool{">": true, ">=": true, "<": true, "<=": true, "==": true, "!=": true}

var validFields = map[string]bool{
	FieldRecencyDays:    true,
	FieldFrequency:      true,
	FieldMonetary:       true,
	FieldAvgOrderValue:  true,
	FieldAvgDaysBetween: true,
}

// Validate checks the table is well formed and ends with a fallback rule
func (t RuleTable) Validate() error {
	if len(t.Rules) == 0 {
		return configErrorf("rule table is empty")
	}
	for i, r := range t.Rules {
		if r.Label == "" {
			return configErrorf("rule %d has no label", i)
		}
		for _, c := range r.Conditions {
			if !validFields[c.Field] {
				return configErrorf("rule %d (%s): unknown field %q", i, r.Label, c.Field)
			}
			if !validOps[c.Op] {
				return configErrorf("rule %d (%s): unknown operator %q", i, r.Label, c.Op)
			}
		}
	}
	if !t.Rules[len(t.Rules)-1].IsFallback() {
		return configErrorf("rule table has no fallback rule")
	}
	return nil
}

// Classify returns the label of the first matching rule
func (t RuleTable) Classify(f models.CustomerFeatures) (string, error) {
	for _, r := range t.Rules {
		if r.Matches(f) {
			return r.Label, nil
		}
	}
	return "", configErrorf("customer %s matched no rule", f.CustomerID)
}

// Labels returns the distinct labels in rule order
func (t RuleTable) Labels() []string {
	seen := make(map[string]bool)
	var labels []string
	for _, r := range t.Rules {
		if !seen[r.Label] {
			seen[r.Label] = true
			labels = append(labels, r.Label)
		}
	}
	return labels
}

// DefaultRuleTable maps RFM ranges onto the default label set
func DefaultRuleTable() RuleTable {
	return RuleTable{Rules: []Rule{
		{Label: models.SegmentVIPChampion, Conditions: []Condition{
			{Field: FieldRecencyDays, Op: "<=", Value: 30},
			{Field: FieldFrequency, Op: ">=", Value: 10},
			{Field: FieldMonetary, Op: ">=", Value: 5000},
		}},
		{Label: models.SegmentHighValueLoyalist, Conditions: []Condition{
			{Field: FieldRecencyDays, Op: "<=", Value: 90},
			{Field: FieldFrequency, Op: ">=", Value: 5},
			{Field: FieldMonetary, Op: ">=", Value: 2000},
		}},
		{Label: models.SegmentLoyalCustomer, Conditions: []Condition{
			{Field: FieldRecencyDays, Op: "<=", Value: 180},
			{Field: FieldFrequency, Op: ">=", Value: 2},
		}},
		{Label: models.SegmentAtRiskLost},
	}}
}

// ParseRuleTable decodes and validates a YAML rule table
func ParseRuleTable(data []byte) (RuleTable, error) {
	var t RuleTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return RuleTable{}, configErrorf("failed to parse rule table: %v", err)
	}
	if err := t.Validate(); err != nil {
		return RuleTable{}, err
	}
	return t, nil
}

// LoadRuleTable reads a YAML rule table from path
func LoadRuleTable(path string) (RuleTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuleTable{}, fmt.Errorf("failed to read rule table: %w", err)
	}
	return ParseRuleTable(data)
}
