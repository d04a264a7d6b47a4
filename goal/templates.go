package goal

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// GOAL TEMPLATES - Named presets that pre-fill the goal form
// =============================================================================

type TemplateCategory string

const (
	CategoryGrowth       TemplateCategory = "growth"
	CategoryConservative TemplateCategory = "conservative"
	CategoryAggressive   TemplateCategory = "aggressive"
	CategoryMaintenance  TemplateCategory = "maintenance"
)

// Template multiplies the current statistic to produce a target.
type Template struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Multiplier  decimal.Decimal  `json:"multiplier"`
	Category    TemplateCategory `json:"category"`
	// Empty means the template applies to every period.
	Period PeriodKind `json:"period,omitempty"`
}

// Apply returns current * Multiplier.
func (t Template) Apply(current decimal.Decimal) decimal.Decimal {
	return current.Mul(t.Multiplier)
}

func tmpl(id, name, desc, mult string, cat TemplateCategory, period PeriodKind) Template {
	return Template{
		ID:          id,
		Name:        name,
		Description: desc,
		Multiplier:  decimal.RequireFromString(mult),
		Category:    cat,
		Period:      period,
	}
}

var templateCatalog = []Template{
	tmpl("conservative-growth", "Conservative Growth", "Steady 10% improvement over current performance", "1.10", CategoryConservative, ""),
	tmpl("moderate-growth", "Moderate Growth", "Balanced 25% growth target", "1.25", CategoryGrowth, ""),
	tmpl("aggressive-growth", "Aggressive Growth", "Stretch goal of 50% growth", "1.50", CategoryAggressive, ""),
	tmpl("maintain", "Maintain Performance", "Hold current levels", "1.00", CategoryMaintenance, ""),
	tmpl("daily-push", "Daily Push", "Beat today's pace by 5%", "1.05", CategoryGrowth, PeriodDaily),
	tmpl("weekly-sprint", "Weekly Sprint", "15% lift over the current week", "1.15", CategoryGrowth, PeriodWeekly),
	tmpl("monthly-stretch", "Monthly Stretch", "35% lift for the month", "1.35", CategoryAggressive, PeriodMonthly),
	tmpl("quarterly-expansion", "Quarterly Expansion", "20% growth across the quarter", "1.20", CategoryGrowth, PeriodQuarterly),
	tmpl("quarterly-steady", "Quarterly Steady", "Keep the quarter within 5% of current", "1.05", CategoryConservative, PeriodQuarterly),
}

// Templates returns a copy of the template catalog.
func Templates() []Template {
	return append([]Template(nil), templateCatalog...)
}

// FindTemplate looks a template up by ID.
func FindTemplate(id string) (Template, bool) {
	for _, t := range templateCatalog {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}

// TemplatesByCategory groups the catalog for display.
func TemplatesByCategory() map[TemplateCategory][]Template {
	out := make(map[TemplateCategory][]Template)
	for _, t := range templateCatalog {
		out[t.Category] = append(out[t.Category], t)
	}
	return out
}
