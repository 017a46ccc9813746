package model

import "strings"

type PricingScope string

const (
	ScopeGlobal   PricingScope = "global"
	ScopeService  PricingScope = "service"
	ScopeCountry  PricingScope = "country"
	ScopeOperator PricingScope = "operator"
	ScopeCombo    PricingScope = "combo"
)

// scopeRank orders scopes from most to least specific.
var scopeRank = map[PricingScope]int{
	ScopeCombo:    0,
	ScopeOperator: 1,
	ScopeCountry:  2,
	ScopeService:  3,
	ScopeGlobal:   4,
}

// PricingRule is a markup rule. Nil fields fall back to global defaults.
type PricingRule struct {
	Scope         PricingScope `json:"scope"`
	ServiceID     string       `json:"service_id,omitempty"`
	CountryID     string       `json:"country_id,omitempty"`
	Operator      string       `json:"operator,omitempty"`
	MarginPercent *float64     `json:"margin_percent,omitempty"`
	RoundTo       *int64       `json:"round_to,omitempty"`
	MinMargin     *int64       `json:"min_margin,omitempty"`
	Active        bool         `json:"active"`
}

// Key is a stable identifier of the rule's target.
func (r PricingRule) Key() string {
	return strings.Join([]string{string(r.Scope), r.ServiceID, r.CountryID, r.Operator}, "|")
}

// Rank returns the specificity of the rule, lower is more specific.
func (r PricingRule) Rank() int {
	if n, ok := scopeRank[r.Scope]; ok {
		return n
	}
	return len(scopeRank)
}

// Matches reports whether the rule applies to the given combination.
func (r PricingRule) Matches(service, country, operator string) bool {
	if !r.Active {
		return false
	}
	switch r.Scope {
	case ScopeGlobal:
		return true
	case ScopeService:
		return r.ServiceID == service
	case ScopeCountry:
		return r.CountryID == country
	case ScopeOperator:
		return r.Operator == operator && (r.CountryID == "" || r.CountryID == country)
	case ScopeCombo:
		return r.ServiceID == service && r.CountryID == country &&
			(r.Operator == "" || r.Operator == operator)
	}
	return false
}

func ValidScope(s PricingScope) bool {
	_, ok := scopeRank[s]
	return ok
}
