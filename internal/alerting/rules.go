package alerting

import (
	"fmt"

	"github.com/shopspring/decimal"

	"pricewatch/internal/stats"
)

// RuleKind is the closed set of alert rule kinds.
type RuleKind string

const (
	KindTargetReached RuleKind = "target_reached"
	KindPriceDrop     RuleKind = "price_drop"
	KindBelowAverage  RuleKind = "below_average"
	KindStdDev        RuleKind = "std_dev"
)

// Rule is one declarative alert rule. Window and K only apply to the
// window-scoped kinds; ThresholdPct only to price_drop.
type Rule struct {
	Kind         RuleKind
	Window       stats.Window
	K            int
	ThresholdPct decimal.Decimal
}

// Key returns the stable identifier persisted with the alert state.
func (r Rule) Key() string {
	switch r.Kind {
	case KindBelowAverage:
		return fmt.Sprintf("%s:%s", r.Kind, r.Window)
	case KindStdDev:
		return fmt.Sprintf("%s:%s:k%d", r.Kind, r.Window, r.K)
	default:
		return string(r.Kind)
	}
}

// Describe returns a human-readable label for notifications and listings.
func (r Rule) Describe() string {
	switch r.Kind {
	case KindTargetReached:
		return "target price reached"
	case KindPriceDrop:
		return fmt.Sprintf("price dropped >= %s%% vs previous", r.ThresholdPct.StringFixed(1))
	case KindBelowAverage:
		return fmt.Sprintf("price below %s average", r.Window)
	case KindStdDev:
		return fmt.Sprintf("price below %s mean - %d stddev", r.Window, r.K)
	default:
		return string(r.Kind)
	}
}

// Rules generates the rule set evaluated for every product, in the fixed
// priority order downstream reporting relies on: target_reached, price_drop,
// below_average, then std_dev ascending by (window, k). The std_dev k=1 and
// k=2 variants are distinct rules; a k=2 hit never suppresses k=1.
func Rules(dropThresholdPct decimal.Decimal) []Rule {
	rules := []Rule{
		{Kind: KindTargetReached, Window: stats.WindowNone},
		{Kind: KindPriceDrop, Window: stats.WindowNone, ThresholdPct: dropThresholdPct},
		{Kind: KindBelowAverage, Window: stats.Window7d},
	}
	for _, w := range stats.Windows {
		for k := 1; k <= 2; k++ {
			rules = append(rules, Rule{Kind: KindStdDev, Window: w, K: k})
		}
	}
	return rules
}
