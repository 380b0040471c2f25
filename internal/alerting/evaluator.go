package alerting

import (
	"github.com/shopspring/decimal"

	"pricewatch/internal/stats"
)

var dec100 = decimal.NewFromInt(100)

// Input carries everything a rule evaluation needs: the current observation,
// the optional target and previous prices, and the windowed summaries.
type Input struct {
	Current   decimal.Decimal
	Previous  *decimal.Decimal
	Target    *decimal.Decimal
	Summaries map[stats.Window]stats.Summary
	Rules     []Rule
}

// Evidence records the numbers a candidate was decided on, for rendering.
type Evidence struct {
	Current  decimal.Decimal
	Target   *decimal.Decimal
	Previous *decimal.Decimal
	DropPct  *decimal.Decimal
	Mean     *decimal.Decimal
	StdDev   *decimal.Decimal
	Bound    *decimal.Decimal
}

// Candidate is the outcome of evaluating one rule. Insufficient marks rules
// whose inputs are undefined (missing target, no previous observation, too
// few observations in the window); it is distinct from Met being false and
// causes no state transition in either direction.
type Candidate struct {
	Rule         Rule
	Met          bool
	Insufficient bool
	Evidence     Evidence
}

// Evaluate applies the rules against the input and returns one candidate per
// rule, preserving rule order. Evaluate is a pure function of its input.
func Evaluate(in Input) []Candidate {
	candidates := make([]Candidate, 0, len(in.Rules))
	for _, rule := range in.Rules {
		candidates = append(candidates, evaluateRule(rule, in))
	}
	return candidates
}

func evaluateRule(rule Rule, in Input) Candidate {
	cand := Candidate{Rule: rule, Evidence: Evidence{Current: in.Current}}

	switch rule.Kind {
	case KindTargetReached:
		if in.Target == nil {
			cand.Insufficient = true
			return cand
		}
		cand.Evidence.Target = in.Target
		cand.Met = in.Current.LessThanOrEqual(*in.Target)

	case KindPriceDrop:
		if in.Previous == nil || !in.Previous.IsPositive() {
			cand.Insufficient = true
			return cand
		}
		drop := in.Previous.Sub(in.Current).Div(*in.Previous).Mul(dec100)
		cand.Evidence.Previous = in.Previous
		cand.Evidence.DropPct = &drop
		cand.Met = drop.GreaterThanOrEqual(rule.ThresholdPct)

	case KindBelowAverage:
		summary, ok := in.Summaries[rule.Window]
		if !ok || !summary.HasMean() {
			cand.Insufficient = true
			return cand
		}
		mean := summary.Mean
		cand.Evidence.Mean = &mean
		cand.Met = in.Current.LessThan(mean)

	case KindStdDev:
		summary, ok := in.Summaries[rule.Window]
		if !ok || !summary.HasStdDev() {
			cand.Insufficient = true
			return cand
		}
		mean := summary.Mean
		sd := summary.StdDev
		bound := mean.Sub(sd.Mul(decimal.NewFromInt(int64(rule.K))))
		cand.Evidence.Mean = &mean
		cand.Evidence.StdDev = &sd
		cand.Evidence.Bound = &bound
		cand.Met = in.Current.LessThan(bound)

	default:
		cand.Insufficient = true
	}

	return cand
}

// IsNewLow reports whether the current price undercuts the stored running
// low. This is a status display signal, not a persisted alert rule.
func IsNewLow(current decimal.Decimal, lowest *decimal.Decimal) bool {
	return lowest != nil && current.LessThan(*lowest)
}
