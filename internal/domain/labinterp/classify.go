package labinterp

import "strings"

const (
	MsgImmediateReview = "Immediate clinical review required"
	MsgFollowUp        = "Recommend follow-up test & doctor consultation"
	MsgDeficiency      = "Possible deficiency — further evaluation suggested"
	MsgUrgent          = "URGENT — escalate to physician immediately"
)

const (
	criticalHighFactor = 1.5
	criticalLowFactor  = 0.5
)

type classifyInput struct {
	normalized string
	rangeExpr  string
}

type finding struct {
	severity Severity
	message  string
}

// rule is one entry of the classification table. The first rule that
// matches decides the outcome.
type rule struct {
	name  string
	match func(in classifyInput) (finding, bool)
}

// rules is evaluated in order. Append new rules at the end.
var rules = []rule{
	{"qualitative-positive", keywordEquals(finding{SeverityCritical, MsgImmediateReview}, "positive", "reactive")},
	{"qualitative-high", keywordContains(finding{SeverityHigh, MsgFollowUp}, "high", "elevated", "increased")},
	{"qualitative-low", keywordContains(finding{SeverityLow, MsgDeficiency}, "low", "decreased", "deficient")},
	{"qualitative-critical", keywordContains(finding{SeverityCritical, MsgUrgent}, "critical", "urgent", "severe")},
	{"numeric-range", numericFinding},
}

// RuleNames lists the classification rules in evaluation order.
func RuleNames() []string {
	names := make([]string, len(rules))
	for i, r := range rules {
		names[i] = r.name
	}
	return names
}

func keywordEquals(f finding, words ...string) func(classifyInput) (finding, bool) {
	return func(in classifyInput) (finding, bool) {
		for _, w := range words {
			if in.normalized == w {
				return f, true
			}
		}
		return finding{}, false
	}
}

func keywordContains(f finding, words ...string) func(classifyInput) (finding, bool) {
	return func(in classifyInput) (finding, bool) {
		for _, w := range words {
			if strings.Contains(in.normalized, w) {
				return f, true
			}
		}
		return finding{}, false
	}
}

// numericFinding compares against the parsed range. Open bounds use >= and
// <=, intervals use strict comparisons.
func numericFinding(in classifyInput) (finding, bool) {
	if isSeeReference(in.rangeExpr) {
		return finding{}, false
	}
	v, ok := ParseNumber(in.normalized)
	if !ok {
		return finding{}, false
	}

	r := ParseRange(in.rangeExpr)
	switch r.Kind {
	case RangeUpperBound:
		if v >= r.Max*criticalHighFactor {
			return finding{SeverityCritical, MsgUrgent}, true
		}
		if v >= r.Max {
			return finding{SeverityHigh, MsgFollowUp}, true
		}
	case RangeLowerBound:
		if v <= r.Min*criticalLowFactor {
			return finding{SeverityCritical, MsgUrgent}, true
		}
		if v <= r.Min {
			return finding{SeverityLow, MsgDeficiency}, true
		}
	case RangeInterval:
		switch {
		case v > r.Max*criticalHighFactor:
			return finding{SeverityCritical, MsgUrgent}, true
		case v > r.Max:
			return finding{SeverityHigh, MsgFollowUp}, true
		case v < r.Min*criticalLowFactor:
			return finding{SeverityCritical, MsgUrgent}, true
		case v < r.Min:
			return finding{SeverityLow, MsgDeficiency}, true
		}
	}
	return finding{}, false
}

// Classify grades one value against its reference-range expression. It
// returns false when the value is within limits or cannot be judged.
func Classify(label, value, rangeExpr string) (Recommendation, bool) {
	in := classifyInput{
		normalized: strings.ToLower(strings.TrimSpace(value)),
		rangeExpr:  rangeExpr,
	}
	for _, r := range rules {
		f, ok := r.match(in)
		if !ok {
			continue
		}
		return Recommendation{
			Severity:    f.severity,
			Status:      f.severity.Status(),
			Test:        label,
			Value:       value,
			NormalRange: rangeExpr,
			Message:     f.message,
		}, true
	}
	return Recommendation{}, false
}
