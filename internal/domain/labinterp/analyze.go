package labinterp

import (
	"fmt"
)

const (
	overallTest    = "Overall Assessment"
	overallValue   = "All results within normal ranges"
	overallMessage = "All test results are within normal ranges. No immediate concerns identified."
)

// FieldErrorHook receives per-field failures that were swallowed during a
// pass. The field is skipped either way.
type FieldErrorHook func(fieldKey string, err error)

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithFieldErrorHook reports extraction and classification failures.
func WithFieldErrorHook(h FieldErrorHook) Option {
	return func(a *Analyzer) { a.onFieldError = h }
}

// Analyzer runs the extract, classify and aggregate pipeline over an
// injected catalog. It holds no mutable state and is safe for concurrent use.
type Analyzer struct {
	catalog      *Catalog
	onFieldError FieldErrorHook
}

func NewAnalyzer(catalog *Catalog, opts ...Option) *Analyzer {
	a := &Analyzer{catalog: catalog}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Catalog returns the catalog the analyzer was built with.
func (a *Analyzer) Catalog() *Catalog { return a.catalog }

// OverallNormal is the record emitted when a pass finds nothing.
func OverallNormal() Recommendation {
	return Recommendation{
		Severity: SeverityNormal,
		Status:   SeverityNormal.Status(),
		Test:     overallTest,
		Value:    overallValue,
		Message:  overallMessage,
	}
}

// Analyze classifies every present field in catalog order. Empty input gives
// an empty slice; a non-empty pass with no findings gives OverallNormal.
func (a *Analyzer) Analyze(results OrganizedResults) []Recommendation {
	recs := []Recommendation{}
	if len(results) == 0 {
		return recs
	}
	for _, cat := range results {
		for _, f := range cat.Fields {
			if rec, ok := a.classifyField(f); ok {
				recs = append(recs, rec)
			}
		}
	}
	if len(recs) == 0 {
		recs = append(recs, OverallNormal())
	}
	return recs
}

// Interpret extracts values from src using the analyzer's catalog and
// analyzes them.
func (a *Analyzer) Interpret(src ResultSource) []Recommendation {
	return a.Analyze(a.Organize(src))
}

// Organize is the package-level Organize bound to the analyzer's catalog and
// error hook.
func (a *Analyzer) Organize(src ResultSource) OrganizedResults {
	return organize(a.catalog, src, a.onFieldError)
}

func (a *Analyzer) classifyField(f ExtractedValue) (rec Recommendation, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			if a.onFieldError != nil {
				a.onFieldError(f.FieldKey, fmt.Errorf("classify panicked: %v", r))
			}
			rec, ok = Recommendation{}, false
		}
	}()
	return Classify(f.Label, f.Value, f.NormalRange)
}

// GroupBySeverity buckets recommendations in display order: critical, high,
// low, normal. Empty buckets are omitted and input order is kept within a
// bucket.
func GroupBySeverity(recs []Recommendation) []SeverityGroup {
	buckets := make([][]Recommendation, len(Severities))
	for _, r := range recs {
		rank := r.Severity.Rank()
		if rank < 0 || rank >= len(buckets) {
			continue
		}
		buckets[rank] = append(buckets[rank], r)
	}
	groups := []SeverityGroup{}
	for i, b := range buckets {
		if len(b) == 0 {
			continue
		}
		groups = append(groups, SeverityGroup{Severity: Severities[i], Recommendations: b})
	}
	return groups
}

// Summarize counts recommendations per tier. Highest is SeverityNormal when
// recs is empty.
func Summarize(recs []Recommendation) Summary {
	s := Summary{Highest: SeverityNormal}
	for _, r := range recs {
		switch r.Severity {
		case SeverityCritical:
			s.Critical++
		case SeverityHigh:
			s.High++
		case SeverityLow:
			s.Low++
		case SeverityNormal:
			s.Normal++
		}
		if r.Severity.Rank() < s.Highest.Rank() {
			s.Highest = r.Severity
		}
	}
	return s
}
