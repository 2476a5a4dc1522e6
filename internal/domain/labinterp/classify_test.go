package labinterp

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestClassify_IntervalBoundaries(t *testing.T) {
	tests := []struct {
		value   string
		want    Severity
		wantMsg string
		found   bool
	}{
		{"85", SeverityNormal, "", false},
		{"100", SeverityNormal, "", false},
		{"70", SeverityNormal, "", false},
		{"100.01", SeverityHigh, MsgFollowUp, true},
		{"150", SeverityHigh, MsgFollowUp, true},
		{"150.01", SeverityCritical, MsgUrgent, true},
		{"69.99", SeverityLow, MsgDeficiency, true},
		{"35", SeverityLow, MsgDeficiency, true},
		{"34.99", SeverityCritical, MsgUrgent, true},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			rec, ok := Classify("Glucose", tt.value, "70-100")
			if ok != tt.found {
				t.Fatalf("Classify(%s) found = %v, want %v", tt.value, ok, tt.found)
			}
			if !ok {
				return
			}
			if rec.Severity != tt.want || rec.Message != tt.wantMsg {
				t.Errorf("Classify(%s) = %s/%q, want %s/%q", tt.value, rec.Severity, rec.Message, tt.want, tt.wantMsg)
			}
		})
	}
}

func TestClassify_UpperBound(t *testing.T) {
	tests := []struct {
		value string
		want  Severity
		found bool
	}{
		{"2.25", SeverityNormal, false},
		{"2.26", SeverityHigh, true},
		{"3.38", SeverityHigh, true},
		{"3.39", SeverityCritical, true},
		{"0", SeverityNormal, false},
	}
	for _, tt := range tests {
		rec, ok := Classify("LDL", tt.value, "<2.26 mmol/L")
		if ok != tt.found {
			t.Errorf("Classify(%s) found = %v, want %v", tt.value, ok, tt.found)
			continue
		}
		if ok && rec.Severity != tt.want {
			t.Errorf("Classify(%s) = %s, want %s", tt.value, rec.Severity, tt.want)
		}
	}
}

func TestClassify_LowerBound(t *testing.T) {
	tests := []struct {
		value string
		want  Severity
		found bool
	}{
		{"1.06", SeverityNormal, false},
		{"1.05", SeverityLow, true},
		{"0.6", SeverityLow, true},
		{"0.525", SeverityCritical, true},
		{"0.5", SeverityCritical, true},
	}
	for _, tt := range tests {
		rec, ok := Classify("HDL", tt.value, ">1.05")
		if ok != tt.found {
			t.Errorf("Classify(%s) found = %v, want %v", tt.value, ok, tt.found)
			continue
		}
		if ok && rec.Severity != tt.want {
			t.Errorf("Classify(%s) = %s, want %s", tt.value, rec.Severity, tt.want)
		}
	}
}

func TestClassify_Keywords(t *testing.T) {
	tests := []struct {
		value   string
		want    Severity
		wantMsg string
		found   bool
	}{
		{"Positive", SeverityCritical, MsgImmediateReview, true},
		{"  REACTIVE ", SeverityCritical, MsgImmediateReview, true},
		{"weakly positive", SeverityNormal, "", false},
		{"Non-Reactive", SeverityNormal, "", false},
		{"Negative", SeverityNormal, "", false},
		{"Elevated", SeverityHigh, MsgFollowUp, true},
		{"slightly increased", SeverityHigh, MsgFollowUp, true},
		{"Decreased", SeverityLow, MsgDeficiency, true},
		{"iron deficient", SeverityLow, MsgDeficiency, true},
		{"Severe anaemia", SeverityCritical, MsgUrgent, true},
		{"critical", SeverityCritical, MsgUrgent, true},
		{"high critical", SeverityHigh, MsgFollowUp, true},
		{"low but urgent", SeverityLow, MsgDeficiency, true},
		{"Yellow", SeverityLow, MsgDeficiency, true},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			rec, ok := Classify("Test", tt.value, "Negative")
			if ok != tt.found {
				t.Fatalf("Classify(%q) found = %v, want %v", tt.value, ok, tt.found)
			}
			if ok && (rec.Severity != tt.want || rec.Message != tt.wantMsg) {
				t.Errorf("Classify(%q) = %s/%q, want %s/%q", tt.value, rec.Severity, rec.Message, tt.want, tt.wantMsg)
			}
		})
	}
}

func TestClassify_PositiveBeatsNumericRange(t *testing.T) {
	rec, ok := Classify("HIV", "Positive", "70-100")
	if !ok || rec.Severity != SeverityCritical || rec.Message != MsgImmediateReview {
		t.Errorf("expected critical immediate review, got %+v (%v)", rec, ok)
	}
}

func TestClassify_SeeReferenceSkipsNumeric(t *testing.T) {
	if _, ok := Classify("Blood Group", "999", "See reference"); ok {
		t.Error("expected no finding for see-reference range")
	}
	if _, ok := Classify("Blood Group", "999", " see REFERENCE "); ok {
		t.Error("expected case-insensitive see-reference match")
	}
	rec, ok := Classify("hCG", "Positive", "See reference")
	if !ok || rec.Severity != SeverityCritical {
		t.Errorf("expected keyword rules to still apply, got %+v (%v)", rec, ok)
	}
}

func TestClassify_UnparseableIsSilent(t *testing.T) {
	for _, tc := range []struct{ value, rng string }{
		{"12", "Negative"},
		{"12", "~5"},
		{"abc", "70-100"},
		{"12", ""},
	} {
		if rec, ok := Classify("X", tc.value, tc.rng); ok {
			t.Errorf("Classify(%q, %q) = %+v, want no finding", tc.value, tc.rng, rec)
		}
	}
}

func TestClassify_LeadingNumberWithUnits(t *testing.T) {
	rec, ok := Classify("Fasting Blood Sugar", "7.2 mmol/L", "3.89-5.83 mmol/L")
	if !ok || rec.Severity != SeverityHigh {
		t.Fatalf("expected high, got %+v (%v)", rec, ok)
	}
	want := Recommendation{
		Severity:    SeverityHigh,
		Status:      "High",
		Test:        "Fasting Blood Sugar",
		Value:       "7.2 mmol/L",
		NormalRange: "3.89-5.83 mmol/L",
		Message:     MsgFollowUp,
	}
	if diff := cmp.Diff(want, rec); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestRuleNames(t *testing.T) {
	want := []string{"qualitative-positive", "qualitative-high", "qualitative-low", "qualitative-critical", "numeric-range"}
	if diff := cmp.Diff(want, RuleNames()); diff != "" {
		t.Errorf("rule order mismatch (-want +got):\n%s", diff)
	}
}
