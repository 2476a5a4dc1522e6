package labinterp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Severity is the tier assigned to a classified result.
type Severity int

const (
	SeverityCritical Severity = iota
	SeverityHigh
	SeverityLow
	SeverityNormal
)

var severityNames = [...]string{"critical", "high", "low", "normal"}

// Severities lists every tier in display order.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityLow, SeverityNormal}

func (s Severity) String() string {
	if s < SeverityCritical || s > SeverityNormal {
		return fmt.Sprintf("severity(%d)", int(s))
	}
	return severityNames[s]
}

// Rank returns the display position of the severity; lower sorts first.
func (s Severity) Rank() int { return int(s) }

// Status returns the capitalised label shown next to a recommendation.
func (s Severity) Status() string {
	switch s {
	case SeverityCritical:
		return "Critical"
	case SeverityHigh:
		return "High"
	case SeverityLow:
		return "Low"
	default:
		return "Normal"
	}
}

// ParseSeverity is the inverse of String.
func ParseSeverity(name string) (Severity, error) {
	for i, n := range severityNames {
		if n == name {
			return Severity(i), nil
		}
	}
	return 0, fmt.Errorf("unknown severity: %q", name)
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseSeverity(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Recommendation pairs a classified field with a clinical message.
type Recommendation struct {
	Severity    Severity `json:"severity"`
	Status      string   `json:"status"`
	Test        string   `json:"test"`
	Value       string   `json:"value"`
	NormalRange string   `json:"normalRange"`
	Message     string   `json:"message"`
}

// ExtractedValue is a catalog field whose raw value was present.
type ExtractedValue struct {
	FieldKey    string `json:"fieldKey"`
	Label       string `json:"label"`
	Value       string `json:"value"`
	NormalRange string `json:"normalRange"`
	Group       string `json:"group"`
}

// OrganizedCategory holds the present values of one catalog category, in catalog order.
type OrganizedCategory struct {
	ID     string           `json:"id"`
	Title  string           `json:"title"`
	Fields []ExtractedValue `json:"fields"`
}

// OrganizedResults is the extractor output consumed by the aggregator.
type OrganizedResults []OrganizedCategory

// SeverityGroup is a display bucket produced by GroupBySeverity.
type SeverityGroup struct {
	Severity        Severity         `json:"severity"`
	Recommendations []Recommendation `json:"recommendations"`
}

// Summary counts recommendations per tier.
type Summary struct {
	Critical int      `json:"critical"`
	High     int      `json:"high"`
	Low      int      `json:"low"`
	Normal   int      `json:"normal"`
	Highest  Severity `json:"highest"`
}

// LabResult maps to the lab_result table. RawResults is the loosely-typed
// per-field blob written by the lab entry screens.
type LabResult struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	PatientID   uuid.UUID       `db:"patient_id" json:"patient_id"`
	EncounterID *uuid.UUID      `db:"encounter_id" json:"encounter_id,omitempty"`
	OrderedBy   *uuid.UUID      `db:"ordered_by" json:"ordered_by,omitempty"`
	Category    *string         `db:"category" json:"category,omitempty"`
	TestName    string          `db:"test_name" json:"test_name"`
	Status      string          `db:"status" json:"status"`
	RawResults  json.RawMessage `db:"raw_results" json:"raw_results"`
	CollectedAt *time.Time      `db:"collected_at" json:"collected_at,omitempty"`
	Note        *string         `db:"note" json:"note,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// Interpretation is the service-level result of one classification pass.
type Interpretation struct {
	LabResultID     *uuid.UUID       `json:"lab_result_id,omitempty"`
	PatientID       *uuid.UUID       `json:"patient_id,omitempty"`
	TestName        string           `json:"test_name,omitempty"`
	Category        string           `json:"category,omitempty"`
	Recommendations []Recommendation `json:"recommendations"`
	Groups          []SeverityGroup  `json:"groups"`
	Summary         Summary          `json:"summary"`
}
