package labinterp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const defaultInterpretConcurrency = 4

type Service struct {
	results     LabResultRepository
	catalog     *Catalog
	logger      zerolog.Logger
	concurrency int
}

func NewService(results LabResultRepository, catalog *Catalog, logger zerolog.Logger) *Service {
	return &Service{
		results:     results,
		catalog:     catalog,
		logger:      logger.With().Str("component", "labinterp").Logger(),
		concurrency: defaultInterpretConcurrency,
	}
}

// SetConcurrency bounds how many stored results InterpretPatient classifies
// at once. Values below 1 are ignored.
func (s *Service) SetConcurrency(n int) {
	if n > 0 {
		s.concurrency = n
	}
}

// Catalog returns the field catalog the service interprets against.
func (s *Service) Catalog() *Catalog { return s.catalog }

// -- Lab Result --

var validResultStatuses = map[string]bool{
	"registered": true, "preliminary": true, "final": true,
	"amended": true, "cancelled": true, "entered-in-error": true,
}

func (s *Service) validate(lr *LabResult) error {
	if lr.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if lr.TestName == "" {
		return fmt.Errorf("test_name is required")
	}
	if lr.Status == "" {
		lr.Status = "final"
	}
	if !validResultStatuses[lr.Status] {
		return fmt.Errorf("invalid status: %s", lr.Status)
	}
	if lr.Category != nil && *lr.Category != "" {
		if _, ok := s.catalog.Category(*lr.Category); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownCategory, *lr.Category)
		}
	}
	if len(lr.RawResults) == 0 {
		lr.RawResults = json.RawMessage(`{}`)
	}
	if _, err := NewJSONSource(lr.RawResults); err != nil {
		return err
	}
	return nil
}

func (s *Service) CreateLabResult(ctx context.Context, lr *LabResult) error {
	if err := s.validate(lr); err != nil {
		return err
	}
	return s.results.Create(ctx, lr)
}

func (s *Service) GetLabResult(ctx context.Context, id uuid.UUID) (*LabResult, error) {
	return s.results.GetByID(ctx, id)
}

func (s *Service) UpdateLabResult(ctx context.Context, lr *LabResult) error {
	if err := s.validate(lr); err != nil {
		return err
	}
	return s.results.Update(ctx, lr)
}

func (s *Service) DeleteLabResult(ctx context.Context, id uuid.UUID) error {
	return s.results.Delete(ctx, id)
}

func (s *Service) ListLabResultsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*LabResult, int, error) {
	return s.results.ListByPatient(ctx, patientID, limit, offset)
}

// -- Interpretation --

func (s *Service) analyzer(log zerolog.Logger, catalog *Catalog) *Analyzer {
	return NewAnalyzer(catalog, WithFieldErrorHook(func(key string, err error) {
		log.Warn().Err(err).Str("field", key).Msg("lab field skipped")
	}))
}

func (s *Service) scopedCatalog(category string) (*Catalog, error) {
	if category == "" {
		return s.catalog, nil
	}
	return s.catalog.Subset(category)
}

// InterpretRaw classifies a posted results blob. category, when set,
// restricts the pass to one catalog category.
func (s *Service) InterpretRaw(ctx context.Context, category string, raw json.RawMessage) (*Interpretation, error) {
	catalog, err := s.scopedCatalog(category)
	if err != nil {
		return nil, err
	}
	src, err := NewJSONSource(raw)
	if err != nil {
		return nil, err
	}
	recs := s.analyzer(s.logger, catalog).Interpret(src)
	in := newInterpretation(recs)
	in.Category = category
	return in, nil
}

// InterpretLabResult loads a stored result and classifies it.
func (s *Service) InterpretLabResult(ctx context.Context, id uuid.UUID) (*Interpretation, error) {
	lr, err := s.results.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.interpretStored(lr), nil
}

// InterpretPatient classifies the patient's most recent stored results
// concurrently. Output follows repository order.
func (s *Service) InterpretPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]*Interpretation, error) {
	items, _, err := s.results.ListByPatient(ctx, patientID, limit, 0)
	if err != nil {
		return nil, err
	}

	out := make([]*Interpretation, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, lr := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = s.interpretStored(lr)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// interpretStored never fails: an unreadable blob or unknown category is
// logged and the pass continues with what can be read.
func (s *Service) interpretStored(lr *LabResult) *Interpretation {
	log := s.logger.With().Str("lab_result_id", lr.ID.String()).Logger()

	category := ""
	if lr.Category != nil {
		category = *lr.Category
	}
	catalog, err := s.scopedCatalog(category)
	if err != nil {
		log.Warn().Err(err).Msg("interpreting against full catalog")
		catalog, category = s.catalog, ""
	}

	var src ResultSource
	js, err := NewJSONSource(lr.RawResults)
	if err != nil {
		log.Warn().Err(err).Msg("raw results unreadable")
	} else {
		src = js
	}

	recs := s.analyzer(log, catalog).Interpret(src)
	in := newInterpretation(recs)
	id, patientID := lr.ID, lr.PatientID
	in.LabResultID = &id
	in.PatientID = &patientID
	in.TestName = lr.TestName
	in.Category = category

	log.Debug().
		Int("critical", in.Summary.Critical).
		Int("high", in.Summary.High).
		Int("low", in.Summary.Low).
		Str("highest", in.Summary.Highest.String()).
		Msg("lab result interpreted")
	return in
}

func newInterpretation(recs []Recommendation) *Interpretation {
	return &Interpretation{
		Recommendations: recs,
		Groups:          GroupBySeverity(recs),
		Summary:         Summarize(recs),
	}
}

// IsNotFound reports whether err means the lab result does not exist.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
