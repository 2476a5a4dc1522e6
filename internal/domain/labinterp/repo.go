package labinterp

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("lab result not found")

type LabResultRepository interface {
	Create(ctx context.Context, lr *LabResult) error
	GetByID(ctx context.Context, id uuid.UUID) (*LabResult, error)
	Update(ctx context.Context, lr *LabResult) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*LabResult, int, error)
}
