package assessment

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	CreateVitals(ctx context.Context, v *VitalSigns) error
	ListVitals(ctx context.Context, patientID uuid.UUID, limit int) ([]*VitalSigns, error)

	CreateNIHSS(ctx context.Context, a *NIHSSAssessment) error
	GetNIHSS(ctx context.Context, id uuid.UUID) (*NIHSSAssessment, error)
	ListNIHSS(ctx context.Context, patientID uuid.UUID, limit int) ([]*NIHSSAssessment, error)
	ListAllNIHSS(ctx context.Context, limit, offset int) ([]*NIHSSAssessment, int, error)

	CreateImaging(ctx context.Context, s *ImagingStudy) error
	ListImaging(ctx context.Context, patientID uuid.UUID, limit int) ([]*ImagingStudy, error)

	CreateLab(ctx context.Context, l *LabResult) error
	ListLabs(ctx context.Context, patientID uuid.UUID, limit int) ([]*LabResult, error)
}
