package assessment

import (
	"context"

	"github.com/strokeunit/strokeunit/internal/domain/patient"
	"github.com/strokeunit/strokeunit/internal/platform/auth"
)

// Intake records the clinical data captured on the registration form. It
// implements patient.ClinicalIntake.
type Intake struct {
	svc *Service
}

func NewIntake(svc *Service) *Intake {
	return &Intake{svc: svc}
}

var _ patient.ClinicalIntake = (*Intake)(nil)

func (i *Intake) RecordInitialVitals(ctx context.Context, actor auth.Actor, p *patient.Patient, v patient.InitialVitals) error {
	_, err := i.svc.recordVitals(ctx, actor, p, VitalsInput{
		Systolic:         *v.Systolic,
		Diastolic:        *v.Diastolic,
		HeartRate:        *v.HeartRate,
		RespiratoryRate:  *v.RespiratoryRate,
		Temperature:      *v.Temperature,
		OxygenSaturation: *v.OxygenSaturation,
		BloodGlucose:     v.BloodGlucose,
	})
	return err
}

func (i *Intake) RecordInitialImaging(ctx context.Context, actor auth.Actor, p *patient.Patient, studyType, findings, imageURL string) error {
	_, err := i.svc.recordImaging(ctx, actor, p, ImagingInput{
		StudyType: StudyType(studyType),
		Findings:  findings,
		ImageURL:  imageURL,
	})
	return err
}

func (i *Intake) RecordInitialLab(ctx context.Context, actor auth.Actor, p *patient.Patient, testName, value, referenceRange string) error {
	_, err := i.svc.recordLab(ctx, actor, p, LabInput{
		TestName:       testName,
		TestValue:      value,
		ReferenceRange: referenceRange,
	})
	return err
}
