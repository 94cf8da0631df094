package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/strokeunit/strokeunit/internal/domain/account"
	"github.com/strokeunit/strokeunit/internal/platform/auth"
	"github.com/strokeunit/strokeunit/internal/platform/db"
	"github.com/strokeunit/strokeunit/internal/platform/metrics"
	"github.com/strokeunit/strokeunit/pkg/apperr"
)

var (
	registerPatients = auth.AnyOf(auth.CapTechnician)
	viewPatients     = auth.AnyOf(auth.CapTechnician, auth.CapNeurologist, auth.CapAdmin)
	editPatients     = auth.AnyOf(auth.CapTechnician, auth.CapAdmin)
)

const dateLayout = "2006-01-02"

// ClinicalIntake records the clinical data captured on the registration form.
type ClinicalIntake interface {
	RecordInitialVitals(ctx context.Context, actor auth.Actor, p *Patient, v InitialVitals) error
	RecordInitialImaging(ctx context.Context, actor auth.Actor, p *Patient, studyType, findings, imageURL string) error
	RecordInitialLab(ctx context.Context, actor auth.Actor, p *Patient, testName, value, referenceRange string) error
}

// AccountProvisioner finds or creates the portal user for a patient email.
type AccountProvisioner interface {
	EnsurePatientAccount(ctx context.Context, email, firstName, lastName string) (*account.User, bool, error)
}

type Service struct {
	repo     Repository
	intake   ClinicalIntake
	accounts AccountProvisioner
	tx       db.TxRunner
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, intake ClinicalIntake, accounts AccountProvisioner, tx db.TxRunner, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		intake:   intake,
		accounts: accounts,
		tx:       tx,
		logger:   logger.With().Str("component", "patient").Logger(),
		now:      time.Now,
	}
}

func (s *Service) stamp(p *Patient) *Patient {
	p.Age = p.AgeOn(s.now())
	return p
}

func (s *Service) applyDemographics(p *Patient, d Demographics) error {
	first := strings.TrimSpace(d.FirstName)
	last := strings.TrimSpace(d.LastName)
	if first == "" {
		return apperr.Validation("first_name", "first name is required")
	}
	if last == "" {
		return apperr.Validation("last_name", "last name is required")
	}
	if !d.Gender.Valid() {
		return apperr.Validation("gender", "gender must be M, F or O")
	}
	dob, err := time.Parse(dateLayout, strings.TrimSpace(d.DateOfBirth))
	if err != nil {
		return apperr.Validation("date_of_birth", "date of birth must be YYYY-MM-DD")
	}
	if dob.After(s.now()) {
		return apperr.Validation("date_of_birth", "date of birth is in the future")
	}

	p.FirstName = first
	p.LastName = last
	p.DateOfBirth = dob
	p.Gender = d.Gender
	p.PhoneNumber = strings.TrimSpace(d.PhoneNumber)
	p.Email = strings.TrimSpace(d.Email)
	p.Address = d.Address
	p.EmergencyContactName = strings.TrimSpace(d.EmergencyContactName)
	p.EmergencyContactPhone = strings.TrimSpace(d.EmergencyContactPhone)
	p.MedicalHistory = d.MedicalHistory
	p.CurrentMedications = d.CurrentMedications
	p.Allergies = d.Allergies
	return nil
}

// mergeHistory appends the condition flags to the free-text history.
func mergeHistory(history string, c Conditions) string {
	labels := c.Labels()
	if len(labels) == 0 {
		return history
	}
	line := "Medical Conditions: " + strings.Join(labels, ", ")
	if history != "" {
		return history + "\n\n" + line
	}
	return line
}

// createWithCode inserts p with a fresh access code, retrying on collisions.
func (s *Service) createWithCode(ctx context.Context, p *Patient) error {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := GenerateAccessCode()
		if err != nil {
			return fmt.Errorf("generate access code: %w", err)
		}
		p.AccessCode = &code
		err = s.repo.Create(ctx, p)
		if errors.Is(err, ErrAccessCodeTaken) {
			continue
		}
		return err
	}
	return fmt.Errorf("create patient: %w after %d attempts", ErrAccessCodeTaken, maxCodeAttempts)
}

func (s *Service) assignCode(ctx context.Context, id uuid.UUID) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := GenerateAccessCode()
		if err != nil {
			return "", fmt.Errorf("generate access code: %w", err)
		}
		err = s.repo.SetAccessCode(ctx, id, code)
		if errors.Is(err, ErrAccessCodeTaken) {
			continue
		}
		return code, err
	}
	return "", fmt.Errorf("assign access code: %w after %d attempts", ErrAccessCodeTaken, maxCodeAttempts)
}

// Register saves a new patient and then runs each intake side effect on its
// own. A failed side effect is logged and reported in Warnings; it never
// undoes the patient row.
func (s *Service) Register(ctx context.Context, actor auth.Actor, form RegistrationForm) (*Registration, error) {
	if err := registerPatients.Check(actor); err != nil {
		return nil, err
	}
	p := &Patient{}
	if err := s.applyDemographics(p, form.Demographics); err != nil {
		return nil, err
	}
	p.MedicalHistory = mergeHistory(p.MedicalHistory, form.Conditions)
	if rel := strings.TrimSpace(form.EmergencyContactRelationship); rel != "" && p.EmergencyContactName != "" {
		p.EmergencyContactName = fmt.Sprintf("%s (%s)", p.EmergencyContactName, rel)
	}
	if actor.Authenticated() {
		registrar := actor.UserID
		p.RegisteredBy = &registrar
	}

	if err := s.createWithCode(ctx, p); err != nil {
		return nil, fmt.Errorf("register patient: %w", err)
	}
	s.logger.Info().
		Str("patient_id", p.ID.String()).
		Str("actor_id", actor.UserID.String()).
		Msg("patient registered")

	reg := &Registration{Patient: p}
	step := func(name string, fn func(ctx context.Context) error) {
		if err := s.tx.WithinTx(ctx, fn); err != nil {
			s.logger.Warn().Err(err).
				Str("patient_id", p.ID.String()).
				Str("step", name).
				Msg("registration side effect failed")
			metrics.RegistrationWarnings.WithLabelValues(name).Inc()
			reg.Warnings = append(reg.Warnings, fmt.Sprintf("%s: %v", name, err))
		}
	}

	if form.Vitals.Complete() {
		step("vital_signs", func(ctx context.Context) error {
			return s.intake.RecordInitialVitals(ctx, actor, p, *form.Vitals)
		})
	}
	if form.CTScanURL != nil {
		step("ct_scan", func(ctx context.Context) error {
			return s.intake.RecordInitialImaging(ctx, actor, p, "CT", "CT scan uploaded during registration", *form.CTScanURL)
		})
	}
	if form.MRIScanURL != nil {
		step("mri_scan", func(ctx context.Context) error {
			return s.intake.RecordInitialImaging(ctx, actor, p, "MRI", "MRI scan uploaded during registration", *form.MRIScanURL)
		})
	}
	if form.LabResultsURL != nil {
		step("lab_results", func(ctx context.Context) error {
			return s.intake.RecordInitialLab(ctx, actor, p, "Initial Lab Results", "See uploaded document", "N/A")
		})
	}
	if p.Email != "" && s.accounts != nil {
		step("user_account", func(ctx context.Context) error {
			u, created, err := s.accounts.EnsurePatientAccount(ctx, p.Email, p.FirstName, p.LastName)
			if err != nil {
				return err
			}
			if !created {
				return nil
			}
			if err := s.repo.LinkAccount(ctx, p.ID, u.ID); err != nil {
				return err
			}
			p.UserAccount = &u.ID
			return nil
		})
	}

	s.stamp(p)
	return reg, nil
}

func (s *Service) List(ctx context.Context, actor auth.Actor, q string, limit, offset int) ([]*Patient, int, error) {
	if err := viewPatients.Check(actor); err != nil {
		return nil, 0, err
	}
	items, total, err := s.repo.Search(ctx, strings.TrimSpace(q), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for _, p := range items {
		s.stamp(p)
	}
	return items, total, nil
}

func (s *Service) Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Patient, error) {
	if err := viewPatients.Check(actor); err != nil {
		return nil, err
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.stamp(p), nil
}

func (s *Service) Update(ctx context.Context, actor auth.Actor, id uuid.UUID, d Demographics) (*Patient, error) {
	if err := editPatients.Check(actor); err != nil {
		return nil, err
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.applyDemographics(p, d); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return s.stamp(p), nil
}

// ResetAccessCode issues a new code, invalidating the old one.
func (s *Service) ResetAccessCode(ctx context.Context, actor auth.Actor, id uuid.UUID, confirm bool) (*Patient, error) {
	if err := editPatients.Check(actor); err != nil {
		return nil, err
	}
	if !confirm {
		return nil, apperr.Validation("confirm", "confirm the access code reset")
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	if _, err := s.assignCode(ctx, id); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("patient_id", id.String()).
		Str("actor_id", actor.UserID.String()).
		Msg("access code reset")
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.stamp(p), nil
}

// BackfillAccessCodes assigns codes to every patient that has none and
// returns how many were assigned.
func (s *Service) BackfillAccessCodes(ctx context.Context) (int, error) {
	ids, err := s.repo.ListMissingAccessCode(ctx)
	if err != nil {
		return 0, err
	}
	for i, id := range ids {
		if _, err := s.assignCode(ctx, id); err != nil {
			return i, fmt.Errorf("patient %s: %w", id, err)
		}
	}
	return len(ids), nil
}

// FindByAccessCode looks a patient up by portal code. It carries no actor:
// the code itself is the credential.
func (s *Service) FindByAccessCode(ctx context.Context, code string) (*Patient, error) {
	p, err := s.repo.GetByAccessCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.stamp(p), nil
}

// ForUser returns the patient record linked to a portal user account.
func (s *Service) ForUser(ctx context.Context, userID uuid.UUID) (*Patient, error) {
	p, err := s.repo.GetByUserAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.stamp(p), nil
}

// Lookup fetches a patient for another workflow that has already checked
// the actor.
func (s *Service) Lookup(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.stamp(p), nil
}

// RegisteredBy lists the newest patients registered by the actor.
func (s *Service) RegisteredBy(ctx context.Context, actor auth.Actor, limit int) ([]*Patient, error) {
	items, err := s.repo.ListByRegistrar(ctx, actor.UserID, limit)
	if err != nil {
		return nil, err
	}
	for _, p := range items {
		s.stamp(p)
	}
	return items, nil
}
