// Package reporting summarizes unit activity and exports consultations.
package reporting

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/strokeunit/strokeunit/internal/domain/assessment"
	"github.com/strokeunit/strokeunit/internal/platform/auth"
)

var (
	viewStats          = auth.AnyOf(auth.CapTechnician, auth.CapNeurologist, auth.CapAdmin)
	exportConsultation = auth.AnyOf(auth.CapAdmin, auth.CapNeurologist)
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("component", "reporting").Logger(),
		now:    time.Now,
	}
}

// withKeys returns counts with every key in keys present.
func withKeys(counts map[string]int, keys []string) map[string]int {
	out := make(map[string]int, len(keys))
	for _, k := range keys {
		out[k] = counts[k]
	}
	for k, v := range counts {
		out[k] = v
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func (s *Service) Stats(ctx context.Context, actor auth.Actor) (*Stats, error) {
	if err := viewStats.Check(actor); err != nil {
		return nil, err
	}
	now := s.now()
	st := &Stats{GeneratedAt: now}

	var err error
	st.TotalPatients, st.PatientsToday, err = s.repo.CountPatients(ctx, startOfDay(now))
	if err != nil {
		return nil, fmt.Errorf("count patients: %w", err)
	}

	gender, err := s.repo.Grouped(ctx, measureGender)
	if err != nil {
		return nil, err
	}
	st.GenderDistribution = withKeys(gender, genders)

	ages, err := s.repo.Grouped(ctx, measureAgeGroup, now)
	if err != nil {
		return nil, err
	}
	for _, label := range AgeGroups {
		st.AgeDistribution = append(st.AgeDistribution, Bucket{Label: label, Count: ages[label]})
	}

	totals, err := s.repo.NIHSSTotals(ctx)
	if err != nil {
		return nil, fmt.Errorf("nihss totals: %w", err)
	}
	st.NIHSSSeverity = map[string]int{
		string(assessment.SeverityMinor):    0,
		string(assessment.SeverityModerate): 0,
		string(assessment.SeveritySevere):   0,
	}
	sum := 0
	for _, t := range totals {
		st.NIHSSSeverity[string(assessment.SeverityFor(t))]++
		sum += t
	}
	st.NIHSSAssessments = len(totals)
	if len(totals) > 0 {
		avg := math.Round(float64(sum)/float64(len(totals))*10) / 10
		st.AverageNIHSS = &avg
	}

	cons, err := s.repo.Grouped(ctx, measureConsultationStatus)
	if err != nil {
		return nil, err
	}
	st.ConsultationsByState = withKeys(cons, consultationStatuses)

	tpa, err := s.repo.Grouped(ctx, measureTPAStatus)
	if err != nil {
		return nil, err
	}
	st.TPAByStatus = withKeys(tpa, tpaStatuses)

	if st.TPAAdministered, err = s.repo.CountAdministered(ctx); err != nil {
		return nil, fmt.Errorf("count administered: %w", err)
	}
	return st, nil
}

// ExportConsultations renders every consultation as an XLSX workbook.
func (s *Service) ExportConsultations(ctx context.Context, actor auth.Actor) ([]byte, error) {
	if err := exportConsultation.Check(actor); err != nil {
		return nil, err
	}
	rows, err := s.repo.ExportRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("load export rows: %w", err)
	}
	data, err := BuildWorkbook(rows)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("actor_id", actor.UserID.String()).
		Int("rows", len(rows)).
		Msg("consultations exported")
	return data, nil
}
