package threshold

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strokeunit/strokeunit/internal/domain/account"
	"github.com/strokeunit/strokeunit/internal/domain/notification"
	"github.com/strokeunit/strokeunit/internal/platform/db"
	"github.com/strokeunit/strokeunit/internal/platform/metrics"
)

func normal() Reading {
	g := 120
	return Reading{
		Systolic: 140, Diastolic: 85, HeartRate: 80, RespiratoryRate: 16,
		Temperature: 36.8, OxygenSaturation: 97, BloodGlucose: &g,
	}
}

func TestEvaluate_NormalReadingHasNoBreaches(t *testing.T) {
	assert.Empty(t, Evaluate(normal()))
}

func TestEvaluate_BoundsAreInclusive(t *testing.T) {
	r := normal()
	r.Systolic, r.Diastolic = 185, 60
	r.HeartRate, r.RespiratoryRate = 120, 10
	r.Temperature, r.OxygenSaturation = 38.5, 92
	g := 400
	r.BloodGlucose = &g
	assert.Empty(t, Evaluate(r))
}

func TestEvaluate_Messages(t *testing.T) {
	cases := []struct {
		name     string
		mutate   func(*Reading)
		metric   Metric
		critical bool
		message  string
	}{
		{"systolic high", func(r *Reading) { r.Systolic = 200 }, MetricSystolic, true, "Systolic BP exceeds tPA threshold at 200 mmHg"},
		{"systolic low", func(r *Reading) { r.Systolic = 70 }, MetricSystolic, true, "Systolic BP is critically low at 70 mmHg"},
		{"diastolic high", func(r *Reading) { r.Diastolic = 120 }, MetricDiastolic, true, "Diastolic BP exceeds tPA threshold at 120 mmHg"},
		{"heart rate high", func(r *Reading) { r.HeartRate = 130 }, MetricHeartRate, false, "Heart rate is critically elevated at 130 bpm"},
		{"resp rate low", func(r *Reading) { r.RespiratoryRate = 8 }, MetricRespiratoryRate, false, "Respiratory rate is critically low at 8 br/min"},
		{"temperature high", func(r *Reading) { r.Temperature = 39.2 }, MetricTemperature, false, "Temperature is critically elevated at 39.2°C"},
		{"oxygen low", func(r *Reading) { r.OxygenSaturation = 88 }, MetricOxygen, true, "Oxygen saturation is critically low at 88%"},
		{"glucose high", func(r *Reading) { g := 450; r.BloodGlucose = &g }, MetricGlucose, true, "Blood glucose exceeds tPA threshold at 450 mg/dL"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := normal()
			tc.mutate(&r)
			got := Evaluate(r)
			require.Len(t, got, 1)
			assert.Equal(t, tc.metric, got[0].Metric)
			assert.Equal(t, tc.critical, got[0].Critical)
			assert.Equal(t, tc.message, got[0].Message)
		})
	}
}

func TestEvaluate_MissingGlucoseIsSkipped(t *testing.T) {
	r := normal()
	r.BloodGlucose = nil
	assert.Empty(t, Evaluate(r))
}

type recordingNotifier struct {
	staff map[account.Role]int
	sent  map[account.Role][]notification.Message
	err   error
}

func newRecordingNotifier(techs, neuros int) *recordingNotifier {
	return &recordingNotifier{
		staff: map[account.Role]int{account.RoleTechnician: techs, account.RoleNeurologist: neuros},
		sent:  map[account.Role][]notification.Message{},
	}
}

func (n *recordingNotifier) NotifyRole(_ context.Context, role account.Role, m notification.Message) (int, error) {
	if n.err != nil {
		return 0, n.err
	}
	n.sent[role] = append(n.sent[role], m)
	return n.staff[role], nil
}

func TestMonitorCheck_CriticalSystolic(t *testing.T) {
	notifier := newRecordingNotifier(2, 3)
	mon := NewMonitor(notifier, zerolog.Nop())
	pid := uuid.New()
	r := normal()
	r.Systolic = 200

	alerts, err := mon.Check(context.Background(), Subject{PatientID: pid, FirstName: "Jane", LastName: "Doe"}, r)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, 2, alerts[0].TechniciansNotified)
	assert.Equal(t, 3, alerts[0].NeurologistsNotified)

	require.Len(t, notifier.sent[account.RoleTechnician], 1)
	require.Len(t, notifier.sent[account.RoleNeurologist], 1)

	tech := notifier.sent[account.RoleTechnician][0]
	assert.Equal(t, notification.TypeSystem, tech.Type)
	assert.Equal(t, "Abnormal Vital Sign - Jane Doe", tech.Title)
	assert.Equal(t, "/api/v1/patients/"+pid.String(), tech.RelatedURL)

	neuro := notifier.sent[account.RoleNeurologist][0]
	assert.Equal(t, "CRITICAL Vital Sign - Jane Doe", neuro.Title)
	assert.True(t, strings.HasPrefix(neuro.Message, "CRITICAL: Systolic BP exceeds tPA threshold at 200 mmHg"))
}

func TestMonitorCheck_LongNameTitlesFit(t *testing.T) {
	notifier := newRecordingNotifier(1, 1)
	r := normal()
	r.Systolic = 200
	s := Subject{PatientID: uuid.New(), FirstName: strings.Repeat("A", 60), LastName: strings.Repeat("B", 40)}

	_, err := NewMonitor(notifier, zerolog.Nop()).Check(context.Background(), s, r)
	require.NoError(t, err)

	tech := notifier.sent[account.RoleTechnician][0]
	neuro := notifier.sent[account.RoleNeurologist][0]
	assert.LessOrEqual(t, utf8.RuneCountInString(tech.Title), notification.MaxTitleLen)
	assert.LessOrEqual(t, utf8.RuneCountInString(neuro.Title), notification.MaxTitleLen)
	assert.True(t, strings.HasPrefix(tech.Title, "Abnormal Vital Sign - AAA"))
	assert.True(t, strings.HasPrefix(neuro.Title, "CRITICAL Vital Sign - AAA"))
	assert.Contains(t, neuro.Message, s.Name())
}

func TestMonitorCheck_BreachCountedAfterCommit(t *testing.T) {
	counter := metrics.VitalBreaches.WithLabelValues(string(MetricSystolic), "critical")
	before := testutil.ToFloat64(counter)
	m := NewMonitor(newRecordingNotifier(1, 1), zerolog.Nop())
	r := normal()
	r.Systolic = 200
	s := Subject{PatientID: uuid.New(), FirstName: "Jane", LastName: "Doe"}

	rollback := errors.New("rollback")
	err := db.Direct{}.WithinTx(context.Background(), func(ctx context.Context) error {
		if _, err := m.Check(ctx, s, r); err != nil {
			return err
		}
		return rollback
	})
	require.ErrorIs(t, err, rollback)
	assert.Equal(t, before, testutil.ToFloat64(counter))

	err = db.Direct{}.WithinTx(context.Background(), func(ctx context.Context) error {
		_, err := m.Check(ctx, s, r)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestMonitorCheck_NonCriticalSkipsNeurologists(t *testing.T) {
	notifier := newRecordingNotifier(1, 1)
	mon := NewMonitor(notifier, zerolog.Nop())
	r := normal()
	r.HeartRate = 140

	alerts, err := mon.Check(context.Background(), Subject{PatientID: uuid.New()}, r)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Zero(t, alerts[0].NeurologistsNotified)
	assert.Len(t, notifier.sent[account.RoleTechnician], 1)
	assert.Empty(t, notifier.sent[account.RoleNeurologist])
}

func TestMonitorCheck_NoBreachesNoNotifications(t *testing.T) {
	notifier := newRecordingNotifier(1, 1)
	alerts, err := NewMonitor(notifier, zerolog.Nop()).Check(context.Background(), Subject{}, normal())
	require.NoError(t, err)
	assert.Empty(t, alerts)
	assert.Empty(t, notifier.sent)
}

func TestMonitorCheck_PropagatesNotifierError(t *testing.T) {
	notifier := newRecordingNotifier(1, 1)
	notifier.err = errors.New("db down")
	r := normal()
	r.Systolic = 60

	_, err := NewMonitor(notifier, zerolog.Nop()).Check(context.Background(), Subject{}, r)
	assert.Error(t, err)
}
