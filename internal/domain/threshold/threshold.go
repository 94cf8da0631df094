// Package threshold evaluates vital signs against the unit's clinical bounds
// and alerts staff when a reading falls outside them.
package threshold

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// Metric names a monitored vital sign.
type Metric string

const (
	MetricSystolic        Metric = "systolic_bp"
	MetricDiastolic       Metric = "diastolic_bp"
	MetricHeartRate       Metric = "heart_rate"
	MetricRespiratoryRate Metric = "respiratory_rate"
	MetricTemperature     Metric = "temperature"
	MetricOxygen          Metric = "oxygen_saturation"
	MetricGlucose         Metric = "blood_glucose"
)

// Reading is one set of vital signs as recorded at the bedside.
type Reading struct {
	Systolic         int
	Diastolic        int
	HeartRate        int
	RespiratoryRate  int
	Temperature      float64
	OxygenSaturation int
	BloodGlucose     *int
}

// Subject identifies the patient a reading belongs to.
type Subject struct {
	PatientID uuid.UUID
	FirstName string
	LastName  string
}

func (s Subject) Name() string { return s.FirstName + " " + s.LastName }

// Breach is a single out-of-range value.
type Breach struct {
	Metric   Metric  `json:"metric"`
	Value    float64 `json:"value"`
	Low      bool    `json:"low"`
	Critical bool    `json:"critical"`
	Message  string  `json:"message"`
}

type bound struct {
	metric   Metric
	label    string
	unit     string
	min, max float64
	hasMax   bool
	critical bool
	// highPhrase completes "<label> <highPhrase> at <value><unit>".
	highPhrase string
}

var bounds = []bound{
	{metric: MetricSystolic, label: "Systolic BP", unit: " mmHg", min: 90, max: 185, hasMax: true, critical: true, highPhrase: "exceeds tPA threshold"},
	{metric: MetricDiastolic, label: "Diastolic BP", unit: " mmHg", min: 60, max: 110, hasMax: true, critical: true, highPhrase: "exceeds tPA threshold"},
	{metric: MetricHeartRate, label: "Heart rate", unit: " bpm", min: 50, max: 120, hasMax: true, highPhrase: "is critically elevated"},
	{metric: MetricRespiratoryRate, label: "Respiratory rate", unit: " br/min", min: 10, max: 30, hasMax: true, highPhrase: "is critically elevated"},
	{metric: MetricTemperature, label: "Temperature", unit: "°C", min: 35.0, max: 38.5, hasMax: true, highPhrase: "is critically elevated"},
	{metric: MetricOxygen, label: "Oxygen saturation", unit: "%", min: 92, critical: true},
	{metric: MetricGlucose, label: "Blood glucose", unit: " mg/dL", min: 50, max: 400, hasMax: true, critical: true, highPhrase: "exceeds tPA threshold"},
}

func (r Reading) value(m Metric) (float64, bool) {
	switch m {
	case MetricSystolic:
		return float64(r.Systolic), true
	case MetricDiastolic:
		return float64(r.Diastolic), true
	case MetricHeartRate:
		return float64(r.HeartRate), true
	case MetricRespiratoryRate:
		return float64(r.RespiratoryRate), true
	case MetricTemperature:
		return r.Temperature, true
	case MetricOxygen:
		return float64(r.OxygenSaturation), true
	case MetricGlucose:
		if r.BloodGlucose == nil {
			return 0, false
		}
		return float64(*r.BloodGlucose), true
	}
	return 0, false
}

func formatValue(m Metric, v float64) string {
	if m == MetricTemperature {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Evaluate returns the breaches in r, in bounds-table order. Bounds are
// inclusive: a value equal to a limit is in range.
func Evaluate(r Reading) []Breach {
	var out []Breach
	for _, b := range bounds {
		v, ok := r.value(b.metric)
		if !ok {
			continue
		}
		var low bool
		switch {
		case v < b.min:
			low = true
		case b.hasMax && v > b.max:
		default:
			continue
		}
		phrase := b.highPhrase
		if low {
			phrase = "is critically low"
		}
		out = append(out, Breach{
			Metric:   b.metric,
			Value:    v,
			Low:      low,
			Critical: b.critical,
			Message:  fmt.Sprintf("%s %s at %s%s", b.label, phrase, formatValue(b.metric, v), b.unit),
		})
	}
	return out
}
