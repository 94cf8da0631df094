package patient

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Gender string

const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
	GenderOther  Gender = "O"
)

func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

// Patient maps to the patients table.
type Patient struct {
	ID                    uuid.UUID  `db:"id" json:"id"`
	FirstName             string     `db:"first_name" json:"first_name"`
	LastName              string     `db:"last_name" json:"last_name"`
	DateOfBirth           time.Time  `db:"date_of_birth" json:"date_of_birth"`
	Gender                Gender     `db:"gender" json:"gender"`
	PhoneNumber           string     `db:"phone_number" json:"phone_number"`
	Email                 string     `db:"email" json:"email"`
	Address               string     `db:"address" json:"address"`
	EmergencyContactName  string     `db:"emergency_contact_name" json:"emergency_contact_name"`
	EmergencyContactPhone string     `db:"emergency_contact_phone" json:"emergency_contact_phone"`
	MedicalHistory        string     `db:"medical_history" json:"medical_history"`
	CurrentMedications    string     `db:"current_medications" json:"current_medications"`
	Allergies             string     `db:"allergies" json:"allergies"`
	AccessCode            *string    `db:"access_code" json:"access_code,omitempty"`
	AccessCodeExpiry      *time.Time `db:"access_code_expiry" json:"access_code_expiry,omitempty"`
	RegisteredBy          *uuid.UUID `db:"registered_by" json:"registered_by,omitempty"`
	RegistrationDate      time.Time  `db:"registration_date" json:"registration_date"`
	UserAccount           *uuid.UUID `db:"user_account" json:"user_account,omitempty"`

	Age int `db:"-" json:"age"`
}

func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// AgeOn returns the patient's age in whole years at now.
func (p *Patient) AgeOn(now time.Time) int {
	dob := p.DateOfBirth
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

// AccessCodeExpired reports whether the code has a set expiry that lies
// before now. Codes without an expiry never expire.
func (p *Patient) AccessCodeExpired(now time.Time) bool {
	return p.AccessCodeExpiry != nil && p.AccessCodeExpiry.Before(now)
}

// Conditions are the checkbox flags captured at registration.
type Conditions struct {
	Hypertension          bool `json:"hypertension"`
	Diabetes              bool `json:"diabetes"`
	Hyperlipidemia        bool `json:"hyperlipidemia"`
	CoronaryArteryDisease bool `json:"coronary_artery_disease"`
	AtrialFibrillation    bool `json:"atrial_fibrillation"`
	PriorStroke           bool `json:"prior_stroke"`
	Smoking               bool `json:"smoking"`
	AlcoholUse            bool `json:"alcohol_use"`
}

// Labels lists the set flags in form order.
func (c Conditions) Labels() []string {
	flags := []struct {
		set   bool
		label string
	}{
		{c.Hypertension, "Hypertension"},
		{c.Diabetes, "Diabetes"},
		{c.Hyperlipidemia, "Hyperlipidemia"},
		{c.CoronaryArteryDisease, "Coronary Artery Disease"},
		{c.AtrialFibrillation, "Atrial Fibrillation"},
		{c.PriorStroke, "Prior Stroke"},
		{c.Smoking, "Smoking"},
		{c.AlcoholUse, "Alcohol Use"},
	}
	var out []string
	for _, f := range flags {
		if f.set {
			out = append(out, f.label)
		}
	}
	return out
}

// InitialVitals are the optional bedside vitals on the registration form.
// A record is only created when every required value is present.
type InitialVitals struct {
	Systolic         *int     `json:"blood_pressure_systolic"`
	Diastolic        *int     `json:"blood_pressure_diastolic"`
	HeartRate        *int     `json:"heart_rate"`
	RespiratoryRate  *int     `json:"respiratory_rate"`
	Temperature      *float64 `json:"temperature"`
	OxygenSaturation *int     `json:"oxygen_saturation"`
	BloodGlucose     *int     `json:"blood_glucose"`
}

func (v *InitialVitals) Complete() bool {
	return v != nil && v.Systolic != nil && v.Diastolic != nil && v.HeartRate != nil &&
		v.RespiratoryRate != nil && v.Temperature != nil && v.OxygenSaturation != nil
}

// Demographics are the fields a technician may edit after registration.
type Demographics struct {
	FirstName             string `json:"first_name"`
	LastName              string `json:"last_name"`
	DateOfBirth           string `json:"date_of_birth"`
	Gender                Gender `json:"gender"`
	PhoneNumber           string `json:"phone_number"`
	Email                 string `json:"email"`
	Address               string `json:"address"`
	EmergencyContactName  string `json:"emergency_contact_name"`
	EmergencyContactPhone string `json:"emergency_contact_phone"`
	MedicalHistory        string `json:"medical_history"`
	CurrentMedications    string `json:"current_medications"`
	Allergies             string `json:"allergies"`
}

// RegistrationForm is the intake payload. Attachment URLs stand in for the
// uploaded CT, MRI and lab documents; only metadata is stored.
type RegistrationForm struct {
	Demographics
	Conditions                   Conditions     `json:"conditions"`
	EmergencyContactRelationship string         `json:"emergency_contact_relationship"`
	Vitals                       *InitialVitals `json:"vitals,omitempty"`
	CTScanURL                    *string        `json:"ct_scan_url,omitempty"`
	MRIScanURL                   *string        `json:"mri_scan_url,omitempty"`
	LabResultsURL                *string        `json:"lab_results_url,omitempty"`
}

// Registration is the outcome of Register. The patient row is always saved;
// Warnings lists the side effects that failed.
type Registration struct {
	Patient  *Patient `json:"patient"`
	Warnings []string `json:"warnings,omitempty"`
}
