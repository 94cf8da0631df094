package reporting

// Measure is a grouped count evaluated by the repository. Each SQL returns
// (label TEXT, total BIGINT) rows.
type Measure struct {
	ID  string
	SQL string
}

var (
	measureGender = Measure{
		ID:  "patient-gender",
		SQL: `SELECT gender, COUNT(*) FROM patients GROUP BY gender`,
	}
	measureAgeGroup = Measure{
		ID: "patient-age-group",
		SQL: `SELECT CASE
				WHEN a <= 18 THEN '0-18'
				WHEN a <= 40 THEN '19-40'
				WHEN a <= 60 THEN '41-60'
				WHEN a <= 80 THEN '61-80'
				ELSE '81+'
			END, COUNT(*)
			FROM (SELECT date_part('year', age($1::date, date_of_birth))::int AS a FROM patients) p
			GROUP BY 1`,
	}
	measureConsultationStatus = Measure{
		ID:  "consultation-status",
		SQL: `SELECT status, COUNT(*) FROM consultations GROUP BY status`,
	}
	measureTPAStatus = Measure{
		ID:  "tpa-status",
		SQL: `SELECT status, COUNT(*) FROM tpa_requests GROUP BY status`,
	}
)

// AgeGroups lists the age distribution labels in display order.
var AgeGroups = []string{"0-18", "19-40", "41-60", "61-80", "81+"}

var (
	genders              = []string{"M", "F", "O"}
	consultationStatuses = []string{"REQUESTED", "IN_PROGRESS", "COMPLETED", "CANCELLED"}
	tpaStatuses          = []string{"REQUESTED", "APPROVED", "DENIED"}
)
