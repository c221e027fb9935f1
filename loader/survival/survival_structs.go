package loadersurvival

import (
	"strconv"
	"strings"
)

// PatientPK is the primary key of a patient
type PatientPK struct {
	CaseID string
}

// SlideRow is one line of the input table: a slide of a patient with the patient-level fields
type SlideRow struct {
	PK             *PatientPK
	SlideID        string
	SurvivalMonths float64
	Censorship     int
	Covariates     []float64
}

// Patient is the patient-level record derived from the first slide row of a case
type Patient struct {
	PK             *PatientPK
	SurvivalMonths float64
	Censorship     int
	// DiscLabel is the survival interval the patient falls into
	DiscLabel int
	// Label is the joint (DiscLabel, Censorship) class id
	Label int
	// Covariates are aligned with the active covariate columns of the owning dataset or split
	Covariates []float64
}

// ToCSVText renders the patient as a CSV line following HeaderPatient(covariates)
func (p *Patient) ToCSVText() string {
	fields := make([]string, 0, 5+len(p.Covariates))
	fields = append(fields,
		strconv.Quote(p.PK.CaseID),
		strconv.FormatFloat(p.SurvivalMonths, 'g', -1, 64),
		strconv.Itoa(p.Censorship),
		strconv.Itoa(p.DiscLabel),
		strconv.Itoa(p.Label),
	)
	for _, v := range p.Covariates {
		fields = append(fields, formatValue(v))
	}
	return strings.Join(fields, ",")
}

// HeaderPatient is the header matching Patient.ToCSVText
func HeaderPatient(covariates []string) []string {
	return append([]string{ColumnCaseID, ColumnSurvivalMonths, ColumnCensorship, "disc_label", "label"}, covariates...)
}

// SurvivalTable is the parsed input table
type SurvivalTable struct {
	// Covariates are the selected covariate columns, in selection order
	Covariates []string
	Rows       []SlideRow
}

// Patients returns one record per case, taken from the first row of the case, in order of
// first appearance. Labels are left at zero.
func (st *SurvivalTable) Patients() []Patient {
	seen := make(map[string]struct{}, len(st.Rows))
	patients := make([]Patient, 0, len(st.Rows))
	for _, row := range st.Rows {
		if _, ok := seen[row.PK.CaseID]; ok {
			continue
		}
		seen[row.PK.CaseID] = struct{}{}
		patients = append(patients, Patient{
			PK:             row.PK,
			SurvivalMonths: row.SurvivalMonths,
			Censorship:     row.Censorship,
			Covariates:     append([]float64(nil), row.Covariates...),
		})
	}
	return patients
}
