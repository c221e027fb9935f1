package loadersurvival

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.dedis.ch/onet/v3/log"
)

// SelectCovariates returns the columns of header whose last three characters equal one of the
// omic keys, grouped by key in the order of omics.
func SelectCovariates(header []string, omics []string) []string {
	covariates := make([]string, 0)
	for _, key := range omics {
		count := 0
		for _, col := range header {
			if len(col) >= 3 && col[len(col)-3:] == key {
				covariates = append(covariates, col)
				count++
			}
		}
		log.Lvl2("Selected omic", key, "with", count, "columns")
	}
	return covariates
}

// ParseSurvivalTable reads the input table and keeps the covariate columns selected by omics
func ParseSurvivalTable(filename string, omics []string) (*SurvivalTable, error) {
	lines, err := readCSV(filename)
	if err != nil {
		return nil, err
	}
	covariates := SelectCovariates(lines[0], omics)
	log.Lvl1("Number of selected tabular data:", len(covariates))
	return NewSurvivalTable(lines, covariates)
}

// NewSurvivalTable builds a table from CSV lines (header first) keeping the given covariates
func NewSurvivalTable(lines [][]string, covariates []string) (*SurvivalTable, error) {
	if len(lines) == 0 {
		return nil, errors.Wrap(ErrMissingColumn, "empty table")
	}

	/*
		Struct of the input table

		case_id,          patient PK
		slide_id,         one row per slide
		survival_months,
		censorship,       1 = censored
		<covariates...>
	*/

	idx := headerIndex(lines[0])
	position := func(name string) (int, error) {
		i, ok := idx[name]
		if !ok {
			return 0, errors.Wrap(ErrMissingColumn, name)
		}
		return i, nil
	}

	var fixed [4]int
	for i, name := range []string{ColumnCaseID, ColumnSlideID, ColumnSurvivalMonths, ColumnCensorship} {
		p, err := position(name)
		if err != nil {
			return nil, err
		}
		fixed[i] = p
	}
	covIdx := make([]int, len(covariates))
	for i, name := range covariates {
		p, err := position(name)
		if err != nil {
			return nil, err
		}
		covIdx[i] = p
	}

	st := &SurvivalTable{Covariates: append([]string(nil), covariates...)}
	pks := make(map[string]*PatientPK)

	//skip header
	for n, line := range lines[1:] {
		caseID := strings.TrimSpace(line[fixed[0]])
		pk, ok := pks[caseID]
		if !ok {
			pk = &PatientPK{CaseID: caseID}
			pks[caseID] = pk
		}

		months, err := strconv.ParseFloat(strings.TrimSpace(line[fixed[2]]), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d: %s", n+2, ColumnSurvivalMonths)
		}
		cens, err := strconv.ParseFloat(strings.TrimSpace(line[fixed[3]]), 64)
		if err != nil || (cens != 0 && cens != 1) {
			return nil, errors.Errorf("line %d: %s must be 0 or 1, got %q", n+2, ColumnCensorship, line[fixed[3]])
		}

		row := SlideRow{
			PK:             pk,
			SlideID:        strings.TrimSpace(line[fixed[1]]),
			SurvivalMonths: months,
			Censorship:     int(cens),
			Covariates:     make([]float64, len(covIdx)),
		}
		for i, p := range covIdx {
			v, err := parseValue(line[p])
			if err != nil {
				return nil, errors.Wrapf(err, "line %d: %s", n+2, covariates[i])
			}
			row.Covariates[i] = v
		}
		st.Rows = append(st.Rows, row)
	}

	log.Lvl2("Total number of cases:", len(pks), "| slides:", len(st.Rows))
	return st, nil
}

// ConvertSplit writes the patients of a split, ordered by case id, to filename
func ConvertSplit(split *Split, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), os.ModePerm); err != nil {
		return errors.Wrapf(err, "creating directory for %s", filename)
	}
	csvOutputFile, err := os.Create(filename)
	if err != nil {
		log.Error("Error opening [" + filename + "] " + err.Error())
		return errors.Wrapf(err, "creating %s", filename)
	}
	defer csvOutputFile.Close()

	headerString := ""
	for _, header := range HeaderPatient(split.Covariates()) {
		headerString += "\"" + header + "\","
	}
	// remove the last ,
	if _, err := csvOutputFile.WriteString(headerString[:len(headerString)-1] + "\n"); err != nil {
		return err
	}

	return NewSortedPatientTable(split.patients).ForEach(func(p Patient) error {
		_, err := csvOutputFile.WriteString(p.ToCSVText() + "\n")
		return err
	})
}
