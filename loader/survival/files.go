package loadersurvival

import (
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.dedis.ch/onet/v3/log"
)

// Columns of the input table that every dataset must provide
const (
	ColumnCaseID         = "case_id"
	ColumnSlideID        = "slide_id"
	ColumnSurvivalMonths = "survival_months"
	ColumnCensorship     = "censorship"
)

const (
	// slideExtension is stripped from slide identifiers before looking up feature bags
	slideExtension = ".svs"
	// bagExtension is the extension of a precomputed feature bag
	bagExtension = ".pt"
)

// OmicKeys are the covariate suffix keys understood by SelectCovariates
var OmicKeys = []string{"cli", "cnv", "rna", "pro", "mut", "dna"}

// SignatureSuffixes are appended to signature base names to form covariate column names
var SignatureSuffixes = []string{"_mut", "_cnv", "_rna", "_dna"}

func readCSV(filename string) ([][]string, error) {
	csvInputFile, err := os.Open(filename)
	if err != nil {
		log.Error("Error opening " + filename)
		return nil, errors.Wrapf(err, "opening %s", filename)
	}
	defer csvInputFile.Close()

	reader := csv.NewReader(csvInputFile)
	reader.Comma = ','

	lines, err := reader.ReadAll()
	if err != nil {
		log.Error("Error reading "+filename, err)
		return nil, errors.Wrapf(err, "reading %s", filename)
	}
	if len(lines) == 0 {
		return nil, errors.Errorf("%s has no header", filename)
	}

	return lines, nil
}

// isMissing reports whether a CSV cell encodes a missing value
func isMissing(cell string) bool {
	switch strings.TrimSpace(cell) {
	case "", "NA", "NaN", "nan", "null":
		return true
	}
	return false
}

// parseValue parses a covariate cell, missing cells become NaN
func parseValue(cell string) (float64, error) {
	if isMissing(cell) {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(strings.TrimSpace(cell), 64)
}

// formatValue is the inverse of parseValue
func formatValue(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// headerIndex maps every column name of header to its position
func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	return idx
}

// BagPath returns the file holding the feature bag of a slide
func BagPath(featuresDir, slideID string) string {
	return filepath.Join(featuresDir, strings.TrimSuffix(slideID, slideExtension)+bagExtension)
}
