package main

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/ldsec/mmsurv-loader/loader"
	loadersurvival "github.com/ldsec/mmsurv-loader/loader/survival"
	"github.com/ldsec/mmsurv-loader/loader/survloss"
	"github.com/pkg/errors"
	"go.dedis.ch/onet/v3/log"
	"gopkg.in/urfave/cli.v1"
)

const hazardPrefix = "h_"

// lossRow is one line of the loss report
type lossRow struct {
	Loss    string  `csv:"loss"`
	Alpha   float64 `csv:"alpha"`
	Samples int     `csv:"samples"`
	Value   float64 `csv:"value"`
}

// readHazards reads a case_id,h_0,...,h_{K-1} table
func readHazards(filename string) ([]string, [][]float64, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "opening %s", filename)
	}
	defer f.Close()

	rows, err := gocsv.CSVToMaps(f)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "reading %s", filename)
	}
	if len(rows) == 0 {
		return nil, nil, errors.Errorf("%s has no predictions", filename)
	}

	k := 0
	for col := range rows[0] {
		if strings.HasPrefix(col, hazardPrefix) {
			k++
		}
	}
	ids := make([]string, len(rows))
	hazards := make([][]float64, len(rows))
	for i, row := range rows {
		ids[i] = strings.TrimSpace(row[loadersurvival.ColumnCaseID])
		if ids[i] == "" {
			return nil, nil, errors.Wrapf(loadersurvival.ErrMissingColumn, "%s line %d: %s", filename, i+2, loadersurvival.ColumnCaseID)
		}
		hazards[i] = make([]float64, k)
		for j := 0; j < k; j++ {
			col := hazardPrefix + strconv.Itoa(j)
			cell, ok := row[col]
			if !ok {
				return nil, nil, errors.Wrapf(loadersurvival.ErrMissingColumn, "%s: %s", filename, col)
			}
			if hazards[i][j], err = strconv.ParseFloat(strings.TrimSpace(cell), 64); err != nil {
				return nil, nil, errors.Wrapf(err, "%s line %d: %s", filename, i+2, col)
			}
		}
	}
	return ids, hazards, nil
}

// newBatch joins the predictions with the labels of the dataset
func newBatch(d *loadersurvival.Dataset, ids []string, hazards [][]float64) (survloss.Batch, error) {
	byCase := make(map[string]loadersurvival.Patient, d.Len())
	for _, p := range d.All().Patients() {
		byCase[p.PK.CaseID] = p
	}
	b := survloss.Batch{
		Hazards:    hazards,
		Labels:     make([]int, len(ids)),
		Censorship: make([]float64, len(ids)),
		Times:      make([]float64, len(ids)),
	}
	for i, id := range ids {
		p, ok := byCase[id]
		if !ok {
			return survloss.Batch{}, errors.Wrap(loadersurvival.ErrUnknownCase, id)
		}
		b.Labels[i] = p.DiscLabel
		b.Censorship[i] = float64(p.Censorship)
		b.Times[i] = p.SurvivalMonths
	}
	return b, nil
}

// evaluateLosses returns the Cox loss for single-column predictions, the discrete losses
// otherwise
func evaluateLosses(b survloss.Batch, numBins int, alpha float64) ([]lossRow, error) {
	n := len(b.Hazards)
	if len(b.Hazards[0]) == 1 && numBins != 1 {
		v, err := survloss.CoxSurvLoss{}.Loss(b)
		if err != nil {
			return nil, err
		}
		return []lossRow{{Loss: "cox", Samples: n, Value: v}}, nil
	}
	if len(b.Hazards[0]) != numBins {
		return nil, errors.Wrapf(survloss.ErrShape, "%d hazards per sample for %d survival intervals", len(b.Hazards[0]), numBins)
	}

	losses := []struct {
		name string
		loss survloss.Loss
	}{
		{"nll", survloss.NLLSurvLoss{Alpha: alpha, Eps: survloss.DefaultEps}},
		{"ce", survloss.CrossEntropySurvLoss{Alpha: alpha, Eps: survloss.DefaultEps}},
	}
	rows := make([]lossRow, 0, len(losses))
	for _, l := range losses {
		v, err := l.loss.Loss(b)
		if err != nil {
			return nil, errors.Wrap(err, l.name)
		}
		rows = append(rows, lossRow{Loss: l.name, Alpha: alpha, Samples: n, Value: v})
	}
	return rows, nil
}

func computeLosses(c *cli.Context) error {
	conf, err := loadRunConfig(c)
	if err != nil {
		log.Error("Error while loading the configuration:", err)
		return err
	}
	src := runSource{runID: c.String(optionRunID), db: c.Bool(optionSaveDB), schema: c.String(optionSchema)}
	rows, err := runLoss(conf, c.String(optionHazards), src)
	if err != nil {
		log.Error("Error while computing the losses:", err)
		return err
	}
	for _, r := range rows {
		log.LLvl1(r.Loss, "loss over", r.Samples, "samples:", r.Value)
	}
	return nil
}

// runLoss evaluates the predictions against the labels and writes losses.csv. The labels use
// the time breaks persisted by convert.
func runLoss(conf loader.Config, hazardsFile string, src runSource) ([]lossRow, error) {
	_, breaks, _, err := loadPersisted(conf, src)
	if err != nil {
		return nil, err
	}
	d, err := buildDataset(conf, breaks, nil)
	if err != nil {
		return nil, err
	}
	ids, hazards, err := readHazards(hazardsFile)
	if err != nil {
		return nil, err
	}
	b, err := newBatch(d, ids, hazards)
	if err != nil {
		return nil, err
	}
	rows, err := evaluateLosses(b, d.TimeBreaks().NumBins(), conf.Alpha)
	if err != nil {
		return nil, err
	}

	filename := filepath.Join(conf.Files.OutputFolder, "losses.csv")
	if err := os.MkdirAll(conf.Files.OutputFolder, os.ModePerm); err != nil {
		return nil, errors.Wrapf(err, "creating %s", conf.Files.OutputFolder)
	}
	out, err := os.Create(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "creating %s", filename)
	}
	defer out.Close()
	if err := gocsv.MarshalFile(&rows, out); err != nil {
		return nil, errors.Wrapf(err, "writing %s", filename)
	}
	return rows, nil
}
