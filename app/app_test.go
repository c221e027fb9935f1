package main

import (
	"database/sql"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ldsec/mmsurv-loader/loader"
	"github.com/ldsec/mmsurv-loader/loader/dbtest"
	"github.com/ldsec/mmsurv-loader/loader/runstore"
	loadersurvival "github.com/ldsec/mmsurv-loader/loader/survival"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/onet/v3/log"
)

const testTable = `case_id,slide_id,survival_months,censorship,age_cli,TP53_mut,EGFR_cnv,EGFR_rna
A,A-1.svs,0,0,50,1,0.5,2.0
A,A-2.svs,0,0,50,1,0.5,2.0
B,B-1.svs,4,1,60,0,,3.0
C,C-1.svs,5,0,70,1,1.5,4.0
D,D-1.svs,10,1,80,0,2.5,5.0
`

const testRunFile = `NumBins = 2
Mode = "omic"
Omics = ["cli", "mut", "cnv", "rna"]
Alpha = 0.15

[Files]
Dataset = "tcga_all_clean.csv"
Splits = "splits_0.csv"
OutputFolder = "converted"
RunStore = "runs"
`

func writeFile(t *testing.T, dir, name, content string) {
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func setupRun(t *testing.T) loader.Config {
	log.SetDebugVisible(1)
	require.NoError(t, os.Unsetenv("DEFAULT_DATA_PATH"))

	dir := t.TempDir()
	writeFile(t, dir, "tcga_all_clean.csv", testTable)
	writeFile(t, dir, "splits_0.csv", ",train,val,test\n0,A,D,\n1,B,,\n2,C,,\n")
	writeFile(t, dir, "files.toml", testRunFile)

	conf, err := loader.LoadConfig(filepath.Join(dir, "files.toml"))
	require.NoError(t, err)
	return conf
}

func readLines(t *testing.T, filename string) []string {
	buf, err := ioutil.ReadFile(filename)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(buf)), "\n")
}

func TestConvertAndApply(t *testing.T) {
	conf := setupRun(t)

	runID, err := runConvert(conf, false, "mmsurv")
	require.NoError(t, err)

	out := conf.Files.OutputFolder
	assert.Len(t, readLines(t, filepath.Join(out, "train.csv")), 4)
	assert.Len(t, readLines(t, filepath.Join(out, "val.csv")), 2)
	assert.Len(t, readLines(t, filepath.Join(out, "test.csv")), 1)

	stats, err := loadersurvival.ReadStatsCSV(filepath.Join(out, "train_stats.csv"))
	require.NoError(t, err)
	assert.Equal(t, []string{"age_cli", "TP53_mut", "EGFR_cnv", "EGFR_rna"}, stats.Columns())

	store, err := runstore.Open(conf.Files.RunStore)
	require.NoError(t, err)
	mode, breaks, _, err := store.GetRun(runID)
	require.NoError(t, err)
	require.NoError(t, store.Close())
	assert.Equal(t, "omic", mode)
	// fit on the train cases A, B and C only
	assert.Equal(t, loadersurvival.TimeBreaks{0, 4, 6}, breaks)
	written, err := loadersurvival.ReadTimeBreaksCSV(filepath.Join(out, "time_breaks.csv"))
	require.NoError(t, err)
	assert.Equal(t, breaks, written)

	require.NoError(t, runApply(conf, runSource{runID: runID}))
	all := readLines(t, filepath.Join(out, "all.csv"))
	require.Len(t, all, 5)
	// D: age (80 - 60) / 10
	assert.True(t, strings.HasPrefix(all[4], `"D",10,1,1,3,2,`), all[4])

	// same result from the statistics file
	byRun := all
	conf.Files.Stats = filepath.Join(out, "train_stats.csv")
	require.NoError(t, runApply(conf, runSource{}))
	assert.Equal(t, byRun, readLines(t, filepath.Join(out, "all.csv")))
}

func TestConvertFitsBreaksOnTrainCases(t *testing.T) {
	conf := setupRun(t)
	dir := filepath.Dir(conf.Files.Dataset)
	// D is in the val split
	writeFile(t, dir, "tcga_all_clean.csv", strings.Replace(testTable, "D,D-1.svs,10,", "D,D-1.svs,1000,", 1))

	runID, err := runConvert(conf, false, "mmsurv")
	require.NoError(t, err)

	want, err := loadersurvival.QuantileBreaks([]float64{0, 4, 5}, conf.NumBins)
	require.NoError(t, err)
	store, err := runstore.Open(conf.Files.RunStore)
	require.NoError(t, err)
	_, breaks, _, err := store.GetRun(runID)
	require.NoError(t, err)
	require.NoError(t, store.Close())
	assert.Equal(t, want, breaks)

	// the val case lands in the last interval
	val := readLines(t, filepath.Join(conf.Files.OutputFolder, "val.csv"))
	require.Len(t, val, 2)
	assert.True(t, strings.HasPrefix(val[1], `"D",1000,1,1,3,`), val[1])

	// applying the persisted breaks to the whole table does not refit them
	conf.Files.Stats = filepath.Join(conf.Files.OutputFolder, "train_stats.csv")
	require.NoError(t, runApply(conf, runSource{}))
	all := readLines(t, filepath.Join(conf.Files.OutputFolder, "all.csv"))
	require.Len(t, all, 5)
	assert.True(t, strings.HasPrefix(all[4], `"D",1000,1,1,3,`), all[4])
}

func TestConvertAndApplyDB(t *testing.T) {
	conf := setupRun(t)
	dsn := "app-" + t.Name()
	defer func(open func(loader.DBSettings) (*sql.DB, error)) { openDB = open }(openDB)
	openDB = func(loader.DBSettings) (*sql.DB, error) {
		return sql.Open(dbtest.DriverName, dsn)
	}

	runID, err := runConvert(conf, true, "mmsurv")
	require.NoError(t, err)
	assert.Contains(t, dbtest.Statements(dsn)[0], `CREATE SCHEMA IF NOT EXISTS "mmsurv";`)

	out := conf.Files.OutputFolder
	require.NoError(t, runApply(conf, runSource{runID: runID}))
	byRun := readLines(t, filepath.Join(out, "all.csv"))

	require.NoError(t, runApply(conf, runSource{runID: runID, db: true, schema: "mmsurv"}))
	assert.Equal(t, byRun, readLines(t, filepath.Join(out, "all.csv")))

	err = runApply(conf, runSource{runID: "unknown", db: true, schema: "mmsurv"})
	assert.Equal(t, loadersurvival.ErrUnknownRun, errors.Cause(err))
	conf.Files.Stats = filepath.Join(out, "train_stats.csv")
	assert.Error(t, runApply(conf, runSource{db: true, schema: "mmsurv"}))
}

func TestApplyWithoutStatistics(t *testing.T) {
	conf := setupRun(t)
	err := runApply(conf, runSource{})
	assert.Equal(t, loadersurvival.ErrMissingStatsColumn, errors.Cause(err))

	err = runApply(conf, runSource{runID: "unknown"})
	assert.Equal(t, runstore.ErrRunNotFound, errors.Cause(err))

	// statistics without the time breaks of the same run
	conf.Files.Stats = filepath.Join(filepath.Dir(conf.Files.Dataset), "train_stats.csv")
	writeFile(t, filepath.Dir(conf.Files.Dataset), "train_stats.csv", ",median,mean,std\nage_cli,60,60,10\n")
	assert.Error(t, runApply(conf, runSource{}))
}

func TestRunSplits(t *testing.T) {
	conf := setupRun(t)
	require.NoError(t, runSplits(conf, 2, 0, 0, 1))

	for _, name := range []string{"splits_0.csv", "splits_1.csv"} {
		assign, err := loadersurvival.ReadSplitsCSV(filepath.Join(conf.Files.OutputFolder, name))
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B", "C", "D"}, assign.Train)
	}

	// every joint class has a single patient
	assert.Error(t, runSplits(conf, 1, 1, 1, 1))
}

func TestRunLoss(t *testing.T) {
	conf := setupRun(t)
	dir := filepath.Dir(conf.Files.Dataset)

	writeFile(t, dir, "hazards.csv", "case_id,h_0,h_1\nA,0.5,0.5\nD,0.2,0.4\n")
	// no time breaks persisted yet
	_, err := runLoss(conf, filepath.Join(dir, "hazards.csv"), runSource{})
	assert.Error(t, err)
	runID, err := runConvert(conf, false, "mmsurv")
	require.NoError(t, err)

	rows, err := runLoss(conf, filepath.Join(dir, "hazards.csv"), runSource{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "nll", rows[0].Loss)
	assert.Equal(t, 2, rows[0].Samples)
	want := (math.Log(2) + 0.85*-math.Log(0.48)) / 2
	assert.InDelta(t, want, rows[0].Value, 1e-9)
	assert.Equal(t, "ce", rows[1].Loss)
	assert.Len(t, readLines(t, filepath.Join(conf.Files.OutputFolder, "losses.csv")), 3)

	byRun, err := runLoss(conf, filepath.Join(dir, "hazards.csv"), runSource{runID: runID})
	require.NoError(t, err)
	assert.Equal(t, rows, byRun)

	writeFile(t, dir, "risk.csv", "case_id,h_0\nA,1\nB,2\n")
	rows, err = runLoss(conf, filepath.Join(dir, "risk.csv"), runSource{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "cox", rows[0].Loss)
	assert.InDelta(t, (math.Log(math.E+math.Exp(2))-1)/2, rows[0].Value, 1e-9)

	writeFile(t, dir, "bad.csv", "case_id,h_0,h_1,h_2\nA,0.1,0.2,0.3\n")
	_, err = runLoss(conf, filepath.Join(dir, "bad.csv"), runSource{})
	assert.Error(t, err)

	writeFile(t, dir, "unknown.csv", "case_id,h_0,h_1\nZ,0.1,0.2\n")
	_, err = runLoss(conf, filepath.Join(dir, "unknown.csv"), runSource{})
	assert.Equal(t, loadersurvival.ErrUnknownCase, errors.Cause(err))
}
