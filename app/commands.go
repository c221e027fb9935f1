package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ldsec/mmsurv-loader/loader"
	"github.com/ldsec/mmsurv-loader/loader/runstore"
	loadersurvival "github.com/ldsec/mmsurv-loader/loader/survival"
	"github.com/pkg/errors"
	"go.dedis.ch/onet/v3/log"
	"gopkg.in/urfave/cli.v1"
)

// loadRunConfig reads the configuration file and applies the command line overrides
func loadRunConfig(c *cli.Context) (loader.Config, error) {
	conf, err := loader.LoadConfig(c.GlobalString(optionConfigFile))
	if err != nil {
		return loader.Config{}, err
	}
	if mode := c.String(optionMode); mode != "" {
		conf.Mode = mode
	}
	if bins := c.Int(optionNumBins); bins > 0 {
		conf.NumBins = bins
	}
	if out := c.String(optionOutput); out != "" {
		conf.Files.OutputFolder = out
	}
	return conf, nil
}

// openDB connects to the statistics database
var openDB = loadersurvival.OpenDB

// statsFile is where convert writes the training statistics
func statsFile(conf loader.Config) string {
	if conf.Files.Stats != "" {
		return conf.Files.Stats
	}
	return filepath.Join(conf.Files.OutputFolder, "train_stats.csv")
}

// timeBreaksFile is where convert writes the time breaks, next to the statistics by default
func timeBreaksFile(conf loader.Config) string {
	if conf.Files.TimeBreaks != "" {
		return conf.Files.TimeBreaks
	}
	return filepath.Join(filepath.Dir(statsFile(conf)), "time_breaks.csv")
}

// buildDataset parses the input table and the optional signature and cluster files. Non-nil
// breaks are reused; otherwise they are fit on the durations of referenceCases.
func buildDataset(conf loader.Config, breaks loadersurvival.TimeBreaks, referenceCases []string) (*loadersurvival.Dataset, error) {
	omics := conf.Omics
	if len(omics) == 0 {
		omics = loadersurvival.OmicKeys
	}
	st, err := loadersurvival.ParseSurvivalTable(conf.Files.Dataset, omics)
	if err != nil {
		return nil, err
	}

	opts := loadersurvival.DatasetOptions{
		NumBins:        conf.NumBins,
		Mode:           conf.Mode,
		TimeBreaks:     breaks,
		ReferenceCases: referenceCases,
	}
	if conf.Files.Signatures != "" {
		if opts.Signatures, err = loadersurvival.ParseSignatures(conf.Files.Signatures); err != nil {
			return nil, err
		}
	}
	if conf.Files.ClusterIDs != "" {
		if opts.ClusterIDs, err = loadersurvival.ReadClusterIDs(conf.Files.ClusterIDs); err != nil {
			return nil, err
		}
	}

	d, err := loadersurvival.NewDataset(st, opts)
	if err != nil {
		return nil, err
	}
	if _, omicOnly := d.Mode().(loadersurvival.OmicMode); !omicOnly && conf.Files.FeaturesDir != "" {
		checkBags(d.Registry(), conf.Files.FeaturesDir)
	}
	return d, nil
}

// checkBags reports the slides whose feature bag is not in featuresDir
func checkBags(reg *loadersurvival.PatientRegistry, featuresDir string) {
	missing := 0
	for _, caseID := range reg.Cases() {
		ids, _ := reg.SlideIDs(caseID)
		for _, id := range ids {
			if _, err := os.Stat(loadersurvival.BagPath(featuresDir, id)); err != nil {
				log.Warn("No feature bag for slide", id, "of case", caseID)
				missing++
			}
		}
	}
	log.Lvl2("Feature bags missing:", missing)
}

func convertSplits(c *cli.Context) error {
	conf, err := loadRunConfig(c)
	if err != nil {
		log.Error("Error while loading the configuration:", err)
		return err
	}
	runID, err := runConvert(conf, c.Bool(optionSaveDB), c.String(optionSchema))
	if err != nil {
		log.Error("Error while converting the dataset:", err)
		return err
	}
	log.LLvl1("Run", runID, "done")
	return nil
}

// runConvert labels the dataset with time breaks fit on the training cases, normalizes the
// configured splits with the training statistics and persists the breaks and statistics. It
// returns the id of the new run.
func runConvert(conf loader.Config, saveDB bool, schema string) (string, error) {
	assign, err := loadersurvival.ReadSplitsCSV(conf.Files.Splits)
	if err != nil {
		return "", err
	}

	log.LLvl1("Converting", conf.Files.Dataset)
	d, err := buildDataset(conf, nil, append([]string{}, assign.Train...))
	if err != nil {
		return "", err
	}
	d.Summarize()

	train, val, test, stats, err := d.ReturnSplits(assign)
	if err != nil {
		return "", err
	}
	log.Lvl2("Balanced sampling weights of the train split:", loadersurvival.BalancedWeights(train))

	outputs := []struct {
		name  string
		split *loadersurvival.Split
	}{
		{"train", train},
		{"val", val},
		{"test", test},
	}
	for _, o := range outputs {
		filename := filepath.Join(conf.Files.OutputFolder, o.name+".csv")
		if err := loadersurvival.ConvertSplit(o.split, filename); err != nil {
			return "", err
		}
		log.Lvl1("Wrote", o.split.Len(), "patients to", filename)
	}

	if err := loadersurvival.WriteStatsCSV(stats, statsFile(conf)); err != nil {
		return "", err
	}
	if err := loadersurvival.WriteTimeBreaksCSV(d.TimeBreaks(), timeBreaksFile(conf)); err != nil {
		return "", err
	}

	runID, err := runstore.NewRunID()
	if err != nil {
		return "", err
	}
	if conf.Files.RunStore != "" {
		store, err := runstore.Open(conf.Files.RunStore)
		if err != nil {
			return "", err
		}
		defer store.Close()
		if err := store.PutRun(runID, d.Mode().Name(), d.TimeBreaks(), stats); err != nil {
			return "", err
		}
	}

	if saveDB {
		db, err := openDB(conf.DB)
		if err != nil {
			return "", err
		}
		defer db.Close()
		if _, err := db.Exec(loadersurvival.StatsLoadingScript(schema)); err != nil {
			return "", errors.Wrap(err, "creating statistics tables")
		}
		if err := loadersurvival.SaveStatsDB(db, schema, runID, d.TimeBreaks(), stats); err != nil {
			return "", err
		}
		log.Lvl1("Stored run", runID, "in schema", schema)
	}
	return runID, nil
}

func applyStats(c *cli.Context) error {
	conf, err := loadRunConfig(c)
	if err != nil {
		log.Error("Error while loading the configuration:", err)
		return err
	}
	src := runSource{runID: c.String(optionRunID), db: c.Bool(optionSaveDB), schema: c.String(optionSchema)}
	if err := runApply(conf, src); err != nil {
		log.Error("Error while applying the statistics:", err)
		return err
	}
	return nil
}

// loadRun returns the mode, breaks and statistics of a stored run
func loadRun(conf loader.Config, runID string) (string, loadersurvival.TimeBreaks, *loadersurvival.Stats, error) {
	if conf.Files.RunStore == "" {
		return "", nil, nil, errors.New("no run store configured")
	}
	store, err := runstore.Open(conf.Files.RunStore)
	if err != nil {
		return "", nil, nil, err
	}
	defer store.Close()
	return store.GetRun(runID)
}

// runSource tells where the persisted time breaks and statistics of a run are read from: the
// database when db is set, the run store when only runID is set, the CSV files otherwise.
type runSource struct {
	runID  string
	db     bool
	schema string
}

// loadPersisted returns the mode (empty when not recorded), breaks and statistics of src. The
// statistics are nil when src is the CSV files and no statistics file is configured.
func loadPersisted(conf loader.Config, src runSource) (string, loadersurvival.TimeBreaks, *loadersurvival.Stats, error) {
	switch {
	case src.db:
		if src.runID == "" {
			return "", nil, nil, errors.New("reading from the database needs a run id")
		}
		db, err := openDB(conf.DB)
		if err != nil {
			return "", nil, nil, err
		}
		defer db.Close()
		breaks, stats, err := loadersurvival.LoadStatsDB(db, src.schema, src.runID)
		return "", breaks, stats, err

	case src.runID != "":
		return loadRun(conf, src.runID)
	}

	breaks, err := loadersurvival.ReadTimeBreaksCSV(timeBreaksFile(conf))
	if err != nil {
		return "", nil, nil, err
	}
	if conf.Files.Stats == "" {
		return "", breaks, nil, nil
	}
	stats, err := loadersurvival.ReadStatsCSV(conf.Files.Stats)
	return "", breaks, stats, err
}

// runApply normalizes every patient with persisted breaks and statistics and writes them to
// all.csv
func runApply(conf loader.Config, src runSource) error {
	if src.runID == "" && conf.Files.Stats == "" {
		return errors.Wrap(loadersurvival.ErrMissingStatsColumn, "no statistics file configured")
	}
	mode, breaks, stats, err := loadPersisted(conf, src)
	if err != nil {
		return err
	}
	if mode != "" && mode != conf.Mode {
		log.Lvl1("Using mode", mode, "of run", src.runID)
		conf.Mode = mode
	}

	log.LLvl1("Applying statistics to", conf.Files.Dataset)
	d, err := buildDataset(conf, breaks, nil)
	if err != nil {
		return err
	}
	all, err := d.ReturnAll(stats)
	if err != nil {
		return err
	}
	return loadersurvival.ConvertSplit(all, filepath.Join(conf.Files.OutputFolder, "all.csv"))
}

func generateSplits(c *cli.Context) error {
	conf, err := loadRunConfig(c)
	if err != nil {
		log.Error("Error while loading the configuration:", err)
		return err
	}
	err = runSplits(conf, c.Int(optionFolds), c.Int(optionValNum), c.Int(optionTestNum), c.Float64(optionLabelFrac))
	if err != nil {
		log.Error("Error while generating the splits:", err)
		return err
	}
	return nil
}

// runSplits draws folds stratified on the joint labels and writes splits_<k>.csv files. No split
// exists yet, so the labels used for stratification come from breaks fit on every case.
func runSplits(conf loader.Config, folds, valNum, testNum int, labelFrac float64) error {
	d, err := buildDataset(conf, nil, nil)
	if err != nil {
		return err
	}
	classes := d.All().ClassIndices()
	opts := loadersurvival.SplitOptions{
		ValNum:    make([]int, len(classes)),
		TestNum:   make([]int, len(classes)),
		NSplits:   folds,
		Seed:      conf.Seed,
		LabelFrac: labelFrac,
	}
	for i := range classes {
		opts.ValNum[i] = valNum
		opts.TestNum[i] = testNum
	}

	indices, err := loadersurvival.GenerateSplits(classes, d.Len(), opts)
	if err != nil {
		return err
	}
	for k, idx := range indices {
		filename := filepath.Join(conf.Files.OutputFolder, "splits_"+strconv.Itoa(k)+".csv")
		if err := loadersurvival.WriteSplitsCSV(d.SplitFromIndices(idx), filename); err != nil {
			return err
		}
	}
	log.LLvl1("Wrote", len(indices), "folds to", conf.Files.OutputFolder)
	return nil
}

func printScript(c *cli.Context) error {
	fmt.Print(loadersurvival.StatsLoadingScript(c.String(optionSchema)))
	return nil
}

func listRuns(c *cli.Context) error {
	conf, err := loader.LoadConfig(c.GlobalString(optionConfigFile))
	if err != nil {
		log.Error("Error while loading the configuration:", err)
		return err
	}
	if conf.Files.RunStore == "" {
		return errors.New("no run store configured")
	}
	store, err := runstore.Open(conf.Files.RunStore)
	if err != nil {
		return err
	}
	defer store.Close()

	ids, err := store.Runs()
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}
