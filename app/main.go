package main

import (
	"os"

	"go.dedis.ch/onet/v3/log"
	"gopkg.in/urfave/cli.v1"
)

const (
	// BinaryName is the name of the binary
	BinaryName = "mmsurv-loader"

	// Version of the binary
	Version = "0.1"

	optionConfigFile      = "config"
	optionConfigFileShort = "c"

	optionDebug = "debug"

	optionMode      = "mode"
	optionNumBins   = "bins"
	optionOutput    = "output"
	optionRunID     = "run"
	optionSaveDB    = "db"
	optionSchema    = "schema"
	optionHazards   = "hazards"
	optionFolds     = "folds"
	optionValNum    = "val"
	optionTestNum   = "test"
	optionLabelFrac = "label-frac"
)

func main() {
	cliApp := cli.NewApp()
	cliApp.Name = BinaryName
	cliApp.Usage = "Prepare multi-modal patient data for discrete-time survival models"
	cliApp.Version = Version

	configFlag := cli.StringFlag{
		Name:  optionConfigFile + ", " + optionConfigFileShort,
		Value: "files.toml",
		Usage: "Run configuration file (TOML)",
	}

	datasetFlags := []cli.Flag{
		cli.StringFlag{
			Name:  optionMode,
			Usage: "Dataset mode (path, omic, pathomic, coattn, cluster), overrides the configuration",
		},
		cli.IntFlag{
			Name:  optionNumBins,
			Usage: "Number of survival intervals, overrides the configuration",
		},
		cli.StringFlag{
			Name:  optionOutput + ", o",
			Usage: "Output folder, overrides the configuration",
		},
	}

	schemaFlag := cli.StringFlag{
		Name:  optionSchema,
		Value: "mmsurv",
		Usage: "Database schema of the statistics tables",
	}

	// where apply and loss read a stored run from
	runFlags := []cli.Flag{
		cli.StringFlag{
			Name:  optionRunID,
			Usage: "Stored run to take the time breaks and statistics from, instead of the CSV files written by convert",
		},
		cli.BoolFlag{
			Name:  optionSaveDB,
			Usage: "Read the run from the Postgres database instead of the run store",
		},
		schemaFlag,
	}

	cliApp.Flags = []cli.Flag{
		cli.IntFlag{
			Name:  optionDebug + ", d",
			Value: 1,
			Usage: "debug-level: 1 for terse, 5 for maximal",
		},
		configFlag,
	}

	cliApp.Commands = []cli.Command{
		{
			Name:    "convert",
			Aliases: []string{"c"},
			Usage:   "Label the dataset, normalize the train/val/test splits and persist the training statistics",
			Action:  convertSplits,
			Flags: append([]cli.Flag{
				cli.BoolFlag{
					Name:  optionSaveDB,
					Usage: "Also store the time breaks and statistics in the Postgres database",
				},
				schemaFlag,
			}, datasetFlags...),
		},
		{
			Name:    "apply",
			Aliases: []string{"a"},
			Usage:   "Normalize the whole dataset with persisted training statistics",
			Action:  applyStats,
			Flags:   append(append([]cli.Flag{}, runFlags...), datasetFlags...),
		},
		{
			Name:    "splits",
			Aliases: []string{"s"},
			Usage:   "Generate class-stratified train/val/test folds",
			Action:  generateSplits,
			Flags: append([]cli.Flag{
				cli.IntFlag{
					Name:  optionFolds + ", k",
					Value: 5,
					Usage: "Number of folds",
				},
				cli.IntFlag{
					Name:  optionValNum,
					Value: 1,
					Usage: "Validation samples drawn per class",
				},
				cli.IntFlag{
					Name:  optionTestNum,
					Value: 1,
					Usage: "Test samples drawn per class",
				},
				cli.Float64Flag{
					Name:  optionLabelFrac,
					Value: 1,
					Usage: "Fraction of the remaining samples of each class kept for training",
				},
			}, datasetFlags...),
		},
		{
			Name:    "loss",
			Aliases: []string{"l"},
			Usage:   "Evaluate the survival losses of predicted hazards",
			Action:  computeLosses,
			Flags: append([]cli.Flag{
				cli.StringFlag{
					Name:  optionHazards,
					Usage: "CSV of predicted hazards: case_id,h_0,...,h_{K-1} (a single column is a Cox risk score)",
				},
			}, append(runFlags, datasetFlags...)...),
		},
		{
			Name:   "script",
			Usage:  "Print the SQL creating the statistics tables",
			Action: printScript,
			Flags:  []cli.Flag{schemaFlag},
		},
		{
			Name:   "runs",
			Usage:  "List the runs of the run store",
			Action: listRuns,
		},
	}

	cliApp.Before = func(c *cli.Context) error {
		log.SetDebugVisible(c.GlobalInt(optionDebug))
		return nil
	}

	err := cliApp.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}
