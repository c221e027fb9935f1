package loadersurvival

import "github.com/pkg/errors"

var (
	// ErrNoDurations is returned when quantile binning has no reference durations
	ErrNoDurations = errors.New("no survival durations to derive time breaks from")
	// ErrInvalidBinCount is returned for a non-positive number of bins
	ErrInvalidBinCount = errors.New("number of bins must be positive")
	// ErrNegativeDuration is returned for a negative or undefined survival duration
	ErrNegativeDuration = errors.New("survival duration must be a non-negative number")
	// ErrLabelRange is returned when a bin or censorship value has no joint class id
	ErrLabelRange = errors.New("label out of range")
	// ErrMissingColumn is returned when a table lacks a required column
	ErrMissingColumn = errors.New("missing column")
	// ErrMissingStatsColumn is returned when persisted statistics lack mean or std
	ErrMissingStatsColumn = errors.New("statistics table lacks a required column")
	// ErrUnknownCovariate is returned when statistics do not cover an active covariate
	ErrUnknownCovariate = errors.New("no statistics for covariate")
	// ErrEmptyColumn is returned when a training covariate has no observed value
	ErrEmptyColumn = errors.New("covariate has no observed value in the training split")
	// ErrEmptySplit is returned when statistics are fit on a split without patients
	ErrEmptySplit = errors.New("split has no patients")
	// ErrResidualMissing is returned when a normalized covariate is still missing or undefined
	ErrResidualMissing = errors.New("missing or undefined value left after normalization")
	// ErrUnknownMode is returned for a dataset mode that is not supported
	ErrUnknownMode = errors.New("unknown dataset mode")
	// ErrUnknownCase is returned when a case id is not part of the dataset
	ErrUnknownCase = errors.New("unknown case id")
	// ErrUnknownRun is returned when the database holds no time breaks for a run id
	ErrUnknownRun = errors.New("no stored run with this id")
)
