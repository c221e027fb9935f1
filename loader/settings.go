package loader

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"go.dedis.ch/onet/v3/log"
)

// DBSettings stores the database connection settings
type DBSettings struct {
	DBhost     string
	DBport     int
	DBname     string
	DBuser     string
	DBpassword string
}

// ConnString returns the lib/pq connection string for the settings
func (s DBSettings) ConnString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		s.DBhost, s.DBport, s.DBuser, s.DBpassword, s.DBname)
}

// Files is the object structure behind the [files] table of the run configuration
type Files struct {
	Dataset      string
	Splits       string
	Signatures   string
	Stats        string
	TimeBreaks   string
	ClusterIDs   string
	FeaturesDir  string
	OutputFolder string
	RunStore     string
}

// Config is the object structure behind the run configuration file (files.toml)
type Config struct {
	Files Files

	// NumBins is the number of discrete survival intervals
	NumBins int
	// Mode is one of path, omic, pathomic, coattn, cluster
	Mode string
	// Omics lists the covariate suffix keys to select (cli, cnv, rna, pro, mut, dna)
	Omics []string
	// Alpha weights the uncensored term of the survival losses
	Alpha float64
	Seed  int64

	DB DBSettings
}

// DefaultConfig returns the values used when the configuration file does not set them
func DefaultConfig() Config {
	return Config{
		NumBins: 4,
		Mode:    "omic",
		Alpha:   0.15,
		Seed:    7,
		Files:   Files{OutputFolder: "converted/"},
	}
}

// LoadConfig decodes the TOML file at path on top of DefaultConfig. Relative file paths are
// resolved against DEFAULT_DATA_PATH when it is set, otherwise against the directory of the file.
func LoadConfig(path string) (Config, error) {
	conf := DefaultConfig()
	if _, err := toml.DecodeFile(path, &conf); err != nil {
		return Config{}, errors.Wrapf(err, "decoding configuration %s", path)
	}
	if conf.NumBins < 1 {
		return Config{}, errors.Errorf("configuration %s: NumBins must be positive, got %d", path, conf.NumBins)
	}

	base := os.Getenv("DEFAULT_DATA_PATH")
	if base == "" {
		base = filepath.Dir(path)
		log.Lvl2("DEFAULT_DATA_PATH not set, resolving files against", base)
	}
	conf.Files = conf.Files.resolve(base)
	return conf, nil
}

func (f Files) resolve(base string) Files {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	return Files{
		Dataset:      abs(f.Dataset),
		Splits:       abs(f.Splits),
		Signatures:   abs(f.Signatures),
		Stats:        abs(f.Stats),
		TimeBreaks:   abs(f.TimeBreaks),
		ClusterIDs:   abs(f.ClusterIDs),
		FeaturesDir:  abs(f.FeaturesDir),
		OutputFolder: abs(f.OutputFolder),
		RunStore:     abs(f.RunStore),
	}
}
