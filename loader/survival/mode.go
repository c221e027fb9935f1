package loadersurvival

import (
	"os"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"go.dedis.ch/onet/v3/log"
)

// Features is the mode-specific payload of an Item
type Features interface {
	isFeatures()
}

// PathFeatures references the feature bags of a patient
type PathFeatures struct {
	SlideIDs []string
}

// OmicFeatures is the normalized covariate vector of a patient
type OmicFeatures struct {
	Omic []float64
}

// PathOmicFeatures carries both the bag references and the covariate vector
type PathOmicFeatures struct {
	SlideIDs []string
	Omic     []float64
}

// CoAttnFeatures carries the bag references and one covariate vector per signature group
type CoAttnFeatures struct {
	SlideIDs []string
	Groups   [][]float64
}

// ClusterFeatures carries the bag references, the cluster id of every bag instance and the
// covariate vector
type ClusterFeatures struct {
	SlideIDs   []string
	ClusterIDs []int
	Omic       []float64
}

func (PathFeatures) isFeatures()     {}
func (OmicFeatures) isFeatures()     {}
func (PathOmicFeatures) isFeatures() {}
func (CoAttnFeatures) isFeatures()   {}
func (ClusterFeatures) isFeatures()  {}

// Mode decides which features an item carries. It is resolved once per dataset.
type Mode interface {
	Name() string
	features(slideIDs []string, covariates []float64) (Features, error)
}

// PathMode items only reference feature bags
type PathMode struct{}

// OmicMode items only carry covariates
type OmicMode struct{}

// PathOmicMode items carry bags and covariates
type PathOmicMode struct{}

// CoAttnMode items carry bags and covariates sliced by signature group
type CoAttnMode struct {
	Groups []SignatureGroup
	// positions of every group column in the covariate vector
	positions [][]int
}

// ClusterMode items carry bags, instance cluster ids and covariates
type ClusterMode struct {
	// ClusterIDs maps a slide id, without extension, to the cluster id of each instance
	ClusterIDs map[string][]int
}

func (PathMode) Name() string     { return "path" }
func (OmicMode) Name() string     { return "omic" }
func (PathOmicMode) Name() string { return "pathomic" }
func (CoAttnMode) Name() string   { return "coattn" }
func (ClusterMode) Name() string  { return "cluster" }

func copySlides(ids []string) []string {
	return append([]string(nil), ids...)
}

func copyVector(v []float64) []float64 {
	return append([]float64(nil), v...)
}

func (PathMode) features(slideIDs []string, _ []float64) (Features, error) {
	return PathFeatures{SlideIDs: copySlides(slideIDs)}, nil
}

func (OmicMode) features(_ []string, covariates []float64) (Features, error) {
	return OmicFeatures{Omic: copyVector(covariates)}, nil
}

func (PathOmicMode) features(slideIDs []string, covariates []float64) (Features, error) {
	return PathOmicFeatures{SlideIDs: copySlides(slideIDs), Omic: copyVector(covariates)}, nil
}

func (m CoAttnMode) features(slideIDs []string, covariates []float64) (Features, error) {
	groups := make([][]float64, len(m.positions))
	for g, pos := range m.positions {
		groups[g] = make([]float64, len(pos))
		for i, p := range pos {
			groups[g][i] = covariates[p]
		}
	}
	return CoAttnFeatures{SlideIDs: copySlides(slideIDs), Groups: groups}, nil
}

func (m ClusterMode) features(slideIDs []string, covariates []float64) (Features, error) {
	ids := make([]int, 0)
	for _, s := range slideIDs {
		c, ok := m.ClusterIDs[strings.TrimSuffix(s, slideExtension)]
		if !ok {
			return nil, errors.Errorf("no cluster ids for slide %s", s)
		}
		ids = append(ids, c...)
	}
	return ClusterFeatures{SlideIDs: copySlides(slideIDs), ClusterIDs: ids, Omic: copyVector(covariates)}, nil
}

// ModeOptions are the inputs some modes need to be resolved
type ModeOptions struct {
	// Groups are required by the coattn mode
	Groups []SignatureGroup
	// Covariates is the active covariate universe the groups index into
	Covariates []string
	// ClusterIDs are used by the cluster mode
	ClusterIDs map[string][]int
}

// ParseMode resolves a mode name into its variant
func ParseMode(name string, opts ModeOptions) (Mode, error) {
	switch name {
	case "path":
		return PathMode{}, nil
	case "omic":
		return OmicMode{}, nil
	case "pathomic":
		return PathOmicMode{}, nil
	case "coattn":
		if len(opts.Groups) == 0 {
			return nil, errors.Wrap(ErrUnknownMode, "coattn requires signature groups")
		}
		idx := make(map[string]int, len(opts.Covariates))
		for i, c := range opts.Covariates {
			idx[c] = i
		}
		positions := make([][]int, len(opts.Groups))
		for g, group := range opts.Groups {
			positions[g] = make([]int, len(group.Columns))
			for i, c := range group.Columns {
				p, ok := idx[c]
				if !ok {
					return nil, errors.Wrapf(ErrUnknownCovariate, "group %s column %s", group.Name, c)
				}
				positions[g][i] = p
			}
		}
		return CoAttnMode{Groups: opts.Groups, positions: positions}, nil
	case "cluster":
		if opts.ClusterIDs == nil {
			log.Warn("Cluster ids not found, every slide will lack cluster ids")
			opts.ClusterIDs = map[string][]int{}
		}
		return ClusterMode{ClusterIDs: opts.ClusterIDs}, nil
	}
	return nil, errors.Wrap(ErrUnknownMode, name)
}

type clusterRow struct {
	SlideID   string `csv:"slide_id"`
	ClusterID int    `csv:"cluster_id"`
}

// ReadClusterIDs reads a slide_id,cluster_id table, one line per bag instance in bag order
func ReadClusterIDs(filename string) (map[string][]int, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", filename)
	}
	defer f.Close()

	rows := make([]*clusterRow, 0)
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, errors.Wrapf(err, "reading %s", filename)
	}
	ids := make(map[string][]int)
	for _, r := range rows {
		key := strings.TrimSuffix(strings.TrimSpace(r.SlideID), slideExtension)
		ids[key] = append(ids[key], r.ClusterID)
	}
	return ids, nil
}
