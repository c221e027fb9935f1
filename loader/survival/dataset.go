package loadersurvival

import (
	"github.com/pkg/errors"
	"go.dedis.ch/onet/v3/log"
)

// DatasetOptions configure NewDataset
type DatasetOptions struct {
	// NumBins is the number of discrete survival intervals K
	NumBins int
	// ReferenceDurations, when set, are used to derive the time breaks instead of the
	// durations of every patient of the table
	ReferenceDurations []float64
	// ReferenceCases, when set, restrict the time breaks to the durations of these cases,
	// typically the training split
	ReferenceCases []string
	// TimeBreaks, when set, are reused as they are, typically the breaks of a stored run
	TimeBreaks TimeBreaks
	// Signatures switch the dataset to signature-grouped covariates
	Signatures []Signature
	// Mode is one of path, omic, pathomic, coattn, cluster
	Mode string
	// ClusterIDs are used by the cluster mode
	ClusterIDs map[string][]int
}

// Dataset is the labelled patient-level view of a survival table. Everything it holds is
// computed once by NewDataset and only read afterwards.
type Dataset struct {
	breaks     TimeBreaks
	encoder    *LabelEncoder
	registry   *PatientRegistry
	covariates []string
	groups     []SignatureGroup
	mode       Mode
	patients   []Patient
}

// NewDataset derives the time breaks, the discrete and joint labels, the covariate universe and
// the mode of the table.
func NewDataset(st *SurvivalTable, opts DatasetOptions) (*Dataset, error) {
	base := st.Patients()

	durations := make([]float64, len(base))
	for i, p := range base {
		durations[i] = p.SurvivalMonths
	}
	breaks := append(TimeBreaks(nil), opts.TimeBreaks...)
	if len(breaks) == 0 {
		reference := opts.ReferenceDurations
		if len(reference) == 0 && opts.ReferenceCases != nil {
			reference = caseDurations(base, opts.ReferenceCases)
			log.Lvl2("Time breaks fitted on", len(reference), "of", len(base), "cases")
		} else if len(reference) == 0 {
			reference = durations
		}
		var err error
		if breaks, err = QuantileBreaks(reference, opts.NumBins); err != nil {
			return nil, err
		}
	} else if breaks.NumBins() < 1 {
		return nil, errors.Wrapf(ErrInvalidBinCount, "%d time breaks", len(breaks))
	}
	log.Lvl1("Time intervals:", breaks)

	registry, err := NewPatientRegistry(st.Rows)
	if err != nil {
		return nil, err
	}

	// first pass: discrete labels
	discLabels, err := breaks.Discretize(durations)
	if err != nil {
		return nil, err
	}

	// second pass: joint labels
	encoder, err := NewLabelEncoder(breaks.NumBins())
	if err != nil {
		return nil, err
	}
	labels := make([]int, len(base))
	for i, p := range base {
		if labels[i], err = encoder.Encode(discLabels[i], p.Censorship); err != nil {
			return nil, errors.Wrapf(err, "case %s", p.PK.CaseID)
		}
	}

	covariates := st.Covariates
	var groups []SignatureGroup
	if len(opts.Signatures) > 0 {
		groups, covariates = ResolveSignatures(opts.Signatures, st.Covariates)
	}
	positions, err := columnPositions(st.Covariates, covariates)
	if err != nil {
		return nil, err
	}

	patients := make([]Patient, len(base))
	for i, p := range base {
		cov := make([]float64, len(positions))
		for j, pos := range positions {
			cov[j] = p.Covariates[pos]
		}
		patients[i] = Patient{
			PK:             p.PK,
			SurvivalMonths: p.SurvivalMonths,
			Censorship:     p.Censorship,
			DiscLabel:      discLabels[i],
			Label:          labels[i],
			Covariates:     cov,
		}
	}

	mode, err := ParseMode(opts.Mode, ModeOptions{Groups: groups, Covariates: covariates, ClusterIDs: opts.ClusterIDs})
	if err != nil {
		return nil, err
	}

	return &Dataset{
		breaks:     breaks,
		encoder:    encoder,
		registry:   registry,
		covariates: append([]string(nil), covariates...),
		groups:     groups,
		mode:       mode,
		patients:   patients,
	}, nil
}

// caseDurations returns the durations of the listed cases that are in patients
func caseDurations(patients []Patient, caseIDs []string) []float64 {
	wanted := make(map[string]struct{}, len(caseIDs))
	for _, id := range caseIDs {
		wanted[id] = struct{}{}
	}
	durations := make([]float64, 0, len(caseIDs))
	for _, p := range patients {
		if _, ok := wanted[p.PK.CaseID]; ok {
			durations = append(durations, p.SurvivalMonths)
		}
	}
	return durations
}

func columnPositions(from, to []string) ([]int, error) {
	idx := make(map[string]int, len(from))
	for i, c := range from {
		idx[c] = i
	}
	positions := make([]int, len(to))
	for i, c := range to {
		p, ok := idx[c]
		if !ok {
			return nil, errors.Wrap(ErrUnknownCovariate, c)
		}
		positions[i] = p
	}
	return positions, nil
}

// TimeBreaks returns a copy of the time breaks
func (d *Dataset) TimeBreaks() TimeBreaks {
	return append(TimeBreaks(nil), d.breaks...)
}

// Encoder is the joint label encoder of the dataset
func (d *Dataset) Encoder() *LabelEncoder {
	return d.encoder
}

// Registry is the case to slides registry of the dataset
func (d *Dataset) Registry() *PatientRegistry {
	return d.registry
}

// Covariates returns the active covariate columns
func (d *Dataset) Covariates() []string {
	return append([]string(nil), d.covariates...)
}

// Groups returns the resolved signature groups, nil without signatures
func (d *Dataset) Groups() []SignatureGroup {
	return append([]SignatureGroup(nil), d.groups...)
}

// OmicSizes returns the size of every signature group, or the single size of the covariate
// vector when items are not grouped
func (d *Dataset) OmicSizes() []int {
	if _, ok := d.mode.(CoAttnMode); !ok {
		return []int{len(d.covariates)}
	}
	sizes := make([]int, len(d.groups))
	for i, g := range d.groups {
		sizes[i] = len(g.Columns)
	}
	return sizes
}

// Mode is the resolved dataset mode
func (d *Dataset) Mode() Mode {
	return d.mode
}

// NumClasses is the number of joint class ids
func (d *Dataset) NumClasses() int {
	return d.encoder.NumClasses()
}

// Len is the number of patients
func (d *Dataset) Len() int {
	return len(d.patients)
}

// All returns a split holding every patient, not normalized
func (d *Dataset) All() *Split {
	return &Split{dataset: d, patients: d.patients}
}

// Split returns the patients of the given cases, in the order of the dataset. Unknown cases are
// reported and skipped.
func (d *Dataset) Split(caseIDs []string) *Split {
	wanted := make(map[string]struct{}, len(caseIDs))
	for _, id := range caseIDs {
		wanted[id] = struct{}{}
	}
	patients := make([]Patient, 0, len(caseIDs))
	for _, p := range d.patients {
		if _, ok := wanted[p.PK.CaseID]; ok {
			patients = append(patients, p)
			delete(wanted, p.PK.CaseID)
		}
	}
	for id := range wanted {
		log.Warn("Case", id, "of the split is not in the dataset")
	}
	return &Split{dataset: d, patients: patients}
}

// SplitAssignment lists the cases of the train, validation and test splits
type SplitAssignment struct {
	Train []string
	Val   []string
	Test  []string
}

// ReturnSplits fits the statistics on the training split and normalizes the three splits with
// them.
func (d *Dataset) ReturnSplits(assign SplitAssignment) (train, val, test *Split, stats *Stats, err error) {
	train = d.Split(assign.Train)
	if stats, err = train.Stats(); err != nil {
		return nil, nil, nil, nil, errors.Wrap(err, "fitting training statistics")
	}

	splits := []*Split{train, d.Split(assign.Val), d.Split(assign.Test)}
	for i, name := range []string{"train", "val", "test"} {
		if splits[i], err = splits[i].Normalize(stats); err != nil {
			return nil, nil, nil, nil, errors.Wrapf(err, "normalizing %s split", name)
		}
	}
	return splits[0], splits[1], splits[2], stats, nil
}

// ReturnAll normalizes every patient with previously persisted training statistics
func (d *Dataset) ReturnAll(stats *Stats) (*Split, error) {
	all := d.All()
	if len(d.covariates) == 0 {
		return all, nil
	}
	if stats == nil {
		return nil, errors.Wrap(ErrMissingStatsColumn, "no statistics given")
	}
	return all.Normalize(stats)
}

// Summarize logs the patient-level and slide-level counts of every class
func (d *Dataset) Summarize() {
	log.Lvl1("################## DATA SUMMARY ##########################")
	log.Lvl1("label column:", ColumnSurvivalMonths)
	log.Lvl1("number of classes:", d.NumClasses())
	for c, ids := range d.All().ClassIndices() {
		slides := 0
		for _, i := range ids {
			slides += d.registry.NumSlides(d.patients[i].PK.CaseID)
		}
		log.Lvlf1("Patient-LVL; Number of samples registered in class %d: %d", c, len(ids))
		log.Lvlf1("Slide-LVL; Number of samples registered in class %d: %d", c, slides)
	}
}

// Split is a subset of the patients of a dataset
type Split struct {
	dataset  *Dataset
	patients []Patient
}

// Len is the number of patients of the split
func (s *Split) Len() int {
	return len(s.patients)
}

// Covariates returns the active covariate columns
func (s *Split) Covariates() []string {
	return s.dataset.Covariates()
}

// Patients returns a copy of the patient records
func (s *Split) Patients() []Patient {
	out := make([]Patient, len(s.patients))
	for i, p := range s.patients {
		out[i] = p
		out[i].Covariates = copyVector(p.Covariates)
	}
	return out
}

// Label returns the joint class id of the i-th patient
func (s *Split) Label(i int) int {
	return s.patients[i].Label
}

// Stats fits the feature statistics on this split
func (s *Split) Stats() (*Stats, error) {
	return FitStats(s.dataset.covariates, s.patients)
}

// Normalize returns a new split with covariates filled and standardized by stats
func (s *Split) Normalize(stats *Stats) (*Split, error) {
	patients, err := stats.Apply(s.dataset.covariates, s.patients)
	if err != nil {
		return nil, err
	}
	return &Split{dataset: s.dataset, patients: patients}, nil
}

// ClassIndices returns, for every joint class id, the positions of its patients in the split
func (s *Split) ClassIndices() [][]int {
	ids := make([][]int, s.dataset.NumClasses())
	for i := range ids {
		ids[i] = []int{}
	}
	for i, p := range s.patients {
		ids[p.Label] = append(ids[p.Label], i)
	}
	return ids
}

// Item is the record handed to models and losses
type Item struct {
	CaseID         string
	DiscLabel      int
	Label          int
	SurvivalMonths float64
	Censorship     int
	Features       Features
}

// Item assembles the record of the i-th patient according to the dataset mode
func (s *Split) Item(i int) (Item, error) {
	if i < 0 || i >= len(s.patients) {
		return Item{}, errors.Errorf("item %d out of range [0, %d)", i, len(s.patients))
	}
	p := s.patients[i]
	slides, err := s.dataset.registry.SlideIDs(p.PK.CaseID)
	if err != nil {
		return Item{}, err
	}
	features, err := s.dataset.mode.features(slides, p.Covariates)
	if err != nil {
		return Item{}, errors.Wrapf(err, "case %s", p.PK.CaseID)
	}
	return Item{
		CaseID:         p.PK.CaseID,
		DiscLabel:      p.DiscLabel,
		Label:          p.Label,
		SurvivalMonths: p.SurvivalMonths,
		Censorship:     p.Censorship,
		Features:       features,
	}, nil
}
