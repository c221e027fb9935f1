package loadersurvival

import "github.com/pkg/errors"

// censorshipValues is the inner enumeration order of the joint labels
var censorshipValues = [2]int{0, 1}

type labelKey struct {
	bin        int
	censorship int
}

// LabelEncoder maps (disc_label, censorship) pairs to dense class ids, bin-major.
type LabelEncoder struct {
	numBins int
	ids     map[labelKey]int
	keys    []labelKey
}

// NewLabelEncoder enumerates the 2*numBins joint labels
func NewLabelEncoder(numBins int) (*LabelEncoder, error) {
	if numBins < 1 {
		return nil, errors.Wrapf(ErrInvalidBinCount, "got %d", numBins)
	}
	le := &LabelEncoder{numBins: numBins, ids: make(map[labelKey]int, 2*numBins)}
	for bin := 0; bin < numBins; bin++ {
		for _, c := range censorshipValues {
			key := labelKey{bin: bin, censorship: c}
			le.ids[key] = len(le.keys)
			le.keys = append(le.keys, key)
		}
	}
	return le, nil
}

// NumClasses is the number of joint class ids
func (le *LabelEncoder) NumClasses() int {
	return len(le.keys)
}

// Encode returns the class id of a (bin, censorship) pair
func (le *LabelEncoder) Encode(bin, censorship int) (int, error) {
	id, ok := le.ids[labelKey{bin: bin, censorship: censorship}]
	if !ok {
		return 0, errors.Wrapf(ErrLabelRange, "bin %d censorship %d with %d bins", bin, censorship, le.numBins)
	}
	return id, nil
}

// Decode returns the (bin, censorship) pair of a class id
func (le *LabelEncoder) Decode(id int) (bin, censorship int, err error) {
	if id < 0 || id >= len(le.keys) {
		return 0, 0, errors.Wrapf(ErrLabelRange, "class id %d with %d classes", id, len(le.keys))
	}
	key := le.keys[id]
	return key.bin, key.censorship, nil
}
