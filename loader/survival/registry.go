package loadersurvival

import (
	"sync"

	concurrent "github.com/fanliao/go-concurrentMap"
	"github.com/pkg/errors"
	"go.dedis.ch/onet/v3/log"
)

// PatientRegistry maps every case to the ordered slide (feature bag) identifiers it contributes.
// It is filled once and then only read, possibly from several loading workers.
type PatientRegistry struct {
	slides *concurrent.ConcurrentMap
	cases  []string
}

// NewPatientRegistry groups the slide rows by case, keeping the row order
func NewPatientRegistry(rows []SlideRow) (*PatientRegistry, error) {
	grouped := make(map[string][]string)
	reg := &PatientRegistry{slides: concurrent.NewConcurrentMap()}
	for _, row := range rows {
		if _, ok := grouped[row.PK.CaseID]; !ok {
			reg.cases = append(reg.cases, row.PK.CaseID)
		}
		grouped[row.PK.CaseID] = append(grouped[row.PK.CaseID], row.SlideID)
	}
	for _, caseID := range reg.cases {
		if _, err := reg.slides.Put(caseID, grouped[caseID]); err != nil {
			return nil, errors.Wrapf(err, "registering case %s", caseID)
		}
	}
	return reg, nil
}

// Cases returns the registered case ids in order of first appearance
func (reg *PatientRegistry) Cases() []string {
	return append([]string(nil), reg.cases...)
}

// SlideIDs returns a copy of the slide identifiers of a case
func (reg *PatientRegistry) SlideIDs(caseID string) ([]string, error) {
	v, err := reg.slides.Get(caseID)
	if err != nil {
		return nil, errors.Wrapf(err, "looking up case %s", caseID)
	}
	if v == nil {
		return nil, errors.Wrap(ErrUnknownCase, caseID)
	}
	return append([]string(nil), v.([]string)...), nil
}

// NumSlides is the number of slides of a case, 0 for unknown cases
func (reg *PatientRegistry) NumSlides(caseID string) int {
	ids, err := reg.SlideIDs(caseID)
	if err != nil {
		return 0
	}
	return len(ids)
}

// Bag is a bag of instance feature vectors (one row per tile)
type Bag [][]float32

// BagLoader fetches the precomputed feature bag of a slide. The commands of this module only
// check that bag files exist (see BagPath); BagLoader, BagCache and the batching helpers are
// the entry points for a training loop that reads the bags themselves.
type BagLoader interface {
	LoadBag(slideID string) (Bag, error)
}

// ConcatBags stacks bags along the instance axis
func ConcatBags(bags ...Bag) Bag {
	n := 0
	for _, b := range bags {
		n += len(b)
	}
	out := make(Bag, 0, n)
	for _, b := range bags {
		out = append(out, b...)
	}
	return out
}

// BagCache memoizes loaded bags so that concurrent workers share them
type BagCache struct {
	loader BagLoader
	bags   *concurrent.ConcurrentMap
}

// NewBagCache wraps loader
func NewBagCache(loader BagLoader) *BagCache {
	return &BagCache{loader: loader, bags: concurrent.NewConcurrentMap()}
}

// Bag returns the bag of a slide, loading it on first use
func (bc *BagCache) Bag(slideID string) (Bag, error) {
	v, err := bc.bags.Get(slideID)
	if err != nil {
		return nil, errors.Wrapf(err, "looking up bag %s", slideID)
	}
	if v != nil {
		return v.(Bag), nil
	}
	bag, err := bc.loader.LoadBag(slideID)
	if err != nil {
		return nil, errors.Wrapf(err, "loading bag %s", slideID)
	}
	if _, err := bc.bags.PutIfAbsent(slideID, bag); err != nil {
		return nil, errors.Wrapf(err, "caching bag %s", slideID)
	}
	return bag, nil
}

// Len is the number of cached bags
func (bc *BagCache) Len() int {
	return int(bc.bags.Size())
}

// Prefetch loads the given slides with at most workers concurrent loads and returns the first
// error encountered.
func (bc *BagCache) Prefetch(slideIDs []string, workers int) error {
	if workers < 1 {
		workers = 1
	}
	jobs := make(chan string)
	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				if _, err := bc.Bag(id); err != nil {
					once.Do(func() { firstErr = err })
				}
			}
		}()
	}
	for _, id := range slideIDs {
		jobs <- id
	}
	close(jobs)
	wg.Wait()

	log.Lvl3("Prefetched", len(slideIDs), "bags with", workers, "workers")
	return firstErr
}

// CaseBag returns the bags of every slide of a case, concatenated
func (bc *BagCache) CaseBag(reg *PatientRegistry, caseID string) (Bag, error) {
	ids, err := reg.SlideIDs(caseID)
	if err != nil {
		return nil, err
	}
	bags := make([]Bag, len(ids))
	for i, id := range ids {
		if bags[i], err = bc.Bag(id); err != nil {
			return nil, err
		}
	}
	return ConcatBags(bags...), nil
}
