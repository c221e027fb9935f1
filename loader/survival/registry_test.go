package loadersurvival

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBagLoader struct {
	mu    sync.Mutex
	loads map[string]int
	calls int32
}

func (f *fakeBagLoader) LoadBag(slideID string) (Bag, error) {
	atomic.AddInt32(&f.calls, 1)
	if slideID == "broken.svs" {
		return nil, fmt.Errorf("cannot read %s", slideID)
	}
	f.mu.Lock()
	f.loads[slideID]++
	f.mu.Unlock()
	return Bag{{float32(len(slideID))}, {1}}, nil
}

func TestPatientRegistry(t *testing.T) {
	reg, err := NewPatientRegistry(testSurvivalTable(t).Rows)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C", "D"}, reg.Cases())
	ids, err := reg.SlideIDs("A")
	require.NoError(t, err)
	assert.Equal(t, []string{"A-1.svs", "A-2.svs"}, ids)
	assert.Equal(t, 2, reg.NumSlides("A"))
	assert.Equal(t, 1, reg.NumSlides("D"))

	ids[0] = "changed"
	again, err := reg.SlideIDs("A")
	require.NoError(t, err)
	assert.Equal(t, "A-1.svs", again[0])

	_, err = reg.SlideIDs("Z")
	assert.Equal(t, ErrUnknownCase, errors.Cause(err))
	assert.Equal(t, 0, reg.NumSlides("Z"))
}

func TestBagCache(t *testing.T) {
	reg, err := NewPatientRegistry(testSurvivalTable(t).Rows)
	require.NoError(t, err)

	loader := &fakeBagLoader{loads: make(map[string]int)}
	cache := NewBagCache(loader)

	slides := []string{"A-1.svs", "A-2.svs", "B-1.svs", "C-1.svs", "D-1.svs"}
	require.NoError(t, cache.Prefetch(slides, 3))
	assert.Equal(t, 5, cache.Len())

	bag, err := cache.CaseBag(reg, "A")
	require.NoError(t, err)
	assert.Len(t, bag, 4)
	for _, id := range slides {
		assert.Equal(t, 1, loader.loads[id], id)
	}
	assert.Equal(t, int32(5), atomic.LoadInt32(&loader.calls))

	_, err = cache.CaseBag(reg, "Z")
	assert.Equal(t, ErrUnknownCase, errors.Cause(err))

	assert.Error(t, cache.Prefetch([]string{"broken.svs", "A-1.svs"}, 0))
}

func TestConcatBags(t *testing.T) {
	bag := ConcatBags(Bag{{1, 2}}, Bag{}, Bag{{3, 4}, {5, 6}})
	assert.Equal(t, Bag{{1, 2}, {3, 4}, {5, 6}}, bag)
}
