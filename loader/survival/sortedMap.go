package loadersurvival

import (
	"sort"

	"github.com/sirupsen/logrus"
)

// SortedPatientTable iterates patients in case id order
type SortedPatientTable struct {
	entries []Patient
}

// NewSortedPatientTable copies and sorts the patients by case id
func NewSortedPatientTable(patients []Patient) *SortedPatientTable {
	newTable := &SortedPatientTable{entries: append([]Patient(nil), patients...)}
	sort.Sort(newTable)
	return newTable
}

func (spt *SortedPatientTable) Len() int {
	return len(spt.entries)
}

func (spt *SortedPatientTable) Less(i, j int) bool {
	return spt.entries[i].PK.CaseID < spt.entries[j].PK.CaseID
}

func (spt *SortedPatientTable) Swap(i, j int) {
	spt.entries[i], spt.entries[j] = spt.entries[j], spt.entries[i]
}

// ForEach calls callBack on every patient and stops at the first error
func (spt *SortedPatientTable) ForEach(callBack func(p Patient) error) (err error) {
	for _, elm := range spt.entries {
		logrus.Tracef("patient %s disc_label %d label %d", elm.PK.CaseID, elm.DiscLabel, elm.Label)
		err = callBack(elm)
		if err != nil {
			return
		}
	}
	return
}
