package loadersurvival

import (
	"sort"
	"strings"

	"go.dedis.ch/onet/v3/log"
)

// Signature is a named list of base covariate names, without modality suffix
type Signature struct {
	Name  string
	Genes []string
}

// SignatureGroup is a signature resolved against the covariates of a dataset
type SignatureGroup struct {
	Name string
	// Columns are the covariate columns of the group, sorted
	Columns []string
}

// ParseSignatures reads a table whose columns each enumerate the genes of one signature
func ParseSignatures(filename string) ([]Signature, error) {
	lines, err := readCSV(filename)
	if err != nil {
		return nil, err
	}
	return NewSignatures(lines), nil
}

// NewSignatures builds signatures from CSV lines (header first). Empty cells are skipped and
// repeated genes are kept once.
func NewSignatures(lines [][]string) []Signature {
	if len(lines) == 0 {
		return nil
	}
	sigs := make([]Signature, len(lines[0]))
	for i, name := range lines[0] {
		sigs[i].Name = strings.TrimSpace(name)
		seen := make(map[string]struct{})
		for _, line := range lines[1:] {
			if i >= len(line) || isMissing(line[i]) {
				continue
			}
			gene := strings.TrimSpace(line[i])
			if _, ok := seen[gene]; ok {
				continue
			}
			seen[gene] = struct{}{}
			sigs[i].Genes = append(sigs[i].Genes, gene)
		}
	}
	return sigs
}

// ResolveSignatures intersects every signature, expanded with SignatureSuffixes, with the
// covariates present in the dataset. It returns the groups in signature order and the new
// active covariate universe: the union of the group columns in group order.
func ResolveSignatures(sigs []Signature, covariates []string) ([]SignatureGroup, []string) {
	present := make(map[string]struct{}, len(covariates))
	for _, c := range covariates {
		present[c] = struct{}{}
	}

	groups := make([]SignatureGroup, len(sigs))
	universe := make([]string, 0)
	inUniverse := make(map[string]struct{})
	for i, sig := range sigs {
		matched := make(map[string]struct{})
		for _, suffix := range SignatureSuffixes {
			for _, gene := range sig.Genes {
				if _, ok := present[gene+suffix]; ok {
					matched[gene+suffix] = struct{}{}
				}
			}
		}
		cols := make([]string, 0, len(matched))
		for c := range matched {
			cols = append(cols, c)
		}
		sort.Strings(cols)

		if len(cols) == 0 {
			log.Warn("Signature", sig.Name, "matches no covariate column")
		}
		groups[i] = SignatureGroup{Name: sig.Name, Columns: cols}

		for _, c := range cols {
			if _, ok := inUniverse[c]; !ok {
				inUniverse[c] = struct{}{}
				universe = append(universe, c)
			}
		}
	}

	log.Lvl1("Total genetic data:", len(universe))
	for _, g := range groups {
		log.Lvl2("\t", g.Name, len(g.Columns))
	}
	return groups, universe
}
