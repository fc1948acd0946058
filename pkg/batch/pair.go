package batch

import (
	"path/filepath"

	"github.com/coolbeans/stigdiff/pkg/filename"
)

// Pair is a benchmark matched with one converted file.
type Pair struct {
	// Benchmark is the DISA benchmark path.
	Benchmark string `json:"benchmark" yaml:"benchmark"`

	// Converted is the matched converted path; empty when unmatched.
	Converted string `json:"converted,omitempty" yaml:"converted,omitempty"`

	// Key is the pairing key derived from the benchmark name.
	Key string `json:"key" yaml:"key"`

	// Edition is set when a benchmark without an edition was paired with an
	// MS or DC conversion.
	Edition string `json:"edition,omitempty" yaml:"edition,omitempty"`
}

// Aliaser maps a derived product name to the name converted files use.
type Aliaser func(product string) string

// PairFiles matches each benchmark with converted files.
//
// The derived candidate names are probed first, then the pairing key. A
// Windows OS benchmark without an edition is paired with each of its MS and
// DC conversions. Benchmarks whose names cannot be derived are returned in
// skipped; benchmarks with no converted file are returned as pairs with an
// empty Converted path, in benchmark order.
func PairFiles(benchmarks, converted []string, alias Aliaser) (pairs []Pair, skipped []string) {
	index := filename.NewIndex(converted)

	for _, benchmark := range benchmarks {
		derivation, ok := filename.Derive(filepath.Base(benchmark))
		if !ok {
			skipped = append(skipped, benchmark)
			continue
		}
		if alias != nil {
			derivation = derivation.WithBaseName(alias(derivation.BaseName))
		}

		if path, ok := lookup(index, derivation); ok {
			pairs = append(pairs, Pair{Benchmark: benchmark, Converted: path, Key: derivation.Key()})
			continue
		}

		editionPairs := pairEditions(index, benchmark, derivation)
		if len(editionPairs) > 0 {
			pairs = append(pairs, editionPairs...)
			continue
		}

		pairs = append(pairs, Pair{Benchmark: benchmark, Key: derivation.Key()})
	}
	return pairs, skipped
}

func lookup(index *filename.Index, derivation filename.Derivation) (string, bool) {
	if path, ok := index.Lookup(derivation); ok {
		return path, true
	}
	return index.LookupKey(derivation.Key())
}

func pairEditions(index *filename.Index, benchmark string, derivation filename.Derivation) []Pair {
	if derivation.Edition != "" || !filename.IsWindowsOSBenchmark(benchmark) {
		return nil
	}

	var pairs []Pair
	for _, edition := range filename.Editions() {
		edited := derivation
		edited.Edition = edition
		if path, ok := lookup(index, edited); ok {
			pairs = append(pairs, Pair{Benchmark: benchmark, Converted: path, Key: edited.Key(), Edition: edition})
		}
	}
	return pairs
}
