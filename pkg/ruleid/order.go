package ruleid

import (
	"sort"
	"strconv"
	"strings"
)

// NumericKey returns the value of the digit run following an "SV-" or "V-"
// prefix. The second result is false when there is no digit run or it does
// not fit in a uint64; such identifiers sort after every numbered one.
func NumericKey(id string) (uint64, bool) {
	rest := strings.TrimSpace(id)
	upper := strings.ToUpper(rest)
	switch {
	case strings.HasPrefix(upper, "SV-"):
		rest = rest[3:]
	case strings.HasPrefix(upper, "V-"):
		rest = rest[2:]
	}

	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}

	value, err := strconv.ParseUint(rest[:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// Less orders identifiers by the numeric value of their digit run, ascending,
// then by case-insensitive lexical order. V-9 sorts before V-20 and V-100.
func Less(a, b string) bool {
	numA, okA := NumericKey(a)
	numB, okB := NumericKey(b)

	switch {
	case okA && !okB:
		return true
	case !okA && okB:
		return false
	case okA && okB && numA != numB:
		return numA < numB
	}

	foldedA, foldedB := strings.ToLower(a), strings.ToLower(b)
	if foldedA != foldedB {
		return foldedA < foldedB
	}
	return a < b
}

// Sort orders ids in place using Less.
func Sort(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		return Less(ids[i], ids[j])
	})
}

// Dedupe returns ids with case-insensitive duplicates and blanks removed,
// sorted with Less. The first spelling seen for each id is kept.
func Dedupe(ids []string) []string {
	set := NewSet()
	for _, id := range ids {
		set.Add(id)
	}
	return set.Values()
}
