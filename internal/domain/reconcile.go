package domain

import "fmt"

// ReconciliationResult summarizes one merge of remote candidates into the
// local collection.
type ReconciliationResult struct {
	// AppliedCount is the number of candidate records in the output.
	AppliedCount int

	// DiscardedLocalCount is the number of local records left out: replaced
	// by a candidate with the same text, or repeating an earlier local text.
	DiscardedLocalCount int
}

// Reconcile merges candidates over local. The output lists the candidates in
// their given order, then every local record whose text key is not among the
// candidates. On a text collision the candidate wins. Duplicate texts within
// candidates, and within local, collapse to the first occurrence, so no two
// output records share a text key.
//
// Reconciling the output again with the same candidates yields the same output.
func Reconcile(local, candidates []Quote) ([]Quote, ReconciliationResult) {
	merged := make([]Quote, 0, len(local)+len(candidates))
	keys := make(map[string]struct{}, len(candidates))

	for _, c := range candidates {
		key := c.TextKey()
		if _, dup := keys[key]; dup {
			continue
		}

		keys[key] = struct{}{}
		merged = append(merged, c)
	}

	result := ReconciliationResult{AppliedCount: len(merged)}

	for _, l := range local {
		key := l.TextKey()
		if _, seen := keys[key]; seen {
			result.DiscardedLocalCount++
			continue
		}

		keys[key] = struct{}{}
		merged = append(merged, l)
	}

	if got := len(merged); got != result.AppliedCount+len(local)-result.DiscardedLocalCount {
		panic(fmt.Sprintf("reconcile: merged length %d does not match %d candidates + %d local - %d discarded",
			got, result.AppliedCount, len(local), result.DiscardedLocalCount))
	}

	return merged, result
}
