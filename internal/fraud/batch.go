package fraud

import (
	"strings"

	"github.com/certops/insights/internal/ingest"
)

// batchPatternThreshold is the minimum number of distinct records that must
// share a normalized root before the cluster is treated as a scripted
// registration run.
const batchPatternThreshold = 3

// minRootLength excludes very short roots from grouping; common short names
// would otherwise cluster unrelated people.
const minRootLength = 3

// detectBatchPatterns returns the ids of every record belonging to a
// batch-registration cluster: three or more records whose full name or
// email local part collapse to the same root once trailing counters are
// stripped ("John Doe 1", "John Doe 02" → "johndoe").
func detectBatchPatterns(records []*ingest.Record) map[string]struct{} {
	nameGroups := make(map[string]map[string]struct{})
	emailGroups := make(map[string]map[string]struct{})

	for _, record := range records {
		if root := normalizeRoot(record.FirstName + " " + record.LastName); len(root) > minRootLength {
			addToGroup(nameGroups, root, record.ID)
		}
		if root := normalizeRoot(emailLocalPart(record.Email)); len(root) > minRootLength {
			addToGroup(emailGroups, root, record.ID)
		}
	}

	flagged := make(map[string]struct{})
	collectClusters(nameGroups, flagged)
	collectClusters(emailGroups, flagged)
	return flagged
}

// applyBatchFlags produces a new collection with the Batch Pattern flag
// added to every flagged record. The Pass-1 output is not mutated.
func applyBatchFlags(records []*ingest.Record, flagged map[string]struct{}) []*ingest.Record {
	out := make([]*ingest.Record, len(records))
	for i, record := range records {
		if _, ok := flagged[record.ID]; !ok {
			out[i] = record
			continue
		}

		updated := *record
		updated.RiskFlags = append([]string(nil), record.RiskFlags...)
		addFlag(&updated, FlagBatchPattern)
		finalizeSuspicion(&updated)
		out[i] = &updated
	}
	return out
}

func addToGroup(groups map[string]map[string]struct{}, root, id string) {
	if groups[root] == nil {
		groups[root] = make(map[string]struct{})
	}
	groups[root][id] = struct{}{}
}

func collectClusters(groups map[string]map[string]struct{}, flagged map[string]struct{}) {
	for _, ids := range groups {
		if len(ids) < batchPatternThreshold {
			continue
		}
		for id := range ids {
			flagged[id] = struct{}{}
		}
	}
}

// normalizeRoot lower-cases the value, strips the trailing run of digits,
// whitespace, dots, underscores and hyphens, then drops interior spaces so
// numbered variants of one identity collapse to a single root.
func normalizeRoot(raw string) string {
	root := strings.ToLower(strings.TrimSpace(raw))
	root = strings.TrimRight(root, "0123456789 ._-")
	return strings.ReplaceAll(root, " ", "")
}

func emailLocalPart(email string) string {
	if at := strings.Index(email, "@"); at >= 0 {
		return email[:at]
	}
	return email
}
