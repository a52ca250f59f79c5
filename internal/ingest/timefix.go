package ingest

import "time"

// CorrectCompletion repairs the AM/PM data-entry defect: when a completion
// timestamp lands strictly before its creation timestamp, the clock was
// entered in 12-hour form without the meridiem, so adding 12 hours restores
// the real instant. Absent completions are returned unchanged. The
// correction is applied exactly once per record, before any duration or
// fraud computation.
func CorrectCompletion(createdAt time.Time, completedAt *time.Time) *time.Time {
	if completedAt == nil {
		return nil
	}
	if completedAt.Before(createdAt) {
		corrected := completedAt.Add(12 * time.Hour)
		return &corrected
	}
	return completedAt
}
