package analytics

import (
	"sort"
	"time"

	"github.com/certops/insights/internal/ingest"
)

const (
	// dailyWindowMaxDays is the largest inclusive window still charted
	// day-by-day; anything longer switches to weekly buckets.
	dailyWindowMaxDays = 60
	// maxUnboundedBuckets caps the all-time series at the most recent
	// buckets.
	maxUnboundedBuckets = 24
	// rapidCompletionHours is the dashboard threshold for "rapid
	// completions"; looser than the fraud Speed Run cutoff on purpose.
	rapidCompletionHours = 5.0
	// leaderboardSize is how many partners the leaderboard returns.
	leaderboardSize = 10
)

// Service computes dashboard aggregates over an enriched record set. Every
// method is a pure function of (records, window): no input mutation, safe
// for concurrent and repeated calls.
type Service struct{}

// NewService creates an analytics service.
func NewService() *Service {
	return &Service{}
}

// DashboardMetrics computes the summary counters for the given window.
// Either bound may be nil for an open-ended or all-time view.
func (s *Service) DashboardMetrics(records []*ingest.Record, start, end *time.Time) *DashboardMetrics {
	metrics := &DashboardMetrics{}
	communities := make(map[string]struct{})

	var totalCompletionDays float64
	var validCertified int

	for _, record := range records {
		registered := InRange(&record.CreatedAt, start, end)
		completed := InRange(record.CompletedAt, start, end)

		if registered {
			metrics.TotalRegistrations++
			if record.PercentageCompleted > 0 {
				metrics.StartedCourse++
			}
			if record.AcceptedMarketing {
				metrics.Subscribers++
			}
			if len(record.RiskFlags) > 0 {
				metrics.PotentialFakes++
			}
		}

		if (registered || completed) && record.PartnerCode != ingest.UnknownPartner {
			communities[record.PartnerCode] = struct{}{}
		}

		if record.FinalGrade == ingest.GradePass && completed {
			metrics.TotalCertifications++

			if isValidCertified(record) {
				validCertified++
				totalCompletionDays += *record.ComputedDuration / 24
				if *record.ComputedDuration < rapidCompletionHours {
					metrics.RapidCompletions++
				}
			}
		}
	}

	metrics.ActiveCommunities = len(communities)
	if validCertified > 0 {
		metrics.AvgCompletionDays = totalCompletionDays / float64(validCertified)
	}
	if metrics.TotalRegistrations > 0 {
		registrations := float64(metrics.TotalRegistrations)
		metrics.CertificationRate = float64(metrics.TotalCertifications) / registrations * 100
		metrics.SubscriberRate = float64(metrics.Subscribers) / registrations * 100
		metrics.PotentialFakeRate = float64(metrics.PotentialFakes) / registrations * 100
	}

	return metrics
}

// MembershipMetrics computes community-membership counters for the window.
func (s *Service) MembershipMetrics(records []*ingest.Record, start, end *time.Time) *MembershipMetrics {
	metrics := &MembershipMetrics{}
	communities := make(map[string]struct{})
	registrations := 0

	for _, record := range records {
		if !InRange(&record.CreatedAt, start, end) {
			continue
		}
		registrations++

		if !record.AcceptedMembership {
			continue
		}
		metrics.Members++
		if record.FinalGrade == ingest.GradePass {
			metrics.CertifiedMembers++
		}
		if record.PartnerCode != ingest.UnknownPartner {
			communities[record.PartnerCode] = struct{}{}
		}
	}

	metrics.ActiveCommunities = len(communities)
	if registrations > 0 {
		metrics.MembershipRate = float64(metrics.Members) / float64(registrations) * 100
	}
	if metrics.Members > 0 {
		metrics.CertifiedMemberRate = float64(metrics.CertifiedMembers) / float64(metrics.Members) * 100
	}

	return metrics
}

// CertificationSeries buckets registrations and Pass certifications over
// time. Windows of up to 60 days chart daily; longer or unbounded windows
// chart weekly, and an unbounded series is capped at the most recent 24
// buckets.
func (s *Service) CertificationSeries(records []*ingest.Record, start, end *time.Time) []*SeriesPoint {
	buckets := newBucketSeries(start, end)

	for _, record := range records {
		if InRange(&record.CreatedAt, start, end) {
			buckets.at(record.CreatedAt).registrations++
		}
		if record.FinalGrade == ingest.GradePass && InRange(record.CompletedAt, start, end) {
			buckets.at(*record.CompletedAt).certifications++
		}
	}

	points := make([]*SeriesPoint, 0, len(buckets.order))
	for _, b := range buckets.sorted() {
		points = append(points, &SeriesPoint{
			Label:          b.label(),
			Registrations:  b.registrations,
			Certifications: b.certifications,
		})
	}
	return points
}

// MembershipSeries buckets enrollments and new memberships over time, with
// the same granularity rules as CertificationSeries.
func (s *Service) MembershipSeries(records []*ingest.Record, start, end *time.Time) []*MembershipPoint {
	buckets := newBucketSeries(start, end)

	for _, record := range records {
		if !InRange(&record.CreatedAt, start, end) {
			continue
		}
		b := buckets.at(record.CreatedAt)
		b.registrations++
		if record.AcceptedMembership {
			b.memberships++
		}
	}

	points := make([]*MembershipPoint, 0, len(buckets.order))
	for _, b := range buckets.sorted() {
		points = append(points, &MembershipPoint{
			Label:      b.label(),
			Enrollees:  b.registrations,
			NewMembers: b.memberships,
		})
	}
	return points
}

// Leaderboard ranks partners by Pass certifications in the window,
// excluding the UNKNOWN sentinel. The display name starts as the first-seen
// partner name and is overwritten by any later record carrying a name that
// is neither UNKNOWN nor just the code repeated.
func (s *Service) Leaderboard(records []*ingest.Record, start, end *time.Time) []*LeaderboardEntry {
	type group struct {
		name  string
		count int
	}
	groups := make(map[string]*group)

	for _, record := range records {
		if record.FinalGrade != ingest.GradePass || record.PartnerCode == ingest.UnknownPartner {
			continue
		}
		if !InRange(record.CompletedAt, start, end) {
			continue
		}

		g, ok := groups[record.PartnerCode]
		if !ok {
			g = &group{name: record.PartnerName}
			groups[record.PartnerCode] = g
		}
		g.count++
		if record.PartnerName != ingest.UnknownPartner && record.PartnerName != record.PartnerCode {
			g.name = record.PartnerName
		}
	}

	entries := make([]*LeaderboardEntry, 0, len(groups))
	for _, g := range groups {
		entries = append(entries, &LeaderboardEntry{Name: g.name, Value: g.count})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Value != entries[j].Value {
			return entries[i].Value > entries[j].Value
		}
		return entries[i].Name < entries[j].Name
	})

	if len(entries) > leaderboardSize {
		entries = entries[:leaderboardSize]
	}
	return entries
}

// isValidCertified reports whether a record is eligible for duration-based
// metrics: Pass grade, a completion date, no data error and a positive
// computed duration.
func isValidCertified(record *ingest.Record) bool {
	return record.FinalGrade == ingest.GradePass &&
		record.CompletedAt != nil &&
		!record.DataError &&
		record.ComputedDuration != nil &&
		*record.ComputedDuration > 0
}

// bucket accumulates counts for one day or one week.
type bucket struct {
	startsAt       time.Time
	registrations  int
	certifications int
	memberships    int
}

func (b *bucket) label() string {
	return b.startsAt.Format("Jan 2")
}

// bucketSeries owns the granularity decision and the bucket map for one
// series computation.
type bucketSeries struct {
	daily     bool
	unbounded bool
	buckets   map[time.Time]*bucket
	order     []time.Time
}

func newBucketSeries(start, end *time.Time) *bucketSeries {
	s := &bucketSeries{
		buckets:   make(map[time.Time]*bucket),
		unbounded: start == nil || end == nil,
	}

	if !s.unbounded {
		days := int(end.Sub(*start).Hours()/24) + 1
		s.daily = days <= dailyWindowMaxDays

		// Pre-seed every bucket in the window so gaps chart as zero.
		for day := dayStart(*start); !day.After(*end); day = day.AddDate(0, 0, 1) {
			s.at(day)
		}
	}

	return s
}

func (s *bucketSeries) at(t time.Time) *bucket {
	key := weekStart(t)
	if s.daily {
		key = dayStart(t)
	}

	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{startsAt: key}
		s.buckets[key] = b
		s.order = append(s.order, key)
	}
	return b
}

// sorted returns the buckets in ascending order, capped to the most recent
// buckets when the series has no window.
func (s *bucketSeries) sorted() []*bucket {
	keys := append([]time.Time(nil), s.order...)
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

	if s.unbounded && len(keys) > maxUnboundedBuckets {
		keys = keys[len(keys)-maxUnboundedBuckets:]
	}

	out := make([]*bucket, len(keys))
	for i, key := range keys {
		out[i] = s.buckets[key]
	}
	return out
}
