package analytics

// DashboardMetrics summarizes a batch over a date window.
type DashboardMetrics struct {
	TotalRegistrations   int     `json:"total_registrations"`
	TotalCertifications  int     `json:"total_certifications"`
	StartedCourse        int     `json:"started_course"`
	Subscribers          int     `json:"subscribers"`
	ActiveCommunities    int     `json:"active_communities"`
	AvgCompletionDays    float64 `json:"avg_completion_days"`
	CertificationRate    float64 `json:"certification_rate"`
	SubscriberRate       float64 `json:"subscriber_rate"`
	PotentialFakes       int     `json:"potential_fakes"`
	PotentialFakeRate    float64 `json:"potential_fake_rate"`
	RapidCompletions     int     `json:"rapid_completions"`
}

// MembershipMetrics summarizes community membership over a date window.
type MembershipMetrics struct {
	Members             int     `json:"members"`
	CertifiedMembers    int     `json:"certified_members"`
	MembershipRate      float64 `json:"membership_rate"`
	CertifiedMemberRate float64 `json:"certified_member_rate"`
	ActiveCommunities   int     `json:"active_communities"`
}

// SeriesPoint is one time bucket of the registrations/certifications chart.
type SeriesPoint struct {
	Label          string `json:"label"`
	Registrations  int    `json:"registrations"`
	Certifications int    `json:"certifications"`
}

// MembershipPoint is one time bucket of the enrollment/membership chart.
type MembershipPoint struct {
	Label      string `json:"label"`
	Enrollees  int    `json:"enrollees"`
	NewMembers int    `json:"new_members"`
}

// LeaderboardEntry is one partner's position in the certification ranking.
type LeaderboardEntry struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}
