package fraud

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certops/insights/internal/ingest"
)

var baseCreated = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func passRecord(id string, completionHours float64) *ingest.Record {
	completed := baseCreated.Add(time.Duration(completionHours * float64(time.Hour)))
	return &ingest.Record{
		ID:          id,
		Email:       id + "@example.com",
		CreatedAt:   baseCreated,
		CompletedAt: &completed,
		FinalGrade:  ingest.GradePass,
	}
}

func scoreOne(t *testing.T, record *ingest.Record) *ingest.Record {
	t.Helper()
	out := NewDetector().Score([]*ingest.Record{record})
	require.Len(t, out, 1)
	return out[0]
}

func TestScoreComputesDuration(t *testing.T) {
	got := scoreOne(t, passRecord("r1", 10))

	require.NotNil(t, got.ComputedDuration)
	assert.InDelta(t, 10.0, *got.ComputedDuration, 1e-9)
	assert.False(t, got.DataError)
}

func TestScoreLeavesDurationNilWithoutCompletion(t *testing.T) {
	got := scoreOne(t, &ingest.Record{ID: "r1", CreatedAt: baseCreated, FinalGrade: ingest.GradePass})

	assert.Nil(t, got.ComputedDuration)
	assert.Empty(t, got.RiskFlags)
	assert.False(t, got.IsSuspicious)
}

func TestVelocityFlags(t *testing.T) {
	tests := []struct {
		name  string
		hours float64
		want  []string
	}{
		{"under half an hour is bot activity", 0.3, []string{FlagBotActivity}},
		{"under four hours is a speed run", 2.0, []string{FlagSpeedRun}},
		{"exactly the bot threshold is a speed run", 0.5, []string{FlagSpeedRun}},
		{"exactly four hours is clean", 4.0, nil},
		{"plausible duration is clean", 10.0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scoreOne(t, passRecord("r1", tt.hours))
			assert.Equal(t, tt.want, got.RiskFlags)
		})
	}
}

func TestVelocityIgnoresNonPassGrades(t *testing.T) {
	record := passRecord("r1", 0.3)
	record.FinalGrade = ingest.GradeFail

	got := scoreOne(t, record)
	assert.Empty(t, got.RiskFlags)
}

func TestNegativeDurationIsDataErrorNotFraud(t *testing.T) {
	// Completion a full day before creation: the 12h correction cannot fix
	// it, so the record is corrupt rather than suspicious.
	completed := baseCreated.Add(-24 * time.Hour)
	record := &ingest.Record{
		ID:          "r1",
		CreatedAt:   baseCreated,
		CompletedAt: &completed,
		FinalGrade:  ingest.GradePass,
	}

	got := scoreOne(t, record)
	assert.True(t, got.DataError)
	require.NotNil(t, got.ComputedDuration)
	assert.Less(t, *got.ComputedDuration, 0.0)
	assert.Empty(t, got.RiskFlags)
}

func TestTwelveHourCorrectionAppliesBeforeVelocity(t *testing.T) {
	// Raw completion is 2h before creation; corrected it becomes +10h, which
	// is a plausible duration and must not trip the velocity check.
	completed := baseCreated.Add(-2 * time.Hour)
	record := &ingest.Record{
		ID:          "r1",
		CreatedAt:   baseCreated,
		CompletedAt: &completed,
		FinalGrade:  ingest.GradePass,
	}

	got := scoreOne(t, record)
	require.NotNil(t, got.ComputedDuration)
	assert.InDelta(t, 10.0, *got.ComputedDuration, 1e-9)
	assert.False(t, got.DataError)
	assert.Empty(t, got.RiskFlags)
}

func TestSharedWalletFlagsEveryHolder(t *testing.T) {
	a := passRecord("a", 10)
	a.WalletAddress = "0xDEADBEEF01"
	b := passRecord("b", 10)
	b.WalletAddress = "0xdeadbeef01"
	c := passRecord("c", 10)
	c.WalletAddress = "0xcafebabe02"

	out := NewDetector().Score([]*ingest.Record{a, b, c})

	assert.Contains(t, out[0].RiskFlags, FlagSybil)
	assert.Contains(t, out[1].RiskFlags, FlagSybil)
	assert.NotContains(t, out[2].RiskFlags, FlagSybil)
}

func TestPlaceholderWalletsNeverCluster(t *testing.T) {
	records := make([]*ingest.Record, 0, 6)
	for i, wallet := range []string{"n/a", "N/A", "none", "abc", "", "  "} {
		r := passRecord(fmt.Sprintf("r%d", i), 10)
		r.WalletAddress = wallet
		records = append(records, r)
	}

	for _, got := range NewDetector().Score(records) {
		assert.NotContains(t, got.RiskFlags, FlagSybil)
	}
}

func TestEmailAliasFlag(t *testing.T) {
	record := passRecord("r1", 10)
	record.Email = "ada+signup@example.com"

	got := scoreOne(t, record)
	assert.Equal(t, []string{FlagEmailAlias}, got.RiskFlags)
}

func TestDisposableDomainFlag(t *testing.T) {
	record := passRecord("r1", 10)
	record.Email = "ada@Mailinator.com"

	got := scoreOne(t, record)
	assert.Equal(t, []string{FlagDisposableEmail}, got.RiskFlags)
}

func TestCustomDisposableDomains(t *testing.T) {
	record := passRecord("r1", 10)
	record.Email = "ada@burner.example"

	out := NewDetectorWithDomains([]string{"burner.example"}).Score([]*ingest.Record{record})
	require.Len(t, out, 1)
	assert.Contains(t, out[0].RiskFlags, FlagDisposableEmail)
}

func TestSuspicionReasonJoinsFlags(t *testing.T) {
	record := passRecord("r1", 0.3)
	record.Email = "ada+x@mailinator.com"

	got := scoreOne(t, record)
	assert.True(t, got.IsSuspicious)
	assert.Equal(t, []string{FlagBotActivity, FlagEmailAlias, FlagDisposableEmail}, got.RiskFlags)
	assert.Equal(t, "Bot Activity, Email Alias, Disposable Email", got.SuspicionReason)
}

func TestScoreDoesNotMutateInput(t *testing.T) {
	record := passRecord("r1", 0.3)
	record.WalletAddress = "0xdeadbeef01"

	_ = NewDetector().Score([]*ingest.Record{record})

	assert.Nil(t, record.ComputedDuration)
	assert.Empty(t, record.RiskFlags)
	assert.False(t, record.IsSuspicious)
}
