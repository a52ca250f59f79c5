package ingest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseAll(t *testing.T, raw string) []*Record {
	t.Helper()
	records, err := NewParser().Parse(context.Background(), raw, nil)
	require.NoError(t, err)
	return records
}

func TestParseBasicFile(t *testing.T) {
	raw := "Email,First Name,Last Name,Partner Code,Final Grade\n" +
		"ada@example.com,Ada,Lovelace,GDG-LONDON,Pass\n" +
		"alan@example.com,Alan,Turing,GDG-LONDON,Fail\n"

	records := parseAll(t, raw)
	require.Len(t, records, 2)

	assert.Equal(t, "ada@example.com", records[0].Email)
	assert.Equal(t, "Ada", records[0].FirstName)
	assert.Equal(t, GradePass, records[0].FinalGrade)
	assert.Equal(t, GradeFail, records[1].FinalGrade)
	assert.Equal(t, records[0].BatchID, records[1].BatchID)
	assert.NotEqual(t, records[0].ID, records[1].ID)
}

func TestParseStripsByteOrderMark(t *testing.T) {
	raw := "\ufeffEmail,First Name\nada@example.com,Ada\n"

	records := parseAll(t, raw)
	require.Len(t, records, 1)
	assert.Equal(t, "ada@example.com", records[0].Email)
}

func TestParseDetectsSemicolonDelimiter(t *testing.T) {
	raw := "Email;First Name;Last Name\nada@example.com;Ada;Lovelace\n"

	records := parseAll(t, raw)
	require.Len(t, records, 1)
	assert.Equal(t, "Lovelace", records[0].LastName)
}

func TestParseDetectsTabDelimiter(t *testing.T) {
	raw := "Email\tFirst Name\tLast Name\nada@example.com\tAda\tLovelace\n"

	records := parseAll(t, raw)
	require.Len(t, records, 1)
	assert.Equal(t, "Ada", records[0].FirstName)
}

func TestParseQuotedFieldWithDelimiterAndDoubledQuotes(t *testing.T) {
	raw := "Email,Last Name\n" +
		`ada@example.com,"Smith, ""Jr"""` + "\n"

	records := parseAll(t, raw)
	require.Len(t, records, 1)
	assert.Equal(t, `Smith, "Jr"`, records[0].LastName)
}

func TestParseMixedLineEndings(t *testing.T) {
	raw := "Email,First Name\r\nada@example.com,Ada\ralan@example.com,Alan\ngrace@example.com,Grace\n"

	records := parseAll(t, raw)
	assert.Len(t, records, 3)
}

func TestParseSkipsRowsWithFewerThanTwoColumns(t *testing.T) {
	raw := "Email,First Name\nada@example.com,Ada\njunk\n\nalan@example.com,Alan\n"

	records := parseAll(t, raw)
	assert.Len(t, records, 2)
}

func TestParseEmptyFileFails(t *testing.T) {
	_, err := NewParser().Parse(context.Background(), "", nil)
	require.Error(t, err)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Contains(t, parseErr.Message, "empty")
}

func TestParseHeaderOnlyFails(t *testing.T) {
	_, err := NewParser().Parse(context.Background(), "Email,First Name\n", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no data rows")
}

func TestParseMissingEmailColumnFails(t *testing.T) {
	raw := "First Name,Last Name,Country,Phone,City,Wallet\nAda,Lovelace,UK,123,London,0xabc\n"

	_, err := NewParser().Parse(context.Background(), raw, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email column")
}

func TestParseRegistryFileShapeGetsSpecificError(t *testing.T) {
	raw := "Partner Code,Partner Name\nGDG-LONDON,GDG London\n"

	_, err := NewParser().Parse(context.Background(), raw, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registry")
}

func TestHeaderResolutionPrefersExactOverSubstring(t *testing.T) {
	// "email address" contains "email"; the exact synonym must win over any
	// fuzzy candidate such as a column merely containing the word.
	raw := "Email Address,Backup Email Notes,First Name\nada@example.com,notes,Ada\n"

	records := parseAll(t, raw)
	require.Len(t, records, 1)
	assert.Equal(t, "ada@example.com", records[0].Email)
}

func TestHeaderResolutionFallsBackToSubstring(t *testing.T) {
	raw := "Participant Email,First Name\nada@example.com,Ada\n"

	records := parseAll(t, raw)
	require.Len(t, records, 1)
	assert.Equal(t, "ada@example.com", records[0].Email)
}

func TestPartnerCodePrefixTrimming(t *testing.T) {
	raw := "Email,Partner Code\nada@example.com,GDG-LONDON - Google Developer Group London\n"

	records := parseAll(t, raw)
	require.Len(t, records, 1)
	assert.Equal(t, "GDG-LONDON", records[0].PartnerCode)
}

func TestPartnerFallbacks(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		partner  string
		wantCode string
		wantName string
	}{
		{"both present", "C1", "Community One", "C1", "Community One"},
		{"code missing", "", "Community One", "Community One", "Community One"},
		{"name missing", "C1", "", "C1", "C1"},
		{"both missing", "", "", UnknownPartner, UnknownPartner},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, name := resolvePartner(tt.code, tt.partner)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantName, name)
		})
	}
}

func TestParseReportsChunkedProgress(t *testing.T) {
	var rows []string
	rows = append(rows, "Email,First Name")
	for i := 0; i < 10; i++ {
		rows = append(rows, "user@example.com,User")
	}

	parser := NewParser()
	parser.ChunkSize = 4

	var reports []int
	records, err := parser.Parse(context.Background(), strings.Join(rows, "\n"), func(percent int) {
		reports = append(reports, percent)
	})
	require.NoError(t, err)

	assert.Len(t, records, 10)
	assert.Equal(t, []int{40, 80, 100}, reports)
}

func TestParseStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewParser().Parse(ctx, "Email,First Name\nada@example.com,Ada\n", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseCompletionDates(t *testing.T) {
	raw := "Email,Registration Date,Completion Date\n" +
		"a@example.com,2024-03-01 09:00:00,2024-03-02 18:30:00\n" +
		"b@example.com,2024-03-01 09:00:00,\n" +
		"c@example.com,2024-03-01 09:00:00,not-a-date\n"

	records := parseAll(t, raw)
	require.Len(t, records, 3)

	require.NotNil(t, records[0].CompletedAt)
	assert.Equal(t, time.Date(2024, 3, 2, 18, 30, 0, 0, time.UTC), *records[0].CompletedAt)

	// Empty completion is explicit absence, not a fallback date.
	assert.Nil(t, records[1].CompletedAt)

	// Unparseable non-empty dates fall back to the ingestion instant.
	require.NotNil(t, records[2].CompletedAt)
	assert.WithinDuration(t, time.Now(), *records[2].CompletedAt, time.Minute)
}

func TestParseDayFirstSlashDates(t *testing.T) {
	raw := "Email,Registration Date\n" +
		"a@example.com,25/03/2024\n" +
		"b@example.com,03/25/2024\n"

	records := parseAll(t, raw)
	require.Len(t, records, 2)

	want := time.Date(2024, 3, 25, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, want, records[0].CreatedAt)
	assert.Equal(t, want, records[1].CreatedAt)
}

func TestNormalizeBooleans(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"Yes", true},
		{"TRUE", true},
		{"sí", true},
		{"Si", true},
		{"Member", true},
		{"miembro", true},
		{"checked", true},
		{"Joined", true},
		{"1", true},
		{"no", false},
		{"false", false},
		{"", false},
		{"maybe", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseBool(tt.raw), "parseBool(%q)", tt.raw)
	}
}

func TestNormalizeIntegers(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"85", 85},
		{"85%", 85},
		{" 85 pts", 85},
		{"-3", -3},
		{"92.7", 92},
		{"", 0},
		{"n/a", 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseInt(tt.raw), "parseInt(%q)", tt.raw)
	}
}

func TestNormalizeGrades(t *testing.T) {
	tests := []struct {
		raw  string
		want Grade
	}{
		{"Pass", GradePass},
		{"PASSED", GradePass},
		{"Aprobado", GradePass},
		{"aprobada", GradePass},
		{"Fail", GradeFail},
		{"reprobado", GradeFail},
		{"", GradePending},
		{"In Progress", GradePending},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseGrade(tt.raw), "parseGrade(%q)", tt.raw)
	}
}
