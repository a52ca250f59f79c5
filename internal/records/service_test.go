package records

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certops/insights/internal/fraud"
	"github.com/certops/insights/internal/ingest"
)

func newTestService(retain int) *Service {
	return NewService(ingest.NewParser(), fraud.NewDetector(), retain)
}

func sampleCSV(email string) string {
	return "Email,First Name,Last Name,Final Grade\n" + email + ",Ada,Lovelace,Pass\n"
}

func TestIngestRunsFullPipeline(t *testing.T) {
	service := newTestService(10)

	raw := "Email,First Name,Last Name,Final Grade\n" +
		"ada+alias@example.com,Ada,Lovelace,Pass\n" +
		"alan@example.com,Alan,Turing,Fail\n"

	summary, err := service.Ingest(context.Background(), raw, nil)
	require.NoError(t, err)

	assert.NotEmpty(t, summary.BatchID)
	assert.Equal(t, 2, summary.TotalRecords)
	assert.Equal(t, 1, summary.SuspiciousRecords)
	assert.Zero(t, summary.DataErrors)
	assert.False(t, summary.IngestedAt.IsZero())

	records, err := service.Batch(summary.BatchID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Contains(t, records[0].RiskFlags, fraud.FlagEmailAlias)
	assert.Empty(t, records[1].RiskFlags)
}

func TestIngestPropagatesParseErrors(t *testing.T) {
	service := newTestService(10)

	_, err := service.Ingest(context.Background(), "", nil)
	require.Error(t, err)

	var parseErr *ingest.ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestBatchEmptyIDReturnsLatest(t *testing.T) {
	service := newTestService(10)

	_, err := service.Ingest(context.Background(), sampleCSV("first@example.com"), nil)
	require.NoError(t, err)
	_, err = service.Ingest(context.Background(), sampleCSV("second@example.com"), nil)
	require.NoError(t, err)

	records, err := service.Batch("")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "second@example.com", records[0].Email)
}

func TestBatchErrors(t *testing.T) {
	service := newTestService(10)

	_, err := service.Batch("")
	assert.ErrorIs(t, err, ErrNoBatches)

	_, err = service.Ingest(context.Background(), sampleCSV("ada@example.com"), nil)
	require.NoError(t, err)

	_, err = service.Batch("no-such-batch")
	assert.ErrorIs(t, err, ErrBatchNotFound)
}

func TestEvictionDropsOldestBatch(t *testing.T) {
	service := newTestService(2)

	var ids []string
	for i := 0; i < 3; i++ {
		summary, err := service.Ingest(context.Background(), sampleCSV(fmt.Sprintf("u%d@example.com", i)), nil)
		require.NoError(t, err)
		ids = append(ids, summary.BatchID)
	}

	_, err := service.Batch(ids[0])
	assert.ErrorIs(t, err, ErrBatchNotFound)

	for _, id := range ids[1:] {
		_, err := service.Batch(id)
		assert.NoError(t, err)
	}
}

func TestSummariesNewestFirst(t *testing.T) {
	service := newTestService(10)

	first, err := service.Ingest(context.Background(), sampleCSV("first@example.com"), nil)
	require.NoError(t, err)
	second, err := service.Ingest(context.Background(), sampleCSV("second@example.com"), nil)
	require.NoError(t, err)

	summaries := service.Summaries()
	require.Len(t, summaries, 2)
	assert.Equal(t, second.BatchID, summaries[0].BatchID)
	assert.Equal(t, first.BatchID, summaries[1].BatchID)
}
