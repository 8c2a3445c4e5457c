package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(nil, nil, UpsertConfig{
		Table:        "enriched_points",
		Columns:      []string{"run_id", "source_id"},
		ConflictKeys: []string{"run_id", "source_id"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(nil, nil, UpsertConfig{
		Table:        "enriched_points",
		ConflictKeys: []string{"run_id"},
	}, [][]any{{"run-1", "p1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(nil, nil, UpsertConfig{
		Table:   "enriched_points",
		Columns: []string{"run_id", "source_id"},
	}, [][]any{{"run-1", "p1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestQuoteAndJoin(t *testing.T) {
	result := quoteAndJoin([]string{"run_id", "source_id", "huc12"})
	assert.Equal(t, `"run_id", "source_id", "huc12"`, result)
}
