package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportJobTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    ImportStatus
		to      ImportStatus
		allowed bool
	}{
		{name: "draft to pending", from: ImportStatusDraft, to: ImportStatusPending, allowed: true},
		{name: "pending to running", from: ImportStatusPending, to: ImportStatusRunning, allowed: true},
		{name: "running to completed", from: ImportStatusRunning, to: ImportStatusCompleted, allowed: true},
		{name: "running to failed", from: ImportStatusRunning, to: ImportStatusFailed, allowed: true},
		{name: "draft cannot skip to running", from: ImportStatusDraft, to: ImportStatusRunning, allowed: false},
		{name: "draft cannot skip to completed", from: ImportStatusDraft, to: ImportStatusCompleted, allowed: false},
		{name: "pending cannot revert to draft", from: ImportStatusPending, to: ImportStatusDraft, allowed: false},
		{name: "pending cannot skip to completed", from: ImportStatusPending, to: ImportStatusCompleted, allowed: false},
		{name: "running cannot revert to pending", from: ImportStatusRunning, to: ImportStatusPending, allowed: false},
		{name: "completed is immutable", from: ImportStatusCompleted, to: ImportStatusRunning, allowed: false},
		{name: "completed cannot fail", from: ImportStatusCompleted, to: ImportStatusFailed, allowed: false},
		{name: "failed is immutable", from: ImportStatusFailed, to: ImportStatusRunning, allowed: false},
		{name: "failed cannot complete", from: ImportStatusFailed, to: ImportStatusCompleted, allowed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &ImportJob{Status: tt.from}
			err := job.Transition(tt.to)

			if tt.allowed {
				require.NoError(t, err)
				assert.Equal(t, tt.to, job.Status)
				return
			}

			require.Error(t, err)
			var invalid *ErrInvalidTransition
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, tt.from, invalid.From)
			assert.Equal(t, tt.to, invalid.To)
			assert.Equal(t, tt.from, job.Status)
			assert.Nil(t, job.CompletedAt)
		})
	}
}

func TestImportJobTransitionSetsCompletedAt(t *testing.T) {
	job := &ImportJob{Status: ImportStatusRunning}
	require.NoError(t, job.Transition(ImportStatusCompleted))
	require.NotNil(t, job.CompletedAt)

	failed := &ImportJob{Status: ImportStatusRunning}
	require.NoError(t, failed.Transition(ImportStatusFailed))
	require.NotNil(t, failed.CompletedAt)

	pending := &ImportJob{Status: ImportStatusDraft}
	require.NoError(t, pending.Transition(ImportStatusPending))
	assert.Nil(t, pending.CompletedAt)
}

func TestImportJobTransitionSetsStartedAt(t *testing.T) {
	job := &ImportJob{Status: ImportStatusPending}
	require.NoError(t, job.Transition(ImportStatusRunning))
	require.NotNil(t, job.StartedAt)

	draft := &ImportJob{Status: ImportStatusDraft}
	require.NoError(t, draft.Transition(ImportStatusPending))
	assert.Nil(t, draft.StartedAt)
}

func TestBuildFieldMapping(t *testing.T) {
	t.Run("inverts column keyed mapping", func(t *testing.T) {
		mapping, err := BuildFieldMapping(map[string]string{
			"Code":    "sku",
			"Produit": "name",
			"Prix":    "price",
			"Notes":   "ignore",
			"Extra":   "",
		})
		require.NoError(t, err)
		assert.Equal(t, FieldMapping{
			FieldSKU:   "Code",
			FieldName:  "Produit",
			FieldPrice: "Prix",
		}, mapping)
	})

	t.Run("normalizes field case", func(t *testing.T) {
		mapping, err := BuildFieldMapping(map[string]string{"Code": " SKU "})
		require.NoError(t, err)
		assert.Equal(t, "Code", mapping[FieldSKU])
	})

	t.Run("rejects two columns on one field", func(t *testing.T) {
		_, err := BuildFieldMapping(map[string]string{
			"Code": "sku",
			"Ref":  "sku",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `"Code"`)
		assert.Contains(t, err.Error(), `"Ref"`)
		assert.Contains(t, err.Error(), "sku")
	})

	t.Run("empty mapping yields empty result", func(t *testing.T) {
		mapping, err := BuildFieldMapping(nil)
		require.NoError(t, err)
		assert.Empty(t, mapping)
	})
}

func TestImportStatusIsTerminal(t *testing.T) {
	assert.True(t, ImportStatusCompleted.IsTerminal())
	assert.True(t, ImportStatusFailed.IsTerminal())
	assert.False(t, ImportStatusDraft.IsTerminal())
	assert.False(t, ImportStatusPending.IsTerminal())
	assert.False(t, ImportStatusRunning.IsTerminal())
}

func TestAppendLog(t *testing.T) {
	job := &ImportJob{}
	job.AppendLog("info", "Import started", nil)
	job.AppendLog("error", "Chunk upsert failed", JSON{"rows": "1-50"})

	require.Len(t, job.Logs, 2)
	assert.Equal(t, "info", job.Logs[0].Level)
	assert.Equal(t, "Import started", job.Logs[0].Message)
	assert.False(t, job.Logs[0].Timestamp.IsZero())
	assert.Equal(t, "error", job.Logs[1].Level)
	assert.Equal(t, "Chunk upsert failed", job.Logs[1].Message)
}

func TestStatusResponseNeverNilLogs(t *testing.T) {
	job := &ImportJob{Status: ImportStatusPending}
	resp := job.StatusResponse()
	assert.NotNil(t, resp.Logs)
	assert.Equal(t, ImportStatusPending, resp.Status)
}
