package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordToolAudit(t *testing.T) {
	var buf bytes.Buffer
	SetAuditWriter(&buf)
	t.Cleanup(func() { SetAuditWriter(&bytes.Buffer{}) })

	RecordToolAudit(context.Background(), "move_files", "run-1", StatusDenied, map[string]interface{}{"error": "denied path"})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "tool", entry["type"])
	assert.Equal(t, "execute:move_files", entry["action"])
	assert.Equal(t, "run-1", entry["run_id"])
	assert.Equal(t, StatusDenied, entry["status"])
	assert.NotEmpty(t, entry["time"])
}

func TestRecordSecurityAudit(t *testing.T) {
	var buf bytes.Buffer
	SetAuditWriter(&buf)
	t.Cleanup(func() { SetAuditWriter(&bytes.Buffer{}) })

	RecordSecurityAudit(context.Background(), "confirm:dedupe_files", "run-2", StatusRejected, nil)

	assert.Contains(t, buf.String(), `"action":"confirm:dedupe_files"`)
	assert.NotContains(t, buf.String(), "metadata")
}

func TestRecordMetrics(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordToolStep("disk_report", StatusOK, 5*time.Millisecond)
		RecordPlan("planned")
		RecordPlanExecution(time.Second)
		RecordMacroRun(false)
		RecordLLMRequest("static", time.Millisecond, true)
		RecordIndexedDocuments(3)
	})
	assert.NotNil(t, Handler())
}
