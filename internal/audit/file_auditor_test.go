package audit

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sourcegauge/sourcegauge/internal/core/port"
)

func TestNewFileAuditor_CreatesFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	fa, err := NewFileAuditor(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, fa.Close()) }()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestNewFileAuditor_InvalidPath(t *testing.T) {
	t.Parallel()
	_, err := NewFileAuditor("/nonexistent/dir/audit.jsonl")
	require.Error(t, err)
}

func TestFileAuditor_Record_WritesNDJSON(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	fa, err := NewFileAuditor(path)
	require.NoError(t, err)

	fa.Record(context.Background(), port.AuditEntry{
		Operation:  "check",
		Table:      "orders",
		Check:      "missing_primary_key",
		Findings:   1,
		DurationMS: 42,
	})
	fa.Record(context.Background(), port.AuditEntry{
		Operation: "analyze",
		Err:       errors.New("query timeout"),
	})
	require.NoError(t, fa.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := splitLines(t, data)
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "check", first["operation"])
	assert.Equal(t, "orders", first["table"])
	assert.Equal(t, "missing_primary_key", first["check"])
	assert.Equal(t, float64(1), first["findings"])
	assert.Equal(t, float64(42), first["duration_ms"])
	assert.Nil(t, first["error"])
	assert.NotEmpty(t, first["ts"])

	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "analyze", second["operation"])
	assert.Equal(t, "query timeout", second["error"])
}

func TestFileAuditor_AppendsAcrossReopen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "audit.jsonl")

	fa, err := NewFileAuditor(path)
	require.NoError(t, err)
	fa.Record(context.Background(), port.AuditEntry{Operation: "collect"})
	require.NoError(t, fa.Close())

	fa, err = NewFileAuditor(path)
	require.NoError(t, err)
	fa.Record(context.Background(), port.AuditEntry{Operation: "project"})
	require.NoError(t, fa.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, splitLines(t, data), 2)
}

func TestFileAuditor_ConcurrentRecords(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	fa, err := NewFileAuditor(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			fa.Record(context.Background(), port.AuditEntry{
				Operation: "check",
				Table:     fmt.Sprintf("t%d", n),
			})
		}(i)
	}
	wg.Wait()
	require.NoError(t, fa.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := splitLines(t, data)
	require.Len(t, lines, 50)
	for _, line := range lines {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry), "corrupt line: %s", line)
	}
}

func TestNoopAuditor(t *testing.T) {
	t.Parallel()
	var a NoopAuditor
	a.Record(context.Background(), port.AuditEntry{Operation: "check"})
	assert.NoError(t, a.Close())
}

func splitLines(t *testing.T, data []byte) []string {
	t.Helper()
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		if scanner.Text() != "" {
			lines = append(lines, scanner.Text())
		}
	}
	require.NoError(t, scanner.Err())
	return lines
}
