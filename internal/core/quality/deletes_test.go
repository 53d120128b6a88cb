package quality

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sourcegauge/sourcegauge/internal/core/domain"
	"github.com/sourcegauge/sourcegauge/internal/core/port"
)

func TestDeleteManagement_Classification(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name         string
		table        port.TableFact
		caps         port.Capabilities
		wantStrategy domain.DeleteStrategy
		wantSeverity domain.Severity
		wantColumn   string
		wantType     string
	}{
		{
			name: "soft delete timestamp",
			table: port.TableFact{Name: "orders", Columns: []port.ColumnFact{
				{Name: "deleted_at", DataType: "timestamp with time zone"},
			}},
			wantStrategy: domain.DeleteSoft,
			wantSeverity: domain.SeverityInfo,
			wantColumn:   "deleted_at",
			wantType:     "timestamp",
		},
		{
			name: "soft delete boolean",
			table: port.TableFact{Name: "orders", Columns: []port.ColumnFact{
				{Name: "is_deleted", DataType: "boolean"},
			}},
			wantStrategy: domain.DeleteSoft,
			wantSeverity: domain.SeverityInfo,
			wantColumn:   "is_deleted",
			wantType:     "boolean",
		},
		{
			name: "boolean active flag",
			table: port.TableFact{Name: "products", Columns: []port.ColumnFact{
				{Name: "active", DataType: "boolean"},
			}},
			wantStrategy: domain.DeleteSoft,
			wantSeverity: domain.SeverityInfo,
			wantColumn:   "active",
			wantType:     "active_flag",
		},
		{
			name: "text active column is not a flag",
			table: port.TableFact{Name: "products", Columns: []port.ColumnFact{
				{Name: "active", DataType: "text"},
			}},
			wantStrategy: domain.DeleteHard,
			wantSeverity: domain.SeverityWarning,
		},
		{
			name:         "cdc fallback",
			table:        port.TableFact{Name: "events", CDCEnabled: true},
			caps:         port.FullCapabilities(),
			wantStrategy: domain.DeleteHardWithCDC,
			wantSeverity: domain.SeverityInfo,
		},
		{
			name:         "cdc without introspection capability",
			table:        port.TableFact{Name: "events", CDCEnabled: true},
			wantStrategy: domain.DeleteHard,
			wantSeverity: domain.SeverityWarning,
		},
		{
			name:         "plain hard delete",
			table:        port.TableFact{Name: "events"},
			wantStrategy: domain.DeleteHard,
			wantSeverity: domain.SeverityWarning,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := newTestEngine(tt.caps, &fakeSampler{})
			e.BeginRun(context.Background(), []port.TableFact{tt.table})

			findings := e.checkDeleteManagement(context.Background(), &tt.table)

			require.Len(t, findings, 1)
			f := findings[0]
			assert.Equal(t, domain.CheckDeleteManagement, f.Check)
			assert.Equal(t, tt.wantSeverity, f.Severity)
			assert.Equal(t, tt.wantColumn, f.Column)

			ev, ok := f.Evidence.(domain.DeleteManagementEvidence)
			require.True(t, ok)
			assert.Equal(t, tt.wantStrategy, ev.Strategy)
			assert.Equal(t, tt.wantColumn, ev.SoftDeleteColumn)
			assert.Equal(t, tt.wantType, ev.SoftDeleteType)
		})
	}
}

func TestDeleteManagement_AuditTrailCompanion(t *testing.T) {
	t.Parallel()
	e := newTestEngine(port.FullCapabilities(), &fakeSampler{})
	tables := []port.TableFact{
		{Name: "orders"},
		{Name: "orders_history"},
	}
	e.BeginRun(context.Background(), tables)

	findings := e.checkDeleteManagement(context.Background(), &tables[0])

	require.Len(t, findings, 1)
	assert.Contains(t, findings[0].Detail, "Audit-trail table 'orders_history' exists")

	ev := findings[0].Evidence.(domain.DeleteManagementEvidence)
	assert.True(t, ev.HasAuditTrail)
	assert.Equal(t, "orders_history", ev.AuditTrailTable)
}
