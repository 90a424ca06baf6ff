package observability_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/boddenberg/isp-billing-bfa/internal/domain"
	"github.com/boddenberg/isp-billing-bfa/internal/infra/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_BillingSnapshot(t *testing.T) {
	m := observability.NewMetrics()

	m.RecordScan(10, 3, 1)
	m.RecordScan(5, 0, 0)
	m.IncrReminder(domain.ReminderDebt, "sent")
	m.IncrReminder(domain.ReminderUpcoming, "sent")
	m.IncrReminder(domain.ReminderOverdue, "failed")
	m.IncrLedgerOp("payment")
	m.IncrLedgerOp("payment")
	m.IncrInconsistency()
	m.IncrCacheHit("dashboard")
	m.IncrCacheMiss("dashboard")
	m.IncrExternalError("supabase")

	snap := m.GetBillingSnapshot()
	assert.Equal(t, int64(2), snap.ScansTotal)
	assert.Equal(t, int64(15), snap.ClientsEvaluated)
	assert.Equal(t, int64(3), snap.ClientsUpdated)
	assert.Equal(t, int64(1), snap.ClientsSkipped)
	assert.Equal(t, int64(2), snap.RemindersByOutcome["sent"])
	assert.Equal(t, int64(1), snap.RemindersByOutcome["failed"])
	assert.Equal(t, int64(2), snap.LedgerOperations["payment"])
	assert.Equal(t, int64(1), snap.DeliveryInconsistencies)
	assert.Equal(t, int64(1), snap.ExternalErrors)
	assert.InDelta(t, 0.5, snap.CacheHitRate, 1e-9)
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a := observability.NewMetrics()
	b := observability.NewMetrics()
	a.RecordScan(1, 1, 0)
	assert.Equal(t, int64(0), b.GetBillingSnapshot().ScansTotal)
}

func TestNewLogger_WritesRotatedFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "logs", "billing.log")

	logger := observability.NewLogger(observability.LogOptions{Level: "info", File: file})
	logger.Info("scan finished")
	_ = logger.Sync()

	matches, err := filepath.Glob(file + ".*")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "scan finished")
}
