package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dialogtable/dialogtable/internal/model"
	"github.com/dialogtable/dialogtable/internal/schema"
	"github.com/dialogtable/dialogtable/internal/store"
	"github.com/dialogtable/dialogtable/internal/util/workerpool"
)

func testChecker(t *testing.T) *HealthChecker {
	pool := workerpool.NewWorkerPool(&workerpool.Config{Name: "test", MaxWorkers: 2, QueueSize: 8, Logger: zap.NewNop()})
	t.Cleanup(func() { pool.Stop(0) })
	st := store.New(pool, zap.NewNop())
	return NewHealthChecker(&HealthCheckConfig{NodeID: "n0"}, st, zap.NewNop())
}

func TestHealthChecker_StoreResponsiveHealthyWithNoTables(t *testing.T) {
	h := testChecker(t)
	result := h.checkStoreResponsive()
	assert.Equal(t, "healthy", result.Status)
}

func TestHealthChecker_StoreResponsiveReflectsTableCount(t *testing.T) {
	h := testChecker(t)
	sch, err := schema.New([]schema.ColumnSpec{{Name: "e", Type: schema.TypeLong}})
	require.NoError(t, err)
	_, err = h.store.AddTable("t0", sch, model.StorageModeInMemory)
	require.NoError(t, err)

	result := h.checkStoreResponsive()
	assert.Equal(t, "healthy", result.Status)
	assert.Contains(t, result.Message, "1 tables")
}

func TestHealthChecker_RunHealthChecksSetsHealthyStatus(t *testing.T) {
	h := testChecker(t)
	h.runHealthChecks()
	assert.Equal(t, model.NodeStatusHealthy, h.GetStatus().Status)
	assert.True(t, h.IsLive())
	assert.True(t, h.IsReady())
}

func TestHealthChecker_SetLivenessAndReadiness(t *testing.T) {
	h := testChecker(t)
	h.SetLiveness(false)
	assert.False(t, h.IsLive())

	h.SetReadiness(false)
	assert.False(t, h.IsReady())
}
