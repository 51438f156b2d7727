package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsolve/rbac-chat/schema"
)

func TestRecordCountsByMode(t *testing.T) {
	tr := NewTracker()

	tr.Record("hr", schema.ModeSQL, false, false)
	tr.Record("hr", schema.ModeRAG, true, false)
	tr.Record("hr", schema.ModeSQLFallback, false, true)
	tr.Record("finance", schema.ModeRAG, false, false)

	snap := tr.Snapshot()
	require.Contains(t, snap.Roles, "hr")

	hr := snap.Roles["hr"]
	assert.Equal(t, int64(3), hr.Total)
	assert.Equal(t, int64(1), hr.SQL)
	assert.Equal(t, int64(1), hr.RAG)
	assert.Equal(t, int64(1), hr.Fallback)

	assert.Equal(t, int64(1), snap.Roles["finance"].RAG)
	assert.Equal(t, int64(1), snap.CacheHits)
	assert.True(t, snap.RerankerUsed)
	assert.Equal(t, int64(4), snap.TotalRequests)
}

func TestRecordUnknownModeCountsAsRAG(t *testing.T) {
	tr := NewTracker()
	tr.Record("hr", "bogus", false, false)

	snap := tr.Snapshot()
	assert.Equal(t, int64(1), snap.Roles["hr"].RAG)
}

func TestSnapshotIsACopy(t *testing.T) {
	tr := NewTracker()
	tr.Record("hr", schema.ModeSQL, false, false)

	snap := tr.Snapshot()
	snap.Roles["hr"] = RoleStats{Total: 99}
	snap.Roles["intruder"] = RoleStats{Total: 1}

	fresh := tr.Snapshot()
	assert.Equal(t, int64(1), fresh.Roles["hr"].Total)
	assert.NotContains(t, fresh.Roles, "intruder")
}

func TestRecordConcurrentExactCounts(t *testing.T) {
	tr := NewTracker()

	const workers = 16
	const perWorker = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				switch i % 3 {
				case 0:
					tr.Record("hr", schema.ModeSQL, false, false)
				case 1:
					tr.Record("hr", schema.ModeRAG, true, false)
				default:
					tr.Record("finance", schema.ModeSQLFallback, false, false)
				}
			}
		}(w)
	}
	wg.Wait()

	snap := tr.Snapshot()
	assert.Equal(t, int64(workers*perWorker), snap.TotalRequests)

	hr := snap.Roles["hr"]
	assert.Equal(t, hr.SQL+hr.RAG, hr.Total)
	assert.Equal(t, int64(workers*67), hr.SQL) // i % 3 == 0 happens 67 times in 0..199
	assert.Equal(t, int64(workers*67), hr.RAG) // i % 3 == 1 happens 67 times
	assert.Equal(t, int64(workers*66), snap.Roles["finance"].Fallback)
	assert.Equal(t, int64(workers*67), snap.CacheHits)
}

func TestCollectorsStable(t *testing.T) {
	assert.Len(t, Collectors(), 2)
	assert.NotPanics(t, func() {
		MustRegister()
		MustRegister()
	})
}
