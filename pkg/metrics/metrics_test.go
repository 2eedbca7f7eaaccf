package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amosWeiskopf/rankcrawl/internal/models"
)

func TestCollectorCounts(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	c.VisitRecorded(models.Visit{Status: models.StatusFetched, Duration: 20 * time.Millisecond})
	c.VisitRecorded(models.Visit{Status: models.StatusFetched})
	c.VisitRecorded(models.Visit{Status: models.StatusDisallowed})
	c.EdgesRecorded(4)
	c.EdgesRecorded(0)
	c.WorkerActive(1)
	c.WorkerActive(1)
	c.WorkerActive(-1)
	c.ObserveRobotsFetch("a", nil)
	c.ObserveRobotsFetch("b", errors.New("down"))
	c.RankFinished(12, 0.0004)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.visits.WithLabelValues("fetched")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.visits.WithLabelValues("disallowed")))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.edges))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.workersActive))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.robotsFetches))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.robotsFailures))
	assert.Equal(t, 12.0, testutil.ToFloat64(c.rankIterations))
	assert.Equal(t, 1, testutil.CollectAndCount(c.fetchDuration))
	assert.Equal(t, 2, testutil.CollectAndCount(c.visits))
}

func TestWriteTextfile(t *testing.T) {
	c, err := New()
	require.NoError(t, err)
	c.EdgesRecorded(7)

	path := filepath.Join(t.TempDir(), "rankcrawl.prom")
	require.NoError(t, c.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "rankcrawl_edges_total 7")

	err = c.WriteTextfile(filepath.Join(t.TempDir(), "missing", "dir", "x.prom"))
	assert.Error(t, err)
}

func TestCollectorsAreIsolated(t *testing.T) {
	a, err := New()
	require.NoError(t, err)
	b, err := New()
	require.NoError(t, err)

	a.EdgesRecorded(3)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.edges))
}
