package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amosWeiskopf/rankcrawl/internal/models"
	"github.com/amosWeiskopf/rankcrawl/pkg/graph"
)

func testRun() Run {
	store := graph.NewStore()
	store.AddEdge("http://a.test/", "http://b.test/")
	store.AddEdge("http://a.test/", "http://c.test/")
	store.AddEdge("http://b.test/", "http://c.test/")
	store.MarkVisited("http://a.test/")
	store.MarkVisited("http://b.test/")

	now := time.Now()
	return Run{
		RunID:    "run-1",
		Seed:     "http://a.test/",
		Mode:     "pagerank",
		Started:  now.Add(-time.Second),
		Finished: now,
		Snapshot: store.Snapshot(),
		Visits: []models.Visit{
			{URL: "http://a.test/", Status: models.StatusFetched, Title: "A"},
			{URL: "http://b.test/", Status: models.StatusFailed},
		},
		Scores: map[string]float64{"http://a.test/": 0.2, "http://b.test/": 0.3, "http://c.test/": 0.5},
	}
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	db, err := Open(filepath.Join(t.TempDir(), "out", "graph.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Export(ctx, testRun()))

	nodes, err := db.Nodes(ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	assert.Equal(t, "http://a.test/", nodes[0].Key)
	assert.True(t, nodes[0].Visited)
	assert.Equal(t, "fetched", nodes[0].Status)
	assert.Equal(t, "A", nodes[0].Title)
	assert.InDelta(t, 0.2, nodes[0].Score.Float64, 1e-12)
	assert.False(t, nodes[2].Visited)
	assert.Empty(t, nodes[2].Status)

	edges, err := db.Edges(ctx)
	require.NoError(t, err)
	assert.Equal(t, []EdgeRow{
		{From: "http://a.test/", To: "http://b.test/"},
		{From: "http://a.test/", To: "http://c.test/"},
		{From: "http://b.test/", To: "http://c.test/"},
	}, edges)
}

func TestExportReplacesPreviousRun(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "graph.db")
	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Export(ctx, testRun()))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()

	store := graph.NewStore()
	store.AddNode("http://solo.test/")
	require.NoError(t, db.Export(ctx, Run{RunID: "run-2", Seed: "http://solo.test/", Mode: "basic", Snapshot: store.Snapshot()}))

	nodes, err := db.Nodes(ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.False(t, nodes[0].Score.Valid, "basic runs carry no score")

	edges, err := db.Edges(ctx)
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func TestExportRequiresSnapshot(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "graph.db"))
	require.NoError(t, err)
	defer db.Close()

	assert.Error(t, db.Export(context.Background(), Run{RunID: "x"}))
}
