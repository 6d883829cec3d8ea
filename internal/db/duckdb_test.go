package db

import (
	"context"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRun(t *testing.T) {
	conn, err := Open("")
	require.NoError(t, err)
	defer conn.Close()

	fc := geojson.NewFeatureCollection()
	a := geojson.NewFeature(orb.Point{1, 2})
	a.Properties = geojson.Properties{"id": "A", "dr": "High"}
	b := geojson.NewFeature(orb.Point{3, 4})
	b.Properties = geojson.Properties{"id": "B", "dr": nil}
	fc.Append(a)
	fc.Append(b)

	ctx := context.Background()
	loaded := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rows := []DatasetRow{
		{Name: "tracts", Kind: "choropleth", URL: "tracts.csv", Records: 3, Features: fc},
		{Name: "zoning", Kind: "choropleth", URL: "zoning.csv", Error: "status 404"},
	}
	require.NoError(t, StoreRun(ctx, conn, "run-1", loaded, rows))

	var n int
	require.NoError(t, conn.QueryRowContext(ctx, "SELECT count(*) FROM joined_features WHERE dataset = 'tracts'").Scan(&n))
	assert.Equal(t, 2, n)

	var id string
	require.NoError(t, conn.QueryRowContext(ctx,
		"SELECT record_id FROM joined_features WHERE feature_index = 1").Scan(&id))
	assert.Equal(t, "B", id)

	var features int
	var failure string
	require.NoError(t, conn.QueryRowContext(ctx,
		"SELECT features, error FROM datasets WHERE name = 'zoning'").Scan(&features, &failure))
	assert.Zero(t, features)
	assert.Equal(t, "status 404", failure)

	// A second run replaces the first.
	require.NoError(t, StoreRun(ctx, conn, "run-2", loaded, rows[:1]))
	require.NoError(t, conn.QueryRowContext(ctx, "SELECT count(*) FROM datasets").Scan(&n))
	assert.Equal(t, 1, n)
	var run string
	require.NoError(t, conn.QueryRowContext(ctx, "SELECT DISTINCT run_id FROM joined_features").Scan(&run))
	assert.Equal(t, "run-2", run)
}
