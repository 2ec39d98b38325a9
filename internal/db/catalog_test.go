package db

import (
	"context"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-quake/internal/feed"
	"github.com/joeblew999/plat-quake/internal/observability"
)

func openCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(context.Background(), observability.DiscardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCatalog_Tables(t *testing.T) {
	c := openCatalog(t)

	tables, err := c.Tables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{EarthquakesTable}, tables)
}

func TestCatalog_ReplaceEarthquakes(t *testing.T) {
	c := openCatalog(t)
	ctx := context.Background()

	first := []feed.Earthquake{
		{ID: "a", Place: "Deep", Magnitude: 5, Depth: 95, Point: orb.Point{-122.4, 37.8}, Time: time.UnixMilli(0).UTC()},
		{ID: "b", Place: "Shallow", Magnitude: 1.5, Depth: 4, Point: orb.Point{140, 35}, Time: time.UnixMilli(1000).UTC()},
	}
	require.NoError(t, c.ReplaceEarthquakes(ctx, first))

	res, err := c.Query(ctx, "SELECT id, radius, color FROM earthquakes ORDER BY id")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "radius", "color"}, res.Columns)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "a", res.Rows[0]["id"])
	assert.Equal(t, 20.0, res.Rows[0]["radius"])
	assert.Equal(t, "#ff0000", res.Rows[0]["color"])
	assert.Equal(t, "#00ccff", res.Rows[1]["color"])

	require.NoError(t, c.ReplaceEarthquakes(ctx, first[1:]))
	res, err = c.Query(ctx, "SELECT count(*) AS n FROM earthquakes")
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Rows[0]["n"])
}

func TestCatalog_QueryError(t *testing.T) {
	c := openCatalog(t)

	_, err := c.Query(context.Background(), "SELECT * FROM volcanoes")
	assert.Error(t, err)
}

func TestCatalog_Closed(t *testing.T) {
	c, err := Open(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	assert.ErrorIs(t, c.ReplaceEarthquakes(context.Background(), nil), ErrClosed)
}
