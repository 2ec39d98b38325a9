package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-quake/internal/feed"
	"github.com/joeblew999/plat-quake/internal/observability"
	"github.com/joeblew999/plat-quake/internal/style"
)

var errFeedDown = errors.New("feed down")

type fakeQuakes struct {
	mu     sync.Mutex
	quakes []feed.Earthquake
	err    error
	calls  int
}

func (f *fakeQuakes) Earthquakes(context.Context) ([]feed.Earthquake, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.quakes, f.err
}

func (f *fakeQuakes) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakePlates blocks on gate when it is set.
type fakePlates struct {
	fc   *geojson.FeatureCollection
	err  error
	gate chan struct{}
}

func (f *fakePlates) Plates(ctx context.Context) (*geojson.FeatureCollection, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.fc, f.err
}

func sampleQuake() feed.Earthquake {
	return feed.Earthquake{
		ID:        "us7000abcd",
		Point:     orb.Point{-122.4, 37.8},
		Depth:     95,
		Magnitude: 5,
		Place:     "10km N of Somewhere",
		Time:      time.UnixMilli(0).UTC(),
		Properties: geojson.Properties{
			"mag":   5.0,
			"place": "10km N of Somewhere",
			"time":  0.0,
		},
	}
}

func samplePlates() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.LineString{{-180, -10}, {-170, 5}}))
	fc.Append(geojson.NewFeature(orb.LineString{{10, 20}, {30, 40}}))
	return fc
}

func waitDone(t *testing.T, c *Composer) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("plate stage did not settle")
	}
}

func TestComposer_BeforeFirstRun(t *testing.T) {
	c := NewComposer(&fakeQuakes{}, &fakePlates{}, DefaultProfile())

	_, ok := c.View()
	assert.False(t, ok)
	assert.Equal(t, PhaseInitial, c.Phase())

	_, err := c.SetBaseLayer(context.Background(), BaseTopo)
	assert.ErrorIs(t, err, ErrMapNotReady)

	select {
	case <-c.Done():
	default:
		t.Fatal("Done should be closed before the first pass")
	}
}

func TestComposer_Run_Success(t *testing.T) {
	clk := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	metrics := observability.NewMetricsForTesting()
	c := NewComposer(
		&fakeQuakes{quakes: []feed.Earthquake{sampleQuake()}},
		&fakePlates{fc: samplePlates()},
		DefaultProfile(),
		WithClock(clk),
		WithMetrics(metrics),
	)

	require.NoError(t, c.Run(context.Background()))
	waitDone(t, c)

	v, ok := c.View()
	require.True(t, ok)
	assert.Equal(t, PhaseComplete, v.Phase)
	assert.Equal(t, clk.Now(), v.ComposedAt)
	assert.Equal(t, BaseStreet, v.ActiveBase)
	assert.Equal(t, LatLng{Lat: 37.82, Lng: -122.42}, v.Center)
	assert.Equal(t, 5, v.Zoom)
	assert.NotEmpty(t, v.Revision)

	quakes, ok := v.Overlay(OverlayEarthquakes)
	require.True(t, ok)
	assert.True(t, quakes.Visible)
	require.Equal(t, 1, quakes.Count)
	marker, ok := quakes.Features.Features[0].Properties[PropStyle].(style.Marker)
	require.True(t, ok)
	assert.Equal(t, 20.0, marker.Radius)
	assert.Equal(t, "#ff0000", marker.FillColor)
	assert.Equal(t, "us7000abcd", quakes.Features.Features[0].ID)

	plates, ok := v.Overlay(OverlayPlates)
	require.True(t, ok)
	assert.True(t, plates.Visible)
	assert.Equal(t, 2, plates.Count)
	assert.Equal(t, []float64{-180, -10, 30, 40}, plates.BBox)

	require.NotNil(t, v.Legend)
	assert.Equal(t, "bottomright", v.Legend.Position)
	assert.Len(t, v.Legend.Items, len(style.Bands))

	require.NotNil(t, v.Control)
	assert.False(t, v.Control.Collapsed)
	assert.Equal(t, []string{BaseStreet, BaseTopo, BaseSatellite, BaseGrayscale, BaseOutdoors}, v.Control.BaseLayers)
	assert.Equal(t, []string{"Earthquakes", "Tectonic Plates"}, v.Control.Overlays)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.ComposerPhase))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.OverlayFeatures.WithLabelValues(OverlayEarthquakes)))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.OverlayFeatures.WithLabelValues(OverlayPlates)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ViewChanges.WithLabelValues("plates")))
}

func TestComposer_Run_EmptyFeed(t *testing.T) {
	c := NewComposer(&fakeQuakes{}, &fakePlates{fc: samplePlates()}, DefaultProfile())

	require.NoError(t, c.Run(context.Background()))
	waitDone(t, c)

	v, ok := c.View()
	require.True(t, ok)
	quakes, ok := v.Overlay(OverlayEarthquakes)
	require.True(t, ok)
	assert.Zero(t, quakes.Count)
	assert.Nil(t, quakes.BBox)
	assert.NotNil(t, v.Legend)
	assert.NotNil(t, v.Control)
}

func TestComposer_Run_EarthquakeFailure(t *testing.T) {
	var stages []Stage
	c := NewComposer(
		&fakeQuakes{err: errFeedDown},
		&fakePlates{fc: samplePlates()},
		DefaultProfile(),
		WithFailureHandler(func(_ context.Context, s Stage, err error) {
			stages = append(stages, s)
			assert.ErrorIs(t, err, errFeedDown)
		}),
	)

	err := c.Run(context.Background())
	require.ErrorIs(t, err, errFeedDown)
	assert.Equal(t, []Stage{StageEarthquakes}, stages)

	_, ok := c.View()
	assert.False(t, ok)
	assert.Equal(t, PhaseInitial, c.Phase())

	_, err = c.SetOverlayVisible(context.Background(), OverlayEarthquakes, false)
	assert.ErrorIs(t, err, ErrMapNotReady)
}

func TestComposer_Run_PlateFailure(t *testing.T) {
	failed := make(chan Stage, 1)
	c := NewComposer(
		&fakeQuakes{quakes: []feed.Earthquake{sampleQuake()}},
		&fakePlates{err: errFeedDown},
		DefaultProfile(),
		WithFailureHandler(func(_ context.Context, s Stage, _ error) { failed <- s }),
	)

	require.NoError(t, c.Run(context.Background()))
	waitDone(t, c)
	assert.Equal(t, StagePlates, <-failed)

	v, ok := c.View()
	require.True(t, ok)
	assert.Equal(t, PhaseComplete, v.Phase)
	assert.NotNil(t, v.Legend)
	assert.Nil(t, v.Control)
	_, ok = v.Overlay(OverlayPlates)
	assert.False(t, ok)

	_, err := c.SetBaseLayer(context.Background(), BaseTopo)
	assert.ErrorIs(t, err, ErrNoLayerControl)
}

func TestComposer_MapReadyWhilePlatesPending(t *testing.T) {
	plates := &fakePlates{fc: samplePlates(), gate: make(chan struct{})}
	c := NewComposer(&fakeQuakes{quakes: []feed.Earthquake{sampleQuake()}}, plates, DefaultProfile())

	require.NoError(t, c.Run(context.Background()))

	v, ok := c.View()
	require.True(t, ok)
	assert.Equal(t, PhaseMapReady, v.Phase)
	assert.NotNil(t, v.Legend, "legend is attached before Run returns")
	assert.Nil(t, v.Control)

	_, err := c.SetBaseLayer(context.Background(), BaseTopo)
	assert.ErrorIs(t, err, ErrNoLayerControl)

	close(plates.gate)
	waitDone(t, c)
	assert.Equal(t, PhaseComplete, c.Phase())
}

// stagedPlates blocks its first call until released and fails every later one.
type stagedPlates struct {
	mu      sync.Mutex
	calls   int
	entered chan struct{}
	release chan struct{}
}

func (s *stagedPlates) Plates(context.Context) (*geojson.FeatureCollection, error) {
	s.mu.Lock()
	s.calls++
	first := s.calls == 1
	s.mu.Unlock()
	if !first {
		return nil, errFeedDown
	}
	close(s.entered)
	<-s.release
	return samplePlates(), nil
}

func TestComposer_StalePlatesDropped(t *testing.T) {
	plates := &stagedPlates{entered: make(chan struct{}), release: make(chan struct{})}
	c := NewComposer(&fakeQuakes{quakes: []feed.Earthquake{sampleQuake()}}, plates, DefaultProfile())

	require.NoError(t, c.Run(context.Background()))
	first := c.Done()
	<-plates.entered

	require.NoError(t, c.Run(context.Background()))
	waitDone(t, c)

	close(plates.release)
	select {
	case <-first:
	case <-time.After(2 * time.Second):
		t.Fatal("first plate stage did not settle")
	}

	v, _ := c.View()
	assert.Nil(t, v.Control, "plates from the first pass must not reach the second view")
	_, ok := v.Overlay(OverlayPlates)
	assert.False(t, ok)
}

func TestComposer_RefreshFailureKeepsView(t *testing.T) {
	quakes := &fakeQuakes{quakes: []feed.Earthquake{sampleQuake()}}
	c := NewComposer(quakes, &fakePlates{fc: samplePlates()}, DefaultProfile())

	require.NoError(t, c.Run(context.Background()))
	waitDone(t, c)
	before, _ := c.View()

	quakes.mu.Lock()
	quakes.err = errFeedDown
	quakes.mu.Unlock()

	require.Error(t, c.Run(context.Background()))
	after, ok := c.View()
	require.True(t, ok)
	assert.Equal(t, before.Revision, after.Revision)
}

func TestComposer_UserChanges(t *testing.T) {
	c := NewComposer(
		&fakeQuakes{quakes: []feed.Earthquake{sampleQuake()}},
		&fakePlates{fc: samplePlates()},
		DefaultProfile(),
	)
	require.NoError(t, c.Run(context.Background()))
	waitDone(t, c)
	before, _ := c.View()

	v, err := c.SetBaseLayer(context.Background(), BaseSatellite)
	require.NoError(t, err)
	assert.Equal(t, BaseSatellite, v.ActiveBase)
	assert.NotEqual(t, before.Revision, v.Revision)

	_, err = c.SetBaseLayer(context.Background(), "Moon")
	assert.ErrorIs(t, err, ErrUnknownLayer)

	v, err = c.SetOverlayVisible(context.Background(), OverlayPlates, false)
	require.NoError(t, err)
	plates, _ := v.Overlay(OverlayPlates)
	assert.False(t, plates.Visible)

	_, err = c.SetOverlayVisible(context.Background(), "volcanoes", true)
	assert.ErrorIs(t, err, ErrUnknownLayer)

	current, _ := c.View()
	assert.Equal(t, v.Revision, current.Revision)
	assert.Equal(t, BaseSatellite, current.ActiveBase)
}

func TestComposer_RefreshKeepsUserSelection(t *testing.T) {
	c := NewComposer(
		&fakeQuakes{quakes: []feed.Earthquake{sampleQuake()}},
		&fakePlates{fc: samplePlates()},
		DefaultProfile(),
	)
	ctx := context.Background()
	require.NoError(t, c.Run(ctx))
	waitDone(t, c)

	_, err := c.SetBaseLayer(ctx, BaseTopo)
	require.NoError(t, err)
	_, err = c.SetOverlayVisible(ctx, OverlayPlates, false)
	require.NoError(t, err)
	first, err := c.SetOverlayVisible(ctx, OverlayEarthquakes, false)
	require.NoError(t, err)
	firstQuakes, _ := first.Overlay(OverlayEarthquakes)
	require.NotEmpty(t, firstQuakes.Revision)

	require.NoError(t, c.Run(ctx))
	mapReady, _ := c.View()
	assert.Equal(t, BaseTopo, mapReady.ActiveBase)
	quakes, _ := mapReady.Overlay(OverlayEarthquakes)
	assert.False(t, quakes.Visible)
	assert.NotEqual(t, firstQuakes.Revision, quakes.Revision)

	waitDone(t, c)
	v, _ := c.View()
	assert.Equal(t, PhaseComplete, v.Phase)
	assert.Equal(t, BaseTopo, v.ActiveBase)
	quakes, _ = v.Overlay(OverlayEarthquakes)
	assert.False(t, quakes.Visible)
	plates, ok := v.Overlay(OverlayPlates)
	require.True(t, ok)
	assert.False(t, plates.Visible)
}

func TestComposer_PublishesEvents(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	c := NewComposer(
		&fakeQuakes{quakes: []feed.Earthquake{sampleQuake()}},
		&fakePlates{fc: samplePlates()},
		DefaultProfile(),
		WithBus(bus),
	)
	assert.Same(t, bus, c.Bus())

	require.NoError(t, c.Run(context.Background()))
	waitDone(t, c)

	actions := map[string]bool{}
	for range 3 {
		select {
		case e := <-ch:
			assert.NotEmpty(t, e.Revision)
			actions[e.Action] = true
		case <-time.After(time.Second):
			t.Fatal("missing event")
		}
	}
	assert.Equal(t, map[string]bool{"composed": true, "legend": true, "plates": true}, actions)
}

func TestComposer_Snapshot(t *testing.T) {
	var got []feed.Earthquake
	c := NewComposer(
		&fakeQuakes{quakes: []feed.Earthquake{sampleQuake()}},
		&fakePlates{fc: samplePlates()},
		DefaultProfile(),
		WithSnapshot(func(_ context.Context, q []feed.Earthquake) error {
			got = q
			return errors.New("disk full")
		}),
	)

	require.NoError(t, c.Run(context.Background()), "snapshot errors do not fail the pass")
	waitDone(t, c)
	require.Len(t, got, 1)
	assert.Equal(t, "us7000abcd", got[0].ID)
}

func TestComposer_Watch(t *testing.T) {
	clk := clockwork.NewFakeClock()
	quakes := &fakeQuakes{quakes: []feed.Earthquake{sampleQuake()}}
	c := NewComposer(quakes, &fakePlates{fc: samplePlates()}, DefaultProfile(), WithClock(clk))

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		c.Watch(ctx, time.Minute)
		close(stopped)
	}()

	require.NoError(t, clk.BlockUntilContext(ctx, 1))
	clk.Advance(time.Minute)
	require.Eventually(t, func() bool { return quakes.Calls() == 1 }, 2*time.Second, 10*time.Millisecond)

	clk.Advance(time.Minute)
	require.Eventually(t, func() bool { return quakes.Calls() == 2 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not stop")
	}
}
