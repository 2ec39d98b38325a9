package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb/geojson"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/joeblew999/plat-quake/internal/feed"
	"github.com/joeblew999/plat-quake/internal/observability"
)

// EarthquakeSource supplies the earthquake feed.
type EarthquakeSource interface {
	Earthquakes(ctx context.Context) ([]feed.Earthquake, error)
}

// PlateSource supplies the plate boundary feed.
type PlateSource interface {
	Plates(ctx context.Context) (*geojson.FeatureCollection, error)
}

// Stage names the fetch that failed.
type Stage string

const (
	StageEarthquakes Stage = "earthquakes"
	StagePlates      Stage = "plates"
)

// FailureFunc receives fetch failures. The composer itself degrades silently.
type FailureFunc func(ctx context.Context, stage Stage, err error)

// SnapshotFunc receives every successfully fetched earthquake list.
type SnapshotFunc func(ctx context.Context, quakes []feed.Earthquake) error

// Option configures a Composer.
type Option func(*Composer)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Composer) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Composer) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithBus publishes view changes on b.
func WithBus(b *EventBus) Option {
	return func(c *Composer) {
		if b != nil {
			c.bus = b
		}
	}
}

// WithClock replaces the time source.
func WithClock(clk clockwork.Clock) Option {
	return func(c *Composer) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// WithFailureHandler replaces the default debug-level failure logging.
func WithFailureHandler(fn FailureFunc) Option {
	return func(c *Composer) {
		if fn != nil {
			c.onFailure = fn
		}
	}
}

// WithSnapshot registers a hook called with each fetched earthquake list.
func WithSnapshot(fn SnapshotFunc) Option {
	return func(c *Composer) {
		c.onSnapshot = fn
	}
}

// Composer runs composition passes and owns the current view.
//
// A pass fetches earthquakes, installs a view, attaches the legend and loads
// plate boundaries in the background. Plate results from an older pass are
// dropped once a newer view is installed. The active base layer and overlay
// visibility chosen on the previous view survive a new pass.
type Composer struct {
	quakes  EarthquakeSource
	plates  PlateSource
	profile MapProfile

	logger     *slog.Logger
	metrics    *observability.Metrics
	bus        *EventBus
	clock      clockwork.Clock
	onFailure  FailureFunc
	onSnapshot SnapshotFunc

	pass sync.Mutex // serialises Run

	mu   sync.RWMutex
	view *View
	gen  uint64
	done chan struct{}
}

// NewComposer creates a composer for the given sources and profile.
func NewComposer(quakes EarthquakeSource, plates PlateSource, profile MapProfile, opts ...Option) *Composer {
	done := make(chan struct{})
	close(done)

	c := &Composer{
		quakes:  quakes,
		plates:  plates,
		profile: profile,
		logger:  observability.DiscardLogger(),
		metrics: observability.NewMetrics(prometheus.NewRegistry()),
		bus:     NewEventBus(),
		clock:   clockwork.NewRealClock(),
		done:    done,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.onFailure == nil {
		c.onFailure = func(ctx context.Context, stage Stage, err error) {
			c.logger.DebugContext(ctx, "feed fetch failed", "stage", string(stage), "error", err)
		}
	}
	return c
}

// Profile returns the map profile views are composed from.
func (c *Composer) Profile() MapProfile {
	return c.profile
}

// Bus returns the event bus view changes are published on.
func (c *Composer) Bus() *EventBus {
	return c.bus
}

// Run executes one composition pass. It returns once the view is installed
// and the legend attached; plate boundaries load in the background and are
// bounded by ctx. On earthquake fetch failure no view is installed and the
// previous view, if any, stays current.
func (c *Composer) Run(ctx context.Context) error {
	c.pass.Lock()
	defer c.pass.Unlock()

	quakes, err := c.quakes.Earthquakes(ctx)
	if err != nil {
		c.onFailure(ctx, StageEarthquakes, err)
		return fmt.Errorf("compose map: %w", err)
	}
	if c.onSnapshot != nil {
		if err := c.onSnapshot(ctx, quakes); err != nil {
			c.logger.WarnContext(ctx, "earthquake snapshot failed", "error", err)
		}
	}

	overlay := BuildEarthquakeOverlay(quakes)
	overlay.Revision = uuid.NewString()
	view := Compose(c.profile, overlay, c.clock.Now())
	view.Revision = uuid.NewString()

	done := make(chan struct{})
	c.mu.Lock()
	var sel selection
	if c.view != nil {
		sel = c.view.selection()
		view = view.withSelection(sel)
	}
	c.gen++
	gen := c.gen
	c.view = &view
	c.done = done
	c.mu.Unlock()

	c.metrics.OverlayFeatures.WithLabelValues(OverlayEarthquakes).Set(float64(overlay.Count))
	c.metrics.OverlayFeatures.WithLabelValues(OverlayPlates).Set(0)
	c.changed(ctx, "composed", view)

	go c.loadPlates(ctx, gen, done, sel)

	c.apply(ctx, gen, "legend", func(v View) (View, error) {
		return v.WithLegend(DefaultLegend()), nil
	})
	return nil
}

func (c *Composer) loadPlates(ctx context.Context, gen uint64, done chan struct{}, sel selection) {
	defer close(done)

	fc, err := c.plates.Plates(ctx)
	if err != nil {
		c.onFailure(ctx, StagePlates, err)
		c.apply(ctx, gen, "plates-failed", func(v View) (View, error) {
			return v.WithPhase(PhaseComplete), nil
		})
		return
	}

	overlay := BuildPlateOverlay(fc)
	overlay.Revision = uuid.NewString()
	if visible, ok := sel.visible[OverlayPlates]; ok {
		overlay.Visible = visible
	}
	if c.apply(ctx, gen, "plates", func(v View) (View, error) {
		return v.WithOverlay(overlay).WithLayerControl().WithPhase(PhaseComplete), nil
	}) {
		c.metrics.OverlayFeatures.WithLabelValues(OverlayPlates).Set(float64(overlay.Count))
	}
}

// apply replaces the view of pass gen with fn's result. It reports whether
// the change was accepted.
func (c *Composer) apply(ctx context.Context, gen uint64, action string, fn func(View) (View, error)) bool {
	c.mu.Lock()
	if c.view == nil || c.gen != gen {
		c.mu.Unlock()
		c.logger.DebugContext(ctx, "dropping stale view change", "action", action)
		return false
	}
	next, err := fn(*c.view)
	if err != nil {
		c.mu.Unlock()
		return false
	}
	next.Revision = uuid.NewString()
	c.view = &next
	c.mu.Unlock()

	c.changed(ctx, action, next)
	return true
}

// update applies a user change to whatever view is current.
func (c *Composer) update(ctx context.Context, action string, fn func(View) (View, error)) (View, error) {
	c.mu.Lock()
	if c.view == nil {
		c.mu.Unlock()
		return View{}, ErrMapNotReady
	}
	if c.view.Control == nil {
		c.mu.Unlock()
		return View{}, ErrNoLayerControl
	}
	next, err := fn(*c.view)
	if err != nil {
		c.mu.Unlock()
		return View{}, err
	}
	next.Revision = uuid.NewString()
	c.view = &next
	c.mu.Unlock()

	c.changed(ctx, action, next)
	return next, nil
}

func (c *Composer) changed(ctx context.Context, action string, v View) {
	c.metrics.ViewChanges.WithLabelValues(action).Inc()
	c.metrics.ComposerPhase.Set(phaseValue(v.Phase))
	c.logger.InfoContext(ctx, "map view changed", "action", action, "phase", string(v.Phase), "revision", v.Revision)
	c.bus.Publish(Event{Action: action, Revision: v.Revision, Phase: v.Phase})
}

// SetBaseLayer switches the active base layer through the layer control.
func (c *Composer) SetBaseLayer(ctx context.Context, name string) (View, error) {
	return c.update(ctx, "base-layer", func(v View) (View, error) {
		return v.WithBaseLayer(name)
	})
}

// SetOverlayVisible toggles an overlay through the layer control.
func (c *Composer) SetOverlayVisible(ctx context.Context, id string, visible bool) (View, error) {
	return c.update(ctx, "overlay", func(v View) (View, error) {
		return v.WithOverlayVisible(id, visible)
	})
}

// View returns the current view.
func (c *Composer) View() (View, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.view == nil {
		return View{}, false
	}
	return *c.view, true
}

// Phase returns the composition phase of the current view.
func (c *Composer) Phase() Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.view == nil {
		return PhaseInitial
	}
	return c.view.Phase
}

// Done returns a channel closed once the plate stage of the current pass has
// settled. It is already closed before the first view exists.
func (c *Composer) Done() <-chan struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.done
}

// Watch reruns the composition every interval until ctx ends.
func (c *Composer) Watch(ctx context.Context, interval time.Duration) {
	ticker := c.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if err := c.Run(ctx); err != nil {
				c.logger.WarnContext(ctx, "map refresh failed", "error", err)
			}
		}
	}
}

func phaseValue(p Phase) float64 {
	switch p {
	case PhaseMapReady:
		return 1
	case PhaseComplete:
		return 2
	default:
		return 0
	}
}
