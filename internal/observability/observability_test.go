package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARNING"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "info", "json")

	logger.Debug("hidden")
	logger.Info("feed fetched", "feed", "earthquakes")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "feed fetched", line["msg"])
	assert.Equal(t, "earthquakes", line["feed"])
}

func TestNewLoggerText(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "debug", "text")

	logger.Debug("plates pending")

	assert.Contains(t, buf.String(), "msg=\"plates pending\"")
}

func TestMetricsIsolatedRegistries(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.FeedFetches.WithLabelValues("earthquakes", "success").Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.FeedFetches.WithLabelValues("earthquakes", "success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.FeedFetches.WithLabelValues("earthquakes", "success")))
}
