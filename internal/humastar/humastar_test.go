package humastar

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSignals(t *testing.T) {
	s, err := ParseSignals([]byte(`{"baselayer":"Satellite","visible":true,"zoom":5}`))
	require.NoError(t, err)

	assert.Equal(t, "Satellite", s.String("baselayer"))
	assert.True(t, s.Bool("visible"))
	assert.True(t, s.Has("zoom"))
	assert.Empty(t, s.String("zoom"), "wrong type reads as zero")
	assert.False(t, s.Has("missing"))
}

func TestSignalsInput_MustParse(t *testing.T) {
	in := &SignalsInput{RawBody: []byte(`not json`)}
	_, err := in.MustParse()
	require.Error(t, err)

	var se interface{ GetStatus() int }
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.GetStatus())
}
