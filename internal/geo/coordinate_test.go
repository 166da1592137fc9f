package geo

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestCoordinateValidate(t *testing.T) {
	tests := []struct {
		name  string
		c     Coordinate
		valid bool
	}{
		{"pickup", LngLat(124.45771485849178, 8.596826464192702), true},
		{"corner max", LngLat(180, 90), true},
		{"corner min", LngLat(-180, -90), true},
		{"lng too large", LngLat(180.0001, 0), false},
		{"lat too small", LngLat(0, -90.5), false},
		{"nan", LngLat(math.NaN(), 0), false},
		{"inf", LngLat(0, math.Inf(1)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.c.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidCoordinate)
			}
		})
	}
}

func TestCoordinateString(t *testing.T) {
	assert.Equal(t, "124.4577, 8.5968", LngLat(124.45771485849178, 8.596826464192702).String())
}

func TestCoordinateJSON(t *testing.T) {
	data, err := json.Marshal(LngLat(124.5, 8.25))
	require.NoError(t, err)
	assert.JSONEq(t, `[124.5, 8.25]`, string(data))

	var c Coordinate
	require.NoError(t, json.Unmarshal([]byte(`[1.5, -2.5]`), &c))
	assert.Equal(t, LngLat(1.5, -2.5), c)

	err = json.Unmarshal([]byte(`[1.5]`), &c)
	assert.ErrorIs(t, err, ErrInvalidCoordinate)
}

func TestCoordinateYAML(t *testing.T) {
	var doc struct {
		At Coordinate `yaml:"at"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("at: [124.5723121079061, 8.521490348231794]\n"), &doc))
	assert.Equal(t, LngLat(124.5723121079061, 8.521490348231794), doc.At)

	out, err := yaml.Marshal(doc)
	require.NoError(t, err)
	assert.Equal(t, "at: [124.5723121079061, 8.521490348231794]\n", string(out))

	err = yaml.Unmarshal([]byte("at: [1, 2, 3]\n"), &doc)
	assert.ErrorIs(t, err, ErrInvalidCoordinate)
}
