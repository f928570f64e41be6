package units

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTemperatureRoundTrip(t *testing.T) {
	for _, c := range []float64{-40, -5.5, 0, 12.3, 37, 100} {
		back := FToC(CToF(c))
		if math.Abs(back-c) > 1e-9 {
			t.Errorf("round trip for %v drifted to %v", c, back)
		}
	}
}

func TestTemperatureFormatting(t *testing.T) {
	assert.Equal(t, "21.5°C", Temperature(21.5, Metric))
	assert.Equal(t, "70.7°F", Temperature(21.5, Imperial))
	assert.Equal(t, "-40.0°F", Temperature(-40, Imperial))
}

func TestWindSpeedFormatting(t *testing.T) {
	assert.Equal(t, "36.0 km/h", WindSpeedFromMS(10, Metric))
	assert.Equal(t, "22.4 mph", WindSpeedFromMS(10, Imperial))
	assert.Equal(t, "10.0 km/h", WindSpeedFromKmh(10, Metric))
	assert.Equal(t, "6.2 mph", WindSpeedFromKmh(10, Imperial))
}

func TestPrecipitationFormatting(t *testing.T) {
	assert.Equal(t, "2.5 mm", Precipitation(2.5, Metric))
	assert.Equal(t, "0.10 in", Precipitation(2.54, Imperial))
	assert.Equal(t, "0.0 mm", Precipitation(0, Metric))
}

func TestParseSystem(t *testing.T) {
	assert.Equal(t, Imperial, ParseSystem("imperial"))
	assert.Equal(t, Metric, ParseSystem("metric"))
	assert.Equal(t, Metric, ParseSystem(""))
	assert.Equal(t, Metric, ParseSystem("IMPERIAL"))
}
