// Package units converts and formats raw metric quantities into the unit
// system a caller asked for. All functions here are pure and total: inputs
// are assumed to be finite numbers, missing upstream values are substituted
// with sentinels before they ever reach this package.
package units

import "fmt"

// System selects the output unit system for formatted values.
type System string

const (
	Metric   System = "metric"
	Imperial System = "imperial"
)

// ParseSystem maps a query-string token to a System. Anything that is not
// exactly "imperial" falls back to metric.
func ParseSystem(s string) System {
	if s == string(Imperial) {
		return Imperial
	}
	return Metric
}

func CToF(c float64) float64 { return c*9/5 + 32 }

func FToC(f float64) float64 { return (f - 32) * 5 / 9 }

func MsToKmh(ms float64) float64 { return ms * 3.6 }

func MsToMph(ms float64) float64 { return ms * 2.23694 }

func KmhToMph(kmh float64) float64 { return kmh * 0.621371 }

func MmToIn(mm float64) float64 { return mm / 25.4 }

// Temperature formats a Celsius value in the requested system.
func Temperature(celsius float64, sys System) string {
	if sys == Imperial {
		return fmt.Sprintf("%.1f°F", CToF(celsius))
	}
	return fmt.Sprintf("%.1f°C", celsius)
}

// WindSpeedFromMS formats a wind speed measured in m/s.
func WindSpeedFromMS(ms float64, sys System) string {
	if sys == Imperial {
		return fmt.Sprintf("%.1f mph", MsToMph(ms))
	}
	return fmt.Sprintf("%.1f km/h", MsToKmh(ms))
}

// WindSpeedFromKmh formats a wind speed measured in km/h.
func WindSpeedFromKmh(kmh float64, sys System) string {
	if sys == Imperial {
		return fmt.Sprintf("%.1f mph", KmhToMph(kmh))
	}
	return fmt.Sprintf("%.1f km/h", kmh)
}

// Precipitation formats a precipitation amount measured in millimetres.
func Precipitation(mm float64, sys System) string {
	if sys == Imperial {
		return fmt.Sprintf("%.2f in", MmToIn(mm))
	}
	return fmt.Sprintf("%.1f mm", mm)
}
