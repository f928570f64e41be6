package weather

import (
	"fmt"
	"time"

	"github.com/yorgis/weatherproxy/internal/units"
)

const (
	clockLayout = "15:04"
	dateLayout  = "Mon, Jan 2"
)

// Normalize maps a provider-neutral raw forecast into the canonical
// snapshot: every timestamp rendered in the request timezone, every numeric
// run through the unit converter, every absent field replaced with a
// sentinel. When the raw forecast has no daily series, one is aggregated
// from the hourly points grouped by local calendar date — before any
// truncation, so daily max/min/sum see the full horizon.
func Normalize(raw *RawForecast, sys units.System, loc *time.Location) WeatherSnapshot {
	snapshot := WeatherSnapshot{
		Current: normalizeCurrent(raw.Current, raw.WindUnit, sys, loc),
	}

	hourly := make([]HourPoint, 0, len(raw.Hourly))
	for _, h := range raw.Hourly {
		hourly = append(hourly, HourPoint{
			Time:          h.Time.In(loc).Format(clockLayout),
			Temp:          formatTemp(h.Temp, sys),
			Precipitation: formatPrecip(h.Precip, sys),
			PrecipChance:  formatPercent(h.PrecipChance),
			WindSpeed:     formatWind(h.WindSpeed, raw.WindUnit, sys),
			WindDirection: formatDirection(h.WindDir),
		})
	}

	daily := raw.Daily
	if len(daily) == 0 {
		daily = aggregateDaily(raw.Hourly, loc)
	}
	days := make([]DayPoint, 0, len(daily))
	for _, d := range daily {
		days = append(days, DayPoint{
			Date:          d.Date.In(loc).Format(dateLayout),
			TempMax:       formatTemp(d.TempMax, sys),
			TempMin:       formatTemp(d.TempMin, sys),
			Precipitation: formatPrecip(d.Precip, sys),
			PrecipChance:  formatPercent(d.PrecipChance),
			Sunrise:       formatClock(d.Sunrise, loc),
			Sunset:        formatClock(d.Sunset, loc),
		})
	}

	// Truncate only after daily aggregation has seen everything.
	if len(hourly) > 24 {
		hourly = hourly[:24]
	}
	if len(days) > 7 {
		days = days[:7]
	}
	snapshot.Hourly = hourly
	snapshot.Daily = days
	return snapshot
}

func normalizeCurrent(c RawCurrent, wind WindUnit, sys units.System, loc *time.Location) CurrentConditions {
	cc := CurrentConditions{
		Temp:          formatTemp(c.Temp, sys),
		FeelsLike:     formatTemp(c.FeelsLike, sys),
		Humidity:      formatPercent(c.Humidity),
		Precipitation: formatPrecip(c.Precip, sys),
		WindSpeed:     formatWind(c.WindSpeed, wind, sys),
		WindDirection: formatDirection(c.WindDir),
		Sunrise:       formatClock(c.Sunrise, loc),
		Sunset:        formatClock(c.Sunset, loc),
	}
	// A current reading without feels-like falls back to the air temperature.
	if cc.FeelsLike == SentinelValue {
		cc.FeelsLike = cc.Temp
	}
	return cc
}

// aggregateDaily buckets hourly points by their local calendar date: daily
// temperature is the max/min over the bucket, precipitation the sum, chance
// the max. The local (not UTC) date decides which day a point belongs to.
func aggregateDaily(hours []RawHour, loc *time.Location) []RawDay {
	type bucket struct {
		date      time.Time
		tempMax   *float64
		tempMin   *float64
		precipSum *float64
		chanceMax *float64
	}

	var order []string
	buckets := make(map[string]*bucket)

	for _, h := range hours {
		local := h.Time.In(loc)
		key := local.Format("2006-01-02")
		b, ok := buckets[key]
		if !ok {
			b = &bucket{date: time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)}
			buckets[key] = b
			order = append(order, key)
		}

		if h.Temp != nil {
			if b.tempMax == nil || *h.Temp > *b.tempMax {
				v := *h.Temp
				b.tempMax = &v
			}
			if b.tempMin == nil || *h.Temp < *b.tempMin {
				v := *h.Temp
				b.tempMin = &v
			}
		}
		if h.Precip != nil {
			if b.precipSum == nil {
				b.precipSum = new(float64)
			}
			*b.precipSum += *h.Precip
		}
		if h.PrecipChance != nil {
			if b.chanceMax == nil || *h.PrecipChance > *b.chanceMax {
				v := *h.PrecipChance
				b.chanceMax = &v
			}
		}
	}

	days := make([]RawDay, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		days = append(days, RawDay{
			Date:         b.date,
			TempMax:      b.tempMax,
			TempMin:      b.tempMin,
			Precip:       b.precipSum,
			PrecipChance: b.chanceMax,
		})
	}
	return days
}

func formatTemp(v *float64, sys units.System) string {
	if v == nil {
		return SentinelValue
	}
	return units.Temperature(*v, sys)
}

func formatPrecip(v *float64, sys units.System) string {
	if v == nil {
		return SentinelValue
	}
	return units.Precipitation(*v, sys)
}

func formatWind(v *float64, wind WindUnit, sys units.System) string {
	if v == nil {
		return SentinelValue
	}
	if wind == WindKmh {
		return units.WindSpeedFromKmh(*v, sys)
	}
	return units.WindSpeedFromMS(*v, sys)
}

func formatPercent(v *float64) string {
	if v == nil {
		return SentinelValue
	}
	return fmt.Sprintf("%.0f%%", *v)
}

func formatDirection(v *float64) string {
	if v == nil {
		return SentinelValue
	}
	return fmt.Sprintf("%.0f°", *v)
}

func formatClock(t *time.Time, loc *time.Location) string {
	if t == nil {
		return SentinelClock
	}
	return t.In(loc).Format(clockLayout)
}
