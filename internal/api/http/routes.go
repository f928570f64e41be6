package httpapi

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/yorgis/weatherproxy/internal/geocode"
	"github.com/yorgis/weatherproxy/internal/units"
	"github.com/yorgis/weatherproxy/internal/weather"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *weather.Service, geocoder *geocode.Resolver) {
	api := app.Group("/api")

	api.Get("/weather", func(c *fiber.Ctx) error {
		start := time.Now()

		params, err := parseWeatherQuery(c)
		if err != nil {
			return errorJSON(c, fiber.StatusBadRequest, err, nil, start)
		}

		resp, err := service.Handle(c.UserContext(), params)
		if err != nil {
			var svcErr *weather.ServiceError
			loc := (*geocode.Result)(nil)
			if errors.As(err, &svcErr) {
				loc = svcErr.Location
			}
			return errorJSON(c, statusForFetch(weather.KindOf(err)), err, loc, start)
		}

		return c.JSON(resp)
	})

	api.Get("/c2l", func(c *fiber.Ctx) error {
		start := time.Now()

		lat, lon, err := parseCoordinates(c)
		if err != nil {
			return errorJSON(c, fiber.StatusBadRequest, err, nil, start)
		}

		result := geocoder.Resolve(c.UserContext(), lat, lon, c.QueryBool("noCache"))

		return c.JSON(fiber.Map{
			"city":    result.City,
			"country": result.Country,
			"meta": fiber.Map{
				"processedMs": time.Since(start).Milliseconds(),
				"coordinates": fiber.Map{"lat": lat, "lon": lon},
				"timestamp":   time.Now().UTC(),
			},
		})
	})

	api.Get("/summary", func(c *fiber.Ctx) error {
		start := time.Now()

		params, err := parseWeatherQuery(c)
		if err != nil {
			return errorJSON(c, fiber.StatusBadRequest, err, nil, start)
		}

		resp, err := service.Handle(c.UserContext(), params)
		if err != nil {
			return errorJSON(c, statusForFetch(weather.KindOf(err)), err, nil, start)
		}

		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.SendString(summarize(resp.Current, params.Units))
	})
}

// weatherQuery holds the raw query parameters for the weather endpoints.
// Coordinates stay strings until validated so a missing parameter is
// distinguishable from 0.
type weatherQuery struct {
	Lat string `validate:"required"`
	Lon string `validate:"required"`
}

func parseWeatherQuery(c *fiber.Ctx) (weather.RequestParams, error) {
	lat, lon, err := parseCoordinates(c)
	if err != nil {
		return weather.RequestParams{}, err
	}

	return weather.RequestParams{
		Latitude:     lat,
		Longitude:    lon,
		Timezone:     c.Query("tz"),
		Units:        units.ParseSystem(c.Query("units")),
		Provider:     c.Query("provider"),
		ForceRefresh: c.QueryBool("noCache"),
	}, nil
}

func parseCoordinates(c *fiber.Ctx) (float64, float64, error) {
	q := weatherQuery{Lat: c.Query("lat"), Lon: c.Query("lon")}
	if err := validate.Struct(q); err != nil {
		return 0, 0, fmt.Errorf("lat and lon query parameters are required: %w", weather.ErrInvalidParams)
	}

	lat, err := strconv.ParseFloat(q.Lat, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid lat %q: %w", q.Lat, weather.ErrInvalidParams)
	}
	lon, err := strconv.ParseFloat(q.Lon, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid lon %q: %w", q.Lon, weather.ErrInvalidParams)
	}
	return lat, lon, nil
}

// statusForFetch maps the fetch failure taxonomy onto HTTP statuses: rate
// limits propagate as 429, broken upstream payloads as 502, everything else
// as 503.
func statusForFetch(kind weather.FetchKind) int {
	switch kind {
	case weather.FetchRateLimited:
		return fiber.StatusTooManyRequests
	case weather.FetchMalformed:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusServiceUnavailable
	}
}

// errorJSON renders the shared error envelope. The geocode result, when the
// coordinator managed to obtain one, still names the place the request was
// about.
func errorJSON(c *fiber.Ctx, status int, err error, loc *geocode.Result, start time.Time) error {
	body := fiber.Map{
		"error": err.Error(),
		"meta": fiber.Map{
			"processedMs": time.Since(start).Milliseconds(),
			"timestamp":   time.Now().UTC(),
		},
	}
	if loc != nil {
		body["city"] = loc.City
		body["country"] = loc.Country
	}
	return c.Status(status).JSON(body)
}

// summarize renders a short plain-text description of current conditions
// using fixed temperature thresholds (in celsius, whatever the requested
// display units).
func summarize(cur weather.CurrentConditions, sys units.System) string {
	var b strings.Builder

	b.WriteString("Currently, the weather is ")
	if temp, ok := parseTemp(cur.Temp, sys); ok {
		switch {
		case temp > 25:
			b.WriteString("warm")
		case temp < 15:
			b.WriteString("cool")
		default:
			b.WriteString("mild")
		}
	} else {
		b.WriteString("of moderate temperature")
	}
	b.WriteString(". ")

	if cur.Precipitation != weather.SentinelValue {
		b.WriteString("There is a chance of precipitation. ")
	} else {
		b.WriteString("Precipitation data is not available. ")
	}

	b.WriteString("Overall, expect a day that feels ")
	if temp, ok := parseTemp(cur.Temp, sys); ok {
		switch {
		case temp > 25:
			b.WriteString("energetic")
		case temp < 15:
			b.WriteString("chilly")
		default:
			b.WriteString("comfortable")
		}
	} else {
		b.WriteString("average")
	}
	b.WriteString(".")

	return b.String()
}

// parseTemp recovers the numeric celsius value from a formatted temperature
// such as "21.5°C" or "70.7°F".
func parseTemp(formatted string, sys units.System) (float64, bool) {
	var v float64
	if _, err := fmt.Sscanf(formatted, "%f", &v); err != nil {
		return 0, false
	}
	if sys == units.Imperial {
		v = units.FToC(v)
	}
	return v, true
}
