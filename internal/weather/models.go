package weather

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// dateLayout is the ISO-8601 calendar date format used on the wire.
const dateLayout = "2006-01-02"

// Date is a calendar date without a time of day or zone.
// Dates are comparable with ==.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses an ISO-8601 date such as "2024-05-01".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// AddDays returns the date n days after d (n may be negative).
func (d Date) AddDays(n int) Date {
	return DateOf(time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n))
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) String() string {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Format(dateLayout)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Coordinates is a latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// Place is the best geocoder match for a free-text city name.
type Place struct {
	Name        string
	Coordinates Coordinates
}

// Conditions is the current-weather reading for a coordinate.
type Conditions struct {
	TemperatureC float64
	WindSpeedKmh float64
}

// Weather is the resolved reading returned to clients. Values are only
// built from a fully successful resolution and are passed by value.
type Weather struct {
	Date         Date    `json:"date"`
	City         string  `json:"city"`
	Description  string  `json:"description"`
	TemperatureC float64 `json:"temperatureC"`
}

// describeWind renders the wind speed the way the page expects it,
// e.g. "Wind 3.0 km/h".
func describeWind(kmh float64) string {
	return "Wind " + formatDecimal(kmh) + " km/h"
}

// formatDecimal prints f in its shortest exact form, keeping at least one
// fractional digit so whole numbers read "3.0" rather than "3".
func formatDecimal(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if strings.ContainsAny(s, ".NI") {
		return s
	}
	return s + ".0"
}
