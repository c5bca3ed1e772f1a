package domain

import (
	"math"
	"strconv"
	"time"
)

// Conversion is one answered Fahrenheit to Celsius request.
type Conversion struct {
	Fahrenheit    float64
	Celsius       float64
	AppIdentifier AppIdentifier
	At            time.Time
}

// NewConversion converts fahrenheit and stamps the result with the serving
// process identifier.
func NewConversion(id AppIdentifier, fahrenheit float64) Conversion {
	return Conversion{
		Fahrenheit:    fahrenheit,
		Celsius:       FahrenheitToCelsius(fahrenheit),
		AppIdentifier: id,
		At:            time.Now().UTC(),
	}
}

// FahrenheitToCelsius applies C = (F - 32) × 5/9 in float64.
// Nothing is rounded here; rounding happens only in FormatCelsius.
func FahrenheitToCelsius(fahrenheit float64) float64 {
	return (fahrenheit - 32) * 5.0 / 9.0
}

// FormatCelsius renders a Celsius value with exactly six decimal places.
// Non-finite values render as "nan", "inf" and "-inf".
func FormatCelsius(celsius float64) string {
	switch {
	case math.IsNaN(celsius):
		return "nan"
	case math.IsInf(celsius, 1):
		return "inf"
	case math.IsInf(celsius, -1):
		return "-inf"
	}
	return strconv.FormatFloat(celsius, 'f', 6, 64)
}

// LedgerStats summarizes the conversions one process has recorded.
// Min, Max, FirstAt and LastAt are zero when Count is zero.
type LedgerStats struct {
	AppIdentifier AppIdentifier
	Count         int64
	MinFahrenheit float64
	MaxFahrenheit float64
	FirstAt       time.Time
	LastAt        time.Time
}
