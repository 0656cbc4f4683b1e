package engine

import "github.com/ringsync/ringsync/internal/provider"

// Unit conversion lives in the engine, not in adapters, so every
// provider's output becomes comparable at one place.

const (
	metersPerKilometer = 1000.0
	metersPerMile      = 1609.344
	kilogramsPerPound  = 0.45359237
)

// toMeters converts a provider distance quantity to meters. Unknown
// units are treated as meters already — the daemon's documented
// default.
func toMeters(q provider.Quantity) float64 {
	switch q.Unit {
	case provider.UnitKilometers:
		return q.Value * metersPerKilometer
	case provider.UnitMiles:
		return q.Value * metersPerMile
	default:
		return q.Value
	}
}

// toKilograms converts a provider weight quantity to kilograms.
func toKilograms(q provider.Quantity) float64 {
	if q.Unit == provider.UnitPounds {
		return q.Value * kilogramsPerPound
	}

	return q.Value
}
