package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoTariff means the event predates the asset's earliest tariff
	// activation. This is a configuration error and is never defaulted.
	ErrNoTariff = errors.New("no_tariff_for_event_time")
)

// Resolve scans versions in their existing descending-by-activation order and
// returns the tariffs of the first version activated strictly before
// eventTime.
func Resolve(versions []Version, eventTime time.Time) ([]PlanRef, error) {
	v, _, err := resolveIndex(versions, eventTime)
	if err != nil {
		return nil, err
	}
	return v.Tariffs, nil
}

// ResolveVersion is Resolve returning the whole matched version, for callers
// that also need the activation date or migration marker.
func ResolveVersion(versions []Version, eventTime time.Time) (Version, error) {
	v, _, err := resolveIndex(versions, eventTime)
	return v, err
}

// OlderVersionExists reports whether a version older than the one matched for
// eventTime exists. The proration calculator uses it to detect billing
// history predating the matched version.
func OlderVersionExists(versions []Version, eventTime time.Time) (bool, error) {
	_, idx, err := resolveIndex(versions, eventTime)
	if err != nil {
		return false, err
	}
	return idx+1 < len(versions), nil
}

func resolveIndex(versions []Version, eventTime time.Time) (Version, int, error) {
	for i, v := range versions {
		// Event time must be strictly later than the activation midnight.
		if eventTime.After(v.ActivatedAt()) {
			return v, i, nil
		}
	}
	return Version{}, -1, fmt.Errorf("%w: event time %s predates all tariff versions",
		ErrNoTariff, eventTime.Format(time.RFC3339))
}
