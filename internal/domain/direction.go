package domain

import "fmt"

// Direction restricts which side of the market a policy may trade.
type Direction int

const (
	// DirectionBoth permits long and short entries.
	DirectionBoth Direction = 0
	// DirectionLongOnly permits only long (buy) entries.
	DirectionLongOnly Direction = 1
	// DirectionShortOnly permits only short (sell) entries.
	DirectionShortOnly Direction = -1
)

// AllowsLong reports whether long entries are permitted.
func (d Direction) AllowsLong() bool {
	return d >= DirectionBoth
}

// AllowsShort reports whether short entries are permitted.
func (d Direction) AllowsShort() bool {
	return d <= DirectionBoth
}

// Valid reports whether d is one of the three known restrictions.
func (d Direction) Valid() bool {
	switch d {
	case DirectionBoth, DirectionLongOnly, DirectionShortOnly:
		return true
	}
	return false
}

// String returns the string representation of the direction.
func (d Direction) String() string {
	switch d {
	case DirectionLongOnly:
		return "long"
	case DirectionShortOnly:
		return "short"
	case DirectionBoth:
		return "both"
	default:
		return "unknown"
	}
}

// ParseDirection converts a config string into a Direction.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "long", "long_only":
		return DirectionLongOnly, nil
	case "short", "short_only":
		return DirectionShortOnly, nil
	case "both", "":
		return DirectionBoth, nil
	}
	return DirectionBoth, fmt.Errorf("unknown direction %q (want long, short or both)", s)
}
