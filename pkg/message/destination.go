package message

import (
	"fmt"
	"time"
)

// Frequency controls how often a destination's wire name rolls over to a new
// date suffix.
type Frequency int

const (
	// FrequencyDaily produces a new destination name every day.
	FrequencyDaily Frequency = iota
	// FrequencyMonthly produces a new destination name on the first of
	// every month.
	FrequencyMonthly
	// FrequencyConstant produces a fixed destination name without a date
	// suffix.
	FrequencyConstant
)

func (f Frequency) String() string {
	switch f {
	case FrequencyDaily:
		return "daily"
	case FrequencyMonthly:
		return "monthly"
	case FrequencyConstant:
		return "constant"
	default:
		return fmt.Sprintf("unknown(%d)", int(f))
	}
}

// ParseFrequency converts a textual frequency name into a Frequency.
func ParseFrequency(s string) (Frequency, error) {
	switch s {
	case "daily":
		return FrequencyDaily, nil
	case "monthly":
		return FrequencyMonthly, nil
	case "constant":
		return FrequencyConstant, nil
	default:
		return 0, fmt.Errorf("unknown destination frequency %q", s)
	}
}

func (f Frequency) formatDate(t time.Time) string {
	switch f {
	case FrequencyDaily:
		return t.Format("2006.01.02")
	case FrequencyMonthly:
		return t.Format("2006.01") + ".01"
	default:
		return ""
	}
}

// Destination is a logical name a message is written to. Depending on the
// frequency the wire name carries a date suffix that rolls over time.
type Destination struct {
	Prefix    string
	Frequency Frequency
}

// NewDestination builds a Destination, rejecting empty prefixes.
func NewDestination(prefix string, frequency Frequency) (Destination, error) {
	if prefix == "" {
		return Destination{}, fmt.Errorf("destination prefix cannot be empty")
	}
	return Destination{Prefix: prefix, Frequency: frequency}, nil
}

// Daily returns a destination whose wire name changes every day.
func Daily(prefix string) Destination {
	return Destination{Prefix: prefix, Frequency: FrequencyDaily}
}

// Monthly returns a destination whose wire name changes every month.
func Monthly(prefix string) Destination {
	return Destination{Prefix: prefix, Frequency: FrequencyMonthly}
}

// Constant returns a destination whose wire name never changes.
func Constant(prefix string) Destination {
	return Destination{Prefix: prefix, Frequency: FrequencyConstant}
}

// WireName formats the destination for the given point in time, e.g.
// "logalike-2015.09.30" for a daily destination.
func (d Destination) WireName(t time.Time) string {
	if d.Frequency == FrequencyConstant {
		return d.Prefix
	}
	return d.Prefix + "-" + d.Frequency.formatDate(t)
}
