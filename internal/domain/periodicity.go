package domain

import (
	"fmt"
	"strings"
)

// Periodicity is the configured cadence of required contact with a company.
type Periodicity string

const (
	Weekly    Periodicity = "weekly"
	Biweekly  Periodicity = "biweekly"
	Monthly   Periodicity = "monthly"
	Quarterly Periodicity = "quarterly"
	Yearly    Periodicity = "yearly"
)

// DefaultPeriodicity applies when a company is created without a cadence.
const DefaultPeriodicity = Monthly

// Periodicities lists every supported cadence, shortest first.
var Periodicities = []Periodicity{Weekly, Biweekly, Monthly, Quarterly, Yearly}

// Valid reports whether p is one of the supported cadences.
func (p Periodicity) Valid() bool {
	switch p {
	case Weekly, Biweekly, Monthly, Quarterly, Yearly:
		return true
	}
	return false
}

// ParsePeriodicity normalizes s (trim + lowercase). An empty string yields
// DefaultPeriodicity.
func ParsePeriodicity(s string) (Periodicity, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultPeriodicity, nil
	}
	p := Periodicity(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown periodicity %q", s)
	}
	return p, nil
}
