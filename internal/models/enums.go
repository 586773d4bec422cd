package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Granularity is the bucket size of long energy data.
type Granularity int

const (
	GranularityFiveMinute Granularity = iota + 1
	GranularityFifteenMinute
	GranularityHalfHourly
	GranularityHourly
	GranularityDaily
	GranularityWeekly
	GranularityMonthly
)

var granularityWire = map[Granularity]string{
	GranularityFiveMinute:    "5m",
	GranularityFifteenMinute: "15m",
	GranularityHalfHourly:    "30m",
	GranularityHourly:        "hour",
	GranularityDaily:         "day",
	GranularityWeekly:        "week",
	GranularityMonthly:       "month",
}

var granularityByWire = invert(granularityWire)

// ParseGranularity maps a wire value such as "15m" or "hour".
func ParseGranularity(s string) (Granularity, error) {
	g, ok := granularityByWire[strings.TrimSpace(s)]
	if !ok {
		return 0, fmt.Errorf("unknown granularity %q", s)
	}
	return g, nil
}

func (g Granularity) String() string {
	if s, ok := granularityWire[g]; ok {
		return s
	}
	return fmt.Sprintf("Granularity(%d)", int(g))
}

// Valid reports whether g has a wire representation.
func (g Granularity) Valid() bool {
	_, ok := granularityWire[g]
	return ok
}

// Energy is the unit the API converts energy readings to.
type Energy int

const (
	EnergyJoules Energy = iota
	EnergyKilowatts
	EnergyKilowattHours
	EnergyPowerFactor
)

var energyWire = map[Energy]string{
	EnergyJoules:        "J",
	EnergyKilowatts:     "kW",
	EnergyKilowattHours: "kWh",
	EnergyPowerFactor:   "+pf",
}

var energyByWire = invert(energyWire)

func ParseEnergy(s string) (Energy, error) {
	e, ok := energyByWire[strings.TrimSpace(s)]
	if !ok {
		return 0, fmt.Errorf("unknown energy unit %q", s)
	}
	return e, nil
}

func (e Energy) String() string {
	if s, ok := energyWire[e]; ok {
		return s
	}
	return fmt.Sprintf("Energy(%d)", int(e))
}

func (e Energy) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.String())
}

// Group selects how channels are aggregated in a response.
type Group int

const (
	GroupNone Group = iota
	GroupPhases
)

var groupWire = map[Group]string{
	GroupPhases: "phases",
}

var groupByWire = invert(groupWire)

func ParseGroup(s string) (Group, error) {
	g, ok := groupByWire[strings.TrimSpace(s)]
	if !ok {
		return GroupNone, fmt.Errorf("unknown group %q", s)
	}
	return g, nil
}

func (g Group) String() string {
	return groupWire[g]
}

// SignalQuality classifies the comms signal strength of a device.
type SignalQuality int

const (
	SignalUnknown SignalQuality = iota
	SignalExcellent
	SignalGood
	SignalLow
	SignalPoor
	SignalNone
)

var signalWire = map[SignalQuality]string{
	SignalUnknown:   "Unknown",
	SignalExcellent: "Excellent",
	SignalGood:      "Good",
	SignalLow:       "Low",
	SignalPoor:      "Poor",
	SignalNone:      "No Signal",
}

func (q SignalQuality) String() string {
	return signalWire[q]
}

func (q SignalQuality) MarshalJSON() ([]byte, error) {
	return json.Marshal(q.String())
}

func invert[K comparable, V comparable](m map[K]V) map[V]K {
	out := make(map[V]K, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}
