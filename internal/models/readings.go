package models

import "time"

// EnergyReading is one channel of a long-energy record, flattened for storage.
type EnergyReading struct {
	DeviceID       string
	Channel        int
	Time           time.Time
	Duration       int
	Unit           Energy
	EnergyReal     float64
	EnergyReactive float64
	VoltageMin     float64
	VoltageMax     float64
	CurrentMin     float64
	CurrentMax     float64
}

// EnergyBucket is an aggregated value for one channel over a time bucket.
type EnergyBucket struct {
	Time    time.Time
	Channel int
	Value   float64
}

// Readings splits the per-channel arrays of d into one reading per channel.
// Channels missing from a shorter array read as zero.
func (d LongData) Readings(deviceID string) []EnergyReading {
	n := len(d.EnergyReal)
	for _, arr := range [][]float64{d.EnergyReactive, d.VoltageRMSMin, d.VoltageRMSMax, d.CurrentRMSMin, d.CurrentRMSMax} {
		n = max(n, len(arr))
	}

	out := make([]EnergyReading, n)
	for i := range out {
		out[i] = EnergyReading{
			DeviceID:       deviceID,
			Channel:        i,
			Time:           d.Timestamp.Time,
			Duration:       d.Duration,
			Unit:           d.Unit,
			EnergyReal:     at(d.EnergyReal, i),
			EnergyReactive: at(d.EnergyReactive, i),
			VoltageMin:     at(d.VoltageRMSMin, i),
			VoltageMax:     at(d.VoltageRMSMax, i),
			CurrentMin:     at(d.CurrentRMSMin, i),
			CurrentMax:     at(d.CurrentRMSMax, i),
		}
	}
	return out
}

func at(values []float64, i int) float64 {
	if i < len(values) {
		return values[i]
	}
	return 0
}
