package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGranularityWire(t *testing.T) {
	for g, wire := range granularityWire {
		parsed, err := ParseGranularity(wire)
		require.NoError(t, err)
		assert.Equal(t, g, parsed)
		assert.Equal(t, wire, g.String())
		assert.True(t, g.Valid())
	}

	_, err := ParseGranularity("2h")
	assert.Error(t, err)
	assert.False(t, Granularity(0).Valid())
	assert.Equal(t, "Granularity(99)", Granularity(99).String())
}

func TestEnergyWire(t *testing.T) {
	tests := []struct {
		wire string
		want Energy
	}{
		{"J", EnergyJoules},
		{"kW", EnergyKilowatts},
		{"kWh", EnergyKilowattHours},
		{"+pf", EnergyPowerFactor},
	}
	for _, tt := range tests {
		t.Run(tt.wire, func(t *testing.T) {
			got, err := ParseEnergy(tt.wire)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wire, got.String())
		})
	}

	_, err := ParseEnergy("MWh")
	assert.Error(t, err)

	out, err := json.Marshal(EnergyKilowattHours)
	require.NoError(t, err)
	assert.Equal(t, `"kWh"`, string(out))
}

func TestGroupWire(t *testing.T) {
	g, err := ParseGroup("phases")
	require.NoError(t, err)
	assert.Equal(t, GroupPhases, g)
	assert.Equal(t, "", GroupNone.String())

	_, err = ParseGroup("circuits")
	assert.Error(t, err)
}

func TestClassifySignal(t *testing.T) {
	tests := []struct {
		name  string
		comms string
		dbm   int
		want  SignalQuality
	}{
		{"zero is unknown", "4G", 0, SignalUnknown},
		{"3G excellent at boundary", "3G", -89, SignalExcellent},
		{"3G good", "3G", -92, SignalGood},
		{"3G low", "3G", -101, SignalLow},
		{"3G poor", "3G", -105, SignalPoor},
		{"3G none", "3G", -111, SignalNone},
		{"4G excellent", "4G", -60, SignalExcellent},
		{"4G good", "4G", -70, SignalGood},
		{"4G low", "4G", -90, SignalLow},
		{"4G poor", "4G", -96, SignalPoor},
		{"4G none", "4G", -97, SignalNone},
		{"wifi excellent", "wifi", -30, SignalExcellent},
		{"wifi good", "wifi", -55, SignalGood},
		{"wifi low", "wifi", -60, SignalLow},
		{"wifi poor", "wifi", -90, SignalPoor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ClassifySignal(tt.comms, tt.dbm)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got, got.String())
		})
	}

	_, err := ClassifySignal("lora", -50)
	assert.Error(t, err)
}

func TestSignalQualityJSON(t *testing.T) {
	out, err := json.Marshal(SignalNone)
	require.NoError(t, err)
	assert.Equal(t, `"No Signal"`, string(out))
}

func TestTimestampJSON(t *testing.T) {
	var rec struct {
		At Timestamp `json:"at"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"at":1700000000}`), &rec))
	assert.True(t, rec.At.Equal(time.Unix(1700000000, 0)))

	out, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"at":1700000000}`, string(out))

	require.NoError(t, json.Unmarshal([]byte(`{"at":null}`), &rec))
	assert.True(t, rec.At.IsZero())

	assert.Error(t, json.Unmarshal([]byte(`{"at":"soon"}`), &rec))
}

func TestDecodeDeviceInfo(t *testing.T) {
	body := `{
		"id": "D123",
		"label": "Shed",
		"model": "3W+2S",
		"shortEnergyReportingInterval": 30,
		"comms": {"type": "cellular", "signalQualityDbm": -70, "lastHeardAt": 1700000000},
		"channels": [{"id": "D123_1", "label": "Mains", "categoryId": 1, "categoryLabel": "Grid", "ctRating": 60}],
		"phases": {"count": 1, "grouping": [{"included": ["D123_1"]}]},
		"switches": [{"id": "D123_S1", "state": "closed", "contactorType": "NO"}]
	}`

	var info DeviceInfo
	require.NoError(t, json.Unmarshal([]byte(body), &info))

	assert.Equal(t, "Shed", info.Label)
	assert.Equal(t, []string{"D123_1"}, info.Phases.Grouping[0].Included)
	require.Len(t, info.Switches, 1)
	assert.Equal(t, "closed", info.Switches[0].State)

	q, err := info.Comms.SignalQuality()
	require.NoError(t, err)
	assert.Equal(t, SignalGood, q)
}

func TestLongDataReadings(t *testing.T) {
	rec := LongData{
		Timestamp:      Timestamp{time.Unix(1700000000, 0)},
		Duration:       900,
		EnergyReal:     []float64{10, 20, 30},
		EnergyReactive: []float64{1, 2},
		VoltageRMSMax:  []float64{241.2, 240.8, 239.9},
		Unit:           EnergyKilowattHours,
	}

	readings := rec.Readings("D1")
	require.Len(t, readings, 3)
	assert.Equal(t, EnergyReading{
		DeviceID:       "D1",
		Channel:        2,
		Time:           time.Unix(1700000000, 0),
		Duration:       900,
		Unit:           EnergyKilowattHours,
		EnergyReal:     30,
		EnergyReactive: 0,
		VoltageMax:     239.9,
	}, readings[2])
	assert.Equal(t, 2.0, readings[1].EnergyReactive)
}
