package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Timestamp is an instant encoded as epoch seconds on the wire.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	secs, err := strconv.ParseFloat(string(bytes.Trim(data, `"`)), 64)
	if err != nil {
		return fmt.Errorf("invalid epoch timestamp %s: %w", data, err)
	}
	t.Time = time.Unix(int64(secs), 0)
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(t.Unix(), 10)), nil
}

// ShortData is one short-energy record, typically 30 seconds long.
type ShortData struct {
	Timestamp      Timestamp `json:"timestamp"`
	Duration       int       `json:"duration"`
	Frequency      float64   `json:"frequency"`
	GroupedBy      string    `json:"groupedBy,omitempty"`
	EnergyReal     []float64 `json:"eReal"`
	EnergyReactive []float64 `json:"eReactive"`
	VoltageRMS     []float64 `json:"vRMS"`
	CurrentRMS     []float64 `json:"iRMS"`

	// Unit is the energy unit requested for this record; not on the wire.
	Unit Energy `json:"-"`
}

// LongData is one long-energy record at the requested granularity.
type LongData struct {
	Timestamp              Timestamp `json:"timestamp"`
	Duration               int       `json:"duration"`
	EnergyReal             []float64 `json:"eReal"`
	EnergyRealNegative     []float64 `json:"eRealNegative"`
	EnergyRealPositive     []float64 `json:"eRealPositive"`
	EnergyReactive         []float64 `json:"eReactive"`
	EnergyReactiveNegative []float64 `json:"eReactiveNegative"`
	EnergyReactivePositive []float64 `json:"eReactivePositive"`
	VoltageRMSMin          []float64 `json:"vRMSMin"`
	VoltageRMSMax          []float64 `json:"vRMSMax"`
	CurrentRMSMin          []float64 `json:"iRMSMin"`
	CurrentRMSMax          []float64 `json:"iRMSMax"`

	Unit Energy `json:"-"`
}

// ModbusData is one reading from a Modbus-attached meter.
type ModbusData struct {
	Timestamp Timestamp `json:"timestamp"`
	Model     string    `json:"model"`

	CurrentA     float64 `json:"_Ia"`
	CurrentB     float64 `json:"_Ib"`
	CurrentC     float64 `json:"_Ic"`
	PowerFactorA float64 `json:"_PFa"`
	PowerFactorB float64 `json:"_PFb"`
	PowerFactorC float64 `json:"_PFc"`
	VoltageAN    float64 `json:"_Uan"`
	VoltageBN    float64 `json:"_Ubn"`
	VoltageCN    float64 `json:"_Ucn"`

	KVAh        int64 `json:"kVAh"`
	KWhExport   int64 `json:"kWh_Exp"`
	KWhImport   int64 `json:"kWh_Imp"`
	KWhNet      int64 `json:"kWh_Net"`
	KWhTotal    int64 `json:"kWh_Tot"`
	KvarhQ1     int64 `json:"kvarh_Q1"`
	KvarhQ2     int64 `json:"kvarh_Q2"`
	KvarhQ3     int64 `json:"kvarh_Q3"`
	KvarhQ4     int64 `json:"kvarh_Q4"`
	KvarhExport int64 `json:"kvarh_Exp"`
	KvarhImport int64 `json:"kvarh_Imp"`
	KvarhNet    int64 `json:"kvarh_Net"`
	KvarhTotal  int64 `json:"kvarh_Tot"`
}

// ChannelCategory is a reference entry for channel classification.
type ChannelCategory struct {
	ID          int    `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// DeviceModel describes a supported hardware model.
type DeviceModel struct {
	Code           string `json:"code"`
	DisplayName    string `json:"displayName"`
	ChannelsCount  int    `json:"channelsCount"`
	SwitchesCount  int    `json:"switchesCount"`
	Communications string `json:"communications"`
}

// DevicePending holds configuration the device has not applied yet.
type DevicePending struct {
	ShortEnergyReportingInterval int    `json:"shortEnergyReportingInterval,omitempty"`
	CtRating                     int    `json:"ctRating,omitempty"`
	State                        string `json:"state,omitempty"`
}

// DeviceComms describes how the device reaches the API.
type DeviceComms struct {
	Type             string    `json:"type"`
	LastHeardAt      Timestamp `json:"lastHeardAt"`
	SignalQualityDbm int       `json:"signalQualityDbm"`
	NetworkID        string    `json:"networkId,omitempty"`
	APN              string    `json:"apn,omitempty"`
	SimID            string    `json:"simId,omitempty"`
	IMSI             string    `json:"imsi,omitempty"`
}

// SignalQuality classifies the comms signal. Cellular devices do not report
// their generation, so they are classified against the 4G bands.
func (c DeviceComms) SignalQuality() (SignalQuality, error) {
	switch c.Type {
	case "wifi":
		return ClassifySignal("wifi", c.SignalQualityDbm)
	case "cellular":
		return ClassifySignal("4G", c.SignalQualityDbm)
	default:
		return SignalUnknown, nil
	}
}

// ChannelInfo is the wire form of a device channel.
type ChannelInfo struct {
	ID            string         `json:"id"`
	CtRating      int            `json:"ctRating"`
	Label         string         `json:"label"`
	CategoryID    int            `json:"categoryId"`
	CategoryLabel string         `json:"categoryLabel"`
	Pending       *DevicePending `json:"pending,omitempty"`
}

// SwitchInfo is the wire form of a device switch.
type SwitchInfo struct {
	ID               string         `json:"id"`
	State            string         `json:"state"`
	Label            string         `json:"label"`
	ContactorType    string         `json:"contactorType"`
	ClosedStateLabel string         `json:"closedStateLabel"`
	OpenStateLabel   string         `json:"openStateLabel"`
	Pending          *DevicePending `json:"pending,omitempty"`
}

// ChannelGrouping lists the channels making up one phase.
type ChannelGrouping struct {
	Included []string `json:"included"`
}

// PhaseConfiguration describes the device phase wiring.
type PhaseConfiguration struct {
	Count    int               `json:"count"`
	Grouping []ChannelGrouping `json:"grouping"`
}

// DeviceInfo is the full representation returned by GET /devices/{id}.
type DeviceInfo struct {
	ID                           string             `json:"id"`
	Label                        string             `json:"label"`
	Timezone                     string             `json:"timezone"`
	Model                        string             `json:"model"`
	FirmwareVersion              string             `json:"firmwareVersion"`
	LatestStatus                 json.RawMessage    `json:"latestStatus,omitempty"`
	ShortEnergyReportingInterval int                `json:"shortEnergyReportingInterval"`
	Pending                      *DevicePending     `json:"pending,omitempty"`
	Comms                        DeviceComms        `json:"comms"`
	Channels                     []ChannelInfo      `json:"channels"`
	Phases                       PhaseConfiguration `json:"phases"`
	Switches                     []SwitchInfo       `json:"switches"`
}
