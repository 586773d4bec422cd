package models

import "fmt"

// Signal bands in dBm, best first; the classes line up with qualityBands.
var (
	qualityBands = [...]SignalQuality{SignalExcellent, SignalGood, SignalLow, SignalPoor}

	threeGBand = [...]int{-89, -95, -101, -110}
	fourGBand  = [...]int{-65, -75, -95, -96}
	wifiBand   = [...]int{-40, -55, -70, -2000} // anything below -70 is poor
)

// ClassifySignal maps a dBm reading onto a quality band for the given comms
// type ("3G", "4G" or "wifi"). A zero reading is unknown.
func ClassifySignal(commsType string, dbm int) (SignalQuality, error) {
	if dbm == 0 {
		return SignalUnknown, nil
	}

	var band [4]int
	switch commsType {
	case "3G":
		band = threeGBand
	case "4G":
		band = fourGBand
	case "wifi":
		band = wifiBand
	default:
		return SignalUnknown, fmt.Errorf("unknown comms type %q", commsType)
	}

	for i, floor := range band {
		if dbm >= floor {
			return qualityBands[i], nil
		}
	}
	return SignalNone, nil
}
