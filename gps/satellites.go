package gps

import "github.com/niclasankar/nmea-gps-emulator/nmea"

// sampleConstellation draws the satellites in view once per engine: PRNs
// without replacement from 1..32, with fixed elevation, azimuth and SNR.
func (e *Engine) sampleConstellation() []nmea.Satellite {
	ids := e.rng.Perm(maxSatellitePRN)[:e.config.Satellites]
	sats := make([]nmea.Satellite, len(ids))
	for i, id := range ids {
		sats[i] = nmea.Satellite{
			ID:        id + 1,
			Elevation: e.rng.Intn(91),  // 0-90 degrees
			Azimuth:   e.rng.Intn(360), // 0-359 degrees
			SNR:       e.rng.Intn(100), // 0-99 dB
		}
	}
	return sats
}

// sampleActive picks the satellites used in the fix for one tick.
func (e *Engine) sampleActive() []nmea.Satellite {
	count := e.config.ActiveSatellites
	if count == 0 {
		upper := maxActive(len(e.constellation))
		count = 4 + e.rng.Intn(upper-4+1)
	}

	active := make([]nmea.Satellite, count)
	for i, j := range e.rng.Perm(len(e.constellation))[:count] {
		active[i] = e.constellation[j]
	}
	return active
}
