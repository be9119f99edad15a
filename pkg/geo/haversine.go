package geo

import "math"

// earthRadiusMeters is the mean Earth radius used by the haversine formula.
const earthRadiusMeters = 6371000.0

// Verification is the outcome of a proximity check against a site coordinate.
type Verification struct {
	DistanceMeters float64 `json:"distanceMeters"`
	WithinRange    bool    `json:"withinRange"`
	Skipped        bool    `json:"skipped"`
}

// Verifier computes great-circle proximity verdicts for evidence capture.
// The zero value is unusable; construct via NewVerifier.
type Verifier struct {
	radiusMeters     float64
	skipUnregistered bool
}

// NewVerifier builds a verifier with the configured gate radius. A vendor is
// considered within range strictly below the radius; exactly at the radius is
// out of range.
func NewVerifier(radiusMeters float64, skipUnregistered bool) *Verifier {
	if radiusMeters <= 0 {
		radiusMeters = 500
	}
	return &Verifier{radiusMeters: radiusMeters, skipUnregistered: skipUnregistered}
}

// RadiusMeters exposes the configured gate radius.
func (v *Verifier) RadiusMeters() float64 {
	return v.radiusMeters
}

// Verify returns the distance between the live fix and the site coordinate
// and whether the fix falls inside the gate radius.
func (v *Verifier) Verify(currentLat, currentLng, siteLat, siteLng float64) Verification {
	distance := Distance(currentLat, currentLng, siteLat, siteLng)
	return Verification{
		DistanceMeters: distance,
		WithinRange:    distance < v.radiusMeters,
	}
}

// VerifySite checks a live fix against an optionally registered site
// coordinate. Sites without a coordinate pass verification so that entry is
// never blocked on missing geo registration.
func (v *Verifier) VerifySite(currentLat, currentLng float64, siteLat, siteLng *float64) Verification {
	if siteLat == nil || siteLng == nil {
		if v.skipUnregistered {
			return Verification{WithinRange: true, Skipped: true}
		}
		return Verification{WithinRange: false, Skipped: true}
	}
	return v.Verify(currentLat, currentLng, *siteLat, *siteLng)
}

// Distance computes the great-circle distance in meters between two
// coordinates using the haversine formula.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}
