package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceKnownPoints(t *testing.T) {
	// Site MNL-001 vs a fix roughly 90 m away.
	d := Distance(14.5547, 121.0244, 14.5540, 121.0240)
	assert.InDelta(t, 89, d, 5)
}

func TestDistanceSamePoint(t *testing.T) {
	d := Distance(14.5547, 121.0244, 14.5547, 121.0244)
	assert.Zero(t, d)
}

func TestVerifyWithinRange(t *testing.T) {
	v := NewVerifier(500, true)
	result := v.Verify(14.5540, 121.0240, 14.5547, 121.0244)
	assert.True(t, result.WithinRange)
	assert.False(t, result.Skipped)
	assert.Greater(t, result.DistanceMeters, 0.0)
}

func TestVerifyOutOfRange(t *testing.T) {
	v := NewVerifier(500, true)
	// ~600 m north of the site.
	result := v.Verify(14.5601, 121.0244, 14.5547, 121.0244)
	assert.False(t, result.WithinRange)
	assert.Greater(t, result.DistanceMeters, 500.0)
}

func TestVerifyBoundaryIsExclusive(t *testing.T) {
	v := NewVerifier(500, true)
	// One degree of latitude is ~111.19 km, so 0.0045 degrees sits just past
	// the 500 m gate.
	result := v.Verify(14.5547+0.0045, 121.0244, 14.5547, 121.0244)
	require.InDelta(t, 500.4, result.DistanceMeters, 0.5)
	assert.False(t, result.WithinRange)
}

func TestVerifySiteSkipsUnregisteredCoordinate(t *testing.T) {
	v := NewVerifier(500, true)
	result := v.VerifySite(14.5540, 121.0240, nil, nil)
	assert.True(t, result.WithinRange)
	assert.True(t, result.Skipped)
}

func TestVerifySiteStrictPolicyBlocksUnregistered(t *testing.T) {
	v := NewVerifier(500, false)
	result := v.VerifySite(14.5540, 121.0240, nil, nil)
	assert.False(t, result.WithinRange)
	assert.True(t, result.Skipped)
}

func TestVerifySiteRegisteredCoordinate(t *testing.T) {
	v := NewVerifier(500, true)
	lat, lng := 14.5547, 121.0244
	result := v.VerifySite(14.5540, 121.0240, &lat, &lng)
	assert.True(t, result.WithinRange)
	assert.False(t, result.Skipped)
}
