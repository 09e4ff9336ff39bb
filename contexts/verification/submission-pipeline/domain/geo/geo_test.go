package geo

import (
	"math"
	"testing"
)

func TestDistanceMetersKnownPoints(t *testing.T) {
	// One thousandth of a degree of latitude is about 111.2 meters.
	got := DistanceMeters(40.0000, -74.0000, 40.0010, -74.0000)
	if math.Abs(got-111.2) > 1.0 {
		t.Fatalf("expected ~111.2m, got %.2f", got)
	}
}

func TestDistanceMetersZero(t *testing.T) {
	if got := DistanceMeters(51.5, -0.12, 51.5, -0.12); got != 0 {
		t.Fatalf("expected 0 for identical points, got %f", got)
	}
}

func TestWithinRadiusBoundary(t *testing.T) {
	lat, lng := 40.0, -74.0
	distance := DistanceMeters(lat, lng, 40.0004, lng)

	if !WithinRadius(40.0004, lng, lat, lng, distance) {
		t.Fatal("point exactly at radius should pass")
	}
	if WithinRadius(40.0004, lng, lat, lng, distance-0.5) {
		t.Fatal("point past radius should fail")
	}
}
