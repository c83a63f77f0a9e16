package cluster

import (
	"testing"
	"time"
)

func TestTimeProximityBuckets(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		ago  time.Duration
		want float64
	}{
		{0, 1.0},
		{59 * time.Minute, 1.0},
		{2 * time.Hour, 0.8},
		{12 * time.Hour, 0.6},
		{3 * 24 * time.Hour, 0.3},
		{30 * 24 * time.Hour, 0.1},
	}
	for _, c := range cases {
		got := TimeProximity(now, now.Add(-c.ago))
		if got != c.want {
			t.Errorf("TimeProximity(ago=%v) = %v, want %v", c.ago, got, c.want)
		}
	}
}

func TestTimeProximityFutureSymmetric(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	if got := TimeProximity(now, now.Add(2*time.Hour)); got != 0.8 {
		t.Errorf("TimeProximity with future lastUpdated = %v, want 0.8", got)
	}
}

func TestGeoProximityBuckets(t *testing.T) {
	lat1, lng1 := 51.5074, -0.1278
	cases := []struct {
		lat2, lng2 float64
		want       float64
	}{
		{51.5074, -0.1278, 1.0},
	}
	for _, c := range cases {
		got, ok := GeoProximity(&lat1, &lng1, &c.lat2, &c.lng2)
		if !ok {
			t.Fatal("expected ok=true when both sides have coordinates")
		}
		if got != c.want {
			t.Errorf("GeoProximity(identical) = %v, want %v", got, c.want)
		}
	}
}

func TestGeoProximityDistantRefusal(t *testing.T) {
	// Scenario 4: 51.50,-0.12 vs 40.71,-74.00 -- far apart, lowest bucket.
	lat1, lng1 := 51.50, -0.12
	lat2, lng2 := 40.71, -74.00
	got, ok := GeoProximity(&lat1, &lng1, &lat2, &lng2)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if got != 0.1 {
		t.Errorf("GeoProximity(distant) = %v, want 0.1", got)
	}
}

func TestGeoProximityMissingCoordinates(t *testing.T) {
	lat1, lng1 := 51.5074, -0.1278
	if _, ok := GeoProximity(&lat1, &lng1, nil, nil); ok {
		t.Error("expected ok=false when one side lacks coordinates")
	}
	if _, ok := GeoProximity(nil, nil, nil, nil); ok {
		t.Error("expected ok=false when both sides lack coordinates")
	}
}

func TestHaversineMetersZeroDistance(t *testing.T) {
	d := haversineMeters(51.5074, -0.1278, 51.5074, -0.1278)
	if d != 0 {
		t.Errorf("haversineMeters(same point) = %v, want 0", d)
	}
}
