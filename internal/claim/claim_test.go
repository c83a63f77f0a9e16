package claim

import "testing"

func TestTypeValid(t *testing.T) {
	valid := []Type{TypeLocation, TypeIncidentType, TypePeopleEstimate, TypeHazard, TypeDeviceLocation}
	for _, typ := range valid {
		if !typ.Valid() {
			t.Errorf("%q should be valid", typ)
		}
	}
	if Type("bogus").Valid() {
		t.Error("unknown claim type should be invalid")
	}
}

func TestClaimValidateRejectsOutOfRangeConfidence(t *testing.T) {
	c := Claim{Type: TypeIncidentType, Confidence: 1.2}
	if err := c.Validate(); err == nil {
		t.Error("expected error for confidence > 1")
	}
}

func TestClaimValidateRejectsUnknownType(t *testing.T) {
	c := Claim{Type: "bogus", Confidence: 0.5}
	if err := c.Validate(); err == nil {
		t.Error("expected error for unknown claim type")
	}
}

func TestLocationValueHasCoordinates(t *testing.T) {
	lat, lng := 51.5074, -0.1278
	withCoords := LocationValue{Lat: &lat, Lng: &lng}
	if !withCoords.HasCoordinates() {
		t.Error("expected HasCoordinates to be true")
	}
	without := LocationValue{}
	if without.HasCoordinates() {
		t.Error("expected HasCoordinates to be false")
	}
}
