package incident

import (
	"time"

	"github.com/sentrysystems/incident-engine/internal/claim"
)

// Snapshot is the serializable view of an incident's current summary plus
// timeline, returned by Apply and by the REST layer.
type Snapshot struct {
	IncidentID     string                   `json:"incident_id"`
	Locations      []claim.LocationValue    `json:"locations"`
	IncidentType   *claim.ConfidenceValue   `json:"incident_type,omitempty"`
	PeopleEstimate *claim.ConfidenceValue   `json:"people_estimate,omitempty"`
	Hazards        []claim.ConfidenceValue  `json:"hazards"`
	DeviceLocation *claim.LocationValue     `json:"device_location,omitempty"`
	Timeline       []TimelineEvent          `json:"timeline"`
	LastUpdated    time.Time                `json:"last_updated"`
	Callers        map[string]string        `json:"callers,omitempty"`
}

// SummarySnapshot is the condensed form returned by GET /incidents when
// summaries=true, cheaper than a full Snapshot for listing many incidents.
type SummarySnapshot struct {
	IncidentID     string                 `json:"incident_id"`
	IncidentType   *claim.ConfidenceValue `json:"incident_type,omitempty"`
	PeopleEstimate *claim.ConfidenceValue `json:"people_estimate,omitempty"`
	LocationCount  int                    `json:"location_count"`
	HazardCount    int                    `json:"hazard_count"`
	LastUpdated    time.Time              `json:"last_updated"`
}

// Summary returns the condensed view of the incident's current state.
func (inc *Incident) Summary() SummarySnapshot {
	inc.mu.Lock()
	defer inc.mu.Unlock()
	return SummarySnapshot{
		IncidentID:     inc.id,
		IncidentType:   inc.currentIncidentType(),
		PeopleEstimate: inc.currentPeopleEstimate(),
		LocationCount:  len(inc.locations),
		HazardCount:    len(inc.hazards),
		LastUpdated:    inc.lastUpdated,
	}
}

func (inc *Incident) snapshotLocked() Snapshot {
	locs := make([]claim.LocationValue, len(inc.locations))
	for i, e := range inc.locations {
		locs[i] = e.value
	}
	hazards := make([]claim.ConfidenceValue, len(inc.hazards))
	for i, e := range inc.hazards {
		hazards[i] = e.value
	}
	timeline := make([]TimelineEvent, len(inc.timeline))
	copy(timeline, inc.timeline)

	callers := make(map[string]string, len(inc.callers))
	for k, v := range inc.callers {
		callers[k] = v
	}

	return Snapshot{
		IncidentID:     inc.id,
		Locations:      locs,
		IncidentType:   inc.currentIncidentType(),
		PeopleEstimate: inc.currentPeopleEstimate(),
		Hazards:        hazards,
		DeviceLocation: inc.currentDeviceLocation(),
		Timeline:       timeline,
		LastUpdated:    inc.lastUpdated,
		Callers:        callers,
	}
}

// SummaryString renders a compact text summary used as the clustering
// engine's embedding input: incident_type, locations, hazards, device geo.
func (s Snapshot) SummaryString() string {
	out := ""
	if s.IncidentType != nil {
		if v, ok := s.IncidentType.Value.(string); ok {
			out += v + " "
		}
	}
	for _, l := range s.Locations {
		if v, ok := l.Value.(string); ok {
			out += v + " "
		}
	}
	for _, h := range s.Hazards {
		if v, ok := h.Value.(string); ok {
			out += v + " "
		}
	}
	if s.DeviceLocation != nil && s.DeviceLocation.HasCoordinates() {
		out += "device_geo"
	}
	return out
}
