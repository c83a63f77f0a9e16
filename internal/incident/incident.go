// Package incident holds the Incident aggregate — the per-incident summary of
// claims, its append-only timeline, and the process-wide Store that serializes
// mutation of each incident independently.
package incident

import (
	"sync"
	"time"

	"github.com/sentrysystems/incident-engine/internal/claim"
	"github.com/sentrysystems/incident-engine/internal/pkg/metrics"
)

// TimelineEvent records one applied claim, in the order Apply received it.
type TimelineEvent struct {
	Time       time.Time  `json:"time"`
	ClaimType  claim.Type `json:"claim_type"`
	Value      any        `json:"value"`
	Confidence float64    `json:"confidence"`
	SourceText string     `json:"source_text,omitempty"`
	CallerID   string     `json:"caller_id,omitempty"`
	CallerInfo string     `json:"caller_info,omitempty"`
}

// locationEntry is a canonical-keyed slot in the incident's ordered location set.
type locationEntry struct {
	key   string
	value claim.LocationValue
}

// hazardEntry is a canonical-keyed slot in the incident's ordered hazard set.
type hazardEntry struct {
	key   string
	value claim.ConfidenceValue
}

// singleValueEntry is a canonical-keyed accumulation slot for a single-valued
// attribute (incident_type, people_estimate): confidence keeps compounding
// per canonical key across repeated claims, independently of which key is
// currently the displayed value.
type singleValueEntry struct {
	key   string
	value claim.ConfidenceValue
}

// deviceLocationEntry is the device_location analogue of singleValueEntry,
// carrying coordinates alongside the confidence.
type deviceLocationEntry struct {
	key   string
	value claim.LocationValue
}

// Incident is the per-incident aggregate. All mutation goes through Apply,
// which holds mu for the duration of the batch; reads obtain a consistent
// Snapshot taken under the same lock.
type Incident struct {
	mu sync.Mutex

	id string

	locations []locationEntry
	locIndex  map[string]int

	incidentTypeEntries []singleValueEntry
	incidentTypeIndex   map[string]int
	incidentTypeKey     string

	peopleEstimateEntries []singleValueEntry
	peopleEstimateIndex   map[string]int
	peopleEstimateKey     string

	hazards     []hazardEntry
	hazardIndex map[string]int

	deviceLocationEntries []deviceLocationEntry
	deviceLocationIndex   map[string]int
	deviceLocationKey     string

	timeline []TimelineEvent

	lastUpdated time.Time
	createdAt   time.Time

	callers map[string]string
}

// New creates an empty incident with the given id.
func New(id string, now time.Time) *Incident {
	return &Incident{
		id:                  id,
		locIndex:            make(map[string]int),
		incidentTypeIndex:   make(map[string]int),
		peopleEstimateIndex: make(map[string]int),
		hazardIndex:         make(map[string]int),
		deviceLocationIndex: make(map[string]int),
		callers:             make(map[string]string),
		createdAt:           now,
		lastUpdated:         now,
	}
}

// ID returns the incident's opaque id.
func (inc *Incident) ID() string {
	return inc.id
}

// Apply applies a batch of claims atomically: for each claim it computes the
// canonical key, merges confidence per the type-specific rule, and appends
// exactly one timeline event per claim received (even one that didn't move
// the stored confidence, since the timeline is an audit trail, not a diff).
// Invalid claims (per claim.ErrInvalidClaim) are dropped silently; the batch
// continues. Returns the number of claims that produced a timeline event.
func (inc *Incident) Apply(claims []claim.Claim, now time.Time) (applied int, snap Snapshot) {
	inc.mu.Lock()
	defer inc.mu.Unlock()

	for _, c := range claims {
		if err := c.Validate(); err != nil {
			continue
		}
		c, err := claim.Canonicalize(c)
		if err != nil {
			continue
		}
		if !inc.applyOne(c, now) {
			continue
		}
		applied++
		inc.timeline = append(inc.timeline, TimelineEvent{
			Time:       c.Time,
			ClaimType:  c.Type,
			Value:      c.Value,
			Confidence: c.Confidence,
			SourceText: c.SourceText,
			CallerID:   c.CallerID,
			CallerInfo: c.CallerInfo,
		})
		if c.CallerID != "" {
			if _, seen := inc.callers[c.CallerID]; !seen {
				inc.callers[c.CallerID] = c.CallerInfo
			}
		}
	}

	latest := now
	if len(claims) > 0 {
		for _, c := range claims {
			if c.Time.After(latest) {
				latest = c.Time
			}
		}
	}
	if latest.After(inc.lastUpdated) {
		inc.lastUpdated = latest
	}

	return applied, inc.snapshotLocked()
}

// applyOne merges a single validated claim into the appropriate attribute.
// Returns false only for InvalidClaim during canonicalization (empty key etc).
func (inc *Incident) applyOne(c claim.Claim, now time.Time) bool {
	key, err := claim.CanonicalKey(c.Type, c.Value)
	if err != nil {
		return false
	}

	switch c.Type {
	case claim.TypeLocation:
		inc.mergeLocation(key, c, now)
	case claim.TypeDeviceLocation:
		inc.mergeDeviceLocation(key, c, now)
	case claim.TypeIncidentType:
		inc.mergeSingleKeyed(&inc.incidentTypeEntries, inc.incidentTypeIndex, &inc.incidentTypeKey, key, c, now)
	case claim.TypePeopleEstimate:
		inc.mergeSingleKeyed(&inc.peopleEstimateEntries, inc.peopleEstimateIndex, &inc.peopleEstimateKey, key, c, now)
	case claim.TypeHazard:
		inc.mergeHazard(key, c, now)
	default:
		return false
	}
	return true
}

func (inc *Incident) mergeLocation(key string, c claim.Claim, now time.Time) {
	idx, ok := inc.locIndex[key]
	var prior *claim.LocationValue
	if ok {
		prior = &inc.locations[idx].value
	}
	merged := mergeLocationValue(prior, c, now)
	if ok {
		inc.locations[idx].value = merged
	} else {
		inc.locIndex[key] = len(inc.locations)
		inc.locations = append(inc.locations, locationEntry{key: key, value: merged})
	}
}

// mergeDeviceLocation is the device_location analogue of mergeSingleKeyed:
// confidence accumulates per canonical key (the canonical form of the claim's
// text value; coordinates are not part of the key, and the newest claim's
// coordinates replace the stored ones), and the displayed key only changes when it clears the
// replacement margin against the currently displayed key or that key has
// gone stale.
func (inc *Incident) mergeDeviceLocation(key string, c claim.Claim, now time.Time) {
	idx, ok := inc.deviceLocationIndex[key]
	var prior *claim.LocationValue
	if ok {
		prior = &inc.deviceLocationEntries[idx].value
	}
	merged := mergeLocationValue(prior, c, now)
	if ok {
		inc.deviceLocationEntries[idx].value = merged
	} else {
		inc.deviceLocationIndex[key] = len(inc.deviceLocationEntries)
		inc.deviceLocationEntries = append(inc.deviceLocationEntries, deviceLocationEntry{key: key, value: merged})
	}

	switch {
	case inc.deviceLocationKey == "":
		inc.deviceLocationKey = key
	case inc.deviceLocationKey == key:
	default:
		current := inc.deviceLocationEntries[inc.deviceLocationIndex[inc.deviceLocationKey]].value
		if claim.ShouldReplaceSingleValued(current.Confidence, current.Time, merged.Confidence, now) {
			inc.deviceLocationKey = key
		}
	}
}

func mergeLocationValue(prior *claim.LocationValue, c claim.Claim, now time.Time) claim.LocationValue {
	q := c.Confidence
	var hasPrior bool
	var p float64
	if prior != nil {
		hasPrior = true
		p = prior.Confidence
		q = claim.RepeatBoost(q, prior.Time, now, true)
	}
	conf := claim.Merge(hasPrior, p, q)
	return claim.LocationValue{
		ConfidenceValue: claim.ConfidenceValue{
			Value:      c.Value,
			Confidence: conf,
			SourceText: c.SourceText,
			Time:       c.Time,
		},
		Lat:            c.Lat,
		Lng:            c.Lng,
		DeviceReported: c.Type == claim.TypeDeviceLocation,
	}
}

// mergeSingleKeyed implements the single-valued-attribute rule: the Bayesian
// merge plus repeat boost apply per canonical key, exactly as they do for
// hazards and locations, so a canonical value accumulates independent
// evidence across repeated apply calls even while a different key is
// displayed. Only the *displayed* key changes according to
// ShouldReplaceSingleValued — a challenger that loses that comparison once
// is never discarded, it just keeps accumulating in entries for next time.
func (inc *Incident) mergeSingleKeyed(entries *[]singleValueEntry, index map[string]int, displayKey *string, newKey string, c claim.Claim, now time.Time) {
	idx, ok := index[newKey]
	q := c.Confidence
	var hasPrior bool
	var p float64
	if ok {
		hasPrior = true
		p = (*entries)[idx].value.Confidence
		q = claim.RepeatBoost(q, (*entries)[idx].value.Time, now, true)
	}
	conf := claim.Merge(hasPrior, p, q)
	entry := claim.ConfidenceValue{Value: c.Value, Confidence: conf, SourceText: c.SourceText, Time: c.Time}
	if ok {
		(*entries)[idx].value = entry
	} else {
		index[newKey] = len(*entries)
		*entries = append(*entries, singleValueEntry{key: newKey, value: entry})
	}

	switch {
	case *displayKey == "":
		*displayKey = newKey
		metrics.ClaimMergeTotal.WithLabelValues(string(c.Type), "appended").Inc()
	case *displayKey == newKey:
		metrics.ClaimMergeTotal.WithLabelValues(string(c.Type), "kept").Inc()
	default:
		current := (*entries)[index[*displayKey]].value
		if claim.ShouldReplaceSingleValued(current.Confidence, current.Time, conf, now) {
			*displayKey = newKey
			metrics.ClaimMergeTotal.WithLabelValues(string(c.Type), "replaced").Inc()
		} else {
			metrics.ClaimMergeTotal.WithLabelValues(string(c.Type), "kept").Inc()
		}
	}
}

// singleKeyedDisplay returns the currently displayed entry for a single-valued
// attribute, or nil if nothing has been applied yet.
func singleKeyedDisplay(entries []singleValueEntry, index map[string]int, key string) *claim.ConfidenceValue {
	if key == "" {
		return nil
	}
	idx, ok := index[key]
	if !ok {
		return nil
	}
	v := entries[idx].value
	return &v
}

func (inc *Incident) currentIncidentType() *claim.ConfidenceValue {
	return singleKeyedDisplay(inc.incidentTypeEntries, inc.incidentTypeIndex, inc.incidentTypeKey)
}

func (inc *Incident) currentPeopleEstimate() *claim.ConfidenceValue {
	return singleKeyedDisplay(inc.peopleEstimateEntries, inc.peopleEstimateIndex, inc.peopleEstimateKey)
}

func (inc *Incident) currentDeviceLocation() *claim.LocationValue {
	if inc.deviceLocationKey == "" {
		return nil
	}
	idx, ok := inc.deviceLocationIndex[inc.deviceLocationKey]
	if !ok {
		return nil
	}
	v := inc.deviceLocationEntries[idx].value
	return &v
}

func (inc *Incident) mergeHazard(key string, c claim.Claim, now time.Time) {
	idx, ok := inc.hazardIndex[key]
	q := c.Confidence
	var hasPrior bool
	var p float64
	if ok {
		hasPrior = true
		p = inc.hazards[idx].value.Confidence
		q = claim.RepeatBoost(q, inc.hazards[idx].value.Time, now, true)
	}
	conf := claim.Merge(hasPrior, p, q)
	entry := claim.ConfidenceValue{Value: c.Value, Confidence: conf, SourceText: c.SourceText, Time: c.Time}
	if ok {
		inc.hazards[idx].value = entry
	} else {
		inc.hazardIndex[key] = len(inc.hazards)
		inc.hazards = append(inc.hazards, hazardEntry{key: key, value: entry})
	}
}

// LastUpdated returns the incident's last-updated timestamp under lock.
func (inc *Incident) LastUpdated() time.Time {
	inc.mu.Lock()
	defer inc.mu.Unlock()
	return inc.lastUpdated
}

// CreatedAt returns the incident's creation timestamp (immutable, lock-free read is safe).
func (inc *Incident) CreatedAt() time.Time {
	return inc.createdAt
}

// Snapshot returns a consistent, serializable view of the incident's current state.
func (inc *Incident) Snapshot() Snapshot {
	inc.mu.Lock()
	defer inc.mu.Unlock()
	return inc.snapshotLocked()
}
