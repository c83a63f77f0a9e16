package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/sentrysystems/incident-engine/internal/claim"
	"github.com/sentrysystems/incident-engine/internal/incident"
	"github.com/sentrysystems/incident-engine/internal/ingest"
	"github.com/sentrysystems/incident-engine/internal/pkg/logger"
	"github.com/sentrysystems/incident-engine/internal/pkg/validate"
)

// Handler serves the incident-evidence HTTP API over a single Coordinator
// and Store: POST /chunk, GET /incident/{id}, GET /incident/{id}/timeline,
// GET /incidents, POST /incident/{id}/demo-locations.
type Handler struct {
	Coordinator *ingest.Coordinator
	Store       *incident.Store
}

// NewHandler builds a Handler.
func NewHandler(coordinator *ingest.Coordinator, store *incident.Store) *Handler {
	return &Handler{Coordinator: coordinator, Store: store}
}

// Register wires every route onto r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/chunk", h.PostChunk).Methods(http.MethodPost)
	r.HandleFunc("/incident/{incidentId}", h.GetIncident).Methods(http.MethodGet)
	r.HandleFunc("/incident/{incidentId}/timeline", h.GetTimeline).Methods(http.MethodGet)
	r.HandleFunc("/incident/{incidentId}/demo-locations", h.PostDemoLocations).Methods(http.MethodPost)
	r.HandleFunc("/incidents", h.ListIncidents).Methods(http.MethodGet)
}

type chunkRequest struct {
	Text        string     `json:"text"`
	IncidentID  string     `json:"incident_id,omitempty"`
	AutoCluster bool       `json:"auto_cluster"`
	CallerID    string     `json:"caller_id,omitempty"`
	CallerInfo  string     `json:"caller_info,omitempty"`
	DeviceLat   *float64   `json:"device_lat,omitempty"`
	DeviceLng   *float64   `json:"device_lng,omitempty"`
	OccurredAt  *time.Time `json:"occurred_at,omitempty"`
}

type chunkResponse struct {
	IncidentID   string            `json:"incident_id"`
	Snapshot     incident.Snapshot `json:"snapshot"`
	ClaimsAdded  int               `json:"claims_added"`
	ClusterScore *float64          `json:"cluster_score,omitempty"`
	ClusterNew   *bool             `json:"cluster_new,omitempty"`
	Skipped      bool              `json:"skipped"`
}

// PostChunk handles POST /chunk: the single write entry point of the engine.
func (h *Handler) PostChunk(w http.ResponseWriter, r *http.Request) {
	reqID := logger.FromContext(r.Context())

	var req chunkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondErrorWithCode(w, http.StatusBadRequest, ErrCodeInvalidRequest, "malformed JSON body", reqID)
		return
	}
	if !validate.ChunkText(req.Text) {
		respondErrorWithCode(w, http.StatusBadRequest, ErrCodeInvalidRequest, "text is empty or too long", reqID)
		return
	}
	if req.IncidentID != "" && !validate.IncidentID(req.IncidentID) {
		respondErrorWithCode(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid incident_id", reqID)
		return
	}

	result, err := h.Coordinator.Ingest(r.Context(), ingest.Chunk{
		Text:        req.Text,
		IncidentID:  req.IncidentID,
		AutoCluster: req.AutoCluster,
		CallerID:    req.CallerID,
		CallerInfo:  req.CallerInfo,
		DeviceLat:   req.DeviceLat,
		DeviceLng:   req.DeviceLng,
		OccurredAt:  req.OccurredAt,
	})
	if err != nil {
		if errors.Is(err, ingest.ErrEmptyText) {
			respondErrorWithCode(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error(), reqID)
			return
		}
		respondErrorWithCode(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to ingest chunk", reqID)
		return
	}

	writeJSON(w, http.StatusOK, chunkResponse{
		IncidentID:   result.IncidentID,
		Snapshot:     result.Snapshot,
		ClaimsAdded:  result.ClaimsAdded,
		ClusterScore: result.ClusterScore,
		ClusterNew:   result.ClusterNew,
		Skipped:      result.Skipped,
	})
}

// GetIncident handles GET /incident/{id}: the full current summary.
func (h *Handler) GetIncident(w http.ResponseWriter, r *http.Request) {
	reqID := logger.FromContext(r.Context())
	id := mux.Vars(r)["incidentId"]
	if !validate.IncidentID(id) {
		respondErrorWithCode(w, http.StatusNotFound, ErrCodeNotFound, "unknown incident", reqID)
		return
	}

	inc, ok := h.Store.Get(id)
	if !ok {
		respondErrorWithCode(w, http.StatusNotFound, ErrCodeNotFound, "unknown incident", reqID)
		return
	}
	writeJSON(w, http.StatusOK, inc.Snapshot())
}

// GetTimeline handles GET /incident/{id}/timeline: the append-only claim log.
func (h *Handler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	reqID := logger.FromContext(r.Context())
	id := mux.Vars(r)["incidentId"]
	if !validate.IncidentID(id) {
		respondErrorWithCode(w, http.StatusNotFound, ErrCodeNotFound, "unknown incident", reqID)
		return
	}

	inc, ok := h.Store.Get(id)
	if !ok {
		respondErrorWithCode(w, http.StatusNotFound, ErrCodeNotFound, "unknown incident", reqID)
		return
	}
	writeJSON(w, http.StatusOK, inc.Snapshot().Timeline)
}

// ListIncidents handles GET /incidents?summaries=true. Without the query
// parameter, only incident ids and last_updated are returned; with it, a
// condensed SummarySnapshot per incident.
func (h *Handler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	withSummaries, _ := strconv.ParseBool(r.URL.Query().Get("summaries"))
	incidents := h.Store.List()

	if withSummaries {
		out := make([]incident.SummarySnapshot, 0, len(incidents))
		for _, inc := range incidents {
			out = append(out, inc.Summary())
		}
		writeJSON(w, http.StatusOK, out)
		return
	}

	type brief struct {
		IncidentID  string    `json:"incident_id"`
		LastUpdated time.Time `json:"last_updated"`
	}
	out := make([]brief, 0, len(incidents))
	for _, inc := range incidents {
		out = append(out, brief{IncidentID: inc.ID(), LastUpdated: inc.LastUpdated()})
	}
	writeJSON(w, http.StatusOK, out)
}

// demoLocations is a small fixed set applied by PostDemoLocations to exercise
// the dashboard/demo flow without a live caller.
var demoLocations = []struct {
	text string
	lat  float64
	lng  float64
}{
	{"123 Main Street", 37.7749, -122.4194},
	{"corner of 5th and Market", 37.7793, -122.4193},
	{"the parking garage on 2nd", 37.7858, -122.3975},
}

// PostDemoLocations handles POST /incident/{id}/demo-locations: seeds a
// fixed set of location claims on an existing (or newly created) incident.
func (h *Handler) PostDemoLocations(w http.ResponseWriter, r *http.Request) {
	reqID := logger.FromContext(r.Context())
	id := mux.Vars(r)["incidentId"]
	if !validate.IncidentID(id) {
		respondErrorWithCode(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid incident id", reqID)
		return
	}
	now := time.Now().UTC()

	inc := h.Store.GetOrCreate(id, now)

	claims := make([]claim.Claim, 0, len(demoLocations))
	for _, d := range demoLocations {
		lat, lng := d.lat, d.lng
		claims = append(claims, claim.Claim{
			Type:       claim.TypeLocation,
			Value:      d.text,
			Confidence: 0.8,
			SourceText: d.text,
			Time:       now,
			Lat:        &lat,
			Lng:        &lng,
		})
	}

	_, snap := inc.Apply(claims, now)
	writeJSON(w, http.StatusOK, snap)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
