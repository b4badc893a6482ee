package server

import (
	"encoding/json"
	"net/http"

	"gatehouse/internal/abuse"
	"gatehouse/internal/domain"
	"gatehouse/internal/events"
	"gatehouse/internal/fingerprint"
	"gatehouse/internal/pipeline"
)

type voteRequest struct {
	DeviceAttributes json.RawMessage `json:"deviceAttributes"`
}

func castVote(w http.ResponseWriter, r *http.Request) {
	resourceID := r.PathValue("id")
	if resourceID == "" {
		writeError(w, "Missing resource id", http.StatusBadRequest)
		return
	}

	// The body is optional; clients without a device probe vote with
	// headers only.
	var req voteRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	address := clientAddress(r)
	clientFingerprint := fingerprint.FromRequest(r)
	if len(req.DeviceAttributes) > 0 {
		clientFingerprint = fingerprint.Extract(address, r.Header, req.DeviceAttributes)
	}

	if !abuse.TryRecord(r.Context(), resourceID, clientFingerprint) {
		events.Record(address, "", domain.EventRateLimited, domain.SeverityMedium,
			"duplicate vote within window", r.URL.Path)
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "already voted on this resource today",
			"code":  pipeline.CodeVoteWindowExceeded,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"recorded": true,
		"flagged":  pipeline.IsSuspicious(r.Context()),
	})
}
