package server

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/charmbracelet/log"

	"gatehouse/internal/challenge"
	"gatehouse/internal/config"
	"gatehouse/internal/database"
	"gatehouse/internal/domain"
	"gatehouse/internal/events"
)

func clientAddress(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func getChallenge(w http.ResponseWriter, r *http.Request) {
	id, question, err := challenge.Create(r.Context(), clientAddress(r))
	if err != nil {
		log.Error("Could not create challenge", "error", err.Error())
		writeError(w, "Challenge service unavailable", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"challengeId": id,
		"question":    question,
	})
}

type verifyRequest struct {
	ChallengeID string `json:"challengeId"`
	Solution    string `json:"solution"`
}

func verifyChallenge(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.ChallengeID == "" || req.Solution == "" {
		writeError(w, "challengeId and solution are required", http.StatusBadRequest)
		return
	}

	solved, address, err := challenge.Verify(r.Context(), req.ChallengeID, req.Solution)
	if err != nil {
		if errors.Is(err, challenge.ErrUnavailable) {
			writeError(w, "Challenge service unavailable", http.StatusServiceUnavailable)
			return
		}
		log.Error("Challenge verification failed", "challenge_id", req.ChallengeID, "error", err.Error())
		writeError(w, "Challenge verification failed", http.StatusInternalServerError)
		return
	}

	if !solved {
		writeJSON(w, http.StatusOK, map[string]any{
			"valid": false,
			"error": "incorrect, expired, or already solved challenge",
		})
		return
	}

	if _, err := database.ApplyScoreAmnesty(r.Context(), address, config.AmnestyPoints()); err != nil {
		log.Warn("Score amnesty not applied", "address", address, "error", err.Error())
	}
	events.Record(address, "", domain.EventChallengeSolved, domain.SeverityLow,
		"arithmetic challenge solved", r.URL.Path)

	writeJSON(w, http.StatusOK, map[string]any{"valid": true})
}
