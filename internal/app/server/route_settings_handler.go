package server

import (
	"encoding/json"
	"net/http"

	"gatehouse/internal/config"
)

func getSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, config.GetConfig())
}

func saveSettings(w http.ResponseWriter, r *http.Request) {
	var newConfig config.Config
	if err := json.NewDecoder(r.Body).Decode(&newConfig); err != nil {
		writeError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	detection := newConfig.Detection
	if detection.ChallengeThreshold < 0 || detection.FlagThreshold < 0 || detection.AmnestyPoints < 0 {
		writeError(w, "Detection settings must not be negative", http.StatusBadRequest)
		return
	}
	if detection.ChallengeThreshold > 0 && detection.FlagThreshold > detection.ChallengeThreshold {
		writeError(w, "Flag threshold must not exceed challenge threshold", http.StatusBadRequest)
		return
	}

	config.SetConfig(newConfig)

	writeJSON(w, http.StatusOK, map[string]string{"message": "Configuration updated successfully"})
}
