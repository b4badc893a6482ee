package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"

	"gatehouse/internal/auth"
	"gatehouse/internal/blacklist"
	"gatehouse/internal/config"
	"gatehouse/internal/database"
	"gatehouse/internal/domain"
	"gatehouse/internal/events"
	runtimejobs "gatehouse/internal/jobs/runtime"
	"gatehouse/internal/support"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func adminLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	expectedUser := support.GetEnv("ADMIN_USERNAME", "admin")
	expectedPassword := support.GetEnv("ADMIN_PASSWORD", "")
	if expectedPassword == "" {
		writeError(w, "Admin login disabled", http.StatusForbidden)
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(expectedUser)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(expectedPassword)) == 1
	if !userOK || !passOK {
		writeError(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := auth.GenerateJWT(req.Username, "admin")
	if err != nil {
		log.Error("Could not generate token", "error", err.Error())
		writeError(w, "Could not generate token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

type blacklistRequest struct {
	Address      string     `json:"address"`
	Reason       string     `json:"reason"`
	BlockedUntil *time.Time `json:"blockedUntil"`
}

func createBlacklistEntry(w http.ResponseWriter, r *http.Request) {
	var req blacklistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.Address == "" {
		writeError(w, "address is required", http.StatusBadRequest)
		return
	}
	if net.ParseIP(req.Address) == nil {
		writeError(w, "address must be a valid IP", http.StatusBadRequest)
		return
	}

	createdBy, _ := auth.SubjectFromRequest(r)

	entry := domain.BlacklistEntry{
		Address:      req.Address,
		Reason:       req.Reason,
		CreatedBy:    createdBy,
		BlockedUntil: req.BlockedUntil,
	}
	if err := blacklist.Ban(r.Context(), entry); err != nil {
		log.Error("Could not create blacklist entry", "address", req.Address, "error", err.Error())
		writeError(w, "Could not create blacklist entry", http.StatusInternalServerError)
		return
	}

	events.Record(req.Address, createdBy, domain.EventIPBlacklisted, domain.SeverityCritical,
		"address blacklisted: "+req.Reason, r.URL.Path)

	writeJSON(w, http.StatusCreated, entry)
}

func listBlacklist(w http.ResponseWriter, r *http.Request) {
	entries, err := database.ListBlacklistEntries(r.Context())
	if err != nil {
		log.Error("Could not list blacklist entries", "error", err.Error())
		writeError(w, "Could not list blacklist entries", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func removeBlacklistEntry(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	if address == "" {
		writeError(w, "Missing address", http.StatusBadRequest)
		return
	}

	removed, err := blacklist.Unban(r.Context(), address)
	if err != nil {
		log.Error("Could not remove blacklist entry", "address", address, "error", err.Error())
		writeError(w, "Could not remove blacklist entry", http.StatusInternalServerError)
		return
	}
	if !removed {
		writeError(w, "Blacklist entry not found", http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func listEvents(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
		if parsed, err := strconv.Atoi(rawLimit); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	securityEvents, err := database.ListSecurityEvents(r.Context(), limit)
	if err != nil {
		log.Error("Could not list security events", "error", err.Error())
		writeError(w, "Could not list security events", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"events": securityEvents})
}

func getReputation(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	if address == "" {
		writeError(w, "address is required", http.StatusBadRequest)
		return
	}
	userAgent := r.URL.Query().Get("userAgent")

	record, err := database.GetReputation(r.Context(), address, userAgent)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, "Reputation record not found", http.StatusNotFound)
			return
		}
		log.Error("Could not load reputation record", "address", address, "error", err.Error())
		writeError(w, "Could not load reputation record", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

func getStatus(w http.ResponseWriter, r *http.Request) {
	activeInstances := 0
	if client, err := support.GetRedisClient(); err == nil {
		if count, countErr := runtimejobs.CountActiveInstances(r.Context(), client); countErr == nil {
			activeInstances = count
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"activeInstances":    activeInstances,
		"challengeThreshold": config.ChallengeThreshold(),
		"flagThreshold":      config.FlagThreshold(),
	})
}
