package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"gatehouse/internal/auth"
	"gatehouse/internal/pipeline"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func OpenRoutes(ctx context.Context, port int) error {
	router := http.NewServeMux()

	router.HandleFunc("GET /challenge", getChallenge)
	router.HandleFunc("POST /challenge/verify", verifyChallenge)

	router.Handle("POST /vote/{id}", pipeline.Protect(http.HandlerFunc(castVote)))

	router.HandleFunc("POST /admin/login", adminLogin)
	router.Handle("POST /admin/blacklist", auth.IsAdmin(http.HandlerFunc(createBlacklistEntry)))
	router.Handle("GET /admin/blacklist", auth.IsAdmin(http.HandlerFunc(listBlacklist)))
	router.Handle("DELETE /admin/blacklist/{address}", auth.IsAdmin(http.HandlerFunc(removeBlacklistEntry)))
	router.Handle("GET /admin/events", auth.IsAdmin(http.HandlerFunc(listEvents)))
	router.Handle("GET /admin/reputation", auth.IsAdmin(http.HandlerFunc(getReputation)))
	router.Handle("GET /admin/settings", auth.IsAdmin(http.HandlerFunc(getSettings)))
	router.Handle("PUT /admin/settings", auth.IsAdmin(http.HandlerFunc(saveSettings)))
	router.Handle("GET /admin/status", auth.RequireAuth(http.HandlerFunc(getStatus)))

	log.Debug("Routes opened")

	server := http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: enableCORS(router),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("Server shutdown failed", "error", err)
		}
	}()

	log.Infof("Starting gatehouse backend on port :%d", port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}
