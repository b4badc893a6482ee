package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"gatehouse/internal/auth"
	"gatehouse/internal/blacklist"
	"gatehouse/internal/database"
	"gatehouse/internal/support"
)

func TestAdminLogin_IssuesToken(t *testing.T) {
	t.Setenv("ADMIN_USERNAME", "operator")
	t.Setenv("ADMIN_PASSWORD", "correct-horse")
	t.Setenv("JWT_SECRET", "test-secret")

	request := httptest.NewRequest(http.MethodPost, "/admin/login",
		strings.NewReader(`{"username":"operator","password":"correct-horse"}`))
	recorder := httptest.NewRecorder()

	adminLogin(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, recorder.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(recorder.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["token"] == "" {
		t.Fatal("expected a token in the response")
	}
}

func TestAdminLogin_RejectsBadCredentials(t *testing.T) {
	t.Setenv("ADMIN_USERNAME", "operator")
	t.Setenv("ADMIN_PASSWORD", "correct-horse")

	request := httptest.NewRequest(http.MethodPost, "/admin/login",
		strings.NewReader(`{"username":"operator","password":"wrong"}`))
	recorder := httptest.NewRecorder()

	adminLogin(recorder, request)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, recorder.Code)
	}
}

func TestAdminLogin_DisabledWithoutPassword(t *testing.T) {
	t.Setenv("ADMIN_PASSWORD", "")

	request := httptest.NewRequest(http.MethodPost, "/admin/login",
		strings.NewReader(`{"username":"operator","password":""}`))
	recorder := httptest.NewRecorder()

	adminLogin(recorder, request)

	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected status %d, got %d", http.StatusForbidden, recorder.Code)
	}
}

func TestBlacklistAdminLifecycle(t *testing.T) {
	setupTestDB(t)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /admin/blacklist", createBlacklistEntry)
	mux.HandleFunc("DELETE /admin/blacklist/{address}", removeBlacklistEntry)

	until := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	createBody := `{"address":"203.0.113.9","reason":"scraper","blockedUntil":"` + until + `"}`

	request := httptest.NewRequest(http.MethodPost, "/admin/blacklist", strings.NewReader(createBody))
	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusCreated {
		t.Fatalf("create: expected status %d, got %d", http.StatusCreated, recorder.Code)
	}
	if !blacklist.IsBlocked("203.0.113.9") {
		t.Fatal("expected address to be blocked after creation")
	}

	request = httptest.NewRequest(http.MethodDelete, "/admin/blacklist/203.0.113.9", nil)
	recorder = httptest.NewRecorder()
	mux.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("delete: expected status %d, got %d", http.StatusNoContent, recorder.Code)
	}
	if blacklist.IsBlocked("203.0.113.9") {
		t.Fatal("expected address to be unblocked after deletion")
	}

	request = httptest.NewRequest(http.MethodDelete, "/admin/blacklist/203.0.113.9", nil)
	recorder = httptest.NewRecorder()
	mux.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusNotFound {
		t.Fatalf("second delete: expected status %d, got %d", http.StatusNotFound, recorder.Code)
	}
}

func TestCreateBlacklistEntry_RequiresAddress(t *testing.T) {
	setupTestDB(t)

	request := httptest.NewRequest(http.MethodPost, "/admin/blacklist", strings.NewReader(`{"reason":"no address"}`))
	recorder := httptest.NewRecorder()

	createBlacklistEntry(recorder, request)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, recorder.Code)
	}
}

func TestCreateBlacklistEntry_RejectsNonIPAddress(t *testing.T) {
	setupTestDB(t)

	for _, address := range []string{"example.com", "203.0.113.9:8080", "not an ip"} {
		body := `{"address":"` + address + `","reason":"bad input"}`
		request := httptest.NewRequest(http.MethodPost, "/admin/blacklist", strings.NewReader(body))
		recorder := httptest.NewRecorder()

		createBlacklistEntry(recorder, request)

		if recorder.Code != http.StatusBadRequest {
			t.Fatalf("address %q: expected status %d, got %d", address, http.StatusBadRequest, recorder.Code)
		}
	}
}

func TestGetReputation(t *testing.T) {
	setupTestDB(t)

	request := httptest.NewRequest(http.MethodGet, "/admin/reputation?address=198.51.100.4&userAgent=curl/8.5.0", nil)
	recorder := httptest.NewRecorder()
	getReputation(recorder, request)

	if recorder.Code != http.StatusNotFound {
		t.Fatalf("unknown identity: expected status %d, got %d", http.StatusNotFound, recorder.Code)
	}

	if _, err := database.UpsertReputation(request.Context(), "198.51.100.4", "curl/8.5.0", 85); err != nil {
		t.Fatalf("seed reputation: %v", err)
	}

	recorder = httptest.NewRecorder()
	getReputation(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("known identity: expected status %d, got %d", http.StatusOK, recorder.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(recorder.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if score, _ := body["BotScore"].(float64); int(score) != 85 {
		t.Fatalf("expected bot score 85, got %v", body["BotScore"])
	}
}

func TestGetStatus_RequiresAuthentication(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	restore := support.SetRedisClientForTests(client)
	t.Cleanup(func() {
		restore()
		_ = client.Close()
	})

	if err := client.Set(context.Background(), "gatehouse:instance:test-1", "alive", time.Minute).Err(); err != nil {
		t.Fatalf("seed heartbeat key: %v", err)
	}

	handler := auth.RequireAuth(http.HandlerFunc(getStatus))

	request := httptest.NewRequest(http.MethodGet, "/admin/status", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("no token: expected status %d, got %d", http.StatusUnauthorized, recorder.Code)
	}

	token, err := auth.GenerateJWT("operator", "viewer")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	request = httptest.NewRequest(http.MethodGet, "/admin/status", nil)
	request.Header.Set("Authorization", "Bearer "+token)
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("valid token: expected status %d, got %d", http.StatusOK, recorder.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(recorder.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if count, _ := body["activeInstances"].(float64); int(count) != 1 {
		t.Fatalf("activeInstances = %v, want 1", body["activeInstances"])
	}
}

func TestGetReputation_RequiresAddress(t *testing.T) {
	request := httptest.NewRequest(http.MethodGet, "/admin/reputation", nil)
	recorder := httptest.NewRecorder()

	getReputation(recorder, request)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, recorder.Code)
	}
}
