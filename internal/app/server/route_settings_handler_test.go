package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gatehouse/internal/config"
)

// Settings updates persist to data/settings.json, so tests run in a
// throwaway working directory and restore the previous configuration.
func isolateSettings(t *testing.T) {
	t.Helper()

	t.Chdir(t.TempDir())

	previous := config.GetConfig()
	t.Cleanup(func() {
		config.SetConfig(previous)
	})
}

func TestSaveSettingsUpdatesThresholds(t *testing.T) {
	isolateSettings(t)

	body := `{"detection":{"challenge_threshold":90,"flag_threshold":70,"amnesty_points":25}}`
	request := httptest.NewRequest(http.MethodPut, "/admin/settings", strings.NewReader(body))
	recorder := httptest.NewRecorder()

	saveSettings(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, recorder.Code)
	}
	if got := config.ChallengeThreshold(); got != 90 {
		t.Fatalf("challenge threshold = %d, want 90", got)
	}
	if got := config.FlagThreshold(); got != 70 {
		t.Fatalf("flag threshold = %d, want 70", got)
	}
	if got := config.AmnestyPoints(); got != 25 {
		t.Fatalf("amnesty points = %d, want 25", got)
	}
}

func TestSaveSettingsRejectsInvalidInput(t *testing.T) {
	isolateSettings(t)

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"flag above challenge", `{"detection":{"challenge_threshold":60,"flag_threshold":80}}`},
		{"negative amnesty", `{"detection":{"amnesty_points":-5}}`},
	}

	before := config.GetConfig()

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodPut, "/admin/settings", strings.NewReader(tc.body))
			recorder := httptest.NewRecorder()

			saveSettings(recorder, request)

			if recorder.Code != http.StatusBadRequest {
				t.Fatalf("expected status %d, got %d", http.StatusBadRequest, recorder.Code)
			}
			if config.GetConfig() != before {
				t.Fatal("rejected update must not change the configuration")
			}
		})
	}
}

func TestGetSettingsReturnsCurrentConfig(t *testing.T) {
	isolateSettings(t)

	updated := config.GetConfig()
	updated.Detection.ChallengeThreshold = 85
	config.SetConfig(updated)

	request := httptest.NewRequest(http.MethodGet, "/admin/settings", nil)
	recorder := httptest.NewRecorder()

	getSettings(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, recorder.Code)
	}

	var got config.Config
	if err := json.NewDecoder(recorder.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Detection.ChallengeThreshold != 85 {
		t.Fatalf("challenge threshold = %d, want 85", got.Detection.ChallengeThreshold)
	}
}
