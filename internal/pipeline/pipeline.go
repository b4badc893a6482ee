package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"

	"gatehouse/internal/blacklist"
	"gatehouse/internal/botscore"
	"gatehouse/internal/config"
	"gatehouse/internal/database"
	"gatehouse/internal/domain"
	"gatehouse/internal/events"
)

// Outcome is the terminal state of one access decision.
type Outcome int

const (
	OutcomeAllow Outcome = iota
	OutcomeFlag
	OutcomeChallengeRequired
	OutcomeReject
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAllow:
		return "allow"
	case OutcomeFlag:
		return "flag"
	case OutcomeChallengeRequired:
		return "challenge-required"
	case OutcomeReject:
		return "reject"
	default:
		return "unknown"
	}
}

// Machine-readable rejection codes handed to clients.
const (
	CodeCaptchaRequired    = "CAPTCHA_REQUIRED"
	CodeIPBlacklisted      = "IP_BLACKLISTED"
	CodeVoteWindowExceeded = "VOTE_WINDOW_EXCEEDED"
)

// Decision is the result of evaluating one request.
type Decision struct {
	Outcome Outcome
	Score   int
	Reasons []string
}

// Evaluate runs the access-control sequence for one request: blacklist
// first, then scoring with a reputation update, then the threshold bands.
// Scoring is advisory: a reputation store failure degrades to deciding on
// the single-request score instead of rejecting the request.
func Evaluate(ctx context.Context, sig botscore.Signals) Decision {
	if blacklist.IsBlocked(sig.Address) {
		events.Record(sig.Address, "", domain.EventBlockedRequest, domain.SeverityHigh,
			"request from blacklisted address", sig.Path)
		return Decision{Outcome: OutcomeReject}
	}

	result := botscore.Score(sig)

	if _, err := database.UpsertReputation(ctx, sig.Address, sig.UserAgent, result.Score); err != nil {
		log.Warn("Reputation update failed, continuing with request score",
			"address", sig.Address, "error", err)
	}

	details := fmt.Sprintf("score %d: %s", result.Score, strings.Join(result.Reasons, ", "))

	switch {
	case result.Score >= config.ChallengeThreshold():
		events.Record(sig.Address, "", domain.EventBotDetected, domain.SeverityHigh, details, sig.Path)
		return Decision{Outcome: OutcomeChallengeRequired, Score: result.Score, Reasons: result.Reasons}
	case result.Score >= config.FlagThreshold():
		events.Record(sig.Address, "", domain.EventSuspiciousBehavior, domain.SeverityMedium, details, sig.Path)
		return Decision{Outcome: OutcomeFlag, Score: result.Score, Reasons: result.Reasons}
	default:
		return Decision{Outcome: OutcomeAllow, Score: result.Score, Reasons: result.Reasons}
	}
}

type contextKey int

const suspiciousKey contextKey = iota

// IsSuspicious reports whether the pipeline flagged the request. Downstream
// handlers use it to withhold elevated privileges and tighten logging.
func IsSuspicious(ctx context.Context) bool {
	flagged, _ := ctx.Value(suspiciousKey).(bool)
	return flagged
}

func markSuspicious(ctx context.Context) context.Context {
	return context.WithValue(ctx, suspiciousKey, true)
}

type rejectionBody struct {
	Error    string `json:"error"`
	Code     string `json:"code"`
	BotScore *int   `json:"botScore,omitempty"`
}

// Protect wraps a mutating handler with the access decision. Read-only
// listing traffic stays unwrapped so the catalog remains publicly
// browsable.
func Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision := Evaluate(r.Context(), botscore.FromRequest(r))

		switch decision.Outcome {
		case OutcomeReject:
			writeRejection(w, http.StatusForbidden, rejectionBody{
				Error: "address is blacklisted",
				Code:  CodeIPBlacklisted,
			})
		case OutcomeChallengeRequired:
			score := decision.Score
			writeRejection(w, http.StatusTooManyRequests, rejectionBody{
				Error:    "solve the challenge and retry",
				Code:     CodeCaptchaRequired,
				BotScore: &score,
			})
		case OutcomeFlag:
			next.ServeHTTP(w, r.WithContext(markSuspicious(r.Context())))
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func writeRejection(w http.ResponseWriter, status int, body rejectionBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
