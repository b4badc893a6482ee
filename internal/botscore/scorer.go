package botscore

import (
	"net"
	"net/http"
	"strings"
)

// Signals is the fixed input the scorer works on. Extracting it up front
// keeps the scoring rules a pure function, independent of the HTTP layer's
// request shape, and keeps "header absent" distinguishable from "header
// present but empty".
type Signals struct {
	Address string
	Method  string
	Path    string

	UserAgent    string
	HasUserAgent bool

	Accept    string
	HasAccept bool

	AcceptLanguage    string
	HasAcceptLanguage bool

	AcceptEncoding    string
	HasAcceptEncoding bool

	Connection   string
	HasReferer   bool
	HasXHRMarker bool
}

// Result carries the clamped score plus the rules that fired, for audit
// details.
type Result struct {
	Score   int
	Reasons []string
}

const (
	pointsAutomationSignature = 30
	pointsMissingAccept       = 10
	pointsMissingLanguage     = 15
	pointsMissingEncoding     = 10
	pointsMissingUserAgent    = 25
	pointsShortUserAgent      = 20
	pointsNoBrowserEngine     = 15
	pointsMissingReferer      = 5
	pointsConnectionClose     = 5
	pointsPostWithoutXHR      = 5

	shortUserAgentLength = 20
	maxScore             = 100
)

// Substrings of user-agent values set by automation tooling and bare
// language-runtime HTTP clients. Matched case-insensitively; only the first
// match scores.
var automationSignatures = []string{
	"bot",
	"crawler",
	"spider",
	"scraper",
	"curl",
	"wget",
	"python",
	"aiohttp",
	"go-http-client",
	"okhttp",
	"java/",
	"httpclient",
	"libwww",
	"scrapy",
	"php/",
	"ruby",
	"perl",
}

var browserEngineTokens = []string{
	"mozilla",
	"chrome",
	"safari",
	"firefox",
	"edge",
}

// FromRequest extracts the scoring signals from an inbound request. Absent
// headers stay absent; no value is defaulted.
func FromRequest(r *http.Request) Signals {
	address, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		address = r.RemoteAddr
	}

	sig := Signals{
		Address:      address,
		Method:       r.Method,
		Path:         r.URL.Path,
		Connection:   r.Header.Get("Connection"),
		HasReferer:   r.Header.Get("Referer") != "",
		HasXHRMarker: r.Header.Get("X-Requested-With") != "",
	}

	sig.UserAgent, sig.HasUserAgent = headerValue(r.Header, "User-Agent")
	sig.Accept, sig.HasAccept = headerValue(r.Header, "Accept")
	sig.AcceptLanguage, sig.HasAcceptLanguage = headerValue(r.Header, "Accept-Language")
	sig.AcceptEncoding, sig.HasAcceptEncoding = headerValue(r.Header, "Accept-Encoding")

	return sig
}

func headerValue(h http.Header, key string) (string, bool) {
	values, present := h[http.CanonicalHeaderKey(key)]
	if !present || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// Score runs the additive point rules over one request's signals. No single
// rule is decisive: thin legitimate clients score moderately, which is why
// the decision pipeline uses bands instead of a binary cut.
func Score(sig Signals) Result {
	var (
		score   int
		reasons []string
	)

	add := func(points int, reason string) {
		score += points
		reasons = append(reasons, reason)
	}

	if sig.HasUserAgent {
		ua := strings.ToLower(sig.UserAgent)
		for _, signature := range automationSignatures {
			if strings.Contains(ua, signature) {
				add(pointsAutomationSignature, "automation signature: "+signature)
				break
			}
		}
		if len(sig.UserAgent) < shortUserAgentLength {
			add(pointsShortUserAgent, "short user-agent")
		}
		if !containsAnyToken(ua, browserEngineTokens) {
			add(pointsNoBrowserEngine, "no browser engine token")
		}
	} else {
		add(pointsMissingUserAgent, "missing user-agent")
	}

	if !sig.HasAccept || strings.TrimSpace(sig.Accept) == "*/*" {
		add(pointsMissingAccept, "missing or wildcard accept")
	}
	if !sig.HasAcceptLanguage {
		add(pointsMissingLanguage, "missing accept-language")
	}
	if !sig.HasAcceptEncoding {
		add(pointsMissingEncoding, "missing accept-encoding")
	}

	if !sig.HasReferer && sig.Path != "/" && sig.Path != "" {
		add(pointsMissingReferer, "no referer on non-root path")
	}
	if strings.EqualFold(strings.TrimSpace(sig.Connection), "close") {
		add(pointsConnectionClose, "connection close")
	}
	if sig.Method == http.MethodPost && !sig.HasXHRMarker {
		add(pointsPostWithoutXHR, "post without xhr marker")
	}

	if score > maxScore {
		score = maxScore
	}

	return Result{Score: score, Reasons: reasons}
}

func containsAnyToken(value string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(value, token) {
			return true
		}
	}
	return false
}
