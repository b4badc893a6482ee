package fingerprint

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"

	"gatehouse/internal/support"
)

// Extract derives the stable identity string for a client. Address, header
// values, and the optional device-attribute blob are hashed together; absent
// headers participate as empty strings so the function never fails on thin
// requests. Identical inputs always produce identical output.
func Extract(address string, headers http.Header, deviceAttributes []byte) string {
	parts := []string{
		address,
		headers.Get("User-Agent"),
		headers.Get("Accept-Language"),
		DeviceHash(deviceAttributes),
	}
	return support.HashString(strings.Join(parts, "\x1f"))
}

// FromRequest extracts a fingerprint without device attributes, which covers
// requests that carry no device probe. Callers holding a client blob use
// Extract directly.
func FromRequest(r *http.Request) string {
	address := r.RemoteAddr
	if host, _, err := net.SplitHostPort(address); err == nil {
		address = host
	}
	return Extract(address, r.Header, nil)
}

// DeviceHash canonicalises a client-reported JSON blob of device attributes
// (screen resolution, timezone, platform, ...) into a stable digest. Key
// order in the blob must not change the result; an unparseable blob is
// hashed verbatim rather than rejected.
func DeviceHash(blob []byte) string {
	if len(blob) == 0 {
		return ""
	}

	var attributes map[string]any
	if err := json.Unmarshal(blob, &attributes); err != nil {
		return support.HashString(string(blob))
	}

	keys := make([]string, 0, len(attributes))
	for key := range attributes {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		fmt.Fprintf(&b, "%s=%v\x1f", key, attributes[key])
	}
	return support.HashString(b.String())
}
