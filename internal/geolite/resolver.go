package geolite

import (
	"net"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/oschwald/geoip2-golang"

	"gatehouse/internal/config"
)

var (
	mu     sync.Mutex
	reader *geoip2.Reader
	path   string
)

// Country resolves the ISO country code for an address using the configured
// GeoLite2 database. Returns "" when no database is configured, the file
// cannot be opened, or the address is unknown; enrichment is best-effort and
// never fails a caller.
func Country(address string) string {
	db := currentReader()
	if db == nil {
		return ""
	}

	ip := net.ParseIP(address)
	if ip == nil {
		return ""
	}

	record, err := db.Country(ip)
	if err != nil {
		return ""
	}
	return record.Country.IsoCode
}

func currentReader() *geoip2.Reader {
	configured := config.GeoLiteDatabasePath()
	if configured == "" {
		return nil
	}

	mu.Lock()
	defer mu.Unlock()

	if path == configured {
		// reader is nil here when the last open attempt failed; don't retry
		// on every request.
		return reader
	}

	if reader != nil {
		_ = reader.Close()
		reader = nil
	}

	opened, err := geoip2.Open(configured)
	if err != nil {
		log.Warn("GeoLite database unavailable", "path", configured, "error", err)
		path = configured
		return nil
	}

	log.Info("GeoLite database loaded", "path", configured)
	reader = opened
	path = configured
	return reader
}

// Close releases the open database, if any.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if reader != nil {
		_ = reader.Close()
		reader = nil
		path = ""
	}
}
