package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

type Config struct {
	Detection struct {
		// Scores at or above ChallengeThreshold force a CAPTCHA; scores at or
		// above FlagThreshold let the request through marked suspicious.
		ChallengeThreshold int `json:"challenge_threshold"`
		FlagThreshold      int `json:"flag_threshold"`

		// AmnestyPoints is subtracted from the stored reputation score when a
		// client solves a challenge.
		AmnestyPoints int `json:"amnesty_points"`
	} `json:"detection"`

	Captcha struct {
		TTLSeconds uint32 `json:"ttl_seconds"`
		OperandMax int    `json:"operand_max"`
	} `json:"captcha"`

	Events struct {
		BufferSize int `json:"buffer_size"`
	} `json:"events"`

	BlacklistTimer Timer `json:"blacklist_refresh_timer"`

	GeoLite struct {
		DatabasePath string `json:"database_path"`
	} `json:"geolite"`
}

type Timer struct {
	Days    uint32 `json:"days"`
	Hours   uint32 `json:"hours"`
	Minutes uint32 `json:"minutes"`
	Seconds uint32 `json:"seconds"`
}

const (
	settingsFilePath = "data/settings.json"

	defaultChallengeThreshold = 80
	defaultFlagThreshold      = 60
	defaultAmnestyPoints      = 30
	defaultCaptchaTTL         = 5 * time.Minute
	defaultOperandMax         = 20
	defaultEventBufferSize    = 256
)

var (
	//go:embed default_settings.json
	defaultConfig []byte

	configValue atomic.Value
	configMu    sync.Mutex

	InProductionMode bool
)

func init() {
	configValue.Store(Config{})
}

func ReadSettings() {
	data, err := os.ReadFile(settingsFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("Settings file not found, creating with default configuration")

			if err := os.MkdirAll("data", os.ModePerm); err != nil {
				log.Error("Error creating directory for settings file:", err)
				return
			}
			if err := os.WriteFile(settingsFilePath, defaultConfig, os.ModePerm); err != nil {
				log.Error("Error writing default settings file:", err)
				return
			}

			data = defaultConfig
		} else {
			log.Error("Error reading settings file:", err)
			return
		}
	}

	var newConfig Config
	if err := json.Unmarshal(data, &newConfig); err != nil {
		log.Error("Error unmarshalling settings file:", err)
		return
	}

	if err := applyConfigUpdate(newConfig, configUpdateOptions{source: "file"}); err != nil {
		log.Error("Error applying configuration from settings file:", err)
		return
	}

	log.Debug("Settings file loaded successfully")
}

func SetConfig(newConfig Config) {
	if err := applyConfigUpdate(newConfig, configUpdateOptions{persistToFile: true, broadcast: true, source: "local"}); err != nil {
		log.Error("Error applying configuration update:", err)
		return
	}

	log.Debug("Configuration updated and written to file successfully")
}

type configUpdateOptions struct {
	persistToFile bool
	broadcast     bool
	source        string
}

func applyConfigUpdate(newConfig Config, opts configUpdateOptions) error {
	configMu.Lock()
	defer configMu.Unlock()

	configValue.Store(newConfig)
	RecomputeIntervals()

	var errs []error

	if opts.persistToFile {
		data, err := json.MarshalIndent(newConfig, "", "  ")
		if err != nil {
			log.Error("Error marshalling new configuration:", err)
			errs = append(errs, err)
		} else if err := os.WriteFile(settingsFilePath, data, os.ModePerm); err != nil {
			log.Error("Error writing new configuration to file:", err)
			errs = append(errs, err)
		}
	}

	if opts.broadcast {
		payload, err := json.Marshal(newConfig)
		if err != nil {
			log.Error("Error serializing configuration for broadcast:", err)
			errs = append(errs, err)
		} else if err := broadcastConfigUpdate(payload); err != nil {
			log.Error("Error broadcasting configuration update:", err)
			errs = append(errs, err)
		}
	}

	if opts.source != "" {
		log.Debug("Configuration applied", "source", opts.source)
	}

	return errors.Join(errs...)
}

func GetConfig() Config {
	return configValue.Load().(Config)
}

func SetProductionMode(productionMode bool) {
	InProductionMode = productionMode
}

// ChallengeThreshold returns the configured challenge band floor, falling
// back to the default when the settings file carries a zero value.
func ChallengeThreshold() int {
	if v := GetConfig().Detection.ChallengeThreshold; v > 0 {
		return v
	}
	return defaultChallengeThreshold
}

func FlagThreshold() int {
	if v := GetConfig().Detection.FlagThreshold; v > 0 {
		return v
	}
	return defaultFlagThreshold
}

func AmnestyPoints() int {
	if v := GetConfig().Detection.AmnestyPoints; v > 0 {
		return v
	}
	return defaultAmnestyPoints
}

func CaptchaTTL() time.Duration {
	if v := GetConfig().Captcha.TTLSeconds; v > 0 {
		return time.Duration(v) * time.Second
	}
	return defaultCaptchaTTL
}

func CaptchaOperandMax() int {
	if v := GetConfig().Captcha.OperandMax; v > 1 {
		return v
	}
	return defaultOperandMax
}

func EventBufferSize() int {
	if v := GetConfig().Events.BufferSize; v > 0 {
		return v
	}
	return defaultEventBufferSize
}

func GeoLiteDatabasePath() string {
	return GetConfig().GeoLite.DatabasePath
}
