package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where placesense stores its own data
	DSN string
	// Driver is the database driver (sqlite only for now)
	Driver string
	// Version is the current version of server
	Version string

	// AI configuration
	AIAPIKey  string // PLACESENSE_AI_API_KEY
	AIBaseURL string // PLACESENSE_AI_BASE_URL (default: https://api.openai.com/v1)
	AIModel   string // PLACESENSE_AI_MODEL (default: gpt-4o-mini)

	// Place search configuration
	PlacesAPIKey  string // PLACESENSE_PLACES_API_KEY
	PlacesBaseURL string // PLACESENSE_PLACES_BASE_URL

	// Weather configuration
	WeatherBaseURL string // PLACESENSE_WEATHER_BASE_URL (empty disables weather context)

	// Cache configuration
	RedisAddr     string        // PLACESENSE_REDIS_ADDR (empty disables the shared cache tier)
	RedisPassword string        // PLACESENSE_REDIS_PASSWORD
	CacheTTL      time.Duration // PLACESENSE_CACHE_TTL (default: 24h)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled returns true if a completion provider is configured.
func (p *Profile) IsAIEnabled() bool {
	return p.AIAPIKey != "" || p.AIBaseURL != ""
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}
	// Trim trailing "/" in case user supplies
	dataDir = strings.TrimRight(dataDir, "/")

	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

// Validate normalizes the profile and fills in derived defaults.
func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}
	if p.Mode == "prod" && p.Data == "" {
		p.Data = "/var/opt/placesense"
	}
	if p.Driver == "" {
		p.Driver = "sqlite"
	}
	if p.CacheTTL <= 0 {
		p.CacheTTL = 24 * time.Hour
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		return err
	}
	p.Data = dataDir

	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("placesense_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}
	return nil
}
