package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all run-scoped configuration. It is built once in main and
// passed explicitly into each component; nothing reads the environment after
// Load returns.
type Config struct {
	Database  DatabaseConfig
	OSM       OSMConfig
	Snapshot  SnapshotConfig
	DataDir   string
	LogDir    string
	DebugDir  string
	WebListen string
}

// DatabaseConfig holds the Postgres connection settings for the store that
// carries both the atp_fr catalog table and the mv_places view.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// OSMConfig holds the remote publishing API settings.
type OSMConfig struct {
	APIHost    string
	OAuthToken string
	CreatedBy  string
	SourceURL  string
	PolicyURL  string
}

// SnapshotConfig holds the source catalog snapshot settings.
type SnapshotConfig struct {
	RunsURL string
}

// DSN returns the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// Load reads configuration from the environment, with an optional .env file
// in the current or parent directory. Environment variables that are already
// set win over the .env file.
func Load() (*Config, error) {
	// Best effort; a missing .env file is fine in production.
	_ = godotenv.Load(".env", "../.env")

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("OSM_DB_HOST", "localhost")
	v.SetDefault("OSM_DB_PORT", "5432")
	v.SetDefault("OSM_DB_USER", "osm")
	v.SetDefault("OSM_DB_NAME", "osm")
	v.SetDefault("OSM_DB_SSLMODE", "disable")
	v.SetDefault("OSM_API_HOST", "https://master.apis.dev.openstreetmap.org")
	v.SetDefault("OSM_CREATED_BY", "atp2osm-import")
	v.SetDefault("OSM_SOURCE_URL", "https://alltheplaces.xyz")
	v.SetDefault("OSM_POLICY_URL", "https://wiki.openstreetmap.org/wiki/Automated_edits_code_of_conduct")
	v.SetDefault("ATP_RUNS_URL", "https://data.alltheplaces.xyz/runs/latest.json")
	v.SetDefault("DATA_DIR", "./data")
	v.SetDefault("LOG_DIR", "./logs")
	v.SetDefault("DEBUG_DIR", "./data/debug")
	v.SetDefault("WEB_LISTEN", ":8080")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     v.GetString("OSM_DB_HOST"),
			Port:     v.GetString("OSM_DB_PORT"),
			User:     v.GetString("OSM_DB_USER"),
			Password: v.GetString("OSM_DB_PASSWORD"),
			Name:     v.GetString("OSM_DB_NAME"),
			SSLMode:  v.GetString("OSM_DB_SSLMODE"),
		},
		OSM: OSMConfig{
			APIHost:    v.GetString("OSM_API_HOST"),
			OAuthToken: v.GetString("OSM_OAUTH_TOKEN"),
			CreatedBy:  v.GetString("OSM_CREATED_BY"),
			SourceURL:  v.GetString("OSM_SOURCE_URL"),
			PolicyURL:  v.GetString("OSM_POLICY_URL"),
		},
		Snapshot: SnapshotConfig{
			RunsURL: v.GetString("ATP_RUNS_URL"),
		},
		DataDir:   v.GetString("DATA_DIR"),
		LogDir:    v.GetString("LOG_DIR"),
		DebugDir:  v.GetString("DEBUG_DIR"),
		WebListen: v.GetString("WEB_LISTEN"),
	}

	return cfg, nil
}
