// internal/config/model.go
//
// Typed configuration model for Formforge.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `.env`                             – dotenv values,
//   • `conf/global.yaml`                          – primary static file,
//   • `FORMFORGE_`-prefixed environment overrides – highest precedence.
//
// Any value whose string begins with the prefix `vault:` is resolved
// through the Vault client *before* unmarshalling, so the model never
// stores Vault URIs, only plain strings.
//
// Validation happens immediately after unmarshal; the app fails fast if
// required fields are missing.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`.
//   • Durations are written as Go duration strings (“1h”, “15s”).
//   • The `Paths` block is filled at runtime; YAML must not try to set it.

package config

import (
	"strings"
	"time"
)

//
// HTTP section
//

// HTTP holds web-server tunables.  Zero timeouts fall back to server
// defaults.
type HTTP struct {
	ListenAddr      string        `koanf:"listen_addr"      validate:"required,hostname_port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	TrustProxy      bool          `koanf:"trust_proxy"` // honour X-Forwarded-For
	ForceHTTPS      bool          `koanf:"force_https"` // 308 plain-HTTP requests
	AdminToken      string        `koanf:"admin_token"`  // bearer token for /admin; empty disables the admin API
}

//
// Database section
//

// Database selects the driver and connection.
//
// The DSN may contain the literal `{password}`; it is replaced with
// `Password`, which is normally a Vault reference.  This keeps host, port,
// and flags in YAML while the secret stays out of flat files.
type Database struct {
	Driver   string `koanf:"driver"   validate:"required,oneof=mysql postgres pgx sqlite"`
	DSN      string `koanf:"dsn"      validate:"required"`
	Password string `koanf:"password"`
	MaxOpen  int    `koanf:"max_open" validate:"gte=0"`
	MaxIdle  int    `koanf:"max_idle" validate:"gte=0"`
}

// ResolvedDSN substitutes the password placeholder.
func (d Database) ResolvedDSN() string {
	return strings.ReplaceAll(d.DSN, "{password}", d.Password)
}

//
// Forms section
//

// Forms tunes the engine.
type Forms struct {
	MaxSubmissionsPerHour int           `koanf:"max_submissions_per_hour" validate:"gte=0"`
	RateWindow            time.Duration `koanf:"rate_window"`
	UploadDir             string        `koanf:"upload_dir"        validate:"required"`
	UploadPrefix          string        `koanf:"upload_prefix"`
	UploadURL             string        `koanf:"upload_url"`
	SchemaCacheSize       int           `koanf:"schema_cache_size" validate:"gte=0"`
	DefaultLocale         string        `koanf:"default_locale"    validate:"required,alpha"`
	MaxUploadMB           int64         `koanf:"max_upload_mb"     validate:"gte=0"`
	SeedDirs              []string      `koanf:"seed_dirs"`
	NotifyFrom            string        `koanf:"notify_from"       validate:"omitempty,email"`
}

//
// Optional integrations
//

// GeoIP points at a MaxMind City database.  Empty disables lookups.
type GeoIP struct {
	DBPath string `koanf:"db_path"`
}

// Lang locates the YAML language files.
type Lang struct {
	Dir string `koanf:"dir"`
}

// Log tunes the file logger.  Level is applied once config is loaded; the
// logger itself starts before config so Vault and config errors are captured.
type Log struct {
	Level string `koanf:"level" validate:"omitempty,oneof=debug info warn error"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime, never set in YAML or env.
type Paths struct {
	Root string // FORMFORGE_ROOT or discovered parent
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads throughout the app lifetime.
type Config struct {
	HTTP     HTTP     `koanf:"http"`
	Database Database `koanf:"database"`
	Forms    Forms    `koanf:"forms"`
	GeoIP    GeoIP    `koanf:"geoip"`
	Lang     Lang     `koanf:"lang"`
	Log      Log      `koanf:"log"`
	Paths    Paths    `koanf:"-"` // not loaded from config files
}

// applyDefaults fills zero values the YAML may omit.
func (c *Config) applyDefaults() {
	if c.Forms.MaxSubmissionsPerHour == 0 {
		c.Forms.MaxSubmissionsPerHour = 10
	}
	if c.Forms.RateWindow == 0 {
		c.Forms.RateWindow = time.Hour
	}
	if c.Forms.UploadPrefix == "" {
		c.Forms.UploadPrefix = "form-uploads"
	}
	if c.Forms.SchemaCacheSize == 0 {
		c.Forms.SchemaCacheSize = 256
	}
	if c.Forms.DefaultLocale == "" {
		c.Forms.DefaultLocale = "en"
	}
	if c.Forms.MaxUploadMB == 0 {
		c.Forms.MaxUploadMB = 32
	}
	if c.HTTP.ShutdownTimeout == 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if c.Lang.Dir == "" {
		c.Lang.Dir = "lang"
	}
}
