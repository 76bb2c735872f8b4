// Package config loads deckcore runtime configuration from defaults, an
// optional YAML file, an optional .env file and DECKCORE_* environment
// variables, in that order of increasing priority.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Persistence drivers accepted by Persistence.Driver.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverBadger   = "badger"
	DriverRedis    = "redis"
)

// Archive drivers accepted by Archive.Driver.
const (
	ArchiveNone       = "none"
	ArchiveFilesystem = "fs"
	ArchiveMemory     = "memory"
	ArchiveS3         = "s3"
)

// Config is the full runtime configuration.
type Config struct {
	DeckID      string      `yaml:"deck_id" validate:"required"`
	Catalog     string      `yaml:"catalog"`
	Strict      bool        `yaml:"strict"`
	Log         Log         `yaml:"log"`
	Persistence Persistence `yaml:"persistence"`
	Archive     Archive     `yaml:"archive"`
	Hand        Hand        `yaml:"hand"`
	HTTP        HTTP        `yaml:"http"`
	Metrics     Metrics     `yaml:"metrics"`
}

// Log controls the slog handler built by NewLogger.
type Log struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// Persistence selects the snapshot store driver.
type Persistence struct {
	Driver    string `yaml:"driver" validate:"oneof=memory sqlite postgres badger redis"`
	Path      string `yaml:"path"`
	DSN       string `yaml:"dsn"`
	RedisAddr string `yaml:"redis_addr" validate:"required_if=Driver redis"`
	Badger    Badger `yaml:"badger"`
}

// Badger configures the embedded badger driver.
type Badger struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

// Archive selects where exported snapshots are written.
type Archive struct {
	Driver string `yaml:"driver" validate:"oneof=none fs memory s3"`
	Root   string `yaml:"root" validate:"required_if=Driver fs"`
	S3     S3     `yaml:"s3"`
}

// S3 configures the S3 archive driver.
type S3 struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

// Hand configures the sampler.
type Hand struct {
	Size int    `yaml:"size" validate:"gte=0"`
	Seed uint64 `yaml:"seed"`
}

// HTTP configures the serve command.
type HTTP struct {
	Addr string `yaml:"addr" validate:"required"`
}

// Metrics configures the Prometheus recorder.
type Metrics struct {
	Namespace string `yaml:"namespace"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		DeckID: "default",
		Log:    Log{Level: "info", Format: "text"},
		Persistence: Persistence{
			Driver: DriverMemory,
			Path:   "deckcore.db",
			Badger: Badger{Path: "deckcore.badger"},
		},
		Archive: Archive{Driver: ArchiveNone, Root: "exports", S3: S3{Region: "us-east-1"}},
		Hand:    Hand{Size: 7},
		HTTP:    HTTP{Addr: ":8080"},
		Metrics: Metrics{Namespace: "deckcore"},
	}
}

var validate = validator.New()

// Load merges defaults, the YAML file at path (a missing file is ignored),
// any .env files (default ".env", also optional) and the environment.
func Load(path string, envFiles ...string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadConfigFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load env file: %w", err)
	}
	loadConfigFromEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func loadConfigFromEnv(cfg *Config) {
	setString := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	setBool := func(name string, dst *bool) {
		if v := os.Getenv(name); v != "" {
			*dst = v == "true" || v == "1"
		}
	}

	setString("DECKCORE_DECK_ID", &cfg.DeckID)
	setString("DECKCORE_CATALOG", &cfg.Catalog)
	setBool("DECKCORE_STRICT", &cfg.Strict)
	setString("DECKCORE_LOG_LEVEL", &cfg.Log.Level)
	setString("DECKCORE_LOG_FORMAT", &cfg.Log.Format)

	setString("DECKCORE_STORAGE_DRIVER", &cfg.Persistence.Driver)
	setString("DECKCORE_SQLITE_PATH", &cfg.Persistence.Path)
	setString("DECKCORE_POSTGRES_DSN", &cfg.Persistence.DSN)
	setString("DECKCORE_REDIS_ADDR", &cfg.Persistence.RedisAddr)
	setString("DECKCORE_BADGER_PATH", &cfg.Persistence.Badger.Path)
	setBool("DECKCORE_BADGER_IN_MEMORY", &cfg.Persistence.Badger.InMemory)

	setString("DECKCORE_ARCHIVE_DRIVER", &cfg.Archive.Driver)
	setString("DECKCORE_ARCHIVE_FS_ROOT", &cfg.Archive.Root)
	setString("DECKCORE_S3_BUCKET", &cfg.Archive.S3.Bucket)
	setString("DECKCORE_S3_REGION", &cfg.Archive.S3.Region)
	setString("DECKCORE_S3_ENDPOINT", &cfg.Archive.S3.Endpoint)
	setBool("DECKCORE_S3_PATH_STYLE", &cfg.Archive.S3.PathStyle)

	if v := os.Getenv("DECKCORE_HAND_SIZE"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Hand.Size = i
		}
	}
	if v := os.Getenv("DECKCORE_HAND_SEED"); v != "" {
		if u, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Hand.Seed = u
		}
	}
	setString("DECKCORE_HTTP_ADDR", &cfg.HTTP.Addr)
	setString("DECKCORE_METRICS_NAMESPACE", &cfg.Metrics.Namespace)
}

// Validate checks the struct tags plus the cross-field rules tags cannot
// express.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Archive.Driver == ArchiveS3 && c.Archive.S3.Bucket == "" {
		return errors.New("archive.s3.bucket is required for the s3 archive driver")
	}
	if c.Persistence.Driver == DriverBadger && !c.Persistence.Badger.InMemory && c.Persistence.Badger.Path == "" {
		return errors.New("persistence.badger.path is required unless in_memory is set")
	}
	return nil
}

// NewLogger builds a slog logger writing to w according to cfg.
func NewLogger(cfg Log, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
