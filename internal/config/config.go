// Package config loads application configuration from config files and
// environment variables, and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config holds all application configuration.
type Config struct {
	Store  StoreConfig  `mapstructure:"store"`
	Sheets SheetsConfig `mapstructure:"sheets"`
	Sync   SyncConfig   `mapstructure:"sync"`
	Server ServerConfig `mapstructure:"server"`
	Fetch  FetchConfig  `mapstructure:"fetch"`
	Log    LogConfig    `mapstructure:"log"`
}

// StoreConfig selects and configures the lead store backend.
type StoreConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver      string `mapstructure:"driver"`
	DatabaseURL string `mapstructure:"database_url"`
	// Path is the SQLite database file, used when Driver is "sqlite".
	Path string `mapstructure:"path"`
}

// SheetRef identifies one worksheet to sync.
type SheetRef struct {
	// Name is the logical sheet source recorded on every lead, e.g.
	// "sheet_1_food".
	Name string `mapstructure:"name"`
	// ID is the Google spreadsheet document id.
	ID  string `mapstructure:"id"`
	GID int    `mapstructure:"gid"`
}

// SheetsConfig lists the worksheets to sync. Primary is required; the extra
// slots are optional and skipped when unset.
type SheetsConfig struct {
	Primary SheetRef `mapstructure:"primary"`
	Extra1  SheetRef `mapstructure:"extra1"`
	Extra2  SheetRef `mapstructure:"extra2"`
	Extra3  SheetRef `mapstructure:"extra3"`
	Extra4  SheetRef `mapstructure:"extra4"`

	// TemplatePath points at an optional YAML file of per-sheet header
	// resolution overrides.
	TemplatePath string `mapstructure:"template_path"`
}

// Configured returns the sheets that have both a name and a document id, in
// sync order.
func (s SheetsConfig) Configured() []SheetRef {
	var refs []SheetRef
	for _, r := range []SheetRef{s.Primary, s.Extra1, s.Extra2, s.Extra3, s.Extra4} {
		if r.Name != "" && r.ID != "" {
			refs = append(refs, r)
		}
	}
	return refs
}

// SyncConfig tunes reconciliation behavior.
type SyncConfig struct {
	BatchSize int `mapstructure:"batch_size"`
	// FullManaged marks leads inserted by a full-sweep sync as managed so
	// the sheet's history is visible in the default list views. Contact
	// fields of already-managed leads are never rewritten in any mode.
	FullManaged bool `mapstructure:"full_managed"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `mapstructure:"port"`
	// CronToken gates the unauthenticated cron trigger endpoint.
	CronToken string `mapstructure:"cron_token"`
}

// FetchConfig tunes the HTTP fetcher.
type FetchConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries"`
	UserAgent      string `mapstructure:"user_agent"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

// Load reads configuration from config.yaml (if present) and environment
// variables prefixed with LEADSYNC_.
func Load() (*Config, error) {
	v := viper.New()

	// Every key gets a default so AutomaticEnv can populate it on Unmarshal.
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.path", "leadsync.db")
	for _, slot := range []string{"primary", "extra1", "extra2", "extra3", "extra4"} {
		v.SetDefault("sheets."+slot+".name", "")
		v.SetDefault("sheets."+slot+".id", "")
		v.SetDefault("sheets."+slot+".gid", 0)
	}
	v.SetDefault("sheets.template_path", "")
	v.SetDefault("sync.batch_size", 100)
	v.SetDefault("sync.full_managed", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cron_token", "")
	v.SetDefault("fetch.timeout_seconds", 30)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.user_agent", "leadsync/1.0")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/leadsync")

	v.SetEnvPrefix("LEADSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger builds the global zap logger from the log configuration and
// installs it with zap.ReplaceGlobals.
func InitLogger(cfg LogConfig) error {
	var zc zap.Config
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return eris.Wrapf(err, "config: invalid log level %q", cfg.Level)
	}
	zc.Level = level

	logger, err := zc.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}

	zap.ReplaceGlobals(logger)
	return nil
}
